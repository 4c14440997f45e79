//go:build linux

package executor

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/foundry/pkg/fileset"
	"github.com/cuemby/foundry/pkg/isolation"
	"github.com/cuemby/foundry/pkg/log"
	"github.com/cuemby/foundry/pkg/metrics"
	"github.com/cuemby/foundry/pkg/paths"
	"github.com/cuemby/foundry/pkg/sandbox"
	"github.com/cuemby/foundry/pkg/types"
	"github.com/cuemby/foundry/pkg/volume"
)

var (
	// ErrUnknownSandbox indicates a command referencing a sandbox that
	// was never created
	ErrUnknownSandbox = errors.New("unknown sandbox")

	// ErrDuplicateSandbox indicates two sandboxes with the same name
	ErrDuplicateSandbox = errors.New("sandbox already created")

	// ErrDuplicateVolume indicates two volumes with the same name
	ErrDuplicateVolume = errors.New("volume already created")

	// ErrEmptyArgv indicates a command without an executable
	ErrEmptyArgv = errors.New("argv must be non-empty")

	// ErrBadCreateFlags indicates a CreateFile that is neither readable
	// nor writeable
	ErrBadCreateFlags = errors.New("neither readable nor writeable flags are set")
)

// Executor runs the actions of one request and owns every resource they
// allocate: the file table, sandboxes, and volumes. It is request-local
// and driven by a single task, so no locking is needed.
type Executor struct {
	workDir   string
	backend   isolation.Backend
	global    *sandbox.GlobalSettings
	requestID uuid.UUID

	files     *fileset.Registry
	sandboxes map[string]*sandbox.Sandbox
	volumes   map[string]*volume.Volume
	resolver  *paths.Resolver
	logger    zerolog.Logger
}

// New creates an executor bound to the per-request work directory.
func New(workDir string, backend isolation.Backend, global *sandbox.GlobalSettings, requestID uuid.UUID) *Executor {
	return &Executor{
		workDir:   workDir,
		backend:   backend,
		global:    global,
		requestID: requestID,
		files:     fileset.NewRegistry(),
		sandboxes: make(map[string]*sandbox.Sandbox),
		volumes:   make(map[string]*volume.Volume),
		resolver:  paths.NewResolver(),
		logger:    log.Request(requestID.String()),
	}
}

// AddInput materializes one request input and binds it into the table.
func (e *Executor) AddInput(input *types.Input) error {
	var (
		file *fileset.File
		err  error
	)
	switch {
	case input.Source.InlineString != nil:
		file, err = fileset.FromBuffer([]byte(input.Source.InlineString.Data), "foundry-input")
	case input.Source.InlineBase64 != nil:
		var data []byte
		data, err = base64.StdEncoding.DecodeString(input.Source.InlineBase64.Data)
		if err != nil {
			return fmt.Errorf("invalid base64: %w", err)
		}
		file, err = fileset.FromBuffer(data, "foundry-input")
	case input.Source.LocalFile != nil:
		file, err = fileset.OpenRead(input.Source.LocalFile.Path)
	default:
		return fmt.Errorf("input source has no variant set")
	}
	if err != nil {
		return err
	}
	if err := e.files.Insert(input.FileID, file); err != nil {
		_ = file.Close()
		return err
	}
	return nil
}

// Export reads all bytes bound to a file id, rewinding first.
func (e *Executor) Export(ctx context.Context, id types.FileID) ([]byte, error) {
	file, err := e.files.Get(id)
	if err != nil {
		return nil, err
	}
	return file.ReadAll(ctx)
}

// ExportPath reads all bytes of a host file.
func (e *Executor) ExportPath(_ context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read output file %s: %w", path, err)
	}
	return data, nil
}

// RunAction executes one action and returns its tagged result.
func (e *Executor) RunAction(ctx context.Context, action types.Action) (types.ActionResult, error) {
	metrics.ActionsTotal.WithLabelValues(string(action.Kind())).Inc()
	switch {
	case action.CreateFile != nil:
		return types.ActionResult{Kind: types.ActionKindCreateFile}, e.createFile(action.CreateFile)
	case action.OpenFile != nil:
		return types.ActionResult{Kind: types.ActionKindOpenFile}, e.openFile(action.OpenFile)
	case action.OpenNullFile != nil:
		return types.ActionResult{Kind: types.ActionKindOpenNullFile}, e.openNullFile(action.OpenNullFile)
	case action.CreatePipe != nil:
		return types.ActionResult{Kind: types.ActionKindCreatePipe}, e.createPipe(action.CreatePipe)
	case action.CreateVolume != nil:
		return types.ActionResult{Kind: types.ActionKindCreateVolume}, e.createVolume(action.CreateVolume)
	case action.CreateSandbox != nil:
		return types.ActionResult{Kind: types.ActionKindCreateSandbox}, e.createSandbox(ctx, action.CreateSandbox)
	case action.ExecuteCommand != nil:
		result, err := e.executeCommand(ctx, action.ExecuteCommand)
		if err != nil {
			return types.ActionResult{}, err
		}
		return types.ActionResult{Kind: types.ActionKindExecuteCommand, Command: result}, nil
	}
	return types.ActionResult{}, fmt.Errorf("action has no variant set")
}

func (e *Executor) createFile(a *types.CreateFileAction) error {
	filePath := filepath.Join(e.workDir, "files", string(a.ID))
	var (
		file *fileset.File
		err  error
	)
	switch {
	case a.Readable && a.Writeable:
		file, err = fileset.OpenReadWrite(filePath)
	case a.Readable:
		// Create the file if it is missing, then reopen it read-only.
		file, err = fileset.OpenWrite(filePath)
		if err == nil {
			_ = file.Close()
			file, err = fileset.OpenRead(filePath)
		}
	case a.Writeable:
		file, err = fileset.OpenWrite(filePath)
	default:
		return ErrBadCreateFlags
	}
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := e.files.Insert(a.ID, file); err != nil {
		_ = file.Close()
		return err
	}
	return nil
}

func (e *Executor) openFile(a *types.OpenFileAction) error {
	hostPath, err := e.resolver.Resolve(a.Path)
	if err != nil {
		return err
	}
	file, err := fileset.OpenRead(hostPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", hostPath, err)
	}
	if err := e.files.Insert(a.ID, file); err != nil {
		_ = file.Close()
		return err
	}
	return nil
}

func (e *Executor) openNullFile(a *types.OpenNullFileAction) error {
	file, err := fileset.OpenNull()
	if err != nil {
		return fmt.Errorf("failed to open null file: %w", err)
	}
	if err := e.files.Insert(a.ID, file); err != nil {
		_ = file.Close()
		return err
	}
	return nil
}

func (e *Executor) createPipe(a *types.CreatePipeAction) error {
	read, write, err := fileset.Pipe()
	if err != nil {
		return fmt.Errorf("failed to create pipe: %w", err)
	}
	if err := e.files.InsertPair(a.Read, a.Write, read, write); err != nil {
		_ = read.Close()
		_ = write.Close()
		return err
	}
	return nil
}

func (e *Executor) createVolume(settings *types.VolumeSettings) error {
	if _, ok := e.volumes[settings.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateVolume, settings.Name)
	}
	path := filepath.Join(e.workDir, "volumes", settings.Name)
	vol, err := volume.Create(settings, path)
	if err != nil {
		return err
	}
	e.volumes[settings.Name] = vol
	e.resolver.AddVolume(settings.Name, vol.Path())
	return nil
}

func (e *Executor) createSandbox(ctx context.Context, settings *types.SandboxSettings) error {
	if _, ok := e.sandboxes[settings.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateSandbox, settings.Name)
	}
	timer := metrics.NewTimer()
	dataDir := filepath.Join(e.workDir, "sandboxes", settings.Name)
	sb, err := sandbox.Create(ctx, dataDir, e.backend, settings, e.global, e.resolver, e.requestID)
	if err != nil {
		return fmt.Errorf("failed to create sandbox: %w", err)
	}
	timer.ObserveDuration(metrics.SandboxCreateDuration)
	metrics.SandboxesActive.Inc()
	e.sandboxes[settings.Name] = sb
	return nil
}

// Close releases every resource the request allocated: sandboxes first
// (their work-dir tmpfs must go before the work directory does), then
// volumes, then the file table.
func (e *Executor) Close() {
	for name, sb := range e.sandboxes {
		if err := sb.Release(); err != nil {
			e.logger.Error().Err(err).Str("sandbox", name).Msg("failed to release sandbox")
		}
		metrics.SandboxesActive.Dec()
	}
	e.sandboxes = make(map[string]*sandbox.Sandbox)
	for _, vol := range e.volumes {
		vol.Release()
	}
	e.volumes = make(map[string]*volume.Volume)
	if err := e.files.Close(); err != nil {
		e.logger.Error().Err(err).Msg("failed to close file table")
	}
}
