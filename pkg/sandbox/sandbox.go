//go:build linux

package sandbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/docker/go-units"
	"github.com/google/uuid"
	specs "github.com/opencontainers/runtime-spec/specs-go"
	"github.com/rs/zerolog"

	"github.com/cuemby/foundry/pkg/debug"
	"github.com/cuemby/foundry/pkg/isolation"
	"github.com/cuemby/foundry/pkg/log"
	"github.com/cuemby/foundry/pkg/paths"
	"github.com/cuemby/foundry/pkg/types"
)

// DefaultProcessLimit applies when a request does not set one.
const DefaultProcessLimit = 16

// realTimeFactor scales the CPU budget into the wall-clock budget.
const realTimeFactor = 3

// DefaultHostItems are the host top-level directories exposed when a
// sandbox uses "/" as its base image.
var DefaultHostItems = []string{"usr", "bin", "lib", "lib64"}

// GlobalSettings configure every sandbox of the process.
type GlobalSettings struct {
	// ExposedHostItems overrides DefaultHostItems when non-nil.
	ExposedHostItems []string

	// DefaultWorkDirSize applies a work-dir quota to sandboxes whose
	// request does not set one. Nil means no default quota.
	DefaultWorkDirSize *uint64

	// Leak disables teardown for post-mortem inspection.
	Leak bool

	// Suspender optionally pauses after creation for debugger attach.
	Suspender *debug.Suspender
}

func (g *GlobalSettings) hostItems() []string {
	if g.ExposedHostItems != nil {
		return g.ExposedHostItems
	}
	return DefaultHostItems
}

// Sandbox owns one isolation domain: its data directory (the work-dir
// tmpfs) and the opaque backend handle. The tmpfs unmount belongs to
// the sandbox and must happen before the request work directory is
// removed.
type Sandbox struct {
	name     string
	handle   isolation.Sandbox
	dataDir  string
	hasTmpfs bool
	leak     bool
	released bool
	logger   zerolog.Logger
}

// Create assembles the mount set for the settings and asks the backend
// for a new isolation domain.
func Create(ctx context.Context, dataDir string, backend isolation.Backend,
	settings *types.SandboxSettings, global *GlobalSettings,
	resolver *paths.Resolver, requestID uuid.UUID) (*Sandbox, error) {

	logger := log.Sandbox(requestID.String(), settings.Name)

	var shared []specs.Mount
	if settings.BaseImage == "/" {
		for _, item := range global.hostItems() {
			shared = append(shared, specs.Mount{
				Source:      "/" + item,
				Destination: "/" + item,
				Type:        "bind",
				Options:     []string{"rbind", "ro"},
			})
		}
	} else {
		entries, err := os.ReadDir(settings.BaseImage)
		if err != nil {
			return nil, fmt.Errorf("failed to list base image directory (%s): %w", settings.BaseImage, err)
		}
		for _, entry := range entries {
			shared = append(shared, specs.Mount{
				Source:      filepath.Join(settings.BaseImage, entry.Name()),
				Destination: "/" + entry.Name(),
				Type:        "bind",
				Options:     []string{"rbind", "ro"},
			})
		}
	}

	for _, item := range settings.Expose {
		hostPath, err := resolver.Resolve(item.HostPath)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve exposed path: %w", err)
		}
		if item.Create {
			if err := os.MkdirAll(hostPath, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create exposed directory %s: %w", hostPath, err)
			}
		}
		options := []string{"rbind", "ro"}
		if item.Mode == types.SharedDirModeReadWrite {
			options = []string{"rbind"}
			if err := loosenPermissions(hostPath); err != nil {
				return nil, err
			}
		}
		shared = append(shared, specs.Mount{
			Source:      hostPath,
			Destination: item.SandboxPath,
			Type:        "bind",
			Options:     options,
		})
	}

	sb := &Sandbox{name: settings.Name, dataDir: dataDir, leak: global.Leak, logger: logger}

	workData := filepath.Join(dataDir, "data")
	if err := os.MkdirAll(workData, 0o777); err != nil {
		return nil, fmt.Errorf("failed to create sandbox data directory: %w", err)
	}
	// MkdirAll is umask-clipped; the sandboxed uid must be able to write.
	if err := os.Chmod(workData, 0o777); err != nil {
		return nil, fmt.Errorf("failed to chmod sandbox data directory: %w", err)
	}
	workDirSize := settings.Limits.WorkDirSize
	if workDirSize == nil {
		workDirSize = global.DefaultWorkDirSize
	}
	if workDirSize != nil {
		if err := isolation.MountTmpfs(workData, *workDirSize); err != nil {
			return nil, fmt.Errorf("failed to mount work dir tmpfs: %w", err)
		}
		sb.hasTmpfs = true
	}
	shared = append(shared, specs.Mount{
		Source:      workData,
		Destination: settings.WorkDir,
		Type:        "bind",
		Options:     []string{"rbind"},
	})

	chrootDir := filepath.Join(dataDir, "root")
	if err := os.MkdirAll(chrootDir, 0o755); err != nil {
		sb.releaseData()
		return nil, fmt.Errorf("failed to create chroot dir %s: %w", chrootDir, err)
	}

	for _, item := range shared {
		validateSharedItem(logger, item)
	}

	maxProcs := uint64(DefaultProcessLimit)
	if settings.Limits.ProcessCount != nil {
		maxProcs = *settings.Limits.ProcessCount
	}
	cpuLimit := millis(settings.Limits.Time)
	opts := isolation.SandboxOptions{
		MaxProcs:      maxProcs,
		MemoryLimit:   settings.Limits.Memory,
		SharedItems:   shared,
		IsolationRoot: chrootDir,
		CPUTimeLimit:  cpuLimit,
		RealTimeLimit: realTimeFactor * cpuLimit,
	}
	logger.Debug().
		Uint64("max_procs", maxProcs).
		Str("memory", units.BytesSize(float64(settings.Limits.Memory))).
		Dur("cpu_time", cpuLimit).
		Int("shared_items", len(shared)).
		Msg("creating sandbox")

	handle, err := backend.NewSandbox(opts)
	if err != nil {
		sb.releaseData()
		return nil, fmt.Errorf("failed to create isolation domain: %w", err)
	}
	sb.handle = handle

	if global.Suspender != nil {
		info := debug.AttachInfo{
			RequestID:   requestID.String(),
			SandboxName: settings.Name,
			Raw:         handle.DebugInfo(),
		}
		if err := global.Suspender.Suspend(ctx, info); err != nil {
			_ = sb.Release()
			return nil, fmt.Errorf("failed to wait for debugger attach: %w", err)
		}
	}
	return sb, nil
}

// Name returns the request-scoped sandbox name.
func (sb *Sandbox) Name() string { return sb.name }

// Handle returns the backend handle for spawning.
func (sb *Sandbox) Handle() isolation.Sandbox { return sb.handle }

// Release tears down the isolation domain and the work-dir tmpfs. With
// the leak flag set it only logs and keeps everything alive.
func (sb *Sandbox) Release() error {
	if sb.released {
		return nil
	}
	sb.released = true
	if sb.leak {
		sb.logger.Info().Msg("preventing cleanup for the sandbox")
		return nil
	}
	var err error
	if sb.handle != nil {
		err = sb.handle.Release()
	}
	sb.releaseData()
	return err
}

func (sb *Sandbox) releaseData() {
	if !sb.hasTmpfs {
		return
	}
	sb.hasTmpfs = false
	path := filepath.Join(sb.dataDir, "data")
	if err := isolation.UnmountDetach(path); err != nil {
		sb.logger.Error().Err(err).Msg("leaking work dir tmpfs: unmount failed")
	}
}

func millis(ms uint64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
