//go:build linux

package handler

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/cuemby/foundry/pkg/debug"
	"github.com/cuemby/foundry/pkg/events"
	"github.com/cuemby/foundry/pkg/executor"
	"github.com/cuemby/foundry/pkg/interp"
	"github.com/cuemby/foundry/pkg/isolation"
	"github.com/cuemby/foundry/pkg/log"
	"github.com/cuemby/foundry/pkg/metrics"
	"github.com/cuemby/foundry/pkg/sandbox"
	"github.com/cuemby/foundry/pkg/types"
)

// Config holds the per-process handler settings.
type Config struct {
	// WorkDir is the root under which every request gets its own
	// directory.
	WorkDir string

	// LeakSandboxes disables sandbox teardown for post-mortem
	// inspection. The request work directory is kept too.
	LeakSandboxes bool

	// DebugDir enables the interactive-debug suspender when non-empty.
	DebugDir string

	// ExposedHostItems overrides the host directories exposed for
	// sandboxes with base image "/".
	ExposedHostItems []string

	// DefaultWorkDirSize applies a work-dir quota when requests omit
	// one. Nil means unquoted work dirs.
	DefaultWorkDirSize *uint64
}

// Handler drives invocation requests to completion. It is safe for
// concurrent use: each request gets its own executor and work
// directory, and only the backend is shared.
type Handler struct {
	cfg      Config
	backend  isolation.Backend
	global   *sandbox.GlobalSettings
	notifier *events.Notifier
}

// New creates a handler around the process-wide backend. The notifier
// may be nil; lifecycle events are then discarded.
func New(cfg Config, backend isolation.Backend, notifier *events.Notifier) *Handler {
	return &Handler{
		cfg:      cfg,
		backend:  backend,
		notifier: notifier,
		global: &sandbox.GlobalSettings{
			ExposedHostItems:   cfg.ExposedHostItems,
			DefaultWorkDirSize: cfg.DefaultWorkDirSize,
			Leak:               cfg.LeakSandboxes,
			Suspender:          debug.NewSuspender(cfg.DebugDir),
		},
	}
}

// Handle validates the request, drives the interpreter loop, and
// collects outputs. Any returned error aborts the whole request.
func (h *Handler) Handle(ctx context.Context, req *types.InvokeRequest) (*types.InvokeResponse, error) {
	logger := log.Request(req.ID.String())
	logger.Info().Str("summary", summarize(req)).Msg("processing invocation request")
	timer := metrics.NewTimer()

	if err := validateRequest(req); err != nil {
		metrics.RequestsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	workDir := filepath.Join(h.cfg.WorkDir, req.ID.String())
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create request work directory: %w", err)
	}
	exec := executor.New(workDir, h.backend, h.global, req.ID)
	defer func() {
		exec.Close()
		if h.cfg.LeakSandboxes {
			logger.Info().Str("work_dir", workDir).Msg("keeping request work directory")
			return
		}
		if err := os.RemoveAll(workDir); err != nil {
			logger.Error().Err(err).Msg("failed to remove request work directory")
		}
	}()

	stream := h.notifier.ForRequest(req.ID.String())
	stream.Emit(events.EventRequestStarted, "", nil)

	resp, err := h.run(ctx, req, exec, stream, logger)
	timer.ObserveDuration(metrics.RequestDuration)
	if err != nil {
		metrics.RequestsTotal.WithLabelValues("failed").Inc()
		stream.Emit(events.EventRequestFailed, err.Error(), nil)
		return nil, err
	}
	metrics.RequestsTotal.WithLabelValues("completed").Inc()
	stream.Emit(events.EventRequestCompleted, "", nil)
	return resp, nil
}

func (h *Handler) run(ctx context.Context, req *types.InvokeRequest, exec *executor.Executor, stream *events.Stream, logger zerolog.Logger) (*types.InvokeResponse, error) {
	for i := range req.Inputs {
		if err := exec.AddInput(&req.Inputs[i]); err != nil {
			return nil, fmt.Errorf("failed to add input file %s: %w", req.Inputs[i].FileID, err)
		}
	}

	resp := &types.InvokeResponse{
		ID:      req.ID,
		Outputs: []types.Output{},
		Actions: []types.ActionResult{},
	}

	in := interp.New(req.Steps)
	started := make(map[int]bool)
	var done []int
	for {
		ready := in.Poll(done)
		done = done[:0]
		if len(ready) == 0 {
			break
		}
		for _, stepID := range ready {
			if started[stepID] {
				continue
			}
			started[stepID] = true
			logger.Info().Int("step_id", stepID).Msg("starting step")
			result, err := exec.RunAction(ctx, req.Steps[stepID].Action)
			if err != nil {
				return nil, fmt.Errorf("step %d failed: %w", stepID, err)
			}
			logger.Info().Int("step_id", stepID).Msg("finished step")
			emitActionEvent(stream, &req.Steps[stepID].Action, &result)
			done = append(done, stepID)
			resp.Actions = append(resp.Actions, result)
		}
	}
	if !in.IsCompleted() {
		return nil, fmt.Errorf("internal error: interpreter stuck: no new steps were requested")
	}

	logger.Info().Msg("collecting outputs")
	for pos := range req.Outputs {
		out := &req.Outputs[pos]
		var (
			data []byte
			err  error
		)
		switch {
		case out.Target.File != nil:
			data, err = exec.Export(ctx, *out.Target.File)
		case out.Target.Path != nil:
			data, err = exec.ExportPath(ctx, *out.Target.Path)
		default:
			err = fmt.Errorf("output request target has no variant set")
		}
		if err != nil {
			return nil, fmt.Errorf("failed to export #%d (%s): %w", pos, out.Name, err)
		}
		logger.Debug().Int("output_id", pos).Int("byte_count", len(data)).Send()
		resp.Outputs = append(resp.Outputs, types.Output{
			Name: out.Name,
			Data: types.OutputData{InlineBase64: base64.StdEncoding.EncodeToString(data)},
		})
	}
	return resp, nil
}

// emitActionEvent translates a finished action into its lifecycle
// event, if it has one.
func emitActionEvent(stream *events.Stream, action *types.Action, result *types.ActionResult) {
	switch {
	case action.CreateSandbox != nil:
		stream.Emit(events.EventSandboxCreated, "",
			map[string]string{"sandbox": action.CreateSandbox.Name})
	case action.CreateVolume != nil:
		stream.Emit(events.EventVolumeCreated, "",
			map[string]string{"volume": action.CreateVolume.Name})
	case action.ExecuteCommand != nil:
		eventType := events.EventCommandFinished
		if result.Command != nil && result.Command.SpawnError != nil {
			eventType = events.EventCommandSpawnFail
		}
		stream.Emit(eventType, "",
			map[string]string{"sandbox": action.ExecuteCommand.SandboxName})
	}
}
