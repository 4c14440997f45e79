//go:build linux

package executor

import (
	"context"
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/google/uuid"

	"github.com/cuemby/foundry/pkg/fileset"
	"github.com/cuemby/foundry/pkg/isolation"
	"github.com/cuemby/foundry/pkg/metrics"
	"github.com/cuemby/foundry/pkg/types"
)

// firstExtraFD is where exec places inherited extra files in the child.
const firstExtraFD = 3

// spawnErrorExitCode is the sentinel reported when a command never started.
const spawnErrorExitCode = int64(math.MaxInt64)

// executeCommand spawns one child process inside a named sandbox and
// waits for it. A spawn failure is non-fatal: it is reported in the
// result under a fresh error id so the caller can find it in the logs.
func (e *Executor) executeCommand(ctx context.Context, cmd *types.Command) (*types.CommandResult, error) {
	sb, ok := e.sandboxes[cmd.SandboxName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSandbox, cmd.SandboxName)
	}
	if len(cmd.Argv) == 0 {
		return nil, ErrEmptyArgv
	}

	stdin, err := e.stdioClone(cmd.Stdio.Stdin, "stdin", (*fileset.File).CheckReadable)
	if err != nil {
		return nil, err
	}
	stdout, err := e.stdioClone(cmd.Stdio.Stdout, "stdout", (*fileset.File).CheckWritable)
	if err != nil {
		_ = stdin.Close()
		return nil, err
	}
	stderr, err := e.stdioClone(cmd.Stdio.Stderr, "stderr", (*fileset.File).CheckWritable)
	if err != nil {
		_ = stdin.Close()
		_ = stdout.Close()
		return nil, err
	}

	clones := []*fileset.File{stdin, stdout, stderr}
	closeClones := func() {
		for _, c := range clones {
			_ = c.Close()
		}
	}

	var extraFiles []*os.File
	env := make([]string, 0, len(cmd.Env))
	for _, entry := range cmd.Env {
		var value string
		switch {
		case entry.Value.Plain != nil:
			value = *entry.Value.Plain
		case entry.Value.File != nil:
			file, err := e.files.Get(*entry.Value.File)
			if err != nil {
				closeClones()
				return nil, fmt.Errorf("env references unknown file: %w", err)
			}
			clone, err := file.CloneInherit()
			if err != nil {
				closeClones()
				return nil, fmt.Errorf("failed to create inheritable file copy: %w", err)
			}
			if err := clone.Rewind(); err != nil {
				_ = clone.Close()
				closeClones()
				return nil, err
			}
			clones = append(clones, clone)
			// The child sees extra files renumbered from 3 upward.
			value = strconv.Itoa(firstExtraFD + len(extraFiles))
			extraFiles = append(extraFiles, clone.OSFile())
		default:
			closeClones()
			return nil, fmt.Errorf("env var %s has no value variant set", entry.Name)
		}
		env = append(env, entry.Name+"="+value)
	}

	opts := isolation.ChildProcessOptions{
		Path:       cmd.Argv[0],
		Args:       cmd.Argv[1:],
		Env:        env,
		Cwd:        cmd.Cwd,
		Stdin:      stdin.OSFile(),
		Stdout:     stdout.OSFile(),
		Stderr:     stderr.OSFile(),
		ExtraFiles: extraFiles,
	}
	e.logger.Debug().
		Str("sandbox", cmd.SandboxName).
		Strs("argv", cmd.Argv).
		Msg("creating child process")

	timer := metrics.NewTimer()
	child, err := e.backend.Spawn(opts, sb.Handle())
	if err != nil {
		closeClones()
		spawnErrorID := uuid.New()
		e.logger.Info().
			Str("error_id", spawnErrorID.String()).
			Err(err).
			Msg("failed to spawn command")
		metrics.CommandsTotal.WithLabelValues("spawn_error").Inc()
		return &types.CommandResult{
			SpawnError: &spawnErrorID,
			ExitCode:   spawnErrorExitCode,
		}, nil
	}

	// The child owns the inherited handles now; Wait closes them.
	exitCode, err := child.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("wait error: %w", err)
	}
	timer.ObserveDuration(metrics.CommandDuration)
	metrics.CommandsTotal.WithLabelValues("completed").Inc()

	usage, err := sb.Handle().ResourceUsage()
	if err != nil {
		return nil, fmt.Errorf("failed to capture resource usage: %w", err)
	}
	return &types.CommandResult{
		ExitCode: exitCode,
		CPUTime:  usage.TimeNS,
		Memory:   usage.MemoryBytes,
	}, nil
}

// stdioClone resolves a stdio id, checks its mode, and produces a
// rewound inheritable clone.
func (e *Executor) stdioClone(id types.FileID, role string, check func(*fileset.File) error) (*fileset.File, error) {
	file, err := e.files.Get(id)
	if err != nil {
		return nil, fmt.Errorf("%s references unknown file: %w", role, err)
	}
	if err := check(file); err != nil {
		return nil, fmt.Errorf("%s: %w", role, err)
	}
	clone, err := file.CloneInherit()
	if err != nil {
		return nil, fmt.Errorf("failed to clone %s for inheritance: %w", role, err)
	}
	if err := clone.Rewind(); err != nil {
		_ = clone.Close()
		return nil, err
	}
	return clone, nil
}
