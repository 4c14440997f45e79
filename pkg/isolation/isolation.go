package isolation

import (
	"context"
	"os"
	"time"

	specs "github.com/opencontainers/runtime-spec/specs-go"
)

// SandboxOptions describes one isolated execution domain.
type SandboxOptions struct {
	// MaxProcs limits the number of alive processes.
	MaxProcs uint64

	// MemoryLimit in bytes.
	MemoryLimit uint64

	// SharedItems are bind-mounted into the isolation root before any
	// process starts. Option "ro" makes a mount read-only.
	SharedItems []specs.Mount

	// IsolationRoot is the directory the sandboxed processes are
	// chrooted into.
	IsolationRoot string

	// CPUTimeLimit is the cumulative CPU time budget.
	CPUTimeLimit time.Duration

	// RealTimeLimit is the wall-clock budget, measured from the first
	// spawn.
	RealTimeLimit time.Duration
}

// ChildProcessOptions describes one process to run inside a sandbox.
type ChildProcessOptions struct {
	// Path of the executable inside the sandbox.
	Path string

	// Args are the arguments after argv[0].
	Args []string

	// Env is the complete environment, as name=value entries.
	Env []string

	// Cwd is the working directory inside the sandbox.
	Cwd string

	// Stdin, Stdout, Stderr are the handles inherited as the standard
	// streams. The spawn record owns them and closes them after wait.
	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File

	// ExtraFiles are inherited in order starting at descriptor 3.
	ExtraFiles []*os.File
}

// ResourceUsage is the cumulative consumption of a sandbox. Fields are
// nil when the kernel does not expose the counter.
type ResourceUsage struct {
	// TimeNS is CPU time in nanoseconds.
	TimeNS *uint64

	// MemoryBytes is the peak memory footprint.
	MemoryBytes *uint64
}

// Sandbox is an opaque handle to one isolation domain. It is safe to
// share: a child process record keeps its sandbox alive while commands
// run inside it, and only Release tears the domain down.
type Sandbox interface {
	// ResourceUsage reports cumulative consumption.
	ResourceUsage() (ResourceUsage, error)

	// DebugInfo describes the domain for post-mortem inspection.
	DebugInfo() map[string]string

	// Release kills every process in the domain and undoes mounts and
	// accounting state. Safe to call more than once.
	Release() error
}

// Child is a spawned process.
type Child interface {
	// Wait blocks until the process exits and returns its exit code.
	// A signaled process reports 128 plus the signal number.
	Wait(ctx context.Context) (int64, error)
}

// Backend creates sandboxes and spawns processes inside them. A backend
// is process-wide and must be safe for concurrent use by multiple
// requests.
type Backend interface {
	NewSandbox(opts SandboxOptions) (Sandbox, error)
	Spawn(opts ChildProcessOptions, sandbox Sandbox) (Child, error)
}
