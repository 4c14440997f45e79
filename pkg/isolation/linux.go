//go:build linux

package isolation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	specs "github.com/opencontainers/runtime-spec/specs-go"
	"golang.org/x/sys/unix"

	"github.com/cuemby/foundry/pkg/log"
)

const (
	// CgroupRoot is where the unified hierarchy is mounted
	CgroupRoot = "/sys/fs/cgroup"

	// DefaultCgroupPrefix scopes all sandbox cgroups
	DefaultCgroupPrefix = "foundry"

	watchdogInterval = 25 * time.Millisecond
)

// Settings configures the Linux backend.
type Settings struct {
	// CgroupPrefix is the directory under the cgroup2 root that holds
	// all sandbox cgroups.
	CgroupPrefix string

	// UIDLow and UIDHigh bound the nobody-like uid range sandboxed
	// processes run as. Each sandbox gets one uid from the range.
	UIDLow  uint32
	UIDHigh uint32
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		CgroupPrefix: DefaultCgroupPrefix,
		UIDLow:       1_000_000,
		UIDHigh:      2_000_000,
	}
}

// LinuxBackend realizes sandboxes with chroot plus mount namespaces and
// a cgroup2 subtree for accounting and limit enforcement.
type LinuxBackend struct {
	settings Settings
	counter  atomic.Uint64
}

// NewLinuxBackend creates the process-wide backend and its cgroup
// parent directory.
func NewLinuxBackend(settings Settings) (*LinuxBackend, error) {
	if settings.CgroupPrefix == "" {
		settings.CgroupPrefix = DefaultCgroupPrefix
	}
	if settings.UIDHigh <= settings.UIDLow {
		return nil, fmt.Errorf("uid range is empty: %d..%d", settings.UIDLow, settings.UIDHigh)
	}
	parent := filepath.Join(CgroupRoot, settings.CgroupPrefix)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cgroup parent %s: %w", parent, err)
	}
	// Delegate the controllers sandboxes rely on to the subtree.
	ctl := filepath.Join(parent, "cgroup.subtree_control")
	if err := os.WriteFile(ctl, []byte("+cpu +memory +pids"), 0o644); err != nil {
		logger := log.Component("isolation")
		logger.Warn().Err(err).
			Msg("failed to enable subtree controllers; limits may not apply")
	}
	return &LinuxBackend{settings: settings}, nil
}

type linuxSandbox struct {
	backend   *LinuxBackend
	cgroupDir string
	root      string
	uid       uint32
	mounts    []string // mounted targets, in mount order

	mu        sync.Mutex
	released  bool
	deadline  time.Time // zero until the first spawn
	cpuLimit  time.Duration
	realTime  time.Duration
	stopWatch chan struct{}
}

// NewSandbox assembles the mount set under the isolation root and
// creates the sandbox cgroup with its limits.
func (b *LinuxBackend) NewSandbox(opts SandboxOptions) (Sandbox, error) {
	seq := b.counter.Add(1)
	span := uint64(b.settings.UIDHigh - b.settings.UIDLow)
	sb := &linuxSandbox{
		backend:   b,
		cgroupDir: filepath.Join(CgroupRoot, b.settings.CgroupPrefix, fmt.Sprintf("sandbox-%d", seq)),
		root:      opts.IsolationRoot,
		uid:       b.settings.UIDLow + uint32(seq%span),
		cpuLimit:  opts.CPUTimeLimit,
		realTime:  opts.RealTimeLimit,
		stopWatch: make(chan struct{}),
	}

	if err := os.MkdirAll(sb.cgroupDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create sandbox cgroup: %w", err)
	}
	if err := sb.writeCgroup("memory.max", strconv.FormatUint(opts.MemoryLimit, 10)); err != nil {
		_ = sb.Release()
		return nil, err
	}
	if err := sb.writeCgroup("pids.max", strconv.FormatUint(opts.MaxProcs, 10)); err != nil {
		_ = sb.Release()
		return nil, err
	}

	for _, item := range opts.SharedItems {
		if err := sb.mountItem(item); err != nil {
			_ = sb.Release()
			return nil, err
		}
	}
	return sb, nil
}

func (sb *linuxSandbox) mountItem(item specs.Mount) error {
	target := filepath.Join(sb.root, item.Destination)
	src, err := os.Stat(item.Source)
	if err != nil {
		return fmt.Errorf("shared item source %s: %w", item.Source, err)
	}
	if src.IsDir() {
		if err := os.MkdirAll(target, 0o755); err != nil {
			return fmt.Errorf("failed to create mount target %s: %w", target, err)
		}
	} else {
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("failed to create mount target parent: %w", err)
		}
		f, err := os.OpenFile(target, os.O_CREATE, 0o644)
		if err != nil {
			return fmt.Errorf("failed to create mount target %s: %w", target, err)
		}
		_ = f.Close()
	}
	if err := unix.Mount(item.Source, target, "", unix.MS_BIND|unix.MS_REC, ""); err != nil {
		return fmt.Errorf("failed to bind %s to %s: %w", item.Source, target, err)
	}
	sb.mounts = append(sb.mounts, target)
	for _, opt := range item.Options {
		if opt == "ro" {
			flags := uintptr(unix.MS_BIND | unix.MS_REMOUNT | unix.MS_RDONLY | unix.MS_REC)
			if err := unix.Mount("", target, "", flags, ""); err != nil {
				return fmt.Errorf("failed to remount %s read-only: %w", target, err)
			}
		}
	}
	return nil
}

func (sb *linuxSandbox) writeCgroup(name, value string) error {
	path := filepath.Join(sb.cgroupDir, name)
	if err := os.WriteFile(path, []byte(value), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func (sb *linuxSandbox) readCgroupUint(name string) (uint64, error) {
	data, err := os.ReadFile(filepath.Join(sb.cgroupDir, name))
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
}

// cpuUsage parses usage_usec out of cpu.stat.
func (sb *linuxSandbox) cpuUsage() (time.Duration, error) {
	data, err := os.ReadFile(filepath.Join(sb.cgroupDir, "cpu.stat"))
	if err != nil {
		return 0, err
	}
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 2 && fields[0] == "usage_usec" {
			usec, err := strconv.ParseUint(fields[1], 10, 64)
			if err != nil {
				return 0, err
			}
			return time.Duration(usec) * time.Microsecond, nil
		}
	}
	return 0, fmt.Errorf("usage_usec not found in cpu.stat")
}

// ResourceUsage reports cumulative CPU time and peak memory.
func (sb *linuxSandbox) ResourceUsage() (ResourceUsage, error) {
	var usage ResourceUsage
	if cpu, err := sb.cpuUsage(); err == nil {
		ns := uint64(cpu.Nanoseconds())
		usage.TimeNS = &ns
	}
	peak, err := sb.readCgroupUint("memory.peak")
	if err != nil {
		// memory.peak needs a recent kernel; fall back to the live value.
		peak, err = sb.readCgroupUint("memory.current")
	}
	if err == nil {
		usage.MemoryBytes = &peak
	}
	if usage.TimeNS == nil && usage.MemoryBytes == nil {
		return usage, fmt.Errorf("no usage counters available under %s", sb.cgroupDir)
	}
	return usage, nil
}

// DebugInfo describes the domain for attach tooling.
func (sb *linuxSandbox) DebugInfo() map[string]string {
	return map[string]string{
		"cgroup": sb.cgroupDir,
		"root":   sb.root,
		"uid":    strconv.FormatUint(uint64(sb.uid), 10),
	}
}

// kill terminates every process in the domain.
func (sb *linuxSandbox) kill() {
	if err := sb.writeCgroup("cgroup.kill", "1"); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger := log.Component("isolation")
		logger.Warn().Err(err).Msg("failed to kill sandbox cgroup")
	}
}

// armWatchdog starts wall and CPU time enforcement. The real-time clock
// runs from the first spawn.
func (sb *linuxSandbox) armWatchdog() {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	if !sb.deadline.IsZero() || sb.released {
		return
	}
	sb.deadline = time.Now().Add(sb.realTime)
	go sb.watch()
}

func (sb *linuxSandbox) watch() {
	ticker := time.NewTicker(watchdogInterval)
	defer ticker.Stop()
	for {
		select {
		case <-sb.stopWatch:
			return
		case <-ticker.C:
			if time.Now().After(sb.deadline) {
				logger := log.Component("isolation")
				logger.Debug().Msg("real time limit exceeded, killing sandbox")
				sb.kill()
				return
			}
			if usage, err := sb.cpuUsage(); err == nil && usage > sb.cpuLimit {
				logger := log.Component("isolation")
				logger.Debug().Msg("cpu time limit exceeded, killing sandbox")
				sb.kill()
				return
			}
		}
	}
}

// Release tears down the domain: kills the cgroup, undoes mounts in
// reverse order, and removes the cgroup directory.
func (sb *linuxSandbox) Release() error {
	sb.mu.Lock()
	if sb.released {
		sb.mu.Unlock()
		return nil
	}
	sb.released = true
	close(sb.stopWatch)
	sb.mu.Unlock()

	sb.kill()

	var errs []error
	for i := len(sb.mounts) - 1; i >= 0; i-- {
		if err := unix.Unmount(sb.mounts[i], unix.MNT_DETACH); err != nil {
			errs = append(errs, fmt.Errorf("unmount %s: %w", sb.mounts[i], err))
		}
	}
	// Processes need a moment to die before the cgroup can be removed.
	var rmErr error
	for attempt := 0; attempt < 10; attempt++ {
		rmErr = unix.Rmdir(sb.cgroupDir)
		if rmErr == nil || errors.Is(rmErr, os.ErrNotExist) {
			rmErr = nil
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if rmErr != nil {
		errs = append(errs, fmt.Errorf("rmdir %s: %w", sb.cgroupDir, rmErr))
	}
	return errors.Join(errs...)
}

type linuxChild struct {
	cmd     *exec.Cmd
	sandbox *linuxSandbox
	owned   []*os.File
}

// Spawn starts a process chrooted into the sandbox root, inside fresh
// namespaces, under the sandbox cgroup and uid.
func (b *LinuxBackend) Spawn(opts ChildProcessOptions, sandbox Sandbox) (Child, error) {
	sb, ok := sandbox.(*linuxSandbox)
	if !ok {
		return nil, fmt.Errorf("sandbox was not created by this backend")
	}

	cgroupFD, err := unix.Open(sb.cgroupDir, unix.O_PATH|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open sandbox cgroup: %w", err)
	}

	cmd := exec.Command(opts.Path, opts.Args...)
	cmd.Env = opts.Env
	cmd.Dir = opts.Cwd
	cmd.Stdin = opts.Stdin
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr
	cmd.ExtraFiles = opts.ExtraFiles
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Chroot:      sb.root,
		Cloneflags:  syscall.CLONE_NEWNS | syscall.CLONE_NEWPID | syscall.CLONE_NEWIPC | syscall.CLONE_NEWUTS,
		Credential:  &syscall.Credential{Uid: sb.uid, Gid: sb.uid},
		UseCgroupFD: true,
		CgroupFD:    cgroupFD,
	}

	sb.armWatchdog()
	err = cmd.Start()
	_ = unix.Close(cgroupFD)
	if err != nil {
		return nil, fmt.Errorf("failed to start process: %w", err)
	}

	owned := make([]*os.File, 0, 3+len(opts.ExtraFiles))
	for _, f := range []*os.File{opts.Stdin, opts.Stdout, opts.Stderr} {
		if f != nil {
			owned = append(owned, f)
		}
	}
	owned = append(owned, opts.ExtraFiles...)

	return &linuxChild{cmd: cmd, sandbox: sb, owned: owned}, nil
}

// Wait blocks until the process exits. The parent copies of inherited
// handles are closed here so pipe readers can observe EOF.
func (c *linuxChild) Wait(ctx context.Context) (int64, error) {
	waitErr := c.cmd.Wait()
	for _, f := range c.owned {
		_ = f.Close()
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return 0, fmt.Errorf("wait error: %w", waitErr)
		}
	}
	ws, ok := c.cmd.ProcessState.Sys().(syscall.WaitStatus)
	if ok && ws.Signaled() {
		return int64(128 + int(ws.Signal())), nil
	}
	return int64(c.cmd.ProcessState.ExitCode()), nil
}
