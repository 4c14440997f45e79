//go:build linux

package health

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// RootChecker verifies the process runs with root privileges, which the
// backend needs for mounts, chroot, and uid switching.
type RootChecker struct{}

func (RootChecker) Type() CheckType { return CheckTypeRoot }

func (RootChecker) Check(_ context.Context) Result {
	res := Result{CheckedAt: time.Now()}
	if os.Geteuid() != 0 {
		res.Message = fmt.Sprintf("effective uid is %d, sandboxing requires root", os.Geteuid())
		return res
	}
	res.Healthy = true
	res.Message = "running as root"
	return res
}

// CgroupChecker verifies the unified cgroup hierarchy is mounted
// writable with the cpu, memory, and pids controllers available.
type CgroupChecker struct {
	// Root of the cgroup2 mount; defaults to /sys/fs/cgroup.
	Root string
}

func (CgroupChecker) Type() CheckType { return CheckTypeCgroup }

func (c CgroupChecker) Check(_ context.Context) Result {
	res := Result{CheckedAt: time.Now()}
	root := c.Root
	if root == "" {
		root = "/sys/fs/cgroup"
	}

	var st unix.Statfs_t
	if err := unix.Statfs(root, &st); err != nil {
		res.Message = fmt.Sprintf("statfs %s: %v", root, err)
		return res
	}
	if st.Type != unix.CGROUP2_SUPER_MAGIC {
		res.Message = fmt.Sprintf("%s is not a cgroup2 mount", root)
		return res
	}

	data, err := os.ReadFile(filepath.Join(root, "cgroup.controllers"))
	if err != nil {
		res.Message = fmt.Sprintf("read cgroup.controllers: %v", err)
		return res
	}
	have := strings.Fields(string(data))
	for _, want := range []string{"cpu", "memory", "pids"} {
		found := false
		for _, ctl := range have {
			if ctl == want {
				found = true
				break
			}
		}
		if !found {
			res.Message = fmt.Sprintf("cgroup controller %q is not available", want)
			return res
		}
	}

	if unix.Access(root, unix.W_OK) != nil {
		res.Message = fmt.Sprintf("%s is not writable", root)
		return res
	}

	res.Healthy = true
	res.Message = "cgroup2 ready"
	return res
}

// DevNullChecker verifies the null source exists.
type DevNullChecker struct{}

func (DevNullChecker) Type() CheckType { return CheckTypeDevNull }

func (DevNullChecker) Check(_ context.Context) Result {
	res := Result{CheckedAt: time.Now()}
	f, err := os.Open(os.DevNull)
	if err != nil {
		res.Message = fmt.Sprintf("open %s: %v", os.DevNull, err)
		return res
	}
	_ = f.Close()
	res.Healthy = true
	res.Message = os.DevNull + " ok"
	return res
}

// WorkDirChecker verifies the work directory exists and is writable.
type WorkDirChecker struct {
	Path string
}

func (WorkDirChecker) Type() CheckType { return CheckTypeWorkDir }

func (c WorkDirChecker) Check(_ context.Context) Result {
	res := Result{CheckedAt: time.Now()}
	if err := os.MkdirAll(c.Path, 0o755); err != nil {
		res.Message = fmt.Sprintf("create work dir %s: %v", c.Path, err)
		return res
	}
	probe, err := os.CreateTemp(c.Path, ".healthcheck-*")
	if err != nil {
		res.Message = fmt.Sprintf("work dir %s is not writable: %v", c.Path, err)
		return res
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)
	res.Healthy = true
	res.Message = "work dir writable"
	return res
}

// SystemCheckers returns the full preflight set for the given work dir.
func SystemCheckers(workDir string) []Checker {
	return []Checker{
		RootChecker{},
		CgroupChecker{},
		DevNullChecker{},
		WorkDirChecker{Path: workDir},
	}
}

// ReadyCheckers returns the cheap subset re-run by the readiness
// endpoint on every probe.
func ReadyCheckers(workDir string) []Checker {
	return []Checker{
		DevNullChecker{},
		WorkDirChecker{Path: workDir},
	}
}
