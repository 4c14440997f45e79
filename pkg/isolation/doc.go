/*
Package isolation is the OS-facing sandbox backend.

The Backend interface creates isolation domains and spawns processes
inside them; the engine holds only opaque Sandbox and Child handles.
The Linux implementation realizes a domain as:

	┌──────────────── SANDBOX DOMAIN ────────────────┐
	│                                                 │
	│  chroot root (per-sandbox directory)            │
	│    ├── bind mounts of shared items (ro/rw)      │
	│    └── work dir bound from a quota tmpfs        │
	│                                                 │
	│  cgroup2 subtree                                │
	│    ├── memory.max, pids.max                     │
	│    ├── cpu.stat → cumulative usage              │
	│    └── cgroup.kill ← watchdog enforcement       │
	│                                                 │
	│  child processes                                │
	│    ├── fresh mount/pid/ipc/uts namespaces       │
	│    ├── nobody-like uid from a configured range  │
	│    └── started straight into the cgroup         │
	│                                                 │
	└─────────────────────────────────────────────────┘

Memory and process-count limits are enforced by the cgroup; the CPU
time and wall-clock limits are enforced by a per-domain watchdog that
polls cpu.stat and kills the whole cgroup when either budget runs out. The backend is shared by all in-flight
requests and is safe for concurrent use.
*/
package isolation
