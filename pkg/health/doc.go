/*
Package health implements system preflight checks for Foundry.

Checks verify that the host can actually run sandboxes before the
service accepts requests: root privileges, a writable cgroup2 hierarchy
with the cpu/memory/pids controllers, the null device, and a writable
work directory. The full set runs once at startup (skippable for
development); the readiness endpoint re-runs a cheap subset on every
probe.
*/
package health
