/*
Package sandbox assembles isolation domains out of request settings.

A sandbox is built from three mount groups: the base image (either a
rootfs directory whose children are each bound read-only, or — for the
special base "/" — a configured set of host top-level directories), the
explicitly exposed host paths, and a scratch work directory bound
read-write from a per-sandbox data directory. When the request sets a
work-dir size quota the data directory is a size-limited tmpfs whose
unmount is owned by the sandbox.

The actual namespace, chroot, and cgroup work is delegated to the
isolation backend; this package only decides what gets mounted where
and with which limits.
*/
package sandbox
