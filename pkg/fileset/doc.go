/*
Package fileset manages the per-request table of file-like resources.

A File wraps an OS handle (regular file, pipe end, sealed in-memory
buffer, or the null source) together with its kind and access mode. The
Registry binds handles to opaque file ids with insert-once semantics:
binding an id twice is an error, as is looking up an id that was never
bound.

Inline input data is materialized with FromBuffer as an anonymous memory
file sealed against modification, so it can be handed to sandboxed child
processes as an inheritable descriptor without copying it to disk.
*/
package fileset
