/*
Package executor runs the actions of an invocation request.

The executor owns the per-request resource table (file ids mapped to
handles), the named sandboxes and volumes, and the path resolver that
volume prefixes register into. Actions are dispatched one at a time by
the request handler in interpreter order; everything here is
request-local, so no locking is involved.

Command execution clones the referenced handles for inheritance,
rewinds them, builds the child environment (file-valued variables pass
the stringified child-side descriptor number), and spawns through the
isolation backend. Spawn failures are deliberately non-fatal: they are
recorded per-command under a fresh error id while the rest of the
request continues.
*/
package executor
