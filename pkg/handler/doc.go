/*
Package handler orchestrates one invocation request end to end.

The flow per request: validate that the shim stripped every extension
bag, materialize inputs into the file table, drive the stage
interpreter loop (each ready step is dispatched to the executor, its
result recorded in start order), then collect the requested outputs as
base64. Resources are released on every exit path; the leak toggle
keeps sandboxes and the work directory for post-mortem inspection.
*/
package handler
