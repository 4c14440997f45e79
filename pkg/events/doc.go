// Package events fans invocation lifecycle events (request
// start/finish, sandbox and volume creation, command completion) out
// to a set of process-wide sinks. Requests emit through
// per-request streams; delivery is synchronous and unbuffered, sized
// to the handful of events a one-shot request produces.
package events
