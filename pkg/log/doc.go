/*
Package log provides structured logging for Foundry using zerolog.

Setup configures the process logger once at startup (JSON to stderr by
default, console format for interactive use). Everything else derives
scoped child loggers from it: Component for engine subsystems, Request
for one invocation, Sandbox for one isolation domain of a request.
Scoped fields mean every line carries enough context to untangle
concurrent requests in a single stream.

Before Setup runs the logger is a no-op, so packages and tests can log
unconditionally. The FOUNDRY_LOG_LEVEL environment variable supplies
the level when no explicit one is configured.
*/
package log
