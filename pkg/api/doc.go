/*
Package api is the HTTP surface of Foundry.

Three routes: POST /exec accepts an invocation request (optionally
preprocessed by the shim) and returns the invocation response; GET
/ready runs the cheap readiness checks; GET /metrics exposes
Prometheus collectors. Listen addresses accept tcp://HOST:PORT and
unix:/abs/path.

Error mapping: a shim rejection is forwarded verbatim as HTTP 400; a
malformed body is HTTP 400 with a plain-text reason; any engine fault
is HTTP 500 with an empty body and an Error-UUID header whose detail
lives in the logs.
*/
package api
