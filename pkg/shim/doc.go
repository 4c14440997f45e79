// Package shim is the client side of the optional request
// preprocessor: an external HTTP service that materializes images,
// expands symbolic paths, and strips extension bags before the engine
// validates a request.
package shim
