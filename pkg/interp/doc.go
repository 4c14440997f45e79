// Package interp orders request steps by stage and, within a stage, by
// action class (resources, then sandboxes, then commands). It is pure:
// no I/O happens here.
package interp
