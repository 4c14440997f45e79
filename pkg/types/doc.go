/*
Package types defines the wire model of the Foundry invocation API.

An InvokeRequest is a staged execution plan: steps carrying tagged
actions (file, pipe, volume, sandbox, and command variants), inputs that
preload byte contents under file ids, and output requests naming data to
return. The matching InvokeResponse lists per-action results in start
order and the collected outputs in request order.

Field names are lowerCamelCase on the wire and unknown fields are
rejected. Variant types (Action, InputSource, EnvVarValue,
OutputRequestTarget, PathPrefix, ActionResult) use externally tagged
encoding: an object with exactly one key naming the variant, with unit
variants collapsing to a bare string.
*/
package types
