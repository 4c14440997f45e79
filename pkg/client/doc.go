// Package client provides a typed Go client for the Foundry HTTP API.
package client
