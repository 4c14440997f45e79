package handler

import (
	"errors"

	"github.com/cuemby/foundry/pkg/types"
)

// ErrNonEmptyExtensions indicates a request that still carries
// extension data the shim should have consumed and stripped.
var ErrNonEmptyExtensions = errors.New("request contains non-empty extensions")

// validateRequest rejects requests with extension bags at any level.
func validateRequest(req *types.InvokeRequest) error {
	if requestHasExtensions(req) {
		return ErrNonEmptyExtensions
	}
	return nil
}

func requestHasExtensions(req *types.InvokeRequest) bool {
	if len(req.Ext) > 0 {
		return true
	}
	for i := range req.Steps {
		if stepHasExtensions(&req.Steps[i]) {
			return true
		}
	}
	for i := range req.Inputs {
		if len(req.Inputs[i].Ext) > 0 {
			return true
		}
	}
	for i := range req.Outputs {
		if len(req.Outputs[i].Ext) > 0 {
			return true
		}
	}
	return false
}

func stepHasExtensions(step *types.Step) bool {
	if len(step.Ext) > 0 {
		return true
	}
	a := step.Action
	switch {
	case a.CreateSandbox != nil:
		return sandboxHasExtensions(a.CreateSandbox)
	case a.ExecuteCommand != nil:
		return commandHasExtensions(a.ExecuteCommand)
	case a.CreateVolume != nil:
		return len(a.CreateVolume.Ext) > 0
	}
	return false
}

func commandHasExtensions(cmd *types.Command) bool {
	if len(cmd.Ext) > 0 || len(cmd.Stdio.Ext) > 0 {
		return true
	}
	for i := range cmd.Env {
		if len(cmd.Env[i].Ext) > 0 {
			return true
		}
	}
	return false
}

func sandboxHasExtensions(sb *types.SandboxSettings) bool {
	if len(sb.Ext) > 0 || len(sb.Limits.Ext) > 0 {
		return true
	}
	for i := range sb.Expose {
		if len(sb.Expose[i].Ext) > 0 {
			return true
		}
	}
	return false
}
