package interp

import (
	"sort"

	"github.com/cuemby/foundry/pkg/types"
)

// Interpreter computes which steps of a request are ready to run. Steps
// are ordered by stage, and within a stage by action class: resource
// creation first, then sandbox creation, then command execution.
type Interpreter struct {
	steps     []types.Step
	completed []int
}

// New creates an interpreter over the request steps.
func New(steps []types.Step) *Interpreter {
	return &Interpreter{steps: steps}
}

// IsCompleted reports whether every step has been recorded as done.
func (in *Interpreter) IsCompleted() bool {
	return len(in.completed) == len(in.steps)
}

// Poll records the given steps as completed (duplicates are ignored) and
// returns the indices of all steps that may now run. Indices already
// completed are never returned, but a ready step is returned again on
// every poll until it is reported done, so callers must track what they
// already started.
func (in *Interpreter) Poll(done []int) []int {
	for _, id := range done {
		if !in.isCompleted(id) {
			in.completed = append(in.completed, id)
		}
	}
	sort.Ints(in.completed)

	var ready []int
	for id := range in.steps {
		if in.canRun(id) {
			ready = append(ready, id)
		}
	}
	return ready
}

func (in *Interpreter) isCompleted(id int) bool {
	i := sort.SearchInts(in.completed, id)
	return i < len(in.completed) && in.completed[i] == id
}

func (in *Interpreter) canRun(id int) bool {
	if in.isCompleted(id) {
		return false
	}
	for other := range in.steps {
		if in.isCompleted(other) {
			continue
		}
		switch {
		case in.steps[other].Stage < in.steps[id].Stage:
			// some earlier stage has not finished yet
			return false
		case in.steps[other].Stage == in.steps[id].Stage:
			if classOf(in.steps[other].Action) < classOf(in.steps[id].Action) {
				// the other step may be required by this one
				return false
			}
		}
	}
	return true
}

// classOf is the intra-stage total order.
func classOf(a types.Action) int {
	switch a.Kind() {
	case types.ActionKindCreateFile, types.ActionKindCreatePipe,
		types.ActionKindOpenFile, types.ActionKindOpenNullFile,
		types.ActionKindCreateVolume:
		return 0
	case types.ActionKindCreateSandbox:
		return 1
	case types.ActionKindExecuteCommand:
		return 2
	}
	return 0
}
