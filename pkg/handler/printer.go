package handler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cuemby/foundry/pkg/types"
)

// summarize renders a one-line structural description of a request for
// the log: action counts per kind and the stage span.
func summarize(req *types.InvokeRequest) string {
	counts := make(map[types.ActionKind]int)
	var minStage, maxStage uint32
	for i, step := range req.Steps {
		counts[step.Action.Kind()]++
		if i == 0 || step.Stage < minStage {
			minStage = step.Stage
		}
		if step.Stage > maxStage {
			maxStage = step.Stage
		}
	}

	kinds := make([]string, 0, len(counts))
	for kind := range counts {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)

	var b strings.Builder
	fmt.Fprintf(&b, "steps=%d stages=%d..%d inputs=%d outputs=%d",
		len(req.Steps), minStage, maxStage, len(req.Inputs), len(req.Outputs))
	for _, kind := range kinds {
		fmt.Fprintf(&b, " %s=%d", kind, counts[types.ActionKind(kind)])
	}
	return b.String()
}
