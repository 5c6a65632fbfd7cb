package determinism

import (
	"fmt"
	"sort"
	"strings"

	"github.com/forgebuild/forge/internal/types"
)

// RepairEngine maps detected non-determinism violations to an ordered,
// prioritized list of RepairActions: compiler flag additions, env var
// sets, and script-modification suggestions.
type RepairEngine struct{}

// NewRepairEngine creates a RepairEngine.
func NewRepairEngine() *RepairEngine {
	return &RepairEngine{}
}

// Suggest inspects result's violations and returns repair actions
// ordered by ascending Priority (most broadly applicable fix first).
func (r *RepairEngine) Suggest(result types.VerificationResult, pinning Pinning) []types.RepairAction {
	var actions []types.RepairAction

	for _, v := range result.Violations {
		switch {
		case looksLikeTimestamp(v):
			actions = append(actions,
				types.RepairAction{
					Kind:      types.RepairSetEnvVar,
					Value:     "SOURCE_DATE_EPOCH=" + epochString(pinning),
					Reference: v.Path,
					Priority:  1,
				},
				types.RepairAction{
					Kind:      types.RepairAddCompilerFlag,
					Value:     pinning.CompilerFlags(CompilerGCCClang, ".")[0],
					Reference: v.Path,
					Priority:  2,
				},
			)
		case looksLikeBuildID(v):
			actions = append(actions, types.RepairAction{
				Kind:      types.RepairAddCompilerFlag,
				Value:     "-Wl,--build-id=none",
				Reference: v.Path,
				Priority:  1,
			})
		case looksLikePath(v):
			actions = append(actions, types.RepairAction{
				Kind:      types.RepairAddCompilerFlag,
				Value:     "-ffile-prefix-map=$PWD=.",
				Reference: v.Path,
				Priority:  3,
			})
		default:
			actions = append(actions, types.RepairAction{
				Kind:      types.RepairModifyScript,
				Value:     "inspect build steps for " + v.Path + " for an unpinned input",
				Reference: v.Path,
				Priority:  10,
			})
		}
	}

	sort.SliceStable(actions, func(i, j int) bool { return actions[i].Priority < actions[j].Priority })
	return dedupe(actions)
}

func looksLikeTimestamp(v types.FileVerdict) bool {
	return strings.Contains(v.Path, ".o") || strings.Contains(v.Path, ".a")
}

func looksLikeBuildID(v types.FileVerdict) bool {
	return strings.Contains(v.ReasonA, "build-id") || strings.Contains(v.ReasonB, "build-id")
}

func looksLikePath(v types.FileVerdict) bool {
	return strings.Contains(v.ReasonA, "/") || strings.Contains(v.ReasonB, "/")
}

func epochString(p Pinning) string {
	return fmt.Sprintf("%d", p.Epoch)
}

func dedupe(actions []types.RepairAction) []types.RepairAction {
	seen := make(map[string]bool, len(actions))
	out := make([]types.RepairAction, 0, len(actions))
	for _, a := range actions {
		key := string(a.Kind) + "|" + a.Value
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, a)
	}
	return out
}
