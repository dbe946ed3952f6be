package agent

import "strings"

// buildBranchPath appends child to the dotted branch path of its parent.
// Empty segments are dropped, so a root child's branch is its own name.
func buildBranchPath(parent, child string) string {
	segments := make([]string, 0, 2)
	for _, s := range []string{parent, child} {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return strings.Join(segments, ".")
}
