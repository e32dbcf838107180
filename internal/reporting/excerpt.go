package reporting

import (
	"fmt"
	"strings"

	"txrecon/internal/domain"
)

// CallTraceExcerpt renders the first limit call nodes, one per line:
//
//	[depth] TYPE from -> to (method) gasUsed=N
//
// The method part is omitted when the node has none.
func CallTraceExcerpt(nodes []domain.CallNode, limit int) string {
	if limit > len(nodes) {
		limit = len(nodes)
	}
	if limit < 0 {
		limit = 0
	}
	lines := make([]string, 0, limit)
	for _, n := range nodes[:limit] {
		typ := n.CallType
		if typ == "" {
			typ = n.Type
		}
		line := fmt.Sprintf("[%d] %s %s -> %s", n.Depth(), strings.ToUpper(typ), n.From, n.To)
		if n.Method != "" {
			line += fmt.Sprintf(" (%s)", n.Method)
		}
		line += fmt.Sprintf(" gasUsed=%d", uint64(n.GasUsed))
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
