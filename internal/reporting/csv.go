package reporting

import (
	"fmt"
	"strings"

	"txrecon/internal/domain"
)

// RenderTransfersCSV renders transfer lists as CSV string, actual side first.
func RenderTransfersCSV(actual, local []domain.TransferEvent) string {
	var sb strings.Builder

	// Header
	sb.WriteString("origin,token,from,to,value\n")

	// Rows
	for _, evs := range [][]domain.TransferEvent{actual, local} {
		for _, ev := range evs {
			sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s\n",
				ev.Origin,
				ev.Token.Hex(),
				ev.From.Hex(),
				ev.To.Hex(),
				bigString(ev.Value),
			))
		}
	}

	return sb.String()
}
