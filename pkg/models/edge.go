package models

import "github.com/Tombstone73/QuoteVaultPro-sub011/pkg/expression"

// Edge is a directed transition between two nodes. Lower Priority is considered first when several
// edges from one source compete.
type Edge struct {
	ID         string           `json:"id"`
	FromNodeID string           `json:"fromNodeId"`
	ToNodeID   string           `json:"toNodeId"`
	Status     EntityStatus     `json:"status"`
	Priority   int              `json:"priority"`
	Condition  *expression.Expr `json:"condition,omitempty"`
}

func (e *Edge) IsEnabled() bool {
	return e.Status == StatusEnabled
}

// ByPriority orders edges by priority, then id.
func ByPriority(a, b *Edge) int {
	if a.Priority != b.Priority {
		if a.Priority < b.Priority {
			return -1
		}
		return 1
	}
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	default:
		return 0
	}
}
