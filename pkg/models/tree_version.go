package models

import "time"

// TreeVersion is one stored, immutable revision of a product's option tree.
type TreeVersion struct {
	ID        string     `json:"id"`
	TenantID  string     `json:"tenantId"`
	ProductID string     `json:"productId"`
	Version   int        `json:"version"`
	Status    TreeStatus `json:"status"`
	Tree      *Tree      `json:"tree"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Meta is the gate's view of the version.
func (v *TreeVersion) Meta() TreeVersionMeta {
	return TreeVersionMeta{ID: v.ID, Status: v.Status}
}
