// Package treeversion reads stored option tree versions. Versions are written by the catalog and
// are read-only here.
package treeversion

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Tombstone73/QuoteVaultPro-sub011/internal/repositories"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/database"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/models"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/tracing"
)

const treeVersionsTable = "pbv2_tree_versions"

type row struct {
	ID        string                      `db:"id"`
	TenantID  string                      `db:"tenant_id"`
	ProductID string                      `db:"product_id"`
	Version   int                         `db:"version"`
	Status    string                      `db:"status"`
	Tree      database.JSONB[models.Tree] `db:"tree"`
	CreatedAt time.Time                   `db:"created_at"`
	UpdatedAt time.Time                   `db:"updated_at"`
}

func (r row) toModel() *models.TreeVersion {
	tree := r.Tree.GetValue()
	return &models.TreeVersion{
		ID:        r.ID,
		TenantID:  r.TenantID,
		ProductID: r.ProductID,
		Version:   r.Version,
		Status:    models.TreeStatus(r.Status),
		Tree:      &tree,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

var rowStruct = database.NewStruct(new(row))

type Repository struct {
	*repositories.Repository
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		Repository: repositories.NewRepository(db, logger),
	}
}

// GetByID loads one tree version of tenantID.
func (r *Repository) GetByID(ctx context.Context, tenantID, id string) (*models.TreeVersion, error) {
	ctx, span := tracing.StartSpan(ctx, "TreeVersionRepository.GetByID")
	defer span.End()

	if !repositories.IsID(id) {
		return nil, repositories.NotFound("tree version %s does not exist", id)
	}

	sb := rowStruct.SelectFrom(treeVersionsTable)
	sb.Where(sb.Equal("tenant_id", tenantID), sb.Equal("id", id))

	query, args := sb.Build()
	var result row
	err := r.DB().GetContext(ctx, &result, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repositories.NotFound("tree version %s does not exist", id)
	}
	if err != nil {
		tracing.RecordError(span, err)
		r.Logger().WithContext(ctx).WithError(err).WithField("tree_version_id", id).Error("failed to get tree version")
		return nil, repositories.Internal("failed to get tree version")
	}

	r.Logger().WithContext(ctx).WithField("tree_version_id", id).Debugf("Retrieved %s", treeVersionsTable)
	return result.toModel(), nil
}

// ListByProduct returns a product's versions, newest first.
func (r *Repository) ListByProduct(ctx context.Context, tenantID, productID string) ([]*models.TreeVersion, error) {
	ctx, span := tracing.StartSpan(ctx, "TreeVersionRepository.ListByProduct")
	defer span.End()

	sb := rowStruct.SelectFrom(treeVersionsTable)
	sb.Where(sb.Equal("tenant_id", tenantID), sb.Equal("product_id", productID))
	sb.OrderBy("version").Desc()

	query, args := sb.Build()
	var rows []row
	if err := r.DB().SelectContext(ctx, &rows, query, args...); err != nil {
		tracing.RecordError(span, err)
		r.Logger().WithContext(ctx).WithError(err).WithField("product_id", productID).Error("failed to list tree versions")
		return nil, repositories.Internal("failed to list tree versions")
	}

	out := make([]*models.TreeVersion, 0, len(rows))
	for _, rw := range rows {
		out = append(out, rw.toModel())
	}
	return out, nil
}
