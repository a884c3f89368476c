// Package evaluationaudit records persisted evaluations.
package evaluationaudit

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Tombstone73/QuoteVaultPro-sub011/internal/repositories"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/database"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/evaluator"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/tracing"
)

const auditsTable = "pbv2_evaluation_audits"

// Audit is one persisted evaluation. Result holds the full evaluation as returned to the caller.
type Audit struct {
	ID             string                            `db:"id" json:"id"`
	TenantID       string                            `db:"tenant_id" json:"tenantId"`
	TreeVersionID  string                            `db:"tree_version_id" json:"treeVersionId"`
	TreeHash       string                            `db:"tree_hash" json:"treeHash"`
	Mode           string                            `db:"mode" json:"mode"`
	OK             bool                              `db:"ok" json:"ok"`
	LineTotalCents int64                             `db:"line_total_cents" json:"lineTotalCents"`
	Result         database.JSONB[*evaluator.Result] `db:"result" json:"result"`
	CreatedAt      time.Time                         `db:"created_at" json:"createdAt"`
}

var auditStruct = database.NewStruct(new(Audit))

type Repository struct {
	*repositories.Repository
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		Repository: repositories.NewRepository(db, logger),
	}
}

// Create inserts audit, assigning an id when empty, and sets CreatedAt.
func (r *Repository) Create(ctx context.Context, audit *Audit) error {
	ctx, span := tracing.StartSpan(ctx, "EvaluationAuditRepository.Create")
	defer span.End()

	if audit.ID == "" {
		audit.ID = uuid.NewString()
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(auditsTable).
		Cols("id", "tenant_id", "tree_version_id", "tree_hash", "mode", "ok", "line_total_cents", "result", "created_at").
		Values(audit.ID, audit.TenantID, audit.TreeVersionID, audit.TreeHash, audit.Mode, audit.OK, audit.LineTotalCents, audit.Result,
			sqlbuilder.Raw("NOW()")).
		Returning("created_at")

	query, args := ib.Build()
	if err := r.DB().GetContext(ctx, &audit.CreatedAt, query, args...); err != nil {
		tracing.RecordError(span, err)
		r.Logger().WithContext(ctx).WithError(err).WithField("audit_id", audit.ID).Error("failed to create evaluation audit")
		return repositories.Internal("failed to create evaluation audit")
	}

	r.Logger().WithContext(ctx).WithField("audit_id", audit.ID).Debugf("Created %s", auditsTable)
	return nil
}

func (r *Repository) GetByID(ctx context.Context, tenantID, id string) (*Audit, error) {
	ctx, span := tracing.StartSpan(ctx, "EvaluationAuditRepository.GetByID")
	defer span.End()

	if !repositories.IsID(id) {
		return nil, repositories.NotFound("evaluation %s does not exist", id)
	}

	sb := auditStruct.SelectFrom(auditsTable)
	sb.Where(sb.Equal("tenant_id", tenantID), sb.Equal("id", id))

	query, args := sb.Build()
	var audit Audit
	err := r.DB().GetContext(ctx, &audit, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repositories.NotFound("evaluation %s does not exist", id)
	}
	if err != nil {
		tracing.RecordError(span, err)
		r.Logger().WithContext(ctx).WithError(err).WithField("audit_id", id).Error("failed to get evaluation audit")
		return nil, repositories.Internal("failed to get evaluation audit")
	}
	return &audit, nil
}

// ListByTreeVersion returns the newest audits of a tree version, at most limit.
func (r *Repository) ListByTreeVersion(ctx context.Context, tenantID, treeVersionID string, limit int) ([]Audit, error) {
	ctx, span := tracing.StartSpan(ctx, "EvaluationAuditRepository.ListByTreeVersion")
	defer span.End()

	if !repositories.IsID(treeVersionID) {
		return []Audit{}, nil
	}

	sb := auditStruct.SelectFrom(auditsTable)
	sb.Where(sb.Equal("tenant_id", tenantID), sb.Equal("tree_version_id", treeVersionID))
	sb.OrderBy("created_at").Desc()
	sb.Limit(limit)

	query, args := sb.Build()
	audits := []Audit{}
	if err := r.DB().SelectContext(ctx, &audits, query, args...); err != nil {
		tracing.RecordError(span, err)
		r.Logger().WithContext(ctx).WithError(err).WithField("tree_version_id", treeVersionID).Error("failed to list evaluation audits")
		return nil, repositories.Internal("failed to list evaluation audits")
	}
	return audits, nil
}
