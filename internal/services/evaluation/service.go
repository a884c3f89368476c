// Package evaluation runs validations and evaluations for stored and ad-hoc trees. Persist-mode
// evaluations that pass the gate and evaluate OK are audited and announced on kafka; previews never
// write.
package evaluation

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"

	"github.com/Tombstone73/QuoteVaultPro-sub011/internal/repositories/evaluationaudit"
	appctx "github.com/Tombstone73/QuoteVaultPro-sub011/pkg/context"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/database"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/evaluator"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/kafka"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/metrics"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/models"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/pricing"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/processor"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/selections"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/tracing"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/validation"
)

type TreeSource interface {
	Get(ctx context.Context, tenantID, treeVersionID string) (*processor.CachedTree, error)
	Refresh(ctx context.Context, tenantID, treeVersionID string) (*processor.CachedTree, error)
}

type AuditStore interface {
	Create(ctx context.Context, audit *evaluationaudit.Audit) error
	GetByID(ctx context.Context, tenantID, id string) (*evaluationaudit.Audit, error)
	ListByTreeVersion(ctx context.Context, tenantID, treeVersionID string, limit int) ([]evaluationaudit.Audit, error)
}

type EventPublisher interface {
	PublishEvaluation(ctx context.Context, evaluation *kafka.EvaluationEvent, usage *kafka.MaterialUsageEvent) error
}

type ResultCache interface {
	Get(ctx context.Context, treeHash string, policy models.Policy) (*models.ValidationResult, bool, error)
	Set(ctx context.Context, treeHash string, policy models.Policy, result models.ValidationResult) error
}

// Dependencies wires the service. Events and Cache are optional.
type Dependencies struct {
	Logger ectologger.Logger
	Trees  TreeSource
	Audits AuditStore
	Events EventPublisher
	Cache  ResultCache
	Batch  *processor.BatchEvaluator
	Policy models.Policy
}

type Service struct {
	logger    ectologger.Logger
	trees     TreeSource
	audits    AuditStore
	events    EventPublisher
	cache     ResultCache
	batch     *processor.BatchEvaluator
	policy    models.Policy
	extractor *selections.Extractor
	now       func() time.Time
}

func NewService(deps Dependencies) *Service {
	return &Service{
		logger:    deps.Logger,
		trees:     deps.Trees,
		audits:    deps.Audits,
		events:    deps.Events,
		cache:     deps.Cache,
		batch:     deps.Batch,
		policy:    deps.Policy,
		extractor: selections.NewExtractor(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Policy returns the service default, or override when given.
func (s *Service) Policy(override *models.Policy) models.Policy {
	if override != nil {
		return *override
	}
	return s.policy
}

func recordFindings(result models.ValidationResult) {
	for _, f := range result.Findings {
		metrics.FindingsTotal.WithLabelValues(string(f.Code), string(f.Severity)).Inc()
	}
}

// ValidateTree runs the publish checks on an ad-hoc tree.
func (s *Service) ValidateTree(ctx context.Context, tree *models.Tree, policy models.Policy) models.ValidationResult {
	_, span := tracing.StartSpan(ctx, "evaluation.ValidateTree")
	defer span.End()

	result := validation.ValidateTreeForPublish(tree, validation.Opts{Policy: policy})
	metrics.ValidationsTotal.WithLabelValues(metrics.Outcome(result.OK)).Inc()
	recordFindings(result)
	return result
}

// ValidateTreeVersion validates a stored tree, reusing a cached result for the same content and
// policy.
func (s *Service) ValidateTreeVersion(ctx context.Context, tenantID, treeVersionID string, policy models.Policy) (models.ValidationResult, error) {
	ctx, span := tracing.StartSpan(ctx, "evaluation.ValidateTreeVersion")
	defer span.End()

	cached, err := s.trees.Get(ctx, tenantID, treeVersionID)
	if err != nil {
		return models.ValidationResult{}, err
	}
	ctx = appctx.SetTreeVersionID(ctx, treeVersionID)

	if s.cache != nil {
		hit, found, err := s.cache.Get(ctx, cached.Hash, policy)
		if err != nil {
			s.logger.WithContext(ctx).WithError(err).Warn("validation cache unavailable")
		}
		metrics.CacheRequestsTotal.WithLabelValues("result", metrics.CacheResult(found)).Inc()
		if found {
			return *hit, nil
		}
	}

	result := s.ValidateTree(ctx, cached.Version.Tree, policy)
	if s.cache != nil {
		if err := s.cache.Set(ctx, cached.Hash, policy, result); err != nil {
			s.logger.WithContext(ctx).WithError(err).Warn("failed to cache validation result")
		}
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"tree_hash": cached.Hash,
		"ok":        result.OK,
		"errors":    len(result.Errors),
	}).Info("validated tree version")
	return result, nil
}

func (s *Service) BasePrice(ctx context.Context, tree *models.Tree) models.ValidationResult {
	_, span := tracing.StartSpan(ctx, "evaluation.BasePrice")
	defer span.End()

	return validation.ValidateTreeHasBasePrice(tree)
}

func (s *Service) Gate(ctx context.Context, meta models.TreeVersionMeta, mode validation.Mode) models.ValidationResult {
	_, span := tracing.StartSpan(ctx, "evaluation.Gate")
	defer span.End()

	result := validation.ValidateEvaluationGate(meta, mode)
	if !result.OK {
		metrics.GateRejectionsTotal.WithLabelValues(string(mode), string(meta.Status)).Inc()
	}
	return result
}

// Request is one evaluation of a stored tree version. Payload, when set, is a line-item document
// that inputs with a sourcePath read their selection from; explicit Selections win.
type Request struct {
	TreeVersionID string
	Mode          validation.Mode
	Selections    any
	Payload       any
	LineItem      pricing.LineItem
	Policy        *models.Policy
}

type Evaluation struct {
	AuditID       string            `json:"auditId,omitempty"`
	TreeVersionID string            `json:"treeVersionId,omitempty"`
	TreeHash      string            `json:"treeHash,omitempty"`
	Mode          validation.Mode   `json:"mode"`
	Persisted     bool              `json:"persisted"`
	Result        *evaluator.Result `json:"result"`
}

// EvaluateTree evaluates an ad-hoc tree as a preview.
func (s *Service) EvaluateTree(ctx context.Context, tree *models.Tree, rawSelections any, line pricing.LineItem, policy models.Policy) (*Evaluation, error) {
	ctx, span := tracing.StartSpan(ctx, "evaluation.EvaluateTree")
	defer span.End()

	result, err := s.evaluate(ctx, tree, rawSelections, line, policy, validation.ModePreview)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	return &Evaluation{Mode: validation.ModePreview, Result: result}, nil
}

// EvaluateTreeVersion loads, gates and evaluates a stored tree. A persist-mode evaluation that is
// OK is audited before events are published.
func (s *Service) EvaluateTreeVersion(ctx context.Context, tenantID string, req Request) (*Evaluation, error) {
	ctx, span := tracing.StartSpan(ctx, "evaluation.EvaluateTreeVersion")
	defer span.End()

	ctx = appctx.SetTreeVersionID(ctx, req.TreeVersionID)
	ctx = appctx.SetEvaluationMode(ctx, string(req.Mode))

	load := s.trees.Get
	if req.Mode == validation.ModePersist {
		// the gate must see the stored status, not a cached one
		load = s.trees.Refresh
	}
	cached, err := load(ctx, tenantID, req.TreeVersionID)
	if err != nil {
		return nil, err
	}
	version := cached.Version

	gate := s.Gate(ctx, version.Meta(), req.Mode)
	if !gate.OK {
		return nil, gateError(gate)
	}

	raw, err := s.extractSelections(version.Tree, req.Selections, req.Payload)
	if err != nil {
		return nil, err
	}

	result, err := s.evaluate(ctx, version.Tree, raw, req.LineItem, s.Policy(req.Policy), req.Mode)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	result.ValidationResult = models.Merge(gate, result.ValidationResult)

	evaluation := &Evaluation{
		TreeVersionID: version.ID,
		TreeHash:      cached.Hash,
		Mode:          req.Mode,
		Result:        result,
	}
	if req.Mode != validation.ModePersist || !result.OK {
		return evaluation, nil
	}

	audit := &evaluationaudit.Audit{
		TenantID:       tenantID,
		TreeVersionID:  version.ID,
		TreeHash:       cached.Hash,
		Mode:           string(req.Mode),
		OK:             result.OK,
		LineTotalCents: result.Pricing.LineTotalCents,
		Result:         database.NewJSONB(result),
	}
	if err := s.audits.Create(ctx, audit); err != nil {
		return nil, err
	}
	evaluation.AuditID = audit.ID
	evaluation.Persisted = true

	s.publish(ctx, audit, req.LineItem, result)

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"audit_id":         audit.ID,
		"line_total_cents": audit.LineTotalCents,
	}).Info("persisted evaluation")
	return evaluation, nil
}

// publish announces a persisted evaluation. The audit row is the record of truth, so a failed
// publish is logged and counted but does not fail the request.
func (s *Service) publish(ctx context.Context, audit *evaluationaudit.Audit, line pricing.LineItem, result *evaluator.Result) {
	if s.events == nil {
		return
	}

	traceID, spanID := tracing.GetTraceID(ctx), tracing.GetSpanID(ctx)
	ts := s.now()
	evaluationEvent := &kafka.EvaluationEvent{
		AuditID:        audit.ID,
		TenantID:       audit.TenantID,
		TreeVersionID:  audit.TreeVersionID,
		TreeHash:       audit.TreeHash,
		Mode:           audit.Mode,
		OK:             result.OK,
		ErrorCount:     len(result.Errors),
		WarningCount:   len(result.Warnings),
		LineTotalCents: audit.LineTotalCents,
		Timestamp:      ts,
		TraceID:        traceID,
		SpanID:         spanID,
	}
	usageEvent := &kafka.MaterialUsageEvent{
		AuditID:       audit.ID,
		TenantID:      audit.TenantID,
		TreeVersionID: audit.TreeVersionID,
		Quantity:      line.Quantity,
		Materials:     result.Pricing.Materials,
		Timestamp:     ts,
		TraceID:       traceID,
		SpanID:        spanID,
	}

	if err := s.events.PublishEvaluation(ctx, evaluationEvent, usageEvent); err != nil {
		metrics.EventsPublishedTotal.WithLabelValues("failed").Inc()
		s.logger.WithContext(ctx).WithError(err).WithField("audit_id", audit.ID).Error("failed to publish evaluation events")
		return
	}
	metrics.EventsPublishedTotal.WithLabelValues("published").Inc()
}

// BatchItemResult is one batch entry: the evaluation, or the reason its input was rejected.
type BatchItemResult struct {
	Index  int               `json:"index"`
	Result *evaluator.Result `json:"result,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// EvaluateBatch previews many selection sets against one stored tree. Batches never persist.
func (s *Service) EvaluateBatch(ctx context.Context, tenantID, treeVersionID string, items []processor.BatchItem, policy *models.Policy) ([]BatchItemResult, error) {
	ctx, span := tracing.StartSpan(ctx, "evaluation.EvaluateBatch")
	defer span.End()

	ctx = appctx.SetTreeVersionID(ctx, treeVersionID)
	cached, err := s.trees.Get(ctx, tenantID, treeVersionID)
	if err != nil {
		return nil, err
	}
	gate := s.Gate(ctx, cached.Version.Meta(), validation.ModePreview)
	if !gate.OK {
		return nil, gateError(gate)
	}

	start := time.Now()
	results, err := s.batch.Evaluate(ctx, cached.Version.Tree, items, evaluator.Options{Policy: s.Policy(policy)})
	if err != nil {
		return nil, err
	}

	out := ectolinq.Map(results, func(r processor.BatchResult) BatchItemResult {
		item := BatchItemResult{Index: r.Index, Result: r.Result}
		if r.Err != nil {
			item.Error = r.Err.Error()
			metrics.EvaluationsTotal.WithLabelValues(string(validation.ModePreview), "invalid").Inc()
			return item
		}
		r.Result.ValidationResult = models.Merge(gate, r.Result.ValidationResult)
		metrics.EvaluationsTotal.WithLabelValues(string(validation.ModePreview), metrics.Outcome(r.Result.OK)).Inc()
		return item
	})

	failed := ectolinq.Filter(out, func(r BatchItemResult) bool { return r.Error != "" })
	s.logger.WithContext(ctx).WithFields(map[string]any{
		"items":       len(items),
		"invalid":     len(failed),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("evaluated batch")
	return out, nil
}

func (s *Service) GetAudit(ctx context.Context, tenantID, id string) (*evaluationaudit.Audit, error) {
	ctx, span := tracing.StartSpan(ctx, "evaluation.GetAudit")
	defer span.End()

	return s.audits.GetByID(ctx, tenantID, id)
}

func (s *Service) ListAudits(ctx context.Context, tenantID, treeVersionID string, limit int) ([]evaluationaudit.Audit, error) {
	ctx, span := tracing.StartSpan(ctx, "evaluation.ListAudits")
	defer span.End()

	return s.audits.ListByTreeVersion(ctx, tenantID, treeVersionID, limit)
}

func (s *Service) evaluate(ctx context.Context, tree *models.Tree, raw any, line pricing.LineItem, policy models.Policy, mode validation.Mode) (*evaluator.Result, error) {
	start := time.Now()
	result, err := evaluator.Evaluate(tree, raw, line, evaluator.Options{Policy: policy})
	metrics.EvaluationDuration.WithLabelValues(string(mode)).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.EvaluationsTotal.WithLabelValues(string(mode), "invalid").Inc()
		s.logger.WithContext(ctx).WithError(err).Warn("evaluation input rejected")
		return nil, err
	}

	metrics.EvaluationsTotal.WithLabelValues(string(mode), metrics.Outcome(result.OK)).Inc()
	recordFindings(result.ValidationResult)
	return result, nil
}

func (s *Service) extractSelections(tree *models.Tree, explicit any, payload any) (any, error) {
	if payload == nil {
		return explicit, nil
	}
	var explicitMap map[string]any
	switch v := explicit.(type) {
	case nil:
	case map[string]any:
		explicitMap = v
	default:
		// non-object selections are rejected by the evaluator with the right code
		return explicit, nil
	}

	raw, err := s.extractor.Extract(models.NewTreeIndex(tree), payload, explicitMap)
	if err != nil {
		return nil, httperror.WrapError(http.StatusBadRequest, err)
	}
	return raw, nil
}

func gateError(gate models.ValidationResult) error {
	first := gate.Errors[0]
	return httperror.NewHTTPError(http.StatusConflict, fmt.Sprintf("%s: %s", first.Code, first.Message))
}
