package evaluation

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Tombstone73/QuoteVaultPro-sub011/internal/repositories"
	"github.com/Tombstone73/QuoteVaultPro-sub011/internal/services/evaluation"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/models"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/pricing"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/processor"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/tracing"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/utils"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/validation"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

type Handler struct {
	service      *evaluation.Service
	maxBatchSize int
	logger       ectologger.Logger
}

func NewHandler(service *evaluation.Service, maxBatchSize int, logger ectologger.Logger) *Handler {
	return &Handler{
		service:      service,
		maxBatchSize: maxBatchSize,
		logger:       logger,
	}
}

// Register registers tree, tree version, gate and evaluation audit routes
func (h *Handler) Register(g *echo.Group) {
	g.POST("/trees/validate", h.ValidateTree)
	g.POST("/trees/base-price", h.BasePrice)
	g.POST("/trees/evaluate", h.EvaluateTree)

	g.GET("/tree-versions/:id/validate", h.ValidateTreeVersion)
	g.POST("/tree-versions/:id/evaluate", h.EvaluateTreeVersion)
	g.POST("/tree-versions/:id/evaluate/batch", h.EvaluateBatch)
	g.GET("/tree-versions/:id/evaluations", h.ListEvaluations)

	g.POST("/evaluation-gate", h.Gate)
	g.GET("/evaluations/:id", h.GetEvaluation)
}

type TreeRequest struct {
	Tree   any            `json:"tree"`
	Policy *models.Policy `json:"policy"`
}

type EvaluateTreeRequest struct {
	Tree       any              `json:"tree"`
	Selections any              `json:"selections"`
	Line       pricing.LineItem `json:"line"`
	Policy     *models.Policy   `json:"policy"`
}

type EvaluateTreeVersionRequest struct {
	Mode       validation.Mode  `json:"mode" validate:"required"`
	Selections any              `json:"selections"`
	Payload    any              `json:"payload"`
	Line       pricing.LineItem `json:"line"`
	Policy     *models.Policy   `json:"policy"`
}

type BatchItemRequest struct {
	Selections any              `json:"selections"`
	Line       pricing.LineItem `json:"line"`
}

type BatchRequest struct {
	Items  []BatchItemRequest `json:"items" validate:"required,min=1"`
	Policy *models.Policy     `json:"policy"`
}

type BatchResponse struct {
	Results []evaluation.BatchItemResult `json:"results"`
	Count   int                          `json:"count"`
}

type GateRequest struct {
	TreeVersion models.TreeVersionMeta `json:"treeVersion"`
	Mode        validation.Mode        `json:"mode"`
}

// ValidateTree runs the publish checks on a tree in the request body
// POST /v1/trees/validate
func (h *Handler) ValidateTree(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "routes.ValidateTree")
	defer span.End()

	req, err := utils.BindRequest[TreeRequest](c)
	if err != nil {
		return err
	}
	tree, err := models.DecodeTree(req.Tree)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, h.service.ValidateTree(ctx, tree, h.service.Policy(req.Policy)))
}

// POST /v1/trees/base-price
func (h *Handler) BasePrice(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "routes.BasePrice")
	defer span.End()

	req, err := utils.BindRequest[TreeRequest](c)
	if err != nil {
		return err
	}
	tree, err := models.DecodeTree(req.Tree)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, h.service.BasePrice(ctx, tree))
}

// EvaluateTree previews an ad-hoc tree. Nothing is stored.
// POST /v1/trees/evaluate
func (h *Handler) EvaluateTree(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "routes.EvaluateTree")
	defer span.End()

	req, err := utils.BindRequest[EvaluateTreeRequest](c)
	if err != nil {
		return err
	}
	tree, err := models.DecodeTree(req.Tree)
	if err != nil {
		return err
	}

	result, err := h.service.EvaluateTree(ctx, tree, req.Selections, req.Line, h.service.Policy(req.Policy))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// GET /v1/tree-versions/:id/validate
func (h *Handler) ValidateTreeVersion(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "routes.ValidateTreeVersion")
	defer span.End()

	tenantID, err := repositories.GetTenantID(ctx)
	if err != nil {
		return err
	}

	result, err := h.service.ValidateTreeVersion(ctx, tenantID, c.Param("id"), h.service.Policy(nil))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// EvaluateTreeVersion evaluates a stored tree. Persist mode is gated on the tree's status and
// writes an audit when the result is OK.
// POST /v1/tree-versions/:id/evaluate
func (h *Handler) EvaluateTreeVersion(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "routes.EvaluateTreeVersion")
	defer span.End()

	tenantID, err := repositories.GetTenantID(ctx)
	if err != nil {
		return err
	}
	req, err := utils.BindRequest[EvaluateTreeVersionRequest](c)
	if err != nil {
		return err
	}

	result, err := h.service.EvaluateTreeVersion(ctx, tenantID, evaluation.Request{
		TreeVersionID: c.Param("id"),
		Mode:          req.Mode,
		Selections:    req.Selections,
		Payload:       req.Payload,
		LineItem:      req.Line,
		Policy:        req.Policy,
	})
	if err != nil {
		return err
	}

	if result.Persisted {
		return c.JSON(http.StatusCreated, result)
	}
	return c.JSON(http.StatusOK, result)
}

// POST /v1/tree-versions/:id/evaluate/batch
func (h *Handler) EvaluateBatch(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "routes.EvaluateBatch")
	defer span.End()

	tenantID, err := repositories.GetTenantID(ctx)
	if err != nil {
		return err
	}
	req, err := utils.BindRequest[BatchRequest](c)
	if err != nil {
		return err
	}
	if h.maxBatchSize > 0 && len(req.Items) > h.maxBatchSize {
		return httperror.NewHTTPErrorf(http.StatusBadRequest, "batch has %d items, the limit is %d", len(req.Items), h.maxBatchSize)
	}

	items := make([]processor.BatchItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = processor.BatchItem{Selections: item.Selections, LineItem: item.Line}
	}

	results, err := h.service.EvaluateBatch(ctx, tenantID, c.Param("id"), items, req.Policy)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, BatchResponse{Results: results, Count: len(results)})
}

// Gate checks whether a tree version may be evaluated in a mode. The verdict is always 200; a
// rejection is an ERROR finding in the body.
// POST /v1/evaluation-gate
func (h *Handler) Gate(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "routes.Gate")
	defer span.End()

	req, err := utils.BindRequest[GateRequest](c)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, h.service.Gate(ctx, req.TreeVersion, req.Mode))
}

// GET /v1/evaluations/:id
func (h *Handler) GetEvaluation(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "routes.GetEvaluation")
	defer span.End()

	tenantID, err := repositories.GetTenantID(ctx)
	if err != nil {
		return err
	}

	audit, err := h.service.GetAudit(ctx, tenantID, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, audit)
}

// GET /v1/tree-versions/:id/evaluations?limit=50
func (h *Handler) ListEvaluations(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "routes.ListEvaluations")
	defer span.End()

	tenantID, err := repositories.GetTenantID(ctx)
	if err != nil {
		return err
	}

	limit := defaultAuditLimit
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid limit '%s'", raw)
		}
		limit = min(parsed, maxAuditLimit)
	}

	audits, err := h.service.ListAudits(ctx, tenantID, c.Param("id"), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, audits)
}
