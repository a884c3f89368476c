package evaluation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tombstone73/QuoteVaultPro-sub011/internal/repositories/evaluationaudit"
	"github.com/Tombstone73/QuoteVaultPro-sub011/internal/services/evaluation"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/middleware"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/models"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/models/treetest"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/processor"
)

type stubTrees map[string]*models.TreeVersion

func (s stubTrees) Get(_ context.Context, tenantID, id string) (*processor.CachedTree, error) {
	v, ok := s[id]
	if !ok || v.TenantID != tenantID {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "tree version does not exist")
	}
	hash, err := models.TreeHash(v.Tree)
	if err != nil {
		return nil, err
	}
	return &processor.CachedTree{Version: v, Hash: hash}, nil
}

func (s stubTrees) Refresh(ctx context.Context, tenantID, id string) (*processor.CachedTree, error) {
	return s.Get(ctx, tenantID, id)
}

type stubAudits struct {
	audits []*evaluationaudit.Audit
}

func (s *stubAudits) Create(_ context.Context, audit *evaluationaudit.Audit) error {
	audit.ID = "audit-1"
	s.audits = append(s.audits, audit)
	return nil
}

func (s *stubAudits) GetByID(_ context.Context, tenantID, id string) (*evaluationaudit.Audit, error) {
	for _, a := range s.audits {
		if a.ID == id && a.TenantID == tenantID {
			return a, nil
		}
	}
	return nil, httperror.NewHTTPError(http.StatusNotFound, "evaluation does not exist")
}

func (s *stubAudits) ListByTreeVersion(_ context.Context, _, treeVersionID string, limit int) ([]evaluationaudit.Audit, error) {
	out := []evaluationaudit.Audit{}
	for _, a := range s.audits {
		if a.TreeVersionID == treeVersionID && len(out) < limit {
			out = append(out, *a)
		}
	}
	return out, nil
}

func newServer(t *testing.T) (*echo.Echo, *stubAudits) {
	t.Helper()

	logger := ectologger.NewEctoLogger(func(ectologger.EctoLogMessage) {})
	draft := treetest.Banner()
	draft.Status = models.TreeStatusDraft
	audits := &stubAudits{}

	service := evaluation.NewService(evaluation.Dependencies{
		Logger: logger,
		Trees: stubTrees{
			"tv-active": {ID: "tv-active", TenantID: "acme", Status: models.TreeStatusActive, Tree: treetest.Banner()},
			"tv-draft":  {ID: "tv-draft", TenantID: "acme", Status: models.TreeStatusDraft, Tree: draft},
		},
		Audits: audits,
		Batch:  processor.NewBatchEvaluator(processor.DefaultBatchConfig(), logger),
		Policy: models.DefaultPolicy(),
	})

	e := echo.New()
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(middleware.Context())
	NewHandler(service, 3, logger).Register(e.Group("/v1"))
	return e, audits
}

func do(t *testing.T, e *echo.Echo, method, path, tenant string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *strings.Reader
	if body == nil {
		reader = strings.NewReader("")
	} else {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(data))
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if tenant != "" {
		req.Header.Set(middleware.HeaderTenantID, tenant)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "{") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func line() map[string]any {
	return map[string]any{"widthIn": 24, "heightIn": 48, "quantity": 2}
}

func bannerJSON(t *testing.T) map[string]any {
	t.Helper()
	data, err := json.Marshal(treetest.Banner())
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestValidateTree(t *testing.T) {
	e, _ := newServer(t)

	t.Run("valid tree", func(t *testing.T) {
		rec, body := do(t, e, http.MethodPost, "/v1/trees/validate", "", map[string]any{"tree": bannerJSON(t)})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, body["ok"])
	})

	t.Run("tree that is not an object", func(t *testing.T) {
		rec, body := do(t, e, http.MethodPost, "/v1/trees/validate", "", map[string]any{"tree": []any{1, 2}})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		meta, _ := body["meta"].(map[string]any)
		assert.Equal(t, "PBV2_E_INVALID_TREE", meta["code"])
	})
}

func TestBasePrice(t *testing.T) {
	e, _ := newServer(t)

	tree := bannerJSON(t)
	delete(tree, "meta")

	rec, body := do(t, e, http.MethodPost, "/v1/trees/base-price", "", map[string]any{"tree": tree})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["ok"])
}

func TestEvaluateTree(t *testing.T) {
	e, audits := newServer(t)

	rec, body := do(t, e, http.MethodPost, "/v1/trees/evaluate", "", map[string]any{
		"tree":       bannerJSON(t),
		"selections": map[string]any{"material": "vinyl"},
		"line":       line(),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	result := body["result"].(map[string]any)
	pricing := result["pricing"].(map[string]any)
	assert.Equal(t, float64(7200), pricing["lineTotalCents"])
	assert.Equal(t, false, body["persisted"])
	assert.Empty(t, audits.audits)
}

func TestEvaluateTreeVersion(t *testing.T) {
	tests := []struct {
		name       string
		id         string
		tenant     string
		body       map[string]any
		wantStatus int
		wantAudits int
	}{
		{
			name:       "persist an active tree",
			id:         "tv-active",
			tenant:     "acme",
			body:       map[string]any{"mode": "persist", "selections": map[string]any{"material": "vinyl"}, "line": line()},
			wantStatus: http.StatusCreated,
			wantAudits: 1,
		},
		{
			name:       "preview a draft tree",
			id:         "tv-draft",
			tenant:     "acme",
			body:       map[string]any{"mode": "preview", "selections": map[string]any{"material": "mesh"}, "line": line()},
			wantStatus: http.StatusOK,
		},
		{
			name:       "persist a draft tree",
			id:         "tv-draft",
			tenant:     "acme",
			body:       map[string]any{"mode": "persist", "selections": map[string]any{"material": "vinyl"}, "line": line()},
			wantStatus: http.StatusConflict,
		},
		{
			name:       "unknown mode",
			id:         "tv-active",
			tenant:     "acme",
			body:       map[string]any{"mode": "draft", "selections": map[string]any{}, "line": line()},
			wantStatus: http.StatusConflict,
		},
		{
			name:       "missing mode",
			id:         "tv-active",
			tenant:     "acme",
			body:       map[string]any{"selections": map[string]any{}, "line": line()},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "selections of the wrong type",
			id:         "tv-active",
			tenant:     "acme",
			body:       map[string]any{"mode": "preview", "selections": map[string]any{"material": 3}, "line": line()},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "other tenant",
			id:         "tv-active",
			tenant:     "globex",
			body:       map[string]any{"mode": "preview", "selections": map[string]any{"material": "vinyl"}, "line": line()},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "no tenant",
			id:         "tv-active",
			body:       map[string]any{"mode": "preview", "selections": map[string]any{"material": "vinyl"}, "line": line()},
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, audits := newServer(t)

			rec, _ := do(t, e, http.MethodPost, "/v1/tree-versions/"+tt.id+"/evaluate", tt.tenant, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Len(t, audits.audits, tt.wantAudits)
		})
	}
}

func TestEvaluationAudits(t *testing.T) {
	e, _ := newServer(t)

	rec, _ := do(t, e, http.MethodPost, "/v1/tree-versions/tv-active/evaluate", "acme",
		map[string]any{"mode": "persist", "selections": map[string]any{"material": "vinyl"}, "line": line()})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, body := do(t, e, http.MethodGet, "/v1/evaluations/audit-1", "acme", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tv-active", body["treeVersionId"])

	rec, _ = do(t, e, http.MethodGet, "/v1/evaluations/audit-1", "globex", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, e, http.MethodGet, "/v1/tree-versions/tv-active/evaluations?limit=10", "acme", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rec, _ = do(t, e, http.MethodGet, "/v1/tree-versions/tv-active/evaluations?limit=zero", "acme", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEvaluateBatch(t *testing.T) {
	e, _ := newServer(t)

	t.Run("results in input order", func(t *testing.T) {
		rec, body := do(t, e, http.MethodPost, "/v1/tree-versions/tv-active/evaluate/batch", "acme", map[string]any{
			"items": []any{
				map[string]any{"selections": map[string]any{"material": "mesh"}, "line": line()},
				map[string]any{"selections": "mesh", "line": line()},
			},
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, float64(2), body["count"])

		results := body["results"].([]any)
		first := results[0].(map[string]any)
		assert.Equal(t, float64(7600), first["result"].(map[string]any)["pricing"].(map[string]any)["lineTotalCents"])
		assert.NotEmpty(t, results[1].(map[string]any)["error"])
	})

	t.Run("over the limit", func(t *testing.T) {
		item := map[string]any{"selections": map[string]any{"material": "mesh"}, "line": line()}
		rec, _ := do(t, e, http.MethodPost, "/v1/tree-versions/tv-active/evaluate/batch", "acme", map[string]any{
			"items": []any{item, item, item, item},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty", func(t *testing.T) {
		rec, _ := do(t, e, http.MethodPost, "/v1/tree-versions/tv-active/evaluate/batch", "acme", map[string]any{"items": []any{}})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestValidateTreeVersion(t *testing.T) {
	e, _ := newServer(t)

	rec, body := do(t, e, http.MethodGet, "/v1/tree-versions/tv-active/validate", "acme", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["ok"])

	rec, _ = do(t, e, http.MethodGet, "/v1/tree-versions/nope/validate", "acme", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGate(t *testing.T) {
	e, _ := newServer(t)

	rec, body := do(t, e, http.MethodPost, "/v1/evaluation-gate", "", map[string]any{
		"treeVersion": map[string]any{"id": "tv-1", "status": "DRAFT"},
		"mode":        "persist",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["ok"])
}
