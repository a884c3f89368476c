package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/context"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/errors"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEcho() *echo.Echo {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	e := echo.New()
	e.HTTPErrorHandler = Error(logger)
	e.Use(Context())
	e.Use(Logger(logger))
	return e
}

func TestContext(t *testing.T) {
	e := newEcho()
	var requestID, tenantID string
	e.GET("/ping", func(c echo.Context) error {
		requestID = context.GetRequestID(c.Request().Context())
		tenantID = context.GetTenantID(c.Request().Context())
		return c.NoContent(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(HeaderTenantID, "acme")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotEmpty(t, requestID)
	assert.Equal(t, requestID, rec.Header().Get(echo.HeaderXRequestID))
	assert.Equal(t, "acme", tenantID)
}

func TestContextTreeVersionRoute(t *testing.T) {
	e := newEcho()
	var route, treeVersionID string
	e.POST("/v1/tree-versions/:id/evaluate", func(c echo.Context) error {
		route = context.GetRoute(c.Request().Context())
		treeVersionID = context.GetTreeVersionID(c.Request().Context())
		return c.NoContent(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/tree-versions/tv-9/evaluate", nil)
	req.Header.Set(echo.HeaderXRequestID, "req-42")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, "/v1/tree-versions/:id/evaluate", route)
	assert.Equal(t, "tv-9", treeVersionID)
	assert.Equal(t, "req-42", rec.Header().Get(echo.HeaderXRequestID))
}

func TestRequestIDFrom(t *testing.T) {
	assert.Equal(t, "abc-123", requestIDFrom("abc-123"))
	for _, bad := range []string{"", "has space", "tab\there", strings.Repeat("x", maxRequestIDLength+1)} {
		id := requestIDFrom(bad)
		assert.NotEqual(t, bad, id)
		assert.Len(t, id, 36)
	}
}

func TestQuiet(t *testing.T) {
	assert.True(t, quiet("/health/ready"))
	assert.True(t, quiet("/metrics"))
	assert.False(t, quiet("/v1/trees/evaluate"))
}

func TestError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{
			name:   "invalid selections",
			err:    errors.New(errors.CodeInvalidSelections, "selections must be an object").AddPath("selections"),
			status: http.StatusBadRequest,
			code:   string(errors.CodeInvalidSelections),
		},
		{
			name:   "http error",
			err:    httperror.NewHTTPError(http.StatusNotFound, "tree version not found"),
			status: http.StatusNotFound,
		},
		{
			name:   "echo error",
			err:    echo.NewHTTPError(http.StatusMethodNotAllowed, "nope"),
			status: http.StatusMethodNotAllowed,
		},
		{
			name:   "plain error",
			err:    assert.AnError,
			status: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEcho()
			e.GET("/fail", func(c echo.Context) error { return tt.err })

			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fail", nil))

			assert.Equal(t, tt.status, rec.Code)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body.RequestID)
			if tt.code != "" {
				assert.Equal(t, tt.code, body.Meta["code"])
				assert.Equal(t, "selections", body.Meta["path"])
			}
		})
	}
}
