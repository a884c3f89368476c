package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok() PingFunc { return func(context.Context) error { return nil } }
func down() PingFunc { return func(context.Context) error { return errors.New("connection refused") } }

func TestOverall(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]CheckResult
		want   Status
	}{
		{name: "empty", checks: map[string]CheckResult{}, want: StatusHealthy},
		{name: "all healthy", checks: map[string]CheckResult{"database": {Status: StatusHealthy}}, want: StatusHealthy},
		{name: "degraded", checks: map[string]CheckResult{"database": {Status: StatusHealthy}, "redis": {Status: StatusDegraded}}, want: StatusDegraded},
		{name: "unhealthy wins", checks: map[string]CheckResult{"database": {Status: StatusUnhealthy}, "redis": {Status: StatusDegraded}}, want: StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overall(tt.checks))
		})
	}
}

func serve(t *testing.T, c *Checker, path string) (int, Response) {
	t.Helper()
	e := echo.New()
	c.RegisterRoutes(e)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestHealthHandler(t *testing.T) {
	t.Run("optional dependency down degrades", func(t *testing.T) {
		c := NewChecker("test").Require("database", ok()).Optional("redis", down())
		code, body := serve(t, c, "/health")

		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, StatusDegraded, body.Status)
		assert.Equal(t, "connection refused", body.Checks["redis"].Message)
	})

	t.Run("required dependency down", func(t *testing.T) {
		c := NewChecker("test").Require("database", down())
		code, body := serve(t, c, "/health")

		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, StatusUnhealthy, body.Status)
	})
}

func TestReadiness(t *testing.T) {
	c := NewChecker("test").Require("database", ok())

	code, body := serve(t, c, "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body.Checks, "startup")

	c.SetReady(true)
	code, body = serve(t, c, "/health/ready")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusHealthy, body.Status)

	code, _ = serve(t, c, "/health/live")
	assert.Equal(t, http.StatusOK, code)
}

func TestHealthDetails(t *testing.T) {
	c := NewChecker("test").Require("database", ok()).Detail("tree_cache", func() any {
		return map[string]int{"size": 3}
	})
	code, body := serve(t, c, "/health")

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{"size": float64(3)}, body.Details["tree_cache"])
}
