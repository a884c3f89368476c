package middleware

import (
	"strings"
	"unicode"

	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/context"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	HeaderTenantID = "X-Tenant-ID"

	maxRequestIDLength = 128
)

// Context seeds the request context with the request id, tenant, matched route template and, on
// /tree-versions/:id routes, the tree version. The request id is echoed on the response.
func Context() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			requestID := requestIDFrom(req.Header.Get(echo.HeaderXRequestID))
			c.Response().Header().Set(echo.HeaderXRequestID, requestID)

			ctx := context.SetRequestID(req.Context(), requestID)
			ctx = context.SetMethod(ctx, req.Method)
			ctx = context.SetRoute(ctx, routeOf(c))
			ctx = context.SetRemoteIP(ctx, c.RealIP())
			if tenantID := strings.TrimSpace(req.Header.Get(HeaderTenantID)); tenantID != "" {
				ctx = context.SetTenantID(ctx, tenantID)
			}
			if strings.Contains(c.Path(), "/tree-versions/:id") {
				ctx = context.SetTreeVersionID(ctx, c.Param("id"))
			}

			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}

// requestIDFrom keeps a caller's request id only when it is short and printable.
func requestIDFrom(header string) string {
	if header == "" || len(header) > maxRequestIDLength {
		return uuid.New().String()
	}
	for _, r := range header {
		if !unicode.IsPrint(r) || unicode.IsSpace(r) {
			return uuid.New().String()
		}
	}
	return header
}

// routeOf is the route template, or the raw path when nothing matched.
func routeOf(c echo.Context) string {
	if path := c.Path(); path != "" {
		return path
	}
	return c.Request().URL.Path
}
