package middleware

import (
	stderrors "errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/context"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/errors"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/tracing"
	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Message   string         `json:"message"`
	RequestID string         `json:"request_id"`
	TraceID   string         `json:"trace_id"`
	Meta      map[string]any `json:"meta"`
}

// Error renders every handler error as an ErrorResponse. Invalid tree or selection input maps to
// 400 with its PBV2 code in meta.
func Error(logger ectologger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		ctx := c.Request().Context()
		status, message, meta := describe(err)

		entry := logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"status": status,
			"route":  c.Path(),
		})
		if status >= http.StatusInternalServerError {
			entry.Error("request failed")
		} else {
			entry.Warn("request rejected")
		}

		_ = c.JSON(status, ErrorResponse{
			Message:   message,
			RequestID: context.GetRequestID(ctx),
			TraceID:   tracing.GetTraceID(ctx),
			Meta:      meta,
		})
	}
}

// describe maps err to a status, a client-safe message and response meta. Unknown errors are 500s
// with a generic message.
func describe(err error) (int, string, map[string]any) {
	if pbErr, ok := errors.AsPBV2Error(err); ok {
		err = pbErr.ToHTTPError()
	}

	if httperror.IsHTTPError(err) {
		he := httperror.ToHTTPError(err)
		meta := he.Meta
		if meta == nil {
			meta = map[string]any{}
		}
		return httperror.GetStatusCode(err), he.Error(), meta
	}

	var echoErr *echo.HTTPError
	if stderrors.As(err, &echoErr) {
		message := http.StatusText(echoErr.Code)
		if msg, ok := echoErr.Message.(string); ok {
			message = msg
		}
		return echoErr.Code, message, map[string]any{}
	}

	return http.StatusInternalServerError, "Internal Server Error", map[string]any{}
}
