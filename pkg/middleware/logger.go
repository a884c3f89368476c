package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/context"
	"github.com/labstack/echo/v4"
)

// quietPrefixes are polled by health checks and scrapers and are not logged.
var quietPrefixes = []string{"/health", "/metrics"}

func quiet(path string) bool {
	for _, prefix := range quietPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func Logger(logger ectologger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}

			req := c.Request()
			if quiet(req.URL.Path) {
				return nil
			}

			res := c.Response()
			ctx := req.Context()
			fields := context.Fields(ctx)
			fields["method"] = req.Method
			fields["route"] = context.GetRoute(ctx)
			fields["uri"] = req.RequestURI
			fields["status"] = res.Status
			fields["response_time_ms"] = time.Since(start).Milliseconds()
			fields["request_size"] = req.Header.Get(echo.HeaderContentLength)
			fields["response_size"] = strconv.FormatInt(res.Size, 10)
			fields["remote_ip"] = c.RealIP()

			log := logger.WithContext(ctx).WithFields(fields)
			switch {
			case res.Status >= http.StatusInternalServerError:
				log.Error("Request")
			case res.Status >= http.StatusBadRequest:
				log.Warn("Request")
			default:
				log.Info("Request")
			}
			return nil
		}
	}
}
