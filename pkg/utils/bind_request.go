package utils

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"
)

// BindRequest decodes the JSON body into T and runs its validate tags. Every failure is a 400.
func BindRequest[T any](c echo.Context) (T, error) {
	var req T

	if c.Request().ContentLength == 0 {
		return req, httperror.NewHTTPError(http.StatusBadRequest, "request body is required")
	}

	if err := c.Bind(&req); err != nil {
		return req, httperror.NewHTTPError(http.StatusBadRequest, "invalid request body: "+bindMessage(err))
	}

	req, err := Validate(req)
	if err != nil {
		return req, httperror.WrapError(http.StatusBadRequest, err)
	}
	return req, nil
}

// bindMessage unwraps echo's binder error down to the decoder message.
func bindMessage(err error) string {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he.Internal != nil {
			return he.Internal.Error()
		}
		return fmt.Sprint(he.Message)
	}
	return err.Error()
}
