package utils

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lineRequest struct {
	Mode     string `json:"mode" validate:"required,oneof=preview persist"`
	Quantity int64  `json:"quantity" validate:"gte=1"`
}

func TestValidate(t *testing.T) {
	_, err := Validate(lineRequest{Mode: "preview", Quantity: 1})
	require.NoError(t, err)

	_, err = Validate(lineRequest{Mode: "dry-run", Quantity: 0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field 'lineRequest.Mode' failed rule 'oneof' (preview persist)")
	assert.Contains(t, err.Error(), "field 'lineRequest.Quantity' failed rule 'gte' (1)")
}

func TestValidateValue(t *testing.T) {
	assert.NoError(t, ValidateValue("id", "6ba7b810-9dad-11d1-80b4-00c04fd430c8", "required,uuid"))
	assert.EqualError(t, ValidateValue("id", "abc", "required,uuid"), "id failed rule 'uuid'")
}

func TestBindRequest(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantErr  string
		wantMode string
	}{
		{name: "valid", body: `{"mode":"persist","quantity":3}`, wantMode: "persist"},
		{name: "empty body", body: ``, wantErr: "empty"},
		{name: "malformed json", body: `{"mode":`, wantErr: "syntax"},
		{name: "wrong type", body: `{"mode":"persist","quantity":"three"}`, wantErr: "type"},
		{name: "fails validation", body: `{"mode":"persist","quantity":0}`, wantErr: "validation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			c := e.NewContext(req, httptest.NewRecorder())

			got, err := BindRequest[lineRequest](c)
			if tt.wantErr != "" {
				require.Error(t, err, tt.wantErr)
				assert.True(t, httperror.IsHTTPError(err))
				assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMode, got.Mode)
		})
	}
}

func TestBindMessage(t *testing.T) {
	assert.Equal(t, "boom", bindMessage(echo.NewHTTPError(http.StatusBadRequest, "bind failed").SetInternal(errors.New("boom"))))
	assert.Equal(t, "bind failed", bindMessage(echo.NewHTTPError(http.StatusBadRequest, "bind failed")))
	assert.Equal(t, "plain", bindMessage(errors.New("plain")))
}
