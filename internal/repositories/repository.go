package repositories

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	appctx "github.com/Tombstone73/QuoteVaultPro-sub011/pkg/context"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/database"
)

func NotFound(format string, args ...any) error {
	return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf(format, args...))
}

func Internal(message string) error {
	return httperror.NewHTTPError(http.StatusInternalServerError, message)
}

// IsID reports whether id can be a primary key. Ids are UUIDs, so anything else cannot exist.
func IsID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Repository provides tenant-scoped database access.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

func (r *Repository) DB() database.DB {
	return r.db
}

func (r *Repository) Logger() ectologger.Logger {
	return r.logger
}

// GetTenantID returns the request's tenant or a 401.
func GetTenantID(ctx context.Context) (string, error) {
	tenantID := appctx.GetTenantID(ctx)
	if tenantID == "" {
		return "", httperror.NewHTTPError(http.StatusUnauthorized, "tenant is required")
	}
	return tenantID, nil
}
