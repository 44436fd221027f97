package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
)

// TableLister lists the tables of the snapshot database.
type TableLister func(ctx context.Context) ([]string, error)

// DBHandler handles database-related endpoints.
type DBHandler struct {
	tables TableLister
}

// NewDBHandler creates a new database handler. A nil lister means no
// database is configured.
func NewDBHandler(tables TableLister) *DBHandler {
	return &DBHandler{tables: tables}
}

// RegisterRoutes registers database routes with Huma.
func (h *DBHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/tables", h.ListTables, huma.OperationTags("db"))
}

// TablesOutput is the response for listing tables.
type TablesOutput struct {
	Body struct {
		Tables []string `json:"tables" doc:"List of table names"`
	}
}

// ListTables returns the snapshot store's tables.
func (h *DBHandler) ListTables(ctx context.Context, input *struct{}) (*TablesOutput, error) {
	if h.tables == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}

	tables, err := h.tables(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list tables", err)
	}
	if tables == nil {
		tables = []string{}
	}

	out := &TablesOutput{}
	out.Body.Tables = tables
	return out, nil
}
