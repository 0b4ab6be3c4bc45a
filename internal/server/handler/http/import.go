package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/atinyakov/keeperimport/internal/importer"
	"github.com/atinyakov/keeperimport/internal/middleware"
	"github.com/atinyakov/keeperimport/internal/service"
)

// MaxImportSize bounds the size of an uploaded export.
const MaxImportSize = 10 << 20

// ImportService defines the import operation required by the ImportHandler.
type ImportService interface {
	// Import parses the export in r and reconciles it against the vault of
	// userLogin.
	Import(ctx context.Context, userLogin string, r io.Reader) (*service.ImportReport, error)
}

// ImportHandler handles HTTP requests for credential import.
type ImportHandler struct {
	ImportService ImportService
}

// Import handles POST /api/import requests.
// The body is the exported file. The response is the import report as JSON:
// 422 when the header is rejected, 413 when the body is too large, 400 for
// any other failure to read the body and 500 when the vault cannot be read.
func (h *ImportHandler) Import(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserIDFromContext(ctx)

	body := http.MaxBytesReader(w, r.Body, MaxImportSize)
	report, err := h.ImportService.Import(ctx, userID, body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, importer.ErrImportFormat):
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		case errors.As(err, &tooLarge):
			http.Error(w, "export too large", http.StatusRequestEntityTooLarge)
		case errors.Is(err, service.ErrInvalidExport):
			http.Error(w, "invalid body", http.StatusBadRequest)
		default:
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, report)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
