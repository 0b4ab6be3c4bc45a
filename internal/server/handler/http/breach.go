package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/atinyakov/keeperimport/internal/breach"
	"github.com/atinyakov/keeperimport/internal/middleware"
	"github.com/atinyakov/keeperimport/internal/service"
)

// AuditService defines the breach operations required by the BreachHandler.
type AuditService interface {
	// CheckPassword checks one password.
	CheckPassword(ctx context.Context, password string) (bool, error)
	// Audit checks the vault entries of userLogin, restricted to ids when
	// ids is non-empty.
	Audit(ctx context.Context, userLogin string, ids []string) ([]service.AuditResult, error)
}

// BreachHandler handles HTTP requests for breach checks.
type BreachHandler struct {
	AuditService AuditService
}

type breachRequest struct {
	Password string `json:"password"`
}

type breachResponse struct {
	Breached bool `json:"breached"`
}

// Check handles POST /api/breach requests with a JSON body {"password": ...}.
// Transport failures of the range query are reported as 502.
func (h *BreachHandler) Check(w http.ResponseWriter, r *http.Request) {
	var req breachRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Password == "" {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	breached, err := h.AuditService.CheckPassword(r.Context(), req.Password)
	if err != nil {
		if errors.Is(err, breach.ErrTransport) {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, breachResponse{Breached: breached})
}

// Audit handles GET /api/audit requests. Repeated "id" query parameters
// restrict the audit to those entries.
func (h *BreachHandler) Audit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserIDFromContext(ctx)

	results, err := h.AuditService.Audit(ctx, userID, r.URL.Query()["id"])
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, results)
}
