package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/atinyakov/keeperimport/internal/service"
)

const (
	apiImport = "/api/import"
	apiBreach = "/api/breach"
	apiAudit  = "/api/audit"
)

// StatusError is returned when the server answers with a non-200 status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.Code, e.Body)
}

// API is a thin client for the import server.
type API struct {
	HTTP    *http.Client
	BaseURL string
}

// NewAPI returns an API rooted at baseURL. A trailing slash is dropped.
func NewAPI(hc *http.Client, baseURL string) *API {
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}
	return &API{HTTP: hc, BaseURL: strings.TrimRight(baseURL, "/")}
}

// Import uploads an export and returns the server's import report.
func (a *API) Import(ctx context.Context, export io.Reader) (*service.ImportReport, error) {
	var report service.ImportReport
	if err := a.do(ctx, http.MethodPost, apiImport, "text/csv", export, &report); err != nil {
		return nil, fmt.Errorf("import: %w", err)
	}
	return &report, nil
}

// CheckBreach asks the server whether password appears in the breach corpus.
func (a *API) CheckBreach(ctx context.Context, password string) (bool, error) {
	b, err := json.Marshal(map[string]string{"password": password})
	if err != nil {
		return false, err
	}
	var res struct {
		Breached bool `json:"breached"`
	}
	if err := a.do(ctx, http.MethodPost, apiBreach, "application/json", bytes.NewReader(b), &res); err != nil {
		return false, fmt.Errorf("breach: %w", err)
	}
	return res.Breached, nil
}

// Audit requests a breach audit of the caller's vault, restricted to ids when
// ids is non-empty.
func (a *API) Audit(ctx context.Context, ids []string) ([]service.AuditResult, error) {
	path := apiAudit
	if len(ids) > 0 {
		q := url.Values{"id": ids}
		path += "?" + q.Encode()
	}
	var results []service.AuditResult
	if err := a.do(ctx, http.MethodGet, path, "", nil, &results); err != nil {
		return nil, fmt.Errorf("audit: %w", err)
	}
	return results, nil
}

func (a *API) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, a.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := a.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
