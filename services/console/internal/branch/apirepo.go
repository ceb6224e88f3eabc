package branch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/appetiteclub/apt"

	"github.com/savoria/savoria/services/console/internal/session"
)

// APIBranchRepo implements Repository by calling the platform's branch APIs.
// It is stateless; caching belongs to ListCache.
type APIBranchRepo struct {
	httpClient *http.Client
	baseURL    string
	sessions   session.Store
	logger     apt.Logger
}

// NewAPIBranchRepo creates a new API-based branch repository
func NewAPIBranchRepo(config *apt.Config, sessions session.Store, logger apt.Logger) (*APIBranchRepo, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if logger == nil {
		logger = apt.NewNoopLogger()
	}

	baseURL, _ := config.GetString("services.core.url")
	if baseURL == "" {
		return nil, fmt.Errorf("services.core.url not configured")
	}

	return &APIBranchRepo{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL:  baseURL,
		sessions: sessions,
		logger:   logger,
	}, nil
}

func (r *APIBranchRepo) List(ctx context.Context, filters Filters) ([]Branch, error) {
	var wrapper struct {
		Success bool     `json:"success"`
		Data    []Branch `json:"data"`
		Error   string   `json:"error"`
	}
	if err := r.do(ctx, "GET", "/branches"+filters.Query(), nil, &wrapper); err != nil {
		return nil, err
	}
	if wrapper.Data == nil {
		return []Branch{}, nil
	}
	return wrapper.Data, nil
}

func (r *APIBranchRepo) Get(ctx context.Context, id string) (*Branch, error) {
	var wrapper struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	if err := r.do(ctx, "GET", "/branches/"+id, nil, &wrapper); err != nil {
		return nil, err
	}
	// The backend answers an unknown id with the collection listing instead
	// of a 404; treat any array payload as not found.
	if len(wrapper.Data) == 0 || wrapper.Data[0] == '[' {
		return nil, ErrBranchNotFound
	}
	var b Branch
	if err := json.Unmarshal(wrapper.Data, &b); err != nil {
		return nil, fmt.Errorf("decode branch: %w", err)
	}
	return &b, nil
}

func (r *APIBranchRepo) Create(ctx context.Context, data CreateData) (*Branch, error) {
	var wrapper struct {
		Success bool    `json:"success"`
		Data    *Branch `json:"data"`
		Error   string  `json:"error"`
	}
	if err := r.do(ctx, "POST", "/branches", data, &wrapper); err != nil {
		return nil, err
	}
	return wrapper.Data, nil
}

func (r *APIBranchRepo) Update(ctx context.Context, id string, data UpdateData) (*Branch, error) {
	var wrapper struct {
		Success bool    `json:"success"`
		Data    *Branch `json:"data"`
		Error   string  `json:"error"`
	}
	if err := r.do(ctx, "PUT", "/branches/"+id, data, &wrapper); err != nil {
		return nil, err
	}
	return wrapper.Data, nil
}

// UpdateMany applies the updates one by one. The first failure aborts the
// remainder and is returned as-is; earlier results are discarded.
func (r *APIBranchRepo) UpdateMany(ctx context.Context, updates []BranchUpdate) ([]Branch, error) {
	results := make([]Branch, 0, len(updates))
	for _, u := range updates {
		b, err := r.Update(ctx, u.ID, u.Data)
		if err != nil {
			return nil, err
		}
		if b != nil {
			results = append(results, *b)
		}
	}
	return results, nil
}

func (r *APIBranchRepo) Delete(ctx context.Context, id string) error {
	var wrapper struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	return r.do(ctx, "DELETE", "/branches/"+id, nil, &wrapper)
}

func (r *APIBranchRepo) Clone(ctx context.Context, sourceID string, data CreateData) (*Branch, error) {
	var wrapper struct {
		Success bool    `json:"success"`
		Data    *Branch `json:"data"`
		Error   string  `json:"error"`
	}
	if err := r.do(ctx, "POST", "/branches/"+sourceID+"/clone", data, &wrapper); err != nil {
		return nil, err
	}
	return wrapper.Data, nil
}

func (r *APIBranchRepo) Switch(ctx context.Context, id string) (string, error) {
	body := map[string]string{"branchId": id}
	var wrapper struct {
		Success       bool   `json:"success"`
		CurrentBranch string `json:"currentBranch"`
		Error         string `json:"error"`
	}
	if err := r.do(ctx, "POST", "/branches/switch", body, &wrapper); err != nil {
		return "", err
	}
	if wrapper.CurrentBranch == "" {
		return id, nil
	}
	return wrapper.CurrentBranch, nil
}

func (r *APIBranchRepo) AssignUser(ctx context.Context, branchID, userID string) error {
	body := map[string]string{"userId": userID}
	var wrapper struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	return r.do(ctx, "POST", "/branches/"+branchID+"/assign", body, &wrapper)
}

func (r *APIBranchRepo) RemoveUser(ctx context.Context, branchID, userID string) error {
	var wrapper struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	return r.do(ctx, "DELETE", "/branches/"+branchID+"/users/"+userID, nil, &wrapper)
}

func (r *APIBranchRepo) Hierarchy(ctx context.Context) ([]Node, error) {
	var wrapper struct {
		Success bool   `json:"success"`
		Data    []Node `json:"data"`
		Error   string `json:"error"`
	}
	if err := r.do(ctx, "GET", "/branches/hierarchy", nil, &wrapper); err != nil {
		return nil, err
	}
	if wrapper.Data == nil {
		return []Node{}, nil
	}
	return wrapper.Data, nil
}

func (r *APIBranchRepo) Metrics(ctx context.Context, id string, start, end *time.Time) (*BranchMetrics, error) {
	var wrapper struct {
		Success bool           `json:"success"`
		Data    *BranchMetrics `json:"data"`
		Error   string         `json:"error"`
	}
	path := "/branches/" + id + "/metrics" + rangeQuery(start, end)
	if err := r.do(ctx, "GET", path, nil, &wrapper); err != nil {
		return nil, err
	}
	return wrapper.Data, nil
}

func (r *APIBranchRepo) ConsolidatedMetrics(ctx context.Context, start, end *time.Time) (*ConsolidatedMetrics, error) {
	var wrapper struct {
		Success bool                 `json:"success"`
		Data    *ConsolidatedMetrics `json:"data"`
		Error   string               `json:"error"`
	}
	path := "/branches/metrics/consolidated" + rangeQuery(start, end)
	if err := r.do(ctx, "GET", path, nil, &wrapper); err != nil {
		return nil, err
	}
	return wrapper.Data, nil
}

func rangeQuery(start, end *time.Time) string {
	var q string
	if start != nil {
		q = "?startDate=" + url.QueryEscape(start.Format(time.RFC3339))
	}
	if end != nil {
		sep := "?"
		if q != "" {
			sep = "&"
		}
		q += sep + "endDate=" + url.QueryEscape(end.Format(time.RFC3339))
	}
	return q
}

// do runs one request against the platform API and decodes the response
// envelope into out. The out value must embed Success and Error fields; a
// 2xx answer with success:false is surfaced as an error using the envelope's
// error message.
func (r *APIBranchRepo) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := r.sessions.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if tenantID := r.sessions.TenantID(); tenantID != "" {
		req.Header.Set("X-Tenant-ID", tenantID)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s", errorMessage(resp.StatusCode, raw))
	}

	// A nominally successful response without a JSON body decodes to the
	// zero envelope, which readers treat as an empty result.
	if len(raw) == 0 {
		return nil
	}
	var probe struct {
		Success *bool  `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		r.logger.Debug("Non-JSON body on successful response", "method", method, "path", path)
		return nil
	}
	if probe.Success != nil && !*probe.Success {
		msg := probe.Error
		if msg == "" {
			msg = "request failed"
		}
		return fmt.Errorf("%s", msg)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorMessage prefers the envelope's error field and falls back to the HTTP
// status line when the body is not a platform envelope.
func errorMessage(status int, raw []byte) string {
	var envelope struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil {
		if envelope.Error != "" {
			return envelope.Error
		}
		if envelope.Message != "" {
			return envelope.Message
		}
	}
	return fmt.Sprintf("HTTP %d: %s", status, http.StatusText(status))
}
