package kitchen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/appetiteclub/apt"

	"github.com/savoria/savoria/services/console/internal/session"
)

// APIOrderRepo implements OrderRepository by calling the platform's order
// APIs.
type APIOrderRepo struct {
	httpClient *http.Client
	baseURL    string
	sessions   session.Store
	logger     apt.Logger
}

// NewAPIOrderRepo creates a new API-based order repository
func NewAPIOrderRepo(config *apt.Config, sessions session.Store, logger apt.Logger) (*APIOrderRepo, error) {
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

	return &APIOrderRepo{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL:  baseURL,
		sessions: sessions,
		logger:   logger,
	}, nil
}

func (r *APIOrderRepo) KitchenOrders(ctx context.Context) ([]Order, error) {
	raw, err := r.do(ctx, "GET", "/orders/kitchen/orders", nil)
	if err != nil {
		return nil, err
	}
	var wrapper struct {
		Success bool `json:"success"`
		Data    struct {
			Orders []Order `json:"orders"`
		} `json:"data"`
		Orders []Order `json:"orders"`
		Error  string  `json:"error"`
	}
	if len(raw) == 0 {
		return []Order{}, nil
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	orders := wrapper.Data.Orders
	if orders == nil {
		orders = wrapper.Orders
	}
	if orders == nil {
		return []Order{}, nil
	}
	return orders, nil
}

func (r *APIOrderRepo) UpdateStatus(ctx context.Context, id, status, notes string) (*Order, error) {
	body := map[string]string{"status": status}
	if notes != "" {
		body["notes"] = notes
	}
	raw, err := r.do(ctx, "PATCH", "/orders/"+id+"/status", body)
	if err != nil {
		return nil, err
	}
	var wrapper struct {
		Success bool   `json:"success"`
		Data    *Order `json:"data"`
		Error   string `json:"error"`
	}
	if len(raw) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return wrapper.Data, nil
}

func (r *APIOrderRepo) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
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
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var envelope struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if jerr := json.Unmarshal(raw, &envelope); jerr == nil {
			if envelope.Error != "" {
				return nil, fmt.Errorf("%s", envelope.Error)
			}
			if envelope.Message != "" {
				return nil, fmt.Errorf("%s", envelope.Message)
			}
		}
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	var probe struct {
		Success *bool  `json:"success"`
		Error   string `json:"error"`
	}
	if len(raw) > 0 {
		if jerr := json.Unmarshal(raw, &probe); jerr == nil {
			if probe.Success != nil && !*probe.Success {
				msg := probe.Error
				if msg == "" {
					msg = "request failed"
				}
				return nil, fmt.Errorf("%s", msg)
			}
		} else {
			r.logger.Debug("Non-JSON body on successful response", "method", method, "path", path)
			return nil, nil
		}
	}
	return raw, nil
}
