package seeding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// DemoCodePrefix marks branches created by the seeding commands so they can
// be cleared again without touching real data.
const DemoCodePrefix = "DEMO-"

// Client is a minimal branch API client for the utility commands.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
		token:      token,
	}
}

// DemoBranch is the subset of the branch payload the seeder fills in.
type DemoBranch struct {
	Name       string         `json:"name"`
	Code       string         `json:"code"`
	Type       string         `json:"type"`
	Address    map[string]any `json:"address"`
	Contact    map[string]any `json:"contact"`
	Operations map[string]any `json:"operations"`
	Financial  map[string]any `json:"financial"`
}

// DemoBranches returns the branch set the demo environment is seeded with.
// Codes carry a fresh uuid suffix so repeated runs never collide.
func DemoBranches() []DemoBranch {
	mk := func(name, city, typ string) DemoBranch {
		return DemoBranch{
			Name: name,
			Code: DemoCodePrefix + uuid.New().String()[:8],
			Type: typ,
			Address: map[string]any{
				"street":  "1 Demo Street",
				"city":    city,
				"country": "US",
			},
			Contact: map[string]any{
				"phone": "+1-555-0100",
				"email": "demo@savoria.example",
			},
			Operations: map[string]any{
				"openTime":  "09:00",
				"closeTime": "22:00",
				"timezone":  "America/New_York",
				"daysOpen":  []string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"},
			},
			Financial: map[string]any{
				"currency": "USD",
			},
		}
	}
	return []DemoBranch{
		mk("Demo Downtown", "New York", "main"),
		mk("Demo Riverside", "Boston", "branch"),
		mk("Demo Harbor", "Baltimore", "franchise"),
	}
}

type branchRecord struct {
	ID   string `json:"_id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// CreateBranch posts one demo branch and returns its id.
func (c *Client) CreateBranch(ctx context.Context, b DemoBranch) (string, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return "", fmt.Errorf("encode branch: %w", err)
	}

	var wrapper struct {
		Success bool          `json:"success"`
		Data    *branchRecord `json:"data"`
		Error   string        `json:"error"`
	}
	if err := c.do(ctx, "POST", "/branches", data, &wrapper); err != nil {
		return "", err
	}
	if wrapper.Data == nil {
		return "", fmt.Errorf("no branch in response")
	}
	return wrapper.Data.ID, nil
}

// ListDemoBranches returns every branch carrying the demo code prefix.
func (c *Client) ListDemoBranches(ctx context.Context) ([]branchRecord, error) {
	var wrapper struct {
		Success bool           `json:"success"`
		Data    []branchRecord `json:"data"`
		Error   string         `json:"error"`
	}
	if err := c.do(ctx, "GET", "/branches?includeInactive=true", nil, &wrapper); err != nil {
		return nil, err
	}
	out := make([]branchRecord, 0, len(wrapper.Data))
	for _, b := range wrapper.Data {
		if len(b.Code) >= len(DemoCodePrefix) && b.Code[:len(DemoCodePrefix)] == DemoCodePrefix {
			out = append(out, b)
		}
	}
	return out, nil
}

// DeleteBranch removes one branch by id.
func (c *Client) DeleteBranch(ctx context.Context, id string) error {
	var wrapper struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	return c.do(ctx, "DELETE", "/branches/"+id, nil, &wrapper)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var envelope struct {
			Error string `json:"error"`
		}
		if jerr := json.Unmarshal(raw, &envelope); jerr == nil && envelope.Error != "" {
			return fmt.Errorf("%s", envelope.Error)
		}
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
