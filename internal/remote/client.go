// Package remote is the HTTP+JSON client for the system of record that
// ultimately owns all deal data.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pipecrm/internal/models"
	"pipecrm/internal/pipeline"
)

// errorBody is the structured error envelope the remote service returns on
// non-success statuses.
type errorBody struct {
	Message string `json:"message"`
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) CreateDeal(ctx context.Context, payload *models.Deal) (*models.Deal, error) {
	var out models.Deal
	if err := c.do(ctx, http.MethodPost, "/deals", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateDeal(ctx context.Context, id string, patch *models.Deal) (*models.Deal, error) {
	var out models.Deal
	if err := c.do(ctx, http.MethodPut, "/deals/"+id, patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) MoveDeal(ctx context.Context, id, stageID string) (*models.Deal, error) {
	var out models.Deal
	body := map[string]string{"stage_id": stageID}
	if err := c.do(ctx, http.MethodPut, "/deals/"+id+"/stage", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteDeal(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/deals/"+id, nil, nil)
}

// ListDeals fetches the full remote deal set; the engine uses it for the
// read-through snapshot refresh.
func (c *Client) ListDeals(ctx context.Context) ([]models.Deal, error) {
	var out []models.Deal
	if err := c.do(ctx, http.MethodGet, "/deals", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// do performs one request. Transport failures and 5xx map to Unreachable,
// 4xx to Rejected with the remote's message.
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return pipeline.Wrap(pipeline.KindUnreachable, err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return pipeline.Wrap(pipeline.KindUnreachable, err, "decode %s %s response", method, path)
		}
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var eb errorBody
	_ = json.Unmarshal(raw, &eb)
	if eb.Message == "" {
		eb.Message = strings.TrimSpace(string(raw))
	}
	if eb.Message == "" {
		eb.Message = resp.Status
	}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return pipeline.E(pipeline.KindRejected, "remote declined %s %s: %s", method, path, eb.Message)
	}
	return pipeline.E(pipeline.KindUnreachable, "remote failed %s %s: %s", method, path, eb.Message)
}
