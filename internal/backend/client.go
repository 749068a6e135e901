package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"kassa/internal/config"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Client talks to the remote structured backend over HTTPS. Tables are
// addressed as /rest/{table}, server-side functions as /rpc/{name}.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	logger  *zerolog.Logger
}

func NewClient(cfg config.BackendConfig, logger *zerolog.Logger) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	burst := cfg.Burst
	if burst <= 0 {
		burst = 20
	}
	rps := cfg.RPS
	if rps <= 0 {
		rps = 10
	}

	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:  logger,
	}
}

// Insert creates a row and returns the created row as reported by the
// backend (including its server-assigned id).
func (c *Client) Insert(ctx context.Context, table string, values map[string]interface{}) (map[string]interface{}, error) {
	body, err := c.do(ctx, http.MethodPost, "/rest/"+table, values)
	if err != nil {
		return nil, fmt.Errorf("insert into %s: %w", table, err)
	}

	var row map[string]interface{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &row); err != nil {
			return nil, fmt.Errorf("decode insert response for %s: %w", table, err)
		}
	}
	return row, nil
}

func (c *Client) Update(ctx context.Context, table string, id int64, values map[string]interface{}) error {
	if _, err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/rest/%s/%d", table, id), values); err != nil {
		return fmt.Errorf("update %s/%d: %w", table, id, err)
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, table string, id int64) error {
	if _, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/rest/%s/%d", table, id), nil); err != nil {
		return fmt.Errorf("delete %s/%d: %w", table, id, err)
	}
	return nil
}

// Select returns rows matching all equality filters.
func (c *Client) Select(ctx context.Context, table string, filters map[string]interface{}) ([]map[string]interface{}, error) {
	path := "/rest/" + table
	if len(filters) > 0 {
		q := url.Values{}
		for k, v := range filters {
			q.Set(k, fmt.Sprintf("%v", v))
		}
		path += "?" + q.Encode()
	}

	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("select from %s: %w", table, err)
	}

	var rows []map[string]interface{}
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode select response for %s: %w", table, err)
	}
	return rows, nil
}

// CallRPC invokes a named server-side function. A 404 on the function path
// maps to ErrRPCUnavailable so callers can pick their fallback.
func (c *Client) CallRPC(ctx context.Context, name string, args map[string]interface{}) (map[string]interface{}, error) {
	body, err := c.do(ctx, http.MethodPost, "/rpc/"+name, args)
	if err != nil {
		return nil, fmt.Errorf("rpc %s: %w", name, err)
	}

	var result map[string]interface{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, fmt.Errorf("decode rpc response for %s: %w", name, err)
		}
	}
	return result, nil
}

// Ping checks backend reachability.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.do(ctx, http.MethodGet, "/health", nil); err != nil {
		return fmt.Errorf("backend ping: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var reqBody io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusNotFound && method == http.MethodPost && len(path) > 5 && path[:5] == "/rpc/":
		return nil, ErrRPCUnavailable
	case resp.StatusCode >= 400 && resp.StatusCode < 500 &&
		resp.StatusCode != http.StatusRequestTimeout && resp.StatusCode != http.StatusTooManyRequests:
		return nil, &RejectionError{StatusCode: resp.StatusCode, Message: extractMessage(body)}
	default:
		return nil, fmt.Errorf("backend returned status %d", resp.StatusCode)
	}
}

func extractMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return string(body)
}
