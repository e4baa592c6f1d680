package clickhouse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/94R1K/student-metrics-backend/pkg/config"
)

// Client talks to ClickHouse over its HTTP interface. Statements are
// submitted as query parameters; row payloads travel in the request body.
type Client struct {
	baseURL  string
	database string
	user     string
	password string
	http     *http.Client
}

// New builds a client from configuration.
func New(cfg config.ClickHouseConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		database: cfg.Database,
		user:     cfg.User,
		password: cfg.Password,
		http:     &http.Client{Timeout: timeout},
	}
}

// Exec submits a statement with an optional body (e.g. JSONEachRow data)
// and discards the response payload.
func (c *Client) Exec(ctx context.Context, query string, body []byte) error {
	_, err := c.do(ctx, query, body)
	return err
}

// QueryJSON submits a SELECT ... FORMAT JSON statement and decodes the
// "data" rows into dest, which must be a pointer to a slice.
func (c *Client) QueryJSON(ctx context.Context, query string, dest interface{}) error {
	raw, err := c.do(ctx, query, nil)
	if err != nil {
		return err
	}

	var payload struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("decode clickhouse response: %w", err)
	}
	if len(payload.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload.Data, dest); err != nil {
		return fmt.Errorf("decode clickhouse rows: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, query string, body []byte) ([]byte, error) {
	params := url.Values{}
	params.Set("query", query)
	if c.database != "" {
		params.Set("database", c.database)
	}

	endpoint := fmt.Sprintf("%s/?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build clickhouse request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.user != "" {
		req.SetBasicAuth(c.user, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("clickhouse request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read clickhouse response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("clickhouse returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	return raw, nil
}
