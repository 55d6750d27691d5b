// Package content talks to the external content service over HTTP.
package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kilianp07/wildguard/auth"
	corecontent "github.com/kilianp07/wildguard/core/content"
	"github.com/kilianp07/wildguard/core/logger"
)

// Config configures the content service client.
type Config struct {
	// Mode is "http" or "stub". The stub answers locally.
	Mode      string    `json:"mode"`
	URL       string    `json:"url"`
	APIKey    string    `json:"api_key"`
	TimeoutMS int       `json:"timeout_ms"`
	Auth      auth.Conf `json:"auth"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.Mode == "" {
		c.Mode = "stub"
	}
	if c.TimeoutMS <= 0 {
		c.TimeoutMS = 15000
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch c.Mode {
	case "stub":
		return nil
	case "http":
		if c.URL == "" {
			return fmt.Errorf("content: url required in http mode")
		}
		return nil
	default:
		return fmt.Errorf("content: unknown mode %q", c.Mode)
	}
}

// Timeout returns the per-request timeout.
func (c Config) Timeout() time.Duration { return time.Duration(c.TimeoutMS) * time.Millisecond }

// New returns the generator selected by cfg.
func New(cfg Config, log logger.Logger) (corecontent.Generator, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Mode == "stub" {
		return Stub{}, nil
	}
	return NewClient(cfg, log), nil
}

// Client calls POST {url}/generate with {"kind", "context"} and decodes the
// JSON result against the schema of kind.
type Client struct {
	url    string
	apiKey string
	creds  *auth.ClientCred
	http   *http.Client
	log    logger.Logger
}

// NewClient creates an HTTP client. OAuth2 client credentials take
// precedence over the static API key.
func NewClient(cfg Config, log logger.Logger) *Client {
	cfg.SetDefaults()
	c := &Client{
		url:    strings.TrimSuffix(cfg.URL, "/") + "/generate",
		apiKey: cfg.APIKey,
		http:   &http.Client{Timeout: cfg.Timeout()},
		log:    logger.OrNop(log),
	}
	if cfg.Auth.Enabled() {
		c.creds = auth.NewClientCred(cfg.Auth)
	}
	return c
}

type request struct {
	Kind    corecontent.Kind    `json:"kind"`
	Context corecontent.Context `json:"context"`
}

// Generate implements content.Generator.
func (c *Client) Generate(ctx context.Context, kind corecontent.Kind, in corecontent.Context) (corecontent.Result, error) {
	body, err := json.Marshal(request{Kind: kind, Context: in})
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, body, false)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized && c.creds != nil {
		_ = resp.Body.Close()
		if resp, err = c.do(ctx, body, true); err != nil {
			return nil, err
		}
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("content %s: read response: %w", kind, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("content %s: status %d: %s", kind, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	res, err := corecontent.Decode(kind, data)
	if err != nil {
		c.log.Warnf("content %s: %v", kind, err)
		return nil, err
	}
	return res, nil
}

func (c *Client) do(ctx context.Context, body []byte, refresh bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.creds != nil:
		if refresh {
			if _, err := c.creds.ForceRefresh(ctx); err != nil {
				return nil, err
			}
		}
		if err := c.creds.SetAuthHeader(req); err != nil {
			return nil, err
		}
	case c.apiKey != "":
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return c.http.Do(req)
}
