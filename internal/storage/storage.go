// Package storage uploads deliverable files to an S3-compatible object
// store behind a Supabase-style REST API. The engine only needs Upload;
// Download and Remove exist for the admin tooling.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Config struct {
	URL        string // e.g. https://storage.collabhub.dev
	APIKey     string
	Bucket     string // deliverables bucket
	HTTPClient *http.Client
}

type Client struct {
	baseURL string
	apiKey  string
	bucket  string
	http    *http.Client
}

func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("storage: URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("storage: APIKey is required")
	}
	if cfg.Bucket == "" {
		cfg.Bucket = "deliverables"
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimSuffix(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		bucket:  cfg.Bucket,
		http:    httpClient,
	}, nil
}

// Upload stores the object and returns its public URL. Implements the
// engine's FileStore: the returned URL is what gets persisted on the
// order row, so a non-nil error here must leave nothing half-written.
func (c *Client) Upload(ctx context.Context, objectPath string, data []byte, contentType string) (string, error) {
	reqURL := fmt.Sprintf("%s/storage/v1/object/%s/%s", c.baseURL, c.bucket, objectPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("storage: create request: %w", err)
	}
	c.setHeaders(req)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	if err := resp.Error(); err != nil {
		return "", err
	}
	return c.PublicURL(objectPath), nil
}

// Download fetches an object's bytes.
func (c *Client) Download(ctx context.Context, objectPath string) ([]byte, error) {
	reqURL := fmt.Sprintf("%s/storage/v1/object/%s/%s", c.baseURL, c.bucket, objectPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if err := resp.Error(); err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Remove deletes objects under the given paths.
func (c *Client) Remove(ctx context.Context, objectPaths []string) error {
	reqURL := fmt.Sprintf("%s/storage/v1/object/%s", c.baseURL, c.bucket)

	body, _ := json.Marshal(map[string][]string{"prefixes": objectPaths})
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, reqURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("storage: create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	return resp.Error()
}

// PublicURL returns the stable public URL for an object.
func (c *Client) PublicURL(objectPath string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", c.baseURL, c.bucket, objectPath)
}

type response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

func (r *response) Error() error {
	if r.StatusCode < 400 {
		return nil
	}
	var errResp struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(r.Body, &errResp); err == nil {
		if errResp.Message != "" {
			return fmt.Errorf("storage: %s", errResp.Message)
		}
		if errResp.Error != "" {
			return fmt.Errorf("storage: %s", errResp.Error)
		}
	}
	return fmt.Errorf("storage: status %d", r.StatusCode)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
}

func (c *Client) do(req *http.Request) (*response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("storage: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("storage: read response: %w", err)
	}
	return &response{StatusCode: resp.StatusCode, Body: body, Headers: resp.Header}, nil
}
