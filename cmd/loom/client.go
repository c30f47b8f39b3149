package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"loom/internal/config"
)

// apiClient talks to the running loomd API server.
type apiClient struct {
	base  string
	token string
	http  *http.Client
}

func newAPIClient(cfg *config.Config) *apiClient {
	return &apiClient{
		base:  "http://" + cfg.Paths.APIBind,
		token: cfg.Paths.APIToken,
		http:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *apiClient) getJSON(path string, dest any) error {
	return c.do(http.MethodGet, path, nil, dest)
}

func (c *apiClient) postJSON(path string, payload, dest any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	return c.do(http.MethodPost, path, bytes.NewReader(body), dest)
}

func (c *apiClient) do(method, path string, body io.Reader, dest any) error {
	req, err := http.NewRequest(method, c.base+path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("loomd unreachable at %s (is the daemon running?): %w", c.base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return fmt.Errorf("loomd: %s", apiErr.Error)
		}
		return fmt.Errorf("loomd: unexpected status %s", resp.Status)
	}
	if dest == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}
