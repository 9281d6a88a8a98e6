// Package upload sends captured (image, label) pairs to a dataset endpoint.
//
// Each call performs exactly one POST to <baseURL>/upload and never retries:
//
//	client, _ := upload.NewClient(upload.WithBaseURL("https://api.example.com"))
//	res, err := client.Upload(ctx, &upload.Request{
//	    Dataset:     "ds1",
//	    ImageBase64: payload,
//	    Label:       "2 0.1 0.2 0.3 0.4\n",
//	})
//
// A 200 or 201 yields the parsed JSON body. Any other status yields a nil
// Result and a nil error. Only transport and decode failures return an error.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/teslashibe/go-yolocapture/internal/httpc"
)

// Path is appended to the base URL for every upload.
const Path = "/upload"

// Client is the HTTP upload client.
type Client struct {
	url    string
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a new upload client.
func NewClient(opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = httpc.NewClient(cfg.Timeout)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		url:    strings.TrimSuffix(cfg.BaseURL, "/") + Path,
		http:   hc,
		logger: logger.With("component", "upload.client"),
	}, nil
}

// URL returns the full upload endpoint.
func (c *Client) URL() string {
	return c.url
}

// Upload posts req and interprets the response.
func (c *Client) Upload(ctx context.Context, req *Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("upload: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("upload: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.Error("upload transport failure", "url", c.url, "error", err)
		return nil, &TransportError{URL: c.url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		c.logger.Warn("upload rejected",
			"status", resp.StatusCode,
			"dataset", req.Dataset,
			"latency_ms", time.Since(start).Milliseconds())
		return nil, nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{URL: c.url, Err: fmt.Errorf("read body: %w", err)}
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, &DecodeError{StatusCode: resp.StatusCode, Err: err}
	}
	if result == nil {
		// JSON null decodes to a nil map; keep success distinct from the sentinel.
		result = Result{}
	}

	c.logger.Debug("upload stored",
		"status", resp.StatusCode,
		"dataset", req.Dataset,
		"bytes", len(body),
		"latency_ms", time.Since(start).Milliseconds())
	return result, nil
}
