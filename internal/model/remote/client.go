// Package remote implements the HTTP client for the GPU inference runtime.
// The runtime keeps the classifier weights resident and exposes one batch
// scoring endpoint per model, plus warm-up and health probes. This process
// never touches the accelerator directly; it only speaks this protocol.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// LabelScore is one classifier label with its probability.
type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// RuntimeHealth is the inference runtime's self-report. A CPU-only runtime
// is healthy; it just reports no accelerator.
type RuntimeHealth struct {
	Status        string `json:"status"`
	Device        string `json:"device"`
	GPUAvailable  bool   `json:"gpu_available"`
	GPUName       string `json:"gpu_name,omitempty"`
	MemoryTotalMB int64  `json:"gpu_memory_total_mb,omitempty"`
	MemoryUsedMB  int64  `json:"gpu_memory_used_mb,omitempty"`
	ModelLoaded   bool   `json:"model_loaded"`
}

type scoreRequest struct {
	Inputs []string `json:"inputs"`
}

type scoreResponse struct {
	Results [][]LabelScore `json:"results"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Client talks to one model endpoint of the inference runtime.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the model served at baseURL. Connections
// are pooled; batch scoring against a warm runtime is latency-sensitive and
// reconnecting per call would dominate small-batch latency.
func NewClient(baseURL string, connTimeout, respTimeout time.Duration) *Client {
	if connTimeout == 0 {
		connTimeout = 10 * time.Second
	}
	if respTimeout == 0 {
		respTimeout = 60 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   connTimeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: respTimeout,
				MaxIdleConns:          20,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       120 * time.Second,
				ForceAttemptHTTP2:     true,
			},
		},
	}
}

// ScoreBatch scores texts in one runtime call and returns one label-score
// list per input, in input order.
func (c *Client) ScoreBatch(ctx context.Context, texts []string) ([][]LabelScore, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(scoreRequest{Inputs: texts})
	if err != nil {
		return nil, fmt.Errorf("encode score request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/score", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build score request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("score call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("score call: %s", c.readError(resp))
	}

	var out scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode score response: %w", err)
	}
	if len(out.Results) != len(texts) {
		return nil, fmt.Errorf("score response has %d results for %d inputs", len(out.Results), len(texts))
	}
	return out.Results, nil
}

// WarmUp asks the runtime to load its weights and verify inference. The
// runtime blocks until the model is resident or loading failed.
func (c *Client) WarmUp(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/warmup", nil)
	if err != nil {
		return fmt.Errorf("build warmup request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("warmup call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("warmup call: %s", c.readError(resp))
	}
	return nil
}

// Health probes the runtime. An unreachable runtime is reported, not an
// error panic: health checks must answer even when inference cannot.
func (c *Client) Health(ctx context.Context) (RuntimeHealth, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return RuntimeHealth{}, fmt.Errorf("build health request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return RuntimeHealth{}, fmt.Errorf("health call: %w", err)
	}
	defer resp.Body.Close()

	var h RuntimeHealth
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return RuntimeHealth{}, fmt.Errorf("decode health response: %w", err)
	}
	return h, nil
}

func (c *Client) readError(resp *http.Response) string {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var e errorResponse
	if json.Unmarshal(raw, &e) == nil && e.Error != "" {
		return fmt.Sprintf("status %d: %s", resp.StatusCode, e.Error)
	}
	return fmt.Sprintf("status %d", resp.StatusCode)
}
