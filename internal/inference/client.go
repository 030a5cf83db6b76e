// Package inference is the HTTP client for the model server that hosts the
// pretrained routing models: sequence classifiers and matrix factorization.
package inference

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

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ClassifyRequest carries either chat messages (causal classifiers) or raw
// text (encoder classifiers).
type ClassifyRequest struct {
	Model    string    `json:"model,omitempty"`
	Messages []Message `json:"messages,omitempty"`
	Text     string    `json:"text,omitempty"`
}

type classifyResponse struct {
	Logits []float64 `json:"logits"`
}

type winRateRequest struct {
	Model    string `json:"model,omitempty"`
	StrongID int    `json:"strong_id"`
	WeakID   int    `json:"weak_id"`
	Prompt   string `json:"prompt"`
}

type winRateResponse struct {
	WinRate float64 `json:"win_rate"`
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) doReq(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("inference %s %s: %d %s", method, path, resp.StatusCode, string(data))
	}
	return data, nil
}

// Classify returns the raw label logits for one request.
func (c *Client) Classify(ctx context.Context, req ClassifyRequest) ([]float64, error) {
	data, err := c.doReq(ctx, http.MethodPost, "/v1/classify", req)
	if err != nil {
		return nil, err
	}
	var out classifyResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode classify response: %w", err)
	}
	if len(out.Logits) == 0 {
		return nil, fmt.Errorf("classify response contained no logits")
	}
	return out.Logits, nil
}

// PredictWinRate asks a matrix factorization model for the probability that
// strongID beats weakID on prompt.
func (c *Client) PredictWinRate(ctx context.Context, model string, strongID, weakID int, prompt string) (float64, error) {
	data, err := c.doReq(ctx, http.MethodPost, "/v1/win_rate", winRateRequest{
		Model:    model,
		StrongID: strongID,
		WeakID:   weakID,
		Prompt:   prompt,
	})
	if err != nil {
		return 0, err
	}
	var out winRateResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return 0, fmt.Errorf("decode win_rate response: %w", err)
	}
	return out.WinRate, nil
}

func (c *Client) Health(ctx context.Context) error {
	_, err := c.doReq(ctx, http.MethodGet, "/health", nil)
	return err
}
