package runner

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

const defaultRunTimeout = 10 * time.Minute

// HTTPRunner forwards tasks to the browser-runner service over HTTP and
// returns its response body as the opaque trace.
type HTTPRunner struct {
	endpoint string
	token    string
	client   *http.Client
}

type HTTPConfig struct {
	Endpoint string
	// Token, when set, is sent as a bearer token.
	Token   string
	Timeout time.Duration
}

func NewHTTPRunner(cfg HTTPConfig) (*HTTPRunner, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("missing runner endpoint")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRunTimeout
	}
	return &HTTPRunner{
		endpoint: endpoint,
		token:    strings.TrimSpace(cfg.Token),
		client:   &http.Client{Timeout: timeout},
	}, nil
}

type runPayload struct {
	Task string `json:"task"`
}

func (r *HTTPRunner) Run(ctx context.Context, description string) (string, error) {
	body, err := json.Marshal(runPayload{Task: description})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("runner request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return "", fmt.Errorf("runner response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("runner returned %d: %s", resp.StatusCode, snippet(raw))
	}
	return string(raw), nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
