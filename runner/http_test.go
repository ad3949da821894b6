package runner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTTPRunnerForwardsTask(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", req.Method)
		}
		if got := req.Header.Get("Authorization"); got != "Bearer tok-123" {
			t.Errorf("authorization = %q", got)
		}
		var p runPayload
		if err := json.NewDecoder(req.Body).Decode(&p); err != nil {
			t.Errorf("decode: %v", err)
		}
		if p.Task != "click the button" {
			t.Errorf("task = %q", p.Task)
		}
		_, _ = w.Write([]byte("step 1: clicked"))
	}))
	defer srv.Close()

	r, err := NewHTTPRunner(HTTPConfig{Endpoint: srv.URL, Token: "tok-123"})
	if err != nil {
		t.Fatalf("NewHTTPRunner: %v", err)
	}

	trace, err := r.Run(context.Background(), "click the button")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// The trace is forwarded opaquely.
	if trace != "step 1: clicked" {
		t.Fatalf("trace = %q", trace)
	}
}

func TestHTTPRunnerErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "browser pool exhausted", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	r, err := NewHTTPRunner(HTTPConfig{Endpoint: srv.URL})
	if err != nil {
		t.Fatalf("NewHTTPRunner: %v", err)
	}

	_, err = r.Run(context.Background(), "task")
	if err == nil {
		t.Fatal("expected error for 503 response")
	}
	if !strings.Contains(err.Error(), "503") {
		t.Fatalf("err = %v, want status code mentioned", err)
	}
}

func TestNewHTTPRunnerValidation(t *testing.T) {
	if _, err := NewHTTPRunner(HTTPConfig{}); err == nil {
		t.Fatal("expected error for missing endpoint")
	}
}
