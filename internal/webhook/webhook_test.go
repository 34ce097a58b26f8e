package webhook_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/petasbytes/spec-planner/internal/webhook"
)

func TestPost_SendsJSONAndReturnsStatus(t *testing.T) {
	var (
		gotMethod string
		gotCT     string
		gotReqID  string
		gotBody   map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotCT = r.Header.Get("Content-Type")
		gotReqID = r.Header.Get("X-Request-ID")
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := webhook.New(srv.URL, time.Second)
	code, err := c.Post(context.Background(), map[string]any{"title": "t", "body": "b", "labels": []string{}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if code != http.StatusAccepted {
		t.Fatalf("code = %d, want 202", code)
	}
	if gotMethod != http.MethodPost {
		t.Errorf("method = %s", gotMethod)
	}
	if gotCT != "application/json" {
		t.Errorf("content-type = %q", gotCT)
	}
	if _, err := uuid.Parse(gotReqID); err != nil {
		t.Errorf("X-Request-ID %q is not a uuid: %v", gotReqID, err)
	}
	if gotBody["title"] != "t" || gotBody["body"] != "b" {
		t.Errorf("body = %#v", gotBody)
	}
}

func TestPost_Non2xxIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	code, err := webhook.New(srv.URL, time.Second).Post(context.Background(), struct{}{})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if code != http.StatusInternalServerError {
		t.Fatalf("code = %d, want 500", code)
	}
}

func TestPost_NoRetry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if _, err := webhook.New(srv.URL, time.Second).Post(context.Background(), struct{}{}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one request, got %d", calls)
	}
}

type errTransport struct{ err error }

func (e errTransport) RoundTrip(*http.Request) (*http.Response, error) { return nil, e.err }

func TestPost_TransportError(t *testing.T) {
	c := webhook.New("http://example.invalid/hook", time.Second)
	c.HTTP.Transport = errTransport{err: errors.New("connection refused")}

	code, err := c.Post(context.Background(), struct{}{})
	if err == nil {
		t.Fatal("expected error")
	}
	if code != 0 {
		t.Fatalf("code = %d, want 0", code)
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("error should carry transport cause: %v", err)
	}
}

func TestPost_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := webhook.New(srv.URL, time.Second).Post(ctx, struct{}{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestPost_UnencodablePayload(t *testing.T) {
	_, err := webhook.New("http://127.0.0.1:0", time.Second).Post(context.Background(), map[string]any{"c": make(chan int)})
	if err == nil || !strings.Contains(err.Error(), "encode payload") {
		t.Fatalf("expected encode error, got %v", err)
	}
}

func TestNew_DefaultTimeout(t *testing.T) {
	c := webhook.New("http://x", 0)
	if c.HTTP.Timeout != webhook.DefaultTimeout {
		t.Fatalf("timeout = %v, want %v", c.HTTP.Timeout, webhook.DefaultTimeout)
	}
}
