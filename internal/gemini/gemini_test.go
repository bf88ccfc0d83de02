package gemini

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestGenerate_Success(t *testing.T) {
	var gotPath, gotKey, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"Hi! How can I help?"}]},"finishReason":"STOP"}]}`)
	}))
	defer srv.Close()

	c := NewClient("test-key", srv.URL, "gemini-flash-latest")
	res, err := c.Generate(context.Background(), "Hello", 2*time.Second)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if res.Text != "Hi! How can I help?" {
		t.Errorf("unexpected text: %q", res.Text)
	}
	if res.FinishReason != FinishStop {
		t.Errorf("unexpected finish reason: %q", res.FinishReason)
	}
	if gotPath != "/models/gemini-flash-latest:generateContent" {
		t.Errorf("unexpected path: %s", gotPath)
	}
	if gotKey != "test-key" {
		t.Errorf("unexpected api key header: %q", gotKey)
	}
	if !strings.Contains(gotBody, `"contents":[{"parts":[{"text":"Hello"}]}]`) {
		t.Errorf("unexpected request body: %s", gotBody)
	}
}

func TestGenerate_MissingTextUsesPlaceholder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[]},"finishReason":"STOP"}]}`)
	}))
	defer srv.Close()

	c := NewClient("k", srv.URL, "m")
	res, err := c.Generate(context.Background(), "Hello", 2*time.Second)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if res.Text != NoResponseText {
		t.Errorf("expected placeholder, got %q", res.Text)
	}
}

func TestGenerate_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"Quota exceeded"}}`)
	}))
	defer srv.Close()

	c := NewClient("k", srv.URL, "m")
	_, err := c.Generate(context.Background(), "Hello", 2*time.Second)

	var provErr *Error
	if !errors.As(err, &provErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if provErr.Kind != KindRateLimited {
		t.Errorf("expected rate_limited, got %s", provErr.Kind)
	}
	if provErr.Message != "Quota exceeded" {
		t.Errorf("expected provider message, got %q", provErr.Message)
	}
}

func TestGenerate_NotFoundMeansMisconfiguredModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":{"message":"model not found"}}`)
	}))
	defer srv.Close()

	c := NewClient("k", srv.URL, "no-such-model")
	_, err := c.Generate(context.Background(), "Hello", 2*time.Second)

	var provErr *Error
	if !errors.As(err, &provErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if provErr.Kind != KindNotConfigured {
		t.Errorf("expected not_configured, got %s", provErr.Kind)
	}
}

func TestGenerate_UpstreamErrorCarriesStatusAndMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":{"message":"backend blew up"}}`)
	}))
	defer srv.Close()

	c := NewClient("k", srv.URL, "m")
	_, err := c.Generate(context.Background(), "Hello", 2*time.Second)

	var provErr *Error
	if !errors.As(err, &provErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if provErr.Kind != KindUpstream || provErr.Status != 500 {
		t.Errorf("unexpected classification: kind=%s status=%d", provErr.Kind, provErr.Status)
	}
	if provErr.Message != "backend blew up" {
		t.Errorf("unexpected message: %q", provErr.Message)
	}
}

func TestGenerate_UpstreamErrorWithoutNestedMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, `oops`)
	}))
	defer srv.Close()

	c := NewClient("k", srv.URL, "m")
	_, err := c.Generate(context.Background(), "Hello", 2*time.Second)

	var provErr *Error
	if !errors.As(err, &provErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if provErr.Message != "the AI service responded with an error" {
		t.Errorf("expected generic message, got %q", provErr.Message)
	}
}

func TestGenerate_EmptyCandidatesIsInterruptedUnknown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"candidates":[]}`)
	}))
	defer srv.Close()

	c := NewClient("k", srv.URL, "m")
	_, err := c.Generate(context.Background(), "Hello", 2*time.Second)

	var provErr *Error
	if !errors.As(err, &provErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if provErr.Kind != KindInterrupted || provErr.Reason != "UNKNOWN" {
		t.Errorf("unexpected classification: kind=%s reason=%s", provErr.Kind, provErr.Reason)
	}
}

func TestGenerate_NonStopFinishReasonIsInterrupted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"partial"}]},"finishReason":"SAFETY"}]}`)
	}))
	defer srv.Close()

	c := NewClient("k", srv.URL, "m")
	_, err := c.Generate(context.Background(), "Hello", 2*time.Second)

	var provErr *Error
	if !errors.As(err, &provErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if provErr.Kind != KindInterrupted || provErr.Reason != "SAFETY" {
		t.Errorf("unexpected classification: kind=%s reason=%s", provErr.Kind, provErr.Reason)
	}
}

func TestGenerate_TimeoutIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = io.WriteString(w, `{"candidates":[]}`)
	}))
	defer srv.Close()

	c := NewClient("k", srv.URL, "m")
	_, err := c.Generate(context.Background(), "Hello", 20*time.Millisecond)

	var provErr *Error
	if !errors.As(err, &provErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if provErr.Kind != KindUnavailable {
		t.Errorf("expected unavailable, got %s", provErr.Kind)
	}
}

func TestGenerate_ConnectionRefusedIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewClient("k", srv.URL, "m")
	_, err := c.Generate(context.Background(), "Hello", 2*time.Second)

	var provErr *Error
	if !errors.As(err, &provErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if provErr.Kind != KindUnavailable {
		t.Errorf("expected unavailable, got %s", provErr.Kind)
	}
}
