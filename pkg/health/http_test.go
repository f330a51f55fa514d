package health

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHTTPChecker_ConnectRoot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"version":"3.6.0","commit":"abc","kafka_cluster_id":"kc"}`))
	}))
	defer server.Close()

	// URL without trailing slash is normalised to the REST root
	checker := NewHTTPChecker(server.URL)
	result := checker.Check(context.Background())

	if !result.Healthy {
		t.Errorf("Expected healthy, got unhealthy: %s", result.Message)
	}
	if result.Message != "Kafka Connect 3.6.0" {
		t.Errorf("Unexpected message %q", result.Message)
	}
	if result.Duration <= 0 {
		t.Error("Expected positive duration")
	}
}

func TestHTTPChecker_NonJSONBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	result := NewHTTPChecker(server.URL).Check(context.Background())
	if !result.Healthy {
		t.Errorf("Expected healthy, got unhealthy: %s", result.Message)
	}
	if !strings.HasPrefix(result.Message, "HTTP 200") {
		t.Errorf("Unexpected message %q", result.Message)
	}
}

func TestHTTPChecker_UnhealthyEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	result := NewHTTPChecker(server.URL).Check(context.Background())
	if result.Healthy {
		t.Errorf("Expected unhealthy, got healthy: %s", result.Message)
	}
}

func TestHTTPChecker_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "admin" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	result := NewHTTPChecker(server.URL).Check(context.Background())
	if result.Healthy {
		t.Errorf("Expected unhealthy without credentials, got healthy: %s", result.Message)
	}

	result = NewHTTPChecker(server.URL).WithBasicAuth("admin", "secret").Check(context.Background())
	if !result.Healthy {
		t.Errorf("Expected healthy with credentials, got unhealthy: %s", result.Message)
	}
}

func TestHTTPChecker_CustomStatusRange(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusFound)
	}))
	defer server.Close()

	checker := NewHTTPChecker(server.URL).WithStatusRange(200, 399)
	checker.Client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}

	result := checker.Check(context.Background())
	if !result.Healthy {
		t.Errorf("Expected healthy for 302 status, got unhealthy: %s", result.Message)
	}
}

func TestHTTPChecker_CustomHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Custom-Header") != "test-value" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	result := NewHTTPChecker(server.URL).WithHeader("X-Custom-Header", "test-value").Check(context.Background())
	if !result.Healthy {
		t.Errorf("Expected healthy with custom header, got unhealthy: %s", result.Message)
	}
}

func TestHTTPChecker_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	result := NewHTTPChecker(server.URL).WithTimeout(50 * time.Millisecond).Check(context.Background())
	if result.Healthy {
		t.Errorf("Expected unhealthy due to timeout, got healthy: %s", result.Message)
	}
}

func TestHTTPChecker_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := NewHTTPChecker(server.URL).Check(ctx)
	if result.Healthy {
		t.Errorf("Expected unhealthy due to cancelled context, got healthy: %s", result.Message)
	}
}

func TestHTTPChecker_Type(t *testing.T) {
	checker := NewHTTPChecker("http://example.com")
	if checker.Type() != CheckTypeHTTP {
		t.Errorf("Expected type %s, got %s", CheckTypeHTTP, checker.Type())
	}
	if checker.URL != "http://example.com/" {
		t.Errorf("Expected trailing slash, got %s", checker.URL)
	}
}

func TestTCPChecker(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()

	result := NewTCPChecker(addr).Check(context.Background())
	if !result.Healthy {
		t.Errorf("Expected healthy, got unhealthy: %s", result.Message)
	}

	_ = ln.Close()

	result = NewTCPChecker(addr).WithTimeout(100 * time.Millisecond).Check(context.Background())
	if result.Healthy {
		t.Errorf("Expected unhealthy after listener closed, got healthy: %s", result.Message)
	}
	if NewTCPChecker(addr).Type() != CheckTypeTCP {
		t.Error("Expected tcp type")
	}
}

func TestStatusUpdate(t *testing.T) {
	s := NewStatus()
	cfg := Config{Retries: 2}

	s.Update(Result{Healthy: false, Message: "down"}, cfg)
	if !s.Healthy {
		t.Error("Expected still healthy after first failure with 2 retries")
	}

	s.Update(Result{Healthy: false, Message: "down"}, cfg)
	if s.Healthy {
		t.Error("Expected unhealthy after reaching retries")
	}
	if s.ConsecutiveFailures != 2 {
		t.Errorf("Expected 2 failures, got %d", s.ConsecutiveFailures)
	}

	s.Update(Result{Healthy: true, Message: "up"}, cfg)
	if !s.Healthy || s.ConsecutiveFailures != 0 || s.ConsecutiveSuccesses != 1 {
		t.Errorf("Expected recovery, got %+v", s)
	}
	if s.LastMessage != "up" {
		t.Errorf("Expected last message up, got %q", s.LastMessage)
	}

	s = NewStatus()
	s.Update(Result{Healthy: false}, Config{})
	if s.Healthy {
		t.Error("Expected zero retries to behave like one")
	}
}
