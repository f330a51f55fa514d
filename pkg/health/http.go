package health

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPChecker probes the REST root of a Connect cluster. A healthy worker
// answers GET / with its version document.
type HTTPChecker struct {
	// URL is the REST root to check (e.g., "http://connect:8083/")
	URL string

	// Headers are custom HTTP headers to include in the request
	Headers map[string]string

	// Username and Password enable basic auth when Username is set
	Username string
	Password string

	// ExpectedStatusMin and ExpectedStatusMax bound acceptable status codes
	// (default: 200-299)
	ExpectedStatusMin int
	ExpectedStatusMax int

	// Client is the HTTP client to use (allows custom configuration)
	Client *http.Client
}

// NewHTTPChecker creates a new HTTP probe for a REST root
func NewHTTPChecker(url string) *HTTPChecker {
	if !strings.HasSuffix(url, "/") {
		url += "/"
	}
	return &HTTPChecker{
		URL:               url,
		Headers:           make(map[string]string),
		ExpectedStatusMin: 200,
		ExpectedStatusMax: 299,
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Check performs the HTTP probe
func (h *HTTPChecker) Check(ctx context.Context) Result {
	start := time.Now()
	result := func(healthy bool, format string, args ...interface{}) Result {
		return Result{
			Healthy:   healthy,
			Message:   fmt.Sprintf(format, args...),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return result(false, "failed to create request: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	for key, value := range h.Headers {
		req.Header.Set(key, value)
	}
	if h.Username != "" {
		req.SetBasicAuth(h.Username, h.Password)
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		return result(false, "request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < h.ExpectedStatusMin || resp.StatusCode > h.ExpectedStatusMax {
		return result(false, "HTTP %d %s (expected %d-%d)",
			resp.StatusCode, http.StatusText(resp.StatusCode), h.ExpectedStatusMin, h.ExpectedStatusMax)
	}

	var info struct {
		Version string `json:"version"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 16<<10))
	if err := json.Unmarshal(data, &info); err != nil || info.Version == "" {
		return result(true, "HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return result(true, "Kafka Connect %s", info.Version)
}

// Type returns the probe type
func (h *HTTPChecker) Type() CheckType {
	return CheckTypeHTTP
}

// WithHeader adds a custom HTTP header
func (h *HTTPChecker) WithHeader(key, value string) *HTTPChecker {
	h.Headers[key] = value
	return h
}

// WithBasicAuth sets basic auth credentials
func (h *HTTPChecker) WithBasicAuth(username, password string) *HTTPChecker {
	h.Username = username
	h.Password = password
	return h
}

// WithStatusRange sets the expected status code range
func (h *HTTPChecker) WithStatusRange(min, max int) *HTTPChecker {
	h.ExpectedStatusMin = min
	h.ExpectedStatusMax = max
	return h
}

// WithTimeout sets the HTTP client timeout
func (h *HTTPChecker) WithTimeout(timeout time.Duration) *HTTPChecker {
	h.Client.Timeout = timeout
	return h
}
