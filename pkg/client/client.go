package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/connect-watcher/pkg/types"
)

// ErrNotFound is returned when the cluster does not know the requested resource
var ErrNotFound = errors.New("not found")

// API is the subset of the Kafka Connect REST API the watcher uses
type API interface {
	Info(ctx context.Context) (*ServerInfo, error)
	ListConnectors(ctx context.Context) ([]string, error)
	Status(ctx context.Context, connector string) (types.StatusResult, error)
	ConnectorConfig(ctx context.Context, connector string) (map[string]string, error)
	Restart(ctx context.Context, connector string, opts RestartOptions) error
	Pause(ctx context.Context, connector string) error
	Resume(ctx context.Context, connector string) error
	SetLoggerLevel(ctx context.Context, logger, level string) error
}

// ServerInfo is the body of GET /
type ServerInfo struct {
	Version        string `json:"version"`
	Commit         string `json:"commit"`
	KafkaClusterID string `json:"kafka_cluster_id"`
}

// RestartOptions maps to the query parameters of POST /connectors/{name}/restart
type RestartOptions struct {
	IncludeTasks bool
	OnlyFailed   bool
}

// StatusError is a non-2xx response from the Connect REST API
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("connect returned %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("connect returned %d %s", e.Code, http.StatusText(e.Code))
}

// Is lets errors.Is match ErrNotFound on 404 responses
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.Code == http.StatusNotFound
}

// Config configures a Client
type Config struct {
	// URL overrides Hostname and Port when set
	URL      string
	Hostname string
	Port     int
	Username string
	Password string
	Timeout  time.Duration

	// HTTPClient replaces the default client (tests use it to stub transports)
	HTTPClient *http.Client
}

// BaseURL returns the REST root for the configuration
func (c Config) BaseURL() string {
	if c.URL != "" {
		return strings.TrimRight(c.URL, "/")
	}
	return "http://" + c.Hostname + ":" + strconv.Itoa(c.Port)
}

// Client is an HTTP client for one Kafka Connect cluster
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
}

// New creates a Client
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    cfg.BaseURL(),
		username:   cfg.Username,
		password:   cfg.Password,
		httpClient: httpClient,
	}
}

// BaseURL returns the REST root this client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Info returns the worker version information
func (c *Client) Info(ctx context.Context) (*ServerInfo, error) {
	var info ServerInfo
	if err := c.do(ctx, http.MethodGet, "/", nil, nil, &info); err != nil {
		return nil, fmt.Errorf("failed to get server info: %w", err)
	}
	return &info, nil
}

// ListConnectors returns the names of all connectors
func (c *Client) ListConnectors(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.do(ctx, http.MethodGet, "/connectors", nil, nil, &names); err != nil {
		return nil, fmt.Errorf("failed to list connectors: %w", err)
	}
	return names, nil
}

// Status returns the connector and task states. A 404 is NotFound, not an error.
func (c *Client) Status(ctx context.Context, connector string) (types.StatusResult, error) {
	var status types.ConnectorStatus
	err := c.do(ctx, http.MethodGet, connectorPath(connector, "status"), nil, nil, &status)
	if errors.Is(err, ErrNotFound) {
		return types.NotFound(), nil
	}
	if err != nil {
		return types.StatusResult{}, fmt.Errorf("failed to get status of %s: %w", connector, err)
	}

	status.Connector.State = types.Normalize(string(status.Connector.State))
	for i := range status.Tasks {
		status.Tasks[i].State = types.Normalize(string(status.Tasks[i].State))
	}
	if status.Name == "" {
		status.Name = connector
	}
	return types.Found(&status), nil
}

// ConnectorConfig returns the connector configuration
func (c *Client) ConnectorConfig(ctx context.Context, connector string) (map[string]string, error) {
	var cfg map[string]string
	if err := c.do(ctx, http.MethodGet, connectorPath(connector, "config"), nil, nil, &cfg); err != nil {
		return nil, fmt.Errorf("failed to get config of %s: %w", connector, err)
	}
	return cfg, nil
}

// Restart restarts the connector and optionally its tasks
func (c *Client) Restart(ctx context.Context, connector string, opts RestartOptions) error {
	query := url.Values{}
	if opts.IncludeTasks {
		query.Set("includeTasks", "true")
	}
	if opts.OnlyFailed {
		query.Set("onlyFailed", "true")
	}
	if err := c.do(ctx, http.MethodPost, connectorPath(connector, "restart"), query, nil, nil); err != nil {
		return fmt.Errorf("failed to restart %s: %w", connector, err)
	}
	return nil
}

// Pause pauses the connector and its tasks
func (c *Client) Pause(ctx context.Context, connector string) error {
	if err := c.do(ctx, http.MethodPut, connectorPath(connector, "pause"), nil, nil, nil); err != nil {
		return fmt.Errorf("failed to pause %s: %w", connector, err)
	}
	return nil
}

// Resume resumes a paused connector
func (c *Client) Resume(ctx context.Context, connector string) error {
	if err := c.do(ctx, http.MethodPut, connectorPath(connector, "resume"), nil, nil, nil); err != nil {
		return fmt.Errorf("failed to resume %s: %w", connector, err)
	}
	return nil
}

// SetLoggerLevel changes a logger level through the admin API
func (c *Client) SetLoggerLevel(ctx context.Context, logger, level string) error {
	body := map[string]string{"level": strings.ToUpper(level)}
	if err := c.do(ctx, http.MethodPut, "/admin/loggers/"+url.PathEscape(logger), nil, body, nil); err != nil {
		return fmt.Errorf("failed to set %s logger level: %w", logger, err)
	}
	return nil
}

func connectorPath(connector, suffix string) string {
	return "/connectors/" + url.PathEscape(connector) + "/" + suffix
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var payload struct {
		ErrorCode int    `json:"error_code"`
		Message   string `json:"message"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &payload); err != nil || payload.Message == "" {
		payload.Message = strings.TrimSpace(string(data))
	}
	return &StatusError{Code: resp.StatusCode, Message: payload.Message}
}
