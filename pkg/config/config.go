// Package config loads and validates the watcher's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/connect-watcher/pkg/log"
)

// ErrInvalidConfig wraps every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

const (
	DefaultWatchInterval  = 60 * time.Second
	MinWatchInterval      = 2 * time.Second
	DefaultPort           = 8083
	DefaultClientTimeout  = 10 * time.Second
	DefaultWaitForStatus  = 5 * time.Second
	MinWaitForStatus      = 2 * time.Second
	DefaultMaxBackoff     = 60 * time.Second
	DefaultMaxAttempts    = 3
	DefaultCyclePause     = 2 * time.Second
	DefaultEMFLogGroup    = "kafka/connect/watcher/metrics"
	DefaultEMFServiceName = "kafka-connect-watcher"
	DefaultEMFServiceType = "go"
)

// Action kinds accepted in auto_correct_actions
const (
	ActionRestart    = "restart"
	ActionPause      = "pause"
	ActionCycle      = "cycle"
	ActionNotify     = "notify"
	ActionNotifyOnly = "notify-only"
)

// Probe types
const (
	ProbeHTTP = "http"
	ProbeTCP  = "tcp"
	ProbeNone = "none"
)

// Notification channel kinds, used as the prefix of notify targets
const (
	ChannelRedis   = "redis"
	ChannelWebhook = "webhook"
)

// Config is the watcher configuration. It is immutable once loaded.
type Config struct {
	WatchInterval        Duration             `yaml:"watch_interval"`
	Concurrency          int                  `yaml:"concurrency"`
	Logging              LoggingConfig        `yaml:"logging"`
	Server               ServerConfig         `yaml:"server"`
	Prometheus           PrometheusConfig     `yaml:"prometheus"`
	AWSEMF               EMFGlobalConfig      `yaml:"aws_emf"`
	NotificationChannels NotificationChannels `yaml:"notification_channels"`
	Clusters             []ClusterConfig      `yaml:"clusters"`
}

// LoggingConfig controls structured logging
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// ServerConfig controls the operator HTTP surface. An empty address disables it.
type ServerConfig struct {
	Address      string     `yaml:"address"`
	AllowOrigins StringList `yaml:"allow_origins"`
}

// PrometheusConfig toggles the Prometheus metrics sink
type PrometheusConfig struct {
	Enabled *bool `yaml:"enabled"`
}

// On reports whether the Prometheus sink is enabled (default true)
func (p PrometheusConfig) On() bool {
	return p.Enabled == nil || *p.Enabled
}

// EMFGlobalConfig holds the process-wide CloudWatch EMF settings
type EMFGlobalConfig struct {
	LogGroupName  string           `yaml:"log_group_name"`
	ServiceName   string           `yaml:"service_name"`
	ServiceType   string           `yaml:"service_type"`
	WatcherConfig EMFClusterConfig `yaml:"watcher_config"`
}

// EMFClusterConfig enables EMF documents for a cluster or for the watcher
type EMFClusterConfig struct {
	Enabled               bool              `yaml:"enabled"`
	Namespace             string            `yaml:"namespace"`
	Dimensions            map[string]string `yaml:"dimensions"`
	HighResolutionMetrics bool              `yaml:"high_resolution_metrics"`
}

// NotificationChannels groups named channels by kind
type NotificationChannels struct {
	Redis   map[string]RedisChannelConfig   `yaml:"redis"`
	Webhook map[string]WebhookChannelConfig `yaml:"webhook"`
}

// TemplateConfig overrides message templates by format with file paths
type TemplateConfig struct {
	Default string `yaml:"default"`
	Email   string `yaml:"email"`
	SMS     string `yaml:"sms"`
}

// RedisChannelConfig publishes notifications on a Redis pub/sub channel
type RedisChannelConfig struct {
	Addr         string         `yaml:"addr"`
	Username     string         `yaml:"username"`
	Password     string         `yaml:"password"`
	DB           int            `yaml:"db"`
	Channel      string         `yaml:"channel"`
	Template     TemplateConfig `yaml:"template"`
	IgnoreErrors bool           `yaml:"ignore_errors"`
}

// WebhookChannelConfig POSTs notifications to an HTTP endpoint
type WebhookChannelConfig struct {
	URL          string            `yaml:"url"`
	Headers      map[string]string `yaml:"headers"`
	Timeout      Duration          `yaml:"timeout"`
	Template     TemplateConfig    `yaml:"template"`
	IgnoreErrors bool              `yaml:"ignore_errors"`
}

// ClusterConfig describes one Connect cluster
type ClusterConfig struct {
	Name            string          `yaml:"name"`
	Hostname        string          `yaml:"hostname"`
	Port            int             `yaml:"port"`
	URL             string          `yaml:"url"`
	Authentication  *Authentication `yaml:"authentication"`
	Timeout         Duration        `yaml:"timeout"`
	Probe           ProbeConfig     `yaml:"probe"`
	Metrics         ClusterMetrics  `yaml:"metrics"`
	EvaluationRules []RuleConfig    `yaml:"evaluation_rules"`
}

// DisplayName returns the configured name or host_port, where host and port
// come from hostname and port or, when no hostname is set, from the url
func (c ClusterConfig) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	if c.Hostname == "" && c.URL != "" {
		if host, port, err := URLHostPort(c.URL); err == nil {
			return host + "_" + port
		}
	}
	return fmt.Sprintf("%s_%d", c.Hostname, c.Port)
}

// URLHostPort returns the host and port a REST url connects to. A url
// without a port uses the scheme default.
func URLHostPort(raw string) (host, port string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid cluster url: %w", err)
	}
	if u.Hostname() == "" {
		return "", "", fmt.Errorf("invalid cluster url %q: no host", raw)
	}
	port = u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}
	return u.Hostname(), port, nil
}

// Authentication holds basic auth credentials
type Authentication struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// ProbeConfig selects the reachability probe run before evaluating a cluster
type ProbeConfig struct {
	Type    string   `yaml:"type"`
	Timeout Duration `yaml:"timeout"`
}

// ClusterMetrics holds per-cluster metrics publication settings
type ClusterMetrics struct {
	AWSEMF EMFClusterConfig `yaml:"aws_emf"`
}

// RuleConfig is one evaluation rule
type RuleConfig struct {
	IncludeRegex     StringList     `yaml:"include_regex"`
	IncludeRegexes   StringList     `yaml:"include_regexes"`
	ExcludeRegex     StringList     `yaml:"exclude_regex"`
	ExcludeRegexes   StringList     `yaml:"exclude_regexes"`
	IgnorePaused     bool           `yaml:"ignore_paused"`
	IgnoreUnassigned bool           `yaml:"ignore_unassigned"`
	Actions          []ActionConfig `yaml:"auto_correct_actions"`
}

// Includes returns all include patterns in configured order
func (r RuleConfig) Includes() []string {
	return append(append([]string{}, r.IncludeRegex...), r.IncludeRegexes...)
}

// Excludes returns all exclude patterns in configured order
func (r RuleConfig) Excludes() []string {
	return append(append([]string{}, r.ExcludeRegex...), r.ExcludeRegexes...)
}

// ActionConfig is one auto-correct action
type ActionConfig struct {
	Action        string           `yaml:"action"`
	WaitForStatus Duration         `yaml:"wait_for_status"`
	MaxBackoff    Duration         `yaml:"max_backoff"`
	MaxAttempts   int              `yaml:"max_attempts"`
	CyclePause    Duration         `yaml:"cycle_pause"`
	RestartTasks  *bool            `yaml:"restart_tasks"`
	OnFailure     *OnFailureConfig `yaml:"on_failure"`
	Notify        []NotifyTarget   `yaml:"notify"`
}

// OnFailureConfig escalates a connector logger when remediation is exhausted
type OnFailureConfig struct {
	LogLevel       string `yaml:"loglevel"`
	ConnectorClass string `yaml:"connector_class"`
}

// NotifyTarget references a channel as <kind>.<name>
type NotifyTarget struct {
	Target string `yaml:"target"`
}

// Load reads, defaults, overrides and validates a configuration file
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CONNECT_WATCHER_CONFIG")
	}
	if path == "" {
		return nil, fmt.Errorf("%w: no configuration file given", ErrInvalidConfig)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config file %s not found: %w", path, err)
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse builds a configuration from YAML (or JSON) bytes
func Parse(data []byte) (*Config, error) {
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		WatchInterval: Duration(DefaultWatchInterval),
		Concurrency:   defaultConcurrency(),
		Logging:       LoggingConfig{Level: "info"},
		AWSEMF: EMFGlobalConfig{
			LogGroupName: DefaultEMFLogGroup,
			ServiceName:  DefaultEMFServiceName,
			ServiceType:  DefaultEMFServiceType,
		},
	}
}

func defaultConcurrency() int {
	if v := os.Getenv("CONCURRENT_THREADS"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			if n < 0 {
				n = -n
			}
			if n > 0 {
				return n
			}
			return 1
		}
	}
	return runtime.NumCPU()
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CONNECT_WATCHER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CONNECT_WATCHER_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("CONNECT_WATCHER_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("CONNECT_WATCHER_WATCH_INTERVAL"); v != "" {
		if d, err := ParseDuration(v); err == nil {
			cfg.WatchInterval = Duration(d)
		}
	}
	if v := os.Getenv("CONCURRENT_THREADS"); v != "" {
		cfg.Concurrency = defaultConcurrency()
	}
}

func applyDefaults(cfg *Config) {
	if cfg.WatchInterval == 0 {
		cfg.WatchInterval = Duration(DefaultWatchInterval)
	}
	if cfg.WatchInterval.Std() < MinWatchInterval {
		cfg.WatchInterval = Duration(MinWatchInterval)
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.AWSEMF.LogGroupName == "" {
		cfg.AWSEMF.LogGroupName = DefaultEMFLogGroup
	}
	if cfg.AWSEMF.ServiceName == "" {
		cfg.AWSEMF.ServiceName = DefaultEMFServiceName
	}
	if cfg.AWSEMF.ServiceType == "" {
		cfg.AWSEMF.ServiceType = DefaultEMFServiceType
	}

	for i := range cfg.Clusters {
		c := &cfg.Clusters[i]
		if c.Port == 0 {
			c.Port = DefaultPort
		}
		if c.Timeout == 0 {
			c.Timeout = Duration(DefaultClientTimeout)
		}
		if c.Probe.Type == "" {
			c.Probe.Type = ProbeHTTP
		}
		if c.Probe.Timeout == 0 {
			c.Probe.Timeout = c.Timeout
		}
		for j := range c.EvaluationRules {
			for k := range c.EvaluationRules[j].Actions {
				applyActionDefaults(&c.EvaluationRules[j].Actions[k])
			}
		}
	}
}

func applyActionDefaults(a *ActionConfig) {
	a.Action = strings.ToLower(strings.TrimSpace(a.Action))
	if a.WaitForStatus == 0 {
		a.WaitForStatus = Duration(DefaultWaitForStatus)
	}
	if a.WaitForStatus.Std() < MinWaitForStatus {
		a.WaitForStatus = Duration(MinWaitForStatus)
	}
	if a.MaxBackoff == 0 {
		a.MaxBackoff = Duration(DefaultMaxBackoff)
	}
	if a.MaxBackoff < a.WaitForStatus {
		a.MaxBackoff = a.WaitForStatus
	}
	if a.MaxAttempts < 1 {
		a.MaxAttempts = DefaultMaxAttempts
	}
	if a.CyclePause == 0 {
		a.CyclePause = Duration(DefaultCyclePause)
	}
	if a.RestartTasks == nil {
		restartTasks := true
		a.RestartTasks = &restartTasks
	}
}

// Validate checks the configuration and returns every problem found
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...)))
	}

	if _, err := log.ParseLevel(c.Logging.Level); err != nil {
		fail("logging: %v", err)
	}
	if len(c.Clusters) == 0 {
		fail("at least one cluster is required")
	}

	for name, ch := range c.NotificationChannels.Redis {
		if ch.Addr == "" {
			fail("notification_channels.redis.%s: addr is required", name)
		}
	}
	for name, ch := range c.NotificationChannels.Webhook {
		if ch.URL == "" {
			fail("notification_channels.webhook.%s: url is required", name)
		}
	}

	names := make(map[string]int)
	for i, cl := range c.Clusters {
		prefix := fmt.Sprintf("clusters[%d]", i)
		if cl.Hostname == "" && cl.URL == "" {
			fail("%s: hostname or url is required", prefix)
		}
		if cl.Port < 1 || cl.Port > 65535 {
			fail("%s: port %d out of range", prefix, cl.Port)
		}
		if prev, ok := names[cl.DisplayName()]; ok {
			fail("%s: name %q already used by clusters[%d]", prefix, cl.DisplayName(), prev)
		}
		names[cl.DisplayName()] = i

		switch cl.Probe.Type {
		case ProbeHTTP, ProbeTCP, ProbeNone:
		default:
			fail("%s: unknown probe type %q", prefix, cl.Probe.Type)
		}
		if cl.Metrics.AWSEMF.Enabled && cl.Metrics.AWSEMF.Namespace == "" {
			fail("%s: metrics.aws_emf.namespace is required when enabled", prefix)
		}

		for j, rule := range cl.EvaluationRules {
			for k, action := range rule.Actions {
				c.validateAction(fmt.Sprintf("%s.evaluation_rules[%d].auto_correct_actions[%d]", prefix, j, k), action, fail)
			}
		}
	}

	if c.AWSEMF.WatcherConfig.Enabled && c.AWSEMF.WatcherConfig.Namespace == "" {
		fail("aws_emf.watcher_config.namespace is required when enabled")
	}

	return errors.Join(errs...)
}

func (c *Config) validateAction(prefix string, a ActionConfig, fail func(string, ...interface{})) {
	switch a.Action {
	case ActionRestart, ActionPause, ActionCycle, ActionNotify, ActionNotifyOnly:
	case "":
		fail("%s: action is required", prefix)
	default:
		fail("%s: unknown action %q", prefix, a.Action)
	}

	if a.OnFailure != nil && a.OnFailure.LogLevel != "" {
		switch strings.ToUpper(a.OnFailure.LogLevel) {
		case "TRACE", "DEBUG", "INFO", "WARN", "ERROR", "FATAL":
		default:
			fail("%s: on_failure.loglevel %q is not a Connect log level", prefix, a.OnFailure.LogLevel)
		}
	}

	if (a.Action == ActionNotify || a.Action == ActionNotifyOnly) && len(a.Notify) == 0 {
		fail("%s: %s requires at least one notify target", prefix, a.Action)
	}
	for _, n := range a.Notify {
		if !c.HasChannel(n.Target) {
			fail("%s: notify target %q is not a configured channel", prefix, n.Target)
		}
	}
}

// HasChannel reports whether target (<kind>.<name>) names a configured channel
func (c *Config) HasChannel(target string) bool {
	kind, name, ok := strings.Cut(target, ".")
	if !ok || name == "" {
		return false
	}
	switch kind {
	case ChannelRedis:
		_, ok = c.NotificationChannels.Redis[name]
	case ChannelWebhook:
		_, ok = c.NotificationChannels.Webhook[name]
	default:
		ok = false
	}
	return ok
}
