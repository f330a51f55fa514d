// Package cluster holds the per-cluster state of the watcher: its REST
// client, reachability probe, rules and the snapshot of the last evaluation.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/connect-watcher/pkg/client"
	"github.com/cuemby/connect-watcher/pkg/config"
	"github.com/cuemby/connect-watcher/pkg/events"
	"github.com/cuemby/connect-watcher/pkg/health"
	"github.com/cuemby/connect-watcher/pkg/log"
	"github.com/cuemby/connect-watcher/pkg/metrics"
	"github.com/cuemby/connect-watcher/pkg/notify"
	"github.com/cuemby/connect-watcher/pkg/remediation"
	"github.com/cuemby/connect-watcher/pkg/rules"
	"github.com/cuemby/connect-watcher/pkg/types"
	"github.com/cuemby/connect-watcher/pkg/worker"
)

// ErrUnreachable is returned when the reachability probe fails
var ErrUnreachable = errors.New("cluster unreachable")

// Handle is the in-memory model of one monitored Connect cluster
type Handle struct {
	name  string
	api   client.API
	rules []*rules.Rule

	probe       health.Checker
	probeConfig health.Config

	mu          sync.RWMutex
	probeStatus *health.Status
	snapshot    types.ClusterSnapshot
	evaluated   bool

	events events.Publisher
	logger zerolog.Logger
}

// Option configures a Handle
type Option func(*options)

type options struct {
	api     client.API
	probe   health.Checker
	sleeper remediation.Sleeper
	events  events.Publisher
}

// WithAPI replaces the REST client built from the configuration
func WithAPI(api client.API) Option {
	return func(o *options) {
		o.api = api
	}
}

// WithProbe replaces the probe built from the configuration
func WithProbe(probe health.Checker) Option {
	return func(o *options) {
		o.probe = probe
	}
}

// WithSleeper replaces the remediation backoff sleeper
func WithSleeper(s remediation.Sleeper) Option {
	return func(o *options) {
		o.sleeper = s
	}
}

// WithEvents publishes cluster and remediation events to p
func WithEvents(p events.Publisher) Option {
	return func(o *options) {
		o.events = p
	}
}

// Resolver resolves notify targets to channels
type Resolver interface {
	Resolve(names ...string) ([]*notify.Target, error)
}

// New builds a cluster handle with its rules and actions from configuration
func New(cfg config.ClusterConfig, resolver Resolver, opts ...Option) (*Handle, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	name := cfg.DisplayName()
	h := &Handle{
		name:        name,
		api:         o.api,
		probe:       o.probe,
		probeConfig: health.Config{Timeout: cfg.Probe.Timeout.Std(), Retries: 1},
		probeStatus: health.NewStatus(),
		events:      o.events,
		logger:      log.WithCluster(name),
	}

	clientCfg := client.Config{
		URL:      cfg.URL,
		Hostname: cfg.Hostname,
		Port:     cfg.Port,
		Timeout:  cfg.Timeout.Std(),
	}
	if cfg.Authentication != nil {
		clientCfg.Username = cfg.Authentication.Username
		clientCfg.Password = cfg.Authentication.Password
	}
	if h.api == nil {
		h.api = client.New(clientCfg)
	}
	if h.probe == nil {
		probe, err := newProbe(cfg.Probe, clientCfg)
		if err != nil {
			return nil, fmt.Errorf("cluster %s: %w", name, err)
		}
		h.probe = probe
	}

	actionOpts := []remediation.Option{remediation.WithEvents(o.events)}
	if o.sleeper != nil {
		actionOpts = append(actionOpts, remediation.WithSleeper(o.sleeper))
	}

	for i, rc := range cfg.EvaluationRules {
		actions := make([]*remediation.Action, 0, len(rc.Actions))
		for j, ac := range rc.Actions {
			notifiers, err := resolveNotifiers(resolver, ac.Notify)
			if err != nil {
				return nil, fmt.Errorf("cluster %s rule %d action %d: %w", name, i, j, err)
			}
			action, err := remediation.New(ac, notifiers, actionOpts...)
			if err != nil {
				return nil, fmt.Errorf("cluster %s rule %d action %d: %w", name, i, j, err)
			}
			actions = append(actions, action)
		}
		h.rules = append(h.rules, rules.New(name, i, rc, actions, o.events))
	}

	return h, nil
}

func resolveNotifiers(resolver Resolver, targets []config.NotifyTarget) ([]remediation.Notifier, error) {
	if len(targets) == 0 {
		return nil, nil
	}
	if resolver == nil {
		return nil, notify.ErrUnknownChannel
	}

	names := make([]string, 0, len(targets))
	for _, t := range targets {
		names = append(names, t.Target)
	}
	resolved, err := resolver.Resolve(names...)
	if err != nil {
		return nil, err
	}

	notifiers := make([]remediation.Notifier, 0, len(resolved))
	for _, t := range resolved {
		notifiers = append(notifiers, t)
	}
	return notifiers, nil
}

// newProbe returns nil when probing is disabled
func newProbe(cfg config.ProbeConfig, clientCfg client.Config) (health.Checker, error) {
	timeout := cfg.Timeout.Std()
	switch cfg.Type {
	case config.ProbeNone:
		return nil, nil
	case config.ProbeTCP:
		address, err := dialAddress(clientCfg)
		if err != nil {
			return nil, err
		}
		checker := health.NewTCPChecker(address)
		if timeout > 0 {
			checker.WithTimeout(timeout)
		}
		return checker, nil
	default:
		checker := health.NewHTTPChecker(clientCfg.BaseURL())
		if clientCfg.Username != "" {
			checker.WithBasicAuth(clientCfg.Username, clientCfg.Password)
		}
		if timeout > 0 {
			checker.WithTimeout(timeout)
		}
		return checker, nil
	}
}

// dialAddress derives host:port from the REST root
func dialAddress(cfg client.Config) (string, error) {
	host, port, err := config.URLHostPort(cfg.BaseURL())
	if err != nil {
		return "", err
	}
	return net.JoinHostPort(host, port), nil
}

// Name returns the cluster display name
func (h *Handle) Name() string {
	return h.name
}

// API returns the connector management client of the cluster
func (h *Handle) API() client.API {
	return h.api
}

// Rules returns the evaluation rules in configured order
func (h *Handle) Rules() []*rules.Rule {
	return h.rules
}

// Evaluate probes the cluster, runs every rule and replaces the snapshot.
// An error means the cluster is unhealthy for this cycle.
func (h *Handle) Evaluate(ctx context.Context, pool *worker.Pool) (types.ClusterSnapshot, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.ClusterEvaluationDuration, h.name)

	snapshot := types.ClusterSnapshot{
		Cluster:    h.name,
		Connectors: make(map[string]types.ConnectorMetrics),
	}

	if err := h.checkReachable(ctx); err != nil {
		return h.fail(snapshot, timer, err), err
	}

	target := remediation.Target{Cluster: h.name, API: h.api}
	var errs []error
	for i, rule := range h.rules {
		report, err := rule.Execute(ctx, target, pool)
		if err != nil {
			h.logger.Error().Err(err).Int("rule", i).Msg("Evaluation rule failed")
			errs = append(errs, fmt.Errorf("rule %d: %w", i, err))
			continue
		}
		snapshot.Counters.Add(report.Counters)
		for name, m := range report.Connectors {
			snapshot.Connectors[name] = m
		}
	}

	if err := errors.Join(errs...); err != nil {
		events.Emit(h.events, events.New(events.EventClusterFailed, h.name, "", err.Error()))
		return h.fail(snapshot, timer, err), err
	}

	snapshot.Healthy = true
	snapshot.EvaluatedAt = time.Now()
	snapshot.Duration = timer.Duration()
	h.store(snapshot)
	metrics.UpdateComponent(h.componentName(), true, "")

	h.logger.Info().
		Int("connectors", snapshot.Counters.Total).
		Int("running", snapshot.Counters.Running).
		Int("failed", snapshot.Counters.Failed).
		Int("unassigned", snapshot.Counters.Unassigned).
		Dur("duration", snapshot.Duration).
		Msg("Cluster evaluated")
	return snapshot, nil
}

// RecordFailure marks the cluster unhealthy after a failure outside Evaluate,
// such as a recovered panic
func (h *Handle) RecordFailure(err error) types.ClusterSnapshot {
	snapshot := types.ClusterSnapshot{
		Cluster:     h.name,
		Error:       err.Error(),
		Connectors:  map[string]types.ConnectorMetrics{},
		EvaluatedAt: time.Now(),
	}
	h.store(snapshot)
	metrics.UpdateComponent(h.componentName(), false, err.Error())
	return snapshot
}

func (h *Handle) checkReachable(ctx context.Context) error {
	if h.probe == nil {
		return nil
	}

	probeCtx := ctx
	if h.probeConfig.Timeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, h.probeConfig.Timeout)
		defer cancel()
	}
	result := h.probe.Check(probeCtx)

	h.mu.Lock()
	h.probeStatus.Update(result, h.probeConfig)
	reachable := h.probeStatus.Healthy
	h.mu.Unlock()

	if reachable {
		h.logger.Debug().Str("probe", string(h.probe.Type())).Str("message", result.Message).Msg("Cluster reachable")
		return nil
	}

	events.Emit(h.events, events.New(events.EventClusterUnreachable, h.name, "", result.Message).
		WithMetadata("probe", string(h.probe.Type())))
	return fmt.Errorf("%w: %s", ErrUnreachable, result.Message)
}

func (h *Handle) fail(snapshot types.ClusterSnapshot, timer *metrics.Timer, err error) types.ClusterSnapshot {
	snapshot.Healthy = false
	snapshot.Error = err.Error()
	snapshot.EvaluatedAt = time.Now()
	snapshot.Duration = timer.Duration()
	h.store(snapshot)
	metrics.UpdateComponent(h.componentName(), false, err.Error())

	h.logger.Warn().Err(err).Msg("Cluster unhealthy")
	return snapshot
}

func (h *Handle) store(snapshot types.ClusterSnapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.snapshot = snapshot
	h.evaluated = true
}

func (h *Handle) componentName() string {
	return "cluster/" + h.name
}

// Snapshot returns the last cycle's snapshot, false before the first cycle
func (h *Handle) Snapshot() (types.ClusterSnapshot, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s := h.snapshot
	if s.Connectors != nil {
		s.Connectors = make(map[string]types.ConnectorMetrics, len(h.snapshot.Connectors))
		for k, v := range h.snapshot.Connectors {
			s.Connectors[k] = v
		}
	}
	return s, h.evaluated
}

// ProbeStatus returns a copy of the reachability status, nil when probing is
// disabled
func (h *Handle) ProbeStatus() *health.Status {
	if h.probe == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	s := *h.probeStatus
	return &s
}
