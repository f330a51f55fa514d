package remediation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/connect-watcher/pkg/client"
	"github.com/cuemby/connect-watcher/pkg/config"
	"github.com/cuemby/connect-watcher/pkg/events"
	"github.com/cuemby/connect-watcher/pkg/log"
	"github.com/cuemby/connect-watcher/pkg/metrics"
	"github.com/cuemby/connect-watcher/pkg/notify"
	"github.com/cuemby/connect-watcher/pkg/types"
)

// Outcome is the terminal state of one remediation sequence
type Outcome string

const (
	// OutcomeSuccess: the connector reached RUNNING or PAUSED
	OutcomeSuccess Outcome = "success"
	// OutcomeExhausted: max attempts used without reaching a stable state
	OutcomeExhausted Outcome = "exhausted"
	// OutcomeNotified: notify-only action dispatched its alerts
	OutcomeNotified Outcome = "notified"
	// OutcomeInterrupted: shutdown was requested between attempts
	OutcomeInterrupted Outcome = "interrupted"
)

// Connector class keys read from the connector configuration, in order
var classKeys = []string{"connector.class", "class"}

// Target is the cluster a remediation runs against
type Target struct {
	Cluster string
	API     client.API
}

// Notifier delivers an alert to one channel
type Notifier interface {
	Name() string
	Dispatch(ctx context.Context, alert notify.Alert) error
}

// Sleeper waits for d. Remediation sleeps are never interrupted.
type Sleeper func(d time.Duration)

// Result describes what a remediation sequence did
type Result struct {
	Connector string
	Kind      Kind
	Outcome   Outcome
	Attempts  int
	Sleeps    []time.Duration
	State     types.State
	Escalated bool
	Notified  int
	Errors    []error
}

// Action is one configured corrective action with its retry policy.
// It holds no state between invocations and is safe for concurrent use.
type Action struct {
	kind          Kind
	waitForStatus time.Duration
	maxBackoff    time.Duration
	maxAttempts   int
	cyclePause    time.Duration
	restartTasks  bool
	onFailure     *config.OnFailureConfig
	notifiers     []Notifier

	sleep  Sleeper
	events events.Publisher
}

// Option configures an Action
type Option func(*Action)

// WithSleeper replaces time.Sleep
func WithSleeper(s Sleeper) Option {
	return func(a *Action) {
		a.sleep = s
	}
}

// WithEvents publishes remediation events to p
func WithEvents(p events.Publisher) Option {
	return func(a *Action) {
		a.events = p
	}
}

// New creates an Action from its configuration. The config is expected to
// have gone through config defaults.
func New(cfg config.ActionConfig, notifiers []Notifier, opts ...Option) (*Action, error) {
	kind, err := ParseKind(cfg.Action)
	if err != nil {
		return nil, err
	}
	if kind == KindNotifyOnly && len(notifiers) == 0 {
		return nil, fmt.Errorf("%s action requires at least one notify target", kind)
	}

	a := &Action{
		kind:          kind,
		waitForStatus: cfg.WaitForStatus.Std(),
		maxBackoff:    cfg.MaxBackoff.Std(),
		maxAttempts:   cfg.MaxAttempts,
		cyclePause:    cfg.CyclePause.Std(),
		restartTasks:  cfg.RestartTasks == nil || *cfg.RestartTasks,
		onFailure:     cfg.OnFailure,
		notifiers:     notifiers,
		sleep:         time.Sleep,
	}
	if a.maxAttempts < 1 {
		a.maxAttempts = 1
	}
	if a.maxBackoff < a.waitForStatus {
		a.maxBackoff = a.waitForStatus
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Kind returns the action kind
func (a *Action) Kind() Kind {
	return a.kind
}

// Process remediates one connector. last is the status the connector was
// classified from and is used for notification payloads. Process never
// returns an error: failures are logged, counted and reported in the Result.
//
// ctx is only checked between attempts; API calls and sleeps of the attempt
// in progress run to completion.
func (a *Action) Process(ctx context.Context, target Target, connector string, last types.StatusResult) Result {
	logger := log.WithConnector(target.Cluster, connector).With().Str("action", a.kind.String()).Logger()
	result := Result{Connector: connector, Kind: a.kind}
	if last.Found() {
		result.State = last.Status.Connector.State
	}

	callCtx := context.WithoutCancel(ctx)

	if !a.kind.Retries() {
		result.Notified = a.dispatch(callCtx, target, connector, last, "unhealthy", logger, &result)
		result.Outcome = OutcomeNotified
		a.finish(target, connector, &result, logger)
		return result
	}

	backoff := a.waitForStatus

	for result.Attempts < a.maxAttempts {
		if ctx.Err() != nil {
			result.Outcome = OutcomeInterrupted
			a.finish(target, connector, &result, logger)
			return result
		}

		result.Attempts++
		metrics.RemediationAttemptsTotal.WithLabelValues(target.Cluster, a.kind.String()).Inc()
		attemptLog := logger.With().Int("attempt", result.Attempts).Dur("backoff", backoff).Logger()

		if err := a.execute(callCtx, target.API, connector); err != nil {
			attemptLog.Warn().Err(err).Msg("Remediation action failed")
			result.Errors = append(result.Errors, err)
		}

		a.sleep(backoff)
		result.Sleeps = append(result.Sleeps, backoff)

		res, err := target.API.Status(callCtx, connector)
		switch {
		case err != nil:
			attemptLog.Warn().Err(err).Msg("Failed to read connector status after remediation")
			result.Errors = append(result.Errors, err)
		case !res.Found():
			attemptLog.Warn().Msg("Connector not found after remediation")
		default:
			last = res
			result.State = res.Status.Connector.State
			if result.State.Stable() {
				attemptLog.Info().Str("state", string(result.State)).Msg("Connector recovered")
				result.Outcome = OutcomeSuccess
				a.finish(target, connector, &result, logger)
				return result
			}
			attemptLog.Debug().Str("state", string(result.State)).Msg("Connector still unhealthy")
		}

		backoff += a.waitForStatus
		if backoff > a.maxBackoff {
			backoff = a.maxBackoff
		}
	}

	result.Outcome = OutcomeExhausted
	logger.Warn().Int("attempts", result.Attempts).Msg("Remediation exhausted")

	result.Escalated = a.escalate(callCtx, target, connector, logger, &result)
	if len(a.notifiers) > 0 {
		result.Notified = a.dispatch(callCtx, target, connector, last, "remediation exhausted", logger, &result)
	}
	a.finish(target, connector, &result, logger)
	return result
}

// execute issues the state-changing command for one attempt
func (a *Action) execute(ctx context.Context, api client.API, connector string) error {
	switch a.kind {
	case KindRestart:
		return api.Restart(ctx, connector, client.RestartOptions{
			IncludeTasks: a.restartTasks,
			OnlyFailed:   a.restartTasks,
		})
	case KindPause:
		return api.Pause(ctx, connector)
	case KindCycle:
		if err := api.Pause(ctx, connector); err != nil {
			return fmt.Errorf("cycle pause: %w", err)
		}
		a.sleep(a.cyclePause)
		if err := api.Resume(ctx, connector); err != nil {
			return fmt.Errorf("cycle resume: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("%s has no connector command", a.kind)
	}
}

// escalate raises the log level of the connector class once remediation is
// exhausted. It is a diagnostic aid and never fails the remediation.
func (a *Action) escalate(ctx context.Context, target Target, connector string, logger zerolog.Logger, result *Result) bool {
	if a.onFailure == nil || a.onFailure.LogLevel == "" {
		return false
	}

	cfg, err := target.API.ConnectorConfig(ctx, connector)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to read connector configuration for log level escalation")
		result.Errors = append(result.Errors, err)
		metrics.LogLevelEscalationsTotal.WithLabelValues(target.Cluster, "error").Inc()
		return false
	}

	class := connectorClass(cfg)
	if class == "" || (a.onFailure.ConnectorClass != "" && class != a.onFailure.ConnectorClass) {
		logger.Debug().Str("class", class).Msg("Log level escalation does not apply to connector class")
		metrics.LogLevelEscalationsTotal.WithLabelValues(target.Cluster, "skipped").Inc()
		return false
	}

	level := strings.ToUpper(a.onFailure.LogLevel)
	if err := target.API.SetLoggerLevel(ctx, class, level); err != nil {
		logger.Warn().Err(err).Str("class", class).Msg("Failed to escalate connector log level")
		result.Errors = append(result.Errors, err)
		metrics.LogLevelEscalationsTotal.WithLabelValues(target.Cluster, "error").Inc()
		return false
	}

	logger.Info().Str("class", class).Str("level", level).Msg("Escalated connector log level")
	metrics.LogLevelEscalationsTotal.WithLabelValues(target.Cluster, "applied").Inc()
	events.Emit(a.events, events.New(events.EventLogLevelEscalated, target.Cluster, connector,
		fmt.Sprintf("logger %s set to %s", class, level)).
		WithMetadata("class", class).
		WithMetadata("level", level))
	return true
}

// dispatch sends one alert per notifier and returns how many succeeded
func (a *Action) dispatch(ctx context.Context, target Target, connector string, last types.StatusResult, reason string, logger zerolog.Logger, result *Result) int {
	alert := notify.Alert{
		Cluster:   target.Cluster,
		Connector: connector,
		Action:    a.kind.String(),
		Reason:    reason,
		Status:    last.Status,
	}

	sent := 0
	for _, n := range a.notifiers {
		if err := n.Dispatch(ctx, alert); err != nil {
			logger.Error().Err(err).Str("channel", n.Name()).Msg("Failed to dispatch notification")
			result.Errors = append(result.Errors, err)
			continue
		}
		sent++
	}
	return sent
}

// finish records metrics and events for a completed sequence
func (a *Action) finish(target Target, connector string, result *Result, logger zerolog.Logger) {
	metrics.RemediationsTotal.WithLabelValues(target.Cluster, a.kind.String(), string(result.Outcome)).Inc()

	var ev *events.Event
	switch result.Outcome {
	case OutcomeSuccess:
		ev = events.New(events.EventRemediationSucceeded, target.Cluster, connector,
			fmt.Sprintf("%s recovered the connector after %d attempt(s)", a.kind, result.Attempts))
	case OutcomeExhausted:
		ev = events.New(events.EventRemediationExhausted, target.Cluster, connector,
			fmt.Sprintf("%s exhausted after %d attempt(s)", a.kind, result.Attempts))
	case OutcomeNotified:
		ev = events.New(events.EventRemediationNotified, target.Cluster, connector,
			fmt.Sprintf("notified %d of %d channel(s)", result.Notified, len(a.notifiers)))
	default:
		logger.Info().Int("attempts", result.Attempts).Msg("Remediation interrupted by shutdown")
		return
	}
	events.Emit(a.events, ev.
		WithMetadata("action", a.kind.String()).
		WithMetadata("attempts", strconv.Itoa(result.Attempts)).
		WithMetadata("state", string(result.State)))
}

func connectorClass(cfg map[string]string) string {
	for _, key := range classKeys {
		if class := cfg[key]; class != "" {
			return class
		}
	}
	return ""
}
