// Package rules evaluates one configured rule against the connectors of a
// cluster and hands the unhealthy ones to the rule's remediation actions.
package rules

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/cuemby/connect-watcher/pkg/config"
	"github.com/cuemby/connect-watcher/pkg/events"
	"github.com/cuemby/connect-watcher/pkg/health"
	"github.com/cuemby/connect-watcher/pkg/log"
	"github.com/cuemby/connect-watcher/pkg/matcher"
	"github.com/cuemby/connect-watcher/pkg/remediation"
	"github.com/cuemby/connect-watcher/pkg/types"
	"github.com/cuemby/connect-watcher/pkg/worker"
)

// Rule scans the connectors of a cluster, classifies the ones in scope and
// runs its remediation actions against the unhealthy ones
type Rule struct {
	index   int
	matcher *matcher.Matcher
	policy  health.Policy
	actions []*remediation.Action
	events  events.Publisher
	logger  zerolog.Logger
}

// New creates a rule. Invalid patterns are dropped by the matcher.
func New(cluster string, index int, cfg config.RuleConfig, actions []*remediation.Action, publisher events.Publisher) *Rule {
	return &Rule{
		index:   index,
		matcher: matcher.New(cluster, cfg.Includes(), cfg.Excludes()),
		policy: health.Policy{
			IgnorePaused:     cfg.IgnorePaused,
			IgnoreUnassigned: cfg.IgnoreUnassigned,
		},
		actions: actions,
		events:  publisher,
		logger:  log.WithCluster(cluster).With().Int("rule", index).Logger(),
	}
}

// Actions returns the configured actions in order
func (r *Rule) Actions() []*remediation.Action {
	return r.actions
}

// Summary describes a rule as it was built, after invalid patterns were dropped
type Summary struct {
	Index   int      `json:"index"`
	Include int      `json:"include_patterns"`
	Exclude int      `json:"exclude_patterns"`
	Actions []string `json:"actions"`
}

// Summary returns the active pattern counts and action kinds of the rule
func (r *Rule) Summary() Summary {
	include, exclude := r.matcher.Patterns()
	s := Summary{
		Index:   r.index,
		Include: include,
		Exclude: exclude,
		Actions: make([]string, 0, len(r.actions)),
	}
	for _, a := range r.Actions() {
		s.Actions = append(s.Actions, a.Kind().String())
	}
	return s
}

// connectorOutcome is the per-connector result produced by a worker
type connectorOutcome struct {
	classification health.Classification
	outcomes       []remediation.Outcome
}

// Execute runs one scan of the cluster. Only a failure to list connectors is
// returned; per-connector failures become classification outcomes.
func (r *Rule) Execute(ctx context.Context, target remediation.Target, pool *worker.Pool) (types.RuleReport, error) {
	report := types.RuleReport{Connectors: make(map[string]types.ConnectorMetrics)}

	names, err := target.API.ListConnectors(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list connectors: %w", err)
	}

	inScope, ignored := r.matcher.Partition(names)
	report.Counters.Total = len(names)
	report.Counters.Ignored = len(ignored)
	report.Counters.InScope = len(inScope)

	results := worker.Map(ctx, pool, inScope, func(ctx context.Context, name string) (connectorOutcome, error) {
		return r.evaluate(ctx, target, name), nil
	})

	// Fan-in: each worker owned its outcome, merged here only
	for i, res := range results {
		name := inScope[i]
		outcome := res.Value
		if res.Err != nil {
			if errors.Is(res.Err, context.Canceled) || errors.Is(res.Err, worker.ErrPoolStopped) {
				r.logger.Debug().Str("connector", name).Err(res.Err).Msg("Connector skipped during shutdown")
				continue
			}
			r.logger.Error().Str("connector", name).Err(res.Err).Msg("Connector evaluation failed")
			outcome.classification = health.Classify(types.NotFound(), r.policy)
		}

		outcome.classification.Count(&report.Counters)
		if outcome.classification.Remediate {
			report.Counters.Remediated++
		}
		report.Connectors[name] = outcome.classification.Metrics
		if len(outcome.outcomes) > 0 {
			r.logger.Debug().Str("connector", name).Interface("outcomes", outcome.outcomes).Msg("Remediation finished")
		}
	}

	r.logger.Debug().
		Int("connectors", report.Counters.Total).
		Int("ignored", report.Counters.Ignored).
		Int("running", report.Counters.Running).
		Int("failed", report.Counters.Failed).
		Msg("Rule evaluated")
	return report, nil
}

// evaluate classifies one connector and, when it needs remediation, runs
// every action against it in order on the calling worker
func (r *Rule) evaluate(ctx context.Context, target remediation.Target, name string) connectorOutcome {
	logger := r.logger.With().Str("connector", name).Logger()

	// A job that was queued before shutdown still classifies the connector
	res, err := target.API.Status(context.WithoutCancel(ctx), name)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to get connector status")
		res = types.NotFound()
	}

	c := health.Classify(res, r.policy)
	out := connectorOutcome{classification: c}
	if !c.Remediate {
		return out
	}

	logger.Info().Str("verdict", string(c.Verdict)).Str("state", string(c.Metrics.State)).Msg("Connector needs remediation")
	ev := events.New(events.EventConnectorUnhealthy, target.Cluster, name, "connector is "+string(c.Verdict)).
		WithMetadata("verdict", string(c.Verdict))
	if res.Found() {
		if trace := res.Status.FirstTrace(); trace != "" {
			line, _, _ := strings.Cut(trace, "\n")
			ev.WithMetadata("trace", line)
		}
	}
	events.Emit(r.events, ev)

	for _, action := range r.actions {
		result := action.Process(ctx, target, name, res)
		out.outcomes = append(out.outcomes, result.Outcome)
	}
	return out
}
