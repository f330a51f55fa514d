package health

import (
	"github.com/cuemby/connect-watcher/pkg/types"
)

// Verdict is the coarse health of a connector
type Verdict string

const (
	// VerdictHealthy: connector and all tasks RUNNING
	VerdictHealthy Verdict = "healthy"
	// VerdictPaused: connector PAUSED
	VerdictPaused Verdict = "paused"
	// VerdictUnassigned: connector UNASSIGNED
	VerdictUnassigned Verdict = "unassigned"
	// VerdictDegraded: connector RUNNING with at least one task not RUNNING
	VerdictDegraded Verdict = "degraded"
	// VerdictFailed: connector FAILED or in any unrecognised state
	VerdictFailed Verdict = "failed"
	// VerdictMissing: status lookup failed or the connector was not found
	VerdictMissing Verdict = "missing"
)

// Policy holds the rule flags that affect classification
type Policy struct {
	IgnorePaused     bool
	IgnoreUnassigned bool
}

// Classification is the verdict for one connector in one cycle
type Classification struct {
	Verdict   Verdict
	Remediate bool
	Metrics   types.ConnectorMetrics
}

// Classify derives the verdict, remediation need and task counts of a
// connector from its status lookup
func Classify(res types.StatusResult, policy Policy) Classification {
	if !res.Found() {
		return Classification{
			Verdict:   VerdictMissing,
			Remediate: true,
			Metrics:   types.ConnectorMetrics{State: types.StateUnassigned},
		}
	}

	status := res.Status
	c := Classification{Metrics: TaskMetrics(status)}

	switch status.Connector.State {
	case types.StateRunning:
		if c.Metrics.Running == c.Metrics.Tasks {
			c.Verdict = VerdictHealthy
		} else {
			c.Verdict = VerdictDegraded
			c.Remediate = true
		}
	case types.StatePaused:
		c.Verdict = VerdictPaused
		c.Remediate = !policy.IgnorePaused
	case types.StateUnassigned:
		c.Verdict = VerdictUnassigned
		c.Remediate = !policy.IgnoreUnassigned
	default:
		c.Verdict = VerdictFailed
		c.Remediate = true
	}
	return c
}

// TaskMetrics counts the tasks of a connector by state
func TaskMetrics(status *types.ConnectorStatus) types.ConnectorMetrics {
	m := types.ConnectorMetrics{
		State: status.Connector.State,
		Tasks: len(status.Tasks),
	}
	for _, t := range status.Tasks {
		switch t.State {
		case types.StateRunning:
			m.Running++
		case types.StatePaused:
			m.Paused++
		case types.StateUnassigned:
			m.Unassigned++
		case types.StateFailed:
			m.Failed++
		}
	}
	return m
}

// Count adds the classification to the cluster counters
func (c Classification) Count(counters *types.ClusterCounters) {
	switch c.Verdict {
	case VerdictHealthy:
		counters.Running++
	case VerdictPaused:
		counters.Paused++
	case VerdictUnassigned, VerdictMissing:
		counters.Unassigned++
	case VerdictDegraded, VerdictFailed:
		counters.Failed++
	}
}
