package types

import (
	"strings"
	"time"
)

// State is a connector or task state as reported by the Connect REST API
type State string

const (
	StateRunning    State = "RUNNING"
	StatePaused     State = "PAUSED"
	StateUnassigned State = "UNASSIGNED"
	StateFailed     State = "FAILED"
	StateRestarting State = "RESTARTING"
	StateStopped    State = "STOPPED"
)

// Normalize upper-cases a raw state string
func Normalize(raw string) State {
	return State(strings.ToUpper(strings.TrimSpace(raw)))
}

// Stable reports whether a remediation can stop retrying in this state
func (s State) Stable() bool {
	return s == StateRunning || s == StatePaused
}

// WorkerState is the state of a connector or one of its tasks
type WorkerState struct {
	State    State  `json:"state"`
	WorkerID string `json:"worker_id"`
	Trace    string `json:"trace,omitempty"`
}

// TaskStatus is the status of a single connector task
type TaskStatus struct {
	ID       int    `json:"id"`
	State    State  `json:"state"`
	WorkerID string `json:"worker_id"`
	Trace    string `json:"trace,omitempty"`
}

// ConnectorStatus is the body of GET /connectors/{name}/status
type ConnectorStatus struct {
	Name      string       `json:"name"`
	Connector WorkerState  `json:"connector"`
	Tasks     []TaskStatus `json:"tasks"`
	Type      string       `json:"type,omitempty"`
}

// FirstTrace returns the connector trace, or the first task trace if the
// connector itself has none
func (s *ConnectorStatus) FirstTrace() string {
	if s.Connector.Trace != "" {
		return s.Connector.Trace
	}
	for _, t := range s.Tasks {
		if t.Trace != "" {
			return t.Trace
		}
	}
	return ""
}

// StatusResult is the outcome of a status lookup. A missing connector is a
// normal outcome, not an error.
type StatusResult struct {
	Status *ConnectorStatus
}

// Found wraps a retrieved status
func Found(s *ConnectorStatus) StatusResult {
	return StatusResult{Status: s}
}

// NotFound is the result for a connector the cluster does not know about
func NotFound() StatusResult {
	return StatusResult{}
}

// Found reports whether the lookup returned a status
func (r StatusResult) Found() bool {
	return r.Status != nil
}

// ConnectorMetrics holds task counts for a single connector
type ConnectorMetrics struct {
	State      State `json:"state"`
	Tasks      int   `json:"tasks"`
	Running    int   `json:"running"`
	Paused     int   `json:"paused"`
	Unassigned int   `json:"unassigned"`
	Failed     int   `json:"failed"`
}

// ClusterCounters are the aggregate connector counters of one cluster cycle
type ClusterCounters struct {
	Total      int `json:"total"`
	Ignored    int `json:"ignored"`
	InScope    int `json:"in_scope"`
	Running    int `json:"running"`
	Paused     int `json:"paused"`
	Unassigned int `json:"unassigned"`
	Failed     int `json:"failed"`
	Remediated int `json:"remediated"`
}

// Add sums other into c
func (c *ClusterCounters) Add(other ClusterCounters) {
	c.Total += other.Total
	c.Ignored += other.Ignored
	c.InScope += other.InScope
	c.Running += other.Running
	c.Paused += other.Paused
	c.Unassigned += other.Unassigned
	c.Failed += other.Failed
	c.Remediated += other.Remediated
}

// AsMap flattens the counters for metrics sinks
func (c ClusterCounters) AsMap() map[string]int {
	return map[string]int{
		"connectors":            c.Total,
		"connectors_ignored":    c.Ignored,
		"connectors_in_scope":   c.InScope,
		"connectors_running":    c.Running,
		"connectors_paused":     c.Paused,
		"connectors_unassigned": c.Unassigned,
		"connectors_failed":     c.Failed,
		"connectors_remediated": c.Remediated,
	}
}

// RuleReport is what one evaluation rule produced for one cluster cycle
type RuleReport struct {
	Counters   ClusterCounters
	Connectors map[string]ConnectorMetrics
}

// ClusterSnapshot is the last completed cycle of a cluster
type ClusterSnapshot struct {
	Cluster     string                      `json:"cluster"`
	Healthy     bool                        `json:"healthy"`
	Error       string                      `json:"error,omitempty"`
	Counters    ClusterCounters             `json:"counters"`
	Connectors  map[string]ConnectorMetrics `json:"connectors"`
	EvaluatedAt time.Time                   `json:"evaluated_at"`
	Duration    time.Duration               `json:"duration"`
}

// WatcherSnapshot holds the watcher-level counters of one cycle
type WatcherSnapshot struct {
	CycleID     string        `json:"cycle_id"`
	Clusters    int           `json:"clusters"`
	Healthy     int           `json:"healthy"`
	Unhealthy   int           `json:"unhealthy"`
	CompletedAt time.Time     `json:"completed_at"`
	Duration    time.Duration `json:"duration"`
}
