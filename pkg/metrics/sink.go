package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cuemby/connect-watcher/pkg/types"
)

// Sink consumes per-cycle snapshots. Implementations must not block the
// watcher and swallow their own failures.
type Sink interface {
	PublishCluster(snapshot types.ClusterSnapshot)
	PublishWatcher(snapshot types.WatcherSnapshot)
}

// MultiSink fans snapshots out to several sinks in order
type MultiSink []Sink

// PublishCluster implements Sink
func (m MultiSink) PublishCluster(snapshot types.ClusterSnapshot) {
	for _, s := range m {
		s.PublishCluster(snapshot)
	}
}

// PublishWatcher implements Sink
func (m MultiSink) PublishWatcher(snapshot types.WatcherSnapshot) {
	for _, s := range m {
		s.PublishWatcher(snapshot)
	}
}

// PrometheusSink exposes snapshots through the package collectors
type PrometheusSink struct{}

// NewPrometheusSink creates a sink backed by the registered collectors
func NewPrometheusSink() *PrometheusSink {
	return &PrometheusSink{}
}

// PublishCluster implements Sink
func (p *PrometheusSink) PublishCluster(snapshot types.ClusterSnapshot) {
	for state, value := range snapshot.Counters.AsMap() {
		ClusterConnectors.WithLabelValues(snapshot.Cluster, state).Set(float64(value))
	}

	// Connectors deleted since the previous cycle must not linger
	ConnectorTasks.DeletePartialMatch(prometheus.Labels{"cluster": snapshot.Cluster})
	for name, m := range snapshot.Connectors {
		ConnectorTasks.WithLabelValues(snapshot.Cluster, name, "total").Set(float64(m.Tasks))
		ConnectorTasks.WithLabelValues(snapshot.Cluster, name, "running").Set(float64(m.Running))
		ConnectorTasks.WithLabelValues(snapshot.Cluster, name, "paused").Set(float64(m.Paused))
		ConnectorTasks.WithLabelValues(snapshot.Cluster, name, "unassigned").Set(float64(m.Unassigned))
		ConnectorTasks.WithLabelValues(snapshot.Cluster, name, "failed").Set(float64(m.Failed))
	}

	up := 0.0
	if snapshot.Healthy {
		up = 1
	}
	ClusterUp.WithLabelValues(snapshot.Cluster).Set(up)
}

// PublishWatcher implements Sink
func (p *PrometheusSink) PublishWatcher(snapshot types.WatcherSnapshot) {
	Clusters.WithLabelValues("total").Set(float64(snapshot.Clusters))
	Clusters.WithLabelValues("healthy").Set(float64(snapshot.Healthy))
	Clusters.WithLabelValues("unhealthy").Set(float64(snapshot.Unhealthy))
}
