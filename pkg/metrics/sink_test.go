package metrics

import (
	"bufio"
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/connect-watcher/pkg/types"
)

func clusterSnapshot(name string, connectors map[string]types.ConnectorMetrics) types.ClusterSnapshot {
	return types.ClusterSnapshot{
		Cluster: name,
		Healthy: true,
		Counters: types.ClusterCounters{
			Total:   len(connectors) + 1,
			Ignored: 1,
			InScope: len(connectors),
			Running: len(connectors),
		},
		Connectors: connectors,
	}
}

func TestPrometheusSinkCluster(t *testing.T) {
	sink := NewPrometheusSink()

	sink.PublishCluster(clusterSnapshot("prom-a", map[string]types.ConnectorMetrics{
		"c1": {State: types.StateRunning, Tasks: 2, Running: 2},
		"c2": {State: types.StateRunning, Tasks: 1, Running: 1},
	}))

	assert.Equal(t, 3.0, testutil.ToFloat64(ClusterConnectors.WithLabelValues("prom-a", "connectors")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ClusterConnectors.WithLabelValues("prom-a", "connectors_ignored")))
	assert.Equal(t, 2.0, testutil.ToFloat64(ConnectorTasks.WithLabelValues("prom-a", "c1", "running")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ClusterUp.WithLabelValues("prom-a")))

	// c2 disappears in the next cycle
	sink.PublishCluster(clusterSnapshot("prom-a", map[string]types.ConnectorMetrics{
		"c1": {State: types.StateRunning, Tasks: 2, Running: 1, Failed: 1},
	}))

	assert.Equal(t, 1.0, testutil.ToFloat64(ConnectorTasks.WithLabelValues("prom-a", "c1", "failed")))
	assert.False(t, ConnectorTasks.DeleteLabelValues("prom-a", "c2", "total"), "stale connector series should be gone")
}

func TestPrometheusSinkClusterDown(t *testing.T) {
	NewPrometheusSink().PublishCluster(types.ClusterSnapshot{Cluster: "prom-down", Healthy: false})
	assert.Equal(t, 0.0, testutil.ToFloat64(ClusterUp.WithLabelValues("prom-down")))
}

func TestPrometheusSinkWatcher(t *testing.T) {
	NewPrometheusSink().PublishWatcher(types.WatcherSnapshot{Clusters: 3, Healthy: 2, Unhealthy: 1})

	assert.Equal(t, 3.0, testutil.ToFloat64(Clusters.WithLabelValues("total")))
	assert.Equal(t, 2.0, testutil.ToFloat64(Clusters.WithLabelValues("healthy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(Clusters.WithLabelValues("unhealthy")))
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var docs []map[string]interface{}
	scanner := bufio.NewScanner(buf)
	for scanner.Scan() {
		var doc map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &doc))
		docs = append(docs, doc)
	}
	return docs
}

func TestEMFSinkCluster(t *testing.T) {
	var buf bytes.Buffer
	sink := NewEMFSink(EMFConfig{
		LogGroupName: "kafka/connect/watcher/metrics",
		ServiceName:  "kafka-connect-watcher",
		ServiceType:  "go",
		Output:       &buf,
		Clusters: map[string]EMFOptions{
			"prod": {Enabled: true, Namespace: "Kafka/Connect", Dimensions: map[string]string{"env": "prod"}, HighResolution: true},
			"dev":  {Enabled: false, Namespace: "Kafka/Connect"},
		},
	})
	sink.now = func() time.Time { return time.UnixMilli(1700000000000) }

	sink.PublishCluster(clusterSnapshot("prod", map[string]types.ConnectorMetrics{
		"c1": {State: types.StateRunning, Tasks: 3, Running: 2, Failed: 1},
	}))
	sink.PublishCluster(clusterSnapshot("dev", nil))
	sink.PublishCluster(clusterSnapshot("unknown", nil))

	docs := decodeLines(t, &buf)
	require.Len(t, docs, 2)

	cluster := docs[0]
	assert.Equal(t, "prod", cluster["ConnectCluster"])
	assert.Equal(t, "prod", cluster["env"])
	assert.Equal(t, "kafka-connect-watcher", cluster["ServiceName"])
	assert.Equal(t, 2.0, cluster["connectors"])
	assert.NotContains(t, cluster, "message")
	assert.NotContains(t, cluster, "level")

	aws := cluster["_aws"].(map[string]interface{})
	assert.Equal(t, 1700000000000.0, aws["Timestamp"])
	assert.Equal(t, "kafka/connect/watcher/metrics", aws["LogGroupName"])

	directive := aws["CloudWatchMetrics"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "Kafka/Connect", directive["Namespace"])
	assert.Equal(t, []interface{}{[]interface{}{"ConnectCluster", "env"}}, directive["Dimensions"])
	metricDefs := directive["Metrics"].([]interface{})
	assert.Len(t, metricDefs, 8)
	assert.Equal(t, 1.0, metricDefs[0].(map[string]interface{})["StorageResolution"])

	connector := docs[1]
	assert.Equal(t, "c1", connector["ConnectorName"])
	assert.Equal(t, 3.0, connector["tasks"])
	assert.Equal(t, 1.0, connector["failed"])
	details := connector["ConnectDetails"].(map[string]interface{})
	assert.Equal(t, "prod", details["designation"])
}

func TestEMFSinkWatcher(t *testing.T) {
	var buf bytes.Buffer
	sink := NewEMFSink(EMFConfig{
		ServiceName: "kafka-connect-watcher",
		ServiceType: "go",
		Output:      &buf,
		Watcher:     EMFOptions{Enabled: true, Namespace: "Kafka/Connect/Watcher"},
	})

	sink.PublishWatcher(types.WatcherSnapshot{Clusters: 2, Healthy: 1, Unhealthy: 1})

	docs := decodeLines(t, &buf)
	require.Len(t, docs, 1)
	assert.Equal(t, 2.0, docs[0]["clusters"])
	assert.Equal(t, 1.0, docs[0]["clusters_unhealthy"])
	assert.NotContains(t, docs[0], "ConnectDetails")

	directive := docs[0]["_aws"].(map[string]interface{})["CloudWatchMetrics"].([]interface{})[0].(map[string]interface{})
	metricDefs := directive["Metrics"].([]interface{})
	assert.NotContains(t, metricDefs[0].(map[string]interface{}), "StorageResolution")
}

func TestEMFSinkWatcherDisabled(t *testing.T) {
	var buf bytes.Buffer
	NewEMFSink(EMFConfig{Output: &buf}).PublishWatcher(types.WatcherSnapshot{Clusters: 1})
	assert.Zero(t, buf.Len())
}

type recordingSink struct {
	clusters []string
	watchers int
}

func (r *recordingSink) PublishCluster(s types.ClusterSnapshot) { r.clusters = append(r.clusters, s.Cluster) }
func (r *recordingSink) PublishWatcher(types.WatcherSnapshot)   { r.watchers++ }

func TestMultiSink(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	m := MultiSink{a, b}

	m.PublishCluster(types.ClusterSnapshot{Cluster: "x"})
	m.PublishWatcher(types.WatcherSnapshot{})

	assert.Equal(t, []string{"x"}, a.clusters)
	assert.Equal(t, []string{"x"}, b.clusters)
	assert.Equal(t, 1, a.watchers)
	assert.Equal(t, 1, b.watchers)
}

type stateSource struct {
	state string
	snap  types.WatcherSnapshot
	ok    bool
}

func (s stateSource) State() string                               { return s.state }
func (s stateSource) LastSnapshot() (types.WatcherSnapshot, bool) { return s.snap, s.ok }

func TestCollectorCollect(t *testing.T) {
	now := time.Now()
	c := NewCollector(stateSource{
		state: "running",
		snap:  types.WatcherSnapshot{CompletedAt: now.Add(-30 * time.Second)},
		ok:    true,
	}, time.Minute)
	c.now = func() time.Time { return now }

	c.collect()

	assert.Equal(t, 1.0, testutil.ToFloat64(WatcherState.WithLabelValues("running")))
	assert.Equal(t, 0.0, testutil.ToFloat64(WatcherState.WithLabelValues("draining")))
	assert.InDelta(t, 30.0, testutil.ToFloat64(LastCycleAge), 0.001)
}
