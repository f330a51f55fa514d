/*
Package metrics provides Prometheus metrics, CloudWatch EMF output and health
endpoints for the watcher.

All Prometheus collectors are package-level variables registered with the
default registry in init, so any package can record a value without plumbing
a registry around:

	metrics.RemediationsTotal.WithLabelValues(cluster, "restart", "success").Inc()

	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.ClusterEvaluationDuration, cluster)

# Metrics

Cluster state:
  - connect_watcher_cluster_connectors{cluster,state}: connectors per state in the last cycle
  - connect_watcher_connector_tasks{cluster,connector,state}: tasks per state
  - connect_watcher_cluster_up{cluster}: 1 when the last evaluation succeeded
  - connect_watcher_cluster_evaluation_duration_seconds{cluster}

Watcher:
  - connect_watcher_clusters{status}: clusters per evaluation status
  - connect_watcher_cycle_duration_seconds
  - connect_watcher_cycles_total
  - connect_watcher_state{state}: 1 for the current lifecycle state
  - connect_watcher_last_cycle_age_seconds

Remediation:
  - connect_watcher_remediations_total{cluster,action,outcome}
  - connect_watcher_remediation_attempts_total{cluster,action}
  - connect_watcher_log_level_escalations_total{cluster,outcome}
  - connect_watcher_notifications_total{channel,outcome}

API:
  - connect_watcher_api_requests_total{route,status}
  - connect_watcher_api_request_duration_seconds{route}

# Sinks

The watcher publishes one snapshot per cluster and one per cycle to a Sink.
PrometheusSink sets the gauges above, EMFSink writes one Embedded Metric
Format document per line for a CloudWatch agent to pick up, and MultiSink fans
out to both. EMF is enabled per cluster, so only the clusters that ask for it
produce documents.

# Health

UpdateComponent records the health of named components ("watcher",
"cluster/<name>"). GetHealth reports unhealthy when any component is down,
GetReadiness only when a critical component is down. HealthHandler,
ReadyHandler and LivenessHandler expose both as JSON over HTTP.

Collector periodically copies the lifecycle state and last cycle time from a
StateSource into gauges.
*/
package metrics
