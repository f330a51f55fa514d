package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Cluster metrics
	ClusterConnectors = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "connect_watcher_cluster_connectors",
			Help: "Connectors per cluster by disposition in the last cycle",
		},
		[]string{"cluster", "state"},
	)

	ConnectorTasks = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "connect_watcher_connector_tasks",
			Help: "Tasks per connector by state in the last cycle",
		},
		[]string{"cluster", "connector", "state"},
	)

	ClusterUp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "connect_watcher_cluster_up",
			Help: "Whether the last evaluation of the cluster succeeded (1 = up, 0 = down)",
		},
		[]string{"cluster"},
	)

	ClusterEvaluationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "connect_watcher_cluster_evaluation_duration_seconds",
			Help:    "Time taken to evaluate all rules of a cluster",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"cluster"},
	)

	// Watcher metrics
	Clusters = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "connect_watcher_clusters",
			Help: "Clusters by health in the last cycle",
		},
		[]string{"status"},
	)

	CycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "connect_watcher_cycle_duration_seconds",
			Help:    "Time taken by one watch cycle across all clusters",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	CyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "connect_watcher_cycles_total",
			Help: "Total number of completed watch cycles",
		},
	)

	// Remediation metrics
	RemediationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connect_watcher_remediations_total",
			Help: "Remediation sequences by action and outcome",
		},
		[]string{"cluster", "action", "outcome"},
	)

	RemediationAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connect_watcher_remediation_attempts_total",
			Help: "Individual remediation attempts by action",
		},
		[]string{"cluster", "action"},
	)

	LogLevelEscalationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connect_watcher_log_level_escalations_total",
			Help: "Connector logger escalations after exhausted remediation",
		},
		[]string{"cluster", "outcome"},
	)

	// Notification metrics
	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connect_watcher_notifications_total",
			Help: "Notifications by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connect_watcher_api_requests_total",
			Help: "Total number of operator API requests by route and status",
		},
		[]string{"route", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "connect_watcher_api_request_duration_seconds",
			Help:    "Operator API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

func init() {
	prometheus.MustRegister(ClusterConnectors)
	prometheus.MustRegister(ConnectorTasks)
	prometheus.MustRegister(ClusterUp)
	prometheus.MustRegister(ClusterEvaluationDuration)
	prometheus.MustRegister(Clusters)
	prometheus.MustRegister(CycleDuration)
	prometheus.MustRegister(CyclesTotal)
	prometheus.MustRegister(RemediationsTotal)
	prometheus.MustRegister(RemediationAttemptsTotal)
	prometheus.MustRegister(LogLevelEscalationsTotal)
	prometheus.MustRegister(NotificationsTotal)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
