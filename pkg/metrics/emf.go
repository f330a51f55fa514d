package metrics

import (
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/connect-watcher/pkg/types"
)

// EMFOptions enables CloudWatch Embedded Metric Format documents for one
// cluster (or for the watcher itself)
type EMFOptions struct {
	Enabled        bool
	Namespace      string
	Dimensions     map[string]string
	HighResolution bool
}

// EMFConfig holds the process-wide EMF metadata
type EMFConfig struct {
	LogGroupName string
	ServiceName  string
	ServiceType  string
	Output       io.Writer
	Watcher      EMFOptions
	Clusters     map[string]EMFOptions
}

// EMFSink writes one EMF JSON document per line. A CloudWatch agent (or
// Lambda/ECS log driver) tailing the output turns them into metrics.
type EMFSink struct {
	cfg    EMFConfig
	mu     sync.Mutex
	writer zerolog.Logger
	now    func() time.Time
}

// NewEMFSink creates an EMF sink. Output defaults to stdout.
func NewEMFSink(cfg EMFConfig) *EMFSink {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	return &EMFSink{
		cfg:    cfg,
		writer: zerolog.New(out),
		now:    time.Now,
	}
}

type emfMetric struct {
	Name              string `json:"Name"`
	Unit              string `json:"Unit"`
	StorageResolution int    `json:"StorageResolution,omitempty"`
}

type emfDirective struct {
	Namespace  string      `json:"Namespace"`
	Dimensions [][]string  `json:"Dimensions"`
	Metrics    []emfMetric `json:"Metrics"`
}

type emfMetadata struct {
	Timestamp         int64          `json:"Timestamp"`
	LogGroupName      string         `json:"LogGroupName,omitempty"`
	CloudWatchMetrics []emfDirective `json:"CloudWatchMetrics"`
}

// PublishCluster implements Sink. It writes one cluster document and one
// document per connector.
func (s *EMFSink) PublishCluster(snapshot types.ClusterSnapshot) {
	opts, ok := s.cfg.Clusters[snapshot.Cluster]
	if !ok || !opts.Enabled {
		return
	}

	dims := mergeDimensions(opts.Dimensions, map[string]string{"ConnectCluster": snapshot.Cluster})
	s.write(opts, dims, snapshot.Cluster, snapshot.Counters.AsMap())

	names := make([]string, 0, len(snapshot.Connectors))
	for name := range snapshot.Connectors {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		m := snapshot.Connectors[name]
		connDims := mergeDimensions(opts.Dimensions, map[string]string{
			"ConnectCluster": snapshot.Cluster,
			"ConnectorName":  name,
		})
		s.write(opts, connDims, snapshot.Cluster, map[string]int{
			"tasks":      m.Tasks,
			"running":    m.Running,
			"paused":     m.Paused,
			"unassigned": m.Unassigned,
			"failed":     m.Failed,
		})
	}
}

// PublishWatcher implements Sink
func (s *EMFSink) PublishWatcher(snapshot types.WatcherSnapshot) {
	opts := s.cfg.Watcher
	if !opts.Enabled {
		return
	}
	dims := mergeDimensions(opts.Dimensions, map[string]string{"ServiceName": s.cfg.ServiceName})
	s.write(opts, dims, "", map[string]int{
		"clusters":           snapshot.Clusters,
		"clusters_healthy":   snapshot.Healthy,
		"clusters_unhealthy": snapshot.Unhealthy,
	})
}

func (s *EMFSink) write(opts EMFOptions, dims map[string]string, designation string, values map[string]int) {
	keys := make([]string, 0, len(dims))
	for k := range dims {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	resolution := 0
	if opts.HighResolution {
		resolution = 1
	}
	metricDefs := make([]emfMetric, 0, len(names))
	for _, name := range names {
		metricDefs = append(metricDefs, emfMetric{Name: name, Unit: "Count", StorageResolution: resolution})
	}

	meta := emfMetadata{
		Timestamp:    s.now().UnixMilli(),
		LogGroupName: s.cfg.LogGroupName,
		CloudWatchMetrics: []emfDirective{{
			Namespace:  opts.Namespace,
			Dimensions: [][]string{keys},
			Metrics:    metricDefs,
		}},
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	event := s.writer.Log().
		Interface("_aws", meta).
		Str("ServiceName", s.cfg.ServiceName).
		Str("ServiceType", s.cfg.ServiceType)
	if designation != "" {
		event = event.Dict("ConnectDetails", zerolog.Dict().Str("designation", designation))
	}
	for _, k := range keys {
		if k == "ServiceName" || k == "ServiceType" {
			continue
		}
		event = event.Str(k, dims[k])
	}
	for _, name := range names {
		event = event.Int(name, values[name])
	}
	event.Msg("")
}

func mergeDimensions(base, extra map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
