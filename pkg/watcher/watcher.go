package watcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/connect-watcher/pkg/cluster"
	"github.com/cuemby/connect-watcher/pkg/events"
	"github.com/cuemby/connect-watcher/pkg/log"
	"github.com/cuemby/connect-watcher/pkg/metrics"
	"github.com/cuemby/connect-watcher/pkg/types"
	"github.com/cuemby/connect-watcher/pkg/worker"
)

// State is the run state of the watcher
type State string

const (
	StateInitializing State = "initializing"
	StateRunning      State = "running"
	StateDraining     State = "draining"
	StateStopped      State = "stopped"
)

// component name registered with the process health checker
const healthComponent = "watcher"

// Config configures a Watcher
type Config struct {
	// Interval is the pause between the end of a cycle and the next one
	Interval time.Duration

	// Concurrency sizes the worker pools, minimum 1
	Concurrency int

	Sink   metrics.Sink
	Events events.Publisher
}

// Watcher drives periodic evaluation cycles over every cluster
type Watcher struct {
	clusters []*cluster.Handle
	byName   map[string]*cluster.Handle
	interval time.Duration

	// Cluster jobs and connector jobs run on separate pools so a cluster
	// job waiting on its connectors never starves them of workers.
	clusterPool   *worker.Pool
	connectorPool *worker.Pool

	sink   metrics.Sink
	events events.Publisher

	mu      sync.RWMutex
	state   State
	last    types.WatcherSnapshot
	hasLast bool

	logger zerolog.Logger
}

// New creates a watcher over the given clusters
func New(clusters []*cluster.Handle, cfg Config) *Watcher {
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	clusterWorkers := concurrency
	if len(clusters) > 0 && len(clusters) < clusterWorkers {
		clusterWorkers = len(clusters)
	}

	sink := cfg.Sink
	if sink == nil {
		sink = metrics.MultiSink{}
	}

	w := &Watcher{
		clusters:      clusters,
		byName:        make(map[string]*cluster.Handle, len(clusters)),
		interval:      cfg.Interval,
		clusterPool:   worker.NewPool("clusters", clusterWorkers),
		connectorPool: worker.NewPool("connectors", concurrency),
		sink:          sink,
		events:        cfg.Events,
		state:         StateInitializing,
		logger:        log.WithComponent("watcher"),
	}
	for _, c := range clusters {
		w.byName[c.Name()] = c
	}
	return w
}

// Run starts the pools and runs cycles until ctx is cancelled. In-flight
// cluster evaluations finish before Run returns.
func (w *Watcher) Run(ctx context.Context) error {
	if len(w.clusters) == 0 {
		return errors.New("no clusters to watch")
	}

	w.start()
	w.logger.Info().
		Int("clusters", len(w.clusters)).
		Int("concurrency", w.connectorPool.Size()).
		Dur("interval", w.interval).
		Msg("Watcher started")

	timer := time.NewTimer(0)
	defer timer.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-timer.C:
		}

		w.RunCycle(ctx)
		if ctx.Err() != nil {
			break loop
		}
		timer.Reset(w.interval)
	}

	w.drain()
	return nil
}

func (w *Watcher) start() {
	w.clusterPool.Start()
	w.connectorPool.Start()
	w.setState(StateRunning)
	metrics.UpdateComponent(healthComponent, true, "")
}

func (w *Watcher) drain() {
	w.setState(StateDraining)
	w.logger.Info().Msg("Draining in-flight evaluations")

	w.clusterPool.Stop()
	w.connectorPool.Stop()

	w.setState(StateStopped)
	metrics.UpdateComponent(healthComponent, false, "stopped")
	w.logger.Info().Msg("Watcher stopped")
}

// RunCycle evaluates every cluster once and blocks until all of them are
// done. A failing or panicking cluster is counted unhealthy and does not
// affect the others.
func (w *Watcher) RunCycle(ctx context.Context) types.WatcherSnapshot {
	timer := metrics.NewTimer()
	cycleID := uuid.New().String()
	logger := w.logger.With().Str("cycle", cycleID).Logger()
	logger.Debug().Msg("Cycle started")

	results := worker.Map(ctx, w.clusterPool, w.clusters, func(ctx context.Context, h *cluster.Handle) (types.ClusterSnapshot, error) {
		return h.Evaluate(ctx, w.connectorPool)
	})

	snapshot := types.WatcherSnapshot{CycleID: cycleID, Clusters: len(w.clusters)}
	for i, res := range results {
		h := w.clusters[i]
		clusterSnapshot := res.Value

		var perr *worker.PanicError
		switch {
		case res.Err == nil:
			snapshot.Healthy++
		case errors.Is(res.Err, context.Canceled) || errors.Is(res.Err, worker.ErrPoolStopped):
			// never dispatched; keep the previous snapshot
			logger.Debug().Str("cluster", h.Name()).Msg("Cluster skipped during shutdown")
			snapshot.Clusters--
			continue
		case errors.As(res.Err, &perr):
			logger.Error().Str("cluster", h.Name()).Err(res.Err).Msg("Cluster evaluation panicked")
			clusterSnapshot = h.RecordFailure(res.Err)
			events.Emit(w.events, events.New(events.EventClusterFailed, h.Name(), "", res.Err.Error()))
			snapshot.Unhealthy++
		default:
			logger.Warn().Str("cluster", h.Name()).Err(res.Err).Msg("Cluster evaluation failed")
			snapshot.Unhealthy++
		}
		w.sink.PublishCluster(clusterSnapshot)
	}

	snapshot.CompletedAt = time.Now()
	snapshot.Duration = timer.Duration()
	w.sink.PublishWatcher(snapshot)

	timer.ObserveDuration(metrics.CycleDuration)
	metrics.CyclesTotal.Inc()

	w.mu.Lock()
	w.last = snapshot
	w.hasLast = true
	w.mu.Unlock()

	events.Emit(w.events, events.New(events.EventCycleCompleted, "", "",
		fmt.Sprintf("%d healthy, %d unhealthy", snapshot.Healthy, snapshot.Unhealthy)).
		WithMetadata("cycle_id", cycleID))

	logger.Info().
		Int("clusters", snapshot.Clusters).
		Int("healthy", snapshot.Healthy).
		Int("unhealthy", snapshot.Unhealthy).
		Dur("duration", snapshot.Duration).
		Msg("Cycle completed")
	return snapshot
}

func (w *Watcher) setState(s State) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = s
}

// State implements metrics.StateSource
func (w *Watcher) State() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return string(w.state)
}

// LastSnapshot implements metrics.StateSource
func (w *Watcher) LastSnapshot() (types.WatcherSnapshot, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.last, w.hasLast
}

// Clusters returns the watched clusters in configured order
func (w *Watcher) Clusters() []*cluster.Handle {
	return w.clusters
}

// Cluster looks up a cluster by name
func (w *Watcher) Cluster(name string) (*cluster.Handle, bool) {
	h, ok := w.byName[name]
	return h, ok
}
