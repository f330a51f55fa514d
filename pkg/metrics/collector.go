package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cuemby/connect-watcher/pkg/types"
)

var (
	WatcherState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "connect_watcher_state",
			Help: "Current watcher run state (1 for the active state)",
		},
		[]string{"state"},
	)

	LastCycleAge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "connect_watcher_last_cycle_age_seconds",
			Help: "Seconds since the last completed watch cycle",
		},
	)
)

func init() {
	prometheus.MustRegister(WatcherState)
	prometheus.MustRegister(LastCycleAge)
}

// WatcherStates lists the run states reported by the state gauge
var WatcherStates = []string{"initializing", "running", "draining", "stopped"}

// StateSource exposes the watcher run state to the collector
type StateSource interface {
	State() string
	LastSnapshot() (types.WatcherSnapshot, bool)
}

// Collector periodically refreshes gauges that age between cycles
type Collector struct {
	source   StateSource
	interval time.Duration
	stopCh   chan struct{}
	now      func() time.Time
}

// NewCollector creates a new metrics collector
func NewCollector(source StateSource, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Collector{
		source:   source,
		interval: interval,
		stopCh:   make(chan struct{}),
		now:      time.Now,
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		// Collect immediately on start
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	current := c.source.State()
	for _, state := range WatcherStates {
		value := 0.0
		if state == current {
			value = 1
		}
		WatcherState.WithLabelValues(state).Set(value)
	}

	if snap, ok := c.source.LastSnapshot(); ok {
		LastCycleAge.Set(c.now().Sub(snap.CompletedAt).Seconds())
	}
}
