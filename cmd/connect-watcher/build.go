package main

import (
	"github.com/cuemby/connect-watcher/pkg/cluster"
	"github.com/cuemby/connect-watcher/pkg/config"
	"github.com/cuemby/connect-watcher/pkg/events"
	"github.com/cuemby/connect-watcher/pkg/log"
	"github.com/cuemby/connect-watcher/pkg/metrics"
	"github.com/cuemby/connect-watcher/pkg/notify"
)

// app holds everything built from the configuration
type app struct {
	registry *notify.Registry
	broker   *events.Broker
	recorder *events.Recorder
	stopRec  func()
	clusters []*cluster.Handle
	sink     metrics.Sink
}

// build constructs channels, clusters and sinks. Any error here is a
// configuration error and aborts startup.
func build(cfg *config.Config) (*app, error) {
	registry, err := notify.NewRegistry(cfg.NotificationChannels)
	if err != nil {
		return nil, err
	}

	broker := events.NewBroker()
	broker.Start()
	recorder := events.NewRecorder(events.DefaultRecorderSize)

	rt := &app{
		registry: registry,
		broker:   broker,
		recorder: recorder,
		stopRec:  recorder.Follow(broker),
		sink:     buildSink(cfg),
	}

	for _, cc := range cfg.Clusters {
		h, err := cluster.New(cc, registry, cluster.WithEvents(broker))
		if err != nil {
			rt.close()
			return nil, err
		}
		rt.clusters = append(rt.clusters, h)
	}
	return rt, nil
}

func buildSink(cfg *config.Config) metrics.Sink {
	var sinks metrics.MultiSink
	if cfg.Prometheus.On() {
		sinks = append(sinks, metrics.NewPrometheusSink())
	}

	emf := metrics.EMFConfig{
		LogGroupName: cfg.AWSEMF.LogGroupName,
		ServiceName:  cfg.AWSEMF.ServiceName,
		ServiceType:  cfg.AWSEMF.ServiceType,
		Watcher:      emfOptions(cfg.AWSEMF.WatcherConfig),
		Clusters:     make(map[string]metrics.EMFOptions),
	}
	enabled := emf.Watcher.Enabled
	for _, cc := range cfg.Clusters {
		opts := emfOptions(cc.Metrics.AWSEMF)
		if opts.Enabled {
			emf.Clusters[cc.DisplayName()] = opts
			enabled = true
		}
	}
	if enabled {
		sinks = append(sinks, metrics.NewEMFSink(emf))
		log.Logger.Info().Int("clusters", len(emf.Clusters)).Bool("watcher", emf.Watcher.Enabled).Msg("EMF metrics enabled")
	}
	return sinks
}

func emfOptions(c config.EMFClusterConfig) metrics.EMFOptions {
	return metrics.EMFOptions{
		Enabled:        c.Enabled,
		Namespace:      c.Namespace,
		Dimensions:     c.Dimensions,
		HighResolution: c.HighResolutionMetrics,
	}
}

func (rt *app) close() {
	if rt.stopRec != nil {
		rt.stopRec()
	}
	rt.broker.Stop()
	if err := rt.registry.Close(); err != nil {
		log.Logger.Warn().Err(err).Msg("Failed to close notification channels")
	}
}
