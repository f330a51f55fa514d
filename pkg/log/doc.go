/*
Package log provides structured logging for the watcher using zerolog.

The package wraps a single global zerolog.Logger with configurable level and
output format, plus child-logger helpers that attach the fields every watcher
log line is keyed by.

# Architecture

	┌──────────────────── LOGGING ─────────────────────┐
	│                                                   │
	│  log.Init(Config{Level, JSONOutput, Output})      │
	│            │                                      │
	│  ┌─────────▼──────────┐                           │
	│  │   Global Logger    │  zerolog, RFC3339 time    │
	│  └─────────┬──────────┘                           │
	│            │                                      │
	│  ┌─────────▼──────────────────────────────┐       │
	│  │ Child loggers                          │       │
	│  │  WithComponent("watcher")              │       │
	│  │  WithCluster("prod")                   │       │
	│  │  WithConnector("prod", "orders-sink")  │       │
	│  └────────────────────────────────────────┘       │
	└───────────────────────────────────────────────────┘

# Fields

  - component: package or subsystem (watcher, rules, remediation, notify, api)
  - cluster: Connect cluster name
  - connector: connector name
  - action, attempt, backoff: remediation progress

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	logger := log.WithConnector(cluster, connector)
	logger.Warn().
		Str("action", "restart").
		Int("attempt", 3).
		Msg("Remediation exhausted")

Levels are applied globally through zerolog.SetGlobalLevel, so child loggers
created before Init changes the level still honor the new threshold.
*/
package log
