/*
Package types defines the data structures shared by the watcher packages.

The types mirror the Kafka Connect REST payloads the watcher consumes and the
per-cycle snapshots it produces.

# Core Types

Connect payloads:
  - State: connector/task state (RUNNING, PAUSED, UNASSIGNED, FAILED, ...)
  - ConnectorStatus: body of GET /connectors/{name}/status
  - StatusResult: Found or NotFound outcome of a status lookup

Cycle results:
  - ConnectorMetrics: task counts of one connector
  - ClusterCounters: aggregate connector counters of one cluster
  - RuleReport: counters and per-connector metrics produced by one rule
  - ClusterSnapshot: last completed cycle of a cluster
  - WatcherSnapshot: watcher-level counters of one cycle

# Usage

	res := types.Found(status)
	if !res.Found() {
		// connector disappeared between listing and lookup
	}

	var total types.ClusterCounters
	for _, r := range reports {
		total.Add(r.Counters)
	}

Snapshots are values: every cycle builds new ones and replaces the previous
snapshot wholesale, so readers never observe a partially merged cycle.
*/
package types
