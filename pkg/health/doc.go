/*
Package health decides whether a Kafka Connect cluster and its connectors are
healthy.

It has two halves. Checkers probe the cluster endpoint before the watcher
spends any REST calls on it, and the classifier turns a connector status into
a verdict that the rules act upon.

# Reachability Probes

Two probe types are supported, selected by the cluster's probe setting:

	http  GET <probe url> with the cluster's basic auth, healthy on 2xx
	tcp   dial host:port of the REST endpoint
	none  no probe, the cluster is always evaluated

A failed probe marks the cluster unreachable for the cycle. Status keeps the
consecutive failure and success counts across cycles so the API can report how
long a cluster has been down.

	checker := health.NewHTTPChecker("https://connect.internal:8083/").
		WithBasicAuth("watcher", "secret").
		WithTimeout(5 * time.Second)

	result := checker.Check(ctx)
	if !result.Healthy {
		// skip the cluster this cycle
	}

# Classification

Classify maps one status lookup to a Verdict and decides whether the connector
belongs on the remediation worklist:

	StatusResult
	     │
	     ├─ NotFound ──────────────────────────────► missing     remediate
	     │
	     ├─ RUNNING, every task RUNNING ───────────► healthy
	     ├─ RUNNING, some task not RUNNING ────────► degraded    remediate
	     │
	     ├─ PAUSED ────────────────────────────────► paused      unless ignore_paused
	     ├─ UNASSIGNED ────────────────────────────► unassigned  unless ignore_unassigned
	     │
	     └─ FAILED or anything else ───────────────► failed      remediate

A connector is remediated at most once per rule evaluation even when both the
connector and several of its tasks failed. Classification.Count folds the
verdict into the per-cluster counters, with missing connectors counted as
unassigned and degraded ones as failed.
*/
package health
