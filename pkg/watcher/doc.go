/*
Package watcher runs the evaluation cycle over every configured Kafka Connect
cluster.

# Cycle

	          ┌──────────────────────────────────────────┐
	          │ RunCycle                                 │
	          │                                          │
	          │   cluster pool (min(concurrency, N))     │
	          │   ┌────────┐ ┌────────┐ ┌────────┐       │
	          │   │ prod   │ │ stage  │ │ dr     │  ...  │
	          │   └───┬────┘ └───┬────┘ └───┬────┘       │
	          │       │ probe, then each rule in order   │
	          │       ▼                                  │
	          │   connector pool (concurrency)           │
	          │   status → classify → remediate          │
	          │                                          │
	          │   snapshot per cluster → sink, events    │
	          └──────────────────┬───────────────────────┘
	                             │
	                  wait interval, repeat

Clusters are evaluated in parallel and isolated from each other: an
unreachable cluster, a failing REST call or a panic in one cluster is recorded
on that cluster's snapshot and never stops the others. Counters are rebuilt
from scratch every cycle.

The interval is measured from the end of one cycle to the start of the next,
so a slow cycle never overlaps the following one.

# Lifecycle

	initializing ──Run──► running ──ctx cancelled──► draining ──► stopped

While draining no new cluster or connector work is queued. Remediation
sequences already in progress finish their current attempt; the next attempt
sees the cancelled context and reports the sequence as interrupted.
*/
package watcher
