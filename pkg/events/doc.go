/*
Package events provides an in-memory event broker for watcher activity.

Rules, remediation actions, cluster handles and the watcher loop publish
events as they observe or change something. Subscribers receive them
asynchronously; the API keeps the most recent ones in a Recorder and serves
them on /api/v1/events.

# Architecture

	  rules        remediation      cluster        watcher
	    │               │              │              │
	    └───────────────┴──────┬───────┴──────────────┘
	                           │ Publish (never blocks)
	                           ▼
	              ┌──────────────────────────┐
	              │  Broker                  │
	              │  event channel (100)     │
	              │  broadcast loop          │
	              └────────────┬─────────────┘
	                           │ one buffered channel (50) per subscriber
	                 ┌─────────┴─────────┐
	                 ▼                   ▼
	             Recorder           other subscribers
	          (ring buffer)
	                 │
	                 ▼
	          GET /api/v1/events

Publish is called from remediation workers, so it drops the event instead of
waiting when the broker buffer is full. A slow subscriber misses events rather
than stalling the broadcast loop.

# Event Types

	connector.unhealthy     a connector was put on a rule's worklist
	remediation.succeeded   a remediation sequence reached RUNNING or PAUSED
	remediation.exhausted   max attempts used without recovery
	remediation.notified    a notify-only action dispatched its alerts
	remediation.escalated   a connector class logger level was raised
	cluster.unreachable     the reachability probe failed
	cluster.failed          a rule evaluation failed or panicked
	cycle.completed         every cluster in a cycle was evaluated

# Usage

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	recorder := events.NewRecorder(events.DefaultRecorderSize)
	stop := recorder.Follow(broker)
	defer stop()

	events.Emit(broker, events.New(events.EventConnectorUnhealthy, "prod", "orders-sink", "task 0 FAILED"))

	for _, e := range recorder.Recent(10) {
		fmt.Println(e.Type, e.Cluster, e.Connector)
	}

Emit accepts a nil Publisher so components built without events need no
special casing.
*/
package events
