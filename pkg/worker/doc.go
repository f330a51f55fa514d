/*
Package worker provides the bounded worker pools the watcher runs its
evaluations on.

A Pool is a fixed number of long-lived goroutines draining a shared queue.
Submit blocks while the queue is full, which bounds both concurrency and the
amount of queued work. A panicking job does not take its worker down: the
panic is recovered and reported to the job's done callback as a *PanicError.

Map is the fan-out/fan-in helper used everywhere in the watcher. It submits
one job per input, waits for every queued job to finish and returns the
results in input order:

	results := worker.Map(ctx, pool, clusters,
		func(ctx context.Context, h *cluster.Handle) (types.ClusterSnapshot, error) {
			return h.Evaluate(ctx, connectorPool)
		})

Once ctx is cancelled no further jobs are queued and the unqueued ones carry
ctx.Err(). Jobs already on the queue still run, which is how in-flight
remediation finishes during shutdown.

The watcher uses two pools, one for clusters and one for connectors. A
cluster job waits on connector jobs, so sharing a single pool could leave
every worker blocked on work that has no worker left to run it.
*/
package worker
