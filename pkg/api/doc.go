/*
Package api serves the watcher's read-only HTTP API.

The server is built on gin. Every route is a GET; ReadOnly rejects any other
method with 405 so the API can never change cluster or connector state.

# Routes

	GET /health                    component health, 503 when any component is down
	GET /ready                     readiness, 503 when a critical component is down
	GET /live                      liveness, always 200 while the process runs
	GET /metrics                   Prometheus exposition (when enabled)

	GET /api/v1/status             watcher state and the last cycle snapshot
	GET /api/v1/clusters           every cluster with its counters, no connectors
	GET /api/v1/clusters/:name     one cluster including per-connector metrics
	GET /api/v1/events             recent events, newest first
	                               ?limit=N (default 50, max 1000)
	                               ?type=remediation.exhausted
	                               ?cluster=prod

# Middleware

Requests pass through gin's Recovery, then RequestMetrics, which records
connect_watcher_api_requests_total and the request duration and logs the
request at debug level, then CORS when allow_origins is configured, then
ReadOnly.

# Usage

	srv := api.NewServer(w, recorder, api.Options{
		Address:      cfg.Server.Address,
		AllowOrigins: cfg.Server.AllowOrigins,
		Metrics:      true,
	})
	go func() {
		if err := srv.Start(); err != nil {
			log.Logger.Error().Err(err).Msg("API server failed")
		}
	}()
	defer srv.Shutdown(context.Background())
*/
package api
