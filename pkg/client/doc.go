/*
Package client implements the Kafka Connect REST calls used by the watcher.

# Endpoints

	GET  /                                   Info
	GET  /connectors                         ListConnectors
	GET  /connectors/{name}/status           Status
	GET  /connectors/{name}/config           ConnectorConfig
	POST /connectors/{name}/restart          Restart (includeTasks, onlyFailed)
	PUT  /connectors/{name}/pause            Pause
	PUT  /connectors/{name}/resume           Resume
	PUT  /admin/loggers/{logger}             SetLoggerLevel

The root is either the configured URL or http://<hostname>:<port>. Basic
authentication is sent on every request when a username is configured.

# Errors

Non-2xx responses become *StatusError carrying the Connect error message.
A 404 matches ErrNotFound with errors.Is. Status is the exception: a missing
connector is reported as types.NotFound() with a nil error, because the
classifier treats it as an outcome rather than a failure.

# Usage

	c := client.New(client.Config{Hostname: "connect", Port: 8083})

	res, err := c.Status(ctx, "orders-sink")
	switch {
	case err != nil:
		// transport or server failure
	case !res.Found():
		// connector vanished
	default:
		fmt.Println(res.Status.Connector.State)
	}

Components depend on the API interface, and tests substitute the scripted
fake from package clienttest.
*/
package client
