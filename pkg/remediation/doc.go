/*
Package remediation applies corrective actions to unhealthy connectors.

An Action is one entry of a rule's auto_correct_actions. Process runs a whole
remediation sequence for one connector and reports what happened in a Result.

# Actions

	restart       POST /connectors/<name>/restart, with failed tasks unless
	              restart_tasks is false
	pause         PUT  /connectors/<name>/pause
	cycle         pause, wait cycle_pause, resume
	notify-only   send alerts, never touch the connector

# Retry Policy

Each attempt issues the command, sleeps, then reads the status again. The
sequence succeeds as soon as the connector is RUNNING or PAUSED. The sleep
starts at wait_for_status and grows by the same amount after every attempt,
capped at max_backoff:

	wait_for_status: 30s   max_backoff: 50s   max_attempts: 3

	attempt 1   restart   sleep 30s   status FAILED
	attempt 2   restart   sleep 50s   status FAILED    (60s capped to 50s)
	attempt 3   restart   sleep 50s   status FAILED
	            exhausted

When the sequence is exhausted, on_failure may raise the logger level of the
connector class through /admin/loggers so the next failure is easier to
diagnose, and every notify target of the action receives one alert.

Sleeps and REST calls of an attempt are never cut short. Cancellation is only
observed before an attempt starts, in which case the Result is interrupted and
no escalation or notification happens.
*/
package remediation
