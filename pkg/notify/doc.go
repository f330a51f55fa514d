/*
Package notify renders connector alerts and delivers them to notification
channels.

An alert is rendered in three formats, each from a text/template:

	default   cluster, connector and the status payload
	email     longer form with an optional runbook link
	sms       one short line

The built-in templates are embedded in the binary. A channel may override any
of them with a template file, loaded once when the registry is built.
Templates see:

	.CONNECTOR_NAME        connector name
	.CONNECT_CLUSTER_ID    cluster hostname
	.CONNECT_TRACE_ERROR   connector status as JSON, or NoStatusMessage
	.ACTION                remediation action that raised the alert
	.REASON                why the alert was raised
	.env                   process environment

Channels are named <type>.<name> after their config section:

	notification_channels:
	  redis:
	    oncall:                        -> redis.oncall
	      addr: redis:6379
	      channel: connect-alerts
	  webhook:
	    chatops:                       -> webhook.chatops
	      url: https://hooks.example.com/connect

Both channel types send the same JSON envelope carrying an id, the subject,
the rendered messages keyed by format and the send time. A Target pairs a
channel with its renderer. With ignore_errors set, a format that fails to
render is left out and the remaining messages are still sent.
*/
package notify
