package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/connect-watcher/pkg/config"
	"github.com/cuemby/connect-watcher/pkg/metrics"
	"github.com/cuemby/connect-watcher/pkg/types"
)

type fakePublisher struct {
	mu       sync.Mutex
	channels []string
	payloads [][]byte
	err      error
	closed   bool
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewIntCmd(ctx, "publish", channel, message)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	f.channels = append(f.channels, channel)
	f.payloads = append(f.payloads, message.([]byte))
	cmd.SetVal(1)
	return cmd
}

func (f *fakePublisher) Close() error {
	f.closed = true
	return nil
}

func failedAlert() Alert {
	status := &types.ConnectorStatus{
		Name:      "orders-sink",
		Connector: types.WorkerState{State: types.StateRunning, WorkerID: "w1:8083"},
		Tasks: []types.TaskStatus{
			{ID: 0, State: types.StateFailed, WorkerID: "w1:8083", Trace: "boom"},
		},
	}
	return Alert{Cluster: "prod", Connector: "orders-sink", Action: "restart", Reason: "exhausted", Status: status}
}

func TestRenderBuiltinTemplates(t *testing.T) {
	r, err := NewRenderer(nil)
	require.NoError(t, err)
	r.env = func() map[string]string {
		return map[string]string{"CONNECT_WATCHER_RUNBOOK_URL": "https://runbooks.local/connect"}
	}

	assert.Equal(t, []string{FormatDefault, FormatEmail, FormatSMS}, r.Formats())

	messages, err := r.Render(failedAlert(), false)
	require.NoError(t, err)
	require.Len(t, messages, 3)

	assert.Contains(t, messages[FormatDefault], "cluster prod")
	assert.Contains(t, messages[FormatDefault], `"trace":"boom"`)
	assert.Contains(t, messages[FormatEmail], "Runbook: https://runbooks.local/connect")
	assert.Equal(t, "Connect prod: orders-sink unhealthy\n", messages[FormatSMS])
}

func TestRenderWithoutStatus(t *testing.T) {
	r, err := NewRenderer(nil)
	require.NoError(t, err)
	r.env = func() map[string]string { return nil }

	alert := failedAlert()
	alert.Status = nil
	messages, err := r.Render(alert, false)
	require.NoError(t, err)
	assert.Contains(t, messages[FormatDefault], NoStatusMessage)
	assert.NotContains(t, messages[FormatEmail], "Runbook")
}

func TestRenderEmailByAction(t *testing.T) {
	r, err := NewRenderer(nil)
	require.NoError(t, err)
	r.env = func() map[string]string { return nil }

	messages, err := r.Render(failedAlert(), false)
	require.NoError(t, err)
	assert.Contains(t, messages[FormatEmail], "automatic remediation (restart) did not recover it")

	alert := failedAlert()
	alert.Action = "notify-only"
	alert.Reason = "unhealthy"
	messages, err = r.Render(alert, false)
	require.NoError(t, err)
	assert.Contains(t, messages[FormatEmail], "orders-sink on Kafka Connect cluster prod is unhealthy.")
	assert.Contains(t, messages[FormatEmail], "No automatic remediation is configured")
	assert.NotContains(t, messages[FormatEmail], "did not recover")
}

func TestRendererOverrides(t *testing.T) {
	dir := t.TempDir()
	custom := filepath.Join(dir, "custom.tmpl")
	require.NoError(t, os.WriteFile(custom, []byte("custom {{ .CONNECTOR_NAME }} {{ .ACTION }}"), 0o600))

	r, err := NewRenderer(map[string]string{FormatSMS: custom, "slack": custom})
	require.NoError(t, err)

	messages, err := r.Render(failedAlert(), false)
	require.NoError(t, err)
	assert.Equal(t, "custom orders-sink restart", messages[FormatSMS])
	assert.Equal(t, "custom orders-sink restart", messages["slack"])

	_, err = NewRenderer(map[string]string{FormatEmail: filepath.Join(dir, "missing.tmpl")})
	assert.Error(t, err)
}

func TestRenderIgnoreErrors(t *testing.T) {
	dir := t.TempDir()
	broken := filepath.Join(dir, "broken.tmpl")
	// Calling a non-function value fails at execution time, not parse time.
	require.NoError(t, os.WriteFile(broken, []byte(`{{ call .CONNECTOR_NAME }}`), 0o600))

	r, err := NewRenderer(map[string]string{FormatEmail: broken})
	require.NoError(t, err)

	_, err = r.Render(failedAlert(), false)
	assert.Error(t, err)

	messages, err := r.Render(failedAlert(), true)
	assert.Error(t, err)
	assert.Contains(t, messages, FormatDefault)
	assert.Contains(t, messages, FormatSMS)
	assert.NotContains(t, messages, FormatEmail)
}

func TestRedisChannelSend(t *testing.T) {
	pub := &fakePublisher{}
	ch := newRedisChannel("alerts", "", pub)
	assert.Equal(t, "redis.alerts", ch.Name())

	err := ch.Send(context.Background(), "subject", map[string]string{"sms": "hi"})
	require.NoError(t, err)

	require.Len(t, pub.payloads, 1)
	assert.Equal(t, DefaultRedisChannel, pub.channels[0])

	var env Envelope
	require.NoError(t, json.Unmarshal(pub.payloads[0], &env))
	assert.NotEmpty(t, env.ID)
	assert.Equal(t, "subject", env.Subject)
	assert.Equal(t, "hi", env.Messages["sms"])

	require.NoError(t, ch.Close())
	assert.True(t, pub.closed)
}

func TestRedisChannelError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("connection refused")}
	ch := newRedisChannel("alerts", "ops", pub)

	err := ch.Send(context.Background(), "subject", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ops")
}

func TestWebhookChannelSend(t *testing.T) {
	var got Envelope
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	ch := NewWebhookChannel("ops", config.WebhookChannelConfig{
		URL:     srv.URL,
		Headers: map[string]string{"Authorization": "Bearer token"},
	})
	assert.Equal(t, "webhook.ops", ch.Name())

	require.NoError(t, ch.Send(context.Background(), "subject", map[string]string{"default": "body"}))
	assert.Equal(t, "Bearer token", auth)
	assert.Equal(t, "body", got.Messages["default"])
}

func TestWebhookChannelNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ch := NewWebhookChannel("ops", config.WebhookChannelConfig{URL: srv.URL})
	err := ch.Send(context.Background(), "subject", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestTargetDispatch(t *testing.T) {
	pub := &fakePublisher{}
	renderer, err := NewRenderer(nil)
	require.NoError(t, err)
	target := NewTarget(newRedisChannel("dispatch", "", pub), renderer, false)

	before := testutil.ToFloat64(metrics.NotificationsTotal.WithLabelValues("redis.dispatch", "sent"))
	require.NoError(t, target.Dispatch(context.Background(), failedAlert()))
	after := testutil.ToFloat64(metrics.NotificationsTotal.WithLabelValues("redis.dispatch", "sent"))

	assert.Equal(t, 1.0, after-before)
	require.Len(t, pub.payloads, 1)

	var env Envelope
	require.NoError(t, json.Unmarshal(pub.payloads[0], &env))
	assert.Equal(t, "Kafka Connect error for orders-sink", env.Subject)
	assert.Len(t, env.Messages, 3)
}

func TestTargetDispatchSendError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("down")}
	renderer, err := NewRenderer(nil)
	require.NoError(t, err)
	target := NewTarget(newRedisChannel("failing", "", pub), renderer, true)

	err = target.Dispatch(context.Background(), failedAlert())
	assert.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.NotificationsTotal.WithLabelValues("redis.failing", "error")))
}

func TestRegistryResolve(t *testing.T) {
	reg, err := NewRegistry(config.NotificationChannels{
		Redis:   map[string]config.RedisChannelConfig{"alerts": {Addr: "127.0.0.1:6379"}},
		Webhook: map[string]config.WebhookChannelConfig{"ops": {URL: "http://127.0.0.1:1/hook"}},
	})
	require.NoError(t, err)
	defer reg.Close()

	assert.Equal(t, []string{"redis.alerts", "webhook.ops"}, reg.Names())

	targets, err := reg.Resolve("webhook.ops", "redis.alerts")
	require.NoError(t, err)
	require.Len(t, targets, 2)
	assert.Equal(t, "webhook.ops", targets[0].Name())

	_, err = reg.Resolve("redis.missing")
	assert.ErrorIs(t, err, ErrUnknownChannel)
}

func TestRegistryMissingTemplate(t *testing.T) {
	_, err := NewRegistry(config.NotificationChannels{
		Webhook: map[string]config.WebhookChannelConfig{
			"ops": {URL: "http://127.0.0.1:1", Template: config.TemplateConfig{Email: "/nonexistent/email.tmpl"}},
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook.ops")
}
