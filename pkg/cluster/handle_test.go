package cluster

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/connect-watcher/pkg/client"
	"github.com/cuemby/connect-watcher/pkg/client/clienttest"
	"github.com/cuemby/connect-watcher/pkg/config"
	"github.com/cuemby/connect-watcher/pkg/events"
	"github.com/cuemby/connect-watcher/pkg/health"
	"github.com/cuemby/connect-watcher/pkg/metrics"
	"github.com/cuemby/connect-watcher/pkg/notify"
	"github.com/cuemby/connect-watcher/pkg/types"
	"github.com/cuemby/connect-watcher/pkg/worker"
)

type stubProbe struct {
	healthy bool
	calls   int
}

func (s *stubProbe) Check(ctx context.Context) health.Result {
	s.calls++
	msg := "Kafka Connect 3.6.0"
	if !s.healthy {
		msg = "connection refused"
	}
	return health.Result{Healthy: s.healthy, Message: msg, CheckedAt: time.Now()}
}

func (s *stubProbe) Type() health.CheckType {
	return health.CheckTypeHTTP
}

type memoryChannel struct {
	mu       sync.Mutex
	name     string
	subjects []string
}

func (m *memoryChannel) Name() string { return m.name }

func (m *memoryChannel) Send(ctx context.Context, subject string, messages map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subjects = append(m.subjects, subject)
	return nil
}

func (m *memoryChannel) Close() error { return nil }

func newPool(t *testing.T) *worker.Pool {
	t.Helper()
	p := worker.NewPool("connectors", 2)
	p.Start()
	t.Cleanup(p.Stop)
	return p
}

func noSleep(time.Duration) {}

func clusterConfig(rules ...config.RuleConfig) config.ClusterConfig {
	return config.ClusterConfig{
		Name:            "prod",
		Hostname:        "connect.internal",
		Port:            8083,
		Timeout:         config.Duration(5 * time.Second),
		Probe:           config.ProbeConfig{Type: config.ProbeHTTP},
		EvaluationRules: rules,
	}
}

func TestNewDefaultsNameAndProbe(t *testing.T) {
	cfg := clusterConfig()
	cfg.Name = ""
	h, err := New(cfg, nil)
	require.NoError(t, err)

	assert.Equal(t, "connect.internal_8083", h.Name())
	assert.IsType(t, &client.Client{}, h.API())
	assert.IsType(t, &health.HTTPChecker{}, h.probe)
	require.NotNil(t, h.ProbeStatus())
	assert.True(t, h.ProbeStatus().Healthy)

	cfg.Probe.Type = config.ProbeTCP
	h, err = New(cfg, nil)
	require.NoError(t, err)
	tcp, ok := h.probe.(*health.TCPChecker)
	require.True(t, ok)
	assert.Equal(t, "connect.internal:8083", tcp.Address)

	cfg.Probe.Type = config.ProbeNone
	h, err = New(cfg, nil)
	require.NoError(t, err)
	assert.Nil(t, h.probe)
	assert.Nil(t, h.ProbeStatus())
}

func TestDialAddressFromURL(t *testing.T) {
	addr, err := dialAddress(client.Config{URL: "https://connect.example.com"})
	require.NoError(t, err)
	assert.Equal(t, "connect.example.com:443", addr)

	addr, err = dialAddress(client.Config{URL: "http://10.0.0.4:28083/"})
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.4:28083", addr)

	addr, err = dialAddress(client.Config{URL: "http://connect.example.com"})
	require.NoError(t, err)
	assert.Equal(t, "connect.example.com:80", addr)
}

func TestNewUnknownNotifyTarget(t *testing.T) {
	cfg := clusterConfig(config.RuleConfig{Actions: []config.ActionConfig{{
		Action: config.ActionNotify,
		Notify: []config.NotifyTarget{{Target: "redis.missing"}},
	}}})

	registry, err := notify.NewRegistry(config.NotificationChannels{})
	require.NoError(t, err)

	_, err = New(cfg, registry, WithAPI(clienttest.New()))
	assert.ErrorIs(t, err, notify.ErrUnknownChannel)

	_, err = New(cfg, nil, WithAPI(clienttest.New()))
	assert.ErrorIs(t, err, notify.ErrUnknownChannel)
}

func TestEvaluateSumsRules(t *testing.T) {
	api := clienttest.New().
		Add("orders-sink", clienttest.Status("orders-sink", types.StateRunning, types.StateRunning)).
		Add("payments-source", clienttest.Status("payments-source", types.StateFailed, types.StateFailed))

	cfg := clusterConfig(
		config.RuleConfig{IncludeRegex: config.StringList{"orders"}},
		config.RuleConfig{IncludeRegex: config.StringList{"payments"}},
	)
	probe := &stubProbe{healthy: true}
	h, err := New(cfg, nil, WithAPI(api), WithProbe(probe), WithSleeper(noSleep))
	require.NoError(t, err)
	require.Len(t, h.Rules(), 2)

	_, ok := h.Snapshot()
	assert.False(t, ok)

	snapshot, err := h.Evaluate(context.Background(), newPool(t))
	require.NoError(t, err)

	assert.True(t, snapshot.Healthy)
	assert.Equal(t, 4, snapshot.Counters.Total)
	assert.Equal(t, 2, snapshot.Counters.Ignored)
	assert.Equal(t, 1, snapshot.Counters.Running)
	assert.Equal(t, 1, snapshot.Counters.Failed)
	assert.Len(t, snapshot.Connectors, 2)
	assert.Equal(t, 1, probe.calls)

	stored, ok := h.Snapshot()
	require.True(t, ok)
	assert.Equal(t, snapshot.Counters, stored.Counters)

	assert.Equal(t, "healthy", metrics.GetHealth().Components["cluster/prod"])
}

func TestEvaluateSnapshotOverwritten(t *testing.T) {
	api := clienttest.New().Add("orders-sink", clienttest.Status("orders-sink", types.StateFailed))
	h, err := New(clusterConfig(config.RuleConfig{}), nil, WithAPI(api), WithProbe(&stubProbe{healthy: true}))
	require.NoError(t, err)

	first, err := h.Evaluate(context.Background(), newPool(t))
	require.NoError(t, err)
	assert.Equal(t, 1, first.Counters.Failed)

	api.SetStatuses("orders-sink", clienttest.Status("orders-sink", types.StateRunning))
	second, err := h.Evaluate(context.Background(), newPool(t))
	require.NoError(t, err)
	assert.Equal(t, 0, second.Counters.Failed)
	assert.Equal(t, 1, second.Counters.Running)
}

func TestEvaluateUnreachable(t *testing.T) {
	api := clienttest.New().Add("orders-sink", clienttest.Status("orders-sink", types.StateFailed))
	recorder := events.NewRecorder(10)
	h, err := New(clusterConfig(config.RuleConfig{}), nil,
		WithAPI(api), WithProbe(&stubProbe{healthy: false}), WithEvents(recorder))
	require.NoError(t, err)

	snapshot, err := h.Evaluate(context.Background(), newPool(t))
	require.ErrorIs(t, err, ErrUnreachable)
	assert.False(t, snapshot.Healthy)
	assert.Contains(t, snapshot.Error, "connection refused")

	assert.Zero(t, api.Count("status", "orders-sink"))
	require.Len(t, recorder.Recent(0), 1)
	assert.Equal(t, events.EventClusterUnreachable, recorder.Recent(0)[0].Type)

	assert.False(t, h.ProbeStatus().Healthy)
	assert.Equal(t, 1, h.ProbeStatus().ConsecutiveFailures)
}

func TestEvaluateListFailure(t *testing.T) {
	api := clienttest.New()
	api.ListErr = errors.New("503 service unavailable")
	h, err := New(clusterConfig(config.RuleConfig{}), nil, WithAPI(api), WithProbe(&stubProbe{healthy: true}))
	require.NoError(t, err)

	snapshot, err := h.Evaluate(context.Background(), newPool(t))
	require.Error(t, err)
	assert.False(t, snapshot.Healthy)

	stored, ok := h.Snapshot()
	require.True(t, ok)
	assert.Contains(t, stored.Error, "503")
}

func TestEvaluateNotifiesThroughRegistry(t *testing.T) {
	api := clienttest.New().Add("orders-sink", clienttest.Status("orders-sink", types.StateFailed))
	cfg := clusterConfig(config.RuleConfig{Actions: []config.ActionConfig{{
		Action: config.ActionNotifyOnly,
		Notify: []config.NotifyTarget{{Target: "memory.ops"}},
	}}})

	renderer, err := notify.NewRenderer(nil)
	require.NoError(t, err)
	channel := &memoryChannel{name: "memory.ops"}
	registry, err := notify.NewRegistry(config.NotificationChannels{})
	require.NoError(t, err)
	registry.Add(notify.NewTarget(channel, renderer, false))

	h, err := New(cfg, registry, WithAPI(api), WithProbe(&stubProbe{healthy: true}))
	require.NoError(t, err)

	_, err = h.Evaluate(context.Background(), newPool(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"Kafka Connect error for orders-sink"}, channel.subjects)
	assert.Empty(t, api.Calls)
}

func TestRecordFailure(t *testing.T) {
	h, err := New(clusterConfig(), nil, WithAPI(clienttest.New()), WithProbe(&stubProbe{healthy: true}))
	require.NoError(t, err)

	snapshot := h.RecordFailure(errors.New("job panicked: nil map"))
	assert.False(t, snapshot.Healthy)

	stored, ok := h.Snapshot()
	require.True(t, ok)
	assert.Equal(t, "job panicked: nil map", stored.Error)
}
