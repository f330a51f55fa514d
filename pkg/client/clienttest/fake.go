// Package clienttest provides an in-memory Kafka Connect API for tests.
package clienttest

import (
	"context"
	"fmt"
	"sync"

	"github.com/cuemby/connect-watcher/pkg/client"
	"github.com/cuemby/connect-watcher/pkg/types"
)

// Fake implements client.API from scripted statuses. Each Status call consumes
// the next scripted status of a connector; the last one repeats.
type Fake struct {
	mu sync.Mutex

	connectors []string
	statuses   map[string][]types.StatusResult
	configs    map[string]map[string]string

	// ListErr, StatusErr and ActionErr inject failures
	ListErr   error
	StatusErr map[string]error
	ActionErr error

	// Hooks run after the corresponding call is recorded
	OnRestart func(connector string)
	OnPause   func(connector string)
	OnResume  func(connector string)

	Restarts     map[string]int
	Pauses       map[string]int
	Resumes      map[string]int
	StatusCalls  map[string]int
	LoggerLevels map[string]string
	Calls        []string
}

// New creates an empty Fake
func New() *Fake {
	return &Fake{
		statuses:     make(map[string][]types.StatusResult),
		configs:      make(map[string]map[string]string),
		StatusErr:    make(map[string]error),
		Restarts:     make(map[string]int),
		Pauses:       make(map[string]int),
		Resumes:      make(map[string]int),
		StatusCalls:  make(map[string]int),
		LoggerLevels: make(map[string]string),
	}
}

// Add registers a connector with a sequence of statuses
func (f *Fake) Add(name string, seq ...types.StatusResult) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.statuses[name]; !ok {
		f.connectors = append(f.connectors, name)
	}
	f.statuses[name] = seq
	return f
}

// SetStatuses replaces the remaining scripted statuses of a connector
func (f *Fake) SetStatuses(name string, seq ...types.StatusResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[name] = seq
}

// SetConfig sets the connector configuration returned by ConnectorConfig
func (f *Fake) SetConfig(name string, cfg map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configs[name] = cfg
}

// Status builds a found status with the given connector and task states
func Status(name string, connector types.State, tasks ...types.State) types.StatusResult {
	s := &types.ConnectorStatus{
		Name:      name,
		Connector: types.WorkerState{State: connector, WorkerID: "worker-1:8083"},
	}
	for i, t := range tasks {
		task := types.TaskStatus{ID: i, State: t, WorkerID: "worker-1:8083"}
		if t == types.StateFailed {
			task.Trace = fmt.Sprintf("task %d failed", i)
		}
		s.Tasks = append(s.Tasks, task)
	}
	return types.Found(s)
}

// Info implements client.API
func (f *Fake) Info(ctx context.Context) (*client.ServerInfo, error) {
	return &client.ServerInfo{Version: "fake"}, nil
}

// ListConnectors implements client.API
func (f *Fake) ListConnectors(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ListErr != nil {
		return nil, f.ListErr
	}
	return append([]string(nil), f.connectors...), nil
}

// Status implements client.API
func (f *Fake) Status(ctx context.Context, connector string) (types.StatusResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.StatusCalls[connector]++
	if err := f.StatusErr[connector]; err != nil {
		return types.StatusResult{}, err
	}

	seq, ok := f.statuses[connector]
	if !ok || len(seq) == 0 {
		return types.NotFound(), nil
	}
	next := seq[0]
	if len(seq) > 1 {
		f.statuses[connector] = seq[1:]
	}
	return next, nil
}

// ConnectorConfig implements client.API
func (f *Fake) ConnectorConfig(ctx context.Context, connector string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cfg, ok := f.configs[connector]
	if !ok {
		return nil, fmt.Errorf("config of %s: %w", connector, client.ErrNotFound)
	}
	return cfg, nil
}

// Restart implements client.API
func (f *Fake) Restart(ctx context.Context, connector string, opts client.RestartOptions) error {
	f.record("restart", connector, f.Restarts)
	if f.OnRestart != nil {
		f.OnRestart(connector)
	}
	return f.ActionErr
}

// Pause implements client.API
func (f *Fake) Pause(ctx context.Context, connector string) error {
	f.record("pause", connector, f.Pauses)
	if f.OnPause != nil {
		f.OnPause(connector)
	}
	return f.ActionErr
}

// Resume implements client.API
func (f *Fake) Resume(ctx context.Context, connector string) error {
	f.record("resume", connector, f.Resumes)
	if f.OnResume != nil {
		f.OnResume(connector)
	}
	return f.ActionErr
}

// SetLoggerLevel implements client.API
func (f *Fake) SetLoggerLevel(ctx context.Context, logger, level string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.LoggerLevels[logger] = level
	f.Calls = append(f.Calls, "logger:"+logger)
	return nil
}

// Count returns how many times an action ran against a connector
func (f *Fake) Count(action, connector string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch action {
	case "restart":
		return f.Restarts[connector]
	case "pause":
		return f.Pauses[connector]
	case "resume":
		return f.Resumes[connector]
	case "status":
		return f.StatusCalls[connector]
	}
	return 0
}

func (f *Fake) record(action, connector string, counter map[string]int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	counter[connector]++
	f.Calls = append(f.Calls, action+":"+connector)
}

var _ client.API = (*Fake)(nil)
