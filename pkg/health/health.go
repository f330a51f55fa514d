package health

import (
	"context"
	"time"
)

// CheckType represents the type of reachability probe
type CheckType string

const (
	CheckTypeHTTP CheckType = "http"
	CheckTypeTCP  CheckType = "tcp"
)

// Result represents the outcome of a probe
type Result struct {
	Healthy   bool
	Message   string
	CheckedAt time.Time
	Duration  time.Duration
}

// Checker probes whether a Connect cluster is reachable
type Checker interface {
	// Check performs the probe and returns the result
	Check(ctx context.Context) Result

	// Type returns the type of probe
	Type() CheckType
}

// Config contains the probe settings of a cluster
type Config struct {
	// Timeout is the maximum time to wait for a probe to complete
	Timeout time.Duration

	// Retries is the number of consecutive failures before the cluster is
	// reported unreachable
	Retries int
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		Timeout: 10 * time.Second,
		Retries: 1,
	}
}

// Status tracks the reachability of a cluster across cycles
type Status struct {
	ConsecutiveFailures  int       `json:"consecutive_failures"`
	ConsecutiveSuccesses int       `json:"consecutive_successes"`
	LastCheck            time.Time `json:"last_check"`
	LastMessage          string    `json:"last_message"`
	Healthy              bool      `json:"healthy"`
}

// NewStatus creates a new Status with default values
func NewStatus() *Status {
	return &Status{
		Healthy: true, // Assume reachable until proven otherwise
	}
}

// Update updates the status based on a new probe result
func (s *Status) Update(result Result, config Config) {
	s.LastCheck = result.CheckedAt
	s.LastMessage = result.Message

	if result.Healthy {
		s.ConsecutiveSuccesses++
		s.ConsecutiveFailures = 0
		s.Healthy = true
		return
	}

	s.ConsecutiveFailures++
	s.ConsecutiveSuccesses = 0

	retries := config.Retries
	if retries < 1 {
		retries = 1
	}
	if s.ConsecutiveFailures >= retries {
		s.Healthy = false
	}
}
