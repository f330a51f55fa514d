package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/connect-watcher/pkg/log"
	"github.com/cuemby/connect-watcher/pkg/metrics"
)

// ErrUnknownChannel is returned when a notify target is not configured
var ErrUnknownChannel = errors.New("unknown notification channel")

// Channel delivers a rendered notification
type Channel interface {
	// Name returns the target name, <kind>.<name>
	Name() string
	Send(ctx context.Context, subject string, messages map[string]string) error
	Close() error
}

// Envelope is the wire payload shared by the channels
type Envelope struct {
	ID       string            `json:"id"`
	Subject  string            `json:"subject"`
	Messages map[string]string `json:"messages"`
	SentAt   time.Time         `json:"sent_at"`
}

func newEnvelope(subject string, messages map[string]string) Envelope {
	return Envelope{
		ID:       uuid.New().String(),
		Subject:  subject,
		Messages: messages,
		SentAt:   time.Now().UTC(),
	}
}

// Target binds a channel to its renderer and error policy. It is what
// remediation actions dispatch alerts to.
type Target struct {
	channel      Channel
	renderer     *Renderer
	ignoreErrors bool
	logger       zerolog.Logger
}

// NewTarget creates a Target
func NewTarget(channel Channel, renderer *Renderer, ignoreErrors bool) *Target {
	return &Target{
		channel:      channel,
		renderer:     renderer,
		ignoreErrors: ignoreErrors,
		logger:       log.WithComponent("notify").With().Str("channel", channel.Name()).Logger(),
	}
}

// Name returns the channel target name
func (t *Target) Name() string {
	return t.channel.Name()
}

// Dispatch renders the alert and sends it once
func (t *Target) Dispatch(ctx context.Context, alert Alert) error {
	messages, err := t.renderer.Render(alert, t.ignoreErrors)
	if err != nil {
		if !t.ignoreErrors {
			metrics.NotificationsTotal.WithLabelValues(t.Name(), "render_error").Inc()
			return fmt.Errorf("failed to render notification: %w", err)
		}
		t.logger.Warn().Err(err).Str("connector", alert.Connector).Msg("Some notification templates failed to render")
	}

	if err := t.channel.Send(ctx, alert.Subject(), messages); err != nil {
		metrics.NotificationsTotal.WithLabelValues(t.Name(), "error").Inc()
		return fmt.Errorf("failed to send notification to %s: %w", t.Name(), err)
	}

	metrics.NotificationsTotal.WithLabelValues(t.Name(), "sent").Inc()
	t.logger.Info().
		Str("cluster", alert.Cluster).
		Str("connector", alert.Connector).
		Msg("Notification sent")
	return nil
}
