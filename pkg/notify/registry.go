package notify

import (
	"errors"
	"fmt"
	"sort"

	"github.com/cuemby/connect-watcher/pkg/config"
)

// Registry holds every configured notification target by name
type Registry struct {
	targets map[string]*Target
}

// NewRegistry builds channels for all configured notification channels.
// Template files are loaded eagerly so a missing file fails at startup.
func NewRegistry(cfg config.NotificationChannels) (*Registry, error) {
	r := &Registry{targets: make(map[string]*Target)}

	for name, ch := range cfg.Redis {
		renderer, err := NewRenderer(templateOverrides(ch.Template))
		if err != nil {
			return nil, fmt.Errorf("redis.%s: %w", name, err)
		}
		r.Add(NewTarget(NewRedisChannel(name, ch), renderer, ch.IgnoreErrors))
	}
	for name, ch := range cfg.Webhook {
		renderer, err := NewRenderer(templateOverrides(ch.Template))
		if err != nil {
			return nil, fmt.Errorf("webhook.%s: %w", name, err)
		}
		r.Add(NewTarget(NewWebhookChannel(name, ch), renderer, ch.IgnoreErrors))
	}
	return r, nil
}

func templateOverrides(t config.TemplateConfig) map[string]string {
	return map[string]string{
		FormatDefault: t.Default,
		FormatEmail:   t.Email,
		FormatSMS:     t.SMS,
	}
}

// Add registers a target under its channel name
func (r *Registry) Add(t *Target) {
	r.targets[t.Name()] = t
}

// Resolve returns the targets for the given names, in order
func (r *Registry) Resolve(names ...string) ([]*Target, error) {
	out := make([]*Target, 0, len(names))
	for _, name := range names {
		t, ok := r.targets[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownChannel, name)
		}
		out = append(out, t)
	}
	return out, nil
}

// Names returns the registered target names
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.targets))
	for n := range r.targets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Close closes every channel
func (r *Registry) Close() error {
	var errs []error
	for _, t := range r.targets {
		if err := t.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t.Name(), err))
		}
	}
	return errors.Join(errs...)
}
