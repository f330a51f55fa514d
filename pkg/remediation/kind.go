package remediation

import (
	"fmt"

	"github.com/cuemby/connect-watcher/pkg/config"
)

// Kind is the corrective action applied to an unhealthy connector
type Kind int

const (
	// KindRestart restarts the connector and optionally its failed tasks
	KindRestart Kind = iota
	// KindPause pauses the connector
	KindPause
	// KindCycle pauses the connector, waits, then resumes it
	KindCycle
	// KindNotifyOnly sends notifications without touching the connector
	KindNotifyOnly
)

// ParseKind maps a configured action name to its Kind
func ParseKind(action string) (Kind, error) {
	switch action {
	case config.ActionRestart:
		return KindRestart, nil
	case config.ActionPause:
		return KindPause, nil
	case config.ActionCycle:
		return KindCycle, nil
	case config.ActionNotify, config.ActionNotifyOnly:
		return KindNotifyOnly, nil
	default:
		return 0, fmt.Errorf("unknown remediation action %q", action)
	}
}

func (k Kind) String() string {
	switch k {
	case KindRestart:
		return config.ActionRestart
	case KindPause:
		return config.ActionPause
	case KindCycle:
		return config.ActionCycle
	case KindNotifyOnly:
		return config.ActionNotifyOnly
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Retries reports whether the kind runs the bounded retry loop
func (k Kind) Retries() bool {
	return k != KindNotifyOnly
}
