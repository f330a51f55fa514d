package notify

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/template"

	"github.com/cuemby/connect-watcher/pkg/types"
)

//go:embed templates/*.tmpl
var builtinTemplates embed.FS

// Message formats rendered for every alert
const (
	FormatDefault = "default"
	FormatEmail   = "email"
	FormatSMS     = "sms"
)

// NoStatusMessage is rendered when the connector status could not be read
const NoStatusMessage = "Connector does not have any workable status"

// Alert describes a connector remediation operators must hear about
type Alert struct {
	Cluster   string
	Connector string
	Action    string
	Reason    string
	Status    *types.ConnectorStatus
}

// Subject returns the notification subject line
func (a Alert) Subject() string {
	return "Kafka Connect error for " + a.Connector
}

// StatusPayload serialises the connector status for templates
func (a Alert) StatusPayload() string {
	if a.Status == nil {
		return NoStatusMessage
	}
	data, err := json.Marshal(a.Status)
	if err != nil {
		return NoStatusMessage
	}
	return string(data)
}

// Renderer turns an alert into one message per format
type Renderer struct {
	templates map[string]*template.Template
	env       func() map[string]string
}

// NewRenderer loads the built-in templates and applies overrides, a map of
// format to template file path. Unknown override formats are added as extra
// formats.
func NewRenderer(overrides map[string]string) (*Renderer, error) {
	r := &Renderer{
		templates: make(map[string]*template.Template),
		env:       environ,
	}

	for _, format := range []string{FormatDefault, FormatEmail, FormatSMS} {
		data, err := builtinTemplates.ReadFile("templates/" + format + ".tmpl")
		if err != nil {
			return nil, fmt.Errorf("failed to read built-in %s template: %w", format, err)
		}
		if err := r.add(format, string(data)); err != nil {
			return nil, err
		}
	}

	for format, path := range overrides {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("template file not found for %s: %w", format, err)
		}
		if err := r.add(format, string(data)); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Renderer) add(format, text string) error {
	tmpl, err := template.New(format).Option("missingkey=zero").Parse(text)
	if err != nil {
		return fmt.Errorf("failed to parse %s template: %w", format, err)
	}
	r.templates[format] = tmpl
	return nil
}

// Formats returns the rendered formats in a stable order
func (r *Renderer) Formats() []string {
	formats := make([]string, 0, len(r.templates))
	for f := range r.templates {
		formats = append(formats, f)
	}
	sort.Strings(formats)
	return formats
}

// Render renders every format. With ignoreErrors a failing format is skipped
// and reported in the returned error alongside the other messages.
func (r *Renderer) Render(alert Alert, ignoreErrors bool) (map[string]string, error) {
	vars := map[string]interface{}{
		"CONNECTOR_NAME":      alert.Connector,
		"CONNECT_CLUSTER_ID":  alert.Cluster,
		"CONNECT_TRACE_ERROR": alert.StatusPayload(),
		"ACTION":              alert.Action,
		"REASON":              alert.Reason,
		"env":                 r.env(),
	}

	messages := make(map[string]string, len(r.templates))
	var failed []string
	for _, format := range r.Formats() {
		var buf bytes.Buffer
		if err := r.templates[format].Execute(&buf, vars); err != nil {
			if !ignoreErrors {
				return nil, fmt.Errorf("failed to render %s template: %w", format, err)
			}
			failed = append(failed, format)
			continue
		}
		messages[format] = buf.String()
	}

	if len(failed) > 0 {
		return messages, fmt.Errorf("skipped templates: %s", strings.Join(failed, ", "))
	}
	return messages, nil
}

func environ() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}
