// Package matcher decides which connectors an evaluation rule applies to.
//
// Patterns are regular expressions matched at the start of the name, so
// "orders" matches "orders-sink" but not "legacy-orders". Exclusions always
// win over inclusions.
package matcher

import (
	"regexp"

	"github.com/rs/zerolog"

	"github.com/cuemby/connect-watcher/pkg/log"
)

// Matcher holds compiled include and exclude patterns. It is immutable.
type Matcher struct {
	include []*regexp.Regexp
	exclude []*regexp.Regexp

	// includeConfigured is true when include patterns were given, even if
	// none of them compiled
	includeConfigured bool
	cluster           string
	logger            zerolog.Logger
}

// New compiles the patterns for one rule of a cluster. Patterns that fail to
// compile are logged and dropped.
func New(cluster string, include, exclude []string) *Matcher {
	m := &Matcher{
		cluster:           cluster,
		includeConfigured: len(include) > 0,
		logger:            log.WithComponent("matcher").With().Str("cluster", cluster).Logger(),
	}
	m.include = m.compile(include, "include")
	m.exclude = m.compile(exclude, "exclude")
	return m
}

func (m *Matcher) compile(patterns []string, kind string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("^(?:" + p + ")")
		if err != nil {
			m.logger.Warn().
				Err(err).
				Str("pattern", p).
				Str("kind", kind).
				Msg("Dropping invalid connector pattern")
			continue
		}
		compiled = append(compiled, re)
	}
	return compiled
}

// IsIncluded reports whether the connector name is in scope
func (m *Matcher) IsIncluded(name string) bool {
	for _, re := range m.exclude {
		if re.MatchString(name) {
			m.logger.Debug().
				Str("connector", name).
				Str("pattern", re.String()).
				Msg("Connector excluded")
			return false
		}
	}

	if !m.includeConfigured {
		return true
	}
	for _, re := range m.include {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// Partition splits names into in-scope and ignored, preserving order
func (m *Matcher) Partition(names []string) (inScope, ignored []string) {
	for _, name := range names {
		if m.IsIncluded(name) {
			inScope = append(inScope, name)
		} else {
			ignored = append(ignored, name)
		}
	}
	return inScope, ignored
}

// Patterns returns the number of active include and exclude patterns
func (m *Matcher) Patterns() (include, exclude int) {
	return len(m.include), len(m.exclude)
}
