package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsIncluded(t *testing.T) {
	tests := []struct {
		name    string
		include []string
		exclude []string
		entity  string
		want    bool
	}{
		{
			name:   "no patterns matches everything",
			entity: "anything",
			want:   true,
		},
		{
			name:    "include prefix match",
			include: []string{"orders"},
			entity:  "orders-sink",
			want:    true,
		},
		{
			name:    "include is anchored at start",
			include: []string{"orders"},
			entity:  "legacy-orders",
			want:    false,
		},
		{
			name:    "include does not require full match",
			include: []string{"a-.*-1"},
			entity:  "a-ok-1-extra",
			want:    true,
		},
		{
			name:    "exclude beats include",
			include: []string{".*"},
			exclude: []string{".*-excluded.*"},
			entity:  "a-excluded-1",
			want:    false,
		},
		{
			name:    "exclude only",
			exclude: []string{"tmp-"},
			entity:  "orders",
			want:    true,
		},
		{
			name:    "alternation is anchored as a whole",
			include: []string{"foo|bar"},
			entity:  "xbar",
			want:    false,
		},
		{
			name:    "second include matches",
			include: []string{"x", "y"},
			entity:  "y1",
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New("test", tt.include, tt.exclude)
			assert.Equal(t, tt.want, m.IsIncluded(tt.entity))
		})
	}
}

func TestInvalidPatternsDropped(t *testing.T) {
	m := New("test", []string{"(", "ok"}, []string{"[", "bad-"})

	inc, exc := m.Patterns()
	assert.Equal(t, 1, inc)
	assert.Equal(t, 1, exc)

	assert.True(t, m.IsIncluded("ok-1"))
	assert.False(t, m.IsIncluded("bad-1"))
	assert.False(t, m.IsIncluded("other"))
}

func TestAllIncludesInvalidMatchesNothing(t *testing.T) {
	m := New("test", []string{"("}, nil)
	assert.False(t, m.IsIncluded("anything"))
}

func TestPartition(t *testing.T) {
	m := New("test", nil, []string{".*-excluded.*"})
	in, ignored := m.Partition([]string{"a-excluded-1", "a-ok-1", "b"})

	assert.Equal(t, []string{"a-ok-1", "b"}, in)
	assert.Equal(t, []string{"a-excluded-1"}, ignored)
}
