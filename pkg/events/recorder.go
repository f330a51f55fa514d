package events

import "sync"

// DefaultRecorderSize is the number of events kept by a Recorder
const DefaultRecorderSize = 100

// Recorder keeps the most recent events in a ring buffer
type Recorder struct {
	mu     sync.RWMutex
	buf    []*Event
	next   int
	filled bool
}

// NewRecorder creates a Recorder holding up to size events
func NewRecorder(size int) *Recorder {
	if size <= 0 {
		size = DefaultRecorderSize
	}
	return &Recorder{buf: make([]*Event, size)}
}

// Publish implements Publisher
func (r *Recorder) Publish(event *Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buf[r.next] = event
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.filled = true
	}
}

// Recent returns up to limit events, newest first. A limit <= 0 returns all.
func (r *Recorder) Recent(limit int) []*Event {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := r.next
	if r.filled {
		count = len(r.buf)
	}
	if limit <= 0 || limit > count {
		limit = count
	}

	out := make([]*Event, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (r.next - 1 - i + len(r.buf)) % len(r.buf)
		out = append(out, r.buf[idx])
	}
	return out
}

// Follow records every event published on the broker until the broker stops
// or the returned cancel function is called
func (r *Recorder) Follow(b *Broker) (cancel func()) {
	sub := b.Subscribe()
	done := make(chan struct{})
	go func() {
		for {
			select {
			case event, ok := <-sub:
				if !ok {
					return
				}
				r.Publish(event)
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			b.Unsubscribe(sub)
		})
	}
}
