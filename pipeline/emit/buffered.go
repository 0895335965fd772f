package emit

import "sync"

// BufferedEmitter stores events in memory, keyed by topic. Intended for
// tests and post-run analysis; it never evicts, so long-lived processes
// should Clear completed topics.
type BufferedEmitter struct {
	mu     sync.RWMutex
	events map[string][]Event // topic -> events
}

// HistoryFilter selects events from a topic's history. Set fields combine
// with AND logic; zero values mean "no filter".
type HistoryFilter struct {
	Stage   string
	Msg     string
	MinStep *int
	MaxStep *int
}

// NewBufferedEmitter creates an empty BufferedEmitter.
func NewBufferedEmitter() *BufferedEmitter {
	return &BufferedEmitter{events: make(map[string][]Event)}
}

// Emit appends the event to its topic's history.
func (b *BufferedEmitter) Emit(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events[event.Topic] = append(b.events[event.Topic], event)
}

// History returns a copy of all events recorded for topic, in emission
// order. Returns an empty slice for unknown topics.
func (b *BufferedEmitter) History(topic string) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	events := b.events[topic]
	result := make([]Event, len(events))
	copy(result, events)
	return result
}

// HistoryWithFilter returns the events for topic matching filter.
func (b *BufferedEmitter) HistoryWithFilter(topic string, filter HistoryFilter) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := []Event{}
	for _, event := range b.events[topic] {
		if matchesFilter(event, filter) {
			result = append(result, event)
		}
	}
	return result
}

func matchesFilter(event Event, filter HistoryFilter) bool {
	if filter.Stage != "" && event.Stage != filter.Stage {
		return false
	}
	if filter.Msg != "" && event.Msg != filter.Msg {
		return false
	}
	if filter.MinStep != nil && event.Step < *filter.MinStep {
		return false
	}
	if filter.MaxStep != nil && event.Step > *filter.MaxStep {
		return false
	}
	return true
}

// Clear removes stored events for topic, or every topic when topic is
// empty.
func (b *BufferedEmitter) Clear(topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if topic == "" {
		b.events = make(map[string][]Event)
		return
	}
	delete(b.events, topic)
}
