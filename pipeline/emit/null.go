package emit

// NullEmitter discards every event. It is the default when no emitter is
// configured, and useful in tests that don't inspect events.
type NullEmitter struct{}

// NewNullEmitter returns an emitter that drops all events.
func NewNullEmitter() *NullEmitter {
	return &NullEmitter{}
}

// Emit discards the event.
func (n *NullEmitter) Emit(event Event) {}
