package bus

import "time"

// Event is a domain event published on the bus. Kind is dot-namespaced, e.g. "conversation.deleted".
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
