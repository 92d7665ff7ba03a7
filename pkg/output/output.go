// Package output decouples CLI rendering from command logic. Commands emit
// events through the Output interface; subscribers attached to the stream
// decide how each event is rendered (colored terminal text, JSON lines).
package output

import "time"

// EventType identifies the category of an output event.
type EventType string

const (
	// EventInfo is a general information message (always visible).
	EventInfo EventType = "info"

	// EventError is an error message.
	EventError EventType = "error"

	// EventWarning is a warning message.
	EventWarning EventType = "warning"

	// EventTable is tabular data output.
	EventTable EventType = "table"

	// EventProgress is a progress update for a long-running scan.
	EventProgress EventType = "progress"

	// EventDiag is diagnostic information (only visible with -v/-vv).
	EventDiag EventType = "diag"
)

// Level defines the verbosity level for diagnostic messages.
type Level int

const (
	// LevelNormal is the default level (always shown).
	LevelNormal Level = 0

	// LevelVerbose is shown with -v.
	LevelVerbose Level = 1

	// LevelDebug is shown with -vv.
	LevelDebug Level = 2
)

// Event is a single output event emitted by command logic.
type Event struct {
	// Type identifies the event category (info, error, table, etc.).
	Type EventType

	// Level specifies verbosity (only used for EventDiag).
	Level Level

	// Message is the primary text content.
	Message string

	// Data carries structured payloads (table headers/rows, progress values).
	Data any

	// Metadata holds additional key-value pairs for diagnostic events.
	Metadata map[string]any

	// Timestamp records when the event was created.
	Timestamp time.Time
}

// Output is the interface command logic uses to emit events without knowing
// how they will be rendered.
type Output interface {
	// Info emits a general information message.
	Info(message string)

	// Error emits an error message.
	Error(err error)

	// Warning emits a warning message.
	Warning(message string)

	// Table emits tabular data with headers and rows.
	Table(headers []string, rows [][]string)

	// Progress emits a progress update for a running scan.
	Progress(percent int, message string)

	// Diag emits diagnostic information gated by verbosity level.
	Diag(level Level, message string, metadata map[string]any)
}

// Subscriber consumes events from a Stream. Subscribers must not fail:
// rendering errors are swallowed, never propagated back to command logic.
type Subscriber interface {
	// Name returns the subscriber identifier.
	Name() string

	// ShouldHandle decides whether this subscriber cares about the event.
	ShouldHandle(event Event) bool

	// Handle renders the event.
	Handle(event Event)
}

// Stream fans events out to its subscribers in subscription order.
type Stream struct {
	subscribers []Subscriber
}

// NewStream creates an empty event stream.
func NewStream() *Stream {
	return &Stream{}
}

// Subscribe attaches a subscriber to the stream.
func (s *Stream) Subscribe(sub Subscriber) {
	s.subscribers = append(s.subscribers, sub)
}

// SubscriberCount returns the number of attached subscribers.
func (s *Stream) SubscriberCount() int {
	return len(s.subscribers)
}

// Emit delivers the event to every subscriber that wants it.
func (s *Stream) Emit(event Event) {
	for _, sub := range s.subscribers {
		if sub.ShouldHandle(event) {
			sub.Handle(event)
		}
	}
}
