package subscribers

import (
	"encoding/json"
	"io"
	"time"

	"github.com/recontor/recontor/pkg/output"
)

// JSONFormatter emits structured output as JSON Lines (one object per line).
// Used when the --json flag is present.
type JSONFormatter struct {
	encoder *json.Encoder
}

// NewJSONFormatter creates a new JSONFormatter subscriber.
func NewJSONFormatter(writer io.Writer) *JSONFormatter {
	return &JSONFormatter{encoder: json.NewEncoder(writer)}
}

// Name returns the subscriber identifier.
func (s *JSONFormatter) Name() string {
	return "json-formatter"
}

// ShouldHandle decides if this subscriber cares about the event.
// Diagnostic events belong to the DiagnosticSubscriber.
func (s *JSONFormatter) ShouldHandle(event output.Event) bool {
	return event.Type != output.EventDiag
}

// Handle renders an output event as a JSON line.
func (s *JSONFormatter) Handle(event output.Event) {
	jsonEvent := map[string]any{
		"type":      event.Type,
		"timestamp": event.Timestamp.Format(time.RFC3339),
	}
	if event.Message != "" {
		jsonEvent["message"] = event.Message
	}
	if event.Data != nil {
		jsonEvent["data"] = event.Data
	}
	if len(event.Metadata) > 0 {
		jsonEvent["metadata"] = event.Metadata
	}

	// Encoding errors (e.g. broken pipe) cannot propagate; drop the event.
	_ = s.encoder.Encode(jsonEvent)
}
