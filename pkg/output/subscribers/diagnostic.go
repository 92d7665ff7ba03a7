package subscribers

import (
	"fmt"
	"io"
	"sort"

	"github.com/recontor/recontor/pkg/output"
)

// DiagnosticSubscriber renders EventDiag events up to a configured verbosity
// level. Events above the level are dropped silently.
type DiagnosticSubscriber struct {
	writer   io.Writer
	maxLevel output.Level
}

// NewDiagnosticSubscriber creates a subscriber that prints diagnostics at or
// below maxLevel to writer.
func NewDiagnosticSubscriber(writer io.Writer, maxLevel output.Level) *DiagnosticSubscriber {
	return &DiagnosticSubscriber{writer: writer, maxLevel: maxLevel}
}

// Name returns the subscriber identifier.
func (s *DiagnosticSubscriber) Name() string {
	return "diagnostic"
}

// ShouldHandle accepts only diagnostic events within the verbosity budget.
func (s *DiagnosticSubscriber) ShouldHandle(event output.Event) bool {
	return event.Type == output.EventDiag && event.Level <= s.maxLevel
}

// Handle prints the diagnostic line with its metadata keys in stable order.
func (s *DiagnosticSubscriber) Handle(event output.Event) {
	line := event.Message
	if len(event.Metadata) > 0 {
		keys := make([]string, 0, len(event.Metadata))
		for k := range event.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			line += fmt.Sprintf(" %s=%v", k, event.Metadata[k])
		}
	}
	_, _ = fmt.Fprintln(s.writer, line)
}
