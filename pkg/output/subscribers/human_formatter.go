package subscribers

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"

	"github.com/recontor/recontor/pkg/output"
)

var (
	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")) // Green

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")). // Red
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")). // Yellow
			Bold(true)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("105")). // Purple
			Bold(true)

	progressStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")) // Light gray

	findingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")). // Bright red
			Bold(true)

	tableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("62")). // Blue
				BorderStyle(lipgloss.NormalBorder()).
				BorderBottom(true).
				Padding(0, 1)
)

// HumanFormatter renders human-friendly output (tables, colors, progress).
// Used when --json is NOT present.
type HumanFormatter struct {
	stdout       io.Writer
	stderr       io.Writer
	colorEnabled bool
}

// NewHumanFormatter creates a new HumanFormatter subscriber.
func NewHumanFormatter(stdout, stderr io.Writer, colorEnabled bool) *HumanFormatter {
	return &HumanFormatter{
		stdout:       stdout,
		stderr:       stderr,
		colorEnabled: colorEnabled,
	}
}

// Name returns the subscriber identifier.
func (s *HumanFormatter) Name() string {
	return "human-formatter"
}

// ShouldHandle decides if this subscriber cares about the event.
// Diagnostic events belong to the DiagnosticSubscriber.
func (s *HumanFormatter) ShouldHandle(event output.Event) bool {
	return event.Type != output.EventDiag
}

// Handle renders an output event in human-friendly format.
func (s *HumanFormatter) Handle(event output.Event) {
	switch event.Type {
	case output.EventInfo:
		s.printInfo(event.Message)

	case output.EventError:
		s.printError(event.Message)

	case output.EventWarning:
		s.printWarning(event.Message)

	case output.EventTable:
		if data, ok := event.Data.(map[string]any); ok {
			headers, _ := data["headers"].([]string)
			rows, _ := data["rows"].([][]string)
			s.printTable(headers, rows)
		}

	case output.EventProgress:
		if data, ok := event.Data.(map[string]any); ok {
			percent, _ := data["percent"].(int)
			s.printProgress(percent, event.Message)
		}
	}
}

// printInfo outputs an info message with styling picked from its content.
func (s *HumanFormatter) printInfo(message string) {
	if !s.colorEnabled {
		_, _ = fmt.Fprintln(s.stdout, message)
		return
	}

	var styled string
	switch {
	case strings.HasPrefix(message, "##"):
		// Section header (## Scan: ...)
		styled = headerStyle.Render(message)

	case strings.Contains(message, "severity:") || strings.HasPrefix(message, "[finding]"):
		styled = findingStyle.Render(message)

	default:
		styled = infoStyle.Render(message)
	}

	_, _ = fmt.Fprintln(s.stdout, styled)
}

func (s *HumanFormatter) printError(message string) {
	if !s.colorEnabled {
		_, _ = fmt.Fprintf(s.stderr, "Error: %s\n", message)
		return
	}
	_, _ = fmt.Fprintln(s.stderr, errorStyle.Render("Error: "+message))
}

func (s *HumanFormatter) printWarning(message string) {
	if !s.colorEnabled {
		_, _ = fmt.Fprintf(s.stdout, "Warning: %s\n", message)
		return
	}
	_, _ = fmt.Fprintln(s.stdout, warningStyle.Render("Warning: "+message))
}

func (s *HumanFormatter) printTable(headers []string, rows [][]string) {
	if !s.colorEnabled {
		w := tabwriter.NewWriter(s.stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, strings.Join(headers, "\t"))
		for _, row := range rows {
			_, _ = fmt.Fprintln(w, strings.Join(row, "\t"))
		}
		_ = w.Flush()
		return
	}

	styledHeaders := make([]string, len(headers))
	for i, h := range headers {
		styledHeaders[i] = tableHeaderStyle.Render(h)
	}
	_, _ = fmt.Fprintln(s.stdout, lipgloss.JoinHorizontal(lipgloss.Top, styledHeaders...))

	w := tabwriter.NewWriter(s.stdout, 0, 0, 2, ' ', 0)
	for _, row := range rows {
		_, _ = fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	_ = w.Flush()
}

func (s *HumanFormatter) printProgress(percent int, message string) {
	line := fmt.Sprintf("[%3d%%] %s", percent, message)
	if !s.colorEnabled {
		_, _ = fmt.Fprintln(s.stdout, line)
		return
	}
	_, _ = fmt.Fprintln(s.stdout, progressStyle.Render(line))
}
