package storage

import "time"

// ScanRecord is the central entity tracked by Recontor: one requested
// reconnaissance pass against a single domain, from creation through a
// terminal state.
//
// The record is written by three independent actors (the request layer,
// the dispatcher, and the orchestrator completion callback). Writers use
// narrow field-scoped updates (ScanUpdates) plus explicit status checks,
// never full-document overwrites.
type ScanRecord struct {
	// ID is the unique identifier for the scan (UUID v4).
	ID string `json:"id"`

	// Domain is the normalized target: lowercase, scheme/path/port stripped.
	Domain string `json:"domain"`

	// Mode selects the depth of the external engine run.
	// Valid values: "passive", "subdomain", "web", "full", "all".
	Mode ScanMode `json:"mode"`

	// Status is the lifecycle state.
	// Valid values: "pending", "running", "completed", "failed", "stopped".
	Status ScanStatus `json:"status"`

	// ProgressPct is a coarse 0-100 progress indicator updated at module
	// boundaries while the scan is running.
	ProgressPct int `json:"progress_pct"`

	// CurrentModule is a free-text label for the engine phase currently
	// executing. Empty when not running.
	CurrentModule string `json:"current_module,omitempty"`

	// Process identifies the external engine process group.
	// Non-nil only while Status is "running"; cleared on every terminal
	// transition.
	Process *ProcessHandle `json:"process,omitempty"`

	// OutputPath is the per-scan output directory allocated at dispatch time.
	OutputPath string `json:"output_path,omitempty"`

	// LogFile receives all stdout/stderr of the external engine.
	LogFile string `json:"log_file,omitempty"`

	// Results holds the typed category lists extracted from the engine's
	// output tree. Nil unless Status is "completed".
	Results *ScanResults `json:"results,omitempty"`

	// Findings is the ordered list of normalized vulnerability findings.
	// Nil unless Status is "completed".
	Findings []Finding `json:"findings,omitempty"`

	// Score is the 0-100 posture score (higher is healthier).
	// Nil unless Status is "completed".
	Score *int `json:"score,omitempty"`

	// Grade is the letter grade derived from Score ("A+" .. "F").
	// Empty unless Status is "completed".
	Grade string `json:"grade,omitempty"`

	// ErrorMessage contains error details if the scan failed.
	ErrorMessage string `json:"error_message,omitempty"`

	// Lifecycle timestamps (UTC). Each pointer is nil until the scan
	// reaches the corresponding state.
	CreatedAt   time.Time  `json:"created_at"`
	QueuedAt    *time.Time `json:"queued_at,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// UpdatedAt is when the record was last written.
	UpdatedAt time.Time `json:"updated_at"`
}

// ProcessHandle identifies the external engine process group so a single
// signal can reach the whole subtree.
type ProcessHandle struct {
	PID  int `json:"pid"`
	PGID int `json:"pgid"`
}

// ScanResults is the typed bag of extracted categories. The slices keep
// first-seen order and are de-duplicated per category.
type ScanResults struct {
	Subdomains      []string    `json:"subdomains"`
	Hosts           []string    `json:"hosts"`
	OSINT           []string    `json:"osint"`
	Technologies    []string    `json:"technologies"`
	Vulnerabilities []string    `json:"vulnerabilities"`
	OpenPorts       []PortEntry `json:"open_ports"`
	WebData         []WebEntry  `json:"web_data"`
}

// PortEntry is one parsed open-port line ("22/tcp open ssh").
type PortEntry struct {
	Port    int    `json:"port"`
	Service string `json:"service"`
}

// WebEntry is one parsed web-fuzz hit: an HTTP status and the URL that
// produced it.
type WebEntry struct {
	Status int    `json:"status"`
	URL    string `json:"url"`
}

// Finding is one normalized, severity-tagged unit extracted from raw
// vulnerability output.
type Finding struct {
	Index    int      `json:"index"`
	Title    string   `json:"title"` // first 120 chars of the raw line
	Severity Severity `json:"severity"`
	Raw      string   `json:"raw"`
}

// Severity levels for findings.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// IsValid checks if the Severity is a known level.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo:
		return true
	default:
		return false
	}
}

// ScanMode selects which checks the external engine runs.
type ScanMode string

// Valid scan modes.
const (
	ModePassive   ScanMode = "passive"
	ModeSubdomain ScanMode = "subdomain"
	ModeWeb       ScanMode = "web"
	ModeFull      ScanMode = "full"
	ModeAll       ScanMode = "all"
)

// String returns the string representation of ScanMode.
func (m ScanMode) String() string {
	return string(m)
}

// IsValid checks if the ScanMode is valid.
func (m ScanMode) IsValid() bool {
	switch m {
	case ModePassive, ModeSubdomain, ModeWeb, ModeFull, ModeAll:
		return true
	default:
		return false
	}
}

// ScanStatus represents valid scan status values.
type ScanStatus string

// Valid scan statuses.
const (
	StatusPending   ScanStatus = "pending"
	StatusRunning   ScanStatus = "running"
	StatusCompleted ScanStatus = "completed"
	StatusFailed    ScanStatus = "failed"
	StatusStopped   ScanStatus = "stopped"
)

// String returns the string representation of ScanStatus.
func (s ScanStatus) String() string {
	return string(s)
}

// IsValid checks if the ScanStatus is valid.
func (s ScanStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusStopped:
		return true
	default:
		return false
	}
}

// IsTerminal returns true if the status indicates the scan is finished.
func (s ScanStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusStopped
}

// ScanFilter specifies criteria for filtering and sorting scans.
type ScanFilter struct {
	// Status filters by scan status (empty = all statuses).
	Status ScanStatus

	// Domain filters by domain substring match (empty = all domains).
	Domain string

	// Limit is the maximum number of results to return (0 = no limit).
	Limit int

	// OldestFirst orders results by creation time ascending. This is the
	// ordering the dispatcher relies on for FIFO promotion; the default
	// (false) returns newest first, which is what listing clients want.
	OldestFirst bool
}

// ScanUpdates specifies fields to update in a scan.
//
// Only non-nil fields are applied (partial update). For record fields
// that are themselves pointers, a double pointer distinguishes "clear
// this field" (pointer to nil) from "leave it alone" (nil).
type ScanUpdates struct {
	Status        *ScanStatus     `json:"status,omitempty"`
	ProgressPct   *int            `json:"progress_pct,omitempty"`
	CurrentModule *string         `json:"current_module,omitempty"`
	Process       **ProcessHandle `json:"-"`
	OutputPath    *string         `json:"output_path,omitempty"`
	LogFile       *string         `json:"log_file,omitempty"`
	Results       **ScanResults   `json:"-"`
	Findings      *[]Finding      `json:"-"`
	Score         **int           `json:"-"`
	Grade         *string         `json:"grade,omitempty"`
	ErrorMessage  *string         `json:"error_message,omitempty"`
	QueuedAt      **time.Time     `json:"-"`
	StartedAt     **time.Time     `json:"-"`
	CompletedAt   **time.Time     `json:"-"`
}

// HasResults reports whether the completed-result fields are all present.
// For a well-formed record this is true exactly when Status is "completed".
func (r *ScanRecord) HasResults() bool {
	return r.Results != nil && r.Findings != nil && r.Score != nil && r.Grade != ""
}
