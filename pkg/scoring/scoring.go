// Package scoring turns raw vulnerability lines into normalized findings
// and computes the deterministic posture score and letter grade.
//
// Score and Grade are pure functions: no I/O, no state, total over their
// inputs. Higher score means healthier posture; that convention is part
// of the external contract and must be preserved exactly.
package scoring

import (
	"strings"

	"github.com/recontor/recontor/pkg/storage"
)

// maxTitleLen caps the excerpt of the raw line used as a finding title.
const maxTitleLen = 120

// severityRule maps a keyword to the severity it implies.
type severityRule struct {
	keyword  string
	severity storage.Severity
}

// severityRules is evaluated top to bottom against the lowercased raw
// line; the first match wins. A line containing both "critical" and
// "high" is therefore critical. Lines matching nothing default to low.
var severityRules = []severityRule{
	{"critical", storage.SeverityCritical},
	{"high", storage.SeverityHigh},
	{"medium", storage.SeverityMedium},
}

// deductions maps each severity to its score deduction. Unknown
// severities deduct 1 so malformed findings still register.
var deductions = map[storage.Severity]int{
	storage.SeverityCritical: 25,
	storage.SeverityHigh:     15,
	storage.SeverityMedium:   8,
	storage.SeverityLow:      3,
	storage.SeverityInfo:     0,
}

// InferSeverity returns the severity implied by a raw vulnerability line.
func InferSeverity(raw string) storage.Severity {
	lower := strings.ToLower(raw)
	for _, rule := range severityRules {
		if strings.Contains(lower, rule.keyword) {
			return rule.severity
		}
	}
	return storage.SeverityLow
}

// NormalizeFindings converts raw vulnerability lines into ordered,
// severity-tagged findings. Title is the first 120 characters of the line.
func NormalizeFindings(raw []string) []storage.Finding {
	findings := make([]storage.Finding, 0, len(raw))
	for i, line := range raw {
		title := line
		if len(title) > maxTitleLen {
			title = title[:maxTitleLen]
		}
		findings = append(findings, storage.Finding{
			Index:    i,
			Title:    title,
			Severity: InferSeverity(line),
			Raw:      line,
		})
	}
	return findings
}

// Score computes the 0-100 posture score: start at 100 and subtract a
// severity-indexed deduction per finding, clamped at zero.
func Score(findings []storage.Finding) int {
	total := 0
	for _, f := range findings {
		if d, ok := deductions[f.Severity]; ok {
			total += d
		} else {
			total++
		}
	}
	if total >= 100 {
		return 0
	}
	return 100 - total
}

// Grade maps a score to a letter grade.
func Grade(score int) string {
	switch {
	case score >= 90:
		return "A+"
	case score >= 80:
		return "A"
	case score >= 70:
		return "B"
	case score >= 60:
		return "C"
	case score >= 50:
		return "D"
	default:
		return "F"
	}
}
