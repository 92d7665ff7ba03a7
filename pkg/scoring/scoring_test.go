package scoring_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/recontor/recontor/pkg/scoring"
	"github.com/recontor/recontor/pkg/storage"
)

func TestInferSeverity(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want storage.Severity
	}{
		{"critical keyword", "CVE-2024-1234 critical RCE in login", storage.SeverityCritical},
		{"high keyword", "CVE-2023-xxxx high severity", storage.SeverityHigh},
		{"medium keyword", "medium: directory listing enabled", storage.SeverityMedium},
		{"case insensitive", "HIGH risk TLS configuration", storage.SeverityHigh},
		{"critical beats high", "critical issue with high impact", storage.SeverityCritical},
		{"no keyword defaults low", "outdated nginx version", storage.SeverityLow},
		{"empty line", "", storage.SeverityLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, scoring.InferSeverity(tt.raw))
		})
	}
}

func TestNormalizeFindings(t *testing.T) {
	raw := []string{
		"CVE-2023-xxxx high severity",
		"outdated nginx version",
	}

	findings := scoring.NormalizeFindings(raw)
	require.Len(t, findings, 2)

	require.Equal(t, 0, findings[0].Index)
	require.Equal(t, storage.SeverityHigh, findings[0].Severity)
	require.Equal(t, raw[0], findings[0].Title)
	require.Equal(t, raw[0], findings[0].Raw)

	require.Equal(t, 1, findings[1].Index)
	require.Equal(t, storage.SeverityLow, findings[1].Severity)
}

func TestNormalizeFindingsTruncatesTitle(t *testing.T) {
	long := strings.Repeat("a", 300) + " critical"
	findings := scoring.NormalizeFindings([]string{long})

	require.Len(t, findings, 1)
	require.Len(t, findings[0].Title, 120)
	require.Equal(t, long, findings[0].Raw, "raw line is preserved untruncated")
	require.Equal(t, storage.SeverityCritical, findings[0].Severity)
}

func TestScore(t *testing.T) {
	mk := func(severities ...storage.Severity) []storage.Finding {
		findings := make([]storage.Finding, len(severities))
		for i, s := range severities {
			findings[i] = storage.Finding{Index: i, Severity: s}
		}
		return findings
	}

	tests := []struct {
		name     string
		findings []storage.Finding
		want     int
	}{
		{"no findings", nil, 100},
		{"single critical", mk(storage.SeverityCritical), 75},
		{"single high", mk(storage.SeverityHigh), 85},
		{"single medium", mk(storage.SeverityMedium), 92},
		{"single low", mk(storage.SeverityLow), 97},
		{"info costs nothing", mk(storage.SeverityInfo), 100},
		{"unknown costs one", mk(storage.Severity("weird")), 99},
		{"high plus low", mk(storage.SeverityHigh, storage.SeverityLow), 82},
		{"clamped at zero", mk(
			storage.SeverityCritical, storage.SeverityCritical,
			storage.SeverityCritical, storage.SeverityCritical,
			storage.SeverityCritical,
		), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, scoring.Score(tt.findings))
		})
	}
}

func TestScoreMonotonicity(t *testing.T) {
	findings := []storage.Finding{}
	prev := scoring.Score(findings)
	for i := 0; i < 10; i++ {
		findings = append(findings, storage.Finding{Index: i, Severity: storage.SeverityMedium})
		score := scoring.Score(findings)
		require.LessOrEqual(t, score, prev, "adding a finding must never raise the score")
		prev = score
	}
}

func TestGrade(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{100, "A+"},
		{90, "A+"},
		{89, "A"},
		{82, "A"},
		{80, "A"},
		{79, "B"},
		{70, "B"},
		{69, "C"},
		{60, "C"},
		{59, "D"},
		{50, "D"},
		{49, "F"},
		{0, "F"},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, scoring.Grade(tt.score), "Grade(%d)", tt.score)
	}
}
