package scanexec

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/recontor/recontor/pkg/storage"
)

// Params defines the input required to run one scan to completion.
type Params struct {
	// ScanID is the record being executed.
	ScanID string

	// Domain is the normalized target.
	Domain string

	// Mode selects the engine flag set.
	Mode storage.ScanMode

	// OutputDir is where the engine writes its output tree.
	OutputDir string

	// LogFile receives all engine stdout/stderr.
	LogFile string
}

// BuildArgs constructs the external engine's argument vector for a mode.
//
// The web mode consumes a one-line target list file instead of a bare
// domain; callers must create it first with WriteTargetList and pass its
// path as targetList.
func BuildArgs(p Params, targetList string) ([]string, error) {
	base := []string{"-o", p.OutputDir}

	switch p.Mode {
	case storage.ModePassive:
		return append(base, "-d", p.Domain, "--passive"), nil
	case storage.ModeSubdomain:
		return append(base, "-d", p.Domain, "--subdomains"), nil
	case storage.ModeWeb:
		if targetList == "" {
			return nil, fmt.Errorf("web mode requires a target list file")
		}
		return append(base, "-l", targetList, "--web"), nil
	case storage.ModeFull, storage.ModeAll:
		return append(base, "-d", p.Domain, "--all"), nil
	default:
		return nil, fmt.Errorf("unknown scan mode %q", p.Mode)
	}
}

// WriteTargetList writes the one-line target list consumed by active web
// checks and returns its path.
func WriteTargetList(outputDir, domain string) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(outputDir, "targets.txt")
	if err := os.WriteFile(path, []byte(domain+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("write target list: %w", err)
	}
	return path, nil
}
