// Package extract turns the external engine's output directory tree into
// typed, de-noised category lists.
//
// The engine writes an arbitrary nested tree of text files. Extraction
// never depends on the exact layout: files are classified into semantic
// categories purely by path substrings (see categories.go), their lines
// are filtered and de-duplicated, and two categories get an additional
// structured sub-parse (open ports and web-fuzz hits).
package extract

import (
	"bufio"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/recontor/recontor/pkg/netutil"
	"github.com/recontor/recontor/pkg/storage"
)

// Extractor walks an output root and produces ScanResults.
//
// The zero value is ready to use; FS overrides the filesystem for tests.
type Extractor struct {
	// FS, when non-nil, is walked instead of the OS filesystem. Paths in
	// the result are then relative to the fstest root.
	FS fs.FS
}

// Extract enumerates every file under root, classifies it by category
// keywords, and returns the filtered, de-duplicated category lists.
//
// domain is the normalized scan target; the subdomain category only
// accepts lines that are the domain itself or a strict subdomain of it.
//
// A read failure on a single file is logged and that file skipped;
// partial results beat none. Extract only errors when the root itself
// cannot be walked.
func (e *Extractor) Extract(root, domain string) (*storage.ScanResults, error) {
	paths, err := e.listFiles(root)
	if err != nil {
		return nil, err
	}

	results := &storage.ScanResults{
		Subdomains:      []string{},
		Hosts:           []string{},
		OSINT:           []string{},
		Technologies:    []string{},
		Vulnerabilities: []string{},
		OpenPorts:       []storage.PortEntry{},
		WebData:         []storage.WebEntry{},
	}

	for _, cat := range Categories() {
		lines := e.collectCategory(paths, cat, domain)
		switch cat {
		case CategorySubdomains:
			results.Subdomains = lines
		case CategoryHosts:
			results.Hosts = lines
		case CategoryOSINT:
			results.OSINT = lines
		case CategoryTechnologies:
			results.Technologies = lines
		case CategoryVulnerabilities:
			results.Vulnerabilities = lines
		case CategoryOpenPorts:
			results.OpenPorts = parsePortLines(lines)
		case CategoryWebData:
			results.WebData = parseWebLines(lines)
		}
	}

	return results, nil
}

// listFiles enumerates every regular file under root.
func (e *Extractor) listFiles(root string) ([]string, error) {
	var paths []string

	if e.FS != nil {
		err := fs.WalkDir(e.FS, ".", func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				paths = append(paths, path)
			}
			return nil
		})
		return paths, err
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtree: keep walking the rest
			log.Warn().Str("component", "extract").Str("path", path).Err(err).
				Msg("skipping unreadable path in output tree")
			return nil
		}
		if !d.IsDir() {
			paths = append(paths, path)
		}
		return nil
	})
	return paths, err
}

// collectCategory gathers the filtered, de-duplicated lines of every file
// whose path matches the category's keyword set.
func (e *Extractor) collectCategory(paths []string, cat Category, domain string) []string {
	lines := []string{}
	seen := make(map[string]struct{})

	for _, path := range paths {
		if !MatchesCategory(path, cat) {
			continue
		}
		fileLines, err := e.readLines(path)
		if err != nil {
			log.Warn().Str("component", "extract").Str("path", path).
				Str("category", string(cat)).Err(err).
				Msg("skipping unreadable output file")
			continue
		}
		for _, line := range fileLines {
			line = strings.TrimSpace(line)
			if !keepLine(line) {
				continue
			}
			if cat == CategorySubdomains && !validSubdomainLine(line, domain) {
				continue
			}
			if _, dup := seen[line]; dup {
				continue
			}
			seen[line] = struct{}{}
			lines = append(lines, line)
		}
	}
	return lines
}

// MatchesCategory reports whether the path (case-insensitive) contains
// any of the category's keywords.
func MatchesCategory(path string, cat Category) bool {
	lower := strings.ToLower(path)
	for _, kw := range categoryKeywords[cat] {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func (e *Extractor) readLines(path string) ([]string, error) {
	var f fs.File
	var err error
	if e.FS != nil {
		f, err = e.FS.Open(path)
	} else {
		f, err = os.Open(path)
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

// keepLine drops blank lines and structural noise: banner rules made of
// repeated dashes/underscores/pipes and table layouts with runs of spaces.
func keepLine(line string) bool {
	if line == "" {
		return false
	}
	for _, marker := range []string{"---", "___", "|||", "   "} {
		if strings.Contains(line, marker) {
			return false
		}
	}
	return true
}

// validSubdomainLine applies the stricter subdomain check: domain-name
// syntax and a strict subdomain (or equality) relationship with the
// scanned domain. Tool banners and stray hostnames never pass.
func validSubdomainLine(line, domain string) bool {
	line = strings.ToLower(line)
	if !netutil.ValidDomainName(line) {
		return false
	}
	return netutil.SubdomainOf(line, domain)
}
