package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/recontor/recontor/pkg/storage"
)

// portLinePattern matches nmap-style open-port lines: "22/tcp open ssh".
var portLinePattern = regexp.MustCompile(`^(\d{1,5})/tcp\s+open\s+(\S+)`)

// parsePortLines turns open-port lines into PortEntry values. Lines that
// do not match the "<port>/tcp open <service>" shape are dropped without
// error.
func parsePortLines(lines []string) []storage.PortEntry {
	entries := []storage.PortEntry{}
	for _, line := range lines {
		m := portLinePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		port, err := strconv.Atoi(m[1])
		if err != nil || port < 1 || port > 65535 {
			continue
		}
		entries = append(entries, storage.PortEntry{Port: port, Service: m[2]})
	}
	return entries
}

// parseWebLines heuristically splits fuzzer output lines into a leading
// numeric status token and a trailing URL-looking token. Lines without a
// URL-looking trailing token are dropped rather than erroring.
func parseWebLines(lines []string) []storage.WebEntry {
	entries := []storage.WebEntry{}
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		status, err := strconv.Atoi(strings.TrimSuffix(fields[0], ":"))
		if err != nil || status < 100 || status > 599 {
			continue
		}

		url := fields[len(fields)-1]
		if !looksLikeURL(url) {
			continue
		}

		entries = append(entries, storage.WebEntry{Status: status, URL: url})
	}
	return entries
}

func looksLikeURL(s string) bool {
	return strings.HasPrefix(s, "http://") ||
		strings.HasPrefix(s, "https://") ||
		strings.HasPrefix(s, "/")
}
