// Package netutil provides target normalization and validation for scan
// requests.
//
// It includes functions to:
//   - Normalize a raw target string into a bare lowercase domain
//     (scheme, path, port, and trailing dot stripped).
//   - Validate that a target is a syntactically plausible domain name or
//     IPv4 address.
//   - Detect blocked targets: anything resolving to loopback or private
//     address space, which must never be scanned.
//   - Check strict subdomain relationships for extractor filtering.
package netutil

import (
	"net"
	"regexp"
	"strings"
)

var (
	// domainPattern matches a plausible DNS name: dot-separated labels of
	// letters, digits, and hyphens, ending in an alphabetic TLD.
	domainPattern = regexp.MustCompile(`^(?:[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,}$`)

	ipv4Pattern = regexp.MustCompile(`^(?:\d{1,3}\.){3}\d{1,3}$`)
)

// NormalizeDomain reduces a raw target string to a bare lowercase domain.
// It strips an http/https scheme, any path or query suffix, a port, and a
// trailing dot. It does not validate the result; use ValidTarget.
func NormalizeDomain(raw string) string {
	d := strings.TrimSpace(strings.ToLower(raw))
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimPrefix(d, "https://")
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	// Strip a port, but not the colons of an IPv6 literal
	if i := strings.LastIndex(d, ":"); i >= 0 && strings.Count(d, ":") == 1 {
		d = d[:i]
	}
	return strings.TrimSuffix(d, ".")
}

// ValidTarget reports whether target is a syntactically valid domain name
// or IPv4 address. The target is expected to be normalized already.
func ValidTarget(target string) bool {
	if target == "" {
		return false
	}
	if ipv4Pattern.MatchString(target) {
		return net.ParseIP(target) != nil
	}
	return ValidDomainName(target)
}

// ValidDomainName reports whether s matches domain-name syntax. Used by
// the extractor to reject tool banners and garbage lines masquerading as
// subdomains.
func ValidDomainName(s string) bool {
	return len(s) <= 253 && domainPattern.MatchString(s)
}

// SubdomainOf reports whether line equals domain or is a strict subdomain
// of it. "api.example.com" passes for "example.com"; "notexample.com"
// does not.
func SubdomainOf(line, domain string) bool {
	if line == domain {
		return true
	}
	return strings.HasSuffix(line, "."+domain)
}

// BlockedTarget reports whether the target must not be scanned: localhost,
// anything that parses or resolves to a loopback address, or a private
// range (10.0.0.0/8, 172.16.0.0/12, 192.168.0.0/16). A target must never
// be the machine running the scanner or an internal network.
//
// Resolution failures do not block: an unresolvable public name is the
// engine's problem, not a policy violation.
func BlockedTarget(target string) bool {
	if target == "localhost" || strings.HasSuffix(target, ".localhost") {
		return true
	}

	if ip := net.ParseIP(target); ip != nil {
		return blockedIP(ip)
	}

	addrs, err := net.LookupIP(target)
	if err != nil {
		return false
	}
	for _, ip := range addrs {
		if blockedIP(ip) {
			return true
		}
	}
	return false
}

func blockedIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() || ip.IsLinkLocalUnicast()
}
