package netutil_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/recontor/recontor/pkg/netutil"
)

func TestNormalizeDomain(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"already clean", "example.com", "example.com"},
		{"uppercase", "EXAMPLE.COM", "example.com"},
		{"https scheme", "https://example.com", "example.com"},
		{"http scheme", "http://example.com", "example.com"},
		{"path", "https://example.com/login", "example.com"},
		{"query", "example.com?q=1", "example.com"},
		{"fragment", "example.com#top", "example.com"},
		{"port", "example.com:8443", "example.com"},
		{"trailing dot", "example.com.", "example.com"},
		{"surrounding whitespace", "  example.com \n", "example.com"},
		{"everything at once", " HTTPS://Sub.Example.COM:443/a/b?x=1 ", "sub.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, netutil.NormalizeDomain(tt.raw))
		})
	}
}

func TestValidTarget(t *testing.T) {
	valid := []string{
		"example.com",
		"sub.example.com",
		"a-b.example.co.uk",
		"192.0.2.10",
		"xn--bcher-kva.example",
	}
	for _, target := range valid {
		require.True(t, netutil.ValidTarget(target), "expected %q to be valid", target)
	}

	invalid := []string{
		"",
		"example",
		"-bad.example.com",
		"exa mple.com",
		"example..com",
		"999.999.999.999",
		"example.com/path",
	}
	for _, target := range invalid {
		require.False(t, netutil.ValidTarget(target), "expected %q to be invalid", target)
	}
}

func TestSubdomainOf(t *testing.T) {
	tests := []struct {
		line   string
		domain string
		want   bool
	}{
		{"example.com", "example.com", true},
		{"api.example.com", "example.com", true},
		{"deep.api.example.com", "example.com", true},
		{"notexample.com", "example.com", false},
		{"evil.com", "example.com", false},
		{"example.com.evil.com", "example.com", false},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, netutil.SubdomainOf(tt.line, tt.domain),
			"SubdomainOf(%q, %q)", tt.line, tt.domain)
	}
}

func TestBlockedTarget(t *testing.T) {
	blocked := []string{
		"localhost",
		"api.localhost",
		"127.0.0.1",
		"10.1.2.3",
		"172.16.0.1",
		"192.168.1.1",
		"0.0.0.0",
		"169.254.10.10",
	}
	for _, target := range blocked {
		require.True(t, netutil.BlockedTarget(target), "expected %q to be blocked", target)
	}

	// Public literals never touch the resolver and must pass.
	require.False(t, netutil.BlockedTarget("8.8.8.8"))
	require.False(t, netutil.BlockedTarget("192.0.2.10"))
}
