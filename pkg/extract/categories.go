package extract

// Category identifies one semantic bucket of engine output.
type Category string

const (
	CategorySubdomains      Category = "subdomains"
	CategoryHosts           Category = "hosts"
	CategoryOSINT           Category = "osint"
	CategoryTechnologies    Category = "technologies"
	CategoryVulnerabilities Category = "vulnerabilities"
	CategoryOpenPorts       Category = "open-ports"
	CategoryWebData         Category = "web-data"
)

// categoryKeywords classifies output files by case-insensitive path
// substring. The external engine reorganizes its directory layout between
// releases, so classification depends only on these substrings, never on
// an exact schema. A single file may match more than one category.
var categoryKeywords = map[Category][]string{
	CategorySubdomains:      {"subdomain", "subfinder", "amass", "dnsx"},
	CategoryHosts:           {"host", "resolved", "alive", "probe"},
	CategoryOSINT:           {"osint", "whois", "emails", "metadata", "leak"},
	CategoryTechnologies:    {"technolog", "wappalyzer", "fingerprint", "webanalyze"},
	CategoryVulnerabilities: {"vuln", "nuclei", "cve", "exposure"},
	CategoryOpenPorts:       {"port", "nmap", "naabu"},
	CategoryWebData:         {"fuzz", "ffuf", "dirsearch", "gobuster", "webprobe"},
}

// Categories returns all known categories in a fixed order.
func Categories() []Category {
	return []Category{
		CategorySubdomains,
		CategoryHosts,
		CategoryOSINT,
		CategoryTechnologies,
		CategoryVulnerabilities,
		CategoryOpenPorts,
		CategoryWebData,
	}
}

// Keywords returns the path substrings that classify files into c.
func Keywords(c Category) []string {
	return categoryKeywords[c]
}
