package main

import "strings"

// categoryHints maps a substring of a process's comm to the category label the policy's
// protected/allow/exclude category lists and the validation ledger's per-category breakdown key
// on (spec §3's Candidate.category, §4.7's CategoryValidation.category). Neither spec.md nor
// original_source/ names a canonical classifier, so this is a small, openly heuristic lookup --
// an operator with a richer service inventory is expected to override Category via policy or a
// future discovery integration, not to rely on this guess.
var categoryHints = []struct {
	substr   string
	category string
}{
	{"sshd", "system_service"},
	{"systemd", "system_service"},
	{"dockerd", "container_runtime"},
	{"containerd", "container_runtime"},
	{"postgres", "database"},
	{"mysqld", "database"},
	{"mongod", "database"},
	{"redis", "database"},
	{"nginx", "web_server"},
	{"apache", "web_server"},
	{"node", "application"},
	{"python", "application"},
	{"java", "application"},
	{"pytest", "test_runner"},
	{"jest", "test_runner"},
	{"go test", "test_runner"},
}

// guessCategory returns the first matching category hint for comm, or "" if none match.
func guessCategory(comm string) string {
	lower := strings.ToLower(comm)
	for _, h := range categoryHints {
		if strings.Contains(lower, h.substr) {
			return h.category
		}
	}
	return ""
}
