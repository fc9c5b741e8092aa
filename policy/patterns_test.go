package policy

import (
	"testing"

	"github.com/proctriage/triage/config"
)

func mustCompile(t *testing.T, entry config.PatternEntry) compiledPattern {
	t.Helper()
	cp, err := compilePattern(entry, "test")
	if err != nil {
		t.Fatalf("compilePattern: %v", err)
	}
	return cp
}

func TestLiteralPatternCaseInsensitive(t *testing.T) {
	cp := mustCompile(t, config.PatternEntry{Pattern: "sshd", Kind: config.PatternLiteral, CaseInsensitive: true})
	if !cp.matches("/usr/sbin/SSHD -D") {
		t.Error("expected case-insensitive literal match")
	}
	if cp.matches("/usr/sbin/httpd") {
		t.Error("unexpected match")
	}
}

func TestRegexPatternCaseInsensitivePrefix(t *testing.T) {
	cp := mustCompile(t, config.PatternEntry{Pattern: "^systemd", Kind: config.PatternRegex, CaseInsensitive: true})
	if !cp.matches("SYSTEMD --user") {
		t.Error("expected (?i) prefix to make regex case-insensitive")
	}
}

func TestGlobDoubleStarMatchesAnyDepth(t *testing.T) {
	cp := mustCompile(t, config.PatternEntry{Pattern: "/var/lib/docker/**/lock", Kind: config.PatternGlob})
	if !cp.matches("/var/lib/docker/containers/abc123/lock") {
		t.Error("expected ** to match across path segments")
	}
}

func TestGlobSingleStarAndQuestionMark(t *testing.T) {
	cp := mustCompile(t, config.PatternEntry{Pattern: "worker-?.pid", Kind: config.PatternGlob})
	if !cp.matches("worker-3.pid") {
		t.Error("expected ? to match a single character")
	}
	if cp.matches("worker-33.pid") {
		t.Error("? should not match two characters")
	}
}

func TestGlobCharacterClassNegation(t *testing.T) {
	cp := mustCompile(t, config.PatternEntry{Pattern: "job[!0-9].log", Kind: config.PatternGlob})
	if cp.matches("job5.log") {
		t.Error("expected negated class to reject digits")
	}
	if !cp.matches("jobx.log") {
		t.Error("expected negated class to accept non-digits")
	}
}

func TestGlobEscapesRegexMetacharacters(t *testing.T) {
	cp := mustCompile(t, config.PatternEntry{Pattern: "app.v1(beta)", Kind: config.PatternGlob})
	if !cp.matches("app.v1(beta)") {
		t.Error("expected literal dot and parens to match themselves")
	}
	if cp.matches("appXv1Xbeta)") {
		t.Error("escaped metacharacters should not behave as regex operators")
	}
}

func TestInvalidRegexPatternReturnsError(t *testing.T) {
	_, err := compilePattern(config.PatternEntry{Pattern: "(unclosed", Kind: config.PatternRegex}, "test")
	if err == nil {
		t.Fatal("expected error for invalid regex")
	}
}
