package collector

import (
	"strings"

	"github.com/proctriage/triage/model"
)

// criticalRule is one entry in the frozen critical-file ruleset (spec §4.1). Rules are ordered
// so the first matching rule wins; matching is case-insensitive on path suffixes.
type criticalRule struct {
	ruleID   string
	suffix   string
	category model.CriticalFileCategory
	strength model.CriticalStrength
}

// criticalRuleset is frozen at package init. Hard rules fire only on paths that must be locked
// during normal use (WAL/journal, VCS index lock, package-manager lock); soft rules cover
// extensions that usually-but-not-always indicate writes.
var criticalRuleset = []criticalRule{
	{"sqlite_wal", "-wal", model.CategorySqliteWal, model.StrengthHard},
	{"sqlite_shm", "-shm", model.CategorySqliteWal, model.StrengthSoft},
	{"git_index_lock", ".git/index.lock", model.CategoryGitLock, model.StrengthHard},
	{"git_rebase", ".git/rebase-merge", model.CategoryGitRebase, model.StrengthHard},
	{"dpkg_lock", "/var/lib/dpkg/lock", model.CategorySystemPackageLock, model.StrengthHard},
	{"dpkg_lock_frontend", "/var/lib/dpkg/lock-frontend", model.CategorySystemPackageLock, model.StrengthHard},
	{"rpm_db_lock", "/var/lib/rpm/.rpm.lock", model.CategorySystemPackageLock, model.StrengthHard},
	{"apt_lists_lock", "/var/lib/apt/lists/lock", model.CategorySystemPackageLock, model.StrengthHard},
	{"npm_package_lock", "package-lock.json", model.CategoryNodePackageLock, model.StrengthSoft},
	{"yarn_lock", "yarn.lock", model.CategoryNodePackageLock, model.StrengthSoft},
	{"cargo_lock", "cargo.lock", model.CategoryCargoLock, model.StrengthSoft},
	{"sqlite_db", ".sqlite3", model.CategoryDatabaseWrite, model.StrengthSoft},
	{"sqlite_db_short", ".db", model.CategoryDatabaseWrite, model.StrengthSoft},
	{"generic_lock", ".lock", model.CategoryAppLock, model.StrengthSoft},
}

// matchCriticalFiles scans every open write FD against the frozen ruleset, emitting one record
// per matching FD (spec §4.1).
func matchCriticalFiles(fds []model.OpenFD) []model.CriticalFile {
	var out []model.CriticalFile
	for _, fd := range fds {
		if fd.Kind != model.FDKindPath || !fd.CanWrite {
			continue
		}
		lower := strings.ToLower(fd.Target)
		for _, rule := range criticalRuleset {
			if strings.HasSuffix(lower, rule.suffix) {
				out = append(out, model.CriticalFile{
					FD:       fd.FD,
					Path:     fd.Target,
					Category: rule.category,
					Strength: rule.strength,
					RuleID:   rule.ruleID,
				})
				break // first matching rule wins
			}
		}
	}
	return out
}
