package validation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// RetentionTable names one of the persisted-state tables retention can prune (spec §6: audit log,
// rate-limiter state, retention event log, validation records — plus the raw per-run evidence
// tables named below, which only exist in the expanded ambient stack). Grounded on
// original_source/pt-telemetry/src/retention.rs's is_valid_table_name allowlist.
const (
	RetentionTableRuns           = "runs"
	RetentionTableProcSamples    = "proc_samples"
	RetentionTableProcFeatures   = "proc_features"
	RetentionTableProcInference  = "proc_inference"
	RetentionTableOutcomes       = "outcomes"
	RetentionTableAudit          = "audit"
)

// defaultTTLDays mirrors retention.rs's per-table defaults: raw per-process traces are cheap to
// lose and expire fastest, outcomes (validation ground truth) and audit are kept longest.
var defaultTTLDays = map[string]int{
	RetentionTableProcSamples:   7,
	RetentionTableProcFeatures:  14,
	RetentionTableProcInference: 14,
	RetentionTableRuns:          30,
	RetentionTableAudit:         90,
	RetentionTableOutcomes:      180,
}

// defaultPruningPriority is the order tables are pruned in when over a disk budget: cheapest,
// most-regenerable data first.
var defaultPruningPriority = []string{
	RetentionTableProcSamples, RetentionTableProcFeatures, RetentionTableProcInference,
	RetentionTableRuns, RetentionTableAudit, RetentionTableOutcomes,
}

// RetentionReasonKind is the discriminant of a RetentionReason.
type RetentionReasonKind int

const (
	ReasonTTLExpired RetentionReasonKind = iota
	ReasonDiskBudgetExceeded
	ReasonTableBudgetExceeded
	ReasonManualPrune
	ReasonCompacted
)

// RetentionReason explains why a file was (or would be) pruned. Exactly one of the optional
// fields is populated, selected by Kind; this flattens retention.rs's tagged-union RetentionReason
// into a single struct since Go has no sum types.
type RetentionReason struct {
	Kind RetentionReasonKind `json:"kind"`

	TTLDays     int    `json:"ttl_days,omitempty"`
	AgeDays     int    `json:"age_days,omitempty"`
	BudgetBytes int64  `json:"budget_bytes,omitempty"`
	UsedBytes   int64  `json:"used_bytes,omitempty"`
	FreedBytes  int64  `json:"freed_bytes,omitempty"`
	Table       string `json:"table,omitempty"`
	Reason      string `json:"reason,omitempty"`
	NewFile     string `json:"new_file,omitempty"`
}

func (k RetentionReasonKind) String() string {
	switch k {
	case ReasonTTLExpired:
		return "ttl_expired"
	case ReasonDiskBudgetExceeded:
		return "disk_budget_exceeded"
	case ReasonTableBudgetExceeded:
		return "table_budget_exceeded"
	case ReasonManualPrune:
		return "manual_prune"
	case ReasonCompacted:
		return "compacted"
	}
	return "unknown"
}

// RetentionEvent is one pruning action, logged whether or not it was actually applied (spec §6's
// retention event log record: "{timestamp, file_path, table, size_bytes, age_days, reason,
// dry_run, host_id, session_ids[]}"). No silent deletions: every prune, dry-run or real, gets one
// of these.
type RetentionEvent struct {
	Timestamp  time.Time        `json:"timestamp"`
	FilePath   string           `json:"file_path"`
	Table      string           `json:"table"`
	SizeBytes  int64            `json:"size_bytes"`
	AgeDays    int              `json:"age_days"`
	Reason     RetentionReason  `json:"reason"`
	DryRun     bool             `json:"dry_run"`
	HostID     string           `json:"host_id"`
	SessionIDs []string         `json:"session_ids,omitempty"`
}

// RetentionConfig configures TTL and disk-budget enforcement. Non-goal (SPEC_FULL.md §3.8): no
// parquet internals, cross-host aggregation, or UI reporting — this config only drives the
// event-log contract itself.
type RetentionConfig struct {
	TTLDays           map[string]int
	DiskBudgetBytes   int64
	TableBudgetBytes  map[string]int64
	KeepEverything    bool
	PruningPriority   []string
	MinFreeAfterBytes int64
	DryRun            bool
}

// DefaultRetentionConfig mirrors retention.rs's Default impl: a 10 GiB global budget, table
// defaults from defaultTTLDays, and MinFreeAfterBytes set to 100 MiB. Enforce does not read
// MinFreeAfterBytes, so no floor is kept back from pruning.
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		TTLDays:           map[string]int{},
		DiskBudgetBytes:   10 * 1024 * 1024 * 1024,
		TableBudgetBytes:  map[string]int64{},
		PruningPriority:   append([]string(nil), defaultPruningPriority...),
		MinFreeAfterBytes: 100 * 1024 * 1024,
	}
}

func (c RetentionConfig) effectiveTTLDays(table string) int {
	if d, ok := c.TTLDays[table]; ok {
		return d
	}
	if d, ok := defaultTTLDays[table]; ok {
		return d
	}
	return 30
}

// pruneCandidate is one on-disk file eligible for pruning.
type pruneCandidate struct {
	path         string
	relativePath string
	table        string
	sizeBytes    int64
	modified     time.Time
	sessionIDs   []string
}

func (p pruneCandidate) ageDays() int {
	return int(time.Since(p.modified).Hours() / 24)
}

// Enforcer enforces RetentionConfig over a telemetry root directory, emitting RetentionEvents to
// an append-only JSON-lines log (never deleting silently). Grounded on
// original_source/pt-telemetry/src/retention.rs's RetentionEnforcer; scope trimmed per
// SPEC_FULL.md §3.8 to the event-log contract (no parquet compaction, no fleet status reports).
type Enforcer struct {
	rootDir    string
	config     RetentionConfig
	hostID     string
	eventLog   string
}

// NewEnforcer builds an Enforcer rooted at rootDir, appending retention events to eventLogPath.
func NewEnforcer(rootDir string, config RetentionConfig, hostID, eventLogPath string) *Enforcer {
	return &Enforcer{rootDir: rootDir, config: config, hostID: hostID, eventLog: eventLogPath}
}

// tableForPath infers a file's table from its first path segment under rootDir, matching the
// partitioned layout retention.rs assumes (e.g. "proc_samples/2026-07-30/host/....json").
func (e *Enforcer) tableForPath(rel string) (string, bool) {
	first := rel
	if idx := indexOfSeparator(rel); idx >= 0 {
		first = rel[:idx]
	}
	for _, t := range defaultPruningPriority {
		if t == first {
			return t, true
		}
	}
	return "", false
}

func indexOfSeparator(s string) int {
	for i, c := range s {
		if c == '/' || c == os.PathSeparator {
			return i
		}
	}
	return -1
}

func (e *Enforcer) scanAllFiles() ([]pruneCandidate, error) {
	var out []pruneCandidate
	err := filepath.Walk(e.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(e.rootDir, path)
		if err != nil {
			return nil
		}
		table, ok := e.tableForPath(rel)
		if !ok {
			return nil
		}
		out = append(out, pruneCandidate{
			path:         path,
			relativePath: rel,
			table:        table,
			sizeBytes:    info.Size(),
			modified:     info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan telemetry root: %w", err)
	}
	return out, nil
}

// Enforce scans rootDir and prunes every file that is TTL-expired or, after TTL pruning, still
// leaves a table or the whole tree over its configured disk budget. In DryRun mode no file is
// deleted, but the same RetentionEvents are still computed and appended to the event log (spec
// §4.7/§3.8: "no silent deletions" holds for previews too).
func (e *Enforcer) Enforce() ([]RetentionEvent, error) {
	if e.config.KeepEverything {
		return nil, nil
	}

	candidates, err := e.scanAllFiles()
	if err != nil {
		return nil, err
	}

	var events []RetentionEvent
	kept := map[string]pruneCandidate{}
	for _, c := range candidates {
		kept[c.path] = c
	}

	// Pass 1: TTL.
	for path, c := range kept {
		ttl := e.config.effectiveTTLDays(c.table)
		age := c.ageDays()
		if age > ttl {
			events = append(events, e.emit(c, RetentionReason{Kind: ReasonTTLExpired, TTLDays: ttl, AgeDays: age}))
			delete(kept, path)
		}
	}

	// Pass 2: per-table budget, then global budget, evicting oldest-first within
	// e.config.PruningPriority order until each constraint is satisfied.
	for _, table := range e.priorityOrder() {
		budget, hasBudget := e.config.TableBudgetBytes[table]
		if !hasBudget || budget <= 0 {
			continue
		}
		remaining := e.tableUsage(kept, table)
		if remaining <= budget {
			continue
		}
		for _, c := range e.oldestFirst(kept, table) {
			if remaining <= budget {
				break
			}
			events = append(events, e.emit(c, RetentionReason{
				Kind: ReasonTableBudgetExceeded, Table: table, BudgetBytes: budget,
				UsedBytes: remaining, FreedBytes: c.sizeBytes,
			}))
			remaining -= c.sizeBytes
			delete(kept, c.path)
		}
	}

	if e.config.DiskBudgetBytes > 0 {
		used := e.totalUsage(kept)
		if used > e.config.DiskBudgetBytes {
			for _, table := range e.priorityOrder() {
				if used <= e.config.DiskBudgetBytes {
					break
				}
				for _, c := range e.oldestFirst(kept, table) {
					if used <= e.config.DiskBudgetBytes {
						break
					}
					events = append(events, e.emit(c, RetentionReason{
						Kind: ReasonDiskBudgetExceeded, BudgetBytes: e.config.DiskBudgetBytes,
						UsedBytes: used, FreedBytes: c.sizeBytes,
					}))
					used -= c.sizeBytes
					delete(kept, c.path)
				}
			}
		}
	}

	if err := e.persist(events); err != nil {
		return events, err
	}
	return events, nil
}

// ManualPrune prunes a single file outside the TTL/budget sweep (e.g. an operator-requested
// deletion), still routed through the same event-log contract.
func (e *Enforcer) ManualPrune(c pruneCandidate, reason string) (RetentionEvent, error) {
	ev := e.emit(c, RetentionReason{Kind: ReasonManualPrune, Reason: reason})
	if err := e.persist([]RetentionEvent{ev}); err != nil {
		return ev, err
	}
	return ev, nil
}

func (e *Enforcer) priorityOrder() []string {
	if len(e.config.PruningPriority) > 0 {
		return e.config.PruningPriority
	}
	return defaultPruningPriority
}

func (e *Enforcer) tableUsage(m map[string]pruneCandidate, table string) int64 {
	var sum int64
	for _, c := range m {
		if c.table == table {
			sum += c.sizeBytes
		}
	}
	return sum
}

func (e *Enforcer) totalUsage(m map[string]pruneCandidate) int64 {
	var sum int64
	for _, c := range m {
		sum += c.sizeBytes
	}
	return sum
}

func (e *Enforcer) oldestFirst(m map[string]pruneCandidate, table string) []pruneCandidate {
	var out []pruneCandidate
	for _, c := range m {
		if c.table == table {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].modified.Before(out[j].modified) })
	return out
}

func (e *Enforcer) emit(c pruneCandidate, reason RetentionReason) RetentionEvent {
	ev := RetentionEvent{
		Timestamp:  time.Now(),
		FilePath:   c.relativePath,
		Table:      c.table,
		SizeBytes:  c.sizeBytes,
		AgeDays:    c.ageDays(),
		Reason:     reason,
		DryRun:     e.config.DryRun,
		HostID:     e.hostID,
		SessionIDs: c.sessionIDs,
	}
	if !e.config.DryRun {
		_ = os.Remove(c.path)
	}
	return ev
}

func (e *Enforcer) persist(events []RetentionEvent) error {
	if e.eventLog == "" || len(events) == 0 {
		return nil
	}
	f, err := os.OpenFile(e.eventLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open retention event log: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, ev := range events {
		if err := enc.Encode(ev); err != nil {
			return fmt.Errorf("write retention event: %w", err)
		}
	}
	return nil
}
