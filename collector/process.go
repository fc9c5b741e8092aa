// Package collector implements C1: reading OS process metadata, /proc files, and
// supervisor/container hints into typed model.Snapshot values, per spec §4.1.
package collector

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/proctriage/triage/model"
	"github.com/proctriage/triage/util"
)

// maxFDEntries is the per-process parse budget for FD inspection (spec §4.1: "caps FD
// inspection at 50,000 entries").
const maxFDEntries = 50000

// ErrStatShort is returned when a process's /proc/pid/stat record has fewer fields than the
// parser indexes. Grounded on original_source/pt-core/src/collect/proc_parsers.rs's
// ParseError::TooShort: the original typed this as an error rather than silently truncating,
// and the teacher's readProcStat already performs the same length check (collector/process.go).
var ErrStatShort = fmt.Errorf("stat record too short")

// Collector produces process snapshots from /proc, per spec §4.1.
type Collector struct {
	HostID    string
	ClockTick int64 // USER_HZ, ticks per second
	BootTime  time.Time
}

// NewCollector constructs a Collector, reading boot time and host identity once.
func NewCollector() (*Collector, error) {
	bootTime, err := readBootTime()
	if err != nil {
		return nil, fmt.Errorf("read boot time: %w", err)
	}
	host, err := hostID()
	if err != nil {
		host = "unknown"
	}
	return &Collector{HostID: host, ClockTick: 100, BootTime: bootTime}, nil
}

// Enumerate scans all visible processes in one pass (spec §4.1). Per-process read failures are
// recorded and skipped; no partial snapshot is surfaced, and a failed parse is never retried
// within a pass.
func (c *Collector) Enumerate() ([]*model.Snapshot, []string) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, []string{fmt.Sprintf("read /proc: %v", err)}
	}

	var snaps []*model.Snapshot
	var warnings []string
	now := time.Now()
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		pid := util.ParseInt(e.Name())
		if pid <= 0 {
			continue
		}
		snap, err := c.read(pid, now)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("pid %d: %v", pid, err))
			continue
		}
		snaps = append(snaps, snap)
	}
	return snaps, warnings
}

// Snapshot performs a targeted re-read of one identity. Fails with ErrProcessGone if the process
// has exited or its start time no longer matches (spec §4.1).
func (c *Collector) Snapshot(id model.Identity) (*model.Snapshot, error) {
	snap, err := c.read(id.PID, time.Now())
	if err != nil {
		return nil, model.NewTriageError(model.ErrProcessGone, "process vanished during targeted re-read", "re-enumerate", true, err)
	}
	if snap.Identity.StartTimeTicks != id.StartTimeTicks {
		return nil, model.NewTriageError(model.ErrProcessGone, "pid reused by a different process", "re-enumerate", true, nil)
	}
	return snap, nil
}

func (c *Collector) read(pid int, now time.Time) (*model.Snapshot, error) {
	pidDir := fmt.Sprintf("/proc/%d", pid)
	snap := &model.Snapshot{Timestamp: now}

	startTicks, err := c.readStat(pidDir, snap)
	if err != nil {
		return nil, err
	}

	snap.Identity = model.Identity{PID: pid, StartTimeTicks: startTicks, HostID: c.HostID}
	snap.AgeSeconds = int64(now.Sub(c.BootTime).Seconds()) - int64(startTicks)/c.ClockTick

	readStatus(pidDir, snap)
	readIO(pidDir, snap)
	readCgroup(pidDir, snap)
	readCmdline(pidDir, snap)
	readCWD(pidDir, snap)
	readWchan(pidDir, snap)
	readEnviron(pidDir, snap)

	fds, truncated := readFDTable(pidDir)
	snap.OpenFDs = fds
	snap.FDCount = len(fds)
	snap.FDTruncated = truncated
	snap.CriticalFiles = matchCriticalFiles(fds)

	ancestryPIDs, ancestryComm := walkAncestry(snap.PPID)
	snap.ParentChain = ancestryPIDs
	snap.Supervisor = detectSupervisionHints(snap, ancestryComm)

	return snap, nil
}

// readStat parses /proc/[pid]/stat, locating the command-field boundaries from the first '(' to
// the *last* ')' since comm may itself contain spaces and parentheses (spec §4.1). Returns the
// start-time in boot ticks (field 22).
func (c *Collector) readStat(pidDir string, snap *model.Snapshot) (uint64, error) {
	content, err := util.ReadFileString(filepath.Join(pidDir, "stat"))
	if err != nil {
		return 0, err
	}

	closeIdx := strings.LastIndex(content, ")")
	if closeIdx < 0 {
		return 0, fmt.Errorf("bad stat format")
	}
	openIdx := strings.Index(content, "(")
	if openIdx < 0 {
		return 0, fmt.Errorf("bad stat format")
	}

	snap.Comm = content[openIdx+1 : closeIdx]
	rest := strings.Fields(content[closeIdx+2:]) // skip ") "

	// rest[0] is field 3 (state); the stat record we index into goes up to field 22
	// (starttime), so we need at least 20 fields after the comm.
	if len(rest) < 20 {
		return 0, ErrStatShort
	}

	snap.State = parseState(rest[0])
	snap.PPID = util.ParseInt(rest[1])
	snap.CPUTimeTicks = util.ParseUint64(rest[11]) + util.ParseUint64(rest[12]) // utime + stime
	startTicks := util.ParseUint64(rest[19])                                   // field 22: starttime

	return startTicks, nil
}

func parseState(s string) model.ProcState {
	if s == "" {
		return model.StateUnknown
	}
	switch s[0] {
	case 'R':
		return model.StateRunning
	case 'S':
		return model.StateSleeping
	case 'D':
		return model.StateDiskSleep
	case 'Z':
		return model.StateZombie
	case 'T':
		return model.StateStopped
	case 't':
		return model.StateTraced
	}
	return model.StateUnknown
}

func readStatus(pidDir string, snap *model.Snapshot) {
	kv, err := util.ParseKeyValueFile(filepath.Join(pidDir, "status"))
	if err != nil {
		return
	}
	snap.RSSBytes = parseStatusKB(kv["VmRSS"])
	snap.VSZBytes = parseStatusKB(kv["VmSize"])
	if uidLine, ok := kv["Uid"]; ok {
		snap.User = resolveUser(util.FieldsAt(uidLine, 0))
	}
	if gidLine, ok := kv["Gid"]; ok {
		snap.Group = resolveGroup(util.FieldsAt(gidLine, 0))
	}
}

func parseStatusKB(s string) uint64 {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0
	}
	return util.ParseUint64(fields[0]) * 1024
}

func readIO(pidDir string, snap *model.Snapshot) {
	kv, err := util.ParseKeyValueFile(filepath.Join(pidDir, "io"))
	if err != nil {
		return
	}
	snap.IOReadBytes = util.ParseUint64(kv["read_bytes"])
	snap.IOWriteBytes = util.ParseUint64(kv["write_bytes"])
}

func readCgroup(pidDir string, snap *model.Snapshot) {
	content, err := util.ReadFileString(filepath.Join(pidDir, "cgroup"))
	if err != nil {
		return
	}
	for _, line := range strings.Split(content, "\n") {
		parts := strings.SplitN(strings.TrimSpace(line), ":", 3)
		if len(parts) == 3 && parts[2] != "" {
			snap.CgroupPaths = append(snap.CgroupPaths, parts[2])
		}
	}
}

func readCmdline(pidDir string, snap *model.Snapshot) {
	data, err := os.ReadFile(filepath.Join(pidDir, "cmdline"))
	if err != nil || len(data) == 0 {
		return
	}
	parts := strings.Split(strings.TrimRight(string(data), "\x00"), "\x00")
	for _, p := range parts {
		if p != "" {
			snap.Cmdline = append(snap.Cmdline, p)
		}
	}
}

func readCWD(pidDir string, snap *model.Snapshot) {
	target, err := os.Readlink(filepath.Join(pidDir, "cwd"))
	if err != nil {
		return
	}
	snap.CWD = target
	snap.CWDDeleted = strings.Contains(target, "(deleted)")
}

func readWchan(pidDir string, snap *model.Snapshot) {
	data, err := os.ReadFile(filepath.Join(pidDir, "wchan"))
	if err == nil {
		snap.Wchan = string(data)
	}
}

func readEnviron(pidDir string, snap *model.Snapshot) {
	data, err := os.ReadFile(filepath.Join(pidDir, "environ"))
	if err != nil || len(data) == 0 {
		return
	}
	snap.Environ = make(map[string]string)
	for _, kv := range strings.Split(strings.TrimRight(string(data), "\x00"), "\x00") {
		if kv == "" {
			continue
		}
		if i := strings.IndexByte(kv, '='); i >= 0 {
			snap.Environ[kv[:i]] = kv[i+1:]
		}
	}
}

func readBootTime() (time.Time, error) {
	kv, err := util.ParseKeyValueFile("/proc/stat")
	if err != nil {
		return time.Time{}, err
	}
	btime := util.ParseUint64(kv["btime"])
	if btime == 0 {
		return time.Time{}, fmt.Errorf("no btime in /proc/stat")
	}
	return time.Unix(int64(btime), 0), nil
}

func hostID() (string, error) {
	data, err := os.ReadFile("/etc/machine-id")
	if err == nil {
		id := strings.TrimSpace(string(data))
		if id != "" {
			return id, nil
		}
	}
	name, err := os.Hostname()
	if err != nil {
		return "", err
	}
	return name, nil
}

// resolveUser and resolveGroup default to os/user lookup, falling back to the raw numeric ID on
// failure, matching readProcStatus's "default on failure" idiom in the teacher's
// collector/process.go.
var resolveUser = func(uid string) string {
	if u, err := user.LookupId(uid); err == nil {
		return u.Username
	}
	return uid
}

var resolveGroup = func(gid string) string {
	if g, err := user.LookupGroupId(gid); err == nil {
		return g.Name
	}
	return gid
}
