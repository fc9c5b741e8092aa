package collector

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/proctriage/triage/model"
	"github.com/proctriage/triage/util"
)

// readFDTable parses the FD table by resolving each FD's target, categorizing socket:*,
// pipe:*, anon_inode:*, /dev/*, absolute path into typed buckets (spec §4.1). Read-mode flags
// come from fdinfo as octal, with the bottom two bits giving read/write access mode. The walk is
// capped at maxFDEntries; exceeding it sets the truncation flag rather than blocking indefinitely.
func readFDTable(pidDir string) ([]model.OpenFD, bool) {
	fdDir := filepath.Join(pidDir, "fd")
	entries, err := os.ReadDir(fdDir)
	if err != nil {
		return nil, false
	}

	truncated := len(entries) > maxFDEntries
	if truncated {
		entries = entries[:maxFDEntries]
	}

	fds := make([]model.OpenFD, 0, len(entries))
	for _, e := range entries {
		fdNum, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		target, err := os.Readlink(filepath.Join(fdDir, e.Name()))
		if err != nil {
			continue
		}
		canRead, canWrite := readFDInfoMode(pidDir, e.Name())
		fds = append(fds, model.OpenFD{
			FD:       fdNum,
			Target:   target,
			Kind:     classifyFDTarget(target),
			CanRead:  canRead,
			CanWrite: canWrite,
		})
	}
	return fds, truncated
}

func classifyFDTarget(target string) model.FDKind {
	switch {
	case strings.HasPrefix(target, "socket:"):
		return model.FDKindSocket
	case strings.HasPrefix(target, "pipe:"):
		return model.FDKindPipe
	case strings.HasPrefix(target, "anon_inode:"):
		return model.FDKindAnonInode
	case strings.HasPrefix(target, "/dev/"):
		return model.FDKindDevice
	default:
		return model.FDKindPath
	}
}

// readFDInfoMode reads /proc/[pid]/fdinfo/[fd]'s "flags" line, an octal file-status-flags value
// whose bottom two bits give the access mode (O_RDONLY=0, O_WRONLY=1, O_RDWR=2) per spec §4.1.
func readFDInfoMode(pidDir, fd string) (canRead, canWrite bool) {
	kv, err := util.ParseKeyValueFile(filepath.Join(pidDir, "fdinfo", fd))
	if err != nil {
		return true, false // default: assume read-only on parse failure
	}
	raw := kv["flags"]
	flags, err := strconv.ParseInt(strings.TrimSpace(raw), 8, 64)
	if err != nil {
		return true, false
	}
	switch flags & 0x3 {
	case 0: // O_RDONLY
		return true, false
	case 1: // O_WRONLY
		return false, true
	case 2: // O_RDWR
		return true, true
	}
	return true, false
}
