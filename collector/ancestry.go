package collector

import (
	"fmt"
	"os"
	"strings"

	"github.com/proctriage/triage/util"
)

// maxAncestryDepth bounds the parent-chain walk so a cycle or corrupted /proc never spins.
const maxAncestryDepth = 32

// walkAncestry walks the parent chain from ppid up to PID 1 (or maxAncestryDepth), returning the
// PIDs and their comm names in order (immediate parent first). Missing or unreadable ancestors
// are skipped, matching spec §4.1's "any per-process read failure is recorded and skipped."
func walkAncestry(ppid int) (pids []int, comms []string) {
	pid := ppid
	for depth := 0; depth < maxAncestryDepth && pid > 1; depth++ {
		comm, err := os.ReadFile(fmt.Sprintf("/proc/%d/comm", pid))
		if err != nil {
			break
		}
		pids = append(pids, pid)
		comms = append(comms, strings.TrimSpace(string(comm)))

		stat, err := util.ReadFileString(fmt.Sprintf("/proc/%d/stat", pid))
		if err != nil {
			break
		}
		closeIdx := strings.LastIndex(stat, ")")
		if closeIdx < 0 {
			break
		}
		rest := strings.Fields(stat[closeIdx+2:])
		if len(rest) < 2 {
			break
		}
		nextPPID := util.ParseInt(rest[1])
		if nextPPID == pid {
			break
		}
		pid = nextPPID
	}
	return pids, comms
}
