package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/proctriage/triage/decision"
	"github.com/proctriage/triage/util"
)

// readPressure samples the host-wide load signals decision.Pressure needs, following the
// teacher's collector/cpu.go + collector/memory.go + collector/psi.go idiom of reading one
// /proc file per signal and defaulting silently on a read failure -- a pressure reading that
// can't be taken is treated as "no pressure", never as a fatal error, since load-aware
// modulation is an optional dampener, not a correctness requirement.
func readPressure() decision.Pressure {
	var p decision.Pressure

	if line, err := firstLine("/proc/loadavg"); err == nil {
		fields := strings.Fields(line)
		if len(fields) >= 4 {
			if load1, err := strconv.ParseFloat(fields[0], 64); err == nil {
				p.LoadPerCore = load1 / float64(numCPUs())
			}
			if slash := strings.Index(fields[3], "/"); slash > 0 {
				if running, err := strconv.Atoi(fields[3][:slash]); err == nil {
					p.QueueLength = running
				}
			}
		}
	}

	if kv, err := util.ParseKeyValueFile("/proc/meminfo"); err == nil {
		total := util.ParseUint64(kv["MemTotal"])
		avail := util.ParseUint64(kv["MemAvailable"])
		if total > 0 {
			p.MemoryUsedFraction = 1 - float64(avail)/float64(total)
		}
	}

	if line, err := psiSomeLine("/proc/pressure/cpu"); err == nil {
		p.PSIAvg10 = psiAvg10(line)
	}

	return p
}

func firstLine(path string) (string, error) {
	content, err := util.ReadFileString(path)
	if err != nil {
		return "", err
	}
	if idx := strings.IndexByte(content, '\n'); idx >= 0 {
		return content[:idx], nil
	}
	return content, nil
}

func psiSomeLine(path string) (string, error) {
	lines, err := util.ReadFileLines(path)
	if err != nil {
		return "", err
	}
	for _, line := range lines {
		if strings.HasPrefix(line, "some ") {
			return line, nil
		}
	}
	return "", fmt.Errorf("no 'some' line in %s", path)
}

// psiAvg10 extracts avg10=N.NN from a PSI "some ..." line, per /proc/pressure's documented
// format. Returns 0 if the field is missing or malformed.
func psiAvg10(line string) float64 {
	for _, field := range strings.Fields(line) {
		if v, ok := strings.CutPrefix(field, "avg10="); ok {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f
			}
		}
	}
	return 0
}

func numCPUs() int {
	lines, err := util.ReadFileLines("/proc/stat")
	if err != nil {
		return 1
	}
	n := 0
	for _, line := range lines {
		if strings.HasPrefix(line, "cpu") && len(line) > 3 && line[3] >= '0' && line[3] <= '9' {
			n++
		}
	}
	if n == 0 {
		return 1
	}
	return n
}
