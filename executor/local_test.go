package executor

import (
	"testing"

	"github.com/proctriage/triage/model"
)

func TestCgroupV2DirJoinsFirstNonRootPath(t *testing.T) {
	snap := &model.Snapshot{CgroupPaths: []string{"/", "/system.slice/myapp.service"}}
	dir, err := cgroupV2Dir(snap)
	if err != nil {
		t.Fatalf("cgroupV2Dir: %v", err)
	}
	if dir != "/sys/fs/cgroup/system.slice/myapp.service" {
		t.Errorf("dir = %q, want /sys/fs/cgroup/system.slice/myapp.service", dir)
	}
}

func TestCgroupV2DirErrorsWithNoMembership(t *testing.T) {
	snap := &model.Snapshot{CgroupPaths: []string{"/"}}
	if _, err := cgroupV2Dir(snap); err == nil {
		t.Error("expected an error when the process has no cgroup v2 membership")
	}
}
