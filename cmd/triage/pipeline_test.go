package main

import "testing"

func TestExitCodeFor(t *testing.T) {
	cases := []struct {
		name                          string
		blocked, executed, failedExec int
		want                          int
	}{
		{"all clean", 0, 3, 0, exitSuccess},
		{"nothing to do", 0, 0, 0, exitSuccess},
		{"blocked only", 2, 0, 0, exitPolicyViolation},
		{"blocked and failed, nothing executed", 1, 0, 1, exitPartialFailure},
		{"blocked alongside a success", 1, 1, 0, exitPartialFailure},
		{"failed execution only", 0, 1, 1, exitPartialFailure},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := exitCodeFor(tc.blocked, tc.executed, tc.failedExec); got != tc.want {
				t.Errorf("exitCodeFor(%d, %d, %d) = %d, want %d", tc.blocked, tc.executed, tc.failedExec, got, tc.want)
			}
		})
	}
}
