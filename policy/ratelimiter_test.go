package policy

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/proctriage/triage/config"
)

// newTestRateLimiter opens a file-backed rate limiter under t.TempDir(). A real file, rather than
// the default ":memory:" DSN, is required here: database/sql's connection pool can hand concurrent
// goroutines distinct underlying connections, and modernc.org/sqlite gives each connection its own
// private in-memory database unless the DSN opts into a shared cache, which would make a
// concurrency test against ":memory:" meaningless.
func newTestRateLimiter(t *testing.T, maxPerRun int) *rateLimiter {
	t.Helper()
	g := config.Guardrails{MaxKillsPerRun: maxPerRun}
	dbPath := filepath.Join(t.TempDir(), "ratelimiter.db")
	r, err := newRateLimiter(g, dbPath)
	if err != nil {
		t.Fatalf("newRateLimiter: %v", err)
	}
	t.Cleanup(func() { r.close() })
	return r
}

// TestRecordKillConcurrentNeverExceedsCap races many goroutines against recordKill and asserts the
// committed run count never overshoots max_kills_per_run: the cap check and the increment must be
// one atomic statement, not a separate read followed by an unconditional write.
func TestRecordKillConcurrentNeverExceedsCap(t *testing.T) {
	const maxKills = 10
	const attempts = 50

	r := newTestRateLimiter(t, maxKills)
	now := time.Now()

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.recordKill(now); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if successes != maxKills {
		t.Fatalf("expected exactly %d successful recordKill calls, got %d", maxKills, successes)
	}

	count, err := r.currentRunCount()
	if err != nil {
		t.Fatalf("currentRunCount: %v", err)
	}
	if count != maxKills {
		t.Fatalf("run counter overshot cap: got %d, want %d", count, maxKills)
	}
}
