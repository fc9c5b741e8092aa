package config

import "sync/atomic"

// activePolicy holds the currently loaded Policy behind an atomic pointer, so a hot reload can
// swap the whole document in one atomic store without callers needing a lock (spec §5's "atomic
// pointer-swap" requirement). Mirrors the teacher's engine/profiles.go ActiveProfile idiom,
// generalized from a package-level map to a swappable pointer.
var activePolicy atomic.Pointer[Policy]

// SetActivePolicy installs p as the policy returned by ActivePolicy, atomically replacing
// whatever was active before. Safe to call concurrently with ActivePolicy readers.
func SetActivePolicy(p Policy) {
	activePolicy.Store(&p)
}

// ActivePolicy returns the currently active policy, loading and installing the default preset
// on first use if SetActivePolicy was never called.
func ActivePolicy() Policy {
	p := activePolicy.Load()
	if p == nil {
		d := Default()
		SetActivePolicy(d)
		return d
	}
	return *p
}
