// Package config loads the frozen Policy that decision/, policy/, and executor/ are threaded
// with (spec §9: "config is a frozen input struct to the core"). Mirrors the teacher's
// config/config.go Default()/Load()/Save()/Path() idiom, generalized from a TUI preferences file
// to a process-triage policy document.
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// Default returns the developer preset, the least conservative starting point -- matching the
// teacher's own Default() returning permissive interactive settings rather than a locked-down one.
func Default() Policy {
	return developerPreset()
}

// Path returns ~/.config/triage/policy.json (or XDG_CONFIG_HOME). Returns empty string if the
// home directory cannot be determined.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "" // refuse to fall back to /tmp (security risk)
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "triage", "policy.json")
}

// Load loads a policy from disk; returns the default preset on any error (missing file, parse
// failure). A parse failure is logged, not silently swallowed.
func Load() Policy {
	p := Path()
	if p == "" {
		return Default()
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return Default()
	}
	policy := Default()
	if err := json.Unmarshal(data, &policy); err != nil {
		log.Printf("triage: warning: policy parse error: %v", err)
		return Default()
	}
	return policy
}

// Save writes the policy to disk as indented JSON.
func Save(p Policy) error {
	path := Path()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
