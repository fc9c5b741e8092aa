package config

import "testing"

func TestPresetOrderingInvariants(t *testing.T) {
	dev := GetPreset(PresetDeveloper)
	ci := GetPreset(PresetCI)
	srv := GetPreset(PresetServer)
	para := GetPreset(PresetParanoid)

	if !(dev.Guardrails.MinProcessAgeSeconds < ci.Guardrails.MinProcessAgeSeconds &&
		ci.Guardrails.MinProcessAgeSeconds < srv.Guardrails.MinProcessAgeSeconds &&
		srv.Guardrails.MinProcessAgeSeconds < para.Guardrails.MinProcessAgeSeconds) {
		t.Errorf("min_process_age_seconds ordering violated: dev=%d ci=%d srv=%d para=%d",
			dev.Guardrails.MinProcessAgeSeconds, ci.Guardrails.MinProcessAgeSeconds,
			srv.Guardrails.MinProcessAgeSeconds, para.Guardrails.MinProcessAgeSeconds)
	}

	if !(dev.FdrControl.Alpha > ci.FdrControl.Alpha &&
		ci.FdrControl.Alpha > srv.FdrControl.Alpha &&
		srv.FdrControl.Alpha > para.FdrControl.Alpha) {
		t.Errorf("fdr_alpha ordering violated: dev=%v ci=%v srv=%v para=%v",
			dev.FdrControl.Alpha, ci.FdrControl.Alpha, srv.FdrControl.Alpha, para.FdrControl.Alpha)
	}

	if !(dev.LossMatrix.Useful.Kill < ci.LossMatrix.Useful.Kill &&
		ci.LossMatrix.Useful.Kill < srv.LossMatrix.Useful.Kill &&
		srv.LossMatrix.Useful.Kill < para.LossMatrix.Useful.Kill) {
		t.Errorf("loss_matrix.useful.kill ordering violated: dev=%v ci=%v srv=%v para=%v",
			dev.LossMatrix.Useful.Kill, ci.LossMatrix.Useful.Kill,
			srv.LossMatrix.Useful.Kill, para.LossMatrix.Useful.Kill)
	}

	if !(para.Guardrails.MaxKillsPerRun <= srv.Guardrails.MaxKillsPerRun &&
		srv.Guardrails.MaxKillsPerRun <= ci.Guardrails.MaxKillsPerRun &&
		ci.Guardrails.MaxKillsPerRun <= dev.Guardrails.MaxKillsPerRun) {
		t.Errorf("max_kills_per_run ordering violated: para=%d srv=%d ci=%d dev=%d",
			para.Guardrails.MaxKillsPerRun, srv.Guardrails.MaxKillsPerRun,
			ci.Guardrails.MaxKillsPerRun, dev.Guardrails.MaxKillsPerRun)
	}
}

func TestParsePresetNameAliases(t *testing.T) {
	tests := []struct {
		in   string
		want PresetName
	}{
		{"developer", PresetDeveloper},
		{"dev", PresetDeveloper},
		{"server", PresetServer},
		{"prod", PresetServer},
		{"ci", PresetCI},
		{"paranoid", PresetParanoid},
	}
	for _, tt := range tests {
		got, ok := ParsePresetName(tt.in)
		if !ok || got != tt.want {
			t.Errorf("ParsePresetName(%q) = %v, %v; want %v, true", tt.in, got, ok, tt.want)
		}
	}
	if _, ok := ParsePresetName("bogus"); ok {
		t.Errorf("ParsePresetName(bogus) should fail")
	}
}

func TestListPresetsCoversAllFour(t *testing.T) {
	infos := ListPresets()
	if len(infos) != 4 {
		t.Fatalf("ListPresets() len = %d, want 4", len(infos))
	}
}

func TestActivePolicyDefaultsWhenUnset(t *testing.T) {
	p := ActivePolicy()
	if p.PolicyID == "" {
		t.Errorf("ActivePolicy() returned zero-value policy")
	}
}

func TestSetActivePolicySwap(t *testing.T) {
	SetActivePolicy(GetPreset(PresetParanoid))
	if got := ActivePolicy(); got.PolicyID != "preset:paranoid" {
		t.Errorf("ActivePolicy().PolicyID = %q, want preset:paranoid", got.PolicyID)
	}
	SetActivePolicy(Default())
}
