package collector

import "github.com/proctriage/triage/model"

// supervisorEnvVars maps known supervisor-identifying environment variables to the supervisor
// kind they indicate (spec §4.2.3).
var supervisorEnvVars = map[string]model.SupervisorKind{
	"PM2_HOME":               model.SupervisorPM2,
	"pm_id":                  model.SupervisorPM2,
	"SUPERVISOR_ENABLED":     model.SupervisorSystemd,
	"SUPERVISOR_PROCESS_NAME": model.SupervisorSystemd,
	"NODEMON_CONFIG":         model.SupervisorNodemon,
	"FOREVER_ROOT":           model.SupervisorForever,
	"FOREVER_UID":            model.SupervisorForever,
}

// supervisorAncestryComm maps known supervisor process names to the kind they indicate, used
// when walking the parent chain (spec §4.2.3).
var supervisorAncestryComm = map[string]model.SupervisorKind{
	"systemd":                model.SupervisorSystemd,
	"launchd":                model.SupervisorLaunchd,
	"containerd-shim":        model.SupervisorContainer,
	"containerd-shim-runc-v2": model.SupervisorContainer,
	"dockerd":                model.SupervisorContainer,
	"pm2":                    model.SupervisorPM2,
	"nodemon":                model.SupervisorNodemon,
	"forever":                model.SupervisorForever,
}

// detectSupervisionHints produces raw (unconfident) SupervisorHint candidates from environment
// variables and ancestry comm names. Confidence scoring (the cap-at-0.95 rule when both env and
// ancestry agree) is computed downstream by feature.DetectSupervision (C2, spec §4.2.3) — the
// collector's job is only to surface the raw matched signals (spec §4.1).
func detectSupervisionHints(snap *model.Snapshot, ancestryComm []string) []model.SupervisorHint {
	byKind := make(map[model.SupervisorKind]*model.SupervisorHint)

	get := func(kind model.SupervisorKind) *model.SupervisorHint {
		if h, ok := byKind[kind]; ok {
			return h
		}
		h := &model.SupervisorHint{Kind: kind}
		byKind[kind] = h
		return h
	}

	for envKey := range snap.Environ {
		if kind, ok := supervisorEnvVars[envKey]; ok {
			get(kind).FromEnv = true
		}
	}

	for _, comm := range ancestryComm {
		if kind, ok := supervisorAncestryComm[comm]; ok {
			get(kind).FromAncestry = true
		}
	}

	out := make([]model.SupervisorHint, 0, len(byKind))
	for _, h := range byKind {
		out = append(out, *h)
	}
	return out
}
