package collector

import (
	"testing"

	"github.com/proctriage/triage/model"
)

func TestMatchCriticalFiles(t *testing.T) {
	tests := []struct {
		name     string
		fds      []model.OpenFD
		wantLen  int
		wantCat  model.CriticalFileCategory
		wantStr  model.CriticalStrength
	}{
		{
			"dpkg lock is hard",
			[]model.OpenFD{{FD: 3, Target: "/var/lib/dpkg/lock", Kind: model.FDKindPath, CanWrite: true}},
			1, model.CategorySystemPackageLock, model.StrengthHard,
		},
		{
			"sqlite wal is hard",
			[]model.OpenFD{{FD: 4, Target: "/data/app.db-wal", Kind: model.FDKindPath, CanWrite: true}},
			1, model.CategorySqliteWal, model.StrengthHard,
		},
		{
			"generic lock is soft",
			[]model.OpenFD{{FD: 5, Target: "/tmp/build.lock", Kind: model.FDKindPath, CanWrite: true}},
			1, model.CategoryAppLock, model.StrengthSoft,
		},
		{
			"read-only fd never matches",
			[]model.OpenFD{{FD: 6, Target: "/var/lib/dpkg/lock", Kind: model.FDKindPath, CanWrite: false}},
			0, 0, 0,
		},
		{
			"socket fd never matches",
			[]model.OpenFD{{FD: 7, Target: "socket:[12345]", Kind: model.FDKindSocket, CanWrite: true}},
			0, 0, 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := matchCriticalFiles(tt.fds)
			if len(got) != tt.wantLen {
				t.Fatalf("len = %d, want %d", len(got), tt.wantLen)
			}
			if tt.wantLen > 0 {
				if got[0].Category != tt.wantCat {
					t.Errorf("category = %v, want %v", got[0].Category, tt.wantCat)
				}
				if got[0].Strength != tt.wantStr {
					t.Errorf("strength = %v, want %v", got[0].Strength, tt.wantStr)
				}
			}
		})
	}
}

func TestClassifyFDTarget(t *testing.T) {
	tests := []struct {
		target string
		want   model.FDKind
	}{
		{"socket:[12345]", model.FDKindSocket},
		{"pipe:[6789]", model.FDKindPipe},
		{"anon_inode:[eventfd]", model.FDKindAnonInode},
		{"/dev/null", model.FDKindDevice},
		{"/var/log/app.log", model.FDKindPath},
	}
	for _, tt := range tests {
		if got := classifyFDTarget(tt.target); got != tt.want {
			t.Errorf("classifyFDTarget(%q) = %v, want %v", tt.target, got, tt.want)
		}
	}
}
