package app

import (
	"runtime/debug"
	"testing"
)

func TestBuildInfoFromLdflags(t *testing.T) {
	tests := []struct {
		name    string
		version string
		date    string
		want    string
	}{
		{name: "defaults to dev", version: "", date: "", want: "dev"},
		{name: "trims version", version: " 1.2.3 ", date: "", want: "1.2.3"},
		{name: "rfc3339 date", version: "0.1.2", date: "2026-01-30T14:55:03Z", want: "0.1.2 (2026-01-30)"},
		{name: "date prefix", version: "0.1.2", date: "2026-01-30_build7", want: "0.1.2 (2026-01-30)"},
		{name: "unknown date kept", version: "0.1.2", date: "nightly", want: "0.1.2 (nightly)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildInfoFrom(tt.version, tt.date, nil).String(); got != tt.want {
				t.Fatalf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildInfoFromVCSStamp(t *testing.T) {
	info := &debug.BuildInfo{
		Main: debug.Module{Version: "v0.3.0"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef"},
			{Key: "vcs.time", Value: "2026-02-01T08:00:00Z"},
			{Key: "vcs.modified", Value: "true"},
		},
	}

	got := buildInfoFrom("", "", info)
	if got.Version != "v0.3.0" || got.Revision != "0123456" || !got.Modified || got.Date != "2026-02-01" {
		t.Fatalf("unexpected build info %+v", got)
	}
	if s := got.String(); s != "v0.3.0 (2026-02-01, 0123456-dirty)" {
		t.Fatalf("String() = %q", s)
	}
}

func TestBuildInfoPrefersLdflags(t *testing.T) {
	info := &debug.BuildInfo{
		Main:     debug.Module{Version: "(devel)"},
		Settings: []debug.BuildSetting{{Key: "vcs.time", Value: "2026-02-01T08:00:00Z"}},
	}

	got := buildInfoFrom("1.0.0", "2026-01-30", info)
	if got.Version != "1.0.0" || got.Date != "2026-01-30" {
		t.Fatalf("ldflags values were overridden: %+v", got)
	}

	devel := buildInfoFrom("", "", info)
	if devel.Version != "dev" {
		t.Fatalf("(devel) should stay dev, got %q", devel.Version)
	}
}
