package app

import (
	"fmt"
	"runtime/debug"
	"strings"
	"time"
)

var (
	// Version is filled by ldflags in release builds.
	Version = "dev"
	// BuildDate is filled by ldflags in release builds.
	BuildDate = ""
)

const shortRevisionLen = 7

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version  string
	Date     string // YYYY-MM-DD or whatever ldflags carried
	Revision string
	Modified bool
}

// CurrentBuild combines ldflags values with the VCS stamp the Go toolchain
// embeds. A module version from `go install` replaces a missing ldflags one.
func CurrentBuild() BuildInfo {
	info, _ := debug.ReadBuildInfo()

	return buildInfoFrom(Version, BuildDate, info)
}

func buildInfoFrom(version, date string, info *debug.BuildInfo) BuildInfo {
	b := BuildInfo{
		Version: normalizeVersion(version),
		Date:    normalizeDate(date),
	}
	if info == nil {
		return b
	}

	if b.Version == "dev" {
		if mv := strings.TrimSpace(info.Main.Version); mv != "" && mv != "(devel)" {
			b.Version = mv
		}
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			b.Revision = setting.Value
			if len(b.Revision) > shortRevisionLen {
				b.Revision = b.Revision[:shortRevisionLen]
			}
		case "vcs.time":
			if b.Date == "" {
				b.Date = normalizeDate(setting.Value)
			}
		case "vcs.modified":
			b.Modified = setting.Value == "true"
		}
	}

	return b
}

func (b BuildInfo) String() string {
	var details []string
	if b.Date != "" {
		details = append(details, b.Date)
	}
	if b.Revision != "" {
		rev := b.Revision
		if b.Modified {
			rev += "-dirty"
		}
		details = append(details, rev)
	}
	if len(details) == 0 {
		return b.Version
	}

	return fmt.Sprintf("%s (%s)", b.Version, strings.Join(details, ", "))
}

// LogAttrs is the key/value list used in startup log lines.
func (b BuildInfo) LogAttrs() []any {
	return []any{"version", b.Version, "build_date", b.Date, "revision", b.Revision}
}

func normalizeVersion(raw string) string {
	version := strings.TrimSpace(raw)
	if version == "" {
		return "dev"
	}

	return version
}

func normalizeDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return parsed.UTC().Format(time.DateOnly)
	}
	if len(raw) >= len(time.DateOnly) {
		date := raw[:len(time.DateOnly)]
		if _, err := time.Parse(time.DateOnly, date); err == nil {
			return date
		}
	}

	return raw
}
