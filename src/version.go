package m17

import (
	"fmt"
	"runtime/debug"
)

// Set at build time via `-ldflags "-X 'github.com/thombles/m17rt/src.M17RT_VERSION=X'"`
var M17RT_VERSION string

func getBuildSettingOrDefault(bi *debug.BuildInfo, key string, defaultValue string) string {
	for _, bs := range bi.Settings {
		if bs.Key == key {
			return bs.Value
		}
	}

	return defaultValue
}

// VersionString describes the build for tool banners and the DNS-SD TXT record.
func VersionString() string {
	var version = M17RT_VERSION
	if version == "" {
		version = "dev"
	}

	var buildInfo, ok = debug.ReadBuildInfo()
	if !ok {
		return version
	}

	var buildCommit = getBuildSettingOrDefault(buildInfo, "vcs.revision", "")
	if len(buildCommit) > 8 {
		buildCommit = buildCommit[:8]
	}
	if buildCommit == "" {
		return version
	}

	return fmt.Sprintf("%s (%s)", version, buildCommit)
}
