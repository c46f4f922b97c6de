package version

import (
	"fmt"
	"runtime/debug"
)

// Version can be set at build time:
// go build -ldflags "-X github.com/xentune/xentune/version.Version=$(git describe --dirty)"
var Version string

// Build holds what the Go toolchain recorded about the binary.
type Build struct {
	Module   string // version of the main module, "(devel)" for local builds
	Revision string // short VCS revision, with a -dirty suffix if modified
	Go       string
}

var build = readBuild()

func readBuild() Build {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Build{}
	}
	return fromSettings(info.Main.Version, info.GoVersion, info.Settings)
}

func fromSettings(module, goVersion string, settings []debug.BuildSetting) Build {
	b := Build{Module: module, Go: goVersion}
	modified := false
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			b.Revision = s.Value
			if len(b.Revision) > 7 {
				b.Revision = b.Revision[:7]
			}
		case "vcs.modified":
			modified = s.Value == "true"
		}
	}
	if modified && b.Revision != "" {
		b.Revision += "-dirty"
	}
	return b
}

// VersionOrHash is the version given with -ldflags, or the module version
// or VCS revision when it was not given.
var VersionOrHash = pick(Version, build)

func pick(v string, b Build) string {
	switch {
	case v != "":
		return v
	case b.Module != "" && b.Module != "(devel)":
		return b.Module
	}
	return b.Revision
}

// String describes the named program for -v output.
func String(program string) string {
	return describe(program, VersionOrHash, build.Go)
}

func describe(program, v, goVersion string) string {
	if v == "" {
		v = "unknown version"
	}
	if goVersion == "" {
		return fmt.Sprintf("%s %s", program, v)
	}
	return fmt.Sprintf("%s %s (%s)", program, v, goVersion)
}
