package cloak

import "runtime/debug"

// Version returns the cloak version, followed by the abbreviated VCS revision
// the program was built from when known.
func Version() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "devel"
	}
	return buildVersion(info)
}

func buildVersion(info *debug.BuildInfo) string {
	version := "devel"
	switch info.Main.Version {
	case "", "(devel)":
	default:
		version = info.Main.Version
	}

	var revision string
	var modified bool
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			modified = setting.Value == "true"
		}
	}
	if revision != "" {
		if len(revision) > 12 {
			revision = revision[:12]
		}
		version += " " + revision
		if modified {
			version += "-dirty"
		}
	}
	return version
}
