package otypes

import (
	"regexp"
	"strconv"
	"strings"
)

var versionNumber = regexp.MustCompile(`[0-9]+`)

// Version is the parsed release string the server reports on db open,
// e.g. "2.2.37 (build abc123)".
type Version struct {
	Release string
	Major   int
	Minor   int
	Build   int
	Tag     string
}

// ParseVersion parses a server release string. Missing components
// default to zero; the full original string is preserved in Release.
func ParseVersion(release string) Version {
	v := Version{Release: release}

	parts := strings.SplitN(release, ".", 3)
	if len(parts) > 0 {
		if m := versionNumber.FindString(parts[0]); m != "" {
			v.Major, _ = strconv.Atoi(m)
		}
	}
	if len(parts) > 1 {
		minor := parts[1]
		if i := strings.IndexByte(minor, '-'); i >= 0 {
			v.Tag = minor[i+1:]
			minor = minor[:i]
		}
		if m := versionNumber.FindString(minor); m != "" {
			v.Minor, _ = strconv.Atoi(m)
		}
	}
	if len(parts) > 2 {
		build := parts[2]
		if m := versionNumber.FindString(build); m != "" {
			v.Build, _ = strconv.Atoi(m)
			if rest := strings.TrimLeft(build[strings.Index(build, m)+len(m):], ".- "); rest != "" {
				v.Tag = rest
			}
		}
	}

	return v
}
