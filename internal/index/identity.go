package index

import (
	"regexp"
	"strings"
)

// Claude Code encodes a project's absolute path into its directory name by
// replacing separators with dashes. The same real directory can therefore
// appear under two encodings: the drive-letter form written on Windows
// (E:\work\app → "E--work-app") and the mount form written from WSL or a
// POSIX mount of the same volume (/mnt/e/work/app → "-mnt-e-work-app").
var mountEncodedRe = regexp.MustCompile(`^-mnt-([a-zA-Z])-(.+)$`)

// CanonicalProjectID rewrites a mount-encoded identity to the drive-letter
// form so both encodings group into one project. Identities without a
// recognized alternate encoding pass through unchanged.
func CanonicalProjectID(raw string) string {
	if m := mountEncodedRe.FindStringSubmatch(raw); m != nil {
		return strings.ToUpper(m[1]) + "--" + m[2]
	}
	return raw
}

// projectName extracts a display name from an encoded identity: the last
// non-empty dash-separated segment.
func projectName(encoded string) string {
	parts := strings.Split(encoded, "-")
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] != "" {
			return parts[i]
		}
	}
	return encoded
}

// sessionIDRe matches the UUID shape session logs are named after.
var sessionIDRe = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

func looksLikeSessionID(name string) bool {
	return sessionIDRe.MatchString(name)
}
