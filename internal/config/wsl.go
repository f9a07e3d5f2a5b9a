package config

import (
	"os"
	"path/filepath"
	"strings"
)

var procVersionPath = "/proc/version"

// IsWSL reports whether the process runs inside Windows Subsystem for
// Linux.
func IsWSL() bool {
	data, err := os.ReadFile(procVersionPath)
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(string(data)), "microsoft")
}

// windowsMounts are the drive mount points scanned for Windows-side
// profiles.
var windowsMounts = []string{"/mnt/c", "/mnt/d"}

// DetectWindowsClaudeDirs finds Claude Code profile directories on mounted
// Windows drives, so a WSL-side clarc can mirror sessions written by the
// Windows-side CLI as additional sources.
func DetectWindowsClaudeDirs() []string {
	if !IsWSL() {
		return nil
	}
	return scanMountsForProfiles(windowsMounts)
}

func scanMountsForProfiles(mounts []string) []string {
	skip := map[string]bool{
		"Public":       true,
		"Default":      true,
		"Default User": true,
		"All Users":    true,
	}

	var found []string
	for _, mount := range mounts {
		usersDir := filepath.Join(mount, "Users")
		users, err := os.ReadDir(usersDir)
		if err != nil {
			continue // mount point may not be accessible
		}
		for _, user := range users {
			if skip[user.Name()] {
				continue
			}
			claudeDir := filepath.Join(usersDir, user.Name(), ".claude")
			if info, err := os.Stat(filepath.Join(claudeDir, "projects")); err == nil && info.IsDir() {
				found = append(found, claudeDir)
			}
		}
	}
	return found
}
