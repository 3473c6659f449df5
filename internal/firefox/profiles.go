// Package firefox reads tabs straight out of a Firefox profile's
// session store, for capturing a browser session without the extension.
package firefox

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Profile is one Firefox profile with a readable session store.
type Profile struct {
	Name      string
	Path      string
	IsDefault bool

	isRelative bool
}

// FindFirefoxDir returns the platform-specific Firefox profile directory.
func FindFirefoxDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	switch runtime.GOOS {
	case "linux":
		return filepath.Join(home, ".mozilla", "firefox")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Firefox")
	default:
		return ""
	}
}

// ParseProfilesINI reads profiles.ini and returns the profiles that have
// a session file to capture from.
func ParseProfilesINI(iniPath, firefoxDir string) ([]Profile, error) {
	f, err := os.Open(iniPath)
	if err != nil {
		return nil, fmt.Errorf("open profiles.ini: %w", err)
	}
	defer f.Close()

	var profiles []Profile
	var current *Profile

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			if current != nil {
				profiles = append(profiles, *current)
				current = nil
			}
			section := line[1 : len(line)-1]
			if strings.HasPrefix(section, "Profile") {
				current = &Profile{}
			}
			continue
		}

		if current == nil {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key, value := parts[0], parts[1]

		switch key {
		case "Name":
			current.Name = value
		case "Path":
			current.Path = value
		case "IsRelative":
			current.isRelative = value == "1"
		case "Default":
			current.IsDefault = value == "1"
		}
	}

	if current != nil {
		profiles = append(profiles, *current)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan profiles.ini: %w", err)
	}

	for i := range profiles {
		if profiles[i].isRelative {
			profiles[i].Path = filepath.Join(firefoxDir, profiles[i].Path)
		}
	}

	var usable []Profile
	for _, p := range profiles {
		if sessionFilePath(p.Path) != "" {
			usable = append(usable, p)
		}
	}
	return usable, nil
}

// DiscoverProfiles finds and parses Firefox profiles on this system.
func DiscoverProfiles() ([]Profile, error) {
	dir := FindFirefoxDir()
	if dir == "" {
		return nil, fmt.Errorf("could not find Firefox directory for %s", runtime.GOOS)
	}
	iniPath := filepath.Join(dir, "profiles.ini")
	return ParseProfilesINI(iniPath, dir)
}

// DefaultProfile picks the profile marked Default=1, falling back to the
// first usable one.
func DefaultProfile() (Profile, error) {
	profiles, err := DiscoverProfiles()
	if err != nil {
		return Profile{}, err
	}
	if len(profiles) == 0 {
		return Profile{}, fmt.Errorf("no Firefox profile with a session store found")
	}
	for _, p := range profiles {
		if p.IsDefault {
			return p, nil
		}
	}
	return profiles[0], nil
}

// sessionFilePath returns the path of the profile's session file, trying
// recovery.jsonlz4 (active session) before previous.jsonlz4 (last closed
// session). Empty if neither exists.
func sessionFilePath(profileDir string) string {
	backupDir := filepath.Join(profileDir, "sessionstore-backups")
	for _, name := range []string{"recovery.jsonlz4", "previous.jsonlz4"} {
		p := filepath.Join(backupDir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
