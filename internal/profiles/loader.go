package profiles

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ctagard/cdp-bridge/internal/errors"
)

// TargetsFileName is the standard name of the profile file.
const TargetsFileName = "cdp-bridge-targets.json"

// LoadFromPath loads a targets file from an explicit path.
func LoadFromPath(path string) (*TargetsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", TargetsFileName, err)
	}
	var tf TargetsFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", TargetsFileName, err)
	}
	return &tf, nil
}

// Discover walks up from startPath looking for a targets file.
func Discover(startPath string) (string, error) {
	if startPath == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current directory: %w", err)
		}
		startPath = cwd
	}
	absPath, err := filepath.Abs(startPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	if info, err := os.Stat(absPath); err == nil && !info.IsDir() {
		absPath = filepath.Dir(absPath)
	}

	current := absPath
	for {
		candidate := filepath.Join(current, TargetsFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}
	return "", fmt.Errorf("no %s found in %s or parent directories", TargetsFileName, startPath)
}

// Load combines discovery and loading. An explicit path skips discovery.
func Load(path string) (*TargetsFile, string, error) {
	if path == "" {
		found, err := Discover("")
		if err != nil {
			return nil, "", err
		}
		path = found
	}
	tf, err := LoadFromPath(path)
	if err != nil {
		return nil, "", err
	}
	return tf, path, nil
}

// Find returns the profile with the given name.
func Find(tf *TargetsFile, name string) (*Profile, error) {
	for i := range tf.Profiles {
		if tf.Profiles[i].Name == name {
			return &tf.Profiles[i], nil
		}
	}
	return nil, errors.ProfileNotFound(name, Names(tf))
}

// Names lists all profile names.
func Names(tf *TargetsFile) []string {
	names := make([]string, len(tf.Profiles))
	for i, p := range tf.Profiles {
		names[i] = p.Name
	}
	return names
}

// List returns summary information about every profile.
func List(tf *TargetsFile) []Info {
	infos := make([]Info, len(tf.Profiles))
	for i, p := range tf.Profiles {
		infos[i] = Info{Name: p.Name, Kind: p.Kind, Request: p.Request}
	}
	return infos
}

// Validate checks a single profile for structural problems.
func Validate(p *Profile) error {
	if p.Name == "" {
		return errors.ProfileInvalid(p.Name, "name is required")
	}
	switch p.Kind {
	case KindNode, KindChrome, KindDeno, KindURL:
	default:
		return errors.ProfileInvalid(p.Name, fmt.Sprintf("unknown kind %q", p.Kind))
	}
	switch p.Request {
	case RequestLaunch, RequestAttach:
	default:
		return errors.ProfileInvalid(p.Name, fmt.Sprintf("request must be %q or %q, got %q", RequestLaunch, RequestAttach, p.Request))
	}
	if p.Kind == KindURL && p.Request != RequestAttach {
		return errors.ProfileInvalid(p.Name, "url profiles can only attach")
	}
	if p.IsAttach() && p.Address == "" && p.URL == "" {
		return errors.ProfileInvalid(p.Name, "attach profiles need an address or url")
	}
	if p.IsLaunch() && p.Program == "" && p.Kind != KindChrome {
		return errors.ProfileInvalid(p.Name, "launch profiles need a program")
	}
	return nil
}

// ValidateFile validates every profile and checks name uniqueness.
func ValidateFile(tf *TargetsFile) []error {
	var errs []error
	seen := make(map[string]bool)
	for i := range tf.Profiles {
		p := &tf.Profiles[i]
		if err := Validate(p); err != nil {
			errs = append(errs, err)
		}
		if p.Name != "" && seen[p.Name] {
			errs = append(errs, errors.ProfileInvalid(p.Name, "duplicate profile name"))
		}
		seen[p.Name] = true
	}
	return errs
}
