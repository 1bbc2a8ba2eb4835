package profiles

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ctagard/cdp-bridge/internal/errors"
)

// variablePattern matches ${...} expressions.
var variablePattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ResolutionContext provides the values variable resolution draws from.
type ResolutionContext struct {
	WorkspaceFolder string
	InputValues     map[string]string
	EnvOverrides    map[string]string
}

// ResolveVariables replaces every ${...} variable in text. Unknown variables
// and missing inputs are errors; the original text is kept in the result so
// the caller can report it.
func ResolveVariables(text string, ctx *ResolutionContext) (string, error) {
	if ctx == nil {
		ctx = &ResolutionContext{}
	}

	var lastErr error
	result := variablePattern.ReplaceAllStringFunc(text, func(match string) string {
		expr := match[2 : len(match)-1]
		resolved, err := resolveVariable(expr, ctx)
		if err != nil {
			lastErr = err
			return match
		}
		return resolved
	})
	return result, lastErr
}

func resolveVariable(expr string, ctx *ResolutionContext) (string, error) {
	switch {
	case expr == "workspaceFolder":
		return ctx.WorkspaceFolder, nil

	case expr == "workspaceFolderBasename":
		return filepath.Base(ctx.WorkspaceFolder), nil

	case expr == "userHome":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home: %w", err)
		}
		return home, nil

	case expr == "cwd":
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get cwd: %w", err)
		}
		return cwd, nil

	case expr == "pathSeparator":
		return string(os.PathSeparator), nil

	case strings.HasPrefix(expr, "env:"):
		name := strings.TrimPrefix(expr, "env:")
		if ctx.EnvOverrides != nil {
			if val, ok := ctx.EnvOverrides[name]; ok {
				return val, nil
			}
		}
		return os.Getenv(name), nil

	case strings.HasPrefix(expr, "input:"):
		id := strings.TrimPrefix(expr, "input:")
		if ctx.InputValues != nil {
			if val, ok := ctx.InputValues[id]; ok {
				return val, nil
			}
		}
		return "", errors.MissingInputs([]string{id})

	default:
		return "", fmt.Errorf("unknown variable: ${%s}", expr)
	}
}

// FindRequiredInputs scans text for ${input:...} variables and returns their
// ids in order of first appearance.
func FindRequiredInputs(text string) []string {
	var inputs []string
	seen := make(map[string]bool)
	for _, match := range variablePattern.FindAllStringSubmatch(text, -1) {
		expr := match[1]
		if !strings.HasPrefix(expr, "input:") {
			continue
		}
		id := strings.TrimPrefix(expr, "input:")
		if !seen[id] {
			seen[id] = true
			inputs = append(inputs, id)
		}
	}
	return inputs
}

// RequiredInputs scans every string field of a profile for ${input:...}
// variables.
func RequiredInputs(p *Profile) []string {
	var inputs []string
	seen := make(map[string]bool)
	add := func(text string) {
		for _, id := range FindRequiredInputs(text) {
			if !seen[id] {
				seen[id] = true
				inputs = append(inputs, id)
			}
		}
	}

	for _, field := range p.stringFields() {
		add(*field)
	}
	for _, arg := range p.Args {
		add(arg)
	}
	for _, arg := range p.RuntimeArgs {
		add(arg)
	}
	for _, v := range p.Env {
		add(v)
	}
	return inputs
}

// MissingInputs returns the input ids a profile needs that values does not
// provide.
func MissingInputs(p *Profile, values map[string]string) []string {
	var missing []string
	for _, id := range RequiredInputs(p) {
		if _, ok := values[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

// Resolve returns a copy of the profile with every ${...} variable replaced.
// Missing inputs are collected into a single structured error before any
// other resolution is attempted.
func Resolve(p *Profile, ctx *ResolutionContext) (*Profile, error) {
	if ctx == nil {
		ctx = &ResolutionContext{}
	}
	if missing := MissingInputs(p, ctx.InputValues); len(missing) > 0 {
		return nil, errors.MissingInputs(missing)
	}

	out := p.Clone()
	for _, field := range out.stringFields() {
		resolved, err := ResolveVariables(*field, ctx)
		if err != nil {
			return nil, err
		}
		*field = resolved
	}
	for i, arg := range out.Args {
		resolved, err := ResolveVariables(arg, ctx)
		if err != nil {
			return nil, err
		}
		out.Args[i] = resolved
	}
	for i, arg := range out.RuntimeArgs {
		resolved, err := ResolveVariables(arg, ctx)
		if err != nil {
			return nil, err
		}
		out.RuntimeArgs[i] = resolved
	}
	for k, v := range out.Env {
		resolved, err := ResolveVariables(v, ctx)
		if err != nil {
			return nil, err
		}
		out.Env[k] = resolved
	}
	return out, nil
}

// stringFields lists the scalar string fields variable resolution touches.
// Args, RuntimeArgs and Env are handled separately.
func (p *Profile) stringFields() []*string {
	return []*string{
		&p.Address, &p.URL, &p.URLPattern,
		&p.Program, &p.Cwd, &p.BaseURL,
	}
}
