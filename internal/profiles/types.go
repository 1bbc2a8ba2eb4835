// Package profiles provides named target profiles: declarative descriptions
// of how to attach to or launch a debuggable runtime, loaded from a
// cdp-bridge-targets.json file with ${...} variable resolution.
package profiles

// Profile kinds.
const (
	KindNode   = "node"
	KindChrome = "chrome"
	KindDeno   = "deno"
	KindURL    = "url"
)

// Requests.
const (
	RequestLaunch = "launch"
	RequestAttach = "attach"
)

// TargetsFile is the parsed cdp-bridge-targets.json structure.
type TargetsFile struct {
	Version  string        `json:"version,omitempty"`
	Profiles []Profile     `json:"profiles"`
	Inputs   []InputConfig `json:"inputs,omitempty"`
}

// Profile describes one attach or launch target.
type Profile struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`    // node, chrome, deno or url
	Request string `json:"request"` // launch or attach

	// Attach fields.
	Address    string `json:"address,omitempty"`    // host:port of the inspector endpoint
	URL        string `json:"url,omitempty"`        // explicit WebSocket debugger URL
	URLPattern string `json:"urlPattern,omitempty"` // substring match against target page URLs

	// Launch fields.
	Program     string            `json:"program,omitempty"`
	Args        []string          `json:"args,omitempty"`
	RuntimeArgs []string          `json:"runtimeArgs,omitempty"`
	Cwd         string            `json:"cwd,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
	Port        int               `json:"port,omitempty"` // fixed inspector port; 0 picks a free one

	// Bridge behavior.
	BaseURL            string `json:"baseUrl,omitempty"`
	PauseForSourceMaps bool   `json:"pauseForSourceMaps,omitempty"`
	StopOnEntry        bool   `json:"stopOnEntry,omitempty"`
}

// InputConfig declares a ${input:...} variable a profile may reference.
type InputConfig struct {
	ID          string `json:"id"`
	Description string `json:"description,omitempty"`
	Default     string `json:"default,omitempty"`
}

// IsLaunch reports whether the profile spawns its own runtime.
func (p *Profile) IsLaunch() bool { return p.Request == RequestLaunch }

// IsAttach reports whether the profile attaches to a running endpoint.
func (p *Profile) IsAttach() bool { return p.Request == RequestAttach }

// Info is a listing summary for control surfaces.
type Info struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Request string `json:"request"`
}

// Clone returns a deep copy so resolution never mutates the loaded file.
func (p *Profile) Clone() *Profile {
	out := *p
	out.Args = append([]string(nil), p.Args...)
	out.RuntimeArgs = append([]string(nil), p.RuntimeArgs...)
	if p.Env != nil {
		out.Env = make(map[string]string, len(p.Env))
		for k, v := range p.Env {
			out.Env[k] = v
		}
	}
	return &out
}
