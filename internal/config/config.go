// Package config provides configuration management for the CDP bridge.
//
// Configuration controls:
//   - Capability mode (readonly vs full): determines which tools are available
//   - Transport timing: per-attempt connect timeout and retry interval
//   - Protocol timing: call timeout and source-map wait budgets
//   - Safety limits: maximum sessions, idle timeout, output buffer size
//
// Configuration is loaded with viper from a cdp-bridge.yaml file (searched in
// the working directory and $HOME/.config/cdp-bridge) and CDP_BRIDGE_*
// environment variables, falling back to defaults.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// CapabilityMode defines the level of debugging capabilities exposed
type CapabilityMode string

const (
	ModeReadOnly CapabilityMode = "readonly" // Inspection tools only
	ModeFull     CapabilityMode = "full"     // All tools enabled
)

// Config holds the server configuration
type Config struct {
	Mode CapabilityMode `mapstructure:"mode"`

	Logging   LoggingConfig   `mapstructure:"logging"`
	Connect   ConnectConfig   `mapstructure:"connect"`
	SourceMap SourceMapConfig `mapstructure:"sourceMap"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`

	// Protocol call round-trip budget
	CallTimeout time.Duration `mapstructure:"callTimeout"`

	// Limits for safety
	MaxSessions        int           `mapstructure:"maxSessions"`
	SessionIdleTimeout time.Duration `mapstructure:"sessionIdleTimeout"`
	CleanupInterval    time.Duration `mapstructure:"cleanupInterval"`
	OutputBufferSize   int           `mapstructure:"outputBufferSize"`

	// Path to the target-profile file; discovered from the workspace if empty
	ProfilesPath string `mapstructure:"profilesPath"`
}

// LoggingConfig controls zap construction
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// ConnectConfig controls the transport connect-with-retry loop
type ConnectConfig struct {
	AttemptTimeout time.Duration `mapstructure:"attemptTimeout"`
	RetryInterval  time.Duration `mapstructure:"retryInterval"`
}

// SourceMapConfig controls source-map waiting behavior
type SourceMapConfig struct {
	// Enable the instrumentation pause before scripts with source maps
	PauseForScripts bool `mapstructure:"pauseForScripts"`

	// Budget for source-map resolution while the target is held paused
	ScriptPausedTimeout time.Duration `mapstructure:"scriptPausedTimeout"`

	// Budget for an output slot whose payload never arrives
	OutputTimeout time.Duration `mapstructure:"outputTimeout"`
}

// DiscoveryConfig controls the /json/list target discovery calls
type DiscoveryConfig struct {
	HTTPTimeout time.Duration `mapstructure:"httpTimeout"`
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Mode: ModeFull,
		Logging: LoggingConfig{
			Level:       "info",
			Development: false,
		},
		Connect: ConnectConfig{
			AttemptTimeout: 5 * time.Second,
			RetryInterval:  200 * time.Millisecond,
		},
		SourceMap: SourceMapConfig{
			PauseForScripts:     true,
			ScriptPausedTimeout: 5 * time.Second,
			OutputTimeout:       1 * time.Second,
		},
		Discovery: DiscoveryConfig{
			HTTPTimeout: 5 * time.Second,
		},
		CallTimeout:        10 * time.Second,
		MaxSessions:        10,
		SessionIdleTimeout: 30 * time.Minute,
		CleanupInterval:    1 * time.Minute,
		OutputBufferSize:   1000,
	}
}

// Load loads configuration from files and environment.
// An explicit path wins over the search paths; a missing config file is not
// an error, the defaults apply.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("cdp-bridge")
		v.AddConfigPath(".")
		if configDir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(configDir, "cdp-bridge"))
		}
	}

	v.SetEnvPrefix("CDP_BRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := Default()
	v.SetDefault("mode", string(cfg.Mode))
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.development", cfg.Logging.Development)
	v.SetDefault("connect.attemptTimeout", cfg.Connect.AttemptTimeout)
	v.SetDefault("connect.retryInterval", cfg.Connect.RetryInterval)
	v.SetDefault("sourceMap.pauseForScripts", cfg.SourceMap.PauseForScripts)
	v.SetDefault("sourceMap.scriptPausedTimeout", cfg.SourceMap.ScriptPausedTimeout)
	v.SetDefault("sourceMap.outputTimeout", cfg.SourceMap.OutputTimeout)
	v.SetDefault("discovery.httpTimeout", cfg.Discovery.HTTPTimeout)
	v.SetDefault("callTimeout", cfg.CallTimeout)
	v.SetDefault("maxSessions", cfg.MaxSessions)
	v.SetDefault("sessionIdleTimeout", cfg.SessionIdleTimeout)
	v.SetDefault("cleanupInterval", cfg.CleanupInterval)
	v.SetDefault("outputBufferSize", cfg.OutputBufferSize)
	v.SetDefault("profilesPath", cfg.ProfilesPath)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Not-found during the search is fine; an unreadable or
			// malformed file is not.
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// CanUseControlTools returns true if control tools are enabled
func (c *Config) CanUseControlTools() bool {
	return c.Mode == ModeFull
}
