package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/slopdrop/slopdrop/pkg/engine"
	"github.com/slopdrop/slopdrop/pkg/server"
)

// Settings is the on-disk configuration, loaded from config.yaml in the
// config directory. Zero values fall back to engine defaults.
type Settings struct {
	ConfigDir string `yaml:"-"`
	Debug     bool   `yaml:"-"`

	StatePath      string   `yaml:"state_path,omitempty"`
	CachePath      string   `yaml:"cache_path,omitempty"`
	MaxOutputLines int      `yaml:"max_output_lines,omitempty"`
	EvalTimeoutMs  int      `yaml:"eval_timeout_ms,omitempty"`
	MaxSteps       int      `yaml:"max_steps,omitempty"`
	AdminVars      []string `yaml:"admin_vars,omitempty"`

	Web WebSettings `yaml:"web,omitempty"`
}

// WebSettings configures the HTTP front end.
type WebSettings struct {
	BindAddress string `yaml:"bind_address,omitempty"`
	Port        int    `yaml:"port,omitempty"`
	AuthToken   string `yaml:"auth_token,omitempty"`
}

// LoadSettings reads settings from path, writing a commented default file
// when none exists yet.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if werr := os.WriteFile(path, []byte(defaultConfigYAML), 0644); werr != nil {
			return nil, fmt.Errorf("failed to write default config: %w", werr)
		}
		data = []byte(defaultConfigYAML)
	} else if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	settings := &Settings{}
	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return settings, nil
}

// EngineConfig translates the settings into an engine configuration.
func (s *Settings) EngineConfig() engine.Config {
	return engine.Config{
		MaxOutputLines: s.MaxOutputLines,
		EvalTimeout:    time.Duration(s.EvalTimeoutMs) * time.Millisecond,
		MaxSteps:       s.MaxSteps,
		AdminVars:      s.AdminVars,
	}
}

// ServerConfig translates the settings into an HTTP server configuration.
func (s *Settings) ServerConfig() server.Config {
	addr := s.Web.BindAddress
	if addr == "" {
		addr = "127.0.0.1"
	}
	port := s.Web.Port
	if port == 0 {
		port = 8080
	}
	return server.Config{
		Addr:       fmt.Sprintf("%s:%d", addr, port),
		AdminToken: s.Web.AuthToken,
	}
}

// statePath returns the SQLite commit database path.
func (s *Settings) statePath() string {
	if s.StatePath != "" {
		return s.StatePath
	}
	return filepath.Join(s.ConfigDir, "state.db")
}

// cachePath returns the Bolt cache database path.
func (s *Settings) cachePath() string {
	if s.CachePath != "" {
		return s.CachePath
	}
	return filepath.Join(s.ConfigDir, "cache.db")
}

const defaultConfigYAML = `# slopdrop configuration
#
# state_path: /path/to/state.db       # commit history (SQLite)
# cache_path: /path/to/cache.db       # cache:: storage (Bolt)
# max_output_lines: 10                # lines per delivered page
# eval_timeout_ms: 5000               # wall-clock budget per evaluation
# max_steps: 1000000                  # command dispatches per evaluation
# admin_vars: []                      # globals writable only by admins
#
# web:
#   bind_address: 127.0.0.1
#   port: 8080
#   auth_token: ""                    # bearer token granting admin over HTTP
`
