// Package config loads postern's JSON configuration and resolves the
// per-user configuration directory.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Duration is a time.Duration that reads from JSON as a Go duration string,
// for example "90s" or "1h30m".
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"90s\"")
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Config is the full server configuration. Load fills it from a JSON file
// over the defaults, so a partial file only overrides what it names.
type Config struct {
	// Listen is the plain HTTP address. With TLS redirect enabled it only
	// serves redirects; with TLS disabled it serves the full chain.
	Listen  string            `json:"listen"`
	TLS     TLSConfig         `json:"tls"`
	Tunnel  TunnelConfig      `json:"tunnel"`
	SSH     SSHConfig         `json:"ssh"`
	Static  StaticConfig      `json:"static"`
	Headers map[string]string `json:"headers"`
	Log     LogConfig         `json:"log"`
}

// TLSConfig controls the TLS listener and the HTTP-to-HTTPS redirect.
type TLSConfig struct {
	Enabled bool   `json:"enabled"`
	Listen  string `json:"listen"`
	// CertFile and KeyFile default to cert.pem and key.pem in the config
	// directory; a self-signed pair is generated when both are absent.
	CertFile string `json:"cert_file"`
	KeyFile  string `json:"key_file"`
	Redirect bool   `json:"redirect"`
}

// TunnelConfig controls the CONNECT relay.
type TunnelConfig struct {
	Backend string `json:"backend"`
	// IdleTimeout and MaxDuration default to zero: the relay waits until
	// both directions finish, however long that takes.
	IdleTimeout   Duration `json:"idle_timeout,omitempty"`
	MaxDuration   Duration `json:"max_duration,omitempty"`
	WebSocketPath string   `json:"websocket_path"`
}

// SSHConfig controls the embedded SSH backend.
type SSHConfig struct {
	// Embedded switches the relay from dialing the backend address to an
	// in-process SSH server.
	Embedded bool `json:"embedded"`
	// Auth is "userdb" (the JSON user database) or "system" (PAM).
	Auth string `json:"auth"`
	// HostKey and UserDB default to host_key and users.json in the config
	// directory.
	HostKey string `json:"host_key"`
	UserDB  string `json:"user_db"`
}

// StaticConfig controls the file responders.
type StaticConfig struct {
	// Dir plus Paths serve files from disk; Embedded serves the built-in
	// site instead.
	Dir          string   `json:"dir"`
	Paths        []string `json:"paths"`
	Embedded     bool     `json:"embedded"`
	IndexRewrite bool     `json:"index_rewrite"`
}

// LogConfig controls level and request-header redaction.
type LogConfig struct {
	Level  string   `json:"level"`
	Redact []string `json:"redact"`
}

// Default returns the documented defaults: plain listener on :8080, TLS on
// :8443 with redirect, tunnel backend 127.0.0.1:22, embedded site enabled.
func Default() *Config {
	return &Config{
		Listen: ":8080",
		TLS: TLSConfig{
			Enabled:  true,
			Listen:   ":8443",
			Redirect: true,
		},
		Tunnel: TunnelConfig{
			Backend:       "127.0.0.1:22",
			WebSocketPath: "/ws",
		},
		SSH: SSHConfig{
			Auth: "userdb",
		},
		Static: StaticConfig{
			Embedded:     true,
			IndexRewrite: true,
		},
		Headers: map[string]string{
			"Server": "postern",
		},
		Log: LogConfig{
			Level:  "info",
			Redact: []string{"Authorization", "Proxy-Authorization", "Cookie"},
		},
	}
}

// Load reads the JSON configuration at path over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadDefault loads config.json from the configuration directory, falling
// back to the defaults when no file exists yet.
func LoadDefault() (*Config, error) {
	path, err := Path("config.json")
	if err != nil {
		return nil, err
	}
	cfg, err := Load(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	return cfg, err
}

func (c *Config) validate() error {
	switch c.SSH.Auth {
	case "", "userdb", "system":
	default:
		return fmt.Errorf("unknown ssh auth mode %q", c.SSH.Auth)
	}
	return nil
}

// Dir returns postern's configuration directory, creating it if needed. It
// follows platform conventions: $XDG_CONFIG_HOME/postern, %APPDATA%\postern,
// or ~/.config/postern.
func Dir() (string, error) {
	var dir string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		dir = filepath.Join(xdg, "postern")
	} else if appData := os.Getenv("APPDATA"); appData != "" {
		dir = filepath.Join(appData, "postern")
	} else if home, err := os.UserHomeDir(); err == nil {
		dir = filepath.Join(home, ".config", "postern")
	} else {
		return "", err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// Path returns the full path of a file inside the configuration directory.
func Path(name string) (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}
