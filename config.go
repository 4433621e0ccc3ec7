package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kir-gadjello/aperture/history"
	"github.com/kir-gadjello/aperture/reveal"
)

const defaultBaseURL = "http://127.0.0.1:8000"

type ServerConfig struct {
	BaseURL *string           `yaml:"base_url,omitempty"`
	Timeout *int              `yaml:"timeout,omitempty"` // Seconds
	Headers map[string]string `yaml:"headers,omitempty"`
	Undo    *bool             `yaml:"undo,omitempty"`
	Extend  *string           `yaml:"extend,omitempty"`
	Aliases []string          `yaml:"aliases,omitempty"`
}

type ConfigFile struct {
	Default       string                  `yaml:"default,omitempty"`
	Timeout       *int                    `yaml:"timeout,omitempty"` // Global default in seconds
	DataDir       *string                 `yaml:"data_dir,omitempty"`
	History       *string                 `yaml:"history,omitempty"` // sqlite | file
	RevealDelayMs *int                    `yaml:"reveal_delay_ms,omitempty"`
	Markdown      *bool                   `yaml:"markdown,omitempty"`
	Servers       map[string]ServerConfig `yaml:"servers,omitempty"`
}

// appDir holds the config file and local history. APERTURE_HOME overrides
// the default ~/.aperture.
func appDir() string {
	if dir := os.Getenv("APERTURE_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".aperture"
	}
	return filepath.Join(home, ".aperture")
}

func configPath() string {
	return filepath.Join(appDir(), "config.yaml")
}

func loadConfig() (*ConfigFile, error) {
	return loadConfigFrom(configPath(), os.Stderr)
}

// loadConfigFrom reads the YAML config at path. A missing or unreadable file
// yields an empty config; only a malformed file is an error.
func loadConfigFrom(path string, warn io.Writer) (*ConfigFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(warn, "Warning: cannot read config %s: %v\n", path, err)
		}
		return &ConfigFile{}, nil
	}

	var cfg ConfigFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if cfg.Servers != nil {
		aliasMap := make(map[string]ServerConfig)
		names := make([]string, 0, len(cfg.Servers))
		for name := range cfg.Servers {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			for _, alias := range cfg.Servers[name].Aliases {
				if _, exists := cfg.Servers[alias]; exists {
					fmt.Fprintf(warn, "Warning: alias '%s' defined in server '%s' clashes with existing server. Ignoring alias.\n", alias, name)
					continue
				}
				if _, exists := aliasMap[alias]; exists {
					fmt.Fprintf(warn, "Warning: duplicate alias '%s' defined in server '%s'. Ignoring.\n", alias, name)
					continue
				}
				parent := name
				aliasMap[alias] = ServerConfig{Extend: &parent}
			}
		}
		for k, v := range aliasMap {
			cfg.Servers[k] = v
		}
	}

	return &cfg, nil
}

func mergeHeaders(base, override map[string]string) map[string]string {
	result := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		result[k] = v
	}
	for k, v := range override {
		result[k] = v
	}
	return result
}

func resolveServerConfig(cfg *ConfigFile, name string) (ServerConfig, error) {
	if cfg == nil || len(cfg.Servers) == 0 || name == "" {
		return ServerConfig{}, nil
	}
	return resolveServerConfigRec(cfg, name, map[string]bool{})
}

func resolveServerConfigRec(cfg *ConfigFile, name string, visited map[string]bool) (ServerConfig, error) {
	if visited[name] {
		return ServerConfig{}, fmt.Errorf("circular dependency detected for server: %s", name)
	}
	visited[name] = true

	srv, ok := cfg.Servers[name]
	if !ok {
		return ServerConfig{}, fmt.Errorf("unknown server profile: %s", name)
	}
	if srv.Extend == nil {
		return srv, nil
	}

	merged, err := resolveServerConfigRec(cfg, *srv.Extend, visited)
	if err != nil {
		return ServerConfig{}, err
	}
	if srv.BaseURL != nil {
		merged.BaseURL = srv.BaseURL
	}
	if srv.Timeout != nil {
		merged.Timeout = srv.Timeout
	}
	if srv.Undo != nil {
		merged.Undo = srv.Undo
	}
	merged.Headers = mergeHeaders(merged.Headers, srv.Headers)
	merged.Extend = srv.Extend
	merged.Aliases = srv.Aliases
	return merged, nil
}

// RunConfig is the effective configuration of one invocation.
type RunConfig struct {
	ServerName     string
	BaseURL        string
	Timeout        time.Duration
	Headers        map[string]string
	Undo           bool
	DataDir        string
	HistoryBackend string
	RevealDelay    time.Duration
	Markdown       bool
	Verbose        bool
	Debug          bool
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

// getRunConfig layers defaults, the config file, environment variables and
// flags, each overriding the previous.
func getRunConfig(cmd *cobra.Command, cfg *ConfigFile) (RunConfig, error) {
	if cfg == nil {
		cfg = &ConfigFile{}
	}
	flags := cmd.Flags()

	serverName := getEnvOrDefault("APERTURE_SERVER", cfg.Default)
	if flags.Changed("server") {
		serverName, _ = flags.GetString("server")
	}
	srv, err := resolveServerConfig(cfg, serverName)
	if err != nil {
		return RunConfig{}, err
	}

	rc := RunConfig{
		ServerName:     serverName,
		BaseURL:        defaultBaseURL,
		Headers:        mergeHeaders(nil, srv.Headers),
		HistoryBackend: "sqlite",
		RevealDelay:    reveal.DefaultDelay,
		Markdown:       true,
	}

	if srv.BaseURL != nil {
		rc.BaseURL = *srv.BaseURL
	}
	rc.BaseURL = getEnvOrDefault("APERTURE_BASE_URL", rc.BaseURL)
	if flags.Changed("base-url") {
		rc.BaseURL, _ = flags.GetString("base-url")
	}

	timeoutSec := 0
	if cfg.Timeout != nil {
		timeoutSec = *cfg.Timeout
	}
	if srv.Timeout != nil {
		timeoutSec = *srv.Timeout
	}
	if flags.Changed("timeout") {
		timeoutSec, _ = flags.GetInt("timeout")
	}
	if timeoutSec < 0 {
		return RunConfig{}, fmt.Errorf("invalid timeout: %d", timeoutSec)
	}
	rc.Timeout = time.Duration(timeoutSec) * time.Second

	if srv.Undo != nil {
		rc.Undo = *srv.Undo
	}
	if flags.Changed("undo") {
		rc.Undo, _ = flags.GetBool("undo")
	}

	headerArgs, _ := flags.GetStringArray("header")
	for _, h := range headerArgs {
		k, v, ok := strings.Cut(h, "=")
		if !ok {
			k, v, ok = strings.Cut(h, ":")
		}
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return RunConfig{}, fmt.Errorf("invalid header %q, expected Name=Value", h)
		}
		rc.Headers[k] = strings.TrimSpace(v)
	}

	if cfg.DataDir != nil {
		rc.DataDir = *cfg.DataDir
	}
	rc.DataDir = getEnvOrDefault("APERTURE_DATA_DIR", rc.DataDir)
	if flags.Changed("data-dir") {
		rc.DataDir, _ = flags.GetString("data-dir")
	}
	rc.DataDir = expandHome(rc.DataDir)

	if cfg.History != nil {
		switch *cfg.History {
		case "sqlite", "file":
			rc.HistoryBackend = *cfg.History
		default:
			return RunConfig{}, fmt.Errorf("unknown history backend %q (want sqlite or file)", *cfg.History)
		}
	}
	if cfg.RevealDelayMs != nil && *cfg.RevealDelayMs >= 0 {
		rc.RevealDelay = time.Duration(*cfg.RevealDelayMs) * time.Millisecond
	}
	if cfg.Markdown != nil {
		rc.Markdown = *cfg.Markdown
	}

	rc.Verbose, _ = flags.GetBool("verbose")
	rc.Debug, _ = flags.GetBool("debug")
	return rc, nil
}

// openHistoryStore opens the configured backend. A SQLite store that cannot
// be opened falls back to the JSON file so chat keeps working.
func openHistoryStore(rc RunConfig) (history.Store, func()) {
	dir := appDir()
	jsonPath := filepath.Join(dir, "history.json")
	if rc.HistoryBackend == "file" {
		return history.NewFileStore(jsonPath), func() {}
	}

	store, err := history.OpenSQLite(filepath.Join(dir, "history.db"), jsonPath)
	if err != nil {
		log.Printf("Warning: failed to init history: %v", err)
		return history.NewFileStore(jsonPath), func() {}
	}
	return store, func() { store.Close() }
}
