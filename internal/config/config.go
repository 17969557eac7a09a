// Package config resolves wpup's deployment configuration.
//
// Settings come from, in increasing priority: built-in defaults, an optional
// config file named by WPUP_CONFIG, and environment variables. A .env file in
// the working directory is loaded into the environment first, so CI systems
// and local runs can share the same variables.
//
// The Locked-Path Policy lives here as well: it is pure configuration,
// resolved once per invocation and read-only afterwards.
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes every wpup-specific environment variable.
	EnvPrefix = "WPUP"

	// LockedPathsEnv names the comma-separated list of extra locked paths.
	LockedPathsEnv = "LOCKED_PATHS"

	// ConfigFileEnv names an optional config file (yaml, toml or json).
	ConfigFileEnv = "WPUP_CONFIG"

	// DefaultRemote is the git remote branches are fetched from and pushed to.
	DefaultRemote = "origin"

	// DefaultBaseBranch is the trunk branch that owns the locked paths.
	DefaultBaseBranch = "master"

	// DefaultComposerVendor is the composer vendor namespace.
	DefaultComposerVendor = "creatorincome"

	// DefaultLogLevel is the zap level used when none is configured.
	DefaultLogLevel = "info"
)

// DefaultLockedPaths are never deleted by cleanup and never taken from a
// merged-in branch.
var DefaultLockedPaths = []string{".git", ".github", ".gitignore"}

// Config holds the resolved settings for one invocation.
type Config struct {
	// LockedPaths is the resolved Locked Path Set (defaults first).
	LockedPaths []string

	// Remote is the git remote used for fetch, ls-remote and push.
	Remote string

	// BaseBranch is the trunk branch locked paths are synced from.
	BaseBranch string

	// ComposerVendor is the default composer vendor namespace.
	ComposerVendor string

	// LogLevel is a zap level name, or "none".
	LogLevel string
}

// BaseRef returns the remote-tracking ref of the base branch, e.g.
// "origin/master".
func (c *Config) BaseRef() string {
	return c.Remote + "/" + c.BaseBranch
}

// Load reads .env, the optional config file and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("remote", DefaultRemote)
	v.SetDefault("base_branch", DefaultBaseBranch)
	v.SetDefault("composer_vendor", DefaultComposerVendor)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("locked_paths", "")

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	// LOCKED_PATHS is shared with the deployment scripts and carries no prefix.
	_ = v.BindEnv("locked_paths", LockedPathsEnv)
	_ = v.BindEnv("config", ConfigFileEnv)
	return v
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	cfg := &Config{
		LockedPaths:    ResolveLockedPaths(lockedPathsValue(v)),
		Remote:         strings.TrimSpace(v.GetString("remote")),
		BaseBranch:     strings.TrimSpace(v.GetString("base_branch")),
		ComposerVendor: strings.TrimSpace(v.GetString("composer_vendor")),
		LogLevel:       strings.TrimSpace(v.GetString("log_level")),
	}
	if cfg.Remote == "" {
		return nil, fmt.Errorf("remote must not be empty")
	}
	if cfg.BaseBranch == "" {
		return nil, fmt.Errorf("base branch must not be empty")
	}
	return cfg, nil
}

// lockedPathsValue accepts both a comma-separated string (environment) and a
// list (config file).
func lockedPathsValue(v *viper.Viper) string {
	if list, ok := v.Get("locked_paths").([]interface{}); ok {
		parts := make([]string, 0, len(list))
		for _, item := range list {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, ",")
	}
	return v.GetString("locked_paths")
}

// ResolveLockedPaths returns the default locked paths followed by the
// comma-separated extras, in order. Empty entries and duplicates are dropped.
func ResolveLockedPaths(extra string) []string {
	paths := make([]string, 0, len(DefaultLockedPaths))
	seen := make(map[string]bool)
	add := func(p string) {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			return
		}
		seen[p] = true
		paths = append(paths, p)
	}

	for _, p := range DefaultLockedPaths {
		add(p)
	}
	for _, p := range strings.Split(extra, ",") {
		add(p)
	}
	return paths
}

// IsLocked reports whether name is in the locked set.
func IsLocked(locked []string, name string) bool {
	for _, p := range locked {
		if p == name {
			return true
		}
	}
	return false
}
