package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveLockedPaths(t *testing.T) {
	tests := []struct {
		name  string
		extra string
		want  []string
	}{
		{
			name:  "defaults only",
			extra: "",
			want:  []string{".git", ".github", ".gitignore"},
		},
		{
			name:  "extras appended in order",
			extra: "scripts,composer.json",
			want:  []string{".git", ".github", ".gitignore", "scripts", "composer.json"},
		},
		{
			name:  "empty entries discarded",
			extra: ",scripts,,  ,docs,",
			want:  []string{".git", ".github", ".gitignore", "scripts", "docs"},
		},
		{
			name:  "whitespace trimmed",
			extra: " scripts , docs ",
			want:  []string{".git", ".github", ".gitignore", "scripts", "docs"},
		},
		{
			name:  "duplicates of defaults ignored",
			extra: ".github,scripts,scripts",
			want:  []string{".git", ".github", ".gitignore", "scripts"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveLockedPaths(tt.extra))
		})
	}
}

func TestResolveLockedPaths_DoesNotAliasDefaults(t *testing.T) {
	first := ResolveLockedPaths("scripts")
	first[0] = "mutated"

	assert.Equal(t, ".git", DefaultLockedPaths[0])
	assert.Equal(t, ".git", ResolveLockedPaths("")[0])
}

func TestIsLocked(t *testing.T) {
	locked := ResolveLockedPaths("scripts")

	assert.True(t, IsLocked(locked, ".git"))
	assert.True(t, IsLocked(locked, "scripts"))
	assert.False(t, IsLocked(locked, "modules"))
	assert.False(t, IsLocked(locked, "."))
}

func TestFromViper_Defaults(t *testing.T) {
	t.Setenv(LockedPathsEnv, "")
	t.Setenv("WPUP_REMOTE", "")
	t.Setenv("WPUP_BASE_BRANCH", "")
	t.Setenv(ConfigFileEnv, "")

	cfg, err := FromViper(newViper())
	require.NoError(t, err)

	assert.Equal(t, DefaultLockedPaths, cfg.LockedPaths)
	assert.Equal(t, "origin", cfg.Remote)
	assert.Equal(t, "master", cfg.BaseBranch)
	assert.Equal(t, "origin/master", cfg.BaseRef())
	assert.Equal(t, "creatorincome", cfg.ComposerVendor)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestFromViper_Environment(t *testing.T) {
	t.Setenv(LockedPathsEnv, "scripts,docs")
	t.Setenv("WPUP_REMOTE", "upstream")
	t.Setenv("WPUP_BASE_BRANCH", "main")
	t.Setenv("WPUP_LOG_LEVEL", "debug")
	t.Setenv(ConfigFileEnv, "")

	cfg, err := FromViper(newViper())
	require.NoError(t, err)

	assert.Equal(t, []string{".git", ".github", ".gitignore", "scripts", "docs"}, cfg.LockedPaths)
	assert.Equal(t, "upstream/main", cfg.BaseRef())
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestFromViper_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "wpup.yaml")
	content := "remote: mirror\nlocked_paths:\n  - scripts\n  - bin\ncomposer_vendor: acme\n"
	require.NoError(t, os.WriteFile(file, []byte(content), 0644))

	t.Setenv(ConfigFileEnv, file)
	t.Setenv(LockedPathsEnv, "")
	t.Setenv("WPUP_REMOTE", "")

	v := newViper()
	// Unset environment values must not shadow the file.
	require.NoError(t, os.Unsetenv(LockedPathsEnv))
	require.NoError(t, os.Unsetenv("WPUP_REMOTE"))

	cfg, err := FromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "mirror", cfg.Remote)
	assert.Equal(t, "acme", cfg.ComposerVendor)
	assert.Equal(t, []string{".git", ".github", ".gitignore", "scripts", "bin"}, cfg.LockedPaths)
}

func TestFromViper_MissingConfigFile(t *testing.T) {
	t.Setenv(ConfigFileEnv, filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := FromViper(newViper())
	assert.Error(t, err)
}
