package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolateEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(home, ".local", "share"))
	for _, key := range []string{"SPACE", "API_KEY", "PROJECT_KEY", "MODE", "PARALLEL", "TIMEOUT", "DOMAIN", "BASE_URL", "SYNC_DIR"} {
		t.Setenv("BACKLOGSYNC_"+key, "")
		require.NoError(t, os.Unsetenv("BACKLOGSYNC_"+key))
	}
	return home
}

// newProject creates a project below home so discovery stays inside the
// home-directory ceiling.
func newProject(t *testing.T, home string) string {
	t.Helper()
	root := filepath.Join(home, "work", "project")
	require.NoError(t, os.MkdirAll(filepath.Join(root, ProjectDirName), 0o700))
	return root
}

func TestLoadDefaults(t *testing.T) {
	home := isolateEnv(t)
	root := newProject(t, home)

	cfg, err := Load(context.Background(), LoadOptions{WorkDir: root})
	require.NoError(t, err)

	assert.Equal(t, ModeRead, cfg.Mode)
	assert.Equal(t, DefaultParallel, cfg.Parallel)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, "backlog.com", cfg.Domain)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "libsql", cfg.Store.Driver)
	assert.NotEmpty(t, cfg.Store.Path)
	assert.Equal(t, filepath.Join(cfg.ProjectRoot, "docs", "backlog"), cfg.SyncDir)
	assert.Empty(t, cfg.Sources)
	require.NoError(t, cfg.Validate())
	require.ErrorIs(t, cfg.RequireConnection(), ErrNotConfigured)
	assert.Same(t, cfg, GetConfig())
}

func TestLoadProjectFileFromSubdirectory(t *testing.T) {
	home := isolateEnv(t)
	root := newProject(t, home)
	require.NoError(t, WriteProjectFile(ProjectConfigPath(root), ProjectFile{
		Space:      "acme",
		APIKey:     "abcdefghijkl",
		ProjectKey: "PROJ",
		Mode:       ModeWrite,
		Parallel:   8,
	}))

	nested := filepath.Join(root, "src", "pkg")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	cfg, err := Load(context.Background(), LoadOptions{WorkDir: nested})
	require.NoError(t, err)
	assert.Equal(t, "acme", cfg.Space)
	assert.Equal(t, "PROJ", cfg.ProjectKey)
	assert.Equal(t, ModeWrite, cfg.Mode)
	assert.Equal(t, 8, cfg.Parallel)
	assert.Equal(t, []string{ProjectConfigPath(cfg.ProjectRoot)}, cfg.Sources)
	require.NoError(t, cfg.RequireConnection())
	require.NoError(t, cfg.RequireWriteMode("issue create"))
}

func TestLoadLayering(t *testing.T) {
	home := isolateEnv(t)
	root := newProject(t, home)

	userPath := DefaultConfigPath()
	require.NotEmpty(t, userPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(userPath), 0o700))
	require.NoError(t, os.WriteFile(userPath, []byte("space: user-space\napi_key: user-key-123456\nparallel: 3\n"), 0o600))

	require.NoError(t, WriteProjectFile(ProjectConfigPath(root), ProjectFile{ProjectKey: "PROJ", Parallel: 4}))

	explicit := filepath.Join(home, "override.yaml")
	require.NoError(t, os.WriteFile(explicit, []byte("timeout: 45s\n"), 0o600))

	t.Setenv("BACKLOGSYNC_SPACE", "env-space")

	cfg, err := Load(context.Background(), LoadOptions{WorkDir: root, ConfigFile: explicit})
	require.NoError(t, err)
	assert.Equal(t, "env-space", cfg.Space)
	assert.Equal(t, "user-key-123456", cfg.APIKey)
	assert.Equal(t, "PROJ", cfg.ProjectKey)
	assert.Equal(t, 4, cfg.Parallel)
	assert.Equal(t, 45*time.Second, cfg.Timeout)
	assert.Len(t, cfg.Sources, 3)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	home := isolateEnv(t)
	root := newProject(t, home)

	_, err := Load(context.Background(), LoadOptions{WorkDir: root, ConfigFile: filepath.Join(root, "nope.yaml")})
	require.Error(t, err)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidate(t *testing.T) {
	base := Config{Mode: ModeRead, Parallel: 5, Timeout: time.Second}
	require.NoError(t, base.Validate())

	bad := base
	bad.Mode = "admin"
	require.ErrorContains(t, bad.Validate(), "invalid mode")

	bad = base
	bad.Parallel = 21
	require.ErrorContains(t, bad.Validate(), "invalid parallel")

	bad = base
	bad.Parallel = 0
	require.Error(t, bad.Validate())
}

func TestRequireWriteMode(t *testing.T) {
	cfg := &Config{Mode: ModeRead}
	err := cfg.RequireWriteMode("comment add")

	var modeErr *WriteModeError
	require.ErrorAs(t, err, &modeErr)
	require.Equal(t, `Operation "comment add" requires write mode. Run: backlogsync config set --mode write`, err.Error())
}

func TestMaskAPIKey(t *testing.T) {
	assert.Equal(t, "****", MaskAPIKey(""))
	assert.Equal(t, "****", MaskAPIKey("12345678"))
	assert.Equal(t, "abcd...6789", MaskAPIKey("abcdefg123456789"))
}

func TestWriteProjectFilePermissions(t *testing.T) {
	root := t.TempDir()
	path := ProjectConfigPath(root)

	require.NoError(t, WriteProjectFile(path, ProjectFile{Space: "acme", APIKey: "secret-key-value"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	ignore, err := os.ReadFile(filepath.Join(root, ProjectDirName, ".gitignore"))
	require.NoError(t, err)
	assert.Equal(t, "*\n", string(ignore))

	file, err := ReadProjectFile(path)
	require.NoError(t, err)
	assert.Equal(t, "acme", file.Space)
	assert.Equal(t, "secret-key-value", file.APIKey)

	require.Error(t, WriteProjectFile(path, ProjectFile{Mode: "admin"}))

	missing, err := ReadProjectFile(filepath.Join(root, "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ProjectFile{}, missing)
}
