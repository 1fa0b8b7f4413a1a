// Package config provides layered configuration for backlogsync.
//
// Layers, lowest precedence first:
//  1. built-in defaults
//  2. user config (XDG, e.g. ~/.config/backlogsync/config.yaml)
//  3. project config (<project root>/.backlogsync/config.yaml)
//  4. an explicit --config file
//  5. BACKLOGSYNC_* environment variables
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fulmenhq/gofulmen/appidentity"
	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/fulmenhq/gofulmen/pathfinder"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/backlogsync/backlogsync/internal/appid"
	"github.com/backlogsync/backlogsync/internal/backlog"
)

// ProjectDirName is the per-project settings directory.
const ProjectDirName = ".backlogsync"

var (
	// appConfig holds the current application configuration
	appConfig   *Config
	configMu    sync.RWMutex
	appIdentity *appidentity.Identity
)

// LoadOptions adjusts where Load looks for configuration.
type LoadOptions struct {
	// ConfigFile is merged above the project config when set.
	ConfigFile string
	// WorkDir overrides the directory project discovery starts from.
	WorkDir string
}

// FindProjectRoot walks up from start looking for a .backlogsync directory or
// a .git checkout. It returns start itself when neither is found.
func FindProjectRoot(start string) (string, error) {
	if strings.TrimSpace(start) == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current directory: %w", err)
		}
		start = cwd
	}
	start, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", start, err)
	}

	markers := []string{ProjectDirName, ".git"}

	// CI checkouts may live outside $HOME, which pathfinder treats as the
	// default ceiling; accept a workspace boundary hint there.
	if boundary := ciBoundary(start); boundary != "" {
		if root, err := pathfinder.FindRepositoryRoot(start, markers,
			pathfinder.WithBoundary(boundary),
			pathfinder.WithMaxDepth(20),
		); err == nil {
			return root, nil
		}
	}

	root, err := pathfinder.FindRepositoryRoot(start, markers, pathfinder.WithMaxDepth(10))
	if err != nil {
		return start, nil
	}
	return root, nil
}

func ciBoundary(start string) string {
	isCI := strings.EqualFold(strings.TrimSpace(os.Getenv("GITHUB_ACTIONS")), "true") ||
		strings.EqualFold(strings.TrimSpace(os.Getenv("CI")), "true")
	if !isCI {
		return ""
	}
	for _, key := range []string{"FULMEN_WORKSPACE_ROOT", "GITHUB_WORKSPACE", "CI_PROJECT_DIR", "WORKSPACE"} {
		boundary := filepath.Clean(strings.TrimSpace(os.Getenv(key)))
		if boundary == "." || !filepath.IsAbs(boundary) {
			continue
		}
		if st, err := os.Stat(boundary); err != nil || !st.IsDir() {
			continue
		}
		if rel, err := filepath.Rel(boundary, start); err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		return boundary
	}
	return ""
}

// ProjectConfigPath returns the project config file under root.
func ProjectConfigPath(root string) string {
	return filepath.Join(root, ProjectDirName, "config.yaml")
}

// Load merges all configuration layers into a Config.
//
// This function is safe to call multiple times.
func Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	if appIdentity == nil {
		appIdentity = appid.Resolve(ctx)
	}

	projectRoot, err := FindProjectRoot(opts.WorkDir)
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	var sources []string
	for _, path := range []string{DefaultConfigPath(), ProjectConfigPath(projectRoot)} {
		merged, err := mergeFile(v, path, false)
		if err != nil {
			return nil, err
		}
		if merged {
			sources = append(sources, path)
		}
	}
	if explicit := strings.TrimSpace(opts.ConfigFile); explicit != "" {
		if _, err := mergeFile(v, explicit, true); err != nil {
			return nil, err
		}
		sources = append(sources, explicit)
	}

	v.SetEnvPrefix(strings.TrimSuffix(envPrefix(), "_"))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
	cfg.ProjectKey = strings.TrimSpace(cfg.ProjectKey)
	cfg.ProjectRoot = projectRoot
	cfg.Sources = sources
	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}
	if !filepath.IsAbs(cfg.SyncDir) {
		cfg.SyncDir = filepath.Join(projectRoot, cfg.SyncDir)
	}

	setConfig(cfg)
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("space", "")
	v.SetDefault("api_key", "")
	v.SetDefault("project_key", "")
	v.SetDefault("domain", backlog.DefaultDomain)
	v.SetDefault("base_url", "")
	v.SetDefault("mode", ModeRead)
	v.SetDefault("parallel", DefaultParallel)
	v.SetDefault("timeout", backlog.DefaultTimeout.String())
	v.SetDefault("sync_dir", DefaultSyncDir)
	v.SetDefault("store.driver", "libsql")
	v.SetDefault("store.path", "")
	v.SetDefault("store.url", "")
	v.SetDefault("store.auth_token", "")
	v.SetDefault("logging.level", "info")
}

func mergeFile(v *viper.Viper, path string, required bool) (bool, error) {
	if strings.TrimSpace(path) == "" {
		return false, nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return false, nil
		}
		return false, fmt.Errorf("config file %s: %w", path, err)
	}
	v.SetConfigFile(path)
	if err := v.MergeInConfig(); err != nil {
		return false, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return true, nil
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// setConfig updates the current configuration (thread-safe)
func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

func envPrefix() string {
	prefix := appid.FallbackEnvPrefix
	if appIdentity != nil && strings.TrimSpace(appIdentity.EnvPrefix) != "" {
		prefix = appIdentity.EnvPrefix
	}
	if !strings.HasSuffix(prefix, "_") {
		prefix += "_"
	}
	return prefix
}

// appNamesForPaths returns the config name and binary name from app identity,
// falling back to "backlogsync" if not set.
func appNamesForPaths() (configName string, binaryName string) {
	configName = appid.FallbackBinaryName
	binaryName = appid.FallbackBinaryName
	if appIdentity == nil {
		return configName, binaryName
	}

	if strings.TrimSpace(appIdentity.ConfigName) != "" {
		configName = appIdentity.ConfigName
	}
	if strings.TrimSpace(appIdentity.BinaryName) != "" {
		binaryName = appIdentity.BinaryName
	}
	return configName, binaryName
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configName, _ := appNamesForPaths()
	configDir := gfconfig.GetAppConfigDir(configName)
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DefaultDataDir returns the XDG-compliant data directory for the app.
func DefaultDataDir() string {
	configName, _ := appNamesForPaths()
	return gfconfig.GetAppDataDir(configName)
}

// DefaultStorePath returns the XDG-compliant path to the metadata cache.
func DefaultStorePath() string {
	configName, binaryName := appNamesForPaths()
	dataDir := gfconfig.GetAppDataDir(configName)
	if strings.TrimSpace(dataDir) == "" {
		return "./" + binaryName + ".db"
	}
	return filepath.Join(dataDir, binaryName+".db")
}
