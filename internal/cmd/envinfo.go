package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/backlogsync/backlogsync/internal/config"
	"github.com/backlogsync/backlogsync/internal/observability"
)

var envInfoCmd = &cobra.Command{
	Use:         "envinfo",
	Short:       "Display environment information",
	Long:        "Display environment, configuration, and version information.",
	Annotations: lenient,
	RunE: func(cmd *cobra.Command, args []string) error {
		version := crucible.GetVersion()
		log := observability.CLILogger
		identity := GetAppIdentity()

		log.Info("=== Environment Information ===")
		log.Info("")
		log.Info("Application:")
		log.Info("  Name:       " + identity.BinaryName)
		log.Info("  Version:    " + versionInfo.Version)
		log.Info("  Commit:     " + versionInfo.Commit)
		log.Info("  Built:      " + versionInfo.BuildDate)
		log.Info("")

		log.Info("SSOT:")
		log.Info("  Gofulmen:   "+version.Gofulmen, zap.String("gofulmen_version", version.Gofulmen))
		log.Info("  Crucible:   "+version.Crucible, zap.String("crucible_version", version.Crucible))
		log.Info("")

		log.Info("Runtime:")
		log.Info("  Go Version: "+runtime.Version(), zap.String("go_version", runtime.Version()))
		log.Info("  GOOS:       "+runtime.GOOS, zap.String("goos", runtime.GOOS))
		log.Info("  GOARCH:     "+runtime.GOARCH, zap.String("goarch", runtime.GOARCH))
		log.Info(fmt.Sprintf("  NumCPU:     %d", runtime.NumCPU()), zap.Int("num_cpu", runtime.NumCPU()))
		log.Info("")

		cfg, err := loadedConfig()
		if err != nil {
			log.Warn("Config not loaded", zap.Error(err))
			return nil
		}

		log.Info("Configuration:")
		log.Info("  Space:          "+dashIfEmpty(cfg.Space), zap.String("space", cfg.Space))
		log.Info("  Domain:         "+cfg.Domain, zap.String("domain", cfg.Domain))
		if strings.TrimSpace(cfg.BaseURL) != "" {
			log.Info("  Base URL:       "+cfg.BaseURL, zap.String("base_url", cfg.BaseURL))
		}
		log.Info("  Project:        "+dashIfEmpty(cfg.ProjectKey), zap.String("project_key", cfg.ProjectKey))
		log.Info("  API Key:        "+maskedKey(cfg.APIKey))
		log.Info("  Mode:           "+cfg.Mode, zap.String("mode", cfg.Mode))
		log.Info(fmt.Sprintf("  Parallel:       %d", cfg.Parallel), zap.Int("parallel", cfg.Parallel))
		log.Info("  Timeout:        "+cfg.Timeout.String(), zap.Duration("timeout", cfg.Timeout))
		log.Info("  Sync Dir:       "+cfg.SyncDir, zap.String("sync_dir", cfg.SyncDir))
		log.Info("  Log Level:      "+cfg.Logging.Level, zap.String("log_level", cfg.Logging.Level))
		log.Info("  DB Driver:      "+cfg.Store.Driver, zap.String("db_driver", cfg.Store.Driver))
		if strings.TrimSpace(cfg.Store.URL) != "" {
			log.Info("  DB URL:         "+cfg.Store.URL, zap.String("db_url", cfg.Store.URL))
		} else {
			log.Info("  DB Path:        "+cfg.Store.Path, zap.String("db_path", cfg.Store.Path))
		}
		log.Info("  Project Root:   "+cfg.ProjectRoot, zap.String("project_root", cfg.ProjectRoot))
		log.Info("  User Config:    "+config.DefaultConfigPath(), zap.String("config_file", config.DefaultConfigPath()))
		for _, source := range cfg.Sources {
			log.Info("  Loaded:         " + source)
		}
		return nil
	},
}

func dashIfEmpty(value string) string {
	if strings.TrimSpace(value) == "" {
		return "(not set)"
	}
	return value
}

func maskedKey(key string) string {
	if strings.TrimSpace(key) == "" {
		return "(not set)"
	}
	return config.MaskAPIKey(key)
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}
