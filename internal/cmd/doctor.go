package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/backlogsync/backlogsync/internal/backlog"
	"github.com/backlogsync/backlogsync/internal/config"
	"github.com/backlogsync/backlogsync/internal/core/store"
	errwrap "github.com/backlogsync/backlogsync/internal/errors"
	"github.com/backlogsync/backlogsync/internal/observability"
)

type checkStatus int

const (
	checkOK checkStatus = iota
	checkWarn
	checkFail
)

func (s checkStatus) icon() string {
	switch s {
	case checkOK:
		return "✅"
	case checkWarn:
		return "⚠️ "
	default:
		return "❌"
	}
}

type doctorCheck struct {
	Name   string
	Status checkStatus
	Detail string
}

// rateLimitSource is the client call doctor uses to prove the API answers.
type rateLimitSource interface {
	GetRateLimit(ctx context.Context) (*backlog.RateLimit, error)
}

var doctorCmd = &cobra.Command{
	Use:         "doctor",
	Short:       "Run diagnostic checks",
	Long:        "Check configuration, the metadata cache and API reachability, and suggest fixes for common issues.",
	Annotations: lenient,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := loadedConfig()
		if err != nil {
			return err
		}

		log := observability.CLILogger
		log.Info("=== " + binaryName() + " doctor ===")
		log.Info("")

		var api rateLimitSource
		if cfg.RequireConnection() == nil {
			if client, err := newClient(cfg); err == nil {
				api = client
			}
		}

		cache, cacheErr := store.OpenMigrated(ctx, cfg.Store)
		if cacheErr == nil {
			defer cache.Close() //nolint:errcheck
		}

		checks := runDoctorChecks(ctx, cfg, cache, cacheErr, api)
		failed := 0
		for i, check := range checks {
			line := fmt.Sprintf("[%d/%d] Checking %s... %s %s", i+1, len(checks), check.Name, check.Status.icon(), check.Detail)
			switch check.Status {
			case checkOK:
				log.Info(line)
			case checkWarn:
				log.Warn(line)
			default:
				log.Error(line)
				failed++
			}
		}

		log.Info("")
		if failed > 0 {
			log.Warn("⚠️  Some checks failed. Review the output above for details.")
			return errwrap.NewConfigInvalidError(fmt.Sprintf("%d doctor check(s) failed", failed))
		}
		log.Info("✅ All checks passed!")
		return nil
	},
}

func runDoctorChecks(ctx context.Context, cfg *config.Config, cache *store.Store, cacheErr error, api rateLimitSource) []doctorCheck {
	version := crucible.GetVersion()
	checks := []doctorCheck{{
		Name:   "runtime",
		Status: checkOK,
		Detail: fmt.Sprintf("%s %s/%s, gofulmen %s", runtime.Version(), runtime.GOOS, runtime.GOARCH, version.Gofulmen),
	}}

	configured := true
	switch {
	case cfg.Validate() != nil:
		checks = append(checks, doctorCheck{"configuration", checkFail, cfg.Validate().Error()})
		configured = false
	case cfg.RequireConnection() != nil:
		checks = append(checks, doctorCheck{"configuration", checkFail, cfg.RequireConnection().Error()})
		configured = false
	default:
		checks = append(checks, doctorCheck{"configuration", checkOK,
			fmt.Sprintf("%s (%s), key %s", cfg.ProjectKey, spaceLabel(cfg), config.MaskAPIKey(cfg.APIKey))})
	}

	checks = append(checks, projectFileCheck(config.ProjectConfigPath(cfg.ProjectRoot)))

	scope := scopeFor(cfg)
	switch {
	case cacheErr != nil:
		checks = append(checks, doctorCheck{"metadata cache", checkWarn, fmt.Sprintf("unavailable: %v", cacheErr)})
	case cache == nil:
		checks = append(checks, doctorCheck{"metadata cache", checkWarn, "not opened"})
	default:
		count, err := cache.CountMetadata(ctx, store.MetadataQuery{All: true})
		if err != nil {
			checks = append(checks, doctorCheck{"metadata cache", checkWarn, err.Error()})
		} else {
			checks = append(checks, doctorCheck{"metadata cache", checkOK, fmt.Sprintf("%d entr(ies) in %s", count, storeLabel(cfg))})
		}
	}

	switch {
	case !configured || api == nil:
		checks = append(checks, doctorCheck{"API access", checkWarn, "skipped (connection not configured)"})
	default:
		rl, err := api.GetRateLimit(ctx)
		if err != nil {
			checks = append(checks, doctorCheck{"API access", checkFail, err.Error()})
		} else {
			checks = append(checks, doctorCheck{"API access", checkOK,
				fmt.Sprintf("read quota %d/%d remaining", rl.Read.Remaining, rl.Read.Limit)})
		}
	}

	if cfg.Mode == config.ModeWrite {
		checks = append(checks, doctorCheck{"access mode", checkOK, "write (mutating commands enabled)"})
	} else {
		checks = append(checks, doctorCheck{"access mode", checkWarn, "read (run 'config set --mode write' to enable mutations)"})
	}

	if cache != nil && configured {
		last, err := cache.LastSync(ctx, scope)
		switch {
		case err != nil:
			checks = append(checks, doctorCheck{"last sync", checkWarn, err.Error()})
		case last.IsZero():
			checks = append(checks, doctorCheck{"last sync", checkWarn, "never (run 'sync')"})
		default:
			checks = append(checks, doctorCheck{"last sync", checkOK, formatTimeAgo(last)})
		}
	}
	return checks
}

func projectFileCheck(path string) doctorCheck {
	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		return doctorCheck{"project config", checkWarn, path + " (missing; settings come from user config or environment)"}
	case err != nil:
		return doctorCheck{"project config", checkWarn, err.Error()}
	case info.Mode().Perm()&0o077 != 0:
		return doctorCheck{"project config", checkWarn, fmt.Sprintf("%s is readable by others (%o); run chmod 600", path, info.Mode().Perm())}
	default:
		return doctorCheck{"project config", checkOK, path}
	}
}

func spaceLabel(cfg *config.Config) string {
	if cfg.BaseURL != "" {
		return cfg.BaseURL
	}
	return cfg.Space + "." + cfg.Domain
}

func storeLabel(cfg *config.Config) string {
	if cfg.Store.URL != "" {
		return cfg.Store.URL + " (remote)"
	}
	abs, err := filepath.Abs(cfg.Store.Path)
	if err != nil {
		return cfg.Store.Path
	}
	if info, err := os.Stat(abs); err == nil {
		return fmt.Sprintf("%s (%s)", abs, formatFileSize(info.Size()))
	}
	return abs
}

var doctorResetData bool

var doctorResetCmd = &cobra.Command{
	Use:         "reset",
	Short:       "Remove the local metadata database",
	Annotations: lenient,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !doctorResetData {
			return errwrap.NewInvalidInputError("specify --data")
		}
		cfg, err := loadedConfig()
		if err != nil {
			return err
		}
		if cfg.Store.URL != "" {
			return errwrap.NewInvalidInputError("remote store configured; database reset is not supported")
		}

		absPath, _ := filepath.Abs(cfg.Store.Path)
		if err := os.Remove(absPath); err == nil {
			observability.CLILogger.Info("Database removed", zap.String("path", absPath))
		} else if os.IsNotExist(err) {
			observability.CLILogger.Info("Database already removed", zap.String("path", absPath))
		} else {
			return fmt.Errorf("remove database: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.AddCommand(doctorResetCmd)

	doctorResetCmd.Flags().BoolVar(&doctorResetData, "data", false, "remove the local metadata database")
}

// formatFileSize returns a human-readable file size
func formatFileSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)
	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}

// formatTimeAgo returns a human-readable relative time
func formatTimeAgo(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		mins := int(d.Minutes())
		if mins == 1 {
			return "1 min ago"
		}
		return fmt.Sprintf("%d mins ago", mins)
	case d < 24*time.Hour:
		hours := int(d.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	default:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	}
}
