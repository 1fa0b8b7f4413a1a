package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fulmenhq/gofulmen/appidentity"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/backlogsync/backlogsync/internal/appid"
	"github.com/backlogsync/backlogsync/internal/config"
	errwrap "github.com/backlogsync/backlogsync/internal/errors"
	"github.com/backlogsync/backlogsync/internal/observability"
)

var (
	cfgFile      string
	verbose      bool
	outputFormat string
	outFile      string

	// App identity loaded from the embedded app.yaml
	appIdentity *appidentity.Identity

	// Version info set by main package
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by main package to set version information
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// GetAppIdentity returns the loaded app identity, or the fallback identity
// when none could be loaded.
func GetAppIdentity() *appidentity.Identity {
	if appIdentity == nil {
		appIdentity = appid.Resolve(context.Background())
	}
	return appIdentity
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   filepath.Base(os.Args[0]),
	Short: "Mirror and manage Backlog issues from the command line",
	Long: `Mirror Backlog issues into a local markdown tree and manage issues,
comments, wiki pages and documents through the Backlog REST API.

Settings are read from the user config, the project's .backlogsync/config.yaml,
an optional --config file and BACKLOGSYNC_* environment variables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command tree. Errors are returned unreported; pass them to
// Fail with the same context.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// NewContext returns ctx tagged with a fresh correlation id, shared by every
// error envelope of one invocation.
func NewContext(ctx context.Context) context.Context {
	if errwrap.CorrelationID(ctx) != "" {
		return ctx
	}
	return errwrap.WithCorrelationID(ctx, newCorrelationID())
}

func init() {
	rootCmd.PersistentPreRunE = initRuntime

	ctx := context.Background()
	if identity, err := appid.Get(ctx); err == nil && identity != nil {
		appIdentity = identity
		if identity.BinaryName != "" {
			rootCmd.Use = identity.BinaryName
		}
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file merged above user and project config")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output-format", "o", "json", "Output format: json|table|yaml")
	rootCmd.PersistentFlags().StringVar(&outFile, "out", "", "Write output to a file (default stdout)")
}

// annotationLenient marks commands that must run even with invalid config,
// so the config can be inspected and repaired.
const annotationLenient = "backlogsync.lenient-config"

var lenient = map[string]string{annotationLenient: "true"}

// initRuntime sets up logging and loads configuration before any command runs.
func initRuntime(cmd *cobra.Command, _ []string) error {
	identity := GetAppIdentity()
	if identity != nil && identity.BinaryName != "" {
		cmd.Root().Use = identity.BinaryName
	}

	observability.InitCLILogger(binaryName(), verbose)

	cfg, err := config.Load(cmd.Context(), config.LoadOptions{ConfigFile: cfgFile})
	if err != nil {
		return errwrap.WrapConfigInvalid(cmd.Context(), err, "failed to load configuration")
	}
	if !verbose && cfg.Logging.Level != "" {
		observability.InitCLILogger(binaryName(), false, cfg.Logging.Level)
	}
	if err := cfg.Validate(); err != nil && cmd.Annotations[annotationLenient] == "" {
		return errwrap.WrapConfigInvalid(cmd.Context(), err, err.Error())
	}

	observability.CLILogger.Debug("Configuration loaded",
		zap.String("project_root", cfg.ProjectRoot),
		zap.Strings("sources", cfg.Sources),
		zap.String("mode", cfg.Mode),
	)
	return nil
}

func newCorrelationID() string {
	return uuid.New().String()
}

func binaryName() string {
	if identity := GetAppIdentity(); identity != nil && identity.BinaryName != "" {
		return identity.BinaryName
	}
	return appid.FallbackBinaryName
}

func loadedConfig() (*config.Config, error) {
	cfg := config.GetConfig()
	if cfg == nil {
		return nil, fmt.Errorf("%w: configuration not loaded", config.ErrNotConfigured)
	}
	return cfg, nil
}
