package cmd

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/backlogsync/backlogsync/internal/config"
	errwrap "github.com/backlogsync/backlogsync/internal/errors"
	"github.com/backlogsync/backlogsync/internal/observability"
	"github.com/backlogsync/backlogsync/internal/output"
)

var (
	configSetSpace      string
	configSetAPIKey     string
	configSetProjectKey string
	configSetMode       string
	configSetParallel   int
	configSetDomain     string
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and edit backlogsync settings",
}

var configShowCmd = &cobra.Command{
	Use:         "show",
	Short:       "Show the effective configuration",
	Annotations: lenient,
	RunE:        runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Write settings to the project config file",
	Long: `Write settings to .backlogsync/config.yaml in the project root.

Only the flags given are changed. The file is created with owner-only
permissions and the directory is excluded from git.`,
	Example:     "  backlogsync config set --space acme --api-key XXXX --project-key PROJ\n  backlogsync config set --mode write",
	Annotations: lenient,
	RunE:        runConfigSet,
}

var configPathCmd = &cobra.Command{
	Use:         "path",
	Short:       "Show where configuration is read from",
	Annotations: lenient,
	RunE:        runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configSetCmd, configPathCmd)

	configSetCmd.Flags().StringVar(&configSetSpace, "space", "", "Backlog space name (acme for acme.backlog.com)")
	configSetCmd.Flags().StringVar(&configSetAPIKey, "api-key", "", "Backlog API key")
	configSetCmd.Flags().StringVar(&configSetProjectKey, "project-key", "", "Backlog project key")
	configSetCmd.Flags().StringVar(&configSetMode, "mode", "", "Access mode: read|write")
	configSetCmd.Flags().IntVar(&configSetParallel, "parallel", 0, "Concurrent issue syncs (1-20)")
	configSetCmd.Flags().StringVar(&configSetDomain, "domain", "", "Backlog domain (backlog.com or backlog.jp)")
}

type configView struct {
	Space       string   `json:"space" yaml:"space"`
	APIKey      string   `json:"api_key" yaml:"api_key"`
	ProjectKey  string   `json:"project_key" yaml:"project_key"`
	Domain      string   `json:"domain" yaml:"domain"`
	BaseURL     string   `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Mode        string   `json:"mode" yaml:"mode"`
	Parallel    int      `json:"parallel" yaml:"parallel"`
	Timeout     string   `json:"timeout" yaml:"timeout"`
	SyncDir     string   `json:"sync_dir" yaml:"sync_dir"`
	StorePath   string   `json:"store_path,omitempty" yaml:"store_path,omitempty"`
	StoreURL    string   `json:"store_url,omitempty" yaml:"store_url,omitempty"`
	LogLevel    string   `json:"log_level" yaml:"log_level"`
	ProjectRoot string   `json:"project_root" yaml:"project_root"`
	Sources     []string `json:"sources" yaml:"sources"`
}

func newConfigView(cfg *config.Config) configView {
	apiKey := ""
	if strings.TrimSpace(cfg.APIKey) != "" {
		apiKey = config.MaskAPIKey(cfg.APIKey)
	}
	sources := cfg.Sources
	if sources == nil {
		sources = []string{}
	}
	return configView{
		Space:       cfg.Space,
		APIKey:      apiKey,
		ProjectKey:  cfg.ProjectKey,
		Domain:      cfg.Domain,
		BaseURL:     cfg.BaseURL,
		Mode:        cfg.Mode,
		Parallel:    cfg.Parallel,
		Timeout:     cfg.Timeout.String(),
		SyncDir:     cfg.SyncDir,
		StorePath:   cfg.Store.Path,
		StoreURL:    cfg.Store.URL,
		LogLevel:    cfg.Logging.Level,
		ProjectRoot: cfg.ProjectRoot,
		Sources:     sources,
	}
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := loadedConfig()
	if err != nil {
		return err
	}
	view := newConfigView(cfg)
	return writeOutput(cmd, view, func() table.Writer {
		t := output.NewTable("Setting", "Value")
		t.AppendRows([]table.Row{
			{"space", output.Dash(view.Space)},
			{"api_key", output.Dash(view.APIKey)},
			{"project_key", output.Dash(view.ProjectKey)},
			{"domain", view.Domain},
			{"base_url", output.Dash(view.BaseURL)},
			{"mode", view.Mode},
			{"parallel", view.Parallel},
			{"timeout", view.Timeout},
			{"sync_dir", view.SyncDir},
			{"log_level", view.LogLevel},
			{"project_root", view.ProjectRoot},
		})
		return t
	})
}

func runConfigSet(cmd *cobra.Command, _ []string) error {
	cfg, err := loadedConfig()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if !anyChanged(cmd, "space", "api-key", "project-key", "mode", "parallel", "domain") {
		return errwrap.NewInvalidInputError("nothing to set: pass at least one of --space, --api-key, --project-key, --mode, --parallel, --domain")
	}

	path := config.ProjectConfigPath(cfg.ProjectRoot)
	file, err := config.ReadProjectFile(path)
	if err != nil {
		return errwrap.WrapConfigInvalid(cmd.Context(), err, "failed to read project config")
	}

	if flags.Changed("space") {
		file.Space = strings.TrimSpace(configSetSpace)
	}
	if flags.Changed("api-key") {
		file.APIKey = strings.TrimSpace(configSetAPIKey)
	}
	if flags.Changed("project-key") {
		file.ProjectKey = strings.ToUpper(strings.TrimSpace(configSetProjectKey))
	}
	if flags.Changed("mode") {
		file.Mode = strings.ToLower(strings.TrimSpace(configSetMode))
	}
	if flags.Changed("parallel") {
		file.Parallel = configSetParallel
	}
	if flags.Changed("domain") {
		file.Domain = strings.TrimSpace(configSetDomain)
	}

	if err := file.Validate(); err != nil {
		return errwrap.NewInvalidInputError(err.Error())
	}
	if err := config.WriteProjectFile(path, file); err != nil {
		return err
	}

	observability.CLILogger.Debug("Project config written", zap.String("path", path))
	printf(cmd.OutOrStdout(), "Saved %s\n", path)
	return nil
}

type configPaths struct {
	UserConfig    string   `json:"user_config" yaml:"user_config"`
	ProjectConfig string   `json:"project_config" yaml:"project_config"`
	DataDir       string   `json:"data_dir" yaml:"data_dir"`
	Loaded        []string `json:"loaded" yaml:"loaded"`
}

func runConfigPath(cmd *cobra.Command, _ []string) error {
	cfg, err := loadedConfig()
	if err != nil {
		return err
	}
	paths := configPaths{
		UserConfig:    config.DefaultConfigPath(),
		ProjectConfig: config.ProjectConfigPath(cfg.ProjectRoot),
		DataDir:       config.DefaultDataDir(),
		Loaded:        cfg.Sources,
	}
	if paths.Loaded == nil {
		paths.Loaded = []string{}
	}
	return writeOutput(cmd, paths, func() table.Writer {
		t := output.NewTable("Kind", "Path")
		t.AppendRows([]table.Row{
			{"user", paths.UserConfig},
			{"project", paths.ProjectConfig},
			{"data", paths.DataDir},
		})
		return t
	})
}

func anyChanged(cmd *cobra.Command, names ...string) bool {
	for _, name := range names {
		if cmd.Flags().Changed(name) {
			return true
		}
	}
	return false
}
