package cmd

import (
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/backlogsync/backlogsync/internal/core/store"
	errwrap "github.com/backlogsync/backlogsync/internal/errors"
	"github.com/backlogsync/backlogsync/internal/output"
)

var (
	cacheListAll     bool
	cacheListKind    string
	cacheListProject string

	cacheClearAll     bool
	cacheClearKind    string
	cacheClearProject string
	cacheClearYes     bool
	cacheClearDryRun  bool
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and clear the local metadata cache",
}

var cacheListCmd = &cobra.Command{
	Use:         "list",
	Short:       "List cached metadata tables",
	Args:        cobra.NoArgs,
	Annotations: lenient,
	RunE:        runCacheList,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete cached metadata so it is fetched again",
	Example: `  backlogsync cache clear --kind users
  backlogsync cache clear --project PROJ --dry-run
  backlogsync cache clear --all --yes`,
	Args:        cobra.NoArgs,
	Annotations: lenient,
	RunE:        runCacheClear,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheListCmd, cacheClearCmd)

	cacheListCmd.Flags().BoolVar(&cacheListAll, "all", false, "List every entry (default when no filter is given)")
	cacheListCmd.Flags().StringVar(&cacheListKind, "kind", "", "Only entries of this kind")
	cacheListCmd.Flags().StringVar(&cacheListProject, "project", "", "Only entries of this project key")

	cacheClearCmd.Flags().BoolVar(&cacheClearAll, "all", false, "Clear every entry")
	cacheClearCmd.Flags().StringVar(&cacheClearKind, "kind", "", "Clear entries of this kind")
	cacheClearCmd.Flags().StringVar(&cacheClearProject, "project", "", "Clear entries of this project key")
	cacheClearCmd.Flags().BoolVar(&cacheClearYes, "yes", false, "Confirm clearing everything")
	cacheClearCmd.Flags().BoolVar(&cacheClearDryRun, "dry-run", false, "Show what would be deleted")
}

type cacheEntryView struct {
	Space      string    `json:"space" yaml:"space"`
	ProjectKey string    `json:"project_key" yaml:"project_key"`
	Kind       string    `json:"kind" yaml:"kind"`
	Items      int       `json:"items" yaml:"items"`
	CachedAt   time.Time `json:"cached_at" yaml:"cached_at"`
}

func openCache(cmd *cobra.Command) (*store.Store, error) {
	cfg, err := loadedConfig()
	if err != nil {
		return nil, err
	}
	st, err := store.OpenMigrated(cmd.Context(), cfg.Store)
	if err != nil {
		return nil, errwrap.WrapDatabaseError(cmd.Context(), err, "failed to open metadata cache")
	}
	return st, nil
}

func runCacheList(cmd *cobra.Command, _ []string) error {
	query := store.MetadataQuery{
		All:     cacheListAll,
		Kind:    strings.TrimSpace(cacheListKind),
		Project: strings.TrimSpace(cacheListProject),
	}
	if !query.All && query.Kind == "" && query.Project == "" {
		query.All = true
	}

	db, err := openCache(cmd)
	if err != nil {
		return err
	}
	defer db.Close() // nolint:errcheck // best-effort cleanup

	entries, err := db.ListMetadata(cmd.Context(), query)
	if err != nil {
		return errwrap.NewInvalidInputError(err.Error())
	}

	views := make([]cacheEntryView, len(entries))
	for i, entry := range entries {
		views[i] = cacheEntryView{
			Space:      entry.Space,
			ProjectKey: entry.ProjectKey,
			Kind:       string(entry.Kind),
			Items:      entry.ItemCount,
			CachedAt:   entry.CachedAt,
		}
	}
	return writeOutput(cmd, views, func() table.Writer {
		t := output.NewTable("Space", "Project", "Kind", "Items", "Cached At")
		for _, view := range views {
			t.AppendRow(table.Row{view.Space, view.ProjectKey, view.Kind, view.Items, view.CachedAt.Local().Format("2006-01-02 15:04")})
		}
		return t
	})
}

type cacheClearResult struct {
	Matched int   `json:"matched" yaml:"matched"`
	Deleted int64 `json:"deleted" yaml:"deleted"`
	DryRun  bool  `json:"dry_run" yaml:"dry_run"`
}

func runCacheClear(cmd *cobra.Command, _ []string) error {
	query := store.MetadataQuery{
		All:     cacheClearAll,
		Kind:    strings.TrimSpace(cacheClearKind),
		Project: strings.TrimSpace(cacheClearProject),
	}
	if err := query.Validate(); err != nil {
		return errwrap.NewInvalidInputError(err.Error())
	}
	if query.All && !cacheClearYes && !cacheClearDryRun {
		return errwrap.NewInvalidInputError("--all requires --yes (or use --dry-run)")
	}

	db, err := openCache(cmd)
	if err != nil {
		return err
	}
	defer db.Close() // nolint:errcheck // best-effort cleanup

	matched, err := db.CountMetadata(cmd.Context(), query)
	if err != nil {
		return errwrap.NewInvalidInputError(err.Error())
	}

	result := cacheClearResult{Matched: matched, DryRun: cacheClearDryRun}
	if !cacheClearDryRun {
		result.Deleted, err = db.ResetMetadata(cmd.Context(), query)
		if err != nil {
			return errwrap.WrapDatabaseError(cmd.Context(), err, "failed to clear metadata cache")
		}
	}

	if structuredOutput(cmd) {
		return writeOutput(cmd, result, nil)
	}
	if result.DryRun {
		printf(cmd.OutOrStdout(), "Would delete %d cache entr(ies)\n", result.Matched)
		return nil
	}
	printf(cmd.OutOrStdout(), "Deleted %d/%d cache entr(ies)\n", result.Deleted, result.Matched)
	return nil
}
