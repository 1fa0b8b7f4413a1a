package cmd

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/backlogsync/backlogsync/internal/backlog"
	"github.com/backlogsync/backlogsync/internal/config"
	"github.com/backlogsync/backlogsync/internal/core/engine"
	errwrap "github.com/backlogsync/backlogsync/internal/errors"
	"github.com/backlogsync/backlogsync/internal/observability"
)

var (
	syncAll         bool
	syncIssueKey    string
	syncForce       bool
	syncDryRun      bool
	syncParallel    int
	syncDir         string
	syncKeyword     string
	syncStatusIDs   []int
	syncTypeIDs     []int
	syncCategoryIDs []int
	syncMilestones  []int
	syncAssignees   []int
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Mirror project issues into local markdown files",
	Long: `Mirror Backlog issues into <dir>/<ISSUE-KEY>/ as issue.md, comments.md
and attachments/.

Open issues are synced by default; --all includes closed ones. Issues whose
issue.md already records the current update time are skipped unless --force.`,
	Example: `  backlogsync sync
  backlogsync sync --all --parallel 10
  backlogsync sync --issue PROJ-123 --force
  backlogsync sync --dry-run --keyword login`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().BoolVar(&syncAll, "all", false, "Include closed issues")
	syncCmd.Flags().StringVar(&syncIssueKey, "issue", "", "Sync a single issue by key")
	syncCmd.Flags().BoolVar(&syncForce, "force", false, "Re-sync issues and attachments that are up to date")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "List what would be synced without writing files")
	syncCmd.Flags().IntVar(&syncParallel, "parallel", 0, "Concurrent issue syncs (default from config)")
	syncCmd.Flags().StringVar(&syncDir, "dir", "", "Target directory (default from config sync_dir)")
	syncCmd.Flags().StringVar(&syncKeyword, "keyword", "", "Only issues matching keyword")
	syncCmd.Flags().IntSliceVar(&syncStatusIDs, "status-id", nil, "Only issues with these status ids")
	syncCmd.Flags().IntSliceVar(&syncTypeIDs, "type-id", nil, "Only issues with these issue type ids")
	syncCmd.Flags().IntSliceVar(&syncCategoryIDs, "category-id", nil, "Only issues in these category ids")
	syncCmd.Flags().IntSliceVar(&syncMilestones, "milestone-id", nil, "Only issues in these milestone ids")
	syncCmd.Flags().IntSliceVar(&syncAssignees, "assignee-id", nil, "Only issues assigned to these user ids")
}

func runSync(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	sess, err := connect(cmd)
	if err != nil {
		return err
	}
	defer sess.close()

	parallel := sess.cfg.Parallel
	if cmd.Flags().Changed("parallel") {
		if syncParallel < 1 || syncParallel > config.MaxParallel {
			return errwrap.NewInvalidInputError("--parallel must be between 1 and 20")
		}
		parallel = syncParallel
	}
	dir := sess.cfg.SyncDir
	if strings.TrimSpace(syncDir) != "" {
		dir = syncDir
	}
	dir, err = ensureOutDir(dir)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	syncer := &engine.Syncer{
		Source:   sess.client,
		Dir:      dir,
		Parallel: parallel,
		Location: time.Local,
		Out:      out,
		Logger:   observability.APILogger{Logger: observability.CLILogger},
	}

	req := engine.SyncRequest{
		ProjectKey: sess.cfg.ProjectKey,
		IssueKey:   strings.TrimSpace(syncIssueKey),
		All:        syncAll,
		Force:      syncForce,
		DryRun:     syncDryRun,
		Filter: backlog.IssueFilter{
			StatusIDs:    syncStatusIDs,
			IssueTypeIDs: syncTypeIDs,
			CategoryIDs:  syncCategoryIDs,
			MilestoneIDs: syncMilestones,
			AssigneeIDs:  syncAssignees,
			Keyword:      syncKeyword,
		},
	}

	if req.IssueKey != "" {
		printf(out, "Syncing %s into %s\n", req.IssueKey, dir)
	} else {
		printf(out, "Syncing %s into %s\n", req.ProjectKey, dir)
	}
	if req.DryRun {
		printf(out, "(dry run: no files will be written)\n")
	}

	report, syncErr := syncer.Sync(ctx, req)
	if report == nil {
		return apiError(ctx, syncErr)
	}

	printf(out, "\nDone: %d issue(s), %d synced, %d skipped, %d failed", report.Total, report.Synced, report.Skipped, report.Failed)
	if report.Warnings > 0 {
		printf(out, ", %d warning(s)", report.Warnings)
	}
	printf(out, " in %s\n", report.Duration.Round(time.Millisecond))

	if !req.DryRun && report.Failed == 0 && syncErr == nil {
		if cache := sess.metadataStore(ctx); cache != nil {
			if err := cache.RecordSync(ctx, sess.scope(), report.StartedAt); err != nil {
				observability.CLILogger.Warn("Failed to record sync time", zap.Error(err))
			}
		}
	}

	if cmd.Flags().Changed("output-format") || strings.TrimSpace(outFile) != "" {
		if err := writeOutput(cmd, report, nil); err != nil {
			return err
		}
	}

	if syncErr != nil {
		var issueErr *engine.IssueError
		if report.Failed > 0 && errors.As(syncErr, &issueErr) {
			return errwrap.WrapInternal(ctx, syncErr, "some issues failed to sync")
		}
		return apiError(ctx, syncErr)
	}
	return nil
}
