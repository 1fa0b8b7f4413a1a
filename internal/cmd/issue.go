package cmd

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/backlogsync/backlogsync/internal/backlog"
	"github.com/backlogsync/backlogsync/internal/core/store"
	errwrap "github.com/backlogsync/backlogsync/internal/errors"
	"github.com/backlogsync/backlogsync/internal/output"
)

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Read and modify issues",
	Long: `Read and modify issues of the configured project.

Type, priority, status, assignee, category, version, milestone and resolution
flags accept display names (matched case-insensitively, unique partial
matches allowed) or numeric ids. Names are resolved through the local
metadata cache.`,
}

var issueGetCmd = &cobra.Command{
	Use:   "get <ISSUE-KEY>",
	Short: "Show an issue",
	Args:  cobra.ExactArgs(1),
	RunE:  runIssueGet,
}

var (
	issueSummary        string
	issueDescription    string
	issueType           string
	issuePriority       string
	issueStatus         string
	issueAssignee       string
	issueResolution     string
	issueCategories     []string
	issueVersions       []string
	issueMilestones     []string
	issueStartDate      string
	issueDueDate        string
	issueEstimatedHours float64
	issueActualHours    float64
	issueParentID       int
	issueComment        string
)

var issueCreateCmd = &cobra.Command{
	Use:     "create",
	Short:   "Create an issue",
	Example: `  backlogsync issue create --summary "Login fails" --type Bug --priority High --assignee alice`,
	Args:    cobra.NoArgs,
	RunE:    runIssueCreate,
}

var issueUpdateCmd = &cobra.Command{
	Use:     "update <ISSUE-KEY>",
	Short:   "Update fields of an issue",
	Example: `  backlogsync issue update PROJ-12 --status "In Progress" --comment "picked up"`,
	Args:    cobra.ExactArgs(1),
	RunE:    runIssueUpdate,
}

var issueDeleteCmd = &cobra.Command{
	Use:   "delete <ISSUE-KEY>",
	Short: "Delete an issue",
	Args:  cobra.ExactArgs(1),
	RunE:  runIssueDelete,
}

var (
	issueSearchFilter issueFilterFlags
	issueCountFilter  issueFilterFlags
	issueSearchCount  int
	issueSearchOffset int
	issueSearchSort   string
	issueSearchOrder  string
)

var issueSearchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search issues of the project",
	Args:  cobra.NoArgs,
	RunE:  runIssueSearch,
}

var issueCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Count issues of the project",
	Args:  cobra.NoArgs,
	RunE:  runIssueCount,
}

func init() {
	rootCmd.AddCommand(issueCmd)
	issueCmd.AddCommand(issueGetCmd, issueCreateCmd, issueUpdateCmd, issueDeleteCmd, issueSearchCmd, issueCountCmd)

	for _, c := range []*cobra.Command{issueCreateCmd, issueUpdateCmd} {
		f := c.Flags()
		f.StringVar(&issueSummary, "summary", "", "Issue summary")
		f.StringVar(&issueDescription, "description", "", "Issue description")
		f.StringVar(&issueType, "type", "", "Issue type name or id")
		f.StringVar(&issuePriority, "priority", "", "Priority name or id")
		f.StringVar(&issueAssignee, "assignee", "", "Assignee name, user id or numeric id")
		f.StringSliceVar(&issueCategories, "category", nil, "Category names or ids")
		f.StringSliceVar(&issueVersions, "version", nil, "Version names or ids")
		f.StringSliceVar(&issueMilestones, "milestone", nil, "Milestone names or ids")
		f.StringVar(&issueStartDate, "start-date", "", "Start date (YYYY-MM-DD)")
		f.StringVar(&issueDueDate, "due-date", "", "Due date (YYYY-MM-DD)")
		f.Float64Var(&issueEstimatedHours, "estimated-hours", 0, "Estimated hours")
		f.Float64Var(&issueActualHours, "actual-hours", 0, "Actual hours")
	}
	issueCreateCmd.Flags().IntVar(&issueParentID, "parent-issue-id", 0, "Parent issue id")
	_ = issueCreateCmd.MarkFlagRequired("summary")
	_ = issueCreateCmd.MarkFlagRequired("type")
	_ = issueCreateCmd.MarkFlagRequired("priority")

	issueUpdateCmd.Flags().StringVar(&issueStatus, "status", "", "Status name or id")
	issueUpdateCmd.Flags().StringVar(&issueResolution, "resolution", "", "Resolution name or id")
	issueUpdateCmd.Flags().StringVar(&issueComment, "comment", "", "Comment added with the update")

	issueSearchFilter.bind(issueSearchCmd)
	issueSearchCmd.Flags().IntVar(&issueSearchCount, "count", 20, "Page size (1-100)")
	issueSearchCmd.Flags().IntVar(&issueSearchOffset, "offset", 0, "Page offset")
	issueSearchCmd.Flags().StringVar(&issueSearchSort, "sort", "updated", "Sort key (updated, created, dueDate, ...)")
	issueSearchCmd.Flags().StringVar(&issueSearchOrder, "order", "desc", "Sort order: asc|desc")

	issueCountFilter.bind(issueCountCmd)
}

func runIssueGet(cmd *cobra.Command, args []string) error {
	sess, err := connect(cmd)
	if err != nil {
		return err
	}
	defer sess.close()

	issue, err := sess.client.GetIssue(cmd.Context(), args[0])
	if err != nil {
		return apiError(cmd.Context(), err)
	}
	return writeOutput(cmd, issue, issueTable([]backlog.Issue{*issue}))
}

func runIssueCreate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	sess, err := connect(cmd)
	if err != nil {
		return err
	}
	defer sess.close()
	if err := sess.cfg.RequireWriteMode("issue create"); err != nil {
		return err
	}

	project, err := sess.project(ctx)
	if err != nil {
		return apiError(ctx, err)
	}
	params := backlog.AddIssueParams{
		ProjectID:      project.ID,
		Summary:        issueSummary,
		Description:    optString(cmd, "description", issueDescription),
		StartDate:      optString(cmd, "start-date", issueStartDate),
		DueDate:        optString(cmd, "due-date", issueDueDate),
		EstimatedHours: optFloat(cmd, "estimated-hours", issueEstimatedHours),
		ActualHours:    optFloat(cmd, "actual-hours", issueActualHours),
	}
	if cmd.Flags().Changed("parent-issue-id") {
		params.ParentIssueID = backlog.Ptr(issueParentID)
	}

	if params.IssueTypeID, err = sess.resolveID(ctx, store.KindIssueTypes, issueType); err != nil {
		return apiError(ctx, err)
	}
	if params.PriorityID, err = sess.resolveID(ctx, store.KindPriorities, issuePriority); err != nil {
		return apiError(ctx, err)
	}
	if params.AssigneeID, err = sess.optionalID(ctx, cmd, "assignee", store.KindUsers, issueAssignee); err != nil {
		return apiError(ctx, err)
	}
	if params.CategoryIDs, err = sess.resolveIDs(ctx, store.KindCategories, issueCategories); err != nil {
		return apiError(ctx, err)
	}
	if params.VersionIDs, err = sess.resolveIDs(ctx, store.KindVersions, issueVersions); err != nil {
		return apiError(ctx, err)
	}
	if params.MilestoneIDs, err = sess.resolveIDs(ctx, store.KindVersions, issueMilestones); err != nil {
		return apiError(ctx, err)
	}

	issue, err := sess.client.AddIssue(ctx, params)
	if err != nil {
		return apiError(ctx, err)
	}
	if structuredOutput(cmd) {
		return writeOutput(cmd, issue, issueTable([]backlog.Issue{*issue}))
	}
	printf(cmd.OutOrStdout(), "Created %s: %s\nURL: %s\n", issue.IssueKey, issue.Summary, sess.client.IssueURL(issue.IssueKey))
	return nil
}

func runIssueUpdate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	sess, err := connect(cmd)
	if err != nil {
		return err
	}
	defer sess.close()
	if err := sess.cfg.RequireWriteMode("issue update"); err != nil {
		return err
	}

	params := backlog.UpdateIssueParams{
		Summary:        optString(cmd, "summary", issueSummary),
		Description:    optString(cmd, "description", issueDescription),
		StartDate:      optString(cmd, "start-date", issueStartDate),
		DueDate:        optString(cmd, "due-date", issueDueDate),
		EstimatedHours: optFloat(cmd, "estimated-hours", issueEstimatedHours),
		ActualHours:    optFloat(cmd, "actual-hours", issueActualHours),
		Comment:        optString(cmd, "comment", issueComment),
	}

	singles := []struct {
		flag  string
		kind  store.MetadataKind
		value string
		out   **int
	}{
		{"status", store.KindStatuses, issueStatus, &params.StatusID},
		{"assignee", store.KindUsers, issueAssignee, &params.AssigneeID},
		{"priority", store.KindPriorities, issuePriority, &params.PriorityID},
		{"type", store.KindIssueTypes, issueType, &params.IssueTypeID},
		{"resolution", store.KindResolutions, issueResolution, &params.ResolutionID},
	}
	for _, single := range singles {
		id, err := sess.optionalID(ctx, cmd, single.flag, single.kind, single.value)
		if err != nil {
			return apiError(ctx, err)
		}
		*single.out = id
	}
	if params.CategoryIDs, err = sess.resolveIDs(ctx, store.KindCategories, issueCategories); err != nil {
		return apiError(ctx, err)
	}
	if params.VersionIDs, err = sess.resolveIDs(ctx, store.KindVersions, issueVersions); err != nil {
		return apiError(ctx, err)
	}
	if params.MilestoneIDs, err = sess.resolveIDs(ctx, store.KindVersions, issueMilestones); err != nil {
		return apiError(ctx, err)
	}

	if params.Empty() {
		return errwrap.NewInvalidInputError("nothing to update: pass at least one field flag")
	}

	issue, err := sess.client.UpdateIssue(ctx, args[0], params)
	if err != nil {
		return apiError(ctx, err)
	}
	if structuredOutput(cmd) {
		return writeOutput(cmd, issue, issueTable([]backlog.Issue{*issue}))
	}
	printf(cmd.OutOrStdout(), "Updated %s: %s\nURL: %s\n", issue.IssueKey, issue.Summary, sess.client.IssueURL(issue.IssueKey))
	return nil
}

func runIssueDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	sess, err := connect(cmd)
	if err != nil {
		return err
	}
	defer sess.close()
	if err := sess.cfg.RequireWriteMode("issue delete"); err != nil {
		return err
	}

	issue, err := sess.client.DeleteIssue(ctx, args[0])
	if err != nil {
		return apiError(ctx, err)
	}
	if structuredOutput(cmd) {
		return writeOutput(cmd, issue, nil)
	}
	printf(cmd.OutOrStdout(), "Deleted %s: %s\n", issue.IssueKey, issue.Summary)
	return nil
}

func runIssueSearch(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if issueSearchCount < 1 || issueSearchCount > backlog.PageSize {
		return errwrap.NewInvalidInputError("--count must be between 1 and 100")
	}

	sess, err := connect(cmd)
	if err != nil {
		return err
	}
	defer sess.close()

	project, err := sess.project(ctx)
	if err != nil {
		return apiError(ctx, err)
	}
	filter, err := issueSearchFilter.resolve(cmd, sess)
	if err != nil {
		return apiError(ctx, err)
	}

	issues, err := sess.client.SearchIssues(ctx, project.ID, backlog.IssueSearch{
		IssueFilter: filter,
		Count:       backlog.Ptr(issueSearchCount),
		Offset:      backlog.Ptr(issueSearchOffset),
		Sort:        issueSearchSort,
		Order:       issueSearchOrder,
	})
	if err != nil {
		return apiError(ctx, err)
	}
	if issues == nil {
		issues = []backlog.Issue{}
	}
	return writeOutput(cmd, issues, issueTable(issues))
}

type issueCount struct {
	Count int `json:"count" yaml:"count"`
}

func runIssueCount(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	sess, err := connect(cmd)
	if err != nil {
		return err
	}
	defer sess.close()

	project, err := sess.project(ctx)
	if err != nil {
		return apiError(ctx, err)
	}
	filter, err := issueCountFilter.resolve(cmd, sess)
	if err != nil {
		return apiError(ctx, err)
	}

	count, err := sess.client.CountIssues(ctx, project.ID, filter)
	if err != nil {
		return apiError(ctx, err)
	}
	result := issueCount{Count: count}
	return writeOutput(cmd, result, func() table.Writer {
		t := output.NewTable("Count")
		t.AppendRow(table.Row{result.Count})
		return t
	})
}

func issueTable(issues []backlog.Issue) output.TableFunc {
	return func() table.Writer {
		t := output.NewTable("Key", "Status", "Type", "Priority", "Assignee", "Summary", "Updated")
		for _, issue := range issues {
			assignee := ""
			if issue.Assignee != nil {
				assignee = issue.Assignee.Name
			}
			t.AppendRow(table.Row{
				issue.IssueKey,
				issue.Status.Name,
				issue.IssueType.Name,
				issue.Priority.Name,
				output.Dash(assignee),
				issue.Summary,
				output.Dash(firstN(issue.Updated, 10)),
			})
		}
		return t
	}
}

func firstN(value string, n int) string {
	if len(value) <= n {
		return value
	}
	return value[:n]
}
