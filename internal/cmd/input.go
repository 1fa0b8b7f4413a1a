package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/backlogsync/backlogsync/internal/backlog"
	"github.com/backlogsync/backlogsync/internal/core/store"
	errwrap "github.com/backlogsync/backlogsync/internal/errors"
)

// readContent returns the --content value, or stdin when --content-stdin is
// set. The second result reports whether any content was supplied.
func readContent(cmd *cobra.Command, value string, fromStdin bool) (string, bool, error) {
	if fromStdin {
		if cmd.Flags().Changed("content") {
			return "", false, errwrap.NewInvalidInputError("--content and --content-stdin are mutually exclusive")
		}
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", false, fmt.Errorf("read stdin: %w", err)
		}
		return string(data), true, nil
	}
	return value, cmd.Flags().Changed("content"), nil
}

func optString(cmd *cobra.Command, flag, value string) *string {
	if !cmd.Flags().Changed(flag) {
		return nil
	}
	return backlog.Ptr(value)
}

func optFloat(cmd *cobra.Command, flag string, value float64) *float64 {
	if !cmd.Flags().Changed(flag) {
		return nil
	}
	return backlog.Ptr(value)
}

func optBool(cmd *cobra.Command, flag string, value bool) *bool {
	if !cmd.Flags().Changed(flag) {
		return nil
	}
	return backlog.Ptr(value)
}

// issueFilterFlags are the selectors shared by issue search and count.
type issueFilterFlags struct {
	keyword    string
	statuses   []string
	types      []string
	categories []string
	milestones []string
	assignees  []string
	priorities []string
}

func (f *issueFilterFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.keyword, "keyword", "", "Match keyword in summary, description and comments")
	cmd.Flags().StringSliceVar(&f.statuses, "status", nil, "Status names or ids")
	cmd.Flags().StringSliceVar(&f.types, "type", nil, "Issue type names or ids")
	cmd.Flags().StringSliceVar(&f.categories, "category", nil, "Category names or ids")
	cmd.Flags().StringSliceVar(&f.milestones, "milestone", nil, "Milestone names or ids")
	cmd.Flags().StringSliceVar(&f.assignees, "assignee", nil, "Assignee names, user ids or numeric ids")
	cmd.Flags().StringSliceVar(&f.priorities, "priority", nil, "Priority names or ids")
}

func (f *issueFilterFlags) resolve(cmd *cobra.Command, sess *session) (backlog.IssueFilter, error) {
	ctx := cmd.Context()
	filter := backlog.IssueFilter{Keyword: strings.TrimSpace(f.keyword)}

	targets := []struct {
		kind   store.MetadataKind
		values []string
		out    *[]int
	}{
		{store.KindStatuses, f.statuses, &filter.StatusIDs},
		{store.KindIssueTypes, f.types, &filter.IssueTypeIDs},
		{store.KindCategories, f.categories, &filter.CategoryIDs},
		{store.KindVersions, f.milestones, &filter.MilestoneIDs},
		{store.KindUsers, f.assignees, &filter.AssigneeIDs},
		{store.KindPriorities, f.priorities, &filter.PriorityIDs},
	}
	for _, target := range targets {
		ids, err := sess.resolveIDs(ctx, target.kind, target.values)
		if err != nil {
			return filter, err
		}
		*target.out = ids
	}
	return filter, nil
}

// structuredOutput reports whether the user asked for machine output instead
// of the confirmation lines printed by mutating commands.
func structuredOutput(cmd *cobra.Command) bool {
	return cmd.Flags().Changed("output-format") || strings.TrimSpace(outFile) != ""
}
