package cmd

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/backlogsync/backlogsync/internal/core/store"
	errwrap "github.com/backlogsync/backlogsync/internal/errors"
	"github.com/backlogsync/backlogsync/internal/output"
)

var projectInfoRefresh bool

var projectInfoCmd = &cobra.Command{
	Use:   "project-info <kind>",
	Short: "Show project metadata (statuses, users, ...)",
	Long: `Show project metadata. Kinds: project, statuses, issue-types, priorities,
resolutions, users, categories, versions.

Results come from the local metadata cache when present; --refresh fetches
them again from Backlog and updates the cache.`,
	Example:   "  backlogsync project-info statuses\n  backlogsync project-info users --refresh -o table",
	Args:      cobra.ExactArgs(1),
	ValidArgs: metadataKindNames(),
	RunE:      runProjectInfo,
}

func init() {
	rootCmd.AddCommand(projectInfoCmd)
	projectInfoCmd.Flags().BoolVar(&projectInfoRefresh, "refresh", false, "Bypass the cache and fetch from Backlog")
}

func metadataKindNames() []string {
	names := make([]string, len(store.MetadataKinds))
	for i, kind := range store.MetadataKinds {
		names[i] = string(kind)
	}
	return names
}

func runProjectInfo(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	kind, err := store.ParseMetadataKind(args[0])
	if err != nil {
		return errwrap.NewInvalidInputError(err.Error())
	}
	sess, err := connect(cmd)
	if err != nil {
		return err
	}
	defer sess.close()

	entry, err := sess.metadataFor(ctx, kind, projectInfoRefresh)
	if err != nil {
		return apiError(ctx, err)
	}

	var value any
	if err := entry.Decode(&value); err != nil {
		return err
	}

	var tableFn output.TableFunc
	if kind != store.KindProject {
		var items []store.NamedItem
		if err := entry.Decode(&items); err == nil {
			tableFn = namedItemTable(kind, items)
		}
	}
	return writeOutput(cmd, value, tableFn)
}

func namedItemTable(kind store.MetadataKind, items []store.NamedItem) output.TableFunc {
	return func() table.Writer {
		if kind == store.KindUsers {
			t := output.NewTable("ID", "User ID", "Name")
			for _, item := range items {
				t.AppendRow(table.Row{item.ID, output.Dash(item.UserID), item.Name})
			}
			return t
		}
		t := output.NewTable("ID", "Name")
		for _, item := range items {
			t.AppendRow(table.Row{item.ID, item.Name})
		}
		return t
	}
}
