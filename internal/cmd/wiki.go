package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/backlogsync/backlogsync/internal/backlog"
	errwrap "github.com/backlogsync/backlogsync/internal/errors"
	"github.com/backlogsync/backlogsync/internal/output"
)

var (
	wikiKeyword      string
	wikiName         string
	wikiContent      string
	wikiContentStdin bool
	wikiMailNotify   bool
)

var wikiCmd = &cobra.Command{
	Use:   "wiki",
	Short: "Read and write wiki pages",
}

var wikiListCmd = &cobra.Command{
	Use:   "list",
	Short: "List wiki pages of the project",
	Args:  cobra.NoArgs,
	RunE:  runWikiList,
}

var wikiGetCmd = &cobra.Command{
	Use:   "get <WIKI-ID>",
	Short: "Show a wiki page",
	Args:  cobra.ExactArgs(1),
	RunE:  runWikiGet,
}

var wikiCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Count wiki pages of the project",
	Args:  cobra.NoArgs,
	RunE:  runWikiCount,
}

var wikiCreateCmd = &cobra.Command{
	Use:     "create",
	Short:   "Create a wiki page",
	Example: "  backlogsync wiki create --name Runbook --content-stdin < runbook.md",
	Args:    cobra.NoArgs,
	RunE:    runWikiCreate,
}

var wikiUpdateCmd = &cobra.Command{
	Use:   "update <WIKI-ID>",
	Short: "Rename or rewrite a wiki page",
	Args:  cobra.ExactArgs(1),
	RunE:  runWikiUpdate,
}

var wikiDeleteCmd = &cobra.Command{
	Use:   "delete <WIKI-ID>",
	Short: "Delete a wiki page",
	Args:  cobra.ExactArgs(1),
	RunE:  runWikiDelete,
}

func init() {
	rootCmd.AddCommand(wikiCmd)
	wikiCmd.AddCommand(wikiListCmd, wikiGetCmd, wikiCountCmd, wikiCreateCmd, wikiUpdateCmd, wikiDeleteCmd)

	wikiListCmd.Flags().StringVar(&wikiKeyword, "keyword", "", "Filter pages by keyword")
	for _, c := range []*cobra.Command{wikiCreateCmd, wikiUpdateCmd} {
		c.Flags().StringVar(&wikiName, "name", "", "Page name")
		c.Flags().StringVar(&wikiContent, "content", "", "Page content")
		c.Flags().BoolVar(&wikiContentStdin, "content-stdin", false, "Read page content from stdin")
	}
	for _, c := range []*cobra.Command{wikiCreateCmd, wikiUpdateCmd, wikiDeleteCmd} {
		c.Flags().BoolVar(&wikiMailNotify, "mail-notify", false, "Notify project members by mail")
	}
}

func parseWikiID(value string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || id <= 0 {
		return 0, errwrap.NewInvalidInputError(fmt.Sprintf("invalid wiki id %q", value))
	}
	return id, nil
}

func wikiURL(client *backlog.Client, id int) string {
	return fmt.Sprintf("%s/alias/wiki/%d", strings.TrimSuffix(client.BaseURL(), "/api/v2"), id)
}

func runWikiList(cmd *cobra.Command, _ []string) error {
	sess, err := connect(cmd)
	if err != nil {
		return err
	}
	defer sess.close()

	pages, err := sess.client.ListWikiPages(cmd.Context(), sess.cfg.ProjectKey, wikiKeyword)
	if err != nil {
		return apiError(cmd.Context(), err)
	}
	if pages == nil {
		pages = []backlog.WikiPage{}
	}
	return writeOutput(cmd, pages, wikiTable(pages))
}

func runWikiGet(cmd *cobra.Command, args []string) error {
	id, err := parseWikiID(args[0])
	if err != nil {
		return err
	}
	sess, err := connect(cmd)
	if err != nil {
		return err
	}
	defer sess.close()

	page, err := sess.client.GetWikiPage(cmd.Context(), id)
	if err != nil {
		return apiError(cmd.Context(), err)
	}
	return writeOutput(cmd, page, wikiTable([]backlog.WikiPage{*page}))
}

func runWikiCount(cmd *cobra.Command, _ []string) error {
	sess, err := connect(cmd)
	if err != nil {
		return err
	}
	defer sess.close()

	count, err := sess.client.CountWikiPages(cmd.Context(), sess.cfg.ProjectKey)
	if err != nil {
		return apiError(cmd.Context(), err)
	}
	result := issueCount{Count: count}
	return writeOutput(cmd, result, func() table.Writer {
		t := output.NewTable("Count")
		t.AppendRow(table.Row{result.Count})
		return t
	})
}

func runWikiCreate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	content, _, err := readContent(cmd, wikiContent, wikiContentStdin)
	if err != nil {
		return err
	}
	if strings.TrimSpace(wikiName) == "" {
		return errwrap.NewInvalidInputError("--name is required")
	}
	sess, err := connect(cmd)
	if err != nil {
		return err
	}
	defer sess.close()
	if err := sess.cfg.RequireWriteMode("wiki create"); err != nil {
		return err
	}

	project, err := sess.project(ctx)
	if err != nil {
		return apiError(ctx, err)
	}
	page, err := sess.client.AddWikiPage(ctx, backlog.AddWikiPageParams{
		ProjectID:  project.ID,
		Name:       wikiName,
		Content:    content,
		MailNotify: optBool(cmd, "mail-notify", wikiMailNotify),
	})
	if err != nil {
		return apiError(ctx, err)
	}
	if structuredOutput(cmd) {
		return writeOutput(cmd, page, nil)
	}
	printf(cmd.OutOrStdout(), "Created wiki page: %s (id: %d)\nURL: %s\n", page.Name, page.ID, wikiURL(sess.client, page.ID))
	return nil
}

func runWikiUpdate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id, err := parseWikiID(args[0])
	if err != nil {
		return err
	}
	content, hasContent, err := readContent(cmd, wikiContent, wikiContentStdin)
	if err != nil {
		return err
	}
	params := backlog.UpdateWikiPageParams{
		Name:       optString(cmd, "name", wikiName),
		MailNotify: optBool(cmd, "mail-notify", wikiMailNotify),
	}
	if hasContent {
		params.Content = backlog.Ptr(content)
	}
	if params.Name == nil && params.Content == nil {
		return errwrap.NewInvalidInputError("nothing to update: pass --name, --content or --content-stdin")
	}

	sess, err := connect(cmd)
	if err != nil {
		return err
	}
	defer sess.close()
	if err := sess.cfg.RequireWriteMode("wiki update"); err != nil {
		return err
	}

	page, err := sess.client.UpdateWikiPage(ctx, id, params)
	if err != nil {
		return apiError(ctx, err)
	}
	if structuredOutput(cmd) {
		return writeOutput(cmd, page, nil)
	}
	printf(cmd.OutOrStdout(), "Updated wiki page: %s (id: %d)\nURL: %s\n", page.Name, page.ID, wikiURL(sess.client, page.ID))
	return nil
}

func runWikiDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id, err := parseWikiID(args[0])
	if err != nil {
		return err
	}
	sess, err := connect(cmd)
	if err != nil {
		return err
	}
	defer sess.close()
	if err := sess.cfg.RequireWriteMode("wiki delete"); err != nil {
		return err
	}

	page, err := sess.client.DeleteWikiPage(ctx, id, optBool(cmd, "mail-notify", wikiMailNotify))
	if err != nil {
		return apiError(ctx, err)
	}
	if structuredOutput(cmd) {
		return writeOutput(cmd, page, nil)
	}
	printf(cmd.OutOrStdout(), "Deleted wiki page: %s (id: %d)\n", page.Name, page.ID)
	return nil
}

func wikiTable(pages []backlog.WikiPage) output.TableFunc {
	return func() table.Writer {
		t := output.NewTable("ID", "Name", "Tags", "Updated By", "Updated")
		for _, page := range pages {
			tags := make([]string, len(page.Tags))
			for i, tag := range page.Tags {
				tags[i] = tag.Name
			}
			t.AppendRow(table.Row{
				page.ID,
				page.Name,
				output.Dash(strings.Join(tags, ", ")),
				output.Dash(page.UpdatedUser.Name),
				output.Dash(firstN(page.Updated, 10)),
			})
		}
		return t
	}
}
