package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/backlogsync/backlogsync/internal/backlog"
	"github.com/backlogsync/backlogsync/internal/core/store"
	errwrap "github.com/backlogsync/backlogsync/internal/errors"
	"github.com/backlogsync/backlogsync/internal/output"
)

var (
	commentContent      string
	commentContentStdin bool
	commentNotify       []string
)

var commentCmd = &cobra.Command{
	Use:   "comment",
	Short: "Read and write issue comments",
}

var commentListCmd = &cobra.Command{
	Use:   "list <ISSUE-KEY>",
	Short: "List every comment of an issue, oldest first",
	Args:  cobra.ExactArgs(1),
	RunE:  runCommentList,
}

var commentGetCmd = &cobra.Command{
	Use:   "get <ISSUE-KEY> <COMMENT-ID>",
	Short: "Show a comment",
	Args:  cobra.ExactArgs(2),
	RunE:  runCommentGet,
}

var commentAddCmd = &cobra.Command{
	Use:     "add <ISSUE-KEY>",
	Short:   "Add a comment to an issue",
	Example: "  backlogsync comment add PROJ-12 --content \"Fixed in #42\" --notify alice,bob",
	Args:    cobra.ExactArgs(1),
	RunE:    runCommentAdd,
}

var commentUpdateCmd = &cobra.Command{
	Use:   "update <ISSUE-KEY> <COMMENT-ID>",
	Short: "Replace the content of a comment",
	Args:  cobra.ExactArgs(2),
	RunE:  runCommentUpdate,
}

var commentDeleteCmd = &cobra.Command{
	Use:   "delete <ISSUE-KEY> <COMMENT-ID>",
	Short: "Delete a comment",
	Args:  cobra.ExactArgs(2),
	RunE:  runCommentDelete,
}

func init() {
	rootCmd.AddCommand(commentCmd)
	commentCmd.AddCommand(commentListCmd, commentGetCmd, commentAddCmd, commentUpdateCmd, commentDeleteCmd)

	for _, c := range []*cobra.Command{commentAddCmd, commentUpdateCmd} {
		c.Flags().StringVar(&commentContent, "content", "", "Comment text")
		c.Flags().BoolVar(&commentContentStdin, "content-stdin", false, "Read comment text from stdin")
	}
	commentAddCmd.Flags().StringSliceVar(&commentNotify, "notify", nil, "Users to notify (names, user ids or numeric ids)")
}

func parseCommentID(value string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || id <= 0 {
		return 0, errwrap.NewInvalidInputError(fmt.Sprintf("invalid comment id %q", value))
	}
	return id, nil
}

func commentText(cmd *cobra.Command) (string, error) {
	content, ok, err := readContent(cmd, commentContent, commentContentStdin)
	if err != nil {
		return "", err
	}
	if !ok || strings.TrimSpace(content) == "" {
		return "", errwrap.NewInvalidInputError("comment content is required (--content or --content-stdin)")
	}
	return content, nil
}

func runCommentList(cmd *cobra.Command, args []string) error {
	sess, err := connect(cmd)
	if err != nil {
		return err
	}
	defer sess.close()

	comments, err := sess.client.ListComments(cmd.Context(), args[0])
	if err != nil {
		return apiError(cmd.Context(), err)
	}
	if comments == nil {
		comments = []backlog.Comment{}
	}
	return writeOutput(cmd, comments, commentTable(comments))
}

func runCommentGet(cmd *cobra.Command, args []string) error {
	id, err := parseCommentID(args[1])
	if err != nil {
		return err
	}
	sess, err := connect(cmd)
	if err != nil {
		return err
	}
	defer sess.close()

	comment, err := sess.client.GetComment(cmd.Context(), args[0], id)
	if err != nil {
		return apiError(cmd.Context(), err)
	}
	return writeOutput(cmd, comment, commentTable([]backlog.Comment{*comment}))
}

func runCommentAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	content, err := commentText(cmd)
	if err != nil {
		return err
	}
	sess, err := connect(cmd)
	if err != nil {
		return err
	}
	defer sess.close()
	if err := sess.cfg.RequireWriteMode("comment add"); err != nil {
		return err
	}

	notify, err := sess.resolveIDs(ctx, store.KindUsers, commentNotify)
	if err != nil {
		return apiError(ctx, err)
	}
	comment, err := sess.client.AddComment(ctx, args[0], content, notify)
	if err != nil {
		return apiError(ctx, err)
	}
	if structuredOutput(cmd) {
		return writeOutput(cmd, comment, nil)
	}
	printf(cmd.OutOrStdout(), "Comment added to %s (id: %d)\nURL: %s#comment-%d\n",
		args[0], comment.ID, sess.client.IssueURL(args[0]), comment.ID)
	return nil
}

func runCommentUpdate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id, err := parseCommentID(args[1])
	if err != nil {
		return err
	}
	content, err := commentText(cmd)
	if err != nil {
		return err
	}
	sess, err := connect(cmd)
	if err != nil {
		return err
	}
	defer sess.close()
	if err := sess.cfg.RequireWriteMode("comment update"); err != nil {
		return err
	}

	comment, err := sess.client.UpdateComment(ctx, args[0], id, content)
	if err != nil {
		return apiError(ctx, err)
	}
	if structuredOutput(cmd) {
		return writeOutput(cmd, comment, nil)
	}
	printf(cmd.OutOrStdout(), "Comment %d updated on %s\nURL: %s#comment-%d\n",
		comment.ID, args[0], sess.client.IssueURL(args[0]), comment.ID)
	return nil
}

func runCommentDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id, err := parseCommentID(args[1])
	if err != nil {
		return err
	}
	sess, err := connect(cmd)
	if err != nil {
		return err
	}
	defer sess.close()
	if err := sess.cfg.RequireWriteMode("comment delete"); err != nil {
		return err
	}

	comment, err := sess.client.DeleteComment(ctx, args[0], id)
	if err != nil {
		return apiError(ctx, err)
	}
	if structuredOutput(cmd) {
		return writeOutput(cmd, comment, nil)
	}
	printf(cmd.OutOrStdout(), "Comment %d deleted from %s\n", comment.ID, args[0])
	return nil
}

func commentTable(comments []backlog.Comment) output.TableFunc {
	return func() table.Writer {
		t := output.NewTable("ID", "Author", "Created", "Content")
		for _, comment := range comments {
			content := ""
			if comment.Content != nil {
				content = truncate(strings.ReplaceAll(*comment.Content, "\n", " "), 60)
			}
			t.AppendRow(table.Row{comment.ID, comment.CreatedUser.Name, localTime(comment.Created), output.Dash(content)})
		}
		return t
	}
}

func localTime(value string) string {
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return value
	}
	return parsed.In(time.Local).Format("2006-01-02 15:04")
}

func truncate(value string, n int) string {
	runes := []rune(value)
	if len(runes) <= n {
		return value
	}
	return string(runes[:n-1]) + "…"
}
