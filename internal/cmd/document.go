package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/backlogsync/backlogsync/internal/backlog"
	errwrap "github.com/backlogsync/backlogsync/internal/errors"
	"github.com/backlogsync/backlogsync/internal/observability"
	"github.com/backlogsync/backlogsync/internal/output"
)

var (
	documentKeyword      string
	documentCount        int
	documentOffset       int
	documentSort         string
	documentOrder        string
	documentDest         string
	documentTitle        string
	documentContent      string
	documentContentStdin bool
	documentEmoji        string
	documentParentID     string
	documentAddLast      bool
)

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Read and write project documents",
}

var documentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents of the project",
	Args:  cobra.NoArgs,
	RunE:  runDocumentList,
}

var documentGetCmd = &cobra.Command{
	Use:   "get <DOCUMENT-ID>",
	Short: "Show a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentGet,
}

var documentTreeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Show the document tree, including trash",
	Args:  cobra.NoArgs,
	RunE:  runDocumentTree,
}

var documentDownloadCmd = &cobra.Command{
	Use:   "download <DOCUMENT-ID> <ATTACHMENT-ID>",
	Short: "Download a document attachment",
	Long: `Download a document attachment. The file is written to --dest, or to the
attachment's own name in the current directory.`,
	Args: cobra.ExactArgs(2),
	RunE: runDocumentDownload,
}

var documentCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a document",
	Args:  cobra.NoArgs,
	RunE:  runDocumentCreate,
}

var documentDeleteCmd = &cobra.Command{
	Use:   "delete <DOCUMENT-ID>",
	Short: "Delete a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentDelete,
}

func init() {
	rootCmd.AddCommand(documentCmd)
	documentCmd.AddCommand(documentListCmd, documentGetCmd, documentTreeCmd, documentDownloadCmd, documentCreateCmd, documentDeleteCmd)

	documentListCmd.Flags().StringVar(&documentKeyword, "keyword", "", "Filter documents by keyword")
	documentListCmd.Flags().IntVar(&documentCount, "count", 20, "Page size (1-100)")
	documentListCmd.Flags().IntVar(&documentOffset, "offset", 0, "Page offset")
	documentListCmd.Flags().StringVar(&documentSort, "sort", "", "Sort key: created|updated")
	documentListCmd.Flags().StringVar(&documentOrder, "order", "", "Sort order: asc|desc")

	documentDownloadCmd.Flags().StringVar(&documentDest, "dest", "", "Destination file path")

	documentCreateCmd.Flags().StringVar(&documentTitle, "title", "", "Document title")
	documentCreateCmd.Flags().StringVar(&documentContent, "content", "", "Document content (markdown)")
	documentCreateCmd.Flags().BoolVar(&documentContentStdin, "content-stdin", false, "Read document content from stdin")
	documentCreateCmd.Flags().StringVar(&documentEmoji, "emoji", "", "Document emoji")
	documentCreateCmd.Flags().StringVar(&documentParentID, "parent-id", "", "Parent document id")
	documentCreateCmd.Flags().BoolVar(&documentAddLast, "add-last", false, "Append after existing siblings")
	_ = documentCreateCmd.MarkFlagRequired("title")
}

func runDocumentList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if documentCount < 1 || documentCount > backlog.PageSize {
		return errwrap.NewInvalidInputError("--count must be between 1 and 100")
	}
	if documentOffset < 0 {
		return errwrap.NewInvalidInputError("--offset must not be negative")
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
	docs, err := sess.client.ListDocuments(ctx, project.ID, backlog.DocumentListOptions{
		Keyword: documentKeyword,
		Sort:    documentSort,
		Order:   documentOrder,
		Offset:  documentOffset,
		Count:   backlog.Ptr(documentCount),
	})
	if err != nil {
		return apiError(ctx, err)
	}
	if docs == nil {
		docs = []backlog.Document{}
	}
	return writeOutput(cmd, docs, documentTable(docs))
}

func runDocumentGet(cmd *cobra.Command, args []string) error {
	sess, err := connect(cmd)
	if err != nil {
		return err
	}
	defer sess.close()

	doc, err := sess.client.GetDocument(cmd.Context(), args[0])
	if err != nil {
		return apiError(cmd.Context(), err)
	}
	return writeOutput(cmd, doc, documentTable([]backlog.Document{*doc}))
}

func runDocumentTree(cmd *cobra.Command, _ []string) error {
	sess, err := connect(cmd)
	if err != nil {
		return err
	}
	defer sess.close()

	tree, err := sess.client.GetDocumentTree(cmd.Context(), sess.cfg.ProjectKey)
	if err != nil {
		return apiError(cmd.Context(), err)
	}
	if format, _ := output.ParseFormat(outputFormat); format == output.FormatTable {
		sink, err := openSink(cmd.OutOrStdout(), outFile)
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()
		renderDocumentTree(sink.writer, tree)
		return nil
	}
	return writeOutput(cmd, tree, nil)
}

func renderDocumentTree(w io.Writer, tree *backlog.DocumentTree) {
	printf(w, "=== Active Documents ===\n")
	renderDocumentNodes(w, tree.ActiveTree.Children, "")
	printf(w, "\n=== Trash ===\n")
	renderDocumentNodes(w, tree.TrashTree.Children, "")
}

func renderDocumentNodes(w io.Writer, nodes []backlog.DocumentNode, indent string) {
	for _, node := range nodes {
		emoji := ""
		if node.Emoji != nil && *node.Emoji != "" {
			emoji = *node.Emoji + " "
		}
		printf(w, "%s%s%s (id: %s)\n", indent, emoji, node.Name, node.ID)
		renderDocumentNodes(w, node.Children, indent+"  ")
	}
}

func runDocumentDownload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	attachmentID, err := strconv.Atoi(strings.TrimSpace(args[1]))
	if err != nil || attachmentID <= 0 {
		return errwrap.NewInvalidInputError(fmt.Sprintf("invalid attachment id %q: must be a positive integer", args[1]))
	}
	sess, err := connect(cmd)
	if err != nil {
		return err
	}
	defer sess.close()

	dest := strings.TrimSpace(documentDest)
	if dest == "" {
		doc, err := sess.client.GetDocument(ctx, args[0])
		if err != nil {
			return apiError(ctx, err)
		}
		dest = fmt.Sprintf("attachment-%d", attachmentID)
		for _, att := range doc.Attachments {
			if att.ID == attachmentID {
				dest = sanitizeFilename(att.Name)
				break
			}
		}
	}

	data, err := sess.client.DownloadDocumentAttachment(ctx, args[0], attachmentID)
	if err != nil {
		return apiError(ctx, err)
	}
	if dir := filepath.Dir(dest); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}

	observability.CLILogger.Debug("Attachment downloaded", zap.String("path", dest), zap.Int("bytes", len(data)))
	printf(cmd.OutOrStdout(), "Downloaded attachment %d to %s\n", attachmentID, dest)
	return nil
}

func runDocumentCreate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	content, hasContent, err := readContent(cmd, documentContent, documentContentStdin)
	if err != nil {
		return err
	}
	if !hasContent {
		return errwrap.NewInvalidInputError("--content or --content-stdin is required")
	}
	sess, err := connect(cmd)
	if err != nil {
		return err
	}
	defer sess.close()
	if err := sess.cfg.RequireWriteMode("document create"); err != nil {
		return err
	}

	project, err := sess.project(ctx)
	if err != nil {
		return apiError(ctx, err)
	}
	doc, err := sess.client.AddDocument(ctx, backlog.AddDocumentParams{
		ProjectID: project.ID,
		Title:     backlog.Ptr(documentTitle),
		Content:   backlog.Ptr(content),
		Emoji:     optString(cmd, "emoji", documentEmoji),
		ParentID:  optString(cmd, "parent-id", documentParentID),
		AddLast:   optBool(cmd, "add-last", documentAddLast),
	})
	if err != nil {
		return apiError(ctx, err)
	}
	if structuredOutput(cmd) {
		return writeOutput(cmd, doc, nil)
	}
	printf(cmd.OutOrStdout(), "Created document: %s (id: %s)\n", doc.Title, doc.ID)
	return nil
}

func runDocumentDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	sess, err := connect(cmd)
	if err != nil {
		return err
	}
	defer sess.close()
	if err := sess.cfg.RequireWriteMode("document delete"); err != nil {
		return err
	}

	doc, err := sess.client.DeleteDocument(ctx, args[0])
	if err != nil {
		return apiError(ctx, err)
	}
	if structuredOutput(cmd) {
		return writeOutput(cmd, doc, nil)
	}
	printf(cmd.OutOrStdout(), "Deleted document: %s (id: %s)\n", doc.Title, doc.ID)
	return nil
}

func documentTable(docs []backlog.Document) output.TableFunc {
	return func() table.Writer {
		t := output.NewTable("ID", "Title", "Attachments", "Updated By", "Updated")
		for _, doc := range docs {
			t.AppendRow(table.Row{
				doc.ID,
				doc.Title,
				len(doc.Attachments),
				output.Dash(doc.UpdatedUser.Name),
				output.Dash(firstN(doc.Updated, 10)),
			})
		}
		return t
	}
}
