// Package engine mirrors Backlog issues into a local markdown tree.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/backlogsync/backlogsync/internal/backlog"
	"github.com/backlogsync/backlogsync/internal/output"
)

// DefaultParallel bounds concurrent issue syncs when Syncer.Parallel is unset.
const DefaultParallel = 5

// closedStatusNames are treated as done when syncing open issues only.
var closedStatusNames = map[string]bool{
	"Closed": true,
	"完了":     true,
}

// Source is the subset of the Backlog client the syncer needs.
type Source interface {
	GetProject(ctx context.Context, projectIDOrKey string) (*backlog.Project, error)
	GetStatuses(ctx context.Context, projectIDOrKey string) ([]backlog.Status, error)
	GetIssue(ctx context.Context, issueKey string) (*backlog.Issue, error)
	ListAllIssues(ctx context.Context, projectID int, filter backlog.IssueFilter) ([]backlog.Issue, error)
	ListAttachments(ctx context.Context, issueKey string) ([]backlog.Attachment, error)
	ListComments(ctx context.Context, issueKey string) ([]backlog.Comment, error)
	DownloadAttachment(ctx context.Context, issueKey string, attachmentID int) ([]byte, error)
	IssueURL(issueKey string) string
}

// Syncer writes <Dir>/<ISSUE-KEY>/{issue.md,comments.md,attachments/}.
type Syncer struct {
	Source   Source
	Dir      string
	Parallel int
	Location *time.Location
	Clock    func() time.Time
	Out      io.Writer
	Logger   backlog.Logger

	outMu sync.Mutex
}

// SyncRequest selects what to sync.
type SyncRequest struct {
	ProjectKey string
	// IssueKey syncs a single issue and ignores the other selectors.
	IssueKey string
	// All includes closed issues.
	All    bool
	Force  bool
	DryRun bool
	Filter backlog.IssueFilter
}

// SyncReport summarizes a run.
type SyncReport struct {
	Total       int           `json:"total"`
	Synced      int           `json:"synced"`
	Skipped     int           `json:"skipped"`
	Failed      int           `json:"failed"`
	Attachments int           `json:"attachments"`
	Warnings    int           `json:"warnings"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
}

// IssueError records why one issue failed.
type IssueError struct {
	IssueKey string
	Err      error
}

func (e *IssueError) Error() string {
	return fmt.Sprintf("%s: %v", e.IssueKey, e.Err)
}

func (e *IssueError) Unwrap() error {
	return e.Err
}

type issueOutcome int

const (
	outcomeSynced issueOutcome = iota
	outcomeSkipped
)

// Sync mirrors the selected issues. Individual issue failures do not stop
// the run; they are counted and returned joined.
func (s *Syncer) Sync(ctx context.Context, req SyncRequest) (*SyncReport, error) {
	if s == nil || s.Source == nil {
		return nil, errors.New("syncer has no source")
	}
	if strings.TrimSpace(s.Dir) == "" {
		return nil, errors.New("sync directory is required")
	}

	report := &SyncReport{StartedAt: s.now()}

	issues, err := s.selectIssues(ctx, req)
	if err != nil {
		return nil, err
	}
	report.Total = len(issues)

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create sync directory: %w", err)
	}
	if !req.DryRun {
		if err := ensureGitignore(s.Dir); err != nil {
			return nil, err
		}
	}

	parallel := s.Parallel
	if parallel <= 0 {
		parallel = DefaultParallel
	}

	var (
		mu       sync.Mutex
		failures []error
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(parallel)

	for _, issue := range issues {
		eg.Go(func() error {
			outcome, attachments, warnings, err := s.syncIssue(egCtx, issue, req)

			mu.Lock()
			defer mu.Unlock()
			report.Warnings += warnings
			switch {
			case err != nil:
				if egCtx.Err() != nil {
					return egCtx.Err()
				}
				report.Failed++
				failures = append(failures, &IssueError{IssueKey: issue.IssueKey, Err: err})
				s.printf("  [FAIL] %s - %s: %v\n", issue.IssueKey, issue.Summary, err)
			case outcome == outcomeSkipped:
				report.Skipped++
			default:
				report.Synced++
				report.Attachments += attachments
			}
			return nil
		})
	}

	waitErr := eg.Wait()
	report.Duration = s.now().Sub(report.StartedAt)
	if waitErr != nil {
		return report, waitErr
	}
	return report, errors.Join(failures...)
}

func (s *Syncer) selectIssues(ctx context.Context, req SyncRequest) ([]backlog.Issue, error) {
	if key := strings.TrimSpace(req.IssueKey); key != "" {
		issue, err := s.Source.GetIssue(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("get issue %s: %w", key, err)
		}
		return []backlog.Issue{*issue}, nil
	}

	projectKey := strings.TrimSpace(req.ProjectKey)
	if projectKey == "" {
		return nil, errors.New("project key is required")
	}
	project, err := s.Source.GetProject(ctx, projectKey)
	if err != nil {
		return nil, fmt.Errorf("get project %s: %w", projectKey, err)
	}

	filter := req.Filter
	if !req.All && len(filter.StatusIDs) == 0 {
		statuses, err := s.Source.GetStatuses(ctx, projectKey)
		if err != nil {
			return nil, fmt.Errorf("get statuses: %w", err)
		}
		filter.StatusIDs = OpenStatusIDs(statuses)
	}

	issues, err := s.Source.ListAllIssues(ctx, project.ID, filter)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	if !req.All {
		issues = dropClosed(issues)
	}

	s.logger().Debug("Selected issues for sync",
		zap.String("project", projectKey),
		zap.Int("count", len(issues)),
		zap.Bool("all", req.All),
	)
	return issues, nil
}

// OpenStatusIDs returns the ids of statuses not named Closed or 完了.
func OpenStatusIDs(statuses []backlog.Status) []int {
	ids := make([]int, 0, len(statuses))
	for _, status := range statuses {
		if !closedStatusNames[status.Name] {
			ids = append(ids, status.ID)
		}
	}
	return ids
}

func dropClosed(issues []backlog.Issue) []backlog.Issue {
	open := issues[:0]
	for _, issue := range issues {
		if !closedStatusNames[issue.Status.Name] {
			open = append(open, issue)
		}
	}
	return open
}

func (s *Syncer) syncIssue(ctx context.Context, issue backlog.Issue, req SyncRequest) (issueOutcome, int, int, error) {
	issueDir := filepath.Join(s.Dir, issue.IssueKey)
	issuePath := filepath.Join(issueDir, "issue.md")

	if !req.Force && upToDate(issuePath, issue.Updated) {
		s.printf("  [SKIP] %s - %s (unchanged)\n", issue.IssueKey, issue.Summary)
		return outcomeSkipped, 0, 0, nil
	}

	if req.DryRun {
		s.printf("  [SYNC] %s - %s\n", issue.IssueKey, issue.Summary)
		return outcomeSynced, 0, 0, nil
	}

	attachments, err := s.Source.ListAttachments(ctx, issue.IssueKey)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("list attachments: %w", err)
	}
	comments, err := s.Source.ListComments(ctx, issue.IssueKey)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("list comments: %w", err)
	}

	if err := os.MkdirAll(issueDir, 0o755); err != nil {
		return 0, 0, 0, fmt.Errorf("create issue directory: %w", err)
	}

	warnings := 0
	downloaded := 0
	if len(attachments) > 0 {
		attachDir := filepath.Join(issueDir, "attachments")
		if err := os.MkdirAll(attachDir, 0o755); err != nil {
			return 0, 0, 0, fmt.Errorf("create attachments directory: %w", err)
		}
		for _, att := range attachments {
			ok, err := s.fetchAttachment(ctx, issue.IssueKey, attachDir, att, req.Force)
			if err != nil {
				if ctx.Err() != nil {
					return 0, 0, 0, ctx.Err()
				}
				warnings++
				s.printf("  [WARN] Failed to download attachment: %s (%s)\n", att.Name, issue.IssueKey)
				s.logger().Warn("Attachment download failed",
					zap.String("issue", issue.IssueKey),
					zap.Int("attachment_id", att.ID),
					zap.Error(err),
				)
				continue
			}
			if ok {
				downloaded++
			}
		}
	}

	// issue.md goes last: its stamp marks the directory as complete.
	if doc, ok := output.RenderComments(issue, comments, s.location()); ok {
		if err := os.WriteFile(filepath.Join(issueDir, "comments.md"), []byte(doc), 0o644); err != nil {
			return 0, 0, warnings, fmt.Errorf("write comments.md: %w", err)
		}
	}
	doc := output.RenderIssue(issue, s.Source.IssueURL(issue.IssueKey), attachments)
	if err := os.WriteFile(issuePath, []byte(doc), 0o644); err != nil {
		return 0, 0, warnings, fmt.Errorf("write issue.md: %w", err)
	}

	suffix := ""
	if len(attachments) > 0 {
		suffix = fmt.Sprintf(" (%d attachment(s))", len(attachments))
	}
	s.printf("  [OK] %s - %s%s\n", issue.IssueKey, issue.Summary, suffix)
	return outcomeSynced, downloaded, warnings, nil
}

// fetchAttachment downloads att unless it is already present. It reports
// whether a file was written.
func (s *Syncer) fetchAttachment(ctx context.Context, issueKey, dir string, att backlog.Attachment, force bool) (bool, error) {
	name := filepath.Base(filepath.Clean("/" + att.Name))
	if name == "/" || name == "." {
		name = fmt.Sprintf("attachment-%d", att.ID)
	}
	path := filepath.Join(dir, name)
	if !force {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		}
	}

	data, err := s.Source.DownloadAttachment(ctx, issueKey, att.ID)
	if err != nil {
		return false, err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}

// upToDate reports whether issue.md exists and records updated.
func upToDate(path, updated string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	stamp, ok := output.ParseUpdatedStamp(string(data))
	return ok && stamp == updated
}

func ensureGitignore(dir string) error {
	path := filepath.Join(dir, ".gitignore")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.WriteFile(path, []byte("*\n!.gitignore\n"), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (s *Syncer) printf(format string, args ...any) {
	if s.Out == nil {
		return
	}
	s.outMu.Lock()
	defer s.outMu.Unlock()
	_, _ = fmt.Fprintf(s.Out, format, args...)
}

func (s *Syncer) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now().UTC()
}

func (s *Syncer) location() *time.Location {
	if s.Location != nil {
		return s.Location
	}
	return time.Local
}

func (s *Syncer) logger() backlog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return zap.NewNop()
}
