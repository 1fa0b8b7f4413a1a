package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/backlogsync/backlogsync/internal/backlog"
)

type stubSource struct {
	mu          sync.Mutex
	issues      []backlog.Issue
	statuses    []backlog.Status
	attachments map[string][]backlog.Attachment
	comments    map[string][]backlog.Comment
	failIssue   string
	failAttach  int
	downloads   []string
	filters     []backlog.IssueFilter
}

func (s *stubSource) GetProject(_ context.Context, key string) (*backlog.Project, error) {
	return &backlog.Project{ID: 42, ProjectKey: key, Name: "Project"}, nil
}

func (s *stubSource) GetStatuses(context.Context, string) ([]backlog.Status, error) {
	return s.statuses, nil
}

func (s *stubSource) GetIssue(_ context.Context, key string) (*backlog.Issue, error) {
	for _, issue := range s.issues {
		if issue.IssueKey == key {
			return &issue, nil
		}
	}
	return nil, &backlog.Error{Message: "No issue", StatusCode: 404}
}

func (s *stubSource) ListAllIssues(_ context.Context, projectID int, filter backlog.IssueFilter) ([]backlog.Issue, error) {
	s.mu.Lock()
	s.filters = append(s.filters, filter)
	s.mu.Unlock()
	out := make([]backlog.Issue, len(s.issues))
	copy(out, s.issues)
	return out, nil
}

func (s *stubSource) ListAttachments(_ context.Context, key string) ([]backlog.Attachment, error) {
	if key == s.failIssue {
		return nil, errors.New("boom")
	}
	return s.attachments[key], nil
}

func (s *stubSource) ListComments(_ context.Context, key string) ([]backlog.Comment, error) {
	return s.comments[key], nil
}

func (s *stubSource) DownloadAttachment(_ context.Context, key string, id int) ([]byte, error) {
	if id == s.failAttach {
		return nil, &backlog.Error{Message: "Failed to download attachment"}
	}
	s.mu.Lock()
	s.downloads = append(s.downloads, fmt.Sprintf("%s/%d", key, id))
	s.mu.Unlock()
	return []byte(fmt.Sprintf("data-%d", id)), nil
}

func (s *stubSource) IssueURL(key string) string {
	return "https://acme.backlog.com/view/" + key
}

func issue(key, status, updated string) backlog.Issue {
	return backlog.Issue{
		IssueKey:    key,
		Summary:     "Summary of " + key,
		Status:      backlog.Status{Name: status},
		IssueType:   backlog.IssueType{Name: "Task"},
		Priority:    backlog.Priority{Name: "Normal"},
		CreatedUser: backlog.User{Name: "Taro"},
		Created:     "2025-01-01T00:00:00Z",
		Updated:     updated,
	}
}

func newSyncer(t *testing.T, source Source) (*Syncer, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	return &Syncer{
		Source:   source,
		Dir:      filepath.Join(t.TempDir(), "docs", "backlog"),
		Parallel: 3,
		Location: time.UTC,
		Out:      &out,
	}, &out
}

func TestSyncWritesIssueTree(t *testing.T) {
	content := "Looks good"
	source := &stubSource{
		statuses: []backlog.Status{{ID: 1, Name: "Open"}, {ID: 2, Name: "In Progress"}, {ID: 4, Name: "Closed"}},
		issues: []backlog.Issue{
			issue("PROJ-1", "Open", "2025-01-02T00:00:00Z"),
			issue("PROJ-2", "In Progress", "2025-01-03T00:00:00Z"),
		},
		attachments: map[string][]backlog.Attachment{
			"PROJ-1": {{ID: 10, Name: "shot.png"}, {ID: 11, Name: "../notes.txt"}},
		},
		comments: map[string][]backlog.Comment{
			"PROJ-1": {{ID: 1, Content: &content, CreatedUser: backlog.User{Name: "Hanako"}, Created: "2025-01-02T03:04:00Z"}},
		},
	}
	syncer, out := newSyncer(t, source)

	report, err := syncer.Sync(context.Background(), SyncRequest{ProjectKey: "PROJ"})
	require.NoError(t, err)
	require.Equal(t, 2, report.Total)
	require.Equal(t, 2, report.Synced)
	require.Equal(t, 2, report.Attachments)

	require.Len(t, source.filters, 1)
	require.Equal(t, []int{1, 2}, source.filters[0].StatusIDs)

	doc, err := os.ReadFile(filepath.Join(syncer.Dir, "PROJ-1", "issue.md"))
	require.NoError(t, err)
	require.Contains(t, string(doc), "# [PROJ-1] Summary of PROJ-1")
	require.Contains(t, string(doc), "https://acme.backlog.com/view/PROJ-1")
	require.Contains(t, string(doc), "![shot.png](attachments/shot.png)")
	require.True(t, strings.HasSuffix(string(doc), "<!-- updated: 2025-01-02T00:00:00Z -->\n"))

	comments, err := os.ReadFile(filepath.Join(syncer.Dir, "PROJ-1", "comments.md"))
	require.NoError(t, err)
	require.Contains(t, string(comments), "## Hanako (2025-01-02 03:04)")

	_, err = os.Stat(filepath.Join(syncer.Dir, "PROJ-2", "comments.md"))
	require.True(t, os.IsNotExist(err))

	data, err := os.ReadFile(filepath.Join(syncer.Dir, "PROJ-1", "attachments", "notes.txt"))
	require.NoError(t, err)
	require.Equal(t, "data-11", string(data))

	ignore, err := os.ReadFile(filepath.Join(syncer.Dir, ".gitignore"))
	require.NoError(t, err)
	require.Equal(t, "*\n!.gitignore\n", string(ignore))

	require.Contains(t, out.String(), "  [OK] PROJ-1 - Summary of PROJ-1 (2 attachment(s))")
	require.Contains(t, out.String(), "  [OK] PROJ-2 - Summary of PROJ-2\n")
}

func TestSyncSkipsUnchangedIssues(t *testing.T) {
	source := &stubSource{
		statuses: []backlog.Status{{ID: 1, Name: "Open"}},
		issues:   []backlog.Issue{issue("PROJ-1", "Open", "2025-01-02T00:00:00Z")},
	}
	syncer, out := newSyncer(t, source)

	_, err := syncer.Sync(context.Background(), SyncRequest{ProjectKey: "PROJ"})
	require.NoError(t, err)

	out.Reset()
	report, err := syncer.Sync(context.Background(), SyncRequest{ProjectKey: "PROJ"})
	require.NoError(t, err)
	require.Equal(t, 1, report.Skipped)
	require.Equal(t, 0, report.Synced)
	require.Contains(t, out.String(), "[SKIP] PROJ-1")

	// A newer updated stamp is synced again.
	source.issues[0].Updated = "2025-02-01T00:00:00Z"
	report, err = syncer.Sync(context.Background(), SyncRequest{ProjectKey: "PROJ"})
	require.NoError(t, err)
	require.Equal(t, 1, report.Synced)

	// Force ignores the stamp.
	report, err = syncer.Sync(context.Background(), SyncRequest{ProjectKey: "PROJ", Force: true})
	require.NoError(t, err)
	require.Equal(t, 1, report.Synced)
}

func TestSyncDryRunWritesNothing(t *testing.T) {
	source := &stubSource{
		statuses: []backlog.Status{{ID: 1, Name: "Open"}},
		issues:   []backlog.Issue{issue("PROJ-1", "Open", "2025-01-02T00:00:00Z")},
	}
	syncer, out := newSyncer(t, source)

	report, err := syncer.Sync(context.Background(), SyncRequest{ProjectKey: "PROJ", DryRun: true})
	require.NoError(t, err)
	require.Equal(t, 1, report.Synced)
	require.Contains(t, out.String(), "  [SYNC] PROJ-1 - Summary of PROJ-1")

	_, err = os.Stat(filepath.Join(syncer.Dir, "PROJ-1"))
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(syncer.Dir, ".gitignore"))
	require.True(t, os.IsNotExist(err))
}

func TestSyncAllIncludesClosed(t *testing.T) {
	source := &stubSource{
		statuses: []backlog.Status{{ID: 1, Name: "Open"}, {ID: 4, Name: "完了"}},
		issues: []backlog.Issue{
			issue("PROJ-1", "Open", "2025-01-02T00:00:00Z"),
			issue("PROJ-2", "完了", "2025-01-02T00:00:00Z"),
		},
	}

	syncer, _ := newSyncer(t, source)
	report, err := syncer.Sync(context.Background(), SyncRequest{ProjectKey: "PROJ"})
	require.NoError(t, err)
	require.Equal(t, 1, report.Total)

	syncer, _ = newSyncer(t, source)
	report, err = syncer.Sync(context.Background(), SyncRequest{ProjectKey: "PROJ", All: true})
	require.NoError(t, err)
	require.Equal(t, 2, report.Total)
	require.Empty(t, source.filters[len(source.filters)-1].StatusIDs)
}

func TestSyncCollectsFailures(t *testing.T) {
	source := &stubSource{
		statuses:  []backlog.Status{{ID: 1, Name: "Open"}},
		failIssue: "PROJ-2",
		issues: []backlog.Issue{
			issue("PROJ-1", "Open", "2025-01-02T00:00:00Z"),
			issue("PROJ-2", "Open", "2025-01-02T00:00:00Z"),
			issue("PROJ-3", "Open", "2025-01-02T00:00:00Z"),
		},
		failAttach: 99,
		attachments: map[string][]backlog.Attachment{
			"PROJ-3": {{ID: 99, Name: "broken.bin"}},
		},
	}
	syncer, out := newSyncer(t, source)

	report, err := syncer.Sync(context.Background(), SyncRequest{ProjectKey: "PROJ"})
	require.Error(t, err)
	var issueErr *IssueError
	require.ErrorAs(t, err, &issueErr)
	require.Equal(t, "PROJ-2", issueErr.IssueKey)

	require.Equal(t, 3, report.Total)
	require.Equal(t, 2, report.Synced)
	require.Equal(t, 1, report.Failed)
	require.Equal(t, 1, report.Warnings)
	require.Contains(t, out.String(), "[WARN] Failed to download attachment: broken.bin")

	// The attachment warning does not fail the issue.
	_, err = os.Stat(filepath.Join(syncer.Dir, "PROJ-3", "issue.md"))
	require.NoError(t, err)
}

func TestSyncAttachmentFailureOnlyWarns(t *testing.T) {
	source := &stubSource{
		statuses: []backlog.Status{{ID: 1, Name: "Open"}},
		issues: []backlog.Issue{
			issue("PROJ-1", "Open", "2025-01-02T00:00:00Z"),
		},
		failAttach: 7,
		attachments: map[string][]backlog.Attachment{
			"PROJ-1": {{ID: 7, Name: "broken.bin"}, {ID: 8, Name: "ok.txt"}},
		},
	}
	syncer, out := newSyncer(t, source)

	report, err := syncer.Sync(context.Background(), SyncRequest{ProjectKey: "PROJ"})
	require.NoError(t, err)
	require.Equal(t, 1, report.Synced)
	require.Equal(t, 0, report.Failed)
	require.Equal(t, 1, report.Warnings)
	require.Equal(t, 1, report.Attachments)
	require.Contains(t, out.String(), "  [WARN] Failed to download attachment: broken.bin (PROJ-1)\n")

	attachDir := filepath.Join(syncer.Dir, "PROJ-1", "attachments")
	_, err = os.Stat(filepath.Join(attachDir, "broken.bin"))
	require.True(t, os.IsNotExist(err))
	data, err := os.ReadFile(filepath.Join(attachDir, "ok.txt"))
	require.NoError(t, err)
	require.Equal(t, "data-8", string(data))
	require.Equal(t, []string{"PROJ-1/8"}, source.downloads)

	// The issue is complete, so a second run skips it without retrying the download.
	out.Reset()
	report, err = syncer.Sync(context.Background(), SyncRequest{ProjectKey: "PROJ"})
	require.NoError(t, err)
	require.Equal(t, 1, report.Skipped)
	require.NotContains(t, out.String(), "[WARN]")
}

func TestSyncSingleIssue(t *testing.T) {
	source := &stubSource{
		issues: []backlog.Issue{
			issue("PROJ-1", "Closed", "2025-01-02T00:00:00Z"),
			issue("PROJ-2", "Open", "2025-01-02T00:00:00Z"),
		},
	}
	syncer, _ := newSyncer(t, source)

	report, err := syncer.Sync(context.Background(), SyncRequest{ProjectKey: "PROJ", IssueKey: "PROJ-1"})
	require.NoError(t, err)
	require.Equal(t, 1, report.Synced)
	require.Empty(t, source.filters)

	entries, err := os.ReadDir(syncer.Dir)
	require.NoError(t, err)
	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	require.Equal(t, []string{".gitignore", "PROJ-1"}, names)

	_, err = syncer.Sync(context.Background(), SyncRequest{IssueKey: "PROJ-9"})
	require.True(t, backlog.IsNotFound(err))
}

func TestOpenStatusIDs(t *testing.T) {
	ids := OpenStatusIDs([]backlog.Status{{ID: 1, Name: "Open"}, {ID: 3, Name: "Closed"}, {ID: 5, Name: "完了"}, {ID: 7, Name: "Review"}})
	require.Equal(t, []int{1, 7}, ids)
}
