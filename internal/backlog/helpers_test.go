package backlog

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/backlogsync/backlogsync/internal/backlog/backlogtest"
)

// fakeClock advances only when Sleep is called.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sleeps = append(f.sleeps, d)
	f.now = f.now.Add(d)
	return nil
}

func (f *fakeClock) Sleeps() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.sleeps...)
}

func newTestClient(t *testing.T, server *backlogtest.Server, clock *fakeClock) *Client {
	t.Helper()

	client, err := NewClient(Config{
		APIKey:     "tok",
		BaseURL:    server.BaseURL(),
		HTTPClient: server.Client(),
		Logger:     zaptest.NewLogger(t),
		Clock:      clock.Now,
		Sleep:      clock.Sleep,
	})
	require.NoError(t, err)
	return client
}

func makeIssues(startID, n int) []Issue {
	issues := make([]Issue, 0, n)
	for i := 0; i < n; i++ {
		issues = append(issues, Issue{ID: startID + i, IssueKey: "PROJ-" + strconv.Itoa(startID+i), Summary: "issue"})
	}
	return issues
}

func makeComments(startID, n int) []Comment {
	comments := make([]Comment, 0, n)
	for i := 0; i < n; i++ {
		content := "comment"
		comments = append(comments, Comment{ID: startID + i, Content: &content})
	}
	return comments
}
