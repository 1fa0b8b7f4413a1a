package backlog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/backlogsync/backlogsync/internal/backlog/backlogtest"
)

func TestNewClientBaseURL(t *testing.T) {
	client, err := NewClient(Config{Space: "acme", APIKey: "tok"})
	require.NoError(t, err)
	require.Equal(t, "https://acme.backlog.com/api/v2", client.BaseURL())
	require.Equal(t, "https://acme.backlog.com/view/ACME-1", client.IssueURL("ACME-1"))

	client, err = NewClient(Config{Space: "acme", APIKey: "tok", Domain: "backlog.jp"})
	require.NoError(t, err)
	require.Equal(t, "https://acme.backlog.jp/api/v2", client.BaseURL())

	_, err = NewClient(Config{Space: "acme"})
	require.Error(t, err)

	_, err = NewClient(Config{APIKey: "tok"})
	require.Error(t, err)

	_, err = NewClient(Config{APIKey: "tok", BaseURL: "not a url"})
	require.Error(t, err)
}

func TestClientSendsAPIKeyAsQueryParam(t *testing.T) {
	server := backlogtest.NewServer(t)
	server.Handle(http.MethodGet, "/projects/{key}", backlogtest.JSON(http.StatusOK, Project{ID: 10, ProjectKey: "PROJ", Name: "Project"}))
	server.Handle(http.MethodPost, "/issues", backlogtest.JSON(http.StatusCreated, Issue{ID: 1, IssueKey: "PROJ-1"}))

	client := newTestClient(t, server, newFakeClock())
	ctx := context.Background()

	project, err := client.GetProject(ctx, "PROJ")
	require.NoError(t, err)
	require.Equal(t, 10, project.ID)

	_, err = client.AddIssue(ctx, AddIssueParams{ProjectID: 10, Summary: "s", IssueTypeID: 1, PriorityID: 2})
	require.NoError(t, err)

	requests := server.Requests()
	require.Len(t, requests, 2)
	for _, req := range requests {
		require.Equal(t, "tok", req.Query.Get("apiKey"))
		require.Empty(t, req.Form.Get("apiKey"))
	}
	require.Empty(t, requests[0].ContentType)
	require.Equal(t, "application/x-www-form-urlencoded", requests[1].ContentType)
}

func TestClientRetriesRateLimitedCalls(t *testing.T) {
	clock := newFakeClock()
	server := backlogtest.NewServer(t)
	server.Handle(http.MethodGet, "/priorities", backlogtest.Sequence(
		func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set(headerRateLimitReset, strconv.FormatInt(clock.Now().Add(5*time.Second).Unix(), 10))
			w.WriteHeader(http.StatusTooManyRequests)
		},
		backlogtest.JSON(http.StatusOK, []Priority{{ID: 3, Name: "Low"}}),
	))

	client := newTestClient(t, server, clock)
	priorities, err := client.GetPriorities(context.Background())
	require.NoError(t, err)
	require.Equal(t, []Priority{{ID: 3, Name: "Low"}}, priorities)
	require.Len(t, server.RequestsTo(http.MethodGet, "/priorities"), 2)
	require.Equal(t, []time.Duration{5 * time.Second}, clock.Sleeps())
}

func TestClientRetryBound(t *testing.T) {
	cases := []struct {
		name  string
		reset func(now time.Time) string
		want  time.Duration
	}{
		{"reset header", func(now time.Time) string { return strconv.FormatInt(now.Add(10*time.Second).Unix(), 10) }, 10 * time.Second},
		{"reset in past", func(now time.Time) string { return strconv.FormatInt(now.Add(-time.Minute).Unix(), 10) }, time.Second},
		{"missing header", func(time.Time) string { return "" }, 60 * time.Second},
		{"invalid header", func(time.Time) string { return "later" }, 60 * time.Second},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clock := newFakeClock()
			server := backlogtest.NewServer(t)
			server.Handle(http.MethodPost, "/issues/{key}/comments", func(w http.ResponseWriter, _ *http.Request) {
				if value := tc.reset(clock.Now()); value != "" {
					w.Header().Set(headerRateLimitReset, value)
				}
				w.WriteHeader(http.StatusTooManyRequests)
			})

			client := newTestClient(t, server, clock)
			_, err := client.AddComment(context.Background(), "PROJ-1", "hello", nil)
			require.Error(t, err)
			require.True(t, IsRateLimited(err))
			require.EqualError(t, err, "Rate limit exceeded. Max retries reached.")

			require.Len(t, server.RequestsTo(http.MethodPost, "/issues/PROJ-1/comments"), MaxRetries+1)
			require.Equal(t, []time.Duration{tc.want, tc.want, tc.want}, clock.Sleeps())
		})
	}
}

func TestSubmitFormEmptyBodyDecodesToZeroValue(t *testing.T) {
	server := backlogtest.NewServer(t)
	server.Handle(http.MethodDelete, "/issues/{key}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	server.Handle(http.MethodPatch, "/issues/{key}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	client := newTestClient(t, server, newFakeClock())
	ctx := context.Background()

	issue, err := client.DeleteIssue(ctx, "PROJ-1")
	require.NoError(t, err)
	require.Equal(t, Issue{}, *issue)

	issue, err = client.UpdateIssue(ctx, "PROJ-1", UpdateIssueParams{Summary: Ptr("renamed")})
	require.NoError(t, err)
	require.Equal(t, Issue{}, *issue)
}

func TestClientTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	baseURL := server.URL + "/api/v2"
	server.Close()

	clock := newFakeClock()
	client, err := NewClient(Config{APIKey: "tok", BaseURL: baseURL, Clock: clock.Now, Sleep: clock.Sleep})
	require.NoError(t, err)

	_, err = client.GetIssue(context.Background(), "PROJ-1")
	require.Error(t, err)
	require.True(t, IsTransport(err))

	apiErr, ok := AsError(err)
	require.True(t, ok)
	require.Equal(t, 0, apiErr.StatusCode)
	require.NotNil(t, apiErr.Unwrap())
	require.Empty(t, clock.Sleeps())
}

func TestClientTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	client, err := NewClient(Config{APIKey: "tok", BaseURL: server.URL + "/api/v2", Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	_, err = client.GetProject(context.Background(), "PROJ")
	require.Error(t, err)
	require.True(t, IsTransport(err))
	require.Contains(t, err.Error(), "/projects/PROJ")
}
