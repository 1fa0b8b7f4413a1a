package backlog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/backlogsync/backlogsync/internal/backlog/backlogtest"
)

func TestAddIssueShapesBody(t *testing.T) {
	server := backlogtest.NewServer(t)
	server.Handle(http.MethodPost, "/issues", backlogtest.JSON(http.StatusCreated, Issue{ID: 5, IssueKey: "PROJ-5"}))

	client := newTestClient(t, server, newFakeClock())
	issue, err := client.AddIssue(context.Background(), AddIssueParams{
		ProjectID:      10,
		Summary:        "Crash on save",
		IssueTypeID:    1,
		PriorityID:     3,
		CategoryIDs:    []int{7, 8},
		EstimatedHours: Ptr(2.5),
	})
	require.NoError(t, err)
	require.Equal(t, "PROJ-5", issue.IssueKey)

	form := server.RequestsTo(http.MethodPost, "/issues")[0].Form
	require.Equal(t, "10", form.Get("projectId"))
	require.Equal(t, "Crash on save", form.Get("summary"))
	require.Equal(t, "1", form.Get("issueTypeId"))
	require.Equal(t, "3", form.Get("priorityId"))
	require.Equal(t, []string{"7", "8"}, form["categoryId[]"])
	require.Equal(t, "2.5", form.Get("estimatedHours"))
	require.False(t, form.Has("description"))
	require.False(t, form.Has("assigneeId"))
	require.False(t, form.Has("versionId[]"))
}

func TestAddIssueRequiresFields(t *testing.T) {
	client, err := NewClient(Config{Space: "acme", APIKey: "tok"})
	require.NoError(t, err)

	_, err = client.AddIssue(context.Background(), AddIssueParams{ProjectID: 10, IssueTypeID: 1, PriorityID: 2})
	require.EqualError(t, err, "summary is required")
}

func TestUpdateIssueSendsOnlySuppliedFields(t *testing.T) {
	server := backlogtest.NewServer(t)
	server.Handle(http.MethodPatch, "/issues/{key}", backlogtest.JSON(http.StatusOK, Issue{ID: 1, IssueKey: "PROJ-1"}))

	client := newTestClient(t, server, newFakeClock())
	params := UpdateIssueParams{StatusID: Ptr(4), Comment: Ptr("done"), MilestoneIDs: []int{11}}
	require.False(t, params.Empty())
	require.True(t, UpdateIssueParams{}.Empty())

	_, err := client.UpdateIssue(context.Background(), "PROJ-1", params)
	require.NoError(t, err)

	form := server.RequestsTo(http.MethodPatch, "/issues/PROJ-1")[0].Form
	require.Len(t, form, 3)
	require.Equal(t, "4", form.Get("statusId"))
	require.Equal(t, "done", form.Get("comment"))
	require.Equal(t, []string{"11"}, form["milestoneId[]"])
}

func TestAddCommentNotifiesUsers(t *testing.T) {
	server := backlogtest.NewServer(t)
	server.Handle(http.MethodPost, "/issues/{key}/comments", backlogtest.JSON(http.StatusCreated, Comment{ID: 3}))

	client := newTestClient(t, server, newFakeClock())
	ctx := context.Background()

	_, err := client.AddComment(ctx, "PROJ-1", "ping", []int{1, 2})
	require.NoError(t, err)
	_, err = client.AddComment(ctx, "PROJ-1", "quiet", nil)
	require.NoError(t, err)

	requests := server.RequestsTo(http.MethodPost, "/issues/PROJ-1/comments")
	require.Len(t, requests, 2)
	require.Equal(t, []string{"1", "2"}, requests[0].Form["notifiedUserId[]"])
	require.Contains(t, requests[0].Body, "notifiedUserId%5B%5D=1&notifiedUserId%5B%5D=2")
	require.False(t, requests[1].Form.Has("notifiedUserId[]"))
	require.Equal(t, "quiet", requests[1].Form.Get("content"))
}

func TestCountAndSearchIssues(t *testing.T) {
	server := backlogtest.NewServer(t)
	server.Handle(http.MethodGet, "/issues/count", backlogtest.JSON(http.StatusOK, map[string]int{"count": 42}))
	server.Handle(http.MethodGet, "/issues", backlogtest.JSON(http.StatusOK, makeIssues(1, 3)))

	client := newTestClient(t, server, newFakeClock())
	ctx := context.Background()

	count, err := client.CountIssues(ctx, 10, IssueFilter{AssigneeIDs: []int{5}})
	require.NoError(t, err)
	require.Equal(t, 42, count)

	countReq := server.RequestsTo(http.MethodGet, "/issues/count")[0]
	require.Equal(t, "5", countReq.Query.Get("assigneeId[0]"))
	require.False(t, countReq.Query.Has("count"))
	require.False(t, countReq.Query.Has("offset"))

	issues, err := client.SearchIssues(ctx, 10, IssueSearch{Count: Ptr(3), Offset: Ptr(6)})
	require.NoError(t, err)
	require.Len(t, issues, 3)

	searchReq := server.RequestsTo(http.MethodGet, "/issues")[0]
	require.Equal(t, "3", searchReq.Query.Get("count"))
	require.Equal(t, "6", searchReq.Query.Get("offset"))
	require.False(t, searchReq.Query.Has("sort"))
}

func TestWikiEndpoints(t *testing.T) {
	server := backlogtest.NewServer(t)
	server.Handle(http.MethodGet, "/wikis", backlogtest.JSON(http.StatusOK, []WikiPage{{ID: 1, Name: "Home"}}))
	server.Handle(http.MethodGet, "/wikis/count", backlogtest.JSON(http.StatusOK, map[string]int{"count": 1}))
	server.Handle(http.MethodPost, "/wikis", backlogtest.JSON(http.StatusCreated, WikiPage{ID: 2, Name: "New"}))
	server.Handle(http.MethodPatch, "/wikis/{id}", backlogtest.JSON(http.StatusOK, WikiPage{ID: 2, Name: "Renamed"}))
	server.Handle(http.MethodDelete, "/wikis/{id}", backlogtest.JSON(http.StatusOK, WikiPage{ID: 2}))

	client := newTestClient(t, server, newFakeClock())
	ctx := context.Background()

	pages, err := client.ListWikiPages(ctx, "PROJ", "")
	require.NoError(t, err)
	require.Len(t, pages, 1)
	listReq := server.RequestsTo(http.MethodGet, "/wikis")[0]
	require.Equal(t, "PROJ", listReq.Query.Get("projectIdOrKey"))
	require.False(t, listReq.Query.Has("keyword"))

	count, err := client.CountWikiPages(ctx, "PROJ")
	require.NoError(t, err)
	require.Equal(t, 1, count)

	_, err = client.AddWikiPage(ctx, AddWikiPageParams{ProjectID: 10, Name: "New", Content: "body"})
	require.NoError(t, err)
	addForm := server.RequestsTo(http.MethodPost, "/wikis")[0].Form
	require.Equal(t, "10", addForm.Get("projectId"))
	require.False(t, addForm.Has("mailNotify"))

	page, err := client.UpdateWikiPage(ctx, 2, UpdateWikiPageParams{Name: Ptr("Renamed"), MailNotify: Ptr(true)})
	require.NoError(t, err)
	require.Equal(t, "Renamed", page.Name)
	updateForm := server.RequestsTo(http.MethodPatch, "/wikis/2")[0].Form
	require.Equal(t, "true", updateForm.Get("mailNotify"))
	require.False(t, updateForm.Has("content"))

	_, err = client.DeleteWikiPage(ctx, 2, nil)
	require.NoError(t, err)
	require.Len(t, server.RequestsTo(http.MethodDelete, "/wikis/2"), 1)
}

func TestDocumentEndpoints(t *testing.T) {
	server := backlogtest.NewServer(t)
	server.Handle(http.MethodGet, "/documents", backlogtest.JSON(http.StatusOK, []Document{{ID: "abc", Title: "Spec"}}))
	server.Handle(http.MethodGet, "/documents/tree", backlogtest.JSON(http.StatusOK, DocumentTree{
		ProjectID:  10,
		ActiveTree: DocumentNode{ID: "root", Children: []DocumentNode{{ID: "abc", Name: "Spec"}}},
	}))
	server.Handle(http.MethodGet, "/documents/{id}", backlogtest.JSON(http.StatusOK, Document{ID: "abc", Title: "Spec"}))
	server.Handle(http.MethodPost, "/documents", backlogtest.JSON(http.StatusCreated, Document{ID: "def"}))
	server.Handle(http.MethodDelete, "/documents/{id}", backlogtest.JSON(http.StatusOK, Document{ID: "def"}))

	client := newTestClient(t, server, newFakeClock())
	ctx := context.Background()

	docs, err := client.ListDocuments(ctx, 10, DocumentListOptions{Keyword: "spec"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	listReq := server.RequestsTo(http.MethodGet, "/documents")[0]
	require.Equal(t, "10", listReq.Query.Get("projectId[]"))
	require.Equal(t, "0", listReq.Query.Get("offset"))
	require.Equal(t, "spec", listReq.Query.Get("keyword"))
	require.False(t, listReq.Query.Has("count"))

	tree, err := client.GetDocumentTree(ctx, "PROJ")
	require.NoError(t, err)
	require.Equal(t, "Spec", tree.ActiveTree.Children[0].Name)

	doc, err := client.GetDocument(ctx, "abc")
	require.NoError(t, err)
	require.Equal(t, "Spec", doc.Title)

	created, err := client.AddDocument(ctx, AddDocumentParams{ProjectID: 10, Title: Ptr("Notes"), AddLast: Ptr(true)})
	require.NoError(t, err)
	require.Equal(t, "def", created.ID)
	addForm := server.RequestsTo(http.MethodPost, "/documents")[0].Form
	require.Equal(t, "Notes", addForm.Get("title"))
	require.Equal(t, "true", addForm.Get("addLast"))
	require.False(t, addForm.Has("emoji"))

	_, err = client.DeleteDocument(ctx, "def")
	require.NoError(t, err)
}

func TestGetRateLimit(t *testing.T) {
	server := backlogtest.NewServer(t)
	server.Handle(http.MethodGet, "/rateLimit", backlogtest.JSON(http.StatusOK, map[string]any{
		"rateLimit": RateLimit{Read: RateLimitQuota{Limit: 600, Remaining: 598, Reset: 1700000000}},
	}))

	client := newTestClient(t, server, newFakeClock())
	limits, err := client.GetRateLimit(context.Background())
	require.NoError(t, err)
	require.Equal(t, 600, limits.Read.Limit)
	require.Equal(t, 598, limits.Read.Remaining)
}

func TestDownloadAttachment(t *testing.T) {
	server := backlogtest.NewServer(t)
	server.Handle(http.MethodGet, "/issues/{key}/attachments/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v2/issues/PROJ-1/attachments/7" {
			_, _ = w.Write([]byte("\x89PNG"))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})
	server.Handle(http.MethodGet, "/documents/{id}/attachments/{att}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	client := newTestClient(t, server, newFakeClock())
	ctx := context.Background()

	data, err := client.DownloadAttachment(ctx, "PROJ-1", 7)
	require.NoError(t, err)
	require.Equal(t, []byte("\x89PNG"), data)

	_, err = client.DownloadAttachment(ctx, "PROJ-1", 8)
	require.EqualError(t, err, "Failed to download attachment 8: 404")
	require.True(t, IsNotFound(err))

	_, err = client.DownloadDocumentAttachment(ctx, "abc", 3)
	require.EqualError(t, err, "Failed to download document attachment 3: 403")
}

func TestDownloadTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	baseURL := server.URL + "/api/v2"
	server.Close()

	client, err := NewClient(Config{APIKey: "tok", BaseURL: baseURL})
	require.NoError(t, err)

	_, err = client.DownloadAttachment(context.Background(), "PROJ-1", 7)
	require.Error(t, err)
	require.True(t, IsTransport(err))
	require.Contains(t, err.Error(), "Failed to download attachment 7: ")
}
