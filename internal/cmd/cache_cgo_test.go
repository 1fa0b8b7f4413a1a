//go:build cgo

package cmd

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/backlogsync/backlogsync/internal/backlog/backlogtest"
	"github.com/backlogsync/backlogsync/internal/config"
)

func serveStatuses(srv *backlogtest.Server) {
	srv.Handle(http.MethodGet, "/projects/PROJ/statuses", backlogtest.JSON(http.StatusOK, []map[string]any{
		{"id": 1, "projectId": 99, "name": "Open", "color": "#ed8077", "displayOrder": 1000},
		{"id": 4, "projectId": 99, "name": "Closed", "color": "#b0be3c", "displayOrder": 4000},
	}))
}

func TestProjectInfoUsesCache(t *testing.T) {
	testProject(t)
	srv := backlogtest.NewServer(t)
	connectTo(t, srv, config.ModeRead)
	serveStatuses(srv)

	for range 2 {
		out, err := runCLI(t, "", "project-info", "statuses")
		require.NoError(t, err)
		require.Contains(t, out, `"Closed"`)
	}
	require.Len(t, srv.RequestsTo(http.MethodGet, "/projects/PROJ/statuses"), 1)

	_, err := runCLI(t, "", "project-info", "statuses", "--refresh")
	require.NoError(t, err)
	require.Len(t, srv.RequestsTo(http.MethodGet, "/projects/PROJ/statuses"), 2)
}

func TestCacheListAndClear(t *testing.T) {
	testProject(t)
	srv := backlogtest.NewServer(t)
	connectTo(t, srv, config.ModeRead)
	serveStatuses(srv)

	_, err := runCLI(t, "", "project-info", "statuses")
	require.NoError(t, err)

	out, err := runCLI(t, "", "cache", "list")
	require.NoError(t, err)
	var views []cacheEntryView
	require.NoError(t, json.Unmarshal([]byte(out), &views))
	require.Len(t, views, 1)
	require.Equal(t, "PROJ", views[0].ProjectKey)
	require.Equal(t, "statuses", views[0].Kind)
	require.Equal(t, 2, views[0].Items)

	out, err = runCLI(t, "", "cache", "clear", "--kind", "statuses", "--dry-run")
	require.NoError(t, err)
	require.Contains(t, out, "Would delete 1 cache entr(ies)")

	_, err = runCLI(t, "", "cache", "clear", "--all")
	require.Error(t, err)

	out, err = runCLI(t, "", "cache", "clear", "--kind", "statuses")
	require.NoError(t, err)
	require.Contains(t, out, "Deleted 1/1 cache entr(ies)")

	out, err = runCLI(t, "", "cache", "list")
	require.NoError(t, err)
	require.JSONEq(t, "[]", out)

	_, err = runCLI(t, "", "project-info", "statuses")
	require.NoError(t, err)
	require.Len(t, srv.RequestsTo(http.MethodGet, "/projects/PROJ/statuses"), 2)
}

func TestNameResolutionReadsCacheThenRefreshes(t *testing.T) {
	testProject(t)
	srv := backlogtest.NewServer(t)
	connectTo(t, srv, config.ModeWrite)
	users := []map[string]any{{"id": 1, "userId": "alice", "name": "Alice Archer"}}
	srv.Handle(http.MethodGet, "/projects/PROJ/users", func(w http.ResponseWriter, _ *http.Request) {
		backlogtest.WriteJSON(w, http.StatusOK, users)
	})
	srv.Handle(http.MethodPost, "/issues/PROJ-1/comments", backlogtest.JSON(http.StatusCreated, map[string]any{"id": 7}))
	userFetches := func() int { return len(srv.RequestsTo(http.MethodGet, "/projects/PROJ/users")) }

	_, err := runCLI(t, "", "comment", "add", "PROJ-1", "--content", "a", "--notify", "alice")
	require.NoError(t, err)
	require.Equal(t, 1, userFetches())

	_, err = runCLI(t, "", "comment", "add", "PROJ-1", "--content", "b", "--notify", "Alice Archer")
	require.NoError(t, err)
	require.Equal(t, 1, userFetches(), "cached table answers known names")

	users = append(users, map[string]any{"id": 2, "userId": "bob", "name": "Bob Baker"})
	_, err = runCLI(t, "", "comment", "add", "PROJ-1", "--content", "c", "--notify", "bob")
	require.NoError(t, err)
	require.Equal(t, 2, userFetches(), "unknown names refresh the table once")

	posts := srv.RequestsTo(http.MethodPost, "/issues/PROJ-1/comments")
	require.Len(t, posts, 3)
	require.Equal(t, []string{"2"}, posts[2].Form["notifiedUserId[]"])

	_, err = runCLI(t, "", "comment", "add", "PROJ-1", "--content", "d", "--notify", "carol")
	require.ErrorContains(t, err, `no users matches "carol"`)
	require.Equal(t, 3, userFetches())
	require.Len(t, srv.RequestsTo(http.MethodPost, "/issues/PROJ-1/comments"), 3)
}
