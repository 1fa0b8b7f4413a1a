package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"testing"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/stretchr/testify/require"

	"github.com/backlogsync/backlogsync/internal/backlog"
	"github.com/backlogsync/backlogsync/internal/config"
)

func TestWrapBacklogMapsStatus(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "req-1")

	cases := []struct {
		status int
		code   string
	}{
		{401, CodeUnauthorized},
		{403, CodeForbidden},
		{404, CodeNotFound},
		{429, CodeRateLimited},
		{500, CodeExternalService},
		{0, CodeExternalService},
	}
	for _, tc := range cases {
		err := fmt.Errorf("get issue: %w", &backlog.Error{Message: "boom", StatusCode: tc.status})
		env := WrapBacklog(ctx, err)
		require.Equal(t, tc.code, env.Code, "status %d", tc.status)
		require.Equal(t, "boom", env.Message)
		require.Equal(t, "req-1", env.CorrelationID)
		require.Contains(t, env.Context, "http_status")
	}
}

func TestWrapBacklogTimeout(t *testing.T) {
	err := &backlog.Error{Message: "Request timed out: GET /issues", Err: context.DeadlineExceeded}
	env := WrapBacklog(context.Background(), err)
	require.Equal(t, CodeTimeout, env.Code)
	require.NotEmpty(t, env.CorrelationID)
}

func TestWrapBacklogCarriesCodes(t *testing.T) {
	err := &backlog.Error{
		Message:    "No such issue",
		StatusCode: 404,
		Errors:     []backlog.ErrorEntry{{Message: "No such issue", Code: 6, MoreInfo: "see docs"}},
	}
	env := WrapBacklog(context.Background(), err)
	require.Equal(t, []string{"6"}, env.Context["backlog_codes"])
	require.Equal(t, "see docs", env.Context["more_info"])
	require.Equal(t, 404, env.Context["http_status"])
}

func TestWrapBacklogCarriesEveryCode(t *testing.T) {
	err := &backlog.Error{
		Message:    "Invalid request",
		StatusCode: 400,
		Errors: []backlog.ErrorEntry{
			{Message: "summary is required", Code: 7},
			{Message: "issueTypeId is invalid", Code: 7},
			{Message: "no such project", Code: 6},
		},
	}
	env := WrapBacklog(context.Background(), err)
	require.Equal(t, []string{"7", "7", "6"}, env.Context["backlog_codes"])
	require.NotContains(t, env.Context, "more_info")
}

func TestEnsureEnvelope(t *testing.T) {
	ctx := context.Background()

	env := EnsureEnvelope(ctx, &config.WriteModeError{Operation: "issue create"})
	require.Equal(t, CodeWriteMode, env.Code)

	env = EnsureEnvelope(ctx, fmt.Errorf("load: %w", config.ErrNotConfigured))
	require.Equal(t, CodeConfigInvalid, env.Code)

	env = EnsureEnvelope(ctx, stderrors.New("disk on fire"))
	require.Equal(t, CodeInternal, env.Code)
	require.Equal(t, "disk on fire", env.Context["wrapped_error"])

	original := NewNotFoundError("missing")
	require.Same(t, original, EnsureEnvelope(ctx, original))
}

func TestExitCodeFor(t *testing.T) {
	require.Equal(t, foundry.ExitCode(0), ExitCodeFor(nil))
	require.Equal(t, foundry.ExitExternalServiceUnavailable, ExitCodeFor(&backlog.Error{StatusCode: 500}))
	require.Equal(t, foundry.ExitConfigInvalid, ExitCodeFor(&config.WriteModeError{Operation: "x"}))
	require.Equal(t, foundry.ExitConfigInvalid, ExitCodeFor(config.ErrNotConfigured))
	require.Equal(t, foundry.ExitFileNotFound, ExitCodeFor(fmt.Errorf("open: %w", os.ErrNotExist)))
	require.Equal(t, foundry.ExitFailure, ExitCodeFor(stderrors.New("other")))
	require.Equal(t, foundry.ExitConfigInvalid, ExitCodeFor(NewConfigInvalidError("bad")))
	require.Equal(t, foundry.ExitExternalServiceUnavailable, ExitCodeFor(WrapBacklog(context.Background(), &backlog.Error{StatusCode: 429})))
}
