package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/fulmenhq/gofulmen/foundry"
	"go.uber.org/zap"

	errwrap "github.com/backlogsync/backlogsync/internal/errors"
	"github.com/backlogsync/backlogsync/internal/observability"
)

// Fail reports err on stderr and exits with the foundry exit code for its
// class. It never returns.
func Fail(ctx context.Context, err error) {
	envelope := errwrap.EnsureEnvelope(ctx, err)
	code := errwrap.ExitCodeFor(err)
	writeFailure(os.Stderr, envelope, code, verbose)

	if observability.CLILogger != nil {
		fields := []zap.Field{
			zap.String("error_code", envelope.Code),
			zap.String("correlation_id", envelope.CorrelationID),
			zap.Int("exit_code", int(code)),
		}
		if envelope.Context != nil {
			fields = append(fields, zap.Any("error_context", envelope.Context))
		}
		observability.CLILogger.Debug("Command failed", fields...)
	}
	os.Exit(int(code))
}

// writeFailure prints the one-line message users see, plus the wrapped cause
// and Backlog's moreInfo when present.
func writeFailure(w io.Writer, envelope *errors.ErrorEnvelope, code foundry.ExitCode, detailed bool) {
	_, _ = fmt.Fprintf(w, "Error: %s\n", envelope.Message)
	if detail, ok := envelope.Context["wrapped_error"].(string); ok && detail != "" && detail != envelope.Message {
		_, _ = fmt.Fprintf(w, "  cause: %s\n", detail)
	}
	if info, ok := envelope.Context["more_info"].(string); ok && info != "" {
		_, _ = fmt.Fprintf(w, "  more info: %s\n", info)
	}
	if !detailed {
		return
	}
	if info, ok := foundry.GetExitCodeInfo(code); ok {
		_, _ = fmt.Fprintf(w, "Exit Code: %d (%s) - %s\n", info.Code, info.Name, info.Description)
	}
	if envelope.CorrelationID != "" {
		_, _ = fmt.Fprintf(w, "Correlation: %s\n", envelope.CorrelationID)
	}
}
