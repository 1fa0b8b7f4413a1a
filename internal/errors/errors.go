// Package errors maps backlogsync failures onto gofulmen error envelopes and
// foundry exit codes.
package errors

import (
	"context"
	stderrors "errors"
	"os"
	"strconv"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/backlogsync/backlogsync/internal/backlog"
	"github.com/backlogsync/backlogsync/internal/config"
	"github.com/backlogsync/backlogsync/internal/observability"
)

// Envelope codes.
const (
	CodeInvalidInput    = "INVALID_INPUT"
	CodeNotFound        = "NOT_FOUND"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeRateLimited     = "RATE_LIMITED"
	CodeTimeout         = "TIMEOUT"
	CodeExternalService = "EXTERNAL_SERVICE_ERROR"
	CodeConfigInvalid   = "CONFIG_INVALID"
	CodeWriteMode       = "WRITE_MODE_REQUIRED"
	CodeDatabase        = "DATABASE_ERROR"
	CodeInternal        = "INTERNAL_ERROR"
)

type correlationKey struct{}

// WithCorrelationID returns a context carrying id for envelopes built from it.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the id stored by WithCorrelationID, if any.
func CorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

func NewInvalidInputError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeInvalidInput, message)
}

func NewNotFoundError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeNotFound, message)
}

func NewConfigInvalidError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeConfigInvalid, message)
}

// Wrap functions attach the correlation id from ctx and the wrapped error text.

func WrapConfigInvalid(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return wrap(ctx, CodeConfigInvalid, err, message)
}

func WrapDatabaseError(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return wrap(ctx, CodeDatabase, err, message)
}

func WrapInternal(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return wrap(ctx, CodeInternal, err, message)
}

// WrapBacklog converts an API failure into an envelope whose code reflects
// the HTTP status. The Backlog error codes travel in the envelope context.
func WrapBacklog(ctx context.Context, err error) *errors.ErrorEnvelope {
	apiErr, ok := backlog.AsError(err)
	if !ok {
		return wrap(ctx, CodeExternalService, err, err.Error())
	}

	code := CodeExternalService
	switch {
	case apiErr.StatusCode == 401:
		code = CodeUnauthorized
	case apiErr.StatusCode == 403:
		code = CodeForbidden
	case apiErr.StatusCode == 404:
		code = CodeNotFound
	case apiErr.StatusCode == 429:
		code = CodeRateLimited
	case apiErr.StatusCode == 0 && stderrors.Is(apiErr.Err, context.DeadlineExceeded):
		code = CodeTimeout
	}

	envelope := errors.NewErrorEnvelope(code, apiErr.Message)
	envelope = envelope.WithCorrelationID(correlationOrNew(ctx))
	envelope = envelope.WithTraceID(envelope.CorrelationID)

	data := map[string]interface{}{
		"http_status": apiErr.StatusCode,
	}
	if codes := apiErr.Codes(); len(codes) > 0 {
		names := make([]string, len(codes))
		for i, code := range codes {
			names[i] = strconv.Itoa(code)
		}
		data["backlog_codes"] = names
	}
	if len(apiErr.Errors) > 0 && apiErr.Errors[0].MoreInfo != "" {
		data["more_info"] = apiErr.Errors[0].MoreInfo
	}
	if apiErr.Err != nil {
		data["wrapped_error"] = apiErr.Err.Error()
	}
	return withContext(envelope, data)
}

// withContext replaces envelope's context with data. Entries gofulmen rejects
// are dropped and logged.
func withContext(envelope *errors.ErrorEnvelope, data map[string]interface{}) *errors.ErrorEnvelope {
	updated, err := envelope.WithContext(data)
	if err != nil && observability.CLILogger != nil {
		observability.CLILogger.Warn("Error context rejected",
			zap.String("error_code", envelope.Code),
			zap.Error(err),
		)
	}
	return updated
}

func wrap(ctx context.Context, code string, err error, message string) *errors.ErrorEnvelope {
	envelope := errors.NewErrorEnvelope(code, message)
	envelope = envelope.WithCorrelationID(correlationOrNew(ctx))
	envelope = envelope.WithTraceID(envelope.CorrelationID)
	return withWrappedError(envelope, err)
}

func correlationOrNew(ctx context.Context) string {
	if id := CorrelationID(ctx); id != "" {
		return id
	}
	return uuid.New().String()
}

func withWrappedError(envelope *errors.ErrorEnvelope, err error) *errors.ErrorEnvelope {
	if envelope == nil || err == nil {
		return envelope
	}

	return withContext(envelope, map[string]interface{}{
		"wrapped_error": err.Error(),
	})
}

// EnsureEnvelope normalizes any error into a gofulmen ErrorEnvelope.
func EnsureEnvelope(ctx context.Context, err error) *errors.ErrorEnvelope {
	if err == nil {
		env := errors.NewErrorEnvelope(CodeInternal, "unexpected nil error")
		env, _ = env.WithSeverity(errors.SeverityCritical)
		return env
	}

	var envelope *errors.ErrorEnvelope
	if stderrors.As(err, &envelope) && envelope != nil {
		return envelope
	}
	if _, ok := backlog.AsError(err); ok {
		return WrapBacklog(ctx, err)
	}

	var modeErr *config.WriteModeError
	if stderrors.As(err, &modeErr) {
		return wrap(ctx, CodeWriteMode, err, modeErr.Error())
	}
	if stderrors.Is(err, config.ErrNotConfigured) {
		return wrap(ctx, CodeConfigInvalid, err, err.Error())
	}

	env := wrap(ctx, CodeInternal, err, err.Error())
	env, _ = env.WithSeverity(errors.SeverityHigh)
	return env
}

// ExitCodeFor picks the foundry exit code for err.
func ExitCodeFor(err error) foundry.ExitCode {
	if err == nil {
		return 0
	}

	var envelope *errors.ErrorEnvelope
	if stderrors.As(err, &envelope) && envelope != nil {
		return exitCodeForEnvelope(envelope.Code)
	}
	if _, ok := backlog.AsError(err); ok {
		return foundry.ExitExternalServiceUnavailable
	}

	var modeErr *config.WriteModeError
	switch {
	case stderrors.As(err, &modeErr), stderrors.Is(err, config.ErrNotConfigured):
		return foundry.ExitConfigInvalid
	case stderrors.Is(err, os.ErrNotExist):
		return foundry.ExitFileNotFound
	}
	return foundry.ExitFailure
}

func exitCodeForEnvelope(code string) foundry.ExitCode {
	switch code {
	case CodeConfigInvalid, CodeWriteMode:
		return foundry.ExitConfigInvalid
	case CodeUnauthorized, CodeForbidden, CodeNotFound, CodeRateLimited, CodeTimeout, CodeExternalService:
		return foundry.ExitExternalServiceUnavailable
	default:
		return foundry.ExitFailure
	}
}
