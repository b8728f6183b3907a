package errors

import (
	"context"
	"errors"
	"log/slog"
	"sort"
)

// Process exit codes of the command line.
const (
	ExitOK       = 0
	ExitFailure  = 1
	ExitConfig   = 2
	ExitInput    = 3
	ExitStorage  = 4
	ExitCanceled = 130
)

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ExitCanceled
	}
	switch GetType(err) {
	case ErrTypeConfig, ErrTypeValidation:
		return ExitConfig
	case ErrTypeInput, ErrTypeNotFound, ErrTypeAlignment:
		return ExitInput
	case ErrTypeStorage:
		return ExitStorage
	default:
		return ExitFailure
	}
}

// ErrorHandler logs fatal errors with their type and context.
type ErrorHandler struct {
	logger *slog.Logger
}

// NewErrorHandler creates an error handler.
func NewErrorHandler(logger *slog.Logger) *ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ErrorHandler{logger: logger.With(slog.String("component", "error_handler"))}
}

// Handle logs err and returns the exit code for it.
func (h *ErrorHandler) Handle(ctx context.Context, err error) int {
	if err == nil {
		return ExitOK
	}
	code := ExitCode(err)

	attrs := []any{
		slog.String("error", err.Error()),
		slog.Int("exit_code", code),
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		attrs = append(attrs, slog.String("error_type", string(appErr.Type)))
		keys := make([]string, 0, len(appErr.Context))
		for k := range appErr.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			attrs = append(attrs, slog.Any(k, appErr.Context[k]))
		}
	}

	if code == ExitCanceled {
		h.logger.WarnContext(ctx, "run cancelled", attrs...)
	} else {
		h.logger.ErrorContext(ctx, "run failed", attrs...)
	}
	return code
}
