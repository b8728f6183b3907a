package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jihwanw/big-dragons-never-die/internal/shared/testutil"
)

func TestErrorType_Constants(t *testing.T) {
	tests := []struct {
		errType  ErrorType
		expected string
	}{
		{ErrTypeInput, "INPUT"},
		{ErrTypeAlignment, "ALIGNMENT"},
		{ErrTypeInsufficientData, "INSUFFICIENT_DATA"},
		{ErrTypeNumerical, "NUMERICAL"},
		{ErrTypeStorage, "STORAGE"},
		{ErrTypeValidation, "VALIDATION"},
		{ErrTypeNotFound, "NOT_FOUND"},
		{ErrTypeConfig, "CONFIG"},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(tt.errType))
		})
	}
}

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "without cause",
			err:  NewAlignmentError("returns and factors share no dates"),
			want: "[ALIGNMENT] returns and factors share no dates",
		},
		{
			name: "with cause",
			err:  NewInputError("parse returns.csv", fmt.Errorf("row 3: bad float")),
			want: "[INPUT] parse returns.csv: row 3: bad float",
		},
		{
			name: "not found",
			err:  NewNotFoundError("universe file"),
			want: "[NOT_FOUND] universe file not found",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestAppError_UnwrapAndContext(t *testing.T) {
	cause := errors.New("disk full")
	err := NewStorageError("write summary.csv", cause).WithContext("path", "out/summary.csv")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "out/summary.csv", err.Context["path"])

	bare := &AppError{Type: ErrTypeConfig}
	bare.WithContext("key", 1)
	assert.Equal(t, 1, bare.Context["key"])
}

func TestGetTypeAndIsType(t *testing.T) {
	inner := NewInputError("column Mkt-RF missing", nil)
	wrapped := fmt.Errorf("load factors: %w", inner)
	nested := NewStorageError("load inputs", wrapped)

	assert.Equal(t, ErrTypeInput, GetType(wrapped))
	assert.Equal(t, ErrTypeStorage, GetType(nested))
	assert.True(t, IsType(nested, ErrTypeInput))
	assert.True(t, IsType(nested, ErrTypeStorage))
	assert.False(t, IsType(nested, ErrTypeConfig))
	assert.Equal(t, ErrorType(""), GetType(errors.New("plain")))
	assert.False(t, IsType(nil, ErrTypeInput))
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"config", NewConfigError("bad yaml", nil), ExitConfig},
		{"validation", NewAppValidationError("rank range inverted"), ExitConfig},
		{"input", fmt.Errorf("load: %w", NewInputError("bad cell", nil)), ExitInput},
		{"not found", NewNotFoundError("returns.csv"), ExitInput},
		{"storage", NewStorageError("write", nil), ExitStorage},
		{"cancelled", fmt.Errorf("stage-1: %w", context.Canceled), ExitCanceled},
		{"plain", errors.New("boom"), ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestErrorHandler_Handle(t *testing.T) {
	logger, h := testutil.NewTestLogger(t)
	handler := NewErrorHandler(logger)

	code := handler.Handle(context.Background(),
		NewInputError("non-numeric cell", nil).WithContext("file", "returns.csv").WithContext("row", 12))
	require.Equal(t, ExitInput, code)

	testutil.AssertLogContains(t, h, slog.LevelError, "run failed")
	testutil.AssertLogAttr(t, h, "error_type", "INPUT")
	testutil.AssertLogAttr(t, h, "file", "returns.csv")
	testutil.AssertLogAttr(t, h, "component", "error_handler")

	assert.Equal(t, ExitOK, handler.Handle(context.Background(), nil))

	assert.Equal(t, ExitCanceled, handler.Handle(context.Background(), context.Canceled))
	testutil.AssertLogContains(t, h, slog.LevelWarn, "run cancelled")
}
