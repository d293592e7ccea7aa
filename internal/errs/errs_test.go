package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCode(t *testing.T) {
	t.Parallel()

	cause := errors.New("disk full")
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "database", err: NewDatabaseError("insert failed", cause), want: CodeDatabase},
		{name: "validation", err: NewValidationError("bad body", nil), want: CodeValidation},
		{name: "source", err: NewSourceError("slack down", cause), want: CodeSource},
		{name: "config", err: NewConfigError("missing token", nil), want: CodeConfig},
		{name: "not found", err: NewNotFoundError("no such record"), want: CodeNotFound},
		{name: "wrapped", err: fmt.Errorf("import: %w", NewDatabaseError("x", nil)), want: CodeDatabase},
		{name: "plain", err: cause, want: CodeUnknown},
		{name: "nil", err: nil, want: CodeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Code(tt.err))
		})
	}
}

func TestErrorMessageAndUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("locked")
	err := NewDatabaseError("failed to commit", cause)

	assert.Equal(t, "failed to commit: locked", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.True(t, Is(err, CodeDatabase))
	assert.False(t, Is(nil, CodeDatabase))
	assert.Equal(t, "busy", New(CodeBusy, "busy", nil).Error())
}
