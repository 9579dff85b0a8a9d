package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Message(t *testing.T) {
	err := NotFoundError("deployment", "api")
	assert.Equal(t, `[NOT_FOUND] deployment "api" not found`, err.Error())
	assert.Equal(t, "api", err.Details["name"])

	wrapped := Wrap(ErrCodeBackend, "write failed", fmt.Errorf("disk full"))
	assert.Equal(t, "[BACKEND_ERROR] write failed: disk full", wrapped.Error())
}

func TestIs(t *testing.T) {
	base := NotFoundError("event", "deploy")

	tests := []struct {
		name string
		err  error
		code ErrorCode
		want bool
	}{
		{name: "direct match", err: base, code: ErrCodeNotFound, want: true},
		{name: "different code", err: base, code: ErrCodeParse, want: false},
		{name: "wrapped with fmt", err: fmt.Errorf("build: %w", base), code: ErrCodeNotFound, want: true},
		{name: "cause chain", err: Wrap(ErrCodeChainFailed, "x", base), code: ErrCodeNotFound, want: true},
		{name: "plain error", err: stderrors.New("boom"), code: ErrCodeNotFound, want: false},
		{name: "nil", err: nil, code: ErrCodeNotFound, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Is(tt.err, tt.code))
		})
	}
}

func TestOrchestrationFailed(t *testing.T) {
	err := OrchestrationFailed([]string{"web", "worker"})
	assert.Contains(t, err.Error(), "2 deployment(s) failed: web, worker")
	assert.Equal(t, []string{"web", "worker"}, err.Details["failed"])
}

func TestWithDetail(t *testing.T) {
	err := New(ErrCodeValidation, "bad").WithDetail("field", "name")
	assert.Equal(t, "name", err.Details["field"])
}
