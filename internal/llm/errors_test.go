package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTimeoutAndCancellationAreDistinct(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		err          error
		wantTimeout  bool
		wantCanceled bool
	}{
		{"deadline", context.DeadlineExceeded, true, false},
		{"wrapped deadline", NewTransientError(fmt.Errorf("invoke: %w", context.DeadlineExceeded)), true, false},
		{"canceled", context.Canceled, false, true},
		{"wrapped canceled", NewTransientError(fmt.Errorf("invoke: %w", context.Canceled)), false, true},
		{"other", errors.New("boom"), false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantTimeout, IsTimeout(tt.err))
			assert.Equal(t, tt.wantCanceled, IsCanceled(tt.err))
		})
	}
}

func TestClassifyCanceledIsTransient(t *testing.T) {
	t.Parallel()
	err := classifyError(fmt.Errorf("post: %w", context.Canceled))
	assert.True(t, IsTransient(err))
	assert.False(t, IsTimeout(err))
}
