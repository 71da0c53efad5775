package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantType  ErrorType
		retryable bool
	}{
		{
			name:      "deadline becomes timeout",
			err:       fmt.Errorf("query: %w", context.DeadlineExceeded),
			wantType:  ErrorTypeTimeout,
			retryable: true,
		},
		{
			name:      "plain error becomes unavailable",
			err:       stderrors.New("connection refused"),
			wantType:  ErrorTypeStoreUnavailable,
			retryable: true,
		},
		{
			name:      "typed error passes through",
			err:       NewDuplicateName(StepInsert, "Alice", nil),
			wantType:  ErrorTypeDuplicateName,
			retryable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify("record", StepInsert, tt.err)
			assert.Equal(t, tt.wantType, TypeOf(got))
			assert.Equal(t, tt.retryable, IsRetryable(got))
		})
	}
}

func TestClassify_Nil(t *testing.T) {
	assert.NoError(t, Classify("record", StepInsert, nil))
}

func TestTypeOf_Wrapped(t *testing.T) {
	inner := NewNotFound(StepUpdate, 7)
	err := fmt.Errorf("saving: %w", inner)

	assert.True(t, IsErrorType(err, ErrorTypeNotFound))
	assert.Equal(t, StepUpdate, StepOf(err))

	var nf *ErrNotFound
	assert.True(t, stderrors.As(err, &nf))
	assert.Equal(t, int64(7), nf.ID)
}

func TestPartialSync_OuterTypeWins(t *testing.T) {
	cause := NewStoreUnavailable("graph", StepSyncGraph, stderrors.New("bolt: closed"))
	err := NewPartialSync(3, cause)

	assert.Equal(t, ErrorTypePartialSync, TypeOf(err))
	assert.True(t, IsErrorType(stderrors.Unwrap(err), ErrorTypeStoreUnavailable))
	assert.Contains(t, err.Error(), "[partial_sync@sync_graph]")
}

func TestInvalidRecord_ListsFields(t *testing.T) {
	err := NewInvalidRecord([]string{"name", "status"})

	assert.Equal(t, []string{"name", "status"}, err.Missing)
	assert.Contains(t, err.Error(), "name, status")
	assert.False(t, IsRetryable(err))
}
