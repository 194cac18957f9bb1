package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"nil", nil, codes.OK},
		{"sentinel", ErrNotFound, codes.NotFound},
		{"wrapped sentinel", fmt.Errorf("loading: %w", ErrAborted), codes.Aborted},
		{"app error", Newf(ErrFailedPrecondition, "database %s is protected", "d"), codes.FailedPrecondition},
		{"context canceled", context.Canceled, codes.Canceled},
		{"deadline", fmt.Errorf("x: %w", context.DeadlineExceeded), codes.DeadlineExceeded},
		{"grpc status", status.Error(codes.Unavailable, "down"), codes.Unavailable},
		{"plain", errors.New("boom"), codes.Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Code(tt.err))
		})
	}
}

func TestStatusRoundTrip(t *testing.T) {
	orig := New(ErrAlreadyExists, "index already exists")
	st := ToStatus(orig)
	s, ok := status.FromError(st)
	require.True(t, ok)
	assert.Equal(t, codes.AlreadyExists, s.Code())
	assert.Equal(t, "index already exists", s.Message())

	back := FromStatus(st)
	assert.ErrorIs(t, back, ErrAlreadyExists)
	assert.Equal(t, "index already exists", Message(back))

	assert.Nil(t, ToStatus(nil))
	assert.Nil(t, FromStatus(nil))
}

func TestRPCStatus(t *testing.T) {
	st := ToRPCStatus(New(ErrInvalidArgument, "manifest is corrupt"))
	assert.Equal(t, int32(codes.InvalidArgument), st.Code)
	assert.Equal(t, "manifest is corrupt", st.Message)

	err := FromRPCStatus(st)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.NoError(t, FromRPCStatus(nil))
}

func TestHTTPStatusCode(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, HTTPStatusCode(ErrNotFound))
	assert.Equal(t, http.StatusConflict, HTTPStatusCode(ErrAlreadyExists))
	assert.Equal(t, http.StatusTooManyRequests, HTTPStatusCode(ErrResourceExhausted))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatusCode(errors.New("x")))
	assert.Equal(t, codes.NotFound, CodeFromHTTPStatus(http.StatusNotFound))
}

func TestCodeNames(t *testing.T) {
	assert.Equal(t, "FAILED_PRECONDITION", CodeName(codes.FailedPrecondition))
	c, ok := CodeFromName("RESOURCE_EXHAUSTED")
	require.True(t, ok)
	assert.Equal(t, codes.ResourceExhausted, c)
	_, ok = CodeFromName("NOPE")
	assert.False(t, ok)
}
