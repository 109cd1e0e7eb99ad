package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"syscall"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "connection reset", err: fmt.Errorf("read: %w", syscall.ECONNRESET), want: true},
		{name: "timed out", err: syscall.ETIMEDOUT, want: true},
		{name: "net timeout", err: timeoutError{}, want: true},
		{name: "pq connection exception", err: &pq.Error{Code: "08006"}, want: true},
		{name: "pq too many connections", err: &pq.Error{Code: "53300"}, want: true},
		{name: "pq unique violation", err: &pq.Error{Code: "23505"}, want: false},
		{name: "no rows", err: sql.ErrNoRows, want: false},
		{name: "context canceled", err: context.Canceled, want: false},
		{name: "plain error", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestRetryRetriesTransientErrors(t *testing.T) {
	d := New(nil, 3, time.Millisecond)

	calls := 0
	err := d.Retry(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return syscall.ECONNRESET
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryGivesUpAfterMaxAttempts(t *testing.T) {
	d := New(nil, 2, time.Millisecond)

	calls := 0
	err := d.Retry(context.Background(), func(ctx context.Context) error {
		calls++
		return syscall.ETIMEDOUT
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, syscall.ETIMEDOUT)
	assert.Equal(t, 3, calls)
}

func TestRetryDoesNotRetryPermanentErrors(t *testing.T) {
	d := New(nil, 5, time.Millisecond)

	calls := 0
	permanent := errors.New("syntax error")
	err := d.Retry(context.Background(), func(ctx context.Context) error {
		calls++
		return permanent
	})

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}
