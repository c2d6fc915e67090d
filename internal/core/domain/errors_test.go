package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestErrors_Existence tests that all error variables exist and are not nil
func TestErrors_Existence(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrNotFound", ErrNotFound},
		{"ErrInvalidInput", ErrInvalidInput},
		{"ErrUnsupportedType", ErrUnsupportedType},
		{"ErrConfiguration", ErrConfiguration},
		{"ErrArchive", ErrArchive},
		{"ErrEmbedding", ErrEmbedding},
		{"ErrStorage", ErrStorage},
		{"ErrRemote", ErrRemote},
		{"ErrSyncAborted", ErrSyncAborted},
		{"ErrSyncIncomplete", ErrSyncIncomplete},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

// TestEmbeddingError tests wrapping and classification
func TestEmbeddingError(t *testing.T) {
	cause := errors.New("CUDA out of memory")
	err := fmt.Errorf("batch 4: %w", &EmbeddingError{
		BatchSize: 16,
		Device:    DeviceAuto,
		Retryable: true,
		Err:       cause,
	})

	assert.ErrorIs(t, err, ErrEmbedding)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrRemote)
	assert.True(t, IsRetryableEmbedding(err))
	assert.Contains(t, err.Error(), "batch 16 on auto")

	assert.False(t, IsRetryableEmbedding(&EmbeddingError{Err: cause}))
	assert.False(t, IsRetryableEmbedding(cause))
}

// TestRemoteError tests wrapping and classification
func TestRemoteError(t *testing.T) {
	tests := []struct {
		name        string
		err         *RemoteError
		wantMsg     string
		wantNetwork bool
		wantMissing bool
	}{
		{
			name:        "transport failure",
			err:         &RemoteError{Op: "upsert", Collection: "docs", Network: true, Err: errors.New("connection refused")},
			wantMsg:     "remote upsert docs: connection refused",
			wantNetwork: true,
		},
		{
			name:        "not found",
			err:         &RemoteError{Op: "get collection", Collection: "docs", StatusCode: 404},
			wantMsg:     "remote get collection docs (status 404)",
			wantMissing: true,
		},
		{
			name:    "server error",
			err:     &RemoteError{Op: "heartbeat", StatusCode: 500, Err: errors.New("boom")},
			wantMsg: "remote heartbeat (status 500): boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("sync: %w", tt.err)
			assert.Equal(t, tt.wantMsg, tt.err.Error())
			assert.ErrorIs(t, wrapped, ErrRemote)
			assert.Equal(t, tt.wantNetwork, IsNetworkError(wrapped))
			assert.Equal(t, tt.wantMissing, errors.Is(wrapped, ErrNotFound))
		})
	}

	assert.False(t, IsNetworkError(errors.New("plain")))
}
