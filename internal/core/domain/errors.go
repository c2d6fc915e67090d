package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown archive format or embedding provider.
	ErrUnsupportedType = errors.New("unsupported type")

	// Run errors. Every failure surfaced by a run wraps exactly one of these.

	// ErrConfiguration indicates invalid run settings.
	// Fatal and pre-flight: nothing has been mutated.
	ErrConfiguration = errors.New("configuration error")

	// ErrArchive indicates the input archive cannot be opened or is corrupt.
	// Fatal and pre-flight: nothing has been mutated.
	ErrArchive = errors.New("archive error")

	// ErrEmbedding indicates a model or device failure that survived the
	// halved-batch retry and the CPU fallback.
	ErrEmbedding = errors.New("embedding error")

	// ErrStorage indicates a local persistence failure.
	// Fatal: the local collection is the source of truth for the remote sync.
	ErrStorage = errors.New("storage error")

	// ErrRemote indicates a network, auth or server failure talking to the
	// remote vector store.
	ErrRemote = errors.New("remote error")

	// ErrSyncAborted indicates the remote became unreachable during APPLY.
	// Batches applied before the disconnect remain applied.
	ErrSyncAborted = errors.New("sync aborted")

	// ErrSyncIncomplete indicates some batches failed to apply.
	ErrSyncIncomplete = errors.New("sync incomplete")
)

// Device identifies where embeddings are computed.
type Device string

// Available devices.
const (
	// DeviceAuto lets the backend pick an accelerator when available.
	DeviceAuto Device = "auto"

	// DeviceCPU forces general-purpose compute.
	DeviceCPU Device = "cpu"
)

// EmbeddingError is a model or device failure for one batch.
type EmbeddingError struct {
	// BatchSize is the number of texts in the failed call.
	BatchSize int

	// Device is the device in use when the call failed.
	Device Device

	// Retryable is true for out-of-memory, malformed input and device errors.
	Retryable bool

	Err error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding error (batch %d on %s): %v", e.BatchSize, e.Device, e.Err)
}

// Unwrap returns the underlying error.
func (e *EmbeddingError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrEmbedding.
func (e *EmbeddingError) Is(target error) bool {
	return target == ErrEmbedding
}

// RemoteError is a failed call against the remote vector store.
type RemoteError struct {
	// Op is the remote operation, e.g. "upsert".
	Op string

	// Collection is the target collection, empty for server-level calls.
	Collection string

	// IDs are the record ids the call affected.
	IDs []string

	// StatusCode is the HTTP status, 0 for transport failures.
	StatusCode int

	// Network is true when the request never got an HTTP response.
	Network bool

	Err error
}

func (e *RemoteError) Error() string {
	var b strings.Builder
	b.WriteString("remote ")
	b.WriteString(e.Op)
	if e.Collection != "" {
		b.WriteString(" ")
		b.WriteString(e.Collection)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrRemote, or ErrNotFound for 404 responses.
func (e *RemoteError) Is(target error) bool {
	if target == ErrRemote {
		return true
	}
	return target == ErrNotFound && e.StatusCode == 404
}

// IsNetworkError returns true if err is a remote transport failure.
func IsNetworkError(err error) bool {
	var remoteErr *RemoteError
	if errors.As(err, &remoteErr) {
		return remoteErr.Network
	}
	return false
}

// IsNotFound returns true if err reports a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRetryableEmbedding returns true if err is an embedding failure worth retrying.
func IsRetryableEmbedding(err error) bool {
	var embedErr *EmbeddingError
	if errors.As(err, &embedErr) {
		return embedErr.Retryable
	}
	return false
}
