package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/chromasync/internal/adapters/driven/embedding/hash"
	"github.com/custodia-labs/chromasync/internal/core/domain"
)

var errOOM = errors.New("out of memory")

func texts(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("text number %d", i)
	}
	return out
}

func TestAcquireEmbedder_ProbesAndSelectsDevice(t *testing.T) {
	svc := hash.NewEmbeddingService(hash.Config{Dimensions: 8})

	e, err := AcquireEmbedder(context.Background(), svc, EmbedderOptions{BatchSize: 4, Workers: 2})
	require.NoError(t, err)
	defer e.Release()

	assert.Equal(t, 8, e.Dimensions())
	assert.Equal(t, hash.DefaultModel, e.ModelName())
	assert.Equal(t, domain.DeviceAuto, e.Device())
	// The backend reports its size, so no probe call is made.
	assert.Equal(t, 0, svc.Calls())
}

func TestAcquireEmbedder_ForceCPU(t *testing.T) {
	svc := hash.NewEmbeddingService(hash.Config{Dimensions: 4})

	e, err := AcquireEmbedder(context.Background(), svc, EmbedderOptions{ForceCPU: true})
	require.NoError(t, err)
	defer e.Release()

	assert.Equal(t, domain.DeviceCPU, e.Device())
}

func TestAcquireEmbedder_PingFailureClosesService(t *testing.T) {
	svc := hash.NewEmbeddingService(hash.Config{})
	require.NoError(t, svc.Close())

	_, err := AcquireEmbedder(context.Background(), svc, EmbedderOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmbedding)
	assert.True(t, svc.Closed())
}

func TestAcquireEmbedder_NilService(t *testing.T) {
	_, err := AcquireEmbedder(context.Background(), nil, EmbedderOptions{})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestEmbedder_ReleaseIsIdempotent(t *testing.T) {
	svc := hash.NewEmbeddingService(hash.Config{})
	e, err := AcquireEmbedder(context.Background(), svc, EmbedderOptions{})
	require.NoError(t, err)

	require.NoError(t, e.Release())
	require.NoError(t, e.Release())
	assert.True(t, svc.Closed())
}

func TestEmbedder_EmbedKeepsOrder(t *testing.T) {
	svc := hash.NewEmbeddingService(hash.Config{Dimensions: 16})
	e, err := AcquireEmbedder(context.Background(), svc, EmbedderOptions{BatchSize: 3, Workers: 4})
	require.NoError(t, err)
	defer e.Release()

	in := texts(10)
	got, err := e.Embed(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, got, 10)
	assert.ElementsMatch(t, []int{3, 3, 3, 1}, svc.BatchSizes())

	for i, text := range in {
		want, err := svc.Embed(context.Background(), text)
		require.NoError(t, err)
		assert.Equal(t, want, got[i], "vector %d", i)
	}
}

func TestEmbedder_RetriesInHalves(t *testing.T) {
	svc := hash.NewEmbeddingService(hash.Config{Dimensions: 4})
	e, err := AcquireEmbedder(context.Background(), svc, EmbedderOptions{BatchSize: 8, Workers: 1})
	require.NoError(t, err)
	defer e.Release()

	svc.SetFailWhen(func(texts []string, _ domain.Device) error {
		if len(texts) > 4 {
			return errOOM
		}
		return nil
	})

	got, err := e.Embed(context.Background(), texts(8))
	require.NoError(t, err)
	assert.Len(t, got, 8)
	assert.Equal(t, []int{8, 4, 4}, svc.BatchSizes())
	assert.Equal(t, domain.DeviceAuto, e.Device())
}

func TestEmbedder_FallsBackToCPU(t *testing.T) {
	svc := hash.NewEmbeddingService(hash.Config{Dimensions: 4})
	e, err := AcquireEmbedder(context.Background(), svc, EmbedderOptions{BatchSize: 4, Workers: 1})
	require.NoError(t, err)
	defer e.Release()

	svc.SetFailWhen(func(_ []string, device domain.Device) error {
		if device != domain.DeviceCPU {
			return errOOM
		}
		return nil
	})

	got, err := e.Embed(context.Background(), texts(4))
	require.NoError(t, err)
	assert.Len(t, got, 4)
	assert.Equal(t, domain.DeviceCPU, e.Device())
	// Full batch, two halves on the accelerator, two halves on the CPU.
	assert.Equal(t, []int{4, 2, 2, 2}, svc.BatchSizes())
}

func TestEmbedder_FatalWhenCPUFails(t *testing.T) {
	svc := hash.NewEmbeddingService(hash.Config{Dimensions: 4})
	e, err := AcquireEmbedder(context.Background(), svc, EmbedderOptions{BatchSize: 4, Workers: 1})
	require.NoError(t, err)
	defer e.Release()

	svc.SetFailWhen(func([]string, domain.Device) error { return errOOM })

	_, err = e.Embed(context.Background(), texts(4))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmbedding)
	assert.False(t, domain.IsRetryableEmbedding(err))

	var embedErr *domain.EmbeddingError
	require.ErrorAs(t, err, &embedErr)
	assert.Equal(t, domain.DeviceCPU, embedErr.Device)
}

func TestEmbedder_NonRetryableIsNotHalved(t *testing.T) {
	svc := hash.NewEmbeddingService(hash.Config{Dimensions: 4})
	e, err := AcquireEmbedder(context.Background(), svc, EmbedderOptions{BatchSize: 4, Workers: 1})
	require.NoError(t, err)
	defer e.Release()

	svc.SetFailWhen(func(texts []string, device domain.Device) error {
		return &domain.EmbeddingError{BatchSize: len(texts), Device: device, Err: errors.New("bad request")}
	})

	_, err = e.Embed(context.Background(), texts(4))
	require.Error(t, err)
	assert.Equal(t, []int{4}, svc.BatchSizes())
}

func TestEmbedStream_CollectsEveryVector(t *testing.T) {
	svc := hash.NewEmbeddingService(hash.Config{Dimensions: 8})
	e, err := AcquireEmbedder(context.Background(), svc, EmbedderOptions{BatchSize: 3, Workers: 2})
	require.NoError(t, err)
	defer e.Release()

	var batched atomic.Int64
	stream := e.Stream(context.Background(), func(n int) { batched.Add(int64(n)) })
	for i, text := range texts(7) {
		require.NoError(t, stream.Submit(fmt.Sprintf("id-%d", i), text))
	}

	got, err := stream.Wait()
	require.NoError(t, err)
	require.Len(t, got, 7)
	assert.Equal(t, int64(7), batched.Load())

	want, err := svc.Embed(context.Background(), "text number 5")
	require.NoError(t, err)
	assert.Equal(t, want, got["id-5"])
}

func TestEmbedStream_ReportsFailure(t *testing.T) {
	svc := hash.NewEmbeddingService(hash.Config{Dimensions: 4})
	e, err := AcquireEmbedder(context.Background(), svc, EmbedderOptions{BatchSize: 2, Workers: 1})
	require.NoError(t, err)
	defer e.Release()

	svc.SetFailWhen(func([]string, domain.Device) error { return errOOM })

	stream := e.Stream(context.Background(), nil)
	for i, text := range texts(4) {
		// Submit may already observe the failure of an earlier batch.
		if err := stream.Submit(fmt.Sprintf("id-%d", i), text); err != nil {
			break
		}
	}
	_, err = stream.Wait()
	assert.ErrorIs(t, err, domain.ErrEmbedding)
}
