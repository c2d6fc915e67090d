package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/chromasync/internal/core/domain"
	"github.com/custodia-labs/chromasync/internal/core/ports/driven"
	"github.com/custodia-labs/chromasync/internal/logger"
)

// dimensionProbe is embedded once when the backend cannot report its size.
const dimensionProbe = "dimension probe"

// EmbedderOptions bound the work an Embedder does per call.
type EmbedderOptions struct {
	// BatchSize is the maximum number of texts per backend call.
	BatchSize int

	// Workers is the maximum number of concurrent backend calls.
	Workers int

	// ForceCPU keeps inference off accelerators from the start.
	ForceCPU bool
}

// Embedder owns an embedding backend for the length of one run. It is
// acquired once, shared by every batch, and released on every exit path.
type Embedder struct {
	svc      driven.EmbeddingService
	selector driven.DeviceSelector
	opts     EmbedderOptions
	dims     int

	// deviceMu serialises the fallback to CPU across concurrent batches.
	deviceMu sync.Mutex

	releaseOnce sync.Once
	releaseErr  error
}

// AcquireEmbedder pings svc, selects the device and learns the vector size.
// On error svc has already been closed.
func AcquireEmbedder(ctx context.Context, svc driven.EmbeddingService, opts EmbedderOptions) (*Embedder, error) {
	if svc == nil {
		return nil, fmt.Errorf("%w: no embedding service", domain.ErrConfiguration)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = domain.DefaultEmbedBatchSize
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}

	e := &Embedder{svc: svc, opts: opts}
	e.selector, _ = svc.(driven.DeviceSelector)

	fail := func(err error) (*Embedder, error) {
		_ = svc.Close()
		return nil, err
	}

	if err := svc.Ping(ctx); err != nil {
		return fail(fmt.Errorf("%w: %s unavailable: %w", domain.ErrEmbedding, svc.ModelName(), err))
	}

	if e.selector != nil {
		device := domain.DeviceAuto
		if opts.ForceCPU {
			device = domain.DeviceCPU
		}
		if err := e.selector.SetDevice(device); err != nil {
			return fail(fmt.Errorf("%w: select device %s: %w", domain.ErrEmbedding, device, err))
		}
	}

	e.dims = svc.Dimensions()
	if e.dims == 0 {
		vecs, err := e.embedBatch(ctx, []string{dimensionProbe})
		if err != nil {
			return fail(err)
		}
		e.dims = len(vecs[0])
	}
	if e.dims == 0 {
		return fail(&domain.EmbeddingError{BatchSize: 1, Device: e.Device(), Err: errors.New("model returned empty vectors")})
	}

	logger.Debug("Embedder ready: model=%s dims=%d device=%s batch=%d workers=%d",
		svc.ModelName(), e.dims, e.Device(), opts.BatchSize, opts.Workers)
	return e, nil
}

// Release closes the backend. Calling it more than once is safe.
func (e *Embedder) Release() error {
	e.releaseOnce.Do(func() {
		e.releaseErr = e.svc.Close()
	})
	return e.releaseErr
}

// Dimensions returns the probed vector size.
func (e *Embedder) Dimensions() int {
	return e.dims
}

// ModelName returns the backend model name.
func (e *Embedder) ModelName() string {
	return e.svc.ModelName()
}

// Device returns the device in use, DeviceAuto when the backend cannot choose.
func (e *Embedder) Device() domain.Device {
	if e.selector == nil {
		return domain.DeviceAuto
	}
	return e.selector.Device()
}

// Embed returns one vector per text, in input order.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)

	for start := 0; start < len(texts); start += e.opts.BatchSize {
		end := min(start+e.opts.BatchSize, len(texts))
		g.Go(func() error {
			vecs, err := e.embedBatch(gctx, texts[start:end])
			if err != nil {
				return err
			}
			copy(out[start:end], vecs)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// embedBatch embeds one batch under the failure policy: a retryable failure
// is retried once in halves; if the halves fail too, inference moves to the
// CPU and the halves are tried again. Anything left is fatal.
func (e *Embedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := e.call(ctx, texts)
	if err == nil {
		return vecs, nil
	}
	if !domain.IsRetryableEmbedding(err) {
		return nil, err
	}

	half := (len(texts) + 1) / 2
	logger.Warn("Embedding batch of %d failed, retrying in batches of %d: %v", len(texts), half, err)
	vecs, err = e.halves(ctx, texts, half)
	if err == nil {
		return vecs, nil
	}
	if !domain.IsRetryableEmbedding(err) {
		return nil, err
	}

	if !e.fallBackToCPU(err) {
		return nil, fatalEmbedding(err)
	}
	vecs, err = e.halves(ctx, texts, half)
	if err != nil {
		return nil, fatalEmbedding(err)
	}
	return vecs, nil
}

// halves embeds texts in sub-batches of size n, sequentially.
func (e *Embedder) halves(ctx context.Context, texts []string, n int) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += n {
		end := min(start+n, len(texts))
		vecs, err := e.call(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// fallBackToCPU moves the shared backend to the CPU. It returns false when
// no further fallback exists.
func (e *Embedder) fallBackToCPU(cause error) bool {
	if e.selector == nil {
		return false
	}

	e.deviceMu.Lock()
	defer e.deviceMu.Unlock()

	if e.selector.Device() == domain.DeviceCPU {
		// Already switched by another batch.
		var embedErr *domain.EmbeddingError
		return errors.As(cause, &embedErr) && embedErr.Device != domain.DeviceCPU
	}
	if err := e.selector.SetDevice(domain.DeviceCPU); err != nil {
		logger.Warn("Could not switch embedding to CPU: %v", err)
		return false
	}
	logger.Warn("Embedding failed on the accelerator, falling back to CPU: %v", cause)
	return true
}

// call makes one backend call and checks the result shape.
func (e *Embedder) call(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := e.svc.EmbedBatch(ctx, texts)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var embedErr *domain.EmbeddingError
		if !errors.As(err, &embedErr) {
			err = &domain.EmbeddingError{BatchSize: len(texts), Device: e.Device(), Err: err}
		}
		return nil, err
	}

	if len(vecs) != len(texts) {
		return nil, &domain.EmbeddingError{
			BatchSize: len(texts),
			Device:    e.Device(),
			Retryable: true,
			Err:       fmt.Errorf("got %d vectors for %d texts", len(vecs), len(texts)),
		}
	}
	if e.dims > 0 {
		for i, v := range vecs {
			if len(v) != e.dims {
				return nil, &domain.EmbeddingError{
					BatchSize: len(texts),
					Device:    e.Device(),
					Err:       fmt.Errorf("vector %d has %d dimensions, expected %d", i, len(v), e.dims),
				}
			}
		}
	}
	return vecs, nil
}

// fatalEmbedding marks an exhausted failure as no longer retryable.
func fatalEmbedding(err error) error {
	var embedErr *domain.EmbeddingError
	if errors.As(err, &embedErr) {
		cp := *embedErr
		cp.Retryable = false
		return &cp
	}
	return err
}

// ==================== Streaming ====================

// EmbedStream accepts texts one at a time and embeds them in background
// batches, so embedding overlaps with extraction and chunking.
type EmbedStream struct {
	e   *Embedder
	g   *errgroup.Group
	ctx context.Context

	// onBatch is told the size of every completed batch.
	onBatch func(n int)

	mu      sync.Mutex
	pending []streamItem
	results map[string][]float32
}

type streamItem struct {
	id   string
	text string
}

// Stream starts a streaming session bound to ctx. onBatch may be nil.
func (e *Embedder) Stream(ctx context.Context, onBatch func(n int)) *EmbedStream {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	return &EmbedStream{
		e:       e,
		g:       g,
		ctx:     gctx,
		onBatch: onBatch,
		results: make(map[string][]float32),
	}
}

// Submit queues text under id. A full batch is dispatched immediately and
// Submit blocks while every worker is busy. It returns the first batch error
// seen so far, or the context error.
func (s *EmbedStream) Submit(id, text string) error {
	if err := s.ctx.Err(); err != nil {
		return context.Cause(s.ctx)
	}

	s.mu.Lock()
	s.pending = append(s.pending, streamItem{id: id, text: text})
	var batch []streamItem
	if len(s.pending) >= s.e.opts.BatchSize {
		batch = s.pending
		s.pending = nil
	}
	s.mu.Unlock()

	if batch != nil {
		s.dispatch(batch)
	}
	return nil
}

// Wait flushes the last partial batch and returns id -> vector for every
// submitted text.
func (s *EmbedStream) Wait() (map[string][]float32, error) {
	s.mu.Lock()
	batch := s.pending
	s.pending = nil
	s.mu.Unlock()

	if len(batch) > 0 {
		s.dispatch(batch)
	}
	if err := s.g.Wait(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results, nil
}

func (s *EmbedStream) dispatch(batch []streamItem) {
	s.g.Go(func() error {
		texts := make([]string, len(batch))
		for i, item := range batch {
			texts[i] = item.text
		}
		vecs, err := s.e.embedBatch(s.ctx, texts)
		if err != nil {
			return err
		}

		s.mu.Lock()
		for i, item := range batch {
			s.results[item.id] = vecs[i]
		}
		s.mu.Unlock()

		if s.onBatch != nil {
			s.onBatch(len(batch))
		}
		return nil
	})
}
