package services

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/chromasync/internal/core/domain"
	"github.com/custodia-labs/chromasync/internal/core/ports/driven"
	"github.com/custodia-labs/chromasync/internal/core/ports/driving"
	"github.com/custodia-labs/chromasync/internal/logger"
)

// Ensure IndexService implements the interface.
var _ driving.IndexService = (*IndexService)(nil)

// localWriteBatch bounds the records written to the local store per call.
const localWriteBatch = 500

// IndexDeps are the adapters an IndexService drives.
type IndexDeps struct {
	OpenSource  driven.SourceOpener
	Normaliser  driven.Normaliser
	Pipelines   driven.PipelineFactory
	Embeddings  driven.EmbeddingFactory
	OpenLocal   driven.LocalStoreOpener
	OpenRemote  driven.VectorStoreFactory
	LocalDirFor func(outputDir, collection string) string
}

// IndexService runs archive -> chunks -> local collection -> remote collection.
type IndexService struct {
	deps IndexDeps
	now  func() time.Time
}

// NewIndexService creates an index service.
func NewIndexService(deps IndexDeps) *IndexService {
	return &IndexService{deps: deps, now: time.Now}
}

// Index runs the full pipeline.
func (s *IndexService) Index(
	ctx context.Context,
	archivePath string,
	settings domain.RunSettings,
	observer domain.ProgressObserver,
) (*domain.RunReport, error) {
	return s.run(ctx, archivePath, settings, observer)
}

// Plan runs the pipeline up to DIFF. The local collection is brought up to
// date; the remote is only read.
func (s *IndexService) Plan(
	ctx context.Context,
	archivePath string,
	settings domain.RunSettings,
	observer domain.ProgressObserver,
) (*domain.RunReport, error) {
	settings.DryRun = true
	settings.NoSync = false
	return s.run(ctx, archivePath, settings, observer)
}

// runState carries the counters of one run.
type runState struct {
	report   *domain.RunReport
	observer domain.ProgressObserver

	mu       sync.Mutex
	embedded int
	pending  int
}

func (r *runState) progress(stage domain.Stage, done, total int, msg string) {
	if r.observer != nil {
		r.observer.Progress(domain.ProgressEvent{Stage: stage, Done: done, Total: total, Message: msg})
	}
}

//nolint:gocyclo // Orchestration function with necessary sequential steps
func (s *IndexService) run(
	ctx context.Context,
	archivePath string,
	settings domain.RunSettings,
	observer domain.ProgressObserver,
) (report *domain.RunReport, err error) {
	start := s.now()
	runID := uuid.NewString()
	logger.SetPrefix(runID[:8])
	defer logger.SetPrefix("")

	name := settings.CollectionName(archivePath)
	settings.Name = name
	report = &domain.RunReport{RunID: runID, Collection: name}
	defer func() { report.Duration = s.now().Sub(start) }()
	st := &runState{report: report, observer: observer}

	// 1. Pre-flight: nothing is touched until settings and archive check out.
	if err := settings.Validate(); err != nil {
		return report, err
	}
	src, err := s.deps.OpenSource(archivePath, settings.ExtraExtensions)
	if err != nil {
		return report, err
	}
	report.Archive = filepath.Base(src.Path())
	pipeline, err := s.deps.Pipelines(settings.ChunkSize, settings.ChunkOverlap)
	if err != nil {
		return report, err
	}
	logger.Section("Index: " + name)
	logger.Info("Archive %s -> collection %s", src.Path(), name)
	defer logger.Timed("Index of " + name)()

	// 2. Embedder, scoped to the run.
	svc, err := s.deps.Embeddings(ctx, settings.Embedding)
	if err != nil {
		return report, err
	}
	embedder, err := AcquireEmbedder(ctx, svc, EmbedderOptions{
		BatchSize: settings.EmbedBatchSize,
		Workers:   settings.EmbedWorkers,
		ForceCPU:  settings.ForceCPU,
	})
	if err != nil {
		return report, err
	}
	defer func() {
		if relErr := embedder.Release(); relErr != nil {
			logger.Warn("Releasing embedder: %v", relErr)
		}
	}()
	model := embedder.ModelName()
	dims := embedder.Dimensions()
	report.Model = model
	report.Dimensions = dims

	// 3. Local store and manifest policy.
	local, err := s.deps.OpenLocal(settings.OutputDir, name)
	if err != nil {
		return report, err
	}
	defer func() {
		if cerr := local.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if s.deps.LocalDirFor != nil {
		report.LocalPath = s.deps.LocalDirFor(settings.OutputDir, name)
	}

	manifest, err := local.ReadManifest(ctx, name)
	if err != nil {
		return report, err
	}
	if !manifest.Compatible(model, dims) {
		logger.Warn("Local collection %s was built with %s (%d dims), rebuilding for %s (%d dims)",
			name, manifest.ModelName, manifest.EmbeddingDimensionality, model, dims)
		if err := local.DeleteCollection(ctx, name); err != nil {
			return report, err
		}
		report.LocalReset = true
	}

	// 4. Known records.
	known, err := local.Entries(ctx, name)
	if err != nil {
		return report, err
	}

	// 5. Stream extraction and chunking into the embedder.
	stream := embedder.Stream(ctx, func(n int) {
		st.mu.Lock()
		st.embedded += n
		done, total := st.embedded, st.pending
		st.mu.Unlock()
		st.progress(domain.StageEmbed, done, total, "")
	})
	fresh, relabel, keep, err := s.extract(ctx, src, pipeline, stream, known, model, st)
	if err != nil {
		// Drain background batches before returning.
		_, _ = stream.Wait()
		return report, err
	}

	// 6. Barrier: every vector is computed before anything is written.
	vectors, err := stream.Wait()
	if err != nil {
		return report, err
	}
	for i := range fresh {
		fresh[i].Embedding = vectors[fresh[i].ID]
	}
	report.Embedded = len(fresh)

	writes := fresh
	if len(relabel) > 0 {
		moved, err := withStoredVectors(ctx, local, name, relabel)
		if err != nil {
			return report, err
		}
		logger.Debug("%d reused records now come from %s", len(moved), report.Archive)
		writes = append(writes, moved...)
	}
	for start := 0; start < len(writes); start += localWriteBatch {
		end := min(start+localWriteBatch, len(writes))
		if err := local.Upsert(ctx, name, writes[start:end]); err != nil {
			return report, err
		}
		st.progress(domain.StageStore, end, len(writes), "")
	}

	pruned, err := local.Prune(ctx, name, keep)
	if err != nil {
		return report, err
	}
	report.Pruned = pruned

	if err := local.WriteManifest(ctx, &domain.Manifest{
		Collection:              name,
		ModelName:               model,
		EmbeddingDimensionality: dims,
		ChunkSize:               settings.ChunkSize,
		ChunkOverlap:            settings.ChunkOverlap,
		RecordCount:             len(keep),
		SourceArchive:           report.Archive,
		LastRunID:               runID,
		UpdatedAt:               s.now().UTC(),
	}); err != nil {
		return report, err
	}
	logger.Info("Local collection %s: %d records (%d embedded, %d reused, %d pruned)",
		name, len(keep), report.Embedded, report.Reused, report.Pruned)

	// 7. Remote sync against the completed local collection.
	if settings.NoSync {
		st.progress(domain.StageDone, 1, 1, "")
		return report, nil
	}

	entries, err := local.Entries(ctx, name)
	if err != nil {
		return report, err
	}
	remote, err := s.deps.OpenRemote(settings.Remote)
	if err != nil {
		return report, err
	}
	defer remote.Close()

	st.progress(domain.StageSync, 0, len(entries), "")
	summary, syncErr := NewSyncer(remote).Sync(ctx, SyncRequest{
		Collection:   name,
		Local:        local,
		Entries:      entries,
		Model:        model,
		Dimensions:   dims,
		ChunkSize:    settings.ChunkSize,
		ChunkOverlap: settings.ChunkOverlap,
		ResetTarget:  settings.ResetRemote || report.LocalReset,
		ResetAll:     settings.ResetAll,
		DryRun:       settings.DryRun,
		BatchSize:    settings.SyncBatchSize,
	})
	report.Sync = summary
	st.progress(domain.StageDone, 1, 1, string(summary.State))
	return report, syncErr
}

// extract streams documents through the chunk pipeline. Records whose id
// and hash are already stored under the same model are reused; the rest
// are submitted to the embedder and returned without vectors. Reused
// records stored under another archive name come back in relabel so their
// metadata can be rewritten. keep is the id set of the fresh local state.
func (s *IndexService) extract(
	ctx context.Context,
	src driven.DocumentSource,
	pipeline driven.PostProcessorPipeline,
	stream *EmbedStream,
	known map[string]domain.LocalEntry,
	model string,
	st *runState,
) (fresh, relabel []domain.ChunkRecord, keep map[string]struct{}, err error) {
	report := st.report
	keep = make(map[string]struct{})

	docs, errs := src.Documents(ctx)
	for raw := range docs {
		res, err := s.deps.Normaliser.Normalise(ctx, &raw)
		if err != nil {
			logger.Warn("Skipping %s: %v", raw.Path, err)
			report.Skipped++
			continue
		}
		doc := res.Document
		if res.Lossy {
			logger.Debug("%s: dropped invalid %s sequences", doc.Path, res.Encoding)
		}

		chunks, err := pipeline.Process(ctx, &doc)
		if err != nil {
			drain(docs)
			return nil, nil, nil, fmt.Errorf("chunk %s: %w", doc.Path, err)
		}
		report.Documents++
		if len(chunks) == 0 {
			report.EmptyDocuments++
			logger.Debug("%s has no text", doc.Path)
		}

		for _, chunk := range chunks {
			if _, dup := keep[chunk.ID]; dup {
				continue
			}
			keep[chunk.ID] = struct{}{}
			report.Chunks++

			if k, ok := known[chunk.ID]; ok && k.Hash == chunk.ContentHash && k.Model == model {
				report.Reused++
				if k.Archive != doc.Archive {
					relabel = append(relabel, domain.NewChunkRecord(&doc, chunk, model))
				}
				continue
			}

			fresh = append(fresh, domain.NewChunkRecord(&doc, chunk, model))
			st.mu.Lock()
			st.pending++
			st.mu.Unlock()
			if err := stream.Submit(chunk.ID, chunk.Text); err != nil {
				drain(docs)
				return nil, nil, nil, err
			}
		}
		st.progress(domain.StageExtract, report.Documents, 0, doc.Path)
	}

	if err := <-errs; err != nil {
		return nil, nil, nil, err
	}
	report.Skipped += src.Stats().Skipped
	logger.Info("Extracted %d documents (%d skipped, %d empty) into %d chunks",
		report.Documents, report.Skipped, report.EmptyDocuments, report.Chunks)
	return fresh, relabel, keep, nil
}

// withStoredVectors copies the stored embedding onto each record. Records
// with no stored row are dropped.
func withStoredVectors(
	ctx context.Context, local driven.LocalStore, collection string, records []domain.ChunkRecord,
) ([]domain.ChunkRecord, error) {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	stored, err := local.LoadRecords(ctx, collection, ids)
	if err != nil {
		return nil, err
	}
	vectors := make(map[string][]float32, len(stored))
	for _, r := range stored {
		vectors[r.ID] = r.Embedding
	}

	out := make([]domain.ChunkRecord, 0, len(records))
	for _, r := range records {
		if v, ok := vectors[r.ID]; ok {
			r.Embedding = v
			out = append(out, r)
		}
	}
	return out, nil
}

// drain discards the rest of a document channel so its producer can exit.
func drain(docs <-chan domain.RawDocument) {
	for range docs {
	}
}
