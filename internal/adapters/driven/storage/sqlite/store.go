package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/chromasync/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/chromasync/internal/core/domain"
	"github.com/custodia-labs/chromasync/internal/core/ports/driven"
)

const (
	// DirSuffix is appended to the collection name to form its directory.
	DirSuffix = ".chromasync"

	dbFile = "collection.db"

	// idsPerQuery bounds the number of bound parameters in one IN clause.
	idsPerQuery = 500
)

// Ensure Store implements the interface.
var _ driven.LocalStore = (*Store)(nil)

// Store is the SQLite-backed local copy of one collection.
type Store struct {
	db  *sql.DB
	dir string
}

// CollectionDir returns the directory holding the named collection under dir.
func CollectionDir(dir, collection string) string {
	return filepath.Join(dir, collection+DirSuffix)
}

// Open opens (creating if needed) the local store for collection under dir.
// It has the driven.LocalStoreOpener signature.
func Open(dir, collection string) (driven.LocalStore, error) {
	return NewStore(CollectionDir(dir, collection))
}

// NewStore creates a new SQLite store in the given collection directory.
func NewStore(collectionDir string) (*Store, error) {
	if collectionDir == "" {
		return nil, fmt.Errorf("%w: empty store directory", domain.ErrStorage)
	}

	// Ensure directory exists
	if err := os.MkdirAll(collectionDir, 0700); err != nil {
		return nil, fmt.Errorf("%w: creating collection directory: %v", domain.ErrStorage, err)
	}

	dbPath := filepath.Join(collectionDir, dbFile)

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %v", domain.ErrStorage, err)
	}

	s := &Store{db: db, dir: collectionDir}
	if err := s.migrate(migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: running migrations: %v", domain.ErrStorage, err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("%w: closing database: %v", domain.ErrStorage, err)
	}
	return nil
}

// Dir returns the collection directory.
func (s *Store) Dir() string {
	return s.dir
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if name := entry.Name(); strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_initial.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

// recordMetadata is the JSON form of domain.RecordMetadata in the metadata column.
type recordMetadata struct {
	Path          string `json:"source_file"`
	SequenceIndex int    `json:"sequence_index"`
	DocumentType  string `json:"chunk_type"`
	Language      string `json:"language,omitempty"`
	Archive       string `json:"source_archive"`
	StartOffset   int    `json:"start_offset"`
	EndOffset     int    `json:"end_offset"`
}

// Upsert inserts or replaces records in one transaction.
func (s *Store) Upsert(ctx context.Context, collection string, records []domain.ChunkRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("beginning transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (collection, id, text, embedding, content_hash, model, metadata, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(collection, id) DO UPDATE SET
			text = excluded.text,
			embedding = excluded.embedding,
			content_hash = excluded.content_hash,
			model = excluded.model,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at
		WHERE records.content_hash != excluded.content_hash
			OR records.model != excluded.model
			OR records.metadata != excluded.metadata
			OR records.embedding IS NOT excluded.embedding
	`)
	if err != nil {
		return storageErr("preparing upsert", err)
	}
	defer stmt.Close()

	for i := range records {
		r := &records[i]
		if r.ID == "" {
			return fmt.Errorf("%w: record %d has no id", domain.ErrStorage, i)
		}
		metaJSON, err := json.Marshal(toRecordMetadata(r.Metadata))
		if err != nil {
			return storageErr("marshalling metadata", err)
		}
		if _, err := stmt.ExecContext(ctx, collection, r.ID, r.Text,
			float32SliceToBytes(r.Embedding), r.ContentHash, r.Model, string(metaJSON)); err != nil {
			return storageErr("upserting record "+r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storageErr("committing upsert", err)
	}
	return nil
}

// LoadExistingIDs returns the ids stored for the collection.
func (s *Store) LoadExistingIDs(ctx context.Context, collection string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM records WHERE collection = ?`, collection)
	if err != nil {
		return nil, storageErr("querying ids", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, storageErr("scanning id", err)
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterating ids", err)
	}
	return ids, nil
}

// LoadRecords returns the records for ids in id order, skipping unknown ids.
func (s *Store) LoadRecords(ctx context.Context, collection string, ids []string) ([]domain.ChunkRecord, error) {
	var records []domain.ChunkRecord
	for start := 0; start < len(ids); start += idsPerQuery {
		end := min(start+idsPerQuery, len(ids))
		batch := ids[start:end]

		args := make([]any, 0, len(batch)+1)
		args = append(args, collection)
		for _, id := range batch {
			args = append(args, id)
		}
		query := `SELECT id, text, embedding, content_hash, model, metadata FROM records
			WHERE collection = ? AND id IN (?` + strings.Repeat(",?", len(batch)-1) + `)`

		found, err := s.queryRecords(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		records = append(records, found...)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

// AllRecords returns every record of the collection ordered by id.
func (s *Store) AllRecords(ctx context.Context, collection string) ([]domain.ChunkRecord, error) {
	return s.queryRecords(ctx, `SELECT id, text, embedding, content_hash, model, metadata FROM records
		WHERE collection = ? ORDER BY id`, collection)
}

// Entries returns id -> (content hash, model, source archive) for the collection.
func (s *Store) Entries(ctx context.Context, collection string) (map[string]domain.LocalEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content_hash, model, metadata FROM records WHERE collection = ?`, collection)
	if err != nil {
		return nil, storageErr("querying entries", err)
	}
	defer rows.Close()

	entries := make(map[string]domain.LocalEntry)
	for rows.Next() {
		var id, metaJSON string
		var e domain.LocalEntry
		if err := rows.Scan(&id, &e.Hash, &e.Model, &metaJSON); err != nil {
			return nil, storageErr("scanning entry", err)
		}
		var meta recordMetadata
		if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
			return nil, storageErr("decoding metadata of "+id, err)
		}
		e.Archive = meta.Archive
		entries[id] = e
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterating entries", err)
	}
	return entries, nil
}

// Prune deletes records whose id is not in keep.
func (s *Store) Prune(ctx context.Context, collection string, keep map[string]struct{}) (int, error) {
	existing, err := s.LoadExistingIDs(ctx, collection)
	if err != nil {
		return 0, err
	}

	var stale []string
	for id := range existing {
		if _, ok := keep[id]; !ok {
			stale = append(stale, id)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	sort.Strings(stale)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storageErr("beginning transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM records WHERE collection = ? AND id = ?`)
	if err != nil {
		return 0, storageErr("preparing prune", err)
	}
	defer stmt.Close()

	for _, id := range stale {
		if _, err := stmt.ExecContext(ctx, collection, id); err != nil {
			return 0, storageErr("pruning record "+id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, storageErr("committing prune", err)
	}
	return len(stale), nil
}

// DeleteCollection removes every record of the collection and its manifest.
func (s *Store) DeleteCollection(ctx context.Context, collection string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE collection = ?`, collection); err != nil {
		return storageErr("deleting records", err)
	}
	if err := os.Remove(s.manifestPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return storageErr("removing manifest", err)
	}
	return nil
}

// Count returns the number of records stored for the collection.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	var n int
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE collection = ?`, collection)
	if err := row.Scan(&n); err != nil {
		return 0, storageErr("counting records", err)
	}
	return n, nil
}

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]domain.ChunkRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("querying records", err)
	}
	defer rows.Close()

	var records []domain.ChunkRecord
	for rows.Next() {
		var r domain.ChunkRecord
		var blob []byte
		var metaJSON string
		if err := rows.Scan(&r.ID, &r.Text, &blob, &r.ContentHash, &r.Model, &metaJSON); err != nil {
			return nil, storageErr("scanning record", err)
		}
		r.Embedding = bytesToFloat32Slice(blob)

		var meta recordMetadata
		if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
			return nil, storageErr("decoding metadata of "+r.ID, err)
		}
		r.Metadata = meta.domain()
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterating records", err)
	}
	return records, nil
}

// ==================== Helper Functions ====================

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrStorage, op, err)
}

func toRecordMetadata(m domain.RecordMetadata) recordMetadata {
	return recordMetadata{
		Path:          m.Path,
		SequenceIndex: m.SequenceIndex,
		DocumentType:  string(m.DocumentType),
		Language:      m.Language,
		Archive:       m.Archive,
		StartOffset:   m.StartOffset,
		EndOffset:     m.EndOffset,
	}
}

func (m recordMetadata) domain() domain.RecordMetadata {
	return domain.RecordMetadata{
		Path:          m.Path,
		SequenceIndex: m.SequenceIndex,
		DocumentType:  domain.DocumentType(m.DocumentType),
		Language:      m.Language,
		Archive:       m.Archive,
		StartOffset:   m.StartOffset,
		EndOffset:     m.EndOffset,
	}
}

// float32SliceToBytes converts a []float32 to a little-endian byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
