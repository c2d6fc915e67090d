// Package archive streams the supported entries of an input archive.
//
// Supported containers are zip, tar, tar.gz, tar.zst, tar.lz4 and plain
// directories. Every pass re-opens the container, so Documents can be
// called again after a run completes.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/custodia-labs/chromasync/internal/core/domain"
	"github.com/custodia-labs/chromasync/internal/core/ports/driven"
	"github.com/custodia-labs/chromasync/internal/logger"
)

// Ensure Archive implements the interface.
var _ driven.DocumentSource = (*Archive)(nil)

// binarySniffLen is how much of an entry is checked for NUL bytes.
const binarySniffLen = 8 * 1024

// Archive is an opened input archive.
type Archive struct {
	path     string
	name     string
	format   Format
	detector *domain.TypeDetector

	// maxEntrySize skips larger entries; 0 means unlimited.
	maxEntrySize int64

	mu    sync.Mutex
	stats driven.ExtractStats
}

// Option configures an Archive.
type Option func(*Archive)

// WithExtraExtensions accepts additional extensions as TypeUnknown documents.
func WithExtraExtensions(exts ...string) Option {
	return func(a *Archive) {
		a.detector = domain.NewTypeDetector(exts...)
	}
}

// WithMaxEntrySize skips entries larger than n bytes.
func WithMaxEntrySize(n int64) Option {
	return func(a *Archive) {
		if n > 0 {
			a.maxEntrySize = n
		}
	}
}

// Open detects the container format of p and verifies it can be read.
// Every failure wraps domain.ErrArchive.
func Open(p string, opts ...Option) (*Archive, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrArchive, err)
	}

	format := FormatDirectory
	if !info.IsDir() {
		format = DetectFormat(p)
		if format == FormatUnknown {
			return nil, fmt.Errorf("%w: %s: %w: expected .zip, .tar, .tar.gz, .tar.zst or .tar.lz4",
				domain.ErrArchive, p, domain.ErrUnsupportedType)
		}
	}

	a := &Archive{
		path:     p,
		name:     TrimExtension(filepath.Base(filepath.Clean(p))),
		format:   format,
		detector: domain.NewTypeDetector(),
	}
	for _, opt := range opts {
		opt(a)
	}

	if err := a.verify(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrArchive, p, err)
	}

	logger.Debug("opened %s archive %s", format, p)
	return a, nil
}

// Name returns the archive base name without container extensions.
func (a *Archive) Name() string {
	return a.name
}

// Path returns the archive location on disk.
func (a *Archive) Path() string {
	return a.path
}

// Format returns the detected container format.
func (a *Archive) Format() Format {
	return a.format
}

// Stats returns the counters of the most recently completed pass.
func (a *Archive) Stats() driven.ExtractStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// Documents streams the supported entries of the archive.
// The document channel is closed before the error channel.
func (a *Archive) Documents(ctx context.Context) (<-chan domain.RawDocument, <-chan error) {
	docs := make(chan domain.RawDocument, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(errs)
		defer close(docs)

		var stats driven.ExtractStats
		source := filepath.Base(filepath.Clean(a.path))

		err := a.walk(ctx, func(name string, size int64, open opener) error {
			stats.Entries++

			doc, ok, err := a.read(name, size, open)
			if err != nil {
				return err
			}
			if !ok {
				stats.Skipped++
				return nil
			}
			doc.Archive = source

			select {
			case docs <- doc:
				stats.Emitted++
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})

		a.mu.Lock()
		a.stats = stats
		a.mu.Unlock()

		if err != nil {
			if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				err = fmt.Errorf("%w: %s: %w", domain.ErrArchive, a.path, err)
			}
			errs <- err
		}
	}()

	return docs, errs
}

// read turns one entry into a RawDocument. ok is false for skipped entries.
func (a *Archive) read(name string, size int64, open opener) (domain.RawDocument, bool, error) {
	entryPath, safe := cleanEntryPath(name)
	if !safe {
		logger.Debug("skipping unsafe entry %q", name)
		return domain.RawDocument{}, false, nil
	}
	if isHidden(entryPath) {
		return domain.RawDocument{}, false, nil
	}

	docType, language, supported := a.detector.Detect(entryPath)
	if !supported {
		logger.Debug("skipping unsupported entry %s", entryPath)
		return domain.RawDocument{}, false, nil
	}

	if a.maxEntrySize > 0 && size > a.maxEntrySize {
		logger.Warn("skipping %s: %d bytes exceeds limit of %d", entryPath, size, a.maxEntrySize)
		return domain.RawDocument{}, false, nil
	}

	rc, err := open()
	if err != nil {
		return domain.RawDocument{}, false, fmt.Errorf("open entry %s: %w", entryPath, err)
	}
	content, err := io.ReadAll(rc)
	closeErr := rc.Close()
	if err != nil {
		return domain.RawDocument{}, false, fmt.Errorf("read entry %s: %w", entryPath, err)
	}
	if closeErr != nil {
		return domain.RawDocument{}, false, fmt.Errorf("read entry %s: %w", entryPath, closeErr)
	}

	if looksBinary(content) {
		logger.Debug("skipping binary entry %s", entryPath)
		return domain.RawDocument{}, false, nil
	}

	return domain.RawDocument{
		Path:     entryPath,
		Content:  content,
		Type:     docType,
		Language: language,
	}, true, nil
}

// cleanEntryPath normalises an entry name to a relative slash path.
// safe is false for names that escape the archive root.
func cleanEntryPath(name string) (string, bool) {
	p := strings.ReplaceAll(name, "\\", "/")
	p = path.Clean("/" + p)
	p = strings.TrimPrefix(p, "/")
	if p == "" || p == "." {
		return "", false
	}
	if strings.Contains(name, "..") {
		for _, part := range strings.Split(strings.ReplaceAll(name, "\\", "/"), "/") {
			if part == ".." {
				return "", false
			}
		}
	}
	return p, true
}

// isHidden reports whether any path component is dot-prefixed.
func isHidden(p string) bool {
	for _, part := range strings.Split(p, "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

// looksBinary reports a NUL byte near the start of content.
// UTF-16 text starts with a byte order mark and legitimately contains NULs.
func looksBinary(content []byte) bool {
	if bytes.HasPrefix(content, []byte{0xFF, 0xFE}) || bytes.HasPrefix(content, []byte{0xFE, 0xFF}) {
		return false
	}
	sniff := content
	if len(sniff) > binarySniffLen {
		sniff = sniff[:binarySniffLen]
	}
	return bytes.IndexByte(sniff, 0) >= 0
}

// OpenSource has the driven.SourceOpener signature.
func OpenSource(p string, extraExtensions []string) (driven.DocumentSource, error) {
	return Open(p, WithExtraExtensions(extraExtensions...))
}
