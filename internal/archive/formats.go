package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Format is an archive container format.
type Format int

// Supported formats.
const (
	FormatUnknown Format = iota
	FormatDirectory
	FormatZip
	FormatTar
	FormatTarGzip
	FormatTarZstd
	FormatTarLZ4
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatDirectory:
		return "directory"
	case FormatZip:
		return "zip"
	case FormatTar:
		return "tar"
	case FormatTarGzip:
		return "tar.gz"
	case FormatTarZstd:
		return "tar.zst"
	case FormatTarLZ4:
		return "tar.lz4"
	default:
		return "unknown"
	}
}

// suffixes is ordered so compound extensions match before ".tar".
var suffixes = []struct {
	ext    string
	format Format
}{
	{".tar.gz", FormatTarGzip},
	{".tgz", FormatTarGzip},
	{".tar.zst", FormatTarZstd},
	{".tzst", FormatTarZstd},
	{".tar.lz4", FormatTarLZ4},
	{".tar", FormatTar},
	{".zip", FormatZip},
}

// DetectFormat returns the container format implied by the file name.
func DetectFormat(name string) Format {
	lower := strings.ToLower(name)
	for _, s := range suffixes {
		if strings.HasSuffix(lower, s.ext) {
			return s.format
		}
	}
	return FormatUnknown
}

// TrimExtension removes a container extension from a base name.
func TrimExtension(base string) string {
	lower := strings.ToLower(base)
	for _, s := range suffixes {
		if strings.HasSuffix(lower, s.ext) {
			return base[:len(base)-len(s.ext)]
		}
	}
	return base
}

// opener opens the content of one entry.
type opener func() (io.ReadCloser, error)

// visitFunc is called for every regular file entry in archive order.
type visitFunc func(name string, size int64, open opener) error

// verify checks the container is structurally readable without reading content.
func (a *Archive) verify() error {
	switch a.format {
	case FormatDirectory:
		return nil
	case FormatZip:
		r, err := zip.OpenReader(a.path)
		if err != nil {
			return err
		}
		return r.Close()
	default:
		return a.walkTar(context.Background(), func(string, int64, opener) error {
			return nil
		})
	}
}

func (a *Archive) walk(ctx context.Context, visit visitFunc) error {
	switch a.format {
	case FormatDirectory:
		return a.walkDir(ctx, visit)
	case FormatZip:
		return a.walkZip(ctx, visit)
	default:
		return a.walkTar(ctx, visit)
	}
}

func (a *Archive) walkZip(ctx context.Context, visit visitFunc) error {
	r, err := zip.OpenReader(a.path)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		if f.FileInfo().IsDir() || !f.Mode().IsRegular() {
			continue
		}
		if err := visit(f.Name, int64(f.UncompressedSize64), f.Open); err != nil {
			return err
		}
	}
	return nil
}

func (a *Archive) walkTar(ctx context.Context, visit visitFunc) error {
	f, err := os.Open(a.path)
	if err != nil {
		return err
	}
	defer f.Close()

	var stream io.Reader = f
	switch a.format {
	case FormatTarGzip:
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("gzip: %w", err)
		}
		defer gz.Close()
		stream = gz
	case FormatTarZstd:
		zr, err := zstd.NewReader(f)
		if err != nil {
			return fmt.Errorf("zstd: %w", err)
		}
		defer zr.Close()
		stream = zr
	case FormatTarLZ4:
		stream = lz4.NewReader(f)
	}

	tr := tar.NewReader(stream)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("tar: %w", err)
		}
		if !hdr.FileInfo().Mode().IsRegular() {
			continue
		}
		open := func() (io.ReadCloser, error) {
			return io.NopCloser(tr), nil
		}
		if err := visit(hdr.Name, hdr.Size, open); err != nil {
			return err
		}
	}
}

func (a *Archive) walkDir(ctx context.Context, visit visitFunc) error {
	return filepath.WalkDir(a.path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if p == a.path {
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(a.path, p)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		open := func() (io.ReadCloser, error) {
			return os.Open(p)
		}
		return visit(filepath.ToSlash(rel), info.Size(), open)
	})
}
