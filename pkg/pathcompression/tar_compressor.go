package pathcompression

import (
	"archive/tar"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
)

type tarEntryWriter struct {
	tw         *tar.Writer
	compressed io.WriteCloser
	metrics    Metrics
}

func newTarEntryWriter(w io.Writer, format Format, level Level, metrics Metrics) (*tarEntryWriter, error) {
	var compressed io.WriteCloser
	switch format {
	case TarZst:
		zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(level.zstdLevel()))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd writer: %w", err)
		}
		compressed = zw
	case TarGz:
		gw, err := pgzip.NewWriterLevel(w, level.gzipLevel())
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip writer: %w", err)
		}
		compressed = gw
	default:
		return nil, fmt.Errorf("format %s is not a tar format", format)
	}
	return &tarEntryWriter{tw: tar.NewWriter(compressed), compressed: compressed, metrics: metrics}, nil
}

func (t *tarEntryWriter) writeDir(e archiveEntry) error {
	header, err := tar.FileInfoHeader(e.info, "")
	if err != nil {
		return fmt.Errorf("failed to create tar header for %s: %w", e.relPath, err)
	}
	header.Name = e.relPath + "/"
	if err := t.tw.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write tar header for %s: %w", e.relPath, err)
	}
	return nil
}

func (t *tarEntryWriter) writeFile(e archiveEntry, buf []byte) error {
	f, err := secureFileOpen(e.absPath, e.info)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", e.absPath, err)
	}
	defer f.Close()

	header, err := tar.FileInfoHeader(e.info, "")
	if err != nil {
		return fmt.Errorf("failed to create tar header for %s: %w", e.relPath, err)
	}
	header.Name = e.relPath

	if err := t.tw.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write tar header for %s: %w", e.relPath, err)
	}
	n, err := io.CopyBuffer(t.tw, f, buf)
	t.metrics.AddBytesRead(n)
	if err != nil {
		return fmt.Errorf("failed to compress %s: %w", e.relPath, err)
	}
	return nil
}

func (t *tarEntryWriter) Close() error {
	if err := t.tw.Close(); err != nil {
		return fmt.Errorf("tar writer close failed: %w", err)
	}
	if err := t.compressed.Close(); err != nil {
		return fmt.Errorf("compressed writer close failed: %w", err)
	}
	return nil
}
