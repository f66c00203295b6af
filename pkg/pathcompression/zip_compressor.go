package pathcompression

import (
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
)

// pooledFlateWriter returns the flate writer to its pool on close.
type pooledFlateWriter struct {
	*flate.Writer
	pool *sync.Pool
}

func (w *pooledFlateWriter) Close() error {
	err := w.Writer.Close()
	w.pool.Put(w.Writer)
	return err
}

func newFlatePool(level int) *sync.Pool {
	return &sync.Pool{
		New: func() any {
			fw, _ := flate.NewWriter(io.Discard, level)
			return fw
		},
	}
}

type zipEntryWriter struct {
	zw      *zip.Writer
	metrics Metrics
}

func newZipEntryWriter(w io.Writer, flatePool *sync.Pool, metrics Metrics) *zipEntryWriter {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		fw := flatePool.Get().(*flate.Writer)
		fw.Reset(out)
		return &pooledFlateWriter{Writer: fw, pool: flatePool}, nil
	})
	return &zipEntryWriter{zw: zw, metrics: metrics}
}

func (z *zipEntryWriter) writeDir(e archiveEntry) error {
	header, err := zip.FileInfoHeader(e.info)
	if err != nil {
		return fmt.Errorf("failed to create zip header for %s: %w", e.relPath, err)
	}
	header.Name = e.relPath + "/"
	header.Method = zip.Store
	if _, err := z.zw.CreateHeader(header); err != nil {
		return fmt.Errorf("failed to write zip header for %s: %w", e.relPath, err)
	}
	return nil
}

func (z *zipEntryWriter) writeFile(e archiveEntry, buf []byte) error {
	f, err := secureFileOpen(e.absPath, e.info)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", e.absPath, err)
	}
	defer f.Close()

	header, err := zip.FileInfoHeader(e.info)
	if err != nil {
		return fmt.Errorf("failed to create zip header for %s: %w", e.relPath, err)
	}
	header.Name = e.relPath
	header.Method = zip.Deflate

	w, err := z.zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to write zip header for %s: %w", e.relPath, err)
	}
	n, err := io.CopyBuffer(w, f, buf)
	z.metrics.AddBytesRead(n)
	if err != nil {
		return fmt.Errorf("failed to compress %s: %w", e.relPath, err)
	}
	return nil
}

func (z *zipEntryWriter) Close() error {
	if err := z.zw.Close(); err != nil {
		return fmt.Errorf("zip writer close failed: %w", err)
	}
	return nil
}
