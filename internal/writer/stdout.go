package writer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/SteelMorgan/log-tailer/internal/domain"
	"github.com/rs/zerolog/log"
)

// StdoutWriter prints matched lines, one per line
type StdoutWriter struct {
	mu       sync.Mutex
	out      *bufio.Writer
	withPath bool
}

var _ LineWriter = (*StdoutWriter)(nil)

// NewStdoutWriter creates a writer printing to out. With withPath each line
// is prefixed by the file it came from.
func NewStdoutWriter(out io.Writer, withPath bool) *StdoutWriter {
	return &StdoutWriter{out: bufio.NewWriter(out), withPath: withPath}
}

// WriteBatch prints the batch and flushes it
func (w *StdoutWriter) WriteBatch(_ context.Context, batch *domain.LineBatch) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, line := range batch.Lines {
		var err error
		if w.withPath {
			_, err = fmt.Fprintf(w.out, "%s: %s\n", batch.FilePath, line)
		} else {
			_, err = fmt.Fprintln(w.out, line)
		}
		if err != nil {
			return fmt.Errorf("failed to write line: %w", err)
		}
	}
	return w.out.Flush()
}

// WriteTailMetrics logs the metrics at debug level
func (w *StdoutWriter) WriteTailMetrics(_ context.Context, m *domain.TailMetrics) error {
	log.Debug().
		Str("target", m.Target).
		Str("status", m.Status).
		Uint32("lines_matched", m.LinesMatched).
		Uint64("bytes_read", m.BytesRead).
		Uint64("duration_ms", m.DurationMs).
		Msg("Tail metrics")
	return nil
}

// Flush flushes buffered output
func (w *StdoutWriter) Flush(_ context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.out.Flush()
}

// Close flushes buffered output
func (w *StdoutWriter) Close() error {
	return w.Flush(context.Background())
}
