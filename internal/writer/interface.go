package writer

import (
	"context"
	"time"

	"github.com/SteelMorgan/log-tailer/internal/domain"
)

// LineWriter ships matched lines somewhere. Implementations must be safe for
// concurrent use: every poller target writes from its own goroutine.
type LineWriter interface {
	// WriteBatch writes the lines of one tail call
	WriteBatch(ctx context.Context, batch *domain.LineBatch) error

	// WriteTailMetrics records metrics of one poll
	WriteTailMetrics(ctx context.Context, metrics *domain.TailMetrics) error

	// Flush forces writing all pending lines
	Flush(ctx context.Context) error

	// Close flushes pending lines and closes the writer
	Close() error
}

// BatchConfig configures batch behavior
type BatchConfig struct {
	MaxSize      int           // Maximum lines per insert
	FlushTimeout time.Duration // Maximum age of a pending batch
}
