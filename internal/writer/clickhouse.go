package writer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/SteelMorgan/log-tailer/internal/clickhouse"
	"github.com/SteelMorgan/log-tailer/internal/domain"
	"github.com/SteelMorgan/log-tailer/internal/retry"
	"github.com/rs/zerolog/log"
)

// ClickHouse DateTime64 valid range: 1925-01-01 to 2283-11-11
var (
	minClickHouseDateTime = time.Date(1925, 1, 1, 0, 0, 0, 0, time.UTC)
	maxClickHouseDateTime = time.Date(2283, 11, 11, 23, 59, 59, 999999999, time.UTC)
)

// ensureValidDateTime clamps zero or out-of-range times to the current time
func ensureValidDateTime(t time.Time) time.Time {
	if t.IsZero() || t.Before(minClickHouseDateTime) || t.After(maxClickHouseDateTime) {
		return time.Now()
	}
	return t
}

type lineSender func(ctx context.Context, rows []*domain.TailedLine) error

// ClickHouseWriter buffers matched lines and inserts them in batches
type ClickHouseWriter struct {
	client *clickhouse.Client
	cfg    BatchConfig
	send   lineSender

	mu        sync.Mutex
	pending   []*domain.TailedLine
	lastFlush time.Time
}

var _ LineWriter = (*ClickHouseWriter)(nil)

// NewClickHouseWriter creates a new ClickHouse batch writer
func NewClickHouseWriter(client *clickhouse.Client, cfg BatchConfig) *ClickHouseWriter {
	w := &ClickHouseWriter{
		client:    client,
		cfg:       cfg,
		pending:   make([]*domain.TailedLine, 0, cfg.MaxSize),
		lastFlush: time.Now(),
	}
	w.send = w.insertLines
	return w
}

// WriteBatch adds the lines of a batch and flushes when the batch is full or old
func (w *ClickHouseWriter) WriteBatch(ctx context.Context, batch *domain.LineBatch) error {
	rows := batch.Rows()
	for _, row := range rows {
		row.Timestamp = ensureValidDateTime(row.Timestamp)
		row.LineHash = calculateLineHash(row)
	}

	w.mu.Lock()
	w.pending = append(w.pending, rows...)
	var snapshot []*domain.TailedLine
	if len(w.pending) >= w.cfg.MaxSize || time.Since(w.lastFlush) >= w.cfg.FlushTimeout {
		snapshot = w.takeLocked()
	}
	w.mu.Unlock()

	return w.sendSnapshot(ctx, snapshot)
}

// Flush forces writing all pending lines
func (w *ClickHouseWriter) Flush(ctx context.Context) error {
	w.mu.Lock()
	snapshot := w.takeLocked()
	w.mu.Unlock()

	return w.sendSnapshot(ctx, snapshot)
}

// Close flushes pending lines. The client is owned by the caller.
func (w *ClickHouseWriter) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return w.Flush(ctx)
}

// WriteTailMetrics inserts poll metrics
func (w *ClickHouseWriter) WriteTailMetrics(ctx context.Context, m *domain.TailMetrics) error {
	query := fmt.Sprintf("INSERT INTO %s.%s", w.client.Database(), clickhouse.TailMetricsTable)
	return retry.Do(ctx, w.client.RetryConfig(), func() error {
		batch, err := w.client.Conn().PrepareBatch(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare batch: %w", err)
		}
		if err := batch.Append(
			ensureValidDateTime(m.Timestamp),
			m.RunID,
			m.Target,
			m.FilePath,
			m.Status,
			m.LinesMatched,
			m.BytesRead,
			m.DurationMs,
			m.ErrorMessage,
		); err != nil {
			return fmt.Errorf("failed to append to batch: %w", err)
		}
		return batch.Send()
	})
}

// takeLocked hands the pending lines over to the caller
func (w *ClickHouseWriter) takeLocked() []*domain.TailedLine {
	if len(w.pending) == 0 {
		return nil
	}
	snapshot := w.pending
	w.pending = make([]*domain.TailedLine, 0, w.cfg.MaxSize)
	w.lastFlush = time.Now()
	return snapshot
}

func (w *ClickHouseWriter) sendSnapshot(ctx context.Context, snapshot []*domain.TailedLine) error {
	if len(snapshot) == 0 {
		return nil
	}

	startTime := time.Now()
	if err := w.send(ctx, snapshot); err != nil {
		return fmt.Errorf("failed to write %d lines: %w", len(snapshot), err)
	}

	log.Debug().
		Int("lines", len(snapshot)).
		Dur("duration", time.Since(startTime)).
		Msg("Tail lines written to ClickHouse")
	return nil
}

// insertLines sends rows in one insert; the whole batch is rebuilt per attempt
func (w *ClickHouseWriter) insertLines(ctx context.Context, rows []*domain.TailedLine) error {
	query := fmt.Sprintf("INSERT INTO %s.%s", w.client.Database(), clickhouse.TailLinesTable)
	return retry.Do(ctx, w.client.RetryConfig(), func() error {
		batch, err := w.client.Conn().PrepareBatch(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare batch: %w", err)
		}
		for _, row := range rows {
			if err := batch.Append(
				row.Timestamp,
				row.RunID,
				row.Hostname,
				row.Target,
				row.FilePath,
				row.FileKey,
				row.BatchOffset,
				row.Seq,
				row.Line,
				row.LineHash,
			); err != nil {
				return fmt.Errorf("failed to append to batch: %w", err)
			}
		}
		return batch.Send()
	})
}
