// Package filetail reads the lines appended to a file since the previous
// read of the same file incarnation, bounded by a wall-clock time limit.
package filetail

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/SteelMorgan/log-tailer/internal/offset"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/attribute"
)

// Tailer performs bounded tail reads. Offsets are shared through the store,
// so one Tailer (or several sharing a store) can serve many files
// concurrently. Calls for the same file must be serialized by the caller.
type Tailer struct {
	fs    afero.Fs
	store offset.Store
}

// NewTailer creates a Tailer reading from fsys (the OS file system when nil).
// Birth times are only part of the key for files that are *os.File
// underneath (OsFs, and ReadOnlyFs or BasePathFs over it); other file
// systems are keyed by path and inode when available.
func NewTailer(fsys afero.Fs, store offset.Store) *Tailer {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &Tailer{fs: fsys, store: store}
}

// Tail returns the lines appended to path since the previous successful call
// that contain every string of patterns.
//
// The read runs for at most timeLimit. When the limit fires, Tail returns the
// lines matched so far with StatusDeadlineExceeded and a nil error; the stored
// offset is not advanced, so those lines are returned again by the next call.
// File errors are returned as *ReadError with StatusReadFailed.
func (t *Tailer) Tail(ctx context.Context, path string, patterns []string, timeLimit time.Duration) (Result, error) {
	ctx, span := startSpan(ctx, "filetail.Tail",
		attribute.String("file.path", path),
		attribute.Int("tail.patterns", len(patterns)),
		attribute.Int64("tail.time_limit_ms", timeLimit.Milliseconds()),
	)

	ctx, cancel := context.WithTimeout(ctx, timeLimit)
	defer cancel()

	run := &tailRun{path: path, match: Predicate(patterns)}
	done := make(chan error, 1)
	go func() {
		err := t.read(ctx, run)
		if err != nil {
			run.state.CompareAndSwap(runActive, runFailed)
		}
		done <- err
	}()

	res, err := run.result(run.wait(ctx, done))
	endSpan(span, res, err)
	return res, err
}

// read opens the file, keys it, scans from the stored offset and commits the new one
func (t *Tailer) read(ctx context.Context, run *tailRun) error {
	f, err := t.fs.Open(run.path)
	if err != nil {
		return &ReadError{Op: "open", Path: run.path, Err: err}
	}
	defer f.Close()

	key, info, err := fileKey(f, run.path)
	if err != nil {
		return err
	}

	cacheKey := key.String()
	start := t.store.Get(cacheKey)
	if size := uint64(info.Size()); start > size {
		log.Info().
			Str("file", run.path).
			Uint64("stored_offset", start).
			Uint64("file_size", size).
			Msg("File truncated, reading from the beginning")
		start = 0
	}
	run.begin(cacheKey, start)

	log.Debug().
		Str("file", run.path).
		Time("created", key.Created).
		Uint64("offset", start).
		Msg("Begin read")

	end, err := scan(ctx, f, start, run.match, run.emit)
	if err != nil {
		return withPath(err, run.path)
	}

	if !run.state.CompareAndSwap(runActive, runCommitted) {
		return errAbandoned
	}
	t.store.Set(cacheKey, end)
	run.commit(end)

	log.Debug().
		Str("key", cacheKey).
		Uint64("offset", end).
		Msg("Offset committed")

	return nil
}

const (
	runActive int32 = iota
	runCommitted
	runAbandoned
	runFailed
)

// tailRun is the state shared by the reading goroutine and the waiting caller.
// Exactly one of them wins the state transition out of runActive: either the
// reader commits or fails, or the caller abandons the read and the reader
// never commits.
type tailRun struct {
	path  string
	match Predicate
	state atomic.Int32

	mu    sync.Mutex
	key   string
	start uint64
	end   uint64
	lines []string
}

// wait returns the reader's error, or the context error once the read is
// abandoned. A reader that already finished wins over the deadline.
func (r *tailRun) wait(ctx context.Context, done <-chan error) error {
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
	}

	select {
	case err := <-done:
		return err
	default:
	}
	if r.state.CompareAndSwap(runActive, runAbandoned) {
		return ctx.Err()
	}
	return <-done
}

func (r *tailRun) begin(key string, start uint64) {
	r.mu.Lock()
	r.key, r.start, r.end = key, start, start
	r.mu.Unlock()
}

func (r *tailRun) emit(line string) {
	r.mu.Lock()
	r.lines = append(r.lines, line)
	r.mu.Unlock()
}

func (r *tailRun) commit(end uint64) {
	r.mu.Lock()
	r.end = end
	r.mu.Unlock()
}

// result snapshots the run. The reader may still be appending if it was
// abandoned, so lines are copied.
func (r *tailRun) result(err error) (Result, error) {
	r.mu.Lock()
	res := Result{
		Path:  r.path,
		Key:   r.key,
		Start: r.start,
		End:   r.end,
		Lines: append([]string(nil), r.lines...),
	}
	r.mu.Unlock()

	switch {
	case err == nil && len(res.Lines) > 0:
		res.Status = StatusMatched
	case err == nil && res.End == res.Start:
		res.Status = StatusNoNewData
	case err == nil:
		res.Status = StatusNoMatch
	case errors.Is(err, context.DeadlineExceeded):
		res.Status = StatusDeadlineExceeded
		res.End = res.Start
		err = nil
	case errors.Is(err, context.Canceled):
		res.Status = StatusCanceled
		res.End = res.Start
	default:
		res.Status = StatusReadFailed
		res.End = res.Start
	}
	return res, err
}
