package filetail

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/SteelMorgan/log-tailer/internal/offset"
	"github.com/spf13/afero"
)

const testTimeLimit = 30 * time.Second

func newTestTailer(t *testing.T, fsys afero.Fs) (*Tailer, *offset.LRUStore) {
	t.Helper()
	store, err := offset.NewLRUStore(offset.DefaultCapacity)
	if err != nil {
		t.Fatalf("NewLRUStore() error = %v", err)
	}
	return NewTailer(fsys, store), store
}

func writeFile(t *testing.T, fsys afero.Fs, path, content string) {
	t.Helper()
	if err := afero.WriteFile(fsys, path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile(%s) error = %v", path, err)
	}
}

func appendFile(t *testing.T, fsys afero.Fs, path, content string) {
	t.Helper()
	f, err := fsys.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("OpenFile(%s) error = %v", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("WriteString(%s) error = %v", path, err)
	}
}

func mustTail(t *testing.T, tailer *Tailer, path string, patterns ...string) Result {
	t.Helper()
	res, err := tailer.Tail(context.Background(), path, patterns, testTimeLimit)
	if err != nil {
		t.Fatalf("Tail(%s) error = %v", path, err)
	}
	return res
}

func TestTail_EndToEnd(t *testing.T) {
	fsys := afero.NewMemMapFs()
	tailer, _ := newTestTailer(t, fsys)
	writeFile(t, fsys, "/app.log", "a\nb\nc\n")

	res := mustTail(t, tailer, "/app.log")
	if !equalLines(res.Lines, []string{"a", "b", "c"}) {
		t.Errorf("first Tail() = %q, want [a b c]", res.Lines)
	}
	if res.Status != StatusMatched || res.Start != 0 || res.End != 6 {
		t.Errorf("first Tail() = %+v, want matched 0..6", res)
	}

	appendFile(t, fsys, "/app.log", "d\n")
	res = mustTail(t, tailer, "/app.log")
	if !equalLines(res.Lines, []string{"d"}) {
		t.Errorf("second Tail() = %q, want [d]", res.Lines)
	}

	res = mustTail(t, tailer, "/app.log")
	if len(res.Lines) != 0 || res.Status != StatusNoNewData {
		t.Errorf("third Tail() = %+v, want no new data", res)
	}
	if !res.Committed() {
		t.Error("Committed() = false for no new data")
	}
}

func TestTail_Patterns(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		want     []string
		status   Status
	}{
		{
			name:     "all patterns required",
			patterns: []string{"ERROR", "db"},
			want:     []string{"ERROR db timeout"},
			status:   StatusMatched,
		},
		{
			name:   "no patterns match every line",
			want:   []string{"ERROR db timeout", "ERROR cache", "INFO db ok"},
			status: StatusMatched,
		},
		{
			name:     "nothing matches",
			patterns: []string{"FATAL"},
			want:     nil,
			status:   StatusNoMatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := afero.NewMemMapFs()
			tailer, _ := newTestTailer(t, fsys)
			writeFile(t, fsys, "/app.log", "ERROR db timeout\nERROR cache\nINFO db ok\n")

			res := mustTail(t, tailer, "/app.log", tt.patterns...)
			if !equalLines(res.Lines, tt.want) {
				t.Errorf("Tail() = %q, want %q", res.Lines, tt.want)
			}
			if res.Status != tt.status {
				t.Errorf("Status = %v, want %v", res.Status, tt.status)
			}

			// consumed lines are not offered again, matched or not
			res = mustTail(t, tailer, "/app.log")
			if res.Status != StatusNoNewData {
				t.Errorf("second Tail() status = %v, want %v", res.Status, StatusNoNewData)
			}
		})
	}
}

func TestTail_PartialLine(t *testing.T) {
	fsys := afero.NewMemMapFs()
	tailer, _ := newTestTailer(t, fsys)
	writeFile(t, fsys, "/app.log", "")

	appendFile(t, fsys, "/app.log", "partial")
	res := mustTail(t, tailer, "/app.log", "partial")
	if len(res.Lines) != 0 {
		t.Fatalf("Tail() = %q, want no lines for an unterminated line", res.Lines)
	}

	appendFile(t, fsys, "/app.log", "-line\n")
	res = mustTail(t, tailer, "/app.log", "partial")
	if !equalLines(res.Lines, []string{"partial-line"}) {
		t.Errorf("Tail() = %q, want [partial-line]", res.Lines)
	}
}

func TestTail_NoDuplicates(t *testing.T) {
	fsys := afero.NewMemMapFs()
	tailer, _ := newTestTailer(t, fsys)
	writeFile(t, fsys, "/app.log", "")

	var want, got []string
	for round := 0; round < 5; round++ {
		var b strings.Builder
		for i := 0; i < 10; i++ {
			line := fmt.Sprintf("round %d line %d", round, i)
			want = append(want, line)
			b.WriteString(line + "\n")
		}
		// half a line that only completes in the next round
		b.WriteString("tail ")
		appendFile(t, fsys, "/app.log", b.String())
		want = append(want, fmt.Sprintf("tail %d", round))

		got = append(got, mustTail(t, tailer, "/app.log").Lines...)
		appendFile(t, fsys, "/app.log", fmt.Sprintf("%d\n", round))
	}
	got = append(got, mustTail(t, tailer, "/app.log").Lines...)

	if !equalLines(got, want) {
		t.Errorf("lines delivered across calls = %q, want %q", got, want)
	}
}

func TestTail_MissingFile(t *testing.T) {
	tailer, store := newTestTailer(t, afero.NewMemMapFs())

	res, err := tailer.Tail(context.Background(), "/missing.log", nil, testTimeLimit)
	if err == nil {
		t.Fatal("Tail() expected error for a missing file")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Tail() error = %v, want fs.ErrNotExist", err)
	}
	var re *ReadError
	if !errors.As(err, &re) || re.Op != "open" || re.Path != "/missing.log" {
		t.Errorf("Tail() error = %#v, want open ReadError for /missing.log", err)
	}
	if res.Status != StatusReadFailed {
		t.Errorf("Status = %v, want %v", res.Status, StatusReadFailed)
	}
	if store.Len() != 0 {
		t.Errorf("store has %d entries after a failed read", store.Len())
	}
}

func TestTail_TruncatedInPlace(t *testing.T) {
	fsys := afero.NewMemMapFs()
	tailer, _ := newTestTailer(t, fsys)
	writeFile(t, fsys, "/app.log", "a\nb\nc\n")
	mustTail(t, tailer, "/app.log")

	writeFile(t, fsys, "/app.log", "x\n")
	res := mustTail(t, tailer, "/app.log")
	if !equalLines(res.Lines, []string{"x"}) {
		t.Errorf("Tail() after truncation = %q, want [x]", res.Lines)
	}
}

func TestTail_Rotation(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("no inode or birth time identity on windows")
	}

	fsys := afero.NewOsFs()
	tailer, store := newTestTailer(t, fsys)
	path := filepath.Join(t.TempDir(), "app.log")

	writeFile(t, fsys, path, "a\nb\nc\n")
	res := mustTail(t, tailer, path)
	if !equalLines(res.Lines, []string{"a", "b", "c"}) {
		t.Fatalf("Tail() = %q, want [a b c]", res.Lines)
	}

	if err := os.Rename(path, path+".1"); err != nil {
		t.Fatalf("Rename() error = %v", err)
	}
	writeFile(t, fsys, path, "a\nb\nc\n")

	res = mustTail(t, tailer, path)
	if !equalLines(res.Lines, []string{"a", "b", "c"}) {
		t.Errorf("Tail() after rotation = %q, want [a b c]", res.Lines)
	}
	if res.Start != 0 {
		t.Errorf("Start after rotation = %d, want 0", res.Start)
	}
	if store.Len() != 2 {
		t.Errorf("store has %d keys, want one per incarnation", store.Len())
	}
}

func TestTail_NearZeroDeadline(t *testing.T) {
	fsys := afero.NewMemMapFs()
	tailer, _ := newTestTailer(t, fsys)

	const total = 50000
	var b strings.Builder
	for i := 0; i < total; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}
	writeFile(t, fsys, "/big.log", b.String())

	started := time.Now()
	res, err := tailer.Tail(context.Background(), "/big.log", nil, time.Nanosecond)
	elapsed := time.Since(started)

	if err != nil {
		t.Fatalf("Tail() error = %v, want nil on deadline", err)
	}
	if elapsed > time.Second {
		t.Errorf("Tail() took %v with a 1ns limit", elapsed)
	}
	if len(res.Lines) > total {
		t.Errorf("Tail() returned %d lines, file has %d", len(res.Lines), total)
	}
	if res.Status != StatusDeadlineExceeded {
		// the read won the race; nothing more to check
		return
	}
	if res.End != res.Start {
		t.Errorf("End = %d, want Start %d for an interrupted read", res.End, res.Start)
	}

	// the interrupted read committed nothing, so everything is still there
	full := mustTail(t, tailer, "/big.log")
	if len(full.Lines) != total {
		t.Errorf("Tail() after deadline returned %d lines, want %d", len(full.Lines), total)
	}
}

func TestTail_Canceled(t *testing.T) {
	fsys := afero.NewMemMapFs()
	tailer, store := newTestTailer(t, fsys)
	writeFile(t, fsys, "/app.log", "a\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := tailer.Tail(ctx, "/app.log", nil, testTimeLimit)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Tail() error = %v, want context.Canceled", err)
	}
	if res.Status != StatusCanceled {
		t.Errorf("Status = %v, want %v", res.Status, StatusCanceled)
	}
	if store.Get("/app.log") != 0 {
		t.Error("canceled read committed an offset")
	}
}

// blockingFs hands out files whose reads wait for release
type blockingFs struct {
	afero.Fs
	release chan struct{}
	closed  chan struct{}
}

type blockingFile struct {
	afero.File
	fs *blockingFs
}

func (b *blockingFs) Open(name string) (afero.File, error) {
	f, err := b.Fs.Open(name)
	if err != nil {
		return nil, err
	}
	return &blockingFile{File: f, fs: b}, nil
}

func (f *blockingFile) Read(p []byte) (int, error) {
	<-f.fs.release
	return f.File.Read(p)
}

func (f *blockingFile) Close() error {
	defer close(f.fs.closed)
	return f.File.Close()
}

func TestTail_DeadlineDuringBlockedRead(t *testing.T) {
	mem := afero.NewMemMapFs()
	writeFile(t, mem, "/slow.log", "a\nb\n")
	fsys := &blockingFs{Fs: mem, release: make(chan struct{}), closed: make(chan struct{})}
	tailer, store := newTestTailer(t, fsys)

	started := time.Now()
	res, err := tailer.Tail(context.Background(), "/slow.log", nil, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Tail() error = %v", err)
	}
	if res.Status != StatusDeadlineExceeded {
		t.Fatalf("Status = %v, want %v", res.Status, StatusDeadlineExceeded)
	}
	if elapsed := time.Since(started); elapsed > time.Second {
		t.Errorf("Tail() blocked for %v past a 50ms limit", elapsed)
	}

	// let the abandoned read finish; it must not commit
	close(fsys.release)
	select {
	case <-fsys.closed:
	case <-time.After(5 * time.Second):
		t.Fatal("abandoned read did not finish")
	}
	if store.Len() != 0 {
		t.Errorf("abandoned read committed offsets: %v", store.List())
	}
}

func TestTail_ConcurrentFiles(t *testing.T) {
	fsys := afero.NewMemMapFs()
	tailer, store := newTestTailer(t, fsys)

	const files = 8
	for i := 0; i < files; i++ {
		writeFile(t, fsys, fmt.Sprintf("/logs/%d.log", i), fmt.Sprintf("file %d\n", i))
	}

	var wg sync.WaitGroup
	errs := make(chan error, files)
	for i := 0; i < files; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := tailer.Tail(context.Background(), fmt.Sprintf("/logs/%d.log", i), nil, testTimeLimit)
			if err != nil {
				errs <- err
				return
			}
			if want := fmt.Sprintf("file %d", i); !equalLines(res.Lines, []string{want}) {
				errs <- fmt.Errorf("file %d: got %q", i, res.Lines)
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	if store.Len() != files {
		t.Errorf("store has %d keys, want %d", store.Len(), files)
	}
}

// rotateOnOpenFs replaces the file before handing it out, once
type rotateOnOpenFs struct {
	afero.Fs
	once   sync.Once
	armed  bool
	rotate func() error
}

func (r *rotateOnOpenFs) Open(name string) (afero.File, error) {
	if r.armed {
		var err error
		r.once.Do(func() { err = r.rotate() })
		if err != nil {
			return nil, err
		}
	}
	return r.Fs.Open(name)
}

func TestTail_RotationBeforeOpen(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("no inode or birth time identity on windows")
	}

	path := filepath.Join(t.TempDir(), "app.log")
	fsys := &rotateOnOpenFs{Fs: afero.NewOsFs()}
	fsys.rotate = func() error {
		if err := os.Rename(path, path+".1"); err != nil {
			return err
		}
		return os.WriteFile(path, []byte("n1\nn2\n"), 0644)
	}
	tailer, store := newTestTailer(t, fsys)

	writeFile(t, fsys, path, "old1\n")
	first := mustTail(t, tailer, path)
	if !equalLines(first.Lines, []string{"old1"}) {
		t.Fatalf("Tail() = %q, want [old1]", first.Lines)
	}

	fsys.armed = true
	rotated := mustTail(t, tailer, path)
	if !equalLines(rotated.Lines, []string{"n1", "n2"}) {
		t.Fatalf("Tail() after rotation = %q, want [n1 n2]", rotated.Lines)
	}
	if rotated.Key == first.Key {
		t.Errorf("new file read under the old key %q", first.Key)
	}

	again := mustTail(t, tailer, path)
	if len(again.Lines) != 0 || again.Status != StatusNoNewData {
		t.Errorf("Tail() again = %q (%v), want no new data", again.Lines, again.Status)
	}

	offsets := store.List()
	if offsets[first.Key] != 5 {
		t.Errorf("old file offset = %d, want 5", offsets[first.Key])
	}
	if offsets[rotated.Key] != 6 {
		t.Errorf("new file offset = %d, want 6", offsets[rotated.Key])
	}
}

func TestTailRun_WaitPrefersReaderResult(t *testing.T) {
	readErr := &ReadError{Op: "open", Path: "/app.log", Err: fs.ErrPermission}

	tests := []struct {
		name    string
		state   int32
		prefill bool
	}{
		{name: "error ready when the deadline fires", state: runActive, prefill: true},
		{name: "reader failed before the deadline was handled", state: runFailed, prefill: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 0)
			defer cancel()
			<-ctx.Done()

			run := &tailRun{path: "/app.log"}
			run.state.Store(tt.state)
			done := make(chan error, 1)
			if tt.prefill {
				done <- readErr
			} else {
				go func() {
					time.Sleep(10 * time.Millisecond)
					done <- readErr
				}()
			}

			res, err := run.result(run.wait(ctx, done))
			if !errors.Is(err, fs.ErrPermission) {
				t.Fatalf("error = %v, want the read error", err)
			}
			if res.Status != StatusReadFailed {
				t.Errorf("Status = %v, want %v", res.Status, StatusReadFailed)
			}
		})
	}
}

func TestTailRun_WaitAbandonsActiveRead(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	<-ctx.Done()

	run := &tailRun{path: "/app.log"}
	err := run.wait(ctx, make(chan error, 1))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want context.DeadlineExceeded", err)
	}
	if run.state.Load() != runAbandoned {
		t.Errorf("state = %d, want abandoned", run.state.Load())
	}
}
