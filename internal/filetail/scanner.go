package filetail

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
)

const (
	readBufferSize = 64 * 1024
	// Lines read between two context checks
	cancelCheckInterval = 128
)

// ScanResult holds the matched lines of one scan in file order.
// End is the offset just past the last complete line consumed.
type ScanResult struct {
	Lines []string
	Start uint64
	End   uint64
}

// Scan reads every complete line of r from start to end-of-stream and keeps
// the lines accepted by match. A trailing line without a newline is left
// unconsumed so the next scan returns it once it is complete. A start beyond
// the end of r is clamped to the end.
//
// When ctx is done the lines matched so far are returned with ctx.Err().
func Scan(ctx context.Context, r io.ReadSeeker, start uint64, match Predicate) (ScanResult, error) {
	res := ScanResult{Start: start}
	end, err := scan(ctx, r, start, match, func(line string) {
		res.Lines = append(res.Lines, line)
	})
	res.End = end
	return res, err
}

func scan(ctx context.Context, r io.ReadSeeker, start uint64, match Predicate, emit func(string)) (uint64, error) {
	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return start, &ReadError{Op: "seek", Err: err}
	}
	if start > uint64(size) {
		start = uint64(size)
	}
	if _, err := r.Seek(int64(start), io.SeekStart); err != nil {
		return start, &ReadError{Op: "seek", Err: err}
	}

	br := bufio.NewReaderSize(r, readBufferSize)
	pos := start

	for n := 0; ; n++ {
		if n%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return pos, err
			}
		}

		line, err := br.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				// whatever is in line has no terminator yet
				return pos, nil
			}
			return pos, &ReadError{Op: "read", Err: err}
		}

		pos += uint64(len(line))
		line = strings.TrimSuffix(line[:len(line)-1], "\r")
		if match.Match(line) {
			emit(line)
		}
	}
}
