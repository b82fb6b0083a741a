package domain

import "time"

// TailMetrics describes one poll of one target
type TailMetrics struct {
	Timestamp    time.Time
	RunID        string
	Target       string
	FilePath     string
	Status       string // filetail.Status name
	LinesMatched uint32
	BytesRead    uint64
	DurationMs   uint64
	ErrorMessage string
}
