package domain

import "time"

// LineBatch is the set of matched lines returned by one tail call
type LineBatch struct {
	Timestamp   time.Time
	RunID       string // Poller process run identifier
	Hostname    string
	Target      string // Target name from configuration
	FilePath    string
	FileKey     string // Logical file key (path + incarnation)
	StartOffset uint64
	EndOffset   uint64
	Lines       []string
}

// TailedLine is a single matched line ready to be shipped
type TailedLine struct {
	Timestamp   time.Time
	RunID       string
	Hostname    string
	Target      string
	FilePath    string
	FileKey     string
	BatchOffset uint64 // Start offset of the batch the line came from
	Seq         uint32 // Position of the line within its batch
	Line        string
	LineHash    string
}

// Rows expands the batch into individual lines
func (b *LineBatch) Rows() []*TailedLine {
	rows := make([]*TailedLine, 0, len(b.Lines))
	for i, line := range b.Lines {
		rows = append(rows, &TailedLine{
			Timestamp:   b.Timestamp,
			RunID:       b.RunID,
			Hostname:    b.Hostname,
			Target:      b.Target,
			FilePath:    b.FilePath,
			FileKey:     b.FileKey,
			BatchOffset: b.StartOffset,
			Seq:         uint32(i),
			Line:        line,
		})
	}
	return rows
}
