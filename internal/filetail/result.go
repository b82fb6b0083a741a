package filetail

// Status is the outcome of a single Tail call
type Status int

const (
	// StatusNoNewData means nothing was appended since the previous read
	StatusNoNewData Status = iota
	// StatusNoMatch means new lines were consumed but none matched
	StatusNoMatch
	// StatusMatched means at least one new line matched
	StatusMatched
	// StatusReadFailed means the file could not be probed, opened or read
	StatusReadFailed
	// StatusDeadlineExceeded means the time limit fired; lines are partial
	// and the stored offset was left untouched
	StatusDeadlineExceeded
	// StatusCanceled means the caller's context was canceled
	StatusCanceled
)

var statusNames = map[Status]string{
	StatusNoNewData:        "no_new_data",
	StatusNoMatch:          "no_match",
	StatusMatched:          "matched",
	StatusReadFailed:       "read_failed",
	StatusDeadlineExceeded: "deadline_exceeded",
	StatusCanceled:         "canceled",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// Result is returned by Tail. Lines are in file order.
type Result struct {
	Path   string
	Key    string
	Start  uint64
	End    uint64 // equals Start unless the offset was committed
	Lines  []string
	Status Status
}

// Committed reports whether this call advanced the stored offset
func (r Result) Committed() bool {
	return r.Status == StatusNoNewData || r.Status == StatusNoMatch || r.Status == StatusMatched
}
