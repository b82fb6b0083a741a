package writer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/SteelMorgan/log-tailer/internal/domain"
)

// calculateLineHash returns the SHA256 of the fields identifying a line.
// A line re-delivered after an interrupted read hashes the same, which lets
// ReplacingMergeTree collapse it.
func calculateLineHash(row *domain.TailedLine) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|", row.FileKey)
	fmt.Fprintf(h, "%d|", row.BatchOffset)
	fmt.Fprintf(h, "%d|", row.Seq)
	fmt.Fprintf(h, "%s", row.Line)
	return hex.EncodeToString(h.Sum(nil))
}
