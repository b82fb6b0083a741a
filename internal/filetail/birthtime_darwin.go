//go:build darwin

package filetail

import (
	"os"
	"syscall"
	"time"
)

func birthTime(_ *os.File, info os.FileInfo) (time.Time, bool) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(st.Birthtimespec.Unix()), true
}
