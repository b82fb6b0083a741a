//go:build linux

package filetail

import (
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// birthTime asks statx(2) for the creation time of the open file. Older
// kernels and some file systems do not fill STATX_BTIME.
func birthTime(f *os.File, _ os.FileInfo) (time.Time, bool) {
	rc, err := f.SyscallConn()
	if err != nil {
		return time.Time{}, false
	}

	var stx unix.Statx_t
	var statErr error
	if err := rc.Control(func(fd uintptr) {
		statErr = unix.Statx(int(fd), "", unix.AT_EMPTY_PATH|unix.AT_STATX_SYNC_AS_STAT, unix.STATX_BTIME, &stx)
	}); err != nil || statErr != nil {
		return time.Time{}, false
	}
	if stx.Mask&unix.STATX_BTIME == 0 {
		return time.Time{}, false
	}
	return time.Unix(stx.Btime.Sec, int64(stx.Btime.Nsec)), true
}
