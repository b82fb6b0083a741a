//go:build unix

package filetail

import (
	"os"
	"syscall"
)

// fileID returns device and inode numbers, or zeros for in-memory files
func fileID(info os.FileInfo) (dev, ino uint64) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, 0
	}
	return uint64(st.Dev), uint64(st.Ino)
}
