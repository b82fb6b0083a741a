package filetail

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// FileKey identifies one incarnation of a file. A rotated or replaced file
// gets a new creation time (or inode), and therefore a new key.
type FileKey struct {
	Path    string
	Created time.Time // zero when the file system does not report birth time
	Device  uint64
	Inode   uint64
}

// String renders the key used in the offset store: the path, then the
// creation time and the device/inode pair when the file system reports them.
// Creation times can be coarse, so the inode is kept alongside it.
func (k FileKey) String() string {
	var b strings.Builder
	b.WriteString(k.Path)
	if !k.Created.IsZero() {
		fmt.Fprintf(&b, ".%d", k.Created.UnixNano())
	}
	if k.Inode != 0 {
		fmt.Fprintf(&b, ".%d:%d", k.Device, k.Inode)
	}
	return b.String()
}

// ResolveKey opens path and derives its logical key from the open file
func ResolveKey(fsys afero.Fs, path string) (FileKey, os.FileInfo, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return FileKey{}, nil, &ReadError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	return fileKey(f, path)
}

// fileKey derives the key from an already open file. Identity and size come
// from the handle, so they describe the same incarnation that is read.
func fileKey(f afero.File, path string) (FileKey, os.FileInfo, error) {
	info, err := f.Stat()
	if err != nil {
		return FileKey{}, nil, &ReadError{Op: "stat", Path: path, Err: err}
	}
	if info.IsDir() {
		return FileKey{}, nil, &ReadError{Op: "stat", Path: path, Err: errIsDirectory}
	}

	key := FileKey{Path: path}
	key.Device, key.Inode = fileID(info)

	if osf, ok := osFile(f); ok {
		if created, ok := birthTime(osf, info); ok {
			key.Created = created
		}
	}

	return key, info, nil
}

// osFile returns the OS file behind f. Files of afero.ReadOnlyFs over an
// OsFs are plain *os.File; BasePathFs wraps them.
func osFile(f afero.File) (*os.File, bool) {
	switch v := f.(type) {
	case *os.File:
		return v, true
	case *afero.BasePathFile:
		osf, ok := v.File.(*os.File)
		return osf, ok
	}
	return nil, false
}
