//go:build linux

package engine

import "golang.org/x/sys/unix"

const directFlag = unix.O_DIRECT

func inputOpenFlags(f InputFlags) int {
	var bits int
	if f.Direct {
		bits |= unix.O_DIRECT
	}
	if f.Directory {
		bits |= unix.O_DIRECTORY
	}
	if f.Dsync {
		bits |= unix.O_DSYNC
	}
	if f.Sync {
		bits |= unix.O_SYNC
	}
	if f.NoATime {
		bits |= unix.O_NOATIME
	}
	if f.NoCtty {
		bits |= unix.O_NOCTTY
	}
	if f.NoFollow {
		bits |= unix.O_NOFOLLOW
	}
	if f.NonBlock {
		bits |= unix.O_NONBLOCK
	}
	return bits
}

func outputOpenFlags(f OutputFlags) int {
	var bits int
	if f.Append {
		bits |= unix.O_APPEND
	}
	if f.Direct {
		bits |= unix.O_DIRECT
	}
	if f.Dsync {
		bits |= unix.O_DSYNC
	}
	if f.Sync {
		bits |= unix.O_SYNC
	}
	if f.NoCtty {
		bits |= unix.O_NOCTTY
	}
	if f.NoFollow {
		bits |= unix.O_NOFOLLOW
	}
	if f.NonBlock {
		bits |= unix.O_NONBLOCK
	}
	return bits
}

// discardCache asks the kernel to drop the page cache behind the span.
// A zero length means "to the end of the file".
func discardCache(fd int, offset, length int64) error {
	return unix.Fadvise(fd, offset, length, unix.FADV_DONTNEED)
}

func fdatasync(fd int) error {
	return unix.Fdatasync(fd)
}
