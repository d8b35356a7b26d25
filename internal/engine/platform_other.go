//go:build !linux

package engine

import "golang.org/x/sys/unix"

// Platforms without O_DIRECT never take the clear-retry-restore path.
const directFlag = 0

func inputOpenFlags(f InputFlags) int {
	var bits int
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

func outputOpenFlags(f OutputFlags) int {
	var bits int
	if f.Append {
		bits |= unix.O_APPEND
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

// discardCache is advisory and unsupported here.
func discardCache(int, int64, int64) error { return nil }

func fdatasync(fd int) error {
	return unix.Fsync(fd)
}
