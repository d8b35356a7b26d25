package engine

import "golang.org/x/sys/unix"

// blockDeviceSize returns the logical length of a block device by probing
// its end, restoring the current offset afterward.
func blockDeviceSize(fd int) (int64, error) {
	cur, err := unix.Seek(fd, 0, unix.SEEK_CUR)
	if err != nil {
		return 0, err
	}
	size, err := unix.Seek(fd, 0, unix.SEEK_END)
	if err != nil {
		return 0, err
	}
	_, err = unix.Seek(fd, cur, unix.SEEK_SET)
	return size, err
}
