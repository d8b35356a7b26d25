package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sys/unix"

	"github.com/bamsammich/blit/internal/stats"
)

type destKind int

const (
	destFile destKind = iota
	destStream
	destFifo
	destNull
)

// Output is the write side of a transfer: one opened destination endpoint
// plus the retrying, partial-write-aware write pipeline.
type Output struct {
	f    *os.File
	fd   int
	path string
	kind destKind

	seekable  bool
	blockDev  bool
	inherited bool

	obs       int
	sparse    bool
	direct    bool
	fullBlock bool
	fsync     bool
	fdatasync bool

	degraded bool
}

// OpenOutput opens the destination named by the settings and applies the
// configured seek. An empty path selects standard output. A named-pipe
// destination for a zero-byte transfer becomes a null sink, since opening
// a fifo for writing with no reader would block forever.
func OpenOutput(s Settings) (*Output, error) {
	out := &Output{
		obs:       s.OBS,
		sparse:    s.OConv.Sparse,
		direct:    s.OFlags.Direct,
		fullBlock: s.IFlags.FullBlock,
		fsync:     s.OConv.Fsync,
		fdatasync: s.OConv.Fdatasync,
	}

	switch {
	case s.Out == "":
		out.f = os.Stdout
		out.path = "standard output"
		out.inherited = true
	case s.Count != nil && s.Count.ToBytes(uint64(s.IBS)) == 0 && isFifo(s.Out):
		out.kind = destNull
		out.path = s.Out
		out.fd = -1
		return out, nil
	default:
		flags := os.O_WRONLY | outputOpenFlags(s.OFlags)
		switch {
		case s.OConv.Excl:
			flags |= os.O_CREATE | os.O_EXCL
		case !s.OConv.NoCreat:
			flags |= os.O_CREATE
		}
		f, err := os.OpenFile(s.Out, flags, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", s.Out, err)
		}
		out.f = f
		out.path = s.Out
	}
	out.fd = int(out.f.Fd())

	fi, err := out.f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", out.path, err)
	}
	switch {
	case fi.Mode()&os.ModeNamedPipe != 0:
		out.kind = destFifo
	default:
		out.blockDev = fi.Mode()&os.ModeDevice != 0 && fi.Mode()&os.ModeCharDevice == 0
		if _, err := unix.Seek(out.fd, 0, unix.SEEK_CUR); err == nil {
			out.kind = destFile
			out.seekable = true
		} else {
			out.kind = destStream
		}
	}

	if s.Seek > 0 {
		if err := out.SeekForward(s.Seek); err != nil {
			return nil, fmt.Errorf("seek %s: %w", out.path, err)
		}
	}
	// dd truncates a regular-file destination at the seek position unless
	// conv=notrunc was given. Only an explicitly named destination is
	// eligible: an inherited standard output may well refer to a regular
	// file the caller redirected to, and its contents are not ours to cut.
	if !s.OConv.NoTrunc && !out.inherited && out.kind == destFile && fi.Mode().IsRegular() && !s.OFlags.Append {
		if err := unix.Ftruncate(out.fd, s.Seek); err != nil {
			return nil, fmt.Errorf("truncate %s: %w", out.path, err)
		}
	}
	return out, nil
}

func isFifo(path string) bool {
	fi, err := os.Lstat(path)
	return err == nil && fi.Mode()&os.ModeNamedPipe != 0
}

// Close releases the destination. Standard output and the null sink are
// left alone.
func (o *Output) Close() error {
	if o.kind == destNull || o.f == os.Stdout {
		return nil
	}
	return o.f.Close()
}

// Degraded reports whether a non-aborting quirk was hit on the write side.
func (o *Output) Degraded() bool { return o.degraded }

// SeekForward advances the destination by n bytes. Pipes cannot be
// repositioned, so a fifo destination "seeks" by reading n bytes from a
// freshly opened read handle on the same path. Seeking past the end of a
// block device stops at the device end, warns, and flags a degraded exit
// status, like the skip on the read side.
func (o *Output) SeekForward(n int64) error {
	switch o.kind {
	case destNull:
		return nil
	case destFifo:
		return drainFifo(o.path, n)
	default:
		if !o.seekable {
			return fmt.Errorf("%s: not seekable", o.path)
		}
		if o.blockDev {
			size, err := blockDeviceSize(o.fd)
			if err == nil && n > size {
				if _, err := unix.Seek(o.fd, size, unix.SEEK_CUR); err != nil {
					return err
				}
				slog.Error("cannot seek past end of device", "path", o.path, "size", size)
				o.degraded = true
				return nil
			}
		}
		_, err := unix.Seek(o.fd, n, unix.SEEK_CUR)
		return err
	}
}

func drainFifo(path string, n int64) error {
	r, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return err
	}
	defer r.Close()

	buf := make([]byte, 32*1024)
	var drained int64
	for drained < n {
		want := n - drained
		if want > int64(len(buf)) {
			want = int64(len(buf))
		}
		m, err := r.Read(buf[:want])
		if err != nil {
			return err
		}
		if m == 0 {
			break
		}
		drained += int64(m)
	}
	return nil
}

func (o *Output) writeRetry(buf []byte) (int, error) {
	for {
		n, err := unix.Write(o.fd, buf)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return 0, err
		}
		return n, nil
	}
}

// Write issues one write against the destination. A sparse-density
// destination turns an all-zero chunk into a forward seek, creating a
// hole. Under direct I/O an EINVAL (misaligned partial block) is recovered
// by clearing O_DIRECT, retrying once, and best-effort restoring the flag.
func (o *Output) Write(buf []byte) (int, error) {
	switch {
	case o.kind == destNull:
		return len(buf), nil
	case o.sparse && o.kind == destFile && allZero(buf):
		if _, err := unix.Seek(o.fd, int64(len(buf)), unix.SEEK_CUR); err != nil {
			return 0, err
		}
		return len(buf), nil
	}

	n, err := unix.Write(o.fd, buf)
	for errors.Is(err, unix.EINTR) {
		n, err = unix.Write(o.fd, buf)
	}
	if errors.Is(err, unix.EINVAL) && o.direct {
		return o.writeWithoutDirect(buf)
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}

// writeWithoutDirect clears O_DIRECT, retries the write, then restores the
// original flags. A restore failure is logged, not propagated. The
// clear-retry-restore is deliberately not atomic with respect to other
// observers of the descriptor.
func (o *Output) writeWithoutDirect(buf []byte) (int, error) {
	flags, err := unix.FcntlInt(uintptr(o.fd), unix.F_GETFL, 0)
	if err != nil {
		return 0, fmt.Errorf("get flags %s: %w", o.path, err)
	}
	if _, err := unix.FcntlInt(uintptr(o.fd), unix.F_SETFL, flags&^directFlag); err != nil {
		return 0, fmt.Errorf("clear direct I/O %s: %w", o.path, err)
	}
	n, werr := o.writeRetry(buf)
	if _, err := unix.FcntlInt(uintptr(o.fd), unix.F_SETFL, flags); err != nil {
		slog.Warn("failed to restore direct I/O flag", "path", o.path, "error", err)
	}
	return n, werr
}

// WriteBlock writes one output-block-sized chunk. Interrupted syscalls are
// retried; with fullblock set it loops until the whole chunk is written,
// otherwise it returns after the first successful, possibly short, write.
func (o *Output) WriteBlock(chunk []byte) (int, error) {
	written := 0
	for {
		n, err := o.Write(chunk[written:])
		if err != nil {
			return written, err
		}
		written += n
		if !o.fullBlock || written >= len(chunk) {
			return written, nil
		}
	}
}

// WriteBlocks splits buf into output-block-size chunks, writes each, and
// classifies every chunk as a complete or partial block write.
func (o *Output) WriteBlocks(buf []byte) (stats.WriteStat, error) {
	var ws stats.WriteStat
	for base := 0; base < len(buf); base += o.obs {
		end := base + o.obs
		if end > len(buf) {
			end = len(buf)
		}
		n, err := o.WriteBlock(buf[base:end])
		ws.BytesWritten += uint64(n)
		if err != nil {
			return ws, err
		}
		if n == o.obs {
			ws.Full++
		} else {
			ws.Partial++
		}
	}
	return ws, nil
}

// Sync performs the configured durability flush: full fsync, data-only
// fdatasync, or nothing.
func (o *Output) Sync() error {
	switch {
	case o.kind == destNull:
		return nil
	case o.fsync:
		return unix.Fsync(o.fd)
	case o.fdatasync:
		return fdatasync(o.fd)
	}
	return nil
}

// Truncate sets the destination's length to the current write position.
// Destinations that cannot be truncated, and an inherited standard output,
// are left alone.
func (o *Output) Truncate() {
	if o.kind != destFile || o.inherited {
		return
	}
	pos, err := unix.Seek(o.fd, 0, unix.SEEK_CUR)
	if err != nil {
		return
	}
	if err := unix.Ftruncate(o.fd, pos); err != nil {
		slog.Debug("truncate skipped", "path", o.path, "error", err)
	}
}

// DiscardCache hints that the given destination span is no longer needed
// in the page cache. Best effort, like the input side.
func (o *Output) DiscardCache(offset, length int64) {
	if o.kind == destNull {
		return
	}
	if err := discardCache(o.fd, offset, length); err != nil {
		slog.Warn("failed to discard output cache", "path", o.path, "error", err)
		o.degraded = true
	}
}

// allZero reports whether the chunk can be represented as a hole: it is
// empty or every byte is zero.
func allZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
