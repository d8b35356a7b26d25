package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sys/unix"

	"github.com/bamsammich/blit/internal/stats"
)

// Input is the read side of a transfer: one opened source endpoint plus
// the retrying, block-filling read pipeline.
type Input struct {
	f    *os.File
	fd   int
	path string

	seekable bool
	blockDev bool

	ibs       int
	fullBlock bool
	noError   bool
	swab      bool
	pad       *byte
	conv      Converter

	// degraded records quirks (over-length device skip, failed cache
	// discard) that flag a non-zero exit status without aborting.
	degraded bool
}

// OpenInput opens the source named by the settings and applies the
// configured skip. An empty path selects standard input; when that is a
// seekable regular file the skip is a pure offset advance on it.
func OpenInput(s Settings) (*Input, error) {
	in := &Input{
		ibs:       s.IBS,
		fullBlock: s.IFlags.FullBlock,
		noError:   s.IConv.NoError,
		swab:      s.IConv.Swab,
		pad:       s.IConv.Pad,
		conv:      s.IConv.Block,
	}

	if s.In == "" {
		in.f = os.Stdin
		in.path = "standard input"
	} else {
		f, err := os.OpenFile(s.In, os.O_RDONLY|inputOpenFlags(s.IFlags), 0)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", s.In, err)
		}
		in.f = f
		in.path = s.In
	}
	in.fd = int(in.f.Fd())

	fi, err := in.f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", in.path, err)
	}
	mode := fi.Mode()
	in.blockDev = mode&os.ModeDevice != 0 && mode&os.ModeCharDevice == 0
	if _, err := unix.Seek(in.fd, 0, unix.SEEK_CUR); err == nil && mode&os.ModeNamedPipe == 0 {
		in.seekable = true
	}

	if s.Skip > 0 {
		if _, err := in.Skip(s.Skip); err != nil {
			return nil, fmt.Errorf("skip %s: %w", in.path, err)
		}
	}
	return in, nil
}

// Close releases the source. Standard input is left open.
func (in *Input) Close() error {
	if in.f == os.Stdin {
		return nil
	}
	return in.f.Close()
}

// Degraded reports whether a non-aborting quirk was hit on the read side.
func (in *Input) Degraded() bool { return in.degraded }

func (in *Input) readRetry(buf []byte) (int, error) {
	for {
		n, err := unix.Read(in.fd, buf)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return 0, err
		}
		return n, nil
	}
}

// Read fills buf from the source. Interrupted syscalls are retried. With
// fullblock set it keeps reading at successive offsets until buf is full
// or the source is exhausted; otherwise it returns after the first read
// that produced data. With noerror set a hard read error truncates the
// result to whatever was already gathered.
func (in *Input) Read(buf []byte) (int, error) {
	filled := 0
	for filled < len(buf) {
		n, err := in.readRetry(buf[filled:])
		if err != nil {
			if in.noError {
				slog.Warn("read error ignored", "path", in.path, "error", err)
				return filled, nil
			}
			return filled, err
		}
		if n == 0 {
			break
		}
		filled += n
		if !in.fullBlock {
			break
		}
	}
	return filled, nil
}

// FillConsecutive reads buf in input-block-size chunks, back to back, with
// no padding. It returns the filled prefix of buf and a ReadStat
// classifying each chunk as complete or partial.
func (in *Input) FillConsecutive(buf []byte) ([]byte, stats.ReadStat, error) {
	var rs stats.ReadStat
	filled := 0
	for filled < len(buf) {
		end := filled + in.ibs
		if end > len(buf) {
			end = len(buf)
		}
		want := end - filled
		n, err := in.Read(buf[filled:end])
		if err != nil {
			return nil, rs, err
		}
		if n == 0 {
			break
		}
		if n == want && want == in.ibs {
			rs.Full++
		} else {
			rs.Partial++
		}
		rs.BytesRead += uint64(n)
		filled += n
	}
	return buf[:filled], rs, nil
}

// FillBlocks reads buf in input-block-size chunks and pads any short chunk
// up to the block size with pad, so the result length is always a multiple
// of the block size unless the source was exhausted before a chunk began.
// A short chunk is padded to the full block size even when buf ends
// mid-block, growing the result past len(buf) if needed.
func (in *Input) FillBlocks(buf []byte, pad byte) ([]byte, stats.ReadStat, error) {
	var rs stats.ReadStat
	limit := len(buf)
	filled := 0
	for base := 0; base < limit; base += in.ibs {
		end := base + in.ibs
		if end > limit {
			end = limit
		}
		n, err := in.Read(buf[base:end])
		if err != nil {
			return nil, rs, err
		}
		if n == 0 {
			break
		}
		rs.BytesRead += uint64(n)
		if n == in.ibs {
			rs.Full++
			filled = end
			continue
		}
		rs.Partial++
		blockEnd := base + in.ibs
		if blockEnd > cap(buf) {
			grown := make([]byte, blockEnd)
			copy(grown, buf[:base+n])
			buf = grown
		}
		buf = buf[:blockEnd]
		for i := base + n; i < blockEnd; i++ {
			buf[i] = pad
		}
		filled = blockEnd
	}
	return buf[:filled], rs, nil
}

// Fill runs one iteration of the read pipeline: block filling per the
// configured padding mode, then the swab and record conversions.
func (in *Input) Fill(buf []byte) ([]byte, stats.ReadStat, error) {
	var (
		chunk []byte
		rs    stats.ReadStat
		err   error
	)
	if in.pad != nil {
		chunk, rs, err = in.FillBlocks(buf, *in.pad)
	} else {
		chunk, rs, err = in.FillConsecutive(buf)
	}
	if err != nil {
		return nil, rs, err
	}
	if in.swab {
		swapPairs(chunk)
	}
	if in.conv != nil {
		chunk = in.conv.Convert(chunk, &rs.RecordsTruncated)
	}
	return chunk, rs, nil
}

// Skip discards n bytes from the source without surfacing them. Seekable
// sources advance their offset; pipe-like sources read and discard, and
// the returned count is what was actually available. Skipping past the end
// of a block device discards what exists, warns, and flags a degraded
// exit status.
func (in *Input) Skip(n int64) (int64, error) {
	if in.seekable {
		if in.blockDev {
			size, err := blockDeviceSize(in.fd)
			if err == nil && n > size {
				if _, err := unix.Seek(in.fd, size, unix.SEEK_CUR); err != nil {
					return 0, err
				}
				slog.Error("cannot skip past end of device", "path", in.path, "size", size)
				in.degraded = true
				return size, nil
			}
		}
		if _, err := unix.Seek(in.fd, n, unix.SEEK_CUR); err != nil {
			return 0, err
		}
		return n, nil
	}

	scratch := make([]byte, in.ibs)
	var discarded int64
	for discarded < n {
		want := n - discarded
		if want > int64(len(scratch)) {
			want = int64(len(scratch))
		}
		m, err := in.Read(scratch[:want])
		if err != nil {
			return discarded, err
		}
		if m == 0 {
			break
		}
		discarded += int64(m)
	}
	return discarded, nil
}

// DiscardCache hints that the given source span is no longer needed in the
// page cache. Best effort: failure flags a degraded exit status but never
// aborts, and platforms without support make it a no-op.
func (in *Input) DiscardCache(offset, length int64) {
	if err := discardCache(in.fd, offset, length); err != nil {
		slog.Warn("failed to discard input cache", "path", in.path, "error", err)
		in.degraded = true
	}
}
