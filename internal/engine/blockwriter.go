package engine

import "github.com/bamsammich/blit/internal/stats"

// BlockWriter fronts the Output. Unbuffered mode forwards every call
// straight through, so a sub-block-size tail becomes a partial write.
// Buffered mode accumulates the tail across calls and only hands whole
// output blocks down, flushing whatever remains once at finalize. Either
// way, every byte written in plus the flushed remainder reaches the
// Output exactly once.
type BlockWriter struct {
	out      *Output
	buffered bool
	pending  []byte
}

// NewBlockWriter wraps out per the partial-block handling mode.
func NewBlockWriter(out *Output, buffered bool) *BlockWriter {
	return &BlockWriter{out: out, buffered: buffered}
}

// WriteBlocks writes buf through the wrapped Output in output-block-size
// units, carrying any sub-block remainder when buffered.
func (w *BlockWriter) WriteBlocks(buf []byte) (stats.WriteStat, error) {
	if !w.buffered {
		return w.out.WriteBlocks(buf)
	}

	data := buf
	if len(w.pending) > 0 {
		data = append(w.pending, buf...)
	}
	whole := len(data) / w.out.obs * w.out.obs

	ws, err := w.out.WriteBlocks(data[:whole])
	if err != nil {
		return ws, err
	}
	w.pending = append([]byte(nil), data[whole:]...)
	return ws, nil
}

// Flush writes out any remaining partial block. Called exactly once, at
// finalize, before sync and truncate.
func (w *BlockWriter) Flush() (stats.WriteStat, error) {
	if len(w.pending) == 0 {
		return stats.WriteStat{}, nil
	}
	ws, err := w.out.WriteBlocks(w.pending)
	w.pending = nil
	return ws, err
}

// DiscardCache forwards to the wrapped Output.
func (w *BlockWriter) DiscardCache(offset, length int64) {
	w.out.DiscardCache(offset, length)
}

// Sync forwards to the wrapped Output.
func (w *BlockWriter) Sync() error { return w.out.Sync() }

// Truncate forwards to the wrapped Output.
func (w *BlockWriter) Truncate() { w.out.Truncate() }
