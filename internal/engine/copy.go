package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bamsammich/blit/internal/alarm"
	"github.com/bamsammich/blit/internal/blocksize"
	"github.com/bamsammich/blit/internal/stats"
)

// alarmInterval is how often the periodic progress trigger fires.
const alarmInterval = time.Second

// updateBacklog bounds the progress channel. Sends are non-blocking and
// drop on a full backlog, so reporter latency can never slow the loop.
const updateBacklog = 64

// Reporter consumes progress updates until the channel closes. It is
// solely responsible for formatting; the engine never prints transfer
// statistics itself.
type Reporter interface {
	Run(updates <-chan stats.ProgressUpdate) error
}

// Hooks carries the external collaborators consumed by the copy loop.
type Hooks struct {
	Reporter Reporter
	// InstallTrigger installs an OS-signal hook invoking the alarm's
	// manual trigger. Nil is allowed; an install failure is a startup
	// warning, never fatal.
	InstallTrigger func(trigger func()) error
}

// Result is the outcome of a completed transfer.
type Result struct {
	Read    stats.ReadStat
	Write   stats.WriteStat
	Elapsed time.Duration
	// Degraded is set when a non-aborting quirk (over-length device skip,
	// failed cache discard) should surface as a non-zero exit status.
	Degraded bool
}

// Run executes the transfer described by the settings over the opened
// endpoints, blocking until the source is exhausted, the count limit is
// reached, or an unrecoverable I/O error occurs. A hard mid-loop error
// intentionally skips the flush/sync/truncate sequence so it cannot mask
// the failure.
func Run(s Settings, in *Input, out *Output, h Hooks) (Result, error) {
	start := time.Now()

	updates := make(chan stats.ProgressUpdate, updateBacklog)
	repErr := make(chan error, 1)
	go func() { repErr <- h.Reporter.Run(updates) }()

	al := alarm.Start(alarmInterval)
	if h.InstallTrigger != nil {
		if err := h.InstallTrigger(al.ManualTrigger()); err != nil {
			slog.Warn("failed to install progress signal handler", "error", err)
		}
	}

	var rs stats.ReadStat
	var ws stats.WriteStat

	if s.Count != nil && s.Count.ToBytes(uint64(s.IBS)) == 0 {
		// Nothing to copy and no buffer is ever allocated, but a
		// requested cache discard still covers the full existing span.
		if s.IFlags.NoCache {
			in.DiscardCache(0, 0)
		}
		if s.OFlags.NoCache {
			out.DiscardCache(0, 0)
		}
		return finalize(s, NewBlockWriter(out, s.Buffered), in, out, rs, ws, start, updates, repErr)
	}

	bw := NewBlockWriter(out, s.Buffered)
	ideal := blocksize.IdealSize(s.IBS, s.OBS)
	buf := make([]byte, ideal)

	var readOff, writeOff int64

	for blocksize.BelowLimit(s.Count, rs) {
		bsize := blocksize.LoopSize(s.Count, rs, ws, s.IBS, ideal)
		chunk, rstat, err := in.Fill(buf[:bsize])
		if err != nil {
			return Result{Read: rs, Write: ws}, fmt.Errorf("read %s: %w", in.path, err)
		}
		if rstat.BytesRead == 0 {
			break
		}

		wstat, err := bw.WriteBlocks(chunk)
		rs = rs.Add(rstat)
		ws = ws.Add(wstat)
		if err != nil {
			return Result{Read: rs, Write: ws}, fmt.Errorf("write %s: %w", out.path, err)
		}

		if s.IFlags.NoCache {
			n := int64(rstat.BytesRead)
			in.DiscardCache(readOff, n)
			readOff += n
		}
		if s.OFlags.NoCache {
			n := int64(wstat.BytesWritten)
			bw.DiscardCache(writeOff, n)
			writeOff += n
		}

		switch al.Poll() {
		case alarm.Timer:
			send(updates, stats.ProgressUpdate{Kind: stats.Periodic, Read: rs, Write: ws, Elapsed: time.Since(start)})
		case alarm.Signal:
			send(updates, stats.ProgressUpdate{Kind: stats.Signal, Read: rs, Write: ws, Elapsed: time.Since(start)})
		}
	}

	return finalize(s, bw, in, out, rs, ws, start, updates, repErr)
}

// finalize flushes the remainder, performs the configured sync, truncates
// unless suppressed, emits the final update, and joins the reporter. A
// reporter failure is a hard abort: it indicates an internal bug, not an
// I/O condition.
func finalize(
	s Settings,
	bw *BlockWriter,
	in *Input,
	out *Output,
	rs stats.ReadStat,
	ws stats.WriteStat,
	start time.Time,
	updates chan<- stats.ProgressUpdate,
	repErr <-chan error,
) (Result, error) {
	fs, err := bw.Flush()
	ws = ws.Add(fs)
	if err != nil {
		return Result{Read: rs, Write: ws}, fmt.Errorf("flush %s: %w", out.path, err)
	}
	if err := bw.Sync(); err != nil {
		return Result{Read: rs, Write: ws}, fmt.Errorf("sync %s: %w", out.path, err)
	}
	if !s.OConv.NoTrunc {
		bw.Truncate()
	}

	elapsed := time.Since(start)
	// The final update must arrive, unlike periodic ones, but a reporter
	// that already failed has stopped draining and may leave the backlog
	// full. The send races against the reporter's exit instead of blocking.
	select {
	case updates <- stats.ProgressUpdate{Kind: stats.Final, Read: rs, Write: ws, Elapsed: elapsed}:
	case err := <-repErr:
		close(updates)
		if err == nil {
			err = errors.New("stopped before the final update")
		}
		return Result{Read: rs, Write: ws, Elapsed: elapsed}, fmt.Errorf("progress reporter: %w", err)
	}
	close(updates)
	if err := <-repErr; err != nil {
		return Result{Read: rs, Write: ws, Elapsed: elapsed}, fmt.Errorf("progress reporter: %w", err)
	}

	return Result{
		Read:     rs,
		Write:    ws,
		Elapsed:  elapsed,
		Degraded: in.Degraded() || out.Degraded(),
	}, nil
}

// send is the non-blocking, best-effort producer side of the progress
// channel. A full backlog drops the update.
func send(ch chan<- stats.ProgressUpdate, u stats.ProgressUpdate) {
	select {
	case ch <- u:
	default:
	}
}
