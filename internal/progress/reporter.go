// Package progress renders transfer statistics. It owns the consuming end
// of the update channel so console latency never back-pressures the copy
// loop.
package progress

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"github.com/bamsammich/blit/internal/stats"
)

// Level selects reporting verbosity.
type Level int

const (
	// Default prints the record counts and transfer summary at the end.
	Default Level = iota
	// None prints nothing but errors.
	None
	// Noxfer prints record counts without the transfer summary.
	Noxfer
	// Periodic additionally rewrites a progress line once per tick.
	Periodic
)

// ParseLevel maps a status= operand to a Level.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "":
		return Default, nil
	case "none":
		return None, nil
	case "noxfer":
		return Noxfer, nil
	case "progress":
		return Periodic, nil
	}
	return Default, fmt.Errorf("invalid status level %q", s)
}

// Reporter consumes progress updates and prints human-readable output.
type Reporter struct {
	w     io.Writer
	level Level

	// lineOpen tracks whether a \r-rewritten progress line is pending a
	// terminating newline.
	lineOpen bool
}

// New creates a Reporter writing to w, normally standard error.
func New(w io.Writer, level Level) *Reporter {
	return &Reporter{w: w, level: level}
}

// Run consumes updates until the channel closes. A write failure here is
// returned and treated as a hard abort by the engine.
func (r *Reporter) Run(updates <-chan stats.ProgressUpdate) error {
	for u := range updates {
		var err error
		switch u.Kind {
		case stats.Periodic:
			if r.level == Periodic {
				err = r.printProgressLine(u)
			}
		case stats.Signal:
			if r.level != None {
				err = r.printStats(u)
			}
		case stats.Final:
			if r.level != None {
				err = r.printStats(u)
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Reporter) printProgressLine(u stats.ProgressUpdate) error {
	_, err := fmt.Fprintf(r.w, "\r%s", transferLine(u))
	r.lineOpen = true
	return err
}

func (r *Reporter) printStats(u stats.ProgressUpdate) error {
	if r.lineOpen {
		if _, err := fmt.Fprintln(r.w); err != nil {
			return err
		}
		r.lineOpen = false
	}
	if _, err := fmt.Fprintf(r.w, "%d+%d records in\n", u.Read.Full, u.Read.Partial); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(r.w, "%d+%d records out\n", u.Write.Full, u.Write.Partial); err != nil {
		return err
	}
	if n := u.Read.RecordsTruncated; n > 0 {
		word := "records"
		if n == 1 {
			word = "record"
		}
		if _, err := fmt.Fprintf(r.w, "%d truncated %s\n", n, word); err != nil {
			return err
		}
	}
	if r.level == Noxfer {
		return nil
	}
	_, err := fmt.Fprintf(r.w, "%s\n", transferLine(u))
	return err
}

// transferLine renders the "bytes copied" summary, e.g.
// "10000 bytes (10 kB, 9.8 KiB) copied, 0.0040 s, 2.5 MB/s".
func transferLine(u stats.ProgressUpdate) string {
	b := u.Write.BytesWritten
	secs := u.Elapsed.Seconds()

	rate := "Infinity B"
	if secs > 0 {
		rate = humanize.Bytes(uint64(float64(b) / secs))
	}

	if b < 1000 {
		return fmt.Sprintf("%d bytes copied, %.4g s, %s/s", b, secs, rate)
	}
	return fmt.Sprintf("%d bytes (%s, %s) copied, %.4g s, %s/s",
		b, humanize.Bytes(b), humanize.IBytes(b), secs, rate)
}
