// Package stats holds the transfer counters accumulated by the copy loop
// and the progress snapshots handed to the reporter.
package stats

import "time"

// ReadStat counts input-side activity. Byte totals are 64-bit so very
// large transfers cannot overflow them.
type ReadStat struct {
	// Full is the number of reads that returned an entire input block.
	Full uint64
	// Partial is the number of reads that returned fewer bytes than the
	// input block size.
	Partial uint64
	// RecordsTruncated counts records shortened by a blocking conversion.
	RecordsTruncated uint64
	// BytesRead is the cumulative number of bytes obtained from the source.
	BytesRead uint64
}

// Add returns the sum of two ReadStats.
func (r ReadStat) Add(o ReadStat) ReadStat {
	return ReadStat{
		Full:             r.Full + o.Full,
		Partial:          r.Partial + o.Partial,
		RecordsTruncated: r.RecordsTruncated + o.RecordsTruncated,
		BytesRead:        r.BytesRead + o.BytesRead,
	}
}

// Blocks returns the total number of block reads, complete or not.
func (r ReadStat) Blocks() uint64 { return r.Full + r.Partial }

// WriteStat counts output-side activity.
type WriteStat struct {
	// Full is the number of writes that moved an entire output block.
	Full uint64
	// Partial is the number of writes shorter than the output block size.
	Partial uint64
	// BytesWritten is the cumulative number of bytes handed to the sink.
	BytesWritten uint64
}

// Add returns the sum of two WriteStats.
func (w WriteStat) Add(o WriteStat) WriteStat {
	return WriteStat{
		Full:         w.Full + o.Full,
		Partial:      w.Partial + o.Partial,
		BytesWritten: w.BytesWritten + o.BytesWritten,
	}
}

// UpdateKind identifies why a progress update was emitted.
type UpdateKind int

const (
	// Periodic updates come from the alarm's timer tick.
	Periodic UpdateKind = iota + 1
	// Signal updates come from a user-requested report (SIGUSR1).
	Signal
	// Final is the single end-of-transfer update.
	Final
)

var kindNames = [...]string{
	Periodic: "Periodic",
	Signal:   "Signal",
	Final:    "Final",
}

func (k UpdateKind) String() string {
	if k >= 1 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Unknown"
}

// ProgressUpdate is an immutable point-in-time snapshot of the transfer,
// produced once per report and sent to the reporter goroutine.
type ProgressUpdate struct {
	Kind    UpdateKind
	Read    ReadStat
	Write   WriteStat
	Elapsed time.Duration
}
