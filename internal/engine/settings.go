// Package engine implements the block copy core: the source and
// destination endpoints, the read and write pipelines, partial-block
// buffering, and the main copy loop.
package engine

import (
	"github.com/bamsammich/blit/internal/blocksize"
	"github.com/bamsammich/blit/internal/progress"
)

// Settings describes one transfer. It is immutable and constructed by the
// CLI layer before any endpoint is opened.
type Settings struct {
	// In is the source path; empty means standard input.
	In string
	// Out is the destination path; empty means standard output.
	Out string

	// IBS and OBS are the input and output block sizes in bytes. Both
	// must be positive.
	IBS int
	OBS int

	// Skip and Seek are byte offsets into the source and destination,
	// already resolved from block units by the CLI layer.
	Skip int64
	Seek int64

	// Count optionally limits the transfer. Nil means copy until the
	// source is exhausted.
	Count *blocksize.Count

	IConv  InputConv
	OConv  OutputConv
	IFlags InputFlags
	OFlags OutputFlags

	// Status selects the reporting verbosity.
	Status progress.Level

	// Buffered selects remainder-accumulating partial-block writes.
	Buffered bool
}

// InputConv holds the input-side conversions applied after each fill.
type InputConv struct {
	// Pad, when non-nil, pads every short input block up to IBS with the
	// given byte (conv=sync).
	Pad *byte
	// Swab swaps each pair of adjacent bytes (conv=swab).
	Swab bool
	// NoError truncates a failed read to the bytes already gathered
	// instead of aborting (conv=noerror).
	NoError bool
	// Block reshapes records between newline-delimited and fixed-width
	// forms. Nil means no record conversion.
	Block Converter
}

// OutputConv holds the output-side conversions and open-time behavior.
type OutputConv struct {
	// NoTrunc suppresses both the open-time and the finalize truncation.
	NoTrunc bool
	// Fsync and Fdatasync request a durability flush during finalize.
	Fsync     bool
	Fdatasync bool
	// Sparse writes all-zero output blocks as seek-created holes.
	Sparse bool
	// Excl fails if the destination already exists (conv=excl).
	Excl bool
	// NoCreat refuses to create a missing destination (conv=nocreat).
	NoCreat bool
}

// InputFlags are the open- and read-time flags for the source.
type InputFlags struct {
	Direct    bool
	Directory bool
	Dsync     bool
	Sync      bool
	NoATime   bool
	NoCtty    bool
	NoFollow  bool
	NonBlock  bool
	// FullBlock keeps re-reading until each block is completely filled.
	FullBlock bool
	// NoCache discards the page cache behind each span after it is read.
	NoCache bool
}

// OutputFlags are the open- and write-time flags for the destination.
type OutputFlags struct {
	Append   bool
	Direct   bool
	Dsync    bool
	Sync     bool
	NoCtty   bool
	NoFollow bool
	NonBlock bool
	// NoCache discards the page cache behind each span after it is
	// written.
	NoCache bool
}
