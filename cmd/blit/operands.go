package main

import (
	"fmt"
	"math"
	"strings"

	"github.com/bamsammich/blit/internal/blocksize"
	"github.com/bamsammich/blit/internal/engine"
	"github.com/bamsammich/blit/internal/progress"
)

const defaultBlockSize = 512

// parsed is the outcome of operand parsing, before config-file defaults
// are layered on.
type parsed struct {
	settings    engine.Settings
	statusGiven bool
}

// parseOperands maps dd-style KEY=VALUE operands onto engine settings.
// Units for skip, seek and count are blocks unless the matching *_bytes
// flag was given, and bs= overrides ibs/obs regardless of operand order.
func parseOperands(args []string) (parsed, error) {
	var (
		s    engine.Settings
		bs   int
		cbs  int
		skip uint64
		seek uint64

		countVal   uint64
		countGiven bool

		statusGiven bool

		syncPad     bool
		blockMode   bool
		unblockMode bool

		skipBytes  bool
		seekBytes  bool
		countBytes bool
	)
	s.IBS = defaultBlockSize
	s.OBS = defaultBlockSize

	for _, arg := range args {
		key, val, ok := strings.Cut(arg, "=")
		if !ok {
			return parsed{}, fmt.Errorf("unrecognized operand %q", arg)
		}
		var err error
		switch key {
		case "if":
			s.In = val
		case "of":
			s.Out = val
		case "bs":
			bs, err = blocksize.ParseBlockSize(val)
		case "ibs":
			s.IBS, err = blocksize.ParseBlockSize(val)
		case "obs":
			s.OBS, err = blocksize.ParseBlockSize(val)
		case "cbs":
			cbs, err = blocksize.ParseBlockSize(val)
		case "skip":
			skip, err = blocksize.Parse(val)
		case "seek":
			seek, err = blocksize.Parse(val)
		case "count":
			countVal, err = blocksize.Parse(val)
			countGiven = true
		case "status":
			s.Status, err = progress.ParseLevel(val)
			statusGiven = true
		case "conv":
			err = parseConv(val, &s.IConv, &s.OConv, &syncPad, &blockMode, &unblockMode)
		case "iflag":
			err = parseIFlags(val, &s.IFlags, &skipBytes, &countBytes)
		case "oflag":
			err = parseOFlags(val, &s.OFlags, &seekBytes)
		default:
			return parsed{}, fmt.Errorf("unrecognized operand %q", arg)
		}
		if err != nil {
			return parsed{}, fmt.Errorf("operand %s: %w", key, err)
		}
	}

	if bs > 0 {
		s.IBS = bs
		s.OBS = bs
	}

	if blockMode && unblockMode {
		return parsed{}, fmt.Errorf("conv=block and conv=unblock are mutually exclusive")
	}
	if (blockMode || unblockMode) && cbs == 0 {
		return parsed{}, fmt.Errorf("conv=block and conv=unblock require cbs=")
	}
	if blockMode {
		s.IConv.Block = engine.BlockRecords{CBS: cbs}
	}
	if unblockMode {
		s.IConv.Block = engine.UnblockRecords{CBS: cbs}
	}
	if syncPad {
		pad := byte(0x00)
		if blockMode || unblockMode {
			pad = ' '
		}
		s.IConv.Pad = &pad
	}
	if s.OConv.Excl && s.OConv.NoCreat {
		return parsed{}, fmt.Errorf("conv=excl and conv=nocreat are mutually exclusive")
	}

	var err error
	s.Skip, err = resolveOffset(skip, skipBytes, s.IBS, "skip")
	if err != nil {
		return parsed{}, err
	}
	s.Seek, err = resolveOffset(seek, seekBytes, s.OBS, "seek")
	if err != nil {
		return parsed{}, err
	}
	if countGiven {
		if countBytes {
			s.Count = blocksize.BytesCount(countVal)
		} else {
			s.Count = blocksize.Blocks(countVal)
		}
	}

	return parsed{settings: s, statusGiven: statusGiven}, nil
}

// resolveOffset converts a skip/seek operand into an absolute byte offset.
func resolveOffset(n uint64, inBytes bool, blockSize int, name string) (int64, error) {
	if !inBytes {
		if n != 0 && n > math.MaxUint64/uint64(blockSize) {
			return 0, fmt.Errorf("operand %s: value overflows", name)
		}
		n *= uint64(blockSize)
	}
	if n > math.MaxInt64 {
		return 0, fmt.Errorf("operand %s: value overflows", name)
	}
	return int64(n), nil
}

func parseConv(list string, ic *engine.InputConv, oc *engine.OutputConv, syncPad, block, unblock *bool) error {
	for _, flag := range strings.Split(list, ",") {
		switch flag {
		case "sync":
			*syncPad = true
		case "swab":
			ic.Swab = true
		case "noerror":
			ic.NoError = true
		case "block":
			*block = true
		case "unblock":
			*unblock = true
		case "notrunc":
			oc.NoTrunc = true
		case "fsync":
			oc.Fsync = true
		case "fdatasync":
			oc.Fdatasync = true
		case "sparse":
			oc.Sparse = true
		case "excl":
			oc.Excl = true
		case "nocreat":
			oc.NoCreat = true
		default:
			return fmt.Errorf("unsupported conversion %q", flag)
		}
	}
	return nil
}

func parseIFlags(list string, f *engine.InputFlags, skipBytes, countBytes *bool) error {
	for _, flag := range strings.Split(list, ",") {
		switch flag {
		case "direct":
			f.Direct = true
		case "directory":
			f.Directory = true
		case "dsync":
			f.Dsync = true
		case "sync":
			f.Sync = true
		case "noatime":
			f.NoATime = true
		case "noctty":
			f.NoCtty = true
		case "nofollow":
			f.NoFollow = true
		case "nonblock":
			f.NonBlock = true
		case "fullblock":
			f.FullBlock = true
		case "nocache":
			f.NoCache = true
		case "skip_bytes":
			*skipBytes = true
		case "count_bytes":
			*countBytes = true
		default:
			return fmt.Errorf("unsupported input flag %q", flag)
		}
	}
	return nil
}

func parseOFlags(list string, f *engine.OutputFlags, seekBytes *bool) error {
	for _, flag := range strings.Split(list, ",") {
		switch flag {
		case "append":
			f.Append = true
		case "direct":
			f.Direct = true
		case "dsync":
			f.Dsync = true
		case "sync":
			f.Sync = true
		case "noctty":
			f.NoCtty = true
		case "nofollow":
			f.NoFollow = true
		case "nonblock":
			f.NonBlock = true
		case "nocache":
			f.NoCache = true
		case "seek_bytes":
			*seekBytes = true
		default:
			return fmt.Errorf("unsupported output flag %q", flag)
		}
	}
	return nil
}
