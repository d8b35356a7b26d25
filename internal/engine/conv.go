package engine

// Converter reshapes a filled buffer between record formats. It bumps the
// caller's truncated-record counter whenever trailing data had to be
// dropped to fit a fixed-width record.
type Converter interface {
	Convert(buf []byte, truncated *uint64) []byte
}

// recordPad is the byte used to pad and trim fixed-width records.
const recordPad = ' '

// BlockRecords converts newline-delimited lines into fixed-width records:
// each line is padded with spaces to CBS bytes, its newline dropped, and
// any line longer than CBS truncated.
type BlockRecords struct {
	CBS int
}

func (c BlockRecords) Convert(buf []byte, truncated *uint64) []byte {
	out := make([]byte, 0, len(buf)+c.CBS)
	start := 0
	flush := func(line []byte) {
		if len(line) > c.CBS {
			line = line[:c.CBS]
			*truncated++
		}
		out = append(out, line...)
		for i := len(line); i < c.CBS; i++ {
			out = append(out, recordPad)
		}
	}
	for i, b := range buf {
		if b == '\n' {
			flush(buf[start:i])
			start = i + 1
		}
	}
	if start < len(buf) {
		flush(buf[start:])
	}
	return out
}

// UnblockRecords converts fixed-width records back into newline-delimited
// lines: trailing pad bytes are trimmed from each CBS-wide record and a
// newline appended.
type UnblockRecords struct {
	CBS int
}

func (c UnblockRecords) Convert(buf []byte, _ *uint64) []byte {
	out := make([]byte, 0, len(buf)+len(buf)/c.CBS+1)
	for base := 0; base < len(buf); base += c.CBS {
		end := base + c.CBS
		if end > len(buf) {
			end = len(buf)
		}
		rec := buf[base:end]
		trim := len(rec)
		for trim > 0 && rec[trim-1] == recordPad {
			trim--
		}
		out = append(out, rec[:trim]...)
		out = append(out, '\n')
	}
	return out
}

// swapPairs swaps each pair of adjacent bytes in place, leaving a trailing
// unpaired byte untouched (conv=swab).
func swapPairs(buf []byte) {
	for i := 0; i+1 < len(buf); i += 2 {
		buf[i], buf[i+1] = buf[i+1], buf[i]
	}
}
