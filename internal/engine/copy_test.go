package engine

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/blit/internal/blocksize"
	"github.com/bamsammich/blit/internal/stats"
)

// captureReporter drains the update channel and keeps the final snapshot.
type captureReporter struct {
	final *stats.ProgressUpdate
	err   error
}

func (r *captureReporter) Run(updates <-chan stats.ProgressUpdate) error {
	for u := range updates {
		if u.Kind == stats.Final {
			u := u
			r.final = &u
		}
	}
	return r.err
}

func runCopy(t *testing.T, s Settings) (Result, *captureReporter) {
	t.Helper()

	in, err := OpenInput(s)
	require.NoError(t, err)
	defer in.Close()

	out, err := OpenOutput(s)
	require.NoError(t, err)
	defer out.Close()

	rep := &captureReporter{}
	result, err := Run(s, in, out, Hooks{Reporter: rep})
	require.NoError(t, err)
	return result, rep
}

func TestCopyEndToEnd(t *testing.T) {
	data := pattern(10000)
	src := writeTempFile(t, data)
	dst := filepath.Join(t.TempDir(), "out")

	result, rep := runCopy(t, Settings{In: src, Out: dst, IBS: 512, OBS: 4096})

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	// 10000 = 19*512 + 272 in, 2*4096 + 1808 out.
	assert.Equal(t, uint64(19), result.Read.Full)
	assert.Equal(t, uint64(1), result.Read.Partial)
	assert.Equal(t, uint64(10000), result.Read.BytesRead)
	assert.Equal(t, uint64(2), result.Write.Full)
	assert.Equal(t, uint64(1), result.Write.Partial)
	assert.Equal(t, uint64(10000), result.Write.BytesWritten)
	assert.False(t, result.Degraded)

	require.NotNil(t, rep.final)
	assert.Equal(t, result.Read, rep.final.Read)
	assert.Equal(t, result.Write, rep.final.Write)
}

func TestCopyBuffered(t *testing.T) {
	data := pattern(10000)
	src := writeTempFile(t, data)
	dst := filepath.Join(t.TempDir(), "out")

	result, _ := runCopy(t, Settings{In: src, Out: dst, IBS: 512, OBS: 4096, Buffered: true})

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	// The flushed remainder is the only partial write.
	assert.Equal(t, uint64(2), result.Write.Full)
	assert.Equal(t, uint64(1), result.Write.Partial)
	assert.Equal(t, uint64(10000), result.Write.BytesWritten)
}

func TestCopyBlockCountLimit(t *testing.T) {
	data := pattern(10000)
	src := writeTempFile(t, data)
	dst := filepath.Join(t.TempDir(), "out")

	result, _ := runCopy(t, Settings{
		In: src, Out: dst, IBS: 512, OBS: 512,
		Count: blocksize.Blocks(5),
	})

	assert.Equal(t, uint64(5), result.Read.Full)
	assert.Equal(t, uint64(2560), result.Write.BytesWritten)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, data[:2560], got)
}

func TestCopyByteCountLimit(t *testing.T) {
	data := pattern(10000)
	src := writeTempFile(t, data)
	dst := filepath.Join(t.TempDir(), "out")

	result, _ := runCopy(t, Settings{
		In: src, Out: dst, IBS: 512, OBS: 512,
		Count: blocksize.BytesCount(7000),
	})

	assert.Equal(t, uint64(7000), result.Write.BytesWritten)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, data[:7000], got)
}

func TestCopyZeroCountShortCircuit(t *testing.T) {
	src := writeTempFile(t, pattern(10000))
	dst := filepath.Join(t.TempDir(), "out")

	result, rep := runCopy(t, Settings{
		In: src, Out: dst, IBS: 512, OBS: 512,
		Count: blocksize.Blocks(0),
	})

	assert.Equal(t, stats.ReadStat{}, result.Read)
	assert.Equal(t, stats.WriteStat{}, result.Write)
	require.NotNil(t, rep.final)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCopyNoTruncPreservesTail(t *testing.T) {
	src := writeTempFile(t, []byte("1234"))
	dst := filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.WriteFile(dst, []byte("ABCDEFGHIJ"), 0o644))

	runCopy(t, Settings{
		In: src, Out: dst, IBS: 512, OBS: 512,
		OConv: OutputConv{NoTrunc: true},
	})

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, []byte("1234EFGHIJ"), got)
}

func TestCopyTruncatesByDefault(t *testing.T) {
	src := writeTempFile(t, []byte("1234"))
	dst := filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.WriteFile(dst, []byte("ABCDEFGHIJ"), 0o644))

	runCopy(t, Settings{In: src, Out: dst, IBS: 512, OBS: 512})

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, []byte("1234"), got)
}

func TestCopyPadShortRecord(t *testing.T) {
	src := writeTempFile(t, pattern(100))
	dst := filepath.Join(t.TempDir(), "out")

	pad := byte(0xAA)
	result, _ := runCopy(t, Settings{
		In: src, Out: dst, IBS: 512, OBS: 512,
		IConv: InputConv{Pad: &pad},
	})

	assert.Equal(t, uint64(1), result.Read.Partial)
	assert.Zero(t, result.Read.Full)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Len(t, got, 512)
	assert.Equal(t, pattern(100), got[:100])
	for _, b := range got[100:] {
		assert.Equal(t, pad, b)
	}
}

func TestCopySkipAndSeek(t *testing.T) {
	data := pattern(2048)
	src := writeTempFile(t, data)
	dst := filepath.Join(t.TempDir(), "out")

	runCopy(t, Settings{
		In: src, Out: dst, IBS: 512, OBS: 512,
		Skip: 512, Seek: 256,
	})

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Len(t, got, 256+1536)
	assert.Equal(t, make([]byte, 256), got[:256])
	assert.Equal(t, data[512:], got[256:])
}

func TestCopyBlockConversion(t *testing.T) {
	src := writeTempFile(t, []byte("hi\nlonger than eight\n"))
	dst := filepath.Join(t.TempDir(), "out")

	result, _ := runCopy(t, Settings{
		In: src, Out: dst, IBS: 512, OBS: 512,
		IConv: InputConv{Block: BlockRecords{CBS: 8}},
	})

	assert.Equal(t, uint64(1), result.Read.RecordsTruncated)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, []byte("hi      longer t"), got)
}

func TestCopySwabEndToEnd(t *testing.T) {
	src := writeTempFile(t, []byte("badcfe"))
	dst := filepath.Join(t.TempDir(), "out")

	runCopy(t, Settings{
		In: src, Out: dst, IBS: 512, OBS: 512,
		IConv: InputConv{Swab: true},
	})

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, []byte("abcdef"), got)
}

func TestCopyFsync(t *testing.T) {
	src := writeTempFile(t, pattern(1024))
	dst := filepath.Join(t.TempDir(), "out")

	runCopy(t, Settings{
		In: src, Out: dst, IBS: 512, OBS: 512,
		OConv: OutputConv{Fsync: true},
	})

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, pattern(1024), got)
}

func TestCopyNoCacheDiscards(t *testing.T) {
	src := writeTempFile(t, pattern(8192))
	dst := filepath.Join(t.TempDir(), "out")

	result, _ := runCopy(t, Settings{
		In: src, Out: dst, IBS: 512, OBS: 512,
		IFlags: InputFlags{NoCache: true},
		OFlags: OutputFlags{NoCache: true},
	})
	assert.False(t, result.Degraded)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, pattern(8192), got)
}

func TestCopyReporterFailureIsHard(t *testing.T) {
	src := writeTempFile(t, pattern(1024))
	dst := filepath.Join(t.TempDir(), "out")

	s := Settings{In: src, Out: dst, IBS: 512, OBS: 512}
	in, err := OpenInput(s)
	require.NoError(t, err)
	defer in.Close()

	out, err := OpenOutput(s)
	require.NoError(t, err)
	defer out.Close()

	rep := &captureReporter{err: errors.New("boom")}
	_, err = Run(s, in, out, Hooks{Reporter: rep})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "progress reporter")
}

func TestFinalizeDoesNotBlockOnDeadReporter(t *testing.T) {
	src := writeTempFile(t, pattern(100))
	dst := filepath.Join(t.TempDir(), "out")
	s := Settings{In: src, Out: dst, IBS: 512, OBS: 512}

	in, err := OpenInput(s)
	require.NoError(t, err)
	defer in.Close()

	out, err := OpenOutput(s)
	require.NoError(t, err)
	defer out.Close()

	// A reporter that died mid-transfer stops draining and leaves the
	// backlog full; the final update must not wait on it.
	updates := make(chan stats.ProgressUpdate, updateBacklog)
	for i := 0; i < updateBacklog; i++ {
		updates <- stats.ProgressUpdate{Kind: stats.Periodic}
	}
	repErr := make(chan error, 1)
	repErr <- errors.New("boom")

	done := make(chan error, 1)
	go func() {
		_, err := finalize(s, NewBlockWriter(out, false), in, out,
			stats.ReadStat{}, stats.WriteStat{}, time.Now(), updates, repErr)
		done <- err
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "progress reporter")
	case <-time.After(2 * time.Second):
		t.Fatal("finalize did not return")
	}
}

func TestCopyByteCountWithSyncPadsFinalRecord(t *testing.T) {
	data := pattern(10000)
	src := writeTempFile(t, data)
	dst := filepath.Join(t.TempDir(), "out")

	pad := byte(0)
	result, _ := runCopy(t, Settings{
		In: src, Out: dst, IBS: 512, OBS: 512,
		Count: blocksize.BytesCount(7000),
		IConv: InputConv{Pad: &pad},
	})

	// 7000 = 13*512 + 344: the byte limit ends mid-block, and the 344-byte
	// tail is still padded to a whole record.
	assert.Equal(t, uint64(13), result.Read.Full)
	assert.Equal(t, uint64(1), result.Read.Partial)
	assert.Equal(t, uint64(7000), result.Read.BytesRead)
	assert.Equal(t, uint64(14), result.Write.Full)
	assert.Equal(t, uint64(7168), result.Write.BytesWritten)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Len(t, got, 7168)
	assert.Equal(t, data[:7000], got[:7000])
	assert.Equal(t, make([]byte, 168), got[7000:])
}

func TestCopyMissingSourceFails(t *testing.T) {
	s := Settings{In: filepath.Join(t.TempDir(), "nope"), IBS: 512, OBS: 512}
	_, err := OpenInput(s)
	assert.Error(t, err)
}
