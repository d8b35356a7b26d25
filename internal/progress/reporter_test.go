package progress

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/blit/internal/stats"
)

func runReporter(t *testing.T, level Level, us ...stats.ProgressUpdate) string {
	t.Helper()

	var sb strings.Builder
	r := New(&sb, level)

	updates := make(chan stats.ProgressUpdate, len(us))
	for _, u := range us {
		updates <- u
	}
	close(updates)

	require.NoError(t, r.Run(updates))
	return sb.String()
}

func finalUpdate() stats.ProgressUpdate {
	return stats.ProgressUpdate{
		Kind:    stats.Final,
		Read:    stats.ReadStat{Full: 19, Partial: 1, BytesRead: 10000},
		Write:   stats.WriteStat{Full: 2, Partial: 1, BytesWritten: 10000},
		Elapsed: 4 * time.Millisecond,
	}
}

func TestFinalSummary(t *testing.T) {
	out := runReporter(t, Default, finalUpdate())

	assert.Contains(t, out, "19+1 records in\n")
	assert.Contains(t, out, "2+1 records out\n")
	assert.Contains(t, out, "10000 bytes (10 kB, 9.8 KiB) copied")
	assert.NotContains(t, out, "truncated")
}

func TestTruncatedRecords(t *testing.T) {
	u := finalUpdate()
	u.Read.RecordsTruncated = 1
	out := runReporter(t, Default, u)
	assert.Contains(t, out, "1 truncated record\n")

	u.Read.RecordsTruncated = 3
	out = runReporter(t, Default, u)
	assert.Contains(t, out, "3 truncated records\n")
}

func TestLevelNoneSilent(t *testing.T) {
	out := runReporter(t, None, finalUpdate())
	assert.Empty(t, out)
}

func TestLevelNoxferOmitsSummary(t *testing.T) {
	out := runReporter(t, Noxfer, finalUpdate())
	assert.Contains(t, out, "19+1 records in\n")
	assert.NotContains(t, out, "bytes")
}

func TestPeriodicLineOnlyAtProgressLevel(t *testing.T) {
	periodic := finalUpdate()
	periodic.Kind = stats.Periodic

	out := runReporter(t, Default, periodic)
	assert.Empty(t, out)

	out = runReporter(t, Periodic, periodic, finalUpdate())
	assert.True(t, strings.HasPrefix(out, "\r"))
	// The pending progress line is terminated before the final stats.
	assert.Contains(t, out, "\n19+1 records in\n")
}

func TestSmallTransferOmitsParenthetical(t *testing.T) {
	u := finalUpdate()
	u.Write.BytesWritten = 512
	out := runReporter(t, Default, u)
	assert.Contains(t, out, "512 bytes copied")
	assert.NotContains(t, out, "(")
}

func TestParseLevel(t *testing.T) {
	for s, want := range map[string]Level{
		"":         Default,
		"none":     None,
		"noxfer":   Noxfer,
		"progress": Periodic,
	} {
		got, err := ParseLevel(s)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}
