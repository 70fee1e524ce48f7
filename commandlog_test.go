package cmdlog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendChunk_AssemblesAndAppendsOnTerminator(t *testing.T) {
	log := New(Config{Capacity: 3})
	ctx := context.Background()

	n, err := log.AppendChunk(ctx, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	total, err := log.TotalBytes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, total, "no command admitted until terminator arrives")

	n, err = log.AppendChunk(ctx, []byte("\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	total, err = log.TotalBytes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, total)
}

func TestReadAt_NeverSpansPastASingleCommandEvenWhenDstHasRoom(t *testing.T) {
	log := New(Config{Capacity: 3})
	ctx := context.Background()
	_, err := log.AppendChunk(ctx, []byte("ab\n"))
	require.NoError(t, err)
	_, err = log.AppendChunk(ctx, []byte("cde\n"))
	require.NoError(t, err)

	dst := make([]byte, 100)
	n, err := log.ReadAt(ctx, 0, dst)
	require.NoError(t, err)
	assert.Equal(t, "ab\n", string(dst[:n]), "a single call must stop at the end of the command it started in")

	n, err = log.ReadAt(ctx, 3, dst)
	require.NoError(t, err)
	assert.Equal(t, "cde\n", string(dst[:n]))
}

func TestReadAt_MidCommandReadStopsAtCommandEnd(t *testing.T) {
	// S5: "aa\n","bbb\n","c\n" with a cursor at offset 5 (inside "bbb\n") and a
	// 10-byte destination must return only that command's remaining tail,
	// never continuing on into "c\n".
	log := New(Config{Capacity: 3})
	ctx := context.Background()
	log.AppendChunk(ctx, []byte("aa\n"))
	log.AppendChunk(ctx, []byte("bbb\n"))
	log.AppendChunk(ctx, []byte("c\n"))

	dst := make([]byte, 10)
	n, err := log.ReadAt(ctx, 5, dst)
	require.NoError(t, err)
	assert.Equal(t, "b\n", string(dst[:n]))

	n, err = log.ReadAt(ctx, 7, dst)
	require.NoError(t, err)
	assert.Equal(t, "c\n", string(dst[:n]))

	n, err = log.ReadAt(ctx, 9, dst)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

// drainAll reads the full current log concatenation via repeated
// command-sliced ReadAt calls, the same pattern a real caller uses.
func drainAll(t *testing.T, log *CommandLog) string {
	t.Helper()
	ctx := context.Background()
	var out []byte
	offset := 0
	buf := make([]byte, 100)
	for {
		n, err := log.ReadAt(ctx, offset, buf)
		require.NoError(t, err)
		if n == 0 {
			break
		}
		out = append(out, buf[:n]...)
		offset += n
	}
	return string(out)
}

func TestReadAt_DrainPatternEndsAtZero(t *testing.T) {
	log := New(Config{Capacity: 3})
	ctx := context.Background()
	_, err := log.AppendChunk(ctx, []byte("xy\n"))
	require.NoError(t, err)

	dst := make([]byte, 2)
	n, err := log.ReadAt(ctx, 0, dst)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = log.ReadAt(ctx, 2, dst)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = log.ReadAt(ctx, 3, dst)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestAppendChunk_EvictsOldestOnceCapacityExceeded(t *testing.T) {
	log := New(Config{Capacity: 2})
	ctx := context.Background()
	_, err := log.AppendChunk(ctx, []byte("a\n"))
	require.NoError(t, err)
	_, err = log.AppendChunk(ctx, []byte("b\n"))
	require.NoError(t, err)
	_, err = log.AppendChunk(ctx, []byte("c\n"))
	require.NoError(t, err)

	assert.Equal(t, "b\nc\n", drainAll(t, log))
}

func TestSeekByCommand_ResolvesToAbsoluteOffset(t *testing.T) {
	log := New(Config{Capacity: 3})
	ctx := context.Background()
	log.AppendChunk(ctx, []byte("ab\n"))
	log.AppendChunk(ctx, []byte("cde\n"))

	off, err := log.SeekByCommand(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, off) // "ab\n" (3) + 2 into "cde\n"
}

func TestSeekByCommand_OutOfRangeIsInvalid(t *testing.T) {
	log := New(Config{Capacity: 3})
	ctx := context.Background()
	log.AppendChunk(ctx, []byte("ab\n"))

	_, err := log.SeekByCommand(ctx, 5, 0)
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeInvalid))

	_, err = log.SeekByCommand(ctx, 0, 100)
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeInvalid))
}

func TestSeekByCommand_IntraOffsetEqualToCommandSizeIsInvalid(t *testing.T) {
	// S6: an intra-command offset must be strictly less than the command's
	// size; offset == size addresses one past its last byte.
	log := New(Config{Capacity: 3})
	ctx := context.Background()
	log.AppendChunk(ctx, []byte("ab\n")) // size 3, valid offsets 0..2

	_, err := log.SeekByCommand(ctx, 0, 3)
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeInvalid))

	off, err := log.SeekByCommand(ctx, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, off)
}

func TestAppendChunk_InterruptedByContextCancellation(t *testing.T) {
	log := New(Config{Capacity: 3})

	blocked, release := acquireExternally(t, log)
	defer release()
	_ = blocked

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := log.AppendChunk(ctx, []byte("x\n"))
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeInterrupted))
}

// acquireExternally grabs the log's internal lock directly to simulate a
// slow concurrent holder, returning a release func the test must call.
func acquireExternally(t *testing.T, log *CommandLog) (bool, func()) {
	t.Helper()
	require.NoError(t, log.mu.acquire(context.Background()))
	return true, log.mu.release
}

func TestClose_RejectsSubsequentOperations(t *testing.T) {
	log := New(Config{Capacity: 3})
	ctx := context.Background()
	require.NoError(t, log.Close())

	_, err := log.AppendChunk(ctx, []byte("x\n"))
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeIO))
}

func TestAppendChunk_ObserverIsNotified(t *testing.T) {
	rec := &RecordingObserver{}
	log := New(Config{Capacity: 2, Observer: rec})
	ctx := context.Background()

	log.AppendChunk(ctx, []byte("a\n"))
	log.AppendChunk(ctx, []byte("b\n"))
	log.AppendChunk(ctx, []byte("c\n"))

	appends, _, evicts, _ := rec.CallCounts()
	assert.Equal(t, 3, appends)
	assert.Equal(t, 1, evicts)
}
