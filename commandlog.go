package cmdlog

import (
	"context"
	"time"

	"github.com/dkirby/cmdlogd/internal/constants"
	"github.com/dkirby/cmdlogd/internal/interfaces"
)

// lock is a size-1 buffered channel used as a binary semaphore. Unlike
// sync.Mutex, acquiring it can be abandoned via ctx.Done(), giving
// CommandLog an interruptible lock acquisition without needing a kernel's
// wait-queue machinery.
type lock chan struct{}

func newLock() lock {
	l := make(lock, 1)
	l <- struct{}{}
	return l
}

func (l lock) acquire(ctx context.Context) error {
	select {
	case <-l:
		return nil
	case <-ctx.Done():
		return &Error{Code: ErrCodeInterrupted, Msg: ctx.Err().Error(), Inner: ctx.Err()}
	}
}

func (l lock) release() {
	l <- struct{}{}
}

// Config bundles the tunables a CommandLog is constructed with.
type Config struct {
	Capacity int                 // number of command slots; DefaultCapacity if zero
	Logger   interfaces.Logger   // nil means logging is suppressed
	Observer interfaces.Observer // nil means observations are discarded
}

// CommandLog is the serialized facade over a CircularCommandBuffer and a
// WriteAssembler: every exported method acquires the single log-wide lock
// before touching either, so the circular buffer and in-flight partial
// write are always observed in a mutually consistent state.
type CommandLog struct {
	mu  lock
	buf *CircularCommandBuffer
	asm WriteAssembler

	log      interfaces.Logger
	observer interfaces.Observer

	closed bool
}

// New constructs a CommandLog ready for concurrent use.
func New(cfg Config) *CommandLog {
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = constants.DefaultCapacity
	}
	observer := cfg.Observer
	if observer == nil {
		observer = noopObserver{}
	}
	return &CommandLog{
		mu:       newLock(),
		buf:      NewCircularCommandBuffer(capacity),
		log:      cfg.Logger,
		observer: observer,
	}
}

func (c *CommandLog) logf(level string, msg string, args ...any) {
	if c.log == nil {
		return
	}
	switch level {
	case "debug":
		c.log.Debug(msg, args...)
	case "info":
		c.log.Info(msg, args...)
	case "warn":
		c.log.Warn(msg, args...)
	case "error":
		c.log.Error(msg, args...)
	}
}

// AppendChunk feeds chunk into the write assembler. If chunk completes a
// command (its final byte is the terminator), the assembled command is
// admitted into the circular buffer, possibly evicting the oldest resident
// command. AppendChunk returns the number of bytes accepted, which is always
// len(chunk) on success - partial acceptance is not modeled.
func (c *CommandLog) AppendChunk(ctx context.Context, chunk []byte) (int, error) {
	start := time.Now()
	if err := c.mu.acquire(ctx); err != nil {
		return 0, WrapError("AppendChunk", err)
	}
	defer c.mu.release()

	if c.closed {
		err := NewError("AppendChunk", ErrCodeIO, "log is closed")
		c.observer.ObserveAppend(0, uint64(time.Since(start)), false)
		return 0, err
	}

	cmd, ok := c.asm.Feed(chunk)
	if ok {
		evicted, evictedOk := c.buf.Add(cmd)
		if evictedOk {
			c.observer.ObserveEvict(true)
			c.logf("debug", "evicted oldest command", "bytes", len(evicted))
		}
	}

	c.observer.ObserveAppend(uint64(len(chunk)), uint64(time.Since(start)), true)
	return len(chunk), nil
}

// ReadAt copies up to len(dst) bytes from the single resident command that
// contains byteOffset, starting at that command's corresponding intra-
// offset, and returns the number of bytes copied. It never spans into the
// next command even when dst has room left and a next command is resident:
// draining the full log concatenation means calling ReadAt repeatedly with
// an advancing offset, one command's tail per call. A byteOffset at or past
// the end of the log returns (0, nil): callers distinguish "end of data"
// from an error by checking err.
func (c *CommandLog) ReadAt(ctx context.Context, byteOffset int, dst []byte) (int, error) {
	start := time.Now()
	if err := c.mu.acquire(ctx); err != nil {
		return 0, WrapError("ReadAt", err)
	}
	defer c.mu.release()

	if c.closed {
		return 0, NewError("ReadAt", ErrCodeIO, "log is closed")
	}
	if byteOffset < 0 {
		err := NewError("ReadAt", ErrCodeInvalid, "negative offset")
		c.observer.ObserveRead(0, uint64(time.Since(start)), false)
		return 0, err
	}

	ref, intraOffset, ok := c.buf.Find(byteOffset)
	if !ok {
		c.observer.ObserveRead(0, uint64(time.Since(start)), true)
		return 0, nil
	}

	cmd, occupied := c.buf.At(ref)
	if !occupied {
		c.observer.ObserveRead(0, uint64(time.Since(start)), true)
		return 0, nil
	}
	n := copy(dst, cmd[intraOffset:])

	c.observer.ObserveRead(uint64(n), uint64(time.Since(start)), true)
	return n, nil
}

// TotalBytes returns the combined size of every resident command.
func (c *CommandLog) TotalBytes(ctx context.Context) (int, error) {
	if err := c.mu.acquire(ctx); err != nil {
		return 0, WrapError("TotalBytes", err)
	}
	defer c.mu.release()
	if c.closed {
		return 0, NewError("TotalBytes", ErrCodeIO, "log is closed")
	}
	return c.buf.TotalBytes(), nil
}

// SeekByCommand resolves (cmdIndex, intraOffset) to an absolute byte offset,
// the operation backing the device shim's SEEKTO ioctl. cmdIndex is 0-based
// in FIFO order. intraOffset must be less than the addressed command's length.
func (c *CommandLog) SeekByCommand(ctx context.Context, cmdIndex int, intraOffset int) (int, error) {
	start := time.Now()
	if err := c.mu.acquire(ctx); err != nil {
		return 0, WrapError("SeekByCommand", err)
	}
	defer c.mu.release()

	if c.closed {
		return 0, NewError("SeekByCommand", ErrCodeIO, "log is closed")
	}
	if intraOffset < 0 {
		err := NewError("SeekByCommand", ErrCodeInvalid, "negative intra-command offset")
		c.observer.ObserveSeek(uint64(time.Since(start)), false)
		return 0, err
	}

	ref, startOffset, ok := c.buf.FindByCommandIndex(cmdIndex)
	if !ok {
		err := NewError("SeekByCommand", ErrCodeInvalid, "command index out of range")
		c.observer.ObserveSeek(uint64(time.Since(start)), false)
		return 0, err
	}
	cmd, _ := c.buf.At(ref)
	if intraOffset >= len(cmd) {
		err := NewError("SeekByCommand", ErrCodeInvalid, "intra-command offset out of range")
		c.observer.ObserveSeek(uint64(time.Since(start)), false)
		return 0, err
	}

	c.observer.ObserveSeek(uint64(time.Since(start)), true)
	return startOffset + intraOffset, nil
}

// Close marks the log closed, discarding any in-flight partial command.
// Subsequent calls return an I/O error. Close itself never blocks on ctx,
// since shutdown must be able to complete even if some other caller is
// slow to release the lock; instead it uses a background context capped by
// a short grace period.
func (c *CommandLog) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.mu.acquire(ctx); err != nil {
		return WrapError("Close", err)
	}
	defer c.mu.release()

	c.asm.Reset()
	c.closed = true
	c.logf("info", "command log closed")
	return nil
}
