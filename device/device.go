// Package device implements the operation set a character driver's
// file_operations table would dispatch to - Open, Read, Write, Llseek,
// Ioctl, Release - as a directly callable, directly testable Go API over a
// shared *cmdlog.CommandLog. It deliberately stops short of registering a
// live /dev node: binding this shim to a kernel module, a FUSE mount, or
// any other real device surface is the external adapter's job.
package device

import (
	"context"
	"io"

	"github.com/dkirby/cmdlogd"
	"github.com/dkirby/cmdlogd/internal/uapi"
)

// Shim dispatches device operations against one shared command log, the
// same way a driver's file_operations table dispatches against one
// underlying device.
type Shim struct {
	log *cmdlog.CommandLog
}

// New returns a Shim bound to log.
func New(log *cmdlog.CommandLog) *Shim {
	return &Shim{log: log}
}

// Handle is the per-open state a character driver keeps in struct file's
// private_data - here, simply a position cursor into the shared log.
type Handle struct {
	cursor *cmdlog.PositionCursor
}

// Open allocates a Handle positioned at the start of the log.
func (s *Shim) Open() (*Handle, error) {
	return &Handle{cursor: cmdlog.NewPositionCursor(s.log)}, nil
}

// Read performs a command-sliced read at h's current position and advances
// it by the number of bytes returned.
func (s *Shim) Read(ctx context.Context, h *Handle, buf []byte) (int, error) {
	return h.cursor.Read(ctx, buf)
}

// Write appends buf to the shared log's assembler. The handle's position is
// not consulted: appends are logical, not positional, exactly as a real
// append-only character device ignores f_pos on write.
func (s *Shim) Write(ctx context.Context, h *Handle, buf []byte) (int, error) {
	return s.log.AppendChunk(ctx, buf)
}

// Llseek repositions h per whence (io.SeekStart / io.SeekCurrent /
// io.SeekEnd) across the log's current total byte count.
func (s *Shim) Llseek(ctx context.Context, h *Handle, offset int64, whence int) (int64, error) {
	var w cmdlog.SeekWhence
	switch whence {
	case io.SeekStart:
		w = cmdlog.SeekStart
	case io.SeekCurrent:
		w = cmdlog.SeekCurrent
	case io.SeekEnd:
		w = cmdlog.SeekEnd
	default:
		return int64(h.cursor.Offset()), cmdlog.NewError("Llseek", cmdlog.ErrCodeInvalid, "unknown whence")
	}
	newOffset, err := h.cursor.Seek(ctx, int(offset), w)
	return int64(newOffset), err
}

// Ioctl handles the SEEKTO request, the only ioctl this device recognizes.
func (s *Shim) Ioctl(ctx context.Context, h *Handle, req uapi.SeekToRequest) error {
	_, err := h.cursor.SeekToCommand(ctx, int(req.WriteCmd), int(req.WriteCmdOffset))
	return err
}

// Release drops the handle. There is no per-handle resource to free beyond
// letting it go out of scope, since PositionCursor holds no lock between
// calls.
func (s *Shim) Release(h *Handle) error {
	return nil
}
