package cmdlog

import "context"

// SeekWhence mirrors io.Seeker's whence values for PositionCursor.Seek. The
// command-indexed seek the device shim's SEEKTO ioctl needs is a separate
// method, PositionCursor.SeekToCommand, not a SeekWhence value.
type SeekWhence int

const (
	SeekStart   SeekWhence = iota // offset is absolute from the start of the log
	SeekCurrent                   // offset is relative to the cursor's current position
	SeekEnd                       // offset is relative to TotalBytes()
)

// PositionCursor is a per-handle read position into a shared CommandLog,
// the role a struct file's f_pos plays for the character device and a
// per-connection read offset plays for the network front end. It holds no
// lock of its own between calls - every method that needs a consistent view
// of the log's size re-reads it under the log's own lock via TotalBytes.
type PositionCursor struct {
	log    *CommandLog
	offset int
}

// NewPositionCursor returns a cursor positioned at the start of log.
func NewPositionCursor(log *CommandLog) *PositionCursor {
	return &PositionCursor{log: log}
}

// Offset returns the cursor's current absolute byte offset.
func (p *PositionCursor) Offset() int {
	return p.offset
}

// Seek repositions the cursor per whence, matching the device shim's Llseek
// operation. SeekEnd requires a lock acquisition to read TotalBytes, so it
// takes a context and can be interrupted like any other log operation.
func (p *PositionCursor) Seek(ctx context.Context, offset int, whence SeekWhence) (int, error) {
	var base int
	switch whence {
	case SeekStart:
		base = 0
	case SeekCurrent:
		base = p.offset
	case SeekEnd:
		total, err := p.log.TotalBytes(ctx)
		if err != nil {
			return p.offset, err
		}
		base = total
	default:
		return p.offset, NewError("Seek", ErrCodeInvalid, "unknown whence")
	}
	newOffset := base + offset
	if newOffset < 0 {
		return p.offset, NewError("Seek", ErrCodeInvalid, "resulting offset is negative")
	}
	p.offset = newOffset
	return p.offset, nil
}

// SeekToCommand repositions the cursor to the start of a resident command
// plus an intra-command offset, backing the SEEKTO ioctl.
func (p *PositionCursor) SeekToCommand(ctx context.Context, cmdIndex, intraOffset int) (int, error) {
	abs, err := p.log.SeekByCommand(ctx, cmdIndex, intraOffset)
	if err != nil {
		return p.offset, err
	}
	p.offset = abs
	return p.offset, nil
}

// Read copies the next bytes from the log into dst starting at the cursor's
// current offset and advances the cursor by the number of bytes copied.
// Read returns (0, nil) at end of data, the same drain-to-zero contract as
// CommandLog.ReadAt.
func (p *PositionCursor) Read(ctx context.Context, dst []byte) (int, error) {
	n, err := p.log.ReadAt(ctx, p.offset, dst)
	if err != nil {
		return 0, err
	}
	p.offset += n
	return n, nil
}
