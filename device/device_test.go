package device

import (
	"context"
	"io"
	"testing"

	"github.com/dkirby/cmdlogd"
	"github.com/dkirby/cmdlogd/internal/uapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShim_OpenWriteReadRoundTrip(t *testing.T) {
	log := cmdlog.New(cmdlog.Config{Capacity: 3})
	shim := New(log)
	ctx := context.Background()

	h, err := shim.Open()
	require.NoError(t, err)

	n, err := shim.Write(ctx, h, []byte("hello\n"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	buf := make([]byte, 100)
	n, err = shim.Read(ctx, h, buf)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(buf[:n]))

	require.NoError(t, shim.Release(h))
}

func TestShim_WriteIgnoresHandlePosition(t *testing.T) {
	log := cmdlog.New(cmdlog.Config{Capacity: 3})
	shim := New(log)
	ctx := context.Background()

	h, _ := shim.Open()
	shim.Llseek(ctx, h, 100, io.SeekStart)

	_, err := shim.Write(ctx, h, []byte("x\n"))
	require.NoError(t, err)

	total, err := log.TotalBytes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestShim_LlseekVariants(t *testing.T) {
	log := cmdlog.New(cmdlog.Config{Capacity: 3})
	shim := New(log)
	ctx := context.Background()
	h, _ := shim.Open()
	shim.Write(ctx, h, []byte("abcdef\n"))

	off, err := shim.Llseek(ctx, h, 3, io.SeekStart)
	require.NoError(t, err)
	assert.EqualValues(t, 3, off)

	off, err = shim.Llseek(ctx, h, 0, io.SeekEnd)
	require.NoError(t, err)
	assert.EqualValues(t, 7, off)

	_, err = shim.Llseek(ctx, h, 0, 99)
	require.Error(t, err)
}

func TestShim_IoctlSeekToResolvesCommand(t *testing.T) {
	log := cmdlog.New(cmdlog.Config{Capacity: 3})
	shim := New(log)
	ctx := context.Background()
	h, _ := shim.Open()
	shim.Write(ctx, h, []byte("ab\n"))
	shim.Write(ctx, h, []byte("cde\n"))

	err := shim.Ioctl(ctx, h, uapi.SeekToRequest{WriteCmd: 1, WriteCmdOffset: 1})
	require.NoError(t, err)

	buf := make([]byte, 2)
	n, err := shim.Read(ctx, h, buf)
	require.NoError(t, err)
	assert.Equal(t, "de", string(buf[:n]))
}

func TestShim_IoctlRejectsOutOfRangeCommand(t *testing.T) {
	log := cmdlog.New(cmdlog.Config{Capacity: 3})
	shim := New(log)
	ctx := context.Background()
	h, _ := shim.Open()
	shim.Write(ctx, h, []byte("ab\n"))

	err := shim.Ioctl(ctx, h, uapi.SeekToRequest{WriteCmd: 9, WriteCmdOffset: 0})
	require.Error(t, err)
	assert.True(t, cmdlog.IsCode(err, cmdlog.ErrCodeInvalid))
}
