// Package netfrontend implements the TCP front end: one goroutine per
// accepted connection runs a receive/append/drain loop against a shared
// *cmdlog.CommandLog, using pooled buffers for recv chunks and a fresh
// PositionCursor for each drain.
package netfrontend

import (
	"context"
	"net"
	"sync"
	"syscall"

	"github.com/dkirby/cmdlogd"
	"github.com/dkirby/cmdlogd/internal/bufpool"
	"github.com/dkirby/cmdlogd/internal/constants"
	"github.com/dkirby/cmdlogd/internal/interfaces"
	"golang.org/x/sys/unix"
)

// FrontEnd accepts TCP connections and drives each one through the
// receive-append-drain protocol against a shared command log.
type FrontEnd struct {
	log       *cmdlog.CommandLog
	logger    interfaces.Logger
	chunkSize int

	wg sync.WaitGroup
}

// Option configures a FrontEnd at construction time.
type Option func(*FrontEnd)

// WithLogger attaches a logger used for per-connection diagnostics.
func WithLogger(l interfaces.Logger) Option {
	return func(f *FrontEnd) { f.logger = l }
}

// WithChunkSize overrides the per-recv buffer size (DefaultRecvChunkSize
// otherwise).
func WithChunkSize(n int) Option {
	return func(f *FrontEnd) { f.chunkSize = n }
}

// New returns a FrontEnd serving log.
func New(log *cmdlog.CommandLog, opts ...Option) *FrontEnd {
	f := &FrontEnd{log: log, chunkSize: constants.DefaultRecvChunkSize}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Listen binds addr with SO_REUSEADDR enabled via a unix.SO_REUSEADDR
// setsockopt in the ListenConfig's Control callback, mirroring the C
// original's explicit setsockopt(SOL_SOCKET, SO_REUSEADDR) call before bind.
func Listen(ctx context.Context, addr string) (net.Listener, error) {
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}
	return lc.Listen(ctx, "tcp", addr)
}

// Serve accepts connections on ln until ln is closed, spawning one goroutine
// per connection; cancelling ctx closes every open connection. Serve blocks
// until every spawned connection goroutine has returned, and returns nil if
// ctx was cancelled by the time Accept failed, or Accept's error otherwise.
func (f *FrontEnd) Serve(ctx context.Context, ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				f.wg.Wait()
				return nil
			default:
			}
			f.wg.Wait()
			return err
		}
		f.wg.Add(1)
		go func() {
			defer f.wg.Done()
			f.handleConn(ctx, conn)
		}()
	}
}

// Wait blocks until all in-flight connection goroutines have returned.
func (f *FrontEnd) Wait() {
	f.wg.Wait()
}

func (f *FrontEnd) logf(level, msg string, args ...any) {
	if f.logger == nil {
		return
	}
	switch level {
	case "debug":
		f.logger.Debug(msg, args...)
	case "info":
		f.logger.Info(msg, args...)
	case "warn":
		f.logger.Warn(msg, args...)
	case "error":
		f.logger.Error(msg, args...)
	}
}

// handleConn runs the per-connection protocol: read a chunk, append it, and
// whenever that chunk completed a command, drain the entire current log
// concatenation back to the client starting from offset 0.
func (f *FrontEnd) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	// Closing conn on cancellation unblocks a Read waiting on the client.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	f.logf("info", "connection accepted", "remote", conn.RemoteAddr().String())
	defer f.logf("info", "connection closed", "remote", conn.RemoteAddr().String())

	buf := bufpool.Get(f.chunkSize)
	defer bufpool.Put(buf)

	for {
		n, err := conn.Read(buf)
		if n > 0 {
			_, appendErr := f.log.AppendChunk(ctx, buf[:n])
			if appendErr != nil {
				f.logf("error", "append failed", "err", appendErr)
				return
			}
			if buf[n-1] == constants.Terminator {
				if drainErr := f.drain(ctx, conn); drainErr != nil {
					f.logf("error", "drain failed", "err", drainErr)
					return
				}
			}
		}
		if err != nil {
			return
		}
	}
}

// drain sends the full current log concatenation to conn, starting a fresh
// read pass from offset 0 every time.
func (f *FrontEnd) drain(ctx context.Context, conn net.Conn) error {
	cursor := cmdlog.NewPositionCursor(f.log)
	out := bufpool.Get(f.chunkSize)
	defer bufpool.Put(out)

	for {
		n, err := cursor.Read(ctx, out)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		if _, werr := conn.Write(out[:n]); werr != nil {
			return werr
		}
	}
}
