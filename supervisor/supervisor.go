// Package supervisor wires signal handling to a cancellable context and
// joins the goroutines that context fans out to: catch SIGINT/SIGTERM,
// cancel, clean up with a bounded grace period, exit.
package supervisor

import (
	"context"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dkirby/cmdlogd"
	"github.com/dkirby/cmdlogd/internal/interfaces"
)

// GracePeriod bounds how long shutdown waits for in-flight work before
// giving up and returning anyway.
const GracePeriod = 5 * time.Second

// Supervisor owns the process-wide shutdown context and joins the
// goroutines (ticker, connection workers) that observe it.
type Supervisor struct {
	logger interfaces.Logger
	wg     sync.WaitGroup

	persistPath string
}

// Option configures a Supervisor at construction time.
type Option func(*Supervisor)

// WithLogger attaches a logger for shutdown diagnostics.
func WithLogger(l interfaces.Logger) Option {
	return func(s *Supervisor) { s.logger = l }
}

// WithPersistPath records a file path to remove on shutdown, used by the
// file-backed variant; the in-memory/device-shim variant should leave this
// unset.
func WithPersistPath(path string) Option {
	return func(s *Supervisor) { s.persistPath = path }
}

// New returns a Supervisor ready to run.
func New(opts ...Option) *Supervisor {
	s := &Supervisor{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Supervisor) logf(level, msg string, args ...any) {
	if s.logger == nil {
		return
	}
	switch level {
	case "info":
		s.logger.Info(msg, args...)
	case "error":
		s.logger.Error(msg, args...)
	}
}

// Go runs fn in a goroutine tracked by the supervisor's WaitGroup, so Run
// can join it on shutdown.
func (s *Supervisor) Go(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

// Run derives a cancellable context from signals (SIGINT, SIGTERM), invokes
// start with that context, then blocks until a
// signal arrives. On signal it cancels the context, closes ln to unblock
// Accept, waits (up to GracePeriod) for every goroutine registered via Go
// to finish, and closes log. Run returns any error start returned, or nil
// on a clean signal-driven shutdown.
func (s *Supervisor) Run(ln net.Listener, log *cmdlog.CommandLog, start func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	startErrCh := make(chan error, 1)
	s.Go(func() {
		startErrCh <- start(ctx)
	})

	select {
	case sig := <-sigCh:
		s.logf("info", "received shutdown signal", "signal", sig.String())
	case err := <-startErrCh:
		cancel()
		s.shutdown(log)
		return err
	}

	cancel()
	if ln != nil {
		ln.Close()
	}
	s.shutdown(log)

	select {
	case <-startErrCh:
	case <-time.After(time.Second):
	}
	return nil
}

func (s *Supervisor) shutdown(log *cmdlog.CommandLog) {
	joined := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(joined)
	}()

	select {
	case <-joined:
	case <-time.After(GracePeriod):
		s.logf("error", "shutdown grace period exceeded, proceeding anyway")
	}

	if log != nil {
		if err := log.Close(); err != nil {
			s.logf("error", "error closing command log", "err", err)
		}
	}

	if s.persistPath != "" {
		if err := os.Remove(s.persistPath); err != nil && !os.IsNotExist(err) {
			s.logf("error", "error removing persisted file", "path", s.persistPath, "err", err)
		} else {
			s.logf("info", "removed persisted file", "path", s.persistPath)
		}
	}
}
