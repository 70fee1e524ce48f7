// Command cmdlogd-net runs the TCP front end: clients that send newline-
// terminated commands get back the entire current log concatenation on
// every terminated chunk.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/exec"
	"syscall"

	"github.com/dkirby/cmdlogd"
	"github.com/dkirby/cmdlogd/internal/constants"
	"github.com/dkirby/cmdlogd/internal/logging"
	"github.com/dkirby/cmdlogd/netfrontend"
	"github.com/dkirby/cmdlogd/supervisor"
	"github.com/dkirby/cmdlogd/ticker"
)

// inheritedListenerFD is the fd a re-exec'd detached child finds its bound
// listener on (the first and only entry in exec.Cmd.ExtraFiles, which os/exec
// places immediately after stdin/stdout/stderr).
const inheritedListenerFD = 3

func main() {
	var (
		port        = flag.Int("port", constants.DefaultPort, "TCP port to listen on")
		capacity    = flag.Int("capacity", constants.DefaultCapacity, "number of resident commands before eviction")
		daemonize   = flag.Bool("d", false, "run detached from the controlling terminal")
		persistPath = flag.String("persist", "", "if set, remove this path on shutdown (command bytes are not written to it)")
		verbose     = flag.Bool("v", false, "enable debug logging")
		daemonChild = flag.Bool("daemon-child", false, "internal: marks the re-exec'd detached child")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	ln, err := acquireListener(*daemonChild, *port)
	if err != nil {
		logger.Error("failed to bind listener", "port", *port, "err", err)
		os.Exit(1)
	}

	if *daemonize && !*daemonChild {
		if err := reexecDetached(ln); err != nil {
			logger.Error("failed to daemonize", "err", err)
			os.Exit(1)
		}
		ln.Close()
		os.Exit(0)
	}

	log := cmdlog.New(cmdlog.Config{Capacity: *capacity, Logger: logger})
	fe := netfrontend.New(log, netfrontend.WithLogger(logger))
	tick := ticker.New(log)

	var supOpts []supervisor.Option
	supOpts = append(supOpts, supervisor.WithLogger(logger))
	if *persistPath != "" {
		supOpts = append(supOpts, supervisor.WithPersistPath(*persistPath))
	}
	sup := supervisor.New(supOpts...)

	logger.Info("listening", "addr", ln.Addr().String())

	err = sup.Run(ln, log, func(ctx context.Context) error {
		sup.Go(func() {
			if err := tick.Run(ctx); err != nil {
				logger.Error("ticker stopped with error", "err", err)
			}
		})
		return fe.Serve(ctx, ln)
	})
	if err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

// acquireListener binds a fresh listener, unless this process is the
// re-exec'd detached child, in which case it reconstructs the already-bound
// listener from the fd its parent passed via ExtraFiles.
func acquireListener(daemonChild bool, port int) (net.Listener, error) {
	if daemonChild {
		f := os.NewFile(inheritedListenerFD, "cmdlogd-listener")
		return net.FileListener(f)
	}
	addr := fmt.Sprintf(":%d", port)
	return netfrontend.Listen(context.Background(), addr)
}

// reexecDetached spawns a detached copy of the current process, handing it
// the already-bound listener fd, and returns once the child has started.
// Go cannot safely fork() a multi-threaded runtime, so this re-execs via
// os/exec with Setsid in SysProcAttr instead - the nearest portable
// equivalent of fork()-then-parent-exit.
func reexecDetached(ln net.Listener) error {
	tcpLn, ok := ln.(*net.TCPListener)
	if !ok {
		return fmt.Errorf("cannot daemonize: listener is not a *net.TCPListener")
	}
	f, err := tcpLn.File()
	if err != nil {
		return fmt.Errorf("extracting listener fd: %w", err)
	}
	defer f.Close()

	args := append(append([]string{}, os.Args[1:]...), "-daemon-child")
	cmd := exec.Command(os.Args[0], args...)
	cmd.ExtraFiles = []*os.File{f}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting detached child: %w", err)
	}
	return nil
}
