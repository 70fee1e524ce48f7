// Command cmdlogd-dev exercises the device shim (device.Shim) directly
// over stdin/stdout, standing in for the external adapter - a kernel
// module or FUSE mount - that would normally bind it to a live /dev node.
// Every chunk read from stdin is written through the shim; whenever a chunk
// ends in the terminator, the shim's read path drains the full log back to
// stdout, mirroring the network front end's protocol but over pipes
// instead of a socket.
package main

import (
	"bufio"
	"context"
	"flag"
	"io"
	"os"

	"github.com/dkirby/cmdlogd"
	"github.com/dkirby/cmdlogd/device"
	"github.com/dkirby/cmdlogd/internal/constants"
	"github.com/dkirby/cmdlogd/internal/logging"
)

func main() {
	capacity := flag.Int("capacity", constants.DefaultCapacity, "number of resident commands before eviction")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	log := cmdlog.New(cmdlog.Config{Capacity: *capacity, Logger: logger})
	shim := device.New(log)

	writer, err := shim.Open()
	if err != nil {
		logger.Error("open failed", "err", err)
		os.Exit(1)
	}
	defer shim.Release(writer)

	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)
	chunk := make([]byte, constants.DefaultRecvChunkSize)

	for {
		n, readErr := reader.Read(chunk)
		if n > 0 {
			if _, err := shim.Write(ctx, writer, chunk[:n]); err != nil {
				logger.Error("write failed", "err", err)
				os.Exit(1)
			}
			if chunk[n-1] == constants.Terminator {
				if err := drain(ctx, shim, log); err != nil {
					logger.Error("drain failed", "err", err)
					os.Exit(1)
				}
			}
		}
		if readErr == io.EOF {
			return
		}
		if readErr != nil {
			logger.Error("stdin read failed", "err", readErr)
			os.Exit(1)
		}
	}
}

// drain opens a fresh handle positioned at zero and reads the entire log
// concatenation to stdout, the stdin/stdout analogue of the network front
// end's per-request drain.
func drain(ctx context.Context, shim *device.Shim, log *cmdlog.CommandLog) error {
	reader, err := shim.Open()
	if err != nil {
		return err
	}
	defer shim.Release(reader)

	buf := make([]byte, constants.DefaultRecvChunkSize)
	for {
		n, err := shim.Read(ctx, reader, buf)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		if _, err := os.Stdout.Write(buf[:n]); err != nil {
			return err
		}
	}
}
