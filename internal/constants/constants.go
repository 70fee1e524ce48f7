// Package constants centralizes the tunable defaults used across cmdlogd.
package constants

import "time"

const (
	// DefaultCapacity is the number of command slots in a CircularCommandBuffer.
	DefaultCapacity = 10

	// DefaultPort is the TCP port the network front end listens on.
	DefaultPort = 9000

	// DefaultRecvChunkSize bounds a single socket read in the network front end.
	DefaultRecvChunkSize = 1024

	// DefaultTickerPeriod is the interval between timestamp commands.
	DefaultTickerPeriod = 10 * time.Second

	// DefaultPersistPath is the well-known file-backed persistence location.
	DefaultPersistPath = "/var/tmp/aesdsocketdata"

	// Terminator is the byte that ends a command.
	Terminator = '\n'
)
