// Package uapi defines the wire-layout structs a real ioctl adapter would
// marshal across a copy_from_user-equivalent boundary, each paired with a
// compile-time size assertion against the layout it must match exactly.
package uapi

import (
	"encoding/binary"
	"fmt"
	"unsafe"
)

// SeekToRequest mirrors the argument a real SEEKTO ioctl would carry: the
// 0-based FIFO position of the target command among the resident commands
// (oldest first) and a byte offset within it.
//
//	struct seekto_request {
//	    uint32_t write_cmd;
//	    uint32_t write_cmd_offset;
//	};
type SeekToRequest struct {
	WriteCmd       uint32
	WriteCmdOffset uint32
}

// Compile-time size check - must be exactly 8 bytes to match the C struct.
var _ [8]byte = [unsafe.Sizeof(SeekToRequest{})]byte{}

// SeekToRequestSize is the on-the-wire size of SeekToRequest in bytes.
const SeekToRequestSize = 8

// Encode marshals r into its 8-byte little-endian wire representation.
func (r SeekToRequest) Encode() []byte {
	buf := make([]byte, SeekToRequestSize)
	binary.LittleEndian.PutUint32(buf[0:4], r.WriteCmd)
	binary.LittleEndian.PutUint32(buf[4:8], r.WriteCmdOffset)
	return buf
}

// DecodeSeekToRequest unmarshals an 8-byte little-endian buffer into a
// SeekToRequest. It returns an error if buf is short.
func DecodeSeekToRequest(buf []byte) (SeekToRequest, error) {
	if len(buf) < SeekToRequestSize {
		return SeekToRequest{}, fmt.Errorf("uapi: SeekToRequest needs %d bytes, got %d", SeekToRequestSize, len(buf))
	}
	return SeekToRequest{
		WriteCmd:       binary.LittleEndian.Uint32(buf[0:4]),
		WriteCmdOffset: binary.LittleEndian.Uint32(buf[4:8]),
	}, nil
}
