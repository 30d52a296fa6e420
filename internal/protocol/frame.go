package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrFrameTooShort is returned when a datagram is smaller than the frame header.
	ErrFrameTooShort = errors.New("datagram shorter than frame header")
)

// Frame represents a single DMR relay frame decoded from a UDP datagram.
// Wire format (big-endian):
//
//	Type    [1 byte]  - Frame type (voice, data, control, sync)
//	Slot    [1 byte]  - Timeslot (1 or 2)
//	SrcID   [3 bytes] - Source DMR ID (24-bit)
//	DstID   [3 bytes] - Destination DMR ID (24-bit)
//	Payload [0-27 bytes]
type Frame struct {
	Type    uint8
	Slot    uint8
	SrcID   uint32
	DstID   uint32
	Payload []byte
}

// Decode parses a frame from a raw datagram. Datagrams shorter than the
// 8-byte header fail with ErrFrameTooShort. Payload bytes beyond
// MaxPayloadSize are silently truncated.
func Decode(buf []byte) (*Frame, error) {
	if len(buf) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooShort, len(buf))
	}

	f := &Frame{
		Type:  buf[0],
		Slot:  buf[1],
		SrcID: uint24(buf[2:5]),
		DstID: uint24(buf[5:8]),
	}

	n := len(buf) - HeaderSize
	if n > MaxPayloadSize {
		n = MaxPayloadSize
	}
	f.Payload = make([]byte, n)
	copy(f.Payload, buf[HeaderSize:HeaderSize+n])

	return f, nil
}

// Encode serializes the frame to wire format. IDs are masked to 24 bits
// and the payload is capped at MaxPayloadSize.
func (f *Frame) Encode() []byte {
	n := len(f.Payload)
	if n > MaxPayloadSize {
		n = MaxPayloadSize
	}

	buf := make([]byte, HeaderSize+n)
	buf[0] = f.Type
	buf[1] = f.Slot
	putUint24(buf[2:5], f.SrcID)
	putUint24(buf[5:8], f.DstID)
	copy(buf[HeaderSize:], f.Payload[:n])

	return buf
}

// String returns a debug representation of the frame.
func (f *Frame) String() string {
	return fmt.Sprintf("Frame{Type=%s, Slot=%d, SrcID=%d, DstID=%d, PayloadLen=%d}",
		FrameTypeName(f.Type), f.Slot, f.SrcID, f.DstID, len(f.Payload))
}

func uint24(b []byte) uint32 {
	_ = b[2]
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

func putUint24(b []byte, v uint32) {
	_ = b[2]
	binary.BigEndian.PutUint16(b[0:2], uint16(v>>8))
	b[2] = byte(v)
}
