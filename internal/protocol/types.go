// Package protocol defines the wire format for DMR relay frames.
package protocol

// Frame type constants
const (
	FrameVoice   uint8 = 0x01 // Voice payload
	FrameData    uint8 = 0x02 // Data payload
	FrameControl uint8 = 0x03 // Control signalling
	FrameSync    uint8 = 0x04 // Synchronization
)

// Timeslot constants
const (
	Slot1 uint8 = 0x01
	Slot2 uint8 = 0x02
)

// Protocol constants
const (
	// HeaderSize is the size of a frame header in bytes
	HeaderSize = 8

	// MaxPayloadSize is the maximum frame payload size
	MaxPayloadSize = 27

	// MaxFrameSize is the maximum total frame size
	MaxFrameSize = HeaderSize + MaxPayloadSize
)

// FrameTypeName returns a human-readable name for a frame type.
func FrameTypeName(t uint8) string {
	switch t {
	case FrameVoice:
		return "VOICE"
	case FrameData:
		return "DATA"
	case FrameControl:
		return "CONTROL"
	case FrameSync:
		return "SYNC"
	default:
		return "UNKNOWN"
	}
}
