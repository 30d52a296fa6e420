package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestDecode_EmptyPayload(t *testing.T) {
	buf := []byte{0x01, 0x01, 0x00, 0x00, 0x01, 0x00, 0x00, 0x02}

	f, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode error = %v", err)
	}

	if f.Type != FrameVoice {
		t.Errorf("Type = %d, want %d", f.Type, FrameVoice)
	}
	if f.Slot != Slot1 {
		t.Errorf("Slot = %d, want %d", f.Slot, Slot1)
	}
	if f.SrcID != 0x000001 {
		t.Errorf("SrcID = %d, want 1", f.SrcID)
	}
	if f.DstID != 0x000002 {
		t.Errorf("DstID = %d, want 2", f.DstID)
	}
	if len(f.Payload) != 0 {
		t.Errorf("PayloadLen = %d, want 0", len(f.Payload))
	}
}

func TestDecode_TooShort(t *testing.T) {
	for n := 0; n < HeaderSize; n++ {
		_, err := Decode(make([]byte, n))
		if !errors.Is(err, ErrFrameTooShort) {
			t.Errorf("Decode(%d bytes) error = %v, want ErrFrameTooShort", n, err)
		}
	}
}

func TestDecode_TruncatesLongPayload(t *testing.T) {
	buf := make([]byte, HeaderSize+100)
	buf[0] = FrameData
	buf[1] = Slot2
	for i := HeaderSize; i < len(buf); i++ {
		buf[i] = byte(i)
	}

	f, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode error = %v", err)
	}

	if len(f.Payload) != MaxPayloadSize {
		t.Fatalf("PayloadLen = %d, want %d", len(f.Payload), MaxPayloadSize)
	}
	if !bytes.Equal(f.Payload, buf[HeaderSize:HeaderSize+MaxPayloadSize]) {
		t.Error("truncated payload does not match leading payload bytes")
	}
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name       string
		frame      Frame
		payloadLen int
	}{
		{"voice slot1 empty", Frame{Type: FrameVoice, Slot: Slot1, SrcID: 2341001, DstID: 91}, 0},
		{"data slot2 single byte", Frame{Type: FrameData, Slot: Slot2, SrcID: 1, DstID: 0xFFFFFF}, 1},
		{"control mid payload", Frame{Type: FrameControl, Slot: Slot1, SrcID: 0x123456, DstID: 0x654321}, 13},
		{"sync max payload", Frame{Type: FrameSync, Slot: Slot2, SrcID: 0xABCDEF, DstID: 0}, MaxPayloadSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := tt.frame
			f.Payload = make([]byte, tt.payloadLen)
			for i := range f.Payload {
				f.Payload[i] = byte(i * 7)
			}

			got, err := Decode(f.Encode())
			if err != nil {
				t.Fatalf("Decode error = %v", err)
			}

			if got.Type != f.Type || got.Slot != f.Slot {
				t.Errorf("header = (%d, %d), want (%d, %d)", got.Type, got.Slot, f.Type, f.Slot)
			}
			if got.SrcID != f.SrcID {
				t.Errorf("SrcID = %d, want %d", got.SrcID, f.SrcID)
			}
			if got.DstID != f.DstID {
				t.Errorf("DstID = %d, want %d", got.DstID, f.DstID)
			}
			if !bytes.Equal(got.Payload, f.Payload) {
				t.Errorf("Payload = %v, want %v", got.Payload, f.Payload)
			}
		})
	}
}

func TestEncode_Masks24BitIDs(t *testing.T) {
	f := &Frame{Type: FrameVoice, Slot: Slot1, SrcID: 0xFF123456, DstID: 0x01ABCDEF}

	got, err := Decode(f.Encode())
	if err != nil {
		t.Fatalf("Decode error = %v", err)
	}

	if got.SrcID != 0x123456 {
		t.Errorf("SrcID = %#x, want 0x123456", got.SrcID)
	}
	if got.DstID != 0xABCDEF {
		t.Errorf("DstID = %#x, want 0xABCDEF", got.DstID)
	}
}

func TestEncode_CapsPayload(t *testing.T) {
	f := &Frame{Type: FrameData, Slot: Slot1, Payload: make([]byte, 64)}

	buf := f.Encode()
	if len(buf) != MaxFrameSize {
		t.Errorf("len(Encode()) = %d, want %d", len(buf), MaxFrameSize)
	}
}

func TestFrameTypeName(t *testing.T) {
	tests := []struct {
		t    uint8
		want string
	}{
		{FrameVoice, "VOICE"},
		{FrameData, "DATA"},
		{FrameControl, "CONTROL"},
		{FrameSync, "SYNC"},
		{0x7F, "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := FrameTypeName(tt.t); got != tt.want {
			t.Errorf("FrameTypeName(%d) = %q, want %q", tt.t, got, tt.want)
		}
	}
}
