package protocol

import (
	"bytes"
	"testing"
)

func TestCRC16CCITTKnownValues(t *testing.T) {
	tests := []struct {
		data []byte
		want uint16
	}{
		{nil, 0xffff},
		{[]byte("123456789"), 0x6f91},
	}
	for _, tt := range tests {
		hi, lo := CRC16CCITT(tt.data)
		got := uint16(hi)<<8 | uint16(lo)
		if got != tt.want {
			t.Errorf("CRC16CCITT(%q) = %04x, want %04x", tt.data, got, tt.want)
		}
	}
}

func TestVLQRoundTrip(t *testing.T) {
	values := []int32{
		0, 1, -1, 0x5f, 0x60, -0x20, -0x21,
		0x2fff, 0x3000, -0x1000, -0x1001,
		0x123456, -0x123456, 1<<31 - 1, -(1 << 31),
	}
	for _, v := range values {
		buf := []byte{}
		EncodeUint32(&buf, v)
		got, pos := DecodeUint32(buf, 0)
		if got != v {
			t.Errorf("roundtrip %d: got %d", v, got)
		}
		if pos != len(buf) {
			t.Errorf("roundtrip %d: consumed %d of %d bytes", v, pos, len(buf))
		}
	}
}

func TestVLQSmallValuesOneByte(t *testing.T) {
	for _, v := range []int32{0, 0x5f, -0x20} {
		buf := []byte{}
		EncodeUint32(&buf, v)
		if len(buf) != 1 {
			t.Errorf("EncodeUint32(%d) used %d bytes, want 1", v, len(buf))
		}
	}
}

func TestBlockRoundTrip(t *testing.T) {
	payload := []byte{1, 2, 3, 4}
	block := EncodeBlock(7, payload)

	if len(block) != BlockMin+len(payload) {
		t.Fatalf("block length = %d, want %d", len(block), BlockMin+len(payload))
	}
	seq, got, err := DecodeBlock(block)
	if err != nil {
		t.Fatalf("DecodeBlock: %v", err)
	}
	if seq != 7 {
		t.Errorf("seq = %d, want 7", seq)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("payload = %v, want %v", got, payload)
	}
}

func TestDecodeBlockRejectsCorruption(t *testing.T) {
	block := EncodeBlock(0, []byte{9, 9})

	flipped := append([]byte(nil), block...)
	flipped[2] ^= 0x40
	if _, _, err := DecodeBlock(flipped); err == nil {
		t.Error("corrupted payload should fail the CRC")
	}

	noSync := append([]byte(nil), block...)
	noSync[len(noSync)-1] = 0
	if _, _, err := DecodeBlock(noSync); err == nil {
		t.Error("missing sync byte should be rejected")
	}

	if _, _, err := DecodeBlock(block[:3]); err == nil {
		t.Error("short block should be rejected")
	}
}

func TestDriveCommandRoundTrip(t *testing.T) {
	block := EncodeDrive(3, 0b100010, 0x3ff)
	_, payload, err := DecodeBlock(block)
	if err != nil {
		t.Fatalf("DecodeBlock: %v", err)
	}
	dc, err := DecodeDrive(payload)
	if err != nil {
		t.Fatalf("DecodeDrive: %v", err)
	}
	if dc.Pattern != 0b100010 || dc.Duty != 0x3ff {
		t.Errorf("decoded %+v", dc)
	}
}

func TestDecodeDriveRejectsOutOfRange(t *testing.T) {
	payload := []byte{}
	EncodeUint32(&payload, CmdDrive)
	EncodeUint32(&payload, 0x40) // pattern past 6 bits
	EncodeUint32(&payload, 0)
	if _, err := DecodeDrive(payload); err == nil {
		t.Error("out-of-range pattern should be rejected")
	}
}

func TestStatusReportRoundTrip(t *testing.T) {
	block := EncodeStatusReport(9, StatusReport{Comparators: 0b101, Ticks: 123456})
	seq, payload, err := DecodeBlock(block)
	if err != nil {
		t.Fatalf("DecodeBlock: %v", err)
	}
	if seq != 9 {
		t.Errorf("seq = %d, want 9", seq)
	}
	rep, err := DecodeStatusReport(payload)
	if err != nil {
		t.Fatalf("DecodeStatusReport: %v", err)
	}
	if rep.Comparators != 0b101 || rep.Ticks != 123456 {
		t.Errorf("decoded %+v", rep)
	}
}

func TestStreamDecoderReassembly(t *testing.T) {
	var d StreamDecoder
	b1 := EncodeDrive(0, 0b100010, 100)
	b2 := EncodeStop(1)
	stream := append(append([]byte(nil), b1...), b2...)

	// Feed in awkward chunks.
	var payloads [][]byte
	for i := 0; i < len(stream); i += 3 {
		end := i + 3
		if end > len(stream) {
			end = len(stream)
		}
		payloads = append(payloads, d.Feed(stream[i:end])...)
	}
	if len(payloads) != 2 {
		t.Fatalf("decoded %d payloads, want 2", len(payloads))
	}
	if cmd, _ := DecodeUint32(payloads[0], 0); cmd != CmdDrive {
		t.Errorf("first payload command = %d, want drive", cmd)
	}
	if cmd, _ := DecodeUint32(payloads[1], 0); cmd != CmdStop {
		t.Errorf("second payload command = %d, want stop", cmd)
	}
}

func TestStreamDecoderResync(t *testing.T) {
	var d StreamDecoder
	good := EncodeDrive(2, 0b010001, 512)

	// Garbage, then a sync byte, then a valid block.
	stream := append([]byte{0x01, 0x02, 0x03, SyncByte}, good...)
	payloads := d.Feed(stream)
	if len(payloads) != 1 {
		t.Fatalf("decoded %d payloads after garbage, want 1", len(payloads))
	}
	dc, err := DecodeDrive(payloads[0])
	if err != nil {
		t.Fatalf("DecodeDrive: %v", err)
	}
	if dc.Pattern != 0b010001 || dc.Duty != 512 {
		t.Errorf("decoded %+v", dc)
	}
}

func TestStreamDecoderCorruptedBlockDropped(t *testing.T) {
	var d StreamDecoder
	bad := EncodeDrive(0, 0b100010, 1)
	bad[3] ^= 0xff
	good := EncodeStop(1)

	payloads := d.Feed(append(append([]byte(nil), bad...), good...))
	if len(payloads) != 1 {
		t.Fatalf("decoded %d payloads, want only the good block", len(payloads))
	}
	if cmd, _ := DecodeUint32(payloads[0], 0); cmd != CmdStop {
		t.Errorf("surviving command = %d, want stop", cmd)
	}
}
