package protocol

import (
	"bldc-go/pkg/errors"
)

// Block layout: [len][seq][payload...][crc hi][crc lo][sync].
const (
	BlockMin         = 5
	BlockMax         = 64
	BlockHeaderSize  = 2
	BlockTrailerSize = 3
	PayloadMax       = BlockMax - BlockMin

	SyncByte = 0x7e
	SeqMask  = 0x0f
	DestFlag = 0x10
)

// Command identifiers carried as the first VLQ of a payload.
const (
	CmdDrive  = 1 // pattern + duty, sent every status interval
	CmdStop   = 2 // open all switches immediately
	CmdStatus = 3 // request a board status report

	RespStatus = 16 // board status report
)

// EncodeBlock wraps a payload into a framed block with the given sequence
// number (only the low 4 bits are used).
func EncodeBlock(seq int, payload []byte) []byte {
	out := make([]byte, 0, BlockMin+len(payload))
	out = append(out, byte(BlockMin+len(payload)), byte(seq&SeqMask|DestFlag))
	out = append(out, payload...)
	hi, lo := CRC16CCITT(out)
	return append(out, hi, lo, SyncByte)
}

// DecodeBlock validates one block and returns its sequence number and
// payload. buf must contain exactly one block.
func DecodeBlock(buf []byte) (seq int, payload []byte, err error) {
	if len(buf) < BlockMin {
		return 0, nil, errors.LinkProtocolError("block shorter than minimum")
	}
	msglen := int(buf[0])
	if msglen < BlockMin || msglen > BlockMax || msglen != len(buf) {
		return 0, nil, errors.LinkProtocolError("bad block length")
	}
	if buf[msglen-1] != SyncByte {
		return 0, nil, errors.LinkProtocolError("missing sync byte")
	}
	hi, lo := CRC16CCITT(buf[:msglen-BlockTrailerSize])
	if buf[msglen-3] != hi || buf[msglen-2] != lo {
		return 0, nil, errors.LinkProtocolError("CRC mismatch")
	}
	return int(buf[1] & SeqMask), buf[BlockHeaderSize : msglen-BlockTrailerSize], nil
}

// EncodeDrive builds the per-interval drive command: the 6-bit switch
// pattern and the shaped duty.
func EncodeDrive(seq int, pattern uint8, duty uint16) []byte {
	payload := []byte{}
	EncodeUint32(&payload, CmdDrive)
	EncodeUint32(&payload, int32(pattern))
	EncodeUint32(&payload, int32(duty))
	return EncodeBlock(seq, payload)
}

// EncodeStop builds the all-switches-open command.
func EncodeStop(seq int) []byte {
	payload := []byte{}
	EncodeUint32(&payload, CmdStop)
	return EncodeBlock(seq, payload)
}

// DriveCommand is a decoded CmdDrive payload.
type DriveCommand struct {
	Pattern uint8
	Duty    uint16
}

// DecodeDrive parses a CmdDrive payload.
func DecodeDrive(payload []byte) (DriveCommand, error) {
	cmd, pos := DecodeUint32(payload, 0)
	if cmd != CmdDrive {
		return DriveCommand{}, errors.LinkProtocolError("not a drive command")
	}
	pattern, pos := DecodeUint32(payload, pos)
	duty, _ := DecodeUint32(payload, pos)
	if pattern < 0 || pattern > 0x3f || duty < 0 || duty > 0x3ff {
		return DriveCommand{}, errors.LinkProtocolError("drive command field out of range")
	}
	return DriveCommand{Pattern: uint8(pattern), Duty: uint16(duty)}, nil
}

// StatusReport is a decoded RespStatus payload.
type StatusReport struct {
	// Comparators is the board's 3-line back-EMF comparator sample.
	Comparators uint8

	// Ticks is the board tick counter at sample time, for drift tracking.
	Ticks uint32
}

// EncodeStatusReport builds the board status report.
func EncodeStatusReport(seq int, rep StatusReport) []byte {
	payload := []byte{}
	EncodeUint32(&payload, RespStatus)
	EncodeUint32(&payload, int32(rep.Comparators))
	EncodeUint32(&payload, int32(rep.Ticks))
	return EncodeBlock(seq, payload)
}

// DecodeStatusReport parses a RespStatus payload.
func DecodeStatusReport(payload []byte) (StatusReport, error) {
	cmd, pos := DecodeUint32(payload, 0)
	if cmd != RespStatus {
		return StatusReport{}, errors.LinkProtocolError("not a status report")
	}
	comparators, pos := DecodeUint32(payload, pos)
	ticks, _ := DecodeUint32(payload, pos)
	if comparators < 0 || comparators > 0x07 {
		return StatusReport{}, errors.LinkProtocolError("status report field out of range")
	}
	return StatusReport{Comparators: uint8(comparators), Ticks: uint32(ticks)}, nil
}

// StreamDecoder reassembles blocks from an arbitrary byte stream,
// resynchronizing on the sync byte after corruption.
type StreamDecoder struct {
	buf []byte
}

// Feed appends received bytes and returns every complete, valid payload.
// Corrupted data up to the next sync byte is discarded.
func (d *StreamDecoder) Feed(data []byte) [][]byte {
	d.buf = append(d.buf, data...)
	var payloads [][]byte
	for {
		if len(d.buf) < BlockMin {
			return payloads
		}
		msglen := int(d.buf[0])
		if msglen < BlockMin || msglen > BlockMax {
			d.resync()
			continue
		}
		if len(d.buf) < msglen {
			return payloads
		}
		_, payload, err := DecodeBlock(d.buf[:msglen])
		if err != nil {
			d.resync()
			continue
		}
		payloads = append(payloads, payload)
		d.buf = d.buf[msglen:]
	}
}

// resync drops input through the next sync byte.
func (d *StreamDecoder) resync() {
	for i, b := range d.buf {
		if b == SyncByte {
			d.buf = d.buf[i+1:]
			return
		}
	}
	d.buf = nil
}
