package protocol

// EncodeUint32 appends v in the variable-length quantity encoding used on
// the drive link: 7 data bits per byte, high bit set on all but the last
// byte. Small magnitudes, positive or negative, encode in one byte.
func EncodeUint32(out *[]byte, v int32) {
	uv := uint32(v)
	if v >= 0xc000000 || v < -0x4000000 {
		*out = append(*out, byte(((uv>>28)&0x7f)|0x80))
	}
	if v >= 0x180000 || v < -0x80000 {
		*out = append(*out, byte(((uv>>21)&0x7f)|0x80))
	}
	if v >= 0x3000 || v < -0x1000 {
		*out = append(*out, byte(((uv>>14)&0x7f)|0x80))
	}
	if v >= 0x60 || v < -0x20 {
		*out = append(*out, byte(((uv>>7)&0x7f)|0x80))
	}
	*out = append(*out, byte(uv&0x7f))
}

// DecodeUint32 decodes one VLQ integer starting at pos, returning the value
// and the position after it. The first byte's 0x60 pattern marks negative
// values.
func DecodeUint32(buf []byte, pos int) (int32, int) {
	c := buf[pos]
	pos++
	v := int32(c & 0x7f)
	if c&0x60 == 0x60 {
		v |= -0x20
	}
	for c&0x80 != 0 {
		c = buf[pos]
		pos++
		v = v<<7 | int32(c&0x7f)
	}
	return v, pos
}
