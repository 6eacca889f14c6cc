package framer

import "encoding/binary"

// PrefixLen is the size of the length prefix that precedes every frame.
const PrefixLen = 4

// LengthDecoder turns a PrefixLen-byte prefix into a payload length.
type LengthDecoder func(b []byte) uint32

// EncodeLength writes n into dst[:PrefixLen] as little-endian.
func EncodeLength(dst []byte, n uint32) {
	binary.LittleEndian.PutUint32(dst[:PrefixLen], n)
}

// DecodeLength reads a little-endian uint32 from b[:PrefixLen].
func DecodeLength(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b[:PrefixLen])
}

// DecodeLegacyLength decodes a prefix the way older receivers did: the fourth
// byte was shifted by 32 on a 32-bit int, which wraps to a shift of 0, so it
// lands on the low byte instead of the high one. Peers that never send frames
// above 16MB cannot tell the difference.
func DecodeLegacyLength(b []byte) uint32 {
	_ = b[3]
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])
}
