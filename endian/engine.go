// Package endian provides byte order utilities for the ULog wire codec.
//
// ULog is a little-endian format, and both the reader and writer refuse to
// run on big-endian hosts. This package carries the host-order probe used
// for that check, plus the EndianEngine interface that the message codecs
// encode and decode through.
//
// EndianEngine combines ByteOrder and AppendByteOrder from encoding/binary
// into a single interface, so codecs can both read fixed offsets and append
// to growing buffers without an intermediate copy.
package endian

import (
	"encoding/binary"
	"unsafe"
)

// EndianEngine combines the ByteOrder and AppendByteOrder interfaces from
// encoding/binary. It is satisfied by binary.LittleEndian, which is the
// only engine the ULog codecs use.
type EndianEngine interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// CheckEndianness uses a fixed integer value to determine the host's byte order.
func CheckEndianness() binary.ByteOrder {
	// 0x0100 is 256. For a little-endian system, the LSB (0x00) is first.
	// For a big-endian system, the MSB (0x01) is first.
	var i uint16 = 0x0100

	b := (*[2]byte)(unsafe.Pointer(&i))
	if b[0] == 0x01 {
		return binary.BigEndian
	}

	return binary.LittleEndian
}

// IsNativeLittleEndian reports whether the host is little-endian.
// Reader and Writer construction checks this and fails otherwise.
func IsNativeLittleEndian() bool {
	return CheckEndianness() == binary.LittleEndian
}

// GetLittleEndianEngine returns the little-endian engine used for all
// ULog wire encoding and decoding.
func GetLittleEndianEngine() EndianEngine {
	return binary.LittleEndian
}
