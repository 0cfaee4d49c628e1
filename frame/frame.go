// Package frame defines the raw ULog frame layout: the file magic, the
// common 3-byte message header and the per-message type codes.
//
// Every message after the file header (and the optional flag-bits message)
// starts with the common header: a little-endian uint16 body size followed
// by a one-byte ASCII type code. The body size excludes the header itself.
package frame

import "github.com/arloliu/ulog/endian"

// HeaderLen is the length of the common message header in bytes.
const HeaderLen = 3

// FileHeaderLen is the length of the fixed file header: 8 magic bytes
// (7-byte prefix plus a version byte) and a uint64 start timestamp in
// microseconds.
const FileHeaderLen = 16

// Version is the ULog file format version this codec reads and writes.
const Version = 1

// FileMagicPrefix is the 7-byte prefix of the file magic. The eighth magic
// byte is the file format version.
var FileMagicPrefix = [7]byte{'U', 'L', 'o', 'g', 0x01, 0x12, 0x35}

// SyncMagic is the fixed body of a sync message.
var SyncMagic = [8]byte{0x2F, 0x73, 0x13, 0x20, 0x25, 0x0C, 0xBB, 0x12}

// Type is a ULog message type code.
type Type byte

const (
	TypeFlagBits         Type = 'B' // flag bits, directly after the file magic
	TypeFormat           Type = 'F' // message format definition
	TypeInfo             Type = 'I' // key-value info
	TypeInfoMulti        Type = 'M' // key-value info split over multiple messages
	TypeParameter        Type = 'P' // parameter, same layout as info
	TypeParameterDefault Type = 'Q' // parameter default value
	TypeAddLogged        Type = 'A' // subscription announcement
	TypeRemoveLogged     Type = 'R' // subscription removal, ignored
	TypeData             Type = 'D' // subscription sample
	TypeLogging          Type = 'L' // logged text message
	TypeLoggingTagged    Type = 'C' // logged text message with tag
	TypeSync             Type = 'S' // sync marker
	TypeDropout          Type = 'O' // dropout marker
)

var knownTypes = map[Type]struct{}{
	TypeFlagBits:         {},
	TypeFormat:           {},
	TypeInfo:             {},
	TypeInfoMulti:        {},
	TypeParameter:        {},
	TypeParameterDefault: {},
	TypeAddLogged:        {},
	TypeRemoveLogged:     {},
	TypeData:             {},
	TypeLogging:          {},
	TypeLoggingTagged:    {},
	TypeSync:             {},
	TypeDropout:          {},
}

// KnownType reports whether t is one of the defined message type codes.
// The corruption-recovery scan uses this to judge candidate headers.
func KnownType(t Type) bool {
	_, ok := knownTypes[t]
	return ok
}

func (t Type) String() string {
	switch t {
	case TypeFlagBits:
		return "FlagBits"
	case TypeFormat:
		return "Format"
	case TypeInfo:
		return "Info"
	case TypeInfoMulti:
		return "InfoMulti"
	case TypeParameter:
		return "Parameter"
	case TypeParameterDefault:
		return "ParameterDefault"
	case TypeAddLogged:
		return "AddLogged"
	case TypeRemoveLogged:
		return "RemoveLogged"
	case TypeData:
		return "Data"
	case TypeLogging:
		return "Logging"
	case TypeLoggingTagged:
		return "LoggingTagged"
	case TypeSync:
		return "Sync"
	case TypeDropout:
		return "Dropout"
	default:
		return "Unknown"
	}
}

// Header is the decoded common message header.
type Header struct {
	// Size is the message body length in bytes, excluding the header.
	Size uint16
	// Type is the message type code.
	Type Type
}

// ParseHeader decodes the common header from the first HeaderLen bytes of b.
// The caller must guarantee len(b) >= HeaderLen.
func ParseHeader(b []byte) Header {
	engine := endian.GetLittleEndianEngine()

	return Header{
		Size: engine.Uint16(b[0:2]),
		Type: Type(b[2]),
	}
}

// AppendHeader appends the common header for a message of the given body
// size and type to buf and returns the extended buffer.
func AppendHeader(buf []byte, size uint16, typ Type) []byte {
	engine := endian.GetLittleEndianEngine()
	buf = engine.AppendUint16(buf, size)

	return append(buf, byte(typ))
}
