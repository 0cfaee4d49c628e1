package msg

import (
	"fmt"

	"github.com/arloliu/ulog/endian"
	"github.com/arloliu/ulog/errs"
	"github.com/arloliu/ulog/frame"
)

// FlagBitsLen is the body length of the flag-bits message.
const FlagBitsLen = 40

// Flag masks within CompatFlags[0] and IncompatFlags[0].
const (
	// CompatFlagDefaultParameters marks that the log contains default
	// parameters. Compatible: readers may ignore it.
	CompatFlagDefaultParameters = 1 << 0

	// IncompatFlagDataAppended marks that data is appended after the
	// regular end of the log. It is the only tolerated incompatible flag;
	// appended regions themselves are ignored by this codec.
	IncompatFlagDataAppended = 1 << 0
)

// FlagBits is the optional flag-bits message directly following the file
// magic.
type FlagBits struct {
	CompatFlags     [8]byte
	IncompatFlags   [8]byte
	AppendedOffsets [3]uint64
}

// ParseFlagBits decodes a flag-bits message body.
func ParseFlagBits(body []byte) (FlagBits, error) {
	if len(body) < FlagBitsLen {
		return FlagBits{}, fmt.Errorf("%w: flag bits", errs.ErrMessageTooShort)
	}

	engine := endian.GetLittleEndianEngine()

	var fb FlagBits
	copy(fb.CompatFlags[:], body[0:8])
	copy(fb.IncompatFlags[:], body[8:16])
	for i := range fb.AppendedOffsets {
		fb.AppendedOffsets[i] = engine.Uint64(body[16+i*8 : 24+i*8])
	}

	return fb, nil
}

// HasDataAppended reports whether the data-appended incompatible flag is
// set.
func (fb *FlagBits) HasDataAppended() bool {
	return fb.IncompatFlags[0]&IncompatFlagDataAppended != 0
}

// HasUnknownIncompat reports whether any incompatible flag other than
// data-appended is set. Such logs cannot be parsed.
func (fb *FlagBits) HasUnknownIncompat() bool {
	if fb.IncompatFlags[0]&^byte(IncompatFlagDataAppended) != 0 {
		return true
	}
	for _, b := range fb.IncompatFlags[1:] {
		if b != 0 {
			return true
		}
	}

	return false
}

// FileHeader is the fixed header at the start of every ULog file: the
// magic with a version byte, a start timestamp in microseconds, and the
// optional flag-bits message.
type FileHeader struct {
	// Timestamp is the log start time in microseconds.
	Timestamp uint64
	// Version is the file format version byte from the magic.
	Version uint8
	// FlagBits is the optional flag-bits message, nil when the log
	// carries none.
	FlagBits *FlagBits
}

// NewFileHeader creates a version-1 file header with empty flag bits.
func NewFileHeader(timestampUS uint64) FileHeader {
	return FileHeader{
		Timestamp: timestampUS,
		Version:   frame.Version,
		FlagBits:  &FlagBits{},
	}
}

// Serialize emits the 16-byte file header and, when present, the
// flag-bits message to w.
func (h *FileHeader) Serialize(w WriteFunc) error {
	engine := endian.GetLittleEndianEngine()

	buf := make([]byte, 0, frame.FileHeaderLen)
	buf = append(buf, frame.FileMagicPrefix[:]...)
	buf = append(buf, h.Version)
	buf = engine.AppendUint64(buf, h.Timestamp)
	w(buf)

	if h.FlagBits == nil {
		return nil
	}

	fb := h.FlagBits

	return serializeMessage(w, frame.TypeFlagBits, func(buf []byte) []byte {
		buf = append(buf, fb.CompatFlags[:]...)
		buf = append(buf, fb.IncompatFlags[:]...)
		for _, off := range fb.AppendedOffsets {
			buf = engine.AppendUint64(buf, off)
		}

		return buf
	})
}
