package msg

import (
	"math"

	"github.com/arloliu/ulog/endian"
	"github.com/arloliu/ulog/errs"
	"github.com/arloliu/ulog/frame"
	"github.com/arloliu/ulog/internal/pool"
)

// WriteFunc is the byte sink messages serialize to. The sink must consume
// the buffer before returning; it is reused across calls.
type WriteFunc func(p []byte)

// serializeMessage frames a message body and hands it to w. appendBody
// appends the body to the buffer it receives; the common header size is
// patched in afterwards.
func serializeMessage(w WriteFunc, typ frame.Type, appendBody func(buf []byte) []byte) error {
	bb := pool.GetMessageBuffer()
	defer pool.PutMessageBuffer(bb)

	buf := append(bb.B, 0, 0, byte(typ))
	buf = appendBody(buf)
	bb.B = buf

	bodyLen := len(buf) - frame.HeaderLen
	if bodyLen > math.MaxUint16 {
		return errs.ErrMessageTooLong
	}
	endian.GetLittleEndianEngine().PutUint16(buf[0:2], uint16(bodyLen))

	w(buf)

	return nil
}
