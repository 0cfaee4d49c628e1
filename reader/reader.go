// Package reader implements the streaming ULog parser.
//
// A Reader consumes arbitrarily sized chunks of a ULog byte stream and
// emits fully decoded messages to a Handler. Messages split across chunk
// boundaries are reassembled in an internal buffer; corrupted regions are
// reported once and skipped by scanning forward for the next plausible
// message header.
//
// The reader is single-threaded: all work happens inside ReadChunk, and a
// Reader must not be shared between goroutines. Two readers on disjoint
// streams are independent.
package reader

import (
	"bytes"
	"fmt"

	"github.com/arloliu/ulog/endian"
	"github.com/arloliu/ulog/errs"
	"github.com/arloliu/ulog/frame"
	"github.com/arloliu/ulog/internal/options"
	"github.com/arloliu/ulog/internal/pool"
	"github.com/arloliu/ulog/msg"
)

// maxRecoveryMessageSize caps the message size the recovery scan accepts
// as plausible when hunting for the next valid header.
const maxRecoveryMessageSize = 10000

type state uint8

const (
	stateReadMagic state = iota
	stateReadFlagBits
	stateReadHeader
	stateReadData
	stateInvalidData
)

// Reader is the streaming ULog parser. Create one with New, then push the
// stream through ReadChunk in any chunking; the attached Handler receives
// each decoded message immediately.
type Reader struct {
	handler Handler

	state              state
	buf                *pool.ByteBuffer // at most one message, unless recovering
	needRecovery       bool
	corruptionReported bool
	totalRead          int

	fileHeader msg.FileHeader
}

// Option configures a Reader.
type Option = options.Option[*Reader]

// WithBufferCapacity sets the initial capacity of the reassembly buffer.
// The buffer still grows on demand for oversized messages.
func WithBufferCapacity(capacity int) Option {
	return options.New(func(r *Reader) error {
		if capacity <= frame.HeaderLen {
			return fmt.Errorf("reassembly buffer capacity %d too small", capacity)
		}
		r.buf = pool.NewByteBuffer(capacity)

		return nil
	})
}

// New creates a Reader delivering messages to handler.
//
// The reader requires a little-endian host. On a big-endian host the
// handler receives a fatal error and the reader ignores all input, as it
// does after any fatal stream error.
func New(handler Handler, opts ...Option) (*Reader, error) {
	r := &Reader{
		handler: handler,
		buf:     pool.NewByteBuffer(pool.ReassemblyBufferSize),
	}
	if err := options.Apply(r, opts...); err != nil {
		return nil, err
	}

	if !endian.IsNativeLittleEndian() {
		r.fatal(errs.ErrBigEndianHost.Error())
	}

	return r, nil
}

// TotalRead returns the total number of stream bytes consumed so far,
// including bytes currently held in the reassembly buffer.
func (r *Reader) TotalRead() int {
	return r.totalRead
}

// ReadChunk parses the next chunk of the stream. Chunks must arrive in
// order but may have any size; message boundaries need not align with
// chunk boundaries. The handler is invoked for every message completed by
// this chunk. After a fatal error ReadChunk is a no-op.
func (r *Reader) ReadChunk(data []byte) {
	if r.state == stateInvalidData {
		return
	}

	if r.state == stateReadMagic {
		n := r.readMagic(data)
		data = data[n:]
		r.totalRead += n
	}
	if r.state == stateReadFlagBits && len(data) > 0 {
		n := r.readFlagBits(data)
		data = data[n:]
		r.totalRead += n
	}

	for r.state != stateInvalidData {
		if !r.needRecovery {
			data = r.pumpMessages(data)
		}
		if !r.needRecovery || r.state == stateInvalidData {
			break
		}

		var recovered bool
		data, recovered = r.tryToRecover(data)
		if !recovered {
			break
		}
	}
}

// pumpMessages decodes as many whole messages as the buffered residue and
// data provide, returning the unconsumed tail of data.
func (r *Reader) pumpMessages(data []byte) []byte {
	for (len(data) > 0 || r.buf.Len() > 0) && !r.needRecovery && r.state != stateInvalidData {
		// Obtain one full message: either the reassembly buffer holds a
		// partial message to complete, or data is inspected in place.
		var message []byte
		fromBuffer := false

		if r.buf.Len() > 0 {
			var ok bool
			data, ok = r.ensureBuffered(frame.HeaderLen, data)
			if ok {
				header := frame.ParseHeader(r.buf.Bytes())
				data, ok = r.ensureBuffered(int(header.Size)+frame.HeaderLen, data)
				if ok {
					message = r.buf.Bytes()[:int(header.Size)+frame.HeaderLen]
					fromBuffer = true
				}
			}
		} else {
			if len(data) > frame.HeaderLen {
				header := frame.ParseHeader(data)
				full := int(header.Size) + frame.HeaderLen
				if len(data) >= full {
					message = data[:full]
					data = data[full:]
					r.totalRead += full
				}
			}
			if message == nil {
				// No full message in data; stash the tail for the next
				// chunk. AppendCapped never grows: an oversized message
				// continues through the buffered branch above, which does.
				n := r.buf.AppendCapped(data)
				data = data[n:]
				r.totalRead += n
			}
		}

		if message == nil {
			if len(data) == 0 {
				// The buffered message is still incomplete.
				break
			}
			continue
		}

		header := frame.ParseHeader(message)
		if header.Size == 0 || byte(header.Type) == 0 {
			r.corruptionDetected()
		} else {
			r.dispatchMessage(header.Type, message[frame.HeaderLen:])
		}

		if fromBuffer {
			// Usually this empties the buffer; during corruption there may
			// be more.
			r.buf.TrimFront(int(header.Size) + frame.HeaderLen)
		}
	}

	return data
}

// ensureBuffered tops the reassembly buffer up to required bytes from
// data, growing the buffer as needed. It reports whether the buffer now
// holds at least required bytes.
func (r *Reader) ensureBuffered(required int, data []byte) ([]byte, bool) {
	if r.buf.Len() < required {
		n := min(required-r.buf.Len(), len(data))
		r.buf.Append(data[:n])
		data = data[n:]
		r.totalRead += n
	}

	return data, r.buf.Len() >= required
}

// tryToRecover scans for the next plausible message header, feeding data
// through the reassembly buffer byte-by-byte. On success the recovery
// state clears and parsing resumes with the remaining data; otherwise the
// buffer keeps the unused tail for the next chunk.
func (r *Reader) tryToRecover(data []byte) ([]byte, bool) {
	for len(data) > 0 {
		appended := r.buf.AppendCapped(data)
		data = data[appended:]
		r.totalRead += appended

		if r.buf.Len() < frame.HeaderLen {
			continue
		}

		found := false
		index := 0
		if appended == 0 {
			// Buffer was already at capacity; skipping index 0 guarantees
			// progress and prevents livelock.
			index = 1
		}
		buffered := r.buf.Bytes()
		for ; index < len(buffered)-frame.HeaderLen; index++ {
			header := frame.ParseHeader(buffered[index:])
			if header.Size != 0 && byte(header.Type) != 0 &&
				int(header.Size) < maxRecoveryMessageSize && frame.KnownType(header.Type) {
				found = true
				break
			}
		}

		if index > 0 {
			r.buf.TrimFront(index)
		}

		if found {
			r.needRecovery = false
			r.corruptionReported = false

			return data, true
		}
	}

	return nil, false
}

func (r *Reader) corruptionDetected() {
	if !r.corruptionReported {
		r.handler.Error("message corruption detected", true)
		r.corruptionReported = true
	}
	r.needRecovery = true
}

func (r *Reader) fatal(message string) {
	r.handler.Error(message, false)
	r.state = stateInvalidData
}

// readMagic consumes the 16-byte file header. It must arrive whole in the
// first chunk; anything less is a truncated file.
func (r *Reader) readMagic(data []byte) int {
	if len(data) < frame.FileHeaderLen {
		r.fatal(errs.ErrTruncatedFileHeader.Error())
		return 0
	}

	if !bytes.Equal(data[:len(frame.FileMagicPrefix)], frame.FileMagicPrefix[:]) {
		r.fatal(errs.ErrInvalidMagic.Error())
		return 0
	}

	engine := endian.GetLittleEndianEngine()
	r.fileHeader = msg.FileHeader{
		Version:   data[7],
		Timestamp: engine.Uint64(data[8:frame.FileHeaderLen]),
	}
	r.state = stateReadFlagBits

	return frame.FileHeaderLen
}

// readFlagBits consumes the optional flag-bits message directly following
// the file magic. When the next message is of a different type, the file
// header is delivered without flag bits.
func (r *Reader) readFlagBits(data []byte) int {
	if len(data) < frame.HeaderLen+msg.FlagBitsLen {
		r.fatal(errs.ErrTruncatedFlagBits.Error())
		return 0
	}

	header := frame.ParseHeader(data)
	if header.Type != frame.TypeFlagBits {
		r.state = stateReadHeader
		r.deliverFileHeader()

		return 0
	}

	fb, err := msg.ParseFlagBits(data[frame.HeaderLen:])
	if err != nil {
		r.fatal(err.Error())
		return 0
	}

	if fb.AppendedOffsets[0] != 0 {
		// TODO: handle appended data
		r.handler.Error("file contains appended offsets - this is not supported", true)
	}
	if fb.HasUnknownIncompat() {
		r.fatal(errs.ErrUnknownIncompatFlag.Error())
		return 0
	}

	r.fileHeader.FlagBits = &fb
	r.state = stateReadHeader
	r.deliverFileHeader()

	return min(int(header.Size)+frame.HeaderLen, len(data))
}

func (r *Reader) deliverFileHeader() {
	if err := r.handler.FileHeader(r.fileHeader); err != nil {
		r.reportError(err)
	}
}

// dispatchMessage decodes one framed message body and routes it to the
// handler. The first data-phase message both completes the header and is
// processed as a data message.
func (r *Reader) dispatchMessage(typ frame.Type, body []byte) {
	var err error
	if r.state == stateReadHeader {
		err = r.readHeaderMessage(typ, body)
	}
	if err == nil && r.state == stateReadData {
		err = r.readDataMessage(typ, body)
	}
	if err != nil {
		r.reportError(err)
	}
}

func (r *Reader) reportError(err error) {
	if errs.IsFatal(err) {
		r.fatal(err.Error())
		return
	}
	r.corruptionDetected()
}

// readHeaderMessage handles messages of the definition section. The first
// add-logged or logging message marks the header complete and flips the
// reader to the data section; that transition is one-shot.
func (r *Reader) readHeaderMessage(typ frame.Type, body []byte) error {
	switch typ {
	case frame.TypeInfo:
		info, err := msg.ParseInfo(body)
		if err != nil {
			return err
		}

		return r.handler.MessageInfo(info)
	case frame.TypeInfoMulti:
		info, err := msg.ParseInfoMulti(body)
		if err != nil {
			return err
		}

		return r.handler.MessageInfo(info)
	case frame.TypeFormat:
		format, err := msg.ParseFormat(body)
		if err != nil {
			return err
		}

		return r.handler.MessageFormat(format)
	case frame.TypeParameter:
		parameter, err := msg.ParseInfo(body)
		if err != nil {
			return err
		}

		return r.handler.Parameter(parameter)
	case frame.TypeParameterDefault:
		parameterDefault, err := msg.ParseParameterDefault(body)
		if err != nil {
			return err
		}

		return r.handler.ParameterDefault(parameterDefault)
	case frame.TypeAddLogged, frame.TypeLogging, frame.TypeLoggingTagged:
		r.state = stateReadData

		return r.handler.HeaderComplete()
	default:
		// Unknown or unexpected message type in the header; skipped.
		return nil
	}
}

// readDataMessage handles messages of the data section, including late
// info and parameter updates.
func (r *Reader) readDataMessage(typ frame.Type, body []byte) error {
	switch typ {
	case frame.TypeInfo:
		info, err := msg.ParseInfo(body)
		if err != nil {
			return err
		}

		return r.handler.MessageInfo(info)
	case frame.TypeInfoMulti:
		info, err := msg.ParseInfoMulti(body)
		if err != nil {
			return err
		}

		return r.handler.MessageInfo(info)
	case frame.TypeParameter:
		parameter, err := msg.ParseInfo(body)
		if err != nil {
			return err
		}

		return r.handler.Parameter(parameter)
	case frame.TypeParameterDefault:
		parameterDefault, err := msg.ParseParameterDefault(body)
		if err != nil {
			return err
		}

		return r.handler.ParameterDefault(parameterDefault)
	case frame.TypeAddLogged:
		addLogged, err := msg.ParseAddLogged(body)
		if err != nil {
			return err
		}

		return r.handler.AddLoggedMessage(addLogged)
	case frame.TypeLogging:
		logging, err := msg.ParseLogging(body)
		if err != nil {
			return err
		}

		return r.handler.Logging(logging)
	case frame.TypeLoggingTagged:
		logging, err := msg.ParseLoggingTagged(body)
		if err != nil {
			return err
		}

		return r.handler.Logging(logging)
	case frame.TypeData:
		data, err := msg.ParseData(body)
		if err != nil {
			return err
		}

		return r.handler.Data(data)
	case frame.TypeDropout:
		dropout, err := msg.ParseDropout(body)
		if err != nil {
			return err
		}

		return r.handler.Dropout(dropout)
	case frame.TypeSync:
		sync, err := msg.ParseSync(body)
		if err != nil {
			return err
		}

		return r.handler.Sync(sync)
	default:
		// Remove-logged and anything unknown is skipped.
		return nil
	}
}
