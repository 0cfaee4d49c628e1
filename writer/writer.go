// Package writer serializes ULog streams to a caller-supplied byte sink.
//
// Writer is the low-level serializer: it exposes the full ULog message
// set and enforces only the phase rules of the format (formats before the
// header completes, subscriptions after). LogWriter layers integrity
// checks on top for straightforward data logging.
//
// The sink is a callback accepting a byte buffer; it must consume the
// buffer before returning and must be total — the writer does not skip or
// retry. The package never performs I/O of its own.
package writer

import (
	"github.com/arloliu/ulog/endian"
	"github.com/arloliu/ulog/errs"
	"github.com/arloliu/ulog/frame"
	"github.com/arloliu/ulog/msg"
)

// Writer is the low-level ULog serializer. Messages are framed and
// emitted to the sink in call order; no integrity checks beyond the
// format's phase rules are applied.
//
// Writer mirrors the reader's handler methods, so a stream can be piped
// from a Reader straight back into a Writer.
type Writer struct {
	sink           msg.WriteFunc
	headerComplete bool
}

// New creates a Writer emitting to sink. The writer requires a
// little-endian host and fails construction otherwise.
func New(sink msg.WriteFunc) (*Writer, error) {
	if !endian.IsNativeLittleEndian() {
		return nil, errs.ErrBigEndianHost
	}

	return &Writer{sink: sink}, nil
}

// HeaderComplete marks the end of the definition section. After this no
// further formats may be written, and subscriptions become legal.
func (w *Writer) HeaderComplete() error {
	w.headerComplete = true
	return nil
}

// FileHeader emits the file header, including flag bits when present.
func (w *Writer) FileHeader(header msg.FileHeader) error {
	return header.Serialize(w.sink)
}

// MessageInfo emits an info or info-multi message.
func (w *Writer) MessageInfo(info msg.Info) error {
	return info.Serialize(w.sink)
}

// MessageFormat emits a format definition. Formats are only legal before
// the header completes.
func (w *Writer) MessageFormat(format *msg.Format) error {
	if w.headerComplete {
		return errs.ErrHeaderAlreadyComplete
	}

	return format.Serialize(w.sink)
}

// Parameter emits a parameter message.
func (w *Writer) Parameter(parameter msg.Parameter) error {
	return parameter.SerializeAs(w.sink, frame.TypeParameter)
}

// ParameterDefault emits a parameter default message.
func (w *Writer) ParameterDefault(parameterDefault msg.ParameterDefault) error {
	return parameterDefault.Serialize(w.sink)
}

// AddLoggedMessage emits a subscription announcement. Announcements are
// only legal once the header is complete.
func (w *Writer) AddLoggedMessage(addLogged msg.AddLogged) error {
	if !w.headerComplete {
		return errs.ErrHeaderNotComplete
	}

	return addLogged.Serialize(w.sink)
}

// Logging emits a logged text message.
func (w *Writer) Logging(logging msg.Logging) error {
	return logging.Serialize(w.sink)
}

// Data emits a subscription sample.
func (w *Writer) Data(data msg.Data) error {
	return data.Serialize(w.sink)
}

// Dropout emits a dropout marker.
func (w *Writer) Dropout(dropout msg.Dropout) error {
	return dropout.Serialize(w.sink)
}

// Sync emits a sync marker.
func (w *Writer) Sync(sync msg.Sync) error {
	return sync.Serialize(w.sink)
}

// Error implements the reader handler shape; the writer has nothing to
// record.
func (w *Writer) Error(string, bool) {}
