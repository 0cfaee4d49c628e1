package writer

import (
	"fmt"
	"regexp"

	"github.com/arloliu/ulog/errs"
	"github.com/arloliu/ulog/msg"
)

var (
	formatNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_\-/]+$`)
	fieldNameRegex  = regexp.MustCompile(`^[a-z0-9_]+$`)
)

// LogWriter is the integrity-checking facade over Writer for
// straightforward data logging. It enforces call order and field-layout
// safety: formats register only before the header completes, every
// format starts with a uint64 timestamp, names match the ULog naming
// rules, layouts need no padding, and sample sizes are verified against
// the registered format.
//
// Violations return usage errors from the offending call. Nested formats
// are not supported by this facade (the parser supports them).
type LogWriter struct {
	writer *Writer

	headerComplete bool
	formats        map[string]int // registered format name -> sample size
	subscriptions  []int          // msg id -> expected sample size
}

// NewLogWriter creates a LogWriter emitting to sink and writes the file
// header with the given start timestamp.
func NewLogWriter(sink msg.WriteFunc, timestampUS uint64) (*LogWriter, error) {
	w, err := New(sink)
	if err != nil {
		return nil, err
	}

	header := msg.NewFileHeader(timestampUS)
	if err := w.FileHeader(header); err != nil {
		return nil, err
	}

	return &LogWriter{
		writer:  w,
		formats: make(map[string]int),
	}, nil
}

// WriteFormat registers and writes a message format.
//
// The first field must be a scalar "uint64_t timestamp". The format name
// must match [a-zA-Z0-9_\-/]+ and every field name [a-z0-9_]+. Fields
// must be of basic types, laid out without padding: at every field the
// running offset must be a multiple of the field's element size. The
// simplest way to achieve that is ordering fields by decreasing element
// size.
func (lw *LogWriter) WriteFormat(name string, fields []*msg.Field) error {
	if lw.headerComplete {
		return errs.ErrHeaderAlreadyComplete
	}
	if len(fields) == 0 || fields[0].Name != "timestamp" ||
		fields[0].Type != msg.TypeUInt64 || fields[0].ArrayLength != -1 {
		return errs.ErrFirstFieldTimestamp
	}
	if _, exists := lw.formats[name]; exists {
		return fmt.Errorf("%w: %s", errs.ErrDuplicateFormat, name)
	}
	if !formatNameRegex.MatchString(name) {
		return fmt.Errorf("%w: %s", errs.ErrInvalidFormatName, name)
	}

	messageSize := 0
	for _, field := range fields {
		if !fieldNameRegex.MatchString(field.Name) {
			return fmt.Errorf("%w: %s", errs.ErrInvalidFieldName, field.Name)
		}
		elementSize := msg.BasicTypeSize(field.TypeName)
		if elementSize == 0 {
			return fmt.Errorf("%w: %s", errs.ErrNestedNotSupported, field.TypeName)
		}
		if messageSize%elementSize != 0 {
			return fmt.Errorf("%w: padding before field %s", errs.ErrFieldPadding, field.Name)
		}

		arraySize := field.ArrayLength
		if arraySize <= 0 {
			arraySize = 1
		}
		messageSize += arraySize * elementSize
	}

	if err := lw.writer.MessageFormat(msg.NewFormat(name, fields)); err != nil {
		return err
	}
	lw.formats[name] = messageSize

	return nil
}

// WriteInfoString writes a key-value info with a string value. Typically
// used for versioning information in the header.
func (lw *LogWriter) WriteInfoString(key, value string) error {
	return lw.writer.MessageInfo(msg.NewInfoString(key, value))
}

// WriteInfoInt32 writes a key-value info with an int32 value.
func (lw *LogWriter) WriteInfoInt32(key string, value int32) error {
	return lw.writer.MessageInfo(msg.NewInfoInt32(key, value))
}

// WriteInfoFloat32 writes a key-value info with a float32 value.
func (lw *LogWriter) WriteInfoFloat32(key string, value float32) error {
	return lw.writer.MessageInfo(msg.NewInfoFloat32(key, value))
}

// WriteParameterInt32 writes an int32 parameter to the header.
func (lw *LogWriter) WriteParameterInt32(key string, value int32) error {
	if lw.headerComplete {
		return errs.ErrHeaderAlreadyComplete
	}

	return lw.writer.Parameter(msg.NewInfoInt32(key, value))
}

// WriteParameterFloat32 writes a float32 parameter to the header.
func (lw *LogWriter) WriteParameterFloat32(key string, value float32) error {
	if lw.headerComplete {
		return errs.ErrHeaderAlreadyComplete
	}

	return lw.writer.Parameter(msg.NewInfoFloat32(key, value))
}

// WriteParameterChangeInt32 writes an int32 parameter change after the
// header.
func (lw *LogWriter) WriteParameterChangeInt32(key string, value int32) error {
	if !lw.headerComplete {
		return errs.ErrHeaderNotComplete
	}

	return lw.writer.Parameter(msg.NewInfoInt32(key, value))
}

// WriteParameterChangeFloat32 writes a float32 parameter change after the
// header.
func (lw *LogWriter) WriteParameterChangeFloat32(key string, value float32) error {
	if !lw.headerComplete {
		return errs.ErrHeaderNotComplete
	}

	return lw.writer.Parameter(msg.NewInfoFloat32(key, value))
}

// HeaderComplete ends the definition section. Call it after all formats,
// infos and parameters are written.
func (lw *LogWriter) HeaderComplete() error {
	if lw.headerComplete {
		return errs.ErrHeaderAlreadyComplete
	}
	if err := lw.writer.HeaderComplete(); err != nil {
		return err
	}
	lw.headerComplete = true

	return nil
}

// AddSubscription announces a time series based on a registered format
// and returns the message ID for WriteData.
func (lw *LogWriter) AddSubscription(formatName string, multiID uint8) (uint16, error) {
	if !lw.headerComplete {
		return 0, errs.ErrHeaderNotComplete
	}

	size, ok := lw.formats[formatName]
	if !ok {
		return 0, fmt.Errorf("%w: %s", errs.ErrFormatNotFound, formatName)
	}

	msgID := uint16(len(lw.subscriptions))
	if err := lw.writer.AddLoggedMessage(msg.NewAddLogged(multiID, msgID, formatName)); err != nil {
		return 0, err
	}
	lw.subscriptions = append(lw.subscriptions, size)

	return msgID, nil
}

// WriteLog writes a text message. The header must be complete.
func (lw *LogWriter) WriteLog(level msg.Level, message string, timestampUS uint64) error {
	if !lw.headerComplete {
		return errs.ErrHeaderNotComplete
	}

	return lw.writer.Logging(msg.NewLogging(level, message, timestampUS))
}

// WriteDropout writes a dropout marker of the given duration in
// milliseconds.
func (lw *LogWriter) WriteDropout(durationMS uint16) error {
	if !lw.headerComplete {
		return errs.ErrHeaderNotComplete
	}

	return lw.writer.Dropout(msg.Dropout{Duration: durationMS})
}

// WriteSync writes a sync marker.
func (lw *LogWriter) WriteSync() error {
	if !lw.headerComplete {
		return errs.ErrHeaderNotComplete
	}

	return lw.writer.Sync(msg.Sync{})
}

// WriteData writes one sample for the subscription id. data must hold at
// least the registered format's size; trailing bytes beyond it (struct
// padding at the end) are trimmed off.
func (lw *LogWriter) WriteData(id uint16, data []byte) error {
	if !lw.headerComplete {
		return errs.ErrHeaderNotComplete
	}
	if int(id) >= len(lw.subscriptions) {
		return fmt.Errorf("%w: %d", errs.ErrInvalidSubscriptionID, id)
	}

	expected := lw.subscriptions[id]
	if len(data) < expected {
		return fmt.Errorf("%w: %d < %d", errs.ErrDataTooSmall, len(data), expected)
	}

	return lw.writer.Data(msg.NewData(id, data[:expected]))
}
