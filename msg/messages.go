package msg

import (
	"bytes"
	"fmt"

	"github.com/arloliu/ulog/endian"
	"github.com/arloliu/ulog/errs"
	"github.com/arloliu/ulog/frame"
)

// AddLogged announces a subscription: it binds a wire message ID to a
// named message format and instance index.
type AddLogged struct {
	// MultiID distinguishes several instances of the same-named topic.
	MultiID uint8
	// MsgID is the wire message ID, unique per log.
	MsgID uint16
	// MessageName is the name of the subscribed message format.
	MessageName string
}

// ParseAddLogged decodes an add-logged-message body.
func ParseAddLogged(body []byte) (AddLogged, error) {
	if len(body) < 4 {
		return AddLogged{}, fmt.Errorf("%w: add logged", errs.ErrMessageTooShort)
	}

	engine := endian.GetLittleEndianEngine()

	return AddLogged{
		MultiID:     body[0],
		MsgID:       engine.Uint16(body[1:3]),
		MessageName: string(body[3:]),
	}, nil
}

// NewAddLogged creates an add-logged-message announcement.
func NewAddLogged(multiID uint8, msgID uint16, messageName string) AddLogged {
	return AddLogged{MultiID: multiID, MsgID: msgID, MessageName: messageName}
}

// Serialize emits the add-logged message to w.
func (a AddLogged) Serialize(w WriteFunc) error {
	engine := endian.GetLittleEndianEngine()

	return serializeMessage(w, frame.TypeAddLogged, func(buf []byte) []byte {
		buf = append(buf, a.MultiID)
		buf = engine.AppendUint16(buf, a.MsgID)

		return append(buf, a.MessageName...)
	})
}

// Level is a logged-message severity, stored as the ASCII digits '0'
// through '7'.
type Level byte

const (
	LevelEmergency Level = '0'
	LevelAlert     Level = '1'
	LevelCritical  Level = '2'
	LevelError     Level = '3'
	LevelWarning   Level = '4'
	LevelNotice    Level = '5'
	LevelInfo      Level = '6'
	LevelDebug     Level = '7'
)

func (l Level) String() string {
	switch l {
	case LevelEmergency:
		return "Emergency"
	case LevelAlert:
		return "Alert"
	case LevelCritical:
		return "Critical"
	case LevelError:
		return "Error"
	case LevelWarning:
		return "Warning"
	case LevelNotice:
		return "Notice"
	case LevelInfo:
		return "Info"
	case LevelDebug:
		return "Debug"
	default:
		return "unknown"
	}
}

// Logging is a logged text message, optionally carrying a tag.
type Logging struct {
	// Level is the severity. Out-of-range wire values fold to LevelDebug.
	Level Level
	// Tag is the optional tag; meaningful only when HasTag is set.
	Tag uint16
	// HasTag marks a tagged logging message.
	HasTag bool
	// Timestamp is the message time in microseconds.
	Timestamp uint64
	// Message is the log text.
	Message string
}

// ParseLogging decodes a plain logging message body.
func ParseLogging(body []byte) (Logging, error) {
	if len(body) < 10 {
		return Logging{}, fmt.Errorf("%w: logging", errs.ErrMessageTooShort)
	}

	engine := endian.GetLittleEndianEngine()

	return Logging{
		Level:     foldLevel(body[0]),
		Timestamp: engine.Uint64(body[1:9]),
		Message:   string(body[9:]),
	}, nil
}

// ParseLoggingTagged decodes a tagged logging message body.
func ParseLoggingTagged(body []byte) (Logging, error) {
	if len(body) < 12 {
		return Logging{}, fmt.Errorf("%w: tagged logging", errs.ErrMessageTooShort)
	}

	engine := endian.GetLittleEndianEngine()

	return Logging{
		Level:     foldLevel(body[0]),
		Tag:       engine.Uint16(body[1:3]),
		HasTag:    true,
		Timestamp: engine.Uint64(body[3:11]),
		Message:   string(body[11:]),
	}, nil
}

func foldLevel(b byte) Level {
	if b < byte(LevelEmergency) || b > byte(LevelDebug) {
		return LevelDebug
	}

	return Level(b)
}

// NewLogging creates a plain logging message.
func NewLogging(level Level, message string, timestampUS uint64) Logging {
	return Logging{Level: level, Message: message, Timestamp: timestampUS}
}

// NewLoggingTagged creates a tagged logging message.
func NewLoggingTagged(level Level, message string, timestampUS uint64, tag uint16) Logging {
	return Logging{Level: level, Message: message, Timestamp: timestampUS, Tag: tag, HasTag: true}
}

// Serialize emits the logging message to w, tagged when HasTag is set.
func (l Logging) Serialize(w WriteFunc) error {
	engine := endian.GetLittleEndianEngine()

	typ := frame.TypeLogging
	if l.HasTag {
		typ = frame.TypeLoggingTagged
	}

	return serializeMessage(w, typ, func(buf []byte) []byte {
		buf = append(buf, byte(l.Level))
		if l.HasTag {
			buf = engine.AppendUint16(buf, l.Tag)
		}
		buf = engine.AppendUint64(buf, l.Timestamp)

		return append(buf, l.Message...)
	})
}

// Data is a single sample of a subscription. Its payload decodes against
// the subscription's resolved message format.
type Data struct {
	// MsgID is the wire message ID of the subscription.
	MsgID uint16
	// Payload is the raw sample bytes.
	Payload []byte
}

// ParseData decodes a data message body.
func ParseData(body []byte) (Data, error) {
	if len(body) < 3 {
		return Data{}, fmt.Errorf("%w: data", errs.ErrMessageTooShort)
	}

	engine := endian.GetLittleEndianEngine()

	return Data{
		MsgID:   engine.Uint16(body[0:2]),
		Payload: bytes.Clone(body[2:]),
	}, nil
}

// NewData creates a data sample message.
func NewData(msgID uint16, payload []byte) Data {
	return Data{MsgID: msgID, Payload: payload}
}

// Serialize emits the data message to w.
func (d Data) Serialize(w WriteFunc) error {
	engine := endian.GetLittleEndianEngine()

	return serializeMessage(w, frame.TypeData, func(buf []byte) []byte {
		buf = engine.AppendUint16(buf, d.MsgID)

		return append(buf, d.Payload...)
	})
}

// Dropout marks a period during which messages were lost.
type Dropout struct {
	// Duration is the dropout length in milliseconds.
	Duration uint16
}

// ParseDropout decodes a dropout message body.
func ParseDropout(body []byte) (Dropout, error) {
	if len(body) < 2 {
		return Dropout{}, fmt.Errorf("%w: dropout", errs.ErrMessageTooShort)
	}

	engine := endian.GetLittleEndianEngine()

	return Dropout{Duration: engine.Uint16(body[0:2])}, nil
}

// Serialize emits the dropout message to w.
func (d Dropout) Serialize(w WriteFunc) error {
	engine := endian.GetLittleEndianEngine()

	return serializeMessage(w, frame.TypeDropout, func(buf []byte) []byte {
		return engine.AppendUint16(buf, d.Duration)
	})
}

// Sync is a synchronization marker with a fixed magic body.
type Sync struct{}

// ParseSync validates a sync message body against the sync magic.
func ParseSync(body []byte) (Sync, error) {
	if len(body) < len(frame.SyncMagic) {
		return Sync{}, fmt.Errorf("%w: sync", errs.ErrMessageTooShort)
	}
	if !bytes.Equal(body[:len(frame.SyncMagic)], frame.SyncMagic[:]) {
		return Sync{}, errs.ErrInvalidSyncMagic
	}

	return Sync{}, nil
}

// Serialize emits the sync marker to w.
func (s Sync) Serialize(w WriteFunc) error {
	return serializeMessage(w, frame.TypeSync, func(buf []byte) []byte {
		return append(buf, frame.SyncMagic[:]...)
	})
}
