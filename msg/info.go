package msg

import (
	"bytes"
	"fmt"
	"math"

	"github.com/arloliu/ulog/endian"
	"github.com/arloliu/ulog/errs"
	"github.com/arloliu/ulog/frame"
)

// Info is a key-value info message. The key is a single field declaration,
// the value its raw encoding. Long values can be split over multiple
// info-multi messages sharing the key; continuation chunks carry
// Continued=true and are stitched together in emission order.
type Info struct {
	// Field is the key: a field declaration naming the value's type.
	Field *Field
	// RawValue is the undecoded value bytes.
	RawValue []byte
	// IsMulti marks an info-multi message.
	IsMulti bool
	// Continued marks a continuation chunk of a multi message.
	Continued bool
}

// Parameter messages share the info layout; only the type code differs.
type Parameter = Info

// ParseInfo decodes an info (or parameter) message body.
func ParseInfo(body []byte) (Info, error) {
	if len(body) < 2 {
		return Info{}, fmt.Errorf("%w: info", errs.ErrMessageTooShort)
	}

	keyLen := int(body[0])
	if keyLen > len(body)-1 {
		return Info{}, fmt.Errorf("%w: info key", errs.ErrKeyTooLong)
	}

	field, err := ParseField(body[1 : 1+keyLen])
	if err != nil {
		return Info{}, err
	}

	return Info{
		Field:    field,
		RawValue: bytes.Clone(body[1+keyLen:]),
	}, nil
}

// ParseInfoMulti decodes an info-multi message body.
func ParseInfoMulti(body []byte) (Info, error) {
	if len(body) < 3 {
		return Info{}, fmt.Errorf("%w: info multi", errs.ErrMessageTooShort)
	}

	continued := body[0] != 0
	keyLen := int(body[1])
	if keyLen > len(body)-2 {
		return Info{}, fmt.Errorf("%w: info multi key", errs.ErrKeyTooLong)
	}

	field, err := ParseField(body[2 : 2+keyLen])
	if err != nil {
		return Info{}, err
	}

	return Info{
		Field:     field,
		RawValue:  bytes.Clone(body[2+keyLen:]),
		IsMulti:   true,
		Continued: continued,
	}, nil
}

// NewInfo creates an info message from a field declaration and raw value
// bytes.
func NewInfo(field *Field, value []byte) Info {
	return Info{Field: field, RawValue: value}
}

// NewInfoMulti creates an info-multi message chunk.
func NewInfoMulti(field *Field, value []byte, continued bool) Info {
	return Info{Field: field, RawValue: value, IsMulti: true, Continued: continued}
}

// NewInfoString creates an info message holding a string value.
func NewInfoString(key, value string) Info {
	return Info{
		Field:    NewField("char", key, len(value)),
		RawValue: []byte(value),
	}
}

// NewInfoInt32 creates an info message holding an int32 value.
func NewInfoInt32(key string, value int32) Info {
	raw := endian.GetLittleEndianEngine().AppendUint32(nil, uint32(value))

	return Info{
		Field:    NewField("int32_t", key, -1),
		RawValue: raw,
	}
}

// NewInfoFloat32 creates an info message holding a float32 value.
func NewInfoFloat32(key string, value float32) Info {
	raw := endian.GetLittleEndianEngine().AppendUint32(nil, math.Float32bits(value))

	return Info{
		Field:    NewField("float", key, -1),
		RawValue: raw,
	}
}

// Value returns a typed view over the raw value bytes. The info's field
// must be resolved first.
func (i Info) Value() Value {
	return NewValue(i.Field, i.RawValue)
}

// Equal reports whether two info messages carry the same key declaration,
// value bytes and multi flags.
func (i Info) Equal(other Info) bool {
	return i.Field.Equal(other.Field) &&
		bytes.Equal(i.RawValue, other.RawValue) &&
		i.IsMulti == other.IsMulti &&
		i.Continued == other.Continued
}

// Serialize emits the message as info or info-multi, according to
// IsMulti.
func (i Info) Serialize(w WriteFunc) error {
	typ := frame.TypeInfo
	if i.IsMulti {
		typ = frame.TypeInfoMulti
	}

	return i.SerializeAs(w, typ)
}

// SerializeAs emits the message under an explicit type code. The writer
// uses this to emit parameters, which share the info layout.
func (i Info) SerializeAs(w WriteFunc, typ frame.Type) error {
	encoded := i.Field.Encode()
	if len(encoded) > math.MaxUint8 {
		return fmt.Errorf("%w: info key", errs.ErrMessageTooLong)
	}

	return serializeMessage(w, typ, func(buf []byte) []byte {
		if typ == frame.TypeInfoMulti {
			continued := byte(0)
			if i.Continued {
				continued = 1
			}
			buf = append(buf, continued)
		}
		buf = append(buf, byte(len(encoded)))
		buf = append(buf, encoded...)

		return append(buf, i.RawValue...)
	})
}

// DefaultType is the bitmask naming which default groups a parameter
// default belongs to.
type DefaultType uint8

const (
	// DefaultTypeSystem is the system-wide default group.
	DefaultTypeSystem DefaultType = 1 << 0
	// DefaultTypeConfiguration is the current-configuration default group.
	DefaultTypeConfiguration DefaultType = 1 << 1
)

// ParameterDefault is a parameter default value message.
type ParameterDefault struct {
	// Field is the key field declaration.
	Field *Field
	// RawValue is the undecoded default value bytes.
	RawValue []byte
	// DefaultTypes names the default groups the value belongs to.
	DefaultTypes DefaultType
}

// ParseParameterDefault decodes a parameter-default message body.
func ParseParameterDefault(body []byte) (ParameterDefault, error) {
	if len(body) < 3 {
		return ParameterDefault{}, fmt.Errorf("%w: parameter default", errs.ErrMessageTooShort)
	}

	defaultTypes := DefaultType(body[0])
	keyLen := int(body[1])
	if keyLen > len(body)-2 {
		return ParameterDefault{}, fmt.Errorf("%w: parameter default key", errs.ErrKeyTooLong)
	}

	field, err := ParseField(body[2 : 2+keyLen])
	if err != nil {
		return ParameterDefault{}, err
	}

	return ParameterDefault{
		Field:        field,
		RawValue:     bytes.Clone(body[2+keyLen:]),
		DefaultTypes: defaultTypes,
	}, nil
}

// NewParameterDefault creates a parameter-default message.
func NewParameterDefault(field *Field, value []byte, defaultTypes DefaultType) ParameterDefault {
	return ParameterDefault{Field: field, RawValue: value, DefaultTypes: defaultTypes}
}

// Value returns a typed view over the raw default value bytes.
func (p ParameterDefault) Value() Value {
	return NewValue(p.Field, p.RawValue)
}

// Serialize emits the parameter-default message to w.
func (p ParameterDefault) Serialize(w WriteFunc) error {
	encoded := p.Field.Encode()
	if len(encoded) > math.MaxUint8 {
		return fmt.Errorf("%w: parameter default key", errs.ErrMessageTooLong)
	}

	return serializeMessage(w, frame.TypeParameterDefault, func(buf []byte) []byte {
		buf = append(buf, byte(p.DefaultTypes))
		buf = append(buf, byte(len(encoded)))
		buf = append(buf, encoded...)

		return append(buf, p.RawValue...)
	})
}
