package msg

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/arloliu/ulog/errs"
)

// BasicType enumerates the base type of a field. TypeNested marks a field
// that references another message format.
type BasicType uint8

const (
	TypeInt8 BasicType = iota
	TypeUInt8
	TypeInt16
	TypeUInt16
	TypeInt32
	TypeUInt32
	TypeInt64
	TypeUInt64
	TypeFloat
	TypeDouble
	TypeBool
	TypeChar
	TypeNested
)

func (t BasicType) String() string {
	switch t {
	case TypeInt8:
		return "int8_t"
	case TypeUInt8:
		return "uint8_t"
	case TypeInt16:
		return "int16_t"
	case TypeUInt16:
		return "uint16_t"
	case TypeInt32:
		return "int32_t"
	case TypeUInt32:
		return "uint32_t"
	case TypeInt64:
		return "int64_t"
	case TypeUInt64:
		return "uint64_t"
	case TypeFloat:
		return "float"
	case TypeDouble:
		return "double"
	case TypeBool:
		return "bool"
	case TypeChar:
		return "char"
	case TypeNested:
		return "nested"
	default:
		return "unknown"
	}
}

type typeAttributes struct {
	basicType BasicType
	size      int
}

// basicTypes maps the ULog type names to their tag and element size.
// Names not in this table are treated as nested format references.
var basicTypes = map[string]typeAttributes{
	"int8_t":   {TypeInt8, 1},
	"uint8_t":  {TypeUInt8, 1},
	"int16_t":  {TypeInt16, 2},
	"uint16_t": {TypeUInt16, 2},
	"int32_t":  {TypeInt32, 4},
	"uint32_t": {TypeUInt32, 4},
	"int64_t":  {TypeInt64, 8},
	"uint64_t": {TypeUInt64, 8},
	"float":    {TypeFloat, 4},
	"double":   {TypeDouble, 8},
	"bool":     {TypeBool, 1},
	"char":     {TypeChar, 1},
}

// IsBasicTypeName reports whether name is one of the twelve basic ULog
// type names.
func IsBasicTypeName(name string) bool {
	_, ok := basicTypes[name]
	return ok
}

// BasicTypeSize returns the element size of a basic type name, or 0 when
// the name is not a basic type.
func BasicTypeSize(name string) int {
	return basicTypes[name].size
}

// Field is a single named, possibly-array member of a message format.
//
// A field is "resolved" once its byte offset within the containing format
// is known and, for nested fields, the referenced Format is bound. Fields
// parsed from the wire start unresolved; resolution runs when the log
// header is complete.
type Field struct {
	// TypeName is the declared type: a basic type name or the name of
	// another message format.
	TypeName string
	// Type is the basic type tag, TypeNested for format references.
	Type BasicType
	// Name is the field name.
	Name string
	// ArrayLength is the declared array length, or -1 for scalars.
	// Arrays of char represent strings.
	ArrayLength int

	baseSize int     // element size; for nested fields set during resolution
	offset   int     // byte offset in the message, -1 until resolved
	nested   *Format // bound nested format, nil until resolved
}

// NewField creates a field of the given type name. arrayLength is -1 for
// scalars. Unknown type names produce an unresolved nested field.
func NewField(typeName, name string, arrayLength int) *Field {
	f := &Field{
		TypeName:    typeName,
		Name:        name,
		ArrayLength: arrayLength,
		offset:      -1,
	}

	if attr, ok := basicTypes[typeName]; ok {
		f.Type = attr.basicType
		f.baseSize = attr.size
	} else {
		f.Type = TypeNested
	}

	return f
}

// ParseField decodes a field declaration of the form "<type>[N] <name>" or
// "<type> <name>".
func ParseField(b []byte) (*Field, error) {
	space := bytes.IndexByte(b, ' ')
	if space < 0 {
		return nil, fmt.Errorf("%w: no space in %q", errs.ErrInvalidFieldFormat, b)
	}

	typePart := b[:space]
	name := string(b[space+1:])

	arrayLength := -1
	bracket := bytes.IndexByte(typePart, '[')
	if bracket >= 0 {
		if typePart[len(typePart)-1] != ']' {
			return nil, fmt.Errorf("%w: missing ] in %q", errs.ErrInvalidFieldFormat, b)
		}
		length, err := strconv.Atoi(string(typePart[bracket+1 : len(typePart)-1]))
		if err != nil || length < 0 {
			return nil, fmt.Errorf("%w: bad array length in %q", errs.ErrInvalidFieldFormat, b)
		}
		arrayLength = length
		typePart = typePart[:bracket]
	}

	return NewField(string(typePart), name, arrayLength), nil
}

// Encode renders the field declaration back into its wire form.
func (f *Field) Encode() string {
	if f.ArrayLength >= 0 {
		return f.TypeName + "[" + strconv.Itoa(f.ArrayLength) + "] " + f.Name
	}

	return f.TypeName + " " + f.Name
}

// Equal reports whether two fields declare the same type, array length and
// name. Resolution state is not compared.
func (f *Field) Equal(other *Field) bool {
	return f.TypeName == other.TypeName &&
		f.ArrayLength == other.ArrayLength &&
		f.Name == other.Name
}

// Offset returns the byte offset of the field in its message, or -1 while
// the field is unresolved.
func (f *Field) Offset() int {
	return f.offset
}

// Resolved reports whether the field's offset is known and, for nested
// fields, the target format is bound.
func (f *Field) Resolved() bool {
	return f.offset >= 0 && (f.Type != TypeNested || f.nested != nil)
}

// SizeBytes returns the total field size in bytes, counting all array
// elements. The result is only meaningful once the field is resolved.
func (f *Field) SizeBytes() int {
	n := f.ArrayLength
	if n == -1 {
		n = 1
	}

	return f.baseSize * n
}

// NestedFormat returns the bound format of a nested field. It returns nil
// while the field is unresolved.
func (f *Field) NestedFormat() (*Format, error) {
	if f.Type != TypeNested {
		return nil, fmt.Errorf("%w: %s", errs.ErrNotNested, f.Name)
	}

	return f.nested, nil
}

// NestedField looks up a field of the bound nested format by name.
func (f *Field) NestedField(name string) (*Field, error) {
	if f.Type != TypeNested {
		return nil, fmt.Errorf("%w: %s", errs.ErrNotNested, f.Name)
	}
	if f.nested == nil {
		return nil, fmt.Errorf("%w: %s", errs.ErrFieldUnresolved, f.Name)
	}

	return f.nested.Field(name)
}

// Resolve resolves the field at the given offset against the registry.
// This is used for standalone fields (info and parameter messages); fields
// inside formats resolve through Format resolution instead.
func (f *Field) Resolve(registry *FormatRegistry, offset int) error {
	return f.resolve(registry, offset, make(map[string]struct{}))
}

func (f *Field) resolve(registry *FormatRegistry, offset int, visiting map[string]struct{}) error {
	if f.Resolved() {
		return nil
	}

	f.offset = offset
	if f.Type != TypeNested {
		return nil
	}

	nested, ok := registry.Get(f.TypeName)
	if !ok {
		return fmt.Errorf("%w: %s", errs.ErrFormatNotFound, f.TypeName)
	}
	f.nested = nested

	if err := nested.resolve(registry, visiting); err != nil {
		return err
	}
	f.baseSize = nested.SizeBytes()

	return nil
}
