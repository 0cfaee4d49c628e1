package msg

import (
	"fmt"
	"math"

	"github.com/arloliu/ulog/endian"
	"github.com/arloliu/ulog/errs"
)

// Value is a non-owning typed view over a range of raw sample bytes,
// interpreted through a resolved field. Values decode on demand and stay
// valid only as long as the backing bytes and the format metadata are
// untouched.
//
// A value always decodes in the type the field declares. Native returns
// that representation; the generic As, AsSlice and AsString casts convert
// it to a caller-chosen type.
type Value struct {
	field      *Field
	data       []byte
	arrayIndex int
}

// NewValue creates a view of data through the given field. The field must
// be resolved before the value is decoded.
func NewValue(field *Field, data []byte) Value {
	return Value{field: field, data: data, arrayIndex: -1}
}

// Native decodes the value in its declared type. Scalars decode to the
// matching Go type (char as byte), arrays to slices, char arrays to a
// string terminated at the first NUL within the array length. When the
// view carries an array index, that single element decodes instead.
func (v Value) Native() (any, error) {
	f := v.field
	if f.offset < 0 {
		return nil, fmt.Errorf("%w: %s", errs.ErrFieldUnresolved, f.Name)
	}
	if v.arrayIndex >= 0 && f.ArrayLength < 0 {
		return nil, fmt.Errorf("%w: %s", errs.ErrNotArray, f.Name)
	}

	if f.ArrayLength == -1 || v.arrayIndex >= 0 {
		// Single element: either a scalar field, or one explicitly
		// selected array element.
		index := v.arrayIndex
		if index < 0 {
			index = 0
		}

		return v.decodeScalar(index)
	}

	return v.decodeArray()
}

func (v Value) decodeScalar(index int) (any, error) {
	f := v.field
	if f.Type == TypeNested {
		return nil, fmt.Errorf("%w: %s", errs.ErrNestedAccess, f.Name)
	}

	total := f.offset + index*f.baseSize
	if len(v.data)-total < f.baseSize {
		return nil, fmt.Errorf("%w: field %s", errs.ErrShortData, f.Name)
	}

	return decodeBasic(f.Type, v.data[total:]), nil
}

func (v Value) decodeArray() (any, error) {
	f := v.field
	if f.Type == TypeNested {
		return nil, fmt.Errorf("%w: %s", errs.ErrNestedAccess, f.Name)
	}

	count := f.ArrayLength
	if len(v.data)-f.offset < count*f.baseSize {
		return nil, fmt.Errorf("%w: field %s", errs.ErrShortData, f.Name)
	}
	b := v.data[f.offset:]

	switch f.Type {
	case TypeChar:
		// Char arrays are strings, terminated at the first NUL within
		// the array length.
		length := 0
		for length < count && b[length] != 0 {
			length++
		}

		return string(b[:length]), nil
	case TypeInt8:
		return decodeSlice[int8](f, b), nil
	case TypeUInt8:
		return decodeSlice[uint8](f, b), nil
	case TypeInt16:
		return decodeSlice[int16](f, b), nil
	case TypeUInt16:
		return decodeSlice[uint16](f, b), nil
	case TypeInt32:
		return decodeSlice[int32](f, b), nil
	case TypeUInt32:
		return decodeSlice[uint32](f, b), nil
	case TypeInt64:
		return decodeSlice[int64](f, b), nil
	case TypeUInt64:
		return decodeSlice[uint64](f, b), nil
	case TypeFloat:
		return decodeSlice[float32](f, b), nil
	case TypeDouble:
		return decodeSlice[float64](f, b), nil
	case TypeBool:
		return decodeSlice[bool](f, b), nil
	default:
		return nil, fmt.Errorf("%w: field %s", errs.ErrNestedAccess, f.Name)
	}
}

// decodeBasic decodes one element of a basic type from the front of b.
// The caller guarantees b holds at least the element size. All basic-type
// dispatch funnels through here.
func decodeBasic(t BasicType, b []byte) any {
	engine := endian.GetLittleEndianEngine()

	switch t {
	case TypeInt8:
		return int8(b[0])
	case TypeUInt8, TypeChar:
		return b[0]
	case TypeBool:
		return b[0] != 0
	case TypeInt16:
		return int16(engine.Uint16(b))
	case TypeUInt16:
		return engine.Uint16(b)
	case TypeInt32:
		return int32(engine.Uint32(b))
	case TypeUInt32:
		return engine.Uint32(b)
	case TypeInt64:
		return int64(engine.Uint64(b))
	case TypeUInt64:
		return engine.Uint64(b)
	case TypeFloat:
		return math.Float32frombits(engine.Uint32(b))
	case TypeDouble:
		return math.Float64frombits(engine.Uint64(b))
	default:
		return nil
	}
}

func decodeSlice[T any](f *Field, b []byte) []T {
	out := make([]T, f.ArrayLength)
	for i := range out {
		out[i] = decodeBasic(f.Type, b[i*f.baseSize:]).(T)
	}

	return out
}

// At descends into a nested field. The view's own field must be a
// resolved nested field; the returned value is rebased to the nested
// record (honoring the array index, if one is selected).
func (v Value) At(field *Field) (Value, error) {
	f := v.field
	if f.Type != TypeNested {
		return Value{}, fmt.Errorf("%w: %s", errs.ErrNotNested, f.Name)
	}
	if !f.Resolved() {
		return Value{}, fmt.Errorf("%w: %s", errs.ErrFieldUnresolved, f.Name)
	}

	offset := f.offset
	if v.arrayIndex >= 0 {
		offset += f.baseSize * v.arrayIndex
	}
	if offset > len(v.data) {
		return Value{}, fmt.Errorf("%w: field %s", errs.ErrShortData, f.Name)
	}

	return NewValue(field, v.data[offset:]), nil
}

// AtName descends into a nested field selected by name.
func (v Value) AtName(name string) (Value, error) {
	f := v.field
	if f.Type != TypeNested {
		return Value{}, fmt.Errorf("%w: %s", errs.ErrNotNested, f.Name)
	}
	if !f.Resolved() {
		return Value{}, fmt.Errorf("%w: %s", errs.ErrFieldUnresolved, f.Name)
	}

	field, err := f.nested.Field(name)
	if err != nil {
		return Value{}, err
	}

	return v.At(field)
}

// AtIndex selects a single element of an array field, returning a view
// that decodes just that element.
func (v Value) AtIndex(index int) (Value, error) {
	f := v.field
	if f.ArrayLength < 0 {
		return Value{}, fmt.Errorf("%w: %s", errs.ErrNotArray, f.Name)
	}
	if index < 0 || index >= f.ArrayLength {
		return Value{}, fmt.Errorf("%w: %s[%d]", errs.ErrIndexOutOfRange, f.Name, index)
	}

	return Value{field: f, data: v.data, arrayIndex: index}, nil
}

// Scalar constrains the numeric types a Value can cast to.
type Scalar interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~int |
		~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uint |
		~float32 | ~float64
}

// As casts the value to the scalar type T. Numeric natives convert as Go
// conversions do; a native array yields its first element; a native bool
// yields 0 or 1; native strings do not convert.
func As[T Scalar](v Value) (T, error) {
	var zero T

	native, err := v.Native()
	if err != nil {
		return zero, err
	}
	if _, isString := native.(string); isString {
		return zero, fmt.Errorf("%w: field %s", errs.ErrStringConversion, v.field.Name)
	}

	head, isVector, err := vectorHead(native)
	if err != nil {
		return zero, err
	}
	if isVector {
		native = head
	}

	return convertScalar[T](native)
}

// AsSlice casts the value to a slice of T, converting element-wise. A
// scalar native yields a one-element slice.
func AsSlice[T Scalar](v Value) ([]T, error) {
	native, err := v.Native()
	if err != nil {
		return nil, err
	}

	switch n := native.(type) {
	case string:
		return nil, fmt.Errorf("%w: field %s", errs.ErrStringConversion, v.field.Name)
	case []int8:
		return convertSlice[T](n), nil
	case []uint8:
		return convertSlice[T](n), nil
	case []int16:
		return convertSlice[T](n), nil
	case []uint16:
		return convertSlice[T](n), nil
	case []int32:
		return convertSlice[T](n), nil
	case []uint32:
		return convertSlice[T](n), nil
	case []int64:
		return convertSlice[T](n), nil
	case []uint64:
		return convertSlice[T](n), nil
	case []float32:
		return convertSlice[T](n), nil
	case []float64:
		return convertSlice[T](n), nil
	case []bool:
		out := make([]T, len(n))
		for i, set := range n {
			if set {
				out[i] = T(1)
			}
		}

		return out, nil
	}

	scalar, err := convertScalar[T](native)
	if err != nil {
		return nil, err
	}

	return []T{scalar}, nil
}

// AsString casts the value to a string. Only char-array natives convert;
// anything else is an error.
func AsString(v Value) (string, error) {
	native, err := v.Native()
	if err != nil {
		return "", err
	}

	s, isString := native.(string)
	if !isString {
		return "", fmt.Errorf("%w: field %s", errs.ErrStringConversion, v.field.Name)
	}

	return s, nil
}

// vectorHead returns the first element of a native vector, reporting
// whether the native was a vector at all.
func vectorHead(native any) (any, bool, error) {
	switch n := native.(type) {
	case []int8:
		return sliceHead(n)
	case []uint8:
		return sliceHead(n)
	case []int16:
		return sliceHead(n)
	case []uint16:
		return sliceHead(n)
	case []int32:
		return sliceHead(n)
	case []uint32:
		return sliceHead(n)
	case []int64:
		return sliceHead(n)
	case []uint64:
		return sliceHead(n)
	case []float32:
		return sliceHead(n)
	case []float64:
		return sliceHead(n)
	case []bool:
		return sliceHead(n)
	default:
		return nil, false, nil
	}
}

func sliceHead[E any](s []E) (any, bool, error) {
	if len(s) == 0 {
		return nil, true, errs.ErrEmptyVector
	}

	return s[0], true, nil
}

func convertSlice[T Scalar, E Scalar](src []E) []T {
	out := make([]T, len(src))
	for i, e := range src {
		out[i] = T(e)
	}

	return out
}

func convertScalar[T Scalar](native any) (T, error) {
	switch n := native.(type) {
	case int8:
		return T(n), nil
	case uint8:
		return T(n), nil
	case int16:
		return T(n), nil
	case uint16:
		return T(n), nil
	case int32:
		return T(n), nil
	case uint32:
		return T(n), nil
	case int64:
		return T(n), nil
	case uint64:
		return T(n), nil
	case float32:
		return T(n), nil
	case float64:
		return T(n), nil
	case bool:
		if n {
			return T(1), nil
		}

		return T(0), nil
	default:
		var zero T
		return zero, fmt.Errorf("cannot convert native type %T", native)
	}
}
