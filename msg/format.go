package msg

import (
	"bytes"
	"fmt"

	"github.com/elliotchance/orderedmap/v3"

	"github.com/arloliu/ulog/errs"
	"github.com/arloliu/ulog/frame"
)

// Format is a named message format: an insertion-ordered sequence of
// fields with a by-name index.
//
// Formats are referenced from subscriptions and from nested fields of
// other formats. They are parsed unresolved and resolved once the log
// header is complete; see FormatRegistry.Resolve.
type Format struct {
	name   string
	fields *orderedmap.OrderedMap[string, *Field]
}

// NewFormat creates a format with the given fields, in order. Fields with
// a name already present are dropped, keeping names unique.
func NewFormat(name string, fields []*Field) *Format {
	f := &Format{
		name:   name,
		fields: orderedmap.NewOrderedMap[string, *Field](),
	}
	for _, field := range fields {
		if _, exists := f.fields.Get(field.Name); !exists {
			f.fields.Set(field.Name, field)
		}
	}

	return f
}

// ParseFormat decodes a format definition body of the form
// "<name>:<field0>;<field1>;...;".
func ParseFormat(body []byte) (*Format, error) {
	colon := bytes.IndexByte(body, ':')
	if colon < 0 {
		return nil, fmt.Errorf("%w: no colon", errs.ErrInvalidFormatString)
	}

	f := &Format{
		name:   string(body[:colon]),
		fields: orderedmap.NewOrderedMap[string, *Field](),
	}

	rest := body[colon+1:]
	for len(rest) > 0 {
		semicolon := bytes.IndexByte(rest, ';')
		if semicolon < 0 {
			return nil, fmt.Errorf("%w: missing semicolon", errs.ErrInvalidFormatString)
		}

		field, err := ParseField(rest[:semicolon])
		if err != nil {
			return nil, err
		}
		if _, exists := f.fields.Get(field.Name); exists {
			return nil, fmt.Errorf("%w: %s.%s", errs.ErrDuplicateFieldName, f.name, field.Name)
		}
		f.fields.Set(field.Name, field)

		rest = rest[semicolon+1:]
	}

	return f, nil
}

// Name returns the format name.
func (f *Format) Name() string {
	return f.name
}

// Fields returns the fields in declaration order.
func (f *Format) Fields() []*Field {
	fields := make([]*Field, 0, f.fields.Len())
	for _, field := range f.fields.AllFromFront() {
		fields = append(fields, field)
	}

	return fields
}

// FieldNames returns the field names in declaration order.
func (f *Format) FieldNames() []string {
	names := make([]string, 0, f.fields.Len())
	for name := range f.fields.AllFromFront() {
		names = append(names, name)
	}

	return names
}

// Field looks up a field by name.
func (f *Format) Field(name string) (*Field, error) {
	field, ok := f.fields.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", errs.ErrFieldNotFound, f.name, name)
	}

	return field, nil
}

// HasField reports whether the format declares a field with the given
// name and that field is resolved.
func (f *Format) HasField(name string) bool {
	field, ok := f.fields.Get(name)
	return ok && field.Resolved()
}

// SizeBytes returns the total sample size of the format in bytes, the sum
// of all field sizes. The result is only meaningful once resolved.
func (f *Format) SizeBytes() int {
	size := 0
	for _, field := range f.fields.AllFromFront() {
		size += field.SizeBytes()
	}

	return size
}

// Equal reports whether two formats have the same name and the same
// fields in the same order. Resolution state is not compared.
func (f *Format) Equal(other *Format) bool {
	if f.name != other.name || f.fields.Len() != other.fields.Len() {
		return false
	}

	otherFields := other.Fields()
	for i, field := range f.Fields() {
		if !field.Equal(otherFields[i]) {
			return false
		}
	}

	return true
}

// Resolve resolves all fields of the format against the registry,
// assigning offsets in declaration order and binding nested formats
// recursively. Resolving an already-resolved format is a no-op.
func (f *Format) Resolve(registry *FormatRegistry) error {
	return f.resolve(registry, make(map[string]struct{}))
}

func (f *Format) resolve(registry *FormatRegistry, visiting map[string]struct{}) error {
	// ULog forbids nested cycles; a cycle here means the log is invalid.
	if _, cycling := visiting[f.name]; cycling {
		return fmt.Errorf("%w: %s", errs.ErrFormatCycle, f.name)
	}
	visiting[f.name] = struct{}{}
	defer delete(visiting, f.name)

	offset := 0
	for _, field := range f.fields.AllFromFront() {
		if !field.Resolved() {
			if err := field.resolve(registry, offset, visiting); err != nil {
				return err
			}
		}
		offset += field.SizeBytes()
	}

	return nil
}

func (f *Format) encode() string {
	s := f.name + ":"
	for _, field := range f.fields.AllFromFront() {
		s += field.Encode() + ";"
	}

	return s
}

// Serialize emits the format definition message to w.
func (f *Format) Serialize(w WriteFunc) error {
	return serializeMessage(w, frame.TypeFormat, func(buf []byte) []byte {
		return append(buf, f.encode()...)
	})
}

// FormatRegistry is the insertion-ordered collection of all formats seen
// in a log, keyed by name.
type FormatRegistry struct {
	formats *orderedmap.OrderedMap[string, *Format]
}

// NewFormatRegistry creates an empty format registry.
func NewFormatRegistry() *FormatRegistry {
	return &FormatRegistry{
		formats: orderedmap.NewOrderedMap[string, *Format](),
	}
}

// Put inserts a format. Inserting a second format with the same name is an
// error.
func (r *FormatRegistry) Put(f *Format) error {
	if _, exists := r.formats.Get(f.name); exists {
		return fmt.Errorf("%w: %s", errs.ErrDuplicateFormat, f.name)
	}
	r.formats.Set(f.name, f)

	return nil
}

// Get looks up a format by name.
func (r *FormatRegistry) Get(name string) (*Format, bool) {
	return r.formats.Get(name)
}

// Len returns the number of registered formats.
func (r *FormatRegistry) Len() int {
	return r.formats.Len()
}

// Names returns the format names in insertion order.
func (r *FormatRegistry) Names() []string {
	names := make([]string, 0, r.formats.Len())
	for name := range r.formats.AllFromFront() {
		names = append(names, name)
	}

	return names
}

// Formats returns the formats in insertion order.
func (r *FormatRegistry) Formats() []*Format {
	formats := make([]*Format, 0, r.formats.Len())
	for _, f := range r.formats.AllFromFront() {
		formats = append(formats, f)
	}

	return formats
}

// Resolve resolves every registered format. It runs once when the log
// header is complete; calling it again is a no-op for already-resolved
// fields and recomputes identical offsets for the rest.
func (r *FormatRegistry) Resolve() error {
	for _, f := range r.formats.AllFromFront() {
		if err := f.Resolve(r); err != nil {
			return err
		}
	}

	return nil
}
