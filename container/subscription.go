package container

import (
	"fmt"
	"iter"

	"github.com/arloliu/ulog/errs"
	"github.com/arloliu/ulog/msg"
)

// Subscription binds a wire message ID and a (name, multi ID) pair to one
// message format, plus the samples recorded for it. Samples accumulate
// append-only while the log is parsed.
type Subscription struct {
	addLogged msg.AddLogged
	format    *msg.Format
	samples   []msg.Data
}

// AddLogged returns the announcement this subscription was created from.
func (s *Subscription) AddLogged() msg.AddLogged {
	return s.addLogged
}

// MessageName returns the subscribed format name.
func (s *Subscription) MessageName() string {
	return s.addLogged.MessageName
}

// MultiID returns the instance index of the subscription.
func (s *Subscription) MultiID() uint8 {
	return s.addLogged.MultiID
}

// MsgID returns the wire message ID of the subscription.
func (s *Subscription) MsgID() uint16 {
	return s.addLogged.MsgID
}

// Format returns the bound message format.
func (s *Subscription) Format() *msg.Format {
	return s.format
}

// Field looks up a field of the bound format by name.
func (s *Subscription) Field(name string) (*msg.Field, error) {
	return s.format.Field(name)
}

// FieldNames returns the field names of the bound format, in order.
func (s *Subscription) FieldNames() []string {
	return s.format.FieldNames()
}

// RawSamples returns the recorded samples, in order.
func (s *Subscription) RawSamples() []msg.Data {
	return s.samples
}

// Len returns the number of recorded samples.
func (s *Subscription) Len() int {
	return len(s.samples)
}

// At returns a typed view of the i-th sample.
func (s *Subscription) At(i int) (TypedSample, error) {
	if i < 0 || i >= len(s.samples) {
		return TypedSample{}, fmt.Errorf("%w: sample %d", errs.ErrIndexOutOfRange, i)
	}

	return TypedSample{data: &s.samples[i], format: s.format}, nil
}

// Samples iterates the samples as typed views, in order.
//
// The views borrow the subscription's storage: they stay valid only while
// no further samples are appended.
func (s *Subscription) Samples() iter.Seq[TypedSample] {
	return func(yield func(TypedSample) bool) {
		for i := range s.samples {
			if !yield(TypedSample{data: &s.samples[i], format: s.format}) {
				return
			}
		}
	}
}

// TypedSample is a short-lived view of one sample through its
// subscription's message format. It borrows the underlying sample and
// format; it stays valid only while both are untouched.
type TypedSample struct {
	data   *msg.Data
	format *msg.Format
}

// Name returns the name of the sample's message format.
func (t TypedSample) Name() string {
	return t.format.Name()
}

// Format returns the sample's message format.
func (t TypedSample) Format() *msg.Format {
	return t.format
}

// RawData returns the raw sample payload.
func (t TypedSample) RawData() []byte {
	return t.data.Payload
}

// HasField reports whether the format declares a resolved field of that
// name.
func (t TypedSample) HasField(name string) bool {
	return t.format.HasField(name)
}

// At returns the value of a field of this sample. The field must be
// resolved.
func (t TypedSample) At(field *msg.Field) (msg.Value, error) {
	if !field.Resolved() {
		return msg.Value{}, fmt.Errorf("%w: %s", errs.ErrFieldUnresolved, field.Name)
	}

	return msg.NewValue(field, t.data.Payload), nil
}

// AtName returns the value of the named field of this sample.
func (t TypedSample) AtName(name string) (msg.Value, error) {
	field, err := t.format.Field(name)
	if err != nil {
		return msg.Value{}, err
	}

	return t.At(field)
}
