// Package ulog reads and writes the ULog binary flight-telemetry log
// format used by PX4-based autopilot systems.
//
// A ULog file is a header followed by an append-only sequence of framed
// messages: format definitions, subscriptions, data samples, parameters,
// text logs, dropouts and sync markers. This package recovers a typed,
// queryable view of the recorded time series from a byte stream, and
// produces streams from recorded values.
//
// # Reading
//
// The reader is push-based: the caller feeds byte chunks of any size, and
// every decoded message is delivered to a handler immediately. The
// Container handler indexes the whole log:
//
//	dc := ulog.NewContainer()
//	r, _ := ulog.NewReader(dc)
//	for chunk := range chunks {
//	    r.ReadChunk(chunk)
//	}
//
//	sub, _ := dc.Subscription("sensor_combined", 0)
//	for sample := range sub.Samples() {
//	    v, _ := sample.AtName("timestamp")
//	    ts, _ := msg.As[uint64](v)
//	    // ...
//	}
//
// Corrupted regions are reported through the handler and skipped; parsing
// resumes at the next plausible message boundary.
//
// # Writing
//
// LogWriter wraps the low-level Writer with integrity checks and is the
// recommended way to produce logs:
//
//	w, _ := ulog.NewLogWriter(sink, startTimeUS)
//	w.WriteInfoString("sys_name", "my-logger")
//	w.WriteFormat("my_data", []*msg.Field{
//	    msg.NewField("uint64_t", "timestamp", -1),
//	    msg.NewField("float", "value", -1),
//	})
//	w.HeaderComplete()
//	id, _ := w.AddSubscription("my_data", 0)
//	w.WriteData(id, sampleBytes)
//
// The sink is any callback accepting a byte buffer; the package performs
// no I/O of its own.
//
// # Package Structure
//
// This package provides convenient top-level wrappers around the working
// packages: reader (streaming parser), container (log indexing), writer
// (serialization) and msg (message objects and typed value access). Use
// those packages directly for fine-grained control.
package ulog

import (
	"github.com/arloliu/ulog/container"
	"github.com/arloliu/ulog/internal/hash"
	"github.com/arloliu/ulog/msg"
	"github.com/arloliu/ulog/reader"
	"github.com/arloliu/ulog/writer"
)

// NewReader creates a streaming parser delivering decoded messages to
// handler.
//
// Available options:
//   - reader.WithBufferCapacity(n)
//
// The reader requires a little-endian host; on a big-endian host the
// handler receives a fatal error and all input is ignored.
func NewReader(handler reader.Handler, opts ...reader.Option) (*reader.Reader, error) {
	return reader.New(handler, opts...)
}

// NewContainer creates a container that indexes a parsed log. Attach it
// to a reader as its handler.
//
// Available options:
//   - container.WithStorageMode(container.StorageHeader) to keep only the
//     definition section and drop data-phase traffic.
func NewContainer(opts ...container.Option) *container.Container {
	return container.New(opts...)
}

// NewHeaderContainer creates a container that retains only the definition
// section: formats, subscriptions, infos and parameters, without data
// samples.
func NewHeaderContainer() *container.Container {
	return container.New(container.WithStorageMode(container.StorageHeader))
}

// NewWriter creates the low-level serializer emitting to sink. It exposes
// the full message set without integrity checks; prefer NewLogWriter for
// plain data logging.
func NewWriter(sink msg.WriteFunc) (*writer.Writer, error) {
	return writer.New(sink)
}

// NewLogWriter creates the integrity-checking writer and emits the file
// header with the given start timestamp in microseconds.
func NewLogWriter(sink msg.WriteFunc, timestampUS uint64) (*writer.LogWriter, error) {
	return writer.NewLogWriter(sink, timestampUS)
}

// SubscriptionID computes the 64-bit identifier of a (message name,
// multi ID) pair, the key the container indexes subscriptions under.
func SubscriptionID(name string, multiID uint8) uint64 {
	return hash.SubscriptionID(name, multiID)
}
