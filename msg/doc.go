// Package msg implements the typed ULog message objects and the
// format-resolution engine behind them.
//
// Each message kind (info, format, parameter, parameter default,
// add-logged, logging, data, dropout, sync) has a Parse constructor that
// decodes the message body against the little-endian wire layout, and a
// Serialize method that emits the framed message to a byte-sink callback.
// The file header has no Parse constructor: the reader decodes its magic
// and timestamp itself, and ParseFlagBits decodes the flag-bits body.
// FileHeader.Serialize emits the header together with its flag bits.
//
// Formats describe the layout of data samples. A Format is a named,
// ordered list of Fields; a Field is either of a basic type or references
// another Format by name (a nested field). Formats arrive before the
// formats they reference are necessarily known, so they are parsed
// unresolved and resolved in a single pass once the log header is
// complete, which assigns each field its byte offset and binds nested
// fields to their target Format.
//
// Values are transient, non-owning views that decode single fields out of
// a raw sample against its resolved Format. They stay valid only as long
// as the backing bytes and format metadata are untouched.
package msg
