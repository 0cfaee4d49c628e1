package reader

import "github.com/arloliu/ulog/msg"

// Handler receives the decoded messages of a ULog stream. The Reader
// calls one method per parsed message, HeaderComplete once when the
// definition section ends, and Error for every stream error.
//
// A method returning a non-nil error rejects the message: the reader
// treats a recoverable error as stream corruption and resynchronizes,
// while errors classified fatal by errs.IsFatal stop parsing for good.
type Handler interface {
	// FileHeader delivers the file header, once, with flag bits when the
	// log carries them.
	FileHeader(header msg.FileHeader) error
	// MessageInfo delivers info and info-multi messages.
	MessageInfo(info msg.Info) error
	// MessageFormat delivers a message format definition.
	MessageFormat(format *msg.Format) error
	// Parameter delivers a parameter message.
	Parameter(parameter msg.Parameter) error
	// ParameterDefault delivers a parameter default message.
	ParameterDefault(parameterDefault msg.ParameterDefault) error
	// AddLoggedMessage delivers a subscription announcement.
	AddLoggedMessage(addLogged msg.AddLogged) error
	// Logging delivers a logged text message.
	Logging(logging msg.Logging) error
	// Data delivers a subscription sample.
	Data(data msg.Data) error
	// Dropout delivers a dropout marker.
	Dropout(dropout msg.Dropout) error
	// Sync delivers a sync marker.
	Sync(sync msg.Sync) error
	// HeaderComplete fires once, when the first data-phase message is
	// seen. Format resolution belongs here.
	HeaderComplete() error
	// Error reports a stream error. Recoverable errors leave the reader
	// parsing; fatal ones park it in the invalid state.
	Error(message string, recoverable bool)
}

// BaseHandler is a no-op Handler for embedding, so handlers only spell
// out the message kinds they care about. Passing it as-is is legal;
// errors then go unnoticed.
type BaseHandler struct{}

func (BaseHandler) FileHeader(msg.FileHeader) error             { return nil }
func (BaseHandler) MessageInfo(msg.Info) error                  { return nil }
func (BaseHandler) MessageFormat(*msg.Format) error             { return nil }
func (BaseHandler) Parameter(msg.Parameter) error               { return nil }
func (BaseHandler) ParameterDefault(msg.ParameterDefault) error { return nil }
func (BaseHandler) AddLoggedMessage(msg.AddLogged) error        { return nil }
func (BaseHandler) Logging(msg.Logging) error                   { return nil }
func (BaseHandler) Data(msg.Data) error                         { return nil }
func (BaseHandler) Dropout(msg.Dropout) error                   { return nil }
func (BaseHandler) Sync(msg.Sync) error                         { return nil }
func (BaseHandler) HeaderComplete() error                       { return nil }
func (BaseHandler) Error(string, bool)                          {}
