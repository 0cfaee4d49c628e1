// Package container provides the DataContainer: a reader handler that
// indexes a parsed ULog stream into a queryable, typed view.
//
// The container keeps the format registry, the subscription table (keyed
// both by wire message ID and by name plus multi ID), and the info,
// parameter, logging and dropout stores. When the log header completes it
// runs the format-resolution pass, after which samples and values decode
// through their resolved formats.
package container

import (
	"fmt"
	"sort"

	"github.com/elliotchance/orderedmap/v3"

	"github.com/arloliu/ulog/errs"
	"github.com/arloliu/ulog/internal/hash"
	"github.com/arloliu/ulog/internal/options"
	"github.com/arloliu/ulog/msg"
)

// StorageMode selects how much of the log the container retains.
type StorageMode uint8

const (
	// StorageFullLog retains everything, including data samples.
	StorageFullLog StorageMode = iota
	// StorageHeader retains formats, subscriptions and the definition
	// section, and discards data-phase traffic: samples, logging,
	// dropouts, and info or parameter updates arriving after the header.
	StorageHeader
)

// Container indexes the messages of one ULog stream. It implements the
// reader Handler interface; attach it to a reader and feed the stream.
//
// A container is single-threaded, like the reader that fills it.
type Container struct {
	mode StorageMode

	headerComplete bool
	hadFatalError  bool
	parsingErrors  []string

	fileHeader    msg.FileHeader
	formats       *msg.FormatRegistry
	info          *orderedmap.OrderedMap[string, msg.Info]
	infoMulti     *orderedmap.OrderedMap[string, [][]msg.Info]
	initialParams *orderedmap.OrderedMap[string, msg.Parameter]
	defaultParams *orderedmap.OrderedMap[string, msg.ParameterDefault]
	changedParams []msg.Parameter
	logging       []msg.Logging
	dropouts      []msg.Dropout

	subsByMsgID     map[uint16]*Subscription
	subsByNameMulti map[uint64]*Subscription
	subs            []*Subscription
}

// Option configures a Container.
type Option = options.Option[*Container]

// WithStorageMode selects the storage mode. The default is StorageFullLog.
func WithStorageMode(mode StorageMode) Option {
	return options.NoError(func(c *Container) {
		c.mode = mode
	})
}

// New creates an empty container. By default the full log is retained;
// pass WithStorageMode(StorageHeader) to keep only the definition section.
func New(opts ...Option) *Container {
	c := &Container{
		mode:            StorageFullLog,
		formats:         msg.NewFormatRegistry(),
		info:            orderedmap.NewOrderedMap[string, msg.Info](),
		infoMulti:       orderedmap.NewOrderedMap[string, [][]msg.Info](),
		initialParams:   orderedmap.NewOrderedMap[string, msg.Parameter](),
		defaultParams:   orderedmap.NewOrderedMap[string, msg.ParameterDefault](),
		subsByMsgID:     make(map[uint16]*Subscription),
		subsByNameMulti: make(map[uint64]*Subscription),
	}
	// Mode options cannot fail.
	_ = options.Apply(c, opts...)

	return c
}

// FileHeader stores the file header.
func (c *Container) FileHeader(header msg.FileHeader) error {
	c.fileHeader = header
	return nil
}

// MessageInfo stores an info message. Multi messages are stitched into
// chunk lists per key: a non-continued message starts a new chunk, a
// continued one extends the latest.
func (c *Container) MessageInfo(info msg.Info) error {
	if c.headerComplete && c.mode == StorageHeader {
		return nil
	}
	if c.headerComplete {
		if err := info.Field.Resolve(c.formats, 0); err != nil {
			return err
		}
	}

	if info.IsMulti {
		name := info.Field.Name
		chunks, _ := c.infoMulti.Get(name)
		if info.Continued {
			if len(chunks) == 0 {
				return fmt.Errorf("%w: %s", errs.ErrInfoNotContinued, name)
			}
			chunks[len(chunks)-1] = append(chunks[len(chunks)-1], info)
		} else {
			chunks = append(chunks, []msg.Info{info})
		}
		c.infoMulti.Set(name, chunks)

		return nil
	}

	if _, exists := c.info.Get(info.Field.Name); !exists {
		c.info.Set(info.Field.Name, info)
	}

	return nil
}

// MessageFormat registers a format definition. Duplicate names are
// rejected.
func (c *Container) MessageFormat(format *msg.Format) error {
	return c.formats.Put(format)
}

// Parameter stores a parameter: into the initial set before the header
// completes, onto the changed list afterwards.
func (c *Container) Parameter(parameter msg.Parameter) error {
	if c.headerComplete && c.mode == StorageHeader {
		return nil
	}

	if c.headerComplete {
		if err := parameter.Field.Resolve(c.formats, 0); err != nil {
			return err
		}
		c.changedParams = append(c.changedParams, parameter)

		return nil
	}

	if _, exists := c.initialParams.Get(parameter.Field.Name); !exists {
		c.initialParams.Set(parameter.Field.Name, parameter)
	}

	return nil
}

// ParameterDefault stores a parameter default by name.
func (c *Container) ParameterDefault(parameterDefault msg.ParameterDefault) error {
	if c.headerComplete {
		if err := parameterDefault.Field.Resolve(c.formats, 0); err != nil {
			return err
		}
	}

	if _, exists := c.defaultParams.Get(parameterDefault.Field.Name); !exists {
		c.defaultParams.Set(parameterDefault.Field.Name, parameterDefault)
	}

	return nil
}

// AddLoggedMessage allocates a subscription for the announced message ID.
// The referenced format must already be registered, and the message ID
// must be new; the subscription is then reachable both by message ID and
// by (name, multi ID).
func (c *Container) AddLoggedMessage(addLogged msg.AddLogged) error {
	if _, exists := c.subsByMsgID[addLogged.MsgID]; exists {
		return fmt.Errorf("%w: %d", errs.ErrDuplicateMsgID, addLogged.MsgID)
	}

	format, ok := c.formats.Get(addLogged.MessageName)
	if !ok {
		return fmt.Errorf("%w: subscription %s", errs.ErrSubscriptionFormatMissing, addLogged.MessageName)
	}

	sub := &Subscription{
		addLogged: addLogged,
		format:    format,
	}
	c.subsByMsgID[addLogged.MsgID] = sub
	c.subsByNameMulti[hash.SubscriptionID(addLogged.MessageName, addLogged.MultiID)] = sub
	c.subs = append(c.subs, sub)

	return nil
}

// Logging appends a logged text message.
func (c *Container) Logging(logging msg.Logging) error {
	if c.headerComplete && c.mode == StorageHeader {
		return nil
	}
	c.logging = append(c.logging, logging)

	return nil
}

// Data appends a sample to its subscription.
func (c *Container) Data(data msg.Data) error {
	if c.mode == StorageHeader {
		return nil
	}

	sub, ok := c.subsByMsgID[data.MsgID]
	if !ok {
		return fmt.Errorf("%w: msg id %d", errs.ErrUnknownSubscription, data.MsgID)
	}
	sub.samples = append(sub.samples, data)

	return nil
}

// Dropout appends a dropout marker.
func (c *Container) Dropout(dropout msg.Dropout) error {
	if c.headerComplete && c.mode == StorageHeader {
		return nil
	}
	c.dropouts = append(c.dropouts, dropout)

	return nil
}

// Sync ignores sync markers; they carry no payload.
func (c *Container) Sync(msg.Sync) error {
	return nil
}

// HeaderComplete runs the format-resolution pass: every registered format
// resolves recursively, then every stored info and parameter field
// resolves against the registry, making typed access usable.
func (c *Container) HeaderComplete() error {
	c.headerComplete = true

	if err := c.formats.Resolve(); err != nil {
		return err
	}

	for _, info := range c.info.AllFromFront() {
		if err := info.Field.Resolve(c.formats, 0); err != nil {
			return err
		}
	}
	for _, chunks := range c.infoMulti.AllFromFront() {
		for _, chunk := range chunks {
			for _, info := range chunk {
				if err := info.Field.Resolve(c.formats, 0); err != nil {
					return err
				}
			}
		}
	}
	for _, parameter := range c.initialParams.AllFromFront() {
		if err := parameter.Field.Resolve(c.formats, 0); err != nil {
			return err
		}
	}
	for _, parameterDefault := range c.defaultParams.AllFromFront() {
		if err := parameterDefault.Field.Resolve(c.formats, 0); err != nil {
			return err
		}
	}
	for _, parameter := range c.changedParams {
		if err := parameter.Field.Resolve(c.formats, 0); err != nil {
			return err
		}
	}

	return nil
}

// Error records a stream error reported by the reader.
func (c *Container) Error(message string, recoverable bool) {
	if !recoverable {
		c.hadFatalError = true
	}
	c.parsingErrors = append(c.parsingErrors, message)
}

// IsHeaderComplete reports whether the definition section has ended.
func (c *Container) IsHeaderComplete() bool {
	return c.headerComplete
}

// HadFatalError reports whether a fatal stream error was recorded.
func (c *Container) HadFatalError() bool {
	return c.hadFatalError
}

// ParsingErrors returns all recorded error messages, in order.
func (c *Container) ParsingErrors() []string {
	return c.parsingErrors
}

// GetFileHeader returns the stored file header.
func (c *Container) GetFileHeader() msg.FileHeader {
	return c.fileHeader
}

// Formats returns the format registry.
func (c *Container) Formats() *msg.FormatRegistry {
	return c.formats
}

// Info looks up a scalar info message by key.
func (c *Container) Info(name string) (msg.Info, bool) {
	return c.info.Get(name)
}

// InfoNames returns the scalar info keys in arrival order.
func (c *Container) InfoNames() []string {
	names := make([]string, 0, c.info.Len())
	for name := range c.info.AllFromFront() {
		names = append(names, name)
	}

	return names
}

// InfoMulti returns the chunk lists of a multi info key. Each chunk is
// the ordered list of messages that make up one logical value.
func (c *Container) InfoMulti(name string) ([][]msg.Info, bool) {
	return c.infoMulti.Get(name)
}

// InfoMultiNames returns the multi info keys in arrival order.
func (c *Container) InfoMultiNames() []string {
	names := make([]string, 0, c.infoMulti.Len())
	for name := range c.infoMulti.AllFromFront() {
		names = append(names, name)
	}

	return names
}

// InitialParameter looks up a parameter recorded before the header
// completed.
func (c *Container) InitialParameter(name string) (msg.Parameter, bool) {
	return c.initialParams.Get(name)
}

// InitialParameterNames returns the initial parameter names in arrival
// order.
func (c *Container) InitialParameterNames() []string {
	names := make([]string, 0, c.initialParams.Len())
	for name := range c.initialParams.AllFromFront() {
		names = append(names, name)
	}

	return names
}

// DefaultParameter looks up a parameter default by name.
func (c *Container) DefaultParameter(name string) (msg.ParameterDefault, bool) {
	return c.defaultParams.Get(name)
}

// ChangedParameters returns parameter changes recorded after the header
// completed, in order.
func (c *Container) ChangedParameters() []msg.Parameter {
	return c.changedParams
}

// LogMessages returns the logged text messages, in order.
func (c *Container) LogMessages() []msg.Logging {
	return c.logging
}

// DropoutMessages returns the dropout markers, in order.
func (c *Container) DropoutMessages() []msg.Dropout {
	return c.dropouts
}

// Subscription looks up a subscription by message name and multi ID.
func (c *Container) Subscription(name string, multiID uint8) (*Subscription, error) {
	sub, ok := c.subsByNameMulti[hash.SubscriptionID(name, multiID)]
	if !ok {
		return nil, fmt.Errorf("%w: %s (multi %d)", errs.ErrSubscriptionNotFound, name, multiID)
	}

	return sub, nil
}

// SubscriptionByMsgID looks up a subscription by wire message ID.
func (c *Container) SubscriptionByMsgID(msgID uint16) (*Subscription, error) {
	sub, ok := c.subsByMsgID[msgID]
	if !ok {
		return nil, fmt.Errorf("%w: msg id %d", errs.ErrSubscriptionNotFound, msgID)
	}

	return sub, nil
}

// Subscriptions returns all subscriptions in announcement order.
func (c *Container) Subscriptions() []*Subscription {
	return c.subs
}

// SubscriptionNames returns the sorted, distinct names of all
// subscriptions.
func (c *Container) SubscriptionNames() []string {
	seen := make(map[string]struct{}, len(c.subs))
	names := make([]string, 0, len(c.subs))
	for _, sub := range c.subs {
		if _, ok := seen[sub.addLogged.MessageName]; ok {
			continue
		}
		seen[sub.addLogged.MessageName] = struct{}{}
		names = append(names, sub.addLogged.MessageName)
	}
	sort.Strings(names)

	return names
}
