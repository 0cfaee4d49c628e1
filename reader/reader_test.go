package reader_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/ulog/container"
	"github.com/arloliu/ulog/frame"
	"github.com/arloliu/ulog/msg"
	"github.com/arloliu/ulog/reader"
	"github.com/arloliu/ulog/writer"
)

// Both the container and the raw writer can act as stream handlers.
var (
	_ reader.Handler = (*container.Container)(nil)
	_ reader.Handler = (*writer.Writer)(nil)
	_ reader.Handler = reader.BaseHandler{}
)

type errorRecorder struct {
	reader.BaseHandler
	errors      []string
	recoverable []bool
}

func (e *errorRecorder) Error(message string, recoverable bool) {
	e.errors = append(e.errors, message)
	e.recoverable = append(e.recoverable, recoverable)
}

// buildBasicLog serializes a small complete log:
// header, info, two formats, logging, add-logged, two data samples.
func buildBasicLog(t *testing.T) []byte {
	t.Helper()

	var buf []byte
	w, err := writer.New(func(p []byte) { buf = append(buf, p...) })
	require.NoError(t, err)

	header := msg.NewFileHeader(0)
	require.NoError(t, w.FileHeader(header))
	require.NoError(t, w.MessageInfo(msg.NewInfoString("info", "test_value")))
	require.NoError(t, w.MessageFormat(msg.NewFormat("message_name", []*msg.Field{
		msg.NewField("uint64_t", "timestamp", -1),
		msg.NewField("float", "float_value", -1),
	})))
	require.NoError(t, w.MessageFormat(msg.NewFormat("other_message", []*msg.Field{
		msg.NewField("uint64_t", "timestamp", -1),
		msg.NewField("uint32_t", "array", 3),
		msg.NewField("uint16_t", "x", -1),
	})))
	require.NoError(t, w.HeaderComplete())
	require.NoError(t, w.Logging(msg.NewLogging(msg.LevelWarning, "logging message", 3834732)))
	require.NoError(t, w.AddLoggedMessage(msg.NewAddLogged(0, 1, "other_message")))

	payload := make([]byte, 22)
	payload[0] = 32
	payload[20] = 49
	require.NoError(t, w.Data(msg.NewData(1, payload)))
	require.NoError(t, w.Data(msg.NewData(1, payload)))

	return buf
}

func verifyBasicLog(t *testing.T, dc *container.Container) {
	t.Helper()

	require.Empty(t, dc.ParsingErrors())
	require.False(t, dc.HadFatalError())
	require.True(t, dc.IsHeaderComplete())

	format, ok := dc.Formats().Get("other_message")
	require.True(t, ok)
	require.Equal(t, []string{"timestamp", "array", "x"}, format.FieldNames())
	require.Equal(t, 22, format.SizeBytes())

	info, ok := dc.Info("info")
	require.True(t, ok)
	value, err := msg.AsString(info.Value())
	require.NoError(t, err)
	require.Equal(t, "test_value", value)

	require.Len(t, dc.LogMessages(), 1)
	require.Equal(t, "logging message", dc.LogMessages()[0].Message)
	require.Equal(t, msg.LevelWarning, dc.LogMessages()[0].Level)

	sub, err := dc.SubscriptionByMsgID(1)
	require.NoError(t, err)
	require.Equal(t, 2, sub.Len())

	byName, err := dc.Subscription("other_message", 0)
	require.NoError(t, err)
	require.Same(t, sub, byName)

	for sample := range sub.Samples() {
		ts, err := sample.AtName("timestamp")
		require.NoError(t, err)
		tsValue, err := msg.As[int](ts)
		require.NoError(t, err)
		require.Equal(t, 32, tsValue)

		x, err := sample.AtName("x")
		require.NoError(t, err)
		xValue, err := msg.As[int](x)
		require.NoError(t, err)
		require.Equal(t, 49, xValue)
	}
}

func TestReaderBasicLog(t *testing.T) {
	data := buildBasicLog(t)

	dc := container.New()
	r, err := reader.New(dc)
	require.NoError(t, err)

	r.ReadChunk(data)
	verifyBasicLog(t, dc)
	require.Equal(t, len(data), r.TotalRead())
}

func TestReaderChunkInvariance(t *testing.T) {
	data := buildBasicLog(t)

	// The initial magic and flag bits must fit the first chunk; everything
	// after may arrive in any chunking, including one byte at a time.
	firstChunk := 100
	for _, chunkSize := range []int{1, 5, 7, 64, 1024} {
		dc := container.New()
		r, err := reader.New(dc)
		require.NoError(t, err)

		r.ReadChunk(data[:firstChunk])
		for offset := firstChunk; offset < len(data); offset += chunkSize {
			end := min(offset+chunkSize, len(data))
			r.ReadChunk(data[offset:end])
		}

		verifyBasicLog(t, dc)
	}
}

func TestReaderTruncatedMagic(t *testing.T) {
	rec := &errorRecorder{}
	r, err := reader.New(rec)
	require.NoError(t, err)

	r.ReadChunk(make([]byte, 10))

	require.Len(t, rec.errors, 1)
	require.False(t, rec.recoverable[0])

	// All further input is ignored.
	r.ReadChunk(buildBasicLog(t))
	require.Len(t, rec.errors, 1)
}

func TestReaderInvalidMagic(t *testing.T) {
	data := buildBasicLog(t)
	data[0] = 'X'

	dc := container.New()
	r, err := reader.New(dc)
	require.NoError(t, err)
	r.ReadChunk(data)

	require.True(t, dc.HadFatalError())
	require.False(t, dc.IsHeaderComplete())
}

func TestReaderMissingFlagBits(t *testing.T) {
	// The flag-bits message is optional; a log may go straight to the
	// definition section.
	var buf []byte
	w, err := writer.New(func(p []byte) { buf = append(buf, p...) })
	require.NoError(t, err)

	header := msg.FileHeader{Timestamp: 42, Version: frame.Version}
	require.NoError(t, w.FileHeader(header))
	require.NoError(t, w.MessageFormat(msg.NewFormat("m", []*msg.Field{
		msg.NewField("uint64_t", "timestamp", -1),
	})))
	require.NoError(t, w.HeaderComplete())
	require.NoError(t, w.Logging(msg.NewLogging(msg.LevelInfo, "hello world", 7)))

	dc := container.New()
	r, err := reader.New(dc)
	require.NoError(t, err)
	r.ReadChunk(buf)

	require.Empty(t, dc.ParsingErrors())
	require.Nil(t, dc.GetFileHeader().FlagBits)
	require.Equal(t, uint64(42), dc.GetFileHeader().Timestamp)
	require.Len(t, dc.LogMessages(), 1)
}

func TestReaderUnknownIncompatFlag(t *testing.T) {
	var buf []byte
	w, err := writer.New(func(p []byte) { buf = append(buf, p...) })
	require.NoError(t, err)

	header := msg.NewFileHeader(0)
	header.FlagBits.IncompatFlags[0] = 0x02 // unknown bit
	require.NoError(t, w.FileHeader(header))
	require.NoError(t, w.HeaderComplete())
	require.NoError(t, w.Logging(msg.NewLogging(msg.LevelInfo, "ignored", 0)))

	dc := container.New()
	r, err := reader.New(dc)
	require.NoError(t, err)
	r.ReadChunk(buf)

	require.True(t, dc.HadFatalError())
	require.Empty(t, dc.LogMessages())
}

func TestReaderDataAppendedFlagTolerated(t *testing.T) {
	var buf []byte
	w, err := writer.New(func(p []byte) { buf = append(buf, p...) })
	require.NoError(t, err)

	header := msg.NewFileHeader(0)
	header.FlagBits.IncompatFlags[0] = msg.IncompatFlagDataAppended
	require.NoError(t, w.FileHeader(header))
	require.NoError(t, w.HeaderComplete())
	require.NoError(t, w.Logging(msg.NewLogging(msg.LevelInfo, "still parsed", 0)))

	dc := container.New()
	r, err := reader.New(dc)
	require.NoError(t, err)
	r.ReadChunk(buf)

	require.Empty(t, dc.ParsingErrors())
	require.Len(t, dc.LogMessages(), 1)
}

func TestReaderAppendedOffsetsWarning(t *testing.T) {
	var buf []byte
	w, err := writer.New(func(p []byte) { buf = append(buf, p...) })
	require.NoError(t, err)

	header := msg.NewFileHeader(0)
	header.FlagBits.IncompatFlags[0] = msg.IncompatFlagDataAppended
	header.FlagBits.AppendedOffsets[0] = 4096
	require.NoError(t, w.FileHeader(header))
	require.NoError(t, w.HeaderComplete())
	require.NoError(t, w.Logging(msg.NewLogging(msg.LevelInfo, "still parsed", 0)))

	dc := container.New()
	r, err := reader.New(dc)
	require.NoError(t, err)
	r.ReadChunk(buf)

	// Recoverable warning, parsing continues.
	require.Len(t, dc.ParsingErrors(), 1)
	require.False(t, dc.HadFatalError())
	require.Len(t, dc.LogMessages(), 1)
}

func TestReaderZeroBytesCorruption(t *testing.T) {
	// Insert a run of zero bytes after the header section; everything
	// after the corruption must still be recovered.
	var buf []byte
	insertZeros := 0
	w, err := writer.New(func(p []byte) {
		if insertZeros > 0 {
			buf = append(buf, make([]byte, insertZeros)...)
			insertZeros = 0
		}
		buf = append(buf, p...)
	})
	require.NoError(t, err)

	require.NoError(t, w.FileHeader(msg.NewFileHeader(0)))
	require.NoError(t, w.MessageFormat(msg.NewFormat("other_message", []*msg.Field{
		msg.NewField("uint64_t", "timestamp", -1),
		msg.NewField("uint32_t", "array", 3),
		msg.NewField("uint16_t", "x", -1),
	})))
	require.NoError(t, w.HeaderComplete())

	insertZeros = 423
	require.NoError(t, w.Logging(msg.NewLogging(msg.LevelWarning, "logging message", 3834732)))
	require.NoError(t, w.AddLoggedMessage(msg.NewAddLogged(0, 1, "other_message")))

	payload := make([]byte, 22)
	payload[0] = 32
	payload[20] = 49
	require.NoError(t, w.Data(msg.NewData(1, payload)))
	require.NoError(t, w.Data(msg.NewData(1, payload)))

	dc := container.New()
	r, err := reader.New(dc)
	require.NoError(t, err)

	// The first chunk ends inside the first data message; the last chunk
	// completes it and carries the second one.
	lastChunk := 30
	r.ReadChunk(buf[:len(buf)-lastChunk])
	r.ReadChunk(buf[len(buf)-lastChunk:])

	require.NotEmpty(t, dc.ParsingErrors())
	require.False(t, dc.HadFatalError())

	require.Len(t, dc.LogMessages(), 1)
	require.Equal(t, "logging message", dc.LogMessages()[0].Message)

	sub, err := dc.SubscriptionByMsgID(1)
	require.NoError(t, err)
	require.Equal(t, 2, sub.Len())
	require.Equal(t, payload, sub.RawSamples()[0].Payload)
	require.Equal(t, payload, sub.RawSamples()[1].Payload)
}

func TestReaderCorruptionReportedOncePerEpisode(t *testing.T) {
	var buf []byte
	w, err := writer.New(func(p []byte) { buf = append(buf, p...) })
	require.NoError(t, err)

	require.NoError(t, w.FileHeader(msg.NewFileHeader(0)))
	require.NoError(t, w.HeaderComplete())
	require.NoError(t, w.Logging(msg.NewLogging(msg.LevelInfo, "first message", 1)))
	buf = append(buf, make([]byte, 64)...) // first corruption episode
	require.NoError(t, w.Logging(msg.NewLogging(msg.LevelInfo, "second message", 2)))
	buf = append(buf, make([]byte, 64)...) // second corruption episode
	require.NoError(t, w.Logging(msg.NewLogging(msg.LevelInfo, "third message", 3)))

	dc := container.New()
	r, err := reader.New(dc)
	require.NoError(t, err)

	// Magic and flag bits must arrive in one piece; the rest drips in.
	prefix := frame.FileHeaderLen + frame.HeaderLen + msg.FlagBitsLen
	r.ReadChunk(buf[:prefix])
	for i := prefix; i < len(buf); i += 16 {
		r.ReadChunk(buf[i:min(i+16, len(buf))])
	}
	r.ReadChunk(msgBytes(t, msg.NewLogging(msg.LevelInfo, "fourth message", 4)))

	require.Len(t, dc.ParsingErrors(), 2)
	require.False(t, dc.HadFatalError())
	require.Len(t, dc.LogMessages(), 4)
}

func TestReaderCorruptedSyncMagic(t *testing.T) {
	var buf []byte
	w, err := writer.New(func(p []byte) { buf = append(buf, p...) })
	require.NoError(t, err)

	require.NoError(t, w.FileHeader(msg.NewFileHeader(0)))
	require.NoError(t, w.HeaderComplete())
	require.NoError(t, w.Logging(msg.NewLogging(msg.LevelInfo, "before sync", 1)))

	syncStart := len(buf)
	require.NoError(t, w.Sync(msg.Sync{}))
	buf[syncStart+frame.HeaderLen+2] ^= 0xFF // corrupt one magic byte

	require.NoError(t, w.Logging(msg.NewLogging(msg.LevelInfo, "after sync", 2)))

	dc := container.New()
	r, err := reader.New(dc)
	require.NoError(t, err)
	r.ReadChunk(buf)
	r.ReadChunk(msgBytes(t, msg.NewLogging(msg.LevelInfo, "trailing", 3)))

	require.Len(t, dc.ParsingErrors(), 1)
	require.False(t, dc.HadFatalError())
	require.Len(t, dc.LogMessages(), 3)
}

func TestReaderTruncatedDataResumes(t *testing.T) {
	data := buildBasicLog(t)

	// Cut inside the last data message.
	cut := len(data) - 10

	dc := container.New()
	r, err := reader.New(dc)
	require.NoError(t, err)

	r.ReadChunk(data[:cut])
	sub, err := dc.SubscriptionByMsgID(1)
	require.NoError(t, err)
	require.Equal(t, 1, sub.Len())

	r.ReadChunk(data[cut:])
	require.Equal(t, 2, sub.Len())
	require.Empty(t, dc.ParsingErrors())
}

func TestReaderEmptyLog(t *testing.T) {
	// A log with just the file header: no formats, no data. Nothing to
	// index, no errors, and the header phase never completes.
	var buf []byte
	w, err := writer.New(func(p []byte) { buf = append(buf, p...) })
	require.NoError(t, err)
	require.NoError(t, w.FileHeader(msg.NewFileHeader(0)))

	dc := container.New()
	r, err := reader.New(dc)
	require.NoError(t, err)
	r.ReadChunk(buf)

	require.Empty(t, dc.ParsingErrors())
	require.False(t, dc.HadFatalError())
	require.False(t, dc.IsHeaderComplete())
	require.Equal(t, 0, dc.Formats().Len())
	require.Empty(t, dc.Subscriptions())
}

func TestReaderHeaderCompleteOnce(t *testing.T) {
	var buf []byte
	w, err := writer.New(func(p []byte) { buf = append(buf, p...) })
	require.NoError(t, err)
	require.NoError(t, w.FileHeader(msg.NewFileHeader(0)))
	require.NoError(t, w.HeaderComplete())
	require.NoError(t, w.Logging(msg.NewLogging(msg.LevelInfo, "a", 1)))
	require.NoError(t, w.Logging(msg.NewLogging(msg.LevelInfo, "b", 2)))

	completions := 0
	h := &completionCounter{count: &completions}
	r, err := reader.New(h)
	require.NoError(t, err)
	r.ReadChunk(buf)

	require.Equal(t, 1, completions)
}

type completionCounter struct {
	reader.BaseHandler
	count *int
}

func (c *completionCounter) HeaderComplete() error {
	*c.count++
	return nil
}

func TestReaderDuplicateFormatRecoverable(t *testing.T) {
	var buf []byte
	w, err := writer.New(func(p []byte) { buf = append(buf, p...) })
	require.NoError(t, err)

	require.NoError(t, w.FileHeader(msg.NewFileHeader(0)))
	format := msg.NewFormat("m", []*msg.Field{msg.NewField("uint64_t", "timestamp", -1)})
	require.NoError(t, w.MessageFormat(format))
	require.NoError(t, w.MessageFormat(format)) // duplicate on the wire
	require.NoError(t, w.HeaderComplete())
	require.NoError(t, w.Logging(msg.NewLogging(msg.LevelInfo, "after dup", 1)))

	dc := container.New()
	r, err := reader.New(dc)
	require.NoError(t, err)
	r.ReadChunk(buf)
	r.ReadChunk(msgBytes(t, msg.NewLogging(msg.LevelInfo, "trailing", 2)))

	require.NotEmpty(t, dc.ParsingErrors())
	require.False(t, dc.HadFatalError())
	require.Len(t, dc.LogMessages(), 2)
}

func TestReaderMissingFormatAtResolutionFatal(t *testing.T) {
	var buf []byte
	w, err := writer.New(func(p []byte) { buf = append(buf, p...) })
	require.NoError(t, err)

	require.NoError(t, w.FileHeader(msg.NewFileHeader(0)))
	require.NoError(t, w.MessageFormat(msg.NewFormat("outer", []*msg.Field{
		msg.NewField("uint64_t", "timestamp", -1),
		msg.NewField("never_declared", "child", -1),
	})))
	require.NoError(t, w.HeaderComplete())
	require.NoError(t, w.Logging(msg.NewLogging(msg.LevelInfo, "trigger", 1)))

	dc := container.New()
	r, err := reader.New(dc)
	require.NoError(t, err)
	r.ReadChunk(buf)

	require.True(t, dc.HadFatalError())
}

func TestReaderRemoveLoggedIgnored(t *testing.T) {
	var buf []byte
	w, err := writer.New(func(p []byte) { buf = append(buf, p...) })
	require.NoError(t, err)
	require.NoError(t, w.FileHeader(msg.NewFileHeader(0)))
	require.NoError(t, w.HeaderComplete())
	require.NoError(t, w.Logging(msg.NewLogging(msg.LevelInfo, "first", 1)))

	// Hand-framed remove-logged message.
	buf = append(buf, 0x02, 0x00, byte(frame.TypeRemoveLogged), 0xAA, 0xBB)
	buf = append(buf, msgBytes(t, msg.NewLogging(msg.LevelInfo, "second", 2))...)

	dc := container.New()
	r, err := reader.New(dc)
	require.NoError(t, err)
	r.ReadChunk(buf)

	require.Empty(t, dc.ParsingErrors())
	require.Len(t, dc.LogMessages(), 2)
}

// msgBytes serializes a single logging message.
func msgBytes(t *testing.T, logging msg.Logging) []byte {
	t.Helper()

	var buf []byte
	require.NoError(t, logging.Serialize(func(p []byte) { buf = append(buf, p...) }))

	return buf
}
