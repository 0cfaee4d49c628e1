package msg

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/ulog/errs"
	"github.com/arloliu/ulog/frame"
)

func collect(dst *[]byte) WriteFunc {
	return func(p []byte) {
		*dst = append(*dst, p...)
	}
}

func frameBody(t *testing.T, written []byte, typ frame.Type) []byte {
	t.Helper()
	require.GreaterOrEqual(t, len(written), frame.HeaderLen)
	header := frame.ParseHeader(written)
	require.Equal(t, typ, header.Type)
	require.Equal(t, int(header.Size), len(written)-frame.HeaderLen)

	return written[frame.HeaderLen:]
}

func TestInfoRoundTrip(t *testing.T) {
	original := NewInfoString("sys_name", "test_value")

	var written []byte
	require.NoError(t, original.Serialize(collect(&written)))

	parsed, err := ParseInfo(frameBody(t, written, frame.TypeInfo))
	require.NoError(t, err)
	require.True(t, original.Equal(parsed))
	require.Equal(t, "sys_name", parsed.Field.Name)
	require.Equal(t, []byte("test_value"), parsed.RawValue)
}

func TestInfoMultiRoundTrip(t *testing.T) {
	original := NewInfoMulti(NewField("char", "long_key", 5), []byte("chunk"), true)

	var written []byte
	require.NoError(t, original.Serialize(collect(&written)))

	parsed, err := ParseInfoMulti(frameBody(t, written, frame.TypeInfoMulti))
	require.NoError(t, err)
	require.True(t, original.Equal(parsed))
	require.True(t, parsed.IsMulti)
	require.True(t, parsed.Continued)
}

func TestInfoTypedConstructors(t *testing.T) {
	reg := NewFormatRegistry()

	i32 := NewInfoInt32("param_b", -8272)
	require.NoError(t, i32.Field.Resolve(reg, 0))
	v, err := As[int32](i32.Value())
	require.NoError(t, err)
	require.Equal(t, int32(-8272), v)

	f32 := NewInfoFloat32("param_a", 382.23)
	require.NoError(t, f32.Field.Resolve(reg, 0))
	fv, err := As[float32](f32.Value())
	require.NoError(t, err)
	require.Equal(t, float32(382.23), fv)

	str := NewInfoString("name", "hello")
	require.NoError(t, str.Field.Resolve(reg, 0))
	sv, err := AsString(str.Value())
	require.NoError(t, err)
	require.Equal(t, "hello", sv)
}

func TestParseInfoInvalid(t *testing.T) {
	_, err := ParseInfo([]byte{5})
	require.ErrorIs(t, err, errs.ErrMessageTooShort)

	// Key length exceeding the message.
	_, err = ParseInfo([]byte{200, 'a', 'b'})
	require.ErrorIs(t, err, errs.ErrKeyTooLong)

	_, err = ParseInfoMulti([]byte{0, 200, 'a'})
	require.ErrorIs(t, err, errs.ErrKeyTooLong)
}

func TestParameterDefaultRoundTrip(t *testing.T) {
	original := NewParameterDefault(
		NewField("int32_t", "my_param", -1),
		[]byte{0x10, 0x20, 0x30, 0x40},
		DefaultTypeSystem|DefaultTypeConfiguration,
	)

	var written []byte
	require.NoError(t, original.Serialize(collect(&written)))

	parsed, err := ParseParameterDefault(frameBody(t, written, frame.TypeParameterDefault))
	require.NoError(t, err)
	require.True(t, original.Field.Equal(parsed.Field))
	require.Equal(t, original.RawValue, parsed.RawValue)
	require.Equal(t, original.DefaultTypes, parsed.DefaultTypes)
}

func TestAddLoggedRoundTrip(t *testing.T) {
	original := NewAddLogged(2, 517, "sensor_combined")

	var written []byte
	require.NoError(t, original.Serialize(collect(&written)))

	parsed, err := ParseAddLogged(frameBody(t, written, frame.TypeAddLogged))
	require.NoError(t, err)
	require.Equal(t, original, parsed)
}

func TestLoggingRoundTrip(t *testing.T) {
	original := NewLogging(LevelWarning, "logging message", 3834732)

	var written []byte
	require.NoError(t, original.Serialize(collect(&written)))

	parsed, err := ParseLogging(frameBody(t, written, frame.TypeLogging))
	require.NoError(t, err)
	require.Equal(t, original, parsed)
}

func TestLoggingTaggedRoundTrip(t *testing.T) {
	original := NewLoggingTagged(LevelError, "tagged message", 99, 7)

	var written []byte
	require.NoError(t, original.Serialize(collect(&written)))

	parsed, err := ParseLoggingTagged(frameBody(t, written, frame.TypeLoggingTagged))
	require.NoError(t, err)
	require.Equal(t, original, parsed)
	require.True(t, parsed.HasTag)
	require.Equal(t, uint16(7), parsed.Tag)
}

func TestLoggingLevelFolding(t *testing.T) {
	// Out-of-range levels fold to Debug.
	body := append([]byte{'9'}, make([]byte, 8)...)
	body = append(body, 'x')

	parsed, err := ParseLogging(body)
	require.NoError(t, err)
	require.Equal(t, LevelDebug, parsed.Level)

	body[0] = '/' // one below '0'
	parsed, err = ParseLogging(body)
	require.NoError(t, err)
	require.Equal(t, LevelDebug, parsed.Level)
}

func TestLevelString(t *testing.T) {
	require.Equal(t, "Emergency", LevelEmergency.String())
	require.Equal(t, "Warning", LevelWarning.String())
	require.Equal(t, "Debug", LevelDebug.String())
	require.Equal(t, "unknown", Level('z').String())
}

func TestDataRoundTrip(t *testing.T) {
	payload := make([]byte, 22)
	payload[0] = 32
	payload[20] = 49
	original := NewData(1, payload)

	var written []byte
	require.NoError(t, original.Serialize(collect(&written)))

	parsed, err := ParseData(frameBody(t, written, frame.TypeData))
	require.NoError(t, err)
	require.Equal(t, original, parsed)
}

func TestDropoutRoundTrip(t *testing.T) {
	original := Dropout{Duration: 250}

	var written []byte
	require.NoError(t, original.Serialize(collect(&written)))

	parsed, err := ParseDropout(frameBody(t, written, frame.TypeDropout))
	require.NoError(t, err)
	require.Equal(t, original, parsed)
}

func TestSyncRoundTrip(t *testing.T) {
	var written []byte
	require.NoError(t, Sync{}.Serialize(collect(&written)))

	body := frameBody(t, written, frame.TypeSync)
	require.Equal(t, frame.SyncMagic[:], body)

	_, err := ParseSync(body)
	require.NoError(t, err)
}

func TestParseSyncBadMagic(t *testing.T) {
	body := make([]byte, len(frame.SyncMagic))
	copy(body, frame.SyncMagic[:])
	body[3] ^= 0xFF

	_, err := ParseSync(body)
	require.ErrorIs(t, err, errs.ErrInvalidSyncMagic)
	require.False(t, errs.IsFatal(err))
}

func TestFlagBitsParse(t *testing.T) {
	body := make([]byte, FlagBitsLen)
	body[0] = CompatFlagDefaultParameters
	body[8] = IncompatFlagDataAppended

	fb, err := ParseFlagBits(body)
	require.NoError(t, err)
	require.True(t, fb.HasDataAppended())
	require.False(t, fb.HasUnknownIncompat())

	body[8] = 0x03 // data appended plus an unknown bit
	fb, err = ParseFlagBits(body)
	require.NoError(t, err)
	require.True(t, fb.HasUnknownIncompat())

	body[8] = 0
	body[9] = 1 // unknown bit in a later incompat byte
	fb, err = ParseFlagBits(body)
	require.NoError(t, err)
	require.True(t, fb.HasUnknownIncompat())

	_, err = ParseFlagBits(body[:FlagBitsLen-1])
	require.ErrorIs(t, err, errs.ErrMessageTooShort)
}

func TestFileHeaderSerialize(t *testing.T) {
	header := NewFileHeader(0xdeadbeef)

	var written []byte
	require.NoError(t, header.Serialize(collect(&written)))

	// 16-byte file header followed by the flag-bits message.
	require.Len(t, written, frame.FileHeaderLen+frame.HeaderLen+FlagBitsLen)
	require.Equal(t, frame.FileMagicPrefix[:], written[:7])
	require.Equal(t, byte(frame.Version), written[7])

	fbHeader := frame.ParseHeader(written[frame.FileHeaderLen:])
	require.Equal(t, frame.TypeFlagBits, fbHeader.Type)
	require.Equal(t, uint16(FlagBitsLen), fbHeader.Size)
}

func TestFileHeaderSerializeWithoutFlagBits(t *testing.T) {
	header := FileHeader{Timestamp: 7, Version: frame.Version}

	var written []byte
	require.NoError(t, header.Serialize(collect(&written)))
	require.Len(t, written, frame.FileHeaderLen)
}
