package ldap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AD mixed-endian bytes for 01234567-89ab-cdef-0123-456789abcdef.
var adGUID = []byte{
	0x67, 0x45, 0x23, 0x01, // Data1: little-endian
	0xab, 0x89, // Data2: little-endian
	0xef, 0xcd, // Data3: little-endian
	0x01, 0x23, 0x45, 0x67, 0x89, 0xab, 0xcd, 0xef, // Data4: unchanged
}

func TestGUIDHandler_NormalizeGUID(t *testing.T) {
	handler := NewGUIDHandler()

	tests := []struct {
		input    string
		expected string
		wantErr  bool
	}{
		{input: "01234567-89AB-CDEF-0123-456789ABCDEF", expected: "01234567-89ab-cdef-0123-456789abcdef"},
		{input: "0123456789abcdef0123456789abcdef", expected: "01234567-89ab-cdef-0123-456789abcdef"},
		{input: " 01234567-89ab-cdef-0123-456789abcdef ", expected: "01234567-89ab-cdef-0123-456789abcdef"},
		{input: "", wantErr: true},
		{input: "01234567-89ab-cdef-0123", wantErr: true},
		{input: "zz234567-89ab-cdef-0123-456789abcdef", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := handler.NormalizeGUID(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestGUIDHandler_IsValidGUID(t *testing.T) {
	handler := NewGUIDHandler()

	assert.True(t, handler.IsValidGUID("01234567-89ab-cdef-0123-456789abcdef"))
	assert.True(t, handler.IsValidGUID("0123456789ABCDEF0123456789ABCDEF"))
	assert.False(t, handler.IsValidGUID(""))
	assert.False(t, handler.IsValidGUID(" 01234567-89ab-cdef-0123-456789abcdef"))
	assert.False(t, handler.IsValidGUID("01234567-89ab-cdef-0123-456789abcdeg"))
}

func TestGUIDHandler_Bytes(t *testing.T) {
	handler := NewGUIDHandler()

	b, err := handler.StringToGUIDBytes("01234567-89ab-cdef-0123-456789abcdef")
	require.NoError(t, err)
	assert.Equal(t, adGUID, b)

	s, err := handler.GUIDBytesToString(adGUID)
	require.NoError(t, err)
	assert.Equal(t, "01234567-89ab-cdef-0123-456789abcdef", s)

	for _, guid := range []string{
		"00000000-0000-0000-0000-000000000001",
		"ffffffff-ffff-ffff-ffff-ffffffffffff",
		"12345678-1234-1234-1234-123456789012",
	} {
		b, err := handler.StringToGUIDBytes(guid)
		require.NoError(t, err)
		back, err := handler.GUIDBytesToString(b)
		require.NoError(t, err)
		assert.Equal(t, guid, back)
	}

	_, err = handler.GUIDBytesToString(adGUID[:15])
	assert.Error(t, err)
	_, err = handler.StringToGUIDBytes("not-a-guid")
	assert.Error(t, err)
}

func TestSIDHandler(t *testing.T) {
	handler := NewSIDHandler()

	tests := []struct {
		name     string
		input    []byte
		expected string
		wantErr  bool
	}{
		{
			name:     "builtin administrators",
			input:    []byte{1, 2, 0, 0, 0, 0, 0, 5, 32, 0, 0, 0, 0x20, 0x02, 0, 0},
			expected: "S-1-5-32-544",
		},
		{
			name: "domain account",
			input: []byte{
				1, 5, 0, 0, 0, 0, 0, 5,
				21, 0, 0, 0,
				0x15, 0xcd, 0x5b, 0x07,
				0x0e, 0x23, 0x58, 0x3d,
				0x72, 0x8b, 0x96, 0x4d,
				0xf4, 0x01, 0x00, 0x00,
			},
			expected: "S-1-5-21-123456789-1029186318-1301711730-500",
		},
		{name: "too short", input: []byte{1, 0, 0}, wantErr: true},
		{name: "count mismatch", input: []byte{1, 2, 0, 0, 0, 0, 0, 5, 32, 0, 0, 0}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := handler.ConvertBinarySIDToString(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
			assert.NoError(t, handler.ValidateSIDString(got))
		})
	}

	assert.Error(t, handler.ValidateSIDString(""))
	assert.Error(t, handler.ValidateSIDString("X-1-5"))
}

func TestFormatWellKnownBinary(t *testing.T) {
	s, ok := FormatWellKnownBinary("objectguid", BinaryValue(adGUID))
	assert.True(t, ok)
	assert.Equal(t, "01234567-89ab-cdef-0123-456789abcdef", s)

	s, ok = FormatWellKnownBinary(" objectSid ", BinaryValue([]byte{1, 1, 0, 0, 0, 0, 0, 5, 18, 0, 0, 0}))
	assert.True(t, ok)
	assert.Equal(t, "S-1-5-18", s)

	_, ok = FormatWellKnownBinary("objectGUID", BinaryValue([]byte{1, 2}))
	assert.False(t, ok)

	_, ok = FormatWellKnownBinary("jpegPhoto", BinaryValue(adGUID))
	assert.False(t, ok)
}

func TestValidateWellKnownValue(t *testing.T) {
	sid18 := []byte{1, 1, 0, 0, 0, 0, 0, 5, 18, 0, 0, 0}

	tests := []struct {
		name    string
		attr    string
		value   Value
		wantErr bool
	}{
		{name: "binary guid", attr: "objectGUID", value: BinaryValue(adGUID)},
		{name: "hyphenated guid text", attr: "objectGUID", value: TextValue("01234567-89AB-cdef-0123-456789abcdef")},
		{name: "compact guid text", attr: "objectguid", value: TextValue("0123456789abcdef0123456789abcdef")},
		{name: "short guid bytes", attr: "objectGUID", value: BinaryValue(adGUID[:15]), wantErr: true},
		{name: "bad guid text", attr: "objectGUID", value: TextValue("not-a-guid"), wantErr: true},
		{name: "binary sid", attr: "objectSid", value: BinaryValue(sid18)},
		{name: "sid text", attr: " objectSID ", value: TextValue("S-1-5-18")},
		{name: "truncated sid", attr: "objectSid", value: BinaryValue(sid18[:10]), wantErr: true},
		{name: "bad sid text", attr: "objectSid", value: TextValue("S-1"), wantErr: true},
		{name: "other attribute", attr: "cn", value: TextValue("anything")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateWellKnownValue(tt.attr, tt.value)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrProtocolViolation)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateWellKnownValues(t *testing.T) {
	ok := NewContent("cn=a,dc=com")
	require.NoError(t, ok.Add(NewBinaryAttribute("objectGUID", adGUID)))
	require.NoError(t, ok.Add(NewAttribute("cn", "a")))
	assert.NoError(t, ValidateWellKnownValues(ok))

	bad := NewContent("cn=b,dc=com")
	require.NoError(t, bad.Add(NewBinaryAttribute("objectSid", []byte{1, 2, 3})))
	err := ValidateWellKnownValues(bad)
	require.ErrorIs(t, err, ErrProtocolViolation)

	var lerr *Error
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, "cn=b,dc=com", lerr.DN)
	assert.Equal(t, "objectSid", lerr.Attribute)

	mod := NewModify("cn=c,dc=com")
	require.NoError(t, mod.AddModification(ModReplace, NewAttribute("objectGUID", "xyz")))
	assert.ErrorIs(t, ValidateWellKnownValues(mod), ErrProtocolViolation)
	assert.Len(t, ok.Attributes(), 2)
}
