package fieldcode

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovialab/cliniguard-server/internal/testutil"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := New(testKey, testutil.MakeNoopLogger())
	require.NoError(t, err)
	return c
}

func TestNew_RejectsBadKeys(t *testing.T) {
	tests := []struct {
		name   string
		hexKey string
	}{
		{name: "not hex", hexKey: "zz"},
		{name: "too short", hexKey: "0001"},
		{name: "too long", hexKey: testKey + "ff"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.hexKey, testutil.MakeNoopLogger())
			require.Error(t, err)
		})
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	c := newTestCodec(t)

	inputs := []string{
		"dolor abdominal agudo",
		"a",
		"exactly sixteen b",
		strings.Repeat("historia clínica extensa. ", 40),
		"unicode: ñandú 漢字",
	}

	for _, in := range inputs {
		encoded, err := c.Encode(in)
		require.NoError(t, err)
		assert.NotEqual(t, in, encoded)
		assert.Equal(t, in, c.Decode(encoded))
	}
}

func TestCodec_Encode_EmptyPassthrough(t *testing.T) {
	c := newTestCodec(t)

	encoded, err := c.Encode("")
	require.NoError(t, err)
	assert.Equal(t, "", encoded)
}

func TestCodec_Encode_FreshIVPerCall(t *testing.T) {
	c := newTestCodec(t)

	first, err := c.Encode("same plaintext")
	require.NoError(t, err)
	second, err := c.Encode("same plaintext")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, c.Decode(first), c.Decode(second))
}

func TestCodec_Encode_Format(t *testing.T) {
	c := newTestCodec(t)

	encoded, err := c.Encode("formato")
	require.NoError(t, err)

	ivHex, cipherHex, found := strings.Cut(encoded, ":")
	require.True(t, found)

	iv, err := hex.DecodeString(ivHex)
	require.NoError(t, err)
	assert.Len(t, iv, 16)

	encrypted, err := hex.DecodeString(cipherHex)
	require.NoError(t, err)
	assert.Equal(t, 0, len(encrypted)%16)
}

func TestCodec_Decode_LegacyPassthrough(t *testing.T) {
	c := newTestCodec(t)

	for _, in := range []string{"", "plaintext sin separador", "1234567890"} {
		assert.Equal(t, in, c.Decode(in))
	}
}

func TestCodec_Decode_CorruptedYieldsSentinel(t *testing.T) {
	c := newTestCodec(t)

	valid, err := c.Encode("valor original")
	require.NoError(t, err)

	tests := []struct {
		name  string
		value string
	}{
		{name: "truncated iv", value: valid[4:]},
		{name: "garbage hex", value: "zz:zz"},
		{name: "short ciphertext", value: strings.Repeat("ab", 16) + ":abcd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, Sentinel, c.Decode(tt.value))
		})
	}

	// Tampered ciphertext decrypts to garbage; the padding check almost
	// always rejects it, and it can never reproduce the original.
	tampered := valid[:len(valid)-8] + "00000000"
	assert.NotEqual(t, "valor original", c.Decode(tampered))
}

func TestCodec_Decode_WrongKeyNeverRecovers(t *testing.T) {
	c := newTestCodec(t)

	other, err := New(strings.Repeat("ff", 32), testutil.MakeNoopLogger())
	require.NoError(t, err)

	encoded, err := other.Encode("cifrado con otra clave")
	require.NoError(t, err)

	assert.NotEqual(t, "cifrado con otra clave", c.Decode(encoded))
}
