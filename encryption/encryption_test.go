package encryption

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var testKey = base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", keySize)))

func TestEncryptedValueIsDecrypted(t *testing.T) {
	assert := require.New(t)

	cipher, err := NewAESGCM(testKey)
	assert.NoError(err)

	sealed, err := cipher.Encrypt("Breach of contract")
	assert.NoError(err)
	assert.True(IsEnvelope(sealed))
	assert.NotContains(sealed, "Breach")

	assert.Equal("Breach of contract", cipher.DecryptIfNeeded(sealed))
}

var decryptIfNeededTestCases = []struct {
	name  string
	input string
}{
	{name: "Plaintext", input: "plain legacy value"},
	{name: "Empty", input: ""},
	{name: "UnrelatedJSON", input: `{"key": "value"}`},
	{name: "BrokenEnvelope", input: `{"ciphertext":"!!","iv":"AAAA","authTag":"AAAA"}`},
	{name: "WrongNonce", input: `{"ciphertext":"AAAA","iv":"AAAA","authTag":"AAAA"}`},
}

var envelopeVersionTestCases = []struct {
	name    string
	version string
}{
	{name: "Number", version: `"version":1`},
	{name: "String", version: `"version":"1"`},
	{name: "Missing", version: ``},
}

func TestEnvelopeVersionFormats(t *testing.T) {
	cipher, err := NewAESGCM(testKey)
	require.NoError(t, err)

	sealed, err := cipher.Encrypt("secret text")
	require.NoError(t, err)
	require.Contains(t, sealed, `"version":1`)

	for _, tc := range envelopeVersionTestCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := require.New(t)
			value := strings.Replace(sealed, `,"version":1`, "", 1)
			if tc.version != "" {
				value = strings.TrimSuffix(value, "}") + "," + tc.version + "}"
			}
			assert.True(IsEnvelope(value))
			assert.Equal("secret text", cipher.DecryptIfNeeded(value))
		})
	}
}

func TestDecryptIfNeededReturnsInputOnFailure(t *testing.T) {
	cipher, err := NewAESGCM(testKey)
	require.NoError(t, err)

	for _, testCase := range decryptIfNeededTestCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert := require.New(t)
			assert.Equal(testCase.input, cipher.DecryptIfNeeded(testCase.input))
		})
	}
}

func TestWrongKeyLeavesEnvelopeUntouched(t *testing.T) {
	assert := require.New(t)

	writer, err := NewAESGCM(testKey)
	assert.NoError(err)
	sealed, err := writer.Encrypt("secret")
	assert.NoError(err)

	otherKey := base64.StdEncoding.EncodeToString([]byte(strings.Repeat("z", keySize)))
	reader, err := NewAESGCM(otherKey)
	assert.NoError(err)

	assert.Equal(sealed, reader.DecryptIfNeeded(sealed))
}

func TestNew(t *testing.T) {
	assert := require.New(t)

	decryptor, err := New("")
	assert.NoError(err)
	assert.IsType(Passthrough{}, decryptor)

	_, err = New(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.ErrorIs(err, ErrInvalidKey)
}
