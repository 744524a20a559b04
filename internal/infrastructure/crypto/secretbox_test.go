package crypto_test

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printfleet/printfleet/internal/infrastructure/crypto"
)

func testKey(t *testing.T) string {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key
}

func TestSealOpen_RoundTrip(t *testing.T) {
	s, err := crypto.NewSealerFromBase64(testKey(t))
	require.NoError(t, err)

	blob, err := s.Seal("01P00A123456789|12345678")
	require.NoError(t, err)
	assert.NotContains(t, blob, "01P00A123456789")

	got, err := s.Open(blob)
	require.NoError(t, err)
	assert.Equal(t, "01P00A123456789|12345678", got)
}

func TestSeal_ProducesDistinctBlobsForSamePlaintext(t *testing.T) {
	s, err := crypto.NewSealerFromBase64(testKey(t))
	require.NoError(t, err)

	a, err := s.Seal("secret")
	require.NoError(t, err)
	b, err := s.Seal("secret")
	require.NoError(t, err)

	assert.NotEqual(t, a, b, "nonce reuse would make identical blobs")
}

func TestOpen_WrongKeyFails(t *testing.T) {
	s1, err := crypto.NewSealerFromBase64(testKey(t))
	require.NoError(t, err)
	s2, err := crypto.NewSealerFromBase64(testKey(t))
	require.NoError(t, err)

	blob, err := s1.Seal("secret")
	require.NoError(t, err)

	_, err = s2.Open(blob)
	assert.Error(t, err)
}

func TestOpen_RejectsTruncatedBlob(t *testing.T) {
	s, err := crypto.NewSealerFromBase64(testKey(t))
	require.NoError(t, err)

	_, err = s.Open(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.Error(t, err)

	_, err = s.Open("not base64 at all!!!")
	assert.Error(t, err)
}

func TestNewSealer_RejectsWrongKeyLength(t *testing.T) {
	_, err := crypto.NewSealer(make([]byte, 16))
	assert.Error(t, err)

	_, err = crypto.NewSealerFromBase64(base64.StdEncoding.EncodeToString(make([]byte, 31)))
	assert.Error(t, err)
}
