package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMaterial(t *testing.T, alg Algorithm) (*DerivedKeyEncrypter, []byte) {
	t.Helper()
	enc, err := NewDerivedKeyEncrypter(alg)
	require.NoError(t, err)
	iv, err := GenerateInitialVector(alg)
	require.NoError(t, err)
	return enc, iv
}

func TestEncrypterRoundTrip(t *testing.T) {
	for _, alg := range []Algorithm{AlgorithmAESGCM, AlgorithmChaCha20Poly1305} {
		t.Run(string(alg), func(t *testing.T) {
			enc, iv := newTestMaterial(t, alg)
			priv, err := GeneratePepperKey()
			require.NoError(t, err)

			ct, err := enc.EncryptWithDerivedKey(priv, []byte("123456"), iv)
			require.NoError(t, err)
			assert.NotContains(t, string(ct), "123456")

			pt, err := enc.DecryptWithDerivedKey(priv, ct, iv)
			require.NoError(t, err)
			assert.Equal(t, []byte("123456"), pt)
		})
	}
}

func TestEncrypterUsesFreshNonce(t *testing.T) {
	for _, alg := range []Algorithm{AlgorithmAESGCM, AlgorithmChaCha20Poly1305} {
		t.Run(string(alg), func(t *testing.T) {
			enc, iv := newTestMaterial(t, alg)
			priv, err := GeneratePepperKey()
			require.NoError(t, err)

			a, err := enc.EncryptWithDerivedKey(priv, []byte("111111"), iv)
			require.NoError(t, err)
			b, err := enc.EncryptWithDerivedKey(priv, []byte("111111"), iv)
			require.NoError(t, err)

			assert.NotEqual(t, SealedNonce(alg, a), SealedNonce(alg, b))
			assert.NotEqual(t, a, b)
			assert.NotEqual(t, iv, SealedNonce(alg, a))
			assert.Len(t, a, alg.NonceSize()+len("111111")+16)

			for _, ct := range [][]byte{a, b} {
				pt, err := enc.DecryptWithDerivedKey(priv, ct, iv)
				require.NoError(t, err)
				assert.Equal(t, []byte("111111"), pt)
			}
		})
	}
}

func TestEncrypterCiphertextsDoNotLeakPlaintextXor(t *testing.T) {
	enc, iv := newTestMaterial(t, AlgorithmAESGCM)
	priv, err := GeneratePepperKey()
	require.NoError(t, err)

	a, err := enc.EncryptWithDerivedKey(priv, []byte("111111"), iv)
	require.NoError(t, err)
	b, err := enc.EncryptWithDerivedKey(priv, []byte("987654"), iv)
	require.NoError(t, err)

	n := AlgorithmAESGCM.NonceSize()
	ctXor := make([]byte, 6)
	ptXor := make([]byte, 6)
	for i := range ctXor {
		ctXor[i] = a[n+i] ^ b[n+i]
		ptXor[i] = "111111"[i] ^ "987654"[i]
	}
	assert.NotEqual(t, ptXor, ctXor)
}

func TestEncrypterDiffersAcrossVectors(t *testing.T) {
	enc, iv1 := newTestMaterial(t, AlgorithmAESGCM)
	iv2, err := GenerateInitialVector(AlgorithmAESGCM)
	require.NoError(t, err)
	priv, err := GeneratePepperKey()
	require.NoError(t, err)

	a, err := enc.EncryptWithDerivedKey(priv, []byte("123456"), iv1)
	require.NoError(t, err)
	b, err := enc.EncryptWithDerivedKey(priv, []byte("123456"), iv2)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	_, err = enc.DecryptWithDerivedKey(priv, a, iv2)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestEncrypterDetectsTampering(t *testing.T) {
	enc, iv := newTestMaterial(t, AlgorithmChaCha20Poly1305)
	priv, err := GeneratePepperKey()
	require.NoError(t, err)

	ct, err := enc.EncryptWithDerivedKey(priv, []byte("123456"), iv)
	require.NoError(t, err)
	ct[0] ^= 0x01

	_, err = enc.DecryptWithDerivedKey(priv, ct, iv)
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	_, err = enc.DecryptWithDerivedKey(priv, []byte{1, 2, 3}, iv)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestEncrypterWrongKey(t *testing.T) {
	enc, iv := newTestMaterial(t, AlgorithmAESGCM)
	a, err := GeneratePepperKey()
	require.NoError(t, err)
	b, err := GeneratePepperKey()
	require.NoError(t, err)

	ct, err := enc.EncryptWithDerivedKey(a, []byte("123456"), iv)
	require.NoError(t, err)
	_, err = enc.DecryptWithDerivedKey(b, ct, iv)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestEncrypterInputErrors(t *testing.T) {
	enc, iv := newTestMaterial(t, AlgorithmAESGCM)
	priv, err := GeneratePepperKey()
	require.NoError(t, err)

	_, err = enc.EncryptWithDerivedKey(nil, []byte("1"), iv)
	assert.ErrorIs(t, err, ErrNilPrivateKey)

	_, err = enc.EncryptWithDerivedKey(priv, []byte("1"), []byte{})
	assert.ErrorIs(t, err, ErrInvalidInitialVector)

	_, err = enc.DecryptWithDerivedKey(priv, []byte("1234567890123456789"), make([]byte, 16))
	assert.ErrorIs(t, err, ErrInvalidInitialVector)
}

func TestParseAlgorithm(t *testing.T) {
	alg, err := ParseAlgorithm("")
	require.NoError(t, err)
	assert.Equal(t, DefaultAlgorithm, alg)

	alg, err = ParseAlgorithm("chacha20-poly1305")
	require.NoError(t, err)
	assert.Equal(t, AlgorithmChaCha20Poly1305, alg)

	_, err = ParseAlgorithm("des")
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)

	_, err = NewDerivedKeyEncrypter("rot13")
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}
