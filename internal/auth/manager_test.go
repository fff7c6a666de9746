package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrylevesque/pinauth/internal/crypto"
	"github.com/harrylevesque/pinauth/internal/models"
	"github.com/harrylevesque/pinauth/internal/pepper"
)

const pinCodeSize = 6

func newSpyManager() (*PinCodeManager, *encrypterSpy, *pepperSpy) {
	enc := &encrypterSpy{}
	pep := &pepperSpy{}
	return NewPinCodeManager(pinCodeSize, enc, pep), enc, pep
}

func newRealManager(t *testing.T, alg crypto.Algorithm) *PinCodeManager {
	t.Helper()
	enc, err := crypto.NewDerivedKeyEncrypter(alg)
	require.NoError(t, err)
	return NewPinCodeManager(pinCodeSize, enc, pepper.NewSource(pepper.NewMemoryBackend(), alg))
}

func TestValidateRegistrationSuccess(t *testing.T) {
	m, _, _ := newSpyManager()
	assert.NoError(t, m.ValidateRegistration("123456"))
	assert.NoError(t, m.ValidateRegistration("1234567890"))
}

func TestValidateRegistrationErrorPinEmpty(t *testing.T) {
	m, _, _ := newSpyManager()
	assert.ErrorIs(t, m.ValidateRegistration(""), ErrPinCodeIsEmpty)
}

func TestValidateRegistrationErrorPinTooShort(t *testing.T) {
	m, _, _ := newSpyManager()
	for _, pin := range []models.PinCode{"1", "12", "12345", "äöü"} {
		err := m.ValidateRegistration(pin)
		assert.ErrorIs(t, err, ErrPinCodeTooShort)
		assert.Equal(t, KindPinCodeTooShort, Kind(err))
	}
}

func TestValidateLoginSuccess(t *testing.T) {
	m, _, _ := newSpyManager()
	for _, pin := range []models.PinCode{"123456", "12", "aA#$_0", "12345678901234567890", "1"} {
		assert.NoError(t, m.ValidateLogin(pin))
	}
}

func TestValidateLoginErrorPinEmpty(t *testing.T) {
	m, _, _ := newSpyManager()
	err := m.ValidateLogin("")
	assert.ErrorIs(t, err, ErrPinCodeIsEmpty)
	assert.Equal(t, KindPinCodeIsEmpty, Kind(err))
}

func TestValidationIsIdempotent(t *testing.T) {
	m, enc, pep := newSpyManager()
	for _, pin := range []models.PinCode{"", "12345", "123456"} {
		assert.Equal(t, m.ValidateRegistration(pin) == nil, m.ValidateRegistration(pin) == nil)
		assert.Equal(t, m.ValidateLogin(pin) == nil, m.ValidateLogin(pin) == nil)
	}
	// validation never touches the collaborators
	assert.Zero(t, enc.encryptCalls)
	assert.Zero(t, pep.keyCalls)
	assert.Zero(t, pep.ivCalls)
}

func TestNewPinCodeManagerDefaultsSize(t *testing.T) {
	m := NewPinCodeManager(0, &encrypterSpy{}, &pepperSpy{})
	assert.Equal(t, DefaultPinCodeSize, m.PinCodeSize())
}

func TestEncrypt(t *testing.T) {
	m, enc, pep := newSpyManager()
	key, err := crypto.GeneratePepperKey()
	require.NoError(t, err)
	pep.keyReturnValue = key
	pep.ivReturnValue = []byte{}
	enc.encryptReturnValue = []byte{0xca, 0xfe}

	got, err := m.Encrypt(context.Background(), "123456")
	require.NoError(t, err)

	assert.Equal(t, models.EncryptedPinCode{0xca, 0xfe}, got)
	assert.Equal(t, 1, pep.keyCalls)
	assert.Equal(t, 1, pep.ivCalls)
	assert.Equal(t, 1, enc.encryptCalls)
	assert.Same(t, key, enc.encryptReceivedKey)
	assert.Equal(t, []byte("123456"), enc.encryptReceivedData)
	assert.Equal(t, []byte{}, enc.encryptReceivedIV)
}

func TestEncryptPropagatesCollaboratorErrorsUnchanged(t *testing.T) {
	keyErr := errors.New("keychain locked")
	ivErr := errors.New("iv unavailable")
	encErr := errors.New("secure enclave failure")

	m, _, pep := newSpyManager()
	pep.keyError = keyErr
	_, err := m.Encrypt(context.Background(), "123456")
	assert.Same(t, keyErr, err)

	m, enc, pep := newSpyManager()
	pep.ivError = ivErr
	_, err = m.Encrypt(context.Background(), "123456")
	assert.Same(t, ivErr, err)
	assert.Zero(t, enc.encryptCalls)

	m, enc, _ = newSpyManager()
	enc.encryptError = encErr
	_, err = m.Encrypt(context.Background(), "123456")
	assert.Same(t, encErr, err)
	assert.False(t, IsDecryptError(err))
}

func TestEncryptRejectsInvalidEncoding(t *testing.T) {
	m, enc, _ := newSpyManager()
	_, err := m.Encrypt(context.Background(), models.PinCode([]byte{0xff}))
	assert.ErrorIs(t, err, ErrInvalidEncoding)
	assert.Zero(t, enc.encryptCalls)
}

func TestDecryptWrapsErrors(t *testing.T) {
	boom := errors.New("keychain locked")
	m, _, pep := newSpyManager()
	pep.keyError = boom

	_, err := m.Decrypt(context.Background(), models.EncryptedPinCode{1})
	assert.ErrorIs(t, err, ErrPinCodeDecrypt)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, KindCrypto, Kind(err))

	_, err = m.Decrypt(context.Background(), nil)
	assert.ErrorIs(t, err, ErrPinCodeDecrypt)
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	for _, alg := range []crypto.Algorithm{crypto.AlgorithmAESGCM, crypto.AlgorithmChaCha20Poly1305} {
		m := newRealManager(t, alg)
		for _, pin := range []models.PinCode{"123456", "12", "aA#$_0", "12345678901234567890", "äöü€"} {
			ct, err := m.Encrypt(ctx, pin)
			require.NoError(t, err)

			got, err := m.Decrypt(ctx, ct)
			require.NoError(t, err)
			assert.True(t, string(pin) == string(got), "round trip of %d-char pin", pin.Len())
		}
	}
}

func TestVerify(t *testing.T) {
	ctx := context.Background()
	m := newRealManager(t, crypto.AlgorithmAESGCM)

	ct, err := m.Encrypt(ctx, "123456")
	require.NoError(t, err)

	assert.NoError(t, m.Verify(ctx, "123456", ct))
	assert.ErrorIs(t, m.Verify(ctx, "654321", ct), ErrPinCodeMismatch)
	assert.ErrorIs(t, m.Verify(ctx, "1234567", ct), ErrPinCodeMismatch)

	ct[0] ^= 0xff
	err = m.Verify(ctx, "123456", ct)
	assert.ErrorIs(t, err, ErrPinCodeDecrypt)
	assert.ErrorIs(t, err, crypto.ErrDecryptionFailed)
}

func TestConcurrentEncryptDecrypt(t *testing.T) {
	ctx := context.Background()
	m := newRealManager(t, crypto.AlgorithmAESGCM)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pin := models.PinCode(strings.Repeat("7", 6+i))
			ct, err := m.Encrypt(ctx, pin)
			if !assert.NoError(t, err) {
				return
			}
			assert.NoError(t, m.Verify(ctx, pin, ct))
		}(i)
	}
	wg.Wait()
}

func TestManagerReadsMaterialOncePerOperation(t *testing.T) {
	ctx := context.Background()
	m, err := pepper.NewMaterial(crypto.AlgorithmAESGCM)
	require.NoError(t, err)
	spy := &materialSpy{material: m}
	enc, err := crypto.NewDerivedKeyEncrypter(crypto.AlgorithmAESGCM)
	require.NoError(t, err)
	manager := NewPinCodeManager(pinCodeSize, enc, spy)

	ct, err := manager.Encrypt(ctx, "123456")
	require.NoError(t, err)
	assert.Equal(t, 1, spy.materialCalls)

	require.NoError(t, manager.Verify(ctx, "123456", ct))
	assert.Equal(t, 2, spy.materialCalls)
	assert.Zero(t, spy.keyCalls)
	assert.Zero(t, spy.ivCalls)
}
