package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPEM(t *testing.T) []byte {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	pemData := testPEM(t)

	blob, err := EncryptPEM(pemData, "hunter2")
	require.NoError(t, err)
	assert.NotContains(t, string(blob), "PRIVATE KEY")

	out, err := DecryptPEM(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, pemData, out)
}

func TestDecryptWrongPasswordFails(t *testing.T) {
	blob, err := EncryptPEM(testPEM(t), "correct")
	require.NoError(t, err)

	_, err = DecryptPEM(blob, "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decryption failed")
}

func TestEncryptRejectsNonKeyInput(t *testing.T) {
	_, err := EncryptPEM([]byte("just some text"), "pw")
	require.Error(t, err)
}

func TestEncryptRejectsEmptyPassword(t *testing.T) {
	_, err := EncryptPEM(testPEM(t), "")
	require.Error(t, err)
}

func TestLoadKeyResolutionOrder(t *testing.T) {
	pemData := testPEM(t)
	dir := t.TempDir()

	// Inline PEM wins.
	got, err := LoadKey(KeyConfig{PrivateKeyPEM: string(pemData)})
	require.NoError(t, err)
	assert.Equal(t, string(pemData), got)

	// Plaintext file.
	plainPath := filepath.Join(dir, "key.pem")
	require.NoError(t, os.WriteFile(plainPath, pemData, 0o600))
	got, err = LoadKey(KeyConfig{PrivateKeyPath: plainPath})
	require.NoError(t, err)
	assert.Equal(t, string(pemData), got)

	// Encrypted file.
	blob, err := EncryptPEM(pemData, "pw")
	require.NoError(t, err)
	encPath := filepath.Join(dir, "key.enc.json")
	require.NoError(t, os.WriteFile(encPath, blob, 0o600))
	got, err = LoadKey(KeyConfig{EncryptedKeyPath: encPath, KeyPassword: "pw"})
	require.NoError(t, err)
	assert.Equal(t, string(pemData), got)

	// Nothing configured.
	_, err = LoadKey(KeyConfig{})
	require.Error(t, err)
}
