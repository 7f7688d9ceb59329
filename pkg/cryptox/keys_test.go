package cryptox

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateSigningKey(t *testing.T) {
	for _, alg := range []string{KeyRS256, KeyES256, KeyEdDSA} {
		t.Run(alg, func(t *testing.T) {
			t.Parallel()

			pemBytes, err := GenerateSigningKey(alg)
			require.NoError(t, err)

			signer, err := ParsePrivateKeyPEM(pemBytes)
			require.NoError(t, err)

			pubPEM, err := PublicKeyPEM(signer.Public())
			require.NoError(t, err)

			pub, err := ParsePublicKeyPEM(pubPEM)
			require.NoError(t, err)
			eq, ok := pub.(interface{ Equal(crypto.PublicKey) bool })
			require.True(t, ok, "%T has no Equal method", pub)
			require.True(t, eq.Equal(signer.Public()))
		})
	}
}

func TestGenerateSigningKey_Unsupported(t *testing.T) {
	_, err := GenerateSigningKey("HS256")
	require.Error(t, err)
}

func TestParsePrivateKeyPEM_PKCS1(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	data := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	signer, err := ParsePrivateKeyPEM(data)
	require.NoError(t, err)
	require.True(t, key.PublicKey.Equal(signer.Public()))
}

func TestParsePrivateKeyPEM_Invalid(t *testing.T) {
	_, err := ParsePrivateKeyPEM([]byte("not pem"))
	require.Error(t, err)

	_, err = ParsePrivateKeyPEM(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte{1}}))
	require.Error(t, err)
}
