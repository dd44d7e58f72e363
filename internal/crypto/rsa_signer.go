package crypto

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"

	"github.com/oxygenesis/signing-node/internal/domain"
)

var rsaGenerateKey = rsa.GenerateKey

// RSASigner signs with PKCS#1 v1.5 over SHA-256. The public key is PKCS#1 DER.
type RSASigner struct {
	priv *rsa.PrivateKey
	pub  []byte
}

func NewRSASigner(bits int) (*RSASigner, error) {
	k, err := rsaGenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, err
	}
	return &RSASigner{priv: k, pub: x509.MarshalPKCS1PublicKey(&k.PublicKey)}, nil
}

// RSAFromSecret parses a PKCS#1 DER private key.
func RSAFromSecret(der []byte) (*RSASigner, error) {
	k, err := x509.ParsePKCS1PrivateKey(der)
	if err != nil {
		return nil, err
	}
	return &RSASigner{priv: k, pub: x509.MarshalPKCS1PublicKey(&k.PublicKey)}, nil
}

func (s *RSASigner) Sign(payload []byte) ([]byte, error) {
	h := sha256.Sum256(payload)
	return rsa.SignPKCS1v15(rand.Reader, s.priv, crypto.SHA256, h[:])
}
func (s *RSASigner) Verify(payload, signature []byte) bool {
	h := sha256.Sum256(payload)
	return rsa.VerifyPKCS1v15(&s.priv.PublicKey, crypto.SHA256, h[:], signature) == nil
}
func (s *RSASigner) PublicKey() []byte     { return append([]byte(nil), s.pub...) }
func (s *RSASigner) Secret() []byte        { return x509.MarshalPKCS1PrivateKey(s.priv) }
func (s *RSASigner) AlgorithmName() string { return SchemeRSA }

var _ domain.Signer = (*RSASigner)(nil)
