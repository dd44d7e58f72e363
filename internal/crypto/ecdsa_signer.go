package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"

	"github.com/oxygenesis/signing-node/internal/domain"
)

var ecdsaGenerateKey = ecdsa.GenerateKey
var marshalPKIXPublicKey = x509.MarshalPKIXPublicKey

// ECDSASigner signs SHA-256 digests on P-256. The public key is PKIX DER.
type ECDSASigner struct {
	priv *ecdsa.PrivateKey
	pub  []byte
}

func NewECDSASigner() (*ECDSASigner, error) {
	k, err := ecdsaGenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return newECDSASigner(k)
}

// ECDSAFromSecret parses a SEC 1 DER private key.
func ECDSAFromSecret(der []byte) (*ECDSASigner, error) {
	k, err := x509.ParseECPrivateKey(der)
	if err != nil {
		return nil, err
	}
	return newECDSASigner(k)
}

func newECDSASigner(k *ecdsa.PrivateKey) (*ECDSASigner, error) {
	der, err := marshalPKIXPublicKey(&k.PublicKey)
	if err != nil {
		return nil, err
	}
	return &ECDSASigner{priv: k, pub: der}, nil
}

func (s *ECDSASigner) Sign(payload []byte) ([]byte, error) {
	h := sha256.Sum256(payload)
	return ecdsa.SignASN1(rand.Reader, s.priv, h[:])
}
func (s *ECDSASigner) Verify(payload, signature []byte) bool {
	h := sha256.Sum256(payload)
	return ecdsa.VerifyASN1(&s.priv.PublicKey, h[:], signature)
}
func (s *ECDSASigner) PublicKey() []byte { return append([]byte(nil), s.pub...) }
func (s *ECDSASigner) Secret() []byte {
	der, err := x509.MarshalECPrivateKey(s.priv)
	if err != nil {
		return nil
	}
	return der
}
func (s *ECDSASigner) AlgorithmName() string { return SchemeECDSA }

var _ domain.Signer = (*ECDSASigner)(nil)
