package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"

	"github.com/oxygenesis/signing-node/internal/domain"
)

var ed25519GenerateKey = ed25519.GenerateKey

type Ed25519Signer struct {
	priv ed25519.PrivateKey
}

func NewEd25519Signer() (*Ed25519Signer, error) {
	_, priv, err := ed25519GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &Ed25519Signer{priv: priv}, nil
}

// Ed25519FromSecret accepts a 32-byte seed or a 64-byte private key.
func Ed25519FromSecret(raw []byte) (*Ed25519Signer, error) {
	switch len(raw) {
	case ed25519.SeedSize:
		return &Ed25519Signer{priv: ed25519.NewKeyFromSeed(raw)}, nil
	case ed25519.PrivateKeySize:
		return &Ed25519Signer{priv: append(ed25519.PrivateKey(nil), raw...)}, nil
	default:
		return nil, errors.New("invalid ed25519 private key length")
	}
}

func (s *Ed25519Signer) Sign(payload []byte) ([]byte, error) {
	return ed25519.Sign(s.priv, payload), nil
}

func (s *Ed25519Signer) Verify(payload, signature []byte) bool {
	if len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(s.priv.Public().(ed25519.PublicKey), payload, signature)
}

func (s *Ed25519Signer) PublicKey() []byte {
	return append([]byte(nil), s.priv.Public().(ed25519.PublicKey)...)
}

func (s *Ed25519Signer) Secret() []byte        { return append([]byte(nil), s.priv.Seed()...) }
func (s *Ed25519Signer) AlgorithmName() string { return SchemeEd25519 }

var _ domain.Signer = (*Ed25519Signer)(nil)
