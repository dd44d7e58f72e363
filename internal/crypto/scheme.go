package crypto

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/oxygenesis/signing-node/internal/domain"
)

const (
	SchemeEd25519 = "ed25519"
	SchemeECDSA   = "ecdsa"
	SchemeRSA     = "rsa"

	defaultRSABits = 2048
)

// SchemeByName returns the signing scheme registered under name.
func SchemeByName(name string) (domain.SigningScheme, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", SchemeEd25519:
		return Ed25519Scheme{}, nil
	case SchemeECDSA:
		return ECDSAScheme{}, nil
	case SchemeRSA:
		return RSAScheme{Bits: defaultRSABits}, nil
	default:
		return nil, fmt.Errorf("%w: unknown signing scheme %q", domain.ErrInvalidInput, name)
	}
}

// Ed25519Scheme uses the raw public key as the account id.
type Ed25519Scheme struct{}

func (Ed25519Scheme) Name() string { return SchemeEd25519 }
func (Ed25519Scheme) Generate() (domain.Signer, error) {
	return NewEd25519Signer()
}
func (Ed25519Scheme) FromSecret(secret []byte) (domain.Signer, error) {
	return Ed25519FromSecret(secret)
}
func (Ed25519Scheme) AccountID(public []byte) domain.AccountID {
	return append(domain.AccountID(nil), public...)
}

type ECDSAScheme struct{}

func (ECDSAScheme) Name() string                     { return SchemeECDSA }
func (ECDSAScheme) Generate() (domain.Signer, error) { return NewECDSASigner() }
func (ECDSAScheme) FromSecret(secret []byte) (domain.Signer, error) {
	return ECDSAFromSecret(secret)
}
func (ECDSAScheme) AccountID(public []byte) domain.AccountID { return hashedAccountID(public) }

type RSAScheme struct{ Bits int }

func (RSAScheme) Name() string { return SchemeRSA }
func (s RSAScheme) Generate() (domain.Signer, error) {
	bits := s.Bits
	if bits == 0 {
		bits = defaultRSABits
	}
	return NewRSASigner(bits)
}
func (RSAScheme) FromSecret(secret []byte) (domain.Signer, error) {
	return RSAFromSecret(secret)
}
func (RSAScheme) AccountID(public []byte) domain.AccountID { return hashedAccountID(public) }

// hashedAccountID is used for keys longer than 32 bytes.
func hashedAccountID(public []byte) domain.AccountID {
	sum := blake2b.Sum256(public)
	return domain.AccountID(sum[:])
}
