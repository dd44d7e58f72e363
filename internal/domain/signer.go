package domain

import "context"

// KeyTypeID namespaces keys inside a key store.
type KeyTypeID [4]byte

// KeyTypeSign is the namespace of the offchain signing identity.
var KeyTypeSign = KeyTypeID{'s', 'i', 'g', 'n'}

func (k KeyTypeID) String() string { return string(k[:]) }

// Signer is the cryptographic primitive behind one key pair.
type Signer interface {
	Sign(payload []byte) ([]byte, error)
	Verify(payload, signature []byte) bool
	PublicKey() []byte
	Secret() []byte
	AlgorithmName() string // "ed25519", "ecdsa" or "rsa"
}

// SigningScheme fixes the public key and signature types of a node.
// It is chosen once at configuration time.
type SigningScheme interface {
	Name() string
	Generate() (Signer, error)
	FromSecret(secret []byte) (Signer, error)
	AccountID(public []byte) AccountID
}

// KeyStore holds private key material and signs on behalf of its keys.
// It never exposes secrets through this interface.
type KeyStore interface {
	PublicKeys(ctx context.Context, keyType KeyTypeID) ([][]byte, error)
	HasKeys(ctx context.Context, keyType KeyTypeID, publics [][]byte) bool
	Sign(ctx context.Context, keyType KeyTypeID, public, msg []byte) ([]byte, error)
}
