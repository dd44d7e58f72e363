// Package offchain runs per-block background work against the local key store.
package offchain

import (
	"bytes"
	"context"
	"iter"

	"github.com/oxygenesis/signing-node/internal/domain"
)

// Account is a signing identity found in the key store.
type Account struct {
	Index  int
	ID     domain.AccountID
	Public []byte
}

// SignedMessage pairs an account with its signature over a message.
type SignedMessage struct {
	Account   Account
	Signature []byte
}

// Signer is a view over the key store restricted to one key type and,
// optionally, to an explicit set of public keys.
type Signer struct {
	keys     domain.KeyStore
	scheme   domain.SigningScheme
	keyType  domain.KeyTypeID
	filter   [][]byte
	filtered bool
}

func NewSigner(keys domain.KeyStore, scheme domain.SigningScheme, keyType domain.KeyTypeID) *Signer {
	return &Signer{keys: keys, scheme: scheme, keyType: keyType}
}

// KeystoreAccounts lists every key of the signer's key type. The key store
// is queried each time the sequence is iterated. An enumeration failure is
// yielded once as an error.
func (s *Signer) KeystoreAccounts(ctx context.Context) iter.Seq2[Account, error] {
	return func(yield func(Account, error) bool) {
		publics, err := s.keys.PublicKeys(ctx, s.keyType)
		if err != nil {
			yield(Account{}, err)
			return
		}
		for i, p := range publics {
			if !yield(s.account(i, p), nil) {
				return
			}
		}
	}
}

// AllAccounts drops any filter.
func (s *Signer) AllAccounts() *Signer {
	cp := *s
	cp.filter, cp.filtered = nil, false
	return &cp
}

// WithFilter restricts the signer to the given public keys.
func (s *Signer) WithFilter(publics [][]byte) *Signer {
	cp := *s
	cp.filter = make([][]byte, 0, len(publics))
	for _, p := range publics {
		cp.filter = append(cp.filter, append([]byte(nil), p...))
	}
	cp.filtered = true
	return &cp
}

// CanSign reports whether the restricted set is non-empty and the key store
// accepts every key in it.
func (s *Signer) CanSign(ctx context.Context) bool {
	accounts, err := s.accounts(ctx)
	if err != nil || len(accounts) == 0 {
		return false
	}
	publics := make([][]byte, 0, len(accounts))
	for _, a := range accounts {
		publics = append(publics, a.Public)
	}
	return s.keys.HasKeys(ctx, s.keyType, publics)
}

// SignMessage signs msg with every account of the view. Accounts the key
// store declines to sign with are left out, so the result may be empty.
func (s *Signer) SignMessage(ctx context.Context, msg []byte) []SignedMessage {
	accounts, err := s.accounts(ctx)
	if err != nil {
		return nil
	}
	out := make([]SignedMessage, 0, len(accounts))
	for _, a := range accounts {
		sig, err := s.keys.Sign(ctx, s.keyType, a.Public, msg)
		if err != nil || len(sig) == 0 {
			continue
		}
		out = append(out, SignedMessage{Account: a, Signature: sig})
	}
	return out
}

func (s *Signer) accounts(ctx context.Context) ([]Account, error) {
	var out []Account
	for a, err := range s.KeystoreAccounts(ctx) {
		if err != nil {
			return nil, err
		}
		if s.filtered && !containsKey(s.filter, a.Public) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *Signer) account(index int, public []byte) Account {
	return Account{Index: index, ID: s.scheme.AccountID(public), Public: public}
}

func containsKey(list [][]byte, key []byte) bool {
	for _, k := range list {
		if bytes.Equal(k, key) {
			return true
		}
	}
	return false
}
