package keystore

import (
	"bytes"
	"context"
	"sync"

	"github.com/oxygenesis/signing-node/internal/domain"
)

type entry struct {
	signer domain.Signer
	locked bool
}

// Memory is an in-process key store. Keys are enumerated in insertion order.
type Memory struct {
	mu     sync.RWMutex
	scheme domain.SigningScheme
	keys   map[domain.KeyTypeID][]*entry
}

func NewMemory(scheme domain.SigningScheme) *Memory {
	return &Memory{scheme: scheme, keys: make(map[domain.KeyTypeID][]*entry)}
}

// Generate creates a new key under keyType and returns its public key.
func (m *Memory) Generate(keyType domain.KeyTypeID) ([]byte, error) {
	s, err := m.scheme.Generate()
	if err != nil {
		return nil, err
	}
	if err := m.Insert(keyType, s); err != nil {
		return nil, err
	}
	return s.PublicKey(), nil
}

// Insert adds signer under keyType. Inserting an existing key is a no-op.
func (m *Memory) Insert(keyType domain.KeyTypeID, signer domain.Signer) error {
	if signer == nil {
		return domain.ErrInvalidInput
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.find(keyType, signer.PublicKey()) != nil {
		return nil
	}
	m.keys[keyType] = append(m.keys[keyType], &entry{signer: signer})
	return nil
}

func (m *Memory) Remove(keyType domain.KeyTypeID, public []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.keys[keyType]
	for i, e := range list {
		if bytes.Equal(e.signer.PublicKey(), public) {
			m.keys[keyType] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return domain.ErrKeyNotFound
}

// Lock keeps the key listed but refuses to sign with it.
func (m *Memory) Lock(keyType domain.KeyTypeID, public []byte) error {
	return m.setLocked(keyType, public, true)
}

func (m *Memory) Unlock(keyType domain.KeyTypeID, public []byte) error {
	return m.setLocked(keyType, public, false)
}

func (m *Memory) setLocked(keyType domain.KeyTypeID, public []byte, locked bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.find(keyType, public)
	if e == nil {
		return domain.ErrKeyNotFound
	}
	e.locked = locked
	return nil
}

func (m *Memory) PublicKeys(ctx context.Context, keyType domain.KeyTypeID) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([][]byte, 0, len(m.keys[keyType]))
	for _, e := range m.keys[keyType] {
		out = append(out, e.signer.PublicKey())
	}
	return out, nil
}

// HasKeys reports whether every public key is present and unlocked.
func (m *Memory) HasKeys(_ context.Context, keyType domain.KeyTypeID, publics [][]byte) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range publics {
		e := m.find(keyType, p)
		if e == nil || e.locked {
			return false
		}
	}
	return true
}

func (m *Memory) Sign(ctx context.Context, keyType domain.KeyTypeID, public, msg []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	e := m.find(keyType, public)
	if e == nil {
		m.mu.RUnlock()
		return nil, domain.ErrKeyNotFound
	}
	signer, locked := e.signer, e.locked
	m.mu.RUnlock()

	if locked {
		return nil, domain.ErrKeyLocked
	}
	return signer.Sign(msg)
}

// find must be called with m.mu held.
func (m *Memory) find(keyType domain.KeyTypeID, public []byte) *entry {
	for _, e := range m.keys[keyType] {
		if bytes.Equal(e.signer.PublicKey(), public) {
			return e
		}
	}
	return nil
}

var _ domain.KeyStore = (*Memory)(nil)
