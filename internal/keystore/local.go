package keystore

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/oxygenesis/signing-node/internal/domain"
)

// Local stores one key per file under a directory. File names are
// hex(key type) followed by hex(blake2b-256(public key)), which keeps them
// short for any scheme. The content is a JSON keyFile.
type Local struct {
	dir    string
	scheme domain.SigningScheme
}

type keyFile struct {
	Public string `json:"public"`
	Secret string `json:"secret"`
}

// OpenLocal creates dir when missing.
func OpenLocal(dir string, scheme domain.SigningScheme) (*Local, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("keystore path is required")
	}
	if scheme == nil {
		return nil, fmt.Errorf("signing scheme is required")
	}
	dir = filepath.Clean(dir)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create keystore dir: %w", err)
	}
	return &Local{dir: dir, scheme: scheme}, nil
}

func (l *Local) Generate(keyType domain.KeyTypeID) ([]byte, error) {
	s, err := l.scheme.Generate()
	if err != nil {
		return nil, err
	}
	if err := l.Insert(keyType, s); err != nil {
		return nil, err
	}
	return s.PublicKey(), nil
}

func (l *Local) Insert(keyType domain.KeyTypeID, signer domain.Signer) error {
	if signer == nil {
		return domain.ErrInvalidInput
	}
	content, err := json.Marshal(keyFile{
		Public: hex.EncodeToString(signer.PublicKey()),
		Secret: hex.EncodeToString(signer.Secret()),
	})
	if err != nil {
		return fmt.Errorf("encode key: %w", err)
	}
	path := l.path(keyType, signer.PublicKey())
	if err := os.WriteFile(path, content, 0o600); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}
	return nil
}

func (l *Local) Remove(keyType domain.KeyTypeID, public []byte) error {
	err := os.Remove(l.path(keyType, public))
	if errors.Is(err, fs.ErrNotExist) {
		return domain.ErrKeyNotFound
	}
	return err
}

func (l *Local) PublicKeys(ctx context.Context, keyType domain.KeyTypeID) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("read keystore dir: %w", err)
	}
	prefix := hex.EncodeToString(keyType[:])
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	out := make([][]byte, 0, len(names))
	for _, name := range names {
		kf, err := readKeyFile(filepath.Join(l.dir, name))
		if errors.Is(err, domain.ErrKeyNotFound) {
			continue // removed since ReadDir
		}
		if err != nil {
			return nil, err
		}
		public, err := hex.DecodeString(kf.Public)
		if err != nil || len(public) == 0 {
			return nil, fmt.Errorf("decode public key in %s: %w", name, domain.ErrInvalidInput)
		}
		out = append(out, public)
	}
	return out, nil
}

func (l *Local) HasKeys(_ context.Context, keyType domain.KeyTypeID, publics [][]byte) bool {
	for _, p := range publics {
		if _, err := os.Stat(l.path(keyType, p)); err != nil {
			return false
		}
	}
	return true
}

func (l *Local) Sign(ctx context.Context, keyType domain.KeyTypeID, public, msg []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	signer, err := l.load(keyType, public)
	if err != nil {
		return nil, err
	}
	return signer.Sign(msg)
}

func (l *Local) load(keyType domain.KeyTypeID, public []byte) (domain.Signer, error) {
	kf, err := readKeyFile(l.path(keyType, public))
	if err != nil {
		return nil, err
	}
	secret, err := hex.DecodeString(kf.Secret)
	if err != nil {
		return nil, fmt.Errorf("decode key secret: %w", err)
	}
	signer, err := l.scheme.FromSecret(secret)
	if err != nil {
		return nil, fmt.Errorf("parse key secret: %w", err)
	}
	if hex.EncodeToString(signer.PublicKey()) != hex.EncodeToString(public) {
		return nil, fmt.Errorf("key file does not match public key %x", public)
	}
	return signer, nil
}

func readKeyFile(path string) (keyFile, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return keyFile{}, domain.ErrKeyNotFound
	}
	if err != nil {
		return keyFile{}, fmt.Errorf("read key file: %w", err)
	}
	var kf keyFile
	if err := json.Unmarshal(raw, &kf); err != nil {
		return keyFile{}, fmt.Errorf("decode key file: %w", err)
	}
	return kf, nil
}

func (l *Local) path(keyType domain.KeyTypeID, public []byte) string {
	sum := blake2b.Sum256(public)
	return filepath.Join(l.dir, hex.EncodeToString(keyType[:])+hex.EncodeToString(sum[:]))
}

var _ domain.KeyStore = (*Local)(nil)
