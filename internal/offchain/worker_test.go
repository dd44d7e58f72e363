package offchain

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"log"
	"strings"
	"sync"
	"testing"

	"github.com/oxygenesis/signing-node/internal/crypto"
	"github.com/oxygenesis/signing-node/internal/domain"
	"github.com/oxygenesis/signing-node/internal/keystore"
)

// countingKeyStore wraps a key store and records how it is used.
type countingKeyStore struct {
	domain.KeyStore
	mu          sync.Mutex
	signCalls   int
	listErr     error
	declineSign bool
}

func (c *countingKeyStore) PublicKeys(ctx context.Context, kt domain.KeyTypeID) ([][]byte, error) {
	if c.listErr != nil {
		return nil, c.listErr
	}
	return c.KeyStore.PublicKeys(ctx, kt)
}

func (c *countingKeyStore) Sign(ctx context.Context, kt domain.KeyTypeID, pub, msg []byte) ([]byte, error) {
	c.mu.Lock()
	c.signCalls++
	c.mu.Unlock()
	if c.declineSign {
		return nil, errors.New("declined")
	}
	return c.KeyStore.Sign(ctx, kt, pub, msg)
}

type logLines struct{ buf bytes.Buffer }

func (l *logLines) logger() *log.Logger { return log.New(&l.buf, "", 0) }

func (l *logLines) lines() []string {
	raw := strings.TrimSpace(l.buf.String())
	if raw == "" {
		return nil
	}
	return strings.Split(raw, "\n")
}

func (l *logLines) level(level string) []string {
	var out []string
	for _, line := range l.lines() {
		if strings.HasPrefix(line, level+" ") {
			out = append(out, line)
		}
	}
	return out
}

type fixture struct {
	mem    *keystore.Memory
	ks     *countingKeyStore
	logs   *logLines
	worker *Worker
}

func newFixture(keys int) *fixture {
	mem := keystore.NewMemory(crypto.Ed25519Scheme{})
	for i := 0; i < keys; i++ {
		if _, err := mem.Generate(domain.KeyTypeSign); err != nil {
			panic(err)
		}
	}
	ks := &countingKeyStore{KeyStore: mem}
	logs := &logLines{}
	w := NewWorker(NewSigner(ks, crypto.Ed25519Scheme{}, domain.KeyTypeSign), logs.logger())
	return &fixture{mem: mem, ks: ks, logs: logs, worker: w}
}

func TestWorker_NoAccount(t *testing.T) {
	f := newFixture(0)
	f.worker.OffchainWorker(context.Background(), 1)

	if f.ks.signCalls != 0 {
		t.Fatalf("sign calls=%d", f.ks.signCalls)
	}
	errs := f.logs.level("ERROR")
	if len(errs) != 1 || !strings.Contains(errs[0], "no account available") {
		t.Fatalf("error lines=%q", errs)
	}
}

func TestWorker_MoreThanOneAccount(t *testing.T) {
	f := newFixture(2)
	f.worker.OffchainWorker(context.Background(), 1)

	if f.ks.signCalls != 0 {
		t.Fatalf("sign calls=%d", f.ks.signCalls)
	}
	errs := f.logs.level("ERROR")
	if len(errs) != 1 || !strings.Contains(errs[0], "more than one account, expected only one") {
		t.Fatalf("error lines=%q", errs)
	}
	if strings.Contains(errs[0], "no account available") {
		t.Fatal("multiple-account message must differ from the empty case")
	}
	if len(f.logs.level("INFO")) != 0 {
		t.Fatal("unexpected info line")
	}
}

func TestWorker_SingleAccountSigns(t *testing.T) {
	f := newFixture(1)
	f.worker.OffchainWorker(context.Background(), 7)

	infos := f.logs.level("INFO")
	if len(infos) != 1 {
		t.Fatalf("info lines=%q", f.logs.lines())
	}
	if len(f.logs.level("ERROR")) != 0 {
		t.Fatalf("unexpected errors: %q", f.logs.lines())
	}
	if f.ks.signCalls != 1 {
		t.Fatalf("sign calls=%d", f.ks.signCalls)
	}

	keys, _ := f.mem.PublicKeys(context.Background(), domain.KeyTypeSign)
	pub := keys[0]
	line := infos[0]
	if !strings.Contains(line, "block=7") || !strings.Contains(line, "account="+hex.EncodeToString(pub)) {
		t.Fatalf("info line lacks account hex: %q", line)
	}
	sigHex := line[strings.Index(line, "signature=")+len("signature="):]
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		t.Fatalf("signature not hex: %v", err)
	}
	if !ed25519.Verify(pub, DefaultMessage, sig) {
		t.Fatal("logged signature does not verify over some_message")
	}
}

func TestWorker_SignDeclined(t *testing.T) {
	f := newFixture(1)
	f.ks.declineSign = true
	f.worker.OffchainWorker(context.Background(), 1)

	errs := f.logs.level("ERROR")
	if len(errs) != 1 || !strings.Contains(errs[0], "couldn't sign") {
		t.Fatalf("error lines=%q", errs)
	}
	for _, other := range []string{"no account available", "more than one account"} {
		if strings.Contains(errs[0], other) {
			t.Fatalf("declined message overlaps %q", other)
		}
	}
	if len(f.logs.level("INFO")) != 0 {
		t.Fatal("unexpected info line")
	}
}

func TestWorker_LockedAccountCannotSign(t *testing.T) {
	f := newFixture(1)
	keys, _ := f.mem.PublicKeys(context.Background(), domain.KeyTypeSign)
	_ = f.mem.Lock(domain.KeyTypeSign, keys[0])
	f.worker.OffchainWorker(context.Background(), 1)

	if f.ks.signCalls != 0 {
		t.Fatalf("sign calls=%d", f.ks.signCalls)
	}
	errs := f.logs.level("ERROR")
	if len(errs) != 1 || !strings.Contains(errs[0], "cannot sign") {
		t.Fatalf("error lines=%q", errs)
	}
}

func TestWorker_ListError(t *testing.T) {
	f := newFixture(1)
	f.ks.listErr = errors.New("keystore offline")
	f.worker.OffchainWorker(context.Background(), 1)

	errs := f.logs.level("ERROR")
	if len(errs) != 1 || !strings.Contains(errs[0], "keystore offline") {
		t.Fatalf("error lines=%q", errs)
	}
}

func TestWorker_ReevaluatesEachBlock(t *testing.T) {
	f := newFixture(2)
	ctx := context.Background()
	f.worker.OffchainWorker(ctx, 1)
	if len(f.logs.level("INFO")) != 0 || len(f.logs.level("ERROR")) != 1 {
		t.Fatalf("block 1: %q", f.logs.lines())
	}

	keys, _ := f.mem.PublicKeys(ctx, domain.KeyTypeSign)
	if err := f.mem.Remove(domain.KeyTypeSign, keys[1]); err != nil {
		t.Fatal(err)
	}
	f.worker.OffchainWorker(ctx, 2)
	if len(f.logs.level("INFO")) != 1 || len(f.logs.level("ERROR")) != 1 {
		t.Fatalf("block 2: %q", f.logs.lines())
	}
}

func TestWorker_DebugAndMessageOptions(t *testing.T) {
	mem := keystore.NewMemory(crypto.Ed25519Scheme{})
	pub, _ := mem.Generate(domain.KeyTypeSign)
	logs := &logLines{}
	w := NewWorker(NewSigner(mem, crypto.Ed25519Scheme{}, domain.KeyTypeSign), logs.logger(),
		WithDebug(true), WithMessage([]byte("other")))
	w.OffchainWorker(context.Background(), 3)

	if len(logs.level("DEBUG")) != 1 {
		t.Fatalf("debug lines=%q", logs.lines())
	}
	line := logs.level("INFO")[0]
	sig, _ := hex.DecodeString(line[strings.Index(line, "signature=")+len("signature="):])
	if !ed25519.Verify(pub, []byte("other"), sig) {
		t.Fatal("custom message not signed")
	}
}

func TestWorker_OtherKeyTypesIgnored(t *testing.T) {
	f := newFixture(1)
	if _, err := f.mem.Generate(domain.KeyTypeID{'b', 'a', 'b', 'e'}); err != nil {
		t.Fatal(err)
	}
	f.worker.OffchainWorker(context.Background(), 1)
	if len(f.logs.level("INFO")) != 1 {
		t.Fatalf("lines=%q", f.logs.lines())
	}
}
