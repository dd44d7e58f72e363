package offchain

import (
	"context"
	"encoding/hex"
	"iter"
	"log"
)

// DefaultMessage is the payload signed on every block.
var DefaultMessage = []byte("some_message")

const (
	levelDebug = "DEBUG"
	levelInfo  = "INFO"
	levelError = "ERROR"
)

// Worker signs a fixed message once per block with the single account
// registered under its key type.
type Worker struct {
	signer  *Signer
	message []byte
	logger  *log.Logger
	debug   bool
}

type WorkerOption func(*Worker)

func WithMessage(msg []byte) WorkerOption {
	return func(w *Worker) { w.message = append([]byte(nil), msg...) }
}

func WithDebug(enabled bool) WorkerOption {
	return func(w *Worker) { w.debug = enabled }
}

func NewWorker(signer *Signer, logger *log.Logger, opts ...WorkerOption) *Worker {
	if logger == nil {
		logger = log.Default()
	}
	w := &Worker{signer: signer, message: DefaultMessage, logger: logger}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// OffchainWorker runs one block's work. Every outcome is reported through
// the logger only; nothing is returned and nothing is retried.
func (w *Worker) OffchainWorker(ctx context.Context, block uint64) {
	w.logf(levelDebug, block, "starting offchain worker to sign a message")

	next, stop := iter.Pull2(w.signer.KeystoreAccounts(ctx))
	defer stop()

	account, err, ok := next()
	switch {
	case !ok:
		w.logf(levelError, block, "no account available")
		return
	case err != nil:
		w.logf(levelError, block, "couldn't list accounts: %v", err)
		return
	}
	if _, _, more := next(); more {
		w.logf(levelError, block, "more than one account, expected only one")
		return
	}
	stop()

	signer := w.signer.AllAccounts().WithFilter([][]byte{account.Public})
	if !signer.CanSign(ctx) {
		w.logf(levelError, block, "account %s cannot sign", hex.EncodeToString(account.ID))
		return
	}

	signed := signer.SignMessage(ctx, w.message)
	if len(signed) == 0 {
		w.logf(levelError, block, "couldn't sign")
		return
	}
	last := signed[len(signed)-1]
	w.logf(levelInfo, block, "account signed: account=%s signature=%s",
		hex.EncodeToString(last.Account.ID), hex.EncodeToString(last.Signature))
}

func (w *Worker) logf(level string, block uint64, format string, args ...any) {
	if level == levelDebug && !w.debug {
		return
	}
	w.logger.Printf("%s offchain block=%d: "+format, append([]any{level, block}, args...)...)
}
