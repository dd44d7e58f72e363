// Package app assembles a signing node from its configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/redis/go-redis/v9"

	httpApp "github.com/oxygenesis/signing-node/internal/app/http"
	"github.com/oxygenesis/signing-node/internal/auth"
	"github.com/oxygenesis/signing-node/internal/config"
	"github.com/oxygenesis/signing-node/internal/crypto"
	"github.com/oxygenesis/signing-node/internal/domain"
	"github.com/oxygenesis/signing-node/internal/events"
	"github.com/oxygenesis/signing-node/internal/keystore"
	"github.com/oxygenesis/signing-node/internal/offchain"
	"github.com/oxygenesis/signing-node/internal/service"
	"github.com/oxygenesis/signing-node/internal/storage"
	"github.com/oxygenesis/signing-node/pkg/id"
)

// Module names served by the node. Only ModuleSign runs the offchain worker.
const (
	ModuleSign     = "sign"
	ModuleTemplate = "template"
)

// test-stubbables
var (
	httpStart    = httpApp.Start
	newLogger    = func() *log.Logger { return log.New(os.Stderr, "", log.LstdFlags) }
	openPostgres = func(dsn string) (storage.Repository, io.Closer, error) {
		s, err := storage.OpenPostgres(dsn)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	}
)

// keyStore is the key store surface the node needs at startup.
type keyStore interface {
	domain.KeyStore
	Generate(keyType domain.KeyTypeID) ([]byte, error)
}

// Node is a fully wired signing node.
type Node struct {
	cfg       config.Config
	logger    *log.Logger
	scheme    domain.SigningScheme
	keys      keyStore
	bus       *events.Bus
	auth      *auth.Authenticator
	modules   *service.Registry
	worker    *offchain.Worker
	scheduler *offchain.Scheduler
	closers   []io.Closer
}

// NewNode builds every component named by cfg. On error, anything already
// opened is closed again.
func NewNode(ctx context.Context, cfg config.Config) (_ *Node, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	n := &Node{cfg: cfg, logger: newLogger()}
	defer func() {
		if err != nil {
			_ = n.Close()
		}
	}()

	if n.scheme, err = crypto.SchemeByName(cfg.Scheme); err != nil {
		return nil, err
	}
	if n.auth, err = auth.NewAuthenticator([]byte(cfg.TokenSecret), cfg.TokenIssuer); err != nil {
		return nil, err
	}

	var rdb *redis.Client
	if cfg.NeedsRedis() {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		n.closers = append(n.closers, rdb)
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
	}

	var sinks []events.Sink
	if cfg.RedisEvents {
		sinks = append(sinks, events.NewRedisPublisher(rdb, cfg.RedisPrefix))
	}
	n.bus = events.NewBus(id.UUIDv4{}, cfg.EventHistory, sinks...)

	repo, err := n.openRepository(rdb)
	if err != nil {
		return nil, err
	}
	n.modules = service.NewRegistry(
		service.New(ModuleSign, repo, n.bus),
		service.New(ModuleTemplate, repo, n.bus),
	)

	if n.keys, err = n.openKeystore(ctx); err != nil {
		return nil, err
	}

	signer := offchain.NewSigner(n.keys, n.scheme, domain.KeyTypeSign)
	n.worker = offchain.NewWorker(signer, n.logger, offchain.WithDebug(cfg.Verbose))
	n.scheduler = offchain.NewScheduler(cfg.BlockTime, n.logger, n.worker)
	return n, nil
}

func (n *Node) openRepository(rdb *redis.Client) (storage.Repository, error) {
	switch n.cfg.StateBackend {
	case config.BackendSQLite:
		s, err := storage.OpenSQLite(n.cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		n.closers = append(n.closers, s)
		return s, nil
	case config.BackendRedis:
		return storage.NewRedisStoreWithClient(rdb, n.cfg.RedisPrefix), nil
	case config.BackendPostgres:
		repo, closer, err := openPostgres(n.cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		n.closers = append(n.closers, closer)
		return repo, nil
	default:
		return storage.NewMemory(), nil
	}
}

func (n *Node) openKeystore(ctx context.Context) (keyStore, error) {
	var ks keyStore
	switch n.cfg.KeystoreBackend {
	case config.KeystoreLocal:
		local, err := keystore.OpenLocal(n.cfg.KeystorePath, n.scheme)
		if err != nil {
			return nil, err
		}
		ks = local
	default:
		ks = keystore.NewMemory(n.scheme)
	}

	if !n.cfg.DevKey {
		return ks, nil
	}
	existing, err := ks.PublicKeys(ctx, domain.KeyTypeSign)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return ks, nil
	}
	pub, err := ks.Generate(domain.KeyTypeSign)
	if err != nil {
		return nil, fmt.Errorf("dev key: %w", err)
	}
	n.logger.Printf("INFO dev key inserted: account=%s", n.scheme.AccountID(pub).Hex())
	return ks, nil
}

// Modules exposes the counter registry.
func (n *Node) Modules() *service.Registry { return n.modules }

func (n *Node) Events() *events.Bus { return n.bus }

func (n *Node) Auth() *auth.Authenticator { return n.auth }

func (n *Node) Worker() *offchain.Worker { return n.worker }

func (n *Node) Scheduler() *offchain.Scheduler { return n.scheduler }

// Run serves HTTP and produces blocks until ctx is cancelled or either
// side fails.
func (n *Node) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- n.scheduler.Run(ctx)
	}()
	go func() {
		errCh <- httpStart(ctx, n.cfg.HTTPAddr, httpApp.API{Modules: n.modules, Auth: n.auth, Events: n.bus}, false)
	}()

	first := <-errCh
	cancel()
	second := <-errCh
	return errors.Join(first, second)
}

// Close releases storage and Redis connections in reverse open order.
func (n *Node) Close() error {
	var errs []error
	for i := len(n.closers) - 1; i >= 0; i-- {
		if err := n.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	n.closers = nil
	return errors.Join(errs...)
}
