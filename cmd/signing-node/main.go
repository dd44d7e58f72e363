package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oxygenesis/signing-node/internal/app"
	"github.com/oxygenesis/signing-node/internal/auth"
	"github.com/oxygenesis/signing-node/internal/config"
	"github.com/oxygenesis/signing-node/internal/crypto"
	"github.com/oxygenesis/signing-node/internal/domain"
	"github.com/oxygenesis/signing-node/internal/keystore"
)

// test-stubbables
var (
	runNode             = defaultRunNode
	osExit              = os.Exit
	stdout    io.Writer = os.Stdout
	notifyCtx           = signal.NotifyContext
)

func defaultRunNode(ctx context.Context, cfg config.Config, test bool) error {
	n, err := app.NewNode(ctx, cfg)
	if err != nil {
		return err
	}
	defer n.Close()
	if test {
		return nil
	}
	return n.Run(ctx)
}

func main() {
	var (
		mode    string
		test    bool
		account string
		secret  string
		ttl     time.Duration
	)
	flag.StringVar(&mode, "mode", "node", "mode: node, keygen, token")
	flag.BoolVar(&test, "t", false, "test mode: build the node only")
	flag.StringVar(&account, "account", "", "token mode: account id (hex)")
	flag.StringVar(&secret, "secret", "", "keygen mode: import this hex secret instead of generating")
	flag.DurationVar(&ttl, "ttl", 24*time.Hour, "token mode: token lifetime")

	cfg, err := config.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Printf("fatal: %v", err)
		osExit(2)
		return
	}

	ctx, stop := notifyCtx(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch mode {
	case "node":
		err = runNode(ctx, cfg, test)
	case "keygen":
		err = keygen(cfg, secret)
	case "token":
		err = issueToken(cfg, account, ttl)
	default:
		err = errors.New("unsupported mode")
	}

	if err != nil {
		log.Printf("fatal: %v", err)
		osExit(1)
	}
}

// keygen stores a signing key in the local key store and prints it.
func keygen(cfg config.Config, secretHex string) error {
	scheme, err := crypto.SchemeByName(cfg.Scheme)
	if err != nil {
		return err
	}
	ks, err := keystore.OpenLocal(cfg.KeystorePath, scheme)
	if err != nil {
		return err
	}

	var pub []byte
	if secretHex == "" {
		if pub, err = ks.Generate(domain.KeyTypeSign); err != nil {
			return err
		}
	} else {
		raw, err := hex.DecodeString(secretHex)
		if err != nil {
			return fmt.Errorf("%w: secret: %v", domain.ErrInvalidInput, err)
		}
		s, err := scheme.FromSecret(raw)
		if err != nil {
			return err
		}
		if err := ks.Insert(domain.KeyTypeSign, s); err != nil {
			return err
		}
		pub = s.PublicKey()
	}

	fmt.Fprintf(stdout, "scheme=%s public=%s account=%s\n", scheme.Name(), hex.EncodeToString(pub), scheme.AccountID(pub).Hex())
	return nil
}

// issueToken prints a bearer token for account.
func issueToken(cfg config.Config, account string, ttl time.Duration) error {
	who, err := domain.ParseAccountID(account)
	if err != nil {
		return err
	}
	authn, err := auth.NewAuthenticator([]byte(cfg.TokenSecret), cfg.TokenIssuer)
	if err != nil {
		return err
	}
	token, err := authn.Issue(who, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, token)
	return nil
}
