package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/oxygenesis/signing-node/internal/auth"
	"github.com/oxygenesis/signing-node/internal/config"
)

// withArgs swaps the command line and the stubbables for one main() call.
func withArgs(t *testing.T, args ...string) (out *bytes.Buffer, exited *int) {
	t.Helper()
	origRun, origExit, origOut := runNode, osExit, stdout
	origArgs, origCmd := os.Args, flag.CommandLine
	t.Cleanup(func() {
		runNode, osExit, stdout = origRun, origExit, origOut
		os.Args = origArgs
		flag.CommandLine = origCmd
	})

	flag.CommandLine = flag.NewFlagSet("app", flag.ContinueOnError)
	os.Args = append([]string{"app"}, args...)

	out = &bytes.Buffer{}
	stdout = out
	code := -1
	exited = &code
	osExit = func(c int) { code = c }
	return out, exited
}

func TestMain_Node_OK(t *testing.T) {
	_, exited := withArgs(t, "-mode=node", "-addr=:0", "-t")
	called := false
	runNode = func(ctx context.Context, cfg config.Config, test bool) error {
		if cfg.HTTPAddr != ":0" || !test {
			t.Fatalf("cfg=%+v test=%v", cfg, test)
		}
		called = true
		return nil
	}

	main()
	if !called {
		t.Fatal("expected runNode to be called")
	}
	if *exited != -1 {
		t.Fatalf("should not exit on OK path, code=%d", *exited)
	}
}

func TestMain_Node_Error_Exits(t *testing.T) {
	_, exited := withArgs(t, "-mode=node")
	runNode = func(context.Context, config.Config, bool) error { return errors.New("boom") }

	main()
	if *exited != 1 {
		t.Fatalf("exit code = %d", *exited)
	}
}

func TestMain_UnsupportedMode_Exits(t *testing.T) {
	_, exited := withArgs(t, "-mode=grpc")
	runNode = func(context.Context, config.Config, bool) error {
		t.Fatal("runNode must not be called for unsupported mode")
		return nil
	}

	main()
	if *exited != 1 {
		t.Fatalf("exit code = %d", *exited)
	}
}

func TestMain_BadFlag_Exits2(t *testing.T) {
	_, exited := withArgs(t, "-no-such-flag")
	main()
	if *exited != 2 {
		t.Fatalf("exit code = %d", *exited)
	}
}

func TestMain_DefaultRunNode_TestMode(t *testing.T) {
	t.Setenv("SIGNER_TOKEN_SECRET", "0123456789abcdef")
	_, exited := withArgs(t, "-t", "-dev")
	main()
	if *exited != -1 {
		t.Fatalf("exit code = %d", *exited)
	}
}

func TestMain_Keygen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "keys")
	out, exited := withArgs(t, "-mode=keygen", "-keystore-path="+dir)
	main()
	if *exited != -1 {
		t.Fatalf("exit code = %d", *exited)
	}
	if !strings.HasPrefix(out.String(), "scheme=ed25519 public=") {
		t.Fatalf("out = %q", out.String())
	}
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("keystore entries = %d err=%v", len(entries), err)
	}
}

func TestMain_Keygen_ImportSecret(t *testing.T) {
	dir := t.TempDir()
	secret := strings.Repeat("01", 32)
	out, exited := withArgs(t, "-mode=keygen", "-keystore-path="+dir, "-secret="+secret)
	main()
	if *exited != -1 {
		t.Fatalf("exit code = %d", *exited)
	}
	// The ed25519 account is the public key itself.
	fields := strings.Fields(out.String())
	if len(fields) != 3 || strings.TrimPrefix(fields[1], "public=") != strings.TrimPrefix(fields[2], "account=") {
		t.Fatalf("out = %q", out.String())
	}

	_, exited = withArgs(t, "-mode=keygen", "-keystore-path="+dir, "-secret=zz")
	main()
	if *exited != 1 {
		t.Fatalf("bad secret exit code = %d", *exited)
	}
}

func TestMain_Token(t *testing.T) {
	t.Setenv("SIGNER_TOKEN_SECRET", "0123456789abcdef")
	out, exited := withArgs(t, "-mode=token", "-account=0xa1b2")
	main()
	if *exited != -1 {
		t.Fatalf("exit code = %d", *exited)
	}

	authn, err := auth.NewAuthenticator([]byte("0123456789abcdef"), "signing-node")
	if err != nil {
		t.Fatal(err)
	}
	who, err := authn.Verify(strings.TrimSpace(out.String()))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if who.Hex() != "a1b2" {
		t.Fatalf("who = %s", who.Hex())
	}
}

func TestMain_Token_Errors(t *testing.T) {
	t.Setenv("SIGNER_TOKEN_SECRET", "")
	_, exited := withArgs(t, "-mode=token", "-account=0xa1")
	main()
	if *exited != 1 {
		t.Fatalf("missing secret exit code = %d", *exited)
	}

	t.Setenv("SIGNER_TOKEN_SECRET", "0123456789abcdef")
	_, exited = withArgs(t, "-mode=token")
	main()
	if *exited != 1 {
		t.Fatalf("missing account exit code = %d", *exited)
	}
}
