//go:build smokebin

package main

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/http/httptest"
	"regexp"
	"time"

	"github.com/oxygenesis/signing-node/internal/app/http/handler"
	"github.com/oxygenesis/signing-node/internal/app/http/middleware"
	"github.com/oxygenesis/signing-node/internal/auth"
	"github.com/oxygenesis/signing-node/internal/crypto"
	"github.com/oxygenesis/signing-node/internal/domain"
	"github.com/oxygenesis/signing-node/internal/events"
	"github.com/oxygenesis/signing-node/internal/keystore"
	"github.com/oxygenesis/signing-node/internal/offchain"
	"github.com/oxygenesis/signing-node/internal/service"
	"github.com/oxygenesis/signing-node/internal/storage"
	"github.com/oxygenesis/signing-node/pkg/id"
)

const apiPrefix = "/v1"

var signedLine = regexp.MustCompile(`INFO offchain block=\d+: account signed: account=([0-9a-f]+) signature=([0-9a-f]+)`)

// must fails the smoke test immediately with a helpful message.
func must(ok bool, msg string, args ...any) {
	if !ok {
		log.Fatalf("SMOKE FAIL: "+msg, args...)
	}
}

func main() {
	// Wire the app with an in-process server (no real port binding).
	bus := events.NewBus(id.UUIDv4{}, 0)
	reg := service.NewRegistry(service.New("sign", storage.NewMemory(), bus))
	authn, err := auth.NewAuthenticator([]byte("smoke-test-secret-0123"), "smoke")
	must(err == nil, "authenticator: %v", err)

	h := handler.NewCounter(reg, authn, bus)
	mux := http.NewServeMux()
	mux.HandleFunc(apiPrefix+"/health", h.Health)
	mux.HandleFunc(apiPrefix+"/modules", h.Modules)
	mux.HandleFunc(apiPrefix+"/modules/", h.ModuleOps)
	mux.HandleFunc(apiPrefix+"/events", h.Events)

	ts := httptest.NewServer(middleware.Recovery(mux))
	defer ts.Close()

	token, err := authn.Issue(domain.AccountID{0xa1, 0xce}, time.Minute)
	must(err == nil, "issue token: %v", err)

	do := func(method, path, bearer string, body any) (int, []byte) {
		var rdr io.Reader
		if body != nil {
			b, _ := json.Marshal(body)
			rdr = bytes.NewReader(b)
		}
		req, _ := http.NewRequest(method, ts.URL+path, rdr)
		req.Header.Set("content-type", "application/json")
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			log.Fatal(err)
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		fmt.Printf("%s %s -> %d %s\n", method, path, resp.StatusCode, string(b))
		return resp.StatusCode, b
	}

	// 1) Health
	code, body := do("GET", apiPrefix+"/health", "", nil)
	must(code == 200, "health status=%d", code)

	// 2) Unsigned store is rejected and leaves state untouched
	code, _ = do("POST", apiPrefix+"/modules/sign/store", "", map[string]any{"value": 1})
	must(code == 401, "unsigned store status=%d", code)

	// 3) Increment before store -> NoneValue
	code, body = do("POST", apiPrefix+"/modules/sign/increment", token, nil)
	must(code == 422 && bytes.Contains(body, []byte("NoneValue")), "increment on empty: %d %s", code, body)

	// 4) Store then increment
	code, _ = do("POST", apiPrefix+"/modules/sign/store", token, map[string]any{"value": 41})
	must(code == 200, "store status=%d", code)
	code, _ = do("POST", apiPrefix+"/modules/sign/increment", token, nil)
	must(code == 200, "increment status=%d", code)

	code, body = do("GET", apiPrefix+"/modules/sign", "", nil)
	var st struct {
		Value       uint32 `json:"value"`
		Initialized bool   `json:"initialized"`
	}
	_ = json.Unmarshal(body, &st)
	must(code == 200 && st.Initialized && st.Value == 42, "state=%s", body)

	// 5) Overflow keeps the value
	code, _ = do("POST", apiPrefix+"/modules/sign/store", token, map[string]any{"value": uint32(math.MaxUint32)})
	must(code == 200, "store max status=%d", code)
	code, body = do("POST", apiPrefix+"/modules/sign/increment", token, nil)
	must(code == 422 && bytes.Contains(body, []byte("StorageOverflow")), "overflow: %d %s", code, body)

	// 6) Exactly two SomethingStored events
	code, body = do("GET", apiPrefix+"/events", "", nil)
	var evs struct {
		Events []struct {
			Name string `json:"name"`
		} `json:"events"`
	}
	_ = json.Unmarshal(body, &evs)
	must(code == 200 && len(evs.Events) == 2, "events=%s", body)

	// 7) Offchain worker signs with the single key and the signature verifies
	ks := keystore.NewMemory(crypto.Ed25519Scheme{})
	pub, err := ks.Generate(domain.KeyTypeSign)
	must(err == nil, "generate key: %v", err)

	var logs bytes.Buffer
	signer := offchain.NewSigner(ks, crypto.Ed25519Scheme{}, domain.KeyTypeSign)
	offchain.NewWorker(signer, log.New(&logs, "", 0)).OffchainWorker(context.Background(), 1)
	fmt.Print(logs.String())

	m := signedLine.FindStringSubmatch(logs.String())
	must(m != nil, "no signed line in %q", logs.String())
	must(m[1] == hex.EncodeToString(pub), "account=%s want %x", m[1], pub)
	sig, err := hex.DecodeString(m[2])
	must(err == nil, "decode signature: %v", err)
	must(ed25519.Verify(pub, offchain.DefaultMessage, sig), "signature does not verify")

	// 8) A second key makes the worker refuse
	_, err = ks.Generate(domain.KeyTypeSign)
	must(err == nil, "generate second key: %v", err)
	logs.Reset()
	offchain.NewWorker(signer, log.New(&logs, "", 0)).OffchainWorker(context.Background(), 2)
	must(bytes.Contains(logs.Bytes(), []byte("more than one account")), "logs=%q", logs.String())

	fmt.Println("SMOKE OK")
}
