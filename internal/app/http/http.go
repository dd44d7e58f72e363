package http

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/oxygenesis/signing-node/internal/app/http/handler"
	"github.com/oxygenesis/signing-node/internal/app/http/middleware"
	"github.com/oxygenesis/signing-node/internal/service"
)

const shutdownTimeout = 5 * time.Second

func defaultListenAndServe(srv *http.Server) error { return srv.ListenAndServe() }

var listenAndServe = defaultListenAndServe

// API bundles what the routes dispatch to.
type API struct {
	Modules *service.Registry
	Auth    handler.Authenticator
	Events  handler.EventLog
}

// Start assembles the server and serves until ctx is cancelled.
// If test==true it returns without serving (for coverage/CI).
func Start(ctx context.Context, addr string, api API, test bool) error {
	srv := buildServer(addr, api)
	if test {
		return nil
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", addr)
		errCh <- listenAndServe(srv)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

// buildServer is kept package-private so tests can exercise routes without binding a port.
func buildServer(addr string, api API) *http.Server {
	h := handler.NewCounter(api.Modules, api.Auth, api.Events)

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/health", h.Health)
	mux.HandleFunc("/v1/modules", h.Modules)    // GET -> list
	mux.HandleFunc("/v1/modules/", h.ModuleOps) // GET -> state, POST /store, POST /increment
	mux.HandleFunc("/v1/events", h.Events)

	root := middleware.Recovery(mux)

	return &http.Server{
		Addr:              addr,
		Handler:           root,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
