package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/oxygenesis/signing-node/internal/domain"
	"github.com/oxygenesis/signing-node/internal/events"
	"github.com/oxygenesis/signing-node/internal/service"
)

const defaultEventLimit = 50

// Authenticator turns an Authorization header into a dispatch origin.
type Authenticator interface {
	Origin(header string) domain.Origin
}

// EventLog serves recently deposited events.
type EventLog interface {
	Recent(n int) []events.Record
}

type Counter struct {
	modules *service.Registry
	auth    Authenticator
	events  EventLog
}

func NewCounter(modules *service.Registry, auth Authenticator, recent EventLog) *Counter {
	return &Counter{modules: modules, auth: auth, events: recent}
}

func (h *Counter) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Modules handles GET /v1/modules
func (h *Counter) Modules(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"modules": h.modules.Modules()})
}

// ModuleOps handles /v1/modules/{m}, /v1/modules/{m}/store and /v1/modules/{m}/increment
func (h *Counter) ModuleOps(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/modules/")
	module, op, _ := strings.Cut(rest, "/")
	if module == "" || strings.Contains(op, "/") {
		http.NotFound(w, r)
		return
	}

	switch {
	case op == "" && r.Method == http.MethodGet:
		h.Get(w, r, module)
	case op == "store" && r.Method == http.MethodPost:
		h.Store(w, r, module)
	case op == "increment" && r.Method == http.MethodPost:
		h.Increment(w, r, module)
	default:
		http.NotFound(w, r)
	}
}

func (h *Counter) Get(w http.ResponseWriter, r *http.Request, module string) {
	c, err := h.modules.Counter(module)
	if err != nil {
		writeDispatchErr(w, err)
		return
	}
	state, err := c.Value(r.Context())
	if err != nil {
		writeDispatchErr(w, err)
		return
	}
	value, ok := state.Get()
	resp := map[string]any{"module": module, "initialized": ok, "value": nil}
	if ok {
		resp["value"] = value
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Counter) Store(w http.ResponseWriter, r *http.Request, module string) {
	defer r.Body.Close()
	origin, ok := h.signedOrigin(w, r)
	if !ok {
		return
	}
	var req struct {
		Value *uint32 `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "InvalidInput", "invalid JSON")
		return
	}
	if req.Value == nil {
		writeErr(w, http.StatusBadRequest, "InvalidInput", "value is required")
		return
	}
	h.dispatch(w, r, module, origin, domain.StoreCall{Value: *req.Value})
}

func (h *Counter) Increment(w http.ResponseWriter, r *http.Request, module string) {
	origin, ok := h.signedOrigin(w, r)
	if !ok {
		return
	}
	h.dispatch(w, r, module, origin, domain.IncrementCall{})
}

// signedOrigin rejects unsigned callers before the request body is read.
func (h *Counter) signedOrigin(w http.ResponseWriter, r *http.Request) (domain.Origin, bool) {
	origin := h.auth.Origin(r.Header.Get("Authorization"))
	if _, err := domain.EnsureSigned(origin); err != nil {
		writeDispatchErr(w, err)
		return domain.Origin{}, false
	}
	return origin, true
}

func (h *Counter) dispatch(w http.ResponseWriter, r *http.Request, module string, origin domain.Origin, call domain.Call) {
	c, err := h.modules.Counter(module)
	if err != nil {
		writeDispatchErr(w, err)
		return
	}

	info := call.Info()
	w.Header().Set("X-Call-Weight", strconv.FormatUint(info.Weight, 10))
	w.Header().Set("X-Pays-Fee", info.Pays.String())

	state, err := c.Dispatch(r.Context(), origin, call)
	if err != nil {
		writeDispatchErr(w, err)
		return
	}
	value, _ := state.Get()
	writeJSON(w, http.StatusOK, map[string]any{"module": module, "call": call.Name(), "value": value})
}

// Events handles GET /v1/events?limit=N
func (h *Counter) Events(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	limit := defaultEventLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeErr(w, http.StatusBadRequest, "InvalidInput", "limit must be a positive integer")
			return
		}
		limit = n
	}
	recs := []events.Record{}
	if h.events != nil {
		recs = append(recs, h.events.Recent(limit)...)
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": recs})
}

// helpers

func writeDispatchErr(w http.ResponseWriter, err error) {
	name := domain.DispatchErrorName(err)
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		writeErr(w, http.StatusUnauthorized, name, err.Error())
	case errors.Is(err, domain.ErrNoneValue), errors.Is(err, domain.ErrStorageOverflow):
		writeErr(w, http.StatusUnprocessableEntity, name, err.Error())
	case errors.Is(err, domain.ErrModuleNotFound):
		writeErr(w, http.StatusNotFound, name, err.Error())
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrUnknownCall):
		writeErr(w, http.StatusBadRequest, name, err.Error())
	default:
		log.Printf("dispatch: %v", err)
		writeErr(w, http.StatusInternalServerError, name, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, name, msg string) {
	writeJSON(w, status, map[string]string{"error": name, "message": msg})
}
