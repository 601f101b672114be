package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"NetProfiler/internal/assembler"
	"NetProfiler/internal/model"
	"NetProfiler/internal/store"

	"github.com/gorilla/mux"
)

// LiveHub is the API's view of the live channel: the upgrade handler
// and the subscriber count reported by the health check.
type LiveHub interface {
	ServeWS(w http.ResponseWriter, r *http.Request)
	ClientCount() int
}

// Handler holds the dependencies for the REST handlers.
type Handler struct {
	asm *assembler.Assembler
	hub LiveHub
}

// New creates the REST handler set.
func New(asm *assembler.Assembler, hub LiveHub) *Handler {
	return &Handler{asm: asm, hub: hub}
}

// Router builds the full route table, live channel included.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()

	// The search route must be registered before the keyed route so mux
	// does not treat "search" as a profile key.
	r.HandleFunc("/api/profiles/search", h.searchProfiles).Methods("GET")
	r.HandleFunc("/api/profiles", h.listProfiles).Methods("GET")
	r.HandleFunc("/api/profiles/{key}", h.getProfile).Methods("GET")
	r.HandleFunc("/api/profiles/{key}", h.deleteProfile).Methods("DELETE")
	r.HandleFunc("/api/my-profile", h.myProfile).Methods("GET")
	r.HandleFunc("/api/stats", h.getStats).Methods("GET")
	r.HandleFunc("/api/ingest/tcp", h.ingestHandler(model.SourceTCP)).Methods("POST")
	r.HandleFunc("/api/ingest/http", h.ingestHandler(model.SourceHTTP)).Methods("POST")
	r.HandleFunc("/api/ingest/tls", h.ingestHandler(model.SourceTLS)).Methods("POST")
	r.HandleFunc("/health", h.health).Methods("GET")
	r.HandleFunc("/ws", h.hub.ServeWS)

	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, format string, args ...interface{}) {
	writeJSON(w, status, map[string]string{"error": fmt.Sprintf(format, args...)})
}

// parseFilter reads the shared query parameters into a store filter.
func parseFilter(r *http.Request) (store.Filter, error) {
	q := r.URL.Query()
	var f store.Filter

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, fmt.Errorf("invalid limit %q", v)
		}
		f.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, fmt.Errorf("invalid offset %q", v)
		}
		f.Offset = n
	}
	if v := q.Get("type"); v != "" {
		switch model.SourceKind(v) {
		case model.SourceTCP, model.SourceHTTP, model.SourceTLS:
			f.Kind = model.SourceKind(v)
		default:
			return f, fmt.Errorf("invalid type %q", v)
		}
	}
	if v := q.Get("complete"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, fmt.Errorf("invalid complete flag %q", v)
		}
		f.CompleteOnly = b
	}
	if v := q.Get("quality_min"); v != "" {
		minQ, err := strconv.ParseFloat(v, 64)
		if err != nil || minQ < 0 || minQ > 1 {
			return f, fmt.Errorf("invalid quality_min %q", v)
		}
		f.MinQuality = minQ
	}
	if v := q.Get("since"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return f, fmt.Errorf("invalid since duration %q", v)
		}
		f.Since = d
	}
	return f, nil
}

func (h *Handler) listProfiles(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, h.asm.Profiles(filter))
}

func (h *Handler) searchProfiles(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	filter.Search = r.URL.Query().Get("q")
	writeJSON(w, http.StatusOK, h.asm.Profiles(filter))
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	p, ok := h.asm.Profile(key)
	if !ok {
		writeError(w, http.StatusNotFound, "no profile for %s", key)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) deleteProfile(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if !h.asm.Delete(key) {
		writeError(w, http.StatusNotFound, "no profile for %s", key)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "key": key})
}

// myProfile resolves the caller's own IP and returns its profile.
func (h *Handler) myProfile(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	if ip == "" {
		writeError(w, http.StatusBadRequest, "could not determine caller address")
		return
	}
	p, ok := h.asm.Profile(ip)
	if !ok {
		writeError(w, http.StatusNotFound, "no profile for %s", ip)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.asm.Stats())
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"profiles":    h.asm.Stats().TotalProfiles,
		"subscribers": h.hub.ClientCount(),
		"ingested":    h.asm.Ingested(),
	})
}

// ingestRequest is the HTTP ingestion body. The endpoint determines the
// kind; a mismatched explicit source field is rejected.
type ingestRequest struct {
	IP         string           `json:"ip"`
	Source     model.SourceKind `json:"source,omitempty"`
	ObservedAt *time.Time       `json:"observed_at,omitempty"`
	Payload    json.RawMessage  `json:"payload"`
}

func (h *Handler) ingestHandler(kind model.SourceKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ingestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "failed to decode request: %v", err)
			return
		}
		if req.Source != "" && req.Source != kind {
			writeError(w, http.StatusBadRequest, "source %q does not match endpoint %q", req.Source, kind)
			return
		}
		if len(req.Payload) == 0 {
			writeError(w, http.StatusBadRequest, "missing payload")
			return
		}

		ev := model.FingerprintEvent{Kind: kind, Key: req.IP, ObservedAt: time.Now()}
		if req.ObservedAt != nil {
			ev.ObservedAt = *req.ObservedAt
		}

		var err error
		switch kind {
		case model.SourceTCP:
			var sig model.TCPSignature
			err = json.Unmarshal(req.Payload, &sig)
			ev.TCP = &sig
		case model.SourceHTTP:
			var sig model.HTTPSignature
			err = json.Unmarshal(req.Payload, &sig)
			ev.HTTP = &sig
		case model.SourceTLS:
			var sig model.TLSFingerprint
			err = json.Unmarshal(req.Payload, &sig)
			ev.TLS = &sig
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to decode %s payload: %v", kind, err)
			return
		}

		outcome, err := h.asm.Ingest(ev)
		if err != nil {
			writeError(w, http.StatusBadRequest, "%v", err)
			return
		}

		status := "updated"
		if outcome == store.OutcomeCreated {
			status = "created"
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": status, "key": req.IP})
	}
}

// clientIP extracts the caller's IP, preferring the first entry of
// X-Forwarded-For when the server sits behind a reverse proxy.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first := strings.TrimSpace(strings.Split(fwd, ",")[0])
		if net.ParseIP(first) != nil {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		if net.ParseIP(r.RemoteAddr) != nil {
			return r.RemoteAddr
		}
		return ""
	}
	return host
}
