// ABOUTME: HTTP listener for DynDNS2 updates plus a read-only admin listing of the local store.
// ABOUTME: Adapts net/http requests into Events and writes translated responses as plain text.

package dyndns53

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// apiListResponse wraps a list of record sets for JSON serialisation.
type apiListResponse struct {
	Records []RecordSet `json:"records"`
}

// HTTPServer serves the DynDNS2 update endpoint.
type HTTPServer struct {
	updater        *Updater
	store          *Store
	admin          *AdminAuth
	listen         string
	tls            *tlsConfig
	trustForwarded bool
	server         *http.Server
}

// NewHTTPServer creates an update server (not yet started). store and admin
// may be nil, which disables the admin listing.
func NewHTTPServer(updater *Updater, store *Store, admin *AdminAuth, listen string, tls *tlsConfig, trustForwarded bool) *HTTPServer {
	return &HTTPServer{
		updater:        updater,
		store:          store,
		admin:          admin,
		listen:         listen,
		tls:            tls,
		trustForwarded: trustForwarded,
	}
}

// handler builds the http.Handler with routing.
func (s *HTTPServer) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /nic/update", s.handleUpdate)
	mux.HandleFunc("GET /update", s.handleUpdate)

	if s.store != nil && s.admin.configured() {
		mux.Handle("GET /api/v1/records", s.admin.HTTPMiddleware(http.HandlerFunc(s.handleList)))
		mux.Handle("GET /api/v1/records/{name}", s.admin.HTTPMiddleware(http.HandlerFunc(s.handleGetByName)))
	}

	return mux
}

// Start begins serving in a background goroutine.
func (s *HTTPServer) Start() error {
	ln, err := net.Listen("tcp", s.listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.listen, err)
	}

	if s.tls != nil {
		tlsCfg, err := buildTLSConfig(s.tls)
		if err != nil {
			ln.Close()
			return err
		}
		ln = tls.NewListener(ln, tlsCfg)
	}

	s.server = &http.Server{
		Handler:           s.handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Errorf("update server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the server.
func (s *HTTPServer) Stop() {
	if s.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleUpdate(w http.ResponseWriter, r *http.Request) {
	resp := s.updater.Update(r.Context(), eventFromRequest(r, s.trustForwarded))

	for k, v := range resp.Header {
		w.Header().Set(k, v)
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(resp.Status)
	_, _ = w.Write([]byte(resp.Body))
}

// eventFromRequest copies the parts of r the validator reads. Absent
// parameters stay absent so the validator can tell them from empty ones.
func eventFromRequest(r *http.Request, trustForwarded bool) Event {
	ev := Event{
		Header:      make(map[string]string),
		QueryString: make(map[string]string),
		Context:     make(map[string]string),
	}

	if v := r.Header.Values("Authorization"); len(v) > 0 {
		ev.Header["Authorization"] = v[0]
	}

	q := r.URL.Query()
	for _, key := range []string{"hostname", "myip"} {
		if q.Has(key) {
			ev.QueryString[key] = q.Get(key)
		}
	}

	if ip := sourceIP(r, trustForwarded); ip != "" {
		ev.Context["source-ip"] = ip
	}
	return ev
}

func sourceIP(r *http.Request, trustForwarded bool) string {
	if trustForwarded {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *HTTPServer) handleList(w http.ResponseWriter, r *http.Request) {
	var records []RecordSet
	if name := r.URL.Query().Get("name"); name != "" {
		records = s.store.GetAll(name)
	} else {
		records = s.store.List()
	}
	if records == nil {
		records = []RecordSet{}
	}
	writeJSON(w, http.StatusOK, apiListResponse{Records: records})
}

func (s *HTTPServer) handleGetByName(w http.ResponseWriter, r *http.Request) {
	records := s.store.GetAll(r.PathValue("name"))
	if records == nil {
		records = []RecordSet{}
	}
	writeJSON(w, http.StatusOK, apiListResponse{Records: records})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
