package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/topoview/internal/auth"
	"github.com/ziadkadry99/topoview/internal/payload"
)

const maxPayloadBytes = 4 << 20

func registerFixtureRoutes(r chi.Router, s *Server) {
	r.Route("/api/"+s.cfg.Namespace, func(r chi.Router) {
		r.Get("/entries", handleEntries(s))
		r.Post("/rescan", handleRescan(s))
		r.Get("/{entry}/svg", handleSVG(s))
		r.Get("/{entry}/payload", handlePayload(s))
		r.Post("/{entry}/payload", handlePublish(s))
	})
}

// requireBearer rejects requests without a valid Authorization header.
func requireBearer(tokens *auth.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			if _, err := tokens.Verify(token); err != nil {
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func handleEntries(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"entries": s.fixtures.Entries()})
	}
}

func handleRescan(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.fixtures.Rescan(); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"entries": s.fixtures.Entries()})
	}
}

func handleSVG(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry := chi.URLParam(r, "entry")
		svg, err := s.fixtures.SVG(entry, r.URL.Query().Get("theme"))
		if err != nil {
			s.fixtureError(w, "svg", err)
			return
		}
		s.metrics.Requests.WithLabelValues("svg", "ok").Inc()
		w.Header().Set("Content-Type", "image/svg+xml")
		w.WriteHeader(http.StatusOK)
		w.Write(svg)
	}
}

func handlePayload(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry := chi.URLParam(r, "entry")
		raw, err := s.fixtures.Payload(entry)
		if err != nil {
			s.fixtureError(w, "payload", err)
			return
		}
		s.metrics.Requests.WithLabelValues("payload", "ok").Inc()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(raw)
	}
}

// handlePublish validates a payload, stores it as the entry's current
// payload and pushes it to subscribers.
func handlePublish(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry := chi.URLParam(r, "entry")
		raw, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
		if err != nil {
			writeError(w, http.StatusBadRequest, "reading body: "+err.Error())
			return
		}
		if _, err := payload.Decode(bytes.NewReader(raw)); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := s.fixtures.SetPayload(entry, raw); err != nil {
			s.fixtureError(w, "publish", err)
			return
		}
		delivered := s.hub.Publish(entry, json.RawMessage(raw))
		writeJSON(w, http.StatusAccepted, map[string]any{"entry": entry, "delivered": delivered})
	}
}

func (s *Server) fixtureError(w http.ResponseWriter, kind string, err error) {
	if errors.Is(err, ErrUnknownEntry) {
		s.metrics.Requests.WithLabelValues(kind, "not_found").Inc()
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	log.Printf("server: reading %s fixture: %v", kind, err)
	s.metrics.Requests.WithLabelValues(kind, "error").Inc()
	writeError(w, http.StatusInternalServerError, "reading fixture")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
