// Package server exposes card generation over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ByLCY/quotecard/card"
)

// LivenessMessage is returned by GET /.
const LivenessMessage = "Quote Generator is Live ✅"

const maxBodyBytes = 1 << 20

// Handler serves the card API. Every request is handled independently over
// the injected generator; the handler itself holds no mutable state.
type Handler struct {
	gen    *card.Generator
	logger *slog.Logger
	mux    *http.ServeMux
}

// New returns a handler for gen. A nil logger discards logs.
func New(gen *card.Generator, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	h := &Handler{gen: gen, logger: logger, mux: http.NewServeMux()}
	h.mux.HandleFunc("GET /{$}", h.home)
	h.mux.HandleFunc("POST /generate", h.generate)
	return h
}

// ServeHTTP implements http.Handler with access logging and panic recovery.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	defer func() {
		if p := recover(); p != nil {
			h.logger.Error("panic while handling request", "path", r.URL.Path, "panic", p)
			if !rec.wrote {
				writeError(rec, http.StatusInternalServerError, fmt.Sprint(p))
			}
		}
		h.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	}()
	h.mux.ServeHTTP(rec, r)
}

func (h *Handler) home(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, LivenessMessage)
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	var req card.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	out, err := h.gen.Generate(r.Context(), req)
	switch {
	case errors.Is(err, card.ErrMissingField):
		writeError(w, http.StatusBadRequest, "Missing text or author")
		return
	case err != nil:
		h.logger.Error("generate failed", "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if out.Fallback {
		h.logger.Info("served solid background", "reason", out.Reason)
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", fmt.Sprint(len(out.PNG)))
	w.WriteHeader(http.StatusOK)
	w.Write(out.PNG)
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorBody{Error: msg})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if !s.wrote {
		s.status = code
		s.wrote = true
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	s.wrote = true
	return s.ResponseWriter.Write(b)
}
