//go:build linux

package api

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/foundry/pkg/handler"
	"github.com/cuemby/foundry/pkg/health"
	"github.com/cuemby/foundry/pkg/log"
	"github.com/cuemby/foundry/pkg/metrics"
	"github.com/cuemby/foundry/pkg/shim"
	"github.com/cuemby/foundry/pkg/types"
)

// maxRequestBody bounds /exec bodies; inline inputs can be large.
const maxRequestBody = 256 << 20

// Server is the HTTP surface of the invocation engine.
type Server struct {
	handler *handler.Handler
	shim    *shim.Client
	workDir string
	mux     *http.ServeMux
	srv     *http.Server
}

// NewServer wires the request handler and shim client into the HTTP
// routes: POST /exec, GET /ready, GET /metrics.
func NewServer(h *handler.Handler, shimClient *shim.Client, workDir string) *Server {
	s := &Server{
		handler: h,
		shim:    shimClient,
		workDir: workDir,
		mux:     http.NewServeMux(),
	}
	s.mux.HandleFunc("/exec", s.execHandler)
	s.mux.HandleFunc("/ready", s.readyHandler)
	s.mux.Handle("/metrics", metrics.Handler())
	return s
}

// Serve runs the server on the listener until Stop.
func (s *Server) Serve(lis net.Listener) error {
	s.srv = &http.Server{
		Handler:     s.mux,
		ReadTimeout: 5 * time.Minute,
		IdleTimeout: 60 * time.Second,
	}
	listenLogger := log.Component("api")
	listenLogger.Info().Str("addr", lis.Addr().String()).Msg("listening")
	err := s.srv.Serve(lis)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// execHandler implements POST /exec.
func (s *Server) execHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	logger := log.Component("api")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	shimResp, err := s.shim.Call(r.Context(), body)
	if err != nil {
		s.internalError(w, logger, err)
		return
	}
	if shimResp.Rejection != nil {
		// The shim's verdict is forwarded verbatim as a client error.
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write(shimResp.Rejection)
		return
	}

	req, err := types.DecodeInvokeRequest(shimResp.Accepted)
	if err != nil {
		http.Error(w, "malformed invocation request: "+err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := s.handler.Handle(r.Context(), req)
	if err != nil {
		s.internalError(w, logger, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// readyHandler implements GET /ready.
func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	report := health.Run(r.Context(), health.ReadyCheckers(s.workDir))
	if !report.Healthy() {
		readyLogger := log.Component("api")
		readyLogger.Warn().Strs("failures", report.Failures()).Msg("readiness check failed")
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// internalError responds 500 with an Error-UUID header; the detail
// stays in the log under the same id.
func (s *Server) internalError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	errorID := uuid.New()
	logger.Error().
		Str("error_id", errorID.String()).
		Err(err).
		Msg("invocation request failed")
	w.Header().Set("Error-UUID", errorID.String())
	w.WriteHeader(http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		encodeLogger := log.Component("api")
		encodeLogger.Error().Err(err).Msg("failed to encode response")
	}
}
