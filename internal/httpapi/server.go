// Copyright 2015 Matthew Holt and The Caddy Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package httpapi is the gateway's HTTP front end: the JSON-RPC proxy
// route, the liveness/readiness probes, and the separate metrics listener.
package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/evmgateway/rpcgateway/internal/gateway"
	"github.com/evmgateway/rpcgateway/internal/gwerrors"
)

// defaultMaxBodyBytes bounds a single request body; an oversized body is
// rejected before it is ever handed to the pipeline.
const defaultMaxBodyBytes = 1 << 20 // 1 MiB

// ChainRegistry looks up the Handler for a chain id, or reports it isn't
// configured. Implemented by Server's owner (the cmd wiring).
type ChainRegistry interface {
	Handler(chainID int64) (*gateway.Handler, bool)
	// Ready reports whether every configured chain currently satisfies the
	// readiness policy (>=1 Healthy upstream, or in strict mode, every
	// upstream Healthy or Terminated).
	Ready() bool
}

// Server is the inbound HTTP front end.
type Server struct {
	registry     ChainRegistry
	log          *zap.Logger
	maxBodyBytes int64
}

// NewServer builds a Server delegating to registry for per-chain handlers.
func NewServer(registry ChainRegistry, log *zap.Logger, maxBodyBytes int64) *Server {
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}
	return &Server{registry: registry, log: log, maxBodyBytes: maxBodyBytes}
}

// Router builds the chi.Router for the proxy + health endpoints.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Post("/{chainID}", s.handleRPC)
	r.Get("/healthz", s.handleLiveness)
	r.Get("/readyz", s.handleReadiness)
	return r
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	chainIDStr := chi.URLParam(r, "chainID")
	chainID, err := strconv.ParseInt(chainIDStr, 10, 64)
	if err != nil {
		s.writeGatewayError(w, gwerrors.New(gwerrors.KindUnknownChain, err))
		return
	}

	h, ok := s.registry.Handler(chainID)
	if !ok {
		s.writeGatewayError(w, gwerrors.New(gwerrors.KindUnknownChain, nil))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeGatewayError(w, gwerrors.New(gwerrors.KindMalformedRequest, err))
		return
	}

	resp, gerr := h.Handle(r.Context(), body)
	if gerr != nil {
		s.writeGatewayError(w, gerr)
		return
	}
	if resp == nil {
		// client disconnected mid-pipeline; nothing left to write to.
		return
	}

	out, err := resp.Marshal()
	if err != nil {
		s.writeGatewayError(w, gwerrors.New(gwerrors.KindAllAttemptsFailed, err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(out)
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if s.registry.Ready() {
		w.WriteHeader(http.StatusOK)
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
}

func (s *Server) writeGatewayError(w http.ResponseWriter, err *gwerrors.Error) {
	s.log.Warn("request failed", zap.String("kind", err.Kind.String()), zap.Error(err))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Status())
	w.Write([]byte(`{"error":"` + err.Kind.String() + `"}`))
}

// MetricsServer serves a Prometheus text-format scrape on its own listener,
// independent of the proxy's own address, so a scraper never competes with
// proxy traffic and can be firewalled off separately.
type MetricsServer struct {
	httpServer *http.Server
}

// NewMetricsServer builds a metrics-only HTTP server bound to addr.
func NewMetricsServer(addr string, reg prometheus.Gatherer) *MetricsServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &MetricsServer{httpServer: &http.Server{Addr: addr, Handler: mux}}
}

// ListenAndServe blocks until the server stops or ctx is cancelled.
func (m *MetricsServer) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- m.httpServer.ListenAndServe() }()
	select {
	case <-ctx.Done():
		return m.httpServer.Shutdown(context.Background())
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
