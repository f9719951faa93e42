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

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/evmgateway/rpcgateway/internal/gateway"
	"github.com/evmgateway/rpcgateway/internal/gwconfig"
	"github.com/evmgateway/rpcgateway/internal/gwlog"
	"github.com/evmgateway/rpcgateway/internal/httpapi"
	"github.com/evmgateway/rpcgateway/internal/metrics"
)

func newRunCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Starts the gateway, blocks indefinitely",
		Long: `Loads the configuration file, wires up every configured chain's
upstream pool, health checker, cache, and retry policy, and serves JSON-RPC
traffic until the process receives SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGateway(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to the gateway's YAML configuration file (required)")
	cmd.MarkFlagRequired("config")

	return cmd
}

func runGateway(ctx context.Context, configPath string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := gwconfig.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log, err := gwlog.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	reg := prometheus.NewRegistry()
	metricsReg := metrics.NewRegistry(reg)

	chains, err := gateway.Build(cfg, metricsReg, log)
	if err != nil {
		return fmt.Errorf("building gateway: %w", err)
	}

	chains.StartHealthChecks(ctx)
	defer chains.StopHealthChecks()

	server := httpapi.NewServer(chains, log, 0)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{Addr: addr, Handler: server.Router()}

	metricsAddr := fmt.Sprintf("%s:%d", cfg.Metrics.Host, cfg.Metrics.Port)
	metricsServer := httpapi.NewMetricsServer(metricsAddr, reg)

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("gateway listening", zap.String("addr", addr))
		return serveUntilDone(gctx, httpServer)
	})
	group.Go(func() error {
		log.Info("metrics listening", zap.String("addr", metricsAddr))
		return metricsServer.ListenAndServe(gctx)
	})

	return group.Wait()
}

func serveUntilDone(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
