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

// Command rpcgateway runs the EVM JSON-RPC gateway: a reverse proxy that
// load-balances, caches, coalesces, and retries JSON-RPC calls across a
// pool of upstream nodes per configured chain.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/KimMachineGun/automemlimit/memlimit"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
)

func main() {
	// bootstrapLogger is used only for the runtime-tuning messages below,
	// before the configured logger (which depends on flags we haven't
	// parsed yet) exists.
	bootstrapLogger, _ := zap.NewProduction()

	undo, err := maxprocs.Set(maxprocs.Logger(bootstrapLogger.Sugar().Infof))
	defer undo()
	if err != nil {
		bootstrapLogger.Warn("failed to set GOMAXPROCS", zap.Error(err))
	}

	_, _ = memlimit.SetGoMemLimitWithOpts(
		memlimit.WithLogger(
			slog.New(zapslog.NewHandler(bootstrapLogger.Core())),
		),
		memlimit.WithProvider(
			memlimit.ApplyFallback(
				memlimit.FromCgroup,
				memlimit.FromSystem,
			),
		),
	)

	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "rpcgateway",
		Short: "EVM JSON-RPC gateway",
		Long: `rpcgateway is a reverse proxy that fronts one or more pools of EVM
JSON-RPC upstream nodes, one pool per configured chain id. It load-balances
across healthy upstreams, retries transient failures with jittered
exponential backoff, coalesces identical concurrent requests, and caches
cacheable responses.

Configuration is a single YAML document; see -c/--config.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCommand(), newValidateCommand())
	return root
}
