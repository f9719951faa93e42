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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evmgateway/rpcgateway/internal/gwconfig"
)

func newValidateCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Parses and validates a configuration file without starting the gateway",
		Long: `Loads the file at -c/--config, applies $NAME environment interpolation,
and runs the same Validate checks the run command applies before serving
traffic: chain ids are positive, every chain has at least one upstream, the
selector strategy and cache type are known values, and cache.url is present
when cache.type is "redis".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := gwconfig.Load(configPath)
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to the gateway's YAML configuration file (required)")
	cmd.MarkFlagRequired("config")

	return cmd
}
