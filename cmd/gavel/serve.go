// Copyright 2026 Blink Labs Software
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
	"log/slog"
	"os"

	"github.com/blinklabs-io/gavel/internal/config"
	"github.com/blinklabs-io/gavel/internal/node"
	"github.com/spf13/cobra"
)

var serveFlags = struct {
	databasePath string
	apiPort      uint
	noTicker     bool
}{}

func serveRun(cmd *cobra.Command, _ []string, cfg *config.Config) {
	logger := commonRun()
	// Command line flags take precedence over the config file and environment
	if cmd.Flags().Changed("database-path") {
		cfg.DatabasePath = serveFlags.databasePath
	}
	if cmd.Flags().Changed("api-port") {
		cfg.ApiPort = serveFlags.apiPort
	}
	if serveFlags.noTicker {
		cfg.BlockInterval = "0"
	}
	// Run node
	if err := node.Run(cfg, logger); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func serveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the governance node and its HTTP API",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.FromContext(cmd.Context())
			if cfg == nil {
				slog.Error("no config found in context")
				os.Exit(1)
			}
			serveRun(cmd, args, cfg)
		},
	}
	cmd.Flags().
		StringVar(&serveFlags.databasePath, "database-path", "", "directory for persistent state, empty keeps state in memory")
	cmd.Flags().
		UintVar(&serveFlags.apiPort, "api-port", 0, "port for the HTTP API")
	cmd.Flags().
		BoolVar(&serveFlags.noTicker, "no-ticker", false, "do not advance the block height on a timer")
	return cmd
}
