package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	clientcmd "github.com/brugmanjoost/drumbeat/internal/cmd/client"
	serverrun "github.com/brugmanjoost/drumbeat/internal/cmd/server"
)

func main() {
	rootCmd := clientcmd.NewRoot(apiURL)

	// server start
	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	serverStartCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start the drumbeat server (HTTP and optional gRPC health)",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts serverrun.Options
			opts.ConfigFile, _ = cmd.Flags().GetString("config")
			opts.HTTPAddr, _ = cmd.Flags().GetString("http")
			opts.GRPCAddr, _ = cmd.Flags().GetString("grpc")
			opts.DataDir, _ = cmd.Flags().GetString("data-dir")
			opts.Backend, _ = cmd.Flags().GetString("backend")
			opts.LogLevel, _ = cmd.Flags().GetString("log-level")
			opts.LogFormat, _ = cmd.Flags().GetString("log-format")

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			if err := serverrun.Run(ctx, opts); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}
	serverStartCmd.Flags().StringP("config", "c", os.Getenv("DRUMBEAT_CONFIG"), "Config file (.json, .yaml or .toml)")
	serverStartCmd.Flags().String("http", "", "HTTP listen address (default :3000)")
	serverStartCmd.Flags().String("grpc", "", "gRPC health listen address (disabled when empty)")
	serverStartCmd.Flags().String("data-dir", "", "Pebble data directory (if not specified, uses OS-specific application data directory)")
	serverStartCmd.Flags().String("backend", "", "Storage backend: pebble|memory|postgres|mysql")
	serverStartCmd.Flags().String("log-level", "", "Log level: debug|info|warn|error")
	serverStartCmd.Flags().String("log-format", "", "Log format: text|json")
	serverCmd.AddCommand(serverStartCmd)
	rootCmd.AddCommand(serverCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func apiURL() string {
	if v := os.Getenv("DRUMBEAT_API"); v != "" {
		return v
	}
	return "http://127.0.0.1:3000"
}
