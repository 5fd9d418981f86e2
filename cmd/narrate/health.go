package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/go-narrate/internal/server"
)

// Seams replaced in tests.
var (
	probeHTTP = server.ProbeHTTP
	probeGRPC = server.ProbeGRPC
)

func newHealthCmd() *cobra.Command {
	var (
		addr     string
		grpcAddr string
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check a running server's HTTP and gRPC endpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.ListenAddr
			}
			if err := probeHTTP(addr); err != nil {
				return fmt.Errorf("http %s: %w", addr, err)
			}

			if grpcAddr == "" {
				grpcAddr = cfg.Server.GRPCAddr
			}
			if grpcAddr != "" {
				ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
				defer cancel()
				n, err := probeGRPC(ctx, grpcAddr, true)
				if err != nil {
					return fmt.Errorf("grpc %s: %w", grpcAddr, err)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "grpc: %d voices\n", n)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return err
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "HTTP server address to probe")
	cmd.Flags().StringVar(&grpcAddr, "grpc-addr", "", "gRPC server address to probe")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "gRPC probe timeout")

	return cmd
}
