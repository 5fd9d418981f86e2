package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/example/go-narrate/internal/server"
	"github.com/example/go-narrate/internal/tts"
	"github.com/example/go-narrate/internal/ttsrpc"
)

func newVoicesCmd() *cobra.Command {
	var (
		addr      string
		plaintext bool
	)

	cmd := &cobra.Command{
		Use:   "voices",
		Short: "List voices and aliases, locally or from a running server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if addr == "" {
				catalog, err := tts.OpenVoiceCatalog(cfg.Paths.Catalog)
				if err != nil {
					return fmt.Errorf("voice catalog: %w", err)
				}
				printVoices(out, server.VoiceList(catalog))
				return nil
			}

			conn, err := ttsrpc.Dial(addr, plaintext)
			if err != nil {
				return err
			}
			defer func() { _ = conn.Close() }()

			resp, err := ttsrpc.NewClient(conn).ListVoices(cmd.Context(), &ttsrpc.ListVoicesRequest{})
			if err != nil {
				return fmt.Errorf("list voices from %s: %w", addr, err)
			}
			printVoices(out, resp)
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "gRPC address of a narrate server (default: local catalog)")
	cmd.Flags().BoolVar(&plaintext, "plaintext", true, "Dial --addr without TLS")

	return cmd
}

func printVoices(w io.Writer, resp *ttsrpc.ListVoicesResponse) {
	for _, v := range resp.Voices {
		_, _ = fmt.Fprintf(w, "%-12s %s  %-6s  %s\n", v.ID, v.LangCode, v.Gender, v.Display)
	}
	if len(resp.Aliases) == 0 {
		return
	}

	_, _ = fmt.Fprintln(w, "aliases:")
	for _, a := range resp.Aliases {
		_, _ = fmt.Fprintf(w, "  %s -> %s\n", a.Alias, a.MapsTo)
	}
}
