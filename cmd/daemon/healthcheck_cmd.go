// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ManuGH/dramarelay/internal/platform/httpx"
)

// newHealthcheckCmd probes a running gateway; intended for container
// HEALTHCHECK directives.
func newHealthcheckCmd() *cobra.Command {
	var (
		mode    string
		addr    string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Probe /readyz or /healthz of a running gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := "/healthz"
			if mode == "ready" {
				path = "/readyz"
			}
			base := addr
			if !strings.Contains(base, "://") {
				base = "http://" + base
			}

			client := httpx.NewClient(timeout)
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, strings.TrimRight(base, "/")+path, nil)
			if err != nil {
				return err
			}
			resp, err := client.Do(req)
			if err != nil {
				return fmt.Errorf("healthcheck failed (network): %w", err)
			}
			defer func() { _ = resp.Body.Close() }()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("healthcheck failed (status): %s", resp.Status)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "healthcheck successful (%s)\n", mode)
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "ready", "healthcheck mode: ready or live")
	cmd.Flags().StringVar(&addr, "addr", "localhost:3000", "gateway address")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "check timeout")
	return cmd
}
