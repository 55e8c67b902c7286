// SPDX-License-Identifier: MIT

package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ManuGH/dramarelay/internal/config"
	"github.com/ManuGH/dramarelay/internal/version"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and manage the configuration file",
	}
	cmd.AddCommand(
		newConfigInitCmd(opts),
		newConfigValidateCmd(opts),
		newConfigDumpCmd(opts),
	)
	return cmd
}

func newConfigInitCmd(opts *rootOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file populated with the defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := opts.configPath
			if path == "" {
				path = "config.yaml"
			}
			if err := config.WriteFile(path, config.Defaults(), force); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return cmd
}

func newConfigValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the effective configuration (defaults, file and environment)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := loadEffective(opts); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "config is valid")
			return nil
		},
	}
}

func newConfigDumpCmd(opts *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print the effective configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadEffective(opts)
			if err != nil {
				return err
			}
			return writeConfig(cmd.OutOrStdout(), cfg.Redacted(), format)
		},
	}
	cmd.Flags().StringVar(&format, "format", "yaml", "output format: yaml or json")
	return cmd
}

func loadEffective(opts *rootOptions) (config.AppConfig, error) {
	if err := config.LoadDotEnv(opts.envFile); err != nil {
		return config.AppConfig{}, err
	}
	return config.NewLoader(opts.configPath, version.Version).Load()
}

func writeConfig(w io.Writer, cfg config.AppConfig, format string) error {
	switch format {
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return fmt.Errorf("encode config: %w", err)
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	default:
		return fmt.Errorf("unsupported format %q (use yaml or json)", format)
	}
}
