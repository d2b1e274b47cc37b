package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/normanking/voxcmd/internal/config"
)

// ═══════════════════════════════════════════════════════════════════════════════
// CONFIG COMMANDS
// ═══════════════════════════════════════════════════════════════════════════════

func (a *app) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	// Show command
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			cfg := a.cfg

			fmt.Fprintln(out, "voxcmd Configuration:")
			fmt.Fprintln(out, "─────────────────────")
			fmt.Fprintf(out, "Language:           %s\n", cfg.Language)
			fmt.Fprintf(out, "Use Activation:     %t\n", cfg.UseActivation)
			fmt.Fprintf(out, "Activation Words:   %s\n", strings.Join(cfg.ActivationWords, ", "))
			fmt.Fprintf(out, "Activation Timeout: %s\n", cfg.Timeout())
			fmt.Fprintf(out, "Commands File:      %s\n", cfg.Commands.Path)
			fmt.Fprintf(out, "Fuzzy Cutoff:       %.2f\n", cfg.Commands.FuzzyCutoff)
			fmt.Fprintf(out, "ASR Source:         %s\n", cfg.ASR.Source)
			if cfg.ASR.Source == config.SourceWebSocket {
				fmt.Fprintf(out, "ASR Endpoint:       %s\n", cfg.ASR.Endpoint)
			}
			fmt.Fprintf(out, "Sounds:             %t (%s)\n", cfg.Sound.Enabled, cfg.Sound.Dir)
			fmt.Fprintf(out, "History:            %t (%s)\n", cfg.History.Enabled, cfg.History.Path)
			fmt.Fprintf(out, "Metrics:            %t (%s)\n", cfg.Metrics.Enabled, cfg.Metrics.Addr)
			fmt.Fprintf(out, "Log Level:          %s\n", cfg.Logging.Level)

			if len(cfg.Warnings) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Warnings:")
				for _, w := range cfg.Warnings {
					fmt.Fprintf(out, "  - %s\n", w)
				}
			}
			return nil
		},
	})

	// Init command
	var force bool
	initCmd := &cobra.Command{
		Use:               "init",
		Short:             "Write a default configuration file",
		PersistentPreRunE: skipSetup,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.configPath()
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			if err := config.Default().SaveToPath(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cmd.AddCommand(initCmd)

	// Dump command
	cmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(a.cfg); err != nil {
				return err
			}
			return enc.Close()
		},
	})

	// Path command
	cmd.AddCommand(&cobra.Command{
		Use:               "path",
		Short:             "Show configuration file path",
		PersistentPreRunE: skipSetup,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), a.configPath())
		},
	})

	return cmd
}
