package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/normanking/voxcmd/internal/asr"
	"github.com/normanking/voxcmd/pkg/command"
)

// loadRegistry reads and compiles the commands file. Skipped patterns are
// logged; an empty result is an error.
func loadRegistry(fs afero.Fs, path string, log zerolog.Logger) (*command.Registry, error) {
	defs, err := command.Load(fs, path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("Failed to load commands")
		defs = nil
	}

	reg, cerr := command.Compile(defs)
	if reg != nil {
		for _, r := range reg.Rejected() {
			log.Warn().Err(r).Msg("Skipping command")
		}
	}
	if cerr != nil {
		var empty *command.RegistryEmptyError
		if errors.As(cerr, &empty) {
			for _, r := range empty.Rejected {
				log.Warn().Err(r).Msg("Skipping command")
			}
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", cerr, err)
		}
		return nil, cerr
	}

	log.Info().Int("commands", reg.Len()).Str("path", path).Msg("Commands loaded")
	return reg, nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// RESOLVE COMMAND
// ═══════════════════════════════════════════════════════════════════════════════

func (a *app) resolveCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "resolve <utterance...>",
		Short: "Resolve an utterance against the commands file",
		Long: `Resolve runs the command matcher once, without activation gating.
Useful for testing a commands file without audio.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadRegistry(afero.NewOsFs(), a.cfg.Commands.Path, a.logger("commands"))
			if err != nil {
				return err
			}
			m := command.NewMatcher(reg, command.WithFuzzyCutoff(a.cfg.Commands.FuzzyCutoff))

			text := asr.NewNormalizer(a.cfg.LanguageTag()).Normalize(strings.Join(args, " "))
			res := m.Resolve(text)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}

			switch res.Kind {
			case command.Exact:
				fmt.Fprintf(out, "exact  %s → %s\n", res.PatternKey, res.Response)
			case command.Fuzzy:
				fmt.Fprintf(out, "fuzzy  %s → %s (confidence %.2f)\n", res.PatternKey, res.Response, res.Confidence)
			default:
				fmt.Fprintf(out, "unrecognized  %s\n", res.Utterance)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the match result as JSON")
	return cmd
}

// ═══════════════════════════════════════════════════════════════════════════════
// COMMANDS COMMANDS
// ═══════════════════════════════════════════════════════════════════════════════

func (a *app) commandsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commands",
		Short: "Inspect the commands file",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List compiled commands in match order",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadRegistry(afero.NewOsFs(), a.cfg.Commands.Path, a.logger("commands"))
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "#\tPATTERN\tFIELDS\tRESPONSE")
			for i, e := range reg.Entries() {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i+1, e.Key, strings.Join(e.Pattern.Fields(), ","), e.Template)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if n := len(reg.Rejected()); n > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "\n%d pattern(s) skipped, see log for details\n", n)
			}
			return nil
		},
	})

	return cmd
}
