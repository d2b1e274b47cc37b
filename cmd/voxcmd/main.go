// Command voxcmd listens for recognized speech, waits for an activation word
// and answers the command that follows.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/normanking/voxcmd/internal/config"
	"github.com/normanking/voxcmd/internal/logging"
)

var version = "0.1.0"

// app carries what the subcommands share once the root has set up.
type app struct {
	cfgPath string
	verbose bool

	cfg *config.Config
	log *logging.Logger

	in  io.Reader
	out io.Writer
}

func main() {
	a := &app{in: os.Stdin, out: os.Stdout}
	if err := a.rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "voxcmd",
		Short: "voxcmd - voice command assistant",
		Long: `voxcmd reads recognized utterances, waits for an activation word and
resolves the command that follows against a commands file.

Listen on stdin:        voxcmd run
Try a command:          voxcmd resolve turn on the lights
List commands:          voxcmd commands list
Configuration:          voxcmd config show`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		RunE:              a.runListen,
	}
	root.SetIn(a.in)
	root.SetOut(a.out)

	// Global flags
	root.PersistentFlags().StringVar(&a.cfgPath, "config", "", "config file path (default ~/.voxcmd/config.yaml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "verbose output")

	root.AddCommand(&cobra.Command{
		Use:               "version",
		Short:             "Print version information",
		PersistentPreRunE: skipSetup,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "voxcmd v%s\n", version)
		},
	})

	root.AddCommand(a.runCmd())
	root.AddCommand(a.resolveCmd())
	root.AddCommand(a.commandsCmd())
	root.AddCommand(a.configCmd())
	root.AddCommand(a.historyCmd())

	return root
}

func skipSetup(*cobra.Command, []string) error { return nil }

// ═══════════════════════════════════════════════════════════════════════════════
// SETUP
// ═══════════════════════════════════════════════════════════════════════════════

// setup loads the configuration and starts logging.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	a.cfg = cfg

	logCfg := &logging.Config{
		Dir:     cfg.Logging.Dir,
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
	}
	if a.verbose {
		logCfg.Level = "debug"
		logCfg.Console = true
	}
	lg, err := logging.New(logCfg)
	if err != nil {
		return fmt.Errorf("failed to start logging: %w", err)
	}
	a.log = lg
	lg.SetGlobal()
	cobra.OnFinalize(func() { _ = lg.Close() })

	zl := lg.Zerolog()
	for _, w := range cfg.Warnings {
		zl.Warn().Err(w).Msg("Configuration value replaced")
	}
	if a.verbose {
		zl.Debug().Str("config", a.configPath()).Str("log_file", lg.Path()).Msg("Verbose logging enabled")
	}
	return nil
}

func (a *app) loadConfig() (*config.Config, error) {
	if a.cfgPath == "" {
		return config.Load()
	}
	return config.LoadFromPath(a.cfgPath)
}

func (a *app) configPath() string {
	if a.cfgPath != "" {
		return a.cfgPath
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".voxcmd", "config.yaml")
	}
	return filepath.Join(home, ".voxcmd", "config.yaml")
}

func (a *app) logger(component string) zerolog.Logger {
	if a.log == nil {
		return zerolog.Nop()
	}
	return a.log.Component(component)
}
