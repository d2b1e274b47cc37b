package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/normanking/voxcmd/pkg/activation"
	"github.com/normanking/voxcmd/pkg/command"
)

// Supported console languages.
const (
	LanguageEN = "EN"
	LanguageRU = "RU"
)

// Utterance sources.
const (
	SourceStdin     = "stdin"
	SourceWebSocket = "websocket"
)

// Config holds all voxcmd configuration. It is loaded from
// ~/.voxcmd/config.yaml (or an explicit path) and can be overridden by
// VOXCMD_* environment variables.
type Config struct {
	// Language selects the console language tag: EN or RU.
	Language string `mapstructure:"language" yaml:"language"`
	// UseActivation turns activation-word gating on.
	UseActivation bool `mapstructure:"use_activation" yaml:"use_activation"`
	// ActivationWords arm the assistant when heard.
	ActivationWords []string `mapstructure:"activation_words" yaml:"activation_words"`
	// ActivationTimeout is the armed window in seconds.
	ActivationTimeout float64 `mapstructure:"activation_timeout" yaml:"activation_timeout"`

	Commands CommandsConfig `mapstructure:"commands" yaml:"commands"`
	ASR      ASRConfig      `mapstructure:"asr" yaml:"asr"`
	Sound    SoundConfig    `mapstructure:"sound" yaml:"sound"`
	History  HistoryConfig  `mapstructure:"history" yaml:"history"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	Output   OutputConfig   `mapstructure:"output" yaml:"output"`

	// Warnings lists invalid values that were replaced by defaults.
	Warnings []*ConfigurationError `mapstructure:"-" yaml:"-"`
}

// CommandsConfig locates the command definitions.
type CommandsConfig struct {
	// Path of the commands file (JSON or YAML object of pattern to response).
	Path string `mapstructure:"path" yaml:"path"`
	// FuzzyCutoff is the minimum similarity for a fuzzy match, in (0, 1].
	FuzzyCutoff float64 `mapstructure:"fuzzy_cutoff" yaml:"fuzzy_cutoff"`
	// Watch reloads the commands file when it changes.
	Watch bool `mapstructure:"watch" yaml:"watch"`
}

// ASRConfig selects where recognized utterances come from.
type ASRConfig struct {
	// Source is "stdin" (one utterance per line) or "websocket".
	Source string `mapstructure:"source" yaml:"source"`
	// Endpoint is the transcript WebSocket URL for the websocket source.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	// ReconnectDelay is the pause before redialing a dropped connection.
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay" yaml:"reconnect_delay"`
	// MaxErrors ends the session after this many consecutive source errors.
	MaxErrors int `mapstructure:"max_errors" yaml:"max_errors"`
}

// SoundConfig controls activation and deactivation sounds.
type SoundConfig struct {
	Enabled      bool   `mapstructure:"enabled" yaml:"enabled"`
	Dir          string `mapstructure:"dir" yaml:"dir"`
	Activation   string `mapstructure:"activation" yaml:"activation"`
	Deactivation string `mapstructure:"deactivation" yaml:"deactivation"`
	// Player is the external command used for playback. Empty picks one
	// for the platform.
	Player string `mapstructure:"player" yaml:"player"`
}

// HistoryConfig controls the SQLite command history.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is one of: debug, info, warn, error.
	Level string `mapstructure:"level" yaml:"level"`
	// Dir receives dated log files. Empty disables file logging.
	Dir string `mapstructure:"dir" yaml:"dir"`
	// Console mirrors logs to stderr.
	Console bool `mapstructure:"console" yaml:"console"`
}

// OutputConfig controls console messages.
type OutputConfig struct {
	WordsPerLine int  `mapstructure:"words_per_line" yaml:"words_per_line"`
	Color        bool `mapstructure:"color" yaml:"color"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Language:          LanguageEN,
		UseActivation:     true,
		ActivationWords:   []string{},
		ActivationTimeout: activation.DefaultTimeout.Seconds(),
		Commands: CommandsConfig{
			Path:        "commands.json",
			FuzzyCutoff: command.DefaultFuzzyCutoff,
			Watch:       false,
		},
		ASR: ASRConfig{
			Source:         SourceStdin,
			Endpoint:       "ws://127.0.0.1:2700",
			ReconnectDelay: 2 * time.Second,
			MaxErrors:      10,
		},
		Sound: SoundConfig{
			Enabled:      true,
			Dir:          "sounds",
			Activation:   "activation.wav",
			Deactivation: "deactivation.wav",
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    "~/.voxcmd/history.db",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9464",
		},
		Logging: LoggingConfig{
			Level:   "info",
			Dir:     "~/.voxcmd/logs",
			Console: true,
		},
		Output: OutputConfig{
			WordsPerLine: 10,
			Color:        true,
		},
	}
}

// Load reads configuration from ~/.voxcmd/config.yaml, creating it with
// defaults if it does not exist.
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	return LoadFromPath(filepath.Join(homeDir, ".voxcmd", "config.yaml"))
}

// LoadFromPath reads configuration from path. A missing YAML file is created
// with defaults; a missing file of any other type yields defaults and a
// warning. Invalid values never fail the load: they are replaced by defaults
// and recorded in Warnings.
func LoadFromPath(path string) (*Config, error) {
	path = expandPath(path)
	defaults := Default()
	var missing *ConfigurationError

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if isYAML(path) {
			if err := defaults.SaveToPath(path); err != nil {
				return nil, fmt.Errorf("failed to write default config: %w", err)
			}
		} else {
			missing = &ConfigurationError{Key: "file", Value: path, Default: "built-in defaults", Err: err}
		}
	}

	v := viper.New()
	setDefaults(v, defaults)

	// Example: VOXCMD_ACTIVATION_TIMEOUT, VOXCMD_ASR_ENDPOINT
	v.SetEnvPrefix("VOXCMD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if missing == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := decode(v, defaults)
	if missing != nil {
		cfg.Warnings = append([]*ConfigurationError{missing}, cfg.Warnings...)
	}
	return cfg, nil
}

// FromViper decodes an already populated viper instance. Keys that are not
// set fall back to defaults.
func FromViper(v *viper.Viper) *Config {
	defaults := Default()
	setDefaults(v, defaults)
	return decode(v, defaults)
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("language", d.Language)
	v.SetDefault("use_activation", d.UseActivation)
	v.SetDefault("activation_words", d.ActivationWords)
	v.SetDefault("activation_timeout", d.ActivationTimeout)

	v.SetDefault("commands.path", d.Commands.Path)
	v.SetDefault("commands.fuzzy_cutoff", d.Commands.FuzzyCutoff)
	v.SetDefault("commands.watch", d.Commands.Watch)

	v.SetDefault("asr.source", d.ASR.Source)
	v.SetDefault("asr.endpoint", d.ASR.Endpoint)
	v.SetDefault("asr.reconnect_delay", d.ASR.ReconnectDelay)
	v.SetDefault("asr.max_errors", d.ASR.MaxErrors)

	v.SetDefault("sound.enabled", d.Sound.Enabled)
	v.SetDefault("sound.dir", d.Sound.Dir)
	v.SetDefault("sound.activation", d.Sound.Activation)
	v.SetDefault("sound.deactivation", d.Sound.Deactivation)
	v.SetDefault("sound.player", d.Sound.Player)

	v.SetDefault("history.enabled", d.History.Enabled)
	v.SetDefault("history.path", d.History.Path)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.addr", d.Metrics.Addr)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.dir", d.Logging.Dir)
	v.SetDefault("logging.console", d.Logging.Console)

	v.SetDefault("output.words_per_line", d.Output.WordsPerLine)
	v.SetDefault("output.color", d.Output.Color)
}

// decode builds a Config from v. Each value is coerced on its own so that
// one bad setting cannot discard the rest.
func decode(v *viper.Viper, d *Config) *Config {
	cfg := *d
	cfg.Warnings = nil
	warn := func(key string, value, def any, err error) {
		cfg.Warnings = append(cfg.Warnings, &ConfigurationError{Key: key, Value: value, Default: def, Err: err})
	}

	cfg.Language = parseLanguage(v.Get("language"), warn)

	if b, err := cast.ToBoolE(v.Get("use_activation")); err != nil {
		warn("use_activation", v.Get("use_activation"), d.UseActivation, err)
	} else {
		cfg.UseActivation = b
	}

	if words, err := toWords(v.Get("activation_words")); err != nil {
		warn("activation_words", v.Get("activation_words"), d.ActivationWords, err)
	} else {
		cfg.ActivationWords = words
	}

	raw := v.Get("activation_timeout")
	if secs, err := cast.ToFloat64E(raw); err != nil {
		warn("activation_timeout", raw, d.ActivationTimeout, err)
	} else if secs <= 0 || math.IsNaN(secs) || math.IsInf(secs, 0) {
		warn("activation_timeout", raw, d.ActivationTimeout, ErrOutOfRange)
	} else {
		cfg.ActivationTimeout = secs
	}

	sections := []struct {
		key string
		out any
		def any
	}{
		{"commands", &cfg.Commands, d.Commands},
		{"asr", &cfg.ASR, d.ASR},
		{"sound", &cfg.Sound, d.Sound},
		{"history", &cfg.History, d.History},
		{"metrics", &cfg.Metrics, d.Metrics},
		{"logging", &cfg.Logging, d.Logging},
		{"output", &cfg.Output, d.Output},
	}
	all := v.AllSettings()
	for _, s := range sections {
		if err := decodeSection(all[s.key], s.out); err != nil {
			warn(s.key, v.Get(s.key), s.def, err)
			resetSection(&cfg, d, s.key)
		}
	}

	cfg.Warnings = append(cfg.Warnings, cfg.Normalize()...)

	cfg.Commands.Path = expandPath(cfg.Commands.Path)
	cfg.Sound.Dir = expandPath(cfg.Sound.Dir)
	cfg.History.Path = expandPath(cfg.History.Path)
	cfg.Logging.Dir = expandPath(cfg.Logging.Dir)

	return &cfg
}

// decodeSection decodes one section of v.AllSettings, which unlike
// UnmarshalKey reflects environment overrides of nested keys.
func decodeSection(input, out any) error {
	if input == nil {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

// toWords accepts a list or a comma separated string.
func toWords(raw any) ([]string, error) {
	if s, ok := raw.(string); ok {
		var words []string
		for _, w := range strings.Split(s, ",") {
			if w = strings.TrimSpace(w); w != "" {
				words = append(words, w)
			}
		}
		return words, nil
	}
	return cast.ToStringSliceE(raw)
}

func resetSection(cfg, d *Config, key string) {
	switch key {
	case "commands":
		cfg.Commands = d.Commands
	case "asr":
		cfg.ASR = d.ASR
	case "sound":
		cfg.Sound = d.Sound
	case "history":
		cfg.History = d.History
	case "metrics":
		cfg.Metrics = d.Metrics
	case "logging":
		cfg.Logging = d.Logging
	case "output":
		cfg.Output = d.Output
	}
}

func parseLanguage(raw any, warn func(string, any, any, error)) string {
	s, err := cast.ToStringE(raw)
	if err != nil {
		warn("language", raw, LanguageEN, err)
		return LanguageEN
	}
	tag, err := language.Parse(strings.TrimSpace(s))
	if err != nil {
		warn("language", raw, LanguageEN, err)
		return LanguageEN
	}
	base, _ := tag.Base()
	switch base.String() {
	case "en":
		return LanguageEN
	case "ru":
		return LanguageRU
	}
	warn("language", raw, LanguageEN, ErrUnsupportedLanguage)
	return LanguageEN
}

// Normalize replaces out-of-range values with defaults and returns a
// warning for each replacement.
func (c *Config) Normalize() []*ConfigurationError {
	d := Default()
	var warnings []*ConfigurationError
	warn := func(key string, value, def any) {
		warnings = append(warnings, &ConfigurationError{Key: key, Value: value, Default: def, Err: ErrOutOfRange})
	}

	if c.Language != LanguageEN && c.Language != LanguageRU {
		warn("language", c.Language, d.Language)
		c.Language = d.Language
	}
	if c.ActivationTimeout <= 0 || math.IsNaN(c.ActivationTimeout) || math.IsInf(c.ActivationTimeout, 0) {
		warn("activation_timeout", c.ActivationTimeout, d.ActivationTimeout)
		c.ActivationTimeout = d.ActivationTimeout
	}
	if c.Commands.Path == "" {
		warn("commands.path", c.Commands.Path, d.Commands.Path)
		c.Commands.Path = d.Commands.Path
	}
	if c.Commands.FuzzyCutoff <= 0 || c.Commands.FuzzyCutoff > 1 {
		warn("commands.fuzzy_cutoff", c.Commands.FuzzyCutoff, d.Commands.FuzzyCutoff)
		c.Commands.FuzzyCutoff = d.Commands.FuzzyCutoff
	}
	if c.ASR.Source != SourceStdin && c.ASR.Source != SourceWebSocket {
		warn("asr.source", c.ASR.Source, d.ASR.Source)
		c.ASR.Source = d.ASR.Source
	}
	if c.ASR.ReconnectDelay < 0 {
		warn("asr.reconnect_delay", c.ASR.ReconnectDelay, d.ASR.ReconnectDelay)
		c.ASR.ReconnectDelay = d.ASR.ReconnectDelay
	}
	if c.ASR.MaxErrors <= 0 {
		warn("asr.max_errors", c.ASR.MaxErrors, d.ASR.MaxErrors)
		c.ASR.MaxErrors = d.ASR.MaxErrors
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		warn("logging.level", c.Logging.Level, d.Logging.Level)
		c.Logging.Level = d.Logging.Level
	}
	if c.Output.WordsPerLine <= 0 {
		warn("output.words_per_line", c.Output.WordsPerLine, d.Output.WordsPerLine)
		c.Output.WordsPerLine = d.Output.WordsPerLine
	}
	return warnings
}

// Timeout returns the activation timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.ActivationTimeout * float64(time.Second))
}

// Activation returns the gating configuration.
func (c *Config) Activation() activation.Config {
	words := make([]string, len(c.ActivationWords))
	copy(words, c.ActivationWords)
	return activation.Config{
		Enabled: c.UseActivation,
		Words:   words,
		Timeout: c.Timeout(),
	}
}

// LanguageTag returns the language as a BCP 47 tag.
func (c *Config) LanguageTag() language.Tag {
	if c.Language == LanguageRU {
		return language.Russian
	}
	return language.English
}

// SoundPath returns the full path of a sound file name.
func (c *Config) SoundPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Sound.Dir, name)
}

// SaveToPath writes the configuration to path as YAML.
func (c *Config) SaveToPath(path string) error {
	path = expandPath(path)

	// Ensure the config directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return writeConfigFile(path, c)
}

func writeConfigFile(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[1:])
	}
	return path
}
