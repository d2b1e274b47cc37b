package config

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfRange marks a value of the right type outside its valid range.
	ErrOutOfRange = errors.New("value out of range")
	// ErrUnsupportedLanguage marks a language other than EN or RU.
	ErrUnsupportedLanguage = errors.New("unsupported language")
)

// ConfigurationError reports a setting that was replaced by its default.
type ConfigurationError struct {
	Key     string
	Value   any
	Default any
	Err     error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config %s: invalid value %v (%v), using %v", e.Key, e.Value, e.Err, e.Default)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }
