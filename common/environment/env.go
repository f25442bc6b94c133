// Package environment loads configuration from environment variables.
//
// A Loader reads variables under a common prefix (e.g. "KOTAE_") and returns
// the parsed value or a default. Malformed values are not fatal on the spot:
// the Loader remembers every parse failure and reports them together from
// Err, so a service can print all configuration mistakes in one go instead of
// failing on the first one.
package environment

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Loader reads prefixed environment variables and collects parse errors.
type Loader struct {
	prefix string
	errs   []error
}

// New returns a Loader that prepends prefix to every variable name.
// An empty prefix reads names verbatim.
func New(prefix string) *Loader {
	return &Loader{prefix: prefix}
}

// Name returns the full variable name for name.
func (l *Loader) Name(name string) string {
	return l.prefix + name
}

// Lookup returns the raw value and whether the variable was set at all.
func (l *Loader) Lookup(name string) (string, bool) {
	return os.LookupEnv(l.Name(name))
}

// String returns the variable value, or def when unset or empty.
func (l *Loader) String(name, def string) string {
	if v := os.Getenv(l.Name(name)); v != "" {
		return v
	}
	return def
}

// Required returns the variable value and records an error when it is unset
// or empty.
func (l *Loader) Required(name string) string {
	v := os.Getenv(l.Name(name))
	if v == "" {
		l.errs = append(l.errs, fmt.Errorf("required environment variable %q is not set", l.Name(name)))
	}
	return v
}

// Int parses the variable as a decimal integer.
func (l *Loader) Int(name string, def int) int {
	v := os.Getenv(l.Name(name))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		l.fail(name, v, err)
		return def
	}
	return n
}

// Bool parses the variable with strconv.ParseBool ("1", "true", "f", ...).
func (l *Loader) Bool(name string, def bool) bool {
	v := os.Getenv(l.Name(name))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		l.fail(name, v, err)
		return def
	}
	return b
}

// Duration parses the variable with time.ParseDuration ("30s", "24h").
func (l *Loader) Duration(name string, def time.Duration) time.Duration {
	v := os.Getenv(l.Name(name))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		l.fail(name, v, err)
		return def
	}
	return d
}

// StringSlice splits the variable on commas and trims each element. Empty
// elements are dropped; def is returned when nothing remains.
func (l *Loader) StringSlice(name string, def []string) []string {
	v := os.Getenv(l.Name(name))
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

// Err returns every parse or presence error seen so far, joined, or nil.
func (l *Loader) Err() error {
	return errors.Join(l.errs...)
}

func (l *Loader) fail(name, value string, err error) {
	l.errs = append(l.errs, fmt.Errorf("environment variable %q: invalid value %q: %w", l.Name(name), value, err))
}
