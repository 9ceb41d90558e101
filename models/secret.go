package models

import (
	"log/slog"
	"strings"
)

// Secret holds a credential. It never prints its value.
type Secret string

const redacted = "[redacted]"

func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return redacted
}

// GoString keeps %#v from leaking the value.
func (s Secret) GoString() string { return s.String() }

// LogValue implements slog.LogValuer.
func (s Secret) LogValue() slog.Value { return slog.StringValue(s.String()) }

// Reveal returns the raw credential for the one place that needs it.
func (s Secret) Reveal() string { return string(s) }

// Empty reports whether no usable credential is set.
func (s Secret) Empty() bool { return strings.TrimSpace(string(s)) == "" }
