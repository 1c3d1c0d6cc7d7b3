package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration is a time.Duration read from text such as "30s" or "1m30s". A
// bare integer counts seconds, so VERTICALD_EVENTS_TIMEOUT=5 works.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	var v time.Duration
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		v = time.Duration(n) * time.Second
	} else if v, err = time.ParseDuration(s); err != nil {
		return fmt.Errorf("duration %q: %w", s, err)
	}
	if v < 0 {
		return fmt.Errorf("duration %q is negative", s)
	}
	*d = Duration(v)
	return nil
}

// MarshalText also serves encoding/json.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }

const redacted = "[REDACTED]"

var errRedactedSecret = errors.New("secret holds the redacted placeholder")

// Secret is a credential. Every formatting and marshaling path prints
// [REDACTED]; only Value returns the text.
type Secret string

func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return redacted
}

func (s Secret) GoString() string { return "Secret(" + redacted + ")" }

func (s Secret) Value() string { return string(s) }

func (s Secret) IsSet() bool { return s != "" }

// MarshalText also serves encoding/json, so a dumped config never carries
// the credential.
func (s Secret) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText trims surrounding space. The redacted placeholder is
// rejected so a dumped config cannot be loaded back as a credential.
func (s *Secret) UnmarshalText(text []byte) error {
	v := strings.TrimSpace(string(text))
	if v == redacted {
		return errRedactedSecret
	}
	*s = Secret(v)
	return nil
}
