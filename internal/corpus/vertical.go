package corpus

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// verticalNamePattern keeps names safe for use inside backend collection names.
var verticalNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,48}$`)

// Verticals maps a vertical name to its keyword set. It is loaded once at
// process start and treated as read-only afterwards.
type Verticals map[string][]string

// DefaultVerticals returns the keyword sets used when no configuration is supplied.
func DefaultVerticals() Verticals {
	return Verticals{
		"jio":       {"JIO", "telecom", "telecommunications", "digital", "platform"},
		"retail":    {"retail", "Reliance Retail", "stores", "commerce"},
		"energy":    {"energy", "petroleum", "refinery", "oil", "gas"},
		"chemicals": {"chemicals", "petrochemicals", "polymer"},
		"media":     {"media", "entertainment", "broadcasting"},
		"financial": {"financial", "banking", "insurance", "investment"},
	}
}

// Names returns the vertical names in sorted order.
func (v Verticals) Names() []string {
	names := make([]string, 0, len(v))
	for name := range v {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether name is a configured vertical.
func (v Verticals) Has(name string) bool {
	_, ok := v[name]
	return ok
}

// Validate checks that every vertical has a usable name and at least one
// non-blank keyword.
func (v Verticals) Validate() error {
	if len(v) == 0 {
		return fmt.Errorf("%w: at least one vertical is required", ErrConfiguration)
	}
	for name, keywords := range v {
		if err := ValidateVerticalName(name); err != nil {
			return err
		}
		if len(keywords) == 0 {
			return fmt.Errorf("%w: vertical %q has no keywords", ErrConfiguration, name)
		}
		for i, kw := range keywords {
			if strings.TrimSpace(kw) == "" {
				return fmt.Errorf("%w: vertical %q keyword %d is blank", ErrConfiguration, name, i)
			}
		}
	}
	return nil
}

// Clone returns a deep copy so callers cannot mutate shared configuration.
func (v Verticals) Clone() Verticals {
	out := make(Verticals, len(v))
	for name, keywords := range v {
		out[name] = append([]string(nil), keywords...)
	}
	return out
}

// ValidateVerticalName checks a vertical name against ^[a-z0-9_]{1,48}$.
func ValidateVerticalName(name string) error {
	if !verticalNamePattern.MatchString(name) {
		return fmt.Errorf("%w: vertical name must match %s, got %q", ErrConfiguration, verticalNamePattern, name)
	}
	return nil
}
