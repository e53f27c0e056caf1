package input

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-tiny/common"
)

// Shortcut is a key together with the modifier bits that must be held with it.
type Shortcut struct {
	Key  int
	Mods int
}

// ParseShortcut parses a shortcut of the form "ctrl+shift+x". The last element is the key; every
// element before it must be a modifier. A lone "+" or an element ending in "++" names the plus
// key, which is bound to the equal key it shares.
//
// Parameters:
//   - s: the shortcut text, case-insensitive
//
// Returns:
//   - Shortcut: the parsed shortcut
//   - error: an error if a modifier or the key is unknown
func ParseShortcut(s string) (Shortcut, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Shortcut{}, fmt.Errorf("empty shortcut")
	}

	var parts []string
	if s == "+" || strings.HasSuffix(s, "++") {
		parts = strings.Split(strings.TrimSuffix(strings.TrimSuffix(s, "+"), "+"), "+")
		if parts[len(parts)-1] == "" {
			parts = parts[:len(parts)-1]
		}
		parts = append(parts, "=")
	} else {
		parts = strings.Split(s, "+")
	}

	var sc Shortcut
	for _, mod := range parts[:len(parts)-1] {
		bit, ok := common.ParseModifier(mod)
		if !ok {
			return Shortcut{}, fmt.Errorf("shortcut %q: unknown modifier %q", s, mod)
		}
		sc.Mods |= bit
	}
	key, err := common.ParseKey(parts[len(parts)-1])
	if err != nil {
		return Shortcut{}, fmt.Errorf("shortcut %q: %w", s, err)
	}
	sc.Key = key
	return sc, nil
}

// MustParseShortcut is ParseShortcut that panics on error, for shortcuts written in code.
func MustParseShortcut(s string) Shortcut {
	sc, err := ParseShortcut(s)
	if err != nil {
		panic(err)
	}
	return sc
}

// String renders the shortcut in the form ParseShortcut accepts.
func (s Shortcut) String() string {
	var b strings.Builder
	for _, m := range []struct {
		bit  int
		name string
	}{{common.ModControl, "ctrl"}, {common.ModAlt, "alt"}, {common.ModShift, "shift"}, {common.ModSuper, "super"}} {
		if s.Mods&m.bit != 0 {
			b.WriteString(m.name)
			b.WriteByte('+')
		}
	}
	b.WriteString(common.KeyName(s.Key))
	return b.String()
}
