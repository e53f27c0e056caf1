package common

import (
	"fmt"
	"strings"
)

// Virtual key codes for cross-platform input handling.
// These values match GLFW key codes which use ASCII values for printable keys.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
const (
	KeyA = 65 + iota // A key (ASCII)
	KeyB
	KeyC
	KeyD
	KeyE
	KeyF
	KeyG
	KeyH
	KeyI
	KeyJ
	KeyK
	KeyL
	KeyM
	KeyN
	KeyO
	KeyP
	KeyQ
	KeyR
	KeyS
	KeyT
	KeyU
	KeyV
	KeyW
	KeyX
	KeyY
	KeyZ
)

const (
	Key0 = 48 // 0 key (ASCII)
	Key1 = 49 // 1 key (ASCII)
	Key2 = 50 // 2 key (ASCII)
	Key3 = 51 // 3 key (ASCII)
	Key4 = 52 // 4 key (ASCII)
	Key5 = 53 // 5 key (ASCII)
	Key6 = 54 // 6 key (ASCII)
	Key7 = 55 // 7 key (ASCII)
	Key8 = 56 // 8 key (ASCII)
	Key9 = 57 // 9 key (ASCII)

	KeySpace     = 32 // Spacebar (ASCII)
	KeyComma     = 44 // , (ASCII)
	KeyMinus     = 45 // - (ASCII)
	KeyPeriod    = 46 // . (ASCII)
	KeySlash     = 47 // / (ASCII)
	KeyEqual     = 61 // = (ASCII)
	KeyEsc       = 256
	KeyEnter     = 257
	KeyTab       = 258
	KeyBackspace = 259
	KeyRight     = 262
	KeyLeft      = 263
	KeyDown      = 264
	KeyUp        = 265
)

// Additional non-printable keys
const (
	KeyLeftShift    = 340 // Left Shift (GLFW)
	KeyLeftControl  = 341 // Left Control (GLFW)
	KeyLeftAlt      = 342 // Left Alt (GLFW)
	KeyRightShift   = 344 // Right Shift (GLFW)
	KeyRightControl = 345 // Right Control (GLFW)
	KeyRightAlt     = 346 // Right Alt (GLFW)
)

// Modifier bits, matching glfw.ModifierKey.
const (
	ModShift   = 0x1
	ModControl = 0x2
	ModAlt     = 0x4
	ModSuper   = 0x8
)

var namedKeys = map[string]int{
	"space":     KeySpace,
	"comma":     KeyComma,
	",":         KeyComma,
	"minus":     KeyMinus,
	"-":         KeyMinus,
	"period":    KeyPeriod,
	".":         KeyPeriod,
	"slash":     KeySlash,
	"/":         KeySlash,
	"equal":     KeyEqual,
	"=":         KeyEqual,
	"esc":       KeyEsc,
	"escape":    KeyEsc,
	"enter":     KeyEnter,
	"tab":       KeyTab,
	"backspace": KeyBackspace,
	"right":     KeyRight,
	"left":      KeyLeft,
	"down":      KeyDown,
	"up":        KeyUp,
}

var namedMods = map[string]int{
	"shift":   ModShift,
	"ctrl":    ModControl,
	"control": ModControl,
	"alt":     ModAlt,
	"super":   ModSuper,
	"cmd":     ModSuper,
}

// ParseKey parses a single key name ("a", "7", "space", "left") into its key code.
//
// Parameters:
//   - name: the key name, case-insensitive
//
// Returns:
//   - int: the key code
//   - error: an error if the name is unknown
func ParseKey(name string) (int, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if code, ok := namedKeys[n]; ok {
		return code, nil
	}
	if len(n) == 1 {
		c := n[0]
		switch {
		case c >= 'a' && c <= 'z':
			return KeyA + int(c-'a'), nil
		case c >= '0' && c <= '9':
			return Key0 + int(c-'0'), nil
		}
	}
	return 0, fmt.Errorf("unknown key %q", name)
}

// ParseModifier parses a modifier name ("shift", "ctrl", "alt", "super") into its bit.
//
// Parameters:
//   - name: the modifier name, case-insensitive
//
// Returns:
//   - int: the modifier bit
//   - bool: false if name is not a modifier
func ParseModifier(name string) (int, bool) {
	m, ok := namedMods[strings.ToLower(strings.TrimSpace(name))]
	return m, ok
}

// KeyName returns the canonical lower-case name of a key code, the inverse of ParseKey.
func KeyName(code int) string {
	switch {
	case code >= KeyA && code <= KeyZ:
		return string(rune('a' + code - KeyA))
	case code >= Key0 && code <= Key9:
		return string(rune('0' + code - Key0))
	}
	best := ""
	for name, c := range namedKeys {
		if c == code && (best == "" || len(name) > len(best) || (len(name) == len(best) && name < best)) {
			best = name
		}
	}
	if best != "" {
		return best
	}
	return fmt.Sprintf("key%d", code)
}
