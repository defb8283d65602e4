package hotkey

import (
	"fmt"
	"strings"
)

type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}

// Combo is a parsed binding like "ctrl+shift+space". Key is a single
// lowercase letter, a digit, or "space".
type Combo struct {
	Ctrl  bool
	Shift bool
	Alt   bool
	Key   string
}

func ParseCombo(s string) (Combo, error) {
	var c Combo
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "+")
	for i, p := range parts {
		p = strings.TrimSpace(p)
		last := i == len(parts)-1
		switch {
		case p == "ctrl" && !last:
			c.Ctrl = true
		case p == "shift" && !last:
			c.Shift = true
		case p == "alt" && !last:
			c.Alt = true
		case last && validKey(p):
			c.Key = p
		default:
			return Combo{}, fmt.Errorf("invalid hotkey %q", s)
		}
	}
	if c.Key == "" {
		return Combo{}, fmt.Errorf("invalid hotkey %q: no key", s)
	}
	return c, nil
}

func validKey(k string) bool {
	if k == "space" {
		return true
	}
	if len(k) != 1 {
		return false
	}
	return (k[0] >= 'a' && k[0] <= 'z') || (k[0] >= '0' && k[0] <= '9')
}

func (c Combo) String() string {
	var parts []string
	if c.Ctrl {
		parts = append(parts, "ctrl")
	}
	if c.Shift {
		parts = append(parts, "shift")
	}
	if c.Alt {
		parts = append(parts, "alt")
	}
	parts = append(parts, c.Key)
	return strings.Join(parts, "+")
}
