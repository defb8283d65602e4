package hotkey

import "testing"

func TestParseCombo(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want string
	}{
		{"ctrl+shift+space", "ctrl+shift+space"},
		{"Ctrl+Shift+Space", "ctrl+shift+space"},
		{"alt+r", "alt+r"},
		{"ctrl+alt+p", "ctrl+alt+p"},
		{"ctrl+1", "ctrl+1"},
		{" ctrl + shift + s ", "ctrl+shift+s"},
	} {
		t.Run(tt.in, func(t *testing.T) {
			c, err := ParseCombo(tt.in)
			if err != nil {
				t.Fatal(err)
			}
			if c.String() != tt.want {
				t.Errorf("got %q, want %q", c, tt.want)
			}
		})
	}
}

func TestParseComboInvalid(t *testing.T) {
	for _, in := range []string{"", "ctrl+", "ctrl", "meta+x", "ctrl+enterkey", "shift+shift"} {
		t.Run(in, func(t *testing.T) {
			if _, err := ParseCombo(in); err == nil {
				t.Errorf("ParseCombo(%q) succeeded, want error", in)
			}
		})
	}
}
