package input

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-tiny/common"
)

func TestParseShortcut(t *testing.T) {
	tests := []struct {
		in      string
		want    Shortcut
		wantErr bool
	}{
		{"w", Shortcut{Key: common.KeyW}, false},
		{"Space", Shortcut{Key: common.KeySpace}, false},
		{"ctrl+shift+x", Shortcut{Key: common.KeyX, Mods: common.ModControl | common.ModShift}, false},
		{"alt+1", Shortcut{Key: common.Key1, Mods: common.ModAlt}, false},
		{"+", Shortcut{Key: common.KeyEqual}, false},
		{"ctrl++", Shortcut{Key: common.KeyEqual, Mods: common.ModControl}, false},
		{"-", Shortcut{Key: common.KeyMinus}, false},
		{"", Shortcut{}, true},
		{"hyper+x", Shortcut{}, true},
		{"ctrl+nope", Shortcut{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseShortcut(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseShortcut(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseShortcut(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestShortcutStringRoundTrip(t *testing.T) {
	for _, s := range []string{"w", "ctrl+shift+x", "alt+space", "ctrl+alt+shift+super+left"} {
		sc := MustParseShortcut(s)
		if got := sc.String(); got != s {
			t.Errorf("String() = %q, want %q", got, s)
		}
	}
}

func TestRegistryPressRelease(t *testing.T) {
	r := NewRegistry()
	var presses, releases int
	if err := r.Bind("Forward", "w", func() { presses++ }, func() { releases++ }); err != nil {
		t.Fatal(err)
	}

	if !r.Press(common.KeyW, 0) {
		t.Fatal("press not handled")
	}
	if r.Press(common.KeyW, 0) {
		t.Error("key repeat fired again")
	}
	if !r.Held(common.KeyW) {
		t.Error("key not held")
	}
	if !r.Release(common.KeyW) {
		t.Error("release not handled")
	}
	if presses != 1 || releases != 1 {
		t.Errorf("presses=%d releases=%d, want 1 and 1", presses, releases)
	}
	if r.Release(common.KeyW) {
		t.Error("second release fired")
	}
}

func TestRegistryModifiers(t *testing.T) {
	r := NewRegistry()
	var plain, ctrl, released int
	r.BindShortcut("plain", MustParseShortcut("x"), func() { plain++ }, nil)
	r.BindShortcut("ctrl", MustParseShortcut("ctrl+x"), func() { ctrl++ }, func() { released++ })

	r.Press(common.KeyX, common.ModControl)
	r.Release(common.KeyX)
	r.Press(common.KeyX, 0)
	r.Release(common.KeyX)
	r.Press(common.KeyX, common.ModShift)

	if plain != 1 || ctrl != 1 {
		t.Errorf("plain=%d ctrl=%d, want 1 and 1", plain, ctrl)
	}
	if released != 1 {
		t.Errorf("ctrl binding released %d times, want 1", released)
	}
}

func TestRegistryRebindUnbindAndList(t *testing.T) {
	r := NewRegistry()
	var first, second, released int
	_ = r.Bind("Up", "space", nil, nil)
	_ = r.Bind("Roll", "comma", func() { first++ }, nil)
	_ = r.Bind("Roll left", ",", func() { second++ }, func() { released++ })
	_ = r.Bind("Down", "z", nil, nil)

	got := r.Bindings()
	want := []string{"Up (space)", "Roll left (comma)", "Down (z)"}
	if len(got) != len(want) {
		t.Fatalf("got %d bindings, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].String() != want[i] {
			t.Errorf("binding %d = %q, want %q", i, got[i], want[i])
		}
	}

	r.Press(common.KeyComma, 0)
	if first != 0 || second != 1 {
		t.Errorf("rebind did not replace callbacks: first=%d second=%d", first, second)
	}
	if !r.Bindings()[1].Active {
		t.Error("pressed binding not listed as active")
	}

	ok, err := r.Unbind(",")
	if err != nil || !ok {
		t.Fatalf("Unbind = %v, %v", ok, err)
	}
	if released != 1 {
		t.Error("unbinding an active shortcut did not release it")
	}
	if ok, _ := r.Unbind(","); ok {
		t.Error("second Unbind reported a removal")
	}
	if _, err := r.Unbind("ctrl+"); err == nil {
		t.Error("Unbind accepted a malformed shortcut")
	}
}

func TestRegistryReleaseAll(t *testing.T) {
	r := NewRegistry()
	released := 0
	_ = r.Bind("a", "a", nil, func() { released++ })
	_ = r.Bind("b", "b", nil, func() { released++ })
	r.Press(common.KeyA, 0)
	r.Press(common.KeyB, 0)
	r.ReleaseAll()
	if released != 2 || r.Held(common.KeyA) {
		t.Errorf("released=%d held=%v", released, r.Held(common.KeyA))
	}
}
