//go:build linux

package hotkey

import "testing"

func TestChordPressAndRelease(t *testing.T) {
	var c chord
	c.apply(keyLCtrl, keyPress)
	c.apply(keyRShift, keyPress)

	if down, _ := c.apply(keySpace, keyPress); !down {
		t.Fatal("expected keydown on ctrl+shift+space")
	}
	// Auto-repeat (value 2) must not fire again.
	if down, up := c.apply(keySpace, 2); down || up {
		t.Fatal("auto-repeat should be ignored")
	}
	// Modifiers released first; the space release still ends the chord.
	c.apply(keyLCtrl, keyRelease)
	c.apply(keyRShift, keyRelease)
	if _, up := c.apply(keySpace, keyRelease); !up {
		t.Fatal("expected keyup on space release")
	}
}

func TestChordNeedsBothModifiers(t *testing.T) {
	var c chord
	c.apply(keyLCtrl, keyPress)
	if down, _ := c.apply(keySpace, keyPress); down {
		t.Fatal("ctrl+space alone should not fire")
	}
	if _, up := c.apply(keySpace, keyRelease); up {
		t.Fatal("release without press should not fire")
	}
}

func TestHasKeys(t *testing.T) {
	// Space (57), ctrl (29) and shift (42) all live in the lowest 64-bit word.
	tests := []struct {
		name string
		caps string
		want bool
	}{
		{"keyboard", "fe 0 0 0 3ffffffffffffff fffffffffffffffe", true},
		{"exact bits", "ffff 200040020000000", true},
		{"space only", "0 200000000000000", false},
		{"space in high word", "200040020000000 40020000000", false},
		{"mouse", "1f0000 0 0 0 0", false},
		{"empty", "", false},
		{"garbage", "zz", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hasKeys(tt.caps, keySpace, keyLCtrl, keyLShift); got != tt.want {
				t.Errorf("hasKeys(%q) = %v, want %v", tt.caps, got, tt.want)
			}
		})
	}
}
