package beep

import (
	"context"
	"encoding/binary"
	"testing"
)

func TestGenerateTickDecays(t *testing.T) {
	s := generateTick(1000, 50, 0.5, 0.5, 20)
	if len(s) != 500 {
		t.Fatalf("len = %d, want 500", len(s))
	}
	peak := func(xs []int16) int16 {
		var p int16
		for _, x := range xs {
			if x < 0 {
				x = -x
			}
			p = max(p, x)
		}
		return p
	}
	if head, tail := peak(s[:100]), peak(s[400:]); tail >= head {
		t.Fatalf("tail peak %d not below head peak %d", tail, head)
	}
	if p := peak(s); p > 32767/2 {
		t.Fatalf("peak %d exceeds volume", p)
	}
}

func TestDoubleBeepHasGap(t *testing.T) {
	single := generateTick(1000, 100, 0.1, 0.5, 10)
	double := generateDoubleBeep(1000, 100, 0.1, 0.05, 0.5, 10)
	if len(double) != 2*len(single)+50 {
		t.Fatalf("len = %d, want %d", len(double), 2*len(single)+50)
	}
	for i := len(single); i < len(single)+50; i++ {
		if double[i] != 0 {
			t.Fatalf("gap sample %d = %d, want 0", i, double[i])
		}
	}
}

func TestToBytesLittleEndian(t *testing.T) {
	b := toBytes([]int16{1, -2})
	if got := int16(binary.LittleEndian.Uint16(b[2:])); got != -2 {
		t.Fatalf("got %d, want -2", got)
	}
}

func TestPlayEmptyIsNoop(t *testing.T) {
	if err := PlayPCM(context.Background(), nil, 48000); err != nil {
		t.Fatalf("PlayPCM(nil) = %v", err)
	}
}
