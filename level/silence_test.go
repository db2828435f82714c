package level

import "testing"

func feedN(w *SilenceWatch, band Severity, n int) SilenceEvent {
	var last SilenceEvent
	for i := 0; i < n; i++ {
		last = w.Tick(band)
	}
	return last
}

func TestSilenceWarnAfter8s(t *testing.T) {
	w := NewSilenceWatch()
	for i := 0; i < 79; i++ {
		if ev := w.Tick(Low); ev != SilenceNone {
			t.Fatalf("unexpected event at tick %d: %d", i, ev)
		}
	}
	if ev := w.Tick(Low); ev != SilenceWarn {
		t.Fatalf("expected SilenceWarn at tick 80, got %d", ev)
	}
	if !w.Warned() {
		t.Error("Warned() = false after warning")
	}
}

func TestSilenceClearsOnVoice(t *testing.T) {
	w := NewSilenceWatch()
	feedN(w, Low, 80)

	for i := 0; i < 80; i++ {
		if ev := w.Tick(Optimal); ev == SilenceClear {
			return
		}
	}
	t.Fatal("expected SilenceClear after sustained voice")
}

func TestNoWarnWhileSpeaking(t *testing.T) {
	w := NewSilenceWatch()
	for i := 0; i < 200; i++ {
		if ev := w.Tick(Warning); ev == SilenceWarn {
			t.Fatalf("unexpected warn during speech at tick %d", i)
		}
	}
}

func TestSilenceRepeat(t *testing.T) {
	w := NewSilenceWatch()
	feedN(w, Low, 80)
	for i := 0; i < 79; i++ {
		if ev := w.Tick(Low); ev != SilenceNone {
			t.Fatalf("unexpected event %d before repeat interval", ev)
		}
	}
	if ev := w.Tick(Low); ev != SilenceRepeat {
		t.Fatalf("expected SilenceRepeat 8s after warning, got %d", ev)
	}
}

func TestSilenceStaysDuringSparseNoise(t *testing.T) {
	w := NewSilenceWatch()
	feedN(w, Low, 80)

	for i := 0; i < 80; i++ {
		band := Low
		if i%10 == 0 {
			band = Optimal
		}
		if ev := w.Tick(band); ev == SilenceClear {
			t.Fatalf("cleared with 10%% voice at tick %d", i)
		}
	}
}

func TestSilenceReset(t *testing.T) {
	w := NewSilenceWatch()
	feedN(w, Low, 80)
	w.Reset()
	if w.Warned() {
		t.Fatal("Warned() after Reset")
	}
	for i := 0; i < 79; i++ {
		if ev := w.Tick(Low); ev != SilenceNone {
			t.Fatalf("unexpected event %d after reset", ev)
		}
	}
}
