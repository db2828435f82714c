package doctor

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"prompter/audio"
	"prompter/level"
)

func writeToneWAV(t *testing.T, seconds float64, amp int16) string {
	t.Helper()
	n := int(seconds * audio.SampleRate)
	data := make([]byte, audio.WAVHeaderSize+2*n)
	for i := 0; i < n; i++ {
		v := amp
		if i%2 == 1 {
			v = -amp
		}
		binary.LittleEndian.PutUint16(data[audio.WAVHeaderSize+2*i:], uint16(v))
	}
	path := filepath.Join(t.TempDir(), "tone.wav")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestMeterReportsBands(t *testing.T) {
	actx, err := audio.NewFakeContextFromWAV(writeToneWAV(t, 2, 8000), true)
	if err != nil {
		t.Fatal(err)
	}

	pcm, report, err := Meter(actx, nil, 550*time.Millisecond)
	if err != nil {
		t.Fatalf("Meter: %v", err)
	}
	if len(pcm) == 0 {
		t.Fatal("no pcm captured")
	}
	if report.Ticks < 4 {
		t.Fatalf("ticks = %d, want >= 4", report.Ticks)
	}
	if report.Counts[level.Optimal] == 0 {
		t.Errorf("expected optimal ticks, got %s", report)
	}
	if report.PeakDB < -18 {
		t.Errorf("peak dB = %.1f, want >= -18", report.PeakDB)
	}
	if actx.Live() != 0 {
		t.Error("capture left open")
	}
}

func TestMeterNoDevice(t *testing.T) {
	actx := audio.NewFakeContext()
	if _, _, err := Meter(actx, nil, 10*time.Millisecond); err == nil {
		t.Fatal("expected error without devices")
	}
}

func TestMeterReportString(t *testing.T) {
	r := MeterReport{Ticks: 3, Counts: map[level.Severity]int{level.Optimal: 2, level.Low: 1}, PeakDB: -12.34}
	s := r.String()
	if !strings.Contains(s, "3 ticks") || !strings.Contains(s, "-12.3 dBFS") {
		t.Errorf("unexpected report %q", s)
	}
}

func TestBluetoothWarning(t *testing.T) {
	if BluetoothWarning(audio.DeviceInfo{Name: "AirPods Pro"}) == "" {
		t.Error("expected warning for AirPods")
	}
	if BluetoothWarning(audio.DeviceInfo{Name: "Built-in"}) != "" {
		t.Error("unexpected warning")
	}
}
