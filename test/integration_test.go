//go:build integration

package test_test

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"prompter/clipboard"
	"prompter/encoder"
)

var (
	testBinary  string
	tonePath    string
	silencePath string
)

func TestMain(m *testing.M) {
	testBinary = os.Getenv("PROMPTER_TEST_BIN")
	if testBinary == "" {
		fmt.Fprintln(os.Stderr, "PROMPTER_TEST_BIN not set; build prompter and point PROMPTER_TEST_BIN at the binary")
		os.Exit(1)
	}

	dir, err := os.MkdirTemp("", "prompter-data")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create data dir: %v\n", err)
		os.Exit(1)
	}
	tonePath = filepath.Join(dir, "tone.wav")
	silencePath = filepath.Join(dir, "silence.wav")
	if err := generateWAV(tonePath, 48000, 3.0, 0.3); err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate tone.wav: %v\n", err)
		os.Exit(1)
	}
	if err := generateWAV(silencePath, 48000, 1.0, 0); err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate silence.wav: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

// generateWAV writes a mono 16-bit WAV of a 440 Hz sine at amplitude amp.
func generateWAV(path string, sampleRate int, durationS, amp float64) error {
	const headerSize = 44
	numSamples := int(float64(sampleRate) * durationS)
	dataSize := numSamples * 2

	buf := make([]byte, headerSize+dataSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(headerSize-8+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(buf[32:34], 2)  // block align
	binary.LittleEndian.PutUint16(buf[34:36], 16) // bits per sample
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))

	for i := 0; i < numSamples; i++ {
		v := amp * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate))
		binary.LittleEndian.PutUint16(buf[headerSize+2*i:], uint16(int16(v*32767)))
	}
	return os.WriteFile(path, buf, 0644)
}

func cmds(parts ...string) string {
	return strings.Join(parts, "\n") + "\n"
}

type result struct {
	logDir string
	outDir string
	stdout string
}

func runPrompter(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	res := result{logDir: t.TempDir(), outDir: t.TempDir()}
	cmdArgs := append([]string{"-logpath", res.logDir, "-out", res.outDir}, args...)

	cmd := exec.Command(testBinary, cmdArgs...)
	cmd.Stdin = strings.NewReader(stdin)
	cmd.Env = append(os.Environ(), "XDG_CONFIG_HOME="+t.TempDir())

	out, err := cmd.CombinedOutput()
	res.stdout = string(out)
	if err != nil {
		t.Fatalf("prompter exited with error: %v\noutput: %s", err, out)
	}
	return res
}

func readLog(t *testing.T, logDir, filename string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(logDir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return ""
		}
		t.Fatalf("failed to read %s: %v", filename, err)
	}
	return string(data)
}

func takes(t *testing.T, outDir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(outDir, "recording-*"))
	if err != nil {
		t.Fatal(err)
	}
	return matches
}

func TestSaveWAVTake(t *testing.T) {
	res := runPrompter(t,
		cmds("START", "WAIT recording", "SLEEP 600", "STOP", "WAIT stopped", "SAVE", "WAIT idle", "QUIT"),
		"-countdown", "0", "-format", "wav", "-test", tonePath)

	files := takes(t, res.outDir)
	if len(files) != 1 || !strings.HasSuffix(files[0], ".wav") {
		t.Fatalf("takes = %v, want one .wav\noutput: %s", files, res.stdout)
	}
	if !strings.Contains(res.stdout, "saved "+files[0]) {
		t.Errorf("stdout missing saved line: %s", res.stdout)
	}
	ledger := readLog(t, res.logDir, "takes_log.txt")
	if !strings.Contains(ledger, files[0]) {
		t.Errorf("takes_log.txt missing %s: %q", files[0], ledger)
	}
	diag := readLog(t, res.logDir, "diagnostics_log.txt")
	for _, want := range []string{"session_start", "take_finalized", "take_saved", "session_end"} {
		if !strings.Contains(diag, want) {
			t.Errorf("diagnostics missing %s", want)
		}
	}
}

func TestSaveFLACTakeDecodes(t *testing.T) {
	res := runPrompter(t,
		cmds("START", "WAIT recording", "SLEEP 500", "STOP", "WAIT stopped", "SAVE", "QUIT"),
		"-countdown", "0", "-format", "flac", "-test", tonePath)

	files := takes(t, res.outDir)
	if len(files) != 1 || !strings.HasSuffix(files[0], ".flac") {
		t.Fatalf("takes = %v, want one .flac\noutput: %s", files, res.stdout)
	}
	data, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatal(err)
	}
	samples, rate, err := encoder.DecodePCM(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rate != 48000 {
		t.Errorf("rate = %d, want 48000", rate)
	}
	if len(samples) < rate/4 {
		t.Errorf("take too short: %d samples", len(samples))
	}
}

func TestCountdownCancel(t *testing.T) {
	res := runPrompter(t,
		cmds("START", "WAIT counting_down", "CANCEL", "WAIT idle", "QUIT"),
		"-countdown", "5", "-test", tonePath)

	if !strings.Contains(res.stdout, "status counting_down\nstatus idle") {
		t.Errorf("unexpected transitions: %s", res.stdout)
	}
	if files := takes(t, res.outDir); len(files) != 0 {
		t.Errorf("cancelled countdown wrote %v", files)
	}
}

func TestCountdownCompletesThenDiscard(t *testing.T) {
	res := runPrompter(t,
		cmds("START", "WAIT recording", "SLEEP 300", "STOP", "WAIT stopped", "DISCARD", "WAIT idle", "QUIT"),
		"-countdown", "1", "-test", tonePath)

	if !strings.Contains(res.stdout, "status counting_down\nstatus recording") {
		t.Errorf("countdown should lead into recording: %s", res.stdout)
	}
	if files := takes(t, res.outDir); len(files) != 0 {
		t.Errorf("discarded take written: %v", files)
	}
	if !strings.Contains(readLog(t, res.logDir, "diagnostics_log.txt"), "take_discarded") {
		t.Error("expected take_discarded in diagnostics")
	}
}

func TestPauseResume(t *testing.T) {
	res := runPrompter(t,
		cmds("START", "WAIT recording", "SLEEP 200", "PAUSE", "WAIT paused", "SLEEP 300",
			"PAUSE", "WAIT recording", "SLEEP 200", "STOP", "WAIT stopped", "QUIT"),
		"-countdown", "0", "-test", tonePath)

	want := "status recording\nstatus paused\nstatus recording\nstatus stopped"
	if !strings.Contains(res.stdout, want) {
		t.Errorf("transitions = %s", res.stdout)
	}
}

func TestInvalidCommandsReported(t *testing.T) {
	res := runPrompter(t, cmds("STOP", "SAVE", "DISCARD", "QUIT"), "-test", silencePath)
	for _, want := range []string{"error stop:", "error save:", "error discard:"} {
		if !strings.Contains(res.stdout, want) {
			t.Errorf("stdout missing %q: %s", want, res.stdout)
		}
	}
}

func TestCopyPath(t *testing.T) {
	if _, err := clipboard.Read(); err != nil {
		t.Skip("clipboard not available")
	}
	res := runPrompter(t,
		cmds("START", "WAIT recording", "SLEEP 300", "STOP", "WAIT stopped", "SAVE", "QUIT"),
		"-countdown", "0", "-copypath", "-test", tonePath)

	files := takes(t, res.outDir)
	if len(files) != 1 {
		t.Fatalf("takes = %v", files)
	}
	clip, err := clipboard.Read()
	if err != nil {
		t.Skip("clipboard not available")
	}
	if strings.TrimSpace(clip) != files[0] {
		t.Errorf("clipboard = %q, want %q", clip, files[0])
	}
}
