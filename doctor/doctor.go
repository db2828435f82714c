// Package doctor runs interactive checks of the pieces a recording session
// depends on: the global shortcut, the capture devices, live metering, the
// encoder and the clipboard.
package doctor

import (
	"fmt"
	"os"
	"strings"
	"time"

	"prompter/audio"
	"prompter/clipboard"
	"prompter/encoder"
	"prompter/hotkey"
	"prompter/level"
	"prompter/shutdown"
)

const meterDuration = 3 * time.Second

// Run executes the checks and returns an exit code (0=all pass, 1=any fail).
func Run(deviceID string) int {
	resetTerminal()
	setupInterruptHandler()

	fmt.Println("prompter doctor - system diagnostics")
	fmt.Println("====================================")

	allPass := true

	if !checkHotkey() {
		// The shortcut is optional; the TUI keys still work.
		fmt.Println("  (continuing: the global shortcut is optional)")
	}

	actx, err := audio.NewContext()
	if err != nil {
		fmt.Printf("  FAIL: cannot connect to audio: %v\n", err)
		return 1
	}
	defer actx.Close()

	device, ok := checkDevices(actx, deviceID)
	if !ok {
		allPass = false
	}
	var pcm []byte
	if allPass {
		pcm, ok = checkMetering(actx, device)
		allPass = ok
	}
	if allPass && !checkEncoder(pcm) {
		allPass = false
	}
	if !checkClipboard() {
		allPass = false
	}

	fmt.Println()
	if allPass {
		fmt.Println("All checks passed!")
		return 0
	}
	fmt.Println("Some checks failed. See details above.")
	return 1
}

func setupInterruptHandler() {
	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)
	go func() {
		<-sigChan
		println("\nInterrupted")
		os.Exit(1)
	}()
}

func checkHotkey() bool {
	fmt.Println()
	fmt.Println("[1/5] Global shortcut")
	info, err := hotkey.Diagnose()
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	fmt.Printf("  %s\n", info)
	fmt.Printf("Press %s...\n", hotkey.Chord)

	hk := hotkey.New()
	if err := hk.Register(); err != nil {
		fmt.Printf("  FAIL: could not register shortcut: %v\n", err)
		return false
	}
	defer hk.Unregister()

	select {
	case <-hk.Keydown():
		fmt.Println("  PASS: shortcut detected")
		select {
		case <-hk.Keyup():
		case <-time.After(5 * time.Second):
		}
		// The key grab may leave the terminal in raw mode.
		resetTerminal()
		return true
	case <-time.After(10 * time.Second):
		fmt.Println("  FAIL: timeout waiting for shortcut")
		return false
	}
}

func checkDevices(actx audio.Context, deviceID string) (*audio.DeviceInfo, bool) {
	fmt.Println()
	fmt.Println("[2/5] Capture devices")

	devices, err := actx.Devices()
	if err != nil {
		fmt.Printf("  FAIL: cannot list devices: %v\n", err)
		return nil, false
	}
	if len(devices) == 0 {
		fmt.Println("  FAIL: no capture devices found")
		return nil, false
	}
	for _, d := range devices {
		tag := ""
		if w := BluetoothWarning(d); w != "" {
			tag = "  [" + w + "]"
		}
		fmt.Printf("  - %s (%s)%s\n", d.Label(), d.ID, tag)
	}

	device := &devices[0]
	if deviceID != "" {
		d, ok := audio.FindDevice(devices, deviceID)
		if !ok {
			fmt.Printf("  FAIL: device %q not found\n", deviceID)
			return nil, false
		}
		device = &d
	}
	fmt.Printf("  PASS: %d device(s), testing %s\n", len(devices), device.Label())
	return device, true
}

// BluetoothWarning returns a short warning for headset microphones.
func BluetoothWarning(d audio.DeviceInfo) string {
	if audio.IsBluetooth(d.Label()) {
		return "Bluetooth: lower audio quality"
	}
	return ""
}

func checkMetering(actx audio.Context, device *audio.DeviceInfo) ([]byte, bool) {
	fmt.Println()
	fmt.Println("[3/5] Microphone level")
	fmt.Printf("Speak normally for %d seconds...\n", int(meterDuration/time.Second))

	pcm, report, err := Meter(actx, device, meterDuration)
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return nil, false
	}
	fmt.Printf("  %s\n", report)
	if len(pcm) == 0 {
		fmt.Println("  FAIL: no audio captured")
		return nil, false
	}
	if report.Counts[level.Low] == report.Ticks {
		fmt.Println("  FAIL: input never rose above the noise floor (muted or wrong device?)")
		return pcm, false
	}
	if report.Counts[level.Clipping] > report.Ticks/4 {
		fmt.Println("  WARN: input is clipping often, lower the input gain")
	}
	fmt.Println("  PASS: microphone is live")
	return pcm, true
}

// MeterReport summarizes a metering run.
type MeterReport struct {
	Ticks  int
	Counts map[level.Severity]int
	PeakDB float64
}

func (r MeterReport) String() string {
	var parts []string
	for s := level.Low; s <= level.Clipping; s++ {
		parts = append(parts, fmt.Sprintf("%s %d", s, r.Counts[s]))
	}
	return fmt.Sprintf("%d ticks: %s; loudest %.1f dBFS", r.Ticks, strings.Join(parts, ", "), r.PeakDB)
}

// Meter captures from device for d, metering every level.TickInterval, and
// returns the raw PCM together with a band histogram.
func Meter(actx audio.Context, device *audio.DeviceInfo, d time.Duration) ([]byte, MeterReport, error) {
	report := MeterReport{Counts: map[level.Severity]int{}, PeakDB: level.FloorDB}

	capture, err := actx.NewCapture(device, audio.DefaultConfig())
	if err != nil {
		return nil, report, fmt.Errorf("opening capture: %w", err)
	}
	defer capture.Close()

	tap := audio.NewTap(audio.FrameSize)
	pcmCh := make(chan []byte, 256)
	capture.SetCallback(func(data []byte, _ uint32) {
		tap.Write(data)
		select {
		case pcmCh <- append([]byte(nil), data...):
		default:
		}
	})
	if err := capture.Start(); err != nil {
		return nil, report, fmt.Errorf("starting capture: %w", err)
	}

	var pcm []byte
	var meter level.Meter
	ticker := time.NewTicker(level.TickInterval)
	defer ticker.Stop()
	deadline := time.After(d)
	for {
		select {
		case chunk := <-pcmCh:
			pcm = append(pcm, chunk...)
		case now := <-ticker.C:
			r := meter.Process(tap.Frame(), now)
			report.Ticks++
			report.Counts[r.Band]++
			report.PeakDB = max(report.PeakDB, r.DB)
		case <-deadline:
			capture.Stop()
			for {
				select {
				case chunk := <-pcmCh:
					pcm = append(pcm, chunk...)
				default:
					return pcm, report, nil
				}
			}
		}
	}
}

func checkEncoder(pcm []byte) bool {
	fmt.Println()
	fmt.Println("[4/5] FLAC encoder")

	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8)
	}
	enc, err := encoder.NewFlac(audio.SampleRate)
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	for i := 0; i < len(samples); i += encoder.BlockSize {
		if err := enc.EncodeBlock(samples[i:min(i+encoder.BlockSize, len(samples))]); err != nil {
			fmt.Printf("  FAIL: %v\n", err)
			return false
		}
	}
	if err := enc.Close(); err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	decoded, _, err := encoder.DecodePCM(enc.Bytes())
	if err != nil {
		fmt.Printf("  FAIL: decoding: %v\n", err)
		return false
	}
	if len(decoded) != len(samples) {
		fmt.Printf("  FAIL: decoded %d samples, encoded %d\n", len(decoded), len(samples))
		return false
	}
	fmt.Printf("  PASS: %.1f KB raw -> %.1f KB flac\n", float64(len(pcm))/1024, float64(len(enc.Bytes()))/1024)
	return true
}

func checkClipboard() bool {
	fmt.Println()
	fmt.Println("[5/5] Clipboard")

	if !clipboard.Available() {
		fmt.Println("  FAIL: no clipboard utility found (install xclip, xsel or wl-clipboard)")
		return false
	}
	prev, _ := clipboard.Read()
	const sample = "prompter-doctor-test"
	if err := clipboard.Copy(sample); err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	got, err := clipboard.Read()
	if prev != "" {
		clipboard.Copy(prev)
	}
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	if got != sample {
		fmt.Printf("  FAIL: read back %q, want %q\n", got, sample)
		return false
	}
	fmt.Println("  PASS: clipboard round trip")
	return true
}
