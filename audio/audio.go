package audio

import (
	"errors"
	"fmt"
	"strings"
)

const (
	SampleRate = 48000
	Channels   = 1

	// FrameSize is the analysis tap length in samples (~43ms at 48kHz).
	FrameSize = 2048

	WAVHeaderSize = 44
)

var (
	ErrPermissionDenied = errors.New("microphone access denied")
	ErrNoDevice         = errors.New("no compatible capture device")
)

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"sony wh-", "sony wf-",
	"jabra", "galaxy buds", "pixel buds", "powerbeats",
	"jbl ", "sennheiser momentum", "plantronics",
	"tozo", "anker soundcore", "skullcandy",
	"bluetooth", " bt ", " bt)", " bt]",
}

// IsBluetooth guesses from the device label whether the microphone is a
// Bluetooth headset, which usually means a narrowband (HFP) capture path.
func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// DataCallback receives interleaved signed 16-bit little-endian PCM.
type DataCallback func(data []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

func DefaultConfig() CaptureConfig {
	return CaptureConfig{SampleRate: SampleRate, Channels: Channels}
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

// Label is the human-readable name, falling back to the ID while the
// platform withholds labels.
func (d DeviceInfo) Label() string {
	if d.Name != "" {
		return d.Name
	}
	return d.ID
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
	DeviceName() string
}

// FindDevice looks a device up by ID.
func FindDevice(devices []DeviceInfo, id string) (DeviceInfo, bool) {
	for _, d := range devices {
		if d.ID == id {
			return d, true
		}
	}
	return DeviceInfo{}, false
}

// classify maps backend failures onto ErrPermissionDenied or ErrNoDevice so
// callers can branch with errors.Is regardless of the platform.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrNoDevice) {
		return err
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "denied"), strings.Contains(msg, "permission"), strings.Contains(msg, "not authorized"):
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	case strings.Contains(msg, "no such"), strings.Contains(msg, "not found"), strings.Contains(msg, "no device"):
		return fmt.Errorf("%w: %v", ErrNoDevice, err)
	}
	return err
}
