package audio

import (
	"context"
	"slices"
	"time"
)

const DefaultWatchInterval = 3 * time.Second

// WatchDevices polls the device list and calls fn whenever it changes.
// Platform backends expose no reliable hot-plug notification, so polling
// stands in for one. The first successful enumeration is reported too.
// WatchDevices blocks until ctx is done.
func WatchDevices(ctx context.Context, actx Context, interval time.Duration, fn func([]DeviceInfo)) {
	var last []DeviceInfo
	first := true

	poll := func() {
		devices, err := actx.Devices()
		if err != nil {
			return
		}
		if !first && slices.Equal(last, devices) {
			return
		}
		first = false
		last = devices
		fn(slices.Clone(devices))
	}

	poll()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			poll()
		}
	}
}
