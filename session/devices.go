package session

import (
	"context"
	"errors"
	"slices"

	"prompter/audio"
	"prompter/log"
)

// StartMonitoring opens the capture handle for deviceID (empty means the
// current selection) and starts the level monitor on it. It is a no-op when
// that device is already monitored; a different device is released before
// the new one is acquired.
func (s *Session) StartMonitoring(ctx context.Context, deviceID string) error {
	return s.monitorDevice(ctx, deviceID, false)
}

// StopMonitoring releases the capture handle and resets the level to
// silence. Safe to call when nothing is monitored.
func (s *Session) StopMonitoring() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.status == CountingDown || s.status.Capturing() {
		err := s.invalidLocked("stop monitoring")
		s.mu.Unlock()
		return err
	}
	s.attempt++
	h := s.releaseLocked()
	s.mu.Unlock()

	if h == nil {
		return nil
	}
	h.close()
	s.notify()
	return nil
}

func (s *Session) monitorDevice(ctx context.Context, deviceID string, force bool) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.status == CountingDown || s.status.Capturing() {
		err := s.invalidLocked("start monitoring")
		s.mu.Unlock()
		return err
	}
	if deviceID == "" {
		deviceID = s.selected
	}
	if !force && s.handle != nil && s.handle.device.ID == deviceID {
		s.monitor.Attach(s.handle.tap)
		s.mu.Unlock()
		return nil
	}

	device := s.deviceLocked(deviceID)
	from := ""
	if s.handle != nil {
		from = s.handle.device.Label()
	}
	s.selected = deviceID
	s.attempt++
	attempt := s.attempt
	old := s.releaseLocked()
	s.mu.Unlock()

	if old != nil {
		old.close()
	}
	h, devices, err := s.acquire(ctx, device)

	s.mu.Lock()
	if s.closed || attempt != s.attempt || s.handle != nil {
		s.mu.Unlock()
		if h != nil {
			h.close()
		}
		return ErrCancelled
	}
	if err != nil {
		if err != ErrCancelled {
			err = s.failLocked("monitor", device, err)
		}
		s.mu.Unlock()
		s.notify()
		return err
	}
	s.installLocked(h, devices)
	to := h.device.Label()
	s.mu.Unlock()

	if from != "" && from != to {
		log.DeviceSwitch(from, to)
	}
	s.notify()
	return nil
}

// SelectDevice switches the monitored microphone. During a take the switch
// is recorded and applied once the take stops; during a countdown the
// handle is reopened on the new device and the countdown keeps running.
// On first use this is where acquisition, and so the permission prompt,
// happens.
func (s *Session) SelectDevice(ctx context.Context, id string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if len(s.devices) > 0 {
		if _, ok := audio.FindDevice(s.devices, id); !ok {
			s.mu.Unlock()
			return &CaptureError{Op: "select", Device: id, Kind: ErrNoDevice}
		}
	}
	switch {
	case s.status.Capturing():
		if s.handle != nil && s.handle.device.ID == id {
			s.pending, s.hasPending = "", false
		} else {
			s.pending, s.hasPending = id, true
			log.Infof("switch to %s deferred until the take stops", id)
		}
		s.mu.Unlock()
		s.notify()
		return nil
	case s.status == CountingDown:
		return s.switchDuringCountdown(ctx, id)
	}
	s.mu.Unlock()
	return s.monitorDevice(ctx, id, false)
}

// switchDuringCountdown moves the pending take to id without stopping the
// countdown. It is called with s.mu held and returns with it released. The
// old handle is closed before the new one opens; if the countdown runs out
// meanwhile the take starts when the new handle arrives. A cancel during
// acquisition closes the late handle.
func (s *Session) switchDuringCountdown(ctx context.Context, id string) error {
	if s.handle != nil && s.handle.device.ID == id {
		s.mu.Unlock()
		return nil
	}
	device := s.deviceLocked(id)
	from := ""
	if s.handle != nil {
		from = s.handle.device.Label()
	}
	s.selected = id
	attempt := s.attempt
	old := s.releaseLocked()
	s.mu.Unlock()

	if old != nil {
		old.close()
	}
	s.notify()

	h, devices, err := s.acquire(ctx, device)

	s.mu.Lock()
	if s.closed || attempt != s.attempt || s.status != CountingDown {
		s.mu.Unlock()
		if h != nil {
			h.close()
		}
		return ErrCancelled
	}
	if err != nil {
		s.countdownTicker.Stop()
		s.countdownTicker = nil
		s.remaining = 0
		s.startOnSwitch = false
		s.status = Idle
		if !errors.Is(err, ErrCancelled) {
			err = s.failLocked("select", device, err)
		}
		s.mu.Unlock()
		s.notify()
		return err
	}
	var stale *handle
	if s.handle != nil {
		stale = s.releaseLocked()
	}
	s.installLocked(h, devices)
	if s.startOnSwitch {
		s.startOnSwitch = false
		if err = s.beginCaptureLocked(); err != nil {
			log.Errorf("starting take: %v", err)
		}
	}
	to := h.device.Label()
	s.mu.Unlock()

	if stale != nil {
		stale.close()
	}
	if from != "" && from != to {
		log.DeviceSwitch(from, to)
	}
	s.notify()
	return err
}

// RefreshDevices re-enumerates inputs. If the selected device is gone the
// selection falls back to the first remaining one, or to none.
func (s *Session) RefreshDevices(ctx context.Context) error {
	devices, err := s.actx.Devices()
	if err != nil {
		return captureError("enumerate", "", err)
	}
	return s.updateDevices(ctx, devices, false)
}

// DevicesChanged handles a hot-plug notification. While idle or stopped
// the monitor is restarted when its device is affected; during a countdown
// or take the restart waits until the take stops.
func (s *Session) DevicesChanged(ctx context.Context, devices []audio.DeviceInfo) error {
	return s.updateDevices(ctx, devices, true)
}

func (s *Session) updateDevices(ctx context.Context, devices []audio.DeviceInfo, hotplug bool) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	has := func(id string) bool {
		return slices.ContainsFunc(devices, func(d audio.DeviceInfo) bool { return d.ID == id })
	}

	s.devices = slices.Clone(devices)
	selectedGone := s.selected != "" && !has(s.selected)
	if s.selected == "" || selectedGone {
		s.selected = ""
		if len(devices) > 0 {
			s.selected = devices[0].ID
		}
	}
	if s.hasPending && !has(s.pending) {
		s.pending, s.hasPending = "", false
	}

	if s.status == CountingDown || s.status.Capturing() {
		if selectedGone || hotplug {
			s.rescan = true
		}
		s.mu.Unlock()
		s.notify()
		return nil
	}

	if s.handle == nil {
		s.mu.Unlock()
		s.notify()
		return nil
	}

	monitored := s.handle.device.ID
	monitoredGone := monitored != "" && !has(monitored)
	restart := monitored != s.selected || monitoredGone || (hotplug && monitored == "")
	if !restart {
		s.mu.Unlock()
		s.notify()
		return nil
	}

	if s.selected == "" {
		label := s.handle.device.Label()
		s.attempt++
		h := s.releaseLocked()
		cerr := &CaptureError{Op: "refresh", Device: label, Kind: ErrDeviceDisappeared}
		s.err = cerr
		s.mu.Unlock()

		h.close()
		log.CaptureFailed("refresh", label, ErrDeviceDisappeared)
		s.notify()
		return cerr
	}

	target := s.selected
	s.mu.Unlock()
	return s.monitorDevice(ctx, target, true)
}

// applyDeferred runs the device work held back while a take was running.
func (s *Session) applyDeferred(pending string, hasPending, rescan bool) {
	ctx := context.Background()
	if rescan {
		devices, err := s.actx.Devices()
		if err == nil {
			err = s.updateDevices(ctx, devices, true)
		}
		if err != nil {
			log.Warnf("deferred device refresh: %v", err)
		}
	}
	if hasPending {
		if err := s.monitorDevice(ctx, pending, false); err != nil {
			log.Warnf("deferred device switch to %s: %v", pending, err)
		}
	}
}
