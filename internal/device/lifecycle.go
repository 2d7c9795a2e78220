package device

// Reboot acknowledges with RebootStatus and makes the device unreachable
// for the reboot duration. Name, firmware version and reading interval
// are untouched; only availability changes.
//
// Returns:
//   - string: RebootStatus
//   - error: ErrUnavailable if already rebooting, ErrClosed after Close
func (d *Device) Reboot() (string, error) {
	d.mu.Lock()

	if d.rebooting {
		d.mu.Unlock()
		return "", ErrUnavailable
	}
	if err := d.sched.after(d.rebootDuration, d.completeReboot); err != nil {
		d.mu.Unlock()
		return "", err
	}
	d.rebooting = true
	d.reboots++
	info := d.infoLocked()
	d.mu.Unlock()

	d.logger.Info("rebooting", "hid", d.hid, "duration", d.rebootDuration)
	d.emit(Event{Type: EventRebootStarted, Time: d.now(), Info: info})
	return RebootStatus, nil
}

// completeReboot restores reachability. It runs on the work queue.
func (d *Device) completeReboot() {
	d.mu.Lock()
	d.rebooting = false
	info := d.infoLocked()
	d.mu.Unlock()

	d.logger.Info("back online", "hid", d.hid)
	d.emit(Event{Type: EventOnline, Time: d.now(), Info: info})
}

// Available reports whether the device is reachable.
func (d *Device) Available() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.rebooting
}
