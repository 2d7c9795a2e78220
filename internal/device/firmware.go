package device

// UpdateFirmware requests a firmware update.
//
// Below the maximum version the request is accepted with UpdateStarted and
// the version is incremented by exactly one after the update duration.
// A request that arrives while an update is already in flight is answered
// with UpdateStarted without scheduling a second increment. At the maximum
// version the answer is UpdateUpToDate and nothing changes.
//
// Returns:
//   - UpdateStatus: Acknowledgement for the caller
//   - error: ErrUnavailable while rebooting, ErrClosed after Close
func (d *Device) UpdateFirmware() (UpdateStatus, error) {
	d.mu.Lock()

	if d.rebooting {
		d.mu.Unlock()
		return "", ErrUnavailable
	}
	if d.firmware >= d.maxFirmware {
		d.mu.Unlock()
		return UpdateUpToDate, nil
	}
	if d.updating {
		d.mu.Unlock()
		return UpdateStarted, nil
	}

	gen := d.updateGen
	if err := d.sched.after(d.updateDuration, func() { d.completeUpdate(gen) }); err != nil {
		d.mu.Unlock()
		return "", err
	}
	d.updating = true
	info := d.infoLocked()
	d.mu.Unlock()

	d.logger.Info("firmware update started", "hid", d.hid, "from", info.FirmwareVersion, "to", info.FirmwareVersion+1)
	d.emit(Event{Type: EventUpdateStarted, Time: d.now(), Info: info})
	return UpdateStarted, nil
}

// completeUpdate applies one increment. It runs on the work queue.
func (d *Device) completeUpdate(gen uint64) {
	d.mu.Lock()

	if gen != d.updateGen {
		d.mu.Unlock()
		d.logger.Debug("discarding superseded firmware update", "hid", d.hid)
		return
	}
	d.updating = false
	if d.firmware >= d.maxFirmware {
		d.mu.Unlock()
		return
	}
	d.firmware++
	d.updatesApplied++
	info := d.infoLocked()
	d.mu.Unlock()

	d.logger.Info("firmware updated", "hid", d.hid, "firmware_version", info.FirmwareVersion)
	d.emit(Event{Type: EventFirmwareUpdated, Time: d.now(), Info: info})
}
