package device

import (
	"errors"
	"testing"
	"time"
)

func TestReboot_RoundTrip(t *testing.T) {
	d := newTestDevice(t, nil)

	if _, err := d.SetName("before-reboot"); err != nil {
		t.Fatal(err)
	}
	if _, err := d.SetReadingInterval(3); err != nil {
		t.Fatal(err)
	}
	before := mustInfo(t, d)

	status, err := d.Reboot()
	if err != nil {
		t.Fatalf("Reboot() error = %v", err)
	}
	if status != RebootStatus {
		t.Errorf("Reboot() = %q, want %q", status, RebootStatus)
	}

	if d.Available() {
		t.Error("Available() = true during reboot window")
	}
	if _, err := d.Info(); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Info() during reboot error = %v, want ErrUnavailable", err)
	}

	var after Info
	if !waitFor(t, time.Second, func() bool {
		info, err := d.Info()
		if err != nil {
			return false
		}
		after = info
		return true
	}) {
		t.Fatal("device did not come back online")
	}

	if after != before {
		t.Errorf("Info() after reboot = %+v, want %+v", after, before)
	}
	if got := d.Status().Reboots; got != 1 {
		t.Errorf("Reboots = %d, want 1", got)
	}
}

func TestReboot_RejectsCallsDuringWindow(t *testing.T) {
	d := newTestDevice(t, func(o *Options) { o.RebootDuration = time.Second })

	if _, err := d.Reboot(); err != nil {
		t.Fatal(err)
	}

	calls := map[string]func() error{
		"SetName":            func() error { _, err := d.SetName("x"); return err },
		"SetReadingInterval": func() error { _, err := d.SetReadingInterval(5); return err },
		"UpdateFirmware":     func() error { _, err := d.UpdateFirmware(); return err },
		"Reboot":             func() error { _, err := d.Reboot(); return err },
		"ResetToFactory":     func() error { _, err := d.ResetToFactory(); return err },
	}
	for name, fn := range calls {
		if err := fn(); !errors.Is(err, ErrUnavailable) {
			t.Errorf("%s during reboot error = %v, want ErrUnavailable", name, err)
		}
	}

	st := d.Status()
	if st.Available {
		t.Error("Status().Available = true during reboot")
	}
	if st.Info.Name != DefaultName {
		t.Errorf("Status().Info.Name = %q, state must be untouched", st.Info.Name)
	}
}

// An update accepted before a reboot still lands, inside the reboot window.
// The record seen after the reboot is the pre-reboot record with the
// firmware advanced by one.
func TestReboot_UpdateInFlightLandsDuringWindow(t *testing.T) {
	d := newTestDevice(t, func(o *Options) {
		o.UpdateDuration = 20 * time.Millisecond
		o.RebootDuration = 300 * time.Millisecond
	})

	if _, err := d.SetName("mid-update"); err != nil {
		t.Fatal(err)
	}
	if _, err := d.UpdateFirmware(); err != nil {
		t.Fatal(err)
	}
	before := mustInfo(t, d)
	if before.FirmwareVersion != 0 {
		t.Fatalf("FirmwareVersion before reboot = %d, want 0", before.FirmwareVersion)
	}
	if _, err := d.Reboot(); err != nil {
		t.Fatal(err)
	}

	if !waitFor(t, time.Second, func() bool { return d.Status().Info.FirmwareVersion == 1 }) {
		t.Fatal("pending update did not complete")
	}
	if d.Available() {
		t.Fatal("update should land while the device is still rebooting")
	}

	if !waitFor(t, time.Second, d.Available) {
		t.Fatal("device did not come back online")
	}
	want := before
	want.FirmwareVersion++
	if got := mustInfo(t, d); got != want {
		t.Errorf("Info() after reboot = %+v, want %+v", got, want)
	}
	if _, err := d.UpdateFirmware(); err != nil {
		t.Errorf("UpdateFirmware() after reboot error = %v", err)
	}
}

func TestReboot_Events(t *testing.T) {
	d := newTestDevice(t, nil)
	rec := &eventRecorder{}
	d.AddListener(rec.listen)

	if _, err := d.Reboot(); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, time.Second, func() bool { return len(rec.types()) == 2 }) {
		t.Fatalf("events = %v", rec.types())
	}
	got := rec.types()
	if got[0] != EventRebootStarted || got[1] != EventOnline {
		t.Errorf("events = %v, want reboot_started then online", got)
	}
}
