package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-sensor/internal/client"
	"github.com/nerrad567/gray-logic-sensor/internal/device"
	"github.com/nerrad567/gray-logic-sensor/internal/infrastructure/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

// TestRun_InvalidConfig verifies run fails with an unparsable config.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("SENSORD_CONFIG", writeConfig(t, "device: [not, a, map"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config")
	}
}

// TestRun_MissingPin verifies the daemon refuses to start without a pin.
func TestRun_MissingPin(t *testing.T) {
	t.Setenv("SENSORD_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
	t.Setenv("SENSORD_PIN", "")
	t.Setenv("SENSORD_PIN_HASH", "")

	err := run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "security.pin") {
		t.Fatalf("run() error = %v, want missing pin", err)
	}
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("SENSORD_PIN", "2468")

	cfg, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Security.Pin != "2468" {
		t.Errorf("pin = %q", cfg.Security.Pin)
	}
	if cfg.Device.ReadingInterval != device.DefaultReadingInterval {
		t.Errorf("reading interval = %d", cfg.Device.ReadingInterval)
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("SENSORD_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv("SENSORD_CONFIG", "/etc/sensord.yaml")
	if got := getConfigPath(); got != "/etc/sensord.yaml" {
		t.Errorf("getConfigPath() = %q", got)
	}
}

func TestDeviceOptions(t *testing.T) {
	cfg := config.DeviceConfig{
		HID:                  "hid-1",
		Model:                "GL-TS2",
		Name:                 "lab",
		ReadingInterval:      5,
		FirmwareVersion:      3,
		MaxFirmwareVersion:   9,
		UpdateDuration:       time.Second,
		RebootDuration:       2 * time.Second,
		FactoryResetFirmware: config.FactoryFirmwareReset,
	}

	opts, err := deviceOptions(cfg)
	if err != nil {
		t.Fatalf("deviceOptions() error = %v", err)
	}
	if opts.HID != "hid-1" || opts.Model != "GL-TS2" || opts.Name != "lab" ||
		opts.ReadingInterval != 5 || opts.FirmwareVersion != 3 || opts.MaxFirmwareVersion != 9 ||
		opts.UpdateDuration != time.Second || opts.RebootDuration != 2*time.Second ||
		opts.FactoryReset != device.FactoryResetFirmware {
		t.Errorf("opts = %+v", opts)
	}

	cfg.FactoryResetFirmware = "wipe"
	if _, err := deviceOptions(cfg); err == nil {
		t.Error("deviceOptions() should reject an unknown policy")
	}
}

// TestRun_ServesUntilCancelled starts the daemon with the audit trail on
// and drives it through the client.
func TestRun_ServesUntilCancelled(t *testing.T) {
	port := freePort(t)
	dbPath := filepath.Join(t.TempDir(), "sensord.db")

	t.Setenv("SENSORD_CONFIG", writeConfig(t, fmt.Sprintf(`
device:
  hid: "hid-run"
  update_duration: 50ms
  reboot_duration: 100ms
api:
  host: "127.0.0.1"
  port: %d
security:
  pin: "1357"
database:
  enabled: true
  path: %q
logging:
  level: error
  format: text
  output: stdout
`, port, dbPath)))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- run(ctx) }()

	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	c := client.New(base, "1357", client.WithTimeout(time.Second))

	info, err := c.WaitOnline(context.Background(), client.WaitOptions{Attempts: 50, Interval: 50 * time.Millisecond})
	if err != nil {
		cancel()
		t.Fatalf("daemon never came up: %v (run: %v)", err, <-errCh)
	}
	if info.HID != "hid-run" {
		t.Errorf("hid = %q", info.HID)
	}

	if _, err := c.SetName(context.Background(), "bench"); err != nil {
		t.Errorf("SetName() error = %v", err)
	}

	req, _ := http.NewRequest(http.MethodGet, base+"/audit", nil)
	req.Header.Set("Authorization", "1357")
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.DefaultClient.Do(req)
		if err == nil {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			if strings.Contains(string(body), `"set_name"`) {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Error("audit entry for set_name never appeared")
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("run() error = %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not return after cancel")
	}
}
