package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-sensor/internal/audit"
	"github.com/nerrad567/gray-logic-sensor/internal/device"
	"github.com/nerrad567/gray-logic-sensor/internal/rpc"
)

// Canonical method names.
const (
	MethodGetInfo            = "get_info"
	MethodGetReading         = "get_reading"
	MethodGetMethods         = "get_methods"
	MethodSetName            = "set_name"
	MethodSetReadingInterval = "set_reading_interval"
	MethodUpdateFirmware     = "update_firmware"
	MethodReboot             = "reboot"
	MethodResetToFactory     = "reset_to_factory"
)

// methodAliases maps the sensor-prefixed spellings onto canonical names.
var methodAliases = map[string]string{
	"get_sensor_info":             MethodGetInfo,
	"get_sensor_reading":          MethodGetReading,
	"set_sensor_name":             MethodSetName,
	"set_sensor_reading_interval": MethodSetReadingInterval,
	"update_sensor_firmware":      MethodUpdateFirmware,
	"reboot_sensor":               MethodReboot,
}

// callSource identifies where an RPC came from for the audit trail.
type callSource struct {
	transport  string
	remoteAddr string
}

func withCallSource(ctx context.Context, transport, remoteAddr string) context.Context {
	return context.WithValue(ctx, ctxKeyCallSource, callSource{transport: transport, remoteAddr: remoteAddr})
}

func callSourceFrom(ctx context.Context) callSource {
	src, _ := ctx.Value(ctxKeyCallSource).(callSource)
	return src
}

// RegisterMethods binds the device operations and their aliases to srv.
// State-changing methods are recorded through rec when it is non-nil.
//
// Parameters:
//   - srv: RPC server to register on
//   - dev: Device the methods operate on
//   - rec: Optional audit recorder
//
// Returns:
//   - error: If a name is already registered
func RegisterMethods(srv *rpc.Server, dev *device.Device, rec *audit.Recorder) error {
	methods := []rpc.Method{
		{
			Name: MethodGetInfo,
			Handler: func(context.Context, rpc.Params) (any, error) {
				info, err := dev.Info()
				return info, deviceError(err)
			},
		},
		{
			Name: MethodGetReading,
			Handler: func(context.Context, rpc.Params) (any, error) {
				reading, err := dev.Reading()
				return reading, deviceError(err)
			},
		},
		{
			Name: MethodGetMethods,
			Handler: func(context.Context, rpc.Params) (any, error) {
				if !dev.Available() {
					return nil, rpc.ErrUnavailable
				}
				return srv.Methods(), nil
			},
		},
		{
			Name:   MethodSetName,
			Params: []rpc.Param{{Name: "name", Kind: rpc.String}},
			Handler: audited(MethodSetName, rec, func(_ context.Context, p rpc.Params) (any, error) {
				info, err := dev.SetName(p.String("name"))
				return info, deviceError(err)
			}),
		},
		{
			Name:   MethodSetReadingInterval,
			Params: []rpc.Param{{Name: "interval", Kind: rpc.Number}},
			Handler: audited(MethodSetReadingInterval, rec, func(_ context.Context, p rpc.Params) (any, error) {
				info, err := dev.SetReadingInterval(p.Float("interval"))
				return info, deviceError(err)
			}),
		},
		{
			Name: MethodUpdateFirmware,
			Handler: audited(MethodUpdateFirmware, rec, func(context.Context, rpc.Params) (any, error) {
				status, err := dev.UpdateFirmware()
				return string(status), deviceError(err)
			}),
		},
		{
			Name: MethodReboot,
			Handler: audited(MethodReboot, rec, func(context.Context, rpc.Params) (any, error) {
				status, err := dev.Reboot()
				return status, deviceError(err)
			}),
		},
		{
			Name: MethodResetToFactory,
			Handler: audited(MethodResetToFactory, rec, func(context.Context, rpc.Params) (any, error) {
				info, err := dev.ResetToFactory()
				return info, deviceError(err)
			}),
		},
	}

	for _, m := range methods {
		if err := srv.Register(m); err != nil {
			return fmt.Errorf("registering %s: %w", m.Name, err)
		}
	}
	for alias, name := range methodAliases {
		if err := srv.Alias(alias, name); err != nil {
			return fmt.Errorf("registering alias %s: %w", alias, err)
		}
	}
	return nil
}

// deviceError translates device errors for the RPC layer. A rebooting
// device cannot answer at all; other errors become method errors.
func deviceError(err error) error {
	if errors.Is(err, device.ErrUnavailable) {
		return rpc.ErrUnavailable
	}
	return err
}

// audited records each completed call of h. Calls dropped because the
// device is unavailable are not recorded.
func audited(method string, rec *audit.Recorder, h rpc.HandlerFunc) rpc.HandlerFunc {
	if rec == nil {
		return h
	}
	return func(ctx context.Context, params rpc.Params) (any, error) {
		start := time.Now()
		result, err := h(ctx, params)
		if errors.Is(err, rpc.ErrUnavailable) {
			return result, err
		}

		src := callSourceFrom(ctx)
		entry := &audit.Entry{
			Method:     method,
			Transport:  src.transport,
			RemoteAddr: src.remoteAddr,
			Outcome:    audit.OutcomeOK,
			Duration:   time.Since(start),
		}
		if len(params) > 0 {
			if encoded, encErr := json.Marshal(params); encErr == nil {
				entry.Params = encoded
			}
		}
		if err != nil {
			entry.Outcome = audit.OutcomeError
			entry.ErrorCode = rpc.CodeMethodError
			var rpcErr *rpc.Error
			if errors.As(err, &rpcErr) {
				entry.ErrorCode = rpcErr.Code
			}
		}
		rec.Record(entry)

		return result, err
	}
}
