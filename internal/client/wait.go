package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/nerrad567/gray-logic-sensor/internal/device"
)

// ErrWaitExhausted is returned when a condition did not hold within the
// allowed number of attempts.
var ErrWaitExhausted = errors.New("client: condition not met")

// errNotYet marks an attempt that succeeded but did not satisfy the condition.
var errNotYet = errors.New("not yet")

// WaitOptions bounds a polling loop: Attempts calls, Interval apart.
type WaitOptions struct {
	Attempts int
	Interval time.Duration
}

// Default polling budgets.
var (
	// DefaultOnlineWait covers a reboot.
	DefaultOnlineWait = WaitOptions{Attempts: 10, Interval: time.Second}

	// DefaultFirmwareWait covers one firmware update.
	DefaultFirmwareWait = WaitOptions{Attempts: 15, Interval: time.Second}

	// DefaultReadingWait covers one reading interval of up to ten seconds.
	DefaultReadingWait = WaitOptions{Attempts: 10, Interval: time.Second}
)

// poll runs op until it returns nil or the budget is spent. Transport
// errors and malformed responses count as failed attempts.
func poll(ctx context.Context, opts WaitOptions, op func(context.Context) error) error {
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}

	var b backoff.BackOff = backoff.NewConstantBackOff(opts.Interval)
	b = backoff.WithMaxRetries(b, uint64(opts.Attempts-1))
	b = backoff.WithContext(b, ctx)

	var last error
	err := backoff.Retry(func() error {
		last = op(ctx)
		return last
	}, b)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrWaitExhausted, opts.Attempts, last)
}

// WaitOnline polls get_info until the sensor answers with a valid record.
func (c *Client) WaitOnline(ctx context.Context, opts WaitOptions) (device.Info, error) {
	var info device.Info
	err := poll(ctx, opts, func(ctx context.Context) error {
		got, err := c.Info(ctx)
		if err != nil {
			return err
		}
		info = got
		return nil
	})
	return info, err
}

// WaitFirmware polls get_info until the firmware version equals version.
func (c *Client) WaitFirmware(ctx context.Context, version int, opts WaitOptions) (device.Info, error) {
	var info device.Info
	err := poll(ctx, opts, func(ctx context.Context) error {
		got, err := c.Info(ctx)
		if err != nil {
			return err
		}
		info = got
		if got.FirmwareVersion != version {
			return fmt.Errorf("%w: firmware %d, want %d", errNotYet, got.FirmwareVersion, version)
		}
		return nil
	})
	return info, err
}

// WaitReadingChange polls get_reading until the value differs from previous.
func (c *Client) WaitReadingChange(ctx context.Context, previous float64, opts WaitOptions) (float64, error) {
	var value float64
	err := poll(ctx, opts, func(ctx context.Context) error {
		got, err := c.Reading(ctx)
		if err != nil {
			return err
		}
		value = got
		if got == previous {
			return fmt.Errorf("%w: reading still %v", errNotYet, got)
		}
		return nil
	})
	return value, err
}
