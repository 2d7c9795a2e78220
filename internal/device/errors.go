package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrUnavailable) {
//	    // drop the connection
//	}
var (
	// ErrInvalidName is returned when a device name is empty.
	ErrInvalidName = errors.New("device: name must not be empty")

	// ErrInvalidInterval is returned when a reading interval is not a whole
	// number of seconds within range.
	ErrInvalidInterval = errors.New("device: reading interval must be a whole number of seconds between 1 and 86400")

	// ErrUnavailable is returned for any call made while the device is rebooting.
	ErrUnavailable = errors.New("device: unavailable")

	// ErrInvalidPolicy is returned for an unknown factory reset policy.
	ErrInvalidPolicy = errors.New("device: invalid factory reset policy")

	// ErrInvalidOptions is returned by New when options are inconsistent.
	ErrInvalidOptions = errors.New("device: invalid options")

	// ErrClosed is returned when work is scheduled on a closed device.
	ErrClosed = errors.New("device: closed")
)
