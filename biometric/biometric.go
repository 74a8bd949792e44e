// Package biometric abstracts the device fingerprint / face authentication
// service. Real platform bindings live outside this module; the CLI ships a
// simulated sensor so the reveal flow can be exercised on any terminal.
package biometric

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotAvailable is returned by Authenticate when the device has no
	// usable sensor.
	ErrNotAvailable = errors.New("biometric: not available on this device")
	ErrUnknownMode  = errors.New("biometric: unknown mode")
)

// Result is the outcome of a single authenticate prompt.
type Result int

const (
	Success Result = iota + 1
	Cancelled
	Failed
)

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case Cancelled:
		return "user_cancel"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Capability is the device biometric service.
type Capability interface {
	HasHardware(ctx context.Context) (bool, error)
	IsEnrolled(ctx context.Context) (bool, error)
	Authenticate(ctx context.Context, prompt string) (Result, error)
}

// Unavailable is a device without a biometric sensor.
type Unavailable struct{}

func (Unavailable) HasHardware(context.Context) (bool, error) { return false, nil }
func (Unavailable) IsEnrolled(context.Context) (bool, error)  { return false, nil }
func (Unavailable) Authenticate(context.Context, string) (Result, error) {
	return Failed, ErrNotAvailable
}

// Simulated is a scripted sensor. Every prompt waits Delay (respecting ctx)
// and then returns Outcome.
type Simulated struct {
	Hardware bool
	Enrolled bool
	Outcome  Result
	Delay    time.Duration
}

func (s *Simulated) HasHardware(context.Context) (bool, error) { return s.Hardware, nil }
func (s *Simulated) IsEnrolled(context.Context) (bool, error)  { return s.Hardware && s.Enrolled, nil }

func (s *Simulated) Authenticate(ctx context.Context, _ string) (Result, error) {
	if !s.Hardware {
		return Failed, ErrNotAvailable
	}
	if s.Delay > 0 {
		t := time.NewTimer(s.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return Cancelled, ctx.Err()
		case <-t.C:
		}
	}
	return s.Outcome, nil
}

// FromMode builds a Capability from a config mode: "none" for no sensor,
// or "success", "cancel", "fail" for a simulated sensor that always
// answers that way.
func FromMode(mode string, enrolled bool, delay time.Duration) (Capability, error) {
	var outcome Result
	switch mode {
	case "", "none":
		return Unavailable{}, nil
	case "success":
		outcome = Success
	case "cancel":
		outcome = Cancelled
	case "fail":
		outcome = Failed
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	return &Simulated{Hardware: true, Enrolled: enrolled, Outcome: outcome, Delay: delay}, nil
}
