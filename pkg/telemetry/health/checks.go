package health

import (
	"context"
	"errors"
)

// Pinger is implemented by the mail stores and the SQLite audit log.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Runner is implemented by the cleanup scheduler.
type Runner interface {
	IsRunning() bool
}

// ErrNotRunning is reported by RunningCheck when the component is stopped.
var ErrNotRunning = errors.New("not running")

// PingCheck checks a component by pinging it.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		return p.Ping(ctx)
	}
}

// RunningCheck fails while r is not running.
func RunningCheck(r Runner) CheckFunc {
	return func(ctx context.Context) error {
		if !r.IsRunning() {
			return ErrNotRunning
		}
		return nil
	}
}
