// Package pool multiplexes callers across a fixed-size set of
// pkg/conn.Connection instances, replacing failed connections with
// exponential backoff and offering an optional health-check heartbeat.
package pool

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pgwire-go/pgwire/pkg/conn"
)

// Config configures a Pool. Size and the embedded per-connection Config
// are required; MaxRetryInterval and HeartbeatInterval have defaults.
type Config struct {
	conn.Config

	// Size is the target number of live connections.
	Size int

	// MaxRetryInterval caps the exponential backoff applied between
	// reconnect attempts for a single slot.
	MaxRetryInterval time.Duration

	// HeartbeatInterval, if non-zero, runs "SELECT 1" against each
	// available connection on this period; a failing connection is
	// closed and replaced. Zero disables heartbeating.
	HeartbeatInterval time.Duration

	// AcquireTimeout bounds how long Acquire waits for a connection
	// when none is immediately available and no context deadline is
	// set by the caller. Zero means wait indefinitely (subject to the
	// caller's context).
	AcquireTimeout time.Duration
}

const DefaultMaxRetryInterval = 30 * time.Second

func (c Config) validate() error {
	var errs []error
	if c.Size <= 0 {
		errs = append(errs, fmt.Errorf("pool: Size must be positive, got %d", c.Size))
	}
	if err := c.Config.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c Config) maxRetryInterval() time.Duration {
	if c.MaxRetryInterval <= 0 {
		return DefaultMaxRetryInterval
	}
	return c.MaxRetryInterval
}

// timeout mirrors conn.Config's own defaulting, duplicated here because
// the connection package keeps it unexported.
func (c Config) timeout() time.Duration {
	if c.TimeoutInSeconds <= 0 {
		return conn.DefaultTimeoutSeconds * time.Second
	}
	return time.Duration(c.TimeoutInSeconds) * time.Second
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
