package conn

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pgwire-go/pgwire/pkg/params"
)

// Config holds the arguments needed to open one connection.
type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string

	// TimeoutInSeconds bounds the TCP connect and authentication
	// handshake together. Zero means DefaultTimeoutSeconds.
	TimeoutInSeconds int

	// TimeZone is sent as the startup message's TimeZone parameter.
	// Empty means DefaultTimeZone.
	TimeZone string

	UseSSL bool

	// Substitutor rewrites @name / @name:type placeholders. Nil means
	// params.NoopSubstitutor, which treats the SQL text as already
	// final and expects Query's bindings map (if any) to supply
	// pre-typed extended values keyed "1", "2", ...; Execute with a
	// non-empty bindings map fails.
	Substitutor params.Substitutor

	// Decoder converts raw column bytes into Go values. Nil means
	// params.DefaultDecoder{}.
	Decoder params.ValueDecoder

	Logger *slog.Logger
}

const (
	DefaultTimeoutSeconds = 30
	DefaultTimeZone       = "UTC"
)

// Validate reports every problem with the config at once, in the
// teacher's accumulate-with-errors.Join idiom.
func (c Config) Validate() error {
	var errs []error
	if c.Host == "" {
		errs = append(errs, errors.New("conn: Host is required"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("conn: Port %d out of range", c.Port))
	}
	if c.Database == "" {
		errs = append(errs, errors.New("conn: Database is required"))
	}
	if c.Username == "" {
		errs = append(errs, errors.New("conn: Username is required"))
	}
	if c.TimeoutInSeconds < 0 {
		errs = append(errs, errors.New("conn: TimeoutInSeconds must not be negative"))
	}
	return errors.Join(errs...)
}

func (c Config) timeout() time.Duration {
	if c.TimeoutInSeconds <= 0 {
		return DefaultTimeoutSeconds * time.Second
	}
	return time.Duration(c.TimeoutInSeconds) * time.Second
}

func (c Config) timeZone() string {
	if c.TimeZone == "" {
		return DefaultTimeZone
	}
	return c.TimeZone
}

func (c Config) substitutor() params.Substitutor {
	if c.Substitutor != nil {
		return c.Substitutor
	}
	return params.NoopSubstitutor{}
}

func (c Config) decoder() params.ValueDecoder {
	if c.Decoder != nil {
		return c.Decoder
	}
	return params.DefaultDecoder{}
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
