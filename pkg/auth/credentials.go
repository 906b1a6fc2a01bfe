// Package auth implements the client side of the PostgreSQL authentication
// handshakes: cleartext password, MD5, and SCRAM-SHA-256.
package auth

import (
	"fmt"
	"log/slog"
)

// Credentials holds a username and password for authenticating a
// connection. The password never appears in String, MarshalJSON, or
// slog output; only Password() exposes it, and only the handshake code
// in this package and pkg/conn's fsm should call it.
type Credentials struct {
	username string
	password string
}

// NewCredentials returns Credentials for the given username and password.
func NewCredentials(username, password string) Credentials {
	return Credentials{username: username, password: password}
}

// Username returns the username.
func (c Credentials) Username() string {
	return c.username
}

// Password returns the password. Only the authentication handshake should
// call this.
func (c Credentials) Password() string {
	return c.password
}

// String returns a redacted representation safe for logging.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{username: %q, password: [REDACTED]}", c.username)
}

// LogValue implements slog.LogValuer so passing Credentials directly as a
// log attribute (matching this engine's log/slog-everywhere convention,
// see pkg/wire.Err and pkg/conn's per-connection loggers) never risks the
// password reaching a log sink.
func (c Credentials) LogValue() slog.Value {
	return slog.StringValue(c.String())
}

// MarshalJSON redacts the password.
func (c Credentials) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf(`{"username":%q,"password":"[REDACTED]"}`, c.username)), nil
}
