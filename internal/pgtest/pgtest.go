// Package pgtest provides a scriptable fake PostgreSQL backend for testing
// pkg/conn and pkg/pool against real wire-protocol bytes without a live
// server. Scripts are built from pgmock steps so they exercise the exact
// same byte-level framing pkg/wire encodes and decodes.
package pgtest

import (
	"io"
	"net"
	"testing"

	"github.com/jackc/pgmock"
	"github.com/jackc/pgproto3/v2"
)

// Server accepts a single connection and drives it through a pgmock
// script. Each call to Run accepts and consumes exactly one connection,
// mirroring how a pkg/conn.Connection dials once and never reconnects.
type Server struct {
	t        *testing.T
	Listener net.Listener
}

// New starts listening on an ephemeral loopback port.
func New(t *testing.T) *Server {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("pgtest: listen: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return &Server{t: t, Listener: l}
}

// Addr returns "host:port" suitable for conn.Config.Host/Port.
func (s *Server) Addr() string {
	return s.Listener.Addr().String()
}

// HostPort splits Addr into host and numeric port.
func (s *Server) HostPort() (string, int) {
	host, port, err := net.SplitHostPort(s.Addr())
	if err != nil {
		s.t.Fatalf("pgtest: split addr: %v", err)
	}
	p := 0
	for _, c := range port {
		p = p*10 + int(c-'0')
	}
	return host, p
}

// Run accepts one connection and executes steps against it in a
// background goroutine, reporting the script's result on errCh. Once the
// script finishes, the connection stays open until the client closes it.
// The caller drains errCh (buffered 1) after the client side finishes.
func (s *Server) Run(steps ...pgmock.Step) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		conn, err := s.Listener.Accept()
		if err != nil {
			errCh <- err
			return
		}
		defer conn.Close()
		backend := pgproto3.NewBackend(pgproto3.NewChunkReader(conn), conn)
		script := &pgmock.Script{Steps: steps}
		errCh <- script.Run(backend)
		_, _ = io.Copy(io.Discard, conn)
	}()
	return errCh
}

// AcceptUnauthenticated returns the steps for a startup handshake that
// requires no password: startup message in, AuthenticationOk plus a
// minimal parameter/backend-key/ready-for-query sequence out.
func AcceptUnauthenticated() []pgmock.Step {
	return pgmock.AcceptUnauthenticatedConnRequestSteps()
}

// AcceptCleartext returns the steps for a startup handshake that
// challenges for a cleartext password and accepts exactly wantPassword.
func AcceptCleartext(wantPassword string) []pgmock.Step {
	return []pgmock.Step{
		pgmock.ExpectAnyMessage(&pgproto3.StartupMessage{}),
		pgmock.SendMessage(&pgproto3.AuthenticationCleartextPassword{}),
		pgmock.ExpectMessage(&pgproto3.PasswordMessage{Password: wantPassword}),
		pgmock.SendMessage(&pgproto3.AuthenticationOk{}),
		pgmock.SendMessage(&pgproto3.ParameterStatus{Name: "server_version", Value: "16.0"}),
		pgmock.SendMessage(&pgproto3.BackendKeyData{ProcessID: 1234, SecretKey: 5678}),
		pgmock.SendMessage(&pgproto3.ReadyForQuery{TxStatus: 'I'}),
	}
}

// ExpectQuery matches a simple-query message.
func ExpectQuery(sql string) pgmock.Step {
	return pgmock.ExpectMessage(&pgproto3.Query{String: sql})
}

// SimpleOK returns the steps for a simple-query INSERT/UPDATE/DELETE-style
// round trip: query in, command tag and ready-for-query out.
func SimpleOK(sql, tag string) []pgmock.Step {
	return []pgmock.Step{
		ExpectQuery(sql),
		pgmock.SendMessage(&pgproto3.CommandComplete{CommandTag: []byte(tag)}),
		pgmock.SendMessage(&pgproto3.ReadyForQuery{TxStatus: 'I'}),
	}
}

// SimpleOKStatus is SimpleOK with an explicit ReadyForQuery transaction
// status byte ('I' idle, 'T' in transaction, 'E' failed transaction), for
// scripting BEGIN/COMMIT/ROLLBACK round trips that move the connection
// between transaction states.
func SimpleOKStatus(sql, tag string, txStatus byte) []pgmock.Step {
	return []pgmock.Step{
		ExpectQuery(sql),
		pgmock.SendMessage(&pgproto3.CommandComplete{CommandTag: []byte(tag)}),
		pgmock.SendMessage(&pgproto3.ReadyForQuery{TxStatus: txStatus}),
	}
}

// ExtendedSelect returns the steps for a full Parse/Describe/Bind/Execute/
// Sync round trip returning a single row, matching how Connection.dispatch
// batches an uncached statement.
func ExtendedSelect(sql string, paramOIDs []uint32, fields []pgproto3.FieldDescription, row [][]byte, tag string) []pgmock.Step {
	return []pgmock.Step{
		pgmock.ExpectAnyMessage(&pgproto3.Parse{}),
		pgmock.ExpectAnyMessage(&pgproto3.Describe{}),
		pgmock.ExpectAnyMessage(&pgproto3.Bind{}),
		pgmock.ExpectAnyMessage(&pgproto3.Execute{}),
		pgmock.ExpectAnyMessage(&pgproto3.Sync{}),
		pgmock.SendMessage(&pgproto3.ParseComplete{}),
		pgmock.SendMessage(&pgproto3.ParameterDescription{ParameterOIDs: paramOIDs}),
		pgmock.SendMessage(&pgproto3.BindComplete{}),
		pgmock.SendMessage(&pgproto3.RowDescription{Fields: fields}),
		pgmock.SendMessage(&pgproto3.DataRow{Values: row}),
		pgmock.SendMessage(&pgproto3.CommandComplete{CommandTag: []byte(tag)}),
		pgmock.SendMessage(&pgproto3.ReadyForQuery{TxStatus: 'I'}),
	}
}

// ExtendedReuse returns the steps for a Bind/Execute/Sync round trip with
// no Parse/Describe, matching how Connection.dispatch skips both when the
// reuse cache already holds a prepared statement for the query text.
func ExtendedReuse(fields []pgproto3.FieldDescription, row [][]byte, tag string) []pgmock.Step {
	return []pgmock.Step{
		pgmock.ExpectAnyMessage(&pgproto3.Bind{}),
		pgmock.ExpectAnyMessage(&pgproto3.Execute{}),
		pgmock.ExpectAnyMessage(&pgproto3.Sync{}),
		pgmock.SendMessage(&pgproto3.BindComplete{}),
		pgmock.SendMessage(&pgproto3.RowDescription{Fields: fields}),
		pgmock.SendMessage(&pgproto3.DataRow{Values: row}),
		pgmock.SendMessage(&pgproto3.CommandComplete{CommandTag: []byte(tag)}),
		pgmock.SendMessage(&pgproto3.ReadyForQuery{TxStatus: 'I'}),
	}
}

// SimpleError returns the steps for a simple-query round trip that fails
// with a non-fatal ErrorResponse: query in, error and ready-for-query out.
// TxStatus is 'I' since a non-fatal error outside a transaction returns
// the connection straight back to idle.
func SimpleError(sql, severity, code, message string) []pgmock.Step {
	return []pgmock.Step{
		ExpectQuery(sql),
		pgmock.SendMessage(&pgproto3.ErrorResponse{Severity: severity, Code: code, Message: message}),
		pgmock.SendMessage(&pgproto3.ReadyForQuery{TxStatus: 'I'}),
	}
}

// DeadListener accepts a TCP connection but never writes a byte, used to
// exercise the handshake timeout: it accepts, then blocks forever without
// reading, writing, or closing the accepted connection.
func DeadListener(t *testing.T) *Server {
	t.Helper()
	s := New(t)
	go func() {
		conn, err := s.Listener.Accept()
		if err != nil {
			return
		}
		<-make(chan struct{}) // block forever; closing the listener does not close conn
		conn.Close()
	}()
	return s
}
