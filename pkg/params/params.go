// Package params tracks server-reported connection parameters and defines
// the external contracts the connection engine delegates SQL parameter
// substitution and result-value decoding to.
package params

import "github.com/pgwire-go/pgwire/pkg/wire"

// ParameterStatuses is a snapshot of the server-reported settings
// delivered via ParameterStatus messages during the handshake and
// whenever a SET command changes one.
//
// https://www.postgresql.org/docs/current/protocol-flow.html#PROTOCOL-ASYNC
type ParameterStatuses map[string]string

// Well-known parameter names Postgres generates ParameterStatus messages
// for out of the box.
const (
	ParamApplicationName            = "application_name"
	ParamClientEncoding             = "client_encoding"
	ParamSearchPath                 = "search_path"
	ParamDateStyle                  = "DateStyle"
	ParamServerEncoding             = "server_encoding"
	ParamDefaultTransactionReadOnly = "default_transaction_read_only"
	ParamServerVersion              = "server_version"
	ParamInHotStandby               = "in_hot_standby"
	ParamSessionAuthorization       = "session_authorization"
	ParamIntegerDatetimes           = "integer_datetimes"
	ParamStandardConformingStrings  = "standard_conforming_strings"
	ParamIntervalStyle              = "IntervalStyle"
	ParamTimeZone                   = "TimeZone"
	ParamIsSuperuser                = "is_superuser"
)

// BaseTrackedParameters lists the well-known parameter names above. A
// connection records every ParameterStatus the server sends, so once
// reported any of these can be read via Get without an extra round trip.
var BaseTrackedParameters = []string{
	ParamApplicationName,
	ParamClientEncoding,
	ParamSearchPath,
	ParamDateStyle,
	ParamServerEncoding,
	ParamDefaultTransactionReadOnly,
	ParamServerVersion,
	ParamInHotStandby,
	ParamSessionAuthorization,
	ParamIntegerDatetimes,
	ParamStandardConformingStrings,
	ParamIntervalStyle,
	ParamTimeZone,
	ParamIsSuperuser,
}

// Apply records a ParameterStatus message into the snapshot, returning a
// new map that shares no backing storage with the receiver so the
// connection's stored snapshot stays immutable to readers observing it
// concurrently.
func (p ParameterStatuses) Apply(name, value string) ParameterStatuses {
	next := make(ParameterStatuses, len(p)+1)
	for k, v := range p {
		next[k] = v
	}
	next[name] = value
	return next
}

// Get returns the tracked value for name and whether it has been reported
// yet.
func (p ParameterStatuses) Get(name string) (string, bool) {
	v, ok := p[name]
	return v, ok
}

// Substitutor rewrites a statement containing @name or @name:type
// placeholders using a name -> value binding map, producing either the
// simple-query text (fully inlined literals) or the extended-query text
// (rewritten to use $1, $2, ... placeholders) plus its ordered parameter
// list. Implementing a Substitutor is the caller's responsibility; this
// engine only depends on the contract.
type Substitutor interface {
	// SubstituteText renders sql with every placeholder replaced by an
	// inline SQL literal, for the simple-query path.
	SubstituteText(sql string, bindings map[string]any) (string, error)

	// SubstituteExtended rewrites sql to use positional $N placeholders
	// and returns the ordered, typed parameter list for the extended
	// path.
	SubstituteExtended(sql string, bindings map[string]any) (rewritten string, values []ExtendedParam, err error)
}

// ExtendedParam is one positional parameter of the extended-query path:
// its runtime value and the Postgres type it should be encoded as.
type ExtendedParam struct {
	Value any
	Type  wire.PgType
}

// ErrUnsupportedOID signals a ValueDecoder does not handle a given OID and
// the caller should fall through to the next decoder in a chain.
var ErrUnsupportedOID = unsupportedOIDError{}

type unsupportedOIDError struct{}

func (unsupportedOIDError) Error() string { return "params: unsupported OID" }

// ValueDecoder converts a raw column value into a user-visible Go value.
// DefaultDecoder wraps pkg/wire's built-in codec table; callers may
// register additional decoders (for example a PostGIS EWKB decoder) ahead
// of it in a ChainDecoder.
type ValueDecoder interface {
	Decode(oid wire.OID, raw []byte) (any, error)
}

// DefaultDecoder adapts pkg/wire's built-in codec table to ValueDecoder.
type DefaultDecoder struct{}

// Decode implements ValueDecoder. wire.DecodeValue never itself returns
// ErrUnsupportedOID: it falls back to UTF-8 or raw bytes for OIDs it does
// not specifically recognize.
func (DefaultDecoder) Decode(oid wire.OID, raw []byte) (any, error) {
	return wire.DecodeValue(oid, raw)
}

// ChainDecoder tries each ValueDecoder in order, falling through to the
// next on ErrUnsupportedOID.
type ChainDecoder []ValueDecoder

// Decode implements ValueDecoder.
func (c ChainDecoder) Decode(oid wire.OID, raw []byte) (any, error) {
	for _, d := range c {
		v, err := d.Decode(oid, raw)
		if err == ErrUnsupportedOID {
			continue
		}
		return v, err
	}
	return nil, ErrUnsupportedOID
}
