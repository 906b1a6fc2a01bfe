package wire

// OID is a PostgreSQL type OID. Only the OIDs this engine's codec table
// understands are named; anything else falls through to the raw-bytes /
// best-effort-UTF8 decode path described in spec §6.
type OID uint32

const (
	OIDBool        OID = 16
	OIDBytea       OID = 17
	OIDName        OID = 19
	OIDInt8        OID = 20
	OIDInt2        OID = 21
	OIDInt4        OID = 23
	OIDText        OID = 25
	OIDJSON        OID = 114
	OIDJSONArray   OID = 199
	OIDFloat4      OID = 700
	OIDFloat8      OID = 701
	OIDUnknown     OID = 705
	OIDUUID        OID = 2950
	OIDDate        OID = 1082
	OIDTimestamp   OID = 1114
	OIDTimestampTZ OID = 1184
	OIDJSONB       OID = 3802
)

// PgType is the declared logical type a caller (or the parameter
// substitutor) assigns to a value, per spec §6. Several PgTypes share a
// wire encoding with a base OID (Serial/Int4, BigSerial/Int8).
type PgType string

const (
	PgTypeText         PgType = "text"
	PgTypeInteger      PgType = "integer"
	PgTypeSmallInteger PgType = "smallInteger"
	PgTypeBigInteger   PgType = "bigInteger"
	PgTypeReal         PgType = "real"
	PgTypeDouble       PgType = "double"
	PgTypeBoolean      PgType = "boolean"
	PgTypeTimestamp    PgType = "timestamp"
	PgTypeTimestampTZ  PgType = "timestamptz"
	PgTypeDate         PgType = "date"
	PgTypeJSON         PgType = "json"
	PgTypeBytea        PgType = "bytea"
	PgTypeUUID         PgType = "uuid"
	PgTypeSerial       PgType = "serial"
	PgTypeBigSerial    PgType = "bigSerial"
	PgTypeName         PgType = "name"
)

// OID returns the wire type OID a declared PgType encodes as.
func (t PgType) OID() OID {
	switch t {
	case PgTypeText:
		return OIDText
	case PgTypeInteger, PgTypeSerial:
		return OIDInt4
	case PgTypeSmallInteger:
		return OIDInt2
	case PgTypeBigInteger, PgTypeBigSerial:
		return OIDInt8
	case PgTypeReal:
		return OIDFloat4
	case PgTypeDouble:
		return OIDFloat8
	case PgTypeBoolean:
		return OIDBool
	case PgTypeTimestamp:
		return OIDTimestamp
	case PgTypeTimestampTZ:
		return OIDTimestampTZ
	case PgTypeDate:
		return OIDDate
	case PgTypeJSON:
		return OIDJSON
	case PgTypeBytea:
		return OIDBytea
	case PgTypeUUID:
		return OIDUUID
	case PgTypeName:
		return OIDName
	default:
		return OIDUnknown
	}
}
