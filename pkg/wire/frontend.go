package wire

import (
	"bytes"
	"encoding/binary"
)

const protocolVersion3 uint32 = 196608 // 3 << 16 | 0
const sslRequestCode uint32 = 80877103

// StartupParams are the key/value pairs sent in the StartupMessage.
// Order is preserved so wire captures ("user" first, etc.) stay stable
// across encodes, which keeps golden-file tests deterministic.
type StartupParams struct {
	User            string
	Database        string
	ClientEncoding  string
	TimeZone        string
	ExtraParameters []KV
}

// KV is an ordered key/value pair for the trailing extra StartupMessage
// parameters some deployments require (e.g. options, application_name).
type KV struct {
	Key   string
	Value string
}

// EncodeStartupMessage builds the initial, type-byte-less startup message.
func EncodeStartupMessage(p StartupParams) []byte {
	var body bytes.Buffer
	writeUint32(&body, protocolVersion3)

	writeCString(&body, "user")
	writeCString(&body, p.User)
	if p.Database != "" {
		writeCString(&body, "database")
		writeCString(&body, p.Database)
	}
	enc := p.ClientEncoding
	if enc == "" {
		enc = "UTF8"
	}
	writeCString(&body, "client_encoding")
	writeCString(&body, enc)
	if p.TimeZone != "" {
		writeCString(&body, "TimeZone")
		writeCString(&body, p.TimeZone)
	}
	for _, kv := range p.ExtraParameters {
		writeCString(&body, kv.Key)
		writeCString(&body, kv.Value)
	}
	body.WriteByte(0)

	return prependLength(body.Bytes())
}

// EncodeSSLRequest builds the 8-byte SSL negotiation preamble.
func EncodeSSLRequest() []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint32(buf[0:4], 8)
	binary.BigEndian.PutUint32(buf[4:8], sslRequestCode)
	return buf
}

// EncodePasswordMessage builds a 'p' message carrying a NUL-terminated
// response string. Used for the cleartext and MD5 responses; the SASL
// messages share the 'p' type byte but have their own encoders below
// (pkg/conn's handshake decides what goes in `response`).
func EncodePasswordMessage(response string) []byte {
	var body bytes.Buffer
	writeCString(&body, response)
	return frame(FrontendPassword, body.Bytes())
}

// EncodeSASLInitialResponse builds the first SASL client message, which
// unlike PasswordMessage carries a mechanism name plus a length-prefixed
// (not NUL-terminated) response payload.
func EncodeSASLInitialResponse(mechanism string, initialResponse []byte) []byte {
	var body bytes.Buffer
	writeCString(&body, mechanism)
	if initialResponse == nil {
		writeInt32(&body, -1)
	} else {
		writeInt32(&body, int32(len(initialResponse)))
		body.Write(initialResponse)
	}
	return frame(FrontendPassword, body.Bytes())
}

// EncodeSASLResponse builds a subsequent SASL client message: just the raw
// response bytes, no mechanism name, no length prefix.
func EncodeSASLResponse(response []byte) []byte {
	return frame(FrontendPassword, response)
}

// EncodeQuery builds a simple-query 'Q' message.
func EncodeQuery(sql string) []byte {
	var body bytes.Buffer
	writeCString(&body, sql)
	return frame(FrontendQuery, body.Bytes())
}

// EncodeParse builds a 'P' message. Postgres allows pre-specifying
// parameter type OIDs, but this engine always sends zero (let the server
// infer types from context), matching spec §4.3.
func EncodeParse(statementName, sql string) []byte {
	var body bytes.Buffer
	writeCString(&body, statementName)
	writeCString(&body, sql)
	writeInt16(&body, 0)
	return frame(FrontendParse, body.Bytes())
}

// BindParam is one positional parameter value for a Bind message. Data==nil
// means SQL NULL.
type BindParam struct {
	Data       []byte
	FormatCode int16 // 0=text, 1=binary
}

// EncodeBind builds a 'B' message binding a statement to the unnamed
// portal. The format-code heuristic from spec §4.3 applies: send a single
// code if every parameter shares one, else one code per parameter.
func EncodeBind(statementName string, params []BindParam) []byte {
	var body bytes.Buffer
	writeCString(&body, "") // portal name, always unnamed
	writeCString(&body, statementName)

	writeParamFormatCodes(&body, params)

	writeInt16(&body, int16(len(params)))
	for _, p := range params {
		if p.Data == nil {
			writeInt32(&body, -1)
			continue
		}
		writeInt32(&body, int32(len(p.Data)))
		body.Write(p.Data)
	}

	// Result-format codes: always request binary for every column.
	writeInt16(&body, 1)
	writeInt16(&body, 1)

	return frame(FrontendBind, body.Bytes())
}

func writeParamFormatCodes(body *bytes.Buffer, params []BindParam) {
	if len(params) == 0 {
		writeInt16(body, 0)
		return
	}
	allBinary, allText := true, true
	for _, p := range params {
		if p.FormatCode == 0 {
			allBinary = false
		} else {
			allText = false
		}
	}
	switch {
	case allBinary:
		writeInt16(body, 1)
		writeInt16(body, 1)
	case allText:
		writeInt16(body, 1)
		writeInt16(body, 0)
	default:
		writeInt16(body, int16(len(params)))
		for _, p := range params {
			writeInt16(body, p.FormatCode)
		}
	}
}

// EncodeDescribeStatement builds a 'D' message describing a prepared
// statement by name.
func EncodeDescribeStatement(statementName string) []byte {
	var body bytes.Buffer
	body.WriteByte('S')
	writeCString(&body, statementName)
	return frame(FrontendDescribe, body.Bytes())
}

// EncodeExecute builds an 'E' message executing the unnamed portal with no
// row limit.
func EncodeExecute() []byte {
	var body bytes.Buffer
	writeCString(&body, "") // unnamed portal
	writeInt32(&body, 0) // maxRows: unlimited
	return frame(FrontendExecute, body.Bytes())
}

// EncodeSync builds an 'S' message with an empty body.
func EncodeSync() []byte {
	return frame(FrontendSync, nil)
}

// EncodeTerminate builds an 'X' message with an empty body.
func EncodeTerminate() []byte {
	return frame(FrontendTerminate, nil)
}

func frame(t FrontendMsgType, body []byte) []byte {
	buf := make([]byte, 0, 5+len(body))
	buf = append(buf, byte(t))
	buf = append(buf, 0, 0, 0, 0)
	buf = append(buf, body...)
	binary.BigEndian.PutUint32(buf[1:5], uint32(len(buf)-1))
	return buf
}

func prependLength(body []byte) []byte {
	buf := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(buf)))
	copy(buf[4:], body)
	return buf
}

func writeUint32(b *bytes.Buffer, v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	b.Write(tmp[:])
}

func writeInt32(b *bytes.Buffer, v int32) {
	writeUint32(b, uint32(v))
}

func writeInt16(b *bytes.Buffer, v int16) {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], uint16(v))
	b.Write(tmp[:])
}

func writeCString(b *bytes.Buffer, s string) {
	b.WriteString(s)
	b.WriteByte(0)
}
