package wire

import (
	"encoding/binary"
	"fmt"
)

// AuthKind distinguishes the sub-messages carried under the 'R' type byte.
type AuthKind uint32

const (
	AuthOK                AuthKind = 0
	AuthCleartextPassword AuthKind = 3
	AuthMD5Password       AuthKind = 5
	AuthSASL              AuthKind = 10
	AuthSASLContinue      AuthKind = 11
	AuthSASLFinal         AuthKind = 12
)

// Authentication is the parsed form of every 'R' sub-message.
type Authentication struct {
	Kind AuthKind
	// Salt carries the 4-byte MD5 salt for AuthMD5Password.
	Salt [4]byte
	// Mechanisms carries the server's offered SASL mechanism names for AuthSASL.
	Mechanisms []string
	// Data carries the raw SASL challenge/outcome bytes for
	// AuthSASLContinue/AuthSASLFinal.
	Data []byte
}

func parseAuthentication(body []byte) (Authentication, error) {
	if len(body) < 4 {
		return Authentication{}, fmt.Errorf("wire: short Authentication message")
	}
	kind := AuthKind(binary.BigEndian.Uint32(body[0:4]))
	rest := body[4:]
	switch kind {
	case AuthOK, AuthCleartextPassword:
		return Authentication{Kind: kind}, nil
	case AuthMD5Password:
		if len(rest) < 4 {
			return Authentication{}, fmt.Errorf("wire: short AuthenticationMD5Password salt")
		}
		var salt [4]byte
		copy(salt[:], rest[:4])
		return Authentication{Kind: kind, Salt: salt}, nil
	case AuthSASL:
		var mechs []string
		for len(rest) > 0 {
			s, n := readCString(rest)
			if n == 0 {
				break
			}
			rest = rest[n:]
			if s == "" {
				break
			}
			mechs = append(mechs, s)
		}
		return Authentication{Kind: kind, Mechanisms: mechs}, nil
	case AuthSASLContinue, AuthSASLFinal:
		data := make([]byte, len(rest))
		copy(data, rest)
		return Authentication{Kind: kind, Data: data}, nil
	default:
		return Authentication{Kind: kind}, nil
	}
}

// ParameterStatus reports a backend runtime setting change.
type ParameterStatus struct {
	Name  string
	Value string
}

func parseParameterStatus(body []byte) (ParameterStatus, error) {
	name, n := readCString(body)
	if n == 0 {
		return ParameterStatus{}, fmt.Errorf("wire: malformed ParameterStatus")
	}
	value, _ := readCString(body[n:])
	return ParameterStatus{Name: name, Value: value}, nil
}

// BackendKeyData carries the identifiers needed to issue a CancelRequest.
type BackendKeyData struct {
	ProcessID uint32
	SecretKey uint32
}

func parseBackendKeyData(body []byte) (BackendKeyData, error) {
	if len(body) != 8 {
		return BackendKeyData{}, fmt.Errorf("wire: BackendKeyData wrong length %d", len(body))
	}
	return BackendKeyData{
		ProcessID: binary.BigEndian.Uint32(body[0:4]),
		SecretKey: binary.BigEndian.Uint32(body[4:8]),
	}, nil
}

// ReadyForQuery marks the end of a request group.
type ReadyForQuery struct {
	TxStatus TxStatus
}

func parseReadyForQuery(body []byte) (ReadyForQuery, error) {
	if len(body) != 1 {
		return ReadyForQuery{}, fmt.Errorf("wire: ReadyForQuery wrong length %d", len(body))
	}
	return ReadyForQuery{TxStatus: TxStatus(body[0])}, nil
}

// FieldDescriptor describes one output column of a RowDescription.
type FieldDescriptor struct {
	Name         string
	TableOID     uint32
	ColumnAttNum int16
	TypeOID      uint32
	TypeSize     int16
	TypeModifier int32
	FormatCode   int16
}

// RowDescription lists the column metadata for the rows that follow.
type RowDescription struct {
	Fields []FieldDescriptor
}

func parseRowDescription(body []byte) (RowDescription, error) {
	if len(body) < 2 {
		return RowDescription{}, fmt.Errorf("wire: short RowDescription")
	}
	count := int(binary.BigEndian.Uint16(body[0:2]))
	body = body[2:]
	fields := make([]FieldDescriptor, 0, count)
	for i := 0; i < count; i++ {
		name, n := readCString(body)
		if n == 0 {
			return RowDescription{}, fmt.Errorf("wire: malformed RowDescription field name")
		}
		body = body[n:]
		if len(body) < 18 {
			return RowDescription{}, fmt.Errorf("wire: truncated RowDescription field")
		}
		fields = append(fields, FieldDescriptor{
			Name:         name,
			TableOID:     binary.BigEndian.Uint32(body[0:4]),
			ColumnAttNum: int16(binary.BigEndian.Uint16(body[4:6])),
			TypeOID:      binary.BigEndian.Uint32(body[6:10]),
			TypeSize:     int16(binary.BigEndian.Uint16(body[10:12])),
			TypeModifier: int32(binary.BigEndian.Uint32(body[12:16])),
			FormatCode:   int16(binary.BigEndian.Uint16(body[16:18])),
		})
		body = body[18:]
	}
	return RowDescription{Fields: fields}, nil
}

// DataRow is one row of raw, still-encoded column values. A nil entry means
// SQL NULL.
type DataRow struct {
	Values [][]byte
}

func parseDataRow(body []byte) (DataRow, error) {
	if len(body) < 2 {
		return DataRow{}, fmt.Errorf("wire: short DataRow")
	}
	count := int(binary.BigEndian.Uint16(body[0:2]))
	body = body[2:]
	values := make([][]byte, count)
	for i := 0; i < count; i++ {
		if len(body) < 4 {
			return DataRow{}, fmt.Errorf("wire: truncated DataRow column length")
		}
		l := int32(binary.BigEndian.Uint32(body[0:4]))
		body = body[4:]
		if l < 0 {
			values[i] = nil
			continue
		}
		if int32(len(body)) < l {
			return DataRow{}, fmt.Errorf("wire: truncated DataRow column value")
		}
		values[i] = body[:l:l]
		body = body[l:]
	}
	return DataRow{Values: values}, nil
}

// CommandComplete carries the server's textual command tag, e.g. "SELECT 3".
type CommandComplete struct {
	Tag string
}

// CommandTag is the parsed form of a CommandComplete tag.
type CommandTag struct {
	Command string
	Rows    int64
	// OID is set only for the historical "INSERT oid rows" tag form.
	OID uint32
}

func parseCommandComplete(body []byte) (CommandComplete, error) {
	tag, _ := readCString(body)
	if tag == "" && len(body) > 0 {
		tag = string(trimTrailingNUL(body))
	}
	return CommandComplete{Tag: tag}, nil
}

// ParseCommandTag splits a CommandComplete tag into command name and row
// count. INSERT tags have the historical "INSERT <oid> <rows>" shape; every
// other recognized command is "<COMMAND> <rows>". Unrecognized tags are
// returned with Rows=0 and only their first word as Command.
func ParseCommandTag(tag string) CommandTag {
	fields := splitFields(tag)
	if len(fields) == 0 {
		return CommandTag{}
	}
	switch fields[0] {
	case "INSERT":
		if len(fields) == 3 {
			return CommandTag{Command: fields[0], OID: parseUint32(fields[1]), Rows: parseInt64(fields[2])}
		}
	case "SELECT", "UPDATE", "DELETE", "MOVE", "FETCH", "COPY":
		if len(fields) == 2 {
			return CommandTag{Command: fields[0], Rows: parseInt64(fields[1])}
		}
	}
	return CommandTag{Command: fields[0]}
}

// ParameterDescription lists the inferred parameter type OIDs for a parsed
// statement, in ordinal position.
type ParameterDescription struct {
	OIDs []uint32
}

func parseParameterDescription(body []byte) (ParameterDescription, error) {
	if len(body) < 2 {
		return ParameterDescription{}, fmt.Errorf("wire: short ParameterDescription")
	}
	count := int(binary.BigEndian.Uint16(body[0:2]))
	body = body[2:]
	if len(body) < count*4 {
		return ParameterDescription{}, fmt.Errorf("wire: truncated ParameterDescription")
	}
	oids := make([]uint32, count)
	for i := 0; i < count; i++ {
		oids[i] = binary.BigEndian.Uint32(body[i*4 : i*4+4])
	}
	return ParameterDescription{OIDs: oids}, nil
}

// ErrorFields is the parsed field map of an ErrorResponse/NoticeResponse:
// keyed by the single-byte field code from the protocol (S, C, M, D, H, ...).
type ErrorFields map[byte]string

func parseErrorFields(body []byte) (ErrorFields, error) {
	fields := ErrorFields{}
	for len(body) > 0 {
		code := body[0]
		if code == 0 {
			break
		}
		body = body[1:]
		val, n := readCString(body)
		if n == 0 {
			return nil, fmt.Errorf("wire: malformed ErrorResponse field")
		}
		fields[code] = val
		body = body[n:]
	}
	return fields, nil
}

// Severity, Code, Message are the fields every caller needs; the rest
// (detail, hint, position, ...) stay in the raw ErrorFields map.
func (f ErrorFields) Severity() string { return f['S'] }
func (f ErrorFields) Code() string     { return f['C'] }
func (f ErrorFields) Message() string  { return f['M'] }
func (f ErrorFields) Detail() string   { return f['D'] }
func (f ErrorFields) Hint() string     { return f['H'] }

// NotificationResponse is an asynchronous NOTIFY delivered to a subscriber.
type NotificationResponse struct {
	ProcessID uint32
	Channel   string
	Payload   string
}

func parseNotificationResponse(body []byte) (NotificationResponse, error) {
	if len(body) < 4 {
		return NotificationResponse{}, fmt.Errorf("wire: short NotificationResponse")
	}
	pid := binary.BigEndian.Uint32(body[0:4])
	body = body[4:]
	channel, n := readCString(body)
	if n == 0 {
		return NotificationResponse{}, fmt.Errorf("wire: malformed NotificationResponse channel")
	}
	body = body[n:]
	payload, _ := readCString(body)
	return NotificationResponse{ProcessID: pid, Channel: channel, Payload: payload}, nil
}

func readCString(b []byte) (string, int) {
	for i, c := range b {
		if c == 0 {
			return string(b[:i]), i + 1
		}
	}
	return "", 0
}

func trimTrailingNUL(b []byte) []byte {
	if len(b) > 0 && b[len(b)-1] == 0 {
		return b[:len(b)-1]
	}
	return b
}

func splitFields(s string) []string {
	var fields []string
	start := -1
	for i := 0; i <= len(s); i++ {
		if i < len(s) && s[i] != ' ' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			fields = append(fields, s[start:i])
			start = -1
		}
	}
	return fields
}

func parseUint32(s string) uint32 {
	var v uint32
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		v = v*10 + uint32(c-'0')
	}
	return v
}

func parseInt64(s string) int64 {
	var v int64
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		v = v*10 + int64(c-'0')
	}
	return v
}
