package wire

import "fmt"

// BackendMessage is the tagged-union of every backend message this engine
// understands. Each concrete type below implements it; UnknownMessage is
// the catch-all for message types outside our supported set.
type BackendMessage interface {
	backendMessage()
}

func (Authentication) backendMessage()         {}
func (ParameterStatus) backendMessage()        {}
func (BackendKeyData) backendMessage()         {}
func (ReadyForQuery) backendMessage()          {}
func (RowDescription) backendMessage()         {}
func (DataRow) backendMessage()                {}
func (CommandComplete) backendMessage()        {}
func (ParseComplete) backendMessage()          {}
func (BindComplete) backendMessage()           {}
func (NoData) backendMessage()                 {}
func (EmptyQueryResponse) backendMessage()     {}
func (PortalSuspended) backendMessage()        {}
func (CloseComplete) backendMessage()          {}
func (ParameterDescription) backendMessage()   {}
func (ErrorResponse) backendMessage()          {}
func (NoticeResponse) backendMessage()         {}
func (NotificationResponse) backendMessage()   {}
func (UnknownMessage) backendMessage()         {}

// ParseComplete, BindComplete, NoData, EmptyQueryResponse, PortalSuspended,
// CloseComplete carry no fields; they are markers.
type ParseComplete struct{}
type BindComplete struct{}
type NoData struct{}
type EmptyQueryResponse struct{}
type PortalSuspended struct{}
type CloseComplete struct{}

// ErrorResponse and NoticeResponse share the same field-map wire shape.
type ErrorResponse struct{ Fields ErrorFields }
type NoticeResponse struct{ Fields ErrorFields }

// UnknownMessage is emitted for any type byte this engine does not
// recognize, per the framer contract in the spec: unknown codes never fail
// the stream, they are surfaced for the caller to log or ignore.
type UnknownMessage struct {
	Type BackendMsgType
	Raw  []byte
}

// Decode dispatches a RawMessage to its typed BackendMessage. It only
// returns an error when the message's own type IS recognized but its body
// is malformed; unrecognized types produce UnknownMessage, never an error.
func Decode(raw RawMessage) (BackendMessage, error) {
	switch raw.Type {
	case BackendAuth:
		return parseAuthentication(raw.Body)
	case BackendParameterStatus:
		return parseParameterStatus(raw.Body)
	case BackendBackendKeyData:
		return parseBackendKeyData(raw.Body)
	case BackendReadyForQuery:
		return parseReadyForQuery(raw.Body)
	case BackendRowDescription:
		return parseRowDescription(raw.Body)
	case BackendDataRow:
		return parseDataRow(raw.Body)
	case BackendCommandComplete:
		return parseCommandComplete(raw.Body)
	case BackendParseComplete:
		return ParseComplete{}, nil
	case BackendBindComplete:
		return BindComplete{}, nil
	case BackendNoData:
		return NoData{}, nil
	case BackendEmptyQueryResponse:
		return EmptyQueryResponse{}, nil
	case BackendPortalSuspended:
		return PortalSuspended{}, nil
	case BackendCloseComplete:
		return CloseComplete{}, nil
	case BackendParameterDescription:
		return parseParameterDescription(raw.Body)
	case BackendErrorResponse:
		fields, err := parseErrorFields(raw.Body)
		if err != nil {
			return nil, fmt.Errorf("wire: parsing ErrorResponse: %w", err)
		}
		return ErrorResponse{Fields: fields}, nil
	case BackendNoticeResponse:
		fields, err := parseErrorFields(raw.Body)
		if err != nil {
			return nil, fmt.Errorf("wire: parsing NoticeResponse: %w", err)
		}
		return NoticeResponse{Fields: fields}, nil
	case BackendNotificationResponse:
		return parseNotificationResponse(raw.Body)
	default:
		return UnknownMessage{Type: raw.Type, Raw: raw.Body}, nil
	}
}
