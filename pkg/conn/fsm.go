package conn

import (
	"github.com/pgwire-go/pgwire/pkg/auth"
	"github.com/pgwire-go/pgwire/pkg/wire"
)

func (c *Connection) handleMessage(m wire.BackendMessage) {
	switch c.st {
	case stateSocketConnected:
		c.handleSocketConnected(m)
	case stateAuthenticating:
		c.handleAuthenticating(m)
	case stateBusy:
		c.handleBusy(m)
	default:
		c.handleAsync(m)
	}
}

func (c *Connection) handleSocketConnected(m wire.BackendMessage) {
	switch msg := m.(type) {
	case wire.Authentication:
		c.handleAuthMessage(msg)
	case wire.ErrorResponse:
		c.abort(wire.NewAuthError(msg.Fields.Message(), nil))
	default:
		c.logger.Debug("unexpected message before authentication", "type", "unknown")
	}
}

func (c *Connection) handleAuthenticating(m wire.BackendMessage) {
	switch msg := m.(type) {
	case wire.Authentication:
		c.handleAuthMessage(msg)
	case wire.ParameterStatus:
		c.paramStatuses = c.paramStatuses.Apply(msg.Name, msg.Value)
	case wire.BackendKeyData:
		c.processID, c.secretKey = msg.ProcessID, msg.SecretKey
	case wire.ReadyForQuery:
		c.st = stateIdle
		c.finishOpen(nil)
		c.maybeDispatch()
	case wire.ErrorResponse:
		c.abort(wire.NewAuthError(msg.Fields.Message(), nil))
	case wire.NoticeResponse:
		c.logger.Warn("server notice during handshake", "message", msg.Fields.Message())
	}
}

func (c *Connection) handleAuthMessage(msg wire.Authentication) {
	switch msg.Kind {
	case wire.AuthOK:
		c.st = stateAuthenticating
	case wire.AuthCleartextPassword:
		c.st = stateAuthenticating
		c.write(wire.EncodePasswordMessage(c.cfg.Password))
	case wire.AuthMD5Password:
		c.authSalt = msg.Salt
		c.st = stateAuthenticating
		hash := auth.ComputeMD5Password(auth.NewCredentials(c.cfg.Username, c.cfg.Password), msg.Salt)
		c.write(wire.EncodePasswordMessage(hash))
	case wire.AuthSASL:
		client, err := auth.NewScramClient(auth.NewCredentials(c.cfg.Username, c.cfg.Password))
		if err != nil {
			c.abort(err)
			return
		}
		c.scramClient = client
		c.st = stateAuthenticating
		c.write(wire.EncodeSASLInitialResponse(auth.MechanismSCRAMSHA256, client.InitialResponse()))
	case wire.AuthSASLContinue:
		resp, err := c.scramClient.ContinueResponse(msg.Data)
		if err != nil {
			c.abort(err)
			return
		}
		c.write(wire.EncodeSASLResponse(resp))
	case wire.AuthSASLFinal:
		if err := c.scramClient.VerifyFinal(msg.Data); err != nil {
			c.abort(err)
		}
	default:
		c.abort(wire.NewAuthError("unsupported authentication method", nil))
	}
}

func (c *Connection) handleBusy(m wire.BackendMessage) {
	q := c.currentQuery
	switch msg := m.(type) {
	case wire.ParseComplete, wire.BindComplete, wire.NoData, wire.PortalSuspended, wire.EmptyQueryResponse, wire.CloseComplete:
		// protocol bookkeeping only
	case wire.ParameterDescription:
		c.validateParamDescription(q, msg)
	case wire.RowDescription:
		q.fields = msg.Fields
	case wire.DataRow:
		row, err := c.decodeRow(q.fields, msg.Values)
		if err != nil {
			if q.returningErr == nil {
				q.returningErr = err
			}
			return
		}
		q.rows = append(q.rows, row)
	case wire.CommandComplete:
		tag := wire.ParseCommandTag(msg.Tag)
		q.affected = tag.Rows
		q.command = tag.Command
	case wire.ErrorResponse:
		if msg.Fields.Severity() == "FATAL" || msg.Fields.Severity() == "PANIC" {
			c.abort(wire.NewServerError(msg.Fields))
			return
		}
		if q.returningErr == nil {
			q.returningErr = wire.NewServerError(msg.Fields)
		}
	case wire.NoticeResponse:
		c.logger.Debug("server notice", "message", msg.Fields.Message())
	case wire.NotificationResponse:
		c.broadcastNotification(Notification{ProcessID: msg.ProcessID, Channel: msg.Channel, Payload: msg.Payload})
	case wire.ParameterStatus:
		c.paramStatuses = c.paramStatuses.Apply(msg.Name, msg.Value)
	case wire.ReadyForQuery:
		c.completeCurrent(msg.TxStatus)
	}
}

func (c *Connection) handleAsync(m wire.BackendMessage) {
	switch msg := m.(type) {
	case wire.ParameterStatus:
		c.paramStatuses = c.paramStatuses.Apply(msg.Name, msg.Value)
	case wire.NotificationResponse:
		c.broadcastNotification(Notification{ProcessID: msg.ProcessID, Channel: msg.Channel, Payload: msg.Payload})
	case wire.NoticeResponse:
		c.logger.Debug("server notice", "message", msg.Fields.Message())
	case wire.ErrorResponse:
		if msg.Fields.Severity() == "FATAL" || msg.Fields.Severity() == "PANIC" {
			c.abort(wire.NewServerError(msg.Fields))
		}
	}
}

func (c *Connection) validateParamDescription(q *Query, msg wire.ParameterDescription) {
	if q.pendingStatementName == "" {
		return // reused an already-cached prepared statement, no Describe was sent
	}
	declared := q.declaredTypes()
	gotOIDs := make([]wire.PgType, len(msg.OIDs))
	for i, oid := range msg.OIDs {
		gotOIDs[i] = oidToPgTypeBestEffort(oid)
	}
	if !paramTypesEqual(gotOIDs, declared) {
		c.cache.invalidate(q.rewrittenSQL)
		if q.returningErr == nil {
			q.returningErr = wire.NewInvalidTypeError(wire.PgType(""), "parameter type mismatch against server ParameterDescription")
		}
		return
	}
	if !q.allowReuse {
		// Parameter types still get validated above, but a caller that
		// opted out of reuse must not leave a server-side prepared
		// statement discoverable by a later allowReuse=true call against
		// the same SQL text.
		return
	}
	c.cache.store(q.rewrittenSQL, q.pendingStatementName, declared)
}

func (c *Connection) completeCurrent(tx wire.TxStatus) {
	q := c.currentQuery
	c.currentQuery = nil

	if q.returningErr != nil {
		q.fail(q.returningErr)
	} else {
		q.succeed()
	}

	switch tx {
	case wire.TxIdle:
		c.st = stateIdle
		c.activeTx = nil
	case wire.TxInTrans:
		c.st = stateReadyInTransaction
	case wire.TxFailed:
		c.st = stateTransactionFailure
	}
	c.maybeDispatch()
}

var pgTypeByOID = map[wire.OID]wire.PgType{
	wire.OIDBool:        wire.PgTypeBoolean,
	wire.OIDBytea:       wire.PgTypeBytea,
	wire.OIDName:        wire.PgTypeName,
	wire.OIDInt8:        wire.PgTypeBigInteger,
	wire.OIDInt2:        wire.PgTypeSmallInteger,
	wire.OIDInt4:        wire.PgTypeInteger,
	wire.OIDText:        wire.PgTypeText,
	wire.OIDJSON:        wire.PgTypeJSON,
	wire.OIDFloat4:      wire.PgTypeReal,
	wire.OIDFloat8:      wire.PgTypeDouble,
	wire.OIDUUID:        wire.PgTypeUUID,
	wire.OIDDate:        wire.PgTypeDate,
	wire.OIDTimestamp:   wire.PgTypeTimestamp,
	wire.OIDTimestampTZ: wire.PgTypeTimestampTZ,
	wire.OIDJSONB:       wire.PgTypeJSON,
}

func oidToPgTypeBestEffort(oid uint32) wire.PgType {
	if t, ok := pgTypeByOID[wire.OID(oid)]; ok {
		return t
	}
	return wire.PgTypeText
}
