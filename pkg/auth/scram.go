package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/pgwire-go/pgwire/pkg/wire"
)

// Mechanism names as they appear in the AuthenticationSASL message.
const (
	MechanismSCRAMSHA256 = "SCRAM-SHA-256"
)

// ScramClient drives the client side of a RFC 5802 SCRAM-SHA-256 exchange
// (without channel binding; PostgreSQL clients advertise gs2-header "n,,").
// The three steps mirror the three SASL messages the wire protocol expects:
// InitialResponse, then a response to AuthenticationSASLContinue, then a
// verification of AuthenticationSASLFinal.
type ScramClient struct {
	creds Credentials

	clientNonce        string
	clientFirstMsgBare string
	serverFirstMsg     string
	saltedPassword     []byte
	authMessage        string
}

// NewScramClient starts a new exchange for the given credentials.
func NewScramClient(creds Credentials) (*ScramClient, error) {
	nonceBytes := make([]byte, 18)
	if _, err := rand.Read(nonceBytes); err != nil {
		return nil, wire.NewAuthError("failed to generate client nonce", err)
	}
	return &ScramClient{
		creds:       creds,
		clientNonce: base64.StdEncoding.EncodeToString(nonceBytes),
	}, nil
}

// InitialResponse builds the SASLInitialResponse payload: gs2-header +
// client-first-message-bare. PostgreSQL's convention is to omit the
// username here (n=,) since it was already sent in the startup message.
func (s *ScramClient) InitialResponse() []byte {
	s.clientFirstMsgBare = fmt.Sprintf("n=,r=%s", s.clientNonce)
	return []byte("n,," + s.clientFirstMsgBare)
}

// ContinueResponse processes the AuthenticationSASLContinue payload
// (server-first-message) and returns the client-final-message to send back.
func (s *ScramClient) ContinueResponse(serverFirstMsg []byte) ([]byte, error) {
	s.serverFirstMsg = string(serverFirstMsg)
	attrs := parseAttributes(s.serverFirstMsg)

	combinedNonce, ok := attrs["r"]
	if !ok || !strings.HasPrefix(combinedNonce, s.clientNonce) {
		return nil, wire.NewAuthError("server nonce does not extend client nonce", nil)
	}
	saltB64, ok := attrs["s"]
	if !ok {
		return nil, wire.NewAuthError("server-first-message missing salt", nil)
	}
	salt, err := base64.StdEncoding.DecodeString(saltB64)
	if err != nil {
		return nil, wire.NewAuthError("invalid salt encoding", err)
	}
	iterStr, ok := attrs["i"]
	if !ok {
		return nil, wire.NewAuthError("server-first-message missing iteration count", nil)
	}
	iterations, err := strconv.Atoi(iterStr)
	if err != nil || iterations <= 0 {
		return nil, wire.NewAuthError("invalid iteration count", err)
	}

	s.saltedPassword = pbkdf2.Key([]byte(s.creds.Password()), salt, iterations, 32, sha256.New)

	channelBinding := base64.StdEncoding.EncodeToString([]byte("n,,"))
	clientFinalWithoutProof := fmt.Sprintf("c=%s,r=%s", channelBinding, combinedNonce)
	s.authMessage = s.clientFirstMsgBare + "," + s.serverFirstMsg + "," + clientFinalWithoutProof

	clientKey := hmacSHA256(s.saltedPassword, []byte("Client Key"))
	storedKey := sha256.Sum256(clientKey)
	clientSignature := hmacSHA256(storedKey[:], []byte(s.authMessage))

	clientProof := make([]byte, len(clientKey))
	for i := range clientKey {
		clientProof[i] = clientKey[i] ^ clientSignature[i]
	}

	final := fmt.Sprintf("%s,p=%s", clientFinalWithoutProof, base64.StdEncoding.EncodeToString(clientProof))
	return []byte(final), nil
}

// VerifyFinal validates the AuthenticationSASLFinal payload (server's proof
// that it knows the salted password) and returns an error if it does not
// match, which would indicate a compromised or misconfigured server.
func (s *ScramClient) VerifyFinal(serverFinalMsg []byte) error {
	attrs := parseAttributes(string(serverFinalMsg))
	sigB64, ok := attrs["v"]
	if !ok {
		return wire.NewAuthError("server-final-message missing verifier", nil)
	}
	gotSig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return wire.NewAuthError("invalid server signature encoding", err)
	}

	serverKey := hmacSHA256(s.saltedPassword, []byte("Server Key"))
	wantSig := hmacSHA256(serverKey, []byte(s.authMessage))

	if !hmac.Equal(gotSig, wantSig) {
		return wire.NewAuthError("server SCRAM signature verification failed", nil)
	}
	return nil
}

func parseAttributes(msg string) map[string]string {
	attrs := make(map[string]string)
	for _, part := range strings.Split(msg, ",") {
		if len(part) >= 2 && part[1] == '=' {
			attrs[part[:1]] = part[2:]
		}
	}
	return attrs
}

func hmacSHA256(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}
