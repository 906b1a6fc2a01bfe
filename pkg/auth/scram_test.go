package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
	"testing"

	"golang.org/x/crypto/pbkdf2"
)

// fakeScramServer is a minimal SCRAM-SHA-256 server used only to exercise
// ScramClient end to end; it mirrors RFC 5802 without channel binding.
type fakeScramServer struct {
	username, password string
	iterations         int
	salt               []byte
	clientNonce        string
	serverNonce        string
	clientFirstMsgBare string
	serverFirstMsg     string
}

func newFakeScramServer(username, password string, iterations int) *fakeScramServer {
	salt := make([]byte, 16)
	_, _ = rand.Read(salt)
	return &fakeScramServer{username: username, password: password, iterations: iterations, salt: salt}
}

func (s *fakeScramServer) firstResponse(clientFirst []byte) []byte {
	parts := strings.SplitN(string(clientFirst), ",", 3)
	s.clientFirstMsgBare = parts[2]
	attrs := parseAttributes(s.clientFirstMsgBare)
	s.clientNonce = attrs["r"]

	nonceBytes := make([]byte, 18)
	_, _ = rand.Read(nonceBytes)
	s.serverNonce = base64.StdEncoding.EncodeToString(nonceBytes)

	s.serverFirstMsg = fmt.Sprintf("r=%s%s,s=%s,i=%d",
		s.clientNonce, s.serverNonce, base64.StdEncoding.EncodeToString(s.salt), s.iterations)
	return []byte(s.serverFirstMsg)
}

func (s *fakeScramServer) finalResponse(clientFinal []byte) ([]byte, bool) {
	attrs := parseAttributes(string(clientFinal))
	proof, err := base64.StdEncoding.DecodeString(attrs["p"])
	if err != nil {
		return nil, false
	}

	withoutProof := strings.TrimSuffix(string(clientFinal), ",p="+attrs["p"])
	authMessage := s.clientFirstMsgBare + "," + s.serverFirstMsg + "," + withoutProof

	saltedPassword := pbkdf2.Key([]byte(s.password), s.salt, s.iterations, 32, sha256.New)
	clientKey := hmacSHA256(saltedPassword, []byte("Client Key"))
	storedKey := sha256.Sum256(clientKey)
	clientSignature := hmacSHA256(storedKey[:], []byte(authMessage))

	recoveredClientKey := make([]byte, len(proof))
	for i := range proof {
		recoveredClientKey[i] = proof[i] ^ clientSignature[i]
	}
	recoveredStoredKey := sha256.Sum256(recoveredClientKey)
	if base64.StdEncoding.EncodeToString(recoveredStoredKey[:]) != base64.StdEncoding.EncodeToString(storedKey[:]) {
		return nil, false
	}

	serverKey := hmacSHA256(saltedPassword, []byte("Server Key"))
	serverSignature := hmacSHA256(serverKey, []byte(authMessage))
	return []byte("v=" + base64.StdEncoding.EncodeToString(serverSignature)), true
}

func TestScramClient_FullExchange(t *testing.T) {
	creds := NewCredentials("alice", "correct horse battery staple")
	server := newFakeScramServer("alice", "correct horse battery staple", 4096)

	client, err := NewScramClient(creds)
	if err != nil {
		t.Fatalf("NewScramClient: %v", err)
	}

	clientFirst := client.InitialResponse()
	serverFirst := server.firstResponse(clientFirst)

	clientFinal, err := client.ContinueResponse(serverFirst)
	if err != nil {
		t.Fatalf("ContinueResponse: %v", err)
	}

	serverFinal, ok := server.finalResponse(clientFinal)
	if !ok {
		t.Fatal("server rejected client proof")
	}

	if err := client.VerifyFinal(serverFinal); err != nil {
		t.Fatalf("VerifyFinal: %v", err)
	}
}

func TestScramClient_WrongPasswordFailsServerVerification(t *testing.T) {
	server := newFakeScramServer("alice", "the-real-password", 4096)
	client, err := NewScramClient(NewCredentials("alice", "a-wrong-password"))
	if err != nil {
		t.Fatalf("NewScramClient: %v", err)
	}

	serverFirst := server.firstResponse(client.InitialResponse())
	clientFinal, err := client.ContinueResponse(serverFirst)
	if err != nil {
		t.Fatalf("ContinueResponse: %v", err)
	}

	if _, ok := server.finalResponse(clientFinal); ok {
		t.Fatal("server should have rejected proof computed from wrong password")
	}
}

func TestScramClient_RejectsMismatchedNonce(t *testing.T) {
	client, err := NewScramClient(NewCredentials("alice", "pw"))
	if err != nil {
		t.Fatalf("NewScramClient: %v", err)
	}
	client.InitialResponse()

	forged := []byte("r=not-the-right-nonce,s=" + base64.StdEncoding.EncodeToString([]byte("salt1234567890ab")) + ",i=4096")
	if _, err := client.ContinueResponse(forged); err == nil {
		t.Fatal("expected error for server nonce that does not extend the client nonce")
	}
}
