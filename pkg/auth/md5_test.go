package auth

import "testing"

func TestComputeMD5Password(t *testing.T) {
	creds := NewCredentials("alice", "s3cret")
	salt := [4]byte{0x01, 0x02, 0x03, 0x04}

	got := ComputeMD5Password(creds, salt)
	if len(got) != 35 || got[:3] != "md5" {
		t.Fatalf("got %q, want 35-char md5-prefixed hash", got)
	}

	// Same inputs must be deterministic.
	again := ComputeMD5Password(creds, salt)
	if got != again {
		t.Errorf("ComputeMD5Password not deterministic: %q vs %q", got, again)
	}

	// Different salt must change the hash.
	otherSalt := [4]byte{0xff, 0xff, 0xff, 0xff}
	if got == ComputeMD5Password(creds, otherSalt) {
		t.Error("expected different hash for different salt")
	}

	// Different password must change the hash.
	other := NewCredentials("alice", "different")
	if got == ComputeMD5Password(other, salt) {
		t.Error("expected different hash for different password")
	}
}

func TestCredentials_RedactsPassword(t *testing.T) {
	creds := NewCredentials("bob", "hunter2")
	if s := creds.String(); contains(s, "hunter2") {
		t.Errorf("String() leaked password: %s", s)
	}
	j, err := creds.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	if contains(string(j), "hunter2") {
		t.Errorf("MarshalJSON leaked password: %s", j)
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
