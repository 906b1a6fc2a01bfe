package wire

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestEncodeStartupMessage(t *testing.T) {
	buf := EncodeStartupMessage(StartupParams{User: "alice", Database: "app", TimeZone: "UTC"})

	length := binary.BigEndian.Uint32(buf[0:4])
	if int(length) != len(buf) {
		t.Fatalf("length field = %d, want %d", length, len(buf))
	}
	version := binary.BigEndian.Uint32(buf[4:8])
	if version != protocolVersion3 {
		t.Fatalf("protocol version = %d, want %d", version, protocolVersion3)
	}
	if !bytes.Contains(buf, []byte("user\x00alice\x00")) {
		t.Error("missing user key/value")
	}
	if !bytes.Contains(buf, []byte("database\x00app\x00")) {
		t.Error("missing database key/value")
	}
	if buf[len(buf)-1] != 0 {
		t.Error("missing trailing NUL")
	}
}

func TestEncodeSSLRequest(t *testing.T) {
	buf := EncodeSSLRequest()
	if len(buf) != 8 {
		t.Fatalf("length = %d, want 8", len(buf))
	}
	if binary.BigEndian.Uint32(buf[0:4]) != 8 {
		t.Error("bad length field")
	}
	if binary.BigEndian.Uint32(buf[4:8]) != sslRequestCode {
		t.Error("bad SSL request code")
	}
}

func TestEncodeBind_FormatCodeHeuristic(t *testing.T) {
	allBinary := []BindParam{{Data: []byte{1}, FormatCode: 1}, {Data: []byte{2}, FormatCode: 1}}
	buf := EncodeBind("", allBinary)
	// portal name NUL, statement name NUL, then int16 count, int16 code, int16 code
	body := buf[5:]
	body = body[1:] // skip empty portal name NUL
	body = body[1:] // skip empty statement name NUL
	if binary.BigEndian.Uint16(body[0:2]) != 1 {
		t.Fatalf("expected single format code count, got %d", binary.BigEndian.Uint16(body[0:2]))
	}
	if int16(binary.BigEndian.Uint16(body[2:4])) != 1 {
		t.Fatalf("expected binary format code")
	}

	mixed := []BindParam{{Data: []byte{1}, FormatCode: 1}, {Data: []byte{2}, FormatCode: 0}}
	buf2 := EncodeBind("", mixed)
	body2 := buf2[5:][1:][1:]
	if binary.BigEndian.Uint16(body2[0:2]) != 2 {
		t.Fatalf("expected per-parameter format codes for mixed formats")
	}
}

func TestEncodeQuery(t *testing.T) {
	buf := EncodeQuery("SELECT 1")
	if buf[0] != byte(FrontendQuery) {
		t.Fatalf("type byte = %c, want Q", buf[0])
	}
	if !bytes.HasSuffix(buf, []byte("SELECT 1\x00")) {
		t.Errorf("body = %q", buf[5:])
	}
}

func TestEncodeSync(t *testing.T) {
	buf := EncodeSync()
	if len(buf) != 5 {
		t.Fatalf("Sync length = %d, want 5", len(buf))
	}
	if binary.BigEndian.Uint32(buf[1:5]) != 4 {
		t.Errorf("Sync length field = %d, want 4", binary.BigEndian.Uint32(buf[1:5]))
	}
}
