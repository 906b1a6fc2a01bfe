package wire

import "testing"

func TestParseCommandTag(t *testing.T) {
	tests := []struct {
		tag  string
		want CommandTag
	}{
		{"SELECT 3", CommandTag{Command: "SELECT", Rows: 3}},
		{"SELECT 0", CommandTag{Command: "SELECT", Rows: 0}},
		{"INSERT 0 1", CommandTag{Command: "INSERT", Rows: 1}},
		{"UPDATE 5", CommandTag{Command: "UPDATE", Rows: 5}},
		{"DELETE 2", CommandTag{Command: "DELETE", Rows: 2}},
		{"BEGIN", CommandTag{Command: "BEGIN"}},
		{"COMMIT", CommandTag{Command: "COMMIT"}},
		{"ROLLBACK", CommandTag{Command: "ROLLBACK"}},
		{"CREATE TABLE", CommandTag{Command: "CREATE"}},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			got := ParseCommandTag(tt.tag)
			if got.Command != tt.want.Command || got.Rows != tt.want.Rows {
				t.Errorf("ParseCommandTag(%q) = %+v, want %+v", tt.tag, got, tt.want)
			}
		})
	}
}

func TestDecode_UnknownMessageType(t *testing.T) {
	msg, err := Decode(RawMessage{Type: BackendMsgType('~'), Body: []byte("junk")})
	if err != nil {
		t.Fatalf("unexpected error for unknown type: %v", err)
	}
	unk, ok := msg.(UnknownMessage)
	if !ok {
		t.Fatalf("expected UnknownMessage, got %T", msg)
	}
	if unk.Type != BackendMsgType('~') || string(unk.Raw) != "junk" {
		t.Errorf("got %+v", unk)
	}
}

func TestDecode_ErrorResponse(t *testing.T) {
	body := []byte("SERROR\x00C42P01\x00Mrelation \"t\" does not exist\x00\x00")
	msg, err := Decode(RawMessage{Type: BackendErrorResponse, Body: body})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	er, ok := msg.(ErrorResponse)
	if !ok {
		t.Fatalf("expected ErrorResponse, got %T", msg)
	}
	if er.Fields.Severity() != "ERROR" || er.Fields.Code() != "42P01" {
		t.Errorf("got %+v", er.Fields)
	}
}

func TestDecode_ReadyForQuery(t *testing.T) {
	msg, err := Decode(RawMessage{Type: BackendReadyForQuery, Body: []byte{'T'}})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	rfq := msg.(ReadyForQuery)
	if rfq.TxStatus != TxInTrans {
		t.Errorf("got %v, want TxInTrans", rfq.TxStatus)
	}
}

func TestDecode_RowDescriptionAndDataRow(t *testing.T) {
	rowDesc := []byte{0, 1}
	rowDesc = append(rowDesc, []byte("id\x00")...)
	rowDesc = append(rowDesc, 0, 0, 0, 100, 0, 1, 0, 0, 0, 23, 0, 4, 0, 0, 0, 0, 0, 0)

	msg, err := Decode(RawMessage{Type: BackendRowDescription, Body: rowDesc})
	if err != nil {
		t.Fatalf("Decode RowDescription: %v", err)
	}
	rd := msg.(RowDescription)
	if len(rd.Fields) != 1 || rd.Fields[0].Name != "id" || rd.Fields[0].TypeOID != 23 {
		t.Fatalf("got %+v", rd.Fields)
	}

	dataRow := []byte{0, 1, 0, 0, 0, 1, '5'}
	msg2, err := Decode(RawMessage{Type: BackendDataRow, Body: dataRow})
	if err != nil {
		t.Fatalf("Decode DataRow: %v", err)
	}
	dr := msg2.(DataRow)
	if len(dr.Values) != 1 || string(dr.Values[0]) != "5" {
		t.Fatalf("got %+v", dr.Values)
	}

	nullRow := []byte{0, 1, 0xff, 0xff, 0xff, 0xff}
	msg3, _ := Decode(RawMessage{Type: BackendDataRow, Body: nullRow})
	dr3 := msg3.(DataRow)
	if dr3.Values[0] != nil {
		t.Fatalf("expected nil for -1 length column, got %v", dr3.Values[0])
	}
}
