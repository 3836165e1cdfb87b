package message

import (
	"strings"
	"testing"
)

func TestParseRequestRoundTrip(t *testing.T) {
	req := &Message{
		Type:      TypeRequest,
		Target:    TargetSession,
		Operation: "startSession",
		RequestID: "1",
		DataType:  DataJSON,
		Data:      []byte(`{"hostName":"localhost"}`),
	}
	raw := Serialize(req, 0)
	parsed, err := Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.Operation != req.Operation || parsed.RequestID != req.RequestID {
		t.Fatalf("round trip mismatch: %+v", parsed)
	}
	if string(parsed.Data) != string(req.Data) {
		t.Fatalf("data mismatch: got %q want %q", parsed.Data, req.Data)
	}
}

func TestParseResponseRoundTrip(t *testing.T) {
	resp := &Message{
		Type:        TypeResponse,
		RequestID:   "7",
		RetCode:     RetOK,
		ResultValue: 0xdeadbeef,
		DataType:    DataPlain,
		Data:        []byte("ok"),
	}
	raw := Serialize(resp, 0)
	parsed, err := Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.RetCode != RetOK || parsed.ResultValue != 0xdeadbeef {
		t.Fatalf("round trip mismatch: %+v", parsed)
	}
}

func TestParseEventRoundTrip(t *testing.T) {
	ev := &Message{
		Type:        TypeEvent,
		Target:      TargetPlainWindow,
		TargetValue: 42,
		EventName:   "destroy",
		SourceURI:   "hvml://localhost/com.example/main/",
		DataType:    DataVoid,
	}
	raw := Serialize(ev, 0)
	parsed, err := Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.EventName != "destroy" || parsed.TargetValue != 42 {
		t.Fatalf("round trip mismatch: %+v", parsed)
	}
}

func TestSerializeOversizeResponseFallsBackToInternalServerError(t *testing.T) {
	resp := &Message{
		Type:      TypeResponse,
		RequestID: "1",
		RetCode:   RetOK,
		DataType:  DataPlain,
		Data:      []byte(strings.Repeat("a", 9000)),
	}
	raw := Serialize(resp, DefaultMaxSerializedSize)
	parsed, err := Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.RetCode != RetInternalServerError {
		t.Fatalf("expected InternalServerError fallback, got %v", parsed.RetCode)
	}
	if len(parsed.Data) != 0 {
		t.Fatalf("expected empty body in fallback, got %d bytes", len(parsed.Data))
	}
}

func TestParseMalformedMissingSeparator(t *testing.T) {
	_, err := Parse([]byte("type:request\noperation:foo"))
	if err == nil {
		t.Fatalf("expected error for missing header/body separator")
	}
}

func TestParseRequestMissingRequestIDIsMalformed(t *testing.T) {
	_, err := Parse([]byte("type:request\noperation:foo\ndataLen:0\n\n"))
	if err == nil {
		t.Fatalf("expected error for missing requestId")
	}
}

func TestWantsResponse(t *testing.T) {
	m := &Message{RequestID: NoResponseRequestID}
	if m.WantsResponse() {
		t.Fatalf("requestId '-' must not want a response")
	}
	m.RequestID = "5"
	if !m.WantsResponse() {
		t.Fatalf("non '-' requestId must want a response")
	}
}
