package frame

import (
	"bytes"
	"strings"
	"testing"
)

func TestUnixRoundTripSingleFrame(t *testing.T) {
	cases := []struct {
		name   string
		body   []byte
		isText bool
	}{
		{"empty binary", []byte{}, false},
		{"small binary", []byte{1, 2, 3, 4}, false},
		{"text", []byte("hello purcmc"), true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var wire bytes.Buffer
			if err := EncodeUnixMessage(&wire, c.body, c.isText); err != nil {
				t.Fatalf("encode: %v", err)
			}
			dec := NewUnixDecoder(&wire, &bytes.Buffer{}, 1<<20)
			msg, ctrl, pong, err := dec.Next()
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if ctrl != UnixControlNone || pong {
				t.Fatalf("unexpected control/pong")
			}
			got := msg.Body
			if c.isText {
				if len(got) == 0 || got[len(got)-1] != 0 {
					t.Fatalf("text body not null-terminated: %v", got)
				}
				got = got[:len(got)-1]
			}
			if !bytes.Equal(got, c.body) {
				t.Fatalf("body mismatch: got %v want %v", got, c.body)
			}
			if msg.IsText != c.isText {
				t.Fatalf("isText mismatch")
			}
		})
	}
}

func TestUnixFragmentedAssembly(t *testing.T) {
	var wire bytes.Buffer
	total := []byte(strings.Repeat("x", 30))
	// First frame: fragmented declares total size; this frame carries 10 bytes.
	if err := writeUnixHeader(&wire, UnixHeader{Op: OpBin, Fragmented: uint8(len(total)), SzPayload: 10}); err != nil {
		t.Fatal(err)
	}
	wire.Write(total[:10])
	// Continuation carrying next 10 bytes.
	if err := writeUnixHeader(&wire, UnixHeader{Op: OpContinuation, SzPayload: 10}); err != nil {
		t.Fatal(err)
	}
	wire.Write(total[10:20])
	// End carrying final 10 bytes.
	if err := writeUnixHeader(&wire, UnixHeader{Op: OpEnd, SzPayload: 10}); err != nil {
		t.Fatal(err)
	}
	wire.Write(total[20:30])

	dec := NewUnixDecoder(&wire, &bytes.Buffer{}, 1<<20)
	msg, ctrl, _, err := dec.Next()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ctrl != UnixControlNone {
		t.Fatalf("unexpected control")
	}
	if !bytes.Equal(msg.Body, total) {
		t.Fatalf("assembled body mismatch: got %q want %q", msg.Body, total)
	}
}

func TestUnixOversizeCap(t *testing.T) {
	var wire bytes.Buffer
	if err := writeUnixHeader(&wire, UnixHeader{Op: OpBin, SzPayload: 101}); err != nil {
		t.Fatal(err)
	}
	wire.Write(make([]byte, 101))

	dec := NewUnixDecoder(&wire, &bytes.Buffer{}, 100)
	_, _, _, err := dec.Next()
	if err == nil {
		t.Fatalf("expected PacketTooLarge error")
	}
}

func TestUnixCapBoundaryExact(t *testing.T) {
	var wire bytes.Buffer
	if err := writeUnixHeader(&wire, UnixHeader{Op: OpBin, SzPayload: 100}); err != nil {
		t.Fatal(err)
	}
	wire.Write(make([]byte, 100))

	dec := NewUnixDecoder(&wire, &bytes.Buffer{}, 100)
	msg, _, _, err := dec.Next()
	if err != nil {
		t.Fatalf("expected exact-cap message to succeed: %v", err)
	}
	if len(msg.Body) != 100 {
		t.Fatalf("expected 100-byte body, got %d", len(msg.Body))
	}
}

func TestUnixPingAutoReplyPong(t *testing.T) {
	var wire bytes.Buffer
	if err := writeUnixHeader(&wire, UnixHeader{Op: OpPing}); err != nil {
		t.Fatal(err)
	}
	if err := EncodeUnixMessage(&wire, []byte("after ping"), true); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	dec := NewUnixDecoder(&wire, &out, 1<<20)
	msg, _, _, err := dec.Next()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(msg.Body[:len(msg.Body)-1]) != "after ping" {
		t.Fatalf("expected message after ping, got %q", msg.Body)
	}
	replied, err := readUnixHeader(&out)
	if err != nil {
		t.Fatalf("expected pong reply written: %v", err)
	}
	if replied.Op != OpPong {
		t.Fatalf("expected Pong auto-reply, got %v", replied.Op)
	}
}

func TestUnixContinuationWithoutInProgressIsProtocolError(t *testing.T) {
	var wire bytes.Buffer
	if err := writeUnixHeader(&wire, UnixHeader{Op: OpContinuation, SzPayload: 0}); err != nil {
		t.Fatal(err)
	}
	dec := NewUnixDecoder(&wire, &bytes.Buffer{}, 1<<20)
	_, _, _, err := dec.Next()
	if err == nil {
		t.Fatalf("expected protocol error")
	}
}
