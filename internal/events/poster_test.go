package events

import (
	"encoding/json"
	"testing"

	"github.com/HVML/purcmc-renderer/internal/domsink"
	"github.com/HVML/purcmc-renderer/internal/message"
)

func TestDestroyEventShape(t *testing.T) {
	ev := Destroy(message.TargetPlainWindow, 42, "hvml://localhost/com.example/main/")
	if ev.Type != message.TypeEvent || ev.EventName != "destroy" || ev.TargetValue != 42 {
		t.Fatalf("unexpected destroy event: %+v", ev)
	}
	if ev.RequestID != "" {
		t.Fatalf("events carry no requestId, got %q", ev.RequestID)
	}
}

func TestDOMEventTranslatesHandleKind(t *testing.T) {
	env := domsink.EventEnvelope{Name: "click", KindTag: "handle", Value: "0x2a", JSONData: json.RawMessage(`{"x":1}`)}
	ev := DOMEvent(7, "hvml://localhost/com.example/main/", env)
	if ev.EventName != "click" || ev.Element.Kind != message.ElementHandle || ev.Element.Value != "0x2a" {
		t.Fatalf("unexpected DOM event: %+v", ev)
	}
	if ev.DataType != message.DataJSON || string(ev.Data) != `{"x":1}` {
		t.Fatalf("unexpected DOM event data: %+v", ev)
	}
}

func TestDOMEventOmitsEmptyData(t *testing.T) {
	env := domsink.EventEnvelope{Name: "blur", KindTag: "id", Value: "foo", JSONData: json.RawMessage(`null`)}
	ev := DOMEvent(7, "hvml://localhost/com.example/main/", env)
	if ev.DataType != "" || ev.Data != nil {
		t.Fatalf("expected no data for a null JSON payload, got %+v", ev)
	}
}
