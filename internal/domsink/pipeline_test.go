package domsink

import (
	"encoding/json"
	"testing"

	"github.com/HVML/purcmc-renderer/internal/backend"
	"github.com/HVML/purcmc-renderer/internal/message"
	"github.com/HVML/purcmc-renderer/internal/model"
	"github.com/HVML/purcmc-renderer/internal/session"
)

func TestHandleReplyResolvesPendingSlot(t *testing.T) {
	fake := backend.NewFake()
	var resolved *message.Message
	p := &Pipeline{
		Subprocess: fake,
		OnResolved: func(sess *session.Session, resp *message.Message) { resolved = resp },
	}

	sess := session.New(1, "localhost", "com.example", "main")
	sess.PendResponse("req-1", session.PendingResponse{ResultValue: 99})
	p.Subscribe(5, sess, sess.URIPrefix(), 42)

	fake.DeliverReply(5, backend.RenderReply{RequestID: "req-1", State: "Ok", Data: json.RawMessage(`{"x":1}`)})

	if resolved == nil {
		t.Fatalf("expected a resolved response")
	}
	if resolved.RetCode != message.RetOK || resolved.ResultValue != 99 {
		t.Fatalf("unexpected resolved response: %+v", resolved)
	}
	if resolved.DataType != message.DataJSON || string(resolved.Data) != `{"x":1}` {
		t.Fatalf("unexpected response data: %+v", resolved)
	}
}

func TestHandleReplyDropsUnknownRequestID(t *testing.T) {
	fake := backend.NewFake()
	called := false
	p := &Pipeline{
		Subprocess: fake,
		OnResolved: func(sess *session.Session, resp *message.Message) { called = true },
	}
	sess := session.New(1, "localhost", "com.example", "main")
	p.Subscribe(5, sess, sess.URIPrefix(), 42)
	fake.DeliverReply(5, backend.RenderReply{RequestID: "unknown", State: "Ok"})
	if called {
		t.Fatalf("expected no resolution for an unknown request id")
	}
}

func TestHandleReplyDroppedAfterSessionClose(t *testing.T) {
	fake := backend.NewFake()
	called := false
	p := &Pipeline{
		Subprocess: fake,
		OnResolved: func(sess *session.Session, resp *message.Message) { called = true },
	}
	sess := session.New(1, "localhost", "com.example", "main")
	sess.PendResponse("req-1", session.PendingResponse{})
	p.Subscribe(5, sess, sess.URIPrefix(), 42)
	sess.Close()
	fake.DeliverReply(5, backend.RenderReply{RequestID: "req-1", State: "Ok"})
	if called {
		t.Fatalf("expected reply to a closed session to be dropped")
	}
}

func TestHandleEventPromotesToEventEnvelope(t *testing.T) {
	fake := backend.NewFake()
	var gotSess *session.Session
	var gotContainer model.Handle
	var gotURI string
	var gotEv EventEnvelope
	p := &Pipeline{
		Subprocess: fake,
		OnEvent: func(sess *session.Session, container model.Handle, sourceURI string, ev EventEnvelope) {
			gotSess = sess
			gotContainer = container
			gotURI = sourceURI
			gotEv = ev
		},
	}
	sess := session.New(1, "localhost", "com.example", "main")
	p.Subscribe(5, sess, sess.URIPrefix(), 42)
	fake.DeliverEvent(5, backend.RenderEvent{Name: "click", IsHandle: true, Value: "0x10", JSONData: json.RawMessage(`{}`)})

	if gotSess != sess {
		t.Fatalf("expected the event to be routed back to the subscribing session")
	}
	if gotContainer != 42 {
		t.Fatalf("expected the event to carry the container handle bound at Subscribe time, got %v", gotContainer)
	}
	if gotURI != sess.URIPrefix() {
		t.Fatalf("unexpected source uri: %s", gotURI)
	}
	if gotEv.Name != "click" || gotEv.KindTag != "handle" || gotEv.Value != "0x10" {
		t.Fatalf("unexpected event envelope: %+v", gotEv)
	}
}

func TestUnsubscribeDropsEventRouting(t *testing.T) {
	fake := backend.NewFake()
	called := false
	p := &Pipeline{
		Subprocess: fake,
		OnEvent:    func(*session.Session, model.Handle, string, EventEnvelope) { called = true },
	}
	sess := session.New(1, "localhost", "com.example", "main")
	p.Subscribe(5, sess, sess.URIPrefix(), 42)
	p.Unsubscribe(5)
	fake.DeliverEvent(5, backend.RenderEvent{Name: "click"})
	if called {
		t.Fatalf("expected no event delivery after Unsubscribe")
	}
}
