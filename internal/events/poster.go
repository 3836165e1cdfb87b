package events

import (
	"encoding/json"

	"github.com/HVML/purcmc-renderer/internal/domsink"
	"github.com/HVML/purcmc-renderer/internal/message"
)

// Sink delivers a built Event message to its originating endpoint, through
// the same outbound path the response writer uses, per spec.md §4.I.
type Sink func(ev *message.Message) error

// Destroy builds the `destroy` event sent when a backend-reported web view
// close tears down its containing plain window or widget, per spec.md
// §4.G "Destruction cascade".
func Destroy(target message.Target, targetValue uint64, sourceURI string) *message.Message {
	return &message.Message{Type: message.TypeEvent, EventName: "destroy", Target: target, TargetValue: targetValue, SourceURI: sourceURI}
}

// PageActivated builds the `pageActivated` event posted when the backend
// reports a page gained focus, per spec.md §4.I.
func PageActivated(target message.Target, targetValue uint64, sourceURI string) *message.Message {
	return &message.Message{Type: message.TypeEvent, EventName: "pageActivated", Target: target, TargetValue: targetValue, SourceURI: sourceURI}
}

// PageDeactivated is PageActivated's counterpart for focus loss.
func PageDeactivated(target message.Target, targetValue uint64, sourceURI string) *message.Message {
	return &message.Message{Type: message.TypeEvent, EventName: "pageDeactivated", Target: target, TargetValue: targetValue, SourceURI: sourceURI}
}

// SuppressPage builds the `suppressPage` event sent to an endpoint whose
// coroutine was pushed off the top of a page-owner stack by another
// session, per spec.md §4.G.
func SuppressPage(target message.Target, targetValue uint64, sourceURI string) *message.Message {
	return &message.Message{Type: message.TypeEvent, EventName: "suppressPage", Target: target, TargetValue: targetValue, SourceURI: sourceURI}
}

// ReloadPage is SuppressPage's counterpart delivered to the endpoint whose
// coroutine became the new top owner.
func ReloadPage(target message.Target, targetValue uint64, sourceURI string) *message.Message {
	return &message.Message{Type: message.TypeEvent, EventName: "reloadPage", Target: target, TargetValue: targetValue, SourceURI: sourceURI}
}

// DOMEvent promotes an unsolicited DOM event surfaced by the rendering
// subprocess (internal/domsink) into a protocol Event targeting the
// originating DOM, per spec.md §4.H/§4.I.
func DOMEvent(targetValue uint64, sourceURI string, env domsink.EventEnvelope) *message.Message {
	elKind := message.ElementID
	if env.KindTag == "handle" {
		elKind = message.ElementHandle
	}
	msg := &message.Message{
		Type:        message.TypeEvent,
		EventName:   env.Name,
		Target:      message.TargetDOM,
		TargetValue: targetValue,
		SourceURI:   sourceURI,
		Element:     message.Element{Kind: elKind, Value: env.Value},
	}
	if len(env.JSONData) > 0 && !isEmptyJSON(env.JSONData) {
		msg.DataType = message.DataJSON
		msg.Data = append([]byte(nil), env.JSONData...)
	}
	return msg
}

func isEmptyJSON(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
