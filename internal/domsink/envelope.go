package domsink

import "encoding/json"

// MutationEnvelope is the JSON page-message shape for
// append/prepend/insertAfter/insertBefore/displace/clear/erase/update, per
// spec.md §4.H.
type MutationEnvelope struct {
	Operation   string `json:"operation"`
	RequestID   string `json:"requestId"`
	ElementType string `json:"elementType,omitempty"`
	Element     string `json:"element,omitempty"`
	Property    string `json:"property,omitempty"`
	DataType    string `json:"dataType,omitempty"`
	Data        string `json:"data,omitempty"`
}

// MethodEnvelope is the JSON page-message shape for callMethod against a
// DOM target, per spec.md §4.H.
type MethodEnvelope struct {
	Operation string          `json:"operation"`
	RequestID string          `json:"requestId"`
	Element   string          `json:"element,omitempty"`
	Method    string          `json:"method"`
	Arg       json.RawMessage `json:"arg,omitempty"`
}

// PropertyEnvelope is the JSON page-message shape for getProperty/
// setProperty, per spec.md §4.H.
type PropertyEnvelope struct {
	Operation string          `json:"operation"`
	RequestID string          `json:"requestId"`
	Element   string          `json:"element,omitempty"`
	Property  string          `json:"property"`
	Value     json.RawMessage `json:"value,omitempty"`
}

// ReplyEnvelope is the page-ready reply shape, per spec.md §4.H step 1.
type ReplyEnvelope struct {
	RequestID string          `json:"requestId"`
	State     string          `json:"state"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// EventEnvelope is the unsolicited "event" message shape: a 4-tuple
// (name, "id"|"handle", value, json data), per spec.md §4.H.
type EventEnvelope struct {
	Name     string
	KindTag  string // "id" or "handle"
	Value    string
	JSONData json.RawMessage
}

// UnmarshalEventTuple decodes the wire string[4] tuple form.
func UnmarshalEventTuple(raw []byte) (EventEnvelope, error) {
	var tuple [4]string
	if err := json.Unmarshal(raw, &tuple); err != nil {
		return EventEnvelope{}, err
	}
	return EventEnvelope{Name: tuple[0], KindTag: tuple[1], Value: tuple[2], JSONData: json.RawMessage(tuple[3])}, nil
}
