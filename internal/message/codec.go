package message

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// DefaultMaxSerializedSize is the default packet buffer cap for a
// serialized response, per spec.md §4.C.
const DefaultMaxSerializedSize = 8 * 1024

// ErrMalformed reports that a message body could not be parsed into the
// PurCMC wire format (ret code UnprocessablePacket).
var ErrMalformed = fmt.Errorf("message: malformed wire body")

// Parse decodes one PurCMC wire message body (header lines, blank line,
// then exactly dataLen body bytes) into a Message.
func Parse(raw []byte) (*Message, error) {
	headerEnd := findHeaderEnd(raw)
	if headerEnd < 0 {
		return nil, fmt.Errorf("%w: no header/body separator", ErrMalformed)
	}
	headerBlock := raw[:headerEnd]
	fields, err := parseHeaderFields(headerBlock)
	if err != nil {
		return nil, err
	}

	bodyStart := headerEnd
	dataLen, err := fields.getInt("datalen", 0)
	if err != nil {
		return nil, err
	}
	if bodyStart+dataLen > len(raw) {
		return nil, fmt.Errorf("%w: dataLen %d exceeds remaining body", ErrMalformed, dataLen)
	}
	body := raw[bodyStart : bodyStart+dataLen]

	typ := Type(strings.ToLower(fields.get("type")))
	msg := &Message{Type: typ, Data: body}

	msg.DataType = DataType(strings.ToLower(fields.get("datatype")))

	switch typ {
	case TypeRequest:
		msg.Operation = fields.get("operation")
		msg.RequestID = fields.get("requestid")
		msg.Target = Target(strings.ToLower(fields.get("target")))
		if v, err := fields.getHex("targetvalue", 0); err == nil {
			msg.TargetValue = v
		}
		msg.Element.Kind = ElementKind(strings.ToLower(fields.get("elementtype")))
		msg.Element.Value = fields.get("element")
		msg.Property = fields.get("property")
		if msg.Operation == "" || msg.RequestID == "" {
			return nil, fmt.Errorf("%w: request missing operation/requestId", ErrMalformed)
		}
	case TypeResponse:
		msg.RequestID = fields.get("requestid")
		if v, err := fields.getInt("retcode", -1); err == nil && v >= 0 {
			msg.RetCode = RetCode(v)
		} else {
			return nil, fmt.Errorf("%w: response missing retCode", ErrMalformed)
		}
		if v, err := fields.getHex("resultvalue", 0); err == nil {
			msg.ResultValue = v
		}
		if msg.RequestID == "" {
			return nil, fmt.Errorf("%w: response missing requestId", ErrMalformed)
		}
	case TypeEvent:
		msg.EventName = fields.get("eventname")
		msg.SourceURI = fields.get("sourceuri")
		msg.Target = Target(strings.ToLower(fields.get("target")))
		if v, err := fields.getHex("targetvalue", 0); err == nil {
			msg.TargetValue = v
		}
		msg.Element.Kind = ElementKind(strings.ToLower(fields.get("elementtype")))
		msg.Element.Value = fields.get("element")
		msg.Property = fields.get("property")
		if msg.EventName == "" {
			return nil, fmt.Errorf("%w: event missing eventName", ErrMalformed)
		}
	default:
		return nil, fmt.Errorf("%w: unknown message type %q", ErrMalformed, fields.get("type"))
	}

	return msg, nil
}

// Serialize encodes msg into the PurCMC wire format, capping the total
// serialized size at maxSize bytes. If the natural encoding would exceed
// maxSize, per spec.md §4.C the caller receives an InternalServerError
// response with no body instead.
func Serialize(msg *Message, maxSize int) []byte {
	if maxSize <= 0 {
		maxSize = DefaultMaxSerializedSize
	}
	out := encode(msg)
	if len(out) <= maxSize {
		return out
	}
	if msg.Type == TypeResponse {
		fallback := &Message{
			Type:      TypeResponse,
			RequestID: msg.RequestID,
			RetCode:   RetInternalServerError,
			DataType:  DataVoid,
		}
		return encode(fallback)
	}
	// Requests/events with no size-limited fallback are truncated to an
	// empty-body variant; a well-behaved caller should never hit this path
	// since request/event bodies are generated internally.
	trimmed := *msg
	trimmed.Data = nil
	trimmed.DataType = DataVoid
	return encode(&trimmed)
}

func encode(msg *Message) []byte {
	var b bytes.Buffer
	writeKV(&b, "type", string(msg.Type))

	switch msg.Type {
	case TypeRequest:
		writeKV(&b, "target", string(msg.Target))
		writeKVHex(&b, "targetValue", msg.TargetValue)
		writeKV(&b, "operation", msg.Operation)
		writeKV(&b, "requestId", msg.RequestID)
		if msg.Element.Kind != "" {
			writeKV(&b, "elementType", string(msg.Element.Kind))
			writeKV(&b, "element", msg.Element.Value)
		}
		if msg.Property != "" {
			writeKV(&b, "property", msg.Property)
		}
		writeKV(&b, "dataType", string(msg.DataType))
		writeKV(&b, "dataLen", strconv.Itoa(len(msg.Data)))
	case TypeResponse:
		writeKV(&b, "requestId", msg.RequestID)
		writeKV(&b, "retCode", strconv.Itoa(int(msg.RetCode)))
		writeKVHex(&b, "resultValue", msg.ResultValue)
		writeKV(&b, "dataType", string(msg.DataType))
		writeKV(&b, "dataLen", strconv.Itoa(len(msg.Data)))
	case TypeEvent:
		writeKV(&b, "target", string(msg.Target))
		writeKVHex(&b, "targetValue", msg.TargetValue)
		writeKV(&b, "eventName", msg.EventName)
		writeKV(&b, "sourceURI", msg.SourceURI)
		if msg.Element.Kind != "" {
			writeKV(&b, "elementType", string(msg.Element.Kind))
			writeKV(&b, "element", msg.Element.Value)
		}
		if msg.Property != "" {
			writeKV(&b, "property", msg.Property)
		}
		writeKV(&b, "dataType", string(msg.DataType))
		writeKV(&b, "dataLen", strconv.Itoa(len(msg.Data)))
	}

	b.WriteString("\n")
	b.Write(msg.Data)
	return b.Bytes()
}

func writeKV(b *bytes.Buffer, key, val string) {
	b.WriteString(key)
	b.WriteString(":")
	b.WriteString(val)
	b.WriteString("\n")
}

func writeKVHex(b *bytes.Buffer, key string, v uint64) {
	writeKV(b, key, strconv.FormatUint(v, 16))
}

// findHeaderEnd locates the index immediately after the blank line that
// separates header lines from the body, accepting both "\n\n" and
// "\r\n\r\n" separators.
func findHeaderEnd(raw []byte) int {
	if i := bytes.Index(raw, []byte("\r\n\r\n")); i >= 0 {
		return i + 4
	}
	if i := bytes.Index(raw, []byte("\n\n")); i >= 0 {
		return i + 2
	}
	return -1
}

type headerFields map[string]string

func parseHeaderFields(block []byte) (headerFields, error) {
	fields := make(headerFields)
	lines := strings.Split(strings.ReplaceAll(string(block), "\r\n", "\n"), "\n")
	for _, line := range lines {
		if line == "" {
			continue
		}
		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			return nil, fmt.Errorf("%w: malformed header line %q", ErrMalformed, line)
		}
		key := strings.ToLower(strings.TrimSpace(line[:idx]))
		val := strings.TrimSpace(line[idx+1:])
		fields[key] = val
	}
	return fields, nil
}

func (f headerFields) get(key string) string {
	return f[strings.ToLower(key)]
}

func (f headerFields) getInt(key string, def int) (int, error) {
	v, ok := f[strings.ToLower(key)]
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: bad integer header %s=%q", ErrMalformed, key, v)
	}
	return n, nil
}

func (f headerFields) getHex(key string, def uint64) (uint64, error) {
	v, ok := f[strings.ToLower(key)]
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.ParseUint(v, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad hex header %s=%q", ErrMalformed, key, v)
	}
	return n, nil
}
