// Unix-socket transport framing: a fixed 12-byte header followed by a
// payload, with multi-frame fragmentation for packets larger than a single
// frame. Grounded on momentics-hioload-ws/protocol/frame_codec.go's
// decode/encode shape and original_source/source/bin/server/unixsocket.c's
// header layout and PING/PONG auto-reply behavior.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// UnixOp identifies the purpose of a Unix-socket frame header.
type UnixOp uint8

const (
	OpContinuation UnixOp = iota
	OpText
	OpBin
	OpEnd
	OpClose
	OpPing
	OpPong
)

func (o UnixOp) String() string {
	switch o {
	case OpContinuation:
		return "continuation"
	case OpText:
		return "text"
	case OpBin:
		return "bin"
	case OpEnd:
		return "end"
	case OpClose:
		return "close"
	case OpPing:
		return "ping"
	case OpPong:
		return "pong"
	default:
		return fmt.Sprintf("unix-op(%d)", uint8(o))
	}
}

// UnixHeaderSize is the fixed size, in bytes, of a Unix-socket frame header.
const UnixHeaderSize = 12

// UnixHeader is the 12-byte frame header used on the Unix-domain transport.
// SzPayload is encoded little-endian per SPEC_FULL.md's resolution of the
// endianness open question.
type UnixHeader struct {
	Op         UnixOp
	Fragmented uint8
	Padding    uint16
	SzPayload  uint32
}

// ErrProtocol reports a violation of the Unix frame state machine, e.g. a
// Continuation/End frame arriving with no packet in progress.
var ErrProtocol = errors.New("frame: protocol violation")

// ErrPacketTooLarge reports that a declared (or assembled) payload size
// exceeds the configured in-memory cap.
var ErrPacketTooLarge = errors.New("frame: packet too large")

// UnixControlKind enumerates the control signals a Unix decoder can surface.
type UnixControlKind int

const (
	UnixControlNone UnixControlKind = iota
	UnixControlClose
)

// UnixMessage is one fully-assembled logical message body.
type UnixMessage struct {
	Body   []byte
	IsText bool
}

// UnixDecoder implements the Unix-socket frame state machine described in
// spec.md §4.A: Await-header / Await-payload, with fragmentation support and
// automatic Ping→Pong replies.
type UnixDecoder struct {
	r               io.Reader
	w               io.Writer // used only to auto-reply Pong to Ping
	maxInMemPayload int

	// assembly state
	inProgress bool
	isText     bool
	buf        []byte
	written    int
}

// NewUnixDecoder creates a decoder reading frames from r. Pong auto-replies
// to Ping frames are written to w. maxInMemPayload bounds both a single
// frame's declared payload and the total size of a fragmented packet.
func NewUnixDecoder(r io.Reader, w io.Writer, maxInMemPayload int) *UnixDecoder {
	return &UnixDecoder{r: r, w: w, maxInMemPayload: maxInMemPayload}
}

// readUnixHeader reads exactly one 12-byte header.
func readUnixHeader(r io.Reader) (UnixHeader, error) {
	var raw [UnixHeaderSize]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return UnixHeader{}, err
	}
	return UnixHeader{
		Op:         UnixOp(raw[0]),
		Fragmented: raw[1],
		Padding:    binary.LittleEndian.Uint16(raw[2:4]),
		SzPayload:  binary.LittleEndian.Uint32(raw[4:8]),
	}, nil
}

// Next reads and assembles the next logical unit: a complete message body,
// or a control signal (Close). Ping frames are answered with Pong and
// consumed transparently; Pong frames are consumed and reported via the
// pongSeen return so the caller can update liveness bookkeeping.
func (d *UnixDecoder) Next() (msg *UnixMessage, control UnixControlKind, pongSeen bool, err error) {
	for {
		hdr, err := readUnixHeader(d.r)
		if err != nil {
			return nil, UnixControlNone, false, err
		}

		switch hdr.Op {
		case OpPing:
			if d.w != nil {
				pong := UnixHeader{Op: OpPong}
				if werr := writeUnixHeader(d.w, pong); werr != nil {
					return nil, UnixControlNone, false, werr
				}
			}
			continue
		case OpPong:
			return nil, UnixControlNone, true, nil
		case OpClose:
			return nil, UnixControlClose, false, nil
		case OpText, OpBin:
			if d.inProgress {
				return nil, UnixControlNone, false, fmt.Errorf("%w: new Text/Bin while a packet is assembling", ErrProtocol)
			}
			total := int(hdr.SzPayload)
			if hdr.Fragmented > 0 {
				// Fragmented declares the total size of the whole packet;
				// this frame's own payload is still sz_payload bytes.
				total = int(hdr.Fragmented)
			}
			if total > d.maxInMemPayload {
				return nil, UnixControlNone, false, fmt.Errorf("%w: declared size %d exceeds cap %d", ErrPacketTooLarge, total, d.maxInMemPayload)
			}
			d.buf = make([]byte, total)
			d.written = 0
			d.isText = hdr.Op == OpText
			d.inProgress = true

			complete, err := d.readChunk(int(hdr.SzPayload))
			if err != nil {
				return nil, UnixControlNone, false, err
			}
			if hdr.Fragmented == 0 || complete {
				body := d.finishMessage()
				return &UnixMessage{Body: body, IsText: d.isText}, UnixControlNone, false, nil
			}
			continue
		case OpContinuation, OpEnd:
			if !d.inProgress {
				return nil, UnixControlNone, false, fmt.Errorf("%w: %s with no packet in progress", ErrProtocol, hdr.Op)
			}
			complete, err := d.readChunk(int(hdr.SzPayload))
			if err != nil {
				return nil, UnixControlNone, false, err
			}
			if hdr.Op == OpEnd || complete {
				body := d.finishMessage()
				return &UnixMessage{Body: body, IsText: d.isText}, UnixControlNone, false, nil
			}
			continue
		default:
			return nil, UnixControlNone, false, fmt.Errorf("%w: unknown op %d", ErrProtocol, hdr.Op)
		}
	}
}

// readChunk reads n bytes of the current chunk into the assembly buffer and
// reports whether the assembly buffer is now full.
func (d *UnixDecoder) readChunk(n int) (complete bool, err error) {
	if d.written+n > len(d.buf) {
		return false, fmt.Errorf("%w: chunk overruns declared total", ErrPacketTooLarge)
	}
	if n > 0 {
		if _, err := io.ReadFull(d.r, d.buf[d.written:d.written+n]); err != nil {
			return false, err
		}
		d.written += n
	}
	return d.written == len(d.buf), nil
}

// finishMessage resets assembly state and returns the assembled,
// null-terminated (for text) body.
func (d *UnixDecoder) finishMessage() []byte {
	body := d.buf
	if d.isText {
		body = append(body, 0)
	}
	d.buf = nil
	d.written = 0
	d.inProgress = false
	return body
}

func writeUnixHeader(w io.Writer, h UnixHeader) error {
	var raw [UnixHeaderSize]byte
	raw[0] = byte(h.Op)
	raw[1] = h.Fragmented
	binary.LittleEndian.PutUint16(raw[2:4], h.Padding)
	binary.LittleEndian.PutUint32(raw[4:8], h.SzPayload)
	_, err := w.Write(raw[:])
	return err
}

// EncodeUnixMessage serializes a single-frame (non-fragmented) Unix-socket
// message. This package has no fragmenting encoder: the whole body is
// always written as one frame.
func EncodeUnixMessage(w io.Writer, body []byte, isText bool) error {
	op := OpBin
	if isText {
		op = OpText
	}
	if err := writeUnixHeader(w, UnixHeader{Op: op, SzPayload: uint32(len(body))}); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

// EncodeUnixControl writes a zero-payload control frame (Ping/Pong/Close).
func EncodeUnixControl(w io.Writer, op UnixOp) error {
	return writeUnixHeader(w, UnixHeader{Op: op})
}
