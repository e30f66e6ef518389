// File: internal/protows/codec.go
// Package protows
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Wire encoding for the ten PROTO-WS opcodes (spec.md §3.3): a 1-byte
// opcode followed by little-endian u32 fields and length-prefixed,
// NUL-terminated strings. Grounded on protocol/frame_codec.go's
// length-delimited decode-or-wait shape, adapted from WebSocket framing
// (big-endian, masked) to PROTO-WS's own little-endian, unmasked layout.

package protows

import (
	"encoding/binary"
	"errors"
)

// Opcode identifies a PROTO-WS message type.
type Opcode byte

const (
	OpCall               Opcode = 'C'
	OpReply              Opcode = 'Y'
	OpEventBroadcast     Opcode = '*'
	OpEventCreate        Opcode = '+'
	OpEventRemove        Opcode = '-'
	OpEventPush          Opcode = '!'
	OpEventSubscribe     Opcode = 'S'
	OpEventUnsubscribe   Opcode = 'U'
	OpDescribe           Opcode = 'D'
	OpDescriptionReply   Opcode = 'd'
)

// ErrShortFrame is returned by Decode when raw does not yet contain a
// complete frame; per spec.md §4.3 this is not an error condition, the
// caller simply waits for more bytes.
var ErrShortFrame = errors.New("protows: short frame")

// ErrMalformed is returned when a length-prefixed field's trailing byte
// is not the required NUL terminator, or an unknown field layout is hit.
var ErrMalformed = errors.New("protows: malformed field")

// ErrUnknownOpcode is returned by Decode for a leading byte outside the
// ten-entry table. Per spec.md §4.3, endpoints treat unknown opcodes as
// a soft error: the frame is discarded and the connection kept (see
// Endpoint.handleFrame), not this decode step in isolation.
var ErrUnknownOpcode = errors.New("protows: unknown opcode")

// Call is a C→S request (spec.md §3.3).
type Call struct {
	CallID      uint32
	Verb        string
	SessionUUID string
	JSONArgs    string
	UserCreds   *string
}

// Reply is an S→C response correlated by CallID.
type Reply struct {
	CallID     uint32
	Error      *string
	Info       *string
	JSONResult string
}

// EventBroadcast is an unsubscribed-delivery S→C push.
type EventBroadcast struct {
	EventName string
	JSONData  string
}

// EventCreate announces a new named event with its id.
type EventCreate struct {
	EventID   uint32
	EventName string
}

// EventRemove announces an event's retirement.
type EventRemove struct {
	EventID   uint32
	EventName string
}

// EventPush delivers data for a subscribed event.
type EventPush struct {
	EventID   uint32
	EventName string
	JSONData  string
}

// EventSubscribe binds an event to an in-flight call (spec.md §4.3).
type EventSubscribe struct {
	CallID    uint32
	EventID   uint32
	EventName string
}

// EventUnsubscribe reverses EventSubscribe.
type EventUnsubscribe struct {
	CallID    uint32
	EventID   uint32
	EventName string
}

// Describe is a C→S self-description request.
type Describe struct {
	DescID uint32
}

// DescriptionReply answers a Describe, correlated by DescID.
type DescriptionReply struct {
	DescID         uint32
	JSONDescription string
}

// Encode serializes msg into a fresh byte slice. msg must be one of the
// ten message types declared above.
func Encode(msg any) ([]byte, error) {
	var buf []byte
	switch m := msg.(type) {
	case Call:
		buf = append(buf, byte(OpCall))
		buf = appendU32(buf, m.CallID)
		buf = appendString(buf, m.Verb)
		buf = appendString(buf, m.SessionUUID)
		buf = appendString(buf, m.JSONArgs)
		buf = appendNullString(buf, m.UserCreds)
	case Reply:
		buf = append(buf, byte(OpReply))
		buf = appendU32(buf, m.CallID)
		buf = appendNullString(buf, m.Error)
		buf = appendNullString(buf, m.Info)
		buf = appendString(buf, m.JSONResult)
	case EventBroadcast:
		buf = append(buf, byte(OpEventBroadcast))
		buf = appendString(buf, m.EventName)
		buf = appendString(buf, m.JSONData)
	case EventCreate:
		buf = append(buf, byte(OpEventCreate))
		buf = appendU32(buf, m.EventID)
		buf = appendString(buf, m.EventName)
	case EventRemove:
		buf = append(buf, byte(OpEventRemove))
		buf = appendU32(buf, m.EventID)
		buf = appendString(buf, m.EventName)
	case EventPush:
		buf = append(buf, byte(OpEventPush))
		buf = appendU32(buf, m.EventID)
		buf = appendString(buf, m.EventName)
		buf = appendString(buf, m.JSONData)
	case EventSubscribe:
		buf = append(buf, byte(OpEventSubscribe))
		buf = appendU32(buf, m.CallID)
		buf = appendU32(buf, m.EventID)
		buf = appendString(buf, m.EventName)
	case EventUnsubscribe:
		buf = append(buf, byte(OpEventUnsubscribe))
		buf = appendU32(buf, m.CallID)
		buf = appendU32(buf, m.EventID)
		buf = appendString(buf, m.EventName)
	case Describe:
		buf = append(buf, byte(OpDescribe))
		buf = appendU32(buf, m.DescID)
	case DescriptionReply:
		buf = append(buf, byte(OpDescriptionReply))
		buf = appendU32(buf, m.DescID)
		buf = appendString(buf, m.JSONDescription)
	default:
		return nil, errors.New("protows: unsupported message type")
	}
	return buf, nil
}

// Decode parses exactly one message from raw, returning the message
// value, the number of bytes consumed, and an error. ErrShortFrame
// means "wait for more bytes"; it is not a failure.
func Decode(raw []byte) (msg any, consumed int, err error) {
	if len(raw) < 1 {
		return nil, 0, ErrShortFrame
	}
	op := Opcode(raw[0])
	off := 1

	switch op {
	case OpCall:
		callID, n, e := readU32(raw, off)
		if e != nil {
			return nil, 0, e
		}
		off += n
		verb, n, e := readString(raw, off)
		if e != nil {
			return nil, 0, e
		}
		off += n
		uuid, n, e := readString(raw, off)
		if e != nil {
			return nil, 0, e
		}
		off += n
		args, n, e := readString(raw, off)
		if e != nil {
			return nil, 0, e
		}
		off += n
		creds, n, e := readNullString(raw, off)
		if e != nil {
			return nil, 0, e
		}
		off += n
		return Call{CallID: callID, Verb: verb, SessionUUID: uuid, JSONArgs: args, UserCreds: creds}, off, nil

	case OpReply:
		callID, n, e := readU32(raw, off)
		if e != nil {
			return nil, 0, e
		}
		off += n
		errStr, n, e := readNullString(raw, off)
		if e != nil {
			return nil, 0, e
		}
		off += n
		info, n, e := readNullString(raw, off)
		if e != nil {
			return nil, 0, e
		}
		off += n
		result, n, e := readString(raw, off)
		if e != nil {
			return nil, 0, e
		}
		off += n
		return Reply{CallID: callID, Error: errStr, Info: info, JSONResult: result}, off, nil

	case OpEventBroadcast:
		name, n, e := readString(raw, off)
		if e != nil {
			return nil, 0, e
		}
		off += n
		data, n, e := readString(raw, off)
		if e != nil {
			return nil, 0, e
		}
		off += n
		return EventBroadcast{EventName: name, JSONData: data}, off, nil

	case OpEventCreate:
		id, n, e := readU32(raw, off)
		if e != nil {
			return nil, 0, e
		}
		off += n
		name, n, e := readString(raw, off)
		if e != nil {
			return nil, 0, e
		}
		off += n
		return EventCreate{EventID: id, EventName: name}, off, nil

	case OpEventRemove:
		id, n, e := readU32(raw, off)
		if e != nil {
			return nil, 0, e
		}
		off += n
		name, n, e := readString(raw, off)
		if e != nil {
			return nil, 0, e
		}
		off += n
		return EventRemove{EventID: id, EventName: name}, off, nil

	case OpEventPush:
		id, n, e := readU32(raw, off)
		if e != nil {
			return nil, 0, e
		}
		off += n
		name, n, e := readString(raw, off)
		if e != nil {
			return nil, 0, e
		}
		off += n
		data, n, e := readString(raw, off)
		if e != nil {
			return nil, 0, e
		}
		off += n
		return EventPush{EventID: id, EventName: name, JSONData: data}, off, nil

	case OpEventSubscribe:
		callID, n, e := readU32(raw, off)
		if e != nil {
			return nil, 0, e
		}
		off += n
		eventID, n, e := readU32(raw, off)
		if e != nil {
			return nil, 0, e
		}
		off += n
		name, n, e := readString(raw, off)
		if e != nil {
			return nil, 0, e
		}
		off += n
		return EventSubscribe{CallID: callID, EventID: eventID, EventName: name}, off, nil

	case OpEventUnsubscribe:
		callID, n, e := readU32(raw, off)
		if e != nil {
			return nil, 0, e
		}
		off += n
		eventID, n, e := readU32(raw, off)
		if e != nil {
			return nil, 0, e
		}
		off += n
		name, n, e := readString(raw, off)
		if e != nil {
			return nil, 0, e
		}
		off += n
		return EventUnsubscribe{CallID: callID, EventID: eventID, EventName: name}, off, nil

	case OpDescribe:
		id, n, e := readU32(raw, off)
		if e != nil {
			return nil, 0, e
		}
		off += n
		return Describe{DescID: id}, off, nil

	case OpDescriptionReply:
		id, n, e := readU32(raw, off)
		if e != nil {
			return nil, 0, e
		}
		off += n
		desc, n, e := readString(raw, off)
		if e != nil {
			return nil, 0, e
		}
		off += n
		return DescriptionReply{DescID: id, JSONDescription: desc}, off, nil

	default:
		return nil, 0, ErrUnknownOpcode
	}
}

func appendU32(dst []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(dst, b[:]...)
}

// appendString encodes a required string: u32 length-including-NUL,
// then the bytes, then a trailing 0x00.
func appendString(dst []byte, s string) []byte {
	dst = appendU32(dst, uint32(len(s)+1))
	dst = append(dst, s...)
	return append(dst, 0)
}

// appendNullString encodes an optional string; nil serializes as a bare
// zero length with no trailing bytes.
func appendNullString(dst []byte, s *string) []byte {
	if s == nil {
		return appendU32(dst, 0)
	}
	return appendString(dst, *s)
}

func readU32(raw []byte, off int) (uint32, int, error) {
	if len(raw) < off+4 {
		return 0, 0, ErrShortFrame
	}
	return binary.LittleEndian.Uint32(raw[off : off+4]), 4, nil
}

// readString reads a required string field: u32 length (>=1), then
// length bytes whose last byte must be 0x00.
func readString(raw []byte, off int) (string, int, error) {
	length, n, err := readU32(raw, off)
	if err != nil {
		return "", 0, err
	}
	if length < 1 {
		return "", 0, ErrMalformed
	}
	start := off + n
	end := start + int(length)
	if len(raw) < end {
		return "", 0, ErrShortFrame
	}
	if raw[end-1] != 0 {
		return "", 0, ErrMalformed
	}
	return string(raw[start : end-1]), n + int(length), nil
}

// readNullString reads an optional string field: zero length means nil.
func readNullString(raw []byte, off int) (*string, int, error) {
	length, n, err := readU32(raw, off)
	if err != nil {
		return nil, 0, err
	}
	if length == 0 {
		return nil, n, nil
	}
	start := off + n
	end := start + int(length)
	if len(raw) < end {
		return nil, 0, ErrShortFrame
	}
	if raw[end-1] != 0 {
		return nil, 0, ErrMalformed
	}
	s := string(raw[start : end-1])
	return &s, n + int(length), nil
}
