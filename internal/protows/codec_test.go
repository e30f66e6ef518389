// File: internal/protows/codec_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protows

import "testing"

func strp(s string) *string { return &s }

func TestRoundTripCall(t *testing.T) {
	creds := "user:alice"
	want := Call{CallID: 5, Verb: "ping", SessionUUID: "abc-123", JSONArgs: `{"x":1}`, UserCreds: &creds}
	raw, err := Encode(want)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, n, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n != len(raw) {
		t.Fatalf("consumed %d, want %d", n, len(raw))
	}
	c, ok := got.(Call)
	if !ok {
		t.Fatalf("got %T, want Call", got)
	}
	if c.CallID != want.CallID || c.Verb != want.Verb || c.SessionUUID != want.SessionUUID || c.JSONArgs != want.JSONArgs {
		t.Fatalf("round-trip mismatch: got %+v want %+v", c, want)
	}
	if c.UserCreds == nil || *c.UserCreds != creds {
		t.Fatalf("user creds mismatch: got %v", c.UserCreds)
	}
}

func TestRoundTripCallNilCreds(t *testing.T) {
	want := Call{CallID: 1, Verb: "v", SessionUUID: "s", JSONArgs: "{}"}
	raw, err := Encode(want)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, _, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	c := got.(Call)
	if c.UserCreds != nil {
		t.Fatalf("expected nil creds, got %v", *c.UserCreds)
	}
}

func TestRoundTripReply(t *testing.T) {
	want := Reply{CallID: 7, JSONResult: `{"ok":true}`}
	raw, _ := Encode(want)
	got, _, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	r := got.(Reply)
	if r.CallID != 7 || r.Error != nil || r.Info != nil || r.JSONResult != want.JSONResult {
		t.Fatalf("mismatch: %+v", r)
	}
}

func TestRoundTripAllOpcodes(t *testing.T) {
	msgs := []any{
		Call{CallID: 1, Verb: "v", SessionUUID: "s", JSONArgs: "{}"},
		Reply{CallID: 1, JSONResult: "{}"},
		EventBroadcast{EventName: "x", JSONData: "{}"},
		EventCreate{EventID: 1, EventName: "x"},
		EventRemove{EventID: 1, EventName: "x"},
		EventPush{EventID: 1, EventName: "x", JSONData: `{"v":1}`},
		EventSubscribe{CallID: 5, EventID: 11, EventName: "x"},
		EventUnsubscribe{CallID: 5, EventID: 11, EventName: "x"},
		Describe{DescID: 9},
		DescriptionReply{DescID: 9, JSONDescription: "{}"},
	}
	for _, m := range msgs {
		raw, err := Encode(m)
		if err != nil {
			t.Fatalf("encode %T: %v", m, err)
		}
		got, n, err := Decode(raw)
		if err != nil {
			t.Fatalf("decode %T: %v", m, err)
		}
		if n != len(raw) {
			t.Fatalf("%T: consumed %d want %d", m, n, len(raw))
		}
		if got != m {
			t.Fatalf("%T round-trip mismatch: got %+v want %+v", m, got, m)
		}
	}
}

func TestDecodeShortFrame(t *testing.T) {
	full, _ := Encode(Call{CallID: 1, Verb: "v", SessionUUID: "s", JSONArgs: "{}"})
	for i := 0; i < len(full); i++ {
		_, _, err := Decode(full[:i])
		if err != ErrShortFrame {
			t.Fatalf("at prefix %d: expected ErrShortFrame, got %v", i, err)
		}
	}
}

func TestDecodeUnknownOpcode(t *testing.T) {
	_, _, err := Decode([]byte{'?', 0, 0, 0, 0})
	if err != ErrUnknownOpcode {
		t.Fatalf("expected ErrUnknownOpcode, got %v", err)
	}
}

func TestDecodeMalformedStringMissingNUL(t *testing.T) {
	bad := []byte{byte(OpEventBroadcast)}
	bad = appendU32(bad, 2)      // length 2
	bad = append(bad, 'x', 'y') // last byte not 0
	_, _, err := Decode(bad)
	if err != ErrMalformed {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}
