package wire

import (
	"bytes"
	"encoding/binary"
	"math"
	"strings"
	"testing"
)

func mustEncode(t *testing.T, e Envelope) []byte {
	t.Helper()
	b, err := Encode(e)
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	return b
}

func mustDecode(t *testing.T, b []byte) Envelope {
	t.Helper()
	e, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	return e
}

func TestEnvelopeRoundTrip(t *testing.T) {
	cases := []Envelope{
		{Kind: KindPage},
		{Kind: KindComponent, WrittenAt: 1, TTL: 0, Payload: []byte("hello")},
		{
			Kind:      KindCall,
			WrittenAt: math.MaxInt64,
			TTL:       int64(math.MaxInt32),
			Tags:      []TagGen{{Tag: "posts", Gen: 3}, {Tag: "users", Gen: math.MaxUint64}},
			Payload:   []byte{0, 1, 2, 3},
		},
	}
	for _, tc := range cases {
		got := mustDecode(t, mustEncode(t, tc))
		if got.Kind != tc.Kind || got.WrittenAt != tc.WrittenAt || got.TTL != tc.TTL {
			t.Fatalf("header mismatch: got=%+v want=%+v", got, tc)
		}
		if len(got.Tags) != len(tc.Tags) {
			t.Fatalf("tags len: got %d want %d", len(got.Tags), len(tc.Tags))
		}
		for i := range tc.Tags {
			if got.Tags[i] != tc.Tags[i] {
				t.Fatalf("tag %d: got %+v want %+v", i, got.Tags[i], tc.Tags[i])
			}
		}
		if !bytes.Equal(got.Payload, tc.Payload) {
			t.Fatalf("payload mismatch: got %x want %x", got.Payload, tc.Payload)
		}
	}
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	enc := mustEncode(t, Envelope{Kind: KindPage, Payload: []byte("x")})
	enc = append(enc, 0xDE, 0xAD)
	if _, err := Decode(enc); err == nil {
		t.Fatalf("expected error on trailing bytes")
	}
}

func TestDecodeCorruptHeadersAndLengths(t *testing.T) {
	enc := mustEncode(t, Envelope{Kind: KindCall, Tags: []TagGen{{Tag: "t", Gen: 1}}, Payload: []byte("abc")})

	badMagic := append([]byte(nil), enc...)
	badMagic[0] = 'X'
	if _, err := Decode(badMagic); err == nil {
		t.Fatalf("expected error on bad magic")
	}

	badVer := append([]byte(nil), enc...)
	badVer[4] = version + 1
	if _, err := Decode(badVer); err == nil {
		t.Fatalf("expected error on bad version")
	}

	badKind := append([]byte(nil), enc...)
	badKind[5] = 9
	if _, err := Decode(badKind); err == nil {
		t.Fatalf("expected error on bad kind")
	}

	// tag count claims more tags than present
	badCount := append([]byte(nil), enc...)
	binary.BigEndian.PutUint16(badCount[22:24], 5)
	if _, err := Decode(badCount); err == nil {
		t.Fatalf("expected error on bogus tag count")
	}

	trunc := enc[:len(enc)-1]
	if _, err := Decode(trunc); err == nil {
		t.Fatalf("expected error on truncated buffer")
	}
}

func TestEncodeValidation(t *testing.T) {
	if _, err := Encode(Envelope{Kind: 0}); err == nil {
		t.Fatalf("expected error on zero kind")
	}
	if _, err := Encode(Envelope{Kind: KindPage, Tags: []TagGen{{Tag: ""}}}); err == nil {
		t.Fatalf("expected error on empty tag")
	}
	if _, err := Encode(Envelope{Kind: KindPage, Tags: []TagGen{{Tag: strings.Repeat("a", 0x10000)}}}); err == nil {
		t.Fatalf("expected error on tag length > 0xFFFF")
	}
	if _, err := Encode(Envelope{Kind: KindPage, Tags: []TagGen{{Tag: strings.Repeat("b", 0xFFFF)}}}); err != nil {
		t.Fatalf("boundary tag length should succeed: %v", err)
	}
}

func TestDecodeZeroCopyPayload(t *testing.T) {
	enc := mustEncode(t, Envelope{Kind: KindPage, Payload: []byte("Z")})
	e := mustDecode(t, enc)
	e.Payload[0] = 'Q'
	if mustDecode(t, enc).Payload[0] != 'Q' {
		t.Fatalf("expected zero-copy slice into enc buffer")
	}
}
