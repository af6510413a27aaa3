package osc

import (
	"bytes"
	"reflect"
	"testing"
	"time"
)

func TestMessageRoundTrip(t *testing.T) {
	cases := []Message{
		{Address: "/who"},
		{Address: "/device", Args: []Arg{StringArg("foo.1"), StringArg("10.0.0.1"), Int32Arg(9000)}},
		{Address: "/synth/freq", Args: []Arg{Float32Arg(440.5)}},
		{Address: "/mix", Args: []Arg{
			Int32Arg(-7),
			Float32Arg(3.14),
			Float64Arg(2.71828),
			Int64Arg(1 << 40),
			StringArg("hello world"),
			BlobArg([]byte{1, 2, 3, 4, 5}),
			TimeArg(NewNTPTime(time.Unix(1700000000, 500000000))),
		}},
	}

	for _, m := range cases {
		enc, err := EncodeMessage(m)
		if err != nil {
			t.Fatalf("encode(%v): %v", m, err)
		}
		if len(enc)%4 != 0 {
			t.Fatalf("encoded message %v not 4-byte aligned: %d bytes", m, len(enc))
		}
		dec, err := DecodeMessage(enc)
		if err != nil {
			t.Fatalf("decode(encode(%v)): %v", m, err)
		}
		if dec.Address != m.Address {
			t.Fatalf("address mismatch: got %q want %q", dec.Address, m.Address)
		}
		if len(dec.Args) != len(m.Args) {
			t.Fatalf("arg count mismatch: got %d want %d", len(dec.Args), len(m.Args))
		}
		for i := range m.Args {
			if !reflect.DeepEqual(dec.Args[i], m.Args[i]) {
				t.Fatalf("arg %d mismatch: got %#v want %#v", i, dec.Args[i], m.Args[i])
			}
		}
	}
}

func TestBundleRoundTrip(t *testing.T) {
	b := Bundle{
		Timestamp: NewNTPTime(time.Unix(1700000000, 0)),
		Messages: []Message{
			{Address: "/a", Args: []Arg{Int32Arg(1)}},
			{Address: "/b", Args: []Arg{Float32Arg(2.5)}},
		},
	}
	enc, err := EncodeBundle(b)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !IsBundle(enc) {
		t.Fatalf("encoded bundle not recognized as bundle")
	}
	dec, err := DecodeBundle(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dec.Timestamp != b.Timestamp {
		t.Fatalf("timestamp mismatch: got %v want %v", dec.Timestamp, b.Timestamp)
	}
	if len(dec.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(dec.Messages))
	}
}

func TestDecodeMalformedPacket(t *testing.T) {
	cases := [][]byte{
		nil,
		[]byte{1, 2, 3},
		[]byte("/no-type-tag\x00\x00\x00\x00"),
		append([]byte("/a\x00\x00,i\x00\x00"), 1, 2), // truncated int32
	}
	for _, data := range cases {
		if _, err := DecodeMessage(data); err == nil {
			t.Fatalf("expected MalformedPacket for %q", data)
		}
	}
}

func TestNTPTimeRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	nt := NewNTPTime(now)
	back := nt.Time()
	if back.Sub(now) > time.Millisecond || now.Sub(back) > time.Millisecond {
		t.Fatalf("NTP round trip drifted: got %v want %v", back, now)
	}
}

func TestEncodeStringAlignment(t *testing.T) {
	for _, s := range []string{"", "a", "ab", "abc", "abcd", "abcde"} {
		buf := EncodeString(nil, s)
		if len(buf)%4 != 0 {
			t.Fatalf("EncodeString(%q) not aligned: %d", s, len(buf))
		}
		got, next, err := DecodeString(buf, 0)
		if err != nil {
			t.Fatalf("DecodeString: %v", err)
		}
		if got != s {
			t.Fatalf("got %q want %q", got, s)
		}
		if next != len(buf) {
			t.Fatalf("next offset %d != buf len %d", next, len(buf))
		}
	}
}

func TestEncodeBlob(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, 7)
	buf := EncodeBlob(nil, payload)
	if len(buf)%4 != 0 {
		t.Fatalf("blob encoding not aligned")
	}
	got, _, err := DecodeBlob(buf, 0)
	if err != nil {
		t.Fatalf("DecodeBlob: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("blob mismatch")
	}
}
