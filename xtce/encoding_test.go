package xtce

import "testing"

func TestIntegerEncodingRoundTrip(t *testing.T) {
	enc := &DataEncoding{Kind: EncodingInteger, SizeInBits: 16, Signed: Unsigned}
	s := NewBitStreamWriter()
	if err := enc.Encode(s, uint64(4321)); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	v, err := enc.Decode(NewBitStreamReader(s.Bytes()), nil)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if v.(uint64) != 4321 {
		t.Errorf("got %v, want 4321", v)
	}
}

func TestIntegerEncodingTwosComplement(t *testing.T) {
	enc := &DataEncoding{Kind: EncodingInteger, SizeInBits: 12, Signed: TwosComplement}
	cases := []int64{0, -1, 1, -2048, 2047, -1000}
	for _, v1 := range cases {
		s := NewBitStreamWriter()
		if err := enc.Encode(s, v1); err != nil {
			t.Fatalf("value %d: encode failed: %v", v1, err)
		}
		v, err := enc.Decode(NewBitStreamReader(s.Bytes()), nil)
		if err != nil {
			t.Fatalf("value %d: decode failed: %v", v1, err)
		}
		if v.(int64) != v1 {
			t.Errorf("got %d, want %d", v, v1)
		}
	}
}

func TestFloatEncodingRoundTrip(t *testing.T) {
	enc := &DataEncoding{Kind: EncodingFloat, SizeInBits: 32}
	s := NewBitStreamWriter()
	if err := enc.Encode(s, 3.5); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	v, err := enc.Decode(NewBitStreamReader(s.Bytes()), nil)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if v.(float64) != 3.5 {
		t.Errorf("got %v, want 3.5", v)
	}
}

func TestFixedStringRoundTrip(t *testing.T) {
	enc := &DataEncoding{
		Kind:    EncodingString,
		CharSet: UTF8,
		Sizing:  Sizing{Kind: SizingFixed, Bits: 64},
	}
	s := NewBitStreamWriter()
	if err := enc.Encode(s, "hello"); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	v, err := enc.Decode(NewBitStreamReader(s.Bytes()), nil)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	want := "hello\x00\x00\x00"
	if v.(string) != want {
		t.Errorf("got %q, want %q", v, want)
	}
}

func TestTerminatedStringRoundTrip(t *testing.T) {
	enc := &DataEncoding{
		Kind:    EncodingString,
		CharSet: USASCII,
		Sizing:  Sizing{Kind: SizingTerminated, TerminatorByte: 0},
	}
	s := NewBitStreamWriter()
	if err := enc.Encode(s, "URL"); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	v, err := enc.Decode(NewBitStreamReader(s.Bytes()), nil)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if v.(string) != "URL" {
		t.Errorf("got %q, want %q", v, "URL")
	}
}

// dynamicSizeScope is a minimal decodeContext stub for exercising
// dynamically-sized string/binary/array encodings in isolation.
type dynamicSizeScope struct {
	values map[string]int64
}

func (d dynamicSizeScope) rawInt(name string) (int64, bool) {
	v, ok := d.values[name]
	return v, ok
}

func TestDynamicStringRoundTrip(t *testing.T) {
	enc := &DataEncoding{
		Kind:    EncodingString,
		CharSet: UTF8,
		Sizing:  Sizing{Kind: SizingDynamic, SizeParamRef: "str_len", SizeInBitsIs: SizeOfStringData},
	}
	ctx := dynamicSizeScope{values: map[string]int64{"str_len": 40}}
	s := NewBitStreamWriter()
	if err := enc.Encode(s, "howdy"); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	v, err := enc.Decode(NewBitStreamReader(s.Bytes()), ctx)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if v.(string) != "howdy" {
		t.Errorf("got %q, want %q", v, "howdy")
	}
}

func TestBinaryFixedRoundTrip(t *testing.T) {
	enc := &DataEncoding{Kind: EncodingBinary, Sizing: Sizing{Kind: SizingFixed, Bits: 24}}
	s := NewBitStreamWriter()
	want := []byte{0xDE, 0xAD, 0xBE}
	if err := enc.Encode(s, want); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	v, err := enc.Decode(NewBitStreamReader(s.Bytes()), nil)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	got := v.([]byte)
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("byte %d: got %#x, want %#x", i, got[i], want[i])
		}
	}
}

func TestWindows1252CharsetRoundTrip(t *testing.T) {
	b, err := encodeCharset(Windows1252, "€")
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if len(b) != 1 || b[0] != 0x80 {
		t.Fatalf("got %v, want [0x80]", b)
	}
	s, err := decodeCharset(Windows1252, b)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if s != "€" {
		t.Errorf("got %q, want euro sign", s)
	}
}

func TestISO88591CharsetRoundTrip(t *testing.T) {
	b, err := encodeCharset(ISO88591, "café")
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	s, err := decodeCharset(ISO88591, b)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if s != "café" {
		t.Errorf("got %q, want %q", s, "café")
	}
}
