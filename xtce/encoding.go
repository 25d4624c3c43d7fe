package xtce

import (
	"fmt"
	"unicode/utf16"
	"unicode/utf8"
)

// windows1252High maps bytes 0x80-0x9F to their Windows-1252 code points;
// ISO-8859-1 leaves that range as C1 control codes, so it needs no table
// (byte value == rune value for the whole 0x00-0xFF range).
var windows1252High = [32]rune{
	0x20AC, 0x0081, 0x201A, 0x0192, 0x201E, 0x2026, 0x2020, 0x2021,
	0x02C6, 0x2030, 0x0160, 0x2039, 0x0152, 0x008D, 0x017D, 0x008F,
	0x0090, 0x2018, 0x2019, 0x201C, 0x201D, 0x2022, 0x2013, 0x2014,
	0x02DC, 0x2122, 0x0161, 0x203A, 0x0153, 0x009D, 0x017E, 0x0178,
}

// Signedness selects how IntegerEncoding interprets its raw bits.
type Signedness int

const (
	Unsigned Signedness = iota
	TwosComplement
)

// CharSet selects how StringEncoding decodes/encodes its raw bytes.
type CharSet int

const (
	UTF8 CharSet = iota
	UTF16
	USASCII
	ISO88591
	Windows1252
)

// SizeOf selects what a Dynamic StringEncoding/BinaryEncoding's size
// parameter measures.
type SizeOf int

const (
	// SizeOfStringData: the size parameter holds the number of bits of
	// encoded data, for String and Binary alike.
	SizeOfStringData SizeOf = iota
	// SizeOfStringLengthInCharacters: the size parameter holds a count
	// of characters, whose byte width depends on CharSet.
	SizeOfStringLengthInCharacters
)

// Sizing is a tagged union over how a String/BinaryEncoding's width is
// determined.
type Sizing struct {
	Kind SizingKind

	// Fixed
	Bits int

	// Dynamic
	SizeParamRef  string
	SizeInBitsIs  SizeOf

	// Terminated
	TerminatorByte byte
}

type SizingKind int

const (
	SizingFixed SizingKind = iota
	SizingDynamic
	SizingTerminated
)

// EncodingKind discriminates the DataEncoding tagged union.
type EncodingKind int

const (
	EncodingInteger EncodingKind = iota
	EncodingFloat
	EncodingString
	EncodingBinary
)

// DataEncoding describes how a value lives in the bitstream. Exactly one
// of the type-specific fields is meaningful, selected by Kind.
type DataEncoding struct {
	Kind EncodingKind

	// Integer
	SizeInBits int
	Signed     Signedness

	// Float reuses SizeInBits (32 or 64).

	// String
	CharSet CharSet
	Sizing  Sizing

	// Binary reuses Sizing (Fixed or Dynamic only).
}

// decodeContext provides access to previously decoded parameter values,
// used to resolve dynamic sizing references.
type decodeContext interface {
	rawInt(name string) (int64, bool)
}

// Decode reads a raw value for this encoding from s, consulting ctx for
// any dynamically-sized field.
func (e *DataEncoding) Decode(s *BitStream, ctx decodeContext) (interface{}, error) {
	switch e.Kind {
	case EncodingInteger:
		return e.decodeInteger(s)
	case EncodingFloat:
		return s.ReadFloat(e.SizeInBits)
	case EncodingString:
		return e.decodeString(s, ctx)
	case EncodingBinary:
		return e.decodeBinary(s, ctx)
	default:
		return nil, fmt.Errorf("xtce: unsupported encoding kind %d", e.Kind)
	}
}

// Encode writes raw to s using this encoding.
func (e *DataEncoding) Encode(s *BitStream, raw interface{}) error {
	switch e.Kind {
	case EncodingInteger:
		return e.encodeInteger(s, raw)
	case EncodingFloat:
		f, err := asFloat(raw)
		if err != nil {
			return err
		}
		return s.WriteFloat(f, e.SizeInBits)
	case EncodingString:
		return e.encodeString(s, raw)
	case EncodingBinary:
		return e.encodeBinary(s, raw)
	default:
		return fmt.Errorf("xtce: unsupported encoding kind %d", e.Kind)
	}
}

func (e *DataEncoding) decodeInteger(s *BitStream) (interface{}, error) {
	if e.Signed == TwosComplement {
		v, err := s.ReadSigned(e.SizeInBits)
		return v, err
	}
	v, err := s.ReadUnsigned(e.SizeInBits)
	return v, err
}

func (e *DataEncoding) encodeInteger(s *BitStream, raw interface{}) error {
	if e.Signed == TwosComplement {
		v, err := asInt64(raw)
		if err != nil {
			return err
		}
		return s.WriteSigned(v, e.SizeInBits)
	}
	v, err := asUint64(raw)
	if err != nil {
		return err
	}
	return s.WriteUnsigned(v, e.SizeInBits)
}

// resolvedSizeBits computes, for a Dynamic sizing, how many bits of
// payload to read/write, given the already-decoded size_param_ref value.
func (e *DataEncoding) resolvedSizeBits(ctx decodeContext, charBytesHint int) (int, error) {
	n, ok := ctx.rawInt(e.Sizing.SizeParamRef)
	if !ok {
		return 0, fmt.Errorf("xtce: dynamic size parameter %q not yet decoded", e.Sizing.SizeParamRef)
	}
	switch e.Sizing.SizeInBitsIs {
	case SizeOfStringData:
		return int(n), nil
	case SizeOfStringLengthInCharacters:
		return int(n) * charBytesHint * 8, nil
	default:
		return 0, fmt.Errorf("xtce: unsupported size_in_bits_is_of %d", e.Sizing.SizeInBitsIs)
	}
}

// charByteWidth is the per-character byte width used when a Dynamic
// sizing's SizeInBitsIs is SizeOfStringLengthInCharacters. UTF-8 is
// variable-width and is handled by decoding one rune at a time instead.
func charByteWidth(cs CharSet) int {
	switch cs {
	case UTF16:
		return 2
	default:
		return 1
	}
}

func (e *DataEncoding) decodeString(s *BitStream, ctx decodeContext) (interface{}, error) {
	switch e.Sizing.Kind {
	case SizingFixed:
		b, err := s.ReadBytes(e.Sizing.Bits)
		if err != nil {
			return nil, err
		}
		return decodeCharset(e.CharSet, b)

	case SizingDynamic:
		if e.CharSet == UTF8 && e.Sizing.SizeInBitsIs == SizeOfStringLengthInCharacters {
			return decodeUTF8ByRuneCount(s, ctx, e.Sizing.SizeParamRef)
		}
		nBits, err := e.resolvedSizeBits(ctx, charByteWidth(e.CharSet))
		if err != nil {
			return nil, err
		}
		b, err := s.ReadBytes(nBits)
		if err != nil {
			return nil, err
		}
		return decodeCharset(e.CharSet, b)

	case SizingTerminated:
		var b []byte
		for {
			byt, err := s.ReadBytes(8)
			if err != nil {
				return nil, err
			}
			if byt[0] == e.Sizing.TerminatorByte {
				break
			}
			b = append(b, byt[0])
		}
		return decodeCharset(e.CharSet, b)

	default:
		return nil, fmt.Errorf("xtce: unsupported string sizing kind %d", e.Sizing.Kind)
	}
}

func decodeUTF8ByRuneCount(s *BitStream, ctx decodeContext, sizeParamRef string) (interface{}, error) {
	n, ok := ctx.rawInt(sizeParamRef)
	if !ok {
		return nil, fmt.Errorf("xtce: dynamic size parameter %q not yet decoded", sizeParamRef)
	}
	var runes []rune
	for i := int64(0); i < n; i++ {
		lead, err := s.ReadBytes(8)
		if err != nil {
			return nil, err
		}
		size := 1
		switch {
		case lead[0] >= 0xF0:
			size = 4
		case lead[0] >= 0xE0:
			size = 3
		case lead[0] >= 0xC0:
			size = 2
		}
		if size <= 1 {
			runes = append(runes, rune(lead[0]))
			continue
		}
		rest, err := s.ReadBytes((size - 1) * 8)
		if err != nil {
			return nil, err
		}
		buf := append(lead, rest...)
		r, _ := utf8.DecodeRune(buf)
		runes = append(runes, r)
	}
	return string(runes), nil
}

func decodeCharset(cs CharSet, b []byte) (string, error) {
	switch cs {
	case UTF8, USASCII:
		if !utf8.Valid(b) {
			return "", fmt.Errorf("xtce: invalid UTF-8/ASCII byte sequence")
		}
		return string(b), nil
	case UTF16:
		if len(b)%2 != 0 {
			return "", fmt.Errorf("xtce: UTF-16 byte sequence has odd length %d", len(b))
		}
		u16 := make([]uint16, len(b)/2)
		for i := range u16 {
			u16[i] = uint16(b[2*i])<<8 | uint16(b[2*i+1])
		}
		return string(utf16.Decode(u16)), nil
	case ISO88591, Windows1252:
		runes := make([]rune, len(b))
		for i, byt := range b {
			if cs == Windows1252 && byt >= 0x80 && byt <= 0x9F {
				runes[i] = windows1252High[byt-0x80]
			} else {
				runes[i] = rune(byt)
			}
		}
		return string(runes), nil
	default:
		return "", fmt.Errorf("xtce: unsupported charset %d", cs)
	}
}

func encodeCharset(cs CharSet, v string) ([]byte, error) {
	switch cs {
	case UTF8, USASCII:
		return []byte(v), nil
	case UTF16:
		u16 := utf16.Encode([]rune(v))
		out := make([]byte, len(u16)*2)
		for i, u := range u16 {
			out[2*i] = byte(u >> 8)
			out[2*i+1] = byte(u)
		}
		return out, nil
	case ISO88591, Windows1252:
		out := make([]byte, 0, len(v))
		for _, r := range v {
			if r <= 0xFF && !(cs == Windows1252 && r >= 0x80 && r <= 0x9F) {
				out = append(out, byte(r))
				continue
			}
			found := false
			if cs == Windows1252 {
				for i, hr := range windows1252High {
					if hr == r {
						out = append(out, byte(0x80+i))
						found = true
						break
					}
				}
			}
			if !found {
				return nil, fmt.Errorf("xtce: rune %q not representable in charset %d", r, cs)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("xtce: unsupported charset %d", cs)
	}
}

func (e *DataEncoding) encodeString(s *BitStream, raw interface{}) error {
	v, ok := raw.(string)
	if !ok {
		return fmt.Errorf("xtce: expected string, got %T", raw)
	}
	b, err := encodeCharset(e.CharSet, v)
	if err != nil {
		return err
	}
	switch e.Sizing.Kind {
	case SizingFixed:
		want := e.Sizing.Bits / 8
		if len(b) > want {
			return fmt.Errorf("xtce: string %q exceeds fixed width of %d bytes", v, want)
		}
		padded := make([]byte, want)
		copy(padded, b)
		return s.WriteBytes(padded)
	case SizingDynamic, SizingTerminated:
		if e.Sizing.Kind == SizingTerminated {
			b = append(b, e.Sizing.TerminatorByte)
		}
		return s.WriteBytes(b)
	default:
		return fmt.Errorf("xtce: unsupported string sizing kind %d", e.Sizing.Kind)
	}
}

func (e *DataEncoding) decodeBinary(s *BitStream, ctx decodeContext) (interface{}, error) {
	switch e.Sizing.Kind {
	case SizingFixed:
		return s.ReadBytes(e.Sizing.Bits)
	case SizingDynamic:
		nBits, err := e.resolvedSizeBits(ctx, 1)
		if err != nil {
			return nil, err
		}
		return s.ReadBytes(nBits)
	default:
		return nil, fmt.Errorf("xtce: unsupported binary sizing kind %d", e.Sizing.Kind)
	}
}

func (e *DataEncoding) encodeBinary(s *BitStream, raw interface{}) error {
	b, ok := raw.([]byte)
	if !ok {
		return fmt.Errorf("xtce: expected []byte, got %T", raw)
	}
	return s.WriteBytes(b)
}

func asFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case int:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("xtce: cannot interpret %T as float", v)
	}
}

func asInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("xtce: cannot interpret %T as int64", v)
	}
}

func asUint64(v interface{}) (uint64, error) {
	switch n := v.(type) {
	case uint64:
		return n, nil
	case int64:
		if n < 0 {
			return 0, fmt.Errorf("xtce: negative value %d for unsigned field", n)
		}
		return uint64(n), nil
	case int:
		if n < 0 {
			return 0, fmt.Errorf("xtce: negative value %d for unsigned field", n)
		}
		return uint64(n), nil
	case float64:
		if n < 0 {
			return 0, fmt.Errorf("xtce: negative value %g for unsigned field", n)
		}
		return uint64(n), nil
	default:
		return 0, fmt.Errorf("xtce: cannot interpret %T as uint64", v)
	}
}
