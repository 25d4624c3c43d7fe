package xtce

import (
	"math"
	"testing"
)

// TestUnsignedRoundTrip writes then reads back unsigned values at every
// bit width from 1 to 64, at a handful of bit offsets, mirroring the
// teacher's offset-sweep style for field extraction.
func TestUnsignedRoundTrip(t *testing.T) {
	for width := 1; width <= 64; width++ {
		max := uint64(1)<<width - 1
		if width == 64 {
			max = math.MaxUint64
		}
		cases := []uint64{0, max}
		if max > 2 {
			cases = append(cases, max/2, 1)
		}
		for offset := 0; offset < 9; offset++ {
			for _, v1 := range cases {
				s := NewBitStreamWriter()
				if offset > 0 {
					if err := s.WriteUnsigned(0, offset); err != nil {
						t.Fatalf("offset write failed: %v", err)
					}
				}
				if err := s.WriteUnsigned(v1, width); err != nil {
					t.Fatalf("width %d offset %d: write failed: %v", width, offset, err)
				}

				r := NewBitStreamReader(s.Bytes())
				if offset > 0 {
					if _, err := r.ReadUnsigned(offset); err != nil {
						t.Fatalf("offset read failed: %v", err)
					}
				}
				v2, err := r.ReadUnsigned(width)
				if err != nil {
					t.Fatalf("width %d offset %d: read failed: %v", width, offset, err)
				}
				if v1 != v2 {
					t.Errorf("width %d offset %d: values didn't match: %d:%d", width, offset, v1, v2)
				}
			}
		}
	}
}

// TestSignedRoundTrip mirrors TestUnsignedRoundTrip for two's complement
// signed values.
func TestSignedRoundTrip(t *testing.T) {
	for width := 2; width <= 64; width++ {
		lo := -(int64(1) << (width - 1))
		hi := (int64(1) << (width - 1)) - 1
		cases := []int64{lo, hi, 0, -1, 1}
		for offset := 0; offset < 9; offset++ {
			for _, v1 := range cases {
				s := NewBitStreamWriter()
				if offset > 0 {
					if err := s.WriteUnsigned(0, offset); err != nil {
						t.Fatalf("offset write failed: %v", err)
					}
				}
				if err := s.WriteSigned(v1, width); err != nil {
					t.Fatalf("width %d offset %d value %d: write failed: %v", width, offset, v1, err)
				}

				r := NewBitStreamReader(s.Bytes())
				if offset > 0 {
					if _, err := r.ReadUnsigned(offset); err != nil {
						t.Fatalf("offset read failed: %v", err)
					}
				}
				v2, err := r.ReadSigned(width)
				if err != nil {
					t.Fatalf("width %d offset %d value %d: read failed: %v", width, offset, v1, err)
				}
				if v1 != v2 {
					t.Errorf("width %d offset %d: values didn't match: %d:%d", width, offset, v1, v2)
				}
			}
		}
	}
}

// TestFloatRoundTrip covers F1234 (32-bit) style round trips across a
// range of byte offsets and F12345678 (64-bit) style round trips at
// offset 0.
func TestFloatRoundTrip(t *testing.T) {
	cases32 := []float32{0.0, 1.0, -1.0, math.MaxFloat32, -math.MaxFloat32}
	for i := 0; i < 32; i++ {
		cases32 = append(cases32, float32(i))
	}
	for offset := 0; offset < 12; offset++ {
		for _, v1 := range cases32 {
			s := NewBitStreamWriter()
			if offset > 0 {
				if err := s.WriteBytes(make([]byte, offset)); err != nil {
					t.Fatalf("offset write failed: %v", err)
				}
			}
			if err := s.WriteFloat(float64(v1), 32); err != nil {
				t.Fatalf("offset %d: write failed: %v", offset, err)
			}
			r := NewBitStreamReader(s.Bytes())
			if offset > 0 {
				if _, err := r.ReadBytes(offset * 8); err != nil {
					t.Fatalf("offset read failed: %v", err)
				}
			}
			v2, err := r.ReadFloat(32)
			if err != nil {
				t.Fatalf("offset %d: read failed: %v", offset, err)
			}
			if float32(v2) != v1 {
				t.Errorf("offset %d: values didn't match: %v:%v", offset, v1, v2)
			}
		}
	}

	cases64 := []float64{0.0, 1.0, -1.0, math.MaxFloat64, -math.MaxFloat64}
	for i := 0; i < 32; i++ {
		cases64 = append(cases64, float64(i))
	}
	for _, v1 := range cases64 {
		s := NewBitStreamWriter()
		if err := s.WriteFloat(v1, 64); err != nil {
			t.Fatalf("write failed: %v", err)
		}
		v2, err := NewBitStreamReader(s.Bytes()).ReadFloat(64)
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if v1 != v2 {
			t.Errorf("values didn't match: %v:%v", v1, v2)
		}
	}
}

// TestNonByteAlignedRun exercises back-to-back unaligned reads/writes of
// differing widths, the pattern XTCE entries actually produce within a
// container (a run of odd-width integer fields with no byte padding).
func TestNonByteAlignedRun(t *testing.T) {
	widths := []int{3, 1, 12, 7, 9, 4}
	values := []uint64{5, 1, 3000, 100, 500, 9}

	s := NewBitStreamWriter()
	for i, w := range widths {
		if err := s.WriteUnsigned(values[i], w); err != nil {
			t.Fatalf("write %d failed: %v", i, err)
		}
	}

	r := NewBitStreamReader(s.Bytes())
	for i, w := range widths {
		v, err := r.ReadUnsigned(w)
		if err != nil {
			t.Fatalf("read %d failed: %v", i, err)
		}
		if v != values[i] {
			t.Errorf("entry %d: got %d, want %d", i, v, values[i])
		}
	}
}

func TestReadUnsignedInsufficientInput(t *testing.T) {
	r := NewBitStreamReader([]byte{0xFF})
	if _, err := r.ReadUnsigned(9); err == nil {
		t.Error("expected error reading past end of buffer, got nil")
	}
}

func TestSeekBits(t *testing.T) {
	s := NewBitStreamWriter()
	s.WriteUnsigned(0xAB, 8)
	s.WriteUnsigned(0xCD, 8)

	r := NewBitStreamReader(s.Bytes())
	if err := r.SeekBits(8); err != nil {
		t.Fatalf("seek failed: %v", err)
	}
	v, err := r.ReadUnsigned(8)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if v != 0xCD {
		t.Errorf("got %#x, want 0xCD", v)
	}
}
