package xtce

import (
	"context"
	"testing"
)

func buildCommandSystem(t *testing.T) *SpaceSystem {
	t.Helper()
	opcodeType := &IntegerArgumentType{IntegerType: IntegerType{NamedType: NamedType{
		Name:     "/Root/Types/Opcode",
		Encoding: DataEncoding{Kind: EncodingInteger, SizeInBits: 8, Signed: Unsigned},
	}}}
	paramType := &FloatArgumentType{FloatType: FloatType{NamedType: NamedType{
		Name:     "/Root/Types/Setpoint",
		Encoding: DataEncoding{Kind: EncodingInteger, SizeInBits: 16, Signed: Unsigned},
		Calibrator: &PolynomialCalibrator{
			Terms: []Term{{0.0, 0}, {0.1, 1}},
		},
	}}}

	root := &SpaceSystem{
		QualifiedName: "/Root",
		Parameters:    map[string]*Parameter{},
		ParameterTypes: map[string]ParameterType{
			"/Root/Types/Uint8": &IntegerType{NamedType: NamedType{
				Name:     "/Root/Types/Uint8",
				Encoding: DataEncoding{Kind: EncodingInteger, SizeInBits: 8, Signed: Unsigned},
			}},
		},
		Arguments: map[string]*Argument{
			"/Root/Args/Opcode":   {QualifiedName: "/Root/Args/Opcode", TypeRef: "/Root/Types/Opcode"},
			"/Root/Args/Setpoint": {QualifiedName: "/Root/Args/Setpoint", TypeRef: "/Root/Types/Setpoint"},
		},
		ArgumentTypes: map[string]ArgumentType{
			"/Root/Types/Opcode":   opcodeType,
			"/Root/Types/Setpoint": paramType,
		},
		Containers: map[string]*Container{
			"/Root/Commands/SetPoint": {
				Name: "/Root/Commands/SetPoint",
				EntryList: []Entry{
					{Kind: EntryArgumentRef, ArgumentRef: "/Root/Args/Opcode"},
					{Kind: EntryArgumentRef, ArgumentRef: "/Root/Args/Setpoint"},
				},
			},
		},
	}
	ss, err := NewSpaceSystem(root)
	if err != nil {
		t.Fatalf("NewSpaceSystem failed: %v", err)
	}
	return ss
}

func TestEncodeCommand(t *testing.T) {
	ss := buildCommandSystem(t)
	data, err := EncodeCommand(ss, "/Root/Commands/SetPoint", map[string]interface{}{
		"/Root/Args/Opcode":   uint64(5),
		"/Root/Args/Setpoint": 12.0,
	})
	if err != nil {
		t.Fatalf("EncodeCommand failed: %v", err)
	}
	if len(data) != 3 {
		t.Fatalf("got %d bytes, want 3", len(data))
	}
	if data[0] != 5 {
		t.Errorf("opcode byte = %#x, want 0x05", data[0])
	}
	// setpoint 12.0 uncalibrates to raw 120 (y = 0.1*x -> x = 120).
	raw := uint16(data[1])<<8 | uint16(data[2])
	if raw != 120 {
		t.Errorf("setpoint raw = %d, want 120", raw)
	}
}

func buildSimpleUnsignedSystem(t *testing.T) *SpaceSystem {
	t.Helper()
	valType := &IntegerType{NamedType: NamedType{
		Name:     "/Root/Types/Uint16",
		Encoding: DataEncoding{Kind: EncodingInteger, SizeInBits: 16, Signed: Unsigned},
	}}
	root := &SpaceSystem{
		QualifiedName:  "/Root",
		Parameters:     map[string]*Parameter{"/Root/Params/Counter": {QualifiedName: "/Root/Params/Counter", TypeRef: "/Root/Types/Uint16"}},
		ParameterTypes: map[string]ParameterType{"/Root/Types/Uint16": valType},
		ArgumentTypes:  map[string]ArgumentType{},
		Arguments:      map[string]*Argument{},
		Containers: map[string]*Container{
			"/Root/Containers/Counter": {
				Name:      "/Root/Containers/Counter",
				EntryList: []Entry{{Kind: EntryParameterRef, ParameterRef: "/Root/Params/Counter"}},
			},
		},
	}
	ss, err := NewSpaceSystem(root)
	if err != nil {
		t.Fatalf("NewSpaceSystem failed: %v", err)
	}
	return ss
}

func TestDecodePacketsBatch(t *testing.T) {
	ss := buildSimpleUnsignedSystem(t)
	reqs := make([]DecodeRequest, 0, 10)
	for i := 0; i < 10; i++ {
		s := NewBitStreamWriter()
		s.WriteUnsigned(uint64(i*100), 16)
		reqs = append(reqs, DecodeRequest{RootContainer: "/Root/Containers/Counter", Data: s.Bytes()})
	}

	results, err := DecodePackets(context.Background(), ss, reqs)
	if err != nil {
		t.Fatalf("DecodePackets failed: %v", err)
	}
	if len(results) != len(reqs) {
		t.Fatalf("got %d results, want %d", len(results), len(reqs))
	}
	for i, res := range results {
		if res.Err != nil {
			t.Fatalf("request %d failed: %v", i, res.Err)
		}
		v, ok := res.Value.Get("/Root/Params/Counter")
		if !ok {
			t.Fatalf("request %d: counter not decoded", i)
		}
		if v.Engineering.(uint64) != uint64(i*100) {
			t.Errorf("request %d: got %v, want %d", i, v.Engineering, i*100)
		}
	}
}

func TestEncodePacketsBatch(t *testing.T) {
	ss := buildSimpleUnsignedSystem(t)
	reqs := make([]EncodeRequest, 0, 5)
	for i := 0; i < 5; i++ {
		reqs = append(reqs, EncodeRequest{
			Container: "/Root/Containers/Counter",
			Values:    map[string]interface{}{"/Root/Params/Counter": uint64(i)},
		})
	}
	results, err := EncodePackets(context.Background(), ss, reqs)
	if err != nil {
		t.Fatalf("EncodePackets failed: %v", err)
	}
	for i, res := range results {
		if res.Err != nil {
			t.Fatalf("request %d failed: %v", i, res.Err)
		}
		if len(res.Data) != 2 {
			t.Fatalf("request %d: got %d bytes, want 2", i, len(res.Data))
		}
		got := uint16(res.Data[0])<<8 | uint16(res.Data[1])
		if got != uint16(i) {
			t.Errorf("request %d: got %d, want %d", i, got, i)
		}
	}
}
