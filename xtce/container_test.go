package xtce

import "testing"

// buildDispatchSystem builds a small schema exercising restriction-based
// child container selection: a Base container carrying a mode
// enumeration, with two candidate children distinguished by the mode's
// decoded label.
func buildDispatchSystem(t *testing.T) *SpaceSystem {
	t.Helper()

	modeType := &EnumeratedType{
		NamedType: NamedType{
			Name:     "/Root/Types/ModeEnum",
			Encoding: DataEncoding{Kind: EncodingInteger, SizeInBits: 8, Signed: Unsigned},
		},
		LabelByValue: map[int64]string{0: "A", 1: "B"},
		ValueByLabel: map[string]int64{"A": 0, "B": 1},
	}
	valType := &IntegerType{NamedType: NamedType{
		Name:     "/Root/Types/Uint8",
		Encoding: DataEncoding{Kind: EncodingInteger, SizeInBits: 8, Signed: Unsigned},
	}}
	lenType := &IntegerType{NamedType: NamedType{
		Name:     "/Root/Types/Uint8Len",
		Encoding: DataEncoding{Kind: EncodingInteger, SizeInBits: 8, Signed: Unsigned},
	}}
	strType := &StringType{NamedType: NamedType{
		Name: "/Root/Types/DynStr",
		Encoding: DataEncoding{
			Kind:    EncodingString,
			CharSet: USASCII,
			Sizing:  Sizing{Kind: SizingDynamic, SizeParamRef: "/Root/Params/Len", SizeInBitsIs: SizeOfStringLengthInCharacters},
		},
	}}

	root := &SpaceSystem{
		QualifiedName: "/Root",
		Parameters: map[string]*Parameter{
			"/Root/Params/Mode": {QualifiedName: "/Root/Params/Mode", TypeRef: "/Root/Types/ModeEnum"},
			"/Root/Params/Val":  {QualifiedName: "/Root/Params/Val", TypeRef: "/Root/Types/Uint8"},
			"/Root/Params/Len":  {QualifiedName: "/Root/Params/Len", TypeRef: "/Root/Types/Uint8Len"},
			"/Root/Params/Str":  {QualifiedName: "/Root/Params/Str", TypeRef: "/Root/Types/DynStr"},
		},
		ParameterTypes: map[string]ParameterType{
			"/Root/Types/ModeEnum": modeType,
			"/Root/Types/Uint8":    valType,
			"/Root/Types/Uint8Len": lenType,
			"/Root/Types/DynStr":   strType,
		},
		ArgumentTypes: map[string]ArgumentType{},
		Arguments:     map[string]*Argument{},
		Containers: map[string]*Container{
			"/Root/Containers/Base": {
				Name:      "/Root/Containers/Base",
				EntryList: []Entry{{Kind: EntryParameterRef, ParameterRef: "/Root/Params/Mode"}},
			},
			"/Root/Containers/ChildA": {
				Name:             "/Root/Containers/ChildA",
				BaseContainerRef: "/Root/Containers/Base",
				Restriction:      &ComparisonList{Comparisons: []Comparison{{ParameterRef: "/Root/Params/Mode", Operator: OpEQ, Value: "A", UseCalibratedValue: true}}},
				EntryList:        []Entry{{Kind: EntryParameterRef, ParameterRef: "/Root/Params/Val"}},
			},
			"/Root/Containers/ChildB": {
				Name:             "/Root/Containers/ChildB",
				BaseContainerRef: "/Root/Containers/Base",
				Restriction:      &ComparisonList{Comparisons: []Comparison{{ParameterRef: "/Root/Params/Mode", Operator: OpEQ, Value: "B", UseCalibratedValue: true}}},
				EntryList: []Entry{
					{Kind: EntryParameterRef, ParameterRef: "/Root/Params/Len"},
					{Kind: EntryParameterRef, ParameterRef: "/Root/Params/Str"},
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

func TestDecodeContainerEnumDispatch(t *testing.T) {
	ss := buildDispatchSystem(t)

	s := NewBitStreamWriter()
	s.WriteUnsigned(0, 8) // mode = A
	s.WriteUnsigned(42, 8)
	vm, err := DecodePacket(ss, "/Root/Containers/Base", s.Bytes())
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	mode, ok := vm.Get("/Root/Params/Mode")
	if !ok || mode.Engineering != "A" {
		t.Fatalf("mode = %v, ok=%v, want A", mode, ok)
	}
	val, ok := vm.Get("/Root/Params/Val")
	if !ok || val.Engineering.(uint64) != 42 {
		t.Fatalf("val = %v, ok=%v, want 42", val, ok)
	}
	if _, ok := vm.Get("/Root/Params/Len"); ok {
		t.Error("did not expect ChildB's Len parameter to be decoded")
	}
}

func TestDecodeContainerDynamicString(t *testing.T) {
	ss := buildDispatchSystem(t)

	s := NewBitStreamWriter()
	s.WriteUnsigned(1, 8) // mode = B
	s.WriteUnsigned(5, 8) // len = 5
	s.WriteBytes([]byte("howdy"))
	vm, err := DecodePacket(ss, "/Root/Containers/Base", s.Bytes())
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	str, ok := vm.Get("/Root/Params/Str")
	if !ok || str.Engineering != "howdy" {
		t.Fatalf("str = %v, ok=%v, want howdy", str, ok)
	}
}

func TestEncodeContainerEnumDispatch(t *testing.T) {
	ss := buildDispatchSystem(t)
	data, err := EncodePacket(ss, "/Root/Containers/ChildA", map[string]interface{}{
		"/Root/Params/Val": uint64(42),
	})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	want := []byte{0x00, 0x2A}
	if len(data) != len(want) || data[0] != want[0] || data[1] != want[1] {
		t.Errorf("got %v, want %v", data, want)
	}

	vm, err := DecodePacket(ss, "/Root/Containers/Base", data)
	if err != nil {
		t.Fatalf("round-trip decode failed: %v", err)
	}
	if v, _ := vm.Get("/Root/Params/Val"); v.Engineering.(uint64) != 42 {
		t.Errorf("round trip val = %v, want 42", v)
	}
}

func TestAmbiguousRestrictionFails(t *testing.T) {
	ss := buildDispatchSystem(t)
	// Both children require mode == B: restriction is now ambiguous.
	ss.Containers["/Root/Containers/ChildA"].Restriction = &ComparisonList{
		Comparisons: []Comparison{{ParameterRef: "/Root/Params/Mode", Operator: OpEQ, Value: "B", UseCalibratedValue: true}},
	}

	s := NewBitStreamWriter()
	s.WriteUnsigned(1, 8)
	s.WriteUnsigned(5, 8)
	s.WriteBytes([]byte("howdy"))
	_, err := DecodePacket(ss, "/Root/Containers/Base", s.Bytes())
	if err == nil {
		t.Fatal("expected ambiguous restriction error, got nil")
	}
}

func buildFixedValueSystem(t *testing.T) *SpaceSystem {
	t.Helper()
	valType := &IntegerType{NamedType: NamedType{
		Name:     "/Root/Types/Uint8",
		Encoding: DataEncoding{Kind: EncodingInteger, SizeInBits: 8, Signed: Unsigned},
	}}
	root := &SpaceSystem{
		QualifiedName:  "/Root",
		Parameters:     map[string]*Parameter{"/Root/Params/Val": {QualifiedName: "/Root/Params/Val", TypeRef: "/Root/Types/Uint8"}},
		ParameterTypes: map[string]ParameterType{"/Root/Types/Uint8": valType},
		ArgumentTypes:  map[string]ArgumentType{},
		Arguments:      map[string]*Argument{},
		Containers: map[string]*Container{
			"/Root/Containers/Magic": {
				Name: "/Root/Containers/Magic",
				EntryList: []Entry{
					{Kind: EntryFixedValue, SizeInBits: 16, HexValue: []byte{0xCA, 0xFE}},
					{Kind: EntryParameterRef, ParameterRef: "/Root/Params/Val"},
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

func TestDecodeFixedValueMatch(t *testing.T) {
	ss := buildFixedValueSystem(t)
	s := NewBitStreamWriter()
	s.WriteUnsigned(0xCAFE, 16)
	s.WriteUnsigned(7, 8)
	vm, err := DecodePacket(ss, "/Root/Containers/Magic", s.Bytes())
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if v, _ := vm.Get("/Root/Params/Val"); v.Engineering.(uint64) != 7 {
		t.Errorf("val = %v, want 7", v)
	}
}

func TestDecodeFixedValueMismatch(t *testing.T) {
	ss := buildFixedValueSystem(t)
	s := NewBitStreamWriter()
	s.WriteUnsigned(0xBAAD, 16)
	s.WriteUnsigned(7, 8)
	_, err := DecodePacket(ss, "/Root/Containers/Magic", s.Bytes())
	if err == nil {
		t.Fatal("expected fixed-value mismatch error, got nil")
	}
	de, ok := err.(*DecodeError)
	if !ok {
		t.Fatalf("expected *DecodeError, got %T", err)
	}
	if de.Path.Container != "/Root/Containers/Magic" {
		t.Errorf("got path %v", de.Path)
	}
}
