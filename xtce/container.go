package xtce

import (
	"encoding/hex"
	"fmt"
	"strconv"
)

// ValueMap is an ordered mapping from qualified parameter (or argument)
// name to its decoded raw/engineering value pair.
type ValueMap struct {
	order  []string
	values map[string]Value
}

func newValueMap() *ValueMap {
	return &ValueMap{values: map[string]Value{}}
}

func (vm *ValueMap) set(name string, v Value) {
	if _, exists := vm.values[name]; !exists {
		vm.order = append(vm.order, name)
	}
	vm.values[name] = v
}

// Get returns the value stored for name, if any.
func (vm *ValueMap) Get(name string) (Value, bool) {
	v, ok := vm.values[name]
	return v, ok
}

// Names returns the qualified names in decode order (root-to-leaf,
// entry-list order).
func (vm *ValueMap) Names() []string {
	return vm.order
}

// valueScope is the transient (qualified_name -> Value) state threaded
// through one decode or encode call. It implements both the comparison
// evaluator's scope interface and the dynamic-sizing decodeContext
// interface so entry walking, comparisons, and encodings all read from
// the same running state.
type valueScope struct {
	ss   *SpaceSystem
	vm   *ValueMap
	typs map[string]interface{} // qualified name -> ParameterType/ArgumentType
}

func newValueScope(ss *SpaceSystem) *valueScope {
	return &valueScope{ss: ss, vm: newValueMap(), typs: map[string]interface{}{}}
}

func (sc *valueScope) lookup(name string) (Value, bool) { return sc.vm.Get(name) }

func (sc *valueScope) paramType(name string) (interface{}, bool) {
	t, ok := sc.typs[name]
	return t, ok
}

func (sc *valueScope) rawInt(name string) (int64, bool) {
	v, ok := sc.vm.Get(name)
	if !ok {
		return 0, false
	}
	n, err := asInt64(v.Raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (sc *valueScope) record(name string, typ interface{}, v Value) {
	sc.typs[name] = typ
	sc.vm.set(name, v)
}

// resolveParameterType looks up the ParameterType for a parameter ref
// entry's referenced parameter.
func (ss *SpaceSystem) resolveParameterType(name string) (ParameterType, error) {
	p, ok := ss.GetParameter(name)
	if !ok {
		return nil, &SchemaError{Path: Path{Parameter: name}, Msg: "dangling parameter reference"}
	}
	t, ok := ss.GetParameterType(p.TypeRef)
	if !ok {
		return nil, &SchemaError{Path: Path{Parameter: name}, Msg: fmt.Sprintf("dangling parameter type reference %q", p.TypeRef)}
	}
	return t, nil
}

func (ss *SpaceSystem) resolveArgumentType(name string) (ArgumentType, error) {
	a, ok := ss.GetArgument(name)
	if !ok {
		return nil, &SchemaError{Path: Path{Parameter: name}, Msg: "dangling argument reference"}
	}
	t, ok := ss.GetArgumentType(a.TypeRef)
	if !ok {
		return nil, &SchemaError{Path: Path{Parameter: name}, Msg: fmt.Sprintf("dangling argument type reference %q", a.TypeRef)}
	}
	return t, nil
}

// DecodePacket parses data against rootContainerName, walking inherited
// ancestry and selecting concrete descendants by restriction criteria,
// per spec.md §4.6.
func DecodePacket(ss *SpaceSystem, rootContainerName string, data []byte) (*ValueMap, error) {
	stream := NewBitStreamReader(data)
	sc := newValueScope(ss)

	root, ok := ss.GetContainer(rootContainerName)
	if !ok {
		return nil, &SchemaError{Path: Path{Container: rootContainerName}, Msg: "unknown root container"}
	}

	if err := walkEntries(ss, sc, stream, root.inheritedEntries, root.Name); err != nil {
		return nil, err
	}

	cur := root
	for {
		children := ss.ChildrenOf(cur.Name)
		var matches []*Container
		for _, child := range children {
			ok, err := child.Restriction.Evaluate(sc)
			if err != nil {
				return nil, &DecodeError{Path: Path{Container: child.Name}, Msg: "evaluating restriction criteria", Err: err}
			}
			if ok {
				matches = append(matches, child)
			}
		}
		if len(matches) == 0 {
			break
		}
		if len(matches) > 1 {
			return nil, &DecodeError{Path: Path{Container: cur.Name}, Msg: fmt.Sprintf("ambiguous restriction: %d candidate containers matched", len(matches))}
		}
		child := matches[0]
		if err := walkEntries(ss, sc, stream, child.EntryList, child.Name); err != nil {
			return nil, err
		}
		cur = child
	}

	return sc.vm, nil
}

// walkEntries decodes one container's entry list (own entries, or a full
// inherited list for the initial root) into sc.
func walkEntries(ss *SpaceSystem, sc *valueScope, stream *BitStream, entries []Entry, containerName string) error {
	for i, ent := range entries {
		path := Path{Container: containerName, EntryIdx: i}
		switch ent.Kind {
		case EntryParameterRef:
			path.Parameter = ent.ParameterRef
			if ent.Location != nil {
				if err := seekLocation(stream, ent.Location); err != nil {
					return &DecodeError{Path: path, Msg: "seeking to locationInContainerInBits", Err: err}
				}
			}
			typ, err := ss.resolveParameterType(ent.ParameterRef)
			if err != nil {
				return err
			}
			v, err := typ.Decode(stream, sc)
			if err != nil {
				return &DecodeError{Path: path, Msg: "decoding parameter", Err: err}
			}
			sc.record(ent.ParameterRef, typ, v)

		case EntryArgumentRef:
			path.Parameter = ent.ArgumentRef
			typ, err := ss.resolveArgumentType(ent.ArgumentRef)
			if err != nil {
				return err
			}
			v, err := typ.Decode(stream, sc)
			if err != nil {
				return &DecodeError{Path: path, Msg: "decoding argument", Err: err}
			}
			sc.record(ent.ArgumentRef, typ, v)

		case EntryContainerRef:
			path.Parameter = ent.ContainerRef
			ok, err := ent.IncludeCondition.Evaluate(sc)
			if err != nil {
				return &DecodeError{Path: path, Msg: "evaluating include condition", Err: err}
			}
			if !ok {
				continue
			}
			refContainer, found := ss.GetContainer(ent.ContainerRef)
			if !found {
				return &SchemaError{Path: path, Msg: "dangling container reference"}
			}
			if err := walkEntries(ss, sc, stream, refContainer.inheritedEntries, refContainer.Name); err != nil {
				return err
			}

		case EntryFixedValue:
			raw, err := readFixedBits(stream, ent.SizeInBits)
			if err != nil {
				return &DecodeError{Path: path, Msg: "reading fixed-value entry", Err: err}
			}
			if !bytesEqual(raw, ent.HexValue) {
				return &DecodeError{Path: path, Msg: fmt.Sprintf("fixed-value mismatch: got %s, want %s", hex.EncodeToString(raw), hex.EncodeToString(ent.HexValue))}
			}

		default:
			return &SchemaError{Path: path, Msg: fmt.Sprintf("unsupported entry kind %d", ent.Kind)}
		}
	}
	return nil
}

func seekLocation(stream *BitStream, loc *Location) error {
	switch loc.Reference {
	case LocationStartOfContainer:
		return stream.SeekBits(loc.OffsetBits)
	case LocationPreviousEntry:
		return stream.SeekBits(stream.PositionBits() + loc.OffsetBits)
	default:
		return fmt.Errorf("xtce: unsupported location reference %d", loc.Reference)
	}
}

// readFixedBits reads exactly n bits (not necessarily byte-aligned or a
// multiple of 8) and right-justifies them, big-endian, into a minimal
// byte slice: the value occupies the low n bits of the slice, with any
// leading pad bits of the first byte left zero. This matches
// parseHexBinary's reading of a FixedValueEntry's declared HexValue as
// an integer literal (e.g. a 3-bit value of 5 is hex "05", not "A0").
// For byte-aligned n this degenerates to an ordinary big-endian byte
// sequence.
func readFixedBits(s *BitStream, n int) ([]byte, error) {
	nbytes := (n + 7) / 8
	pad := nbytes*8 - n
	out := make([]byte, nbytes)
	for i := 0; i < n; i++ {
		bit, err := s.ReadUnsigned(1)
		if err != nil {
			return nil, err
		}
		if bit == 1 {
			pos := pad + i
			out[pos/8] |= 1 << uint(7-pos%8)
		}
	}
	return out, nil
}

// writeFixedBits writes exactly n bits from b (packed per readFixedBits'
// right-justified convention), regardless of the stream's current bit
// alignment.
func writeFixedBits(s *BitStream, b []byte, n int) error {
	nbytes := (n + 7) / 8
	pad := nbytes*8 - n
	for i := 0; i < n; i++ {
		pos := pad + i
		byteIdx := pos / 8
		bitIdx := uint(7 - pos%8)
		var bit uint64
		if byteIdx < len(b) && b[byteIdx]&(1<<bitIdx) != 0 {
			bit = 1
		}
		if err := s.WriteUnsigned(bit, 1); err != nil {
			return err
		}
	}
	return nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// EncodePacket assembles a byte buffer for containerName from values,
// per spec.md §4.6's encode algorithm. Restriction criteria along the
// inheritance chain are verified (or, for equality restrictions on
// enum/boolean constants, auto-populated into values).
func EncodePacket(ss *SpaceSystem, containerName string, values map[string]interface{}) ([]byte, error) {
	target, ok := ss.GetContainer(containerName)
	if !ok {
		return nil, &SchemaError{Path: Path{Container: containerName}, Msg: "unknown container"}
	}
	chain, err := inheritanceChain(target, ss.index.containers)
	if err != nil {
		return nil, err
	}

	work := map[string]interface{}{}
	for k, v := range values {
		work[k] = v
	}

	for _, c := range chain[1:] {
		if c.Restriction == nil {
			continue
		}
		for _, comp := range c.Restriction.Comparisons {
			if _, present := work[comp.ParameterRef]; !present && comp.Operator == OpEQ {
				autofillRestrictionValue(work, ss, comp)
			}
		}
	}

	sc := newEncodeScope(ss, work)
	for _, c := range chain[1:] {
		ok, err := c.Restriction.Evaluate(sc)
		if err != nil {
			return nil, &EncodeError{Path: Path{Container: c.Name}, Msg: "evaluating restriction criteria", Err: err}
		}
		if !ok {
			return nil, &EncodeError{Path: Path{Container: c.Name}, Msg: "restriction criteria not satisfied by provided values"}
		}
	}

	stream := NewBitStreamWriter()
	var allEntries []Entry
	for _, c := range chain {
		allEntries = append(allEntries, c.EntryList...)
	}
	if err := encodeEntries(ss, sc, stream, allEntries, containerName); err != nil {
		return nil, err
	}
	return stream.Bytes(), nil
}

// EncodeCommand assembles a byte buffer for a meta command's container,
// from an argument map, by the same algorithm as EncodePacket.
func EncodeCommand(ss *SpaceSystem, metaCommandContainerName string, argumentMap map[string]interface{}) ([]byte, error) {
	return EncodePacket(ss, metaCommandContainerName, argumentMap)
}

// encodeScope adapts a plain values map (as supplied by EncodePacket's
// caller) to the scope/decodeContext interfaces the comparison evaluator
// and dynamic-sizing encodings need.
type encodeScope struct {
	ss     *SpaceSystem
	values map[string]interface{}
}

func newEncodeScope(ss *SpaceSystem, values map[string]interface{}) *encodeScope {
	return &encodeScope{ss: ss, values: values}
}

func (sc *encodeScope) lookup(name string) (Value, bool) {
	v, ok := sc.values[name]
	if !ok {
		return Value{}, false
	}
	return Value{Raw: v, Engineering: v}, true
}

func (sc *encodeScope) paramType(name string) (interface{}, bool) {
	if p, ok := sc.ss.GetParameter(name); ok {
		t, ok := sc.ss.GetParameterType(p.TypeRef)
		return t, ok
	}
	if a, ok := sc.ss.GetArgument(name); ok {
		t, ok := sc.ss.GetArgumentType(a.TypeRef)
		return t, ok
	}
	return nil, false
}

func (sc *encodeScope) rawInt(name string) (int64, bool) {
	v, ok := sc.values[name]
	if !ok {
		return 0, false
	}
	n, err := asInt64(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func autofillRestrictionValue(work map[string]interface{}, ss *SpaceSystem, comp Comparison) {
	if typ, err := ss.resolveParameterType(comp.ParameterRef); err == nil {
		work[comp.ParameterRef] = autofillForType(typ, comp.Value)
		return
	}
	if typ, err := ss.resolveArgumentType(comp.ParameterRef); err == nil {
		work[comp.ParameterRef] = autofillForType(typ, comp.Value)
	}
}

func autofillForType(typ interface{}, raw string) interface{} {
	switch typ.(type) {
	case *IntegerType, *IntegerArgumentType, *FloatType, *FloatArgumentType, *AbsoluteTimeType, *AbsoluteTimeArgumentType:
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	}
	return raw
}

func encodeEntries(ss *SpaceSystem, sc *encodeScope, stream *BitStream, entries []Entry, containerName string) error {
	for i, ent := range entries {
		path := Path{Container: containerName, EntryIdx: i}
		switch ent.Kind {
		case EntryParameterRef:
			path.Parameter = ent.ParameterRef
			v, ok := sc.values[ent.ParameterRef]
			if !ok {
				return &EncodeError{Path: path, Msg: "missing value for parameter"}
			}
			typ, err := ss.resolveParameterType(ent.ParameterRef)
			if err != nil {
				return err
			}
			if ent.Location != nil {
				if err := seekLocation(stream, ent.Location); err != nil {
					return &EncodeError{Path: path, Msg: "seeking to locationInContainerInBits", Err: err}
				}
			}
			if err := typ.Encode(stream, v); err != nil {
				return &EncodeError{Path: path, Msg: "encoding parameter", Err: err}
			}

		case EntryArgumentRef:
			path.Parameter = ent.ArgumentRef
			v, ok := sc.values[ent.ArgumentRef]
			if !ok {
				return &EncodeError{Path: path, Msg: "missing value for argument"}
			}
			typ, err := ss.resolveArgumentType(ent.ArgumentRef)
			if err != nil {
				return err
			}
			if err := typ.Encode(stream, v); err != nil {
				return &EncodeError{Path: path, Msg: "encoding argument", Err: err}
			}

		case EntryContainerRef:
			path.Parameter = ent.ContainerRef
			ok, err := ent.IncludeCondition.Evaluate(sc)
			if err != nil {
				return &EncodeError{Path: path, Msg: "evaluating include condition", Err: err}
			}
			if !ok {
				continue
			}
			refContainer, found := ss.GetContainer(ent.ContainerRef)
			if !found {
				return &SchemaError{Path: path, Msg: "dangling container reference"}
			}
			if err := encodeEntries(ss, sc, stream, refContainer.inheritedEntries, refContainer.Name); err != nil {
				return err
			}

		case EntryFixedValue:
			if err := writeFixedBits(stream, ent.HexValue, ent.SizeInBits); err != nil {
				return &EncodeError{Path: path, Msg: "writing fixed-value entry", Err: err}
			}

		default:
			return &SchemaError{Path: path, Msg: fmt.Sprintf("unsupported entry kind %d", ent.Kind)}
		}
	}
	return nil
}
