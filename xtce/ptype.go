package xtce

import (
	"fmt"
	"strconv"
)

// Value is what a decoded parameter or argument carries: the bit-exact
// raw value and, after calibration/type interpretation, the engineering
// value presented to callers.
type Value struct {
	Raw         interface{}
	Engineering interface{}
	// Unknown is set when an EnumeratedType raw value has no label.
	Unknown bool
}

// NamedType is the type-level state shared by every parameter/argument
// type: its data encoding and optional calibrator and valid range.
type NamedType struct {
	Name       string
	Encoding   DataEncoding
	Calibrator *PolynomialCalibrator
	ValidRange *ValidRange
}

// ParameterType is the closed tagged union of supported parameter types.
// isParameterType is unexported so no type outside this package can
// implement ParameterType, keeping the union closed per spec's design
// note on exhaustive handling.
type ParameterType interface {
	TypeName() string
	Decode(s *BitStream, ctx decodeContext) (Value, error)
	Encode(s *BitStream, eng interface{}) error
	isParameterType()
}

// IntegerType decodes a raw integer, optionally calibrating it to an
// engineering integer or float.
type IntegerType struct {
	NamedType
}

func (t *IntegerType) TypeName() string { return t.Name }
func (t *IntegerType) isParameterType() {}

func (t *IntegerType) Decode(s *BitStream, ctx decodeContext) (Value, error) {
	raw, err := t.Encoding.Decode(s, ctx)
	if err != nil {
		return Value{}, err
	}
	eng, err := calibrateRaw(t.Calibrator, raw)
	if err != nil {
		return Value{}, err
	}
	return Value{Raw: raw, Engineering: eng}, nil
}

func (t *IntegerType) Encode(s *BitStream, eng interface{}) error {
	raw, err := uncalibrateEng(t.Calibrator, eng)
	if err != nil {
		return err
	}
	if t.ValidRange != nil {
		f, err := asFloat(eng)
		if err == nil && !t.ValidRange.Contains(f) {
			return fmt.Errorf("xtce: value %v outside valid range [%g, %g]", eng, t.ValidRange.Min, t.ValidRange.Max)
		}
	}
	return t.Encoding.Encode(s, raw)
}

// FloatType mirrors IntegerType but targets an engineering float; its
// DataEncoding may itself be Float or Integer (raw integer reinterpreted
// as float via calibration).
type FloatType struct {
	NamedType
}

func (t *FloatType) TypeName() string { return t.Name }
func (t *FloatType) isParameterType() {}

func (t *FloatType) Decode(s *BitStream, ctx decodeContext) (Value, error) {
	raw, err := t.Encoding.Decode(s, ctx)
	if err != nil {
		return Value{}, err
	}
	eng, err := calibrateRaw(t.Calibrator, raw)
	if err != nil {
		return Value{}, err
	}
	if f, ferr := asFloat(eng); ferr == nil {
		eng = f
	}
	return Value{Raw: raw, Engineering: eng}, nil
}

func (t *FloatType) Encode(s *BitStream, eng interface{}) error {
	if t.ValidRange != nil {
		f, err := asFloat(eng)
		if err == nil && !t.ValidRange.Contains(f) {
			return fmt.Errorf("xtce: value %v outside valid range [%g, %g]", eng, t.ValidRange.Min, t.ValidRange.Max)
		}
	}
	raw, err := uncalibrateEng(t.Calibrator, eng)
	if err != nil {
		return err
	}
	return t.Encoding.Encode(s, raw)
}

func calibrateRaw(cal *PolynomialCalibrator, raw interface{}) (interface{}, error) {
	if cal == nil {
		return raw, nil
	}
	f, err := asFloat(raw)
	if err != nil {
		return nil, fmt.Errorf("xtce: cannot calibrate non-numeric raw value %v: %w", raw, err)
	}
	return cal.Calibrate(f), nil
}

func uncalibrateEng(cal *PolynomialCalibrator, eng interface{}) (interface{}, error) {
	if cal == nil {
		return eng, nil
	}
	f, err := asFloat(eng)
	if err != nil {
		return nil, fmt.Errorf("xtce: cannot uncalibrate non-numeric engineering value %v: %w", eng, err)
	}
	x, err := cal.Uncalibrate(f)
	if err != nil {
		return nil, &EncodeError{Msg: "calibration inverse failed", Err: err}
	}
	return int64(x), nil
}

// EnumeratedType maps a raw integer to/from a label string via a fixed
// label map. Unknown raw values decode to the raw integer with
// Value.Engineering left as that integer and Unknown set true.
type EnumeratedType struct {
	NamedType
	LabelByValue map[int64]string
	ValueByLabel map[string]int64
}

func (t *EnumeratedType) TypeName() string { return t.Name }
func (t *EnumeratedType) isParameterType() {}

func (t *EnumeratedType) Decode(s *BitStream, ctx decodeContext) (Value, error) {
	raw, err := t.Encoding.Decode(s, ctx)
	if err != nil {
		return Value{}, err
	}
	rawInt, err := asInt64(raw)
	if err != nil {
		return Value{}, err
	}
	if label, ok := t.LabelByValue[rawInt]; ok {
		return Value{Raw: raw, Engineering: label}, nil
	}
	return Value{Raw: raw, Engineering: rawInt, Unknown: true}, nil
}

func (t *EnumeratedType) Encode(s *BitStream, eng interface{}) error {
	var rawInt int64
	switch v := eng.(type) {
	case string:
		n, ok := t.ValueByLabel[v]
		if !ok {
			return fmt.Errorf("xtce: unknown enumeration label %q", v)
		}
		rawInt = n
	default:
		n, err := asInt64(eng)
		if err != nil {
			return fmt.Errorf("xtce: enumeration value must be a label or integer, got %T", eng)
		}
		rawInt = n
	}
	return t.Encoding.Encode(s, uint64OrInt64(t.Encoding.Signed, rawInt))
}

func uint64OrInt64(signed Signedness, v int64) interface{} {
	if signed == TwosComplement {
		return v
	}
	return uint64(v)
}

// BooleanType decodes an IntegerEncoding of width >= 1: raw 0 decodes to
// ZeroString, nonzero to OneString.
type BooleanType struct {
	NamedType
	ZeroString string // default "False"
	OneString  string // default "True"
}

func (t *BooleanType) TypeName() string { return t.Name }
func (t *BooleanType) isParameterType() {}

func (t *BooleanType) Decode(s *BitStream, ctx decodeContext) (Value, error) {
	raw, err := t.Encoding.Decode(s, ctx)
	if err != nil {
		return Value{}, err
	}
	rawInt, err := asInt64(raw)
	if err != nil {
		return Value{}, err
	}
	if rawInt == 0 {
		return Value{Raw: raw, Engineering: t.zeroString()}, nil
	}
	return Value{Raw: raw, Engineering: t.oneString()}, nil
}

func (t *BooleanType) zeroString() string {
	if t.ZeroString != "" {
		return t.ZeroString
	}
	return "False"
}

func (t *BooleanType) oneString() string {
	if t.OneString != "" {
		return t.OneString
	}
	return "True"
}

func (t *BooleanType) Encode(s *BitStream, eng interface{}) error {
	str, ok := eng.(string)
	if !ok {
		return fmt.Errorf("xtce: boolean value must be a string, got %T", eng)
	}
	switch str {
	case t.zeroString():
		return t.Encoding.Encode(s, uint64(0))
	case t.oneString():
		return t.Encoding.Encode(s, uint64(1))
	default:
		return fmt.Errorf("xtce: unrecognized boolean string %q", str)
	}
}

// StringType decodes/encodes via its StringEncoding.
type StringType struct {
	NamedType
}

func (t *StringType) TypeName() string { return t.Name }
func (t *StringType) isParameterType() {}

func (t *StringType) Decode(s *BitStream, ctx decodeContext) (Value, error) {
	raw, err := t.Encoding.Decode(s, ctx)
	if err != nil {
		return Value{}, err
	}
	return Value{Raw: raw, Engineering: raw}, nil
}

func (t *StringType) Encode(s *BitStream, eng interface{}) error {
	return t.Encoding.Encode(s, eng)
}

// BinaryType decodes/encodes a byte sequence via its BinaryEncoding.
type BinaryType struct {
	NamedType
}

func (t *BinaryType) TypeName() string { return t.Name }
func (t *BinaryType) isParameterType() {}

func (t *BinaryType) Decode(s *BitStream, ctx decodeContext) (Value, error) {
	raw, err := t.Encoding.Decode(s, ctx)
	if err != nil {
		return Value{}, err
	}
	return Value{Raw: raw, Engineering: raw}, nil
}

func (t *BinaryType) Encode(s *BitStream, eng interface{}) error {
	return t.Encoding.Encode(s, eng)
}

// Epoch identifies the zero point an AbsoluteTimeType's seconds count is
// relative to.
type Epoch int

const (
	EpochTAI Epoch = iota
	EpochJ2000
	EpochUnix
	EpochGPS
)

// AbsoluteTimeType is hardcoded to an unsigned 32-bit integer encoding
// per spec.md (Open Question: the XTCE standard permits richer
// configurations; this repo deliberately does not support them).
type AbsoluteTimeType struct {
	NamedType
	ReferenceEpoch Epoch
	Offset         float64
	Scale          float64 // default 1.0
}

func (t *AbsoluteTimeType) TypeName() string { return t.Name }
func (t *AbsoluteTimeType) isParameterType() {}

func (t *AbsoluteTimeType) scale() float64 {
	if t.Scale == 0 {
		return 1.0
	}
	return t.Scale
}

func (t *AbsoluteTimeType) Decode(s *BitStream, ctx decodeContext) (Value, error) {
	raw, err := s.ReadUnsigned(32)
	if err != nil {
		return Value{}, err
	}
	seconds := float64(raw)*t.scale() + t.Offset
	return Value{Raw: raw, Engineering: seconds}, nil
}

func (t *AbsoluteTimeType) Encode(s *BitStream, eng interface{}) error {
	f, err := asFloat(eng)
	if err != nil {
		return err
	}
	raw := (f - t.Offset) / t.scale()
	if raw < 0 || raw > 4294967295 {
		return fmt.Errorf("xtce: absolute time value %v out of encodable range", eng)
	}
	return s.WriteUnsigned(uint64(raw), 32)
}

// ArrayDimension is either a fixed length or a reference to an
// already-decoded integer parameter that holds the length.
type ArrayDimension struct {
	Fixed        *int
	SizeParamRef string
}

// ArrayType decodes/encodes an ordered sequence of ElementType values.
type ArrayType struct {
	Name        string
	ElementType ParameterType
	Dimension   ArrayDimension
}

func (t *ArrayType) TypeName() string { return t.Name }
func (t *ArrayType) isParameterType() {}

func (t *ArrayType) length(ctx decodeContext) (int, error) {
	if t.Dimension.Fixed != nil {
		return *t.Dimension.Fixed, nil
	}
	n, ok := ctx.rawInt(t.Dimension.SizeParamRef)
	if !ok {
		return 0, fmt.Errorf("xtce: array dimension parameter %q not yet decoded", t.Dimension.SizeParamRef)
	}
	return int(n), nil
}

func (t *ArrayType) Decode(s *BitStream, ctx decodeContext) (Value, error) {
	n, err := t.length(ctx)
	if err != nil {
		return Value{}, err
	}
	raws := make([]interface{}, n)
	engs := make([]interface{}, n)
	for i := 0; i < n; i++ {
		v, err := t.ElementType.Decode(s, ctx)
		if err != nil {
			return Value{}, fmt.Errorf("xtce: array element %d: %w", i, err)
		}
		raws[i] = v.Raw
		engs[i] = v.Engineering
	}
	return Value{Raw: raws, Engineering: engs}, nil
}

func (t *ArrayType) Encode(s *BitStream, eng interface{}) error {
	vals, ok := eng.([]interface{})
	if !ok {
		return fmt.Errorf("xtce: array value must be []interface{}, got %T", eng)
	}
	if t.Dimension.Fixed != nil && len(vals) != *t.Dimension.Fixed {
		return fmt.Errorf("xtce: array length %d does not match declared length %d", len(vals), *t.Dimension.Fixed)
	}
	for i, v := range vals {
		if err := t.ElementType.Encode(s, v); err != nil {
			return fmt.Errorf("xtce: array element %d: %w", i, err)
		}
	}
	return nil
}

// parseEnumRawOperand is used by the comparison evaluator to coerce an
// enumeration comparison value back to an integer when
// useCalibratedValue is false, in which case the Comparison's Value
// holds the raw numeric value rather than a label.
func parseEnumRawOperand(raw string) (int64, error) {
	return strconv.ParseInt(raw, 10, 64)
}
