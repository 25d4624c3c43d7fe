package xtce

import "fmt"

// ValidRangeSet wraps an ArgumentType's ValidRange together with the flag
// that says whether the bound applies to the calibrated (engineering) or
// raw value.
type ValidRangeSet struct {
	Range                      *ValidRange
	AppliesToCalibratedValue bool // default true
}

// ArgumentType is the closed tagged union of supported argument types:
// Integer, Float, Enumerated, Boolean, AbsoluteTime, Array (spec.md §3's
// supported subset — no String/Binary argument types).
type ArgumentType interface {
	TypeName() string
	Decode(s *BitStream, ctx decodeContext) (Value, error)
	Encode(s *BitStream, eng interface{}) error
	isArgumentType()
}

// IntegerArgumentType decodes/encodes identically to IntegerType but
// checks its ValidRangeSet against the raw or calibrated value per
// AppliesToCalibratedValue.
type IntegerArgumentType struct {
	IntegerType
	RangeSet ValidRangeSet
}

func (t *IntegerArgumentType) isArgumentType() {}

func (t *IntegerArgumentType) Encode(s *BitStream, eng interface{}) error {
	if err := checkArgumentRange(&t.RangeSet, t.Calibrator, eng); err != nil {
		return err
	}
	return t.IntegerType.Encode(s, eng)
}

// FloatArgumentType mirrors FloatType with a ValidRangeSet.
type FloatArgumentType struct {
	FloatType
	RangeSet ValidRangeSet
}

func (t *FloatArgumentType) isArgumentType() {}

func (t *FloatArgumentType) Encode(s *BitStream, eng interface{}) error {
	if err := checkArgumentRange(&t.RangeSet, t.Calibrator, eng); err != nil {
		return err
	}
	return t.FloatType.Encode(s, eng)
}

func checkArgumentRange(rs *ValidRangeSet, cal *PolynomialCalibrator, eng interface{}) error {
	if rs == nil || rs.Range == nil {
		return nil
	}
	f, err := asFloat(eng)
	if err != nil {
		return nil // non-numeric engineering values (e.g. enum labels) are checked by their own type
	}
	target := f
	if !rs.AppliesToCalibratedValue && cal != nil {
		x, err := cal.Uncalibrate(f)
		if err != nil {
			return &EncodeError{Msg: "calibration inverse failed while checking valid range", Err: err}
		}
		target = x
	}
	if !rs.Range.Contains(target) {
		return fmt.Errorf("xtce: value %v outside valid range [%g, %g]", eng, rs.Range.Min, rs.Range.Max)
	}
	return nil
}

// EnumeratedArgumentType mirrors EnumeratedType; arguments of this type
// carry no additional range constraint (enumerations are bounded by
// their label map).
type EnumeratedArgumentType struct {
	EnumeratedType
}

func (t *EnumeratedArgumentType) isArgumentType() {}

// BooleanArgumentType mirrors BooleanType.
type BooleanArgumentType struct {
	BooleanType
}

func (t *BooleanArgumentType) isArgumentType() {}

// AbsoluteTimeArgumentType mirrors AbsoluteTimeType.
type AbsoluteTimeArgumentType struct {
	AbsoluteTimeType
}

func (t *AbsoluteTimeArgumentType) isArgumentType() {}

// ArrayArgumentType mirrors ArrayType, with ElementType expressed as an
// ArgumentType rather than a ParameterType.
type ArrayArgumentType struct {
	Name        string
	ElementType ArgumentType
	Dimension   ArrayDimension
}

func (t *ArrayArgumentType) TypeName() string { return t.Name }
func (t *ArrayArgumentType) isArgumentType()  {}

func (t *ArrayArgumentType) length(ctx decodeContext) (int, error) {
	if t.Dimension.Fixed != nil {
		return *t.Dimension.Fixed, nil
	}
	n, ok := ctx.rawInt(t.Dimension.SizeParamRef)
	if !ok {
		return 0, fmt.Errorf("xtce: array dimension parameter %q not yet decoded", t.Dimension.SizeParamRef)
	}
	return int(n), nil
}

func (t *ArrayArgumentType) Decode(s *BitStream, ctx decodeContext) (Value, error) {
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

func (t *ArrayArgumentType) Encode(s *BitStream, eng interface{}) error {
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
