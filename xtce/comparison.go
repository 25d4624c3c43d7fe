package xtce

import (
	"fmt"
	"strconv"
)

// Operator is a Comparison's relational operator.
type Operator int

const (
	OpEQ Operator = iota
	OpNE
	OpLT
	OpLE
	OpGT
	OpGE
)

// Comparison is a single predicate over a previously-decoded parameter's
// value, used by RestrictionCriteria and IncludeCondition.
type Comparison struct {
	ParameterRef      string
	Operator          Operator
	Value             string
	UseCalibratedValue bool // default true
}

// ComparisonList is the AND of its Comparisons. An empty/nil list is
// vacuously true.
type ComparisonList struct {
	Comparisons []Comparison
}

// scope is the running (qualified name -> decoded value) map a
// ComparisonList is evaluated against.
type scope interface {
	lookup(name string) (Value, bool)
	paramType(name string) (interface{}, bool)
}

// Evaluate reports whether every Comparison in the list holds against sc.
func (cl *ComparisonList) Evaluate(sc scope) (bool, error) {
	if cl == nil {
		return true, nil
	}
	for _, c := range cl.Comparisons {
		ok, err := c.evaluate(sc)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (c *Comparison) evaluate(sc scope) (bool, error) {
	val, ok := sc.lookup(c.ParameterRef)
	if !ok {
		return false, fmt.Errorf("xtce: comparison references undecoded parameter %q", c.ParameterRef)
	}

	var got interface{}
	if c.UseCalibratedValue {
		got = val.Engineering
	} else {
		got = val.Raw
	}

	pt, _ := sc.paramType(c.ParameterRef)

	if !c.UseCalibratedValue && isEnumeratedType(pt) {
		want, err := parseEnumRawOperand(c.Value)
		if err != nil {
			return false, fmt.Errorf("xtce: cannot parse raw comparison value %q for %q: %w", c.Value, c.ParameterRef, err)
		}
		gf, err := asFloat(got)
		if err != nil {
			return false, fmt.Errorf("xtce: raw comparison operand for %q is not numeric: %w", c.ParameterRef, err)
		}
		return applyNumericOp(c.Operator, gf, float64(want)), nil
	}

	want, kind, err := parseComparisonValue(pt, c.Value)
	if err != nil {
		return false, err
	}

	switch kind {
	case comparisonNumeric:
		gf, err := asFloat(got)
		if err != nil {
			return false, fmt.Errorf("xtce: comparison operand for %q is not numeric: %w", c.ParameterRef, err)
		}
		return applyNumericOp(c.Operator, gf, want.(float64)), nil
	default:
		gs := fmt.Sprintf("%v", got)
		switch c.Operator {
		case OpEQ:
			return gs == want.(string), nil
		case OpNE:
			return gs != want.(string), nil
		default:
			return false, fmt.Errorf("xtce: operator %d unsupported for non-numeric comparison on %q", c.Operator, c.ParameterRef)
		}
	}
}

type comparisonKind int

const (
	comparisonNumeric comparisonKind = iota
	comparisonString
)

// parseComparisonValue parses a Comparison's string Value per the
// referenced parameter's type: numeric types parse as float64 (so integer
// and float comparisons share one numeric path), everything else
// (enum label, boolean string, plain string) compares as a string.
func parseComparisonValue(paramType interface{}, raw string) (interface{}, comparisonKind, error) {
	switch paramType.(type) {
	case *IntegerType, *FloatType, *AbsoluteTimeType,
		*IntegerArgumentType, *FloatArgumentType, *AbsoluteTimeArgumentType:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, comparisonNumeric, fmt.Errorf("xtce: cannot parse comparison value %q as number: %w", raw, err)
		}
		return f, comparisonNumeric, nil
	default:
		return raw, comparisonString, nil
	}
}

func isEnumeratedType(paramType interface{}) bool {
	switch paramType.(type) {
	case *EnumeratedType, *EnumeratedArgumentType:
		return true
	default:
		return false
	}
}

func applyNumericOp(op Operator, got, want float64) bool {
	switch op {
	case OpEQ:
		return got == want
	case OpNE:
		return got != want
	case OpLT:
		return got < want
	case OpLE:
		return got <= want
	case OpGT:
		return got > want
	case OpGE:
		return got >= want
	default:
		return false
	}
}
