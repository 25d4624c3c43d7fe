package loader

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/antaris-inc/go-xtce/xtce"
)

func atoiOr(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func atofOr(s string, def float64) float64 {
	if s == "" {
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return f
}

func signedness(encoding string) xtce.Signedness {
	if strings.EqualFold(encoding, "twosComplement") || strings.EqualFold(encoding, "signMagnitude") {
		return xtce.TwosComplement
	}
	return xtce.Unsigned
}

func charset(encoding string) xtce.CharSet {
	switch strings.ToUpper(encoding) {
	case "UTF-16", "UTF16":
		return xtce.UTF16
	case "US-ASCII", "USASCII", "ASCII":
		return xtce.USASCII
	case "ISO-8859-1", "ISO88591", "LATIN1":
		return xtce.ISO88591
	case "WINDOWS-1252", "CP1252":
		return xtce.Windows1252
	default:
		return xtce.UTF8
	}
}

func epochOf(s string) xtce.Epoch {
	switch strings.ToUpper(s) {
	case "J2000":
		return xtce.EpochJ2000
	case "UNIX", "POSIX":
		return xtce.EpochUnix
	case "GPS":
		return xtce.EpochGPS
	default:
		return xtce.EpochTAI
	}
}

func buildIntegerEncoding(x XMLIntegerDataEncoding) xtce.DataEncoding {
	return xtce.DataEncoding{
		Kind:       xtce.EncodingInteger,
		SizeInBits: atoiOr(x.SizeInBits, 8),
		Signed:     signedness(x.Encoding),
	}
}

func buildFloatEncoding(x XMLFloatDataEncoding) xtce.DataEncoding {
	return xtce.DataEncoding{
		Kind:       xtce.EncodingFloat,
		SizeInBits: atoiOr(x.SizeInBits, 32),
	}
}

func buildSizing(path string, v XMLVariable) xtce.Sizing {
	switch {
	case v.Fixed != nil:
		return xtce.Sizing{Kind: xtce.SizingFixed, Bits: atoiOr(v.Fixed.SizeInBits.FixedValue, 0)}
	case v.Dynamic != nil:
		return xtce.Sizing{
			Kind:         xtce.SizingDynamic,
			SizeParamRef: resolveRef(path, v.Dynamic.DynamicValue.ParameterInstanceRef.ParameterRef),
			SizeInBitsIs: xtce.SizeOfStringData,
		}
	case v.TerminationChar != nil:
		return xtce.Sizing{Kind: xtce.SizingTerminated, TerminatorByte: terminatorByte(v.TerminationChar.Text)}
	default:
		return xtce.Sizing{Kind: xtce.SizingFixed, Bits: 0}
	}
}

func terminatorByte(s string) byte {
	if s == "" {
		return 0
	}
	if n, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 8); err == nil {
		return byte(n)
	}
	return s[0]
}

func buildStringEncoding(path string, x XMLStringDataEncoding) xtce.DataEncoding {
	return xtce.DataEncoding{
		Kind:    xtce.EncodingString,
		CharSet: charset(x.Encoding),
		Sizing:  buildSizing(path, x.SizeInBits),
	}
}

func buildBinaryEncoding(path string, x XMLBinaryDataEncoding) xtce.DataEncoding {
	return xtce.DataEncoding{
		Kind:   xtce.EncodingBinary,
		Sizing: buildSizing(path, x.SizeInBits),
	}
}

func buildCalibrator(x XMLDefaultCalibrator) *xtce.PolynomialCalibrator {
	if len(x.PolynomialCalibrator.Terms) == 0 {
		return nil
	}
	terms := make([]xtce.Term, 0, len(x.PolynomialCalibrator.Terms))
	for _, t := range x.PolynomialCalibrator.Terms {
		terms = append(terms, xtce.Term{
			Coefficient: atofOr(t.Coefficient, 0),
			Exponent:    atoiOr(t.Exponent, 0),
		})
	}
	return &xtce.PolynomialCalibrator{Terms: terms}
}

func buildValidRange(x XMLValidRange) *xtce.ValidRange {
	if x.MinInclusive == "" && x.MaxInclusive == "" {
		return nil
	}
	return &xtce.ValidRange{
		Min: atofOr(x.MinInclusive, 0),
		Max: atofOr(x.MaxInclusive, 0),
	}
}

func buildEnumMaps(list XMLEnumerationList) (map[int64]string, map[string]int64, error) {
	byValue := map[int64]string{}
	byLabel := map[string]int64{}
	for _, e := range list.Enumerations {
		v, err := strconv.ParseInt(e.Value, 10, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("loader: bad enumeration value %q: %w", e.Value, err)
		}
		byValue[v] = e.Label
		byLabel[e.Label] = v
	}
	return byValue, byLabel, nil
}

// buildParameterTypeSet lowers one SpaceSystem's ParameterTypeSet,
// registering each built type into both the node-local map (for the
// schema's tree walk) and the builder's global name->type map (so
// ArrayParameterType element references, which may be declared anywhere
// in the document, can be resolved in a later pass).
func (b *builder) buildParameterTypeSet(path string, set XMLParameterTypeSet, into map[string]xtce.ParameterType) error {
	if b.parameterTypes == nil {
		b.parameterTypes = map[string]xtce.ParameterType{}
	}

	for _, it := range set.IntegerParameterTypes {
		qname := path + "/" + it.Name
		pt := &xtce.IntegerType{NamedType: xtce.NamedType{
			Name:       qname,
			Encoding:   buildIntegerEncoding(it.IntegerDataEncoding),
			Calibrator: buildCalibrator(it.DefaultCalibrator),
			ValidRange: buildValidRange(it.ValidRange),
		}}
		into[qname] = pt
		b.parameterTypes[qname] = pt
	}
	for _, ft := range set.FloatParameterTypes {
		qname := path + "/" + ft.Name
		enc := buildFloatEncoding(ft.FloatDataEncoding)
		if ft.FloatDataEncoding.SizeInBits == "" && ft.IntegerDataEncoding.SizeInBits != "" {
			enc = buildIntegerEncoding(ft.IntegerDataEncoding)
		}
		pt := &xtce.FloatType{NamedType: xtce.NamedType{
			Name:       qname,
			Encoding:   enc,
			Calibrator: buildCalibrator(ft.DefaultCalibrator),
			ValidRange: buildValidRange(ft.ValidRange),
		}}
		into[qname] = pt
		b.parameterTypes[qname] = pt
	}
	for _, st := range set.StringParameterTypes {
		qname := path + "/" + st.Name
		pt := &xtce.StringType{NamedType: xtce.NamedType{
			Name:     qname,
			Encoding: buildStringEncoding(path, st.StringDataEncoding),
		}}
		into[qname] = pt
		b.parameterTypes[qname] = pt
	}
	for _, bt := range set.BinaryParameterTypes {
		qname := path + "/" + bt.Name
		pt := &xtce.BinaryType{NamedType: xtce.NamedType{
			Name:     qname,
			Encoding: buildBinaryEncoding(path, bt.BinaryDataEncoding),
		}}
		into[qname] = pt
		b.parameterTypes[qname] = pt
	}
	for _, et := range set.EnumeratedParameterTypes {
		qname := path + "/" + et.Name
		byValue, byLabel, err := buildEnumMaps(et.EnumerationList)
		if err != nil {
			return err
		}
		pt := &xtce.EnumeratedType{
			NamedType:    xtce.NamedType{Name: qname, Encoding: buildIntegerEncoding(et.IntegerDataEncoding)},
			LabelByValue: byValue,
			ValueByLabel: byLabel,
		}
		into[qname] = pt
		b.parameterTypes[qname] = pt
	}
	for _, bt := range set.BooleanParameterTypes {
		qname := path + "/" + bt.Name
		pt := &xtce.BooleanType{
			NamedType:  xtce.NamedType{Name: qname, Encoding: buildIntegerEncoding(bt.IntegerDataEncoding)},
			ZeroString: bt.ZeroStringValue,
			OneString:  bt.OneStringValue,
		}
		into[qname] = pt
		b.parameterTypes[qname] = pt
	}
	for _, at := range set.AbsoluteTimeParameterTypes {
		qname := path + "/" + at.Name
		pt := &xtce.AbsoluteTimeType{
			NamedType:      xtce.NamedType{Name: qname},
			ReferenceEpoch: epochOf(at.ReferenceTime),
			Offset:         atofOr(at.Offset, 0),
		}
		into[qname] = pt
		b.parameterTypes[qname] = pt
	}
	for _, arr := range set.ArrayParameterTypes {
		qname := path + "/" + arr.Name
		b.registerPendingArray(pendingArray{
			isArgument: false,
			qname:      qname,
			elementRef: resolveRef(path, arr.ArrayTypeRef),
			fixedLen:   arrayFixedLen(arr.Dimension),
			sizeRef:    arraySizeRef(path, arr.Dimension),
			ownerPT:    into,
		})
	}
	return nil
}

func (b *builder) buildArgumentTypeSet(path string, set XMLArgumentTypeSet, into map[string]xtce.ArgumentType) error {
	if b.argumentTypes == nil {
		b.argumentTypes = map[string]xtce.ArgumentType{}
	}

	for _, it := range set.IntegerArgumentTypes {
		qname := path + "/" + it.Name
		base := xtce.IntegerType{NamedType: xtce.NamedType{
			Name:       qname,
			Encoding:   buildIntegerEncoding(it.IntegerDataEncoding),
			Calibrator: buildCalibrator(it.DefaultCalibrator),
			ValidRange: buildValidRange(it.ValidRange),
		}}
		at := &xtce.IntegerArgumentType{IntegerType: base, RangeSet: xtce.ValidRangeSet{Range: base.ValidRange, AppliesToCalibratedValue: true}}
		into[qname] = at
		b.argumentTypes[qname] = at
	}
	for _, ft := range set.FloatArgumentTypes {
		qname := path + "/" + ft.Name
		enc := buildFloatEncoding(ft.FloatDataEncoding)
		if ft.FloatDataEncoding.SizeInBits == "" && ft.IntegerDataEncoding.SizeInBits != "" {
			enc = buildIntegerEncoding(ft.IntegerDataEncoding)
		}
		base := xtce.FloatType{NamedType: xtce.NamedType{
			Name:       qname,
			Encoding:   enc,
			Calibrator: buildCalibrator(ft.DefaultCalibrator),
			ValidRange: buildValidRange(ft.ValidRange),
		}}
		at := &xtce.FloatArgumentType{FloatType: base, RangeSet: xtce.ValidRangeSet{Range: base.ValidRange, AppliesToCalibratedValue: true}}
		into[qname] = at
		b.argumentTypes[qname] = at
	}
	for _, et := range set.EnumeratedArgumentTypes {
		qname := path + "/" + et.Name
		byValue, byLabel, err := buildEnumMaps(et.EnumerationList)
		if err != nil {
			return err
		}
		at := &xtce.EnumeratedArgumentType{EnumeratedType: xtce.EnumeratedType{
			NamedType:    xtce.NamedType{Name: qname, Encoding: buildIntegerEncoding(et.IntegerDataEncoding)},
			LabelByValue: byValue,
			ValueByLabel: byLabel,
		}}
		into[qname] = at
		b.argumentTypes[qname] = at
	}
	for _, bt := range set.BooleanArgumentTypes {
		qname := path + "/" + bt.Name
		at := &xtce.BooleanArgumentType{BooleanType: xtce.BooleanType{
			NamedType:  xtce.NamedType{Name: qname, Encoding: buildIntegerEncoding(bt.IntegerDataEncoding)},
			ZeroString: bt.ZeroStringValue,
			OneString:  bt.OneStringValue,
		}}
		into[qname] = at
		b.argumentTypes[qname] = at
	}
	for _, at := range set.AbsoluteTimeArgumentTypes {
		qname := path + "/" + at.Name
		a := &xtce.AbsoluteTimeArgumentType{AbsoluteTimeType: xtce.AbsoluteTimeType{
			NamedType:      xtce.NamedType{Name: qname},
			ReferenceEpoch: epochOf(at.ReferenceTime),
			Offset:         atofOr(at.Offset, 0),
		}}
		into[qname] = a
		b.argumentTypes[qname] = a
	}
	for _, arr := range set.ArrayArgumentTypes {
		qname := path + "/" + arr.Name
		b.registerPendingArray(pendingArray{
			isArgument: true,
			qname:      qname,
			elementRef: resolveRef(path, arr.ArrayTypeRef),
			fixedLen:   arrayFixedLen(arr.Dimension),
			sizeRef:    arraySizeRef(path, arr.Dimension),
			ownerAT:    into,
		})
	}
	return nil
}

func (b *builder) registerPendingArray(p pendingArray) {
	b.arrayPending[p.qname] = p
}

func arrayFixedLen(d XMLDimension) *int {
	if d.EndingIndex.FixedValue == "" {
		return nil
	}
	end := atoiOr(d.EndingIndex.FixedValue, -1)
	start := atoiOr(d.StartingIndex.FixedValue, 0)
	if end < start {
		return nil
	}
	n := end - start + 1
	return &n
}

func arraySizeRef(path string, d XMLDimension) string {
	if d.EndingIndex.DynamicValue.ParameterInstanceRef.ParameterRef == "" {
		return ""
	}
	return resolveRef(path, d.EndingIndex.DynamicValue.ParameterInstanceRef.ParameterRef)
}

// resolveArrays fills in every ArrayParameterType/ArrayArgumentType
// registered by buildParameterTypeSet/buildArgumentTypeSet, once every
// non-array type in the document has been built, since an array's
// element type may be declared after the array in document order.
func (b *builder) resolveArrays() error {
	for qname, p := range b.arrayPending {
		dim := xtce.ArrayDimension{Fixed: p.fixedLen, SizeParamRef: p.sizeRef}
		if p.isArgument {
			elem, ok := b.argumentTypes[p.elementRef]
			if !ok {
				return fmt.Errorf("loader: array argument type %s: dangling element type reference %q", qname, p.elementRef)
			}
			at := &xtce.ArrayArgumentType{Name: qname, ElementType: elem, Dimension: dim}
			b.argumentTypes[qname] = at
			p.ownerAT[qname] = at
		} else {
			elem, ok := b.parameterTypes[p.elementRef]
			if !ok {
				return fmt.Errorf("loader: array parameter type %s: dangling element type reference %q", qname, p.elementRef)
			}
			pt := &xtce.ArrayType{Name: qname, ElementType: elem, Dimension: dim}
			b.parameterTypes[qname] = pt
			p.ownerPT[qname] = pt
		}
	}
	return nil
}
