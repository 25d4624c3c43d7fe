// Package loader parses an XTCE 1.3 XML document into an xtce.SpaceSystem.
package loader

import "encoding/xml"

// XMLSpaceSystem is the root element of an XTCE document. Its struct
// tags mirror the element tree; unsupported constructs (AggregateType,
// RelativeTime, Alarms, Algorithms, Streams, Aliases, MessageSet,
// ServiceSet) simply have no corresponding field and are dropped by
// encoding/xml without error.
type XMLSpaceSystem struct {
	XMLName          xml.Name            `xml:"SpaceSystem"`
	Name             string              `xml:"name,attr"`
	ShortDescription string              `xml:"shortDescription,attr"`
	Header           XMLHeader           `xml:"Header"`
	TelemetryMetaData XMLTelemetryMetaData `xml:"TelemetryMetaData"`
	CommandMetaData  XMLCommandMetaData  `xml:"CommandMetaData"`
	SpaceSystems     []XMLSpaceSystem    `xml:"SpaceSystem"`
}

type XMLHeader struct {
	Date    string `xml:"date,attr"`
	Version string `xml:"version,attr"`
}

// --- ParameterTypeSet / ArgumentTypeSet ---

type XMLTelemetryMetaData struct {
	ParameterTypeSet XMLParameterTypeSet `xml:"ParameterTypeSet"`
	ParameterSet     XMLParameterSet     `xml:"ParameterSet"`
	ContainerSet     XMLContainerSet     `xml:"ContainerSet"`
}

type XMLCommandMetaData struct {
	ArgumentTypeSet XMLArgumentTypeSet `xml:"ArgumentTypeSet"`
	MetaCommandSet  XMLMetaCommandSet  `xml:"MetaCommandSet"`
}

// XMLArgumentTypeSet mirrors XMLParameterTypeSet's field shapes but under
// the ArgumentType element names XTCE uses for CommandMetaData.
type XMLArgumentTypeSet struct {
	IntegerArgumentTypes      []XMLIntegerParameterType      `xml:"IntegerArgumentType"`
	FloatArgumentTypes        []XMLFloatParameterType        `xml:"FloatArgumentType"`
	EnumeratedArgumentTypes   []XMLEnumeratedParameterType    `xml:"EnumeratedArgumentType"`
	BooleanArgumentTypes      []XMLBooleanParameterType       `xml:"BooleanArgumentType"`
	AbsoluteTimeArgumentTypes []XMLAbsoluteTimeParameterType  `xml:"AbsoluteTimeArgumentType"`
	ArrayArgumentTypes        []XMLArrayParameterType         `xml:"ArrayArgumentType"`
}

type XMLParameterTypeSet struct {
	IntegerParameterTypes     []XMLIntegerParameterType     `xml:"IntegerParameterType"`
	FloatParameterTypes       []XMLFloatParameterType       `xml:"FloatParameterType"`
	StringParameterTypes      []XMLStringParameterType      `xml:"StringParameterType"`
	BinaryParameterTypes      []XMLBinaryParameterType      `xml:"BinaryParameterType"`
	EnumeratedParameterTypes  []XMLEnumeratedParameterType  `xml:"EnumeratedParameterType"`
	BooleanParameterTypes     []XMLBooleanParameterType     `xml:"BooleanParameterType"`
	AbsoluteTimeParameterTypes []XMLAbsoluteTimeParameterType `xml:"AbsoluteTimeParameterType"`
	ArrayParameterTypes       []XMLArrayParameterType       `xml:"ArrayParameterType"`
}

type XMLUnit struct {
	Description string `xml:"description,attr"`
	Text        string `xml:",chardata"`
}

type XMLUnitSet struct {
	Units []XMLUnit `xml:"Unit"`
}

type XMLIntegerDataEncoding struct {
	SizeInBits string `xml:"sizeInBits,attr"`
	Encoding   string `xml:"encoding,attr"` // "unsigned" | "twosComplement"
}

type XMLFloatDataEncoding struct {
	SizeInBits string `xml:"sizeInBits,attr"`
	Encoding   string `xml:"encoding,attr"` // "IEEE754_1985"
}

type XMLSizeInBits struct {
	FixedValue string `xml:"FixedValue"`
}

type XMLFixedSize struct {
	SizeInBits XMLSizeInBits `xml:"SizeInBits"`
}

type XMLDynamicValue struct {
	ParameterInstanceRef XMLParameterInstanceRef `xml:"ParameterInstanceRef"`
}

type XMLParameterInstanceRef struct {
	ParameterRef string `xml:"parameterRef,attr"`
}

type XMLSizeInBitsDynamic struct {
	DynamicValue XMLDynamicValue `xml:"DynamicValue"`
}

type XMLTerminationChar struct {
	Text string `xml:",chardata"`
}

type XMLVariable struct {
	Fixed        *XMLFixedSize         `xml:"Fixed"`
	Dynamic      *XMLSizeInBitsDynamic `xml:"DynamicValue"`
	TerminationChar *XMLTerminationChar `xml:"TerminationChar"`
}

type XMLStringDataEncoding struct {
	Encoding   string      `xml:"encoding,attr"` // charset, e.g. "UTF-8"
	SizeInBits XMLVariable `xml:"SizeInBits"`
}

type XMLBinaryDataEncoding struct {
	SizeInBits XMLVariable `xml:"SizeInBits"`
}

type XMLValidRange struct {
	MinInclusive string `xml:"minInclusive,attr"`
	MaxInclusive string `xml:"maxInclusive,attr"`
}

type XMLTerm struct {
	Coefficient string `xml:"coefficient,attr"`
	Exponent    string `xml:"exponent,attr"`
}

type XMLPolynomialCalibrator struct {
	Terms []XMLTerm `xml:"Term"`
}

type XMLDefaultCalibrator struct {
	PolynomialCalibrator XMLPolynomialCalibrator `xml:"PolynomialCalibrator"`
}

type XMLIntegerParameterType struct {
	Name                string                 `xml:"name,attr"`
	ShortDescription    string                 `xml:"shortDescription,attr"`
	UnitSet             XMLUnitSet             `xml:"UnitSet"`
	IntegerDataEncoding XMLIntegerDataEncoding `xml:"IntegerDataEncoding"`
	DefaultCalibrator   XMLDefaultCalibrator   `xml:"IntegerDataEncoding>DefaultCalibrator"`
	ValidRange          XMLValidRange          `xml:"ValidRange"`
}

type XMLFloatParameterType struct {
	Name              string               `xml:"name,attr"`
	ShortDescription  string               `xml:"shortDescription,attr"`
	UnitSet           XMLUnitSet           `xml:"UnitSet"`
	FloatDataEncoding XMLFloatDataEncoding `xml:"FloatDataEncoding"`
	IntegerDataEncoding XMLIntegerDataEncoding `xml:"IntegerDataEncoding"`
	DefaultCalibrator XMLDefaultCalibrator `xml:"IntegerDataEncoding>DefaultCalibrator"`
	ValidRange        XMLValidRange        `xml:"ValidRange"`
}

type XMLStringParameterType struct {
	Name               string                `xml:"name,attr"`
	ShortDescription   string                `xml:"shortDescription,attr"`
	StringDataEncoding XMLStringDataEncoding `xml:"StringDataEncoding"`
}

type XMLBinaryParameterType struct {
	Name               string                `xml:"name,attr"`
	ShortDescription   string                `xml:"shortDescription,attr"`
	BinaryDataEncoding XMLBinaryDataEncoding `xml:"BinaryDataEncoding"`
}

type XMLEnumeration struct {
	Value            string `xml:"value,attr"`
	Label            string `xml:"label,attr"`
	ShortDescription string `xml:"shortDescription,attr"`
}

type XMLEnumerationList struct {
	Enumerations []XMLEnumeration `xml:"Enumeration"`
}

type XMLEnumeratedParameterType struct {
	Name                string                 `xml:"name,attr"`
	ShortDescription    string                 `xml:"shortDescription,attr"`
	IntegerDataEncoding XMLIntegerDataEncoding `xml:"IntegerDataEncoding"`
	EnumerationList     XMLEnumerationList     `xml:"EnumerationList"`
}

type XMLBooleanParameterType struct {
	Name                string                 `xml:"name,attr"`
	ZeroStringValue     string                 `xml:"zeroStringValue,attr"`
	OneStringValue      string                 `xml:"oneStringValue,attr"`
	ShortDescription    string                 `xml:"shortDescription,attr"`
	IntegerDataEncoding XMLIntegerDataEncoding `xml:"IntegerDataEncoding"`
}

type XMLAbsoluteTimeParameterType struct {
	Name             string `xml:"name,attr"`
	ShortDescription string `xml:"shortDescription,attr"`
	Offset           string `xml:"offset,attr"`
	ReferenceTime    string `xml:"referenceTime,attr"`
}

type XMLArrayParameterType struct {
	Name         string       `xml:"name,attr"`
	ArrayTypeRef string       `xml:"arrayTypeRef,attr"`
	Dimension    XMLDimension `xml:"DimensionList>Dimension"`
}

type XMLIndexValue struct {
	FixedValue   string                  `xml:"FixedValue"`
	DynamicValue XMLDynamicValue         `xml:"DynamicValue"`
}

type XMLDimension struct {
	StartingIndex XMLIndexValue `xml:"StartingIndex"`
	EndingIndex   XMLIndexValue `xml:"EndingIndex"`
}

// --- ParameterSet / ArgumentList ---

type XMLParameter struct {
	Name             string `xml:"name,attr"`
	ParameterTypeRef string `xml:"parameterTypeRef,attr"`
	ShortDescription string `xml:"shortDescription,attr"`
}

type XMLParameterSet struct {
	Parameters []XMLParameter `xml:"Parameter"`
}

type XMLArgument struct {
	Name             string `xml:"name,attr"`
	ArgumentTypeRef  string `xml:"argumentTypeRef,attr"`
	ShortDescription string `xml:"shortDescription,attr"`
}

type XMLArgumentList struct {
	Arguments []XMLArgument `xml:"Argument"`
}

// --- ContainerSet / EntryList ---

type XMLLocationInContainerInBits struct {
	ReferenceLocation string `xml:"referenceLocation,attr"`
	FixedValue         string `xml:"FixedValue"`
}

type XMLComparison struct {
	ParameterRef       string `xml:"parameterRef,attr"`
	Value              string `xml:"value,attr"`
	ComparisonOperator string `xml:"comparisonOperator,attr"`
	UseCalibratedValue string `xml:"useCalibratedValue,attr"`
}

type XMLComparisonList struct {
	Comparisons []XMLComparison `xml:"Comparison"`
}

type XMLRestrictionCriteria struct {
	Comparison     *XMLComparison     `xml:"Comparison"`
	ComparisonList *XMLComparisonList `xml:"ComparisonList"`
}

type XMLIncludeCondition struct {
	Comparison     *XMLComparison     `xml:"Comparison"`
	ComparisonList *XMLComparisonList `xml:"ComparisonList"`
}

type XMLFixedValueEntry struct {
	Name        string `xml:"name,attr"`
	SizeInBits  string `xml:"sizeInBits,attr"`
	BinaryValue string `xml:"binaryValue,attr"`
}

// XMLEntry is a catch-all over the four EntryList element kinds, used via
// the ",any" struct tag so EntryList preserves document order: bit
// layout depends on entry order, which per-kind slices would lose.
// XMLName.Local discriminates which fields are meaningful.
type XMLEntry struct {
	XMLName xml.Name

	ParameterRef string `xml:"parameterRef,attr"`
	ArgumentRef  string `xml:"argumentRef,attr"`
	ContainerRef string `xml:"containerRef,attr"`
	SizeInBits   string `xml:"sizeInBits,attr"`
	BinaryValue  string `xml:"binaryValue,attr"`

	LocationInContainerInBits *XMLLocationInContainerInBits `xml:"LocationInContainerInBits"`
	IncludeCondition          *XMLIncludeCondition           `xml:"IncludeCondition"`
}

type XMLEntryList struct {
	Entries []XMLEntry `xml:",any"`
}

type XMLBaseContainer struct {
	ContainerRef       string                  `xml:"containerRef,attr"`
	RestrictionCriteria *XMLRestrictionCriteria `xml:"RestrictionCriteria"`
}

type XMLSequenceContainer struct {
	Name             string           `xml:"name,attr"`
	ShortDescription string           `xml:"shortDescription,attr"`
	EntryList        XMLEntryList     `xml:"EntryList"`
	BaseContainer    *XMLBaseContainer `xml:"BaseContainer"`
}

type XMLContainerSet struct {
	SequenceContainers []XMLSequenceContainer `xml:"SequenceContainer"`
}

// --- MetaCommandSet ---

type XMLCommandContainer struct {
	Name             string            `xml:"name,attr"`
	EntryList        XMLEntryList      `xml:"EntryList"`
	BaseContainer    *XMLBaseContainer `xml:"BaseContainer"`
}

type XMLMetaCommand struct {
	Name             string               `xml:"name,attr"`
	ShortDescription string               `xml:"shortDescription,attr"`
	ArgumentList     XMLArgumentList      `xml:"ArgumentList"`
	CommandContainer XMLCommandContainer  `xml:"CommandContainer"`
	BaseMetaCommand  *XMLBaseMetaCommand  `xml:"BaseMetaCommand"`
}

type XMLBaseMetaCommand struct {
	MetaCommandRef string `xml:"metaCommandRef,attr"`
}

type XMLMetaCommandSet struct {
	MetaCommands []XMLMetaCommand `xml:"MetaCommand"`
}
