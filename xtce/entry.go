package xtce

// EntryKind discriminates the Entry tagged union.
type EntryKind int

const (
	EntryParameterRef EntryKind = iota
	EntryArgumentRef
	EntryContainerRef
	EntryFixedValue
)

// LocationReference selects what a LocationInContainerInBits offset is
// relative to.
type LocationReference int

const (
	LocationStartOfContainer LocationReference = iota
	LocationPreviousEntry
)

// Location overrides the running bitstream cursor for one entry.
type Location struct {
	Reference LocationReference
	OffsetBits int
}

// Entry is one item of a Container's ordered entry list.
type Entry struct {
	Kind EntryKind

	// EntryParameterRef
	ParameterRef string
	Location     *Location

	// EntryArgumentRef
	ArgumentRef string

	// EntryContainerRef
	ContainerRef     string
	IncludeCondition *ComparisonList

	// EntryFixedValue
	SizeInBits int
	HexValue   []byte
}
