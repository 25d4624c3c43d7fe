package xtce

import "fmt"

// Path identifies where in the container/entry tree an error occurred.
type Path struct {
	Container string
	EntryIdx  int
	Parameter string
}

func (p Path) String() string {
	if p.Parameter != "" {
		return fmt.Sprintf("%s[%d]:%s", p.Container, p.EntryIdx, p.Parameter)
	}
	if p.Container != "" {
		return fmt.Sprintf("%s[%d]", p.Container, p.EntryIdx)
	}
	return "<root>"
}

// SchemaError reports a dangling reference, a cyclic base container, or an
// unsupported construct used by a requested container. Schema errors are
// detected at load time (or, for lazily-resolved references, on first use).
type SchemaError struct {
	Path Path
	Msg  string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("xtce: schema error at %s: %s", e.Path, e.Msg)
}

// DecodeError reports insufficient input, a fixed-value mismatch, a
// charset decode failure, or an ambiguous child container selection (more
// than one child's restriction matched). When no child matches, decoding
// ends at the current container without an error.
type DecodeError struct {
	Path Path
	Msg  string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("xtce: decode error at %s: %s: %v", e.Path, e.Msg, e.Err)
	}
	return fmt.Sprintf("xtce: decode error at %s: %s", e.Path, e.Msg)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// EncodeError reports a value out of range, an unknown enum label, an
// unrecognized boolean string, a missing argument, or (via CalibrationError)
// an uninvertible calibration.
type EncodeError struct {
	Path Path
	Msg  string
	Err  error
}

func (e *EncodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("xtce: encode error at %s: %s: %v", e.Path, e.Msg, e.Err)
	}
	return fmt.Sprintf("xtce: encode error at %s: %s", e.Path, e.Msg)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// CalibrationError reports a numerically unstable calibration inverse: no
// real root within epsilon of satisfying p(x) = y. Always surfaced wrapped
// in an EncodeError per spec.
type CalibrationError struct {
	Value float64
	Msg   string
}

func (e *CalibrationError) Error() string {
	return fmt.Sprintf("xtce: calibration error for value %g: %s", e.Value, e.Msg)
}
