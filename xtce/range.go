package xtce

// ValidRange bounds a numeric parameter or argument value, inclusive.
type ValidRange struct {
	Min float64
	Max float64
}

// Contains reports whether v falls within [Min, Max].
func (r *ValidRange) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}
