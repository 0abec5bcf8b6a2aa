package comply

import (
	"fmt"
	"math"
	"math/rand"
)

// holeProportion is the fraction of fixture elements overwritten with
// missing-data sentinels, split evenly across a descriptor's fill values.
const holeProportion = 0.2

// holeSeed makes hole placement reproducible across runs.
const holeSeed = 10

// Missing describes missing data in a fixture: which request field
// declares it, which elements it masks, and how to punch matching
// sentinel values into a generated array.
type Missing interface {
	// Name identifies the descriptor in case identities,
	// e.g. "missing_value(-999)".
	Name() string

	// RequestField returns the key and value of the request body's
	// "missing" object. The key strings are part of the wire contract.
	RequestField() (string, any)

	// Mask returns the element mask the descriptor induces on a.
	Mask(a *Array) []bool

	// Punch overwrites a deterministic subset of elements with values
	// the mask will catch.
	Punch(a *Array)
}

// MissingKind enumerates the descriptor kinds for the case generator.
type MissingKind int

const (
	KindMissingValue MissingKind = iota
	KindMissingValues
	KindValidMax
	KindValidMin
	KindValidRange
)

// AllMissingKinds lists every descriptor kind in declaration order.
var AllMissingKinds = []MissingKind{
	KindMissingValue, KindMissingValues, KindValidMax, KindValidMin, KindValidRange,
}

// NewMissing builds a descriptor of the given kind with sentinel values
// appropriate for the dtype and operation: the values are chosen so the
// descriptor actually changes the operation's result (a max sentinel
// below every generated value would be invisible to max).
func NewMissing(kind MissingKind, d DType, op Operation) Missing {
	switch kind {
	case KindMissingValue:
		switch d.Kind() {
		case "u":
			if op == OpMin {
				return MissingValue{Value: 0}
			}
			return MissingValue{Value: sentinel(d, 999)}
		case "f":
			if op == OpMax {
				return MissingValue{Value: 1e20}
			}
			return MissingValue{Value: -1e20}
		default:
			if op == OpMax {
				return MissingValue{Value: sentinel(d, 999)}
			}
			return MissingValue{Value: sentinel(d, -999)}
		}
	case KindMissingValues:
		switch d.Kind() {
		case "u":
			return MissingValues{Values: []float64{0, sentinel(d, 999)}}
		case "f":
			return MissingValues{Values: []float64{-1e20, 1e20}}
		default:
			return MissingValues{Values: []float64{sentinel(d, -999), sentinel(d, 1000)}}
		}
	case KindValidMax:
		switch d.Kind() {
		case "u":
			return ValidMax{Max: 9}
		case "f":
			return ValidMax{Max: 10.0}
		default:
			return ValidMax{Max: 8}
		}
	case KindValidMin:
		switch d.Kind() {
		case "u":
			return ValidMin{Min: 2}
		case "f":
			return ValidMin{Min: 0.5}
		default:
			return ValidMin{Min: -1}
		}
	case KindValidRange:
		switch d.Kind() {
		case "u":
			return ValidRange{Min: 1, Max: 9}
		case "f":
			return ValidRange{Min: 0.5, Max: 9.9}
		default:
			return ValidRange{Min: 2, Max: 10}
		}
	default:
		panic(fmt.Sprintf("comply: unknown missing kind %d", int(kind)))
	}
}

// sentinel clamps a missing-data sentinel into the dtype's value domain.
// Generated element values stay below 100, so the clamped sentinels for
// the 8-bit dtypes remain outside the data range.
func sentinel(d DType, v float64) float64 {
	switch d {
	case Int8:
		return math.Max(-120, math.Min(120, v))
	case Uint8:
		return math.Max(0, math.Min(250, v))
	default:
		return v
	}
}

// punchHoles overwrites random elements of a with the given fill values,
// holeProportion of the array in total, split across the fills. The RNG
// is fixed-seeded so fixtures stay reproducible.
func punchHoles(a *Array, fills []float64) {
	rng := rand.New(rand.NewSource(holeSeed))
	p := holeProportion / float64(len(fills))
	n := a.Len()
	for _, fill := range fills {
		for i := 0; i < n; i++ {
			if rng.Float64() < p {
				a.SetFloat64(i, fill)
			}
		}
	}
}

// -----------------------------------------------------------------------------
// Descriptor kinds
// -----------------------------------------------------------------------------

// MissingValue masks elements equal to a single sentinel value.
type MissingValue struct {
	Value float64
}

func (m MissingValue) Name() string { return fmt.Sprintf("missing_value(%v)", m.Value) }

func (m MissingValue) RequestField() (string, any) { return "missing_value", m.Value }

func (m MissingValue) Mask(a *Array) []bool {
	v := castValue(a.DType(), m.Value)
	mask := make([]bool, a.Len())
	for i := range mask {
		mask[i] = a.Float64(i) == v
	}
	return mask
}

func (m MissingValue) Punch(a *Array) { punchHoles(a, []float64{m.Value}) }

// MissingValues masks elements equal to any of a list of sentinel values.
type MissingValues struct {
	Values []float64
}

func (m MissingValues) Name() string { return fmt.Sprintf("missing_values(%v)", m.Values) }

func (m MissingValues) RequestField() (string, any) { return "missing_values", m.Values }

func (m MissingValues) Mask(a *Array) []bool {
	cast := make([]float64, len(m.Values))
	for i, v := range m.Values {
		cast[i] = castValue(a.DType(), v)
	}
	mask := make([]bool, a.Len())
	for i := range mask {
		v := a.Float64(i)
		for _, c := range cast {
			if v == c {
				mask[i] = true
				break
			}
		}
	}
	return mask
}

func (m MissingValues) Punch(a *Array) { punchHoles(a, m.Values) }

// ValidMax masks elements greater than a maximum valid value.
type ValidMax struct {
	Max float64
}

func (m ValidMax) Name() string { return fmt.Sprintf("valid_max(%v)", m.Max) }

func (m ValidMax) RequestField() (string, any) { return "valid_max", m.Max }

func (m ValidMax) Mask(a *Array) []bool {
	v := castValue(a.DType(), m.Max)
	mask := make([]bool, a.Len())
	for i := range mask {
		mask[i] = a.Float64(i) > v
	}
	return mask
}

func (m ValidMax) Punch(a *Array) { punchHoles(a, []float64{m.Max + 1}) }

// ValidMin masks elements less than a minimum valid value.
type ValidMin struct {
	Min float64
}

func (m ValidMin) Name() string { return fmt.Sprintf("valid_min(%v)", m.Min) }

func (m ValidMin) RequestField() (string, any) { return "valid_min", m.Min }

func (m ValidMin) Mask(a *Array) []bool {
	v := castValue(a.DType(), m.Min)
	mask := make([]bool, a.Len())
	for i := range mask {
		mask[i] = a.Float64(i) < v
	}
	return mask
}

func (m ValidMin) Punch(a *Array) { punchHoles(a, []float64{m.Min - 1}) }

// ValidRange masks elements outside an inclusive [min, max] range.
type ValidRange struct {
	Min float64
	Max float64
}

func (m ValidRange) Name() string { return fmt.Sprintf("valid_range(%v,%v)", m.Min, m.Max) }

func (m ValidRange) RequestField() (string, any) { return "valid_range", []float64{m.Min, m.Max} }

func (m ValidRange) Mask(a *Array) []bool {
	lo := castValue(a.DType(), m.Min)
	hi := castValue(a.DType(), m.Max)
	mask := make([]bool, a.Len())
	for i := range mask {
		v := a.Float64(i)
		mask[i] = v < lo || v > hi
	}
	return mask
}

func (m ValidRange) Punch(a *Array) { punchHoles(a, []float64{m.Min - 1, m.Max + 1}) }
