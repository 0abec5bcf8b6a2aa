package comply

import "fmt"

// DType enumerates the numeric element types the service contract covers.
//
// The String form of each value is also its wire name: the dtype strings
// accepted by the service are a contract, not a convenience mapping, so
// they must round-trip through ParseDType unchanged.
type DType int

const (
	Int8 DType = iota
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float32
	Float64
)

// AllDTypes lists every supported dtype in declaration order. The case
// generator enumerates this list (or a configured subset) directly; dtypes
// are never discovered dynamically.
var AllDTypes = []DType{
	Int8, Int16, Int32, Int64,
	Uint8, Uint16, Uint32, Uint64,
	Float32, Float64,
}

var dtypeNames = map[DType]string{
	Int8:    "int8",
	Int16:   "int16",
	Int32:   "int32",
	Int64:   "int64",
	Uint8:   "uint8",
	Uint16:  "uint16",
	Uint32:  "uint32",
	Uint64:  "uint64",
	Float32: "float32",
	Float64: "float64",
}

var dtypesByName = func() map[string]DType {
	m := make(map[string]DType, len(dtypeNames))
	for d, name := range dtypeNames {
		m[name] = d
	}
	return m
}()

// String returns the wire name of the dtype.
func (d DType) String() string {
	if name, ok := dtypeNames[d]; ok {
		return name
	}
	return fmt.Sprintf("dtype(%d)", int(d))
}

// ParseDType maps a wire dtype name back to its enum value.
func ParseDType(s string) (DType, error) {
	if d, ok := dtypesByName[s]; ok {
		return d, nil
	}
	return 0, fmt.Errorf("comply: unknown dtype %q", s)
}

// Size returns the element size in bytes.
func (d DType) Size() int {
	switch d {
	case Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64:
		return 8
	default:
		panic("comply: unknown dtype " + d.String())
	}
}

// IsFloat reports whether the dtype is a floating-point type.
func (d DType) IsFloat() bool { return d == Float32 || d == Float64 }

// IsUnsigned reports whether the dtype is an unsigned integer type.
func (d DType) IsUnsigned() bool {
	switch d {
	case Uint8, Uint16, Uint32, Uint64:
		return true
	}
	return false
}

// Kind returns the numpy-style kind letter: "i" for signed integers,
// "u" for unsigned integers, "f" for floats. Missing-data descriptors
// pick their sentinel values by kind.
func (d DType) Kind() string {
	switch {
	case d.IsFloat():
		return "f"
	case d.IsUnsigned():
		return "u"
	default:
		return "i"
	}
}

// castValue rounds a float64 through the dtype's value domain. Sentinel
// values used by missing-data descriptors must be cast this way before
// being compared against stored elements, because the stored element has
// already been truncated to the dtype.
func castValue(d DType, v float64) float64 {
	switch d {
	case Int8:
		return float64(int8(v))
	case Int16:
		return float64(int16(v))
	case Int32:
		return float64(int32(v))
	case Int64:
		return float64(int64(v))
	case Uint8:
		return float64(uint8(v))
	case Uint16:
		return float64(uint16(v))
	case Uint32:
		return float64(uint32(v))
	case Uint64:
		return float64(uint64(v))
	case Float32:
		return float64(float32(v))
	case Float64:
		return v
	default:
		panic("comply: unknown dtype " + d.String())
	}
}
