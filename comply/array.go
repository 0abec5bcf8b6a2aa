package comply

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"
)

// number covers every element type a DType can take.
type number interface {
	~int8 | ~int16 | ~int32 | ~int64 |
		~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Array is an n-dimensional numeric fixture array. The dtype and shape are
// fixed at construction; elements are stored flat in C (row-major) order
// and serialize to little-endian bytes, matching the layout the service
// under test reads from the object store.
type Array struct {
	dtype DType
	shape []int
	data  any // []T where T is the dtype's Go element type
}

// elemCount returns the product of the dimension sizes. An empty shape
// denotes a scalar and has one element.
func elemCount(shape []int) int {
	n := 1
	for _, dim := range shape {
		n *= dim
	}
	return n
}

// NewRandom builds a deterministic pseudo-random array. Values are drawn
// as 100*uniform[0,1) and truncated to the dtype, so integer fixtures do
// not all round down to zero. The same seed always produces the same
// array, making every case reproducible in isolation.
func NewRandom(d DType, shape []int, seed int64) *Array {
	rng := rand.New(rand.NewSource(seed))
	n := elemCount(shape)
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = 100 * rng.Float64()
	}
	return fromFloats(d, shape, vals)
}

// NewScalar builds a rank-0 array holding a single value.
func NewScalar(d DType, v float64) *Array {
	return fromFloats(d, nil, []float64{v})
}

func fromFloats(d DType, shape []int, vals []float64) *Array {
	a := &Array{dtype: d, shape: append([]int(nil), shape...)}
	switch d {
	case Int8:
		a.data = castSlice[int8](vals)
	case Int16:
		a.data = castSlice[int16](vals)
	case Int32:
		a.data = castSlice[int32](vals)
	case Int64:
		a.data = castSlice[int64](vals)
	case Uint8:
		a.data = castSlice[uint8](vals)
	case Uint16:
		a.data = castSlice[uint16](vals)
	case Uint32:
		a.data = castSlice[uint32](vals)
	case Uint64:
		a.data = castSlice[uint64](vals)
	case Float32:
		a.data = castSlice[float32](vals)
	case Float64:
		a.data = castSlice[float64](vals)
	default:
		panic("comply: unknown dtype " + d.String())
	}
	return a
}

func castSlice[T number](vals []float64) []T {
	out := make([]T, len(vals))
	for i, v := range vals {
		out[i] = T(v)
	}
	return out
}

// DType returns the element type.
func (a *Array) DType() DType { return a.dtype }

// Shape returns a copy of the dimension sizes. An empty shape is a scalar.
func (a *Array) Shape() []int { return append([]int(nil), a.shape...) }

// Rank returns the number of dimensions.
func (a *Array) Rank() int { return len(a.shape) }

// Len returns the number of elements.
func (a *Array) Len() int { return elemCount(a.shape) }

// Float64 returns element i widened to float64. Integer values generated
// by this package are small enough to be exact; the view is used for
// masking, diagnostics, and mean accumulation.
func (a *Array) Float64(i int) float64 {
	switch data := a.data.(type) {
	case []int8:
		return float64(data[i])
	case []int16:
		return float64(data[i])
	case []int32:
		return float64(data[i])
	case []int64:
		return float64(data[i])
	case []uint8:
		return float64(data[i])
	case []uint16:
		return float64(data[i])
	case []uint32:
		return float64(data[i])
	case []uint64:
		return float64(data[i])
	case []float32:
		return float64(data[i])
	case []float64:
		return data[i]
	default:
		panic("comply: unknown element storage")
	}
}

// SetFloat64 overwrites element i with v truncated to the dtype. Used by
// missing-data descriptors to punch sentinel values into fixtures.
func (a *Array) SetFloat64(i int, v float64) {
	switch data := a.data.(type) {
	case []int8:
		data[i] = int8(v)
	case []int16:
		data[i] = int16(v)
	case []int32:
		data[i] = int32(v)
	case []int64:
		data[i] = int64(v)
	case []uint8:
		data[i] = uint8(v)
	case []uint16:
		data[i] = uint16(v)
	case []uint32:
		data[i] = uint32(v)
	case []uint64:
		data[i] = uint64(v)
	case []float32:
		data[i] = float32(v)
	case []float64:
		data[i] = v
	default:
		panic("comply: unknown element storage")
	}
}

// -----------------------------------------------------------------------------
// Byte codec
// -----------------------------------------------------------------------------

// Bytes serializes the array to little-endian bytes in C order. This is
// the exact layout uploaded to the object store and the exact layout the
// service declares for its result payloads.
func (a *Array) Bytes() []byte {
	out := make([]byte, a.Len()*a.dtype.Size())
	switch data := a.data.(type) {
	case []int8:
		for i, v := range data {
			out[i] = byte(v)
		}
	case []uint8:
		copy(out, data)
	case []int16:
		for i, v := range data {
			binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
		}
	case []uint16:
		for i, v := range data {
			binary.LittleEndian.PutUint16(out[i*2:], v)
		}
	case []int32:
		for i, v := range data {
			binary.LittleEndian.PutUint32(out[i*4:], uint32(v))
		}
	case []uint32:
		for i, v := range data {
			binary.LittleEndian.PutUint32(out[i*4:], v)
		}
	case []int64:
		for i, v := range data {
			binary.LittleEndian.PutUint64(out[i*8:], uint64(v))
		}
	case []uint64:
		for i, v := range data {
			binary.LittleEndian.PutUint64(out[i*8:], v)
		}
	case []float32:
		for i, v := range data {
			binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
		}
	case []float64:
		for i, v := range data {
			binary.LittleEndian.PutUint64(out[i*8:], math.Float64bits(v))
		}
	}
	return out
}

// FromBytes decodes little-endian C-order bytes into an array of the
// given dtype and shape. The byte length must match exactly.
func FromBytes(d DType, shape []int, raw []byte) (*Array, error) {
	n := elemCount(shape)
	if want := n * d.Size(); len(raw) != want {
		return nil, fmt.Errorf("comply: payload is %d bytes, %s%v requires %d", len(raw), d, shape, want)
	}
	a := &Array{dtype: d, shape: append([]int(nil), shape...)}
	switch d {
	case Int8:
		data := make([]int8, n)
		for i := range data {
			data[i] = int8(raw[i])
		}
		a.data = data
	case Uint8:
		data := make([]uint8, n)
		copy(data, raw)
		a.data = data
	case Int16:
		data := make([]int16, n)
		for i := range data {
			data[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
		}
		a.data = data
	case Uint16:
		data := make([]uint16, n)
		for i := range data {
			data[i] = binary.LittleEndian.Uint16(raw[i*2:])
		}
		a.data = data
	case Int32:
		data := make([]int32, n)
		for i := range data {
			data[i] = int32(binary.LittleEndian.Uint32(raw[i*4:]))
		}
		a.data = data
	case Uint32:
		data := make([]uint32, n)
		for i := range data {
			data[i] = binary.LittleEndian.Uint32(raw[i*4:])
		}
		a.data = data
	case Int64:
		data := make([]int64, n)
		for i := range data {
			data[i] = int64(binary.LittleEndian.Uint64(raw[i*8:]))
		}
		a.data = data
	case Uint64:
		data := make([]uint64, n)
		for i := range data {
			data[i] = binary.LittleEndian.Uint64(raw[i*8:])
		}
		a.data = data
	case Float32:
		data := make([]float32, n)
		for i := range data {
			data[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
		a.data = data
	case Float64:
		data := make([]float64, n)
		for i := range data {
			data[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
		}
		a.data = data
	default:
		return nil, fmt.Errorf("comply: unknown dtype %v", d)
	}
	return a, nil
}

// gather builds a new array from the elements at the given flat indices,
// with the given result shape. Callers guarantee the indices are in range.
func (a *Array) gather(idx []int, shape []int) *Array {
	out := &Array{dtype: a.dtype, shape: append([]int(nil), shape...)}
	switch data := a.data.(type) {
	case []int8:
		out.data = gatherSlice(data, idx)
	case []int16:
		out.data = gatherSlice(data, idx)
	case []int32:
		out.data = gatherSlice(data, idx)
	case []int64:
		out.data = gatherSlice(data, idx)
	case []uint8:
		out.data = gatherSlice(data, idx)
	case []uint16:
		out.data = gatherSlice(data, idx)
	case []uint32:
		out.data = gatherSlice(data, idx)
	case []uint64:
		out.data = gatherSlice(data, idx)
	case []float32:
		out.data = gatherSlice(data, idx)
	case []float64:
		out.data = gatherSlice(data, idx)
	}
	return out
}

func gatherSlice[T number](data []T, idx []int) []T {
	out := make([]T, len(idx))
	for i, j := range idx {
		out[i] = data[j]
	}
	return out
}

// strides returns the C-order flat stride of each axis.
func strides(shape []int) []int {
	s := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		s[i] = acc
		acc *= shape[i]
	}
	return s
}
