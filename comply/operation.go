package comply

import (
	"fmt"
	"math"
	"sort"
)

// Operation enumerates the reductions the service contract names. The
// String form of each value is also its wire name (the /v1/{operation}
// path segment).
type Operation int

const (
	OpSelect Operation = iota
	OpSum
	OpCount
	OpMin
	OpMax
	OpMean
)

// AllOperations lists every operation in declaration order.
var AllOperations = []Operation{OpSelect, OpSum, OpCount, OpMin, OpMax, OpMean}

var operationNames = map[Operation]string{
	OpSelect: "select",
	OpSum:    "sum",
	OpCount:  "count",
	OpMin:    "min",
	OpMax:    "max",
	OpMean:   "mean",
}

var operationsByName = func() map[string]Operation {
	m := make(map[string]Operation, len(operationNames))
	for op, name := range operationNames {
		m[name] = op
	}
	return m
}()

// String returns the wire name of the operation.
func (op Operation) String() string {
	if name, ok := operationNames[op]; ok {
		return name
	}
	return fmt.Sprintf("operation(%d)", int(op))
}

// ParseOperation maps a wire operation name back to its enum value.
func ParseOperation(s string) (Operation, error) {
	if op, ok := operationsByName[s]; ok {
		return op, nil
	}
	return 0, fmt.Errorf("comply: unknown operation %q", s)
}

// Reduces reports whether the operation collapses axes. select is the
// only non-reducing operation.
func (op Operation) Reduces() bool { return op != OpSelect }

// ResultDType returns the dtype the service contract declares for the
// operation's result. count is always int64; every other operation keeps
// the input dtype (mean is truncated back to it, matching the reference
// semantics the contract encodes).
func (op Operation) ResultDType(in DType) DType {
	if op == OpCount {
		return Int64
	}
	return in
}

// -----------------------------------------------------------------------------
// Reference evaluation
// -----------------------------------------------------------------------------

// Expected is the reference evaluator's output for a success-classified
// case: the result array plus the number of unmasked elements that
// participated, which the x-activestorage-count header must echo.
type Expected struct {
	Result *Array
	Count  int64
}

// evalFunc computes one operation over a selected array and its mask.
// mask may be nil (no missing data); axes nil means reduce all axes.
type evalFunc func(a *Array, mask []bool, axes []int) *Array

// operationFuncs is the closed registry mapping each operation to its
// evaluator. Adding an operation means adding exactly one entry here;
// operations are never discovered dynamically.
var operationFuncs = map[Operation]evalFunc{
	OpSelect: func(a *Array, _ []bool, _ []int) *Array { return a },
	OpSum:    func(a *Array, mask []bool, axes []int) *Array { return reduce(a, mask, axes, OpSum) },
	OpCount:  func(a *Array, mask []bool, axes []int) *Array { return reduce(a, mask, axes, OpCount) },
	OpMin:    func(a *Array, mask []bool, axes []int) *Array { return reduce(a, mask, axes, OpMin) },
	OpMax:    func(a *Array, mask []bool, axes []int) *Array { return reduce(a, mask, axes, OpMax) },
	OpMean:   func(a *Array, mask []bool, axes []int) *Array { return reduce(a, mask, axes, OpMean) },
}

// Evaluate computes the expected result of op over the selected region
// of a. The selection is applied first, then the reduction over the axis
// set, with masked elements excluded throughout. A selection the service
// contract rejects yields ErrBadSelection so the caller can classify the
// case as a client error rather than computing a value.
func Evaluate(a *Array, mask []bool, sel Selection, op Operation, axes []int) (*Expected, error) {
	selected, selMask, err := sel.Apply(a, mask)
	if err != nil {
		return nil, err
	}
	if err := validateAxes(axes, selected.Rank()); err != nil {
		return nil, err
	}

	fn, ok := operationFuncs[op]
	if !ok {
		return nil, fmt.Errorf("comply: unknown operation %v", op)
	}

	count := int64(selected.Len())
	if selMask != nil {
		count = 0
		for _, m := range selMask {
			if !m {
				count++
			}
		}
	}
	return &Expected{Result: fn(selected, selMask, axes), Count: count}, nil
}

func validateAxes(axes []int, rank int) error {
	seen := make(map[int]bool, len(axes))
	for _, ax := range axes {
		if ax < 0 || ax >= rank {
			return fmt.Errorf("%w: axis %d out of range for rank %d", ErrBadSelection, ax, rank)
		}
		if seen[ax] {
			return fmt.Errorf("%w: duplicate axis %d", ErrBadSelection, ax)
		}
		seen[ax] = true
	}
	return nil
}

// reduce collapses the given axes (all axes when nil) of a, excluding
// masked elements. The output shape keeps the remaining axes in order;
// reducing every axis yields a rank-0 scalar.
//
// Empty or all-masked cells take the contract's sentinels: sum and count
// are 0, min and max are the dtype's zero value, and mean is NaN for
// float dtypes and 0 for integer dtypes.
func reduce(a *Array, mask []bool, axes []int, op Operation) *Array {
	rank := a.Rank()
	reduceAll := len(axes) == 0
	reduced := make([]bool, rank)
	if reduceAll {
		for i := range reduced {
			reduced[i] = true
		}
	} else {
		for _, ax := range axes {
			reduced[ax] = true
		}
	}

	var outShape []int
	for i, dim := range a.shape {
		if !reduced[i] {
			outShape = append(outShape, dim)
		}
	}
	outN := elemCount(outShape)
	outStride := strides(outShape)
	srcStride := strides(a.shape)

	// cells[j] lists the flat source indices feeding output cell j.
	cells := make([][]int, outN)
	cursor := make([]int, rank)
	total := a.Len()
	for i := 0; i < total; i++ {
		out := 0
		kept := 0
		for axis, c := range cursor {
			if !reduced[axis] {
				out += c * outStride[kept]
				kept++
			}
		}
		flat := 0
		for axis, c := range cursor {
			flat += c * srcStride[axis]
		}
		cells[out] = append(cells[out], flat)
		for axis := rank - 1; axis >= 0; axis-- {
			cursor[axis]++
			if cursor[axis] < a.shape[axis] {
				break
			}
			cursor[axis] = 0
		}
	}

	resultDType := op.ResultDType(a.dtype)
	vals := make([]float64, outN)
	for j, cell := range cells {
		vals[j] = reduceCell(a, mask, cell, op)
	}
	return fromFloats(resultDType, outShape, vals)
}

// reduceCell reduces one output cell. Accumulation happens in float64,
// which is exact for the value ranges fixtures use; mean is truncated
// back to the input dtype by fromFloats, matching the contract.
func reduceCell(a *Array, mask []bool, cell []int, op Operation) float64 {
	var (
		sum   float64
		count int64
		best  float64
		have  bool
	)
	for _, i := range cell {
		if mask != nil && mask[i] {
			continue
		}
		v := a.Float64(i)
		sum += v
		count++
		if !have {
			best = v
			have = true
			continue
		}
		if op == OpMin && v < best {
			best = v
		}
		if op == OpMax && v > best {
			best = v
		}
	}

	switch op {
	case OpSum:
		return sum
	case OpCount:
		return float64(count)
	case OpMin, OpMax:
		if !have {
			return 0
		}
		return best
	case OpMean:
		if count == 0 {
			if a.dtype.IsFloat() {
				return math.NaN()
			}
			return 0
		}
		return sum / float64(count)
	default:
		panic("comply: reduceCell on non-reducing operation " + op.String())
	}
}

// NormalizeAxes returns a sorted copy of axes, the canonical order used
// in case identities and wire requests.
func NormalizeAxes(axes []int) []int {
	if axes == nil {
		return nil
	}
	out := append([]int(nil), axes...)
	sort.Ints(out)
	return out
}
