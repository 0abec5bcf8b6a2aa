package comply

import (
	"fmt"
	"strconv"
	"strings"
)

// Slice is a per-axis start/stop/step triple. The selected indices are
// start, start+step, ... up to but excluding stop.
type Slice struct {
	Start int
	Stop  int
	Step  int
}

// Selection restricts which elements of an array participate in an
// operation. Its length may be at most the array's rank; trailing axes
// default to full extent. A nil Selection selects everything.
type Selection []Slice

// Full returns a slice covering an axis of the given size.
func Full(dim int) Slice { return Slice{Start: 0, Stop: dim, Step: 1} }

// Validate checks the selection against a shape using the service
// contract's rules: step >= 1, 0 <= start <= stop <= dim, and rank no
// greater than the array's. Out-of-range selections are a request error,
// never clipped; start == stop is a legal empty range.
func (sel Selection) Validate(shape []int) error {
	if len(sel) > len(shape) {
		return fmt.Errorf("%w: %d axes selected on rank-%d array", ErrBadSelection, len(sel), len(shape))
	}
	for i, s := range sel {
		if s.Step < 1 {
			return fmt.Errorf("%w: axis %d has step %d", ErrBadSelection, i, s.Step)
		}
		if s.Start < 0 || s.Start > s.Stop {
			return fmt.Errorf("%w: axis %d has start %d, stop %d", ErrBadSelection, i, s.Start, s.Stop)
		}
		if s.Stop > shape[i] {
			return fmt.Errorf("%w: axis %d stop %d exceeds dimension %d", ErrBadSelection, i, s.Stop, shape[i])
		}
	}
	return nil
}

// normalize pads the selection with full-extent slices to the array's rank.
func (sel Selection) normalize(shape []int) Selection {
	out := make(Selection, len(shape))
	copy(out, sel)
	for i := len(sel); i < len(shape); i++ {
		out[i] = Full(shape[i])
	}
	return out
}

// count returns the number of indices a slice selects.
func (s Slice) count() int {
	if s.Stop <= s.Start {
		return 0
	}
	return (s.Stop - s.Start + s.Step - 1) / s.Step
}

// OutShape returns the shape of the selected region.
func (sel Selection) OutShape(shape []int) []int {
	full := sel.normalize(shape)
	out := make([]int, len(full))
	for i, s := range full {
		out[i] = s.count()
	}
	return out
}

// Apply materializes the selected region of the array, carrying the
// missing-data mask along when one is present. The selection must have
// been validated first; Apply re-validates defensively and reports
// ErrBadSelection on violation.
func (sel Selection) Apply(a *Array, mask []bool) (*Array, []bool, error) {
	if err := sel.Validate(a.shape); err != nil {
		return nil, nil, err
	}
	full := sel.normalize(a.shape)
	outShape := sel.OutShape(a.shape)
	n := elemCount(outShape)

	srcStride := strides(a.shape)
	idx := make([]int, 0, n)
	cursor := make([]int, len(full))
	for len(idx) < n {
		flat := 0
		for axis, c := range cursor {
			flat += (full[axis].Start + c*full[axis].Step) * srcStride[axis]
		}
		idx = append(idx, flat)
		// Advance the multi-index, last axis fastest.
		for axis := len(cursor) - 1; axis >= 0; axis-- {
			cursor[axis]++
			if cursor[axis] < full[axis].count() {
				break
			}
			cursor[axis] = 0
		}
	}

	out := a.gather(idx, outShape)
	var outMask []bool
	if mask != nil {
		outMask = make([]bool, len(idx))
		for i, j := range idx {
			outMask[i] = mask[j]
		}
	}
	return out, outMask, nil
}

// String renders the selection in start:stop:step form, one axis per
// comma-separated field. Used in case identities and fixture keys.
func (sel Selection) String() string {
	if len(sel) == 0 {
		return "all"
	}
	parts := make([]string, len(sel))
	for i, s := range sel {
		parts[i] = strconv.Itoa(s.Start) + ":" + strconv.Itoa(s.Stop) + ":" + strconv.Itoa(s.Step)
	}
	return strings.Join(parts, ",")
}

// Triples renders the selection as the wire-level [start, stop, step]
// triples the request body carries.
func (sel Selection) Triples() [][3]int {
	if sel == nil {
		return nil
	}
	out := make([][3]int, len(sel))
	for i, s := range sel {
		out[i] = [3]int{s.Start, s.Stop, s.Step}
	}
	return out
}
