package comply

import "iter"

// Geometry pairs a fixture shape with the selection and axis variant
// exercised against it. The default set mirrors the service contract's
// documented examples: a flat array with no selection, a strided 1-d
// selection, a 2-d selection, and an axis-subset reduction.
type Geometry struct {
	Shape     []int
	Selection Selection
	Axis      []int
}

// DefaultGeometries returns the standard shape/selection matrix.
func DefaultGeometries() []Geometry {
	return []Geometry{
		{Shape: []int{10}},
		{Shape: []int{100}, Selection: Selection{{Start: 10, Stop: 50, Step: 4}}},
		{Shape: []int{20, 5}, Selection: Selection{{Start: 0, Stop: 19, Step: 2}, {Start: 1, Stop: 3, Step: 1}}},
		{Shape: []int{4, 4}, Axis: []int{0}},
	}
}

// Matrix declares the finite lists whose cross-product the generator
// enumerates. All dimensions come from explicit declared lists, never
// from reflection, so the enumeration is deterministic and every
// combination has exactly one identity.
type Matrix struct {
	Operations   []Operation
	DTypes       []DType
	Geometries   []Geometry
	MissingKinds []MissingKind

	// Compressions and Filters are allow-lists; an empty list disables
	// that dimension (only the unencoded variant is generated).
	Compressions []Compression
	Filters      []Filter
}

// DefaultMatrix builds the full matrix permitted by the configuration's
// allow-lists.
func DefaultMatrix(cfg *Config) Matrix {
	return Matrix{
		Operations:   AllOperations,
		DTypes:       AllDTypes,
		Geometries:   DefaultGeometries(),
		MissingKinds: AllMissingKinds,
		Compressions: cfg.CompressionAlgs,
		Filters:      cfg.FilterAlgs,
	}
}

// Cases lazily enumerates the success-path test cases: the nested
// cross-product of operations × dtypes × geometries × missing ×
// (compression ∪ none) × (filter ∪ none). The sequence is finite and
// re-enumerates identically on every call.
//
// Two prunings keep the matrix meaningful: axis variants apply only to
// reducing operations (select has no axis), and missing-data variants
// apply only to reducing operations on unencoded fixtures (select
// returns stored bytes unchanged, so a mask cannot affect it).
func (m Matrix) Cases() iter.Seq[*TestCase] {
	compressions := append([]Compression{CompressionNone}, m.Compressions...)
	filters := append([]Filter{FilterNone}, m.Filters...)

	return func(yield func(*TestCase) bool) {
		for _, op := range m.Operations {
			for _, d := range m.DTypes {
				for _, g := range m.Geometries {
					if len(g.Axis) > 0 && !op.Reduces() {
						continue
					}
					missings := []Missing{nil}
					if op.Reduces() {
						for _, kind := range m.MissingKinds {
							missings = append(missings, NewMissing(kind, d, op))
						}
					}
					for _, missing := range missings {
						for _, comp := range compressions {
							for _, filt := range filters {
								enc := Encoding{Compression: comp, Filter: filt}
								if missing != nil && !enc.IsZero() {
									continue
								}
								c := &TestCase{
									Operation: op,
									Axis:      NormalizeAxes(g.Axis),
									DType:     d,
									Shape:     g.Shape,
									Selection: g.Selection,
									Missing:   missing,
									Encoding:  enc,
									Expect:    ExpectSuccess,
								}
								if !yield(c) {
									return
								}
							}
						}
					}
				}
			}
		}
	}
}

// NegativeCases returns the hand-authored cases with deliberately
// invalid parameters. They are disjoint from the generated matrix: each
// one starts from a valid request and breaks exactly one aspect of it.
func NegativeCases() []*TestCase {
	base := func(name string, expect Outcome) *TestCase {
		return &TestCase{
			Name:      name,
			Operation: OpSum,
			DType:     Int64,
			Shape:     []int{10},
			Selection: Selection{{Start: 0, Stop: 5, Step: 2}},
			Expect:    expect,
		}
	}

	invalidOp := base("invalid-operation", ExpectClientError)
	invalidOp.Mutate = func(r *Request) { r.Operation = "this-op-is-not-implemented" }

	invalidDType := base("invalid-dtype", ExpectClientError)
	invalidDType.Mutate = func(r *Request) { r.Body.DType = "fake-dtype-64" }

	invalidOffset := base("invalid-offset", ExpectClientError)
	invalidOffset.Mutate = func(r *Request) { r.Body.Offset = -1 }

	invalidSize := base("invalid-size", ExpectClientError)
	invalidSize.Mutate = func(r *Request) { size := int64(-123); r.Body.Size = &size }

	invalidShape := base("invalid-shape", ExpectClientError)
	invalidShape.Mutate = func(r *Request) { r.Body.Shape = []int{0} }

	outOfRangeSelection := base("out-of-range-selection", ExpectClientError)
	outOfRangeSelection.Mutate = func(r *Request) {
		r.Body.Selection = [][3]int{{10, 100, 1000}}
	}

	rankMismatch := base("rank-mismatched-selection", ExpectClientError)
	rankMismatch.Mutate = func(r *Request) {
		r.Body.Selection = [][3]int{{0, 5, 1}, {2, 3, 1}}
	}

	selectionWithoutShape := base("selection-without-shape", ExpectClientError)
	selectionWithoutShape.Mutate = func(r *Request) {
		r.Body.Shape = nil
		r.Body.Selection = [][3]int{{0, 5, 1}}
	}

	invalidOrder := base("invalid-order", ExpectClientError)
	invalidOrder.Mutate = func(r *Request) { r.Body.Order = "nonexistent-ordering" }

	missingSource := base("missing-source", ExpectClientError)
	missingSource.Mutate = func(r *Request) { r.Body.Source = "" }

	nonexistentObject := base("nonexistent-object", ExpectServerError)
	nonexistentObject.SkipUpload = true

	truncatedObject := base("truncated-object", ExpectServerError)
	truncatedObject.Truncate = 7 // not a multiple of the 8-byte itemsize

	return []*TestCase{
		invalidOp,
		invalidDType,
		invalidOffset,
		invalidSize,
		invalidShape,
		outOfRangeSelection,
		rankMismatch,
		selectionWithoutShape,
		invalidOrder,
		missingSource,
		nonexistentObject,
		truncatedObject,
	}
}

// AllCases chains the generated matrix and the negative cases into one
// finite sequence.
func AllCases(m Matrix) iter.Seq[*TestCase] {
	return func(yield func(*TestCase) bool) {
		for c := range m.Cases() {
			if !yield(c) {
				return
			}
		}
		for _, c := range NegativeCases() {
			if !yield(c) {
				return
			}
		}
	}
}
