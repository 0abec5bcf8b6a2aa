package comply

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

func TestOperation_WireNamesRoundTrip(t *testing.T) {
	for _, op := range AllOperations {
		parsed, err := ParseOperation(op.String())
		if err != nil {
			t.Fatalf("ParseOperation(%q) failed: %v", op.String(), err)
		}
		if parsed != op {
			t.Errorf("ParseOperation(%q) = %v, want %v", op.String(), parsed, op)
		}
	}
}

func TestOperation_ResultDType(t *testing.T) {
	if got := OpCount.ResultDType(Float32); got != Int64 {
		t.Errorf("count result dtype = %v, want int64", got)
	}
	if got := OpMean.ResultDType(Int32); got != Int32 {
		t.Errorf("mean result dtype = %v, want int32", got)
	}
	if got := OpSum.ResultDType(Uint16); got != Uint16 {
		t.Errorf("sum result dtype = %v, want uint16", got)
	}
}

// Scenario: 4x4 int32 array, sum over all elements, no selection. The
// expected scalar is the exact sum of all 16 generated values.
func TestEvaluate_SumInt32Exact(t *testing.T) {
	a := NewRandom(Int32, []int{4, 4}, 10)

	var want int64
	for i := 0; i < a.Len(); i++ {
		want += int64(a.Float64(i))
	}

	got, err := Evaluate(a, nil, nil, OpSum, nil)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if got.Result.Rank() != 0 {
		t.Fatalf("sum result rank = %d, want scalar", got.Result.Rank())
	}
	if got.Result.DType() != Int32 {
		t.Fatalf("sum result dtype = %v, want int32", got.Result.DType())
	}
	if int64(got.Result.Float64(0)) != want {
		t.Errorf("sum = %v, want %d", got.Result.Float64(0), want)
	}
	if got.Count != 16 {
		t.Errorf("count = %d, want 16", got.Count)
	}
}

// Scenario: float32 array of 10, selection [2:7:2], mean of the elements
// at indices 2, 4 and 6, within relative tolerance 1e-6.
func TestEvaluate_MeanFloat32Selection(t *testing.T) {
	a := NewRandom(Float32, []int{10}, 10)

	want := (a.Float64(2) + a.Float64(4) + a.Float64(6)) / 3

	got, err := Evaluate(a, nil, Selection{{2, 7, 2}}, OpMean, nil)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if got.Result.DType() != Float32 {
		t.Fatalf("mean result dtype = %v, want float32", got.Result.DType())
	}
	g := got.Result.Float64(0)
	if math.Abs(g-want) > 1e-6*math.Abs(want) {
		t.Errorf("mean = %v, want %v within rel 1e-6", g, want)
	}
	if got.Count != 3 {
		t.Errorf("count = %d, want 3", got.Count)
	}
}

func TestEvaluate_MinMaxCount(t *testing.T) {
	a := fromFloats(Int64, []int{5}, []float64{7, 3, 9, 1, 5})

	min, err := Evaluate(a, nil, nil, OpMin, nil)
	if err != nil {
		t.Fatal(err)
	}
	if min.Result.Float64(0) != 1 {
		t.Errorf("min = %v, want 1", min.Result.Float64(0))
	}

	max, err := Evaluate(a, nil, nil, OpMax, nil)
	if err != nil {
		t.Fatal(err)
	}
	if max.Result.Float64(0) != 9 {
		t.Errorf("max = %v, want 9", max.Result.Float64(0))
	}

	count, err := Evaluate(a, nil, nil, OpCount, nil)
	if err != nil {
		t.Fatal(err)
	}
	if count.Result.DType() != Int64 {
		t.Errorf("count dtype = %v, want int64", count.Result.DType())
	}
	if count.Result.Float64(0) != 5 {
		t.Errorf("count = %v, want 5", count.Result.Float64(0))
	}
}

func TestEvaluate_Select(t *testing.T) {
	a := NewRandom(Float64, []int{20, 5}, 10)
	got, err := Evaluate(a, nil, Selection{{0, 19, 2}, {1, 3, 1}}, OpSelect, nil)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if !equalInts(got.Result.Shape(), []int{10, 2}) {
		t.Errorf("select shape = %v, want [10 2]", got.Result.Shape())
	}
	if got.Result.DType() != Float64 {
		t.Errorf("select dtype = %v, want float64", got.Result.DType())
	}
}

func TestEvaluate_MaskExcludesElements(t *testing.T) {
	a := fromFloats(Int32, []int{4}, []float64{10, 20, 30, 40})
	mask := []bool{false, true, false, true}

	sum, err := Evaluate(a, mask, nil, OpSum, nil)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Result.Float64(0) != 40 {
		t.Errorf("masked sum = %v, want 40", sum.Result.Float64(0))
	}
	if sum.Count != 2 {
		t.Errorf("masked count = %d, want 2", sum.Count)
	}

	min, err := Evaluate(a, mask, nil, OpMin, nil)
	if err != nil {
		t.Fatal(err)
	}
	if min.Result.Float64(0) != 10 {
		t.Errorf("masked min = %v, want 10", min.Result.Float64(0))
	}
}

func TestEvaluate_AxisReduction(t *testing.T) {
	// 2x3 array: rows [1 2 3] and [4 5 6].
	a := fromFloats(Int64, []int{2, 3}, []float64{1, 2, 3, 4, 5, 6})

	// Reducing axis 0 sums down columns.
	got, err := Evaluate(a, nil, nil, OpSum, []int{0})
	if err != nil {
		t.Fatal(err)
	}
	if !equalInts(got.Result.Shape(), []int{3}) {
		t.Fatalf("axis-0 sum shape = %v, want [3]", got.Result.Shape())
	}
	for i, want := range []float64{5, 7, 9} {
		if got.Result.Float64(i) != want {
			t.Errorf("axis-0 sum[%d] = %v, want %v", i, got.Result.Float64(i), want)
		}
	}

	// Reducing axis 1 sums across rows.
	got, err = Evaluate(a, nil, nil, OpSum, []int{1})
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range []float64{6, 15} {
		if got.Result.Float64(i) != want {
			t.Errorf("axis-1 sum[%d] = %v, want %v", i, got.Result.Float64(i), want)
		}
	}
}

func TestEvaluate_AxisOutOfRange(t *testing.T) {
	a := NewRandom(Int32, []int{4}, 10)
	_, err := Evaluate(a, nil, nil, OpSum, []int{1})
	if !errors.Is(err, ErrBadSelection) {
		t.Errorf("expected ErrBadSelection, got: %v", err)
	}
}

// An empty selection must yield the documented sentinels, not panic.
func TestEvaluate_EmptyRangeSentinels(t *testing.T) {
	a := NewRandom(Float64, []int{10}, 10)
	sel := Selection{{5, 5, 1}}

	sum, err := Evaluate(a, nil, sel, OpSum, nil)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Result.Float64(0) != 0 {
		t.Errorf("empty sum = %v, want 0", sum.Result.Float64(0))
	}

	count, err := Evaluate(a, nil, sel, OpCount, nil)
	if err != nil {
		t.Fatal(err)
	}
	if count.Result.Float64(0) != 0 {
		t.Errorf("empty count = %v, want 0", count.Result.Float64(0))
	}

	mean, err := Evaluate(a, nil, sel, OpMean, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !math.IsNaN(mean.Result.Float64(0)) {
		t.Errorf("empty float mean = %v, want NaN", mean.Result.Float64(0))
	}
}

func TestEvaluate_AllMaskedSentinels(t *testing.T) {
	a := NewRandom(Float64, []int{6}, 10)
	mask := []bool{true, true, true, true, true, true}

	mean, err := Evaluate(a, mask, nil, OpMean, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !math.IsNaN(mean.Result.Float64(0)) {
		t.Errorf("all-masked float mean = %v, want NaN", mean.Result.Float64(0))
	}

	b := NewRandom(Int32, []int{6}, 10)
	imean, err := Evaluate(b, mask, nil, OpMean, nil)
	if err != nil {
		t.Fatal(err)
	}
	if imean.Result.Float64(0) != 0 {
		t.Errorf("all-masked int mean = %v, want 0", imean.Result.Float64(0))
	}

	min, err := Evaluate(b, mask, nil, OpMin, nil)
	if err != nil {
		t.Fatal(err)
	}
	if min.Result.Float64(0) != 0 {
		t.Errorf("all-masked min = %v, want 0", min.Result.Float64(0))
	}
}

func TestEvaluate_Idempotent(t *testing.T) {
	a := NewRandom(Float32, []int{20, 5}, 10)
	sel := Selection{{0, 19, 2}, {1, 3, 1}}

	first, err := Evaluate(a, nil, sel, OpMean, nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Evaluate(a, nil, sel, OpMean, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first.Result.Bytes(), second.Result.Bytes()) {
		t.Error("repeated evaluation produced different results")
	}
	if first.Count != second.Count {
		t.Errorf("repeated evaluation produced counts %d and %d", first.Count, second.Count)
	}
}

func TestEvaluate_BadSelectionClassifiedAsRequestError(t *testing.T) {
	a := NewRandom(Int32, []int{10}, 10)
	_, err := Evaluate(a, nil, Selection{{10, 100, 1000}}, OpSum, nil)
	if !errors.Is(err, ErrBadSelection) {
		t.Errorf("expected ErrBadSelection, got: %v", err)
	}
}
