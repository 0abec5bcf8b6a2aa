package comply

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
)

func TestNewRandom_Deterministic(t *testing.T) {
	for _, d := range AllDTypes {
		a := NewRandom(d, []int{20, 5}, 10)
		b := NewRandom(d, []int{20, 5}, 10)
		if !bytes.Equal(a.Bytes(), b.Bytes()) {
			t.Errorf("%v: same seed produced different arrays", d)
		}
	}
}

func TestNewRandom_SeedChangesValues(t *testing.T) {
	a := NewRandom(Float64, []int{100}, 10)
	b := NewRandom(Float64, []int{100}, 11)
	if bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Error("different seeds produced identical arrays")
	}
}

func TestNewRandom_ValueRange(t *testing.T) {
	for _, d := range AllDTypes {
		a := NewRandom(d, []int{100}, 10)
		for i := 0; i < a.Len(); i++ {
			v := a.Float64(i)
			if v < 0 || v >= 100 {
				t.Fatalf("%v element %d = %v, want [0, 100)", d, i, v)
			}
		}
	}
}

func TestArray_BytesLittleEndian(t *testing.T) {
	a := fromFloats(Int32, []int{2}, []float64{1, 258})
	raw := a.Bytes()
	if len(raw) != 8 {
		t.Fatalf("len(raw) = %d, want 8", len(raw))
	}
	if got := binary.LittleEndian.Uint32(raw[0:]); got != 1 {
		t.Errorf("element 0 = %d, want 1", got)
	}
	if got := binary.LittleEndian.Uint32(raw[4:]); got != 258 {
		t.Errorf("element 1 = %d, want 258", got)
	}
}

func TestArray_BytesRoundTrip(t *testing.T) {
	for _, d := range AllDTypes {
		a := NewRandom(d, []int{4, 3}, 10)
		back, err := FromBytes(d, []int{4, 3}, a.Bytes())
		if err != nil {
			t.Fatalf("%v: FromBytes failed: %v", d, err)
		}
		if !bytes.Equal(a.Bytes(), back.Bytes()) {
			t.Errorf("%v: byte round-trip changed data", d)
		}
	}
}

func TestFromBytes_LengthMismatch(t *testing.T) {
	if _, err := FromBytes(Int64, []int{10}, make([]byte, 7)); err == nil {
		t.Error("FromBytes should reject a 7-byte payload for int64[10]")
	}
}

func TestFromBytes_Scalar(t *testing.T) {
	raw := make([]byte, 8)
	binary.LittleEndian.PutUint64(raw, math.Float64bits(2.5))
	a, err := FromBytes(Float64, nil, raw)
	if err != nil {
		t.Fatalf("FromBytes failed: %v", err)
	}
	if a.Len() != 1 || a.Rank() != 0 {
		t.Fatalf("scalar has len %d rank %d, want 1 and 0", a.Len(), a.Rank())
	}
	if a.Float64(0) != 2.5 {
		t.Errorf("scalar = %v, want 2.5", a.Float64(0))
	}
}

func TestArray_SetFloat64Truncates(t *testing.T) {
	a := NewRandom(Int32, []int{4}, 10)
	a.SetFloat64(2, -999)
	if got := a.Float64(2); got != -999 {
		t.Errorf("element 2 = %v, want -999", got)
	}
}

func TestArray_ShapeIsCopied(t *testing.T) {
	a := NewRandom(Int32, []int{3, 2}, 10)
	s := a.Shape()
	s[0] = 99
	if a.Shape()[0] != 3 {
		t.Error("mutating the returned shape changed the array")
	}
}
