package comply

import (
	"bytes"
	"testing"
)

func TestParseCompression(t *testing.T) {
	for name, want := range map[string]Compression{"gzip": CompressionGzip, "zlib": CompressionZlib} {
		got, err := ParseCompression(name)
		if err != nil {
			t.Fatalf("ParseCompression(%q) failed: %v", name, err)
		}
		if got != want {
			t.Errorf("ParseCompression(%q) = %v, want %v", name, got, want)
		}
	}
	if _, err := ParseCompression("none"); err == nil {
		t.Error("ParseCompression should reject the none placeholder")
	}
	if _, err := ParseCompression("lz4"); err == nil {
		t.Error("ParseCompression should reject unknown algorithms")
	}
}

func TestShuffle_ByteTranspose(t *testing.T) {
	// Three 4-byte elements; the transpose groups like-significance bytes.
	in := []byte{
		0xA0, 0xA1, 0xA2, 0xA3,
		0xB0, 0xB1, 0xB2, 0xB3,
		0xC0, 0xC1, 0xC2, 0xC3,
	}
	want := []byte{
		0xA0, 0xB0, 0xC0,
		0xA1, 0xB1, 0xC1,
		0xA2, 0xB2, 0xC2,
		0xA3, 0xB3, 0xC3,
	}
	got := shuffle(in, 4)
	if !bytes.Equal(got, want) {
		t.Errorf("shuffle = % x, want % x", got, want)
	}
	if back := unshuffle(got, 4); !bytes.Equal(back, in) {
		t.Errorf("unshuffle = % x, want % x", back, in)
	}
}

func TestShuffle_SingleByteElementsAreUntouched(t *testing.T) {
	in := []byte{1, 2, 3, 4, 5}
	if got := shuffle(in, 1); !bytes.Equal(got, in) {
		t.Errorf("shuffle(elemSize=1) = %v, want input unchanged", got)
	}
}

func TestEncoding_RoundTrip(t *testing.T) {
	encodings := []Encoding{
		{},
		{Compression: CompressionGzip},
		{Compression: CompressionZlib},
		{Filter: FilterShuffle},
		{Compression: CompressionGzip, Filter: FilterShuffle},
		{Compression: CompressionZlib, Filter: FilterShuffle},
	}
	for _, d := range []DType{Uint8, Int32, Float64} {
		a := NewRandom(d, []int{20, 5}, 10)
		raw := a.Bytes()
		for _, enc := range encodings {
			encoded, err := enc.Encode(raw, d.Size())
			if err != nil {
				t.Fatalf("%v %+v: Encode failed: %v", d, enc, err)
			}
			decoded, err := enc.Decode(encoded, d.Size())
			if err != nil {
				t.Fatalf("%v %+v: Decode failed: %v", d, enc, err)
			}
			if !bytes.Equal(decoded, raw) {
				t.Errorf("%v %+v: round-trip changed data", d, enc)
			}
		}
	}
}

func TestEncoding_CompressionChangesBytes(t *testing.T) {
	a := NewRandom(Float64, []int{100}, 10)
	raw := a.Bytes()
	for _, c := range []Compression{CompressionGzip, CompressionZlib} {
		enc := Encoding{Compression: c}
		encoded, err := enc.Encode(raw, 8)
		if err != nil {
			t.Fatalf("%v: Encode failed: %v", c, err)
		}
		if bytes.Equal(encoded, raw) {
			t.Errorf("%v: encoded payload identical to raw", c)
		}
	}
}

func TestEncoding_DecodeRejectsGarbage(t *testing.T) {
	enc := Encoding{Compression: CompressionGzip}
	if _, err := enc.Decode([]byte("not a gzip stream"), 4); err == nil {
		t.Error("Decode should reject a non-gzip payload")
	}
}

func TestEncoding_IsZero(t *testing.T) {
	if !(Encoding{}).IsZero() {
		t.Error("empty encoding should be zero")
	}
	if (Encoding{Filter: FilterShuffle}).IsZero() {
		t.Error("shuffle-only encoding should not be zero")
	}
}
