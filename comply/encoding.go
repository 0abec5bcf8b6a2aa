package comply

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// Compression enumerates the compression algorithms the service contract
// names. The String form of each value is also its wire name.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionZlib
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionGzip:
		return "gzip"
	case CompressionZlib:
		return "zlib"
	default:
		return fmt.Sprintf("compression(%d)", int(c))
	}
}

// ParseCompression maps a wire compression name back to its enum value.
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "gzip":
		return CompressionGzip, nil
	case "zlib":
		return CompressionZlib, nil
	default:
		return 0, fmt.Errorf("comply: unknown compression %q", s)
	}
}

// Filter enumerates the filter algorithms the service contract names.
type Filter int

const (
	FilterNone Filter = iota
	FilterShuffle
)

func (f Filter) String() string {
	switch f {
	case FilterNone:
		return "none"
	case FilterShuffle:
		return "shuffle"
	default:
		return fmt.Sprintf("filter(%d)", int(f))
	}
}

// ParseFilter maps a wire filter name back to its enum value.
func ParseFilter(s string) (Filter, error) {
	if s == "shuffle" {
		return FilterShuffle, nil
	}
	return 0, fmt.Errorf("comply: unknown filter %q", s)
}

// Encoding is the optional transformation applied to an array's raw
// bytes before upload. The write order is filter then compression; the
// service decodes in the inverse order (decompress, then unfilter).
type Encoding struct {
	Compression Compression
	Filter      Filter
}

// IsZero reports whether the encoding leaves bytes untouched.
func (e Encoding) IsZero() bool {
	return e.Compression == CompressionNone && e.Filter == FilterNone
}

// Encode applies the filter and then the compression to raw. elemSize is
// the array's dtype item size, which the shuffle filter needs.
func (e Encoding) Encode(raw []byte, elemSize int) ([]byte, error) {
	data := raw
	if e.Filter == FilterShuffle {
		data = shuffle(data, elemSize)
	}
	switch e.Compression {
	case CompressionNone:
		return data, nil
	case CompressionGzip:
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("comply: gzip: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("comply: gzip: %w", err)
		}
		return buf.Bytes(), nil
	case CompressionZlib:
		var buf bytes.Buffer
		w := zlib.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("comply: zlib: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("comply: zlib: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("comply: unknown compression %v", e.Compression)
	}
}

// Decode inverts Encode: decompress, then unfilter.
func (e Encoding) Decode(data []byte, elemSize int) ([]byte, error) {
	out := data
	switch e.Compression {
	case CompressionNone:
	case CompressionGzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("comply: gzip: %w", err)
		}
		defer func() { _ = r.Close() }()
		if out, err = io.ReadAll(r); err != nil {
			return nil, fmt.Errorf("comply: gzip: %w", err)
		}
	case CompressionZlib:
		r, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("comply: zlib: %w", err)
		}
		defer func() { _ = r.Close() }()
		if out, err = io.ReadAll(r); err != nil {
			return nil, fmt.Errorf("comply: zlib: %w", err)
		}
	default:
		return nil, fmt.Errorf("comply: unknown compression %v", e.Compression)
	}
	if e.Filter == FilterShuffle {
		out = unshuffle(out, elemSize)
	}
	return out, nil
}

// shuffle applies the byte-transpose filter: for N elements of size k,
// the output holds all first bytes, then all second bytes, and so on.
// Grouping like-significance bytes makes the stream more compressible.
func shuffle(data []byte, elemSize int) []byte {
	if elemSize <= 1 || len(data)%elemSize != 0 {
		return append([]byte(nil), data...)
	}
	n := len(data) / elemSize
	out := make([]byte, len(data))
	for i := 0; i < n; i++ {
		for b := 0; b < elemSize; b++ {
			out[b*n+i] = data[i*elemSize+b]
		}
	}
	return out
}

// unshuffle inverts shuffle.
func unshuffle(data []byte, elemSize int) []byte {
	if elemSize <= 1 || len(data)%elemSize != 0 {
		return append([]byte(nil), data...)
	}
	n := len(data) / elemSize
	out := make([]byte, len(data))
	for i := 0; i < n; i++ {
		for b := 0; b < elemSize; b++ {
			out[i*elemSize+b] = data[b*n+i]
		}
	}
	return out
}
