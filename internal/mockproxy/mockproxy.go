// Package mockproxy is a reference implementation of the active storage
// service contract, backed by the suite's own evaluator. It exists so the
// suite can be exercised end to end without a real service: the engine's
// tests run against it, and it doubles as a development target when no
// proxy is deployed.
//
// Because it shares the reference evaluator with the validator, a suite
// run against mockproxy passing proves the harness's plumbing, not any
// service's compliance.
package mockproxy

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/activestorage-tools/comply/comply"
)

// Fetcher retrieves object bytes for a request's source locator.
type Fetcher func(ctx *gin.Context, bucket, object string) ([]byte, error)

// StoreFetcher adapts a comply.Store into a Fetcher. The bucket argument
// is ignored; the store is already bound to one.
func StoreFetcher(store comply.Store) Fetcher {
	return func(c *gin.Context, _, object string) ([]byte, error) {
		return store.Get(c.Request.Context(), object)
	}
}

// New builds the mock service. Requests must authenticate with the given
// basic-auth pair; object bytes come from fetch.
func New(username, password string, fetch Fetcher) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/.well-known/s3-active-storage-schema", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"name":       "mockproxy",
			"operations": []string{"select", "sum", "count", "min", "max", "mean"},
		})
	})

	r.POST("/v1/:operation/", handle(username, password, fetch))
	return r
}

// apiError writes the contract's error body: a machine-readable code and
// a human message under an "error" object.
func apiError(c *gin.Context, status int, code, format string, args ...any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": fmt.Sprintf(format, args...),
		},
	})
}

func handle(username, password string, fetch Fetcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, pass, ok := c.Request.BasicAuth()
		if !ok || user != username || pass != password {
			apiError(c, http.StatusUnauthorized, "unauthorized", "missing or invalid credentials")
			return
		}

		op, err := comply.ParseOperation(c.Param("operation"))
		if err != nil {
			apiError(c, http.StatusNotFound, "unknown-operation", "operation %q is not supported", c.Param("operation"))
			return
		}

		var body comply.RequestBody
		if err := c.ShouldBindJSON(&body); err != nil {
			apiError(c, http.StatusBadRequest, "malformed-request", "undecodable request body: %v", err)
			return
		}
		if msg := validateBody(&body); msg != "" {
			apiError(c, http.StatusBadRequest, "invalid-request", "%s", msg)
			return
		}

		dtype, err := comply.ParseDType(body.DType)
		if err != nil {
			apiError(c, http.StatusBadRequest, "invalid-dtype", "%q is not a valid dtype", body.DType)
			return
		}

		raw, err := fetch(c, body.Bucket, body.Object)
		if err != nil {
			if errors.Is(err, comply.ErrNotFound) {
				apiError(c, http.StatusInternalServerError, "upstream-not-found", "object %q not found in bucket %q", body.Object, body.Bucket)
				return
			}
			apiError(c, http.StatusInternalServerError, "upstream-error", "fetching object: %v", err)
			return
		}
		if body.Size != nil && *body.Size != int64(len(raw)) {
			apiError(c, http.StatusInternalServerError, "upstream-size-mismatch", "object is %d bytes, request declared %d", len(raw), *body.Size)
			return
		}

		enc, encErr := encodingFromBody(&body)
		if encErr != "" {
			apiError(c, http.StatusBadRequest, "invalid-encoding", "%s", encErr)
			return
		}
		decoded, err := enc.Decode(raw, dtype.Size())
		if err != nil {
			apiError(c, http.StatusInternalServerError, "upstream-decode-error", "decoding object: %v", err)
			return
		}

		shape := body.Shape
		arr, err := comply.FromBytes(dtype, shape, decoded)
		if err != nil {
			apiError(c, http.StatusInternalServerError, "upstream-size-mismatch", "%v", err)
			return
		}

		var mask []bool
		if body.Missing != nil {
			missing, msg := missingFromBody(body.Missing)
			if msg != "" {
				apiError(c, http.StatusBadRequest, "invalid-missing", "%s", msg)
				return
			}
			mask = missing.Mask(arr)
		}

		sel := selectionFromBody(body.Selection)
		expected, err := comply.Evaluate(arr, mask, sel, op, body.Axis)
		if err != nil {
			if errors.Is(err, comply.ErrBadSelection) {
				apiError(c, http.StatusBadRequest, "invalid-selection", "%v", err)
				return
			}
			apiError(c, http.StatusInternalServerError, "evaluation-error", "%v", err)
			return
		}

		result := expected.Result
		payload := result.Bytes()
		c.Header(comply.HeaderDType, result.DType().String())
		c.Header(comply.HeaderShape, shapeHeader(result.Shape()))
		if op.Reduces() {
			c.Header(comply.HeaderCount, strconv.FormatInt(expected.Count, 10))
		}
		c.Data(http.StatusOK, "application/octet-stream", payload)
	}
}

// validateBody applies the request-schema rules that bind independent of
// dtype: required locator fields, non-negative offset and size, positive
// dimensions, selection requiring a shape, and C ordering.
func validateBody(b *comply.RequestBody) string {
	if b.Source == "" {
		return "source is required"
	}
	if b.Bucket == "" {
		return "bucket is required"
	}
	if b.Object == "" {
		return "object is required"
	}
	if b.Offset < 0 {
		return fmt.Sprintf("offset %d must not be negative", b.Offset)
	}
	if b.Size != nil && *b.Size <= 0 {
		return fmt.Sprintf("size %d must be positive", *b.Size)
	}
	for _, dim := range b.Shape {
		if dim < 1 {
			return fmt.Sprintf("shape dimension %d must be positive", dim)
		}
	}
	if len(b.Selection) > 0 && len(b.Shape) == 0 {
		return "selection requires a shape"
	}
	if b.Order != "" && b.Order != "C" {
		return fmt.Sprintf("order %q is not supported, only C ordering", b.Order)
	}
	return ""
}

func encodingFromBody(b *comply.RequestBody) (comply.Encoding, string) {
	var enc comply.Encoding
	if b.Compression != nil {
		c, err := comply.ParseCompression(b.Compression.ID)
		if err != nil {
			return enc, fmt.Sprintf("compression %q is not supported", b.Compression.ID)
		}
		enc.Compression = c
	}
	for _, f := range b.Filters {
		filt, err := comply.ParseFilter(f.ID)
		if err != nil {
			return enc, fmt.Sprintf("filter %q is not supported", f.ID)
		}
		enc.Filter = filt
	}
	return enc, ""
}

func missingFromBody(m map[string]any) (comply.Missing, string) {
	if len(m) != 1 {
		return nil, "missing must declare exactly one descriptor"
	}
	for field, value := range m {
		switch field {
		case "missing_value":
			v, ok := toFloat(value)
			if !ok {
				return nil, "missing_value must be numeric"
			}
			return comply.MissingValue{Value: v}, ""
		case "missing_values":
			vals, ok := toFloats(value)
			if !ok {
				return nil, "missing_values must be a numeric list"
			}
			return comply.MissingValues{Values: vals}, ""
		case "valid_max":
			v, ok := toFloat(value)
			if !ok {
				return nil, "valid_max must be numeric"
			}
			return comply.ValidMax{Max: v}, ""
		case "valid_min":
			v, ok := toFloat(value)
			if !ok {
				return nil, "valid_min must be numeric"
			}
			return comply.ValidMin{Min: v}, ""
		case "valid_range":
			vals, ok := toFloats(value)
			if !ok || len(vals) != 2 {
				return nil, "valid_range must be a [min, max] pair"
			}
			return comply.ValidRange{Min: vals[0], Max: vals[1]}, ""
		default:
			return nil, fmt.Sprintf("unknown missing descriptor %q", field)
		}
	}
	return nil, "missing must declare exactly one descriptor"
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func toFloats(v any) ([]float64, bool) {
	list, ok := v.([]any)
	if !ok {
		if typed, ok := v.([]float64); ok {
			return typed, true
		}
		return nil, false
	}
	out := make([]float64, len(list))
	for i, item := range list {
		f, ok := toFloat(item)
		if !ok {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}

func selectionFromBody(triples [][3]int) comply.Selection {
	if triples == nil {
		return nil
	}
	sel := make(comply.Selection, len(triples))
	for i, t := range triples {
		sel[i] = comply.Slice{Start: t[0], Stop: t[1], Step: t[2]}
	}
	return sel
}

func shapeHeader(shape []int) string {
	if len(shape) == 0 {
		return "[]"
	}
	out := "["
	for i, dim := range shape {
		if i > 0 {
			out += ", "
		}
		out += strconv.Itoa(dim)
	}
	return out + "]"
}
