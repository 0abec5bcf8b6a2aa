package comply

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
)

// Response header names the service contract declares.
const (
	HeaderDType = "x-activestorage-dtype"
	HeaderShape = "x-activestorage-shape"
	HeaderCount = "x-activestorage-count"
)

// Observed is a parsed service response: everything the validator needs,
// detached from the transport.
type Observed struct {
	Status int
	Header http.Header
	Body   []byte
}

// ErrorBody is the documented shape of an error response.
type ErrorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Validator checks observed service responses against expectations.
type Validator struct {
	// CheckCountHeader enables the optional x-activestorage-count
	// assertion on success responses.
	CheckCountHeader bool
}

// Validate compares an observed response against the case's expected
// outcome. expected is consulted only for success-classified cases. A
// nil return means the case passed; a *ComplianceError pinpoints the
// divergence.
func (v *Validator) Validate(c *TestCase, obs *Observed, expected *Expected) *ComplianceError {
	switch c.Expect {
	case ExpectSuccess:
		return v.validateSuccess(c, obs, expected)
	case ExpectClientError:
		return v.validateError(obs, 400, 499)
	case ExpectServerError:
		return v.validateError(obs, 500, 599)
	default:
		return &ComplianceError{Reason: ReasonStatus, Detail: fmt.Sprintf("unknown expectation %v", c.Expect)}
	}
}

func (v *Validator) validateSuccess(c *TestCase, obs *Observed, expected *Expected) *ComplianceError {
	if obs.Status != http.StatusOK {
		return &ComplianceError{
			Reason: ReasonStatus,
			Detail: fmt.Sprintf("status %d, want 200 (body: %s)", obs.Status, truncateBody(obs.Body)),
		}
	}
	if ct := obs.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/octet-stream") {
		return &ComplianceError{Reason: ReasonHeader, Detail: fmt.Sprintf("content-type %q, want application/octet-stream", ct)}
	}

	// The response headers, not the request, are the authority on what
	// the service claims to have returned.
	declaredDType, err := ParseDType(obs.Header.Get(HeaderDType))
	if err != nil {
		return &ComplianceError{Reason: ReasonDType, Detail: fmt.Sprintf("undecodable %s header %q", HeaderDType, obs.Header.Get(HeaderDType))}
	}
	wantDType := expected.Result.DType()
	if declaredDType != wantDType {
		return &ComplianceError{Reason: ReasonDType, Detail: fmt.Sprintf("dtype %s, want %s", declaredDType, wantDType)}
	}

	declaredShape, err := parseShapeHeader(obs.Header.Get(HeaderShape))
	if err != nil {
		return &ComplianceError{Reason: ReasonShape, Detail: fmt.Sprintf("undecodable %s header %q", HeaderShape, obs.Header.Get(HeaderShape))}
	}
	wantShape := expected.Result.Shape()
	if !equalInts(declaredShape, wantShape) {
		return &ComplianceError{Reason: ReasonShape, Detail: fmt.Sprintf("shape %v, want %v", declaredShape, wantShape)}
	}

	got, err := FromBytes(declaredDType, declaredShape, obs.Body)
	if err != nil {
		return &ComplianceError{Reason: ReasonValue, Detail: err.Error()}
	}

	if ce := compareArrays(got, expected.Result); ce != nil {
		return ce
	}

	if raw := obs.Header.Get("Content-Length"); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil && n != int64(len(obs.Body)) {
			return &ComplianceError{Reason: ReasonHeader, Detail: fmt.Sprintf("content-length %d, payload is %d bytes", n, len(obs.Body))}
		}
	}

	if v.CheckCountHeader && c.Operation.Reduces() {
		raw := obs.Header.Get(HeaderCount)
		if raw == "" {
			return &ComplianceError{Reason: ReasonHeader, Detail: HeaderCount + " header missing"}
		}
		count, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return &ComplianceError{Reason: ReasonHeader, Detail: fmt.Sprintf("undecodable %s header %q", HeaderCount, raw)}
		}
		if count != expected.Count {
			return &ComplianceError{Reason: ReasonHeader, Detail: fmt.Sprintf("%s %d, want %d", HeaderCount, count, expected.Count)}
		}
	}
	return nil
}

func (v *Validator) validateError(obs *Observed, lo, hi int) *ComplianceError {
	if obs.Status < lo || obs.Status > hi {
		return &ComplianceError{
			Reason: ReasonStatus,
			Detail: fmt.Sprintf("status %d, want %d-%d (body: %s)", obs.Status, lo, hi, truncateBody(obs.Body)),
		}
	}
	if ct := obs.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		return &ComplianceError{Reason: ReasonErrorBody, Detail: fmt.Sprintf("content-type %q, want application/json", ct)}
	}
	var body ErrorBody
	if err := json.Unmarshal(obs.Body, &body); err != nil {
		return &ComplianceError{Reason: ReasonErrorBody, Detail: fmt.Sprintf("undecodable error body: %s", truncateBody(obs.Body))}
	}
	if body.Error.Code == "" || body.Error.Message == "" {
		return &ComplianceError{Reason: ReasonErrorBody, Detail: fmt.Sprintf("error body missing code or message: %s", truncateBody(obs.Body))}
	}
	return nil
}

// compareArrays compares element-wise with a tolerance appropriate to
// the dtype: bit-exact for integers, relative+absolute epsilon for
// floats, with NaN considered equal to NaN.
func compareArrays(got, want *Array) *ComplianceError {
	for i := 0; i < want.Len(); i++ {
		g, w := got.Float64(i), want.Float64(i)
		if want.DType().IsFloat() {
			if !floatClose(g, w, want.DType()) {
				return &ComplianceError{
					Reason: ReasonValue,
					Detail: fmt.Sprintf("element %d is %v, want %v (±tolerance)", i, g, w),
				}
			}
			continue
		}
		if g != w {
			return &ComplianceError{
				Reason: ReasonValue,
				Detail: fmt.Sprintf("element %d is %v, want %v", i, g, w),
			}
		}
	}
	return nil
}

// Float tolerances: relative 1e-6 matches float32 precision; float64
// results get a tighter bound. The absolute floor covers results near
// zero.
const (
	rtolFloat32 = 1e-6
	rtolFloat64 = 1e-9
	atol        = 1e-12
)

func floatClose(got, want float64, d DType) bool {
	if math.IsNaN(got) && math.IsNaN(want) {
		return true
	}
	rtol := rtolFloat64
	if d == Float32 {
		rtol = rtolFloat32
	}
	return math.Abs(got-want) <= atol+rtol*math.Abs(want)
}

// parseShapeHeader decodes the x-activestorage-shape header, a JSON int
// list such as "[3, 2]". A scalar result declares "[]".
func parseShapeHeader(raw string) ([]int, error) {
	if raw == "" {
		return nil, fmt.Errorf("comply: missing shape header")
	}
	var shape []int
	if err := json.Unmarshal([]byte(raw), &shape); err != nil {
		return nil, fmt.Errorf("comply: parsing shape header: %w", err)
	}
	return shape, nil
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func truncateBody(b []byte) string {
	const limit = 200
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
