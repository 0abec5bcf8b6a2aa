package comply

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	jsoniter "github.com/json-iterator/go"
)

// json is a drop-in replacement for encoding/json with better performance.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// CompressionSpec is the wire form of a request's compression hint.
type CompressionSpec struct {
	ID string `json:"id"`
}

// FilterSpec is the wire form of one entry in a request's filter chain.
type FilterSpec struct {
	ID          string `json:"id"`
	ElementSize int    `json:"element_size"`
}

// RequestBody is the JSON body of a service request. Every field name
// and enumerated string here is part of the published API schema; drift
// between this struct and the real contract is the single largest source
// of false failures, so nothing in it is renamed for convenience.
type RequestBody struct {
	Source      string           `json:"source"`
	Bucket      string           `json:"bucket"`
	Object      string           `json:"object"`
	DType       string           `json:"dtype"`
	Offset      int64            `json:"offset"`
	Size        *int64           `json:"size"`
	Shape       []int            `json:"shape,omitempty"`
	Order       string           `json:"order"`
	Selection   [][3]int         `json:"selection,omitempty"`
	Axis        []int            `json:"axis,omitempty"`
	Compression *CompressionSpec `json:"compression,omitempty"`
	Filters     []FilterSpec     `json:"filters,omitempty"`
	Missing     map[string]any   `json:"missing,omitempty"`
}

// Request is a fully formed service request: operation path, credentials,
// and body. Negative cases corrupt a Request after construction.
type Request struct {
	// Operation becomes the /v1/{operation}/ path segment. It is a plain
	// string so hand-authored cases can request operations that do not
	// exist.
	Operation string

	Username string
	Password string

	Body RequestBody
}

// NewRequest translates a test case into the service's wire request.
// objectSize is the byte length of the uploaded (possibly encoded)
// fixture; key is its object-store key.
func NewRequest(cfg *Config, c *TestCase, key string, objectSize int64) *Request {
	body := RequestBody{
		Source: cfg.S3Source,
		Bucket: cfg.Bucket,
		Object: key,
		DType:  c.DType.String(),
		Offset: 0,
		Size:   &objectSize,
		Order:  "C",
	}
	if len(c.Shape) > 0 {
		body.Shape = append([]int(nil), c.Shape...)
	}
	if c.Selection != nil {
		body.Selection = c.Selection.Triples()
	}
	if len(c.Axis) > 0 {
		body.Axis = NormalizeAxes(c.Axis)
	}
	if c.Encoding.Compression != CompressionNone {
		body.Compression = &CompressionSpec{ID: c.Encoding.Compression.String()}
	}
	if c.Encoding.Filter != FilterNone {
		body.Filters = []FilterSpec{{
			ID:          c.Encoding.Filter.String(),
			ElementSize: c.DType.Size(),
		}}
	}
	if c.Missing != nil {
		field, value := c.Missing.RequestField()
		body.Missing = map[string]any{field: value}
	}

	return &Request{
		Operation: c.Operation.String(),
		Username:  cfg.AWSID,
		Password:  cfg.AWSPassword,
		Body:      body,
	}
}

// URL returns the request target under the given service base URL.
func (r *Request) URL(proxyURL string) string {
	return fmt.Sprintf("%s/v1/%s/", proxyURL, r.Operation)
}

// HTTPRequest builds the http.Request for the service under test:
// POST /v1/{operation}/ with a JSON body and basic auth.
func (r *Request) HTTPRequest(ctx context.Context, proxyURL string) (*http.Request, error) {
	payload, err := json.Marshal(r.Body)
	if err != nil {
		return nil, fmt.Errorf("comply: encoding request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL(proxyURL), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("comply: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(r.Username, r.Password)
	return req, nil
}
