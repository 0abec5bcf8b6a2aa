package mockproxy

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	jsoniter "github.com/json-iterator/go"

	"github.com/activestorage-tools/comply/comply"
	"github.com/activestorage-tools/comply/comply/s3"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	user = "minioadmin"
	pass = "minioadmin"
)

func newServer(t *testing.T) (*httptest.Server, *s3.Store) {
	t.Helper()
	store, err := s3.New(s3.NewMockS3Client(), "test-bucket")
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(New(user, pass, StoreFetcher(store)))
	t.Cleanup(srv.Close)
	return srv, store
}

func testCfg(proxyURL string) *comply.Config {
	return &comply.Config{
		S3Source:    "http://localhost:9000",
		AWSID:       user,
		AWSPassword: pass,
		ProxyURL:    proxyURL,
		Bucket:      "test-bucket",
		Timeout:     comply.DefaultTimeout,
		Parallelism: 1,
		Seed:        comply.DefaultSeed,
	}
}

func do(t *testing.T, req *comply.Request, proxyURL string) *http.Response {
	t.Helper()
	httpReq, err := req.HTTPRequest(context.Background(), proxyURL)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeError(t *testing.T, resp *http.Response) comply.ErrorBody {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	var body comply.ErrorBody
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("error body is not JSON: %v (%s)", err, raw)
	}
	return body
}

func TestSchemaEndpoint(t *testing.T) {
	srv, _ := newServer(t)
	resp, err := http.Get(srv.URL + "/.well-known/s3-active-storage-schema")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestSum_SuccessContract(t *testing.T) {
	srv, store := newServer(t)
	cfg := testCfg(srv.URL)

	arr := comply.NewRandom(comply.Int64, []int{10}, cfg.Seed)
	if err := store.Put(context.Background(), "fixture.bin", arr.Bytes()); err != nil {
		t.Fatal(err)
	}

	c := &comply.TestCase{
		Operation: comply.OpSum,
		DType:     comply.Int64,
		Shape:     []int{10},
		Expect:    comply.ExpectSuccess,
	}
	resp := do(t, comply.NewRequest(cfg, c, "fixture.bin", int64(len(arr.Bytes()))), srv.URL)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get(comply.HeaderDType); got != "int64" {
		t.Errorf("dtype header = %q, want int64", got)
	}
	if got := resp.Header.Get(comply.HeaderShape); got != "[]" {
		t.Errorf("shape header = %q, want []", got)
	}
	if got := resp.Header.Get(comply.HeaderCount); got != "10" {
		t.Errorf("count header = %q, want 10", got)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	var want int64
	for i := 0; i < arr.Len(); i++ {
		want += int64(arr.Float64(i))
	}
	if len(raw) != 8 {
		t.Fatalf("payload is %d bytes, want 8", len(raw))
	}
	if got := int64(binary.LittleEndian.Uint64(raw)); got != want {
		t.Errorf("sum = %d, want %d", got, want)
	}
}

func TestSelect_ReturnsSelectedBytes(t *testing.T) {
	srv, store := newServer(t)
	cfg := testCfg(srv.URL)

	arr := comply.NewRandom(comply.Float32, []int{10}, cfg.Seed)
	if err := store.Put(context.Background(), "fixture.bin", arr.Bytes()); err != nil {
		t.Fatal(err)
	}

	c := &comply.TestCase{
		Operation: comply.OpSelect,
		DType:     comply.Float32,
		Shape:     []int{10},
		Selection: comply.Selection{{Start: 2, Stop: 7, Step: 2}},
		Expect:    comply.ExpectSuccess,
	}
	resp := do(t, comply.NewRequest(cfg, c, "fixture.bin", int64(len(arr.Bytes()))), srv.URL)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get(comply.HeaderShape); got != "[3]" {
		t.Errorf("shape header = %q, want [3]", got)
	}
	if resp.Header.Get(comply.HeaderCount) != "" {
		t.Error("select must not declare a count header")
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	got, err := comply.FromBytes(comply.Float32, []int{3}, raw)
	if err != nil {
		t.Fatal(err)
	}
	for i, src := range []int{2, 4, 6} {
		if got.Float64(i) != arr.Float64(src) {
			t.Errorf("element %d = %v, want %v", i, got.Float64(i), arr.Float64(src))
		}
	}
}

func TestInvalidDType_ClientError(t *testing.T) {
	srv, store := newServer(t)
	cfg := testCfg(srv.URL)

	arr := comply.NewRandom(comply.Int64, []int{10}, cfg.Seed)
	if err := store.Put(context.Background(), "fixture.bin", arr.Bytes()); err != nil {
		t.Fatal(err)
	}

	c := &comply.TestCase{Operation: comply.OpSum, DType: comply.Int64, Shape: []int{10}, Expect: comply.ExpectSuccess}
	req := comply.NewRequest(cfg, c, "fixture.bin", int64(len(arr.Bytes())))
	req.Body.DType = "fake-dtype-64"

	resp := do(t, req, srv.URL)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	body := decodeError(t, resp)
	if body.Error.Code == "" || body.Error.Message == "" {
		t.Errorf("error body missing code or message: %+v", body)
	}
}

func TestUnknownOperation_NotFound(t *testing.T) {
	srv, _ := newServer(t)
	cfg := testCfg(srv.URL)

	c := &comply.TestCase{Operation: comply.OpSum, DType: comply.Int64, Shape: []int{10}, Expect: comply.ExpectSuccess}
	req := comply.NewRequest(cfg, c, "fixture.bin", 80)
	req.Operation = "frobnicate"

	resp := do(t, req, srv.URL)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	body := decodeError(t, resp)
	if body.Error.Code != "unknown-operation" {
		t.Errorf("code = %q, want unknown-operation", body.Error.Code)
	}
}

func TestBadCredentials_Unauthorized(t *testing.T) {
	srv, _ := newServer(t)
	cfg := testCfg(srv.URL)
	cfg.AWSPassword = "wrong"

	c := &comply.TestCase{Operation: comply.OpSum, DType: comply.Int64, Shape: []int{10}, Expect: comply.ExpectSuccess}
	resp := do(t, comply.NewRequest(cfg, c, "fixture.bin", 80), srv.URL)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestMissingObject_ServerError(t *testing.T) {
	srv, _ := newServer(t)
	cfg := testCfg(srv.URL)

	c := &comply.TestCase{Operation: comply.OpSum, DType: comply.Int64, Shape: []int{10}, Expect: comply.ExpectSuccess}
	resp := do(t, comply.NewRequest(cfg, c, "never-uploaded.bin", 80), srv.URL)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	body := decodeError(t, resp)
	if body.Error.Code != "upstream-not-found" {
		t.Errorf("code = %q, want upstream-not-found", body.Error.Code)
	}
}

func TestEncodedFixture_DecodedBeforeEvaluation(t *testing.T) {
	srv, store := newServer(t)
	cfg := testCfg(srv.URL)

	arr := comply.NewRandom(comply.Int32, []int{10}, cfg.Seed)
	enc := comply.Encoding{Compression: comply.CompressionGzip, Filter: comply.FilterShuffle}
	payload, err := enc.Encode(arr.Bytes(), comply.Int32.Size())
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Put(context.Background(), "fixture.bin", payload); err != nil {
		t.Fatal(err)
	}

	c := &comply.TestCase{
		Operation: comply.OpMax,
		DType:     comply.Int32,
		Shape:     []int{10},
		Encoding:  enc,
		Expect:    comply.ExpectSuccess,
	}
	resp := do(t, comply.NewRequest(cfg, c, "fixture.bin", int64(len(payload))), srv.URL)
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, want 200 (%s)", resp.StatusCode, raw)
	}

	var want float64
	for i := 0; i < arr.Len(); i++ {
		if v := arr.Float64(i); v > want {
			want = v
		}
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	got, err := comply.FromBytes(comply.Int32, nil, raw)
	if err != nil {
		t.Fatal(err)
	}
	if got.Float64(0) != want {
		t.Errorf("max = %v, want %v", got.Float64(0), want)
	}
}

func TestMissingDescriptor_MasksSentinels(t *testing.T) {
	srv, store := newServer(t)
	cfg := testCfg(srv.URL)

	arr := comply.NewRandom(comply.Float64, []int{100}, cfg.Seed)
	missing := comply.MissingValue{Value: -1e20}
	missing.Punch(arr)
	if err := store.Put(context.Background(), "fixture.bin", arr.Bytes()); err != nil {
		t.Fatal(err)
	}

	c := &comply.TestCase{
		Operation: comply.OpMin,
		DType:     comply.Float64,
		Shape:     []int{100},
		Missing:   missing,
		Expect:    comply.ExpectSuccess,
	}
	resp := do(t, comply.NewRequest(cfg, c, "fixture.bin", int64(len(arr.Bytes()))), srv.URL)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	got, err := comply.FromBytes(comply.Float64, nil, raw)
	if err != nil {
		t.Fatal(err)
	}
	// The sentinel is the smallest value in the fixture; a masked min must
	// never report it.
	if got.Float64(0) == -1e20 {
		t.Error("min returned the missing-data sentinel")
	}
	if got.Float64(0) < 0 || got.Float64(0) >= 100 {
		t.Errorf("min = %v, want a generated value in [0, 100)", got.Float64(0))
	}
}

func TestTruncatedObject_ServerError(t *testing.T) {
	srv, store := newServer(t)
	cfg := testCfg(srv.URL)

	arr := comply.NewRandom(comply.Int64, []int{10}, cfg.Seed)
	payload := arr.Bytes()[:7]
	if err := store.Put(context.Background(), "fixture.bin", payload); err != nil {
		t.Fatal(err)
	}

	c := &comply.TestCase{Operation: comply.OpSum, DType: comply.Int64, Shape: []int{10}, Expect: comply.ExpectSuccess}
	resp := do(t, comply.NewRequest(cfg, c, "fixture.bin", int64(len(payload))), srv.URL)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	if !bytes.Contains([]byte(decodeError(t, resp).Error.Code), []byte("upstream")) {
		t.Error("truncated object should be an upstream error")
	}
}
