package comply

import (
	"context"
	"fmt"
	"io"
	"iter"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Runner executes a batch of test cases against the service under test.
//
// Each case walks the same state machine: generated → fixture-uploaded →
// request-sent → response-received → {passed | failed | errored} →
// fixture-deleted. Fixture deletion is attempted on every terminal
// transition; its own failure is logged but never changes the verdict.
// Cases are independent and run concurrently up to the configured bound.
type Runner struct {
	cfg       *Config
	store     Store
	client    *http.Client
	validator *Validator
	log       *zap.Logger
	runID     string
}

// NewRunner wires a runner from its collaborators. A nil client uses
// http.DefaultClient; a nil logger disables logging.
func NewRunner(cfg *Config, store Store, client *http.Client, log *zap.Logger) *Runner {
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		cfg:       cfg,
		store:     store,
		client:    client,
		validator: &Validator{CheckCountHeader: cfg.TestCountHeader},
		log:       log,
		runID:     uuid.NewString(),
	}
}

// Ping confirms the service under test is reachable by fetching its
// schema document. It is a precondition check, not a compliance
// assertion: any response at all counts as reachable.
func (r *Runner) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		r.cfg.ProxyURL+"/.well-known/s3-active-storage-schema", nil)
	if err != nil {
		return fmt.Errorf("comply: building ping request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return &InfraError{Stage: "ping", Err: err}
	}
	_ = resp.Body.Close()
	return nil
}

// Run executes every case in the sequence and returns the aggregated
// report. Individual compliance failures and infrastructure errors never
// abort the batch. Cancelling ctx stops admitting new cases; in-flight
// cases finish their cleanup, and cases never admitted are reported as
// skipped.
func (r *Runner) Run(ctx context.Context, cases iter.Seq[*TestCase]) *Report {
	sem := semaphore.NewWeighted(int64(r.cfg.Parallelism))

	var (
		mu       sync.Mutex
		verdicts []Verdict
		wg       sync.WaitGroup
	)
	record := func(v Verdict) {
		mu.Lock()
		verdicts = append(verdicts, v)
		mu.Unlock()
	}

	for c := range cases {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Run cancelled: everything not yet admitted is skipped.
			record(Verdict{Case: c, Status: StatusSkipped})
			continue
		}
		wg.Add(1)
		go func(c *TestCase) {
			defer wg.Done()
			defer sem.Release(1)
			record(r.runCase(ctx, c))
		}(c)
	}
	wg.Wait()

	report := &Report{Verdicts: verdicts}
	for _, v := range verdicts {
		switch v.Status {
		case StatusPassed:
			report.Summary.Passed++
		case StatusFailed:
			report.Summary.Failed++
		case StatusErrored:
			report.Summary.Errored++
		case StatusSkipped:
			report.Summary.Skipped++
		}
	}
	r.log.Info("run complete",
		zap.Int("passed", report.Summary.Passed),
		zap.Int("failed", report.Summary.Failed),
		zap.Int("errored", report.Summary.Errored),
		zap.Int("skipped", report.Summary.Skipped),
	)
	return report
}

// runCase executes one case end to end. The returned verdict carries the
// full case identity.
func (r *Runner) runCase(ctx context.Context, c *TestCase) Verdict {
	start := time.Now()
	log := r.log.With(zap.String("case", c.Identity()))

	verdict := func(status Status, failure *ComplianceError, err error) Verdict {
		return Verdict{Case: c, Status: status, Failure: failure, Err: err, Duration: time.Since(start)}
	}

	// Build the fixture and its reference mask.
	arr := NewRandom(c.DType, c.Shape, r.cfg.Seed)
	var mask []bool
	if c.Missing != nil {
		c.Missing.Punch(arr)
		mask = c.Missing.Mask(arr)
	}

	payload, err := c.Encoding.Encode(arr.Bytes(), c.DType.Size())
	if err != nil {
		return verdict(StatusErrored, nil, &InfraError{Stage: "encode", Err: err})
	}
	if c.Truncate > 0 && c.Truncate < len(payload) {
		payload = payload[:c.Truncate]
	}

	key := c.FixtureKey(r.runID)
	if !c.SkipUpload {
		if err := r.upload(ctx, key, payload); err != nil {
			log.Warn("fixture upload failed", zap.Error(err))
			return verdict(StatusErrored, nil, err)
		}
		// The fixture is deleted on every terminal path, even when
		// validation panics, so a failed run cannot leak objects.
		defer r.deleteFixture(key, log)
	}

	// Compute the expected result before touching the network; an
	// evaluator rejection means the case itself is inconsistent.
	var expected *Expected
	if c.Expect == ExpectSuccess {
		expected, err = Evaluate(arr, mask, c.Selection, c.Operation, c.Axis)
		if err != nil {
			return verdict(StatusErrored, nil, fmt.Errorf("comply: reference evaluation: %w", err))
		}
	}

	req := NewRequest(r.cfg, c, key, int64(len(payload)))
	if c.Mutate != nil {
		c.Mutate(req)
	}

	obs, err := r.send(ctx, req)
	if err != nil {
		log.Warn("request failed", zap.Error(err))
		return verdict(StatusErrored, nil, err)
	}

	if failure := r.validator.Validate(c, obs, expected); failure != nil {
		log.Info("case failed",
			zap.String("reason", string(failure.Reason)),
			zap.String("detail", failure.Detail),
		)
		return verdict(StatusFailed, failure, nil)
	}
	log.Debug("case passed", zap.Duration("elapsed", time.Since(start)))
	return verdict(StatusPassed, nil, nil)
}

func (r *Runner) upload(ctx context.Context, key string, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()
	if err := r.store.Put(ctx, key, payload); err != nil {
		return &InfraError{Stage: "upload", Err: err}
	}
	return nil
}

// deleteFixture removes a fixture at the end of a case. Deletion uses a
// fresh context so cleanup still runs after the run context is
// cancelled; a failed delete is logged and the verdict stands.
func (r *Runner) deleteFixture(key string, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.Timeout)
	defer cancel()
	if err := r.store.Delete(ctx, key); err != nil {
		log.Warn("fixture delete failed", zap.String("key", key), zap.Error(err))
	}
}

func (r *Runner) send(ctx context.Context, req *Request) (*Observed, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	httpReq, err := req.HTTPRequest(ctx, r.cfg.ProxyURL)
	if err != nil {
		return nil, &InfraError{Stage: "request", Err: err}
	}
	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, &InfraError{Stage: "request", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &InfraError{Stage: "request", Err: err}
	}
	return &Observed{Status: resp.StatusCode, Header: resp.Header, Body: body}, nil
}
