// Package comply is a compliance test engine for active storage proxies.
//
// An active storage proxy computes reductions (sum, min, max, mean, count)
// over numeric arrays held in an object store and returns the result instead
// of the raw bytes. This package generates a combinatorial matrix of test
// cases, computes the expected result of each with a local reference
// evaluator, issues the equivalent request against the service under test,
// and classifies any divergence.
//
// The engine distinguishes three kinds of failure: compliance failures
// (the service diverged from its contract), infrastructure errors (the
// harness's own plumbing broke), and configuration errors (fatal before
// any case runs). A broken environment is never reported as a
// non-compliant service.
package comply

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// -----------------------------------------------------------------------------
// Object store capability
// -----------------------------------------------------------------------------

// Store is the object-store capability the suite needs for fixtures.
//
// Implementations must be safe for concurrent use; each test case owns a
// distinct key, so no coordination between cases is required.
type Store interface {
	// EnsureBucket creates the fixture bucket if it does not exist.
	EnsureBucket(ctx context.Context) error

	// Put writes a fixture object under the given key.
	Put(ctx context.Context, key string, data []byte) error

	// Get retrieves a fixture object. Returns ErrNotFound for missing keys.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes the key if it exists. Safe to call on missing keys.
	Delete(ctx context.Context, key string) error
}

// -----------------------------------------------------------------------------
// Outcomes and verdicts
// -----------------------------------------------------------------------------

// Outcome is the expected classification of a test case.
type Outcome int

const (
	// ExpectSuccess means the service must return the reference result.
	ExpectSuccess Outcome = iota

	// ExpectClientError means the service must reject the request with a
	// 4xx status and a well-formed error body.
	ExpectClientError

	// ExpectServerError means the service must fail with a 5xx status and
	// a well-formed error body (for example, unreachable backing data).
	ExpectServerError
)

func (o Outcome) String() string {
	switch o {
	case ExpectSuccess:
		return "success"
	case ExpectClientError:
		return "client-error"
	case ExpectServerError:
		return "server-error"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Status is the terminal state of an executed test case.
type Status int

const (
	// StatusPassed means observed behavior matched the contract.
	StatusPassed Status = iota

	// StatusFailed means the service diverged from the contract.
	StatusFailed

	// StatusErrored means the harness could not execute the case
	// (upload failure, timeout, unreachable service).
	StatusErrored

	// StatusSkipped means the case was never admitted, typically because
	// the run was cancelled.
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusErrored:
		return "errored"
	case StatusSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Verdict records the terminal state of one test case. The full case
// identity travels with the verdict so failures are reproducible without
// re-running the suite.
type Verdict struct {
	Case     *TestCase
	Status   Status
	Failure  *ComplianceError // set when Status is StatusFailed
	Err      error            // set when Status is StatusErrored
	Duration time.Duration
}

// Summary aggregates verdicts for the exit surface.
type Summary struct {
	Passed  int
	Failed  int
	Errored int
	Skipped int
}

// Total returns the number of cases accounted for.
func (s Summary) Total() int { return s.Passed + s.Failed + s.Errored + s.Skipped }

// Ok reports whether the run as a whole should exit zero.
func (s Summary) Ok() bool { return s.Failed == 0 && s.Errored == 0 }

// Report is the result of a full suite run.
type Report struct {
	Verdicts []Verdict
	Summary  Summary
}

// -----------------------------------------------------------------------------
// Error taxonomy
// -----------------------------------------------------------------------------

// Reason identifies the precise way a service response diverged.
type Reason string

const (
	ReasonStatus    Reason = "wrong-status"
	ReasonDType     Reason = "wrong-dtype"
	ReasonShape     Reason = "wrong-shape"
	ReasonValue     Reason = "wrong-value"
	ReasonHeader    Reason = "wrong-header"
	ReasonErrorBody Reason = "malformed-error-body"
)

// ComplianceError reports a divergence between observed service behavior
// and the documented contract.
type ComplianceError struct {
	Reason Reason
	Detail string
}

func (e *ComplianceError) Error() string {
	return fmt.Sprintf("compliance: %s: %s", e.Reason, e.Detail)
}

// InfraError reports a failure in the harness's own plumbing. It does not
// count as evidence of non-compliance.
type InfraError struct {
	Stage string // "upload", "request", "delete"
	Err   error
}

func (e *InfraError) Error() string {
	return fmt.Sprintf("infrastructure: %s: %v", e.Stage, e.Err)
}

func (e *InfraError) Unwrap() error { return e.Err }

// Error sentinel values for common conditions.
var (
	// ErrNotFound indicates a requested object does not exist in the store.
	ErrNotFound = errors.New("not found")

	// ErrBadSelection indicates a selection that the service contract
	// classifies as a request error (out of range, bad step, rank mismatch).
	ErrBadSelection = errors.New("invalid selection")

	// ErrBadConfig indicates a missing or invalid required setting.
	// Configuration errors are fatal before any case runs.
	ErrBadConfig = errors.New("invalid configuration")
)
