package loadtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/FairForge/storm/internal/submit"
)

// FailureKind classifies why a job did not succeed.
type FailureKind string

const (
	FailureFileRead  FailureKind = "file_read"
	FailureEncoding  FailureKind = "encoding"
	FailureTransport FailureKind = "transport"
	FailureRejection FailureKind = "rejection"
	// FailureInternal marks a panic recovered inside a worker.
	FailureInternal FailureKind = "internal"
)

var errEncoding = errors.New("encoding error")

type fileReadError struct {
	path string
	err  error
}

func (e *fileReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.path, e.err)
}

func (e *fileReadError) Unwrap() error {
	return e.err
}

// Failure describes a failed job.
type Failure struct {
	Kind       FailureKind
	Reason     string
	StatusCode int
	Timeout    bool
	Err        error
}

// Result is the outcome of exactly one Job.
type Result struct {
	ContentID string
	Mode      Mode
	Elapsed   time.Duration
	Failure   *Failure
}

// Succeeded reports whether the job completed without error.
func (r Result) Succeeded() bool {
	return r.Failure == nil
}

// ElapsedMillis returns the elapsed time in whole milliseconds, never negative.
func (r Result) ElapsedMillis() int64 {
	ms := r.Elapsed.Milliseconds()
	if ms < 0 {
		return 0
	}
	return ms
}

// classify maps an executor error onto the failure taxonomy.
func classify(err error) *Failure {
	if err == nil {
		return nil
	}

	f := &Failure{Kind: FailureTransport, Reason: err.Error(), Err: err}

	var readErr *fileReadError
	var subErr *submit.Error
	switch {
	case errors.As(err, &readErr):
		f.Kind = FailureFileRead
	case errors.As(err, &subErr):
		switch subErr.Kind {
		case submit.KindEncoding:
			f.Kind = FailureEncoding
		case submit.KindRejection:
			f.Kind = FailureRejection
			f.StatusCode = subErr.StatusCode
		default:
			f.Kind = FailureTransport
			f.Timeout = subErr.Timeout()
		}
	case errors.Is(err, errEncoding):
		f.Kind = FailureEncoding
	case errors.Is(err, context.DeadlineExceeded):
		f.Timeout = true
	}
	return f
}
