package loadtest

import (
	"context"
	"fmt"
	"os"

	"github.com/FairForge/storm/internal/submit"
)

// Encoder turns a Job into calls on a Submitter. It reads the artifact on
// every execution so a file that disappears mid-run fails only the jobs
// that run afterwards.
type Encoder struct {
	submitter submit.Submitter
	readFile  func(string) ([]byte, error)
}

// NewEncoder returns an Encoder backed by s.
func NewEncoder(s submit.Submitter) *Encoder {
	return &Encoder{
		submitter: s,
		readFile:  os.ReadFile,
	}
}

// Execute submits job and returns the first error encountered.
func (e *Encoder) Execute(ctx context.Context, job Job) error {
	content, err := e.readFile(job.Filepath)
	if err != nil {
		return &fileReadError{path: job.Filepath, err: err}
	}

	switch job.Mode {
	case ModeInline:
		return e.submitter.SubmitInline(ctx, job.ContentID, content, job.AdditionalFields)
	case ModePresignedURL:
		return e.submitter.SubmitViaPresignedURL(ctx, job.ContentID, content, job.AdditionalFields)
	default:
		return fmt.Errorf("%w: unknown mode %v", errEncoding, job.Mode)
	}
}
