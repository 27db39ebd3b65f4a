package loadtest

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Mode selects how a job's content reaches the API.
type Mode int

const (
	ModeInline Mode = iota
	ModePresignedURL
)

// String returns the tag embedded in content IDs.
func (m Mode) String() string {
	switch m {
	case ModeInline:
		return "inline"
	case ModePresignedURL:
		return "url"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Job is one submission to perform. Jobs are passed by value and never
// mutated after generation.
type Job struct {
	ContentID        string
	Filepath         string
	AdditionalFields []string
	Mode             Mode
}

// Generator mints jobs with unique content IDs.
type Generator struct {
	now   func() time.Time
	newID func() string
}

// NewGenerator returns a Generator using the wall clock and random UUIDs.
func NewGenerator() *Generator {
	return &Generator{
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Generate returns exactly count jobs for path. The path is only recorded;
// a missing file surfaces later as a per-job failure.
func (g *Generator) Generate(count int, path string, mode Mode, fields []string) []Job {
	if count <= 0 {
		return nil
	}

	jobs := make([]Job, count)
	for i := range jobs {
		jobs[i] = Job{
			ContentID:        g.contentID(mode, path),
			Filepath:         path,
			AdditionalFields: append([]string(nil), fields...),
			Mode:             mode,
		}
	}
	return jobs
}

// contentID looks like storm-inline-2024-05-01-<uuid>-photo.jpg so a
// submission can be traced back to the run and file that produced it.
func (g *Generator) contentID(mode Mode, path string) string {
	return fmt.Sprintf("storm-%s-%s-%s-%s",
		mode, g.now().Format("2006-01-02"), g.newID(), filepath.Base(path))
}

// GenerateJobs is Generate on a default Generator.
func GenerateJobs(count int, path string, mode Mode, fields []string) []Job {
	return NewGenerator().Generate(count, path, mode, fields)
}
