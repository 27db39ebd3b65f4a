package loadtest

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerator_Generate(t *testing.T) {
	t.Run("produces exactly count jobs", func(t *testing.T) {
		jobs := GenerateJobs(25, "/tmp/photo.jpg", ModeInline, nil)
		assert.Len(t, jobs, 25)
	})

	t.Run("no jobs for non-positive count", func(t *testing.T) {
		assert.Empty(t, GenerateJobs(0, "/tmp/photo.jpg", ModeInline, nil))
		assert.Empty(t, GenerateJobs(-3, "/tmp/photo.jpg", ModeInline, nil))
	})

	t.Run("content ids are unique", func(t *testing.T) {
		jobs := GenerateJobs(5000, "photo.jpg", ModePresignedURL, nil)
		seen := make(map[string]struct{}, len(jobs))
		for _, job := range jobs {
			seen[job.ContentID] = struct{}{}
		}
		assert.Len(t, seen, len(jobs))
	})

	t.Run("does not touch the filesystem", func(t *testing.T) {
		jobs := GenerateJobs(2, "/definitely/not/here.png", ModeInline, nil)
		require.Len(t, jobs, 2)
		assert.Equal(t, "/definitely/not/here.png", jobs[0].Filepath)
	})

	t.Run("fields are copied per job", func(t *testing.T) {
		fields := []string{"a", "b"}
		jobs := GenerateJobs(2, "x.jpg", ModeInline, fields)
		fields[0] = "mutated"
		jobs[0].AdditionalFields[1] = "also mutated"

		assert.Equal(t, []string{"a", "b"}, jobs[1].AdditionalFields)
	})
}

func TestGenerator_ContentIDFormat(t *testing.T) {
	n := 0
	g := &Generator{
		now: func() time.Time { return time.Date(2024, 5, 1, 23, 59, 0, 0, time.UTC) },
		newID: func() string {
			n++
			return fmt.Sprintf("id%d", n)
		},
	}

	inline := g.Generate(1, "/data/samples/cat.jpg", ModeInline, nil)
	url := g.Generate(1, "dog.png", ModePresignedURL, nil)

	assert.Equal(t, "storm-inline-2024-05-01-id1-cat.jpg", inline[0].ContentID)
	assert.Equal(t, "storm-url-2024-05-01-id2-dog.png", url[0].ContentID)
	assert.Equal(t, ModePresignedURL, url[0].Mode)
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "inline", ModeInline.String())
	assert.Equal(t, "url", ModePresignedURL.String())
	assert.True(t, strings.HasPrefix(Mode(7).String(), "mode("))
}
