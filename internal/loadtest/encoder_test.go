package loadtest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type submitCall struct {
	op        string
	contentID string
	content   []byte
	fields    []string
}

// fakeSubmitter records which adapter operation each job reached.
type fakeSubmitter struct {
	mu    sync.Mutex
	calls []submitCall
	err   error
}

func (f *fakeSubmitter) record(op, contentID string, content []byte, fields []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, submitCall{op: op, contentID: contentID, content: content, fields: fields})
	return f.err
}

func (f *fakeSubmitter) SubmitInline(_ context.Context, contentID string, content []byte, fields []string) error {
	return f.record("inline", contentID, content, fields)
}

func (f *fakeSubmitter) SubmitViaPresignedURL(_ context.Context, contentID string, content []byte, fields []string) error {
	return f.record("presigned", contentID, content, fields)
}

func (f *fakeSubmitter) snapshot() []submitCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]submitCall(nil), f.calls...)
}

func writeArtifact(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "artifact.jpg")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestEncoder_ModesUseDifferentOperations(t *testing.T) {
	path := writeArtifact(t, "image-bytes")
	fake := &fakeSubmitter{}
	enc := NewEncoder(fake)

	inline := Job{ContentID: "same", Filepath: path, AdditionalFields: []string{"f"}, Mode: ModeInline}
	presigned := inline
	presigned.Mode = ModePresignedURL

	require.NoError(t, enc.Execute(context.Background(), inline))
	require.NoError(t, enc.Execute(context.Background(), presigned))

	calls := fake.snapshot()
	require.Len(t, calls, 2)
	assert.Equal(t, "inline", calls[0].op)
	assert.Equal(t, "presigned", calls[1].op)
	for _, c := range calls {
		assert.Equal(t, "same", c.contentID)
		assert.Equal(t, []byte("image-bytes"), c.content)
		assert.Equal(t, []string{"f"}, c.fields)
	}
}

func TestEncoder_MissingFileIsFileReadFailure(t *testing.T) {
	fake := &fakeSubmitter{}
	enc := NewEncoder(fake)

	err := enc.Execute(context.Background(), Job{ContentID: "c", Filepath: filepath.Join(t.TempDir(), "gone.jpg")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.Equal(t, FailureFileRead, classify(err).Kind)
	assert.Empty(t, fake.snapshot(), "no network call after a failed read")
}

func TestEncoder_UnknownModeIsEncodingFailure(t *testing.T) {
	path := writeArtifact(t, "x")
	enc := NewEncoder(&fakeSubmitter{})

	err := enc.Execute(context.Background(), Job{ContentID: "c", Filepath: path, Mode: Mode(42)})
	require.Error(t, err)
	assert.Equal(t, FailureEncoding, classify(err).Kind)
}

func TestEncoder_ReadsFileOnEveryExecution(t *testing.T) {
	reads := 0
	enc := NewEncoder(&fakeSubmitter{})
	enc.readFile = func(string) ([]byte, error) {
		reads++
		return []byte("x"), nil
	}

	job := Job{ContentID: "c", Filepath: "p"}
	require.NoError(t, enc.Execute(context.Background(), job))
	require.NoError(t, enc.Execute(context.Background(), job))
	assert.Equal(t, 2, reads)
}
