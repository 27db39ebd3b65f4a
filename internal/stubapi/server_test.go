package stubapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/FairForge/storm/internal/submit"
)

func newStub(t *testing.T, cfg Config) (*Server, *httptest.Server) {
	t.Helper()
	s := New(cfg, zaptest.NewLogger(t))
	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)
	return s, ts
}

func newClient(t *testing.T, baseURL, token string) *submit.Client {
	t.Helper()
	c, err := submit.NewClient(submit.Config{
		BaseURL: baseURL,
		Token:   token,
		Timeout: 5 * time.Second,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return c
}

func TestServer_DirectUpload(t *testing.T) {
	s, ts := newStub(t, Config{Token: "tok"})
	c := newClient(t, ts.URL, "tok")

	err := c.SubmitInline(context.Background(), "inline-1", []byte("payload"), []string{"x"})
	require.NoError(t, err)

	calls := s.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, Call{Op: OpDirectUpload, ContentID: "inline-1", Bytes: 7}, calls[0])

	stored, ok := s.Object("inline-1")
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), stored)
}

func TestServer_PresignedUploadRoundTrip(t *testing.T) {
	s, ts := newStub(t, Config{Token: "tok"})
	c := newClient(t, ts.URL, "tok")
	content := []byte("GIF89a-some-image-bytes")

	err := c.SubmitViaPresignedURL(context.Background(), "url-1", content, nil)
	require.NoError(t, err)

	calls := s.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, OpPresign, calls[0].Op)
	assert.Equal(t, OpUpload, calls[1].Op)
	assert.Equal(t, "url-1", calls[1].ContentID)

	stored, ok := s.Object("url-1")
	require.True(t, ok)
	assert.Equal(t, content, stored)
}

func TestServer_PresignResponseShape(t *testing.T) {
	_, ts := newStub(t, Config{Token: "tok", Bucket: "images"})

	body, _ := json.Marshal(submit.SubmitRequest{
		SubmissionType:            submit.TypePostURL,
		ContentID:                 "photo-1",
		ContentType:               "PHOTO",
		ContentBytesURLOrFileType: "image/jpeg",
	})
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/submit/", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer tok")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var init submit.InitUploadResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&init))
	assert.Equal(t, "photo-1", init.ContentID)
	assert.Equal(t, "image/jpeg", init.FileType)

	u, err := url.Parse(init.PresignedURL)
	require.NoError(t, err)
	assert.Equal(t, "/images/photo-1", u.Path)
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
	assert.Equal(t, "3600", u.Query().Get("X-Amz-Expires"))
}

func TestServer_Auth(t *testing.T) {
	t.Run("rejects missing token", func(t *testing.T) {
		s, ts := newStub(t, Config{})
		c := newClient(t, ts.URL, "")

		err := c.SubmitInline(context.Background(), "c", []byte("x"), nil)

		var subErr *submit.Error
		require.True(t, errors.As(err, &subErr))
		assert.Equal(t, http.StatusUnauthorized, subErr.StatusCode)
		assert.Empty(t, s.Calls())
	})

	t.Run("accepts any bearer when no token configured", func(t *testing.T) {
		_, ts := newStub(t, Config{})
		c := newClient(t, ts.URL, "whatever")
		assert.NoError(t, c.SubmitInline(context.Background(), "c", []byte("x"), nil))
	})

	t.Run("rejects wrong static token", func(t *testing.T) {
		_, ts := newStub(t, Config{Token: "right"})
		c := newClient(t, ts.URL, "wrong")

		err := c.SubmitInline(context.Background(), "c", []byte("x"), nil)

		var subErr *submit.Error
		require.True(t, errors.As(err, &subErr))
		assert.Equal(t, submit.KindRejection, subErr.Kind)
		assert.Equal(t, http.StatusUnauthorized, subErr.StatusCode)
	})

	t.Run("accepts valid jwt", func(t *testing.T) {
		_, ts := newStub(t, Config{JWTSecret: "shh"})
		token, err := IssueToken("shh", "tester", time.Hour)
		require.NoError(t, err)

		c := newClient(t, ts.URL, token)
		assert.NoError(t, c.SubmitInline(context.Background(), "c", []byte("x"), nil))
	})

	t.Run("rejects expired jwt", func(t *testing.T) {
		_, ts := newStub(t, Config{JWTSecret: "shh"})
		token, err := IssueToken("shh", "tester", -time.Minute)
		require.NoError(t, err)

		c := newClient(t, ts.URL, token)
		err = c.SubmitInline(context.Background(), "c", []byte("x"), nil)

		var subErr *submit.Error
		require.True(t, errors.As(err, &subErr))
		assert.Equal(t, http.StatusUnauthorized, subErr.StatusCode)
	})

	t.Run("rejects jwt signed with another secret", func(t *testing.T) {
		_, ts := newStub(t, Config{JWTSecret: "shh"})
		token, err := IssueToken("other", "tester", time.Hour)
		require.NoError(t, err)

		c := newClient(t, ts.URL, token)
		assert.Error(t, c.SubmitInline(context.Background(), "c", []byte("x"), nil))
	})
}

func TestServer_RejectsBadRequests(t *testing.T) {
	_, ts := newStub(t, Config{Token: "tok"})

	post := func(t *testing.T, body string) int {
		t.Helper()
		req, _ := http.NewRequest(http.MethodPost, ts.URL+"/submit/", bytes.NewBufferString(body))
		req.Header.Set("Authorization", "Bearer tok")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	t.Run("malformed json", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, post(t, "{"))
	})

	t.Run("missing content id", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, post(t, `{"submission_type":"DIRECT_UPLOAD"}`))
	})

	t.Run("invalid base64", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest,
			post(t, `{"submission_type":"DIRECT_UPLOAD","content_id":"c","content_bytes_url_or_file_type":"%%%"}`))
	})

	t.Run("unsupported submission type", func(t *testing.T) {
		assert.Equal(t, http.StatusUnprocessableEntity,
			post(t, `{"submission_type":"FROM_URL","content_id":"c"}`))
	})
}

func TestServer_UploadRequiresSignature(t *testing.T) {
	s, ts := newStub(t, Config{})

	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/storm-uploads/key", bytes.NewBufferString("x"))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Zero(t, s.ObjectCount())
}

func TestServer_UploadUnknownBucket(t *testing.T) {
	_, ts := newStub(t, Config{})

	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/other/key?X-Amz-Signature=x", bytes.NewBufferString("x"))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_RateLimit(t *testing.T) {
	_, ts := newStub(t, Config{Token: "tok", RateLimit: 1, Burst: 1})
	c := newClient(t, ts.URL, "tok")

	require.NoError(t, c.SubmitInline(context.Background(), "c1", []byte("x"), nil))
	err := c.SubmitInline(context.Background(), "c2", []byte("x"), nil)

	var subErr *submit.Error
	require.True(t, errors.As(err, &subErr))
	assert.Equal(t, http.StatusTooManyRequests, subErr.StatusCode)
}

func TestServer_Health(t *testing.T) {
	_, ts := newStub(t, Config{})

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCheckPresignedQuery(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	signed := now.Add(-30 * time.Minute).Format(amzDateFormat)

	query := func(sig, date string, expires int) url.Values {
		q := url.Values{}
		if sig != "" {
			q.Set("X-Amz-Signature", sig)
		}
		q.Set("X-Amz-Date", date)
		q.Set("X-Amz-Expires", strconv.Itoa(expires))
		return q
	}

	assert.NoError(t, checkPresignedQuery(query("abc", signed, 3600), now))
	assert.Error(t, checkPresignedQuery(query("", signed, 3600), now), "missing signature")
	assert.Error(t, checkPresignedQuery(query("abc", signed, 60), now), "expired")
	assert.Error(t, checkPresignedQuery(query("abc", "yesterday", 3600), now), "bad date")
	assert.Error(t, checkPresignedQuery(query("abc", signed, 0), now), "bad expiry")
}
