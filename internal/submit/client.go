// Package submit is the HTTP adapter for the content submission API.
package submit

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Submission types understood by the API's POST /submit/ endpoint.
const (
	TypeDirectUpload = "DIRECT_UPLOAD"
	TypePostURL      = "POST_URL_UPLOAD"
)

const (
	DefaultContentType = "PHOTO"
	DefaultTimeout     = 30 * time.Second

	submitPath = "/submit/"

	// cap on how much of an error body ends up in an error message
	maxErrorBody = 512
)

// Submitter performs one submission of raw content.
type Submitter interface {
	SubmitInline(ctx context.Context, contentID string, content []byte, fields []string) error
	SubmitViaPresignedURL(ctx context.Context, contentID string, content []byte, fields []string) error
}

// Config holds the read-only connection settings of a Client.
type Config struct {
	BaseURL     string
	Token       string
	Timeout     time.Duration
	ContentType string
	// MaxConns sizes the idle connection pool; usually the worker count.
	MaxConns int
}

// SubmitRequest is the body of POST /submit/.
type SubmitRequest struct {
	SubmissionType string `json:"submission_type"`
	ContentID      string `json:"content_id"`
	ContentType    string `json:"content_type"`
	// base64 bytes for DIRECT_UPLOAD, MIME type for POST_URL_UPLOAD
	ContentBytesURLOrFileType string   `json:"content_bytes_url_or_file_type"`
	AdditionalFields          []string `json:"additional_fields"`
}

// SubmitResponse is returned for a direct upload.
type SubmitResponse struct {
	ContentID        string `json:"content_id"`
	SubmitSuccessful bool   `json:"submit_successful"`
}

// InitUploadResponse is returned for a POST_URL_UPLOAD submission.
type InitUploadResponse struct {
	ContentID    string `json:"content_id"`
	FileType     string `json:"file_type"`
	PresignedURL string `json:"presigned_url"`
}

// Client talks to the submission API. The bearer token is used verbatim and
// never refreshed.
type Client struct {
	endpoint    string
	token       string
	contentType string
	http        *http.Client
	logger      *zap.Logger
}

// NewClient validates cfg and builds a Client.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse api url %q: %w", cfg.BaseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("api url %q: scheme must be http or https", cfg.BaseURL)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("api url %q: missing host", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("request timeout must be positive, got %v", cfg.Timeout)
	}
	if cfg.ContentType == "" {
		cfg.ContentType = DefaultContentType
	}
	conns := cfg.MaxConns
	if conns <= 0 {
		conns = 10
	}

	return &Client{
		endpoint:    strings.TrimRight(base.String(), "/") + submitPath,
		token:       cfg.Token,
		contentType: cfg.ContentType,
		http: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        conns * 2,
				MaxIdleConnsPerHost: conns * 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: logger,
	}, nil
}

// SubmitInline sends the content base64-encoded inside the request body.
func (c *Client) SubmitInline(ctx context.Context, contentID string, content []byte, fields []string) error {
	req := SubmitRequest{
		SubmissionType:            TypeDirectUpload,
		ContentID:                 contentID,
		ContentType:               c.contentType,
		ContentBytesURLOrFileType: base64.StdEncoding.EncodeToString(content),
		AdditionalFields:          nonNil(fields),
	}

	status, body, err := c.postSubmit(ctx, "submit-inline", req)
	if err != nil {
		return err
	}
	c.logger.Debug("inline submission accepted",
		zap.String("content_id", contentID),
		zap.Int("status", status),
		zap.Int("response_bytes", len(body)))
	return nil
}

// SubmitViaPresignedURL asks the API for an upload location keyed by
// contentID and PUTs the raw content there.
func (c *Client) SubmitViaPresignedURL(ctx context.Context, contentID string, content []byte, fields []string) error {
	fileType := http.DetectContentType(content)
	req := SubmitRequest{
		SubmissionType:            TypePostURL,
		ContentID:                 contentID,
		ContentType:               c.contentType,
		ContentBytesURLOrFileType: fileType,
		AdditionalFields:          nonNil(fields),
	}

	const op = "presign"
	_, body, err := c.postSubmit(ctx, op, req)
	if err != nil {
		return err
	}

	var init InitUploadResponse
	if err := json.Unmarshal(body, &init); err != nil {
		return rejectionError(op, 0, fmt.Errorf("decode presign response: %w", err))
	}
	if init.PresignedURL == "" {
		return rejectionError(op, 0, errors.New("presign response has no presigned_url"))
	}
	if init.FileType != "" {
		fileType = init.FileType
	}

	if err := c.upload(ctx, init.PresignedURL, fileType, content); err != nil {
		return err
	}
	c.logger.Debug("presigned upload complete",
		zap.String("content_id", contentID),
		zap.String("file_type", fileType),
		zap.Int("bytes", len(content)))
	return nil
}

func (c *Client) postSubmit(ctx context.Context, op string, body SubmitRequest) (int, []byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, nil, encodingError(op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, encodingError(op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	return c.do(op, req)
}

func (c *Client) upload(ctx context.Context, target, fileType string, content []byte) error {
	const op = "upload"
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, bytes.NewReader(content))
	if err != nil {
		return rejectionError(op, 0, fmt.Errorf("invalid presigned url: %w", err))
	}
	req.Header.Set("Content-Type", fileType)
	req.ContentLength = int64(len(content))

	_, _, err = c.do(op, req)
	return err
}

// do executes req, drains the body and maps the outcome onto an *Error.
func (c *Client) do(op string, req *http.Request) (int, []byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, transportError(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, transportError(op, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, body, rejectionError(op, resp.StatusCode, errors.New(truncate(body)))
	}
	return resp.StatusCode, body, nil
}

func truncate(body []byte) string {
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return "empty response body"
	}
	if len(msg) > maxErrorBody {
		return msg[:maxErrorBody] + "..."
	}
	return msg
}

func nonNil(fields []string) []string {
	if fields == nil {
		return []string{}
	}
	return fields
}
