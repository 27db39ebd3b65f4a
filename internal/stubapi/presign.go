// internal/stubapi/presign.go
package stubapi

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const (
	presignRegion    = "us-east-1"
	presignAccessKey = "STORMSTUBACCESSKEY"
	presignSecretKey = "storm-stub-secret-key"

	amzDateFormat = "20060102T150405Z"
)

// presigner issues SigV4 presigned PUT URLs against the stub's own endpoint,
// the same way the real API hands out S3 upload locations.
type presigner struct {
	bucket  string
	expires time.Duration
	creds   credentials.StaticCredentialsProvider
}

func newPresigner(bucket string, expires time.Duration) *presigner {
	return &presigner{
		bucket:  bucket,
		expires: expires,
		creds:   credentials.NewStaticCredentialsProvider(presignAccessKey, presignSecretKey, ""),
	}
}

// PresignPut returns a URL that accepts a PUT of key with the given content type.
func (p *presigner) PresignPut(ctx context.Context, endpoint, key, contentType string) (string, error) {
	client := s3.New(s3.Options{
		BaseEndpoint: aws.String(endpoint),
		Region:       presignRegion,
		Credentials:  p.creds,
		UsePathStyle: true,
	})

	input := &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	req, err := s3.NewPresignClient(client).PresignPutObject(ctx, input, s3.WithPresignExpires(p.expires))
	if err != nil {
		return "", fmt.Errorf("presign put %s/%s: %w", p.bucket, key, err)
	}
	return req.URL, nil
}

// checkPresignedQuery verifies the SigV4 query parameters are present and the
// URL has not expired. The signature itself is not recomputed.
func checkPresignedQuery(q url.Values, now time.Time) error {
	if q.Get("X-Amz-Signature") == "" {
		return errors.New("missing X-Amz-Signature")
	}

	signedAt, err := time.Parse(amzDateFormat, q.Get("X-Amz-Date"))
	if err != nil {
		return fmt.Errorf("invalid X-Amz-Date: %w", err)
	}
	seconds, err := strconv.Atoi(q.Get("X-Amz-Expires"))
	if err != nil || seconds <= 0 {
		return errors.New("invalid X-Amz-Expires")
	}

	if now.After(signedAt.Add(time.Duration(seconds) * time.Second)) {
		return errors.New("presigned url expired")
	}
	return nil
}
