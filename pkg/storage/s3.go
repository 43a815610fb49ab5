package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/noah-isme/reco-letter-api/pkg/config"
	appErrors "github.com/noah-isme/reco-letter-api/pkg/errors"
)

// UploadTarget is a presigned PUT the client writes the file to directly.
type UploadTarget struct {
	UploadURL string            `json:"upload_url"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers,omitempty"`
	ObjectKey string            `json:"object_key"`
	ObjectURL string            `json:"object_url"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// ViewTarget is a presigned GET for previewing or downloading a stored object.
type ViewTarget struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// S3Gateway issues presigned upload/view URLs against a single bucket and
// provides a synchronous fallback upload path for clients whose direct PUT fails.
type S3Gateway struct {
	client      *s3.Client
	presigner   *s3.PresignClient
	bucket      string
	publicBase  string
	constraints Constraints
}

// NewS3Gateway builds a gateway from the ambient AWS credential chain.
func NewS3Gateway(ctx context.Context, cfg config.StorageConfig) (*S3Gateway, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	return &S3Gateway{
		client:     client,
		presigner:  s3.NewPresignClient(client),
		bucket:     cfg.Bucket,
		publicBase: strings.TrimRight(cfg.PublicBaseURL, "/"),
		constraints: Constraints{
			MaxSizeBytes: cfg.MaxFileSizeBytes,
			AllowedMIMEs: cfg.AllowedMIMEs,
		},
	}, nil
}

// Constraints exposes the configured upload restrictions for callers that need
// to validate metadata before any byte is accepted.
func (g *S3Gateway) Constraints() Constraints {
	return g.constraints
}

// CreateUploadTarget validates the declared metadata and returns a presigned PUT.
// No storage call is made when validation fails.
func (g *S3Gateway) CreateUploadTarget(ctx context.Context, key, contentType string, size int64, ttl time.Duration) (*UploadTarget, error) {
	if err := g.constraints.Validate(contentType, size); err != nil {
		return nil, err
	}
	req, err := g.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(g.bucket),
		Key:           aws.String(key),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorageUnavailable.Code, appErrors.ErrStorageUnavailable.Status, "failed to presign upload")
	}
	headers := map[string]string{"Content-Type": contentType}
	return &UploadTarget{
		UploadURL: req.URL,
		Method:    req.Method,
		Headers:   headers,
		ObjectKey: key,
		ObjectURL: g.ObjectURL(key),
		ExpiresAt: time.Now().UTC().Add(ttl),
	}, nil
}

// FallbackUpload writes the bytes server-side. Used when the direct presigned PUT
// fails in the recipient's environment. Re-uploading the same key overwrites cleanly.
func (g *S3Gateway) FallbackUpload(ctx context.Context, key, contentType string, body []byte) (string, error) {
	if err := g.constraints.Validate(contentType, int64(len(body))); err != nil {
		return "", err
	}
	_, err := g.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(g.bucket),
		Key:           aws.String(key),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(body))),
		Body:          bytes.NewReader(body),
	})
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrStorageUnavailable.Code, appErrors.ErrStorageUnavailable.Status, "fallback upload failed")
	}
	return g.ObjectURL(key), nil
}

// CreateViewTarget returns a presigned GET. forceDownload switches the
// content disposition from inline preview to attachment.
func (g *S3Gateway) CreateViewTarget(ctx context.Context, key string, ttl time.Duration, forceDownload bool, filename string) (*ViewTarget, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
	}
	if forceDownload {
		input.ResponseContentDisposition = aws.String(fmt.Sprintf("attachment; filename=%q", filename))
	} else {
		input.ResponseContentDisposition = aws.String("inline")
	}
	req, err := g.presigner.PresignGetObject(ctx, input, s3.WithPresignExpires(ttl))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorageUnavailable.Code, appErrors.ErrStorageUnavailable.Status, "failed to presign view")
	}
	return &ViewTarget{URL: req.URL, ExpiresAt: time.Now().UTC().Add(ttl)}, nil
}

// ObjectURL resolves the eventual public URL for a key.
func (g *S3Gateway) ObjectURL(key string) string {
	if g.publicBase != "" {
		return g.publicBase + "/" + strings.TrimLeft(key, "/")
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", g.bucket, strings.TrimLeft(key, "/"))
}
