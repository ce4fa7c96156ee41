// Package blob stores note image attachments in S3-compatible object
// storage and issues publicly fetchable URLs for them.
package blob

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Config holds S3-compatible storage configuration. PublicBaseURL overrides
// the URL prefix objects are served from (e.g. a CDN); when empty, URLs are
// built path-style from the endpoint and bucket.
type Config struct {
	Endpoint      string
	Bucket        string
	Region        string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
}

// Store uploads and deletes image objects.
type Store struct {
	cfg    Config
	client s3Client
}

// NewStore creates a Store. With incomplete credentials the store reports
// unconfigured and uploads fail cleanly; URL-only attachments still work.
func NewStore(cfg Config) *Store {
	st := &Store{cfg: cfg}
	if cfg.Bucket != "" && cfg.AccessKey != "" && cfg.SecretKey != "" {
		st.client = newS3Client(cfg)
	}
	return st
}

func newS3Client(cfg Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Configured returns true if object storage is usable.
func (s *Store) Configured() bool {
	return s.client != nil
}

func (s *Store) baseURL() string {
	if s.cfg.PublicBaseURL != "" {
		return strings.TrimSuffix(s.cfg.PublicBaseURL, "/")
	}
	return fmt.Sprintf("%s/%s", strings.TrimSuffix(s.cfg.Endpoint, "/"), s.cfg.Bucket)
}

// URL returns the public URL for an object key.
func (s *Store) URL(key string) string {
	return fmt.Sprintf("%s/%s", s.baseURL(), key)
}

// KeyFromURL reverses URL. Inputs that are not our URLs are returned as-is
// so callers can pass either a key or a URL to Delete.
func (s *Store) KeyFromURL(u string) string {
	prefix := s.baseURL() + "/"
	if strings.HasPrefix(u, prefix) {
		return strings.TrimPrefix(u, prefix)
	}
	return u
}

// Upload writes data under key and returns the object's public URL.
func (s *Store) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if s.client == nil {
		return "", fmt.Errorf("blob storage not configured")
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload to s3: %w", err)
	}
	return s.URL(key), nil
}

// Delete removes the object behind a key or one of our URLs. Foreign URLs
// (user-supplied image links) resolve to keys that simply do not exist;
// S3 deletes are idempotent so that is harmless.
func (s *Store) Delete(ctx context.Context, urlOrKey string) error {
	if s.client == nil {
		return fmt.Errorf("blob storage not configured")
	}

	key := s.KeyFromURL(urlOrKey)
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete from s3: %w", err)
	}
	return nil
}
