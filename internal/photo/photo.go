// Package photo stores item photos in S3 and hands out presigned upload
// URLs for devices that push their own captures.
package photo

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// Uploader is the subset of the S3 API used for direct uploads.
type Uploader interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Presigner is the subset of the S3 presign client used for device uploads.
type Presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Store wraps the S3 bucket holding item photos.
type Store struct {
	uploader  Uploader
	presigner Presigner
	bucket    string
}

// New creates a photo store for the given bucket.
func New(uploader Uploader, presigner Presigner, bucket string) *Store {
	return &Store{uploader: uploader, presigner: presigner, bucket: bucket}
}

// NewFromConfig creates a photo store backed by a real S3 client.
func NewFromConfig(cfg aws.Config, bucket string) *Store {
	client := s3.NewFromConfig(cfg)
	return New(client, s3.NewPresignClient(client), bucket)
}

// NewKey returns a fresh object key for a photo. UUIDs keep uploads from
// different devices collision-free without coordination.
func NewKey() string {
	return uuid.NewString() + ".jpg"
}

// Upload stores JPEG data under a fresh key and returns its public URL.
func (s *Store) Upload(ctx context.Context, data []byte) (string, error) {
	key := NewKey()
	_, err := s.uploader.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("image/jpeg"),
	})
	if err != nil {
		return "", fmt.Errorf("uploading photo: %w", err)
	}
	return s.URL(key), nil
}

// PresignUpload returns a presigned PUT URL a capture device can upload a
// JPEG to directly, plus the public URL the object will have.
func (s *Store) PresignUpload(ctx context.Context, ttl time.Duration) (uploadURL, publicURL string, err error) {
	key := NewKey()
	req, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String("image/jpeg"),
	}, func(o *s3.PresignOptions) { o.Expires = ttl })
	if err != nil {
		return "", "", fmt.Errorf("presigning photo upload: %w", err)
	}
	return req.URL, s.URL(key), nil
}

// URL returns the public URL for an object key.
func (s *Store) URL(key string) string {
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.bucket, key)
}
