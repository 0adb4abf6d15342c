// Package storage wraps the S3-compatible bucket holding course file
// attachments. Clients never touch the bucket directly: the API hands
// out short-lived presigned URLs for uploads and downloads.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hanifm/coursery/config"
	"github.com/hanifm/coursery/random"
)

// KeyPrefix is the only prefix course file keys may live under. Keys
// outside of it, or containing traversal sequences, are rejected.
const KeyPrefix = "courses/"

var ErrInvalidKey = errors.New("invalid storage key")

type Store struct {
	client         *s3.Client
	presign        *s3.PresignClient
	bucket         string
	uploadExpiry   time.Duration
	downloadExpiry time.Duration
}

func New(ctx context.Context, cfg config.Storage) (*Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Store{
		client:         client,
		presign:        s3.NewPresignClient(client),
		bucket:         cfg.Bucket,
		uploadExpiry:   cfg.UploadExpiry,
		downloadExpiry: cfg.DownloadExpiry,
	}, nil
}

// NewKey builds a fresh object key for an upload into a course:
// courses/{courseID}/{timestamp}_{randomHex}.{ext}. The extension is
// taken from the original file name.
func NewKey(courseID, originalName string) string {
	ext := strings.ToLower(path.Ext(originalName))
	return fmt.Sprintf("%s%s/%d_%s%s", KeyPrefix, courseID, time.Now().UTC().UnixNano(), random.Hex(8), ext)
}

// CheckKey rejects keys outside the courses/ prefix and any key with a
// traversal sequence. Every key received from a client passes through
// here before it is used.
func CheckKey(key string) error {
	if !strings.HasPrefix(key, KeyPrefix) {
		return ErrInvalidKey
	}
	if strings.Contains(key, "..") {
		return ErrInvalidKey
	}
	return nil
}

func (s *Store) UploadURL(ctx context.Context, key string) (string, error) {
	if err := CheckKey(key); err != nil {
		return "", err
	}

	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(po *s3.PresignOptions) {
		po.Expires = s.uploadExpiry
	})
	if err != nil {
		return "", fmt.Errorf("presigning upload of key[%s]: %w", key, err)
	}

	return req.URL, nil
}

func (s *Store) DownloadURL(ctx context.Context, key string) (string, error) {
	if err := CheckKey(key); err != nil {
		return "", err
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(po *s3.PresignOptions) {
		po.Expires = s.downloadExpiry
	})
	if err != nil {
		return "", fmt.Errorf("presigning download of key[%s]: %w", key, err)
	}

	return req.URL, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := CheckKey(key); err != nil {
		return err
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("deleting key[%s]: %w", key, err)
	}

	return nil
}
