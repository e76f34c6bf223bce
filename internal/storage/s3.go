package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config holds the object store settings. Any S3-compatible service works
// (AWS, R2, MinIO); set Endpoint and ForcePathStyle for the non-AWS ones.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // optional, e.g. "http://127.0.0.1:9000"
	AccessKeyID     string // optional; the default AWS chain is used when empty
	SecretAccessKey string
	ForcePathStyle  bool
	PublicBaseURL   string // e.g. "https://cdn.lovewheel.app"
}

// photoCacheControl bounds how long a replaced photo can be served stale.
const photoCacheControl = "public, max-age=300"

// putObjectAPI is the subset of *s3.Client used here.
type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader stores photos in an S3 bucket.
type S3Uploader struct {
	client        putObjectAPI
	bucket        string
	publicBaseURL string
}

// NewS3 builds an S3Uploader from cfg.
func NewS3(ctx context.Context, cfg S3Config) (*S3Uploader, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return newS3Uploader(client, cfg.Bucket, cfg.PublicBaseURL), nil
}

func newS3Uploader(client putObjectAPI, bucket, publicBaseURL string) *S3Uploader {
	return &S3Uploader{
		client:        client,
		bucket:        bucket,
		publicBaseURL: publicBaseURL,
	}
}

// Put uploads body to key. The key is overwritten on every re-upload, so the
// object is cached only briefly; the version query on the returned URL covers
// caches that do key on the query string.
func (u *S3Uploader) Put(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(contentType),
		CacheControl:  aws.String(photoCacheControl),
	})
	if err != nil {
		return "", fmt.Errorf("storage: put %s: %w", key, err)
	}

	return fmt.Sprintf("%s?v=%d", PublicURL(u.publicBaseURL, key), time.Now().Unix()), nil
}
