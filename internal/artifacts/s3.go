package artifacts

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"agentforge/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Mirror uploads artifacts to an S3 (or S3-compatible) bucket
type S3Mirror struct {
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

// NewS3Mirror builds a mirror from artifacts config. Credentials come from
// the config when both keys are set, otherwise from the default AWS chain.
func NewS3Mirror(ctx context.Context, cfg config.ArtifactsConfig) (*S3Mirror, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	if cfg.S3AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Mirror{
		uploader: manager.NewUploader(client),
		bucket:   cfg.S3Bucket,
		prefix:   strings.Trim(cfg.S3Prefix, "/"),
	}, nil
}

// Key returns the object key used for an artifact name
func (m *S3Mirror) Key(name string) string {
	if m.prefix == "" {
		return name
	}
	return path.Join(m.prefix, name)
}

// Put implements Mirror
func (m *S3Mirror) Put(ctx context.Context, name string, body []byte) error {
	_, err := m.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.Key(name)),
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return fmt.Errorf("upload s3://%s/%s: %w", m.bucket, m.Key(name), err)
	}
	return nil
}
