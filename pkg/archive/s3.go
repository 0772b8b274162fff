package archive

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/ingestoor/pkg/config"
)

// Compile-time interface check.
var _ Backend = (*s3Backend)(nil)

// s3Backend writes archives to an S3-compatible bucket.
type s3Backend struct {
	log    logrus.FieldLogger
	cfg    *config.S3ArchiveConfig
	client *s3.Client
}

func newS3Backend(
	log logrus.FieldLogger,
	cfg *config.S3ArchiveConfig,
) (*s3Backend, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 archive backend requires a bucket")
	}

	opts := []func(*s3.Options){
		func(o *s3.Options) {
			if cfg.Region != "" {
				o.Region = cfg.Region
			} else {
				o.Region = "us-east-1"
			}

			if cfg.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.EndpointURL)
			}

			if cfg.ForcePathStyle {
				o.UsePathStyle = true
			}

			if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
				o.Credentials = credentials.NewStaticCredentialsProvider(
					cfg.AccessKeyID, cfg.SecretAccessKey, "",
				)
			}
		},
	}

	return &s3Backend{
		log:    log.WithField("component", "archive-s3"),
		cfg:    cfg,
		client: s3.New(s3.Options{}, opts...),
	}, nil
}

// Start verifies connectivity by writing a small test object.
func (b *s3Backend) Start(ctx context.Context) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.cfg.Bucket),
		Key:         aws.String(b.resolveKey(".ingestoor-write-test")),
		Body:        strings.NewReader("ingestoor write test"),
		ContentType: aws.String("text/plain"),
	})
	if err != nil {
		return fmt.Errorf("writing test object to s3://%s: %w", b.cfg.Bucket, err)
	}

	b.log.WithField("bucket", b.cfg.Bucket).Info("S3 archive retention enabled")

	return nil
}

func (b *s3Backend) Stop() error {
	return nil
}

func (b *s3Backend) Store(ctx context.Context, key string, data []byte) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.cfg.Bucket),
		Key:         aws.String(b.resolveKey(key)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/zip"),
	})
	if err != nil {
		return fmt.Errorf("PutObject: %w", err)
	}

	b.log.WithFields(logrus.Fields{
		"key":    key,
		"bucket": b.cfg.Bucket,
		"size":   len(data),
	}).Debug("Archive retained")

	return nil
}

func (b *s3Backend) resolveKey(key string) string {
	prefix := b.cfg.Prefix
	if prefix == "" {
		prefix = "executions"
	}

	return strings.TrimRight(prefix, "/") + "/" + key
}
