// Package s3archive stores every live snapshot as a JSON object in S3.
package s3archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/couchcryptid/checkpoint-status-service/internal/config"
	"github.com/couchcryptid/checkpoint-status-service/internal/domain"
)

const contentTypeJSON = "application/json"

// PutObjectAPI is the subset of the S3 client the archive uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archive implements pipeline.Sink.
type Archive struct {
	client PutObjectAPI
	bucket string
	prefix string
	logger *slog.Logger
}

// New creates an archive for cfg.S3Bucket. If cfg.S3Endpoint is set,
// path-style addressing is enabled (for MinIO and similar).
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Archive, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3opts []func(*s3.Options)
	if cfg.S3Endpoint != "" {
		s3opts = append(s3opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		})
	}
	return NewWithClient(s3.NewFromConfig(awsCfg, s3opts...), cfg.S3Bucket, cfg.S3Prefix, logger), nil
}

// NewWithClient creates an archive over an existing client.
func NewWithClient(client PutObjectAPI, bucket, prefix string, logger *slog.Logger) *Archive {
	return &Archive{client: client, bucket: bucket, prefix: prefix, logger: logger}
}

// Name identifies the sink in logs and metrics.
func (a *Archive) Name() string { return "s3" }

// PublishSnapshot uploads snap under a date-partitioned key.
func (a *Archive) PublishSnapshot(ctx context.Context, snap domain.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("serialize snapshot %d: %w", snap.Cycle, err)
	}

	key := objectKey(a.prefix, snap)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentTypeJSON),
	})
	if err != nil {
		return fmt.Errorf("s3 put object %s: %w", key, err)
	}
	a.logger.Debug("snapshot archived", "bucket", a.bucket, "key", key)
	return nil
}

// objectKey renders prefix/YYYY/MM/DD/HHMMSS-cycle.json in UTC.
func objectKey(prefix string, snap domain.Snapshot) string {
	at := snap.PublishedAt.UTC()
	return path.Join(prefix, at.Format("2006/01/02"), fmt.Sprintf("%s-%06d.json", at.Format("150405"), snap.Cycle))
}
