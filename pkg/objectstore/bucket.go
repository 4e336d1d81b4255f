// Package objectstore manages the buckets used by the pipeline: the text
// interchange bucket and the warehouse bucket that holds table data files.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	merrors "github.com/ajitpratap0/movieport/pkg/errors"
	"github.com/ajitpratap0/movieport/pkg/logger"
)

// maxDeleteBatch is the S3 limit of keys per DeleteObjects call
const maxDeleteBatch = 1000

// BucketManager provisions buckets and moves single objects in and out
type BucketManager struct {
	api      API
	uploader *manager.Uploader
	region   string
	logger   *zap.Logger
}

// NewBucketManager wraps an S3 API client
func NewBucketManager(api API, cfg Config, l *zap.Logger) *BucketManager {
	if l == nil {
		l = logger.Named("objectstore")
	}
	return &BucketManager{
		api: api,
		uploader: manager.NewUploader(api, func(u *manager.Uploader) {
			if cfg.PartSize > 0 {
				u.PartSize = cfg.PartSize
			}
			u.Concurrency = 1
		}),
		region: cfg.Region,
		logger: l,
	}
}

// BucketExists reports whether name is among the caller's buckets
func (m *BucketManager) BucketExists(ctx context.Context, name string) (bool, error) {
	var token *string
	for {
		out, err := m.api.ListBuckets(ctx, &s3.ListBucketsInput{ContinuationToken: token})
		if err != nil {
			return false, merrors.Wrap(err, merrors.ErrorTypeStorage, "failed to list buckets")
		}
		for _, b := range out.Buckets {
			if aws.ToString(b.Name) == name {
				return true, nil
			}
		}
		if aws.ToString(out.ContinuationToken) == "" {
			return false, nil
		}
		token = out.ContinuationToken
	}
}

// EnsureCleanBucket leaves name existing and empty. An existing bucket is
// emptied, deleted and recreated. The sequence is not atomic: an interrupted
// call may leave the bucket absent, and calling again converges.
func (m *BucketManager) EnsureCleanBucket(ctx context.Context, name string) error {
	exists, err := m.BucketExists(ctx, name)
	if err != nil {
		return err
	}

	if exists {
		m.logger.Info("bucket exists, removing it", zap.String("bucket", name))
		removed, err := m.emptyBucket(ctx, name)
		if err != nil {
			return err
		}
		if _, err := m.api.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(name)}); err != nil {
			return merrors.Wrap(err, merrors.ErrorTypeStorage, "failed to delete bucket").WithDetail("bucket", name)
		}
		m.logger.Debug("deleted bucket", zap.String("bucket", name), zap.Int("objects", removed))
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(name)}
	if m.region != "" && m.region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(m.region),
		}
	}
	if _, err := m.api.CreateBucket(ctx, input); err != nil {
		return merrors.Wrap(err, merrors.ErrorTypeStorage, "failed to create bucket").WithDetail("bucket", name)
	}

	m.logger.Info("created bucket", zap.String("bucket", name))
	return nil
}

// emptyBucket deletes every object in the bucket and returns how many were removed
func (m *BucketManager) emptyBucket(ctx context.Context, name string) (int, error) {
	removed := 0
	paginator := s3.NewListObjectsV2Paginator(m.api, &s3.ListObjectsV2Input{Bucket: aws.String(name)})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return removed, merrors.Wrap(err, merrors.ErrorTypeStorage, "failed to list objects").WithDetail("bucket", name)
		}

		for start := 0; start < len(page.Contents); start += maxDeleteBatch {
			end := min(start+maxDeleteBatch, len(page.Contents))
			ids := make([]types.ObjectIdentifier, 0, end-start)
			for _, obj := range page.Contents[start:end] {
				ids = append(ids, types.ObjectIdentifier{Key: obj.Key})
			}

			out, err := m.api.DeleteObjects(ctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(name),
				Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
			})
			if err != nil {
				return removed, merrors.Wrap(err, merrors.ErrorTypeStorage, "failed to delete objects").WithDetail("bucket", name)
			}
			if len(out.Errors) > 0 {
				first := out.Errors[0]
				return removed, merrors.Newf(merrors.ErrorTypeStorage, "failed to delete %d objects", len(out.Errors)).
					WithDetail("bucket", name).
					WithDetail("key", aws.ToString(first.Key)).
					WithDetail("code", aws.ToString(first.Code))
			}
			removed += len(ids)
		}
	}
	return removed, nil
}

// Upload stores data under bucket/key in a single put
func (m *BucketManager) Upload(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	_, err := m.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return merrors.Wrap(err, merrors.ErrorTypeStorage, "failed to upload object").
			WithDetail("bucket", bucket).
			WithDetail("key", key)
	}

	m.logger.Info("uploaded object",
		zap.String("bucket", bucket),
		zap.String("key", key),
		zap.Int("bytes", len(data)))
	return nil
}

// Download opens bucket/key for reading. The caller closes the stream.
// An absent key fails with a not-found error.
func (m *BucketManager) Download(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	out, err := m.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, merrors.Wrap(err, merrors.ErrorTypeNotFound, "object not found").
				WithDetail("bucket", bucket).
				WithDetail("key", key)
		}
		return nil, merrors.Wrap(err, merrors.ErrorTypeStorage, "failed to download object").
			WithDetail("bucket", bucket).
			WithDetail("key", key)
	}
	return out.Body, nil
}

// ListKeys returns every key in the bucket
func (m *BucketManager) ListKeys(ctx context.Context, bucket string) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(m.api, &s3.ListObjectsV2Input{Bucket: aws.String(bucket)})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, merrors.Wrap(err, merrors.ErrorTypeStorage, "failed to list objects").WithDetail("bucket", bucket)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}
