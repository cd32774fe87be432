package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/martijnvandongen/operational-tasks-lambda/internal/ports"
)

type Repository struct {
	client *awss3.Client
}

func NewRepository(cfg aws.Config) ports.StorageRepository {
	return &Repository{client: awss3.NewFromConfig(cfg)}
}

// Upload writes an object. Staged code artifacts are keyed by content
// hash, so overwriting an existing key rewrites identical bytes.
func (r *Repository) Upload(ctx context.Context, bucket, key string, body []byte) error {
	_, err := r.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return fmt.Errorf("failed to upload s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}

// Exists checks whether an object is already present, letting the
// deployer skip re-uploading a content-addressed artifact.
func (r *Repository) Exists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := r.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NotFound" {
			return false, nil
		}
		return false, fmt.Errorf("failed to head s3://%s/%s: %w", bucket, key, err)
	}
	return true, nil
}

// ListBuckets returns the names of every bucket the caller owns.
func (r *Repository) ListBuckets(ctx context.Context) ([]string, error) {
	output, err := r.client.ListBuckets(ctx, &awss3.ListBucketsInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to list buckets: %w", err)
	}

	names := make([]string, 0, len(output.Buckets))
	for _, b := range output.Buckets {
		names = append(names, aws.ToString(b.Name))
	}
	return names, nil
}
