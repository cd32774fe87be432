package ports

import "context"

// StorageRepository covers the two object-store needs: staging code
// artifacts for deployment, and the bucket inventory the operational
// task reports.
type StorageRepository interface {
	Upload(ctx context.Context, bucket, key string, body []byte) error
	Exists(ctx context.Context, bucket, key string) (bool, error)
	ListBuckets(ctx context.Context) ([]string, error)
}
