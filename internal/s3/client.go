package s3

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/mitchross/backup-monitor/internal/backend"
)

const backendName = "s3"

// ObjectLister is the subset of the minio client used for listing.
type ObjectLister interface {
	ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
}

// Client lists backup objects from an S3-compatible endpoint.
type Client struct {
	minioClient ObjectLister
	bucket      string
}

func NewClient(endpoint, bucket, accessKey, secretKey string, secure bool, maxRetries int) (*Client, error) {
	minioClient, err := minio.New(endpoint, &minio.Options{
		Creds:      credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure:     secure,
		MaxRetries: maxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &Client{
		minioClient: minioClient,
		bucket:      bucket,
	}, nil
}

// NewClientWithLister creates a client around an existing lister (for testing).
func NewClientWithLister(lister ObjectLister, bucket string) *Client {
	return &Client{
		minioClient: lister,
		bucket:      bucket,
	}
}

// ListObjects returns every object under prefix, recursing into
// pseudo-directories.
func (c *Client) ListObjects(ctx context.Context, prefix string) ([]backend.Object, error) {
	opts := minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}

	// Cancel so the listing goroutine exits if we return early on error.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var objects []backend.Object
	for object := range c.minioClient.ListObjects(ctx, c.bucket, opts) {
		if object.Err != nil {
			return nil, &backend.ListError{Backend: backendName, Prefix: prefix, Err: object.Err}
		}
		objects = append(objects, backend.Object{
			Key:          object.Key,
			LastModified: object.LastModified.UTC(),
		})
	}

	return objects, nil
}
