package s3

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/mitchross/backup-monitor/internal/backend"
)

const backendName = "aws"

// S3API is the subset of the S3 API used for listing.
type S3API interface {
	ListObjectsV2(ctx context.Context, params *awss3.ListObjectsV2Input, optFns ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error)
}

// Client lists backup objects from an AWS S3 bucket.
type Client struct {
	api    S3API
	bucket string
}

func NewClient(api S3API, bucket string) *Client {
	return &Client{api: api, bucket: bucket}
}

// NewFromConfig creates a client backed by a real S3 service client.
func NewFromConfig(cfg aws.Config, bucket string) *Client {
	return NewClient(awss3.NewFromConfig(cfg), bucket)
}

// ListObjects returns every object under prefix across all pages.
func (c *Client) ListObjects(ctx context.Context, prefix string) ([]backend.Object, error) {
	input := &awss3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(prefix),
	}

	paginator := awss3.NewListObjectsV2Paginator(c.api, input)

	var objects []backend.Object
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, &backend.ListError{
				Backend: backendName,
				Prefix:  prefix,
				Err:     fmt.Errorf("ListObjectsV2: %w", err),
			}
		}

		for _, obj := range page.Contents {
			var lastModified time.Time
			if obj.LastModified != nil {
				lastModified = obj.LastModified.UTC()
			}
			objects = append(objects, backend.Object{
				Key:          aws.ToString(obj.Key),
				LastModified: lastModified,
			})
		}
	}

	return objects, nil
}
