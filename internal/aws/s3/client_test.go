package s3

import (
	"context"
	"errors"
	"testing"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitchross/backup-monitor/internal/backend"
)

type mockS3API struct {
	listObjectsV2Func func(ctx context.Context, params *awss3.ListObjectsV2Input, optFns ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error)
}

func (m *mockS3API) ListObjectsV2(ctx context.Context, params *awss3.ListObjectsV2Input, optFns ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error) {
	return m.listObjectsV2Func(ctx, params, optFns...)
}

func TestListObjects_Paginates(t *testing.T) {
	t1 := time.Date(2026, 10, 9, 2, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 10, 17, 2, 0, 0, 0, time.UTC)
	t3 := time.Date(2026, 10, 18, 2, 0, 0, 0, time.UTC)

	var calls []string
	mock := &mockS3API{
		listObjectsV2Func: func(ctx context.Context, params *awss3.ListObjectsV2Input, optFns ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error) {
			assert.Equal(t, "backups", awssdk.ToString(params.Bucket))
			assert.Equal(t, "tableau-int/", awssdk.ToString(params.Prefix))
			assert.Nil(t, params.Delimiter)

			token := awssdk.ToString(params.ContinuationToken)
			calls = append(calls, token)

			if token == "" {
				return &awss3.ListObjectsV2Output{
					Contents: []s3types.Object{
						{Key: awssdk.String("tableau-int/a.tsbak"), LastModified: &t1},
						{Key: awssdk.String("tableau-int/b.tsbak"), LastModified: &t2},
					},
					IsTruncated:           awssdk.Bool(true),
					NextContinuationToken: awssdk.String("page-2"),
				}, nil
			}
			return &awss3.ListObjectsV2Output{
				Contents: []s3types.Object{
					{Key: awssdk.String("tableau-int/c.tsbak"), LastModified: &t3},
				},
				IsTruncated: awssdk.Bool(false),
			}, nil
		},
	}

	client := NewClient(mock, "backups")
	objects, err := client.ListObjects(context.Background(), "tableau-int/")
	require.NoError(t, err)

	assert.Equal(t, []string{"", "page-2"}, calls)
	require.Len(t, objects, 3)
	assert.Equal(t, backend.Object{Key: "tableau-int/c.tsbak", LastModified: t3}, objects[2])
}

func TestListObjects_MissingLastModified(t *testing.T) {
	mock := &mockS3API{
		listObjectsV2Func: func(ctx context.Context, params *awss3.ListObjectsV2Input, optFns ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error) {
			return &awss3.ListObjectsV2Output{
				Contents: []s3types.Object{{Key: awssdk.String("int/no-date")}},
			}, nil
		},
	}

	objects, err := NewClient(mock, "backups").ListObjects(context.Background(), "int/")
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.True(t, objects[0].LastModified.IsZero())
}

func TestListObjects_Empty(t *testing.T) {
	mock := &mockS3API{
		listObjectsV2Func: func(ctx context.Context, params *awss3.ListObjectsV2Input, optFns ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error) {
			return &awss3.ListObjectsV2Output{IsTruncated: awssdk.Bool(false)}, nil
		},
	}

	objects, err := NewClient(mock, "backups").ListObjects(context.Background(), "int/")
	require.NoError(t, err)
	assert.Empty(t, objects)
}

func TestListObjects_Error(t *testing.T) {
	apiErr := errors.New("AccessDenied")
	mock := &mockS3API{
		listObjectsV2Func: func(ctx context.Context, params *awss3.ListObjectsV2Input, optFns ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error) {
			return nil, apiErr
		},
	}

	objects, err := NewClient(mock, "backups").ListObjects(context.Background(), "int/")
	require.Error(t, err)
	assert.Nil(t, objects)

	var listErr *backend.ListError
	require.ErrorAs(t, err, &listErr)
	assert.Equal(t, "aws", listErr.Backend)
	assert.Equal(t, "int/", listErr.Prefix)
	assert.ErrorIs(t, err, apiErr)
}
