package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/hupe1980/stepwise/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestStore_Open(t *testing.T) {
	mockClient := new(MockS3Client)
	store := NewStore(mockClient, "test-bucket", "prefix")

	t.Run("NotFound", func(t *testing.T) {
		mockClient.On("HeadObject", mock.Anything, mock.MatchedBy(func(input *s3.HeadObjectInput) bool {
			return *input.Bucket == "test-bucket" && *input.Key == "prefix/foo"
		})).Return(nil, &types.NotFound{}).Once()

		_, err := store.Open(context.Background(), "foo")
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	})

	t.Run("GenericNotFound", func(t *testing.T) {
		mockClient.On("HeadObject", mock.Anything, mock.MatchedBy(func(input *s3.HeadObjectInput) bool {
			return *input.Key == "prefix/gone"
		})).Return(nil, &smithy.GenericAPIError{Code: "NotFound"}).Once()

		_, err := store.Open(context.Background(), "gone")
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	})

	t.Run("Success", func(t *testing.T) {
		mockClient.On("HeadObject", mock.Anything, mock.MatchedBy(func(input *s3.HeadObjectInput) bool {
			return *input.Bucket == "test-bucket" && *input.Key == "prefix/bar"
		})).Return(&s3.HeadObjectOutput{ContentLength: aws.Int64(100)}, nil).Once()

		blob, err := store.Open(context.Background(), "bar")
		require.NoError(t, err)
		assert.Equal(t, int64(100), blob.Size())
	})

	mockClient.AssertExpectations(t)
}

func TestStore_Put(t *testing.T) {
	mockClient := new(MockS3Client)
	store := NewStore(mockClient, "test-bucket", "prefix")
	data := []byte("archive")

	var (
		key, checksum string
		body          []byte
	)
	mockClient.On("PutObject", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		input := args.Get(1).(*s3.PutObjectInput)
		key = aws.ToString(input.Key)
		checksum = aws.ToString(input.ChecksumCRC32C)
		body, _ = io.ReadAll(input.Body)
	}).Return(&s3.PutObjectOutput{}, nil).Once()

	require.NoError(t, store.Put(context.Background(), "job/r0/step1-local/0", data))
	mockClient.AssertExpectations(t)
	assert.Equal(t, "prefix/job/r0/step1-local/0", key)
	assert.Equal(t, data, body)
	assert.Equal(t, computeCRC32C(data), checksum)
}

func TestOptions(t *testing.T) {
	upload := DefaultUploadConfig()
	upload.PartSize = 16 << 20
	upload.EnableChecksum = false

	var opts Options
	for _, fn := range []Option{WithPrefix("jobs/"), WithRegion("eu-central-1"), WithEndpoint("http://localhost:9000"), WithUpload(upload)} {
		fn(&opts)
	}
	assert.Equal(t, "jobs/", opts.Prefix)
	assert.Equal(t, "eu-central-1", opts.Region)
	assert.True(t, opts.UsePathStyle)
	assert.Equal(t, upload, opts.Upload)

	store := NewStore(new(MockS3Client), "b", opts.Prefix, WithUploadConfig(opts.Upload))
	assert.Equal(t, int64(16<<20), store.upload.PartSize)
}

func TestStore_Delete(t *testing.T) {
	mockClient := new(MockS3Client)
	store := NewStore(mockClient, "test-bucket", "prefix")

	mockClient.On("DeleteObject", mock.Anything, mock.MatchedBy(func(input *s3.DeleteObjectInput) bool {
		return *input.Bucket == "test-bucket" && *input.Key == "prefix/del"
	})).Return(&s3.DeleteObjectOutput{}, nil).Once()
	mockClient.On("DeleteObject", mock.Anything, mock.MatchedBy(func(input *s3.DeleteObjectInput) bool {
		return *input.Key == "prefix/fail"
	})).Return(nil, errors.New("denied")).Once()

	assert.NoError(t, store.Delete(context.Background(), "del"))
	assert.EqualError(t, store.Delete(context.Background(), "fail"), "denied")
}

func TestStore_List_Pagination(t *testing.T) {
	mockClient := new(MockS3Client)
	store := NewStore(mockClient, "test-bucket", "prefix/")

	mockClient.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(input *s3.ListObjectsV2Input) bool {
		return input.ContinuationToken == nil && *input.Prefix == "prefix/job/"
	})).Return(&s3.ListObjectsV2Output{
		IsTruncated:           aws.Bool(true),
		NextContinuationToken: aws.String("token"),
		Contents:              []types.Object{{Key: aws.String("prefix/job/2")}},
	}, nil).Once()
	mockClient.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(input *s3.ListObjectsV2Input) bool {
		return input.ContinuationToken != nil && *input.ContinuationToken == "token"
	})).Return(&s3.ListObjectsV2Output{
		IsTruncated: aws.Bool(false),
		Contents:    []types.Object{{Key: aws.String("prefix/job/1")}},
	}, nil).Once()

	keys, err := store.List(context.Background(), "job/")
	require.NoError(t, err)
	assert.Equal(t, []string{"job/1", "job/2"}, keys)
}

func TestBlob_ReadAt(t *testing.T) {
	mockClient := new(MockS3Client)
	blob := &s3Blob{client: mockClient, bucket: "b", key: "k", size: 10}
	ctx := context.Background()

	mockClient.On("GetObject", mock.Anything, mock.MatchedBy(func(input *s3.GetObjectInput) bool {
		return *input.Range == "bytes=0-4"
	})).Return(&s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader("hello"))}, nil).Once()
	mockClient.On("GetObject", mock.Anything, mock.MatchedBy(func(input *s3.GetObjectInput) bool {
		return *input.Range == "bytes=6-9"
	})).Return(&s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader("orld"))}, nil).Once()

	buf := make([]byte, 5)
	n, err := blob.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", string(buf))

	tail := make([]byte, 8)
	n, err = blob.ReadAt(ctx, tail, 6)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "orld", string(tail[:n]))

	_, err = blob.ReadAt(ctx, buf, 10)
	assert.ErrorIs(t, err, io.EOF)
	mockClient.AssertExpectations(t)
}

func TestDDBCommitLog(t *testing.T) {
	ctx := context.Background()
	log := NewDDBCommitLog(newMockDDBClient(), "stepwise-commits")

	ok, err := log.Committed(ctx, "job/r0/step2-local")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, log.Commit(ctx, "job/r0/step2-local"))
	assert.ErrorIs(t, log.Commit(ctx, "job/r0/step2-local"), blobstore.ErrAlreadyCommitted)

	ok, err = log.Committed(ctx, "job/r0/step2-local")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDDBCommitLog_ExactlyOnce(t *testing.T) {
	ctx := context.Background()
	log := NewDDBCommitLog(newMockDDBClient(), "stepwise-commits")

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if log.Commit(ctx, "job/r1/step3-master") == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestIntegration_S3Store(t *testing.T) {
	bucket := os.Getenv("S3_BUCKET")
	if bucket == "" {
		t.Skip("Skipping S3 integration test: S3_BUCKET not set")
	}
	ctx := context.Background()
	store, err := New(ctx, bucket, WithPrefix("stepwise-test/"))
	require.NoError(t, err)

	data := bytes.Repeat([]byte("x"), 1024)
	require.NoError(t, store.Put(ctx, "blob", data))
	got, err := blobstore.ReadAll(ctx, store, "blob")
	require.NoError(t, err)
	assert.Equal(t, data, got)
	require.NoError(t, store.Delete(ctx, "blob"))
}
