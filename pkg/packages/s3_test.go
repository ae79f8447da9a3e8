package packages

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 is an in-memory stand-in for the S3 API
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	buckets map[string]bool
	failPut bool
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, buckets: map[string]bool{}}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.failPut {
		return nil, errors.New("access denied")
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.objects[aws.ToString(in.Key)] = data
	f.mu.Unlock()
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[aws.ToString(in.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) HeadBucket(_ context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.buckets[aws.ToString(in.Bucket)] {
		return nil, &types.NotFound{}
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) CreateBucket(_ context.Context, in *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buckets[aws.ToString(in.Bucket)] = true
	return &s3.CreateBucketOutput{}, nil
}

func TestS3BlobStore(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	store := newS3BlobStoreWithClient(fake, "packages")

	require.NoError(t, store.ensureBucket(ctx))
	require.NoError(t, store.HealthCheck(ctx))

	key := BlobKey(Checksum([]byte("payload")))
	exists, err := store.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, ErrBlobNotFound)

	require.NoError(t, store.Put(ctx, key, []byte("payload")))
	data, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestS3BlobStorePutError(t *testing.T) {
	fake := newFakeS3()
	fake.failPut = true
	store := newS3BlobStoreWithClient(fake, "packages")

	err := store.Put(context.Background(), "k", []byte("x"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to upload to s3")
}

func TestS3BlobStoreHealthCheckMissingBucket(t *testing.T) {
	store := newS3BlobStoreWithClient(newFakeS3(), "missing")
	assert.Error(t, store.HealthCheck(context.Background()))
}
