package objectstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/vecbucket/internal/apperr"
	"github.com/hyperjump/vecbucket/internal/config"
)

// apiError implements smithy.APIError for test assertions.
type apiError struct {
	code string
	msg  string
}

func (e *apiError) Error() string                 { return e.msg }
func (e *apiError) ErrorCode() string             { return e.code }
func (e *apiError) ErrorMessage() string          { return e.msg }
func (e *apiError) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }

var (
	errNoSuchKey = &apiError{code: "NoSuchKey", msg: "no such key"}
	errNotFound  = &apiError{code: "NotFound", msg: "not found"}
)

// mockS3 is a thread-safe in-memory S3 backend. Listing returns pages of
// pageSize keys so the paginator is exercised.
type mockS3 struct {
	mu       sync.Mutex
	objects  map[string][]byte
	buckets  map[string]bool
	pageSize int
	listCall int

	getErr  error
	putErr  error
	headErr error
	listErr error
}

func newMockS3() *mockS3 {
	return &mockS3{objects: make(map[string][]byte), buckets: make(map[string]bool), pageSize: 2}
}

func (m *mockS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*in.Key]
	if !ok {
		return nil, errNoSuchKey
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *mockS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (m *mockS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if m.headErr != nil {
		return nil, m.headErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[*in.Key]; !ok {
		return nil, errNotFound
	}
	return &s3.HeadObjectOutput{}, nil
}

func (m *mockS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCall++

	prefix := aws.ToString(in.Prefix)
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	start := 0
	if in.ContinuationToken != nil {
		start, _ = strconv.Atoi(*in.ContinuationToken)
	}
	end := start + m.pageSize
	if end > len(keys) {
		end = len(keys)
	}

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(keys))}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	if end < len(keys) {
		out.NextContinuationToken = aws.String(strconv.Itoa(end))
	}
	return out, nil
}

func (m *mockS3) HeadBucket(_ context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.buckets[*in.Bucket] {
		return nil, errNotFound
	}
	return &s3.HeadBucketOutput{}, nil
}

func (m *mockS3) CreateBucket(_ context.Context, in *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buckets[*in.Bucket] = true
	return &s3.CreateBucketOutput{}, nil
}

func TestS3_EnsureBucketCreates(t *testing.T) {
	mock := newMockS3()
	store := NewS3(mock, "vectors", "")

	require.NoError(t, store.EnsureBucket(context.Background()))
	assert.True(t, mock.buckets["vectors"])

	// second call finds the bucket
	require.NoError(t, store.EnsureBucket(context.Background()))
}

func TestS3_PrefixedKeys(t *testing.T) {
	mock := newMockS3()
	store := NewS3(mock, "vectors", "/tenant-a/")
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "doc1.meta.json", []byte("{}")))
	_, ok := mock.objects["tenant-a/doc1.meta.json"]
	assert.True(t, ok)

	mock.objects["other/doc2.meta.json"] = []byte("{}")

	keys, err := store.List(ctx, ".meta.json")
	require.NoError(t, err)
	assert.Equal(t, []string{"doc1.meta.json"}, keys)
}

func TestS3_ListPaginates(t *testing.T) {
	mock := newMockS3()
	store := NewS3(mock, "vectors", "")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Put(ctx, "doc"+strconv.Itoa(i)+".vector.bin", []byte{0}))
	}
	keys, err := store.List(ctx, ".vector.bin")
	require.NoError(t, err)
	assert.Len(t, keys, 5)
	assert.Equal(t, 3, mock.listCall)
}

func TestS3_FailuresAreStorageFailures(t *testing.T) {
	mock := newMockS3()
	store := NewS3(mock, "vectors", "")
	ctx := context.Background()
	boom := errors.New("connection refused")

	mock.getErr = boom
	_, err := store.Get(ctx, "x")
	assert.True(t, apperr.IsKind(err, apperr.StorageFailure))
	assert.ErrorIs(t, err, boom)

	mock.putErr = boom
	assert.True(t, apperr.IsKind(store.Put(ctx, "x", nil), apperr.StorageFailure))

	mock.headErr = boom
	_, err = store.Exists(ctx, "x")
	assert.True(t, apperr.IsKind(err, apperr.StorageFailure))

	mock.listErr = boom
	_, err = store.List(ctx, "")
	assert.True(t, apperr.IsKind(err, apperr.StorageFailure))
}

func TestNewS3Client(t *testing.T) {
	c := NewS3Client(config.StorageConfig{
		Endpoint:  "localhost:9000",
		Region:    "eu-west-1",
		AccessKey: "minio",
		SecretKey: "minio123",
	})
	opts := c.Options()
	assert.Equal(t, "eu-west-1", opts.Region)
	assert.True(t, opts.UsePathStyle)
	assert.Equal(t, "http://localhost:9000", aws.ToString(opts.BaseEndpoint))

	creds, err := opts.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "minio", creds.AccessKeyID)

	secure := NewS3Client(config.StorageConfig{Endpoint: "s3.example.com", UseSSL: true, Region: "us-east-1"})
	assert.Equal(t, "https://s3.example.com", aws.ToString(secure.Options().BaseEndpoint))

	store := NewS3(c, "vectors", "")
	assert.Equal(t, "eu-west-1", store.region)
}
