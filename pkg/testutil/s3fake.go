package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// FakeObject is an object held by FakeS3
type FakeObject struct {
	Data        []byte
	ContentType string
}

// FakeS3 is an in-memory stand-in for the S3 operations used by the bucket manager.
// Listing is paged by PageSize so paginators are exercised.
type FakeS3 struct {
	mu       sync.Mutex
	buckets  map[string]map[string]FakeObject
	PageSize int
	// Fail makes the named operation return the given error
	Fail  map[string]error
	Calls []string
}

// NewFakeS3 creates an empty store with a page size of 1000
func NewFakeS3() *FakeS3 {
	return &FakeS3{
		buckets:  make(map[string]map[string]FakeObject),
		PageSize: 1000,
		Fail:     make(map[string]error),
	}
}

// Seed creates bucket if needed and stores objects in it
func (f *FakeS3) Seed(bucket string, objects map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.buckets[bucket] == nil {
		f.buckets[bucket] = make(map[string]FakeObject)
	}
	for k, v := range objects {
		f.buckets[bucket][k] = FakeObject{Data: []byte(v)}
	}
}

// HasBucket reports whether the bucket exists
func (f *FakeS3) HasBucket(bucket string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.buckets[bucket]
	return ok
}

// Object returns a stored object
func (f *FakeS3) Object(bucket, key string) (FakeObject, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.buckets[bucket][key]
	return obj, ok
}

// ObjectCount returns the number of objects in bucket
func (f *FakeS3) ObjectCount(bucket string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.buckets[bucket])
}

func (f *FakeS3) enter(op string) error {
	f.Calls = append(f.Calls, op)
	return f.Fail[op]
}

func (f *FakeS3) ListBuckets(_ context.Context, _ *s3.ListBucketsInput, _ ...func(*s3.Options)) (*s3.ListBucketsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListBuckets"); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(f.buckets))
	for name := range f.buckets {
		names = append(names, name)
	}
	sort.Strings(names)

	out := &s3.ListBucketsOutput{}
	for _, name := range names {
		out.Buckets = append(out.Buckets, types.Bucket{Name: aws.String(name)})
	}
	return out, nil
}

func (f *FakeS3) CreateBucket(_ context.Context, in *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreateBucket"); err != nil {
		return nil, err
	}

	name := aws.ToString(in.Bucket)
	if _, ok := f.buckets[name]; ok {
		return nil, &types.BucketAlreadyOwnedByYou{Message: aws.String(name)}
	}
	f.buckets[name] = make(map[string]FakeObject)
	return &s3.CreateBucketOutput{}, nil
}

func (f *FakeS3) DeleteBucket(_ context.Context, in *s3.DeleteBucketInput, _ ...func(*s3.Options)) (*s3.DeleteBucketOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("DeleteBucket"); err != nil {
		return nil, err
	}

	name := aws.ToString(in.Bucket)
	objects, ok := f.buckets[name]
	if !ok {
		return nil, &types.NoSuchBucket{Message: aws.String(name)}
	}
	if len(objects) > 0 {
		return nil, fmt.Errorf("BucketNotEmpty: bucket %s holds %d objects", name, len(objects))
	}
	delete(f.buckets, name)
	return &s3.DeleteBucketOutput{}, nil
}

func (f *FakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListObjectsV2"); err != nil {
		return nil, err
	}

	objects, ok := f.buckets[aws.ToString(in.Bucket)]
	if !ok {
		return nil, &types.NoSuchBucket{Message: in.Bucket}
	}

	keys := make([]string, 0, len(objects))
	for k := range objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// the token is the last key of the previous page, so deleting listed keys
	// between pages does not shift the next page
	start := 0
	if token := aws.ToString(in.ContinuationToken); token != "" {
		start = sort.SearchStrings(keys, token)
		if start < len(keys) && keys[start] == token {
			start++
		}
	}
	end := min(start+f.PageSize, len(keys))

	out := &s3.ListObjectsV2Output{
		Name:        in.Bucket,
		KeyCount:    aws.Int32(int32(end - start)),
		IsTruncated: aws.Bool(end < len(keys)),
	}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, types.Object{
			Key:  aws.String(k),
			Size: aws.Int64(int64(len(objects[k].Data))),
		})
	}
	if end < len(keys) {
		out.NextContinuationToken = aws.String(keys[end-1])
	}
	return out, nil
}

func (f *FakeS3) DeleteObjects(_ context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("DeleteObjects"); err != nil {
		return nil, err
	}

	objects, ok := f.buckets[aws.ToString(in.Bucket)]
	if !ok {
		return nil, &types.NoSuchBucket{Message: in.Bucket}
	}
	out := &s3.DeleteObjectsOutput{}
	for _, id := range in.Delete.Objects {
		delete(objects, aws.ToString(id.Key))
		out.Deleted = append(out.Deleted, types.DeletedObject{Key: id.Key})
	}
	return out, nil
}

func (f *FakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("PutObject"); err != nil {
		return nil, err
	}

	objects, ok := f.buckets[aws.ToString(in.Bucket)]
	if !ok {
		return nil, &types.NoSuchBucket{Message: in.Bucket}
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	objects[aws.ToString(in.Key)] = FakeObject{Data: data, ContentType: aws.ToString(in.ContentType)}
	return &s3.PutObjectOutput{}, nil
}

func (f *FakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetObject"); err != nil {
		return nil, err
	}

	objects, ok := f.buckets[aws.ToString(in.Bucket)]
	if !ok {
		return nil, &types.NoSuchBucket{Message: in.Bucket}
	}
	obj, ok := objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: in.Key}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(obj.Data)),
		ContentType:   aws.String(obj.ContentType),
		ContentLength: aws.Int64(int64(len(obj.Data))),
	}, nil
}

func (f *FakeS3) UploadPart(context.Context, *s3.UploadPartInput, ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	return nil, fmt.Errorf("multipart upload not supported by fake")
}

func (f *FakeS3) CreateMultipartUpload(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return nil, fmt.Errorf("multipart upload not supported by fake")
}

func (f *FakeS3) CompleteMultipartUpload(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	return nil, fmt.Errorf("multipart upload not supported by fake")
}

func (f *FakeS3) AbortMultipartUpload(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return nil, fmt.Errorf("multipart upload not supported by fake")
}
