// Package objectstore stores uploaded images and their previews in an
// S3-compatible bucket.
package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"

	"circus-pes/apperr"
)

// UploadPolicy bounds what a presigned upload may store.
type UploadPolicy struct {
	ContentTypePrefix string
	MinBytes          int64
	MaxBytes          int64
	TTL               time.Duration
}

// PresignedUpload is a browser form upload target: POST Fields plus the
// file to URL.
type PresignedUpload struct {
	URL       string            `json:"url"`
	Fields    map[string]string `json:"fields"`
	Key       string            `json:"key"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

type Bucket struct {
	client *minio.Client
	name   string
	now    func() time.Time

	ensureOnce sync.Once
	ensureErr  error
}

func NewBucket(client *minio.Client, name string) *Bucket {
	return &Bucket{
		client: client,
		name:   strings.TrimSpace(name),
		now:    time.Now,
	}
}

// EnsureBucket creates the bucket on first use if it does not exist.
func (b *Bucket) EnsureBucket(ctx context.Context) error {
	if b.client == nil {
		return fmt.Errorf("s3 client is nil")
	}
	if b.name == "" {
		return fmt.Errorf("s3 bucket is empty")
	}

	b.ensureOnce.Do(func() {
		exists, err := b.client.BucketExists(ctx, b.name)
		if err != nil {
			b.ensureErr = err
			return
		}
		if exists {
			return
		}
		b.ensureErr = b.client.MakeBucket(ctx, b.name, minio.MakeBucketOptions{})
	})

	if b.ensureErr != nil {
		return fmt.Errorf("ensure s3 bucket %q: %w", b.name, b.ensureErr)
	}
	return nil
}

// PresignUpload signs a POST policy scoped to exactly one key.
func (b *Bucket) PresignUpload(ctx context.Context, key string, p UploadPolicy) (PresignedUpload, error) {
	expires := b.now().Add(p.TTL).UTC()

	policy := minio.NewPostPolicy()
	if err := policy.SetBucket(b.name); err != nil {
		return PresignedUpload{}, fmt.Errorf("policy bucket: %w", err)
	}
	if err := policy.SetKey(key); err != nil {
		return PresignedUpload{}, fmt.Errorf("policy key: %w", err)
	}
	if err := policy.SetExpires(expires); err != nil {
		return PresignedUpload{}, fmt.Errorf("policy expiry: %w", err)
	}
	if err := policy.SetContentTypeStartsWith(p.ContentTypePrefix); err != nil {
		return PresignedUpload{}, fmt.Errorf("policy content type: %w", err)
	}
	if err := policy.SetContentLengthRange(p.MinBytes, p.MaxBytes); err != nil {
		return PresignedUpload{}, fmt.Errorf("policy content length: %w", err)
	}

	u, fields, err := b.client.PresignedPostPolicy(ctx, policy)
	if err != nil {
		return PresignedUpload{}, fmt.Errorf("presign post policy: %w", err)
	}

	return PresignedUpload{
		URL:       u.String(),
		Fields:    fields,
		Key:       key,
		ExpiresAt: expires,
	}, nil
}

// Get reads at most maxBytes of an object. Larger objects are rejected.
func (b *Bucket) Get(ctx context.Context, key string, maxBytes int64) ([]byte, error) {
	obj, err := b.client.GetObject(ctx, b.name, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(io.LimitReader(obj, maxBytes+1))
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, apperr.BadInput.New("no object uploaded at %s", key)
		}
		return nil, fmt.Errorf("read object: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, apperr.BadInput.New("object %s exceeds %d bytes", key, maxBytes)
	}
	return data, nil
}

func (b *Bucket) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := b.client.PutObject(ctx, b.name, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

func (b *Bucket) Remove(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	if err := b.client.RemoveObject(ctx, b.name, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}
