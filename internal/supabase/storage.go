package supabase

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	storage "github.com/supabase-community/storage-go"
)

// StorageClient is a Supabase Storage bucket behind a circuit breaker.
type StorageClient struct {
	client  *storage.Client
	bucket  string
	baseURL string
	breaker *gobreaker.CircuitBreaker[any]
}

func NewStorageClient(supabaseURL, serviceRoleKey, bucket string) (*StorageClient, error) {
	baseURL := strings.TrimRight(supabaseURL, "/")
	if baseURL == "" {
		return nil, fmt.Errorf("supabase url is required")
	}
	client := storage.NewClient(baseURL+"/storage/v1", serviceRoleKey, nil)

	return &StorageClient{
		client:  client,
		bucket:  bucket,
		baseURL: baseURL,
		breaker: newBreaker("storage:" + bucket),
	}, nil
}

// WithBucket returns a client for another bucket sharing the connection.
func (s *StorageClient) WithBucket(bucket string) *StorageClient {
	return &StorageClient{
		client:  s.client,
		bucket:  bucket,
		baseURL: s.baseURL,
		breaker: newBreaker("storage:" + bucket),
	}
}

func newBreaker(name string) *gobreaker.CircuitBreaker[any] {
	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
}

type result[T any] struct {
	out T
	err error
}

// execute runs fn through the breaker and gives up when ctx is done. The
// storage client takes no context, so an abandoned call finishes in the
// background and is still counted by the breaker.
func execute[T any](ctx context.Context, cb *gobreaker.CircuitBreaker[any], fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	done := make(chan result[T], 1)
	go func() {
		out, err := cb.Execute(func() (any, error) {
			return fn()
		})
		if err != nil {
			done <- result[T]{err: err}
			return
		}
		done <- result[T]{out: out.(T)}
	}()
	select {
	case r := <-done:
		return r.out, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (s *StorageClient) Upload(ctx context.Context, storagePath string, data []byte, contentType string) error {
	upsert := true
	_, err := execute(ctx, s.breaker, func() (struct{}, error) {
		_, err := s.client.UploadFile(s.bucket, storagePath, bytes.NewReader(data), storage.FileOptions{
			ContentType: &contentType,
			Upsert:      &upsert,
		})
		return struct{}{}, err
	})
	if err != nil {
		return fmt.Errorf("failed to upload file: %w", err)
	}
	return nil
}

func (s *StorageClient) SignedURL(ctx context.Context, storagePath string, ttlSeconds int) (string, error) {
	resp, err := execute(ctx, s.breaker, func() (storage.SignedUrlResponse, error) {
		return s.client.CreateSignedUrl(s.bucket, storagePath, ttlSeconds)
	})
	if err != nil {
		return "", fmt.Errorf("failed to create signed url: %w", err)
	}
	signed := resp.SignedURL
	if strings.HasPrefix(signed, "/") {
		signed = s.baseURL + "/storage/v1" + signed
	}
	return signed, nil
}

func (s *StorageClient) List(ctx context.Context, prefix string) ([]string, error) {
	files, err := execute(ctx, s.breaker, func() ([]storage.FileObject, error) {
		return s.client.ListFiles(s.bucket, prefix, storage.FileSearchOptions{
			Limit: 1000,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	prefix = strings.TrimRight(prefix, "/")
	paths := make([]string, 0, len(files))
	for _, file := range files {
		paths = append(paths, prefix+"/"+file.Name)
	}
	return paths, nil
}

func (s *StorageClient) Download(ctx context.Context, storagePath string) ([]byte, error) {
	data, err := execute(ctx, s.breaker, func() ([]byte, error) {
		return s.client.DownloadFile(s.bucket, storagePath)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	return data, nil
}

func (s *StorageClient) GetPublicURL(storagePath string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s",
		s.baseURL, s.bucket, storagePath)
}

func (s *StorageClient) Bucket() string {
	return s.bucket
}
