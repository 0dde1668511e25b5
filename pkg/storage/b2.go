package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/kurin/blazer/b2"

	"classhub/config"
)

// B2Store Backblaze B2 存储
type B2Store struct {
	client *b2.Client
	bucket *b2.Bucket
}

// NewB2Store 连接 B2 并定位存储桶
func NewB2Store(ctx context.Context, cfg *config.B2Config) (*B2Store, error) {
	client, err := b2.NewClient(ctx, cfg.AccountID, cfg.AppKey)
	if err != nil {
		return nil, fmt.Errorf("create b2 client: %w", err)
	}

	bucket, err := client.Bucket(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("get b2 bucket: %w", err)
	}

	return &B2Store{client: client, bucket: bucket}, nil
}

func (s *B2Store) Name() string { return "b2" }

func (s *B2Store) Put(ctx context.Context, key string, r io.Reader, _ int64, contentType string) (string, error) {
	obj := s.bucket.Object(key)
	w := obj.NewWriter(ctx, b2.WithAttrsOption(&b2.Attrs{ContentType: contentType}))

	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return "", fmt.Errorf("write object: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}

	return b2PublicURL(s.bucket.BaseURL(), s.bucket.Name(), key), nil
}

// b2PublicURL 拼接公开桶的下载地址：<base>/file/<bucket>/<key>
func b2PublicURL(baseURL, bucket, key string) string {
	return fmt.Sprintf("%s/file/%s/%s", strings.TrimRight(baseURL, "/"), bucket, key)
}

func (s *B2Store) Delete(ctx context.Context, key string) error {
	err := s.bucket.Object(key).Delete(ctx)
	if err != nil && b2.IsNotExist(err) {
		return nil
	}
	return err
}
