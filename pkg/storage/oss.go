package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"

	"classhub/config"
)

// OSSStore 阿里云 OSS 存储
type OSSStore struct {
	bucket        *oss.Bucket
	publicBaseURL string
}

// NewOSSStore 创建 OSS 客户端并定位存储桶
func NewOSSStore(cfg *config.OSSConfig) (*OSSStore, error) {
	client, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("oss.New: %w", err)
	}

	bucket, err := client.Bucket(cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("get oss bucket: %w", err)
	}

	base := strings.TrimRight(cfg.PublicBaseURL, "/")
	if base == "" {
		endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "https://"), "http://")
		base = fmt.Sprintf("https://%s.%s", cfg.Bucket, endpoint)
	}

	return &OSSStore{bucket: bucket, publicBaseURL: base}, nil
}

func (s *OSSStore) Name() string { return "oss" }

func (s *OSSStore) Put(ctx context.Context, key string, r io.Reader, _ int64, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	opts := []oss.Option{
		oss.WithContext(ctx),
		oss.ContentType(contentType),
		oss.ContentDisposition("inline"),
	}
	if err := s.bucket.PutObject(key, r, opts...); err != nil {
		return "", err
	}
	return s.publicBaseURL + "/" + key, nil
}

func (s *OSSStore) Delete(ctx context.Context, key string) error {
	return s.bucket.DeleteObject(key, oss.WithContext(ctx))
}
