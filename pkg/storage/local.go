package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalPrefix 本地驱动对外暴露的静态路由前缀
const LocalPrefix = "/uploads"

// LocalStore 本地目录存储
type LocalStore struct {
	dir     string
	baseURL string
}

// NewLocalStore 创建本地存储，目录不存在时自动创建
func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve upload dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{dir: abs, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *LocalStore) Name() string { return "local" }

// Dir 本地根目录，供静态文件路由使用
func (s *LocalStore) Dir() string { return s.dir }

func (s *LocalStore) Put(ctx context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	dst, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}

	f, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, &ctxReader{ctx: ctx, r: r}); err != nil {
		f.Close()
		os.Remove(dst)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	return s.baseURL + LocalPrefix + "/" + filepath.ToSlash(key), nil
}

func (s *LocalStore) Delete(_ context.Context, key string) error {
	dst, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(dst); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// resolve 将键映射到根目录内的路径，拒绝目录穿越
func (s *LocalStore) resolve(key string) (string, error) {
	dst := filepath.Join(s.dir, filepath.FromSlash(key))
	if !strings.HasPrefix(dst, s.dir+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return dst, nil
}

// ctxReader 上传过程中响应取消
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
