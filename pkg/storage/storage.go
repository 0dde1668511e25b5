// Package storage 附件存储：上传校验与多种后端驱动（本地目录 / Backblaze B2 / 阿里云 OSS）
package storage

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"classhub/config"
)

// Store 对象存储后端
type Store interface {
	// Name 驱动名称，写入附件元数据以便删除时定位
	Name() string
	// Put 写入对象并返回可访问的 URL
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	// Delete 删除对象，对象不存在时不报错
	Delete(ctx context.Context, key string) error
}

// Object 已存储文件的元数据
type Object struct {
	Key         string
	URL         string
	Filename    string
	ContentType string
	Size        int64
	Driver      string
}

// Manager 组合存储后端与上传规则
type Manager struct {
	store Store
	rules Rules
}

// NewManager 创建附件管理器
func NewManager(store Store, rules Rules) *Manager {
	return &Manager{store: store, rules: rules}
}

// Rules 返回上传校验规则
func (m *Manager) Rules() Rules {
	return m.rules
}

// Save 将上传文件写入 folder 目录，键名为 folder/<uuid><ext>
func (m *Manager) Save(ctx context.Context, folder string, fh *multipart.FileHeader) (*Object, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %q: %w", fh.Filename, err)
	}
	defer src.Close()

	mime, err := mimetype.DetectReader(src)
	if err != nil {
		return nil, fmt.Errorf("detect content type %q: %w", fh.Filename, err)
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind upload %q: %w", fh.Filename, err)
	}

	key := buildKey(folder, fh.Filename)
	url, err := m.store.Put(ctx, key, src, fh.Size, mime.String())
	if err != nil {
		return nil, fmt.Errorf("put %q to %s: %w", key, m.store.Name(), err)
	}

	return &Object{
		Key:         key,
		URL:         url,
		Filename:    filepath.Base(fh.Filename),
		ContentType: mime.String(),
		Size:        fh.Size,
		Driver:      m.store.Name(),
	}, nil
}

// Remove 删除已存储的对象
func (m *Manager) Remove(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	return m.store.Delete(ctx, key)
}

func buildKey(folder, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return path.Join(strings.Trim(folder, "/"), uuid.NewString()+ext)
}

// New 根据配置创建存储后端
func New(ctx context.Context, cfg *config.StorageConfig, logger *zap.Logger) (Store, error) {
	switch cfg.Driver {
	case "b2":
		return NewB2Store(ctx, &cfg.B2)
	case "oss":
		return NewOSSStore(&cfg.OSS)
	case "local", "":
		logger.Info("使用本地附件存储", zap.String("dir", cfg.LocalDir))
		return NewLocalStore(cfg.LocalDir, cfg.PublicBaseURL)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
