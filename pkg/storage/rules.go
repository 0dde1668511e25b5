package storage

import (
	"errors"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"classhub/config"
)

var (
	ErrTooManyFiles       = errors.New("too many files")
	ErrFileTooLarge       = errors.New("file too large")
	ErrFileTypeNotAllowed = errors.New("file type not allowed")
)

// 扩展名 → 允许的真实内容类型
// docx 本质是 zip 容器，部分文件只能识别到 application/zip
var allowedContent = map[string][]string{
	"pdf":  {"application/pdf"},
	"zip":  {"application/zip", "application/x-zip-compressed"},
	"doc":  {"application/msword", "application/x-ole-storage"},
	"docx": {"application/vnd.openxmlformats-officedocument.wordprocessingml.document", "application/zip"},
	"png":  {"image/png"},
	"jpg":  {"image/jpeg"},
	"jpeg": {"image/jpeg"},
}

// Rules 上传限制：数量 / 单文件大小 / 类型
type Rules struct {
	MaxFiles    int
	MaxFileSize int64
	AllowedExts []string
}

// DefaultRules 作业与提交附件的默认限制
func DefaultRules() Rules {
	return Rules{
		MaxFiles:    5,
		MaxFileSize: 10 << 20,
		AllowedExts: []string{"pdf", "zip", "doc", "docx", "png", "jpg", "jpeg"},
	}
}

// RulesFromConfig 由上传配置生成限制，未配置的项沿用默认值
func RulesFromConfig(cfg *config.UploadConfig) Rules {
	r := DefaultRules()
	if cfg == nil {
		return r
	}
	if cfg.MaxFiles > 0 {
		r.MaxFiles = cfg.MaxFiles
	}
	if cfg.MaxFileSize > 0 {
		r.MaxFileSize = cfg.MaxFileSize
	}
	if len(cfg.AllowedExts) > 0 {
		r.AllowedExts = cfg.AllowedExts
	}
	return r
}

// Check 校验一批上传文件；类型同时按扩展名和嗅探出的内容判断
func (r Rules) Check(files []*multipart.FileHeader) error {
	if r.MaxFiles > 0 && len(files) > r.MaxFiles {
		return fmt.Errorf("%w: at most %d files", ErrTooManyFiles, r.MaxFiles)
	}

	for _, fh := range files {
		if r.MaxFileSize > 0 && fh.Size > r.MaxFileSize {
			return fmt.Errorf("%w: %s exceeds %d MB", ErrFileTooLarge, fh.Filename, r.MaxFileSize>>20)
		}
		if err := r.checkType(fh); err != nil {
			return err
		}
	}
	return nil
}

func (r Rules) checkType(fh *multipart.FileHeader) error {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(fh.Filename)), ".")
	if !r.extAllowed(ext) {
		return fmt.Errorf("%w: %s", ErrFileTypeNotAllowed, fh.Filename)
	}

	src, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open upload %q: %w", fh.Filename, err)
	}
	defer src.Close()

	mime, err := mimetype.DetectReader(src)
	if err != nil {
		return fmt.Errorf("detect content type %q: %w", fh.Filename, err)
	}

	for m := mime; m != nil; m = m.Parent() {
		for _, want := range allowedContent[ext] {
			if m.Is(want) {
				return nil
			}
		}
	}
	return fmt.Errorf("%w: %s content is %s", ErrFileTypeNotAllowed, fh.Filename, mime.String())
}

func (r Rules) extAllowed(ext string) bool {
	if _, known := allowedContent[ext]; !known {
		return false
	}
	for _, e := range r.AllowedExts {
		if strings.EqualFold(strings.TrimPrefix(e, "."), ext) {
			return true
		}
	}
	return false
}
