package storage

import (
	"bytes"
	"mime/multipart"
	"testing"
)

var (
	pdfContent = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n%%EOF\n")
	pngContent = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
)

type upload struct {
	name    string
	content []byte
}

// buildFileHeaders 通过真实的 multipart 编解码构造 FileHeader
func buildFileHeaders(t *testing.T, files ...upload) []*multipart.FileHeader {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := w.CreateFormFile("files", f.name)
		if err != nil {
			t.Fatalf("创建表单文件失败: %v", err)
		}
		part.Write(f.content)
	}
	w.Close()

	form, err := multipart.NewReader(&body, w.Boundary()).ReadForm(32 << 20)
	if err != nil {
		t.Fatalf("解析表单失败: %v", err)
	}
	t.Cleanup(func() { form.RemoveAll() })
	return form.File["files"]
}
