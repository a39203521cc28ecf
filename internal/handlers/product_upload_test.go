package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func multipartContext(t *testing.T, build func(w *multipart.Writer)) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	build(writer)
	_ = writer.Close()

	req := httptest.NewRequest("PUT", "/admin/api/products/1", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = req
	return c
}

func TestParseProductForm_PicksLastIsActiveValue(t *testing.T) {
	c := multipartContext(t, func(w *multipart.Writer) {
		_ = w.WriteField("isActive", "false")
		_ = w.WriteField("isActive", "on")
		_ = w.WriteField("price", "99")
		_ = w.WriteField("oldPrice", "")
	})

	parsed, err := parseProductForm(c, NewUploadStorage(t.TempDir()))
	if err != nil {
		t.Fatalf("parseProductForm returned error: %v", err)
	}
	if parsed.IsActive == nil || !*parsed.IsActive {
		t.Fatalf("expected isActive=true, got %+v", parsed)
	}
	if parsed.Price == nil || *parsed.Price != 99 {
		t.Fatalf("expected price=99, got %+v", parsed)
	}
	if !parsed.ClearOldPrice {
		t.Fatal("expected empty oldPrice to clear it")
	}
	if parsed.Name != nil {
		t.Fatal("name was not sent and should stay nil")
	}
}

func TestParseProductForm_SavesImage(t *testing.T) {
	root := t.TempDir()
	c := multipartContext(t, func(w *multipart.Writer) {
		part, _ := w.CreateFormFile("image", "photo.png")
		_, _ = part.Write([]byte("png-bytes"))
	})

	parsed, err := parseProductForm(c, NewUploadStorage(root))
	if err != nil {
		t.Fatalf("parseProductForm returned error: %v", err)
	}
	if parsed.ImageURL == nil || !strings.HasPrefix(*parsed.ImageURL, "uploads/products/") {
		t.Fatalf("expected stored image path, got %+v", parsed.ImageURL)
	}
	if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(*parsed.ImageURL))); err != nil {
		t.Fatalf("expected image on disk: %v", err)
	}
}

func TestParseProductForm_RejectsUnsupportedImage(t *testing.T) {
	c := multipartContext(t, func(w *multipart.Writer) {
		part, _ := w.CreateFormFile("image", "script.sh")
		_, _ = part.Write([]byte("#!/bin/sh"))
	})

	if _, err := parseProductForm(c, NewUploadStorage(t.TempDir())); err == nil {
		t.Fatal("expected unsupported image type error")
	}
}

func TestUploadStorageDeleteRefusesOutsidePaths(t *testing.T) {
	storage := NewUploadStorage(t.TempDir())
	if err := storage.Delete("../etc/passwd"); err == nil {
		t.Fatal("expected refusal for non-upload path")
	}
	if err := storage.Delete("uploads/products/missing.png"); err != nil {
		t.Fatalf("missing upload should be ignored, got %v", err)
	}
}
