package handlers

import (
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const maxImageSize = 5 << 20

var allowedImageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".webp": {},
}

// UploadStorage keeps product images under <root>/uploads/products. Stored
// paths are relative to root so they can be served under /public.
type UploadStorage struct {
	root string
}

func NewUploadStorage(root string) *UploadStorage {
	return &UploadStorage{root: filepath.Clean(root)}
}

func (s *UploadStorage) SaveImage(file *multipart.FileHeader) (string, error) {
	extension := strings.ToLower(filepath.Ext(file.Filename))
	if extension == "" {
		return "", fmt.Errorf("image file extension is required")
	}
	if _, ok := allowedImageExtensions[extension]; !ok {
		return "", fmt.Errorf("unsupported image type: %s", extension)
	}
	if file.Size > maxImageSize {
		return "", fmt.Errorf("image file too large (max 5MB)")
	}

	filename := uuid.NewString() + extension
	dir := filepath.Join(s.root, "uploads", "products")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("[UPLOAD] failed to create directory %s: %v", dir, err)
		return "", err
	}

	fullPath := filepath.Join(dir, filename)
	out, err := os.Create(fullPath)
	if err != nil {
		log.Printf("[UPLOAD] failed to create file %s: %v", fullPath, err)
		return "", err
	}
	defer out.Close()

	in, err := file.Open()
	if err != nil {
		return "", err
	}
	defer in.Close()

	if _, err := io.Copy(out, in); err != nil {
		log.Printf("[UPLOAD] failed to save file %s: %v", fullPath, err)
		return "", err
	}

	return path.Join("uploads", "products", filename), nil
}

// Delete removes a previously stored upload. Paths outside uploads/ are refused.
func (s *UploadStorage) Delete(relPath string) error {
	trimmed := strings.TrimSpace(relPath)
	if trimmed == "" {
		return nil
	}

	cleanRel := path.Clean("/" + strings.TrimPrefix(trimmed, "/"))
	cleanRel = strings.TrimPrefix(cleanRel, "/")
	if !strings.HasPrefix(cleanRel, "uploads/") {
		return fmt.Errorf("refusing to delete non-upload path: %s", relPath)
	}

	target := filepath.Clean(filepath.Join(s.root, filepath.FromSlash(cleanRel)))
	if !strings.HasPrefix(target, s.root+string(os.PathSeparator)) {
		return fmt.Errorf("refusing to delete path outside public root: %s", relPath)
	}

	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
