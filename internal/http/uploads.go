package http

import (
	"fmt"
	"log/slog"
	"mime/multipart"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sujalbistaa/murmur/internal/models"
)

const uploadsURLPrefix = "/uploads/"

var whitespace = regexp.MustCompile(`\s`)

// Uploads stores media files on local disk and hands out their public URLs.
type Uploads struct {
	Dir      string
	MaxBytes int64
	now      func() time.Time
}

func NewUploads(dir string, maxMB int64) (*Uploads, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Uploads{Dir: dir, MaxBytes: maxMB << 20, now: time.Now}, nil
}

// Save writes the uploaded part as "<unix-ms>-<name>" and returns its reference.
func (u *Uploads) Save(c *gin.Context, fh *multipart.FileHeader) (*models.Media, error) {
	if fh.Size > u.MaxBytes {
		return nil, &models.ValidationError{Field: "media", Msg: fmt.Sprintf("media must be at most %d MB", u.MaxBytes>>20)}
	}
	name := fmt.Sprintf("%d-%s", u.now().UnixMilli(), whitespace.ReplaceAllString(filepath.Base(fh.Filename), "_"))
	if err := c.SaveUploadedFile(fh, filepath.Join(u.Dir, name)); err != nil {
		return nil, fmt.Errorf("%w: save upload: %v", models.ErrStorage, err)
	}
	return &models.Media{
		URL:  uploadsURLPrefix + name,
		Kind: models.MediaKindFor(fh.Header.Get("Content-Type")),
	}, nil
}

// Remove deletes a file saved for a post that was never persisted.
func (u *Uploads) Remove(m *models.Media) {
	if m == nil {
		return
	}
	path := filepath.Join(u.Dir, filepath.Base(m.URL))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to remove orphaned upload", "path", path, "error", err)
	}
}
