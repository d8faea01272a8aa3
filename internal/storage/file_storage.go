package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PublicPrefix is the URL prefix stored files are served under.
const PublicPrefix = "/uploads/"

var whitespaceRun = regexp.MustCompile(`\s+`)

// StoredFile describes a file written to storage.
type StoredFile struct {
	Name string
	Path string
	Size int64
}

// FileStorage persists uploaded attachments.
type FileStorage interface {
	Save(originalName string, content io.Reader) (StoredFile, error)
	Delete(name string) error
}

// LocalFileStorage writes files into a single directory on disk.
type LocalFileStorage struct {
	basePath string
	now      func() time.Time
}

// NewLocalFileStorage creates the base directory when missing.
func NewLocalFileStorage(basePath string) (*LocalFileStorage, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalFileStorage{basePath: basePath, now: time.Now}, nil
}

// Dir returns the directory files are written to.
func (s *LocalFileStorage) Dir() string {
	return s.basePath
}

// Save copies content under a generated name and reports the bytes written.
func (s *LocalFileStorage) Save(originalName string, content io.Reader) (StoredFile, error) {
	name := s.generateName(originalName)

	dst, err := os.OpenFile(filepath.Join(s.basePath, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return StoredFile{}, err
	}

	size, copyErr := io.Copy(dst, content)
	closeErr := dst.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(filepath.Join(s.basePath, name))
		return StoredFile{}, err
	}

	return StoredFile{Name: name, Path: PublicPrefix + name, Size: size}, nil
}

// Delete removes a stored file. Missing files are not an error.
func (s *LocalFileStorage) Delete(name string) error {
	err := os.Remove(filepath.Join(s.basePath, filepath.Base(name)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *LocalFileStorage) generateName(originalName string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%d-%s-%s", s.now().UnixMilli(), suffix, SanitizeFilename(originalName))
}

// SanitizeFilename drops any directory part and replaces whitespace runs with underscores.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = whitespaceRun.ReplaceAllString(strings.TrimSpace(name), "_")
	if name == "" || name == "." || name == "/" || name == ".." {
		return "file"
	}
	return name
}
