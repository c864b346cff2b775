package utils

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

var ErrEmptyFilename = errors.New("empty filename")

type IUtils interface {
	NewULIDFromTimestamp(t time.Time) (string, error)
	FileExtension(filename string) string
	HasExtension(filename string, allowed []string) bool
	SaveTempFile(dir string, filename string, src io.Reader) (string, error)
	RemoveFileIfExists(path string) (bool, error)
}

type utils struct{}

func New() IUtils {
	return &utils{}
}

func (u *utils) NewULIDFromTimestamp(t time.Time) (string, error) {
	ms := ulid.Timestamp(t)
	entropy := ulid.Monotonic(rand.Reader, 0)

	id, err := ulid.New(ms, entropy)
	if err != nil {
		return "", err
	}

	return id.String(), nil
}

// FileExtension returns the lower-cased extension of filename including the
// leading dot.
func (u *utils) FileExtension(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

func (u *utils) HasExtension(filename string, allowed []string) bool {
	ext := u.FileExtension(filename)
	if ext == "" {
		return false
	}
	for _, a := range allowed {
		if ext == a {
			return true
		}
	}
	return false
}

// SaveTempFile copies src into dir under a collision-free name derived from
// filename and returns the path written.
func (u *utils) SaveTempFile(dir string, filename string, src io.Reader) (string, error) {
	base := filepath.Base(filename)
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "", ErrEmptyFilename
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}

	id, err := u.NewULIDFromTimestamp(time.Now())
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, fmt.Sprintf("temp_%s_%s", id, base))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close temp file: %w", err)
	}

	return path, nil
}

func (u *utils) RemoveFileIfExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if info.IsDir() {
		return false, fmt.Errorf("%s is a directory", path)
	}
	if err := os.Remove(path); err != nil {
		return false, err
	}
	return true, nil
}

// SortedExtensions returns a stable, comma separated rendering of exts for
// error messages.
func SortedExtensions(exts ...[]string) string {
	var all []string
	for _, group := range exts {
		all = append(all, group...)
	}
	sort.Strings(all)
	return strings.Join(all, ", ")
}
