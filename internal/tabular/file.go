package tabular

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var ErrUploadTooLarge = errors.New("upload exceeds size limit")

var _ Source = (*FileSource)(nil)

// FileSource reads CSV rows from a file and deletes the file on Release.
type FileSource struct {
	path     string
	once     sync.Once
	released error
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (f *FileSource) Name() string { return filepath.Base(f.path) }

func (f *FileSource) Path() string { return f.path }

func (f *FileSource) Open(_ context.Context) (Rows, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name(), err)
	}
	return NewCSVRows(file), nil
}

// Release removes the file. Later calls return the first call's result.
func (f *FileSource) Release(ctx context.Context) error {
	f.once.Do(func() {
		if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			f.released = fmt.Errorf("remove %s: %w", f.Name(), err)
			return
		}
		slog.InfoContext(ctx, "Import source released", "file", f.Name())
	})
	return f.released
}

// UploadStore keeps uploaded import files in a directory until they are released.
type UploadStore struct {
	dir      string
	maxBytes int64
}

func NewUploadStore(dir string, maxBytes int64) (*UploadStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &UploadStore{dir: dir, maxBytes: maxBytes}, nil
}

// MaxBytes is the per-file limit; zero or less means unlimited.
func (u *UploadStore) MaxBytes() int64 { return u.maxBytes }

// Save copies r into a uniquely named file. The original name only
// contributes its base name, so it cannot escape the upload directory.
func (u *UploadStore) Save(originalName string, r io.Reader) (*FileSource, error) {
	name := uniquePrefix() + "-" + sanitizeName(originalName)
	path := filepath.Join(u.dir, name)

	out, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create upload file: %w", err)
	}

	src := r
	if u.maxBytes > 0 {
		src = io.LimitReader(r, u.maxBytes+1)
	}
	n, err := io.Copy(out, src)
	closeErr := out.Close()
	if err == nil && u.maxBytes > 0 && n > u.maxBytes {
		err = ErrUploadTooLarge
	}
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		if errors.Is(err, ErrUploadTooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("write upload file: %w", err)
	}

	return NewFileSource(path), nil
}

func sanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	if name == "" || name == "." || name == "_" {
		return "import.csv"
	}
	return name
}

func uniquePrefix() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
