package upload

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrTooLarge is returned when an upload exceeds the store limit.
var ErrTooLarge = errors.New("upload exceeds size limit")

// Store writes uploads to uniquely named temporary files.
type Store struct {
	dir      string
	maxBytes int64
}

// File is a saved upload. Remove must be called once it is consumed.
type File struct {
	Path string
	Size int64
}

func (f *File) Remove() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove upload %s: %w", f.Path, err)
	}
	return nil
}

// NewStore uses the system temp dir when dir is empty. maxBytes <= 0 means
// no limit.
func NewStore(dir string, maxBytes int64) (*Store, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{dir: dir, maxBytes: maxBytes}, nil
}

// Save copies src into a new file that keeps the extension of filename, so
// decoders that sniff by extension still work.
func (s *Store) Save(src io.Reader, filename string) (*File, error) {
	path := filepath.Join(s.dir, uuid.NewString()+safeExt(filename))
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create upload file: %w", err)
	}

	r := src
	if s.maxBytes > 0 {
		r = io.LimitReader(src, s.maxBytes+1)
	}
	n, err := io.Copy(dst, r)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}

	f := &File{Path: path, Size: n}
	if err == nil && s.maxBytes > 0 && n > s.maxBytes {
		err = ErrTooLarge
	}
	if err != nil {
		f.Remove()
		return nil, fmt.Errorf("save upload: %w", err)
	}
	return f, nil
}

func safeExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if len(ext) < 2 || len(ext) > 8 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
