// Package blob stores message attachments and hands out public URLs.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/matheus3301/friendzone/internal/metrics"
)

var ErrInvalidName = errors.New("invalid blob name")

// Store is the attachment store a message channel uploads to.
type Store interface {
	Upload(ctx context.Context, name string, r io.Reader) error
	URL(ctx context.Context, name string) (string, error)
}

// ObjectName is where an attachment for chatID is stored. The random
// component keeps two uploads of the same file name apart.
func ObjectName(chatID, fileName string) string {
	base := filepath.Base(fileName)
	if base == "." || base == ".." || base == string(filepath.Separator) {
		base = "file"
	}
	return chatID + "/" + uuid.NewString() + "-" + base
}

// FileStore keeps blobs as files under a directory and serves them over
// HTTP from baseURL.
type FileStore struct {
	dir     string
	baseURL string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates the directory if needed.
func NewFileStore(dir, baseURL string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &FileStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// resolve maps a blob name to a file path inside dir.
func (s *FileStore) resolve(name string) (string, error) {
	clean := path.Clean("/" + name)
	if name == "" || clean == "/" || clean != "/"+name {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(s.dir, filepath.FromSlash(clean[1:])), nil
}

// Upload writes r to name atomically. A partially written upload never
// becomes visible.
func (s *FileStore) Upload(ctx context.Context, name string, r io.Reader) error {
	dst, err := s.resolve(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0700); err != nil {
		return fmt.Errorf("create blob dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp blob: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	n, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: r})
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("write blob %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("publish blob %s: %w", name, err)
	}
	metrics.BlobUploadBytes.Add(float64(n))
	return nil
}

// URL returns the public URL of an uploaded blob.
func (s *FileStore) URL(_ context.Context, name string) (string, error) {
	dst, err := s.resolve(name)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(dst); err != nil {
		return "", fmt.Errorf("blob %s: %w", name, err)
	}
	segs := strings.Split(name, "/")
	for i, seg := range segs {
		segs[i] = url.PathEscape(seg)
	}
	return s.baseURL + "/" + strings.Join(segs, "/"), nil
}

// Handler serves blobs by name. Mount it under the path of baseURL.
func (s *FileStore) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/*", func(w http.ResponseWriter, req *http.Request) {
		p, err := s.resolve(chi.URLParam(req, "*"))
		if err != nil {
			http.NotFound(w, req)
			return
		}
		info, err := os.Stat(p)
		if err != nil || info.IsDir() {
			http.NotFound(w, req)
			return
		}
		http.ServeFile(w, req, p)
	})
	return r
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
