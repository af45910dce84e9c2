// Package media stores downloaded message attachments on disk and
// resolves them for the HTTP read path.
package media

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/chatwire/wabridge/internal/model"
)

// mimeExt maps the attachment MIME types the client commonly emits to
// file extensions. Unknown types fall back to the subtype, then "bin".
var mimeExt = map[string]string{
	"image/jpeg":             "jpg",
	"image/png":              "png",
	"image/webp":             "webp",
	"image/gif":              "gif",
	"video/mp4":              "mp4",
	"audio/ogg; codecs=opus": "ogg",
	"audio/ogg":              "ogg",
	"audio/mpeg":             "mp3",
	"audio/mp4":              "m4a",
	"application/pdf":        "pdf",
}

// ExtFromMIME returns the file extension for a MIME type.
func ExtFromMIME(mime string) string {
	if ext, ok := mimeExt[mime]; ok {
		return ext
	}
	if i := strings.Index(mime, "/"); i >= 0 && i+1 < len(mime) {
		sub := mime[i+1:]
		if j := strings.Index(sub, ";"); j >= 0 {
			sub = sub[:j]
		}
		if sub != "" {
			return sub
		}
	}
	return "bin"
}

// Store writes attachments under a single directory, one file per
// message id, named <id>.<ext>.
type Store struct {
	dir string
}

// NewStore creates the media directory if needed.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("media dir is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create media dir")
	}
	return &Store{dir: dir}, nil
}

// Dir returns the storage directory, for static file serving.
func (s *Store) Dir() string { return s.dir }

// Save writes data for message id and returns its storage-relative URL
// descriptor.
func (s *Store) Save(id, mime string, data []byte) (*model.Media, error) {
	name := fmt.Sprintf("%s.%s", id, ExtFromMIME(mime))
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return nil, errors.Wrap(err, "write media file")
	}
	return &model.Media{
		URL:      "/media/" + name,
		Mimetype: mime,
		Size:     int64(len(data)),
	}, nil
}

// FindByID resolves the stored file for a message id without knowing its
// extension. Returns model.ErrNotFound when no file matches.
func (s *Store) FindByID(id string) (path string, mime string, err error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return "", "", err
	}
	prefix := id + "."
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		ext := strings.TrimPrefix(e.Name(), prefix)
		return filepath.Join(s.dir, e.Name()), mimeFromExt(ext), nil
	}
	return "", "", model.ErrNotFound
}

func mimeFromExt(ext string) string {
	for mime, e := range mimeExt {
		if e == ext && !strings.Contains(mime, ";") {
			return mime
		}
	}
	return "application/octet-stream"
}
