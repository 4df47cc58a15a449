// Package blob keeps uploaded media on the local filesystem, laid out as
// <root>/<bucket>/<userID>/<file>, and serves it over HTTP.
package blob

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rexlx/mindhaven/internal/apperr"
)

const (
	BucketAvatars  = "avatars"
	BucketMessages = "message_images"

	MaxImageSize = 5 << 20
	MaxVideoSize = 50 << 20
)

var buckets = map[string]bool{BucketAvatars: true, BucketMessages: true}

// ErrTooLarge is returned by Put when the content exceeds the limit.
var ErrTooLarge = errors.New("blob: content too large")

type Store struct {
	root      string
	publicURL string
	now       func() time.Time
}

// NewStore creates the bucket directories under root. publicURL is the server's external base URL.
func NewStore(root, publicURL string) (*Store, error) {
	for b := range buckets {
		if err := os.MkdirAll(filepath.Join(root, b), 0o755); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", b, err)
		}
	}
	return &Store{root: root, publicURL: strings.TrimRight(publicURL, "/"), now: time.Now}, nil
}

// objectPath validates bucket and name and returns the file path on disk.
func (s *Store) objectPath(bucket, name string) (string, error) {
	if !buckets[bucket] {
		return "", apperr.NotFound("Bucket not found")
	}
	clean := path.Clean("/" + name)[1:]
	if clean == "" || clean != name || strings.Contains(name, "\\") {
		return "", apperr.Invalid("Invalid object path")
	}
	return filepath.Join(s.root, bucket, filepath.FromSlash(clean)), nil
}

// Put writes at most maxSize bytes from r to a new object under userID and returns its name.
func (s *Store) Put(bucket, userID, ext string, r io.Reader, maxSize int64) (string, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return "", apperr.Invalid("Invalid user id")
	}
	if _, ok := contentTypes[ext]; !ok {
		return "", apperr.Invalid("Invalid file extension")
	}
	name := fmt.Sprintf("%s/%d-%s.%s", userID, s.now().UnixMilli(), uuid.New().String()[:8], ext)
	dst, err := s.objectPath(bucket, name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	f, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", err
	}
	n, err := io.Copy(f, io.LimitReader(r, maxSize+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > maxSize {
		err = ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(dst)
		return "", err
	}
	return name, nil
}

// Open returns the object for reading.
func (s *Store) Open(bucket, name string) (*os.File, error) {
	p, err := s.objectPath(bucket, name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, apperr.NotFound("Object not found")
	}
	return f, err
}

// Delete removes one object. Missing objects are not an error.
func (s *Store) Delete(bucket, name string) error {
	p, err := s.objectPath(bucket, name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// DeletePrefix removes every object a user owns in bucket.
func (s *Store) DeletePrefix(bucket, userID string) error {
	p, err := s.objectPath(bucket, userID)
	if err != nil {
		return err
	}
	return os.RemoveAll(p)
}

// PublicURL returns the absolute URL the storage route serves name at.
func (s *Store) PublicURL(bucket, name string) string {
	return s.publicURL + "/storage/v1/object/public/" + bucket + "/" + (&url.URL{Path: name}).EscapedPath()
}

// ObjectFromURL reverses PublicURL. It reports false for URLs this store did not produce.
func (s *Store) ObjectFromURL(raw string) (bucket, name string, ok bool) {
	rest, found := strings.CutPrefix(raw, s.publicURL+"/storage/v1/object/public/")
	if !found {
		return "", "", false
	}
	bucket, name, found = strings.Cut(rest, "/")
	if !found || !buckets[bucket] {
		return "", "", false
	}
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	return bucket, name, true
}

// RegisterRoutes serves public objects.
func (s *Store) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /storage/v1/object/public/{bucket}/{path...}", s.serve)
}

func (s *Store) serve(w http.ResponseWriter, r *http.Request) {
	f, err := s.Open(r.PathValue("bucket"), r.PathValue("path"))
	if err != nil {
		status := apperr.CodeOf(err).HTTPStatus()
		http.Error(w, http.StatusText(status), status)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	contentType, ok := contentTypes[strings.TrimPrefix(path.Ext(info.Name()), ".")]
	if !ok {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Security-Policy", "default-src 'none'; sandbox")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
