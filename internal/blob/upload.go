package blob

import (
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/rexlx/mindhaven/internal/apperr"
)

// Kind classifies an uploaded file.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// Upload is a stored multipart file.
type Upload struct {
	Name string
	URL  string
	Kind Kind
}

// Limits maps each accepted kind to its maximum size.
type Limits map[Kind]int64

var (
	AvatarLimits  = Limits{KindImage: MaxImageSize}
	MessageLimits = Limits{KindImage: MaxImageSize, KindVideo: MaxVideoSize}
)

func kindOf(contentType string) Kind {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return KindImage
	case strings.HasPrefix(contentType, "video/"):
		return KindVideo
	}
	return ""
}

// SaveForm stores the file in form field "file" of r for userID.
func (s *Store) SaveForm(r *http.Request, bucket, userID string, limits Limits) (*Upload, error) {
	var max int64
	for _, n := range limits {
		if n > max {
			max = n
		}
	}
	if err := r.ParseMultipartForm(max + 1<<20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperr.Invalid("File too large")
		}
		return nil, apperr.Invalid("Expected a multipart upload with a file field")
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, apperr.Invalid("Expected a multipart upload with a file field")
	}
	defer file.Close()
	return s.save(file, header, bucket, userID, limits)
}

func (s *Store) save(file multipart.File, header *multipart.FileHeader, bucket, userID string, limits Limits) (*Upload, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, apperr.Internal("Failed to read upload", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, apperr.Internal("Failed to read upload", err)
	}

	// The stored type comes from the bytes. A declared type may only narrow it.
	mt, ok := mediaTypes[DetectMediaType(head[:n])]
	if !ok {
		return nil, apperr.Invalid("Unsupported file type")
	}
	declared, _, _ := mime.ParseMediaType(header.Header.Get("Content-Type"))
	if declared != "" && declared != "application/octet-stream" && kindOf(declared) != mt.kind {
		return nil, apperr.Invalid("Unsupported file type")
	}
	limit, ok := limits[mt.kind]
	if !ok {
		return nil, apperr.Invalid("Unsupported file type")
	}
	if header.Size > limit {
		return nil, apperr.Invalid(tooLargeMessage(mt.kind))
	}

	name, err := s.Put(bucket, userID, mt.ext, file, limit)
	if errors.Is(err, ErrTooLarge) {
		return nil, apperr.Invalid(tooLargeMessage(mt.kind))
	}
	if err != nil {
		return nil, apperr.Internal("Failed to upload file", err)
	}
	return &Upload{Name: name, URL: s.PublicURL(bucket, name), Kind: mt.kind}, nil
}

func tooLargeMessage(kind Kind) string {
	if kind == KindVideo {
		return "Video must be under 50MB"
	}
	return "Image must be under 5MB"
}
