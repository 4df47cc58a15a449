package blob

import (
	"bytes"
	"net/http"
	"strings"
)

type mediaType struct {
	ext  string
	kind Kind
}

// mediaTypes are the only types accepted for upload, keyed by sniffed content type.
var mediaTypes = map[string]mediaType{
	"image/png":       {"png", KindImage},
	"image/jpeg":      {"jpg", KindImage},
	"image/gif":       {"gif", KindImage},
	"image/webp":      {"webp", KindImage},
	"video/mp4":       {"mp4", KindVideo},
	"video/webm":      {"webm", KindVideo},
	"video/quicktime": {"mov", KindVideo},
}

// contentTypes maps a stored extension back to the type it is served as.
var contentTypes = func() map[string]string {
	m := make(map[string]string, len(mediaTypes))
	for ct, mt := range mediaTypes {
		m[mt.ext] = ct
	}
	return m
}()

// DetectMediaType sniffs the content type of the first bytes of a file.
// QuickTime files, which http.DetectContentType does not know, are recognised by their ftyp brand.
func DetectMediaType(head []byte) string {
	ct, _, _ := strings.Cut(http.DetectContentType(head), ";")
	if ct == "application/octet-stream" && len(head) >= 12 &&
		bytes.Equal(head[4:8], []byte("ftyp")) && bytes.Equal(head[8:12], []byte("qt  ")) {
		return "video/quicktime"
	}
	return ct
}
