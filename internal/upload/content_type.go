package upload

import (
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

const octetStream = "application/octet-stream"

// extensionTypes covers the asset extensions the platform's MIME table does
// not reliably know.
var extensionTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".m4a":  "audio/m4a",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".ico":  "image/x-icon",
	".cur":  "image/x-icon",
	".svg":  "image/svg+xml",
}

// DetectContentTypeFromExtension returns the MIME type for filename's
// extension, or application/octet-stream.
func DetectContentTypeFromExtension(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return octetStream
	}
	if ct, ok := extensionTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return octetStream
}

// DetectContentType prefers the declared type, then the extension, then the
// first 512 bytes of data.
func DetectContentType(declared, filename string, data []byte) string {
	if ct := strings.TrimSpace(declared); ct != "" && ct != octetStream {
		return ct
	}
	if ct := DetectContentTypeFromExtension(filename); ct != octetStream {
		return ct
	}
	return http.DetectContentType(data)
}
