package contenttype

import (
	"path/filepath"
	"strings"
)

const (
	// DefaultEncoding is appended as a charset to text-like content types.
	DefaultEncoding = "utf-8"

	// NoEncoding disables the charset suffix entirely.
	NoEncoding = "none"

	fallbackType = "application/octet-stream"

	// apple-app-site-association is served without an extension but must
	// carry a JSON content type for universal links to work.
	siteAssociationMarker = "apple-app-site-association"
)

type entry struct {
	mime     string
	textLike bool
}

var byExtension = map[string]entry{
	".txt":    {"text/plain", true},
	".htm":    {"text/html", true},
	".html":   {"text/html", true},
	".xhtml":  {"application/xhtml+xml", true},
	".css":    {"text/css", true},
	".js":     {"text/javascript", true},
	".mjs":    {"text/javascript", true},
	".svg":    {"image/svg+xml", true},
	".json":   {"application/json", true},
	".jsonld": {"application/ld+json", true},
	".xml":    {"application/xml", true},

	".png":   {"image/png", false},
	".jpg":   {"image/jpeg", false},
	".jpeg":  {"image/jpeg", false},
	".gif":   {"image/gif", false},
	".webp":  {"image/webp", false},
	".avif":  {"image/avif", false},
	".ico":   {"image/vnd.microsoft.icon", false},
	".woff":  {"font/woff", false},
	".woff2": {"font/woff2", false},
	".ttf":   {"font/ttf", false},
	".otf":   {"font/otf", false},
	".eot":   {"application/vnd.ms-fontobject", false},
	".pdf":   {"application/pdf", false},
	".zip":   {"application/zip", false},
	".wasm":  {"application/wasm", false},
}

// Resolve maps a relative path to its MIME type and whether the content
// is text-like. Unknown extensions fall back to application/octet-stream.
// Resolution never fails.
func Resolve(relPath string) (mime string, textLike bool) {
	ext := filepath.Ext(relPath)
	if strings.HasSuffix(relPath, siteAssociationMarker) {
		ext = ".json"
	}
	if e, ok := byExtension[strings.ToLower(ext)]; ok {
		return e.mime, e.textLike
	}
	return fallbackType, false
}

// ContentType resolves a path and assembles the Content-Type header value.
// Text-like types get a ";charset=<encoding>" suffix unless encoding is
// NoEncoding. An empty encoding means DefaultEncoding.
func ContentType(relPath string, encoding string) string {
	mime, textLike := Resolve(relPath)
	return withCharset(mime, textLike, encoding)
}

func withCharset(mime string, textLike bool, encoding string) string {
	if !textLike || encoding == NoEncoding {
		return mime
	}
	if encoding == "" {
		encoding = DefaultEncoding
	}
	return mime + ";charset=" + encoding
}
