package media

import (
	"path/filepath"
	"strings"
)

// IsAllowed reports whether an upload is in the allow-list.
//
// An entry matches when the declared content type equals it, or when the file
// extension equals the entry's suffix: the part after '/' for MIME entries
// ("video/mp4" -> "mp4") or the entry itself for extension entries (".mp4").
// Browsers often send a generic or empty content type, so both are checked.
func IsAllowed(declaredContentType, fileName string, allowedTypes []string) bool {
	contentType := strings.TrimSpace(declaredContentType)
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))

	for _, allowed := range allowedTypes {
		allowed = strings.TrimSpace(allowed)
		if allowed == "" {
			continue
		}
		if contentType != "" && strings.EqualFold(contentType, allowed) {
			return true
		}
		if ext != "" && ext == allowedSuffix(allowed) {
			return true
		}
	}
	return false
}

// IsWithinSizeLimit reports whether sizeBytes does not exceed maxBytes
func IsWithinSizeLimit(sizeBytes, maxBytes int64) bool {
	return sizeBytes <= maxBytes
}

func allowedSuffix(allowed string) string {
	if i := strings.LastIndex(allowed, "/"); i >= 0 {
		allowed = allowed[i+1:]
	}
	return strings.ToLower(strings.TrimPrefix(allowed, "."))
}

// contentTypes maps output extensions to the Content-Type served for downloads
var contentTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".mp4":  "video/mp4",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".ogg":  "audio/ogg",
}

// ContentTypeFor returns the download content type for a file name
func ContentTypeFor(fileName string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(fileName))]; ok {
		return ct
	}
	return "application/octet-stream"
}
