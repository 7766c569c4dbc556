package media

import (
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

// OutputTimestampLayout is the timestamp embedded in download names (yyyyMMddHHmm)
const OutputTimestampLayout = "200601021504"

const maxStemRunes = 100

// SplitFileName returns the sanitized stem and the extension of an uploaded file name.
// Client-supplied directories are discarded.
func SplitFileName(name string) (stem, ext string) {
	// Browsers on Windows may send full paths
	name = strings.ReplaceAll(name, `\`, "/")
	base := filepath.Base(name)
	if base == "." || base == "/" {
		base = ""
	}

	ext = filepath.Ext(base)
	if !isSafeExtension(ext) {
		ext = ""
	}
	stem = sanitizeStem(strings.TrimSuffix(base, filepath.Ext(base)))
	if stem == "" {
		stem = "media"
	}
	return stem, ext
}

// OutputFileName returns the human-readable download name <stem>_<yyyyMMddHHmm><ext>
func OutputFileName(originalName string, at time.Time) string {
	stem, ext := SplitFileName(originalName)
	return stem + "_" + at.Format(OutputTimestampLayout) + ext
}

func sanitizeStem(stem string) string {
	var b strings.Builder
	n := 0
	for _, r := range stem {
		if n >= maxStemRunes {
			break
		}
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_', r == '.', r == ' ':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
		n++
	}
	return strings.Trim(b.String(), " .")
}

func isSafeExtension(ext string) bool {
	if len(ext) < 2 || len(ext) > 10 {
		return false
	}
	for _, r := range ext[1:] {
		if !(r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))) {
			return false
		}
	}
	return true
}
