package constants

import (
	"mime"
	"path/filepath"
	"sort"
	"strings"
)

// extKinds maps a normalized extension (no dot, lowercase) to its document kind.
var extKinds = map[string]DocumentKind{
	"txt":  KindText,
	"md":   KindText,
	"csv":  KindTabular,
	"xls":  KindTabular,
	"xlsx": KindTabular,
	"docx": KindDocx,
	"doc":  KindDoc,
	"pdf":  KindPDF,
	"ppt":  KindSlideDeck,
	"pptx": KindSlideDeck,
	"odp":  KindSlideDeck,
	"jpg":  KindImage,
	"jpeg": KindImage,
	"png":  KindImage,
	"bmp":  KindImage,
	"gif":  KindImage,
}

// mediaKinds is only consulted when the filename carries no extension.
var mediaKinds = map[string]DocumentKind{
	"text/plain":                    KindText,
	"text/markdown":                 KindText,
	"text/csv":                      KindTabular,
	"application/pdf":               KindPDF,
	"application/msword":            KindDoc,
	"application/vnd.ms-excel":      KindTabular,
	"application/vnd.ms-powerpoint": KindSlideDeck,

	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   KindDocx,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         KindTabular,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": KindSlideDeck,
	"application/vnd.oasis.opendocument.presentation":                           KindSlideDeck,
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// KindForExt returns the kind registered for ext, or KindUnknown.
func KindForExt(ext string) DocumentKind {
	if k, ok := extKinds[NormalizeExt(ext)]; ok {
		return k
	}
	return KindUnknown
}

// Classify maps an original filename (and optionally its declared media type)
// to a DocumentKind. It never fails: unrecognized inputs are KindUnknown, which
// the extractor registry routes to the text strategy.
func Classify(filename, mimeType string) DocumentKind {
	ext := NormalizeExt(filepath.Ext(filename))
	if ext != "" {
		return KindForExt(ext)
	}
	if mimeType == "" {
		return KindUnknown
	}
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(mimeType))
	}
	if k, ok := mediaKinds[mt]; ok {
		return k
	}
	if strings.HasPrefix(mt, "image/") {
		return KindImage
	}
	return KindUnknown
}

// SupportedExtensions lists every extension with a dedicated strategy, sorted.
func SupportedExtensions() []string {
	out := make([]string, 0, len(extKinds))
	for ext := range extKinds {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// IsSupportedExt reports whether ext has a dedicated strategy.
func IsSupportedExt(ext string) bool {
	_, ok := extKinds[NormalizeExt(ext)]
	return ok
}
