package document

import (
	"path/filepath"
	"runtime"
	"strings"

	"go.lsp.dev/uri"
)

// ID identifies a document by its normalized absolute path.
// Two URIs naming the same file compare equal even when they differ in
// percent-encoding, separator style or (on case-insensitive platforms) case.
type ID string

// NewID derives the document identifier from a document URI.
func NewID(docURI uri.URI) ID {
	s := string(docURI)
	if !strings.HasPrefix(s, uri.FileScheme+"://") {
		// untitled:, inmemory: and friends have no path to normalize.
		return ID(s)
	}
	path, ok := filename(docURI)
	if !ok {
		return ID(s)
	}
	return ID(normalizePath(path, runtime.GOOS))
}

// IDFromPath derives the identifier for a file system path.
func IDFromPath(path string) ID {
	return ID(normalizePath(path, runtime.GOOS))
}

// filename decodes a file URI. uri.URI.Filename panics on malformed input.
func filename(u uri.URI) (path string, ok bool) {
	defer func() {
		if recover() != nil {
			path, ok = "", false
		}
	}()
	return u.Filename(), true
}

func normalizePath(path, goos string) string {
	// UNC paths arrive with either separator.
	p := strings.ReplaceAll(path, `\`, "/")
	unc := strings.HasPrefix(p, "//")

	p = filepath.ToSlash(filepath.Clean(filepath.FromSlash(p)))
	if unc && !strings.HasPrefix(p, "//") {
		p = "/" + p
	}

	if caseInsensitive(goos) {
		p = strings.ToLower(p)
	}
	return p
}

func caseInsensitive(goos string) bool {
	return goos == "windows" || goos == "darwin"
}
