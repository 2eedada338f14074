package document

import (
	"fmt"
	"mime"
	"net/url"
	"path"
	"regexp"
	"strings"
)

var imageExtensions = map[string]string{
	"image/png":     "png",
	"image/jpeg":    "jpg",
	"image/jpg":     "jpg",
	"image/gif":     "gif",
	"image/webp":    "webp",
	"image/avif":    "avif",
	"image/svg+xml": "svg",
	"image/bmp":     "bmp",
	"image/tiff":    "tiff",
}

var knownExtensions = map[string]struct{}{
	"png": {}, "jpg": {}, "jpeg": {}, "gif": {}, "webp": {}, "avif": {}, "svg": {}, "bmp": {}, "tiff": {},
}

var (
	blankRuns  = regexp.MustCompile(`\n{3,}`)
	emptyLinks = regexp.MustCompile(`(^|[^!])\[\s*\]\([^)]*\)`)
)

// SlugFromURL returns the last path segment of a document URL, which is the
// document's identity.
func SlugFromURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parse document url: %w", err)
	}
	slug := strings.TrimSpace(path.Base(strings.TrimRight(u.Path, "/")))
	switch slug {
	case "", ".", "..", "/":
		return "", fmt.Errorf("document url %q has no slug", raw)
	}
	return slug, nil
}

// ImageExtension picks a file extension for a fetched image: the response
// Content-Type first, then the URL's own extension, then png.
func ImageExtension(contentType, sourceURL string) string {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		if ext, ok := imageExtensions[strings.ToLower(mediaType)]; ok {
			return ext
		}
	}
	if u, err := url.Parse(sourceURL); err == nil {
		ext := strings.ToLower(strings.TrimPrefix(path.Ext(u.Path), "."))
		if _, ok := knownExtensions[ext]; ok {
			if ext == "jpeg" {
				return "jpg"
			}
			return ext
		}
	}
	return "png"
}

// Tidy drops links left without text (a linked figure whose asset was
// lost), collapses runs of blank lines and ends the document with one
// newline.
func Tidy(markdown string) string {
	markdown = emptyLinks.ReplaceAllString(markdown, "${1}")
	markdown = blankRuns.ReplaceAllString(markdown, "\n\n")
	return strings.TrimSpace(markdown) + "\n"
}
