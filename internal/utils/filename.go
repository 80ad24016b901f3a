package utils

import (
	"net/url"
	"path"
)

// FilenameFromURL returns the last path element of rawURL, or fallback
// when the URL has no usable name (bare host, trailing slash, parse
// failure).
func FilenameFromURL(rawURL, fallback string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fallback
	}
	name := path.Base(parsed.Path)
	if name == "" || name == "." || name == "/" {
		return fallback
	}
	return name
}
