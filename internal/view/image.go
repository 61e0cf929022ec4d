package view

import "strings"

const uploadsPrefix = "/uploads/"

// ImageURL resolves a product image path against the backend. Absolute
// http(s) URLs are returned unchanged; anything else is served from the
// backend's uploads directory.
func ImageURL(backendURL, image string) string {
	if image == "" {
		return ""
	}
	if strings.HasPrefix(image, "http://") || strings.HasPrefix(image, "https://") {
		return image
	}
	path := image
	if i := strings.LastIndex(path, uploadsPrefix); i >= 0 {
		path = path[i+len(uploadsPrefix):]
	} else {
		path = strings.TrimLeft(path, "/")
	}
	return strings.TrimRight(backendURL, "/") + uploadsPrefix + path
}
