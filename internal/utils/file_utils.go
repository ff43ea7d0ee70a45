package utils

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// DetectMimeType maps a filename extension to a MIME type. Used as a
// fallback when the multipart part carries no Content-Type header.
func DetectMimeType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))

	mimeTypes := map[string]string{
		".pdf":  "application/pdf",
		".txt":  "text/plain",
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
		".png":  "image/png",
		".tif":  "image/tiff",
		".tiff": "image/tiff",
	}

	if mimeType, exists := mimeTypes[ext]; exists {
		return mimeType
	}

	return "application/octet-stream"
}

var (
	invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	controlChars         = regexp.MustCompile(`[\x00-\x1f\x80-\x9f]`)
)

// SanitizeFilename makes a filename safe for use inside a storage key
func SanitizeFilename(filename string) string {
	sanitized := invalidFilenameChars.ReplaceAllString(filename, "_")
	sanitized = controlChars.ReplaceAllString(sanitized, "")
	sanitized = strings.TrimSpace(sanitized)
	sanitized = strings.Trim(sanitized, ".")

	if sanitized == "" {
		sanitized = "unnamed_file"
	}

	ext := filepath.Ext(sanitized)
	nameWithoutExt := strings.TrimSuffix(sanitized, ext)

	const maxNameLength = 100
	if len(nameWithoutExt) > maxNameLength {
		nameWithoutExt = nameWithoutExt[:maxNameLength]
	}

	return nameWithoutExt + ext
}

// FormatFileSize renders a byte count in human-readable form
func FormatFileSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
