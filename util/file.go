package util

import (
	"net/http"
	"strings"
)

// DetectImageType sniffs the content type from the first bytes of data,
// falling back to the declared type when sniffing yields nothing useful.
func DetectImageType(data []byte, declared string) string {
	sniffed := http.DetectContentType(data)
	if sniffed == "application/octet-stream" && declared != "" {
		return declared
	}
	return sniffed
}

// IsImage reports whether data looks like image bytes.
func IsImage(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	return strings.HasPrefix(http.DetectContentType(data), "image/")
}
