package inference

import (
	"net/http"
	"strings"
)

// MIMEJPEG is the interchange format cameras produce by default.
const MIMEJPEG = "image/jpeg"

// DetectImageMIME sniffs the MIME type of an image payload.
// Non-image payloads fall back to image/jpeg, matching what the
// camera sources produce.
func DetectImageMIME(data []byte) string {
	mime := http.DetectContentType(data)
	if strings.HasPrefix(mime, "image/") {
		return mime
	}
	return MIMEJPEG
}
