package httpapi

import (
	"fmt"
	"net/url"
	"strings"
)

func contentDispositionAttachment(filename string) string {
	// RFC 6266 + RFC 5987.
	escaped := strings.ReplaceAll(filename, "\\", "\\\\")
	escaped = strings.ReplaceAll(escaped, "\"", "\\\"")

	return fmt.Sprintf("attachment; filename=\"%s\"; filename*=UTF-8''%s", escaped, pctEncode(filename))
}

func pctEncode(s string) string {
	// QueryEscape writes spaces as '+'; use %20.
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// trimExt drops a trailing .yaml or .yml.
func trimExt(name string) string {
	for _, ext := range []string{".yaml", ".yml"} {
		if strings.HasSuffix(name, ext) {
			return strings.TrimSuffix(name, ext)
		}
	}
	return name
}
