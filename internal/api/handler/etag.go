package handler

import (
	"net/http"
	"strconv"
	"strings"
)

// setETag sets the ETag header for a resource version.
func setETag(w http.ResponseWriter, version string) {
	w.Header().Set("ETag", strconv.Quote(version))
}

// ifMatchVersion returns the version named by the If-Match header, or ""
// when the header is absent or "*". Weak validators are not accepted.
func ifMatchVersion(r *http.Request) string {
	ifMatch := strings.TrimSpace(r.Header.Get("If-Match"))
	if ifMatch == "" || ifMatch == "*" {
		return ""
	}
	if unquoted, err := strconv.Unquote(ifMatch); err == nil {
		return unquoted
	}
	return ifMatch
}
