package tokens

import (
	"net/http"
	"strings"
)

// BearerFromRequest extracts the bearer token from the Authorization
// header.
func BearerFromRequest(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
