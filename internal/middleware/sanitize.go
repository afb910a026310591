package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/AnshRaj112/usedgoods-backend/internal/httpx"
	"github.com/AnshRaj112/usedgoods-backend/pkg/utils"
)

// Sanitize HTML-escapes every query parameter and every top-level string
// value of a JSON object body before handlers see them. Keys that carry a
// password are left alone so the stored hash matches what the user typed.
// Bodies that are not a JSON object pass through for the decoder to reject.
func Sanitize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RawQuery != "" {
			q := r.URL.Query()
			for key, values := range q {
				for i, v := range values {
					values[i] = utils.EscapeHTML(v)
				}
				q[key] = values
			}
			r.URL.RawQuery = q.Encode()
		}

		if r.Body != nil && r.Body != http.NoBody && isJSONBody(r.Header.Get("Content-Type")) {
			raw, err := io.ReadAll(r.Body)
			r.Body.Close()
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					httpx.Error(w, r, http.StatusRequestEntityTooLarge, "request body too large")
					return
				}
				httpx.Error(w, r, http.StatusBadRequest, "could not read request body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(sanitizeJSON(raw)))
			r.ContentLength = -1
		}
		next.ServeHTTP(w, r)
	})
}

func sanitizeJSON(raw []byte) []byte {
	var body map[string]json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil || body == nil {
		return raw
	}
	changed := false
	for key, value := range body {
		if isSecretKey(key) {
			continue
		}
		var s string
		if json.Unmarshal(value, &s) != nil {
			continue
		}
		escaped := utils.EscapeHTML(s)
		if escaped == s {
			continue
		}
		encoded, err := json.Marshal(escaped)
		if err != nil {
			continue
		}
		body[key] = encoded
		changed = true
	}
	if !changed {
		return raw
	}
	out, err := json.Marshal(body)
	if err != nil {
		return raw
	}
	return out
}

func isSecretKey(key string) bool {
	return strings.Contains(strings.ToLower(key), "password")
}

// isJSONBody treats a missing Content-Type as JSON since the handlers decode
// it that way.
func isJSONBody(contentType string) bool {
	if contentType == "" {
		return true
	}
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && (mt == "application/json" || strings.HasSuffix(mt, "+json"))
}
