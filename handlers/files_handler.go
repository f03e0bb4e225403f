package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/gespadel/gespadel/storage"
	"github.com/go-chi/chi/v5"
)

// MemoryFilesHandler serves objects kept by the in-memory uploader under
// GET /files/*.
func MemoryFilesHandler(u *storage.MemoryUploader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
		body, contentType, ok := u.Object(key)
		if !ok {
			errorResponse(w, r, http.StatusNotFound, "", "the requested resource could not be found")
			return
		}
		w.Header().Set("Content-Type", contentType)
		if _, err := io.Copy(w, body); err != nil {
			serverErrorResponse(w, r, err)
		}
	}
}
