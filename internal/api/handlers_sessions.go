package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dgallion1/textanchor/internal/anchor"
	"github.com/dgallion1/textanchor/internal/article"
	"github.com/dgallion1/textanchor/internal/dom"
	"github.com/dgallion1/textanchor/internal/host"
	"github.com/dgallion1/textanchor/internal/position"
	"github.com/dgallion1/textanchor/internal/session"
	"github.com/dgallion1/textanchor/internal/store"
	"github.com/go-chi/chi/v5"
)

// handleCreateSession builds an article from the request and opens a
// session on it. The article is either the raw body (?format=md|html) or a
// multipart "file" field.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	q := r.URL.Query()
	title := q.Get("title")
	articleID := q.Get("article")
	formatName := q.Get("format")

	var src io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
			return
		}
		defer r.MultipartForm.RemoveAll()

		file, header, err := r.FormFile("file")
		if err != nil {
			jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		src = file

		filename := sanitizeFilename(header.Filename)
		if formatName == "" {
			formatName = filepath.Ext(filename)
		}
		if v := r.FormValue("title"); v != "" {
			title = v
		}
		if v := r.FormValue("article"); v != "" {
			articleID = v
		}
	}

	format, err := article.ParseFormat(formatName)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(io.LimitReader(src, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read article", http.StatusBadRequest)
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("article exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}
	if articleID == "" {
		articleID = article.ContentHashHex(data)[:16]
	}

	doc, err := article.Build(bytes.NewReader(data), format, title)
	if err != nil {
		jsonError(w, "failed to build article: "+err.Error(), http.StatusBadRequest)
		return
	}

	h, err := host.New(doc, s.cfg.Layout(), s.cfg.Overlay(), s.store, articleID, s.log)
	if err != nil {
		jsonError(w, "failed to lay out article: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if err := h.Load(r.Context()); err != nil {
		h.Close()
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	sess := s.sessions.Create(h, doc.Title)
	writeJSON(w, http.StatusCreated, sess.Snapshot())
}

// handleRenderSession returns the article HTML with the overlay layers.
func (s *Server) handleRenderSession(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	var buf bytes.Buffer
	if err := sess.Do(func(h *host.Host) error { return h.Render(&buf) }); err != nil {
		jsonError(w, "render failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (s *Server) handleSessionInfo(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.Delete(chi.URLParam(r, "sessionID")) {
		jsonError(w, "session not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// session looks up the {sessionID} URL parameter and writes a 404 when it
// is unknown.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *session.Session {
	sess := s.sessions.Get(chi.URLParam(r, "sessionID"))
	if sess == nil {
		jsonError(w, "session not found", http.StatusNotFound)
	}
	return sess
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// writeError writes err with the status statusFor picks. An empty selection
// is a no-op rather than a failure, so it gets a bare 204.
func writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusNoContent {
		w.WriteHeader(code)
		return
	}
	jsonError(w, err.Error(), code)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, anchor.ErrEmptySelection):
		return http.StatusNoContent
	// An orphaned anchor wraps the token error that orphaned it.
	case errors.Is(err, anchor.ErrOrphanedAnchor):
		return http.StatusUnprocessableEntity
	case errors.Is(err, anchor.ErrInvalidAnchor), errors.Is(err, position.ErrInvalidToken):
		return http.StatusBadRequest
	case errors.Is(err, position.ErrOutOfBounds):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrNotFound), errors.Is(err, dom.ErrNoSuchRoot):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	// Remove any path separators that might have survived.
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
