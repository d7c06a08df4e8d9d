package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/dgallion1/textanchor/internal/anchor"
	"github.com/dgallion1/textanchor/internal/host"
	"github.com/dgallion1/textanchor/internal/position"
	"github.com/dgallion1/textanchor/internal/segment"
	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListAnnotations(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	var entries []host.Entry
	sess.Do(func(h *host.Host) error {
		entries = h.Annotations()
		return nil
	})
	writeJSON(w, http.StatusOK, map[string]any{"annotations": entries})
}

type createAnnotationRequest struct {
	Anchor  json.RawMessage `json:"anchor"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// handleCreateAnnotation stores a tag for a persisted-form anchor.
func (s *Server) handleCreateAnnotation(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	var req createAnnotationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	a, err := anchor.Parse(req.Anchor)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var entry host.Entry
	err = sess.Do(func(h *host.Host) error {
		var err error
		entry, err = h.Annotate(r.Context(), a, req.Payload)
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleDeleteAnnotation(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	annID := chi.URLParam(r, "annID")
	err := sess.Do(func(h *host.Host) error { return h.Remove(r.Context(), annID) })
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type layoutRequest struct {
	Sentence int     `json:"sentence"`
	Width    float64 `json:"width"`
}

// handleLayout changes a sentence's container width and refreshes its
// overlays. Groups that fail to refresh are reported but do not fail the
// request.
func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	var req layoutRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Width <= 0 {
		jsonError(w, "width must be positive", http.StatusBadRequest)
		return
	}

	var (
		refreshErr error
		entries    []host.Entry
	)
	err := sess.Do(func(h *host.Host) error {
		if _, err := h.Document().Root(req.Sentence); err != nil {
			return err
		}
		refreshErr = h.SetWidth(req.Sentence, req.Width)
		entries = h.Annotations()
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	resp := map[string]any{"annotations": entries}
	if refreshErr != nil {
		resp["refresh_error"] = refreshErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSegments computes segments for an arbitrary token range.
func (s *Server) handleSegments(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	q := r.URL.Query()
	sentence, err := strconv.Atoi(q.Get("sentence"))
	if err != nil {
		jsonError(w, "sentence must be an integer", http.StatusBadRequest)
		return
	}
	start, end := position.Token(q.Get("start")), position.Token(q.Get("end"))

	var res segment.Result
	err = sess.Do(func(h *host.Host) error {
		var err error
		res, err = h.Segments(sentence, start, end)
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if res.Segments == nil {
		res.Segments = []segment.Segment{}
	}
	writeJSON(w, http.StatusOK, res)
}
