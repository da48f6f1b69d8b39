package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/parcelstack-labs/parcelboard/internal/layout"
)

func (s *Server) handleListLayouts(w http.ResponseWriter, r *http.Request) {
	layouts, err := s.store.ListLayouts(ownerID(r.Context()))
	if err != nil {
		respondError(w, err)
		return
	}
	if layouts == nil {
		layouts = []*layout.Layout{}
	}
	respondJSON(w, http.StatusOK, layouts)
}

func (s *Server) handleCreateLayout(w http.ResponseWriter, r *http.Request) {
	var l layout.Layout
	if err := decodeJSON(r, &l); err != nil {
		respondError(w, fmt.Errorf("invalid layout body: %w", err))
		return
	}
	l.ID = "" // Creation always mints a fresh id.

	saved, err := s.store.SaveLayout(&l, ownerID(r.Context()))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, saved)
}

func (s *Server) handleGetLayout(w http.ResponseWriter, r *http.Request) {
	l, err := s.store.GetLayout(chi.URLParam(r, "id"), ownerID(r.Context()))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, l)
}

func (s *Server) handleUpdateLayout(w http.ResponseWriter, r *http.Request) {
	var l layout.Layout
	if err := decodeJSON(r, &l); err != nil {
		respondError(w, fmt.Errorf("invalid layout body: %w", err))
		return
	}
	l.ID = chi.URLParam(r, "id")

	saved, err := s.store.SaveLayout(&l, ownerID(r.Context()))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, saved)
}

func (s *Server) handleDeleteLayout(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteLayout(chi.URLParam(r, "id"), ownerID(r.Context())); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCloneLayout(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &body); err != nil {
		respondError(w, fmt.Errorf("invalid clone body: %w", err))
		return
	}

	clone, err := s.store.CloneLayout(chi.URLParam(r, "id"), body.Name, ownerID(r.Context()))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, clone)
}

func (s *Server) handleSetDefaultLayout(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r.Context())
	if err := s.store.SetDefault(owner, chi.URLParam(r, "id")); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetDefaultLayout(w http.ResponseWriter, r *http.Request) {
	l, err := s.store.GetDefault(ownerID(r.Context()))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, l)
}
