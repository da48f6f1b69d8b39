package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/parcelstack-labs/parcelboard/internal/panel"
	psync "github.com/parcelstack-labs/parcelboard/internal/sync"
)

// registerPanelRequest mounts a panel: its descriptor plus the optional list
// of source panels whose events it reacts to.
type registerPanelRequest struct {
	panel.Descriptor
	ReactsTo []string `json:"reactsTo,omitempty"`
}

func (s *Server) handleListPanels(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.registry.List())
}

func (s *Server) handleRegisterPanel(w http.ResponseWriter, r *http.Request) {
	var req registerPanelRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, fmt.Errorf("invalid panel body: %w", err))
		return
	}

	if err := s.registry.Register(&req.Descriptor); err != nil {
		respondError(w, err)
		return
	}

	// A re-registration replaces any previous reaction subscription. The
	// old teardown removes the panel from the topology, so it must run
	// before the new edges are declared or it would erase them.
	panelID := req.Descriptor.ID
	s.mu.Lock()
	if prev := s.unsubscribe[panelID]; prev != nil {
		prev()
		delete(s.unsubscribe, panelID)
	}
	s.mu.Unlock()

	// Declare the reaction edges so the topology stays inspectable, and
	// mirror the last triggering event into the reactor's registry state.
	// Richer reactions live in the clients consuming the event stream.
	if len(req.ReactsTo) > 0 {
		unsub, err := s.bus.SubscribePanel(panelID, req.ReactsTo, func(_ *psync.Propagation, evt psync.Event) {
			_, uerr := s.registry.Update(panelID, panel.Patch{
				State: map[string]any{
					"lastSync": map[string]any{
						"type":          evt.Type,
						"sourcePanelId": evt.SourcePanel,
					},
				},
			})
			if uerr != nil {
				s.logger.Debug("reaction update skipped", "panel", panelID, "error", uerr)
			}
		})
		if err != nil {
			respondError(w, err)
			return
		}

		s.mu.Lock()
		s.unsubscribe[panelID] = unsub
		s.mu.Unlock()
	}

	d, err := s.registry.Get(req.Descriptor.ID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, d)
}

func (s *Server) handleUpdatePanel(w http.ResponseWriter, r *http.Request) {
	var patch panel.Patch
	if err := decodeJSON(r, &patch); err != nil {
		respondError(w, fmt.Errorf("invalid patch body: %w", err))
		return
	}

	d, err := s.registry.Update(chi.URLParam(r, "id"), patch)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

func (s *Server) handleUnregisterPanel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.registry.Unregister(id); err != nil {
		respondError(w, err)
		return
	}

	s.mu.Lock()
	if unsub := s.unsubscribe[id]; unsub != nil {
		unsub()
		delete(s.unsubscribe, id)
	}
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAffectedPanels(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	affected := s.bus.Topology().Affected([]string{id})
	respondJSON(w, http.StatusOK, map[string]any{
		"panelId":  id,
		"affected": affected,
	})
}
