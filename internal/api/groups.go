package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vigonotion/musiccast-core/internal/engine"
	"github.com/vigonotion/musiccast-core/internal/musiccast"
	"github.com/vigonotion/musiccast-core/internal/musiccast/transport"
)

// createGroupRequest is the request body for POST /groups.
type createGroupRequest struct {
	LeaderID   string               `json:"leader_id"`
	ServerZone string               `json:"server_zone,omitempty"`
	Clients    []engine.GroupClient `json:"clients"`
}

// handleListGroups returns all reconciled multi-room groups.
func (s *Server) handleListGroups(w http.ResponseWriter, _ *http.Request) {
	snap := s.engine.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"groups": snap.Groups,
		"count":  len(snap.Groups),
	})
}

// handleGetGroup returns one group's reconciled membership.
func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	group, ok := s.engine.Snapshot().Group(id)
	if !ok {
		writeNotFound(w, "group not found: "+id)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

// handleCreateGroup links client devices to a leader's distribution group.
//
// The devices confirm membership asynchronously, so the response carries
// only the group ID; membership appears in the group resource once the
// leaders report it.
func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	if req.LeaderID == "" {
		writeBadRequest(w, "leader_id is required")
		return
	}

	groupID, err := s.engine.LinkGroup(r.Context(), req.LeaderID, req.ServerZone, req.Clients)
	if err != nil {
		s.writeGroupError(w, err, "link group", req.LeaderID)
		return
	}

	s.logger.Info("group linked via API", "group_id", groupID, "leader_id", req.LeaderID, "clients", len(req.Clients))
	writeJSON(w, http.StatusCreated, map[string]string{"group_id": groupID})
}

// handleCloseGroup dissolves a group, releasing the leader and every client.
func (s *Server) handleCloseGroup(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.engine.CloseGroup(r.Context(), id); err != nil {
		s.writeGroupError(w, err, "close group", id)
		return
	}

	s.logger.Info("group closed via API", "group_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// handleRemoveGroupMember unlinks one client device from a group.
func (s *Server) handleRemoveGroupMember(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	deviceID := chi.URLParam(r, "deviceID")

	if err := s.engine.UnlinkGroup(r.Context(), id, []string{deviceID}); err != nil {
		s.writeGroupError(w, err, "unlink group member", id)
		return
	}

	s.logger.Info("group member unlinked via API", "group_id", id, "device_id", deviceID)
	w.WriteHeader(http.StatusNoContent)
}

// writeGroupError maps group operation errors onto HTTP responses.
func (s *Server) writeGroupError(w http.ResponseWriter, err error, op, id string) {
	switch {
	case errors.Is(err, engine.ErrUnknownGroup):
		writeNotFound(w, "group not found")
	case errors.Is(err, engine.ErrUnknownDevice):
		writeNotFound(w, "device not found")
	case errors.Is(err, musiccast.ErrInvalidCommand):
		writeBadRequest(w, err.Error())
	case errors.Is(err, transport.ErrTransport):
		writeError(w, http.StatusBadGateway, ErrCodeUpstream, err.Error())
	default:
		s.logger.Error(op+" failed", "id", id, "error", err)
		writeInternalError(w, op+" failed")
	}
}
