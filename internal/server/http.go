package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/zeusync/helmsman/internal/core/events/bus"
	"github.com/zeusync/helmsman/internal/core/fleet"
	"github.com/zeusync/helmsman/internal/core/observability/log"
	"github.com/zeusync/helmsman/internal/core/systems/physics"
)

// SpawnRequest is the body of POST /api/vessels.
type SpawnRequest struct {
	Class string  `json:"class"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	// Near scatters the spawn point by the configured dispersion.
	Near bool `json:"near,omitempty"`
}

// MoveRequest is the body of POST /api/vessels/{id}/move.
type MoveRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type PredictResponse struct {
	ID       uuid.UUID    `json:"id"`
	At       int64        `json:"at"`
	Position physics.Vec2 `json:"position"`
}

type HealthResponse struct {
	Status  string               `json:"status"`
	Vessels int                  `json:"vessels"`
	Clients int                  `json:"clients"`
	Now     int64                `json:"now"`
	Events  *bus.EventBusMetrics `json:"events,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	health := HealthResponse{
		Status:  "ok",
		Vessels: s.registry.Len(),
		Clients: s.hub.len(),
		Now:     s.clock.NowMillis(),
	}
	if s.events != nil {
		metrics := s.events.GetMetrics()
		health.Events = &metrics
	}
	s.writeJSON(w, http.StatusOK, health)
}

func (s *Server) handleClasses(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.registry.Classes())
}

func (s *Server) handleSpawn(w http.ResponseWriter, r *http.Request) {
	var req SpawnRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	snap, err := s.spawn(req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, snap)
}

func (s *Server) spawn(req SpawnRequest) (fleet.Snapshot, error) {
	pos := physics.V2(req.X, req.Y)
	if req.Near {
		return s.registry.SpawnNear(req.Class, pos)
	}
	return s.registry.Spawn(req.Class, pos)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	at, err := s.timestamp(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	snaps, err := s.registry.AdvanceAll(r.Context(), at)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snaps)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	id, err := vesselID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	at, err := s.timestamp(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	snap, err := s.registry.Snapshot(id, at)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	id, err := vesselID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	at, err := s.timestamp(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	pos, err := s.registry.Predict(id, at)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, PredictResponse{ID: id, At: at, Position: pos})
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	id, err := vesselID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req MoveRequest
	if err = s.decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	snap, err := s.registry.Move(id, physics.V2(req.X, req.Y))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleHalt(w http.ResponseWriter, r *http.Request) {
	id, err := vesselID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	snap, err := s.registry.Halt(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	id, err := vesselID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err = s.registry.Remove(id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func vesselID(r *http.Request) (uuid.UUID, error) {
	return parseVesselID(r.PathValue("id"))
}

func parseVesselID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrInvalidVesselID, raw)
	}
	return id, nil
}

// timestamp reads the optional ?at= query parameter, defaulting to the clock.
func (s *Server) timestamp(r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("at")
	if raw == "" {
		return s.clock.NowMillis(), nil
	}
	at, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimestamp, raw)
	}
	return at, nil
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, s.config.MaxMessageSize)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, fleet.ErrVesselNotFound):
		return http.StatusNotFound
	case errors.Is(err, fleet.ErrNoPropulsion):
		return http.StatusConflict
	case errors.Is(err, fleet.ErrUnknownClass),
		errors.Is(err, ErrInvalidVesselID),
		errors.Is(err, ErrInvalidTimestamp),
		errors.Is(err, ErrInvalidMessage):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed", log.Error(err))
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	buf := s.buffers.Get()
	defer s.buffers.Put(buf)

	if err := json.NewEncoder(buf).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", log.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
