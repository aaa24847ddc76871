package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/banshee-data/occupancy.report/internal/db"
	"github.com/banshee-data/occupancy.report/internal/ingest"
)

// maxEventBody caps POSTed event bodies. Gateway datagrams are a few hundred
// bytes; anything larger is not an event.
const maxEventBody = 64 * 1024

// handleEvents lists stored events on GET and ingests one on POST. The POST
// body is the gateway wire format, identical to a UDP datagram payload.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listEvents(w, r)
	case http.MethodPost:
		s.postEvent(w, r)
	default:
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "Event store disabled")
		return
	}

	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	events, err := s.db.RecentEvents(r.Context(), limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve events: %v", err))
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}

func (s *Server) postEvent(w http.ResponseWriter, r *http.Request) {
	if s.handler == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "Ingest disabled")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBody))
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "Failed to read body")
		return
	}

	event, err := ingest.DecodeEvent(body)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.handler.HandleEvent(r.Context(), event); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to process event: %v", err))
		return
	}

	s.writeJSON(w, http.StatusCreated, event)
}

// presenceRequest is the convenience shape for explicit occupancy reports.
type presenceRequest struct {
	SensorID string  `json:"sensor_id"`
	Room     string  `json:"room"`
	Present  *bool   `json:"present"`
	Unix     float64 `json:"ts"`
}

func (s *Server) postPresence(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.handler == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "Ingest disabled")
		return
	}

	var req presenceRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxEventBody)).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %v", err))
		return
	}
	if req.Room == "" {
		s.writeJSONError(w, http.StatusBadRequest, "Missing 'room'")
		return
	}
	if req.Present == nil {
		s.writeJSONError(w, http.StatusBadRequest, "Missing 'present'")
		return
	}
	if req.SensorID == "" {
		req.SensorID = "api"
	}

	event := &ingest.Event{
		SensorID: req.SensorID,
		Room:     req.Room,
		Kind:     db.EventKindPresence,
		Present:  req.Present,
		Unix:     req.Unix,
	}

	if err := s.handler.HandleEvent(r.Context(), event); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to process presence: %v", err))
		return
	}

	s.writeJSON(w, http.StatusCreated, event)
}

// phoneRequest is the convenience shape for phone location/activity pings.
type phoneRequest struct {
	PhoneID  string  `json:"phone_id"`
	Room     string  `json:"room"`
	Activity string  `json:"activity"`
	Unix     float64 `json:"ts"`
}

func (s *Server) postPhone(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.handler == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "Ingest disabled")
		return
	}

	var req phoneRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxEventBody)).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %v", err))
		return
	}
	if req.PhoneID == "" {
		s.writeJSONError(w, http.StatusBadRequest, "Missing 'phone_id'")
		return
	}

	event := &ingest.Event{
		SensorID: req.PhoneID,
		Room:     req.Room,
		Kind:     db.EventKindPhone,
		Activity: req.Activity,
		Unix:     req.Unix,
	}

	if err := s.handler.HandleEvent(r.Context(), event); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to process phone ping: %v", err))
		return
	}

	s.writeJSON(w, http.StatusCreated, event)
}

// associateRequest links a phone to a person.
type associateRequest struct {
	PersonID string `json:"person_id"`
	PhoneID  string `json:"phone_id"`
}

func (s *Server) postAssociate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req associateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxEventBody)).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %v", err))
		return
	}
	if req.PersonID == "" {
		s.writeJSONError(w, http.StatusBadRequest, "Missing 'person_id'")
		return
	}
	if req.PhoneID == "" {
		s.writeJSONError(w, http.StatusBadRequest, "Missing 'phone_id'")
		return
	}

	s.tracker.AssociatePhone(req.PersonID, req.PhoneID)

	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":    "associated",
		"person_id": req.PersonID,
		"phone_id":  req.PhoneID,
	})
}
