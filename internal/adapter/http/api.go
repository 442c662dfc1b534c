package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/couchcryptid/checkpoint-status-service/internal/domain"
)

const (
	actorHeader     = "X-Actor-ID"
	maxRequestBytes = 16 << 10
)

type reportRequest struct {
	Severity    string `json:"severity"`
	WaitMinutes int    `json:"wait_minutes"`
}

type blacklistItemRequest struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Reason   string `json:"reason"`
}

type mutationResponse struct {
	Mutation   domain.PendingMutation `json:"mutation"`
	Checkpoint *domain.CheckpointView `json:"checkpoint,omitempty"`
	Item       *domain.BlacklistItem  `json:"item,omitempty"`
}

type nearestResponse struct {
	Checkpoint domain.CheckpointView `json:"checkpoint"`
	DistanceKm float64               `json:"distance_km"`
	Distance   string                `json:"distance"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func (s *Server) handleCheckpoints(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.view.Current())
}

func (s *Server) handleNearest(w http.ResponseWriter, r *http.Request) {
	at, err := parseCoordinate(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	v, km, ok := domain.Nearest(s.view.Current().Checkpoints, at)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no checkpoint has a known position"})
		return
	}
	writeJSON(w, http.StatusOK, nearestResponse{Checkpoint: v, DistanceKm: km, Distance: domain.DistanceLabel(km)})
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view.Current().Checkpoint(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "checkpoint not found"})
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(domain.ShareText(v)))
}

func (s *Server) handleSubmitReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sev, err := domain.ParseSeverity(req.Severity)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	id := r.PathValue("id")
	m, err := s.mutations.SubmitReport(r.Context(), actorID(r), domain.Report{
		CheckpointID: id,
		Severity:     sev,
		WaitMinutes:  req.WaitMinutes,
	})
	if err != nil {
		s.writeMutationError(w, err)
		return
	}
	resp := mutationResponse{Mutation: m}
	if v, ok := s.view.Current().Checkpoint(id); ok {
		resp.Checkpoint = &v
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBlacklist(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.view.Current().Blacklist)
}

func (s *Server) handleAddBlacklistItem(w http.ResponseWriter, r *http.Request) {
	var req blacklistItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	m, item, err := s.mutations.AddBlacklistItem(r.Context(), actorID(r), domain.NewBlacklistItem{
		Name:     req.Name,
		Category: req.Category,
		Reason:   req.Reason,
	})
	if err != nil {
		s.writeMutationError(w, err)
		return
	}
	if current, ok := s.view.Current().BlacklistItem(item.ID); ok {
		item = current
	}
	writeJSON(w, http.StatusCreated, mutationResponse{Mutation: m, Item: &item})
}

func (s *Server) handleWitness(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	m, err := s.mutations.Vote(r.Context(), actorID(r), id)
	if err != nil {
		s.writeMutationError(w, err)
		return
	}
	resp := mutationResponse{Mutation: m}
	if it, ok := s.view.Current().BlacklistItem(id); ok {
		resp.Item = &it
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTraffic(w http.ResponseWriter, r *http.Request) {
	at, err := parseCoordinate(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	sample := s.traffic.Probe(r.Context(), "", &at)
	writeJSON(w, http.StatusOK, domain.TrafficReading{Severity: sample.Severity, Description: sample.Description})
}

// writeMutationError maps coordinator errors to status codes. Store failures
// carry the user-facing retry reason.
func (s *Server) writeMutationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidReport):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrMutationInFlight):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error(), Reason: domain.ReasonRejected})
	default:
		reason := domain.ClassifyWriteError(err)
		s.logger.Warn("mutation write failed", "reason", reason, "error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error(), Reason: reason})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

// actorID identifies the caller for the double-submit guard.
func actorID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(actorHeader)); id != "" {
		return id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func parseCoordinate(r *http.Request) (domain.Coordinate, error) {
	q := r.URL.Query()
	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil || math.IsNaN(lat) || lat < -90 || lat > 90 {
		return domain.Coordinate{}, fmt.Errorf("invalid lat %q", q.Get("lat"))
	}
	lng, err := strconv.ParseFloat(q.Get("lng"), 64)
	if err != nil || math.IsNaN(lng) || lng < -180 || lng > 180 {
		return domain.Coordinate{}, fmt.Errorf("invalid lng %q", q.Get("lng"))
	}
	return domain.Coordinate{Lat: lat, Lng: lng}, nil
}
