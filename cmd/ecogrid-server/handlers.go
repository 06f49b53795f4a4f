package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/daniacca/ecogrid/internal/eco"
	"github.com/daniacca/ecogrid/internal/eco/notifiers"
)

// censusResponse is the body of GET /census.
type censusResponse struct {
	Tick     int64        `json:"tick"`
	Census   eco.Census   `json:"census"`
	Activity eco.Activity `json:"activity"`
	Running  bool         `json:"running"`
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "cannot encode: "+err.Error(), http.StatusInternalServerError)
	}
}

// writeGrid writes a grid in its N-row by N-column export form.
func writeGrid(w http.ResponseWriter, grid eco.Snapshot) {
	data, err := eco.EncodeSnapshotJSON(grid)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

// writeEnvError maps engine errors to HTTP status codes.
func writeEnvError(w http.ResponseWriter, err error) {
	var verr *eco.ValidationError
	switch {
	case errors.Is(err, eco.ErrNotInitialized):
		http.Error(w, "simulation not started", http.StatusConflict)
	case errors.Is(err, eco.ErrTooManyEntities):
		http.Error(w, "Too many entities", http.StatusBadRequest)
	case errors.As(err, &verr):
		http.Error(w, verr.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// POST /start-simulation
// Body: { "plants": n, "herbivores": n, "carnivores": n }
func (s *Server) handleStartSimulation(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var pop eco.Population
	if err := json.NewDecoder(r.Body).Decode(&pop); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}

	grid, err := s.env.Start(pop)
	if err != nil {
		s.logger.Warnf("Start rejected: plants=%d herbivores=%d carnivores=%d error=%v",
			pop.Plants, pop.Herbivores, pop.Carnivores, err)
		writeEnvError(w, err)
		return
	}

	if s.autoRun > 0 {
		if err := s.env.Run(s.autoRun); err != nil {
			s.logger.Errorf("Failed to start auto-run: error=%v", err)
		}
	}

	writeGrid(w, grid)
}

// GET /next-iteration
// Advances one tick and returns the new grid.
func (s *Server) handleNextIteration(w http.ResponseWriter, r *http.Request) {
	grid, err := s.env.Step()
	if err != nil {
		writeEnvError(w, err)
		return
	}
	writeGrid(w, grid)
}

// GET /grid
func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	grid, err := s.env.Snapshot()
	if err != nil {
		writeEnvError(w, err)
		return
	}
	writeGrid(w, grid)
}

// GET /census
func (s *Server) handleCensus(w http.ResponseWriter, r *http.Request) {
	tick, census, act, err := s.env.Stats()
	if err != nil {
		writeEnvError(w, err)
		return
	}
	writeJSON(w, censusResponse{
		Tick:     tick,
		Census:   census,
		Activity: act,
		Running:  s.env.IsRunning(),
	})
}

// POST /run
// Query param: interval in milliseconds (default: the configured interval)
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	interval := s.runInterval
	if intervalStr := r.URL.Query().Get("interval"); intervalStr != "" {
		if ms, err := strconv.Atoi(intervalStr); err == nil && ms > 0 {
			interval = time.Duration(ms) * time.Millisecond
		} else {
			http.Error(w, "invalid interval: must be a positive integer (milliseconds)", http.StatusBadRequest)
			return
		}
	}

	if err := s.env.Run(interval); err != nil {
		writeEnvError(w, err)
		return
	}
	s.logger.Infof("Simulation running: interval=%v", interval)

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("simulation running"))
}

// POST /stop
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.env.Stop()
	s.logger.Infof("Simulation stopped: tick=%d", s.env.Tick())

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("simulation stopped"))
}

// GET /ws
// Streams every tick event to the client until it disconnects.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.logger.Debugf("WebSocket client connected: remote=%s", r.RemoteAddr)
	if err := s.stream.HandleConnection(w, r); err != nil {
		s.logger.Warnf("WebSocket connection failed: remote=%s error=%v", r.RemoteAddr, err)
		return
	}
	s.logger.Debugf("WebSocket client disconnected: remote=%s", r.RemoteAddr)
}

// handleNotifiersRoutes handles notifier management endpoints
func (s *Server) handleNotifiersRoutes(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/notifiers" && r.Method == http.MethodGet:
		s.handleListNotifiers(w, r)
	case r.URL.Path == "/notifiers" && r.Method == http.MethodPost:
		s.handleRegisterNotifier(w, r)
	case strings.HasPrefix(r.URL.Path, "/notifiers/") && r.Method == http.MethodDelete:
		s.handleUnregisterNotifier(w, r)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

// GET /notifiers
func (s *Server) handleListNotifiers(w http.ResponseWriter, _ *http.Request) {
	notifierIDs := s.notifierMgr.ListNotifiers()

	list := make([]map[string]string, 0, len(notifierIDs))
	for _, id := range notifierIDs {
		notifier, exists := s.notifierMgr.GetNotifier(id)
		if exists {
			entry := map[string]string{
				"id":   id,
				"type": notifier.Type(),
			}
			if wh, ok := notifier.(*notifiers.WebhookNotifier); ok {
				entry["url"] = wh.URL()
				entry["payload"] = string(wh.Payload())
			}
			list = append(list, entry)
		}
	}

	writeJSON(w, map[string]any{"notifiers": list})
}

// POST /notifiers
// Body: { "type": "webhook", "id": "my-webhook", "config": { "url": "http://...", "headers": {...}, "payload": "full|census" } }
type registerNotifierRequest struct {
	Type   string         `json:"type"`
	ID     string         `json:"id"`
	Config map[string]any `json:"config"`
}

// webhookConfig reads the loosely typed registration config.
func webhookConfig(config map[string]any) (notifiers.WebhookConfig, error) {
	var cfg notifiers.WebhookConfig

	url, ok := config["url"].(string)
	if !ok || url == "" {
		return cfg, errors.New("webhook URL is required")
	}
	cfg.URL = url

	if raw, ok := config["headers"]; ok {
		headers, ok := raw.(map[string]any)
		if !ok {
			return cfg, errors.New("webhook headers must be an object of strings")
		}
		cfg.Headers = make(map[string]string, len(headers))
		for k, v := range headers {
			vStr, ok := v.(string)
			if !ok {
				return cfg, fmt.Errorf("webhook header %q must be a string", k)
			}
			cfg.Headers[k] = vStr
		}
	}

	if raw, ok := config["payload"]; ok {
		name, ok := raw.(string)
		if !ok {
			return cfg, errors.New("webhook payload must be a string")
		}
		payload, err := notifiers.ParsePayload(name)
		if err != nil {
			return cfg, err
		}
		cfg.Payload = payload
	}
	return cfg, nil
}

func (s *Server) handleRegisterNotifier(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req registerNotifierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}

	if req.ID == "" {
		http.Error(w, "notifier ID is required", http.StatusBadRequest)
		return
	}

	var notifier eco.Notifier
	switch req.Type {
	case "webhook":
		cfg, err := webhookConfig(req.Config)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		wh, err := notifiers.NewWebhookNotifier(req.ID, cfg)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		notifier = wh
	default:
		http.Error(w, "unknown notifier type: "+req.Type, http.StatusBadRequest)
		return
	}

	if err := s.notifierMgr.RegisterNotifier(notifier); err != nil {
		http.Error(w, "cannot register notifier: "+err.Error(), http.StatusBadRequest)
		return
	}
	s.logger.Infof("Notifier registered: id=%s type=%s", req.ID, req.Type)

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("notifier registered"))
}

// DELETE /notifiers/{id}
func (s *Server) handleUnregisterNotifier(w http.ResponseWriter, r *http.Request) {
	notifierID := strings.TrimPrefix(r.URL.Path, "/notifiers/")
	if notifierID == "" {
		http.Error(w, "notifier ID is required", http.StatusBadRequest)
		return
	}
	if notifierID == streamNotifierID {
		http.Error(w, "the websocket stream cannot be removed", http.StatusBadRequest)
		return
	}

	if err := s.notifierMgr.UnregisterNotifier(notifierID); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	s.logger.Infof("Notifier unregistered: id=%s", notifierID)

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("notifier unregistered"))
}
