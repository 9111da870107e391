package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"homepanel/internal/cache"
	"homepanel/internal/gateway"
	"homepanel/internal/log"
	"homepanel/internal/panel"
	"homepanel/internal/registry"
)

// Version information, set via ldflags at build time
var (
	Version   = "dev"
	BuildDate = "unknown"
)

// StatusResponse represents the overall panel status
type StatusResponse struct {
	LoggedIn  bool   `json:"logged_in"`
	Username  string `json:"username,omitempty"`
	Realtime  bool   `json:"realtime"`
	UIClients int    `json:"ui_clients"`
	Version   string `json:"version"`
	BuildDate string `json:"build_date"`
}

// CredentialsRequest represents a login or register request
type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SessionResponse reports the remembered session
type SessionResponse struct {
	LoggedIn bool   `json:"logged_in"`
	Username string `json:"username,omitempty"`
}

// StateRequest carries a device state write
type StateRequest struct {
	State map[string]interface{} `json:"state"`
}

// PowerRequest carries a device power toggle
type PowerRequest struct {
	On bool `json:"on"`
}

// AdjustRequest carries a stepper press
type AdjustRequest struct {
	Attribute string `json:"attribute"`
	Direction string `json:"direction"` // "increase" or "decrease"
}

// AdjustResponse reports the value after a stepper press
type AdjustResponse struct {
	Value   float64 `json:"value"`
	Changed bool    `json:"changed"`
}

// DeviceTypeInfo describes one device type's adjustable surface
type DeviceTypeInfo struct {
	Type       registry.DeviceType       `json:"type"`
	Attributes map[string]registry.Range `json:"attributes"`
	Discrete   map[string][]string       `json:"discrete,omitempty"`
}

// SceneFieldRequest carries a single scene field edit
type SceneFieldRequest struct {
	Field string      `json:"field"`
	Value interface{} `json:"value"`
}

// handleLogin authenticates against the backend and starts the realtime
// channel on success
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.panel.Login(r.Context(), req.Username, req.Password); err != nil {
		writeGatewayError(w, err)
		return
	}

	if err := s.channel.Connect(r.Context()); err != nil {
		log.Warn("realtime connect after login failed: %v", err)
	}

	writeJSON(w, SessionResponse{LoggedIn: true, Username: req.Username})
}

// handleRegister creates a backend account
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.panel.Register(r.Context(), req.Username, req.Password); err != nil {
		writeGatewayError(w, err)
		return
	}

	writeJSON(w, map[string]string{"status": "registered"})
}

// handleLogout drops the session and the realtime channel
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.channel.Disconnect()
	if err := s.panel.Logout(); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to clear session")
		return
	}

	writeJSON(w, map[string]string{"status": "ok"})
}

// handleSession reports the remembered session without touching the backend
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	username := s.panel.Username()
	writeJSON(w, SessionResponse{
		LoggedIn: username != "",
		Username: username,
	})
}

// handleDevices returns the device list. With ?refresh=1 it asks the
// backend first; if the backend is unreachable it falls back to the
// local mirror so the panel still renders.
func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("refresh") != "" {
		devices, err := s.panel.RefreshDevices(r.Context())
		if err == nil {
			writeJSON(w, devices)
			return
		}
		log.Warn("device refresh failed, serving mirror: %v", err)
	}

	devices, err := s.panel.Devices()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read device mirror")
		return
	}

	writeJSON(w, devices)
}

// handleSetDevice writes device state
func (s *Server) handleSetDevice(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	var req StateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.State) == 0 {
		writeError(w, http.StatusBadRequest, "state is required")
		return
	}

	if err := s.panel.SetDevice(r.Context(), name, req.State); err != nil {
		writeGatewayError(w, err)
		return
	}

	writeJSON(w, map[string]string{"status": "ok"})
}

// handleSetPower toggles device power
func (s *Server) handleSetPower(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	var req PowerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.panel.SetDevicePower(r.Context(), name, req.On); err != nil {
		writeGatewayError(w, err)
		return
	}

	writeJSON(w, map[string]string{"status": "ok"})
}

// handleAdjustDevice applies one stepper press to a numeric attribute
func (s *Server) handleAdjustDevice(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	var req AdjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var dir registry.Direction
	switch req.Direction {
	case "increase":
		dir = registry.Increase
	case "decrease":
		dir = registry.Decrease
	default:
		writeError(w, http.StatusBadRequest, "direction must be increase or decrease")
		return
	}

	value, changed, err := s.panel.AdjustDevice(r.Context(), name, req.Attribute, dir)
	if err != nil {
		writeGatewayError(w, err)
		return
	}

	writeJSON(w, AdjustResponse{Value: value, Changed: changed})
}

// handleRegistry returns the adjustable surface of every known device type
func (s *Server) handleRegistry(w http.ResponseWriter, r *http.Request) {
	response := make([]DeviceTypeInfo, 0, len(registry.Types()))
	for _, t := range registry.Types() {
		info := DeviceTypeInfo{
			Type:       t,
			Attributes: registry.AttributesOf(t),
			Discrete:   map[string][]string{},
		}
		for _, field := range registry.DiscreteFieldsOf(t) {
			if opts := registry.DiscreteOptionsOf(t, field); len(opts) > 0 {
				info.Discrete[field] = opts
			}
		}
		if len(info.Discrete) == 0 {
			info.Discrete = nil
		}
		response = append(response, info)
	}

	writeJSON(w, response)
}

// handleScenes returns scenes with their activation state. With ?refresh=1
// the list is re-fetched from the backend first.
func (s *Server) handleScenes(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("refresh") != "" {
		if _, err := s.panel.RefreshScenes(r.Context()); err != nil {
			log.Warn("scene refresh failed, serving mirror: %v", err)
		}
	}

	views, err := s.panel.SceneViews()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read scene mirror")
		return
	}

	writeJSON(w, views)
}

// handleCreateScene creates a scene
func (s *Server) handleCreateScene(w http.ResponseWriter, r *http.Request) {
	var scene gateway.Scene
	if err := json.NewDecoder(r.Body).Decode(&scene); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := s.panel.CreateScene(r.Context(), scene)
	if err != nil {
		writeGatewayError(w, err)
		return
	}

	writeJSON(w, created)
}

// handlePatchScene edits a single scene field
func (s *Server) handlePatchScene(w http.ResponseWriter, r *http.Request) {
	sceneID := mux.Vars(r)["id"]

	var req SceneFieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Field == "" {
		writeError(w, http.StatusBadRequest, "field is required")
		return
	}

	if err := s.panel.UpdateSceneField(r.Context(), sceneID, req.Field, req.Value); err != nil {
		writeGatewayError(w, err)
		return
	}

	writeJSON(w, map[string]string{"status": "ok"})
}

// handleDeleteScene moves a scene to the recycle bin
func (s *Server) handleDeleteScene(w http.ResponseWriter, r *http.Request) {
	sceneID := mux.Vars(r)["id"]

	if err := s.panel.DeleteScene(r.Context(), sceneID); err != nil {
		writeGatewayError(w, err)
		return
	}

	writeJSON(w, map[string]string{"status": "ok"})
}

// handleActivateScene requests activation. The response carries the locally
// known active scene, which only changes once the next snapshot confirms.
func (s *Server) handleActivateScene(w http.ResponseWriter, r *http.Request) {
	sceneID := mux.Vars(r)["id"]

	if err := s.panel.Activate(r.Context(), sceneID); err != nil {
		writeGatewayError(w, err)
		return
	}

	writeJSON(w, map[string]string{
		"status": "requested",
		"active": s.panel.ActiveSceneID(),
	})
}

// handleDeactivateScene requests deactivation
func (s *Server) handleDeactivateScene(w http.ResponseWriter, r *http.Request) {
	if err := s.panel.Deactivate(r.Context()); err != nil {
		writeGatewayError(w, err)
		return
	}

	writeJSON(w, map[string]string{
		"status": "requested",
		"active": s.panel.ActiveSceneID(),
	})
}

// handleRules lists rules, optionally scoped to one scene
func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.panel.Rules(r.Context(), r.URL.Query().Get("scene_id"))
	if err != nil {
		writeGatewayError(w, err)
		return
	}

	writeJSON(w, rules)
}

// handleCreateRule creates a rule
func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var rule gateway.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := s.panel.CreateRule(r.Context(), rule)
	if err != nil {
		writeGatewayError(w, err)
		return
	}

	writeJSON(w, created)
}

// handleDeleteRule deletes a rule
func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	ruleID := mux.Vars(r)["id"]

	if err := s.panel.DeleteRule(r.Context(), ruleID); err != nil {
		writeGatewayError(w, err)
		return
	}

	writeJSON(w, map[string]string{"status": "ok"})
}

// handleSaveRules applies a batch of rule edits. The response always lists
// every rule's outcome; a failed rule never blocks the others.
func (s *Server) handleSaveRules(w http.ResponseWriter, r *http.Request) {
	var saves []panel.RuleSave
	if err := json.NewDecoder(r.Body).Decode(&saves); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	results := s.panel.SaveRules(r.Context(), saves)
	writeJSON(w, results)
}

// handleRecommendations returns the backend's scene recommendations
func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	recs, err := s.panel.Recommendations(r.Context())
	if err != nil {
		writeGatewayError(w, err)
		return
	}

	writeJSON(w, recs)
}

// handleAcceptRecommendation activates a recommended scene
func (s *Server) handleAcceptRecommendation(w http.ResponseWriter, r *http.Request) {
	sceneID := mux.Vars(r)["id"]

	if err := s.panel.AcceptRecommendation(r.Context(), sceneID); err != nil {
		writeGatewayError(w, err)
		return
	}

	writeJSON(w, map[string]string{"status": "requested"})
}

// handleDiscardRecommendation drops a recommendation without activating it
func (s *Server) handleDiscardRecommendation(w http.ResponseWriter, r *http.Request) {
	s.panel.DiscardRecommendation(mux.Vars(r)["id"])
	writeJSON(w, map[string]string{"status": "discarded"})
}

// handleRecycleBin lists recycled scenes
func (s *Server) handleRecycleBin(w http.ResponseWriter, r *http.Request) {
	scenes, err := s.panel.RecycleBin(r.Context())
	if err != nil {
		writeGatewayError(w, err)
		return
	}

	writeJSON(w, scenes)
}

// handleRecoverScene restores a recycled scene
func (s *Server) handleRecoverScene(w http.ResponseWriter, r *http.Request) {
	sceneID := mux.Vars(r)["id"]

	if err := s.panel.RecoverScene(r.Context(), sceneID); err != nil {
		writeGatewayError(w, err)
		return
	}

	writeJSON(w, map[string]string{"status": "ok"})
}

// handleClearRecycleBin empties the recycle bin
func (s *Server) handleClearRecycleBin(w http.ResponseWriter, r *http.Request) {
	if err := s.panel.ClearRecycleBin(r.Context()); err != nil {
		writeGatewayError(w, err)
		return
	}

	writeJSON(w, map[string]string{"status": "ok"})
}

// handleEnvironment returns the last environment snapshot, or 404 when no
// push has arrived yet
func (s *Server) handleEnvironment(w http.ResponseWriter, r *http.Request) {
	snap, err := s.panel.Cache().Snapshot()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read snapshot")
		return
	}
	if snap == nil {
		writeError(w, http.StatusNotFound, "no environment data yet")
		return
	}

	writeJSON(w, snap)
}

// handleEvents returns the local event history
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	filter := cache.EventFilter{Limit: 100}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			filter.Limit = limit
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset >= 0 {
			filter.Offset = offset
		}
	}
	if source := r.URL.Query().Get("source"); source != "" {
		src := cache.EventSource(source)
		filter.Source = &src
	}

	events, err := s.panel.Cache().Events(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get events")
		return
	}

	writeJSON(w, events)
}

// handleStatus returns overall panel status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	username := s.panel.Username()
	writeJSON(w, StatusResponse{
		LoggedIn:  username != "",
		Username:  username,
		Realtime:  s.channel.Connected(),
		UIClients: s.hub.ClientCount(),
		Version:   Version,
		BuildDate: BuildDate,
	})
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeGatewayError maps service and backend errors onto HTTP statuses.
// Known backend codes get stable messages the UI can match on; anything
// else surfaces the backend's own message.
func writeGatewayError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, panel.ErrUnknownDevice):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, panel.ErrUnknownAttribute):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, panel.ErrSceneNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, panel.ErrSceneDisabled):
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	var apiErr *gateway.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case gateway.CodeSceneDisabled:
			writeError(w, http.StatusConflict, "scene is disabled and cannot be activated")
		case gateway.CodeMissingCredentials:
			writeError(w, http.StatusBadRequest, "username and password are required")
		case gateway.CodeBadCredentials:
			writeError(w, http.StatusUnauthorized, "username or password is incorrect")
		default:
			writeError(w, http.StatusBadGateway, apiErr.Msg)
		}
		return
	}

	log.Error("backend request failed: %v", err)
	writeError(w, http.StatusBadGateway, "smart home backend unreachable")
}
