package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/tbelingar/operator-night/server/internal/db"
	"github.com/tbelingar/operator-night/server/internal/game"
	mw "github.com/tbelingar/operator-night/server/internal/middleware"
	"github.com/tbelingar/operator-night/server/internal/scenario"
	"github.com/tbelingar/operator-night/server/internal/validation"
)

// session binds a running night engine to the profile that owns it
type session struct {
	engine    *game.Engine
	profileID string
}

// Server handles HTTP requests
type Server struct {
	router      chi.Router
	db          *db.DB
	sessions    map[string]*session
	sessionsMu  sync.RWMutex
	rateLimiter *mw.RateLimiter
	auth        *mw.Auth
}

// NewServer creates a new API server
func NewServer(database *db.DB, sessionSecret string) *Server {
	s := &Server{
		router:      chi.NewRouter(),
		db:          database,
		sessions:    make(map[string]*session),
		rateLimiter: mw.NewRateLimiter(),
		auth:        mw.NewAuth(sessionSecret, 12*time.Hour),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.SetHeader("Content-Type", "application/json"))
	s.router.Use(s.rateLimiter.Middleware)
	s.router.Use(mw.SecurityHeadersMiddleware)
	s.router.Use(mw.MaxBodySizeMiddleware(1024 * 1024)) // 1MB max

	// Public endpoint (no auth required)
	s.router.Post("/api/sessions", s.createSession)

	// Protected endpoints (session token required)
	s.router.Group(func(r chi.Router) {
		r.Use(s.auth.Middleware)
		r.Get("/api/sessions/{id}", s.getState)
		r.Post("/api/sessions/{id}/tick", s.tick)
		r.Post("/api/sessions/{id}/answer", s.answerCall)
		r.Post("/api/sessions/{id}/respond", s.selectResponse)
		r.Post("/api/sessions/{id}/silence", s.selectSilence)
		r.Post("/api/sessions/{id}/hold", s.holdCall)
		r.Post("/api/sessions/{id}/resume", s.resumeCall)
		r.Post("/api/sessions/{id}/dispatch", s.recordDispatch)
		r.Post("/api/sessions/{id}/finalize", s.finalize)
		r.Post("/api/sessions/{id}/save", s.saveSnapshot)
		r.Get("/api/sessions/{id}/results", s.getResults)
		r.Post("/api/sessions/{id}/debug/flag", s.debugFlag)
		r.Post("/api/sessions/{id}/debug/time", s.debugTime)
	})
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response wraps API responses
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response with 5xx details sanitized
func writeError(w http.ResponseWriter, status int, message string) {
	if status >= 500 {
		message = "Internal server error"
	}
	writeJSON(w, status, Response{
		Success: false,
		Error:   message,
	})
}

// requireSession resolves the session named in the URL, checking the
// id format and that the token was issued for this session.
func (s *Server) requireSession(w http.ResponseWriter, r *http.Request) *session {
	sessionID := chi.URLParam(r, "id")

	if err := validation.ValidateSessionID(sessionID); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid session ID")
		return nil
	}

	if mw.SessionID(r) != sessionID {
		writeError(w, http.StatusForbidden, "Access denied")
		return nil
	}

	s.sessionsMu.RLock()
	sess, ok := s.sessions[sessionID]
	s.sessionsMu.RUnlock()

	if !ok {
		writeError(w, http.StatusNotFound, "Session not found")
		return nil
	}
	return sess
}

// createSession starts (or resumes) a night for a profile
func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProfileID string           `json:"profile_id"`
		Schema    *scenario.Schema `json:"schema"`
		Resume    bool             `json:"resume"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Schema == nil {
		writeError(w, http.StatusBadRequest, "Missing scenario schema")
		return
	}
	if req.ProfileID == "" {
		writeError(w, http.StatusBadRequest, "Missing profile ID")
		return
	}

	// Carry persistent flags from the profile's prior nights
	persistent, err := s.db.GetPersistentFlags(req.ProfileID)
	if err == nil && len(persistent) > 0 {
		req.Schema.PersistentImports = persistent
	}

	sessionID := uuid.New().String()

	var engine *game.Engine
	if req.Resume {
		snap, err := s.db.LoadSnapshot(req.ProfileID, req.Schema.NightID)
		if err != nil {
			writeError(w, http.StatusNotFound, "No snapshot for this night")
			return
		}
		engine, err = game.RestoreFromSnapshot(sessionID, req.Schema, *snap)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid scenario schema")
			return
		}
	} else {
		engine, err = game.NewEngine(sessionID, req.Schema)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid scenario schema")
			return
		}
	}

	token, err := s.auth.IssueToken(sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	s.sessionsMu.Lock()
	s.sessions[sessionID] = &session{engine: engine, profileID: req.ProfileID}
	s.sessionsMu.Unlock()

	writeJSON(w, http.StatusCreated, Response{
		Success: true,
		Data: map[string]interface{}{
			"token": token,
			"info":  engine.GetInfo(),
		},
	})
}

// getState returns the presentation view of the night
func (s *Server) getState(w http.ResponseWriter, r *http.Request) {
	sess := s.requireSession(w, r)
	if sess == nil {
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    sess.engine.GetStateView(),
	})
}

// tick advances the night by a real-time delta
func (s *Server) tick(w http.ResponseWriter, r *http.Request) {
	sess := s.requireSession(w, r)
	if sess == nil {
		return
	}

	var req struct {
		DeltaSeconds float64 `json:"delta_seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.DeltaSeconds < 0 || req.DeltaSeconds > 3600 {
		writeError(w, http.StatusBadRequest, "Invalid delta")
		return
	}

	sess.engine.Tick(req.DeltaSeconds)
	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    sess.engine.GetStateView(),
	})
}

// callCommand decodes a {call_id} body and validates the id
func callCommand(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req struct {
		CallID string `json:"call_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return "", false
	}
	if err := validation.ValidateContentID(req.CallID); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid call ID")
		return "", false
	}
	return req.CallID, true
}

func (s *Server) answerCall(w http.ResponseWriter, r *http.Request) {
	sess := s.requireSession(w, r)
	if sess == nil {
		return
	}
	callID, ok := callCommand(w, r)
	if !ok {
		return
	}

	if !sess.engine.AnswerCall(callID) {
		writeError(w, http.StatusConflict, "Call cannot be answered")
		return
	}
	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    sess.engine.GetStateView(),
	})
}

func (s *Server) selectResponse(w http.ResponseWriter, r *http.Request) {
	sess := s.requireSession(w, r)
	if sess == nil {
		return
	}

	var req struct {
		ResponseID string `json:"response_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validation.ValidateContentID(req.ResponseID); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid response ID")
		return
	}

	if !sess.engine.SelectResponse(req.ResponseID) {
		writeError(w, http.StatusConflict, "Response not available")
		return
	}
	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    sess.engine.GetStateView(),
	})
}

func (s *Server) selectSilence(w http.ResponseWriter, r *http.Request) {
	sess := s.requireSession(w, r)
	if sess == nil {
		return
	}

	if !sess.engine.SelectSilence() {
		writeError(w, http.StatusConflict, "No silence response available")
		return
	}
	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    sess.engine.GetStateView(),
	})
}

func (s *Server) holdCall(w http.ResponseWriter, r *http.Request) {
	sess := s.requireSession(w, r)
	if sess == nil {
		return
	}

	if !sess.engine.HoldCall() {
		writeError(w, http.StatusConflict, "No active call")
		return
	}
	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    sess.engine.GetStateView(),
	})
}

func (s *Server) resumeCall(w http.ResponseWriter, r *http.Request) {
	sess := s.requireSession(w, r)
	if sess == nil {
		return
	}
	callID, ok := callCommand(w, r)
	if !ok {
		return
	}

	if !sess.engine.ResumeCall(callID) {
		writeError(w, http.StatusConflict, "Call is not on hold")
		return
	}
	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    sess.engine.GetStateView(),
	})
}

func (s *Server) recordDispatch(w http.ResponseWriter, r *http.Request) {
	sess := s.requireSession(w, r)
	if sess == nil {
		return
	}

	first := sess.engine.RecordDispatch()
	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data: map[string]interface{}{
			"recorded": first,
			"state":    sess.engine.GetStateView(),
		},
	})
}

// finalize resolves the night and persists its result and the
// persistent flag carry-over.
func (s *Server) finalize(w http.ResponseWriter, r *http.Request) {
	sess := s.requireSession(w, r)
	if sess == nil {
		return
	}

	outcome := sess.engine.Finalize()

	if result := sess.engine.NightResultRecord(time.Now().UTC().Format(time.RFC3339)); result != nil {
		if err := s.db.SaveNightResult(sess.profileID, *result); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save result")
			return
		}
		if err := s.db.SavePersistentFlags(sess.profileID, sess.engine.ExportPersistent()); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save result")
			return
		}
		s.db.DeleteSnapshot(sess.profileID, result.NightID)
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    outcome,
	})
}

func (s *Server) saveSnapshot(w http.ResponseWriter, r *http.Request) {
	sess := s.requireSession(w, r)
	if sess == nil {
		return
	}

	snap := sess.engine.CreateSnapshot()
	if err := s.db.SaveSnapshot(sess.profileID, snap); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save snapshot")
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    "Snapshot saved",
	})
}

func (s *Server) getResults(w http.ResponseWriter, r *http.Request) {
	sess := s.requireSession(w, r)
	if sess == nil {
		return
	}

	results, err := s.db.GetNightResults(sess.profileID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load results")
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    results,
	})
}

// debugFlag sets or clears a flag directly
func (s *Server) debugFlag(w http.ResponseWriter, r *http.Request) {
	sess := s.requireSession(w, r)
	if sess == nil {
		return
	}

	var req struct {
		FlagID string `json:"flag_id"`
		Set    bool   `json:"set"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validation.ValidateContentID(req.FlagID); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid flag ID")
		return
	}

	if req.Set {
		sess.engine.SetFlag(req.FlagID)
	} else {
		sess.engine.ClearFlag(req.FlagID)
	}
	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    sess.engine.GetStateView(),
	})
}

// debugTime jumps or advances the clock directly
func (s *Server) debugTime(w http.ResponseWriter, r *http.Request) {
	sess := s.requireSession(w, r)
	if sess == nil {
		return
	}

	var req struct {
		SetMinutes     *int `json:"set_minutes,omitempty"`
		AdvanceMinutes *int `json:"advance_minutes,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	switch {
	case req.SetMinutes != nil:
		if err := validation.ValidateMinutes(*req.SetMinutes); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid minutes")
			return
		}
		sess.engine.SetTime(*req.SetMinutes)
	case req.AdvanceMinutes != nil:
		if err := validation.ValidateMinutes(*req.AdvanceMinutes); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid minutes")
			return
		}
		sess.engine.AdvanceTime(*req.AdvanceMinutes)
	default:
		writeError(w, http.StatusBadRequest, "Missing time command")
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    sess.engine.GetStateView(),
	})
}
