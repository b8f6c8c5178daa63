package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/podtutor/internal/core/domain"
)

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request body"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// QuestionRequest asks about an episode, optionally at a playback position
// @Description Question about an episode
type QuestionRequest struct {
	Question  string   `json:"question" example:"What does chlorophyll do?"`
	Timestamp *float64 `json:"timestamp,omitempty" example:"42.5"`
}

// QuestionResponse is the grounded answer with the chunks it used
// @Description Answer to a question
type QuestionResponse struct {
	AnswerText     string   `json:"answer_text"`
	AnswerAudioURL string   `json:"answer_audio_url"`
	Context        []string `json:"context"`
}

// ChatRequest is a free-form message about an episode
// @Description Chat message
type ChatRequest struct {
	Message string `json:"message" example:"Summarise the second part"`
}

// ChatResponse carries the text answer only
// @Description Chat answer
type ChatResponse struct {
	AnswerText string `json:"answer_text"`
}

const readyCheckTimeout = 3 * time.Second

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Pings the queue and storage backends
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Failure      503  {object}  map[string]string  "Failing checks by name"
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
	defer cancel()

	failed := make(map[string]string)
	for name, check := range s.checks {
		if check == nil {
			continue
		}
		if err := check.Ping(ctx); err != nil {
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		failed["status"] = "not ready"
		writeJSON(w, http.StatusServiceUnavailable, failed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// Episode endpoints

// handleUpload godoc
// @Summary      Upload a document
// @Description  Stores the document and starts episode generation in the background
// @Tags         Episodes
// @Accept       multipart/form-data
// @Produce      json
// @Param        file  formData  file  true  "Document (.pdf, .txt, .md)"
// @Success      202   {object}  domain.SubmitResult
// @Failure      400   {object}  ErrorResponse  "Missing, empty or unsupported file"
// @Failure      500   {object}  ErrorResponse  "Internal server error"
// @Router       /episodes/upload [post]
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	result, err := s.episodeService.Submit(r.Context(), header.Filename, content)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, result)
}

// handleStatus godoc
// @Summary      Episode status
// @Description  Returns pending, processing, ready or failed with a reason
// @Tags         Episodes
// @Produce      json
// @Param        id   path      string  true  "Episode ID"
// @Success      200  {object}  domain.EpisodeStatus
// @Failure      404  {object}  ErrorResponse  "Episode not found"
// @Router       /episodes/{id}/status [get]
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.episodeService.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// handleManifest godoc
// @Summary      Episode manifest
// @Description  Returns the timed segment list of a finished episode
// @Tags         Episodes
// @Produce      json
// @Param        id   path      string  true  "Episode ID"
// @Success      200  {object}  domain.Manifest
// @Failure      404  {object}  ErrorResponse  "Episode unknown or manifest not written yet"
// @Router       /episodes/{id}/manifest [get]
func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	manifest, err := s.episodeService.Manifest(r.Context(), r.PathValue("id"))
	if err != nil {
		// Pollers treat a missing manifest as "keep waiting"
		if errors.Is(err, domain.ErrNotReady) {
			writeError(w, http.StatusNotFound, "manifest not found")
			return
		}
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, manifest)
}

// handleReprocess godoc
// @Summary      Reprocess an episode
// @Description  Queues another pipeline run; a finished episode is left untouched
// @Tags         Episodes
// @Produce      json
// @Param        id   path      string  true  "Episode ID"
// @Success      202  {object}  StatusResponse
// @Failure      404  {object}  ErrorResponse  "Episode not found"
// @Router       /episodes/{id}/reprocess [post]
func (s *Server) handleReprocess(w http.ResponseWriter, r *http.Request) {
	if err := s.episodeService.Reprocess(r.Context(), r.PathValue("id")); err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// Question endpoints

// handleQuestion godoc
// @Summary      Ask a question
// @Description  Answers from the episode's document and returns a spoken answer
// @Tags         Questions
// @Accept       json
// @Produce      json
// @Param        id       path      string           true  "Episode ID"
// @Param        request  body      QuestionRequest  true  "Question"
// @Success      200      {object}  QuestionResponse
// @Failure      400      {object}  ErrorResponse  "Invalid request body"
// @Failure      404      {object}  ErrorResponse  "Episode not found"
// @Failure      409      {object}  ErrorResponse  "Retrieval index not built yet"
// @Failure      503      {object}  ErrorResponse  "Language model unavailable"
// @Router       /episodes/{id}/question [post]
func (s *Server) handleQuestion(w http.ResponseWriter, r *http.Request) {
	var req QuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	answer, err := s.questionService.Ask(r.Context(), r.PathValue("id"), req.Question, req.Timestamp)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	ctxChunks := answer.Context
	if ctxChunks == nil {
		ctxChunks = []string{}
	}
	writeJSON(w, http.StatusOK, QuestionResponse{
		AnswerText:     answer.Text,
		AnswerAudioURL: answer.AudioURL,
		Context:        ctxChunks,
	})
}

// handleChat godoc
// @Summary      Chat about an episode
// @Description  Answers a free-form message with text only
// @Tags         Questions
// @Accept       json
// @Produce      json
// @Param        id       path      string       true  "Episode ID"
// @Param        request  body      ChatRequest  true  "Message"
// @Success      200      {object}  ChatResponse
// @Failure      400      {object}  ErrorResponse  "Invalid request body"
// @Failure      409      {object}  ErrorResponse  "Retrieval index not built yet"
// @Router       /episodes/{id}/chat [post]
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	text, err := s.questionService.Chat(r.Context(), r.PathValue("id"), req.Message)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{AnswerText: text})
}

// Helper functions

// writeServiceError maps domain sentinels to status codes
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "episode not found")
	case errors.Is(err, domain.ErrIndexNotReady):
		writeError(w, http.StatusConflict, "episode index not ready")
	case errors.Is(err, domain.ErrNotReady):
		writeError(w, http.StatusConflict, "episode not ready")
	case errors.Is(err, domain.ErrServiceUnavailable):
		s.logger.Warn("upstream service unavailable", "error", err)
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
