package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"practice_mentor/internal/api/middleware"
	"practice_mentor/internal/common"
	"practice_mentor/internal/domain/model"
	"practice_mentor/internal/platform/logger"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const streamChunkRunes = 48

// MentorUseCase is implemented by *service.MentorService.
type MentorUseCase interface {
	RequestHint(ctx context.Context, userID string, req model.HintRequest) (*model.HintResponse, error)
}

type MentorHandler struct {
	mentorService MentorUseCase
	maxBodyBytes  int64
}

func NewMentorHandler(ms MentorUseCase, maxSourceBytes int) *MentorHandler {
	return &MentorHandler{mentorService: ms, maxBodyBytes: int64(maxSourceBytes)*4 + 8192}
}

func (h *MentorHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Authenticator)
	r.Post("/hints", h.requestHint)
}

func (h *MentorHandler) requestHint(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req model.HintRequest
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	resp, err := h.mentorService.RequestHint(r.Context(), userID, req)
	if err != nil {
		if common.HTTPStatusFromError(err) >= http.StatusInternalServerError {
			logger.Error(r.Context(), "hint request failed", zap.Error(err))
			common.RespondWithError(w, common.HTTPStatusFromError(err), "Could not produce a hint")
			return
		}
		common.RespondWithDomainError(w, err)
		return
	}

	if r.URL.Query().Get("stream") == "1" {
		if flusher, ok := w.(http.Flusher); ok {
			streamHint(w, flusher, resp)
			return
		}
	}
	common.RespondWithJSON(w, http.StatusOK, resp)
}

// streamHint replays already-approved guidance as server-sent events. Nothing
// is sent before the whole reply has passed the guardrail.
func streamHint(w http.ResponseWriter, flusher http.Flusher, resp *model.HintResponse) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for _, chunk := range ChunkGuidance(resp.Guidance, streamChunkRunes) {
		writeEvent(w, "chunk", map[string]string{"text": chunk})
		flusher.Flush()
	}
	writeEvent(w, "done", map[string]interface{}{"kind": resp.Kind, "follow_ups": resp.FollowUps})
	flusher.Flush()
}

func writeEvent(w http.ResponseWriter, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}

// ChunkGuidance splits text into pieces of roughly size runes, breaking after
// whitespace so words stay whole. Joining the pieces gives back text.
func ChunkGuidance(text string, size int) []string {
	if size <= 0 {
		size = streamChunkRunes
	}
	var (
		chunks  []string
		current strings.Builder
		count   int
	)
	for _, r := range text {
		current.WriteRune(r)
		count++
		if count >= size && (r == ' ' || r == '\n') {
			chunks = append(chunks, current.String())
			current.Reset()
			count = 0
		}
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}
