package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"practice_mentor/internal/api/middleware"
	"practice_mentor/internal/app/service"
	"practice_mentor/internal/common"
	"practice_mentor/internal/domain/model"
	"practice_mentor/internal/platform/logger"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// SubmissionUseCase is implemented by *service.SubmissionService.
type SubmissionUseCase interface {
	RunCode(ctx context.Context, userID string, req service.SubmissionRequest) (*model.Outcome, error)
	SubmitCode(ctx context.Context, userID string, req service.SubmissionRequest) (*model.Submission, error)
	GetSubmission(ctx context.Context, userID, submissionID string) (*model.Submission, error)
}

type SubmissionHandler struct {
	submissionService SubmissionUseCase
	maxBodyBytes      int64
}

func NewSubmissionHandler(ss SubmissionUseCase, maxSourceBytes int) *SubmissionHandler {
	// Room for JSON escaping of the source plus the other fields.
	return &SubmissionHandler{submissionService: ss, maxBodyBytes: int64(maxSourceBytes)*2 + 4096}
}

// RegisterProblemRoutes mounts under /problems.
func (h *SubmissionHandler) RegisterProblemRoutes(r chi.Router) {
	r.Use(middleware.Authenticator)
	r.Post("/{problemID}/run", h.runCode)
	r.Post("/{problemID}/submit", h.submitCode)
}

// RegisterRoutes mounts under /submissions.
func (h *SubmissionHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Authenticator)
	r.Get("/{submissionID}", h.getSubmission)
}

// runCode answers with the outcome only; the source is not echoed back.
func (h *SubmissionHandler) runCode(w http.ResponseWriter, r *http.Request) {
	userID, req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}
	outcome, err := h.submissionService.RunCode(r.Context(), userID, req)
	if err != nil {
		respondEvaluationError(w, r, req, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, outcome.Redacted())
}

func (h *SubmissionHandler) submitCode(w http.ResponseWriter, r *http.Request) {
	userID, req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}
	sub, err := h.submissionService.SubmitCode(r.Context(), userID, req)
	if err != nil {
		respondEvaluationError(w, r, req, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, sub.Redacted())
}

func (h *SubmissionHandler) decodeRequest(w http.ResponseWriter, r *http.Request) (string, service.SubmissionRequest, bool) {
	var req service.SubmissionRequest
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return "", req, false
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return "", req, false
	}
	req.ProblemID = chi.URLParam(r, "problemID")
	return userID, req, true
}

func respondEvaluationError(w http.ResponseWriter, r *http.Request, req service.SubmissionRequest, err error) {
	if common.HTTPStatusFromError(err) >= http.StatusInternalServerError {
		logger.Error(r.Context(), "submission failed", zap.String("problem_id", req.ProblemID), zap.Error(err))
		common.RespondWithError(w, common.HTTPStatusFromError(err), "Could not evaluate submission")
		return
	}
	common.RespondWithDomainError(w, err)
}

func (h *SubmissionHandler) getSubmission(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	sub, err := h.submissionService.GetSubmission(r.Context(), userID, chi.URLParam(r, "submissionID"))
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, sub.Redacted())
}
