package handler

import (
	"context"
	"net/http"

	"practice_mentor/internal/app/service"
	"practice_mentor/internal/common"

	"github.com/go-chi/chi/v5"
)

type ProblemReader interface {
	GetProblem(ctx context.Context, ref string) (*service.ProblemView, error)
}

type ProblemHandler struct {
	problemService ProblemReader
}

func NewProblemHandler(ps ProblemReader) *ProblemHandler {
	return &ProblemHandler{problemService: ps}
}

func (h *ProblemHandler) RegisterRoutes(r chi.Router) {
	r.Get("/{problemID}", h.getProblem) // GET /api/v1/problems/two-sum
}

func (h *ProblemHandler) getProblem(w http.ResponseWriter, r *http.Request) {
	view, err := h.problemService.GetProblem(r.Context(), chi.URLParam(r, "problemID"))
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, view)
}
