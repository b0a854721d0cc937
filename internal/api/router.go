package api

import (
	"net/http"

	"practice_mentor/internal/api/handler"
	"practice_mentor/internal/api/middleware"
	"practice_mentor/internal/common/security"
	"practice_mentor/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
)

type Services struct {
	Problems       handler.ProblemReader
	Submissions    handler.SubmissionUseCase
	Mentor         handler.MentorUseCase
	MaxSourceBytes int
}

func NewRouter(svc Services) http.Handler {
	r := chi.NewRouter()

	// Base Middlewares. No global timeout: submit evaluation is bounded per
	// case by the sandbox client and hints by the mentor timeout.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chiMiddleware.Recoverer)

	// Verifies "Authorization: Bearer T" and puts claims in context.
	r.Use(jwtauth.Verifier(security.TokenAuth))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(v1 chi.Router) {
		problemHandler := handler.NewProblemHandler(svc.Problems)
		submissionHandler := handler.NewSubmissionHandler(svc.Submissions, svc.MaxSourceBytes)
		mentorHandler := handler.NewMentorHandler(svc.Mentor, svc.MaxSourceBytes)

		v1.Route("/problems", func(pr chi.Router) {
			problemHandler.RegisterRoutes(pr)
			pr.Group(submissionHandler.RegisterProblemRoutes)
		})
		v1.Route("/submissions", submissionHandler.RegisterRoutes)
		v1.Route("/mentor", mentorHandler.RegisterRoutes)
	})

	return r
}
