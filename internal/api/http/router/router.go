// Package router assembles the HTTP surface: public authentication routes,
// authenticated clinical routes and administrator-only routes.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/ovialab/cliniguard-server/internal/api/http/handler"
	"github.com/ovialab/cliniguard-server/internal/api/http/middleware"
	"github.com/ovialab/cliniguard-server/internal/logger"
	"github.com/ovialab/cliniguard-server/internal/model"
)

// Router wires handlers and middleware into one chi mux.
type Router struct {
	authService     handler.AuthService
	auditService    handler.AuditService
	clinicalService handler.ClinicalService
	purgeService    handler.PurgeService
	tokens          model.TokenManager
	allowedOrigins  []string
	logger          *logger.Logger
}

// New creates a new Router instance.
func New(
	authService handler.AuthService,
	auditService handler.AuditService,
	clinicalService handler.ClinicalService,
	purgeService handler.PurgeService,
	tokens model.TokenManager,
	allowedOrigins []string,
	logger *logger.Logger,
) *Router {
	return &Router{
		authService:     authService,
		auditService:    auditService,
		clinicalService: clinicalService,
		purgeService:    purgeService,
		tokens:          tokens,
		allowedOrigins:  allowedOrigins,
		logger:          logger,
	}
}

// Register builds the route tree.
func (r *Router) Register() http.Handler {
	logging := middleware.NewLogging(r.logger)
	authenticate := middleware.NewAuthenticate(r.tokens, r.logger)

	authHandler := handler.NewAuth(r.authService, r.tokens, r.logger)
	auditHandler := handler.NewAudit(r.auditService, r.logger)
	clinicalHandler := handler.NewClinical(r.clinicalService, r.purgeService, r.logger)

	mux := chi.NewRouter()
	mux.Use(logging.Handle)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:   r.allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	mux.Route("/api", func(api chi.Router) {
		api.Post("/auth/login", authHandler.Login)
		api.Post("/auth/verify", authHandler.Verify)
		api.Post("/auth/register", authHandler.Register)

		api.Group(func(authed chi.Router) {
			authed.Use(authenticate.Handle)

			authed.Put("/account/password", authHandler.ChangePassword)
			authed.Put("/account/email", authHandler.UpdateEmail)

			authed.Post("/consultations", clinicalHandler.CreateConsultation)
			authed.Get("/consultations/{id}", clinicalHandler.GetConsultation)
			authed.Put("/consultations/{id}", clinicalHandler.UpdateConsultation)
			authed.Delete("/consultations/{id}", clinicalHandler.DeleteConsultation)
			authed.Get("/consultations/{id}/exams", clinicalHandler.ListConsultationExams)

			authed.Post("/exams", clinicalHandler.CreateExam)
			authed.Get("/exams/{id}", clinicalHandler.GetExam)
			authed.Get("/exams/{id}/attachment", clinicalHandler.DownloadAttachment)
			authed.Delete("/exams/{id}", clinicalHandler.DeleteExam)

			authed.Get("/patients/{id}/consultations", clinicalHandler.ListConsultations)
			authed.Get("/patients/{id}/exams", clinicalHandler.ListExams)

			authed.Group(func(admin chi.Router) {
				admin.Use(middleware.RequireRole(model.RoleAdministrator))

				admin.Post("/accounts/{id}/unlock", authHandler.Unlock)
				admin.Delete("/accounts/{id}", clinicalHandler.DeleteAccount)
				admin.Get("/audit", auditHandler.List)
				admin.Delete("/patients/{id}", clinicalHandler.DeletePatient)
			})
		})
	})

	return mux
}
