package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"vigil-ird/api/handlers"
)

type routeHandlers struct {
	auth          *handlers.AuthHandler
	accounts      *handlers.AccountsHandler
	incidents     *handlers.IncidentsHandler
	procedures    *handlers.ProcedureHandler
	templates     *handlers.TemplatesHandler
	forms         *handlers.FormsHandler
	records       *handlers.RecordsHandler
	shifts        *handlers.ShiftsHandler
	notifications *handlers.NotificationsHandler
	logs          *handlers.LogsHandler
}

func (s *Server) newRouteHandlers() routeHandlers {
	return routeHandlers{
		auth:          handlers.NewAuthHandler(s.cfg, s.users, s.sessionManager, s.policy, s.audits, s.logger),
		accounts:      handlers.NewAccountsHandler(s.users, s.roles, s.audits, s.logger, s.refreshPolicy),
		incidents:     handlers.NewIncidentsHandler(s.cfg, s.incidents, s.templates, s.audits, s.logger),
		procedures:    handlers.NewProcedureHandler(s.procedures, s.users, s.logger),
		templates:     handlers.NewTemplatesHandler(s.templates, s.audits, s.logger),
		forms:         handlers.NewFormsHandler(s.forms, s.logger),
		records:       handlers.NewRecordsHandler(s.records, s.logger),
		shifts:        handlers.NewShiftsHandler(s.shifts, s.audits, s.logger),
		notifications: handlers.NewNotificationsHandler(s.notifications, s.logger),
		logs:          handlers.NewLogsHandler(s.audits),
	}
}

func (s *Server) registerRoutes(r chi.Router) {
	h := s.newRouteHandlers()

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", s.rateLimitLogin(h.auth.Login))
		r.Post("/auth/logout", s.withSession(h.auth.Logout))
		r.Get("/auth/me", s.withSession(h.auth.Me))

		r.Route("/incidents", func(r chi.Router) {
			r.Get("/", s.withSession(s.requirePermission("incidents.view")(h.incidents.List)))
			r.Post("/", s.withSession(s.requirePermission("incidents.manage")(h.incidents.Create)))
			r.Get("/{id}", s.withSession(s.requirePermission("incidents.view")(h.incidents.Get)))
			r.Put("/{id}", s.withSession(s.requirePermission("incidents.manage")(h.incidents.Update)))
			r.Post("/{id}/close", s.withSession(s.requirePermission("incidents.close")(h.incidents.Close)))
			r.Get("/{id}/timeline", s.withSession(s.requirePermission("incidents.view")(h.incidents.Timeline)))

			r.Get("/{id}/steps", s.withSession(s.requirePermission("incidents.view")(h.procedures.Steps)))
			r.Post("/{id}/steps/{step_id}/complete", s.withSession(s.requirePermission("procedure.execute")(h.procedures.CompleteStep)))
			r.Post("/{id}/steps/{step_id}/form", s.withSession(s.requirePermission("procedure.execute")(h.procedures.SubmitForm)))
			r.Post("/{id}/steps/{step_id}/record", s.withSession(s.requirePermission("procedure.execute")(h.procedures.SelectRecord)))
			r.Get("/{id}/steps/{step_id}/assist", s.withSession(s.requirePermission("procedure.escalate")(h.procedures.Assist)))
			r.Post("/{id}/steps/{step_id}/assist", s.withSession(s.requirePermission("procedure.escalate")(h.procedures.DispatchAssist)))
			r.Post("/{id}/finish", s.withSession(s.requirePermission("incidents.close")(h.procedures.Finish)))
		})

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", s.withSession(s.requirePermission("templates.view")(h.templates.List)))
			r.Post("/", s.withSession(s.requirePermission("templates.manage")(h.templates.Create)))
			r.Get("/{id}", s.withSession(s.requirePermission("templates.view")(h.templates.Get)))
		})

		r.Route("/forms", func(r chi.Router) {
			r.Post("/", s.withSession(s.requirePermission("forms.manage")(h.forms.Create)))
			r.Get("/{id}", s.withSession(s.requireAnyPermission("forms.manage", "procedure.execute", "incidents.view")(h.forms.Get)))
			r.Get("/submissions/{submission_id}", s.withSession(s.requirePermission("incidents.view")(h.forms.GetSubmission)))
		})

		r.Route("/records", func(r chi.Router) {
			r.Get("/", s.withSession(s.requirePermission("records.view")(h.records.Search)))
			r.Post("/", s.withSession(s.requirePermission("records.manage")(h.records.Create)))
		})

		r.Route("/shifts", func(r chi.Router) {
			r.Get("/", s.withSession(s.requirePermission("shifts.view")(h.shifts.List)))
			r.Get("/on-duty", s.withSession(s.requirePermission("shifts.view")(h.shifts.OnDuty)))
			r.Post("/", s.withSession(s.requirePermission("shifts.manage")(h.shifts.Create)))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", s.withSession(s.requirePermission("notifications.view")(h.notifications.List)))
			r.Post("/{id}/read", s.withSession(s.requirePermission("notifications.view")(h.notifications.MarkRead)))
		})

		r.Route("/accounts", func(r chi.Router) {
			r.Get("/users", s.withSession(s.requirePermission("accounts.manage")(h.accounts.ListUsers)))
			r.Post("/users", s.withSession(s.requirePermission("accounts.manage")(h.accounts.CreateUser)))
			r.Put("/users/{id}/roles", s.withSession(s.requirePermission("accounts.manage")(h.accounts.SetUserRoles)))
			r.Get("/roles", s.withSession(s.requireAnyPermission("accounts.manage", "templates.manage")(h.accounts.ListRoles)))
			r.Post("/roles", s.withSession(s.requirePermission("accounts.manage")(h.accounts.CreateRole)))
		})

		r.Get("/logs", s.withSession(s.requirePermission("audit.view")(h.logs.List)))

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
		})
	})
}
