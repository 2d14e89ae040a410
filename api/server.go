package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"vigil-ird/config"
	"vigil-ird/core/auth"
	"vigil-ird/core/procedure"
	"vigil-ird/core/rbac"
	"vigil-ird/core/store"
	"vigil-ird/core/utils"
)

// BackgroundWorker is anything the server lifecycle starts and stops
// alongside the listener.
type BackgroundWorker interface {
	Start() error
	Stop()
}

type ServerDeps struct {
	Users          store.UsersStore
	Sessions       store.SessionsStore
	Roles          store.RolesStore
	Audits         store.AuditStore
	Incidents      store.IncidentsStore
	Templates      store.TemplatesStore
	Forms          store.FormsStore
	Records        store.RecordsStore
	Shifts         store.ShiftsStore
	Notifications  store.NotificationsStore
	SessionManager *auth.SessionManager
	Policy         *rbac.Policy
	Procedures     *procedure.Orchestrator
	RefreshPolicy  func() error
}

type Server struct {
	cfg            *config.AppConfig
	logger         *utils.Logger
	users          store.UsersStore
	sessions       store.SessionsStore
	roles          store.RolesStore
	audits         store.AuditStore
	incidents      store.IncidentsStore
	templates      store.TemplatesStore
	forms          store.FormsStore
	records        store.RecordsStore
	shifts         store.ShiftsStore
	notifications  store.NotificationsStore
	sessionManager *auth.SessionManager
	policy         *rbac.Policy
	procedures     *procedure.Orchestrator
	refreshPolicy  func() error
}

func NewServer(cfg *config.AppConfig, deps ServerDeps, logger *utils.Logger) *Server {
	return &Server{
		cfg:            cfg,
		logger:         logger,
		users:          deps.Users,
		sessions:       deps.Sessions,
		roles:          deps.Roles,
		audits:         deps.Audits,
		incidents:      deps.Incidents,
		templates:      deps.Templates,
		forms:          deps.Forms,
		records:        deps.Records,
		shifts:         deps.Shifts,
		notifications:  deps.Notifications,
		sessionManager: deps.SessionManager,
		policy:         deps.Policy,
		procedures:     deps.Procedures,
		refreshPolicy:  deps.RefreshPolicy,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.recoverMiddleware)
	r.Use(s.jsonMiddleware)
	r.Use(s.loggingMiddleware)
	s.registerRoutes(r)
	return r
}
