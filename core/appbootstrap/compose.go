package appbootstrap

import (
	"context"
	"database/sql"

	"vigil-ird/api"
	"vigil-ird/config"
	"vigil-ird/core/auth"
	"vigil-ird/core/procedure"
	"vigil-ird/core/rbac"
	"vigil-ird/core/shifts"
	"vigil-ird/core/store"
	"vigil-ird/core/utils"
)

type runtimeComposition struct {
	serverDeps api.ServerDeps
	workers    []api.BackgroundWorker
}

func composeRuntime(cfg *config.AppConfig, db *sql.DB, logger *utils.Logger) (*runtimeComposition, error) {
	users := store.NewUsersStore(db)
	sessions := store.NewSessionsStore(db)
	roles := store.NewRolesStore(db)
	audits := store.NewAuditStore(db)
	incidents := store.NewIncidentsStore(db)
	templates := store.NewTemplatesStore(db)
	forms := store.NewFormsStore(db)
	records := store.NewRecordsStore(db)
	shiftsStore := store.NewShiftsStore(db)
	notifications := store.NewNotificationsStore(db)

	if err := seedDefaults(context.Background(), users, roles, logger); err != nil {
		return nil, err
	}

	grants, err := roles.ListRoleGrants(context.Background())
	if err != nil {
		return nil, err
	}
	policy := rbac.NewPolicy(grants)
	refreshPolicy := func() error {
		grants, err := roles.ListRoleGrants(context.Background())
		if err != nil {
			return err
		}
		policy.Refresh(grants)
		return nil
	}

	sessionManager := auth.NewSessionManager(sessions, cfg, logger)

	trail := store.NewProcedureTrail(incidents)
	escalation := procedure.NewEscalationNotifier(
		shiftsStore,
		store.NewNotificationSink(notifications),
		roles,
		trail,
		cfg.BaseURL,
		cfg.Escalation.DefaultMessage,
		logger,
	)
	orchestrator := procedure.NewOrchestrator(incidents, templates, forms, records, trail, escalation, logger)
	orchestrator.SetCloser(store.NewIncidentCloser(incidents))

	var workers []api.BackgroundWorker
	if cfg.Scheduler.Enabled {
		workers = append(workers, shifts.NewScheduler(shiftsStore, sessionManager.PurgeExpired, cfg, logger))
	}

	return &runtimeComposition{
		serverDeps: api.ServerDeps{
			Users:          users,
			Sessions:       sessions,
			Roles:          roles,
			Audits:         audits,
			Incidents:      incidents,
			Templates:      templates,
			Forms:          forms,
			Records:        records,
			Shifts:         shiftsStore,
			Notifications:  notifications,
			SessionManager: sessionManager,
			Policy:         policy,
			Procedures:     orchestrator,
			RefreshPolicy:  refreshPolicy,
		},
		workers: workers,
	}, nil
}
