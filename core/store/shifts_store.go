package store

import (
	"context"
	"database/sql"
	"time"

	"vigil-ird/core/procedure"
)

type Shift struct {
	ID       int64     `json:"id"`
	UserID   int64     `json:"user_id"`
	Username string    `json:"username,omitempty"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
	Status   string    `json:"status"`
}

const (
	ShiftScheduled = "scheduled"
	ShiftActive    = "active"
	ShiftEnded     = "ended"
)

type ShiftsStore interface {
	CreateShift(ctx context.Context, shift *Shift) (int64, error)
	ListShifts(ctx context.Context, includeEnded bool) ([]Shift, error)
	// RollShifts transitions scheduled shifts whose window opened to
	// active and active shifts whose window closed to ended. Returns
	// the number of rows changed; the cron scheduler calls this.
	RollShifts(ctx context.Context, now time.Time) (int64, error)

	// ActiveUsersNow is the engine's Roster contract: users on an
	// active shift with their role sets.
	ActiveUsersNow(ctx context.Context) ([]procedure.RosterUser, error)
}

type shiftsStore struct {
	db *sql.DB
}

func NewShiftsStore(db *sql.DB) ShiftsStore {
	return &shiftsStore{db: db}
}

func (s *shiftsStore) CreateShift(ctx context.Context, shift *Shift) (int64, error) {
	now := time.Now().UTC()
	status := ShiftScheduled
	if !shift.StartsAt.After(now) && shift.EndsAt.After(now) {
		status = ShiftActive
	}
	shift.Status = status
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO shifts(user_id, starts_at, ends_at, status, created_at) VALUES(?,?,?,?,?)`,
		shift.UserID, shift.StartsAt.UTC(), shift.EndsAt.UTC(), status, now)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *shiftsStore) ListShifts(ctx context.Context, includeEnded bool) ([]Shift, error) {
	query := `
		SELECT s.id, s.user_id, u.username, s.starts_at, s.ends_at, s.status
		FROM shifts s JOIN users u ON u.id=s.user_id`
	if !includeEnded {
		query += ` WHERE s.status<>'ended'`
	}
	query += ` ORDER BY s.starts_at`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Shift
	for rows.Next() {
		var sh Shift
		if err := rows.Scan(&sh.ID, &sh.UserID, &sh.Username, &sh.StartsAt, &sh.EndsAt, &sh.Status); err != nil {
			return nil, err
		}
		items = append(items, sh)
	}
	return items, rows.Err()
}

func (s *shiftsStore) RollShifts(ctx context.Context, now time.Time) (int64, error) {
	now = now.UTC()
	var changed int64
	res, err := s.db.ExecContext(ctx, `
		UPDATE shifts SET status='active' WHERE status='scheduled' AND starts_at<=? AND ends_at>?`, now, now)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	changed += n
	res, err = s.db.ExecContext(ctx, `
		UPDATE shifts SET status='ended' WHERE status IN ('scheduled','active') AND ends_at<=?`, now)
	if err != nil {
		return changed, err
	}
	n, _ = res.RowsAffected()
	return changed + n, nil
}

func (s *shiftsStore) ActiveUsersNow(ctx context.Context) ([]procedure.RosterUser, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT u.id, u.username, u.full_name
		FROM shifts s
		JOIN users u ON u.id=s.user_id
		WHERE s.status='active' AND u.active=1
		ORDER BY u.username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []procedure.RosterUser
	for rows.Next() {
		var u procedure.RosterUser
		if err := rows.Scan(&u.ID, &u.Username, &u.FullName); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range users {
		roles, err := s.rolesFor(ctx, users[i].ID)
		if err != nil {
			return nil, err
		}
		users[i].Roles = roles
	}
	return users, nil
}

func (s *shiftsStore) rolesFor(ctx context.Context, userID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.name FROM roles r JOIN user_roles ur ON ur.role_id=r.id WHERE ur.user_id=? ORDER BY r.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		roles = append(roles, name)
	}
	return roles, rows.Err()
}
