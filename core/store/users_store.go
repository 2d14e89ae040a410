package store

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"database/sql"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/argon2"
)

type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	FullName  string    `json:"full_name,omitempty"`
	Email     string    `json:"email,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type UsersStore interface {
	CreateUser(ctx context.Context, user *User, password string, roleIDs []int64) (int64, error)
	Get(ctx context.Context, id int64) (*User, []string, error)
	GetByUsername(ctx context.Context, username string) (*User, []string, error)
	ListUsers(ctx context.Context) ([]User, error)
	VerifyPassword(ctx context.Context, username, password string) (*User, error)
	SetRoles(ctx context.Context, userID int64, roleIDs []int64) error
}

type usersStore struct {
	db *sql.DB
}

func NewUsersStore(db *sql.DB) UsersStore {
	return &usersStore{db: db}
}

const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
)

func hashPassword(password string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return fmt.Sprintf("argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key)), nil
}

func verifyPassword(encoded, password string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 5 || parts[0] != "argon2id" {
		return false
	}
	var mem, iter uint32
	var par uint8
	if _, err := fmt.Sscanf(parts[2], "m=%d,t=%d,p=%d", &mem, &iter, &par); err != nil {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	got := argon2.IDKey([]byte(password), salt, iter, mem, par, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}

func (s *usersStore) CreateUser(ctx context.Context, user *User, password string, roleIDs []int64) (int64, error) {
	if strings.TrimSpace(user.Username) == "" {
		return 0, fmt.Errorf("username required")
	}
	hash := ""
	if password != "" {
		var err error
		hash, err = hashPassword(password)
		if err != nil {
			return 0, err
		}
	}
	now := time.Now().UTC()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO users(username, full_name, email, password_hash, active, created_at, updated_at)
		VALUES(?,?,?,?,1,?,?)`,
		strings.TrimSpace(user.Username), user.FullName, user.Email, hash, now, now)
	if err != nil {
		return 0, err
	}
	userID, _ := res.LastInsertId()
	user.ID = userID
	user.Active = true
	for _, roleID := range roleIDs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO user_roles(user_id, role_id) VALUES(?,?)`, userID, roleID); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return userID, nil
}

func (s *usersStore) Get(ctx context.Context, id int64) (*User, []string, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, full_name, email, active, created_at, updated_at FROM users WHERE id=?`, id)
	return s.scanUserWithRoles(ctx, row)
}

func (s *usersStore) GetByUsername(ctx context.Context, username string) (*User, []string, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, full_name, email, active, created_at, updated_at FROM users WHERE username=?`,
		strings.TrimSpace(username))
	return s.scanUserWithRoles(ctx, row)
}

func (s *usersStore) scanUserWithRoles(ctx context.Context, row *sql.Row) (*User, []string, error) {
	var u User
	var active int
	err := row.Scan(&u.ID, &u.Username, &u.FullName, &u.Email, &active, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	u.Active = active != 0
	roles, err := s.userRoles(ctx, u.ID)
	if err != nil {
		return nil, nil, err
	}
	return &u, roles, nil
}

func (s *usersStore) userRoles(ctx context.Context, userID int64) ([]string, error) {
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

func (s *usersStore) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, full_name, email, active, created_at, updated_at FROM users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []User
	for rows.Next() {
		var u User
		var active int
		if err := rows.Scan(&u.ID, &u.Username, &u.FullName, &u.Email, &active, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		u.Active = active != 0
		items = append(items, u)
	}
	return items, rows.Err()
}

func (s *usersStore) VerifyPassword(ctx context.Context, username, password string) (*User, error) {
	var u User
	var active int
	var hash string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, full_name, email, active, password_hash, created_at, updated_at
		FROM users WHERE username=?`, strings.TrimSpace(username)).
		Scan(&u.ID, &u.Username, &u.FullName, &u.Email, &active, &hash, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if active == 0 || !verifyPassword(hash, password) {
		return nil, nil
	}
	u.Active = true
	return &u, nil
}

func (s *usersStore) SetRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM user_roles WHERE user_id=?`, userID); err != nil {
		return err
	}
	for _, roleID := range roleIDs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO user_roles(user_id, role_id) VALUES(?,?)`, userID, roleID); err != nil {
			return err
		}
	}
	return tx.Commit()
}
