package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
	sqlite "modernc.org/sqlite"
)

const (
	sqliteConstraintCode = 19
	defaultBusyTimeout   = 5000
)

// Store wraps the SQLite handle and exposes helper methods used by the gateway.
type Store struct {
	db *sql.DB
}

// Role is the privilege tier attached to a user record. Commander messages
// are rendered with the highlight marker in chat.
type Role int

const (
	RoleCommander Role = 1
	RoleFighter   Role = 2
	RoleTrainee   Role = 3
)

// Valid reports whether the role is one of the enumerated tiers.
func (r Role) Valid() bool {
	return r >= RoleCommander && r <= RoleTrainee
}

// User represents a row in the users table.
type User struct {
	ID        int64
	Nick      string
	Callsign  string
	Role      Role
	Online    int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserUpdate carries the optional fields of a partial update. Nil fields are
// left untouched.
type UserUpdate struct {
	Callsign *string
	Role     *Role
}

// ErrUserExists is returned when attempting to insert a duplicate nick.
var ErrUserExists = errors.New("user already exists")

// NewStore initializes the SQLite database at the provided path. Call Close when done.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "squadchat.db"
	}
	dsn := buildDSN(path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", defaultBusyTimeout)); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying DB connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func buildDSN(path string) string {
	switch {
	case strings.HasPrefix(path, "sqlite://"):
		path = path[len("sqlite://"):]
	case strings.HasPrefix(path, "file:"), strings.HasPrefix(path, ":memory:"):
		// already in a form sqlite understands
	default:
		path = "file:" + path
	}
	separator := "?"
	if strings.Contains(path, "?") {
		separator = "&"
	}
	return fmt.Sprintf("%s%s_pragma=busy_timeout=%d&_pragma=foreign_keys=ON", path, separator, defaultBusyTimeout)
}

// Migrate runs the schema creation statements.
func (s *Store) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			nick TEXT NOT NULL UNIQUE,
			callsign TEXT NOT NULL DEFAULT '',
			role INTEGER NOT NULL DEFAULT 3,
			online INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, stmt := range statements {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

const userColumns = `id, nick, callsign, role, online, created_at, updated_at`

func scanUser(row *sql.Row) (*User, error) {
	var user User
	if err := row.Scan(&user.ID, &user.Nick, &user.Callsign, &user.Role, &user.Online, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// CreateUser inserts a new user. ErrUserExists is returned on nick conflicts.
func (s *Store) CreateUser(ctx context.Context, nick, callsign string, role Role) (int64, error) {
	result, err := s.db.ExecContext(ctx, `INSERT INTO users(nick, callsign, role) VALUES(?, ?, ?)`, nick, callsign, role)
	if err != nil {
		if isConstraintError(err) {
			return 0, ErrUserExists
		}
		return 0, err
	}
	return result.LastInsertId()
}

// GetUserByNick fetches a user by nick. Returns nil when no row matches.
func (s *Store) GetUserByNick(ctx context.Context, nick string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE nick = ?`, nick)
	return scanUser(row)
}

// GetUserByID fetches a user by primary key. Returns nil when no row matches.
func (s *Store) GetUserByID(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// ListUsers returns every user record ordered by nick.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY nick ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Nick, &u.Callsign, &u.Role, &u.Online, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateUser applies a partial update and returns the refreshed record.
// sql.ErrNoRows is returned when the id is unknown.
func (s *Store) UpdateUser(ctx context.Context, id int64, update UserUpdate) (*User, error) {
	sets := []string{"updated_at = CURRENT_TIMESTAMP"}
	args := []interface{}{}
	if update.Callsign != nil {
		sets = append(sets, "callsign = ?")
		args = append(args, *update.Callsign)
	}
	if update.Role != nil {
		sets = append(sets, "role = ?")
		args = append(args, *update.Role)
	}
	args = append(args, id)
	result, err := s.db.ExecContext(ctx, `UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, sql.ErrNoRows
	}
	return s.GetUserByID(ctx, id)
}

// DeleteUser removes a user. sql.ErrNoRows is returned when the id is unknown.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// IncrementOnline adds deltaSeconds to the user's online counter and returns
// the updated record. Unknown nicks are a no-op returning nil; records are
// never auto-created here.
func (s *Store) IncrementOnline(ctx context.Context, nick string, deltaSeconds int64) (*User, error) {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET online = online + ?, updated_at = CURRENT_TIMESTAMP WHERE nick = ?`, deltaSeconds, nick)
	if err != nil {
		return nil, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, nil
	}
	return s.GetUserByNick(ctx, nick)
}

// ResetAllOnline zeroes the online counter for every user record.
func (s *Store) ResetAllOnline(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET online = 0, updated_at = CURRENT_TIMESTAMP`)
	return err
}

func isConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqliteConstraintCode
	}
	return false
}
