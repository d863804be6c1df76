package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/accounts-be/internal/common"
	"github.com/isdelr/accounts-be/internal/database"
	"github.com/isdelr/accounts-be/internal/models"
)

// InactivityWindow is how long without a login makes an account inactive.
const InactivityWindow = 30 * 24 * time.Hour

// PasswordHasher is the credential hasher used by the user service.
type PasswordHasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
	Verify(ctx context.Context, plaintext, hash string) bool
}

// UserServiceProvider defines the interface for user services.
type UserServiceProvider interface {
	CreateUser(ctx context.Context, draft models.UserDraft) (models.User, error)
	GetUserByID(ctx context.Context, id string) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	UpdateUser(ctx context.Context, id string, patch models.UserPatch) (models.User, error)
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context, filter models.UserFilter) ([]models.User, error)
	ListInactiveUsers(ctx context.Context, filter models.UserFilter) ([]models.User, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	CountUsers(ctx context.Context) (int, error)
}

// sortColumns maps API field names to columns.
var sortColumns = map[string]string{
	"name":      "name",
	"email":     "email",
	"role":      "role",
	"lastLogin": "last_login",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}

const userColumns = "id, name, email, password_hash, role, last_login, created_at, updated_at"

// UserService provides business logic for user management.
type UserService struct {
	db      *sql.DB
	dialect database.Dialect
	hasher  PasswordHasher
	now     func() time.Time
}

// NewUserService creates a new UserService.
func NewUserService(db *sql.DB, dialect database.Dialect, hasher PasswordHasher) *UserService {
	return &UserService{
		db:      db,
		dialect: dialect,
		hasher:  hasher,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *UserService) q(query string) string {
	return database.Rebind(s.dialect, query)
}

// CreateUser creates a new user, hashing their password.
func (s *UserService) CreateUser(ctx context.Context, draft models.UserDraft) (models.User, error) {
	draft = draft.Normalized()
	if err := draft.Validate(); err != nil {
		return models.User{}, common.NewValidationError(err)
	}
	role := draft.Role
	if role == "" {
		role = models.RoleUser
	}

	hashedPassword, err := s.hasher.Hash(ctx, draft.Password)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	user := models.User{
		ID:           uuid.New().String(),
		Name:         draft.Name,
		Email:        draft.Email,
		PasswordHash: hashedPassword,
		Role:         role,
		LastLogin:    utcPtr(draft.LastLogin),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err = s.db.ExecContext(ctx, s.q(`
		INSERT INTO users (id, name, email, password_hash, role, last_login, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		user.ID, user.Name, user.Email, user.PasswordHash, string(user.Role), nullTime(user.LastLogin), user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return models.User{}, common.ErrDuplicateEmail
		}
		return models.User{}, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

// GetUserByID retrieves a single user by their ID.
func (s *UserService) GetUserByID(ctx context.Context, id string) (models.User, error) {
	row := s.db.QueryRowContext(ctx, s.q("SELECT "+userColumns+" FROM users WHERE id = ?"), id)
	return scanUser(row)
}

// GetUserByEmail retrieves a single user by their email, including the password hash.
func (s *UserService) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	row := s.db.QueryRowContext(ctx, s.q("SELECT "+userColumns+" FROM users WHERE email = ?"), models.NormalizeEmail(email))
	return scanUser(row)
}

// UpdateUser applies a patch to an existing user. A new password is re-hashed.
// An empty patch writes nothing and returns the stored user.
func (s *UserService) UpdateUser(ctx context.Context, id string, patch models.UserPatch) (models.User, error) {
	patch = patch.Normalized()
	if err := patch.Validate(); err != nil {
		return models.User{}, common.NewValidationError(err)
	}
	if patch.IsEmpty() {
		return s.GetUserByID(ctx, id)
	}

	var (
		sets []string
		args []interface{}
	)
	if patch.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *patch.Name)
	}
	if patch.Email != nil {
		sets = append(sets, "email = ?")
		args = append(args, *patch.Email)
	}
	if patch.Role != nil {
		sets = append(sets, "role = ?")
		args = append(args, string(*patch.Role))
	}
	if patch.Password != nil {
		hashedPassword, err := s.hasher.Hash(ctx, *patch.Password)
		if err != nil {
			return models.User{}, fmt.Errorf("failed to hash new password: %w", err)
		}
		sets = append(sets, "password_hash = ?")
		args = append(args, hashedPassword)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, s.now(), id)

	res, err := s.db.ExecContext(ctx, s.q("UPDATE users SET "+strings.Join(sets, ", ")+" WHERE id = ?"), args...)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return models.User{}, common.ErrDuplicateEmail
		}
		return models.User{}, fmt.Errorf("db error: %w", err)
	}
	if err := requireAffected(res, id); err != nil {
		return models.User{}, err
	}
	return s.GetUserByID(ctx, id)
}

// DeleteUser removes a user from the database.
func (s *UserService) DeleteUser(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.q("DELETE FROM users WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireAffected(res, id)
}

// ListUsers returns users matching the filter, newest first unless sorted.
func (s *UserService) ListUsers(ctx context.Context, filter models.UserFilter) ([]models.User, error) {
	orderBy, err := orderClause(filter, "created_at DESC")
	if err != nil {
		return nil, err
	}

	query := "SELECT " + userColumns + " FROM users"
	var args []interface{}
	if filter.Role != nil {
		query += " WHERE role = ?"
		args = append(args, string(*filter.Role))
	}
	return s.queryUsers(ctx, query+" ORDER BY "+orderBy, args...)
}

// ListInactiveUsers returns users who never logged in or whose last login is
// older than InactivityWindow. Stalest first unless sorted.
func (s *UserService) ListInactiveUsers(ctx context.Context, filter models.UserFilter) ([]models.User, error) {
	orderBy, err := orderClause(filter, "last_login ASC NULLS FIRST")
	if err != nil {
		return nil, err
	}

	cutoff := s.now().Add(-InactivityWindow)
	query := "SELECT " + userColumns + " FROM users WHERE (last_login IS NULL OR last_login < ?)"
	args := []interface{}{cutoff}
	if filter.Role != nil {
		query += " AND role = ?"
		args = append(args, string(*filter.Role))
	}
	return s.queryUsers(ctx, query+" ORDER BY "+orderBy, args...)
}

// TouchLastLogin records a successful login.
func (s *UserService) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, s.q("UPDATE users SET last_login = ? WHERE id = ?"), at.UTC(), id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireAffected(res, id)
}

// CountUsers returns the number of stored users.
func (s *UserService) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (s *UserService) queryUsers(ctx context.Context, query string, args ...interface{}) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return users, nil
}

// orderClause builds a whitelisted ORDER BY clause. Unknown roles, fields or
// directions are validation errors.
func orderClause(filter models.UserFilter, fallback string) (string, error) {
	if filter.Role != nil && !filter.Role.IsValid() {
		return "", common.NewValidationError(fmt.Errorf("role: unknown role %q", *filter.Role))
	}
	if filter.SortBy == "" {
		if filter.Order != "" {
			return "", common.NewValidationError(errors.New("order: requires sortBy"))
		}
		return fallback + ", id ASC", nil
	}

	column, ok := sortColumns[filter.SortBy]
	if !ok {
		return "", common.NewValidationError(fmt.Errorf("sortBy: unknown field %q", filter.SortBy))
	}

	order := models.SortOrder(strings.ToUpper(string(filter.Order)))
	switch order {
	case "":
		order = models.OrderAsc
	case models.OrderAsc, models.OrderDesc:
	default:
		return "", common.NewValidationError(fmt.Errorf("order: must be ASC or DESC, got %q", filter.Order))
	}

	clause := column + " " + string(order)
	if column == "last_login" {
		// nulls (never logged in) count as the stalest value
		if order == models.OrderAsc {
			clause += " NULLS FIRST"
		} else {
			clause += " NULLS LAST"
		}
	}
	return clause + ", id ASC", nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (models.User, error) {
	var (
		user      models.User
		role      string
		lastLogin sql.NullTime
	)
	err := row.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &role, &lastLogin, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, common.ErrNotFound
		}
		return models.User{}, fmt.Errorf("db error: %w", err)
	}
	user.Role = models.Role(role)
	if lastLogin.Valid {
		t := lastLogin.Time.UTC()
		user.LastLogin = &t
	}
	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = user.UpdatedAt.UTC()
	return user, nil
}

func requireAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user %s: %w", id, common.ErrNotFound)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
