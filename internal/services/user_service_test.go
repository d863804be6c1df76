package services

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/isdelr/accounts-be/internal/auth"
	"github.com/isdelr/accounts-be/internal/common"
	"github.com/isdelr/accounts-be/internal/database"
	"github.com/isdelr/accounts-be/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- helpers ---

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestUserService(t *testing.T) (*UserService, *testClock) {
	t.Helper()
	ctx := context.Background()
	db, err := database.New(ctx, database.SQLite, filepath.Join(t.TempDir(), "accounts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(ctx, db, database.SQLite))

	clock := &testClock{now: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)}
	s := NewUserService(db, database.SQLite, auth.NewPasswordHasher(bcrypt.MinCost, 4))
	s.now = clock.Now
	return s, clock
}

func mustCreate(t *testing.T, s *UserService, name, email string, role models.Role) models.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), models.UserDraft{Name: name, Email: email, Password: "password1", Role: role})
	require.NoError(t, err)
	return u
}

func names(users []models.User) []string {
	out := make([]string, len(users))
	for i, u := range users {
		out[i] = u.Name
	}
	return out
}

func ptr[T any](v T) *T { return &v }

// --- create / read ---

func TestCreateUser_RoundTrip(t *testing.T) {
	s, _ := newTestUserService(t)
	ctx := context.Background()

	created, err := s.CreateUser(ctx, models.UserDraft{Name: " Alice ", Email: " Alice@Example.com", Password: "password1"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.RoleUser, created.Role)
	assert.Nil(t, created.LastLogin)

	got, err := s.GetUserByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Name)
	assert.Equal(t, "alice@example.com", got.Email)
	assert.Equal(t, models.RoleUser, got.Role)
	assert.WithinDuration(t, created.CreatedAt, got.CreatedAt, 0)
	assert.WithinDuration(t, got.CreatedAt, got.UpdatedAt, 0)
	assert.NotEqual(t, "password1", got.PasswordHash)
	assert.True(t, s.hasher.Verify(ctx, "password1", got.PasswordHash))

	byEmail, err := s.GetUserByEmail(ctx, "ALICE@example.com ")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)
}

func TestCreateUser_Validation(t *testing.T) {
	s, _ := newTestUserService(t)

	_, err := s.CreateUser(context.Background(), models.UserDraft{Name: "", Email: "bad", Password: "x"})
	assert.True(t, common.IsValidation(err))

	_, err = s.CreateUser(context.Background(), models.UserDraft{Name: "A", Email: "a@example.com", Password: "password1", Role: "root"})
	assert.True(t, common.IsValidation(err))
}

func TestCreateUser_BlankNameRejected(t *testing.T) {
	s, _ := newTestUserService(t)
	ctx := context.Background()

	_, err := s.CreateUser(ctx, models.UserDraft{Name: "   ", Email: "blank@example.com", Password: "password1"})
	require.True(t, common.IsValidation(err))
	var fields validation.Errors
	require.ErrorAs(t, err, &fields)
	assert.Contains(t, fields, "name")

	n, err := s.CountUsers(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCreateUser_PaddedEmailIsNormalized(t *testing.T) {
	s, _ := newTestUserService(t)

	u, err := s.CreateUser(context.Background(), models.UserDraft{Name: "Eve", Email: "eve@example.com ", Password: "password1"})
	require.NoError(t, err)
	assert.Equal(t, "eve@example.com", u.Email)
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	s, _ := newTestUserService(t)
	mustCreate(t, s, "A", "dup@example.com", models.RoleUser)

	_, err := s.CreateUser(context.Background(), models.UserDraft{Name: "B", Email: "DUP@example.com", Password: "password1"})
	assert.ErrorIs(t, err, common.ErrDuplicateEmail)
}

func TestCreateUser_ConcurrentDuplicate(t *testing.T) {
	s, _ := newTestUserService(t)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.CreateUser(context.Background(), models.UserDraft{Name: "Racer", Email: "race@example.com", Password: "password1"})
		}(i)
	}
	wg.Wait()

	var ok, dup int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, common.ErrDuplicateEmail):
			dup++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, dup)
}

func TestGetUser_NotFound(t *testing.T) {
	s, _ := newTestUserService(t)

	_, err := s.GetUserByID(context.Background(), "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = s.GetUserByEmail(context.Background(), "missing@example.com")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

// --- update / delete ---

func TestUpdateUser_FieldsAndTimestamps(t *testing.T) {
	s, clock := newTestUserService(t)
	ctx := context.Background()
	u := mustCreate(t, s, "Bob", "bob@example.com", models.RoleUser)

	clock.Advance(time.Minute)
	updated, err := s.UpdateUser(ctx, u.ID, models.UserPatch{Name: ptr("Robert"), Role: ptr(models.RoleAdmin)})
	require.NoError(t, err)

	assert.Equal(t, "Robert", updated.Name)
	assert.Equal(t, "bob@example.com", updated.Email)
	assert.Equal(t, models.RoleAdmin, updated.Role)
	assert.WithinDuration(t, u.CreatedAt, updated.CreatedAt, 0)
	assert.WithinDuration(t, u.CreatedAt.Add(time.Minute), updated.UpdatedAt, 0)
	assert.Equal(t, u.PasswordHash, updated.PasswordHash)
}

func TestUpdateUser_PasswordRoundTrip(t *testing.T) {
	s, _ := newTestUserService(t)
	ctx := context.Background()
	u := mustCreate(t, s, "Carol", "carol@example.com", models.RoleUser)

	updated, err := s.UpdateUser(ctx, u.ID, models.UserPatch{Password: ptr("brand-new-pass")})
	require.NoError(t, err)

	assert.NotEqual(t, u.PasswordHash, updated.PasswordHash)
	assert.True(t, s.hasher.Verify(ctx, "brand-new-pass", updated.PasswordHash))
	assert.False(t, s.hasher.Verify(ctx, "password1", updated.PasswordHash))
}

func TestUpdateUser_Errors(t *testing.T) {
	s, _ := newTestUserService(t)
	ctx := context.Background()
	mustCreate(t, s, "Dan", "dan@example.com", models.RoleUser)
	eve := mustCreate(t, s, "Eve", "eve@example.com", models.RoleUser)

	_, err := s.UpdateUser(ctx, "missing", models.UserPatch{Name: ptr("X")})
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = s.UpdateUser(ctx, eve.ID, models.UserPatch{Email: ptr("dan@example.com")})
	assert.ErrorIs(t, err, common.ErrDuplicateEmail)

	_, err = s.UpdateUser(ctx, eve.ID, models.UserPatch{Role: ptr(models.Role("owner"))})
	assert.True(t, common.IsValidation(err))

	_, err = s.UpdateUser(ctx, eve.ID, models.UserPatch{Password: ptr("   ")})
	assert.True(t, common.IsValidation(err))

	_, err = s.UpdateUser(ctx, eve.ID, models.UserPatch{Name: ptr("  ")})
	assert.True(t, common.IsValidation(err))
	stored, err := s.GetUserByID(ctx, eve.ID)
	require.NoError(t, err)
	assert.Equal(t, "Eve", stored.Name)
}

func TestUpdateUser_NormalizesEmail(t *testing.T) {
	s, _ := newTestUserService(t)
	u := mustCreate(t, s, "Fay", "fay@example.com", models.RoleUser)

	updated, err := s.UpdateUser(context.Background(), u.ID, models.UserPatch{Email: ptr(" Fay.New@Example.com ")})
	require.NoError(t, err)
	assert.Equal(t, "fay.new@example.com", updated.Email)
}

func TestUpdateUser_EmptyPatchWritesNothing(t *testing.T) {
	s, clock := newTestUserService(t)
	ctx := context.Background()
	u := mustCreate(t, s, "Gus", "gus@example.com", models.RoleUser)

	clock.Advance(time.Hour)
	got, err := s.UpdateUser(ctx, u.ID, models.UserPatch{})
	require.NoError(t, err)
	assert.WithinDuration(t, u.UpdatedAt, got.UpdatedAt, 0)

	_, err = s.UpdateUser(ctx, "missing", models.UserPatch{})
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestDeleteUser(t *testing.T) {
	s, _ := newTestUserService(t)
	ctx := context.Background()
	u := mustCreate(t, s, "Fay", "fay@example.com", models.RoleUser)

	require.NoError(t, s.DeleteUser(ctx, u.ID))
	_, err := s.GetUserByID(ctx, u.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.ErrorIs(t, s.DeleteUser(ctx, u.ID), common.ErrNotFound)
}

// --- listings ---

func seedListing(t *testing.T) (*UserService, *testClock) {
	t.Helper()
	s, clock := newTestUserService(t)
	mustCreate(t, s, "Charlie", "charlie@example.com", models.RoleUser)
	clock.Advance(time.Second)
	mustCreate(t, s, "Alice", "alice@example.com", models.RoleAdmin)
	clock.Advance(time.Second)
	mustCreate(t, s, "Bob", "bob@example.com", models.RoleUser)
	return s, clock
}

func TestListUsers_DefaultNewestFirst(t *testing.T) {
	s, _ := seedListing(t)

	users, err := s.ListUsers(context.Background(), models.UserFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Bob", "Alice", "Charlie"}, names(users))
}

func TestListUsers_FilterAndSort(t *testing.T) {
	s, _ := seedListing(t)
	ctx := context.Background()

	users, err := s.ListUsers(ctx, models.UserFilter{Role: ptr(models.RoleUser)})
	require.NoError(t, err)
	assert.Equal(t, []string{"Bob", "Charlie"}, names(users))

	users, err = s.ListUsers(ctx, models.UserFilter{SortBy: "name"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Bob", "Charlie"}, names(users))

	users, err = s.ListUsers(ctx, models.UserFilter{SortBy: "email", Order: "desc"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Charlie", "Bob", "Alice"}, names(users))

	users, err = s.ListUsers(ctx, models.UserFilter{Role: ptr(models.RoleAdmin), SortBy: "createdAt", Order: models.OrderAsc})
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice"}, names(users))
}

func TestListUsers_InvalidFilter(t *testing.T) {
	s, _ := seedListing(t)
	ctx := context.Background()

	for _, f := range []models.UserFilter{
		{SortBy: "password_hash"},
		{SortBy: "name; DROP TABLE users"},
		{SortBy: "name", Order: "sideways"},
		{Order: models.OrderDesc},
		{Role: ptr(models.Role("root"))},
	} {
		_, err := s.ListUsers(ctx, f)
		assert.True(t, common.IsValidation(err), "filter %+v: got %v", f, err)
		_, err = s.ListInactiveUsers(ctx, f)
		assert.True(t, common.IsValidation(err), "filter %+v: got %v", f, err)
	}
}

func TestListInactiveUsers_Cutoff(t *testing.T) {
	s, clock := newTestUserService(t)
	ctx := context.Background()
	now := clock.Now()

	never := mustCreate(t, s, "Never", "never@example.com", models.RoleUser)
	fresh := mustCreate(t, s, "Fresh", "fresh@example.com", models.RoleUser)
	old := mustCreate(t, s, "Old", "old@example.com", models.RoleAdmin)
	recent := mustCreate(t, s, "Recent", "recent@example.com", models.RoleUser)
	ancient := mustCreate(t, s, "Ancient", "ancient@example.com", models.RoleUser)

	require.NoError(t, s.TouchLastLogin(ctx, fresh.ID, now))
	require.NoError(t, s.TouchLastLogin(ctx, old.ID, now.Add(-31*24*time.Hour)))
	require.NoError(t, s.TouchLastLogin(ctx, recent.ID, now.Add(-29*24*time.Hour)))
	require.NoError(t, s.TouchLastLogin(ctx, ancient.ID, now.Add(-90*24*time.Hour)))

	users, err := s.ListInactiveUsers(ctx, models.UserFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Never", "Ancient", "Old"}, names(users))
	assert.Nil(t, users[0].LastLogin)
	assert.Equal(t, never.ID, users[0].ID)

	users, err = s.ListInactiveUsers(ctx, models.UserFilter{Role: ptr(models.RoleAdmin)})
	require.NoError(t, err)
	assert.Equal(t, []string{"Old"}, names(users))

	users, err = s.ListInactiveUsers(ctx, models.UserFilter{SortBy: "lastLogin", Order: models.OrderDesc})
	require.NoError(t, err)
	assert.Equal(t, []string{"Old", "Ancient", "Never"}, names(users))
}

func TestTouchLastLogin(t *testing.T) {
	s, clock := newTestUserService(t)
	ctx := context.Background()
	u := mustCreate(t, s, "Gus", "gus@example.com", models.RoleUser)

	at := clock.Now().Add(5 * time.Minute)
	require.NoError(t, s.TouchLastLogin(ctx, u.ID, at))

	got, err := s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastLogin)
	assert.True(t, at.Equal(*got.LastLogin))
	assert.WithinDuration(t, u.UpdatedAt, got.UpdatedAt, 0, "login bookkeeping does not count as a profile update")

	assert.ErrorIs(t, s.TouchLastLogin(ctx, "missing", at), common.ErrNotFound)
}

func TestCountUsers(t *testing.T) {
	s, _ := seedListing(t)
	n, err := s.CountUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

// --- driver failures ---

func newMockUserService(t *testing.T) (*UserService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewUserService(db, database.SQLite, auth.NewPasswordHasher(bcrypt.MinCost, 1)), mock
}

func TestCreateUser_DBErrorIsWrapped(t *testing.T) {
	s, mock := newMockUserService(t)
	mock.ExpectExec(`(?s)INSERT\s+INTO\s+users`).WillReturnError(errors.New("disk I/O error"))

	_, err := s.CreateUser(context.Background(), models.UserDraft{Name: "A", Email: "a@example.com", Password: "password1"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrDuplicateEmail)
	assert.Regexp(t, regexp.MustCompile(`db error: .*disk I/O error`), err.Error())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserByID_DBErrorIsWrapped(t *testing.T) {
	s, mock := newMockUserService(t)
	mock.ExpectQuery(`SELECT .* FROM users WHERE id = \?`).WithArgs("u1").WillReturnError(errors.New("conn reset"))

	_, err := s.GetUserByID(context.Background(), "u1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrNotFound)
	assert.Contains(t, err.Error(), "db error")
}

func TestDeleteUser_DBErrorIsWrapped(t *testing.T) {
	s, mock := newMockUserService(t)
	mock.ExpectExec(`DELETE FROM users WHERE id = \?`).WithArgs("u1").WillReturnError(errors.New("locked"))

	err := s.DeleteUser(context.Background(), "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db error: locked")
}

func TestPostgresPlaceholders(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()
	s := NewUserService(db, database.Postgres, auth.NewPasswordHasher(bcrypt.MinCost, 1))

	mock.ExpectExec("UPDATE users SET last_login = $1 WHERE id = $2").
		WithArgs(sqlmock.AnyArg(), "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.TouchLastLogin(context.Background(), "u1", time.Now()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
