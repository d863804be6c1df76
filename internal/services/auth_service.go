package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/accounts-be/internal/common"
	"github.com/isdelr/accounts-be/internal/models"
	"github.com/rs/zerolog/log"
)

// lastLoginTimeout bounds the background lastLogin write.
const lastLoginTimeout = 5 * time.Second

// TokenGenerator mints session tokens.
type TokenGenerator interface {
	GenerateJWT(user models.User) (string, error)
}

// LoginUser is the public view of the account returned on login.
type LoginUser struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	AccessToken string    `json:"access_token"`
	User        LoginUser `json:"user"`
}

// AuthServiceProvider defines the interface for the session issuer.
type AuthServiceProvider interface {
	Register(ctx context.Context, draft models.UserDraft) (models.User, error)
	Login(ctx context.Context, email, password string) (LoginResult, error)
}

// AuthService validates credentials and issues session tokens.
type AuthService struct {
	users  UserServiceProvider
	hasher PasswordHasher
	tokens TokenGenerator
	now    func() time.Time
	wg     sync.WaitGroup

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService creates a new AuthService.
func NewAuthService(users UserServiceProvider, hasher PasswordHasher, tokens TokenGenerator) *AuthService {
	return &AuthService{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Register creates a new account. The returned user never carries the hash.
func (s *AuthService) Register(ctx context.Context, draft models.UserDraft) (models.User, error) {
	draft.LastLogin = nil
	user, err := s.users.CreateUser(ctx, draft)
	if err != nil {
		return models.User{}, err
	}
	return user.Sanitized(), nil
}

// Login verifies credentials and returns a signed token. An unknown email and
// a wrong password both produce common.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			// burn a comparison so unknown emails take as long as bad passwords
			s.hasher.Verify(ctx, password, s.dummy())
			log.Debug().Msg("Login rejected: unknown account")
			return LoginResult{}, common.ErrInvalidCredentials
		}
		return LoginResult{}, fmt.Errorf("failed to look up account: %w", err)
	}

	if !s.hasher.Verify(ctx, password, user.PasswordHash) {
		log.Debug().Str("user_id", user.ID).Msg("Login rejected: password mismatch")
		return LoginResult{}, common.ErrInvalidCredentials
	}

	token, err := s.tokens.GenerateJWT(user)
	if err != nil {
		return LoginResult{}, fmt.Errorf("failed to generate token: %w", err)
	}

	s.recordLogin(ctx, user.ID)

	return LoginResult{
		AccessToken: token,
		User: LoginUser{
			ID:    user.ID,
			Name:  user.Name,
			Email: user.Email,
			Role:  user.Role,
		},
	}, nil
}

func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash(context.Background(), uuid.NewString())
		if err != nil {
			log.Warn().Err(err).Msg("Failed to prepare dummy password hash")
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

// recordLogin updates lastLogin in the background. Failures are logged only.
func (s *AuthService) recordLogin(ctx context.Context, userID string) {
	at := s.now()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lastLoginTimeout)
		defer cancel()

		if err := s.users.TouchLastLogin(ctx, userID, at); err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("Failed to update last login")
		}
	}()
}

// Wait blocks until pending lastLogin updates have finished.
func (s *AuthService) Wait() {
	s.wg.Wait()
}
