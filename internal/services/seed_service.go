package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/accounts-be/internal/models"
	"github.com/rs/zerolog/log"
)

// DemoUserEmail is the stale account created when demo users are enabled.
const DemoUserEmail = "usuario@example.com"

// demoUserAge makes the demo account show up in the inactive report.
const demoUserAge = 61 * 24 * time.Hour

// SeedOptions controls bootstrap data.
type SeedOptions struct {
	AdminEmail    string
	AdminPassword string
	DemoUsers     bool
}

// SeedService bootstraps an empty account store.
type SeedService struct {
	users UserServiceProvider
	opts  SeedOptions
	now   func() time.Time
}

// NewSeedService creates a new SeedService.
func NewSeedService(users UserServiceProvider, opts SeedOptions) *SeedService {
	return &SeedService{
		users: users,
		opts:  opts,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Seed creates the initial admin (and optionally a demo user) when no accounts
// exist. It is a no-op otherwise.
func (s *SeedService) Seed(ctx context.Context) error {
	count, err := s.users.CountUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to count users: %w", err)
	}
	if count > 0 {
		log.Debug().Int("users", count).Msg("Account store already populated, skipping seed")
		return nil
	}

	password := s.opts.AdminPassword
	generated := password == ""
	if generated {
		password = uuid.NewString()
	}

	now := s.now()
	admin, err := s.users.CreateUser(ctx, models.UserDraft{
		Name:      "Admin",
		Email:     s.opts.AdminEmail,
		Password:  password,
		Role:      models.RoleAdmin,
		LastLogin: &now,
	})
	if err != nil {
		return fmt.Errorf("failed to seed admin: %w", err)
	}

	event := log.Info().Str("user_id", admin.ID).Str("email", admin.Email)
	if generated {
		event = event.Str("password", password)
	}
	event.Msg("Seeded admin account")

	if !s.opts.DemoUsers {
		return nil
	}
	stale := now.Add(-demoUserAge)
	demo, err := s.users.CreateUser(ctx, models.UserDraft{
		Name:      "Usuario",
		Email:     DemoUserEmail,
		Password:  password,
		Role:      models.RoleUser,
		LastLogin: &stale,
	})
	if err != nil {
		return fmt.Errorf("failed to seed demo user: %w", err)
	}
	log.Info().Str("user_id", demo.ID).Str("email", demo.Email).Msg("Seeded demo account")
	return nil
}
