package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/isdelr/accounts-be/internal/models"
	"github.com/isdelr/accounts-be/internal/services"
	"github.com/isdelr/accounts-be/internal/websocket"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const reportTimeout = 30 * time.Second

// InactiveLister is the slice of the account store the reporter needs.
type InactiveLister interface {
	ListInactiveUsers(ctx context.Context, filter models.UserFilter) ([]models.User, error)
}

// InactiveAccount is one row of an inactivity report.
type InactiveAccount struct {
	ID        string      `json:"id"`
	Email     string      `json:"email"`
	Role      models.Role `json:"role"`
	LastLogin *time.Time  `json:"lastLogin"`
}

// InactiveReport summarises accounts that have not logged in recently.
type InactiveReport struct {
	Count       int               `json:"count"`
	Accounts    []InactiveAccount `json:"accounts"`
	GeneratedAt time.Time         `json:"generatedAt"`
}

// InactivityReporter periodically reports inactive accounts to the log and
// the event feed.
type InactivityReporter struct {
	users     InactiveLister
	publisher services.EventPublisher
	cron      *cron.Cron
	schedule  string
}

// NewInactivityReporter validates the cron schedule and builds a reporter.
// publisher may be nil.
func NewInactivityReporter(users InactiveLister, publisher services.EventPublisher, schedule string) (*InactivityReporter, error) {
	logger := cronLogger{}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	r := &InactivityReporter{users: users, publisher: publisher, cron: c, schedule: schedule}
	if _, err := c.AddFunc(schedule, r.run); err != nil {
		return nil, fmt.Errorf("invalid inactive report schedule %q: %w", schedule, err)
	}
	return r, nil
}

// Start begins running reports on schedule.
func (r *InactivityReporter) Start() {
	log.Info().Str("schedule", r.schedule).Msg("Starting inactivity reporter...")
	r.cron.Start()
}

// Stop halts the schedule and waits for a running report to finish.
func (r *InactivityReporter) Stop() {
	<-r.cron.Stop().Done()
	log.Info().Msg("Stopping inactivity reporter.")
}

func (r *InactivityReporter) run() {
	ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
	defer cancel()
	if _, err := r.Report(ctx); err != nil {
		log.Error().Err(err).Msg("InactivityReporter: Failed to build report")
	}
}

// Report lists inactive accounts, logs the count and publishes the report.
func (r *InactivityReporter) Report(ctx context.Context) (InactiveReport, error) {
	users, err := r.users.ListInactiveUsers(ctx, models.UserFilter{})
	if err != nil {
		return InactiveReport{}, err
	}

	report := InactiveReport{
		Count:       len(users),
		Accounts:    make([]InactiveAccount, 0, len(users)),
		GeneratedAt: time.Now().UTC(),
	}
	for _, u := range users {
		report.Accounts = append(report.Accounts, InactiveAccount{ID: u.ID, Email: u.Email, Role: u.Role, LastLogin: u.LastLogin})
	}

	log.Info().Int("inactive_accounts", report.Count).Msg("Inactive account report")
	if r.publisher != nil {
		r.publisher.Publish(websocket.ActionInactiveReport, report)
	}
	return report, nil
}

// cronLogger routes cron's internal logging through zerolog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
