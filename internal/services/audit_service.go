package services

import (
	"io"
	"sync"
	"time"

	"github.com/isdelr/accounts-be/internal/models"
	"github.com/isdelr/accounts-be/internal/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// EventPublisher pushes messages onto the admin event feed.
type EventPublisher interface {
	Publish(action string, payload interface{})
}

// AuditServiceProvider defines the interface for the audit recorder.
type AuditServiceProvider interface {
	Record(entry models.AuditRecord)
}

// AuditService writes audit records out-of-band. Record never blocks; a full
// buffer drops the entry.
type AuditService struct {
	entries   chan models.AuditRecord
	sink      zerolog.Logger
	publisher EventPublisher
	now       func() time.Time

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewAuditService creates an AuditService writing JSON lines to sink.
// publisher may be nil.
func NewAuditService(sink io.Writer, buffer int, publisher EventPublisher) *AuditService {
	if buffer < 1 {
		buffer = 1
	}
	return &AuditService{
		entries:   make(chan models.AuditRecord, buffer),
		sink:      zerolog.New(reportingWriter{w: sink}),
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
		done:      make(chan struct{}),
	}
}

// Record enqueues an entry for writing.
func (s *AuditService) Record(entry models.AuditRecord) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now()
	}
	select {
	case s.entries <- entry:
	default:
		log.Warn().Str("action", entry.Action).Str("target", entry.TargetAccountID).Msg("Audit buffer full, record dropped")
	}
}

// Start launches the writer goroutine.
func (s *AuditService) Start() {
	s.wg.Add(1)
	go s.run()
}

// Stop flushes queued records and waits for the writer to exit.
func (s *AuditService) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
	s.wg.Wait()
}

func (s *AuditService) run() {
	defer s.wg.Done()
	log.Info().Msg("Starting audit recorder...")
	for {
		select {
		case entry := <-s.entries:
			s.write(entry)
		case <-s.done:
			for {
				select {
				case entry := <-s.entries:
					s.write(entry)
				default:
					log.Info().Msg("Stopping audit recorder.")
					return
				}
			}
		}
	}
}

func (s *AuditService) write(entry models.AuditRecord) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("action", entry.Action).Msg("Recovered while writing audit record")
		}
	}()

	event := s.sink.Log().
		Str("performedBy", entry.PerformedBy).
		Str("action", entry.Action).
		Str("targetAccountId", entry.TargetAccountID)
	if len(entry.Changes) > 0 {
		event = event.Interface("changes", entry.Changes)
	}
	event.Time("timestamp", entry.Timestamp).Send()

	if s.publisher != nil {
		s.publisher.Publish(websocket.ActionAudit, entry)
	}
}

// reportingWriter logs sink failures instead of surfacing them.
type reportingWriter struct {
	w io.Writer
}

func (rw reportingWriter) Write(p []byte) (int, error) {
	if _, err := rw.w.Write(p); err != nil {
		log.Error().Err(err).Msg("Failed to write audit record")
	}
	return len(p), nil
}
