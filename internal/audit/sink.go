package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/wildhaven/wildhaven/internal/directory"
)

// Writer persists entries.
type Writer interface {
	Insert(ctx context.Context, e Entry) error
}

// PersonLookup resolves actor name and email. Implemented by
// *directory.Client.
type PersonLookup interface {
	Person(ctx context.Context, principalID string) (*directory.Person, error)
}

// Enqueuer hands entries to the background queue. Implemented by
// *jobs.Client.
type Enqueuer interface {
	EnqueueAuditWrite(ctx context.Context, e Entry) error
}

const writeTimeout = 5 * time.Second

// Sink records privileged mutations. Record is fire-and-forget: the entry is
// handed to the queue when one is configured, otherwise written from a
// detached goroutine. No failure on this path ever reaches the caller.
type Sink struct {
	writer   Writer
	lookup   PersonLookup
	enqueuer Enqueuer
	logger   *slog.Logger
}

// NewSink constructs a Sink. lookup and enqueuer may be nil.
func NewSink(writer Writer, lookup PersonLookup, enqueuer Enqueuer, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{writer: writer, lookup: lookup, enqueuer: enqueuer, logger: logger}
}

// Record accepts an entry for asynchronous persistence. Safe on a nil Sink.
func (s *Sink) Record(ctx context.Context, e Entry) {
	if s == nil {
		return
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if s.enqueuer != nil {
		if err := s.enqueuer.EnqueueAuditWrite(ctx, e); err == nil {
			return
		} else {
			s.logger.Warn("audit enqueue failed, writing inline",
				slog.String("action", e.Action), slog.Any("error", err))
		}
	}
	// Detached from the request: the triggering action must not wait on,
	// or fail because of, the audit write.
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
		defer cancel()
		s.Write(ctx, e)
	}()
}

// Write enriches and persists one entry synchronously. Used by the queue
// worker and the detached path; failures are logged, never returned.
func (s *Sink) Write(ctx context.Context, e Entry) {
	if s.lookup != nil && e.ActorName == nil && e.ActorEmail == nil {
		if person, err := s.lookup.Person(ctx, e.ActorID); err != nil {
			s.logger.Warn("audit actor lookup failed",
				slog.String("actor", e.ActorID), slog.Any("error", err))
		} else {
			if person.Name != "" {
				e.ActorName = &person.Name
			}
			if person.Email != "" {
				e.ActorEmail = &person.Email
			}
		}
	}
	if err := s.writer.Insert(ctx, e); err != nil {
		s.logger.Error("audit write failed",
			slog.String("action", e.Action),
			slog.String("entity_type", e.EntityType),
			slog.String("tenant", e.TenantID.String()),
			slog.Any("error", err))
	}
}
