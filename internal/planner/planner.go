// Package planner is the application service: it loads warehouses and
// inventory from the store, runs the allocation engine and records results.
package planner

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/viant/afs"

	"stowplan/internal/config"
	"stowplan/internal/events"
	"stowplan/internal/logging"
	"stowplan/internal/observability"
	"stowplan/internal/repo"
)

var (
	// ErrInvalidInput wraps request problems the caller can fix.
	ErrInvalidInput = errors.New("invalid input")
	ErrNoZones      = errors.New("warehouse has no zones defined")
	ErrNoItems      = errors.New("inventory upload has no items")
)

type Service struct {
	DB      *sql.DB
	Repo    repo.Repo
	Events  events.Writer
	Config  *config.Config
	Logger  logging.Logger
	Metrics *observability.Metrics
	FS      afs.Service
	Now     func() time.Time
}

type Option func(*Service)

func WithLogger(l logging.Logger) Option {
	return func(s *Service) { s.Logger = l }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.Metrics = m }
}

// WithFS sets the storage service used for report export.
func WithFS(fs afs.Service) Option {
	return func(s *Service) { s.FS = fs }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.Now = now
		s.Events.Now = now
	}
}

func New(db *sql.DB, cfg *config.Config, opts ...Option) Service {
	if cfg == nil {
		cfg = config.Default()
	}
	s := Service{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{},
		Config: cfg,
		Logger: logging.Noop(),
		Now:    time.Now,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.FS == nil {
		s.FS = afs.New()
	}
	return s
}

func (s Service) clock() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s Service) now() string { return s.clock().Format(time.RFC3339) }

func newID() string { return uuid.NewString() }

// inTx runs fn in a transaction and commits when it returns nil.
func (s Service) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

type actorKey struct{}

// WithActor tags ctx with the actor recorded on events.
func WithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorKey{}, actorID)
}

func actor(ctx context.Context) string {
	if id, ok := ctx.Value(actorKey{}).(string); ok && id != "" {
		return id
	}
	return "system"
}
