package links

import (
	"context"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/pressroom/pressroom/internal/shared"
)

// AuditRecorder receives link submissions.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service validates and stores link submissions.
type Service struct {
	repo      Repository
	audit     AuditRecorder
	logger    *slog.Logger
	validator *validator.Validate
	ids       *idGenerator
}

// NewService constructs a Service. audit may be nil.
func NewService(repo Repository, audit AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		audit:     audit,
		logger:    logger,
		validator: shared.NewValidator(),
		ids:       newIDGenerator(),
	}
}

// List returns all links.
func (s *Service) List(ctx context.Context) ([]Link, error) {
	return s.repo.List(ctx)
}

// Submit validates in and persists it as a new link. Nothing is written when
// validation fails.
func (s *Service) Submit(ctx context.Context, actorID int64, in Input) (Link, error) {
	in = normalise(in)
	if err := shared.ValidateStruct(s.validator, in); err != nil {
		return Link{}, err
	}
	l, err := s.repo.Create(ctx, Link{
		ID:          s.ids.New(),
		Title:       in.Title,
		URL:         in.URL,
		Description: in.Description,
	})
	if err != nil {
		return Link{}, err
	}
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "link.created",
			Entity:   "link",
			EntityID: l.ID,
			Meta:     map[string]any{"url": l.URL},
		}); err != nil {
			s.logger.Warn("links audit", slog.Any("error", err))
		}
	}
	return l, nil
}

func normalise(in Input) Input {
	in.Title = strings.TrimSpace(in.Title)
	in.URL = strings.TrimSpace(in.URL)
	in.Description = strings.TrimSpace(in.Description)
	return in
}
