package posts

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/pressroom/pressroom/internal/rbac"
	"github.com/pressroom/pressroom/internal/shared"
)

// AuditRecorder receives lifecycle events. Failures are logged, never fatal.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ServiceConfig tunes listings.
type ServiceConfig struct {
	PerPage int
}

// Service implements the post lifecycle on top of a Repository.
type Service struct {
	repo      Repository
	cache     *Cache
	audit     AuditRecorder
	logger    *slog.Logger
	validator *validator.Validate
	perPage   int
}

// NewService constructs a Service. cache and audit may be nil.
func NewService(repo Repository, cache *Cache, audit AuditRecorder, logger *slog.Logger, cfg ServiceConfig) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	perPage := cfg.PerPage
	if perPage <= 0 {
		perPage = shared.DefaultPerPage
	}
	return &Service{
		repo:      repo,
		cache:     cache,
		audit:     audit,
		logger:    logger,
		validator: shared.NewValidator(),
		perPage:   perPage,
	}
}

// ListPublished returns one page of published posts, newest first.
func (s *Service) ListPublished(ctx context.Context, page int) (Page, error) {
	req := shared.NewPageRequest(page, s.perPage)
	load := func(ctx context.Context) (Page, error) {
		list, total, err := s.repo.ListPublished(ctx, req)
		if err != nil {
			return Page{}, err
		}
		return Page{Posts: list, Pagination: shared.NewPagination(req.Page, req.PerPage, total)}, nil
	}
	if s.cache == nil {
		return load(ctx)
	}
	key, err := s.cache.PageKey(ctx, req.Page, req.PerPage)
	if err != nil {
		s.logger.Warn("posts cache key", slog.Any("error", err))
		return load(ctx)
	}
	return s.cache.FetchPage(ctx, key, load)
}

// ListDrafts returns unpublished posts visible to u. Editors see every draft;
// everyone else sees only their own. The boolean reports which view applied.
func (s *Service) ListDrafts(ctx context.Context, u *rbac.User, page int) (Page, bool, error) {
	if u == nil {
		return Page{}, false, shared.ErrUnauthenticated
	}
	all := rbac.Authorize(u, rbac.ActionSeeAllDrafts, nil)
	ownerID := u.ID
	if all {
		ownerID = 0
	}
	req := shared.NewPageRequest(page, s.perPage)
	list, total, err := s.repo.ListUnpublished(ctx, ownerID, req)
	if err != nil {
		return Page{}, all, err
	}
	return Page{Posts: list, Pagination: shared.NewPagination(req.Page, req.PerPage, total)}, all, nil
}

// Create stores a new draft owned by u.
func (s *Service) Create(ctx context.Context, u *rbac.User, in Input) (Post, error) {
	if err := rbac.Check(u, rbac.ActionCreatePost, nil); err != nil {
		return Post{}, err
	}
	in = normalise(in)
	if err := shared.ValidateStruct(s.validator, in); err != nil {
		return Post{}, err
	}
	p, err := s.repo.Create(ctx, Post{
		UserID: u.ID,
		Title:  in.Title,
		Slug:   Slugify(in.Title),
		Body:   in.Body,
	})
	if err != nil {
		return Post{}, err
	}
	s.record(ctx, u, "post.created", p)
	return p, nil
}

// Get fetches a post without any visibility check.
func (s *Service) Get(ctx context.Context, id int64) (Post, error) {
	return s.repo.Find(ctx, id)
}

// Edit returns the post for its edit form when u may update it.
func (s *Service) Edit(ctx context.Context, u *rbac.User, id int64) (Post, error) {
	p, err := s.repo.Find(ctx, id)
	if err != nil {
		return Post{}, err
	}
	if err := rbac.Check(u, rbac.ActionUpdatePost, p); err != nil {
		return Post{}, err
	}
	return p, nil
}

// Update rewrites title, slug and body. The owner never changes.
func (s *Service) Update(ctx context.Context, u *rbac.User, id int64, in Input) (Post, error) {
	p, err := s.Edit(ctx, u, id)
	if err != nil {
		return Post{}, err
	}
	in = normalise(in)
	if err := shared.ValidateStruct(s.validator, in); err != nil {
		return p, err
	}
	updated, err := s.repo.Update(ctx, p.ID, in.Title, Slugify(in.Title), in.Body)
	if err != nil {
		return Post{}, err
	}
	s.record(ctx, u, "post.updated", updated)
	return updated, nil
}

// Publish marks the post visible to everyone.
func (s *Service) Publish(ctx context.Context, u *rbac.User, id int64) (Post, error) {
	return s.setPublished(ctx, u, id, true)
}

// Unpublish returns the post to draft.
func (s *Service) Unpublish(ctx context.Context, u *rbac.User, id int64) (Post, error) {
	return s.setPublished(ctx, u, id, false)
}

func (s *Service) setPublished(ctx context.Context, u *rbac.User, id int64, published bool) (Post, error) {
	p, err := s.repo.Find(ctx, id)
	if err != nil {
		return Post{}, err
	}
	if err := rbac.Check(u, rbac.ActionPublishPost, p); err != nil {
		return Post{}, err
	}
	if p.Published == published {
		return p, nil
	}
	updated, err := s.repo.SetPublished(ctx, p.ID, published)
	if err != nil {
		return Post{}, err
	}
	action := "post.unpublished"
	if published {
		action = "post.published"
	}
	s.record(ctx, u, action, updated)
	return updated, nil
}

// Show returns a post if u may read it. Published posts are public; drafts are
// limited to their owner and to editors.
func (s *Service) Show(ctx context.Context, u *rbac.User, id int64) (Post, error) {
	p, err := s.repo.Find(ctx, id)
	if err != nil {
		return Post{}, err
	}
	if p.Published {
		return p, nil
	}
	if u != nil && (p.UserID == u.ID || rbac.Authorize(u, rbac.ActionSeeAllDrafts, nil)) {
		return p, nil
	}
	return Post{}, shared.ErrForbidden
}

// Delete removes the post permanently.
func (s *Service) Delete(ctx context.Context, u *rbac.User, id int64) error {
	p, err := s.repo.Find(ctx, id)
	if err != nil {
		return err
	}
	if err := rbac.Check(u, rbac.ActionDeletePost, p); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, p.ID); err != nil {
		return err
	}
	s.record(ctx, u, "post.deleted", p)
	return nil
}

// record writes the audit entry and invalidates cached listings.
func (s *Service) record(ctx context.Context, u *rbac.User, action string, p Post) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("posts cache bump", slog.Any("error", err))
	}
	if s.audit == nil {
		return
	}
	var actor int64
	if u != nil {
		actor = u.ID
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor,
		Action:   action,
		Entity:   "post",
		EntityID: strconv.FormatInt(p.ID, 10),
		Meta:     map[string]any{"slug": p.Slug, "published": p.Published},
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("posts audit", slog.String("action", action), slog.Any("error", err))
	}
}

func normalise(in Input) Input {
	in.Title = strings.TrimSpace(in.Title)
	in.Body = strings.TrimSpace(in.Body)
	return in
}
