package posts

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pressroom/pressroom/internal/shared"
)

// memoryRepo is an in-process Repository for service and handler tests.
type memoryRepo struct {
	mu     sync.Mutex
	nextID int64
	posts  map[int64]Post
	clock  time.Time
	calls  map[string]int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		posts: make(map[int64]Post),
		clock: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		calls: make(map[string]int),
	}
}

func (m *memoryRepo) tick() time.Time {
	m.clock = m.clock.Add(time.Minute)
	return m.clock
}

func (m *memoryRepo) Find(_ context.Context, id int64) (Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["find"]++
	p, ok := m.posts[id]
	if !ok {
		return Post{}, shared.ErrNotFound
	}
	return p, nil
}

func (m *memoryRepo) Create(_ context.Context, p Post) (Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	now := m.tick()
	p.ID = m.nextID
	p.Published = false
	p.CreatedAt = now
	p.UpdatedAt = now
	m.posts[p.ID] = p
	return p, nil
}

func (m *memoryRepo) Update(_ context.Context, id int64, title, slug, body string) (Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return Post{}, shared.ErrNotFound
	}
	p.Title, p.Slug, p.Body = title, slug, body
	p.UpdatedAt = m.tick()
	m.posts[id] = p
	return p, nil
}

func (m *memoryRepo) SetPublished(_ context.Context, id int64, published bool) (Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["set_published"]++
	p, ok := m.posts[id]
	if !ok {
		return Post{}, shared.ErrNotFound
	}
	p.Published = published
	m.posts[id] = p
	return p, nil
}

func (m *memoryRepo) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.posts, id)
	return nil
}

func (m *memoryRepo) ListPublished(_ context.Context, page shared.PageRequest) ([]Post, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["list_published"]++
	return m.page(func(p Post) bool { return p.Published }, page)
}

func (m *memoryRepo) ListUnpublished(_ context.Context, ownerID int64, page shared.PageRequest) ([]Post, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.page(func(p Post) bool {
		return !p.Published && (ownerID == 0 || p.UserID == ownerID)
	}, page)
}

func (m *memoryRepo) page(keep func(Post) bool, page shared.PageRequest) ([]Post, int, error) {
	var matched []Post
	for _, p := range m.posts {
		if keep(p) {
			matched = append(matched, p)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	total := len(matched)
	start := page.Offset()
	if start > total {
		start = total
	}
	end := start + page.PerPage
	if end > total {
		end = total
	}
	return append([]Post{}, matched[start:end]...), total, nil
}

type auditSpy struct {
	mu      sync.Mutex
	actions []string
}

func (a *auditSpy) Record(_ context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, log.Action)
	return nil
}
