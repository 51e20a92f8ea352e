package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/white/crm-backend/internal/cache"
	"github.com/white/crm-backend/internal/models"
	"github.com/white/crm-backend/internal/repositories"
	"github.com/white/crm-backend/pkg/smtp"
	"github.com/white/crm-backend/pkg/uuid"
)

type fakeActivityRepo struct {
	mu    sync.Mutex
	items map[string]*models.Activity
}

func newFakeActivityRepo() *fakeActivityRepo {
	return &fakeActivityRepo{items: map[string]*models.Activity{}}
}

func (f *fakeActivityRepo) Create(_ context.Context, a *models.Activity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	a.ID = uuid.MustNewUUID()
	a.CreatedAt, a.UpdatedAt = now, now
	f.items[a.ID] = a.Clone()
	return nil
}

func (f *fakeActivityRepo) GetByID(_ context.Context, tenantID, id string) (*models.Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.items[id]
	if !ok || a.TenantID != tenantID {
		return nil, repositories.NotFound(repositories.ErrActivityNotFound)
	}
	return a.Clone(), nil
}

func (f *fakeActivityRepo) List(_ context.Context, tenantID string, filter models.ActivityFilter) ([]*models.Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*models.Activity{}
	for _, a := range f.items {
		if a.TenantID != tenantID || (filter.Type != "" && a.Type != filter.Type) {
			continue
		}
		out = append(out, a.Clone())
	}
	return out, nil
}

func (f *fakeActivityRepo) Update(_ context.Context, a *models.Activity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cur, ok := f.items[a.ID]; !ok || cur.TenantID != a.TenantID {
		return repositories.NotFound(repositories.ErrActivityNotFound)
	}
	a.UpdatedAt = time.Now().UTC()
	f.items[a.ID] = a.Clone()
	return nil
}

func (f *fakeActivityRepo) Delete(_ context.Context, tenantID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cur, ok := f.items[id]; !ok || cur.TenantID != tenantID {
		return repositories.NotFound(repositories.ErrActivityNotFound)
	}
	delete(f.items, id)
	return nil
}

func (f *fakeActivityRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

// fakeStatsCache records how often each tenant was invalidated.
type fakeStatsCache struct {
	mu          sync.Mutex
	entries     map[string]*models.ActivityStats
	invalidated map[string]int
	sets        int
}

func newFakeStatsCache() *fakeStatsCache {
	return &fakeStatsCache{entries: map[string]*models.ActivityStats{}, invalidated: map[string]int{}}
}

func (c *fakeStatsCache) Get(_ context.Context, tenantID string) (*models.ActivityStats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.entries[tenantID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return s, nil
}

func (c *fakeStatsCache) Set(_ context.Context, tenantID string, stats *models.ActivityStats) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[tenantID] = stats
	c.sets++
	return nil
}

func (c *fakeStatsCache) Invalidate(_ context.Context, tenantID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, tenantID)
	c.invalidated[tenantID]++
	return nil
}

type fakeContactRepo struct {
	items []*models.Contact
}

func (f *fakeContactRepo) Create(_ context.Context, c *models.Contact) error {
	c.ID = uuid.MustNewUUID()
	c.CreatedAt = time.Now().UTC()
	f.items = append(f.items, c)
	return nil
}

func (f *fakeContactRepo) GetByID(_ context.Context, tenantID, id string) (*models.Contact, error) {
	for _, c := range f.items {
		if c.ID == id && c.TenantID == tenantID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, repositories.NotFound(repositories.ErrContactNotFound)
}

func (f *fakeContactRepo) List(_ context.Context, tenantID string, q models.ContactQuery) ([]*models.Contact, int64, error) {
	var matched []*models.Contact
	for _, c := range f.items {
		if c.TenantID != tenantID {
			continue
		}
		if q.Search != "" && !strings.Contains(strings.ToLower(c.FullName()+" "+c.Email), strings.ToLower(q.Search)) {
			continue
		}
		matched = append(matched, c)
	}
	total := int64(len(matched))
	if q.Limit > 0 {
		start := (q.Page - 1) * q.Limit
		if start > len(matched) {
			start = len(matched)
		}
		end := start + q.Limit
		if end > len(matched) {
			end = len(matched)
		}
		matched = matched[start:end]
	}
	return matched, total, nil
}

func (f *fakeContactRepo) Update(_ context.Context, c *models.Contact) error {
	for i, cur := range f.items {
		if cur.ID == c.ID && cur.TenantID == c.TenantID {
			f.items[i] = c
			return nil
		}
	}
	return repositories.NotFound(repositories.ErrContactNotFound)
}

func (f *fakeContactRepo) Delete(_ context.Context, tenantID, id string) error {
	for i, cur := range f.items {
		if cur.ID == id && cur.TenantID == tenantID {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return nil
		}
	}
	return repositories.NotFound(repositories.ErrContactNotFound)
}

func (f *fakeContactRepo) Count(ctx context.Context, tenantID string) (int64, error) {
	_, total, err := f.List(ctx, tenantID, models.ContactQuery{})
	return total, err
}

type fakeDealRepo struct {
	pipelines []*models.Pipeline
	deals     map[string]*models.Deal
}

func newFakeDealRepo() *fakeDealRepo {
	return &fakeDealRepo{deals: map[string]*models.Deal{}}
}

func (f *fakeDealRepo) CreatePipeline(_ context.Context, p *models.Pipeline) error {
	if p.IsDefault {
		for _, existing := range f.pipelines {
			if existing.TenantID == p.TenantID && existing.IsDefault {
				return fmt.Errorf("tenant already has a default pipeline: %w", repositories.ErrDuplicateKey)
			}
		}
	}
	p.ID = uuid.MustNewUUID()
	for i := range p.Stages {
		if p.Stages[i].ID == "" {
			p.Stages[i].ID = uuid.MustNewUUID()
		}
	}
	f.pipelines = append(f.pipelines, p)
	return nil
}

func (f *fakeDealRepo) GetPipeline(_ context.Context, tenantID, id string) (*models.Pipeline, error) {
	for _, p := range f.pipelines {
		if p.ID == id && p.TenantID == tenantID {
			return p, nil
		}
	}
	return nil, repositories.NotFound(repositories.ErrPipelineNotFound)
}

func (f *fakeDealRepo) ListPipelines(_ context.Context, tenantID string) ([]*models.Pipeline, error) {
	var out []*models.Pipeline
	for _, p := range f.pipelines {
		if p.TenantID == tenantID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeDealRepo) CreateDeal(_ context.Context, d *models.Deal) error {
	d.ID = uuid.MustNewUUID()
	cp := *d
	f.deals[d.ID] = &cp
	return nil
}

func (f *fakeDealRepo) GetDeal(_ context.Context, tenantID, id string) (*models.Deal, error) {
	d, ok := f.deals[id]
	if !ok || d.TenantID != tenantID {
		return nil, repositories.NotFound(repositories.ErrDealNotFound)
	}
	cp := *d
	return &cp, nil
}

func (f *fakeDealRepo) ListDeals(_ context.Context, tenantID string, _ models.DealFilter) ([]*models.Deal, error) {
	var out []*models.Deal
	for _, d := range f.deals {
		if d.TenantID == tenantID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeDealRepo) UpdateDeal(_ context.Context, d *models.Deal) error {
	if _, ok := f.deals[d.ID]; !ok {
		return repositories.NotFound(repositories.ErrDealNotFound)
	}
	cp := *d
	f.deals[d.ID] = &cp
	return nil
}

func (f *fakeDealRepo) DeleteDeal(_ context.Context, tenantID, id string) error {
	if d, ok := f.deals[id]; !ok || d.TenantID != tenantID {
		return repositories.NotFound(repositories.ErrDealNotFound)
	}
	delete(f.deals, id)
	return nil
}

type fakeEmailRepo struct {
	items map[string]*models.EmailRecord
}

func newFakeEmailRepo() *fakeEmailRepo {
	return &fakeEmailRepo{items: map[string]*models.EmailRecord{}}
}

func (f *fakeEmailRepo) Create(_ context.Context, e *models.EmailRecord) error {
	if e.ID == "" {
		e.ID = uuid.MustNewUUID()
	}
	for _, cur := range f.items {
		if e.MessageID != "" && cur.TenantID == e.TenantID && cur.MessageID == e.MessageID {
			return repositories.ErrDuplicateKey
		}
	}
	cp := *e
	f.items[e.ID] = &cp
	return nil
}

func (f *fakeEmailRepo) GetByID(_ context.Context, tenantID, id string) (*models.EmailRecord, error) {
	e, ok := f.items[id]
	if !ok || e.TenantID != tenantID {
		return nil, repositories.NotFound(repositories.ErrEmailNotFound)
	}
	cp := *e
	return &cp, nil
}

func (f *fakeEmailRepo) GetByMessageID(_ context.Context, tenantID, messageID string) (*models.EmailRecord, error) {
	for _, e := range f.items {
		if e.TenantID == tenantID && e.MessageID == messageID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, repositories.NotFound(repositories.ErrEmailNotFound)
}

func (f *fakeEmailRepo) List(_ context.Context, tenantID string, limit int) ([]*models.EmailRecord, error) {
	out := []*models.EmailRecord{}
	for _, e := range f.items {
		if e.TenantID == tenantID {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeEmailRepo) MarkRead(_ context.Context, tenantID, id string, at time.Time) error {
	e, ok := f.items[id]
	if !ok || e.TenantID != tenantID {
		return repositories.NotFound(repositories.ErrEmailNotFound)
	}
	if e.ReadAt == nil {
		e.ReadAt = &at
	}
	return nil
}

func (f *fakeEmailRepo) UpdateStatus(_ context.Context, e *models.EmailRecord) error {
	cur, ok := f.items[e.ID]
	if !ok {
		return repositories.NotFound(repositories.ErrEmailNotFound)
	}
	cur.Status, cur.FailureReason, cur.SentAt = e.Status, e.FailureReason, e.SentAt
	return nil
}

func (f *fakeEmailRepo) Delete(_ context.Context, tenantID, id string) error {
	if e, ok := f.items[id]; !ok || e.TenantID != tenantID {
		return repositories.NotFound(repositories.ErrEmailNotFound)
	}
	delete(f.items, id)
	return nil
}

type fakeUserRepo struct {
	users     map[string]*models.User
	lastLogin map[string]time.Time
}

func newFakeUserRepo(users ...*models.User) *fakeUserRepo {
	f := &fakeUserRepo{users: map[string]*models.User{}, lastLogin: map[string]time.Time{}}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, repositories.NotFound(repositories.ErrUserNotFound)
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repositories.NotFound(repositories.ErrUserNotFound)
}

func (f *fakeUserRepo) ListByTenant(_ context.Context, tenantID string) ([]*models.User, error) {
	var out []*models.User
	for _, u := range f.users {
		if u.TenantID == tenantID && u.IsActive {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeUserRepo) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	f.lastLogin[id] = at
	return nil
}

func (f *fakeUserRepo) Delete(_ context.Context, tenantID, id string) error {
	u, ok := f.users[id]
	if !ok || u.TenantID != tenantID {
		return repositories.NotFound(repositories.ErrUserNotFound)
	}
	delete(f.users, id)
	return nil
}

type fakeSessionRepo struct {
	sessions map[string]*models.Session
	revoked  []string
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: map[string]*models.Session{}}
}

func (f *fakeSessionRepo) Create(_ context.Context, s *models.Session) error {
	cp := *s
	f.sessions[s.TokenHash] = &cp
	return nil
}

func (f *fakeSessionRepo) GetByTokenHash(_ context.Context, hash string) (*models.Session, error) {
	s, ok := f.sessions[hash]
	if !ok {
		return nil, repositories.NotFound(repositories.ErrSessionNotFound)
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessionRepo) Revoke(_ context.Context, id string) error {
	for _, s := range f.sessions {
		if s.ID == id {
			now := time.Now()
			s.RevokedAt = &now
			return nil
		}
	}
	return repositories.NotFound(repositories.ErrSessionNotFound)
}

func (f *fakeSessionRepo) RevokeAllForUser(_ context.Context, userID string) error {
	for _, s := range f.sessions {
		if s.UserID == userID && s.RevokedAt == nil {
			now := time.Now()
			s.RevokedAt = &now
		}
	}
	f.revoked = append(f.revoked, userID)
	return nil
}

type fakeSocialRepo struct {
	accounts []*models.SocialAccount
	posts    []*models.SocialPost
}

func (f *fakeSocialRepo) ListAccounts(_ context.Context, tenantID string) ([]*models.SocialAccount, error) {
	var out []*models.SocialAccount
	for _, a := range f.accounts {
		if a.TenantID == tenantID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeSocialRepo) GetAccount(_ context.Context, tenantID, id string) (*models.SocialAccount, error) {
	for _, a := range f.accounts {
		if a.ID == id && a.TenantID == tenantID {
			return a, nil
		}
	}
	return nil, repositories.NotFound(repositories.ErrSocialAccountNotFound)
}

func (f *fakeSocialRepo) DeleteAccount(_ context.Context, tenantID, id string) error {
	for i, a := range f.accounts {
		if a.ID == id && a.TenantID == tenantID {
			f.accounts = append(f.accounts[:i], f.accounts[i+1:]...)
			return nil
		}
	}
	return repositories.NotFound(repositories.ErrSocialAccountNotFound)
}

func (f *fakeSocialRepo) CreatePost(_ context.Context, p *models.SocialPost) error {
	p.ID = uuid.MustNewUUID()
	f.posts = append(f.posts, p)
	return nil
}

func (f *fakeSocialRepo) ListPosts(_ context.Context, tenantID string) ([]*models.SocialPost, error) {
	return f.posts, nil
}

func (f *fakeSocialRepo) ListLeads(_ context.Context, tenantID string) ([]*models.Lead, error) {
	return nil, nil
}

// fakeMailer records sends and fails for addresses listed in fail.
type fakeMailer struct {
	from string
	sent []smtp.Message
	fail map[string]error
}

func (m *fakeMailer) FromAddress() string { return m.from }

func (m *fakeMailer) Send(_ context.Context, msg smtp.Message) error {
	for _, to := range msg.To {
		if err := m.fail[to]; err != nil {
			return err
		}
	}
	m.sent = append(m.sent, msg)
	return nil
}

type publishedEvent struct {
	topic, key string
	data       interface{}
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *fakePublisher) PublishJSON(topic, key string, data interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{topic, key, data})
	return nil
}
