package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"campus-events/config"
	"campus-events/internal/model"
	"campus-events/internal/repository"
	pkgerrors "campus-events/pkg/errors"
	"campus-events/pkg/jwt"
	"campus-events/pkg/kafka"
	"campus-events/pkg/metrics"
	"campus-events/pkg/tracing"
)

// ── 测试辅助：内存实现的 Repository ──
// 每个方法在互斥锁内完成，条件更新与数据库中的单条 UPDATE 一样是原子的

func cloneUser(u *model.User) *model.User {
	c := *u
	c.Preferences = append(model.StringArray{}, u.Preferences...)
	c.RegisteredEvents = append(model.StringArray{}, u.RegisteredEvents...)
	return &c
}

func cloneEvent(e *model.Event) *model.Event {
	c := *e
	c.RegisteredUsers = append(model.StringArray{}, e.RegisteredUsers...)
	if e.Capacity != nil {
		n := *e.Capacity
		c.Capacity = &n
	}
	return &c
}

// ── Mock UserRepository ──

type mockUserRepo struct {
	mu      sync.Mutex
	users   map[string]*model.User
	deleted map[string]*model.User
	seq     int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		users:   make(map[string]*model.User),
		deleted: make(map[string]*model.User),
	}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return gorm.ErrDuplicatedKey
		}
	}
	if user.UserID == "" {
		user.UserID = uuid.NewString()
	}
	m.seq++
	now := time.Now().Add(time.Duration(m.seq) * time.Millisecond)
	user.CreatedAt, user.UpdatedAt = now, now
	user.Version = 1
	if user.RegisteredEvents == nil {
		user.RegisteredEvents = model.StringArray{}
	}
	m.users[user.UserID] = cloneUser(user)
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return cloneUser(u), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByIDs(_ context.Context, ids []string) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.User
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out = append(out, *cloneUser(u))
		} else if u, ok := m.deleted[id]; ok {
			out = append(out, *cloneUser(u))
		}
	}
	return out, nil
}

func (m *mockUserRepo) Update(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.users[user.UserID]
	if !ok || cur.Version != user.Version {
		return pkgerrors.ErrOptimisticLock
	}
	next := cloneUser(user)
	next.RegisteredEvents = cur.RegisteredEvents
	next.Version = cur.Version + 1
	next.UpdatedAt = time.Now()
	m.users[user.UserID] = next
	user.Version = next.Version
	return nil
}

func (m *mockUserRepo) sorted() []*model.User {
	list := make([]*model.User, 0, len(m.users))
	for _, u := range m.users {
		list = append(list, u)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	return list
}

func (m *mockUserRepo) List(_ context.Context, offset, limit int) ([]model.User, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.sorted()
	var out []model.User
	for i := offset; i < len(all) && i < offset+limit; i++ {
		out = append(out, *cloneUser(all[i]))
	}
	return out, int64(len(all)), nil
}

func (m *mockUserRepo) ListAll(_ context.Context) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.User
	for _, u := range m.sorted() {
		out = append(out, *cloneUser(u))
	}
	return out, nil
}

func (m *mockUserRepo) Count(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.users)), nil
}

func (m *mockUserRepo) Delete(_ context.Context, id, deletedBy string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.DeletedBy = &deletedBy
	m.deleted[id] = u
	delete(m.users, id)
	return nil
}

func (m *mockUserRepo) AddRegisteredEvent(_ context.Context, userID, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok || u.RegisteredEvents.Contains(eventID) {
		return false, nil
	}
	u.RegisteredEvents = append(u.RegisteredEvents, eventID)
	return true, nil
}

func (m *mockUserRepo) RemoveRegisteredEvent(_ context.Context, userID, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok || !u.RegisteredEvents.Contains(eventID) {
		return false, nil
	}
	u.RegisteredEvents = u.RegisteredEvents.Without(eventID)
	return true, nil
}

func (m *mockUserRepo) RemoveEventEverywhere(_ context.Context, eventID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, u := range m.users {
		if u.RegisteredEvents.Contains(eventID) {
			u.RegisteredEvents = u.RegisteredEvents.Without(eventID)
			n++
		}
	}
	return n, nil
}

// ── Mock EventRepository ──

type mockEventRepo struct {
	mu      sync.Mutex
	events  map[string]*model.Event
	deleted map[string]*model.Event
}

func newMockEventRepo() *mockEventRepo {
	return &mockEventRepo{
		events:  make(map[string]*model.Event),
		deleted: make(map[string]*model.Event),
	}
}

func (m *mockEventRepo) Create(_ context.Context, event *model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	now := time.Now()
	event.CreatedAt, event.UpdatedAt = now, now
	event.Version = 1
	if event.RegisteredUsers == nil {
		event.RegisteredUsers = model.StringArray{}
	}
	m.events[event.EventID] = cloneEvent(event)
	return nil
}

func (m *mockEventRepo) GetByID(_ context.Context, id string) (*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.events[id]; ok {
		return cloneEvent(e), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockEventRepo) GetByIDs(_ context.Context, ids []string) ([]model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Event
	for _, id := range ids {
		if e, ok := m.events[id]; ok {
			out = append(out, *cloneEvent(e))
		}
	}
	return out, nil
}

func (m *mockEventRepo) List(_ context.Context, filter repository.EventFilter) ([]model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Event
	for _, e := range m.events {
		if filter.Category != "" && string(e.Category) != filter.Category {
			continue
		}
		if filter.From != nil && e.Date.Before(*filter.From) {
			continue
		}
		if filter.To != nil && e.Date.After(*filter.To) {
			continue
		}
		out = append(out, *cloneEvent(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m *mockEventRepo) Update(_ context.Context, event *model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.events[event.EventID]
	if !ok || cur.Version != event.Version {
		return pkgerrors.ErrOptimisticLock
	}
	next := cloneEvent(event)
	next.CreatedBy = cur.CreatedBy
	next.RegisteredUsers = cur.RegisteredUsers
	next.Version = cur.Version + 1
	next.UpdatedAt = time.Now()
	m.events[event.EventID] = next
	event.Version = next.Version
	return nil
}

func (m *mockEventRepo) Delete(_ context.Context, id, deletedBy string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	e.DeletedBy = &deletedBy
	m.deleted[id] = e
	delete(m.events, id)
	return nil
}

func (m *mockEventRepo) AppendRegistrant(_ context.Context, eventID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[eventID]
	if !ok || e.HasRegistrant(userID) || e.IsFull() {
		return false, nil
	}
	e.RegisteredUsers = append(e.RegisteredUsers, userID)
	e.Version++
	return true, nil
}

func (m *mockEventRepo) RemoveRegistrant(_ context.Context, eventID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[eventID]
	if !ok || !e.HasRegistrant(userID) {
		return false, nil
	}
	e.RegisteredUsers = e.RegisteredUsers.Without(userID)
	e.Version++
	return true, nil
}

func (m *mockEventRepo) RemoveUserEverywhere(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, e := range m.events {
		if e.HasRegistrant(userID) {
			e.RegisteredUsers = e.RegisteredUsers.Without(userID)
			e.Version++
			n++
		}
	}
	return n, nil
}

// 直接改写内部状态，用于构造不一致的历史数据
func (m *mockEventRepo) forceRegistrants(eventID string, ids ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[eventID].RegisteredUsers = append(model.StringArray{}, ids...)
}

func (m *mockUserRepo) forceRegisteredEvents(userID string, ids ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[userID].RegisteredEvents = append(model.StringArray{}, ids...)
}

// ── 测试环境 ──

type testEnv struct {
	svc     *Service
	users   *mockUserRepo
	events  *mockEventRepo
	metrics *metrics.Metrics
}

func newTestEnvConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:       "test-secret-key-for-unit-testing-2026",
			AccessTokenTTL:  5 * time.Hour,
			RefreshTokenTTL: 7 * 24 * time.Hour,
			BcryptCost:      4,
		},
		Calendar: config.CalendarConfig{
			ProductID:       "-//campus-events//test//EN",
			DefaultDuration: 2 * time.Hour,
		},
	}
}

func newTestEnv() *testEnv {
	users := newMockUserRepo()
	events := newMockEventRepo()
	repo := &repository.Repository{User: users, Event: events}

	cfg := newTestEnvConfig()
	m := metrics.New()
	svc := NewService(Deps{
		Config:  cfg,
		Repo:    repo,
		JWT:     jwt.NewManager(&cfg.Auth),
		Metrics: m,
		Tracer:  tracing.Noop().Tracer(),
		Logger:  zap.NewNop(),
	})
	return &testEnv{svc: svc, users: users, events: events, metrics: m}
}

func (env *testEnv) logger() *zap.Logger { return zap.NewNop() }

func (env *testEnv) repo() *repository.Repository {
	return &repository.Repository{User: env.users, Event: env.events}
}

func (env *testEnv) addUser(name string, role model.Role) *model.User {
	u := &model.User{
		Name:         name,
		Email:        name + "@campus.test",
		PasswordHash: "$2a$04$placeholder",
		Role:         role,
	}
	if err := env.users.Create(context.Background(), u); err != nil {
		panic(err)
	}
	return u
}

func (env *testEnv) addEvent(creator *model.User, capacity *int) *model.Event {
	e := &model.Event{
		Title:       "Hack night",
		Description: "Build something",
		Date:        time.Date(2026, 11, 20, 18, 0, 0, 0, time.UTC),
		Location:    "Library",
		Category:    model.CategoryAcademic,
		Capacity:    capacity,
		CreatedBy:   creator.UserID,
	}
	if err := env.events.Create(context.Background(), e); err != nil {
		panic(err)
	}
	return e
}

func intPtr(n int) *int { return &n }

func strPtr(s string) *string { return &s }

func repositoryFilterAll() repository.EventFilter { return repository.EventFilter{} }

// ── 记录型 Publisher ──

type recordingPublisher struct {
	mu         sync.Mutex
	activities []kafka.Activity
}

func (p *recordingPublisher) Publish(_ context.Context, a kafka.Activity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.activities = append(p.activities, a)
}

func (p *recordingPublisher) Close() {}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.activities))
	for _, a := range p.activities {
		out = append(out, a.Type)
	}
	return out
}
