package mocks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/SergeiKhy/shortlink-registry/internal/models"
	"github.com/SergeiKhy/shortlink-registry/internal/repository"
)

// MockStore implements service.LinkStore for testing
type MockStore struct {
	mu        sync.Mutex
	records   []models.ShortenedURL
	saveCalls int
	failSave  bool
}

func NewMockStore(initial ...models.ShortenedURL) *MockStore {
	return &MockStore{records: initial}
}

func (m *MockStore) Load(ctx context.Context) []models.ShortenedURL {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.ShortenedURL, len(m.records))
	for i, rec := range m.records {
		out[i] = rec.Clone()
	}
	return out
}

func (m *MockStore) Save(ctx context.Context, records []models.ShortenedURL) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.saveCalls++
	if m.failSave {
		return errors.Join(repository.ErrStorageWrite, errors.New("mock: save failed"))
	}

	m.records = make([]models.ShortenedURL, len(records))
	for i, rec := range records {
		m.records[i] = rec.Clone()
	}
	return nil
}

// FailSave makes subsequent Save calls return an error
func (m *MockStore) FailSave(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failSave = fail
}

func (m *MockStore) SaveCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveCalls
}

// Saved returns the last persisted collection
func (m *MockStore) Saved() []models.ShortenedURL {
	return m.Load(context.Background())
}

// SequenceGenerator returns the given codes in order, then repeats the last one
type SequenceGenerator struct {
	mu    sync.Mutex
	codes []string
	calls int
}

func NewSequenceGenerator(codes ...string) *SequenceGenerator {
	return &SequenceGenerator{codes: codes}
}

func (g *SequenceGenerator) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.codes) == 0 {
		return "", errors.New("mock: no codes")
	}
	i := g.calls
	if i >= len(g.codes) {
		i = len(g.codes) - 1
	}
	g.calls++
	return g.codes[i], nil
}

func (g *SequenceGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// FixedProvider returns the same click metadata every time
type FixedProvider struct {
	Source   string
	Location string
}

func (p FixedProvider) ClickData(now time.Time) models.ClickEvent {
	return models.ClickEvent{Timestamp: now, Source: p.Source, Location: p.Location}
}

// Clock is a manually advanced time source
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
