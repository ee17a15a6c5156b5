package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/SergeiKhy/shortlink-registry/internal/clickdata"
	"github.com/SergeiKhy/shortlink-registry/internal/metrics"
	"github.com/SergeiKhy/shortlink-registry/internal/models"
	"github.com/SergeiKhy/shortlink-registry/internal/repository"
	"github.com/SergeiKhy/shortlink-registry/internal/shortcode"
	"github.com/SergeiKhy/shortlink-registry/internal/validator"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Ошибки реестра
var (
	ErrNotFound           = errors.New("short url not found")
	ErrExpired            = errors.New("short url has expired")
	ErrCodeSpaceExhausted = errors.New("could not generate a unique short code")
	// ErrStorageWrite мутация применена в памяти, но не сохранена
	ErrStorageWrite = repository.ErrStorageWrite
)

// Константы реестра
const (
	defaultBaseURL         = "http://localhost:3000"
	defaultMaxCodeAttempts = 10
)

// Исходы попытки перехода для метрик
const (
	clickRecorded = "recorded"
	clickNotFound = "not_found"
	clickExpired  = "expired"
)

// LinkStore хранилище коллекции ссылок
type LinkStore interface {
	Load(ctx context.Context) []models.ShortenedURL
	Save(ctx context.Context, records []models.ShortenedURL) error
}

// LinkRegistry операции реестра, доступные внешнему слою
type LinkRegistry interface {
	Create(ctx context.Context, batch []models.Submission) (*models.BatchResult, error)
	RecordClick(ctx context.Context, code string) (*models.ShortenedURL, error)
	RecordClickWith(ctx context.Context, code string, provider clickdata.Provider) (*models.ShortenedURL, error)
	PruneExpired(ctx context.Context, now time.Time) (int, error)
	List(ctx context.Context) []models.ShortenedURL
	Recent(ctx context.Context, n int) []models.ShortenedURL
	Get(ctx context.Context, code string) (*models.ShortenedURL, error)
	Stats(ctx context.Context, now time.Time) models.LinkStats
	Now() time.Time
}

// Registry единственный владелец коллекции ссылок. Все методы
// выполняются под одним мьютексом и атомарны относительно друг друга.
type Registry struct {
	mu      sync.Mutex
	records []models.ShortenedURL
	index   map[string]int // shortCode -> позиция в records

	store     LinkStore
	generator shortcode.Generator
	provider  clickdata.Provider
	logger    *zap.Logger
	metrics   *metrics.Metrics

	now             func() time.Time
	baseURL         string
	maxCodeAttempts int
}

// Option настройка реестра
type Option func(*Registry)

// WithClock подменяет источник текущего времени
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// WithBaseURL задаёт базовый адрес для shortUrl
func WithBaseURL(baseURL string) Option {
	return func(r *Registry) {
		if baseURL != "" {
			r.baseURL = baseURL
		}
	}
}

// WithMaxCodeAttempts ограничивает число попыток генерации кода
func WithMaxCodeAttempts(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.maxCodeAttempts = n
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

// NewRegistry загружает сохранённую коллекцию и возвращает реестр
func NewRegistry(
	ctx context.Context,
	store LinkStore,
	generator shortcode.Generator,
	provider clickdata.Provider,
	logger *zap.Logger,
	opts ...Option,
) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if provider == nil {
		provider = clickdata.NewMockProvider()
	}

	r := &Registry{
		store:           store,
		generator:       generator,
		provider:        provider,
		logger:          logger,
		now:             func() time.Time { return time.Now().UTC() },
		baseURL:         defaultBaseURL,
		maxCodeAttempts: defaultMaxCodeAttempts,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.records = store.Load(ctx)
	r.reindex()
	r.metrics.Records(len(r.records))

	r.logger.Info("Registry initialized", zap.Int("count", len(r.records)))
	return r
}

// Now текущее время по часам реестра
func (r *Registry) Now() time.Time {
	return r.now()
}

// Create валидирует пакет заявок и создаёт ссылки для прошедших проверку.
// Ошибки валидации возвращаются как данные в BatchResult.Rejected.
// При исчерпании попыток генерации кода пакет отклоняется целиком.
func (r *Registry) Create(ctx context.Context, batch []models.Submission) (*models.BatchResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Info("Starting URL shortening process", zap.Int("batch_size", len(batch)))

	now := r.now()
	taken := make(map[string]struct{}, len(r.index)+len(batch))
	for code := range r.index {
		taken[code] = struct{}{}
	}

	result := &models.BatchResult{
		Accepted: []models.ShortenedURL{},
		Rejected: []models.Rejection{},
	}

	for i, sub := range batch {
		if errs := validator.ValidateSubmission(sub, taken); len(errs) > 0 {
			result.Rejected = append(result.Rejected, models.Rejection{Index: i, Errors: errs})
			continue
		}

		code := sub.CustomShortCode
		if code == "" {
			generated, err := r.uniqueCode(taken)
			if err != nil {
				r.logger.Error("Failed to assign short code, batch aborted",
					zap.Int("index", i),
					zap.Error(err),
				)
				return nil, err
			}
			code = generated
		}
		taken[code] = struct{}{}

		result.Accepted = append(result.Accepted, models.ShortenedURL{
			ID:              uuid.NewString(),
			OriginalURL:     strings.TrimSpace(sub.OriginalURL),
			ShortCode:       code,
			ShortURL:        r.baseURL + "/" + code,
			CreatedAt:       now,
			ExpiresAt:       now.Add(time.Duration(sub.ValidityMinutes) * time.Minute),
			ValidityMinutes: sub.ValidityMinutes,
			Clicks:          0,
			ClickData:       []models.ClickEvent{},
		})
	}

	r.metrics.Rejected(len(result.Rejected))

	if len(result.Accepted) == 0 {
		r.logger.Warn("No valid URL in batch", zap.Int("rejected", len(result.Rejected)))
		return result, nil
	}

	for _, rec := range result.Accepted {
		r.index[rec.ShortCode] = len(r.records)
		r.records = append(r.records, rec.Clone())

		r.logger.Info("Created shortened URL",
			zap.String("short_code", rec.ShortCode),
			zap.String("original_url", rec.OriginalURL),
			zap.Time("expires_at", rec.ExpiresAt),
		)
	}
	r.metrics.Created(len(result.Accepted))

	return result, r.persist(ctx)
}

// RecordClick регистрирует переход с метаданными провайдера по умолчанию
func (r *Registry) RecordClick(ctx context.Context, code string) (*models.ShortenedURL, error) {
	return r.RecordClickWith(ctx, code, r.provider)
}

// RecordClickWith регистрирует переход по коду. Переход по истёкшей
// ссылке не записывается и возвращает ErrExpired.
func (r *Registry) RecordClickWith(ctx context.Context, code string, provider clickdata.Provider) (*models.ShortenedURL, error) {
	if provider == nil {
		provider = r.provider
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.index[code]
	if !ok {
		r.logger.Error("Short URL not found", zap.String("short_code", code))
		r.metrics.Click(clickNotFound)
		return nil, fmt.Errorf("%w: %s", ErrNotFound, code)
	}

	rec := &r.records[i]
	now := r.now()
	if now.After(rec.ExpiresAt) {
		r.logger.Warn("Attempted access to expired URL",
			zap.String("short_code", code),
			zap.Time("expired_at", rec.ExpiresAt),
		)
		r.metrics.Click(clickExpired)
		return nil, fmt.Errorf("%w: %s", ErrExpired, code)
	}

	rec.ClickData = append(rec.ClickData, provider.ClickData(now))
	rec.Clicks++
	r.metrics.Click(clickRecorded)

	r.logger.Info("Redirecting user",
		zap.String("short_code", code),
		zap.String("original_url", rec.OriginalURL),
		zap.Int("clicks", rec.Clicks),
	)

	out := rec.Clone()
	return &out, r.persist(ctx)
}

// PruneExpired удаляет ссылки с expiryDate <= now. Сохраняет коллекцию,
// только если что-то было удалено.
func (r *Registry) PruneExpired(ctx context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := make([]models.ShortenedURL, 0, len(r.records))
	for _, rec := range r.records {
		if rec.ExpiresAt.After(now) {
			kept = append(kept, rec)
		}
	}

	removed := len(r.records) - len(kept)
	if removed == 0 {
		return 0, nil
	}

	r.records = kept
	r.reindex()
	r.metrics.Pruned(removed)

	r.logger.Info("Cleaned up expired URLs", zap.Int("removed", removed), zap.Int("remaining", len(kept)))

	return removed, r.persist(ctx)
}

// List возвращает копии всех ссылок в порядке создания
func (r *Registry) List(_ context.Context) []models.ShortenedURL {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.ShortenedURL, len(r.records))
	for i, rec := range r.records {
		out[i] = rec.Clone()
	}
	return out
}

// Recent возвращает до n последних ссылок, новые первыми
func (r *Registry) Recent(_ context.Context, n int) []models.ShortenedURL {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n <= 0 || n > len(r.records) {
		n = len(r.records)
	}

	out := make([]models.ShortenedURL, 0, n)
	for i := len(r.records) - 1; i >= len(r.records)-n; i-- {
		out = append(out, r.records[i].Clone())
	}
	return out
}

// Get возвращает ссылку по коду, в том числе истёкшую, но ещё не удалённую
func (r *Registry) Get(_ context.Context, code string) (*models.ShortenedURL, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.index[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, code)
	}

	out := r.records[i].Clone()
	return &out, nil
}

// Stats сводка по реестру на момент now
func (r *Registry) Stats(_ context.Context, now time.Time) models.LinkStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := models.LinkStats{TotalLinks: len(r.records)}
	for i := range r.records {
		if r.records[i].IsActive(now) {
			stats.ActiveLinks++
		} else {
			stats.ExpiredLinks++
		}
		stats.TotalClicks += r.records[i].Clicks
	}
	return stats
}

// uniqueCode генерирует код, не занятый в taken, с ограниченным числом попыток
func (r *Registry) uniqueCode(taken map[string]struct{}) (string, error) {
	for attempt := 1; attempt <= r.maxCodeAttempts; attempt++ {
		code, err := r.generator.Generate()
		if err != nil {
			return "", fmt.Errorf("failed to generate code: %w", err)
		}
		if _, exists := taken[code]; !exists {
			return code, nil
		}

		r.logger.Debug("Generated short code collides, retrying",
			zap.String("short_code", code),
			zap.Int("attempt", attempt),
		)
	}
	return "", fmt.Errorf("%w after %d attempts", ErrCodeSpaceExhausted, r.maxCodeAttempts)
}

// persist сохраняет коллекцию. Вызывается под r.mu.
func (r *Registry) persist(ctx context.Context) error {
	r.metrics.Records(len(r.records))

	if err := r.store.Save(ctx, r.records); err != nil {
		r.logger.Error("Failed to save links, keeping in-memory state", zap.Error(err))
		if errors.Is(err, ErrStorageWrite) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrStorageWrite, err)
	}

	r.logger.Debug("Updated shortened URLs in storage", zap.Int("count", len(r.records)))
	return nil
}

// reindex перестраивает индекс кодов. При дубликатах в загруженных
// данных индекс указывает на первую запись.
func (r *Registry) reindex() {
	r.index = make(map[string]int, len(r.records))
	for i, rec := range r.records {
		if _, exists := r.index[rec.ShortCode]; exists {
			r.logger.Warn("Duplicate short code in stored links", zap.String("short_code", rec.ShortCode))
			continue
		}
		r.index[rec.ShortCode] = i
	}
}
