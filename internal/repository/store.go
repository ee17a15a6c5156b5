package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/SergeiKhy/shortlink-registry/internal/models"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// DefaultKey имя записи с коллекцией ссылок
const DefaultKey = "shortenedUrls"

// Store сериализует коллекцию ссылок целиком в одну запись бэкенда
type Store struct {
	backend Backend
	key     string
	logger  *zap.Logger
}

func NewStore(backend Backend, key string, logger *zap.Logger) *Store {
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		backend: backend,
		key:     key,
		logger:  logger,
	}
}

// Load возвращает сохранённую коллекцию. Ошибки не пробрасываются:
// при отсутствии или повреждении данных возвращается пустая коллекция.
func (s *Store) Load(ctx context.Context) []models.ShortenedURL {
	data, err := s.backend.Get(ctx, s.key)
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			s.logger.Error("Failed to read stored links, starting empty",
				zap.String("key", s.key),
				zap.Error(fmt.Errorf("%w: %w", ErrStorageRead, err)),
			)
		}
		return []models.ShortenedURL{}
	}

	var records []models.ShortenedURL
	if err := json.Unmarshal(data, &records); err != nil {
		s.logger.Error("Stored links are corrupt, starting empty",
			zap.String("key", s.key),
			zap.Error(fmt.Errorf("%w: %w", ErrStorageRead, err)),
		)
		return []models.ShortenedURL{}
	}

	if records == nil {
		records = []models.ShortenedURL{}
	}
	for i := range records {
		if records[i].ClickData == nil {
			records[i].ClickData = []models.ClickEvent{}
		}
	}

	return records
}

// Save перезаписывает коллекцию целиком
func (s *Store) Save(ctx context.Context, records []models.ShortenedURL) error {
	if records == nil {
		records = []models.ShortenedURL{}
	}

	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal links: %w", ErrStorageWrite, err)
	}

	if err := s.backend.Set(ctx, s.key, data); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageWrite, err)
	}

	s.logger.Debug("Saved links", zap.String("key", s.key), zap.Int("count", len(records)))
	return nil
}
