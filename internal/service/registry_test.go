package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/SergeiKhy/shortlink-registry/internal/models"
	"github.com/SergeiKhy/shortlink-registry/internal/repository"
	"github.com/SergeiKhy/shortlink-registry/internal/service"
	"github.com/SergeiKhy/shortlink-registry/internal/service/mocks"
	"github.com/SergeiKhy/shortlink-registry/internal/shortcode"
	"github.com/SergeiKhy/shortlink-registry/internal/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var startTime = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

var testProvider = mocks.FixedProvider{Source: models.SourceSocial, Location: "London, UK"}

// testEnv окружение для тестов реестра
type testEnv struct {
	registry *service.Registry
	store    *mocks.MockStore
	clock    *mocks.Clock
}

// setupTestRegistry создаёт реестр с моковым хранилищем и управляемыми часами
func setupTestRegistry(t *testing.T, generator shortcode.Generator, initial ...models.ShortenedURL) *testEnv {
	t.Helper()

	if generator == nil {
		generator = shortcode.NewNanoID(shortcode.DefaultLength)
	}
	store := mocks.NewMockStore(initial...)
	clock := mocks.NewClock(startTime)
	logger, _ := zap.NewDevelopment()

	registry := service.NewRegistry(context.Background(), store, generator, testProvider, logger,
		service.WithClock(clock.Now),
		service.WithBaseURL("http://sho.rt"),
		service.WithMaxCodeAttempts(5),
	)

	return &testEnv{registry: registry, store: store, clock: clock}
}

func submission(url string, minutes int, code string) models.Submission {
	return models.Submission{OriginalURL: url, ValidityMinutes: minutes, CustomShortCode: code}
}

// TestRegistry_Create_GeneratedCode проверяет создание ссылки со сгенерированным кодом
func TestRegistry_Create_GeneratedCode(t *testing.T) {
	env := setupTestRegistry(t, nil)
	ctx := context.Background()

	result, err := env.registry.Create(ctx, []models.Submission{submission("https://a.com", 1, "")})
	require.NoError(t, err)
	require.Len(t, result.Accepted, 1)
	assert.Empty(t, result.Rejected)

	rec := result.Accepted[0]
	assert.NotEmpty(t, rec.ID)
	assert.GreaterOrEqual(t, len(rec.ShortCode), 3)
	assert.LessOrEqual(t, len(rec.ShortCode), 10)
	assert.Equal(t, "http://sho.rt/"+rec.ShortCode, rec.ShortURL)
	assert.Equal(t, "https://a.com", rec.OriginalURL)
	assert.Equal(t, startTime, rec.CreatedAt)
	assert.Equal(t, startTime.Add(time.Minute), rec.ExpiresAt)
	assert.Equal(t, 0, rec.Clicks)
	assert.Empty(t, rec.ClickData)

	assert.Equal(t, 1, env.store.SaveCalls())
	assert.Equal(t, result.Accepted, env.store.Saved())
}

// TestRegistry_Create_TrimsURL проверяет, что пробелы по краям URL не сохраняются
func TestRegistry_Create_TrimsURL(t *testing.T) {
	env := setupTestRegistry(t, nil)

	result, err := env.registry.Create(context.Background(), []models.Submission{
		submission("  https://a.com/path \n", 5, ""),
		submission("https://a.com:99999", 5, ""),
	})
	require.NoError(t, err)

	require.Len(t, result.Accepted, 1)
	assert.Equal(t, "https://a.com/path", result.Accepted[0].OriginalURL)

	require.Len(t, result.Rejected, 1)
	assert.Equal(t, 1, result.Rejected[0].Index)
	assert.Equal(t, validator.MsgInvalidURL, result.Rejected[0].Errors[validator.FieldOriginalURL])
}

// TestRegistry_Create_ThenPrune проверяет сценарий: создать на 1 минуту, через 2 минуты удалить
func TestRegistry_Create_ThenPrune(t *testing.T) {
	env := setupTestRegistry(t, nil)
	ctx := context.Background()

	_, err := env.registry.Create(ctx, []models.Submission{submission("https://a.com", 1, "")})
	require.NoError(t, err)

	env.clock.Advance(2 * time.Minute)
	removed, err := env.registry.PruneExpired(ctx, env.clock.Now())
	require.NoError(t, err)

	assert.Equal(t, 1, removed)
	assert.Empty(t, env.registry.List(ctx))
	assert.Empty(t, env.store.Saved())
}

// TestRegistry_Create_DuplicateCustomCodeInBatch проверяет, что второй одинаковый код в пакете отклоняется
func TestRegistry_Create_DuplicateCustomCodeInBatch(t *testing.T) {
	env := setupTestRegistry(t, nil)
	ctx := context.Background()

	result, err := env.registry.Create(ctx, []models.Submission{
		submission("https://a.com", 30, "promo1"),
		submission("https://b.com", 30, "promo1"),
	})
	require.NoError(t, err)

	require.Len(t, result.Accepted, 1)
	assert.Equal(t, "promo1", result.Accepted[0].ShortCode)
	assert.Equal(t, "https://a.com", result.Accepted[0].OriginalURL)

	require.Len(t, result.Rejected, 1)
	assert.Equal(t, 1, result.Rejected[0].Index)
	assert.Equal(t, validator.MsgCodeInUse, result.Rejected[0].Errors[validator.FieldCustomShortCode])
}

// TestRegistry_Create_DuplicateOfExisting проверяет конфликт с уже сохранённым кодом, в том числе истёкшим
func TestRegistry_Create_DuplicateOfExisting(t *testing.T) {
	env := setupTestRegistry(t, nil)
	ctx := context.Background()

	_, err := env.registry.Create(ctx, []models.Submission{submission("https://a.com", 1, "promo1")})
	require.NoError(t, err)

	// Истёкшая, но не удалённая ссылка всё ещё занимает код
	env.clock.Advance(5 * time.Minute)

	result, err := env.registry.Create(ctx, []models.Submission{submission("https://b.com", 30, "promo1")})
	require.NoError(t, err)
	assert.Empty(t, result.Accepted)
	require.Len(t, result.Rejected, 1)
	assert.Equal(t, validator.MsgCodeInUse, result.Rejected[0].Errors[validator.FieldCustomShortCode])

	// После очистки код освобождается
	_, err = env.registry.PruneExpired(ctx, env.clock.Now())
	require.NoError(t, err)

	result, err = env.registry.Create(ctx, []models.Submission{submission("https://b.com", 30, "promo1")})
	require.NoError(t, err)
	assert.Len(t, result.Accepted, 1)
}

// TestRegistry_Create_ValidityBounds проверяет границы срока действия
func TestRegistry_Create_ValidityBounds(t *testing.T) {
	env := setupTestRegistry(t, nil)

	result, err := env.registry.Create(context.Background(), []models.Submission{
		submission("https://a.com", 0, ""),
		submission("https://b.com", 10080, ""),
		submission("https://c.com", 10081, ""),
	})
	require.NoError(t, err)

	require.Len(t, result.Accepted, 1)
	assert.Equal(t, "https://b.com", result.Accepted[0].OriginalURL)
	assert.Equal(t, startTime.Add(7*24*time.Hour), result.Accepted[0].ExpiresAt)

	require.Len(t, result.Rejected, 2)
	assert.Equal(t, 0, result.Rejected[0].Index)
	assert.Equal(t, 2, result.Rejected[1].Index)
	for _, rej := range result.Rejected {
		assert.Equal(t, validator.MsgValidityRange, rej.Errors[validator.FieldValidityMinutes])
	}
}

// TestRegistry_Create_NothingAccepted проверяет, что без принятых ссылок хранилище не трогается
func TestRegistry_Create_NothingAccepted(t *testing.T) {
	env := setupTestRegistry(t, nil)

	result, err := env.registry.Create(context.Background(), []models.Submission{
		submission("", 30, ""),
		submission("not a url", 30, "ab"),
	})
	require.NoError(t, err)

	assert.Empty(t, result.Accepted)
	require.Len(t, result.Rejected, 2)
	assert.Equal(t, validator.MsgURLRequired, result.Rejected[0].Errors[validator.FieldOriginalURL])
	assert.Equal(t, validator.MsgInvalidURL, result.Rejected[1].Errors[validator.FieldOriginalURL])
	assert.Equal(t, validator.MsgInvalidCode, result.Rejected[1].Errors[validator.FieldCustomShortCode])
	assert.Equal(t, 0, env.store.SaveCalls())
}

// TestRegistry_Create_RetriesCollision проверяет повтор генерации при коллизии
func TestRegistry_Create_RetriesCollision(t *testing.T) {
	gen := mocks.NewSequenceGenerator("aaa111", "aaa111", "bbb222")
	env := setupTestRegistry(t, gen)

	result, err := env.registry.Create(context.Background(), []models.Submission{
		submission("https://a.com", 30, "aaa111"),
		submission("https://b.com", 30, ""),
	})
	require.NoError(t, err)

	require.Len(t, result.Accepted, 2)
	assert.Equal(t, "aaa111", result.Accepted[0].ShortCode)
	assert.Equal(t, "bbb222", result.Accepted[1].ShortCode)
	assert.Equal(t, 3, gen.Calls())
}

// TestRegistry_Create_CodeSpaceExhausted проверяет ограничение числа попыток
func TestRegistry_Create_CodeSpaceExhausted(t *testing.T) {
	gen := mocks.NewSequenceGenerator("dup123")
	env := setupTestRegistry(t, gen)
	ctx := context.Background()

	_, err := env.registry.Create(ctx, []models.Submission{submission("https://a.com", 30, "")})
	require.NoError(t, err)

	result, err := env.registry.Create(ctx, []models.Submission{
		submission("https://b.com", 30, "custom1"),
		submission("https://c.com", 30, ""),
	})
	assert.ErrorIs(t, err, service.ErrCodeSpaceExhausted)
	assert.Nil(t, result)

	// Пакет отклонён целиком
	assert.Len(t, env.registry.List(ctx), 1)
	assert.Equal(t, 1, env.store.SaveCalls())
	assert.Equal(t, 1+5, gen.Calls())
}

// TestRegistry_Create_StorageWriteFailure проверяет, что ошибка записи не откатывает состояние
func TestRegistry_Create_StorageWriteFailure(t *testing.T) {
	env := setupTestRegistry(t, nil)
	env.store.FailSave(true)
	ctx := context.Background()

	result, err := env.registry.Create(ctx, []models.Submission{submission("https://a.com", 30, "keep1")})
	assert.ErrorIs(t, err, service.ErrStorageWrite)
	assert.ErrorIs(t, err, repository.ErrStorageWrite)
	require.NotNil(t, result)
	assert.Len(t, result.Accepted, 1)

	links := env.registry.List(ctx)
	require.Len(t, links, 1)
	assert.Equal(t, "keep1", links[0].ShortCode)
}

// TestRegistry_RecordClick проверяет регистрацию перехода
func TestRegistry_RecordClick(t *testing.T) {
	env := setupTestRegistry(t, nil)
	ctx := context.Background()

	_, err := env.registry.Create(ctx, []models.Submission{submission("https://a.com", 30, "click1")})
	require.NoError(t, err)

	env.clock.Advance(time.Minute)
	rec, err := env.registry.RecordClick(ctx, "click1")
	require.NoError(t, err)

	assert.Equal(t, 1, rec.Clicks)
	require.Len(t, rec.ClickData, 1)
	assert.Equal(t, models.ClickEvent{
		Timestamp: startTime.Add(time.Minute),
		Source:    models.SourceSocial,
		Location:  "London, UK",
	}, rec.ClickData[0])

	rec, err = env.registry.RecordClickWith(ctx, "click1", mocks.FixedProvider{Source: models.SourceSearch, Location: "JP"})
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Clicks)
	assert.Len(t, rec.ClickData, rec.Clicks)
	assert.Equal(t, models.SourceSearch, rec.ClickData[1].Source)

	saved := env.store.Saved()
	require.Len(t, saved, 1)
	assert.Equal(t, 2, saved[0].Clicks)
	assert.Equal(t, 3, env.store.SaveCalls())
}

// TestRegistry_RecordClick_ReturnsCopy проверяет, что изменение результата не влияет на реестр
func TestRegistry_RecordClick_ReturnsCopy(t *testing.T) {
	env := setupTestRegistry(t, nil)
	ctx := context.Background()

	_, err := env.registry.Create(ctx, []models.Submission{submission("https://a.com", 30, "copy1")})
	require.NoError(t, err)

	rec, err := env.registry.RecordClick(ctx, "copy1")
	require.NoError(t, err)
	rec.ClickData[0].Source = "tampered"
	rec.Clicks = 100

	stored, err := env.registry.Get(ctx, "copy1")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Clicks)
	assert.Equal(t, models.SourceSocial, stored.ClickData[0].Source)
}

// TestRegistry_RecordClick_NotFound проверяет переход по неизвестному коду
func TestRegistry_RecordClick_NotFound(t *testing.T) {
	env := setupTestRegistry(t, nil)

	rec, err := env.registry.RecordClick(context.Background(), "nope")
	assert.ErrorIs(t, err, service.ErrNotFound)
	assert.Nil(t, rec)
	assert.Equal(t, 0, env.store.SaveCalls())
}

// TestRegistry_RecordClick_Expired проверяет, что переход по истёкшей ссылке не записывается
func TestRegistry_RecordClick_Expired(t *testing.T) {
	env := setupTestRegistry(t, nil)
	ctx := context.Background()

	_, err := env.registry.Create(ctx, []models.Submission{submission("https://a.com", 1, "old1")})
	require.NoError(t, err)

	// Ровно в момент истечения переход ещё принимается
	env.clock.Advance(time.Minute)
	_, err = env.registry.RecordClick(ctx, "old1")
	require.NoError(t, err)

	env.clock.Advance(time.Second)
	rec, err := env.registry.RecordClick(ctx, "old1")
	assert.ErrorIs(t, err, service.ErrExpired)
	assert.Nil(t, rec)

	stored, err := env.registry.Get(ctx, "old1")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Clicks)
	assert.Len(t, stored.ClickData, 1)
}

// TestRegistry_PruneExpired проверяет, что удаляются ровно истёкшие ссылки
func TestRegistry_PruneExpired(t *testing.T) {
	env := setupTestRegistry(t, nil)
	ctx := context.Background()

	_, err := env.registry.Create(ctx, []models.Submission{
		submission("https://a.com", 1, "short1"),
		submission("https://b.com", 10, "mid1"),
		submission("https://c.com", 60, "long1"),
	})
	require.NoError(t, err)

	_, err = env.registry.RecordClick(ctx, "long1")
	require.NoError(t, err)
	savesBefore := env.store.SaveCalls()

	// Ничего не истекло: без записи в хранилище
	removed, err := env.registry.PruneExpired(ctx, startTime)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
	assert.Equal(t, savesBefore, env.store.SaveCalls())

	// Граница: expiryDate == now удаляется
	removed, err = env.registry.PruneExpired(ctx, startTime.Add(10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, savesBefore+1, env.store.SaveCalls())

	links := env.registry.List(ctx)
	require.Len(t, links, 1)
	assert.Equal(t, "long1", links[0].ShortCode)
	assert.Equal(t, 1, links[0].Clicks)
	assert.Len(t, links[0].ClickData, 1)

	_, err = env.registry.RecordClick(ctx, "short1")
	assert.ErrorIs(t, err, service.ErrNotFound)
}

// TestRegistry_LoadsPersisted проверяет загрузку ранее сохранённой коллекции
func TestRegistry_LoadsPersisted(t *testing.T) {
	initial := []models.ShortenedURL{
		{ID: "1", OriginalURL: "https://a.com", ShortCode: "saved1", CreatedAt: startTime, ExpiresAt: startTime.Add(time.Hour), ValidityMinutes: 60, ClickData: []models.ClickEvent{}},
	}
	env := setupTestRegistry(t, nil, initial...)
	ctx := context.Background()

	assert.Equal(t, initial, env.registry.List(ctx))

	_, err := env.registry.RecordClick(ctx, "saved1")
	require.NoError(t, err)

	result, err := env.registry.Create(ctx, []models.Submission{submission("https://b.com", 30, "saved1")})
	require.NoError(t, err)
	assert.Empty(t, result.Accepted)
}

// TestRegistry_Recent проверяет выдачу последних ссылок, новые первыми
func TestRegistry_Recent(t *testing.T) {
	env := setupTestRegistry(t, nil)
	ctx := context.Background()

	batch := make([]models.Submission, 0, 7)
	for i := 1; i <= 7; i++ {
		batch = append(batch, submission(fmt.Sprintf("https://site%d.com", i), 30, fmt.Sprintf("code%d", i)))
	}
	_, err := env.registry.Create(ctx, batch)
	require.NoError(t, err)

	recent := env.registry.Recent(ctx, 5)
	require.Len(t, recent, 5)
	assert.Equal(t, "code7", recent[0].ShortCode)
	assert.Equal(t, "code3", recent[4].ShortCode)

	assert.Len(t, env.registry.Recent(ctx, 0), 7)
	assert.Len(t, env.registry.Recent(ctx, 100), 7)
}

// TestRegistry_Stats проверяет сводную статистику
func TestRegistry_Stats(t *testing.T) {
	env := setupTestRegistry(t, nil)
	ctx := context.Background()

	_, err := env.registry.Create(ctx, []models.Submission{
		submission("https://a.com", 1, "s1x"),
		submission("https://b.com", 60, "s2x"),
	})
	require.NoError(t, err)

	_, err = env.registry.RecordClick(ctx, "s2x")
	require.NoError(t, err)
	_, err = env.registry.RecordClick(ctx, "s2x")
	require.NoError(t, err)

	stats := env.registry.Stats(ctx, startTime.Add(30*time.Minute))
	assert.Equal(t, models.LinkStats{TotalLinks: 2, ActiveLinks: 1, ExpiredLinks: 1, TotalClicks: 2}, stats)
}

// TestRegistry_Get проверяет получение ссылки по коду
func TestRegistry_Get(t *testing.T) {
	env := setupTestRegistry(t, nil)
	ctx := context.Background()

	_, err := env.registry.Get(ctx, "none1")
	assert.ErrorIs(t, err, service.ErrNotFound)

	_, err = env.registry.Create(ctx, []models.Submission{submission("https://a.com", 30, "get1")})
	require.NoError(t, err)

	rec, err := env.registry.Get(ctx, "get1")
	require.NoError(t, err)
	assert.Equal(t, "https://a.com", rec.OriginalURL)
	assert.True(t, rec.IsActive(env.registry.Now()))
}
