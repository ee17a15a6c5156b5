package clickdata

import (
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/SergeiKhy/shortlink-registry/internal/models"
)

// Provider поставляет метаданные перехода. Реализация заменяема:
// имитация для локального режима, данные запроса для HTTP.
type Provider interface {
	ClickData(now time.Time) models.ClickEvent
}

// Фиксированные наборы для имитации
var (
	MockSources   = []string{models.SourceDirect, models.SourceSocial, models.SourceEmail, models.SourceSearch}
	MockLocations = []string{"New York, US", "London, UK", "Tokyo, JP", "Sydney, AU"}
)

// MockProvider случайно выбирает источник и местоположение
type MockProvider struct{}

func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (p *MockProvider) ClickData(now time.Time) models.ClickEvent {
	return models.ClickEvent{
		Timestamp: now,
		Source:    MockSources[rand.IntN(len(MockSources))],
		Location:  MockLocations[rand.IntN(len(MockLocations))],
	}
}

// Домены для грубой классификации реферера
var (
	socialDomains = []string{"facebook.", "twitter.", "t.co", "x.com", "linkedin.", "instagram.", "reddit.", "vk.com", "t.me"}
	searchDomains = []string{"google.", "bing.", "yandex.", "duckduckgo.", "yahoo.", "baidu."}
	mailDomains   = []string{"mail.", "outlook.", "gmail."}
)

// RequestProvider берёт метаданные из HTTP-запроса: источник по Referer,
// местоположение из заголовка страны, выставляемого прокси.
type RequestProvider struct {
	Referer string
	Country string
}

// FromRequest собирает RequestProvider из входящего запроса
func FromRequest(r *http.Request) *RequestProvider {
	country := r.Header.Get("CF-IPCountry")
	if country == "" {
		country = r.Header.Get("X-Country")
	}
	return &RequestProvider{
		Referer: r.Referer(),
		Country: country,
	}
}

func (p *RequestProvider) ClickData(now time.Time) models.ClickEvent {
	location := p.Country
	if location == "" {
		location = "Unknown"
	}
	return models.ClickEvent{
		Timestamp: now,
		Source:    ClassifyReferer(p.Referer),
		Location:  location,
	}
}

// ClassifyReferer относит реферер к одной из категорий источников
func ClassifyReferer(referer string) string {
	ref := strings.ToLower(referer)
	switch {
	case ref == "":
		return models.SourceDirect
	case containsAny(ref, socialDomains):
		return models.SourceSocial
	case containsAny(ref, searchDomains):
		return models.SourceSearch
	case containsAny(ref, mailDomains):
		return models.SourceEmail
	default:
		return models.SourceDirect
	}
}

func containsAny(s string, parts []string) bool {
	for _, part := range parts {
		if strings.Contains(s, part) {
			return true
		}
	}
	return false
}
