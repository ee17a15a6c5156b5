package models

import (
	"fmt"
	"time"
)

// ShortenedURL запись о сокращённой ссылке.
// JSON-имена полей совпадают с форматом сохранённого состояния.
type ShortenedURL struct {
	ID              string       `json:"id"`
	OriginalURL     string       `json:"originalUrl"`
	ShortCode       string       `json:"shortCode"`
	ShortURL        string       `json:"shortUrl"`
	CreatedAt       time.Time    `json:"creationDate"`
	ExpiresAt       time.Time    `json:"expiryDate"`
	ValidityMinutes int          `json:"validityMinutes"`
	Clicks          int          `json:"clicks"`
	ClickData       []ClickEvent `json:"clickData"`
}

// IsActive сообщает, действует ли ссылка в момент now
func (u *ShortenedURL) IsActive(now time.Time) bool {
	return now.Before(u.ExpiresAt)
}

// TimeRemaining возвращает оставшееся время жизни в виде "2d 3h", "4h 10m", "7m" или "Expired"
func (u *ShortenedURL) TimeRemaining(now time.Time) string {
	diff := u.ExpiresAt.Sub(now)
	if diff <= 0 {
		return "Expired"
	}

	minutes := int(diff / time.Minute)
	hours := minutes / 60
	days := hours / 24

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours%24)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes%60)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}

// Clone возвращает глубокую копию записи
func (u ShortenedURL) Clone() ShortenedURL {
	clicks := make([]ClickEvent, len(u.ClickData))
	copy(clicks, u.ClickData)
	u.ClickData = clicks
	return u
}

// Submission входные данные для создания одной ссылки
type Submission struct {
	OriginalURL     string `json:"originalUrl"`
	ValidityMinutes int    `json:"validityMinutes"`
	CustomShortCode string `json:"customShortCode,omitempty"`
}

// Rejection отклонённый элемент пакета с ошибками по полям
type Rejection struct {
	Index  int               `json:"index"`
	Errors map[string]string `json:"errors"`
}

// BatchResult итог пакетного создания ссылок
type BatchResult struct {
	Accepted []ShortenedURL `json:"accepted"`
	Rejected []Rejection    `json:"rejected"`
}

// LinkStats сводная статистика по реестру
type LinkStats struct {
	TotalLinks   int `json:"total_links"`
	ActiveLinks  int `json:"active_links"`
	ExpiredLinks int `json:"expired_links"`
	TotalClicks  int `json:"total_clicks"`
}
