package models

import (
	"time"
)

// Источники перехода
const (
	SourceDirect = "direct"
	SourceSocial = "social"
	SourceEmail  = "email"
	SourceSearch = "search"
)

// ClickEvent один зарегистрированный переход по короткой ссылке
type ClickEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Location  string    `json:"location"`
}
