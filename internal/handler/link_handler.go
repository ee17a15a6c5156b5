package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/SergeiKhy/shortlink-registry/internal/clickdata"
	"github.com/SergeiKhy/shortlink-registry/internal/models"
	"github.com/SergeiKhy/shortlink-registry/internal/service"
	"github.com/SergeiKhy/shortlink-registry/internal/validator"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Предупреждения для клиента
const (
	warnNoValidURL   = "Please enter at least one valid URL"
	warnNotPersisted = "Changes are applied but could not be saved to storage"
)

type LinkHandler struct {
	registry        service.LinkRegistry
	requestMetadata bool // брать метаданные перехода из запроса вместо имитации
	logger          *zap.Logger
}

func NewLinkHandler(registry service.LinkRegistry, requestMetadata bool, logger *zap.Logger) *LinkHandler {
	return &LinkHandler{
		registry:        registry,
		requestMetadata: requestMetadata,
		logger:          logger,
	}
}

type CreateLinkItem struct {
	OriginalURL     string `json:"originalUrl"`
	ValidityMinutes *int   `json:"validityMinutes,omitempty"`
	CustomShortCode string `json:"customShortCode,omitempty"`
}

type CreateLinksRequest struct {
	URLs []CreateLinkItem `json:"urls" binding:"required,min=1,max=5"`
}

type CreateLinksResponse struct {
	Accepted []models.ShortenedURL `json:"accepted"`
	Rejected []models.Rejection    `json:"rejected"`
	Warning  string                `json:"warning,omitempty"`
}

// LinkResponse ссылка с вычисляемыми полями
type LinkResponse struct {
	models.ShortenedURL
	Active        bool   `json:"active"`
	TimeRemaining string `json:"timeRemaining"`
}

type VisitResponse struct {
	ShortCode   string            `json:"shortCode"`
	OriginalURL string            `json:"originalUrl"`
	Clicks      int               `json:"clicks"`
	Click       models.ClickEvent `json:"click"`
	Warning     string            `json:"warning,omitempty"`
}

type ClicksResponse struct {
	ShortCode string              `json:"shortCode"`
	Clicks    int                 `json:"clicks"`
	ClickData []models.ClickEvent `json:"clickData"`
}

type PruneResponse struct {
	Removed int    `json:"removed"`
	Warning string `json:"warning,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// CreateLinks создаёт пакет коротких ссылок
func (h *LinkHandler) CreateLinks(c *gin.Context) {
	var req CreateLinksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	batch := make([]models.Submission, len(req.URLs))
	for i, item := range req.URLs {
		minutes := validator.DefaultValidityMinutes
		if item.ValidityMinutes != nil {
			minutes = *item.ValidityMinutes
		}
		batch[i] = models.Submission{
			OriginalURL:     item.OriginalURL,
			ValidityMinutes: minutes,
			CustomShortCode: item.CustomShortCode,
		}
	}

	result, err := h.registry.Create(c.Request.Context(), batch)
	if err != nil && !errors.Is(err, service.ErrStorageWrite) {
		h.logger.Error("Failed to create links", zap.Error(err))

		if errors.Is(err, service.ErrCodeSpaceExhausted) {
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{
				Error:   "code_space_exhausted",
				Message: "Could not generate a unique short code, try again",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to create links",
		})
		return
	}

	response := CreateLinksResponse{
		Accepted: result.Accepted,
		Rejected: result.Rejected,
	}
	if err != nil {
		response.Warning = warnNotPersisted
	}

	if len(result.Accepted) == 0 {
		response.Warning = warnNoValidURL
		c.JSON(http.StatusUnprocessableEntity, response)
		return
	}

	c.JSON(http.StatusCreated, response)
}

// ListLinks возвращает все ссылки либо N последних (?recent=N)
func (h *LinkHandler) ListLinks(c *gin.Context) {
	var links []models.ShortenedURL

	if raw := c.Query("recent"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_request",
				Message: "recent must be a positive integer",
			})
			return
		}
		links = h.registry.Recent(c.Request.Context(), n)
	} else {
		links = h.registry.List(c.Request.Context())
	}

	now := h.registry.Now()
	response := make([]LinkResponse, len(links))
	for i, link := range links {
		response[i] = toLinkResponse(link, now)
	}

	c.JSON(http.StatusOK, response)
}

// GetLink возвращает одну ссылку по коду
func (h *LinkHandler) GetLink(c *gin.Context) {
	code := c.Param("code")

	link, err := h.registry.Get(c.Request.Context(), code)
	if err != nil {
		h.respondError(c, code, err)
		return
	}

	c.JSON(http.StatusOK, toLinkResponse(*link, h.registry.Now()))
}

// Visit имитирует переход по короткой ссылке и возвращает целевой URL.
// Перенаправление не выполняется.
func (h *LinkHandler) Visit(c *gin.Context) {
	code := c.Param("code")

	var (
		link *models.ShortenedURL
		err  error
	)
	if h.requestMetadata {
		link, err = h.registry.RecordClickWith(c.Request.Context(), code, clickdata.FromRequest(c.Request))
	} else {
		link, err = h.registry.RecordClick(c.Request.Context(), code)
	}

	if err != nil && !errors.Is(err, service.ErrStorageWrite) {
		h.respondError(c, code, err)
		return
	}

	response := VisitResponse{
		ShortCode:   link.ShortCode,
		OriginalURL: link.OriginalURL,
		Clicks:      link.Clicks,
		Click:       link.ClickData[len(link.ClickData)-1],
	}
	if err != nil {
		response.Warning = warnNotPersisted
	}

	c.JSON(http.StatusOK, response)
}

// GetClicks возвращает детали переходов по ссылке
func (h *LinkHandler) GetClicks(c *gin.Context) {
	code := c.Param("code")

	link, err := h.registry.Get(c.Request.Context(), code)
	if err != nil {
		h.respondError(c, code, err)
		return
	}

	c.JSON(http.StatusOK, ClicksResponse{
		ShortCode: link.ShortCode,
		Clicks:    link.Clicks,
		ClickData: link.ClickData,
	})
}

// Prune удаляет истёкшие ссылки по запросу
func (h *LinkHandler) Prune(c *gin.Context) {
	removed, err := h.registry.PruneExpired(c.Request.Context(), h.registry.Now())

	response := PruneResponse{Removed: removed}
	if err != nil {
		h.logger.Error("Failed to persist after prune", zap.Error(err))
		response.Warning = warnNotPersisted
	}

	c.JSON(http.StatusOK, response)
}

// GetStats возвращает сводную статистику
func (h *LinkHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.registry.Stats(c.Request.Context(), h.registry.Now()))
}

// HealthCheck проверка доступности
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *LinkHandler) respondError(c *gin.Context, code string, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Short URL not found",
		})
	case errors.Is(err, service.ErrExpired):
		c.JSON(http.StatusGone, ErrorResponse{
			Error:   "expired",
			Message: "This short URL has expired",
		})
	default:
		h.logger.Error("Unexpected registry error", zap.String("code", code), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Internal error",
		})
	}
}

func toLinkResponse(link models.ShortenedURL, now time.Time) LinkResponse {
	return LinkResponse{
		ShortenedURL:  link,
		Active:        link.IsActive(now),
		TimeRemaining: link.TimeRemaining(now),
	}
}
