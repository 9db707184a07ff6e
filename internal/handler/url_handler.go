package handler

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/sirupsen/logrus"

	"github.com/arpitbanna/url-shortener/internal/counter"
	"github.com/arpitbanna/url-shortener/internal/models"
	"github.com/arpitbanna/url-shortener/internal/repo/interfaces"
	"github.com/arpitbanna/url-shortener/internal/trending"
)

// ClickPublisher queues click events for the background pipeline.
type ClickPublisher interface {
	SendClickEvent(event *models.ClickEvent) error
}

const (
	codeLength  = 8
	urlCacheTTL = 24 * time.Hour
)

var validate = validator.New()

type URLHandler struct {
	repo     interfaces.URLRepo
	store    counter.Store
	producer ClickPublisher
	limiter  *RateLimiter
}

func NewURLHandler(repo interfaces.URLRepo, store counter.Store, producer ClickPublisher, limiter *RateLimiter) *URLHandler {
	return &URLHandler{
		repo:     repo,
		store:    store,
		producer: producer,
		limiter:  limiter,
	}
}

type shortenRequest struct {
	URL  string `json:"url" validate:"required,url"`
	Code string `json:"code"`
}

// cachedURL is the redirect cache entry, keyed by short code.
type cachedURL struct {
	ID          string `json:"id"`
	OriginalURL string `json:"original_url"`
}

func (h *URLHandler) Shorten(c *fiber.Ctx) error {
	var req shortenRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	userID := c.Get("X-User-ID")
	if userID == "" {
		userID = "anonymous"
	}

	allowed, err := h.limiter.Allow(c, userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "rate limit check failed",
		})
	}
	if !allowed {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error": fmt.Sprintf("rate limit exceeded: %d requests per minute", h.limiter.limit),
		})
	}

	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid URL",
		})
	}

	code := req.Code
	if code == "" {
		code, err = gonanoid.New(codeLength)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to generate code",
			})
		}
	}

	url := &models.URL{
		ID:          uuid.NewString(),
		Code:        code,
		OriginalURL: req.URL,
		UserID:      userID,
		CreatedAt:   time.Now(),
	}
	if err := h.repo.CreateURL(c.Context(), url); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to create short url",
		})
	}

	h.cacheURL(c, url)
	logrus.WithFields(logrus.Fields{"user": userID, "code": code}).Info("url shortened")

	return c.JSON(fiber.Map{
		"code":      code,
		"short_url": fmt.Sprintf("%s/%s", c.BaseURL(), code),
	})
}

// Redirect resolves the code (cache first, database fallback), dispatches
// the click event to the pipeline, and sends the visitor on. The pipeline
// is strictly fire-and-forget: nothing here waits on fraud or analytics.
func (h *URLHandler) Redirect(c *fiber.Ctx) error {
	code := c.Params("code")

	cached, ok := h.lookupCache(c, code)
	if !ok {
		url, err := h.repo.GetURLByCode(c.Context(), code)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "lookup failed",
			})
		}
		if url == nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "URL not found",
			})
		}
		cached = cachedURL{ID: url.ID, OriginalURL: url.OriginalURL}
		h.cacheURL(c, url)
	}

	event := &models.ClickEvent{
		EventID:        uuid.NewString(),
		URLID:          cached.ID,
		Code:           code,
		IPAddress:      clientIP(c),
		UserAgent:      c.Get(fiber.HeaderUserAgent),
		Referrer:       c.Get(fiber.HeaderReferer),
		AcceptLanguage: c.Get(fiber.HeaderAcceptLanguage),
		Timestamp:      time.Now(),
	}
	go func() {
		if err := h.producer.SendClickEvent(event); err != nil {
			logrus.WithError(err).WithField("code", code).Error("failed to queue click event")
		}
	}()

	return c.Redirect(cached.OriginalURL, fiber.StatusFound)
}

func (h *URLHandler) Stats(c *fiber.Ctx) error {
	code := c.Params("code")

	userID := c.Get("X-User-ID")
	if userID == "" {
		userID = "anonymous"
	}
	allowed, err := h.limiter.Allow(c, userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "rate limit check failed",
		})
	}
	if !allowed {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error": fmt.Sprintf("rate limit exceeded: %d requests per minute", h.limiter.limit),
		})
	}

	url, err := h.repo.GetURLByCode(c.Context(), code)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "lookup failed",
		})
	}
	if url == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "URL not found",
		})
	}

	return c.JSON(fiber.Map{
		"original_url": url.OriginalURL,
		"clicks":       url.Clicks,
	})
}

func (h *URLHandler) Analytics(c *fiber.Ctx) error {
	code := c.Params("code")

	url, err := h.repo.GetURLByCode(c.Context(), code)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "lookup failed",
		})
	}
	if url == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "URL not found",
		})
	}

	hourly, err := h.repo.GetHourlyAnalytics(c.Context(), url.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to fetch analytics",
		})
	}
	referrers, err := h.repo.GetTopReferrers(c.Context(), url.ID, 10)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to fetch referrers",
		})
	}

	return c.JSON(fiber.Map{
		"hourly":        hourly,
		"top_referrers": referrers,
	})
}

func (h *URLHandler) Trending(c *fiber.Ctx) error {
	entries, err := trending.Snapshot(c.Context(), h.store)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to fetch trending urls",
		})
	}
	return c.JSON(entries)
}

func HealthCheck(c *fiber.Ctx) error {
	return c.SendString("OK")
}

func (h *URLHandler) cacheURL(c *fiber.Ctx, url *models.URL) {
	payload, err := json.Marshal(cachedURL{ID: url.ID, OriginalURL: url.OriginalURL})
	if err != nil {
		return
	}
	if err := h.store.Set(c.Context(), "url:"+url.Code, string(payload), urlCacheTTL); err != nil {
		logrus.WithError(err).WithField("code", url.Code).Warn("cache url")
	}
}

func (h *URLHandler) lookupCache(c *fiber.Ctx, code string) (cachedURL, bool) {
	raw, ok, err := h.store.Get(c.Context(), "url:"+code)
	if err != nil || !ok {
		return cachedURL{}, false
	}
	var cached cachedURL
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		return cachedURL{}, false
	}
	return cached, true
}
