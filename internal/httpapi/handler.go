// Package httpapi exposes the search engine over HTTP.
package httpapi

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/KevinWangQQ/youtube-influencer-finder/internal/cache"
	"github.com/KevinWangQQ/youtube-influencer-finder/internal/credential"
	"github.com/KevinWangQQ/youtube-influencer-finder/internal/finder"
	"github.com/KevinWangQQ/youtube-influencer-finder/internal/platform"
)

// Searcher is the engine surface the handlers need. Satisfied by
// *finder.Finder; tests substitute stubs.
type Searcher interface {
	Search(ctx context.Context, q finder.SearchQuery) (*finder.Result, error)
}

// Handler holds the API's collaborators.
type Handler struct {
	searcher Searcher
	pool     *credential.Pool
	cache    *cache.Cache
	log      *slog.Logger
}

func NewHandler(searcher Searcher, pool *credential.Pool, c *cache.Cache, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{searcher: searcher, pool: pool, cache: c, log: logger}
}

// Search runs one discovery search. POST /api/search.
func (h *Handler) Search(c fiber.Ctx) error {
	var q finder.SearchQuery
	if err := c.Bind().JSON(&q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	res, err := h.searcher.Search(c.Context(), q)
	if err != nil {
		return searchError(err)
	}
	if res.FromCache {
		c.Set("X-Cache", "hit")
	}
	return c.JSON(res)
}

// Credentials reports pool status without exposing key material.
// GET /api/credentials.
func (h *Handler) Credentials(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"credentials": h.pool.Snapshot()})
}

// ResetCredentials returns every credential to active with zeroed usage.
// POST /api/credentials/reset.
func (h *Handler) ResetCredentials(c fiber.Ctx) error {
	h.pool.ResetAll()
	h.log.Info("credential pool reset via API")
	return c.JSON(fiber.Map{"credentials": h.pool.Snapshot()})
}

// FlushCache drops all cached search results. POST /api/cache/invalidate.
func (h *Handler) FlushCache(c fiber.Ctx) error {
	h.cache.Flush(c.Context())
	hits, misses := h.cache.Stats()
	h.log.Info("result cache flushed via API")
	return c.JSON(fiber.Map{"flushed": true, "hits": hits, "misses": misses})
}

// searchError maps engine failures onto HTTP statuses the UI can act on.
func searchError(err error) error {
	switch {
	case errors.Is(err, finder.ErrEmptyTopic):
		return fiber.NewError(fiber.StatusBadRequest, "topic must not be empty")
	case errors.Is(err, credential.ErrNoActiveCredential):
		return fiber.NewError(fiber.StatusServiceUnavailable, "all API credentials are exhausted or failing")
	}

	var perr *platform.Error
	if errors.As(err, &perr) {
		switch perr.Kind {
		case platform.KindBadRequest:
			return fiber.NewError(fiber.StatusBadRequest, "upstream rejected the query")
		case platform.KindRateLimited:
			return fiber.NewError(fiber.StatusTooManyRequests, "upstream rate limit hit, retry shortly")
		case platform.KindQuotaExceeded, platform.KindInvalidCredential:
			return fiber.NewError(fiber.StatusServiceUnavailable, "API credentials are exhausted or failing")
		default:
			return fiber.NewError(fiber.StatusBadGateway, "upstream search service unavailable")
		}
	}
	return err
}
