package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/event-raffle/internal/config"
	"github.com/iliyamo/event-raffle/internal/handler"
	"github.com/iliyamo/event-raffle/internal/middleware"
)

// RegisterRoutes registers the unauthenticated operational endpoints:
// a health check backed by a database ping and the Prometheus scrape
// endpoint.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// Guards bundles the Redis-backed middleware settings.  A nil Redis
// client turns both guards into pass-throughs.
type Guards struct {
	Redis      *redis.Client
	DrawLimit  config.DrawLimitConfig
	StatsCache config.StatsCacheConfig
}

// RegisterRaffle registers the raffle API under /v1/events/:event_id.
// Every route requires a valid operator token with the ORGANIZER or
// ADMIN role.  Draw endpoints sit behind the double-click limiter; every
// mutation drops the event's cached statistics once it succeeds.
func RegisterRaffle(e *echo.Echo, h *handler.RaffleHandler, jwtSecret string, gd Guards) {
	g := e.Group("/v1/events/:event_id")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(middleware.RoleOrganizer, middleware.RoleAdmin))

	limit := middleware.NewDrawLimiter(gd.DrawLimit, gd.Redis)
	cache := middleware.NewStatsCache(gd.StatsCache, gd.Redis)
	inval := middleware.InvalidateStats(gd.StatsCache, gd.Redis)

	// Per-prize raffles.
	g.POST("/prizes/:prize_id/entries", h.CreateEntries, inval)
	g.GET("/prizes/:prize_id/entries", h.Entries)
	g.POST("/prizes/:prize_id/draw", h.Draw, limit, inval)
	g.POST("/prizes/:prize_id/cancel", h.Cancel, inval)
	g.POST("/prizes/:prize_id/select", h.SelectManual, limit, inval)
	g.POST("/prizes/:prize_id/entries/:entry_id/reset", h.ResetEntry, inval)
	g.DELETE("/prizes/:prize_id/entries/:entry_id", h.DeleteEntry, inval)

	// General draw.
	g.POST("/general/draw", h.DrawGeneral, limit, inval)
	g.POST("/general/reselect", h.ReselectGeneral, limit, inval)
	g.GET("/general/winners", h.GeneralWinners)

	// Reporting.
	g.GET("/raffle/logs", h.Logs)
	g.GET("/raffle/stats", h.Stats, cache)
	g.GET("/raffle/consistency", h.CheckStock)
}
