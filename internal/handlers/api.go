package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"playergate/internal/fetch"
	"playergate/internal/metrics"
	"playergate/internal/platform"
	"playergate/internal/synthetic"
	"playergate/pkg/logging/logging"
	"playergate/pkg/types"
)

// Platform is the subset of *platform.Client the API serves.
type Platform interface {
	PlayerProfile(ctx context.Context, userID int64) (*platform.PlayerProfile, error)
	Avatar(ctx context.Context, userID int64, size string) (*platform.Avatar, error)
	Game(ctx context.Context, universeID int64) (*platform.Game, error)
	GameStats(ctx context.Context, universeID int64) (*platform.GameStats, error)
	Group(ctx context.Context, groupID int64) (*platform.Group, error)
	Asset(ctx context.Context, assetID int64) (*platform.Asset, error)
	Leaderboard(ctx context.Context, universeID int64, name string, limit int) (*platform.Leaderboard, error)
	Events(ctx context.Context, universeID int64) (*platform.Events, error)
}

// APIHandler serves the /api/v1 resources.
type APIHandler struct {
	Platform  Platform
	Synthetic *synthetic.Generator
	// Fallback serves synthetic data when the upstream fails.
	Fallback bool
}

func NewAPIHandler(p Platform, gen *synthetic.Generator, fallback bool) *APIHandler {
	return &APIHandler{Platform: p, Synthetic: gen, Fallback: fallback}
}

// Routes mounts the resource endpoints on r.
func (h *APIHandler) Routes(r chi.Router) {
	r.Get("/players/{id}", h.Player)
	r.Get("/players/{id}/avatar", h.Avatar)
	r.Get("/games/{id}", h.Game)
	r.Get("/games/{id}/stats", h.GameStats)
	r.Get("/groups/{id}", h.Group)
	r.Get("/assets/{id}", h.Asset)
	r.Get("/leaderboards/{universeId}/{name}", h.Leaderboard)
	r.Get("/events/{universeId}", h.Events)
}

func (h *APIHandler) Player(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeInvalid(w, r, err)
		return
	}
	serve(h, w, r, "player",
		func(ctx context.Context) (*platform.PlayerProfile, error) { return h.Platform.PlayerProfile(ctx, id) },
		func() *platform.PlayerProfile { return h.Synthetic.PlayerProfile(id) },
	)
}

func (h *APIHandler) Avatar(w http.ResponseWriter, r *http.Request) {
	p, err := parseAvatar(r)
	if err != nil {
		writeInvalid(w, r, err)
		return
	}
	serve(h, w, r, "avatar",
		func(ctx context.Context) (*platform.Avatar, error) { return h.Platform.Avatar(ctx, p.ID, p.Size) },
		func() *platform.Avatar { return h.Synthetic.Avatar(p.ID, p.Size) },
	)
}

func (h *APIHandler) Game(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeInvalid(w, r, err)
		return
	}
	serve(h, w, r, "game",
		func(ctx context.Context) (*platform.Game, error) { return h.Platform.Game(ctx, id) },
		func() *platform.Game { return h.Synthetic.Game(id) },
	)
}

func (h *APIHandler) GameStats(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeInvalid(w, r, err)
		return
	}
	serve(h, w, r, "game_stats",
		func(ctx context.Context) (*platform.GameStats, error) { return h.Platform.GameStats(ctx, id) },
		func() *platform.GameStats { return h.Synthetic.GameStats(id) },
	)
}

func (h *APIHandler) Group(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeInvalid(w, r, err)
		return
	}
	serve(h, w, r, "group",
		func(ctx context.Context) (*platform.Group, error) { return h.Platform.Group(ctx, id) },
		func() *platform.Group { return h.Synthetic.Group(id) },
	)
}

func (h *APIHandler) Asset(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeInvalid(w, r, err)
		return
	}
	serve(h, w, r, "asset",
		func(ctx context.Context) (*platform.Asset, error) { return h.Platform.Asset(ctx, id) },
		func() *platform.Asset { return h.Synthetic.Asset(id) },
	)
}

func (h *APIHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	p, err := parseLeaderboard(r)
	if err != nil {
		writeInvalid(w, r, err)
		return
	}
	serve(h, w, r, "leaderboard",
		func(ctx context.Context) (*platform.Leaderboard, error) {
			return h.Platform.Leaderboard(ctx, p.UniverseID, p.Name, p.Limit)
		},
		func() *platform.Leaderboard { return h.Synthetic.Leaderboard(p.UniverseID, p.Name, p.Limit) },
	)
}

func (h *APIHandler) Events(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "universeId")
	if err != nil {
		writeInvalid(w, r, err)
		return
	}
	serve(h, w, r, "events",
		func(ctx context.Context) (*platform.Events, error) { return h.Platform.Events(ctx, id) },
		func() *platform.Events { return h.Synthetic.Events(id) },
	)
}

// serve loads a resource and applies the fallback policy on failure.
func serve[T any](h *APIHandler, w http.ResponseWriter, r *http.Request, resource string,
	load func(context.Context) (T, error), synth func() T,
) {
	ctx := r.Context()
	logger := logging.L(ctx)
	start := time.Now()

	data, err := load(ctx)
	if err == nil {
		logger.Info("resource_served",
			zap.String("resource", resource),
			zap.String("source", types.SourceUpstream),
			zap.Float64("total_latency_ms", latencyMs(start)),
		)
		writeData(w, data, types.SourceUpstream)
		return
	}

	if errors.Is(err, platform.ErrNotFound) {
		logger.Info("resource_not_found", zap.String("resource", resource), zap.Error(err))
		writeError(w, http.StatusNotFound, types.CodeNotFound, resource+" not found")
		return
	}

	if h.Fallback && h.Synthetic != nil {
		metrics.RecordFallback(resource)
		logger.Warn("upstream_fallback",
			zap.String("resource", resource),
			zap.Float64("total_latency_ms", latencyMs(start)),
			zap.Error(err),
		)
		writeData(w, synth(), types.SourceFallback)
		return
	}

	logger.Warn("upstream_failed", zap.String("resource", resource), zap.Error(err))
	if kind, _ := fetch.KindOf(err); kind == fetch.KindTimeout {
		writeError(w, http.StatusGatewayTimeout, types.CodeUpstreamTimeout, "upstream timed out")
		return
	}
	writeError(w, http.StatusBadGateway, types.CodeUpstreamError, "upstream request failed")
}

func latencyMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

func writeData(w http.ResponseWriter, data any, source string) {
	w.Header().Set("X-Data-Source", source)
	writeJSON(w, http.StatusOK, types.Success(data, source))
}

func writeInvalid(w http.ResponseWriter, r *http.Request, err error) {
	logging.L(r.Context()).Info("invalid_request", zap.Error(err))
	writeError(w, http.StatusBadRequest, types.CodeInvalidRequest, err.Error())
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, types.Failure(code, message))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
