package state

import (
	"secret-game-be/internal/api/ratelimit"
	"secret-game-be/internal/config"
	"secret-game-be/internal/service"
	"secret-game-be/internal/service/randomness"
)

type AppState struct {
	Cfg     *config.AppConfig
	GameSvc *service.GameService
	// 仅在外部预言机模式下非空
	ExternalOracle *randomness.ExternalOracle
	Limiter        *ratelimit.Limiter
}

func NewAppState(
	cfg *config.AppConfig,
	gameSvc *service.GameService,
	externalOracle *randomness.ExternalOracle,
) *AppState {
	return &AppState{
		Cfg:            cfg,
		GameSvc:        gameSvc,
		ExternalOracle: externalOracle,
		Limiter:        ratelimit.New(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst),
	}
}
