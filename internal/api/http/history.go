package http

import (
	"secret-game-be/internal/service/dto"
	"secret-game-be/internal/state"

	"github.com/kataras/iris/v12"
)

const (
	DEFAULT_HISTORY_LIMIT = 20
	MAX_HISTORY_LIMIT     = 100
)

func GetHistory(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		limit := ctx.URLParamIntDefault("limit", DEFAULT_HISTORY_LIMIT)
		switch {
		case limit <= 0:
			limit = DEFAULT_HISTORY_LIMIT
		case limit > MAX_HISTORY_LIMIT:
			limit = MAX_HISTORY_LIMIT
		}

		results, err := appState.GameSvc.History(ctx.Request().Context(), limit)
		if results == nil {
			results = []dto.GameResult{}
		}

		respond(ctx, iris.StatusOK, dto.HistoryResponse{Results: results}, err)
	}
}
