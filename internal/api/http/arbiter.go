package http

import (
	"secret-game-be/internal/service/game"
	"secret-game-be/internal/state"

	"github.com/kataras/iris/v12"
)

func ClaimGameMaster(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		svc := appState.GameSvc
		reqCtx := ctx.Request().Context()

		if err := svc.ClaimGameMaster(reqCtx, caller(ctx)); err != nil {
			writeError(ctx, err)
			return
		}

		resp, err := svc.ArbiterStatus(reqCtx, caller(ctx))
		respond(ctx, iris.StatusOK, resp, err)
	}
}

func GetArbiterStatus(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		identity := game.Identity(ctx.Params().Get("identity"))

		resp, err := appState.GameSvc.ArbiterStatus(ctx.Request().Context(), identity)
		respond(ctx, iris.StatusOK, resp, err)
	}
}
