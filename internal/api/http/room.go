package http

import (
	"secret-game-be/internal/service/commitment"
	"secret-game-be/internal/service/dto"
	"secret-game-be/internal/service/game"
	"secret-game-be/internal/state"

	"github.com/kataras/iris/v12"
)

func StartGame(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		var req game.StartGameRequest
		if !readJSON(ctx, &req) {
			return
		}

		info, err := appState.GameSvc.StartGame(ctx.Request().Context(), caller(ctx), req.Params())
		respond(ctx, iris.StatusCreated, info, err)
	}
}

func ListRooms(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		rooms, err := appState.GameSvc.ListRooms(ctx.Request().Context())
		respond(ctx, iris.StatusOK, rooms, err)
	}
}

func GetNextRoomID(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		next, err := appState.GameSvc.NextRoomID(ctx.Request().Context())
		respond(ctx, iris.StatusOK, dto.NextRoomIDResponse{NextRoomID: next}, err)
	}
}

func GetRoom(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		info, err := appState.GameSvc.RoomInfo(ctx.Request().Context(), roomID(ctx))
		respond(ctx, iris.StatusOK, info, err)
	}
}

func GetPlayers(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		players, err := appState.GameSvc.Players(ctx.Request().Context(), roomID(ctx))
		respond(ctx, iris.StatusOK, players, err)
	}
}

func GetPlayerStatus(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		player := game.Identity(ctx.Params().Get("identity"))

		status, err := appState.GameSvc.PlayerStatus(ctx.Request().Context(), roomID(ctx), player)
		respond(ctx, iris.StatusOK, status, err)
	}
}

func SetSecretCommitment(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		var req game.SecretCommitmentRequest
		if !readJSON(ctx, &req) {
			return
		}

		hash, err := commitment.ParseHash(req.Commitment)
		if err != nil {
			writeError(ctx, invalidBody(err))
			return
		}

		svc := appState.GameSvc
		reqCtx := ctx.Request().Context()

		if err := svc.SetSecretCommitment(reqCtx, caller(ctx), roomID(ctx), hash); err != nil {
			writeError(ctx, err)
			return
		}

		info, err := svc.RoomInfo(reqCtx, roomID(ctx))
		respond(ctx, iris.StatusOK, info, err)
	}
}

func ActivateGame(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		info, err := appState.GameSvc.ActivateGame(ctx.Request().Context(), caller(ctx), roomID(ctx))
		respond(ctx, iris.StatusAccepted, info, err)
	}
}

func JoinGame(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		id := roomID(ctx)

		err := appState.GameSvc.JoinGame(ctx.Request().Context(), caller(ctx), id)
		respond(ctx, iris.StatusOK, game.JoinGameResponse{RoomID: id, Player: caller(ctx)}, err)
	}
}

func JoinGameWithInvite(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		id, err := appState.GameSvc.JoinGameWithInvite(ctx.Request().Context(), caller(ctx), ctx.Params().Get("code"))
		respond(ctx, iris.StatusOK, game.JoinGameResponse{RoomID: id, Player: caller(ctx)}, err)
	}
}

func ResolveInvite(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		resp, err := appState.GameSvc.ResolveInviteCode(ctx.Request().Context(), ctx.Params().Get("code"))
		respond(ctx, iris.StatusOK, resp, err)
	}
}

func CommitGuess(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		var req game.CommitGuessRequest
		if !readJSON(ctx, &req) {
			return
		}

		hash, err := commitment.ParseHash(req.Commitment)
		if err != nil {
			writeError(ctx, invalidBody(err))
			return
		}

		svc := appState.GameSvc
		reqCtx := ctx.Request().Context()

		if err := svc.CommitGuess(reqCtx, caller(ctx), roomID(ctx), hash); err != nil {
			writeError(ctx, err)
			return
		}

		status, err := svc.PlayerStatus(reqCtx, roomID(ctx), caller(ctx))
		respond(ctx, iris.StatusOK, status, err)
	}
}

func RevealGuess(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		var req game.RevealGuessRequest
		if !readJSON(ctx, &req) {
			return
		}

		salt, err := commitment.ParseSalt(req.Salt)
		if err != nil {
			writeError(ctx, invalidBody(err))
			return
		}

		res, err := appState.GameSvc.RevealGuess(
			ctx.Request().Context(),
			caller(ctx),
			roomID(ctx),
			req.TotalPrediction,
			req.SecretGuess,
			salt,
		)
		respond(ctx, iris.StatusOK, res, err)
	}
}

func MakeGuess(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		var req game.MakeGuessRequest
		if !readJSON(ctx, &req) {
			return
		}

		res, err := appState.GameSvc.MakeGuess(
			ctx.Request().Context(),
			caller(ctx),
			roomID(ctx),
			req.TotalPrediction,
			req.SecretGuess,
		)
		respond(ctx, iris.StatusOK, res, err)
	}
}

func RevealSecret(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		var req game.RevealSecretRequest
		if !readJSON(ctx, &req) {
			return
		}

		salt, err := commitment.ParseSalt(req.Salt)
		if err != nil {
			writeError(ctx, invalidBody(err))
			return
		}

		info, err := appState.GameSvc.RevealSecret(ctx.Request().Context(), caller(ctx), roomID(ctx), req.Secret, salt)
		respond(ctx, iris.StatusOK, info, err)
	}
}

func GiveHint(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		hint, err := appState.GameSvc.GiveHint(ctx.Request().Context(), caller(ctx), roomID(ctx))
		respond(ctx, iris.StatusOK, hint, err)
	}
}

func EndGame(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		resp, err := appState.GameSvc.EndGame(ctx.Request().Context(), caller(ctx), roomID(ctx))
		respond(ctx, iris.StatusOK, resp, err)
	}
}

func ResetGame(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		info, err := appState.GameSvc.ResetGame(ctx.Request().Context(), caller(ctx), roomID(ctx))
		respond(ctx, iris.StatusOK, info, err)
	}
}
