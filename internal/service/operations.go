package service

import (
	"context"

	"secret-game-be/internal/service/commitment"
	"secret-game-be/internal/service/dto"
	"secret-game-be/internal/service/game"

	"github.com/decred/dcrd/chaincfg/chainhash"
)

func (gs *GameService) ClaimGameMaster(ctx context.Context, caller game.Identity) error {
	return exec(ctx, gs, func(e *game.Engine) error {
		return e.ClaimGameMaster(caller)
	})
}

func (gs *GameService) StartGame(ctx context.Context, caller game.Identity, params game.RoomParams) (game.RoomInfo, error) {
	return call(ctx, gs, func(e *game.Engine) (game.RoomInfo, error) {
		return e.StartGame(caller, params)
	})
}

func (gs *GameService) SetSecretCommitment(ctx context.Context, caller game.Identity, roomID game.RoomID, hash chainhash.Hash) error {
	return exec(ctx, gs, func(e *game.Engine) error {
		return e.SetSecretCommitment(caller, roomID, hash)
	})
}

func (gs *GameService) ActivateGame(ctx context.Context, caller game.Identity, roomID game.RoomID) (game.RoomInfo, error) {
	return call(ctx, gs, func(e *game.Engine) (game.RoomInfo, error) {
		if err := e.ActivateGame(ctx, caller, roomID); err != nil {
			return game.RoomInfo{}, err
		}

		return e.RoomInfo(roomID)
	})
}

func (gs *GameService) JoinGame(ctx context.Context, caller game.Identity, roomID game.RoomID) error {
	return exec(ctx, gs, func(e *game.Engine) error {
		return e.JoinGame(caller, roomID)
	})
}

func (gs *GameService) JoinGameWithInvite(ctx context.Context, caller game.Identity, code string) (game.RoomID, error) {
	return call(ctx, gs, func(e *game.Engine) (game.RoomID, error) {
		return e.JoinGameWithInvite(caller, code)
	})
}

func (gs *GameService) CommitGuess(ctx context.Context, caller game.Identity, roomID game.RoomID, hash chainhash.Hash) error {
	return exec(ctx, gs, func(e *game.Engine) error {
		return e.CommitGuess(caller, roomID, hash)
	})
}

func (gs *GameService) RevealGuess(ctx context.Context, caller game.Identity, roomID game.RoomID, totalPrediction uint32, secretGuess uint8, salt commitment.Salt) (game.GuessResult, error) {
	return call(ctx, gs, func(e *game.Engine) (game.GuessResult, error) {
		return e.RevealGuess(caller, roomID, totalPrediction, secretGuess, salt)
	})
}

func (gs *GameService) MakeGuess(ctx context.Context, caller game.Identity, roomID game.RoomID, totalPrediction uint32, secretGuess uint8) (game.GuessResult, error) {
	return call(ctx, gs, func(e *game.Engine) (game.GuessResult, error) {
		return e.MakeGuess(caller, roomID, totalPrediction, secretGuess)
	})
}

func (gs *GameService) RevealSecret(ctx context.Context, caller game.Identity, roomID game.RoomID, plaintext uint8, salt commitment.Salt) (game.RoomInfo, error) {
	return call(ctx, gs, func(e *game.Engine) (game.RoomInfo, error) {
		if err := e.RevealSecret(caller, roomID, plaintext, salt); err != nil {
			return game.RoomInfo{}, err
		}

		return e.RoomInfo(roomID)
	})
}

func (gs *GameService) GiveHint(ctx context.Context, caller game.Identity, roomID game.RoomID) (game.Hint, error) {
	return call(ctx, gs, func(e *game.Engine) (game.Hint, error) {
		return e.GiveHint(caller, roomID)
	})
}

func (gs *GameService) EndGame(ctx context.Context, caller game.Identity, roomID game.RoomID) (game.EndGameResponse, error) {
	return call(ctx, gs, func(e *game.Engine) (game.EndGameResponse, error) {
		outcome, err := e.EndGame(caller, roomID)
		if err != nil {
			return game.EndGameResponse{}, err
		}

		return game.EndGameResponse{RoomID: roomID, Outcome: outcome}, nil
	})
}

func (gs *GameService) ResetGame(ctx context.Context, caller game.Identity, roomID game.RoomID) (game.RoomInfo, error) {
	return call(ctx, gs, func(e *game.Engine) (game.RoomInfo, error) {
		if err := e.ResetGame(caller, roomID); err != nil {
			return game.RoomInfo{}, err
		}

		return e.RoomInfo(roomID)
	})
}

func (gs *GameService) RoomInfo(ctx context.Context, roomID game.RoomID) (game.RoomInfo, error) {
	return call(ctx, gs, func(e *game.Engine) (game.RoomInfo, error) {
		return e.RoomInfo(roomID)
	})
}

func (gs *GameService) Players(ctx context.Context, roomID game.RoomID) (dto.PlayersResponse, error) {
	return call(ctx, gs, func(e *game.Engine) (dto.PlayersResponse, error) {
		players, err := e.Players(roomID)
		if err != nil {
			return dto.PlayersResponse{}, err
		}

		return dto.PlayersResponse{RoomID: roomID, Players: players}, nil
	})
}

func (gs *GameService) GuessCount(ctx context.Context, roomID game.RoomID, player game.Identity) (int, error) {
	return call(ctx, gs, func(e *game.Engine) (int, error) {
		return e.GuessCount(roomID, player)
	})
}

// PlayerStatus 汇总玩家在房间中的加入、猜测资格和已提交的猜测
func (gs *GameService) PlayerStatus(ctx context.Context, roomID game.RoomID, player game.Identity) (dto.PlayerStatusResponse, error) {
	return call(ctx, gs, func(e *game.Engine) (dto.PlayerStatusResponse, error) {
		joined, err := e.HasJoined(roomID, player)
		if err != nil {
			return dto.PlayerStatusResponse{}, err
		}

		guesses, err := e.PlayerGuesses(roomID, player)
		if err != nil {
			return dto.PlayerStatusResponse{}, err
		}

		commits, err := e.CommitCount(roomID, player)
		if err != nil {
			return dto.PlayerStatusResponse{}, err
		}

		return dto.PlayerStatusResponse{
			RoomID:       roomID,
			Identity:     player,
			HasJoined:    joined,
			CanJoin:      e.CanJoinGame(roomID, player),
			CanMakeGuess: e.CanMakeGuess(roomID, player),
			GuessCount:   len(guesses),
			CommitCount:  commits,
			Guesses:      guesses,
		}, nil
	})
}

func (gs *GameService) ResolveInviteCode(ctx context.Context, code string) (dto.InviteResponse, error) {
	return call(ctx, gs, func(e *game.Engine) (dto.InviteResponse, error) {
		roomID, ok := e.ResolveInviteCode(code)
		if !ok {
			return dto.InviteResponse{}, game.ErrInvalidInviteCode
		}

		return dto.InviteResponse{InviteCode: code, RoomID: roomID}, nil
	})
}

func (gs *GameService) ArbiterStatus(ctx context.Context, id game.Identity) (dto.ArbiterStatusResponse, error) {
	return call(ctx, gs, func(e *game.Engine) (dto.ArbiterStatusResponse, error) {
		resp := dto.ArbiterStatusResponse{
			Identity:  id,
			IsArbiter: e.IsArbiter(id),
		}

		if roomID, ok := e.ActiveRoomOf(id); ok {
			resp.HasActiveRoom = true
			resp.ActiveRoomID = &roomID
		}

		return resp, nil
	})
}

func (gs *GameService) ListRooms(ctx context.Context) ([]game.RoomInfo, error) {
	return call(ctx, gs, func(e *game.Engine) ([]game.RoomInfo, error) {
		return e.ListRooms(), nil
	})
}

func (gs *GameService) NextRoomID(ctx context.Context) (game.RoomID, error) {
	return call(ctx, gs, func(e *game.Engine) (game.RoomID, error) {
		return e.NextRoomID(), nil
	})
}
