package service

import (
	"context"
	"fmt"

	"secret-game-be/internal/service/commitment"
	"secret-game-be/internal/service/game"

	"go.uber.org/zap"
)

// HandleRequest 处理一条来自 WebSocket 的请求，结果和错误都包装成响应返回
func (gs *GameService) HandleRequest(ctx context.Context, caller game.Identity, wrapper game.RequestWrapper) game.ResponseWrapper {
	data, err := gs.handle(ctx, caller, wrapper)

	var resp game.ResponseWrapper
	if err != nil {
		zap.L().Debug(
			"请求被拒绝",
			zap.String("identity", string(caller)),
			zap.String("request_type", wrapper.ReqType),
			zap.Error(err),
		)

		resp = game.WrapErrResponse(err)
	} else {
		resp = game.WrapResponse(game.RESP_RESULT, data)
	}

	resp.RequestID = wrapper.RequestID

	return resp
}

func invalid(reqType string) error {
	return fmt.Errorf("%w：%s 请求体无效", game.ErrInvalidRequest, reqType)
}

func (gs *GameService) handle(ctx context.Context, caller game.Identity, wrapper game.RequestWrapper) (any, error) {
	reqType := wrapper.ReqType

	switch reqType {
	case game.REQ_CLAIM_GAME_MASTER:
		if err := gs.ClaimGameMaster(ctx, caller); err != nil {
			return nil, err
		}

		return gs.ArbiterStatus(ctx, caller)

	case game.REQ_START_GAME:
		req := game.TryUnwrap[game.StartGameRequest](wrapper, reqType)
		if req == nil {
			return nil, invalid(reqType)
		}

		return gs.StartGame(ctx, caller, req.Params())

	case game.REQ_SET_SECRET_COMMITMENT:
		req := game.TryUnwrap[game.SecretCommitmentRequest](wrapper, reqType)
		if req == nil {
			return nil, invalid(reqType)
		}

		hash, err := commitment.ParseHash(req.Commitment)
		if err != nil {
			return nil, fmt.Errorf("%w：%v", game.ErrInvalidRequest, err)
		}

		if err := gs.SetSecretCommitment(ctx, caller, req.RoomID, hash); err != nil {
			return nil, err
		}

		return gs.RoomInfo(ctx, req.RoomID)

	case game.REQ_ACTIVATE_GAME:
		req := game.TryUnwrap[game.RoomRequest](wrapper, reqType)
		if req == nil {
			return nil, invalid(reqType)
		}

		return gs.ActivateGame(ctx, caller, req.RoomID)

	case game.REQ_JOIN_GAME:
		req := game.TryUnwrap[game.RoomRequest](wrapper, reqType)
		if req == nil {
			return nil, invalid(reqType)
		}

		if err := gs.JoinGame(ctx, caller, req.RoomID); err != nil {
			return nil, err
		}

		return game.JoinGameResponse{RoomID: req.RoomID, Player: caller}, nil

	case game.REQ_JOIN_WITH_INVITE:
		req := game.TryUnwrap[game.JoinWithInviteRequest](wrapper, reqType)
		if req == nil {
			return nil, invalid(reqType)
		}

		roomID, err := gs.JoinGameWithInvite(ctx, caller, req.InviteCode)
		if err != nil {
			return nil, err
		}

		return game.JoinGameResponse{RoomID: roomID, Player: caller}, nil

	case game.REQ_COMMIT_GUESS:
		req := game.TryUnwrap[game.CommitGuessRequest](wrapper, reqType)
		if req == nil {
			return nil, invalid(reqType)
		}

		hash, err := commitment.ParseHash(req.Commitment)
		if err != nil {
			return nil, fmt.Errorf("%w：%v", game.ErrInvalidRequest, err)
		}

		if err := gs.CommitGuess(ctx, caller, req.RoomID, hash); err != nil {
			return nil, err
		}

		return gs.PlayerStatus(ctx, req.RoomID, caller)

	case game.REQ_REVEAL_GUESS:
		req := game.TryUnwrap[game.RevealGuessRequest](wrapper, reqType)
		if req == nil {
			return nil, invalid(reqType)
		}

		salt, err := commitment.ParseSalt(req.Salt)
		if err != nil {
			return nil, fmt.Errorf("%w：%v", game.ErrInvalidRequest, err)
		}

		return gs.RevealGuess(ctx, caller, req.RoomID, req.TotalPrediction, req.SecretGuess, salt)

	case game.REQ_MAKE_GUESS:
		req := game.TryUnwrap[game.MakeGuessRequest](wrapper, reqType)
		if req == nil {
			return nil, invalid(reqType)
		}

		return gs.MakeGuess(ctx, caller, req.RoomID, req.TotalPrediction, req.SecretGuess)

	case game.REQ_REVEAL_SECRET:
		req := game.TryUnwrap[game.RevealSecretRequest](wrapper, reqType)
		if req == nil {
			return nil, invalid(reqType)
		}

		salt, err := commitment.ParseSalt(req.Salt)
		if err != nil {
			return nil, fmt.Errorf("%w：%v", game.ErrInvalidRequest, err)
		}

		return gs.RevealSecret(ctx, caller, req.RoomID, req.Secret, salt)

	case game.REQ_GIVE_HINT:
		req := game.TryUnwrap[game.RoomRequest](wrapper, reqType)
		if req == nil {
			return nil, invalid(reqType)
		}

		return gs.GiveHint(ctx, caller, req.RoomID)

	case game.REQ_END_GAME:
		req := game.TryUnwrap[game.RoomRequest](wrapper, reqType)
		if req == nil {
			return nil, invalid(reqType)
		}

		return gs.EndGame(ctx, caller, req.RoomID)

	case game.REQ_RESET_GAME:
		req := game.TryUnwrap[game.RoomRequest](wrapper, reqType)
		if req == nil {
			return nil, invalid(reqType)
		}

		return gs.ResetGame(ctx, caller, req.RoomID)
	}

	return nil, fmt.Errorf("%w：未知的请求类型 %q", game.ErrInvalidRequest, reqType)
}
