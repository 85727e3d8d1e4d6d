package http

import (
	"crypto/subtle"
	"errors"

	"secret-game-be/internal/service/commitment"
	"secret-game-be/internal/service/dto"
	"secret-game-be/internal/service/randomness"
	"secret-game-be/internal/state"

	"github.com/kataras/iris/v12"
	"go.uber.org/zap"
)

// FulfillRandomness 接收外部预言机提交的随机数
func FulfillRandomness(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		if appState.ExternalOracle == nil {
			writeError(ctx, errOracleDisabled)
			return
		}

		var req dto.FulfillRequest
		if !readJSON(ctx, &req) {
			return
		}

		expected := []byte(appState.Cfg.Oracle.CallbackToken)
		if subtle.ConstantTimeCompare([]byte(req.CallbackToken), expected) != 1 {
			zap.L().Warn("预言机回调令牌无效", zap.String("request_id", req.RequestID))
			writeError(ctx, errBadToken)
			return
		}

		if req.RequestID == "" {
			writeError(ctx, invalidBody(errors.New("缺少 request_id")))
			return
		}

		id := randomness.RequestID(req.RequestID)

		roomID, err := appState.GameSvc.FulfillRandomness(ctx.Request().Context(), id, req.Value)
		respond(ctx, iris.StatusOK, dto.FulfillResponse{RequestID: req.RequestID, RoomID: uint64(roomID)}, err)
	}
}

func PendingRequests(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		if appState.ExternalOracle == nil {
			writeError(ctx, errOracleDisabled)
			return
		}

		outstanding := appState.ExternalOracle.Outstanding()

		ids := make([]string, 0, len(outstanding))
		for _, id := range outstanding {
			ids = append(ids, string(id))
		}

		respond(ctx, iris.StatusOK, dto.PendingRequestsResponse{RequestIDs: ids}, nil)
	}
}

// ComputeCommitment 计算猜测或秘密数字的承诺，盐值为空时生成新的
func ComputeCommitment(ctx iris.Context) {
	var req dto.CommitmentRequest
	if !readJSON(ctx, &req) {
		return
	}

	if req.Identity == "" {
		writeError(ctx, invalidBody(errors.New("缺少 identity")))
		return
	}

	var (
		salt commitment.Salt
		err  error
	)

	if req.Salt == "" {
		salt, err = commitment.NewSalt()
	} else {
		salt, err = commitment.ParseSalt(req.Salt)
		if err != nil {
			err = invalidBody(err)
		}
	}
	if err != nil {
		writeError(ctx, err)
		return
	}

	var resp dto.CommitmentResponse

	switch req.Kind {
	case dto.COMMITMENT_KIND_GUESS, "":
		resp.Commitment = commitment.Commit(req.TotalPrediction, req.Value, salt, req.Identity).String()
	case dto.COMMITMENT_KIND_SECRET:
		resp.Commitment = commitment.CommitSecret(req.Value, salt, req.Identity).String()
	default:
		writeError(ctx, invalidBody(errors.New("未知的承诺类型 "+req.Kind)))
		return
	}

	resp.Salt = salt.String()

	respond(ctx, iris.StatusOK, resp, nil)
}
