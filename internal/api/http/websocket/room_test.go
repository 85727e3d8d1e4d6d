package websocket_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	apihttp "secret-game-be/internal/api/http"
	"secret-game-be/internal/config"
	"secret-game-be/internal/service"
	"secret-game-be/internal/service/game"
	"secret-game-be/internal/service/randomness"
	"secret-game-be/internal/state"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wireResponse struct {
	RespType  string          `json:"response_type"`
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
	ErrMsg    string          `json:"error_message"`
	ErrCode   string          `json:"error_code"`
}

type harness struct {
	svc    *service.GameService
	server *httptest.Server
	cancel context.CancelFunc
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg := &config.AppConfig{
		Host:   "127.0.0.1",
		Port:   8080,
		Oracle: config.OracleConfig{Mode: config.ORACLE_MODE_EXTERNAL, CallbackToken: "token"},
	}

	oracle := randomness.NewExternalOracle()
	svc := service.NewGameService(oracle, nil, service.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		svc.Run(ctx)
	}()

	app := apihttp.NewApp(state.NewAppState(cfg, svc, oracle))
	require.NoError(t, app.Build())

	server := httptest.NewServer(app)

	t.Cleanup(func() {
		server.Close()
		cancel()
		<-done
	})

	return &harness{svc: svc, server: server, cancel: cancel}
}

func (h *harness) activeRoom(t *testing.T) game.RoomID {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, h.svc.ClaimGameMaster(ctx, "arbiter"))

	info, err := h.svc.StartGame(ctx, "arbiter", game.RoomParams{
		MaxPlayers:          3,
		MinRange:            1,
		MaxRange:            10,
		MaxGuessesPerPlayer: 2,
		SpeedBonusThreshold: 1,
	})
	require.NoError(t, err)

	activated, err := h.svc.ActivateGame(ctx, "arbiter", info.ID)
	require.NoError(t, err)

	_, err = h.svc.FulfillRandomness(ctx, randomness.RequestID(activated.PendingRequestID), 4)
	require.NoError(t, err)

	return info.ID
}

func (h *harness) url(path string) string {
	return "ws" + strings.TrimPrefix(h.server.URL, "http") + path
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	t.Cleanup(func() {
		conn.Close()
	})

	return conn
}

func read(t *testing.T, conn *websocket.Conn) wireResponse {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))

	var resp wireResponse
	require.NoError(t, conn.ReadJSON(&resp))

	return resp
}

func send(t *testing.T, conn *websocket.Conn, requestID, reqType string, data any) {
	t.Helper()

	payload, err := json.Marshal(data)
	require.NoError(t, err)

	require.NoError(t, conn.WriteJSON(game.RequestWrapper{
		ReqType:   reqType,
		RequestID: requestID,
		Data:      payload,
	}))
}

func TestRoomEvents_SnapshotRequestsAndEvents(t *testing.T) {
	h := newHarness(t)
	roomID := h.activeRoom(t)

	conn := dial(t, h.url(fmt.Sprintf("/api/v1/ws/rooms/%d?identity=alice", roomID)))

	snapshot := read(t, conn)
	require.Equal(t, game.RESP_SNAPSHOT, snapshot.RespType)

	var info game.RoomInfo
	require.NoError(t, json.Unmarshal(snapshot.Data, &info))
	assert.Equal(t, roomID, info.ID)
	assert.Equal(t, game.STATUS_ACTIVE, info.Status)

	send(t, conn, "join-1", game.REQ_JOIN_GAME, game.RoomRequest{RoomID: roomID})

	// 事件与响应的先后不固定
	var gotResult, gotEvent bool
	for !(gotResult && gotEvent) {
		msg := read(t, conn)

		switch msg.RespType {
		case game.RESP_RESULT:
			assert.Equal(t, "join-1", msg.RequestID)

			var joined game.JoinGameResponse
			require.NoError(t, json.Unmarshal(msg.Data, &joined))
			assert.Equal(t, game.JoinGameResponse{RoomID: roomID, Player: "alice"}, joined)
			gotResult = true

		case game.RESP_EVENT:
			var ev struct {
				Type string `json:"event_type"`
			}
			require.NoError(t, json.Unmarshal(msg.Data, &ev))
			assert.Equal(t, game.EVENT_PLAYER_JOINED, ev.Type)
			gotEvent = true

		default:
			t.Fatalf("unexpected message %+v", msg)
		}
	}

	send(t, conn, "join-2", game.REQ_JOIN_GAME, game.RoomRequest{RoomID: roomID})

	msg := read(t, conn)
	assert.Equal(t, game.RESP_ERROR, msg.RespType)
	assert.Equal(t, "join-2", msg.RequestID)
	assert.Equal(t, string(game.CODE_ALREADY_JOINED), msg.ErrCode)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))

	msg = read(t, conn)
	assert.Equal(t, game.RESP_ERROR, msg.RespType)
	assert.Equal(t, string(game.CODE_INVALID_REQUEST), msg.ErrCode)
}

func TestRoomEvents_EventsFromOtherClients(t *testing.T) {
	h := newHarness(t)
	roomID := h.activeRoom(t)

	watcher := dial(t, h.url(fmt.Sprintf("/api/v1/ws/rooms/%d?identity=watcher", roomID)))
	require.Equal(t, game.RESP_SNAPSHOT, read(t, watcher).RespType)

	ctx := context.Background()
	require.NoError(t, h.svc.JoinGame(ctx, "bob", roomID))

	_, err := h.svc.MakeGuess(ctx, "bob", roomID, 3, 5)
	require.NoError(t, err)

	var types []string
	for len(types) < 4 {
		msg := read(t, watcher)
		require.Equal(t, game.RESP_EVENT, msg.RespType)

		var ev struct {
			Type string `json:"event_type"`
		}
		require.NoError(t, json.Unmarshal(msg.Data, &ev))
		types = append(types, ev.Type)
	}

	// 秘密为 5，bob 第一次命中，游戏结束
	assert.Equal(t, []string{
		game.EVENT_PLAYER_JOINED,
		game.EVENT_GUESS_MADE,
		game.EVENT_GAME_ENDED,
		game.EVENT_STATUS_CHANGED,
	}, types)
}

func TestRoomEvents_Rejections(t *testing.T) {
	h := newHarness(t)
	roomID := h.activeRoom(t)

	_, resp, err := websocket.DefaultDialer.Dial(h.url(fmt.Sprintf("/api/v1/ws/rooms/%d", roomID)), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(h.url("/api/v1/ws/rooms/999?identity=alice"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	header := http.Header{}
	header.Set("X-Identity", "alice")

	conn, _, err := websocket.DefaultDialer.Dial(h.url(fmt.Sprintf("/api/v1/ws/rooms/%d", roomID)), header)
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, game.RESP_SNAPSHOT, read(t, conn).RespType)
}

func TestRoomEvents_RejectsOversizedIdentity(t *testing.T) {
	h := newHarness(t)
	roomID := h.activeRoom(t)
	path := fmt.Sprintf("/api/v1/ws/rooms/%d", roomID)

	header := http.Header{}
	header.Set("X-Identity", strings.Repeat("a", game.MAX_IDENTITY_LEN+1))

	_, resp, err := websocket.DefaultDialer.Dial(h.url(path), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(h.url(path+"?identity="+strings.Repeat("b", game.MAX_IDENTITY_LEN+1)), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn := dial(t, h.url(path+"?identity="+strings.Repeat("c", game.MAX_IDENTITY_LEN)))
	assert.Equal(t, game.RESP_SNAPSHOT, read(t, conn).RespType)
}

func TestRoomEvents_ClosedOnShutdown(t *testing.T) {
	h := newHarness(t)
	roomID := h.activeRoom(t)

	conn := dial(t, h.url(fmt.Sprintf("/api/v1/ws/rooms/%d?identity=alice", roomID)))
	require.Equal(t, game.RESP_SNAPSHOT, read(t, conn).RespType)

	h.cancel()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), err.Error())
}
