package dto

import "secret-game-be/internal/service/game"

type ArbiterStatusResponse struct {
	Identity      game.Identity `json:"identity"`
	IsArbiter     bool          `json:"is_arbiter"`
	HasActiveRoom bool          `json:"has_active_room"`
	// 仅在 HasActiveRoom 为 true 时有值
	ActiveRoomID *game.RoomID `json:"active_room_id,omitempty"`
}

// 玩家在某个房间中的状态
type PlayerStatusResponse struct {
	RoomID       game.RoomID   `json:"room_id"`
	Identity     game.Identity `json:"identity"`
	HasJoined    bool          `json:"has_joined"`
	CanJoin      bool          `json:"can_join"`
	CanMakeGuess bool          `json:"can_make_guess"`
	GuessCount   int           `json:"guess_count"`
	CommitCount  int           `json:"commit_count"`
	Guesses      []game.Guess  `json:"guesses"`
}

type PlayersResponse struct {
	RoomID  game.RoomID     `json:"room_id"`
	Players []game.Identity `json:"players"`
}

type InviteResponse struct {
	InviteCode string      `json:"invite_code"`
	RoomID     game.RoomID `json:"room_id"`
}

type NextRoomIDResponse struct {
	NextRoomID game.RoomID `json:"next_room_id"`
}
