package game

import (
	"slices"
	"time"

	"go.uber.org/zap"
)

func (e *Engine) RoomInfo(roomID RoomID) (RoomInfo, error) {
	room, err := e.room(roomID)
	if err != nil {
		return RoomInfo{}, err
	}

	return room.Info(), nil
}

func (e *Engine) Players(roomID RoomID) ([]Identity, error) {
	room, err := e.room(roomID)
	if err != nil {
		return nil, err
	}

	return slices.Clone(room.Players), nil
}

func (e *Engine) GuessCount(roomID RoomID, player Identity) (int, error) {
	room, err := e.room(roomID)
	if err != nil {
		return 0, err
	}

	return len(room.Guesses[player]), nil
}

func (e *Engine) CommitCount(roomID RoomID, player Identity) (int, error) {
	room, err := e.room(roomID)
	if err != nil {
		return 0, err
	}

	return len(room.Commits[player]), nil
}

func (e *Engine) PlayerGuesses(roomID RoomID, player Identity) ([]Guess, error) {
	room, err := e.room(roomID)
	if err != nil {
		return nil, err
	}

	return slices.Clone(room.Guesses[player]), nil
}

func (e *Engine) HasJoined(roomID RoomID, player Identity) (bool, error) {
	room, err := e.room(roomID)
	if err != nil {
		return false, err
	}

	return room.HasPlayer(player), nil
}

func (e *Engine) CanJoinGame(roomID RoomID, player Identity) bool {
	room, ok := e.rooms[roomID]
	if !ok || player == "" || player == room.Arbiter {
		return false
	}

	if room.Status != STATUS_ACTIVE && room.Status != STATUS_COMMIT_PHASE {
		return false
	}

	return !room.HasPlayer(player) && !room.IsFull()
}

func (e *Engine) CanMakeGuess(roomID RoomID, player Identity) bool {
	room, ok := e.rooms[roomID]
	if !ok || room.Status != STATUS_ACTIVE || room.Params.UseCommitReveal {
		return false
	}

	return room.HasPlayer(player) && len(room.Guesses[player]) < int(room.Params.MaxGuessesPerPlayer)
}

func (e *Engine) ResolveInviteCode(code string) (RoomID, bool) {
	id, ok := e.invites.Resolve(code)
	return RoomID(id), ok
}

func (e *Engine) IsArbiter(id Identity) bool {
	return e.directory.IsArbiter(id)
}

func (e *Engine) HasActiveRoom(id Identity) bool {
	return e.directory.HasActiveRoom(id)
}

func (e *Engine) ActiveRoomOf(id Identity) (RoomID, bool) {
	return e.directory.ActiveRoom(id)
}

func (e *Engine) NextRoomID() RoomID {
	return e.nextID
}

func (e *Engine) ListRooms() []RoomInfo {
	infos := make([]RoomInfo, 0, len(e.rooms))
	for _, room := range e.rooms {
		infos = append(infos, room.Info())
	}

	slices.SortFunc(infos, func(a, b RoomInfo) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})

	return infos
}

// Purge 清理在 before 之前结束的房间，并让其邀请码失效
func (e *Engine) Purge(before time.Time) []RoomID {
	purged := make([]RoomID, 0)

	for id, room := range e.rooms {
		if room.Status != STATUS_FINISHED || room.FinishedAt == nil {
			continue
		}

		if !room.FinishedAt.Before(before) {
			continue
		}

		e.invites.Retire(uint64(id))
		delete(e.rooms, id)

		e.emit(room, EVENT_ROOM_PURGED, nil)

		zap.L().Info("已清理结束的房间", zap.Uint64("room_id", uint64(id)))

		purged = append(purged, id)
	}

	slices.Sort(purged)

	return purged
}
