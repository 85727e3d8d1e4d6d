package game

// arbiterEntry 记录一个裁判当前绑定的房间，nil 表示空闲
type arbiterEntry struct {
	activeRoom *RoomID
}

// Directory 维护哪些身份是裁判，以及每个裁判当前占用的房间（至多一个）
type Directory struct {
	entries map[Identity]*arbiterEntry
}

func NewDirectory() *Directory {
	return &Directory{
		entries: make(map[Identity]*arbiterEntry),
	}
}

func (d *Directory) Claim(id Identity) error {
	if id == "" {
		return reject(ErrNotAuthorized, "身份不能为空")
	}

	if _, ok := d.entries[id]; ok {
		return ErrAlreadyArbiter
	}

	d.entries[id] = &arbiterEntry{}

	return nil
}

func (d *Directory) IsArbiter(id Identity) bool {
	_, ok := d.entries[id]
	return ok
}

func (d *Directory) ActiveRoom(id Identity) (RoomID, bool) {
	entry, ok := d.entries[id]
	if !ok || entry.activeRoom == nil {
		return 0, false
	}

	return *entry.activeRoom, true
}

func (d *Directory) HasActiveRoom(id Identity) bool {
	_, ok := d.ActiveRoom(id)
	return ok
}

// bind 将房间绑定到裁判；已绑定同一房间时视为成功
func (d *Directory) bind(id Identity, roomID RoomID) error {
	entry, ok := d.entries[id]
	if !ok {
		return reject(ErrNotAuthorized, "不是裁判")
	}

	if entry.activeRoom != nil {
		if *entry.activeRoom == roomID {
			return nil
		}

		return reject(ErrAlreadyHasActiveRoom, "房间 %d 仍在进行", *entry.activeRoom)
	}

	entry.activeRoom = &roomID

	return nil
}

// release 仅在裁判当前绑定的正是该房间时解除绑定
func (d *Directory) release(id Identity, roomID RoomID) {
	entry, ok := d.entries[id]
	if !ok || entry.activeRoom == nil || *entry.activeRoom != roomID {
		return
	}

	entry.activeRoom = nil
}
