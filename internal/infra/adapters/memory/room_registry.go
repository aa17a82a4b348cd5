package memory

import (
	"sync"

	"github.com/campuslive/signaling/internal/application/metric"
)

// RoomRegistry maps room names to member connection ids and back. Rooms
// exist only while non-empty: the first join creates the entry, removing
// the last member deletes it.
type RoomRegistry interface {
	// Join adds the client to the named room and records the membership
	// against the client id.
	Join(clientID, roomName string)

	// Leave removes the client's membership, if any, and returns the room
	// it was in. ok is false for clients that never joined. Safe to call
	// more than once.
	Leave(clientID string) (roomName string, ok bool)

	// Room returns the client's current room.
	Room(clientID string) (roomName string, ok bool)

	// Members returns the ids of all current members of a room. A room
	// that does not exist has no members.
	Members(roomName string) []string
}

type roomRegistry struct {
	// rooms хранит map[room_name]set[client_id]
	rooms map[string]map[string]struct{}

	// byClient is the reverse index used on disconnect.
	byClient map[string]string

	mu sync.RWMutex
}

func NewRoomRegistry() RoomRegistry {
	return &roomRegistry{
		rooms:    make(map[string]map[string]struct{}),
		byClient: make(map[string]string),
	}
}

func (r *roomRegistry) Join(clientID, roomName string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[roomName]; !ok {
		r.rooms[roomName] = make(map[string]struct{})
	}

	r.rooms[roomName][clientID] = struct{}{}
	r.byClient[clientID] = roomName

	metric.SetActiveRooms(len(r.rooms))
}

func (r *roomRegistry) Leave(clientID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomName, ok := r.byClient[clientID]
	if !ok {
		return "", false
	}

	delete(r.byClient, clientID)
	delete(r.rooms[roomName], clientID)

	if len(r.rooms[roomName]) == 0 {
		delete(r.rooms, roomName)
	}

	metric.SetActiveRooms(len(r.rooms))

	return roomName, true
}

func (r *roomRegistry) Room(clientID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roomName, ok := r.byClient[clientID]
	return roomName, ok
}

func (r *roomRegistry) Members(roomName string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.rooms[roomName]
	if !ok {
		return nil
	}

	ids := make([]string, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}

	return ids
}
