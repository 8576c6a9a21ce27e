package realtime

import (
	"errors"
	"sync"
)

var ErrNotAttached = errors.New("realtime: connection is not attached")

// Router coordinates websocket sessions and conversation rooms. It keeps one
// active Connection per user and fans payloads out to everyone in a room.
//
// Membership changes report when a room is created or emptied so callers can
// hold exactly one upstream subscription per live room.
type Router struct {
	mu           sync.RWMutex
	sessions     map[string]*Connection            // sessionID -> connection
	userSessions map[string]string                 // userID -> sessionID
	rooms        map[string]map[string]*Connection // conversationID -> sessionID -> connection
	sessionRooms map[string]map[string]struct{}    // sessionID -> conversationIDs
}

func NewRouter() *Router {
	return &Router{
		sessions:     make(map[string]*Connection),
		userSessions: make(map[string]string),
		rooms:        make(map[string]map[string]*Connection),
		sessionRooms: make(map[string]map[string]struct{}),
	}
}

// Attach registers conn and starts its write loop. A previous session of the
// same user is detached and closed; rooms emptied by that are returned.
func (r *Router) Attach(conn *Connection) (emptied []string) {
	var previous *Connection

	r.mu.Lock()
	if existingID, ok := r.userSessions[conn.UserID]; ok {
		if existing := r.sessions[existingID]; existing != nil {
			previous = existing
			emptied = r.detachLocked(existingID)
		}
	}
	r.sessions[conn.ID] = conn
	r.userSessions[conn.UserID] = conn.ID
	r.sessionRooms[conn.ID] = make(map[string]struct{})
	r.mu.Unlock()

	conn.Start()

	if previous != nil {
		previous.Close(4001, "session replaced")
	}
	return emptied
}

// Detach removes conn if it is still tracked and returns the rooms it left
// empty.
func (r *Router) Detach(conn *Connection) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.detachLocked(conn.ID)
}

// Join adds conn to the room. first is true when the room did not exist.
func (r *Router) Join(conversationID string, conn *Connection) (first bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[conn.ID]; !ok {
		return false, ErrNotAttached
	}
	room := r.rooms[conversationID]
	if room == nil {
		room = make(map[string]*Connection)
		r.rooms[conversationID] = room
		first = true
	}
	room[conn.ID] = conn
	r.sessionRooms[conn.ID][conversationID] = struct{}{}
	return first, nil
}

// Leave removes conn from the room and reports whether the room is now empty.
func (r *Router) Leave(conversationID string, conn *Connection) (emptied bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveLocked(conversationID, conn.ID)
}

// InRoom reports whether conn has joined the room.
func (r *Router) InRoom(conversationID string, conn *Connection) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[conversationID][conn.ID]
	return ok
}

// RoomSize returns the number of sessions in the room.
func (r *Router) RoomSize(conversationID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[conversationID])
}

// Broadcast writes payload to all members of the room. excludeUserID, when
// non-empty, skips that user. It returns the number of deliveries.
func (r *Router) Broadcast(conversationID string, payload []byte, excludeUserID string) int {
	r.mu.RLock()
	targets := make([]*Connection, 0, len(r.rooms[conversationID]))
	for _, conn := range r.rooms[conversationID] {
		if excludeUserID != "" && conn.UserID == excludeUserID {
			continue
		}
		targets = append(targets, conn)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, conn := range targets {
		if err := conn.Send(payload); err == nil {
			delivered++
		}
	}
	return delivered
}

// NotifyUser delivers payload to the current connection of userID.
func (r *Router) NotifyUser(userID string, payload []byte) bool {
	r.mu.RLock()
	conn := r.sessions[r.userSessions[userID]]
	r.mu.RUnlock()
	if conn == nil {
		return false
	}
	return conn.Send(payload) == nil
}

// Close terminates every tracked connection and returns the rooms that were
// live.
func (r *Router) Close() []string {
	r.mu.Lock()
	sessions := make([]*Connection, 0, len(r.sessions))
	for _, conn := range r.sessions {
		sessions = append(sessions, conn)
	}
	rooms := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		rooms = append(rooms, id)
	}
	r.sessions = make(map[string]*Connection)
	r.userSessions = make(map[string]string)
	r.rooms = make(map[string]map[string]*Connection)
	r.sessionRooms = make(map[string]map[string]struct{})
	r.mu.Unlock()

	for _, conn := range sessions {
		conn.Close(1001, "router shutdown")
	}
	return rooms
}

func (r *Router) detachLocked(sessionID string) []string {
	conn, ok := r.sessions[sessionID]
	if !ok {
		return nil
	}
	delete(r.sessions, sessionID)
	if current, ok := r.userSessions[conn.UserID]; ok && current == sessionID {
		delete(r.userSessions, conn.UserID)
	}

	var emptied []string
	for roomID := range r.sessionRooms[sessionID] {
		if r.leaveLocked(roomID, sessionID) {
			emptied = append(emptied, roomID)
		}
	}
	delete(r.sessionRooms, sessionID)
	return emptied
}

func (r *Router) leaveLocked(conversationID, sessionID string) bool {
	room := r.rooms[conversationID]
	if room == nil {
		return false
	}
	if _, ok := room[sessionID]; !ok {
		return false
	}
	delete(room, sessionID)
	if memberships, ok := r.sessionRooms[sessionID]; ok {
		delete(memberships, conversationID)
	}
	if len(room) == 0 {
		delete(r.rooms, conversationID)
		return true
	}
	return false
}
