package realtime

import (
	"slices"
	"sync"
	"testing"
	"time"
)

type fakeSocket struct {
	mu       sync.Mutex
	messages [][]byte
	closed   bool
}

func (f *fakeSocket) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeSocket) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, data)
	return nil
}

func (f *fakeSocket) WriteControl(int, []byte, time.Time) error { return nil }

func (f *fakeSocket) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSocket) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeSocket) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

func newTestConnection(userID string) (*Connection, *fakeSocket) {
	ws := &fakeSocket{}
	return newConnection(userID, ws), ws
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRoomLifecycle(t *testing.T) {
	r := NewRouter()
	alice, _ := newTestConnection("alice")
	bob, _ := newTestConnection("bob")
	r.Attach(alice)
	r.Attach(bob)
	defer r.Close()

	if first, err := r.Join("c1", alice); err != nil || !first {
		t.Fatalf("expected alice to open the room: %v %v", first, err)
	}
	if first, err := r.Join("c1", bob); err != nil || first {
		t.Fatalf("expected bob to join an existing room: %v %v", first, err)
	}
	if r.RoomSize("c1") != 2 || !r.InRoom("c1", bob) {
		t.Fatalf("unexpected room state")
	}
	if r.Leave("c1", alice) {
		t.Fatalf("room must stay open while bob is in it")
	}
	if r.Leave("c1", alice) {
		t.Fatalf("leaving twice must not report an emptied room")
	}
	if emptied := r.Detach(bob); !slices.Equal(emptied, []string{"c1"}) {
		t.Fatalf("expected c1 to be emptied, got %v", emptied)
	}
	if r.RoomSize("c1") != 0 {
		t.Fatalf("room should be gone")
	}
}

func TestJoinRequiresAttach(t *testing.T) {
	r := NewRouter()
	conn, _ := newTestConnection("alice")
	if _, err := r.Join("c1", conn); err != ErrNotAttached {
		t.Fatalf("expected ErrNotAttached, got %v", err)
	}
}

func TestAttachReplacesPreviousSession(t *testing.T) {
	r := NewRouter()
	defer r.Close()
	old, oldWS := newTestConnection("alice")
	r.Attach(old)
	_, _ = r.Join("c1", old)

	fresh, _ := newTestConnection("alice")
	if emptied := r.Attach(fresh); !slices.Equal(emptied, []string{"c1"}) {
		t.Fatalf("expected replaced session to empty c1, got %v", emptied)
	}
	if !oldWS.isClosed() {
		t.Fatalf("previous socket must be closed")
	}
	if err := old.Send([]byte("x")); err != ErrConnectionClosed {
		t.Fatalf("expected ErrConnectionClosed, got %v", err)
	}
}

func TestBroadcastSkipsExcludedUser(t *testing.T) {
	r := NewRouter()
	defer r.Close()
	alice, aliceWS := newTestConnection("alice")
	bob, bobWS := newTestConnection("bob")
	r.Attach(alice)
	r.Attach(bob)
	_, _ = r.Join("c1", alice)
	_, _ = r.Join("c1", bob)

	if n := r.Broadcast("c1", []byte(`{"type":"ping"}`), "alice"); n != 1 {
		t.Fatalf("expected one delivery, got %d", n)
	}
	waitFor(t, func() bool { return bobWS.count() == 1 })
	if aliceWS.count() != 0 {
		t.Fatalf("excluded user received the payload")
	}
	if !r.NotifyUser("alice", []byte("direct")) {
		t.Fatalf("expected direct delivery")
	}
	waitFor(t, func() bool { return aliceWS.count() == 1 })
	if r.Broadcast("nobody", []byte("x"), "") != 0 {
		t.Fatalf("empty room must not deliver")
	}
}

func TestCloseReportsLiveRooms(t *testing.T) {
	r := NewRouter()
	conn, ws := newTestConnection("alice")
	r.Attach(conn)
	_, _ = r.Join("c1", conn)
	_, _ = r.Join("c2", conn)

	rooms := r.Close()
	slices.Sort(rooms)
	if !slices.Equal(rooms, []string{"c1", "c2"}) {
		t.Fatalf("unexpected rooms %v", rooms)
	}
	if !ws.isClosed() {
		t.Fatalf("connection must be closed")
	}
}
