package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"roomchat/internal/app/store"
	"roomchat/internal/pkg/errs"
)

const (
	testGrace   = 30 * time.Millisecond
	waitTimeout = 2 * time.Second
	waitTick    = 5 * time.Millisecond
)

// recordingConn is a Conn that keeps every event it is sent.
type recordingConn struct {
	id string

	mu     sync.Mutex
	events []Event
	fail   bool
}

func newConn(id string) *recordingConn {
	return &recordingConn{id: id}
}

func (c *recordingConn) ID() string { return c.id }

func (c *recordingConn) Send(evt Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("connection closing")
	}
	c.events = append(c.events, evt)
	return nil
}

func (c *recordingConn) ofType(t EventType) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Event
	for _, evt := range c.events {
		if evt.Type == t {
			out = append(out, evt)
		}
	}
	return out
}

func (c *recordingConn) messages() []store.Message {
	var out []store.Message
	for _, evt := range c.ofType(EventNewMessage) {
		out = append(out, evt.Payload.(NewMessagePayload).Message)
	}
	return out
}

func (c *recordingConn) lastJoined(t *testing.T) RoomJoinedPayload {
	t.Helper()
	joined := c.ofType(EventRoomJoined)
	require.NotEmpty(t, joined, "no roomJoined event")
	return joined[len(joined)-1].Payload.(RoomJoinedPayload)
}

func newTestHub(t *testing.T, st store.Store, opts Options) *Hub {
	t.Helper()
	if opts.GracePeriod == 0 {
		opts.GracePeriod = testGrace
	}
	h := NewHub(st, opts)
	t.Cleanup(h.Shutdown)
	return h
}

func mustCreateRoom(t *testing.T, h *Hub, name, password string) {
	t.Helper()
	_, err := h.CreateRoom(context.Background(), name, password)
	require.NoError(t, err)
}

// flakyStore fails deletes with ErrStoreUnavailable.
type flakyStore struct {
	store.Store
}

func (f flakyStore) DeleteRoom(context.Context, string) error {
	return errs.NewError(errs.ErrStoreUnavailable, errors.New("connection refused"))
}

func (f flakyStore) DeleteMessages(context.Context, string) error {
	return errs.NewError(errs.ErrStoreUnavailable, errors.New("connection refused"))
}

// recordingArchiver keeps every archived transcript.
type recordingArchiver struct {
	mu       sync.Mutex
	archived map[string][]store.Message
}

func (a *recordingArchiver) ArchiveRoom(_ context.Context, room string, messages []store.Message) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.archived == nil {
		a.archived = make(map[string][]store.Message)
	}
	a.archived[room] = messages
	return nil
}

func (a *recordingArchiver) get(room string) ([]store.Message, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	msgs, ok := a.archived[room]
	return msgs, ok
}

// gate blocks the first caller of wait until open is called.
type gate struct {
	entered     chan struct{}
	release     chan struct{}
	enterOnce   sync.Once
	releaseOnce sync.Once
}

func newGate() *gate {
	return &gate{entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gate) wait() {
	g.enterOnce.Do(func() { close(g.entered) })
	<-g.release
}

func (g *gate) open() {
	g.releaseOnce.Do(func() { close(g.release) })
}

func (g *gate) awaitEntered(t *testing.T) {
	t.Helper()
	select {
	case <-g.entered:
	case <-time.After(waitTimeout):
		t.Fatal("store call never reached")
	}
}

// hookedStore runs a hook around selected store calls.
type hookedStore struct {
	store.Store

	beforeFind           func(room string)
	beforeAppend         func(room string)
	beforeDeleteMessages func(room string)
	afterDeleteRoom      func(room string)
}

func (s hookedStore) FindRoom(ctx context.Context, name string) (store.Room, error) {
	if s.beforeFind != nil {
		s.beforeFind(name)
	}
	return s.Store.FindRoom(ctx, name)
}

func (s hookedStore) AppendMessage(ctx context.Context, room, author, body string) (store.Message, error) {
	if s.beforeAppend != nil {
		s.beforeAppend(room)
	}
	return s.Store.AppendMessage(ctx, room, author, body)
}

func (s hookedStore) DeleteMessages(ctx context.Context, room string) error {
	if s.beforeDeleteMessages != nil {
		s.beforeDeleteMessages(room)
	}
	return s.Store.DeleteMessages(ctx, room)
}

func (s hookedStore) DeleteRoom(ctx context.Context, name string) error {
	err := s.Store.DeleteRoom(ctx, name)
	if s.afterDeleteRoom != nil {
		s.afterDeleteRoom(name)
	}
	return err
}
