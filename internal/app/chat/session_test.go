package chat

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomchat/internal/app/store"
	"roomchat/internal/pkg/errs"
)

func TestSession_JoinAndSend(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t, store.NewMemory(), Options{})
	mustCreateRoom(t, h, "lobby", "")

	conn := newConn("ann")
	s := h.NewSession(conn, "")

	require.NoError(t, s.Join(ctx, "lobby", "", "Ann"))
	joined := conn.lastJoined(t)
	assert.Empty(t, joined.Messages)
	assert.Equal(t, 1, joined.Members)
	assert.Equal(t, 1, h.Members("lobby"))
	assert.Equal(t, "lobby", s.Room())

	require.NoError(t, s.Send(ctx, "lobby", "hi", "Ann"))

	got := conn.messages()
	require.Len(t, got, 1)
	assert.Equal(t, "Ann", got[0].Author)
	assert.Equal(t, "hi", got[0].Body)

	history, err := h.History(ctx, "lobby")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestSession_PasswordProtectedRoom(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t, store.NewMemory(), Options{})
	mustCreateRoom(t, h, "vip", "x")

	conn := newConn("bob")
	s := h.NewSession(conn, "Bob")

	err := s.Join(ctx, "vip", "y", "Bob")
	assert.Equal(t, errs.KindUnauthorized, errs.KindOf(err))
	assert.Empty(t, s.Room(), "failed join leaves the session in the lobby")
	assert.Zero(t, h.Members("vip"))
	assert.Empty(t, conn.ofType(EventRoomJoined))

	require.NoError(t, s.Join(ctx, "vip", "x", "Bob"))
	assert.Equal(t, 1, h.Members("vip"))
}

func TestSession_JoinMissingRoom(t *testing.T) {
	h := newTestHub(t, store.NewMemory(), Options{})
	s := h.NewSession(newConn("c"), "Cy")

	err := s.Join(context.Background(), "nowhere", "", "")
	assert.True(t, errs.HasCode(err, errs.ErrRoomNotFound))

	err = s.Join(context.Background(), "   ", "", "")
	assert.True(t, errs.HasCode(err, errs.ErrRoomNameInvalid))
	assert.Empty(t, s.Room())
}

func TestSession_RejoinWithinGraceCancelsDeletion(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	h := newTestHub(t, st, Options{GracePeriod: 5 * testGrace})
	mustCreateRoom(t, h, "r", "")

	s := h.NewSession(newConn("c"), "Cy")
	require.NoError(t, s.Join(ctx, "r", "", ""))

	s.Leave("r")
	assert.True(t, h.PendingDeletion("r"))

	require.NoError(t, s.Join(ctx, "r", "", ""))
	assert.False(t, h.PendingDeletion("r"))
	assert.Equal(t, 1, h.Members("r"))

	time.Sleep(10 * testGrace)
	_, err := st.FindRoom(ctx, "r")
	assert.NoError(t, err, "room still queryable")
}

func TestSession_EmptyRoomExpires(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	archiver := &recordingArchiver{}
	h := newTestHub(t, st, Options{Archiver: archiver})
	mustCreateRoom(t, h, "r", "")

	watcher := newConn("watcher")
	h.NewSession(watcher, "W")

	s := h.NewSession(newConn("c"), "Cy")
	require.NoError(t, s.Join(ctx, "r", "", ""))
	require.NoError(t, s.Send(ctx, "r", "last words", ""))
	s.Leave("")

	require.Eventually(t, func() bool {
		_, err := st.FindRoom(ctx, "r")
		return errs.HasCode(err, errs.ErrRoomNotFound)
	}, waitTimeout, waitTick)

	msgs, err := st.ListMessages(ctx, "r")
	require.NoError(t, err)
	assert.Empty(t, msgs, "messages are deleted with the room")

	require.Eventually(t, func() bool { return len(watcher.ofType(EventRoomDeleted)) == 1 }, waitTimeout, waitTick)
	assert.Equal(t, "r", watcher.ofType(EventRoomDeleted)[0].Payload.(RoomDeletedPayload).RoomName)

	archived, ok := archiver.get("r")
	require.True(t, ok)
	require.Len(t, archived, 1)
	assert.Equal(t, "last words", archived[0].Body)

	err = s.Join(ctx, "r", "", "")
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestSession_ExpiryAbsorbsStoreFailure(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	h := newTestHub(t, flakyStore{Store: mem}, Options{})
	mustCreateRoom(t, h, "r", "")

	watcher := newConn("watcher")
	h.NewSession(watcher, "W")

	s := h.NewSession(newConn("c"), "Cy")
	require.NoError(t, s.Join(ctx, "r", "", ""))
	s.Leave("r")

	require.Eventually(t, func() bool { return len(watcher.ofType(EventRoomDeleted)) == 1 }, waitTimeout, waitTick)
	assert.False(t, h.PendingDeletion("r"))
	assert.Zero(t, h.Members("r"))

	_, err := mem.FindRoom(ctx, "r")
	assert.NoError(t, err, "the store kept the room; deletion is not retried")
}

func TestSession_SendIgnoredCases(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t, store.NewMemory(), Options{})
	mustCreateRoom(t, h, "r", "")

	conn := newConn("c")
	s := h.NewSession(conn, "Cy")

	require.NoError(t, s.Send(ctx, "r", "from the lobby", ""))
	require.NoError(t, s.Join(ctx, "r", "", ""))
	require.NoError(t, s.Send(ctx, "r", "   ", ""))
	require.NoError(t, s.Send(ctx, "other", "wrong room", ""))
	assert.Empty(t, conn.messages())

	err := s.Send(ctx, "r", strings.Repeat("x", store.MaxMessageBytes+1), "")
	assert.True(t, errs.HasCode(err, errs.ErrMessageContentTooLong))
	assert.Empty(t, conn.messages())
}

func TestSession_SendSurfacesStoreErrors(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	h := newTestHub(t, mem, Options{})
	mustCreateRoom(t, h, "r", "")

	s := h.NewSession(newConn("c"), "Cy")
	require.NoError(t, s.Join(ctx, "r", "", ""))

	// the room vanished from the store behind the session's back
	require.NoError(t, mem.DeleteRoom(ctx, "r"))

	err := s.Send(ctx, "r", "hello?", "")
	assert.True(t, errs.HasCode(err, errs.ErrRoomNotFound))
}

func TestSession_SwitchingRoomsLeavesTheOldOne(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t, store.NewMemory(), Options{GracePeriod: time.Hour})
	mustCreateRoom(t, h, "a", "")
	mustCreateRoom(t, h, "b", "")

	mover := newConn("mover")
	s := h.NewSession(mover, "Mo")
	stayer := h.NewSession(newConn("stayer"), "St")

	require.NoError(t, s.Join(ctx, "a", "", ""))
	require.NoError(t, stayer.Join(ctx, "a", "", ""))
	require.NoError(t, s.Join(ctx, "b", "", ""))

	assert.Equal(t, 1, h.Members("a"))
	assert.Equal(t, 1, h.Members("b"))
	assert.Equal(t, "b", s.Room())

	require.NoError(t, stayer.Send(ctx, "a", "after you left", ""))
	assert.Empty(t, mover.messages(), "left before the message was accepted")
}

func TestSession_RejoinSameRoomNoDuplicates(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t, store.NewMemory(), Options{})
	mustCreateRoom(t, h, "r", "")

	conn := newConn("c")
	s := h.NewSession(conn, "Cy")

	require.NoError(t, s.Join(ctx, "r", "", ""))
	require.NoError(t, s.Send(ctx, "r", "first", ""))
	require.NoError(t, s.Join(ctx, "r", "", "Cyrus"))

	assert.Equal(t, 1, h.Members("r"), "rejoin does not count twice")
	assert.Len(t, conn.ofType(EventRoomJoined), 2)
	assert.Len(t, conn.lastJoined(t).Messages, 1)

	require.NoError(t, s.Send(ctx, "r", "second", ""))
	got := conn.messages()
	require.Len(t, got, 2)
	assert.Equal(t, "second", got[1].Body)
	assert.Equal(t, "Cyrus", got[1].Author, "display name may change mid-session")
}

func TestSession_BroadcastOrderAcrossMembers(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t, store.NewMemory(), Options{})
	mustCreateRoom(t, h, "r", "")

	a, b := newConn("a"), newConn("b")
	sa, sb := h.NewSession(a, "A"), h.NewSession(b, "B")
	require.NoError(t, sa.Join(ctx, "r", "", ""))
	require.NoError(t, sb.Join(ctx, "r", "", ""))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 50 {
			assert.NoError(t, sa.Send(ctx, "r", "from a", ""))
		}
	}()
	for range 50 {
		require.NoError(t, sb.Send(ctx, "r", "from b", ""))
	}
	<-done

	history, err := h.History(ctx, "r")
	require.NoError(t, err)
	require.Len(t, history, 100)

	for _, conn := range []*recordingConn{a, b} {
		got := conn.messages()
		require.Len(t, got, 100)
		for i := range got {
			assert.Equal(t, history[i].ID, got[i].ID)
		}
	}
}

func TestSession_DisconnectIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t, store.NewMemory(), Options{GracePeriod: time.Hour})
	mustCreateRoom(t, h, "r", "")

	other := h.NewSession(newConn("other"), "O")
	require.NoError(t, other.Join(ctx, "r", "", ""))

	conn := newConn("c")
	s := h.NewSession(conn, "Cy")
	require.NoError(t, s.Join(ctx, "r", "", ""))
	assert.Equal(t, 2, h.Members("r"))

	s.Disconnect()
	s.Disconnect()
	assert.Equal(t, 1, h.Members("r"))
	assert.False(t, h.PendingDeletion("r"))

	require.NoError(t, h.DeleteRoom(ctx, "r"))
	assert.Empty(t, conn.ofType(EventRoomDeleted), "disconnected sessions leave the lobby too")
}

func TestHub_DeleteRoomEvictsMembers(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	h := newTestHub(t, st, Options{})
	mustCreateRoom(t, h, "r", "")

	conn := newConn("c")
	s := h.NewSession(conn, "Cy")
	require.NoError(t, s.Join(ctx, "r", "", ""))

	require.NoError(t, h.DeleteRoom(ctx, "r"))
	require.NoError(t, h.DeleteRoom(ctx, "r"), "deleting twice succeeds")

	assert.Empty(t, s.Room())
	assert.Zero(t, h.Members("r"))
	assert.Len(t, conn.ofType(EventRoomDeleted), 1)
	assert.False(t, h.PendingDeletion("r"))

	_, err := st.FindRoom(ctx, "r")
	assert.True(t, errs.HasCode(err, errs.ErrRoomNotFound))

	// the name is free again
	mustCreateRoom(t, h, "r", "")
	require.NoError(t, s.Join(ctx, "r", "", ""))
	assert.Equal(t, 1, h.Members("r"))
}

func TestHub_DeleteRoomSurfacesStoreErrors(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	h := newTestHub(t, flakyStore{Store: mem}, Options{})
	mustCreateRoom(t, h, "r", "")

	s := h.NewSession(newConn("c"), "Cy")
	require.NoError(t, s.Join(ctx, "r", "", ""))

	err := h.DeleteRoom(ctx, "r")
	assert.Equal(t, errs.KindStoreUnavailable, errs.KindOf(err))
	assert.Equal(t, "r", s.Room())
	assert.Equal(t, 1, h.Members("r"))
}

func TestHub_CreateRoomConflict(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t, store.NewMemory(), Options{})

	_, err := h.CreateRoom(ctx, "dup", "")
	require.NoError(t, err)

	_, err = h.CreateRoom(ctx, " dup ", "")
	assert.Equal(t, errs.KindConflict, errs.KindOf(err))

	rooms, err := h.ListRooms(ctx)
	require.NoError(t, err)
	assert.Len(t, rooms, 1)
}

func TestHub_ListRoomsHidesPasswords(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t, store.NewMemory(), Options{})
	mustCreateRoom(t, h, "open", "")
	mustCreateRoom(t, h, "vip", "secret")

	s := h.NewSession(newConn("c"), "Cy")
	require.NoError(t, s.Join(ctx, "vip", "secret", ""))

	rooms, err := h.ListRooms(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 2)

	byName := map[string]RoomSummary{}
	for _, r := range rooms {
		byName[r.Name] = r
	}
	assert.False(t, byName["open"].Protected)
	assert.True(t, byName["vip"].Protected)
	assert.Equal(t, 1, byName["vip"].Members)
}

func TestHub_AllHistory(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t, store.NewMemory(), Options{})
	mustCreateRoom(t, h, "a", "")
	mustCreateRoom(t, h, "b", "")

	s := h.NewSession(newConn("c"), "Cy")
	require.NoError(t, s.Join(ctx, "a", "", ""))
	require.NoError(t, s.Send(ctx, "a", "hello a", ""))

	all, err := h.AllHistory(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	counts := map[string]int{}
	for _, rh := range all {
		counts[rh.Room] = len(rh.Messages)
	}
	assert.Equal(t, map[string]int{"a": 1, "b": 0}, counts)
}

func TestHub_GuestDisplayName(t *testing.T) {
	h := newTestHub(t, store.NewMemory(), Options{})
	s := h.NewSession(newConn("c"), "  ")
	assert.True(t, strings.HasPrefix(s.DisplayName(), "Guest"))
}

// assertLobbyFlows checks that deleting an unrelated room still reaches the
// lobby, whatever the other sessions are waiting on.
func assertLobbyFlows(t *testing.T, h *Hub, watcher *recordingConn) {
	t.Helper()
	ctx := context.Background()
	mustCreateRoom(t, h, "c", "")

	deleted := make(chan error, 1)
	go func() { deleted <- h.DeleteRoom(ctx, "c") }()

	select {
	case err := <-deleted:
		require.NoError(t, err)
	case <-time.After(waitTimeout):
		t.Fatal("DeleteRoom stuck behind a slow store call")
	}
	assert.Len(t, watcher.ofType(EventRoomDeleted), 1)
}

func TestSession_SlowMessageWriteKeepsLobbyFlowing(t *testing.T) {
	ctx := context.Background()
	g := newGate()
	st := hookedStore{
		Store: store.NewMemory(),
		beforeAppend: func(room string) {
			if room == "a" {
				g.wait()
			}
		},
	}
	h := newTestHub(t, st, Options{})
	defer g.open()
	mustCreateRoom(t, h, "a", "")

	conn := newConn("busy")
	busy := h.NewSession(conn, "Bo")
	require.NoError(t, busy.Join(ctx, "a", "", ""))
	watcher := newConn("watcher")
	h.NewSession(watcher, "Wes")

	sent := make(chan error, 1)
	go func() { sent <- busy.Send(ctx, "a", "slow", "") }()
	g.awaitEntered(t)

	assertLobbyFlows(t, h, watcher)
	assert.Len(t, conn.ofType(EventRoomDeleted), 1)
	assert.Equal(t, "a", busy.Room())

	g.open()
	select {
	case err := <-sent:
		require.NoError(t, err)
	case <-time.After(waitTimeout):
		t.Fatal("send never finished")
	}
	assert.Len(t, conn.messages(), 1)
}

func TestSession_SlowRoomLookupKeepsLobbyFlowing(t *testing.T) {
	ctx := context.Background()
	g := newGate()
	st := hookedStore{
		Store: store.NewMemory(),
		beforeFind: func(room string) {
			if room == "slow" {
				g.wait()
			}
		},
	}
	h := newTestHub(t, st, Options{})
	defer g.open()
	mustCreateRoom(t, h, "slow", "")

	conn := newConn("joiner")
	joiner := h.NewSession(conn, "Jo")
	watcher := newConn("watcher")
	h.NewSession(watcher, "Wes")

	joined := make(chan error, 1)
	go func() { joined <- joiner.Join(ctx, "slow", "", "") }()
	g.awaitEntered(t)

	assertLobbyFlows(t, h, watcher)
	assert.Len(t, conn.ofType(EventRoomDeleted), 1)

	g.open()
	select {
	case err := <-joined:
		require.NoError(t, err)
	case <-time.After(waitTimeout):
		t.Fatal("join never finished")
	}
	assert.Equal(t, "slow", joiner.Room())
}

func TestSession_SendDroppedAfterLeavingWhileQueued(t *testing.T) {
	ctx := context.Background()
	g := newGate()
	st := hookedStore{
		Store: store.NewMemory(),
		beforeAppend: func(room string) {
			if room == "a" {
				g.wait()
			}
		},
	}
	h := newTestHub(t, st, Options{})
	defer g.open()
	mustCreateRoom(t, h, "a", "")

	first := h.NewSession(newConn("first"), "Fi")
	second := h.NewSession(newConn("second"), "Se")
	require.NoError(t, first.Join(ctx, "a", "", ""))
	require.NoError(t, second.Join(ctx, "a", "", ""))

	firstSent := make(chan error, 1)
	go func() { firstSent <- first.Send(ctx, "a", "kept", "") }()
	g.awaitEntered(t)

	// the second message queues behind the first, then its author leaves
	secondSent := make(chan error, 1)
	go func() { secondSent <- second.Send(ctx, "a", "dropped", "") }()
	time.Sleep(testGrace)
	second.Leave("a")

	g.open()
	for _, ch := range []chan error{firstSent, secondSent} {
		select {
		case err := <-ch:
			require.NoError(t, err)
		case <-time.After(waitTimeout):
			t.Fatal("send never finished")
		}
	}

	history, err := h.History(ctx, "a")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "kept", history[0].Body)
}

func TestHub_FailedDeleteOfEmptyRoomReschedulesExpiry(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t, flakyStore{Store: store.NewMemory()}, Options{GracePeriod: time.Hour})
	mustCreateRoom(t, h, "r", "")

	s := h.NewSession(newConn("c"), "Cy")
	require.NoError(t, s.Join(ctx, "r", "", ""))
	s.Leave("")
	require.True(t, h.PendingDeletion("r"))

	err := h.DeleteRoom(ctx, "r")
	assert.Equal(t, errs.KindStoreUnavailable, errs.KindOf(err))
	assert.True(t, h.PendingDeletion("r"), "the room still expires later")

	require.NoError(t, s.Join(ctx, "r", "", ""), "room stays joinable")
	assert.Equal(t, 1, h.Members("r"))
}
