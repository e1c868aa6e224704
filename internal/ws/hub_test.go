package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/damoang/angple-collab/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startHub runs hub and serves /watch?content=<id> against it
func startHub(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	go hub.Run()
	t.Cleanup(hub.Stop)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		NewClient(hub, conn, r.URL.Query().Get("content")).Serve()
	}))
	t.Cleanup(srv.Close)

	select {
	case <-hub.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("hub not ready")
	}
	return srv
}

func watch(t *testing.T, srv *httptest.Server, hub *Hub, contentID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/watch?content=" + contentID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return hub.ClientCount(contentID) == 1 }, time.Second, 10*time.Millisecond)
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) *domain.EditEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event domain.EditEvent
	require.NoError(t, conn.ReadJSON(&event))
	return &event
}

func TestHub_DeliversToWatchersOfContent(t *testing.T) {
	hub := NewHub(nil)
	srv := startHub(t, hub)

	a := watch(t, srv, hub, "content-a")
	b := watch(t, srv, hub, "content-b")

	hub.Publish(&domain.EditEvent{Type: domain.EventLockAcquired, ContentID: "content-a", ActorID: "alice"})
	hub.Publish(&domain.EditEvent{Type: domain.EventVersionSaved, ContentID: "content-b", ActorID: "bob", VersionNumber: 4})

	got := readEvent(t, a)
	assert.Equal(t, domain.EventLockAcquired, got.Type)
	assert.Equal(t, "alice", got.ActorID)

	got = readEvent(t, b)
	assert.Equal(t, domain.EventVersionSaved, got.Type)
	assert.Equal(t, 4, got.VersionNumber)
}

func TestHub_UnregistersClosedClient(t *testing.T) {
	hub := NewHub(nil)
	srv := startHub(t, hub)

	conn := watch(t, srv, hub, "content-a")
	require.Equal(t, 1, hub.ClientCount("content-a"))

	conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount("content-a") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_RelaysAcrossInstancesOnce(t *testing.T) {
	mr := miniredis.RunT(t)
	newClient := func() *redis.Client {
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { rdb.Close() })
		return rdb
	}

	hubA := NewHub(newClient())
	hubB := NewHub(newClient())
	srvA := startHub(t, hubA)
	srvB := startHub(t, hubB)

	onA := watch(t, srvA, hubA, "content-a")
	onB := watch(t, srvB, hubB, "content-a")

	hubA.Publish(&domain.EditEvent{Type: domain.EventLockReleased, ContentID: "content-a", ActorID: "alice"})

	assert.Equal(t, domain.EventLockReleased, readEvent(t, onB).Type)
	assert.Equal(t, domain.EventLockReleased, readEvent(t, onA).Type)

	// the publishing instance ignores its own message from Redis
	require.NoError(t, onA.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := onA.ReadMessage()
	assert.Error(t, err)
}
